package models

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"

	"github.com/broxiva/subscriptions/pkg/types"
)

// SubscriptionPlan is an administered plan of the customer or vendor catalog.
type SubscriptionPlan struct {
	ID              string                `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Name            string                `gorm:"column:name;type:varchar(128);not null" json:"name"`
	Description     string                `gorm:"column:description;type:text" json:"description"`
	Type            types.PlanType        `gorm:"column:type;type:varchar(32);not null;index:idx_plan_type_price,priority:1" json:"type"`
	Price           decimal.Decimal       `gorm:"column:price;type:numeric(12,2);not null;index:idx_plan_type_price,priority:2" json:"price"`
	BillingInterval types.BillingInterval `gorm:"column:billing_interval;type:varchar(16);not null" json:"billing_interval"`
	TrialDays       int                   `gorm:"column:trial_days;not null" json:"trial_days"`
	// Benefits maps benefit keys to arbitrary JSON values. Only boolean true
	// grants a benefit in entitlement checks.
	Benefits datatypes.JSONMap `gorm:"column:benefits;type:jsonb;default:'{}'" json:"benefits"`
	// MaxProducts and MaxAds are nil for unlimited.
	MaxProducts     *int             `gorm:"column:max_products" json:"max_products"`
	MaxAds          *int             `gorm:"column:max_ads" json:"max_ads"`
	CommissionRate  *decimal.Decimal `gorm:"column:commission_rate;type:numeric(5,2)" json:"commission_rate"`
	PrioritySupport bool             `gorm:"column:priority_support;not null" json:"priority_support"`
	IsActive        bool             `gorm:"column:is_active;not null" json:"is_active"`
	CreatedAt       time.Time        `json:"created_at"`
	UpdatedAt       time.Time        `json:"updated_at"`
}

func (SubscriptionPlan) TableName() string {
	return "subscription_plan"
}

// TrialEndsAt returns the end of a trial started at start, nil when the plan
// has no trial.
func (p *SubscriptionPlan) TrialEndsAt(start time.Time) *time.Time {
	if p == nil || p.TrialDays <= 0 {
		return nil
	}
	end := start.AddDate(0, 0, p.TrialDays)
	return &end
}
