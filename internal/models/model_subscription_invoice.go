package models

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/broxiva/subscriptions/pkg/types"
)

// SubscriptionInvoice is the bill for one period of a subscription. A period is
// billed at most once.
type SubscriptionInvoice struct {
	ID             string              `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SubscriptionID string              `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex:idx_invoice_subscription_period,priority:1" json:"subscription_id"`
	Amount         decimal.Decimal     `gorm:"column:amount;type:numeric(12,2);not null" json:"amount"`
	Currency       string              `gorm:"column:currency;type:varchar(3);not null" json:"currency"`
	Status         types.InvoiceStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	PeriodStart    time.Time           `gorm:"column:period_start;not null;uniqueIndex:idx_invoice_subscription_period,priority:2" json:"period_start"`
	PeriodEnd      time.Time           `gorm:"column:period_end;not null" json:"period_end"`
	AttemptedAt    time.Time           `gorm:"column:attempted_at;not null" json:"attempted_at"`
	PaidAt         *time.Time          `gorm:"column:paid_at" json:"paid_at"`
	// ExternalRef is the payment provider's reference recorded when paid.
	ExternalRef *string   `gorm:"column:external_ref;type:varchar(128)" json:"external_ref"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

func (SubscriptionInvoice) TableName() string {
	return "subscription_invoice"
}

func (i *SubscriptionInvoice) Paid() bool {
	return i != nil && i.Status == types.InvoiceStatusPaid
}
