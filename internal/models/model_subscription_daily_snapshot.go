package models

import (
	"time"

	"github.com/broxiva/subscriptions/pkg/types"
)

// SubscriptionDailySnapshot is a daily copy of every current subscription for analytics.
type SubscriptionDailySnapshot struct {
	ID                string                   `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	SubscriptionID    string                   `gorm:"column:subscription_id;type:uuid;not null;uniqueIndex:idx_snapshot_subscription_date,priority:1" json:"subscription_id"`
	SnapshotDate      string                   `gorm:"column:snapshot_date;type:varchar(10);not null;uniqueIndex:idx_snapshot_subscription_date,priority:2;index" json:"snapshot_date"`
	UserID            string                   `gorm:"column:user_id;type:varchar(64);not null" json:"user_id"`
	PlanID            string                   `gorm:"column:plan_id;type:uuid;not null" json:"plan_id"`
	Status            types.SubscriptionStatus `gorm:"column:status;type:varchar(16);not null" json:"status"`
	CurrentPeriodEnd  time.Time                `gorm:"column:current_period_end" json:"current_period_end"`
	CancelAtPeriodEnd bool                     `gorm:"column:cancel_at_period_end" json:"cancel_at_period_end"`
	SnapshotCreatedAt time.Time                `gorm:"column:snapshot_created_at" json:"snapshot_created_at"`
}

func (SubscriptionDailySnapshot) TableName() string {
	return "subscription_daily_snapshot"
}

// SnapshotDate formats t as the snapshot date key in UTC.
func SnapshotDate(t time.Time) string {
	return t.UTC().Format(time.DateOnly)
}
