package models

import (
	"time"

	"github.com/broxiva/subscriptions/pkg/types"
)

// Subscription binds a user to a plan for the current billing period.
// Rows are never deleted; terminal statuses are CANCELLED and EXPIRED.
type Subscription struct {
	ID string `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	// The partial unique index allows at most one ACTIVE or TRIAL subscription per user.
	UserID             string                   `gorm:"column:user_id;type:varchar(64);not null;index:idx_subscription_user_created,priority:1;uniqueIndex:idx_subscription_live_user,where:status = 'ACTIVE' OR status = 'TRIAL'" json:"user_id"`
	PlanID             string                   `gorm:"column:plan_id;type:uuid;not null;index" json:"plan_id"`
	Status             types.SubscriptionStatus `gorm:"column:status;type:varchar(16);not null;index:idx_subscription_status_period_end,priority:1" json:"status"`
	CurrentPeriodStart time.Time                `gorm:"column:current_period_start;not null" json:"current_period_start"`
	CurrentPeriodEnd   time.Time                `gorm:"column:current_period_end;not null;index:idx_subscription_status_period_end,priority:2" json:"current_period_end"`
	TrialStart         *time.Time               `gorm:"column:trial_start" json:"trial_start"`
	TrialEnd           *time.Time               `gorm:"column:trial_end" json:"trial_end"`
	CancelAtPeriodEnd  bool                     `gorm:"column:cancel_at_period_end;not null" json:"cancel_at_period_end"`
	CancelledAt        *time.Time               `gorm:"column:cancelled_at" json:"cancelled_at"`
	CreatedAt          time.Time                `gorm:"index:idx_subscription_user_created,priority:2,sort:desc" json:"created_at"`
	UpdatedAt          time.Time                `json:"updated_at"`
}

func (Subscription) TableName() string {
	return "subscription"
}

// Live reports whether the subscription counts against the one-per-user limit.
func (s *Subscription) Live() bool {
	return s != nil && (s.Status == types.SubscriptionStatusActive || s.Status == types.SubscriptionStatusTrial)
}

func (s *Subscription) TrialEnded(now time.Time) bool {
	return s != nil && s.Status == types.SubscriptionStatusTrial &&
		s.TrialEnd != nil && !s.TrialEnd.After(now)
}

// CancellationDue reports an ACTIVE subscription cancelled at period end whose
// period has elapsed.
func (s *Subscription) CancellationDue(now time.Time) bool {
	return s != nil && s.Status == types.SubscriptionStatusActive &&
		s.CancelAtPeriodEnd && !s.CurrentPeriodEnd.After(now)
}

func (s *Subscription) RenewalDue(now time.Time) bool {
	return s != nil && s.Status == types.SubscriptionStatusActive &&
		!s.CancelAtPeriodEnd && !s.CurrentPeriodEnd.After(now)
}

// Clone returns a deep copy, used for before/after change logs.
func (s *Subscription) Clone() *Subscription {
	if s == nil {
		return nil
	}
	c := *s
	c.TrialStart = cloneTime(s.TrialStart)
	c.TrialEnd = cloneTime(s.TrialEnd)
	c.CancelledAt = cloneTime(s.CancelledAt)
	return &c
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
