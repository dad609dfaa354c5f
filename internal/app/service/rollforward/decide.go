// Package rollforward moves subscriptions along with wall-clock time: ended
// trials become active, cancelled subscriptions expire at period end and due
// subscriptions renew with a fresh invoice.
package rollforward

import (
	"time"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/pkg/types"
)

type Action string

const (
	ActionNone          Action = "none"
	ActionActivateTrial Action = "trial_ended"
	ActionExpire        Action = "expired"
	ActionRenew         Action = "renewed"
)

// Decision is the transition due for a subscription. PeriodStart and
// PeriodEnd are set for ActionRenew only.
type Decision struct {
	Action      Action
	PeriodStart time.Time
	PeriodEnd   time.Time
}

// Decide returns the transition due for sub at now. Renewal needs the
// subscription's plan; without one (or with an unknown interval) nothing is due.
// A renewal advances exactly one period from the old period end, so a late run
// keeps the billing schedule aligned.
func Decide(now time.Time, sub *models.Subscription, plan *models.SubscriptionPlan) Decision {
	switch {
	case sub.TrialEnded(now):
		return Decision{Action: ActionActivateTrial}
	case sub.CancellationDue(now):
		return Decision{Action: ActionExpire}
	case sub.RenewalDue(now):
		if plan == nil || !plan.BillingInterval.Valid() {
			return Decision{Action: ActionNone}
		}
		return Decision{
			Action:      ActionRenew,
			PeriodStart: sub.CurrentPeriodEnd,
			PeriodEnd:   plan.BillingInterval.AddTo(sub.CurrentPeriodEnd),
		}
	}
	return Decision{Action: ActionNone}
}

// Apply mutates sub according to d. Trial activation leaves the period dates
// untouched.
func Apply(sub *models.Subscription, d Decision) {
	switch d.Action {
	case ActionActivateTrial:
		sub.Status = types.SubscriptionStatusActive
	case ActionExpire:
		sub.Status = types.SubscriptionStatusExpired
	case ActionRenew:
		sub.CurrentPeriodStart = d.PeriodStart
		sub.CurrentPeriodEnd = d.PeriodEnd
	}
}
