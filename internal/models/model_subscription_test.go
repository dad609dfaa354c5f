package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/broxiva/subscriptions/pkg/types"
)

func TestSubscription_DuePredicates(t *testing.T) {
	now := time.Date(2025, time.March, 1, 12, 0, 0, 0, time.UTC)
	past := now.Add(-time.Minute)
	future := now.Add(time.Minute)

	trial := &Subscription{Status: types.SubscriptionStatusTrial, TrialEnd: &past, CurrentPeriodEnd: future}
	require.True(t, trial.TrialEnded(now))
	require.True(t, (&Subscription{Status: types.SubscriptionStatusTrial, TrialEnd: &now}).TrialEnded(now), "boundary is inclusive")
	require.False(t, (&Subscription{Status: types.SubscriptionStatusTrial, TrialEnd: &future}).TrialEnded(now))
	require.False(t, (&Subscription{Status: types.SubscriptionStatusTrial}).TrialEnded(now))

	cancelled := &Subscription{Status: types.SubscriptionStatusActive, CancelAtPeriodEnd: true, CurrentPeriodEnd: past}
	require.True(t, cancelled.CancellationDue(now))
	require.False(t, cancelled.RenewalDue(now))

	renewing := &Subscription{Status: types.SubscriptionStatusActive, CurrentPeriodEnd: now}
	require.True(t, renewing.RenewalDue(now))
	require.False(t, renewing.CancellationDue(now))

	notYet := &Subscription{Status: types.SubscriptionStatusActive, CurrentPeriodEnd: future}
	require.False(t, notYet.RenewalDue(now))

	pastDue := &Subscription{Status: types.SubscriptionStatusPastDue, CurrentPeriodEnd: past}
	require.False(t, pastDue.RenewalDue(now))

	var nilSub *Subscription
	require.False(t, nilSub.Live())
	require.False(t, nilSub.RenewalDue(now))
}

func TestSubscription_CloneIsDeep(t *testing.T) {
	at := time.Now()
	s := &Subscription{ID: "s1", CancelledAt: &at, TrialEnd: &at}
	c := s.Clone()
	*c.CancelledAt = at.Add(time.Hour)
	c.ID = "s2"

	require.Equal(t, at, *s.CancelledAt)
	require.Equal(t, "s1", s.ID)
	require.Nil(t, (*Subscription)(nil).Clone())
}

func TestSubscriptionPlan_TrialEndsAt(t *testing.T) {
	start := time.Date(2025, time.January, 30, 0, 0, 0, 0, time.UTC)
	require.Nil(t, (&SubscriptionPlan{}).TrialEndsAt(start))

	end := (&SubscriptionPlan{TrialDays: 14}).TrialEndsAt(start)
	require.NotNil(t, end)
	require.Equal(t, time.Date(2025, time.February, 13, 0, 0, 0, 0, time.UTC), *end)
}

func TestTableNames(t *testing.T) {
	require.Equal(t, "subscription_plan", SubscriptionPlan{}.TableName())
	require.Equal(t, "subscription_invoice", SubscriptionInvoice{}.TableName())
	require.Equal(t, "payment_confirmation_log", PaymentConfirmationLog{}.TableName())
	require.Equal(t, "2025-03-01", SnapshotDate(time.Date(2025, time.March, 1, 23, 0, 0, 0, time.UTC)))
}
