package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/pkg/tool"
	"github.com/broxiva/subscriptions/pkg/types"
)

var now = time.Date(2025, time.June, 1, 0, 0, 0, 0, time.UTC)

func newSub(userID string, status types.SubscriptionStatus, periodEnd time.Time) *models.Subscription {
	return &models.Subscription{
		ID:                 tool.GenerateUUIDV7(),
		UserID:             userID,
		PlanID:             "plan-1",
		Status:             status,
		CurrentPeriodStart: periodEnd.AddDate(0, -1, 0),
		CurrentPeriodEnd:   periodEnd,
	}
}

func TestSubscriptions_OneLivePerUser(t *testing.T) {
	ctx := context.Background()
	st := New()

	require.NoError(t, st.Subscriptions().Create(ctx, newSub("u1", types.SubscriptionStatusTrial, now)))
	err := st.Subscriptions().Create(ctx, newSub("u1", types.SubscriptionStatusActive, now))
	require.ErrorIs(t, err, repository.ErrDuplicate)

	require.NoError(t, st.Subscriptions().Create(ctx, newSub("u1", types.SubscriptionStatusExpired, now)))
	require.NoError(t, st.Subscriptions().Create(ctx, newSub("u2", types.SubscriptionStatusActive, now)))
}

func TestInTx_RollsBackOnError(t *testing.T) {
	ctx := context.Background()
	st := New()
	sub := newSub("u1", types.SubscriptionStatusActive, now)
	require.NoError(t, st.Subscriptions().Create(ctx, sub))

	boom := errors.New("boom")
	err := st.InTx(ctx, func(tx repository.Store) error {
		locked, err := tx.Subscriptions().GetForUpdate(ctx, sub.ID)
		require.NoError(t, err)
		locked.Status = types.SubscriptionStatusExpired
		require.NoError(t, tx.Subscriptions().Save(ctx, locked))
		require.NoError(t, tx.Logs().SaveSubscriptionLog(ctx, &models.SubscriptionLog{ID: "l1", SubscriptionID: sub.ID}))
		return tx.InTx(ctx, func(nested repository.Store) error { return boom })
	})
	require.ErrorIs(t, err, boom)

	got, err := st.Subscriptions().Get(ctx, sub.ID)
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusActive, got.Status)
	logs, err := st.Logs().ListSubscriptionLogs(ctx, sub.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1, "logs are not transactional")
}

func TestInTx_RollbackKeepsConcurrentWrites(t *testing.T) {
	ctx := context.Background()
	st := New()
	trial := newSub("u1", types.SubscriptionStatusTrial, now.AddDate(0, 0, 7))
	trialEnd := now.Add(-time.Hour)
	trial.TrialStart, trial.TrialEnd = &trialEnd, &trialEnd
	require.NoError(t, st.Subscriptions().Create(ctx, trial))
	touched := newSub("u2", types.SubscriptionStatusActive, now)
	require.NoError(t, st.Subscriptions().Create(ctx, touched))

	var (
		activated              []*models.Subscription
		activateErr, createErr error
	)
	boom := errors.New("boom")
	err := st.InTx(ctx, func(tx repository.Store) error {
		locked, err := tx.Subscriptions().GetForUpdate(ctx, touched.ID)
		require.NoError(t, err)
		locked.CancelAtPeriodEnd = true
		require.NoError(t, tx.Subscriptions().Save(ctx, locked))
		require.NoError(t, tx.Plans().Create(ctx, &models.SubscriptionPlan{ID: "plan-tx"}))

		// writes by other callers while the transaction is open
		done := make(chan struct{})
		go func() {
			defer close(done)
			activated, activateErr = st.Subscriptions().ActivateEndedTrials(ctx, now)
			createErr = st.Plans().Create(ctx, &models.SubscriptionPlan{ID: "plan-outside"})
		}()
		<-done
		return boom
	})
	require.ErrorIs(t, err, boom)
	require.NoError(t, activateErr)
	require.Len(t, activated, 1)
	require.NoError(t, createErr)

	got, err := st.Subscriptions().Get(ctx, trial.ID)
	require.NoError(t, err)
	require.Equal(t, types.SubscriptionStatusActive, got.Status)
	_, err = st.Plans().Get(ctx, "plan-outside")
	require.NoError(t, err)

	got, err = st.Subscriptions().Get(ctx, touched.ID)
	require.NoError(t, err)
	require.False(t, got.CancelAtPeriodEnd)
	_, err = st.Plans().Get(ctx, "plan-tx")
	require.ErrorIs(t, err, repository.ErrNotFound)
}

func TestInvoices_PeriodBilledOnce(t *testing.T) {
	ctx := context.Background()
	st := New()
	inv := &models.SubscriptionInvoice{ID: "i1", SubscriptionID: "s1", PeriodStart: now, Amount: decimal.NewFromInt(10)}
	require.NoError(t, st.Invoices().Create(ctx, inv))

	again := &models.SubscriptionInvoice{ID: "i2", SubscriptionID: "s1", PeriodStart: now}
	require.ErrorIs(t, st.Invoices().Create(ctx, again), repository.ErrDuplicate)
}

func TestListDueForRenewal_KeysetPaging(t *testing.T) {
	ctx := context.Background()
	st := New()
	for i := 0; i < 5; i++ {
		require.NoError(t, st.Subscriptions().Create(ctx, newSub(tool.GenerateUUIDV7(), types.SubscriptionStatusActive, now.Add(-time.Hour))))
	}
	notDue := newSub("later", types.SubscriptionStatusActive, now.Add(time.Hour))
	require.NoError(t, st.Subscriptions().Create(ctx, notDue))
	cancelled := newSub("cancelled", types.SubscriptionStatusActive, now.Add(-time.Hour))
	cancelled.CancelAtPeriodEnd = true
	require.NoError(t, st.Subscriptions().Create(ctx, cancelled))

	var seen []string
	after := ""
	for {
		page, err := st.Subscriptions().ListDueForRenewal(ctx, now, after, 2)
		require.NoError(t, err)
		if len(page) == 0 {
			break
		}
		for _, s := range page {
			seen = append(seen, s.ID)
		}
		after = page[len(page)-1].ID
	}
	require.Len(t, seen, 5)
	require.IsIncreasing(t, seen)
}

func TestScan_FiltersAndPages(t *testing.T) {
	ctx := context.Background()
	st := New()
	for _, status := range []types.SubscriptionStatus{
		types.SubscriptionStatusActive, types.SubscriptionStatusExpired, types.SubscriptionStatusActive,
	} {
		require.NoError(t, st.Subscriptions().Create(ctx, newSub(tool.GenerateUUIDV7(), status, now)))
	}

	subs, total, err := st.Subscriptions().Scan(ctx, repository.ScanQuery{
		Filters: types.CommonFilters{{Field: "status", Operator: types.CommonFilterOperatorEq, Values: []any{"ACTIVE"}}},
		Size:    1,
	})
	require.NoError(t, err)
	require.EqualValues(t, 2, total)
	require.Len(t, subs, 1)
	require.Equal(t, types.SubscriptionStatusActive, subs[0].Status)

	_, total, err = st.Subscriptions().Scan(ctx, repository.ScanQuery{
		Filters: types.CommonFilters{{Field: "current_period_end", Operator: types.CommonFilterOperatorLt, Values: []any{"2025-05-01"}}},
	})
	require.NoError(t, err)
	require.EqualValues(t, 0, total)
}

func TestStats_GroupsByCurrency(t *testing.T) {
	ctx := context.Background()
	st := New()
	paidAt := now
	for i, inv := range []*models.SubscriptionInvoice{
		{Currency: "USD", Amount: decimal.RequireFromString("9.99"), Status: types.InvoiceStatusPaid, PaidAt: &paidAt},
		{Currency: "USD", Amount: decimal.RequireFromString("10.01"), Status: types.InvoiceStatusPaid, PaidAt: &paidAt},
		{Currency: "EUR", Amount: decimal.RequireFromString("5"), Status: types.InvoiceStatusPending},
	} {
		inv.ID = tool.GenerateUUIDV7()
		inv.SubscriptionID = "s"
		inv.PeriodStart = now.AddDate(0, i, 0)
		require.NoError(t, st.Invoices().Create(ctx, inv))
	}

	paid, err := st.Stats().TotalPaidAmount(ctx, nil)
	require.NoError(t, err)
	require.Len(t, paid, 1)
	require.Equal(t, "USD", paid[0].Label)
	require.True(t, decimal.NewFromInt(20).Equal(paid[0].Value))

	counts, err := st.Stats().DailyInvoiceCount(ctx, types.CommonFilters{
		{Field: "currency", Operator: types.CommonFilterOperatorIn, Values: []any{"EUR"}},
	})
	require.NoError(t, err)
	require.Len(t, counts, 1)
	require.True(t, decimal.NewFromInt(1).Equal(counts[0].Value))
}

func TestSnapshotDaily_Idempotent(t *testing.T) {
	ctx := context.Background()
	st := New()
	require.NoError(t, st.Subscriptions().Create(ctx, newSub("u1", types.SubscriptionStatusActive, now)))
	require.NoError(t, st.Subscriptions().Create(ctx, newSub("u1", types.SubscriptionStatusExpired, now)))

	n, err := st.Subscriptions().SnapshotDaily(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	n, err = st.Subscriptions().SnapshotDaily(ctx, now)
	require.NoError(t, err)
	require.EqualValues(t, 0, n)
	require.Len(t, st.Snapshots("2025-06-01"), 1)
}
