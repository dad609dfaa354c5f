package rollforward

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/internal/app/service/changelog"
	"github.com/broxiva/subscriptions/internal/app/service/invoice"
	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/platform/eventbus"
	"github.com/broxiva/subscriptions/internal/repository/memory"
	"github.com/broxiva/subscriptions/pkg/config"
	"github.com/broxiva/subscriptions/pkg/metrics"
	"github.com/broxiva/subscriptions/pkg/tool"
	"github.com/broxiva/subscriptions/pkg/types"
)

var now = time.Date(2025, time.March, 31, 10, 0, 0, 0, time.UTC)

type fixture struct {
	job  *Job
	st   *memory.Store
	rec  *eventbus.Recorder
	bus  *eventbus.Bus
	cl   *changelog.Service
	reg  *prometheus.Registry
	plan *models.SubscriptionPlan
}

func newFixture(t *testing.T, batchSize int) *fixture {
	t.Helper()
	log := zap.NewNop().Sugar()
	cfg := &config.Config{
		Billing:     config.BillingConfig{Currency: "USD"},
		Rollforward: config.RollforwardConfig{BatchSize: batchSize},
	}
	st := memory.New()
	rec := eventbus.NewRecorder()
	bus := eventbus.NewBus(rec, log)
	cl := changelog.New(st, log)
	reg := prometheus.NewRegistry()
	m, err := metrics.NewBusiness(reg)
	require.NoError(t, err)

	job := NewJob(st, cfg, invoice.NewService(st, cfg, bus, log), cl, bus, m, log)
	job.now = func() time.Time { return now }

	plan := &models.SubscriptionPlan{
		ID:              tool.GenerateUUIDV7(),
		Name:            "Vendor Starter",
		Type:            types.PlanTypeVendorStarter,
		Price:           decimal.NewFromInt(10),
		BillingInterval: types.BillingIntervalMonthly,
		IsActive:        true,
	}
	require.NoError(t, st.Plans().Create(context.Background(), plan))
	return &fixture{job: job, st: st, rec: rec, bus: bus, cl: cl, reg: reg, plan: plan}
}

func (f *fixture) add(t *testing.T, sub *models.Subscription) *models.Subscription {
	t.Helper()
	sub.ID = tool.GenerateUUIDV7()
	if sub.UserID == "" {
		sub.UserID = "user-" + sub.ID
	}
	if sub.PlanID == "" {
		sub.PlanID = f.plan.ID
	}
	require.NoError(t, f.st.Subscriptions().Create(context.Background(), sub))
	return sub
}

func (f *fixture) get(t *testing.T, id string) *models.Subscription {
	t.Helper()
	sub, err := f.st.Subscriptions().Get(context.Background(), id)
	require.NoError(t, err)
	return sub
}

func (f *fixture) invoices(t *testing.T, userID string) []*models.SubscriptionInvoice {
	t.Helper()
	invs, err := f.st.Invoices().ListByUser(context.Background(), userID, nil)
	require.NoError(t, err)
	return invs
}

func (f *fixture) settle() {
	f.cl.Wait()
	f.bus.Wait()
}

func TestRun_Sweeps(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()

	trialStart := now.AddDate(0, 0, -14)
	trialEnd := now.Add(-time.Hour)
	trial := f.add(t, &models.Subscription{
		Status:             types.SubscriptionStatusTrial,
		CurrentPeriodStart: trialStart,
		CurrentPeriodEnd:   trialStart.AddDate(0, 1, 0),
		TrialStart:         lo.ToPtr(trialStart),
		TrialEnd:           lo.ToPtr(trialEnd),
	})
	cancelled := f.add(t, &models.Subscription{
		Status:             types.SubscriptionStatusActive,
		CurrentPeriodStart: now.AddDate(0, -1, 0),
		CurrentPeriodEnd:   now.Add(-time.Hour),
		CancelAtPeriodEnd:  true,
		CancelledAt:        lo.ToPtr(now.AddDate(0, 0, -3)),
	})
	oldEnd := now.AddDate(0, 0, -1)
	due := f.add(t, &models.Subscription{
		Status:             types.SubscriptionStatusActive,
		CurrentPeriodStart: oldEnd.AddDate(0, -1, 0),
		CurrentPeriodEnd:   oldEnd,
	})
	running := f.add(t, &models.Subscription{
		Status:             types.SubscriptionStatusActive,
		CurrentPeriodStart: now.AddDate(0, 0, -2),
		CurrentPeriodEnd:   now.AddDate(0, 1, -2),
	})

	res, err := f.job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.TrialsActivated)
	require.Equal(t, 1, res.Expired)
	require.Equal(t, 1, res.Renewed)
	require.Zero(t, res.Failed)

	got := f.get(t, trial.ID)
	require.Equal(t, types.SubscriptionStatusActive, got.Status)
	require.Equal(t, trial.CurrentPeriodStart, got.CurrentPeriodStart)
	require.Equal(t, trial.CurrentPeriodEnd, got.CurrentPeriodEnd)
	require.Empty(t, f.invoices(t, trial.UserID))

	require.Equal(t, types.SubscriptionStatusExpired, f.get(t, cancelled.ID).Status)
	require.Empty(t, f.invoices(t, cancelled.UserID))

	got = f.get(t, due.ID)
	require.Equal(t, types.SubscriptionStatusActive, got.Status)
	require.Equal(t, oldEnd, got.CurrentPeriodStart)
	require.Equal(t, oldEnd.AddDate(0, 1, 0), got.CurrentPeriodEnd)
	invs := f.invoices(t, due.UserID)
	require.Len(t, invs, 1)
	require.True(t, invs[0].Amount.Equal(decimal.NewFromInt(10)))
	require.Equal(t, types.InvoiceStatusPending, invs[0].Status)
	require.Equal(t, got.CurrentPeriodStart, invs[0].PeriodStart)
	require.Equal(t, got.CurrentPeriodEnd, invs[0].PeriodEnd)

	require.Equal(t, running.CurrentPeriodEnd, f.get(t, running.ID).CurrentPeriodEnd)

	f.settle()
	require.ElementsMatch(t, []string{
		eventbus.SubscriptionTrialEnded,
		eventbus.SubscriptionExpired,
		eventbus.SubscriptionRenewed,
		eventbus.InvoiceCreated,
	}, f.rec.RoutingKeys())

	logs, err := f.cl.List(ctx, trial.ID)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	require.Equal(t, types.SubscriptionStatusTrial, logs[0].Before.Data().Status)
	require.Equal(t, types.SubscriptionStatusActive, logs[0].After.Data().Status)

	expected := `
# HELP subscriptions_rollforward_subscriptions_total Subscriptions touched by the roll-forward job, by transition and outcome.
# TYPE subscriptions_rollforward_subscriptions_total counter
subscriptions_rollforward_subscriptions_total{outcome="ok",transition="expired"} 1
subscriptions_rollforward_subscriptions_total{outcome="ok",transition="renewed"} 1
subscriptions_rollforward_subscriptions_total{outcome="ok",transition="trial_ended"} 1
`
	require.NoError(t, testutil.GatherAndCompare(f.reg, strings.NewReader(expected), "subscriptions_rollforward_subscriptions_total"))
}

func TestRun_SecondRunIsNoop(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	due := f.add(t, &models.Subscription{
		Status:             types.SubscriptionStatusActive,
		CurrentPeriodStart: now.AddDate(0, -1, -1),
		CurrentPeriodEnd:   now.AddDate(0, 0, -1),
	})

	_, err := f.job.Run(ctx)
	require.NoError(t, err)
	afterFirst := f.get(t, due.ID)

	res, err := f.job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, &Result{StartedAt: now}, res)
	require.Equal(t, afterFirst.CurrentPeriodEnd, f.get(t, due.ID).CurrentPeriodEnd)
	require.Len(t, f.invoices(t, due.UserID), 1)
	f.settle()
}

func TestRun_LateRunAdvancesOnePeriod(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	jan31 := time.Date(2025, time.January, 31, 10, 0, 0, 0, time.UTC)
	due := f.add(t, &models.Subscription{
		Status:             types.SubscriptionStatusActive,
		CurrentPeriodStart: time.Date(2024, time.December, 31, 10, 0, 0, 0, time.UTC),
		CurrentPeriodEnd:   jan31,
	})

	_, err := f.job.Run(ctx)
	require.NoError(t, err)
	got := f.get(t, due.ID)
	require.Equal(t, jan31, got.CurrentPeriodStart)
	require.Equal(t, time.Date(2025, time.February, 28, 10, 0, 0, 0, time.UTC), got.CurrentPeriodEnd)

	_, err = f.job.Run(ctx)
	require.NoError(t, err)
	got = f.get(t, due.ID)
	require.Equal(t, time.Date(2025, time.March, 28, 10, 0, 0, 0, time.UTC), got.CurrentPeriodEnd)
	require.Len(t, f.invoices(t, due.UserID), 2)
	f.settle()
}

func TestRun_BatchesAndFailures(t *testing.T) {
	f := newFixture(t, 2)
	ctx := context.Background()

	var due []*models.Subscription
	for range 5 {
		due = append(due, f.add(t, &models.Subscription{
			Status:             types.SubscriptionStatusActive,
			CurrentPeriodStart: now.AddDate(0, -1, -1),
			CurrentPeriodEnd:   now.AddDate(0, 0, -1),
		}))
	}
	orphan := f.add(t, &models.Subscription{
		PlanID:             tool.GenerateUUIDV7(),
		Status:             types.SubscriptionStatusActive,
		CurrentPeriodStart: now.AddDate(0, -1, -1),
		CurrentPeriodEnd:   now.AddDate(0, 0, -1),
	})

	res, err := f.job.Run(ctx)
	require.Error(t, err)
	require.ErrorContains(t, err, orphan.ID)
	require.Equal(t, 5, res.Renewed)
	require.Equal(t, 1, res.Failed)
	for _, sub := range due {
		require.Equal(t, now.AddDate(0, 0, -1), f.get(t, sub.ID).CurrentPeriodStart)
	}
	require.Equal(t, orphan.CurrentPeriodEnd, f.get(t, orphan.ID).CurrentPeriodEnd)
	f.settle()
}

func TestRun_InvoiceConflictRollsBackRenewal(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	oldEnd := now.AddDate(0, 0, -1)
	due := f.add(t, &models.Subscription{
		Status:             types.SubscriptionStatusActive,
		CurrentPeriodStart: oldEnd.AddDate(0, -1, 0),
		CurrentPeriodEnd:   oldEnd,
	})
	require.NoError(t, f.st.Invoices().Create(ctx, &models.SubscriptionInvoice{
		ID:             tool.GenerateUUIDV7(),
		SubscriptionID: due.ID,
		Amount:         decimal.NewFromInt(10),
		Currency:       "USD",
		Status:         types.InvoiceStatusPending,
		PeriodStart:    oldEnd,
		PeriodEnd:      oldEnd.AddDate(0, 1, 0),
		AttemptedAt:    now,
	}))

	res, err := f.job.Run(ctx)
	require.Error(t, err)
	require.Equal(t, 1, res.Failed)
	require.Equal(t, oldEnd, f.get(t, due.ID).CurrentPeriodEnd)
	require.Len(t, f.invoices(t, due.UserID), 1)
	f.settle()
}

func TestRun_FreePlanRenewsWithoutInvoice(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	free := &models.SubscriptionPlan{
		ID:              tool.GenerateUUIDV7(),
		Name:            "Customer Premium Free",
		Type:            types.PlanTypeCustomerPremium,
		Price:           decimal.Zero,
		BillingInterval: types.BillingIntervalYearly,
		IsActive:        true,
	}
	require.NoError(t, f.st.Plans().Create(ctx, free))
	due := f.add(t, &models.Subscription{
		PlanID:             free.ID,
		Status:             types.SubscriptionStatusActive,
		CurrentPeriodStart: now.AddDate(-1, 0, -1),
		CurrentPeriodEnd:   now.AddDate(0, 0, -1),
	})

	res, err := f.job.Run(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, res.Renewed)
	require.Equal(t, now.AddDate(1, 0, -1), f.get(t, due.ID).CurrentPeriodEnd)
	require.Empty(t, f.invoices(t, due.UserID))
	f.settle()
}

func TestSnapshot(t *testing.T) {
	f := newFixture(t, 100)
	ctx := context.Background()
	f.add(t, &models.Subscription{
		Status:             types.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
	})

	n, err := f.job.Snapshot(ctx)
	require.NoError(t, err)
	require.EqualValues(t, 1, n)
	n, err = f.job.Snapshot(ctx)
	require.NoError(t, err)
	require.Zero(t, n)
	require.Len(t, f.st.Snapshots(models.SnapshotDate(now)), 1)
}
