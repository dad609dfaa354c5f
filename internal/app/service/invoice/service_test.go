package invoice

import (
	"context"
	"testing"
	"time"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/platform/eventbus"
	"github.com/broxiva/subscriptions/internal/repository/memory"
	"github.com/broxiva/subscriptions/pkg/apperr"
	"github.com/broxiva/subscriptions/pkg/config"
	"github.com/broxiva/subscriptions/pkg/tool"
	"github.com/broxiva/subscriptions/pkg/types"
)

var now = time.Date(2025, time.April, 10, 8, 0, 0, 0, time.UTC)

type fixture struct {
	svc *Service
	st  *memory.Store
	rec *eventbus.Recorder
	bus *eventbus.Bus
}

func newFixture() *fixture {
	st := memory.New()
	rec := eventbus.NewRecorder()
	bus := eventbus.NewBus(rec, zap.NewNop().Sugar())
	svc := NewService(st, &config.Config{Billing: config.BillingConfig{Currency: "EUR"}}, bus, zap.NewNop().Sugar())
	svc.now = func() time.Time { return now }
	return &fixture{svc: svc, st: st, rec: rec, bus: bus}
}

func (f *fixture) subscription(t *testing.T, userID string) *models.Subscription {
	t.Helper()
	sub := &models.Subscription{
		ID:                 tool.GenerateUUIDV7(),
		UserID:             userID,
		PlanID:             tool.GenerateUUIDV7(),
		Status:             types.SubscriptionStatusExpired,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   now.AddDate(0, 1, 0),
	}
	require.NoError(t, f.st.Subscriptions().Create(context.Background(), sub))
	return sub
}

func TestCreateInvoice_Pending(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sub := f.subscription(t, "u1")

	inv, err := f.svc.CreateInvoice(ctx, f.st, sub.ID, decimal.NewFromInt(10), now, now.AddDate(0, 1, 0))
	require.NoError(t, err)
	require.Equal(t, types.InvoiceStatusPending, inv.Status)
	require.Equal(t, "EUR", inv.Currency)
	require.Equal(t, now, inv.AttemptedAt)
	require.Nil(t, inv.PaidAt)

	_, err = f.svc.CreateInvoice(ctx, f.st, sub.ID, decimal.NewFromInt(10), now, now.AddDate(0, 1, 0))
	require.ErrorIs(t, err, apperr.ErrConflict)

	_, err = f.svc.CreateInvoice(ctx, f.st, sub.ID, decimal.NewFromInt(10), now, now)
	require.ErrorIs(t, err, apperr.ErrBadRequest)
}

func TestMarkPaid_Idempotent(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	sub := f.subscription(t, "u1")
	inv, err := f.svc.CreateInvoice(ctx, f.st, sub.ID, decimal.NewFromInt(10), now, now.AddDate(0, 1, 0))
	require.NoError(t, err)

	paid, err := f.svc.MarkPaid(ctx, inv.ID, lo.ToPtr("pi_123"))
	require.NoError(t, err)
	require.Equal(t, types.InvoiceStatusPaid, paid.Status)
	require.Equal(t, now, *paid.PaidAt)
	require.Equal(t, "pi_123", *paid.ExternalRef)

	f.svc.now = func() time.Time { return now.Add(time.Hour) }
	again, err := f.svc.MarkPaid(ctx, inv.ID, lo.ToPtr("pi_other"))
	require.NoError(t, err)
	require.Equal(t, now, *again.PaidAt)
	require.Equal(t, "pi_123", *again.ExternalRef)

	f.bus.Wait()
	require.Equal(t, []string{eventbus.InvoicePaid}, f.rec.RoutingKeys())
}

func TestMarkPaid_NotFound(t *testing.T) {
	f := newFixture()
	_, err := f.svc.MarkPaid(context.Background(), tool.GenerateUUIDV7(), nil)
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = f.svc.MarkPaid(context.Background(), "inv-1", nil)
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestListInvoices_OwnershipAndOrder(t *testing.T) {
	f := newFixture()
	ctx := context.Background()
	mine := f.subscription(t, "u1")
	other := f.subscription(t, "u1")
	foreign := f.subscription(t, "u2")

	first, err := f.svc.CreateInvoice(ctx, f.st, mine.ID, decimal.NewFromInt(1), now, now.AddDate(0, 1, 0))
	require.NoError(t, err)
	second, err := f.svc.CreateInvoice(ctx, f.st, mine.ID, decimal.NewFromInt(1), now.AddDate(0, 1, 0), now.AddDate(0, 2, 0))
	require.NoError(t, err)
	_, err = f.svc.CreateInvoice(ctx, f.st, other.ID, decimal.NewFromInt(1), now, now.AddDate(0, 1, 0))
	require.NoError(t, err)
	_, err = f.svc.CreateInvoice(ctx, f.st, foreign.ID, decimal.NewFromInt(1), now, now.AddDate(0, 1, 0))
	require.NoError(t, err)

	all, err := f.svc.ListInvoices(ctx, "u1", nil)
	require.NoError(t, err)
	require.Len(t, all, 3)

	filtered, err := f.svc.ListInvoices(ctx, "u1", &mine.ID)
	require.NoError(t, err)
	require.Equal(t, []string{second.ID, first.ID}, lo.Map(filtered, func(i *models.SubscriptionInvoice, _ int) string { return i.ID }))

	none, err := f.svc.ListInvoices(ctx, "u2", &mine.ID)
	require.NoError(t, err)
	require.Empty(t, none)

	_, err = f.svc.ListInvoices(ctx, "u1", lo.ToPtr("bogus"))
	require.ErrorIs(t, err, apperr.ErrBadRequest)
}
