package payment

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/internal/app/service/invoice"
	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/platform/eventbus"
	"github.com/broxiva/subscriptions/internal/repository/memory"
	"github.com/broxiva/subscriptions/pkg/apperr"
	"github.com/broxiva/subscriptions/pkg/config"
	"github.com/broxiva/subscriptions/pkg/logctx"
	"github.com/broxiva/subscriptions/pkg/tool"
	"github.com/broxiva/subscriptions/pkg/types"
)

func setup(t *testing.T) (*Service, *memory.Store, *models.SubscriptionInvoice, *eventbus.Bus) {
	t.Helper()
	log := zap.NewNop().Sugar()
	ctx := context.Background()
	st := memory.New()
	bus := eventbus.NewBus(eventbus.NewRecorder(), log)
	invoices := invoice.NewService(st, &config.Config{Billing: config.BillingConfig{Currency: "USD"}}, bus, log)

	start := time.Date(2025, time.May, 1, 0, 0, 0, 0, time.UTC)
	sub := &models.Subscription{
		ID:                 tool.GenerateUUIDV7(),
		UserID:             "u1",
		PlanID:             tool.GenerateUUIDV7(),
		Status:             types.SubscriptionStatusActive,
		CurrentPeriodStart: start,
		CurrentPeriodEnd:   start.AddDate(0, 1, 0),
	}
	require.NoError(t, st.Subscriptions().Create(ctx, sub))
	inv, err := invoices.CreateInvoice(ctx, st, sub.ID, decimal.NewFromInt(25), sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
	require.NoError(t, err)

	return NewService(st, invoices, nil, log), st, inv, bus
}

func TestConfirm_MarksPaidAndLogs(t *testing.T) {
	svc, st, inv, bus := setup(t)
	ctx := logctx.WithTraceID(context.Background(), "trace-1")

	paid, err := svc.Confirm(ctx, &ConfirmRequest{
		InvoiceID:   inv.ID,
		ExternalRef: "pi_42",
		Payload:     json.RawMessage(`{"provider":"stripe"}`),
	})
	require.NoError(t, err)
	require.True(t, paid.Paid())
	require.Equal(t, "pi_42", *paid.ExternalRef)

	svc.Wait()
	bus.Wait()
	logs := st.PaymentConfirmationLogs()
	require.Len(t, logs, 2)
	statuses := []models.PaymentConfirmationLogStatus{logs[0].Status, logs[1].Status}
	require.ElementsMatch(t, []models.PaymentConfirmationLogStatus{
		models.PaymentConfirmationLogStatusReceived,
		models.PaymentConfirmationLogStatusHandled,
	}, statuses)
	for _, l := range logs {
		require.Equal(t, "trace-1", l.TraceID)
		require.JSONEq(t, `{"provider":"stripe"}`, string(l.Data))
	}
}

func TestConfirm_UnknownInvoiceLogsFailure(t *testing.T) {
	svc, st, _, _ := setup(t)

	_, err := svc.Confirm(context.Background(), &ConfirmRequest{InvoiceID: tool.GenerateUUIDV7(), ExternalRef: "pi_1"})
	require.ErrorIs(t, err, apperr.ErrNotFound)

	svc.Wait()
	logs := st.PaymentConfirmationLogs()
	require.Len(t, logs, 2)
	var failed *models.PaymentConfirmationLog
	for _, l := range logs {
		if l.Status == models.PaymentConfirmationLogStatusHandleFailed {
			failed = l
		}
	}
	require.NotNil(t, failed)
	require.NotNil(t, failed.Result)
	require.Contains(t, string(*failed.Result), "invoice not found")
	require.JSONEq(t, `{}`, string(failed.Data))
}

func TestConfirm_RequiresInvoiceID(t *testing.T) {
	svc, st, _, _ := setup(t)
	_, err := svc.Confirm(context.Background(), &ConfirmRequest{})
	require.ErrorIs(t, err, apperr.ErrBadRequest)
	svc.Wait()
	require.Empty(t, st.PaymentConfirmationLogs())
}

func TestConfirm_SecondConfirmationKeepsFirstReference(t *testing.T) {
	svc, _, inv, bus := setup(t)
	ctx := context.Background()

	_, err := svc.Confirm(ctx, &ConfirmRequest{InvoiceID: inv.ID, ExternalRef: "pi_first"})
	require.NoError(t, err)
	again, err := svc.Confirm(ctx, &ConfirmRequest{InvoiceID: inv.ID, ExternalRef: "pi_second"})
	require.NoError(t, err)
	require.Equal(t, "pi_first", *again.ExternalRef)
	svc.Wait()
	bus.Wait()
}
