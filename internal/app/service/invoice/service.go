package invoice

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/platform/eventbus"
	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/pkg/apperr"
	"github.com/broxiva/subscriptions/pkg/config"
	"github.com/broxiva/subscriptions/pkg/logctx"
	"github.com/broxiva/subscriptions/pkg/tool"
	"github.com/broxiva/subscriptions/pkg/types"
)

type Service struct {
	store    repository.Store
	bus      eventbus.Emitter
	log      *zap.SugaredLogger
	currency string
	now      func() time.Time
}

func NewService(store repository.Store, cfg *config.Config, bus eventbus.Emitter, log *zap.SugaredLogger) *Service {
	return &Service{store: store, bus: bus, log: log, currency: cfg.Billing.Currency, now: time.Now}
}

var Module = fx.Options(
	fx.Provide(NewService),
)

// CreateInvoice creates a pending invoice through st, which is usually the
// caller's transaction. The caller announces the invoice with Created once
// the transaction committed.
func (s *Service) CreateInvoice(ctx context.Context, st repository.Store, subscriptionID string, amount decimal.Decimal, periodStart, periodEnd time.Time) (*models.SubscriptionInvoice, error) {
	if amount.IsNegative() {
		return nil, apperr.BadRequest("invoice amount must not be negative")
	}
	if !periodEnd.After(periodStart) {
		return nil, apperr.BadRequest("invoice period end must be after its start")
	}
	inv := &models.SubscriptionInvoice{
		ID:             tool.GenerateUUIDV7(),
		SubscriptionID: subscriptionID,
		Amount:         amount,
		Currency:       s.currency,
		Status:         types.InvoiceStatusPending,
		PeriodStart:    periodStart,
		PeriodEnd:      periodEnd,
		AttemptedAt:    s.now(),
	}
	if err := st.Invoices().Create(ctx, inv); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperr.Conflict("period starting %s of subscription %s is already invoiced",
				periodStart.Format(time.RFC3339), subscriptionID)
		}
		return nil, fmt.Errorf("failed to create invoice: %w", err)
	}
	return inv, nil
}

// Created logs and publishes a committed invoice.
func (s *Service) Created(ctx context.Context, inv *models.SubscriptionInvoice) {
	if inv == nil {
		return
	}
	logctx.FromCtx(ctx, s.log).Infow("invoice created",
		"invoice_id", inv.ID, "subscription_id", inv.SubscriptionID, "amount", inv.Amount, "currency", inv.Currency)
	s.bus.Emit(ctx, eventbus.InvoiceCreated, inv)
}

// MarkPaid records a payment. Paying an already paid invoice returns it
// unchanged.
func (s *Service) MarkPaid(ctx context.Context, invoiceID string, externalRef *string) (*models.SubscriptionInvoice, error) {
	if !tool.IsUUID(invoiceID) {
		return nil, apperr.NotFound("invoice not found: %s", invoiceID)
	}
	var inv *models.SubscriptionInvoice
	var changed bool
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		inv, err = tx.Invoices().GetForUpdate(ctx, invoiceID)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("invoice not found: %s", invoiceID)
		}
		if err != nil {
			return fmt.Errorf("failed to get invoice: %w", err)
		}
		if inv.Paid() {
			return nil
		}
		paidAt := s.now()
		inv.Status = types.InvoiceStatusPaid
		inv.PaidAt = &paidAt
		inv.ExternalRef = externalRef
		if err := tx.Invoices().Save(ctx, inv); err != nil {
			return fmt.Errorf("failed to save invoice: %w", err)
		}
		changed = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	lg := logctx.FromCtx(ctx, s.log)
	if !changed {
		lg.Infow("invoice already paid", "invoice_id", inv.ID)
		return inv, nil
	}
	lg.Infow("invoice paid", "invoice_id", inv.ID, "subscription_id", inv.SubscriptionID)
	s.bus.Emit(ctx, eventbus.InvoicePaid, inv)
	return inv, nil
}

// ListInvoices returns the invoices of the user's subscriptions, newest first.
func (s *Service) ListInvoices(ctx context.Context, userID string, subscriptionID *string) ([]*models.SubscriptionInvoice, error) {
	if subscriptionID != nil && !tool.IsUUID(*subscriptionID) {
		return nil, apperr.BadRequest("invalid subscription id: %s", *subscriptionID)
	}
	invoices, err := s.store.Invoices().ListByUser(ctx, userID, subscriptionID)
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}
