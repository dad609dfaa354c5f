// Package payment handles confirmations sent by the payment side once an
// invoice is settled.
package payment

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/broxiva/subscriptions/internal/app/service/invoice"
	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/pkg/apperr"
	"github.com/broxiva/subscriptions/pkg/logctx"
	"github.com/broxiva/subscriptions/pkg/metrics"
)

type ConfirmRequest struct {
	InvoiceID   string `json:"invoice_id" binding:"required"`
	ExternalRef string `json:"external_ref" binding:"required"`
	// Payload is the raw provider payload, kept in the confirmation log.
	Payload json.RawMessage `json:"payload,omitempty" swaggertype:"object"`
}

type Service struct {
	invoices *invoice.Service
	logs     *confirmationLogger
	metrics  *metrics.Business
	log      *zap.SugaredLogger
}

func NewService(store repository.Store, invoices *invoice.Service, m *metrics.Business, log *zap.SugaredLogger) *Service {
	return &Service{
		invoices: invoices,
		logs:     &confirmationLogger{store: store, log: log},
		metrics:  m,
		log:      log,
	}
}

var Module = fx.Options(
	fx.Provide(NewService),
	fx.Invoke(registerWait),
)

// Confirm marks the invoice of req paid. The confirmation is logged as
// received before handling and as handled or handle_failed afterwards.
func (s *Service) Confirm(ctx context.Context, req *ConfirmRequest) (inv *models.SubscriptionInvoice, resErr error) {
	start := time.Now()
	if req == nil || req.InvoiceID == "" {
		return nil, apperr.BadRequest("invoice_id is required")
	}
	data := datatypes.JSON(req.Payload)
	if len(data) == 0 {
		data = datatypes.JSON("{}")
	}
	traceID := logctx.TraceID(ctx)

	s.logs.save(ctx, &models.PaymentConfirmationLog{
		InvoiceID:   req.InvoiceID,
		ExternalRef: req.ExternalRef,
		TraceID:     traceID,
		Data:        data,
		Status:      models.PaymentConfirmationLogStatusReceived,
	})

	defer func() {
		result := map[string]any{"invoice": inv}
		status := models.PaymentConfirmationLogStatusHandled
		if resErr != nil {
			result["error"] = resErr.Error()
			status = models.PaymentConfirmationLogStatusHandleFailed
		}
		resBytes, _ := json.Marshal(result)
		s.logs.save(ctx, &models.PaymentConfirmationLog{
			InvoiceID:   req.InvoiceID,
			ExternalRef: req.ExternalRef,
			TraceID:     traceID,
			Data:        data,
			Result:      func() *datatypes.JSON { j := datatypes.JSON(resBytes); return &j }(),
			Status:      status,
		})
		s.metrics.ObserveProcess("payment", string(status), start)
	}()

	var ref *string
	if req.ExternalRef != "" {
		ref = &req.ExternalRef
	}
	inv, resErr = s.invoices.MarkPaid(ctx, req.InvoiceID, ref)
	if resErr != nil {
		logctx.FromCtx(ctx, s.log).Errorw("failed to confirm payment", "invoice_id", req.InvoiceID, "err", resErr)
		return nil, fmt.Errorf("confirm payment: %w", resErr)
	}
	return inv, nil
}

// Wait blocks until pending confirmation logs are written.
func (s *Service) Wait() { s.logs.wg.Wait() }

func registerWait(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		s.Wait()
		return nil
	}})
}
