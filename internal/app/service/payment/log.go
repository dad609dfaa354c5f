package payment

import (
	"context"
	"sync"

	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/pkg/logctx"
	"github.com/broxiva/subscriptions/pkg/tool"
)

type confirmationLogger struct {
	store repository.Store
	log   *zap.SugaredLogger
	wg    sync.WaitGroup
}

// save asynchronously persists a confirmation log. Nil input is ignored.
func (l *confirmationLogger) save(ctx context.Context, entry *models.PaymentConfirmationLog) {
	if entry == nil {
		return
	}
	if entry.ID == "" {
		entry.ID = tool.GenerateUUIDV7()
	}
	ctx = logctx.Detach(ctx)
	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		if err := l.store.Logs().SavePaymentConfirmationLog(ctx, entry); err != nil {
			logctx.FromCtx(ctx, l.log).Errorf("failed to save payment confirmation log: %v", err)
		}
	}()
}
