package changelog

import (
	"context"
	"sync"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/pkg/logctx"
	"github.com/broxiva/subscriptions/pkg/tool"
	"github.com/broxiva/subscriptions/pkg/types"
)

// Service writes subscription change logs in the background. A failed write
// is logged and otherwise ignored.
type Service struct {
	store repository.Store
	log   *zap.SugaredLogger
	wg    sync.WaitGroup
}

func New(store repository.Store, log *zap.SugaredLogger) *Service {
	return &Service{store: store, log: log}
}

// Record saves the before/after pair of a subscription change. before is nil
// for a new subscription.
func (s *Service) Record(ctx context.Context, reason types.SubscriptionChangeReason, before, after *models.Subscription, extra map[string]any) {
	ref := after
	if ref == nil {
		ref = before
	}
	if ref == nil {
		return
	}
	if extra == nil {
		extra = map[string]any{}
	}
	if tid := logctx.TraceID(ctx); tid != "" {
		extra["trace_id"] = tid
	}
	entry := &models.SubscriptionLog{
		ID:             tool.GenerateUUIDV7(),
		SubscriptionID: ref.ID,
		UserID:         ref.UserID,
		Reason:         reason,
		Before:         datatypes.NewJSONType(before.Clone()),
		After:          datatypes.NewJSONType(after.Clone()),
		Extra:          datatypes.JSONMap(extra),
	}

	ctx = logctx.Detach(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		if err := s.store.Logs().SaveSubscriptionLog(ctx, entry); err != nil {
			logctx.FromCtx(ctx, s.log).Errorw("failed to save subscription log",
				"subscription_id", entry.SubscriptionID, "reason", reason, "err", err)
		}
	}()
}

func (s *Service) List(ctx context.Context, subscriptionID string) ([]*models.SubscriptionLog, error) {
	return s.store.Logs().ListSubscriptionLogs(ctx, subscriptionID)
}

// Wait blocks until pending writes finished.
func (s *Service) Wait() { s.wg.Wait() }

func registerWait(lc fx.Lifecycle, s *Service) {
	lc.Append(fx.Hook{OnStop: func(context.Context) error {
		s.Wait()
		return nil
	}})
}

var Module = fx.Options(
	fx.Provide(New),
	fx.Invoke(registerWait),
)
