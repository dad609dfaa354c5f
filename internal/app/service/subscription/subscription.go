package subscription

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/internal/app/service/changelog"
	"github.com/broxiva/subscriptions/internal/app/service/invoice"
	"github.com/broxiva/subscriptions/internal/app/service/plan"
	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/platform/eventbus"
	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/pkg/apperr"
	"github.com/broxiva/subscriptions/pkg/logctx"
	"github.com/broxiva/subscriptions/pkg/tool"
	"github.com/broxiva/subscriptions/pkg/types"
)

// Service is the subscription lifecycle manager. Every mutation runs in one
// transaction holding the subscription row lock; change logs and events are
// emitted after commit.
type Service struct {
	store     repository.Store
	invoices  *invoice.Service
	changelog *changelog.Service
	bus       eventbus.Emitter
	log       *zap.SugaredLogger
	now       func() time.Time
}

func NewService(store repository.Store, invoices *invoice.Service, cl *changelog.Service, bus eventbus.Emitter, log *zap.SugaredLogger) *Service {
	return &Service{store: store, invoices: invoices, changelog: cl, bus: bus, log: log, now: time.Now}
}

var Module = fx.Options(
	fx.Provide(NewService),
)

type SubscribeResult struct {
	Subscription *models.Subscription        `json:"subscription"`
	Invoice      *models.SubscriptionInvoice `json:"invoice,omitempty"`
}

// NewSubscription builds the subscription a user gets when subscribing to p
// at now. Plans with a trial start in TRIAL; the period is extended to the
// trial end when the trial outlasts one billing interval.
func NewSubscription(userID string, p *models.SubscriptionPlan, now time.Time) *models.Subscription {
	sub := &models.Subscription{
		ID:                 tool.GenerateUUIDV7(),
		UserID:             userID,
		PlanID:             p.ID,
		Status:             types.SubscriptionStatusActive,
		CurrentPeriodStart: now,
		CurrentPeriodEnd:   p.BillingInterval.AddTo(now),
	}
	if trialEnd := p.TrialEndsAt(now); trialEnd != nil {
		start := now
		sub.Status = types.SubscriptionStatusTrial
		sub.TrialStart = &start
		sub.TrialEnd = trialEnd
		if trialEnd.After(sub.CurrentPeriodEnd) {
			sub.CurrentPeriodEnd = *trialEnd
		}
	}
	return sub
}

// Subscribe starts a subscription of userID on planID. A paid plan without
// trial is invoiced for the first period right away.
func (s *Service) Subscribe(ctx context.Context, userID, planID string) (*SubscribeResult, error) {
	if userID == "" {
		return nil, apperr.BadRequest("user id is required")
	}
	now := s.now()
	res := &SubscribeResult{}
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		existing, err := tx.Subscriptions().FindLatest(ctx, userID, types.LiveSubscriptionStatuses)
		if err == nil {
			return s.conflict(ctx, tx, existing)
		}
		if !errors.Is(err, repository.ErrNotFound) {
			return fmt.Errorf("failed to check existing subscription: %w", err)
		}

		p, err := plan.Get(ctx, tx, planID)
		if err != nil {
			return err
		}
		if !p.IsActive {
			return apperr.BadRequest("plan %s is not active", p.Name)
		}

		sub := NewSubscription(userID, p, now)
		if err := tx.Subscriptions().Create(ctx, sub); err != nil {
			if errors.Is(err, repository.ErrDuplicate) {
				return apperr.Conflict("user already has an active subscription")
			}
			return fmt.Errorf("failed to create subscription: %w", err)
		}
		res.Subscription = sub

		if sub.Status == types.SubscriptionStatusActive && p.Price.IsPositive() {
			inv, err := s.invoices.CreateInvoice(ctx, tx, sub.ID, p.Price, sub.CurrentPeriodStart, sub.CurrentPeriodEnd)
			if err != nil {
				return err
			}
			res.Invoice = inv
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("subscription created",
		"subscription_id", res.Subscription.ID, "plan_id", planID, "status", res.Subscription.Status)
	s.changelog.Record(ctx, types.SubscriptionChangeReasonSubscribe, nil, res.Subscription, map[string]any{"source": "api"})
	s.bus.Emit(ctx, eventbus.SubscriptionCreated, res.Subscription)
	s.invoices.Created(ctx, res.Invoice)
	return res, nil
}

func (s *Service) conflict(ctx context.Context, tx repository.Store, existing *models.Subscription) error {
	name := existing.PlanID
	if p, err := tx.Plans().Get(ctx, existing.PlanID); err == nil {
		name = p.Name
	}
	return apperr.Conflict("user already has an %s subscription to plan %s", existing.Status, name)
}

// Cancel schedules the subscription to end with its current period. The
// status itself only changes when the roll-forward job runs.
func (s *Service) Cancel(ctx context.Context, userID, id string) (*models.Subscription, error) {
	return s.mutate(ctx, userID, id, types.SubscriptionChangeReasonCancel, eventbus.SubscriptionCancelled,
		func(_ repository.Store, sub *models.Subscription) error {
			if sub.Status == types.SubscriptionStatusCancelled {
				return apperr.BadRequest("subscription is already cancelled")
			}
			if sub.Status.Terminal() {
				return apperr.BadRequest("subscription has already ended")
			}
			cancelledAt := s.now()
			sub.CancelAtPeriodEnd = true
			sub.CancelledAt = &cancelledAt
			return nil
		})
}

func (s *Service) Reactivate(ctx context.Context, userID, id string) (*models.Subscription, error) {
	return s.mutate(ctx, userID, id, types.SubscriptionChangeReasonReactivate, eventbus.SubscriptionReactivated,
		func(_ repository.Store, sub *models.Subscription) error {
			if !sub.CancelAtPeriodEnd {
				return apperr.BadRequest("subscription is not cancelled")
			}
			if sub.Status.Terminal() {
				return apperr.BadRequest("subscription has already ended")
			}
			sub.CancelAtPeriodEnd = false
			sub.CancelledAt = nil
			return nil
		})
}

// ChangePlan moves the subscription to newPlanID in place. The current period
// and its invoice are kept as they are.
func (s *Service) ChangePlan(ctx context.Context, userID, id, newPlanID string) (*models.Subscription, error) {
	return s.mutate(ctx, userID, id, types.SubscriptionChangeReasonChangePlan, eventbus.SubscriptionPlanChanged,
		func(tx repository.Store, sub *models.Subscription) error {
			if sub.Status.Terminal() {
				return apperr.BadRequest("subscription has already ended")
			}
			p, err := plan.Get(ctx, tx, newPlanID)
			if err != nil {
				return err
			}
			if !p.IsActive {
				return apperr.BadRequest("plan %s is not active", p.Name)
			}
			sub.PlanID = p.ID
			return nil
		})
}

func (s *Service) mutate(ctx context.Context, userID, id string, reason types.SubscriptionChangeReason, routingKey string,
	apply func(tx repository.Store, sub *models.Subscription) error,
) (*models.Subscription, error) {
	if !tool.IsUUID(id) {
		return nil, apperr.NotFound("subscription not found: %s", id)
	}
	var before, after *models.Subscription
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		sub, err := tx.Subscriptions().GetForUpdate(ctx, id)
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound("subscription not found: %s", id)
		}
		if err != nil {
			return fmt.Errorf("failed to get subscription: %w", err)
		}
		if sub.UserID != userID {
			return apperr.BadRequest("subscription %s does not belong to the user", id)
		}
		before = sub.Clone()
		if err := apply(tx, sub); err != nil {
			return err
		}
		if err := tx.Subscriptions().Save(ctx, sub); err != nil {
			return fmt.Errorf("failed to save subscription: %w", err)
		}
		after = sub
		return nil
	})
	if err != nil {
		return nil, err
	}

	logctx.FromCtx(ctx, s.log).Infow("subscription changed", "subscription_id", id, "reason", reason)
	s.changelog.Record(ctx, reason, before, after, map[string]any{"source": "api"})
	s.bus.Emit(ctx, routingKey, after)
	return after, nil
}
