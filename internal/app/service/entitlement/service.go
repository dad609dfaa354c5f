// Package entitlement answers what a user may do under their current plan.
package entitlement

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/pkg/apperr"
	"github.com/broxiva/subscriptions/pkg/logctx"
	"github.com/broxiva/subscriptions/pkg/types"
)

type Service struct {
	store repository.Store
	log   *zap.SugaredLogger
}

func NewService(store repository.Store, log *zap.SugaredLogger) *Service {
	return &Service{store: store, log: log}
}

var Module = fx.Options(
	fx.Provide(NewService),
)

type Limits struct {
	MaxProducts     *int    `json:"maxProducts"`
	MaxAds          *int    `json:"maxAds"`
	CommissionRate  *string `json:"commissionRate"`
	PrioritySupport bool    `json:"prioritySupport"`
}

// Benefits is the benefit summary of a user. Only HasSubscription is set when
// the user has no current subscription.
type Benefits struct {
	HasSubscription   bool                     `json:"hasSubscription"`
	PlanName          string                   `json:"planName,omitempty"`
	PlanType          types.PlanType           `json:"planType,omitempty"`
	Status            types.SubscriptionStatus `json:"status,omitempty"`
	Benefits          map[string]any           `json:"benefits,omitempty"`
	Limits            *Limits                  `json:"limits,omitempty"`
	CurrentPeriodEnd  *time.Time               `json:"currentPeriodEnd,omitempty"`
	CancelAtPeriodEnd bool                     `json:"cancelAtPeriodEnd"`
}

type ActionResult struct {
	Action  types.Action `json:"action"`
	Allowed bool         `json:"allowed"`
	// Limit is nil when the plan does not cap the action.
	Limit *int   `json:"limit"`
	Used  *int64 `json:"used,omitempty"`
}

// current returns the user's current subscription and plan, or nil, nil.
func (s *Service) current(ctx context.Context, userID string) (*models.Subscription, *models.SubscriptionPlan, error) {
	sub, err := s.store.Subscriptions().FindLatest(ctx, userID, types.CurrentSubscriptionStatuses)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get current subscription: %w", err)
	}
	plan, err := s.store.Plans().Get(ctx, sub.PlanID)
	if errors.Is(err, repository.ErrNotFound) {
		logctx.FromCtx(ctx, s.log).Warnw("subscription references a missing plan",
			"subscription_id", sub.ID, "plan_id", sub.PlanID)
		return nil, nil, nil
	}
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return sub, plan, nil
}

// HasBenefit reports whether the user's plan grants key. Only a boolean true
// counts as granted.
func (s *Service) HasBenefit(ctx context.Context, userID, key string) (bool, error) {
	_, plan, err := s.current(ctx, userID)
	if err != nil || plan == nil {
		return false, err
	}
	granted, ok := plan.Benefits[key].(bool)
	return ok && granted, nil
}

func (s *Service) GetUserBenefits(ctx context.Context, userID string) (*Benefits, error) {
	sub, plan, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		return &Benefits{}, nil
	}
	limits := &Limits{
		MaxProducts:     plan.MaxProducts,
		MaxAds:          plan.MaxAds,
		PrioritySupport: plan.PrioritySupport,
	}
	if plan.CommissionRate != nil {
		rate := plan.CommissionRate.String()
		limits.CommissionRate = &rate
	}
	benefits := map[string]any(plan.Benefits)
	if benefits == nil {
		benefits = map[string]any{}
	}
	periodEnd := sub.CurrentPeriodEnd
	return &Benefits{
		HasSubscription:   true,
		PlanName:          plan.Name,
		PlanType:          plan.Type,
		Status:            sub.Status,
		Benefits:          benefits,
		Limits:            limits,
		CurrentPeriodEnd:  &periodEnd,
		CancelAtPeriodEnd: sub.CancelAtPeriodEnd,
	}, nil
}

// CanPerformAction checks action against the plan limits. Without a
// subscription products may be created and ads may not.
func (s *Service) CanPerformAction(ctx context.Context, userID string, action types.Action) (*ActionResult, error) {
	if action != types.ActionCreateProduct && action != types.ActionCreateAd {
		return nil, apperr.BadRequest("unknown action: %q", action)
	}
	res := &ActionResult{Action: action}

	_, plan, err := s.current(ctx, userID)
	if err != nil {
		return nil, err
	}
	if plan == nil {
		res.Allowed = action == types.ActionCreateProduct
		return res, nil
	}

	limit, count := plan.MaxProducts, s.store.Usage().CountProducts
	if action == types.ActionCreateAd {
		limit, count = plan.MaxAds, s.store.Usage().CountActiveAds
	}
	res.Limit = limit
	if limit == nil {
		res.Allowed = true
		return res, nil
	}
	used, err := count(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count usage for %s: %w", action, err)
	}
	res.Used = &used
	res.Allowed = used < int64(*limit)
	return res, nil
}
