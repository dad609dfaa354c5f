package plan

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/datatypes"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/pkg/apperr"
	"github.com/broxiva/subscriptions/pkg/logctx"
	"github.com/broxiva/subscriptions/pkg/tool"
	"github.com/broxiva/subscriptions/pkg/types"
)

// CreatePlanRequest describes a new plan. IsActive defaults to true.
type CreatePlanRequest struct {
	Name            string                `json:"name"`
	Description     string                `json:"description"`
	Type            types.PlanType        `json:"type"`
	Price           decimal.Decimal       `json:"price"`
	BillingInterval types.BillingInterval `json:"billing_interval"`
	TrialDays       int                   `json:"trial_days"`
	Benefits        map[string]any        `json:"benefits"`
	MaxProducts     *int                  `json:"max_products"`
	MaxAds          *int                  `json:"max_ads"`
	CommissionRate  *decimal.Decimal      `json:"commission_rate"`
	PrioritySupport bool                  `json:"priority_support"`
	IsActive        *bool                 `json:"is_active"`
}

// UpdatePlanRequest merges only the non-nil fields into the plan. Limits can
// be reset to unlimited with ClearMaxProducts / ClearMaxAds.
type UpdatePlanRequest struct {
	Name             *string                `json:"name"`
	Description      *string                `json:"description"`
	Type             *types.PlanType        `json:"type"`
	Price            *decimal.Decimal       `json:"price"`
	BillingInterval  *types.BillingInterval `json:"billing_interval"`
	TrialDays        *int                   `json:"trial_days"`
	Benefits         map[string]any         `json:"benefits"`
	MaxProducts      *int                   `json:"max_products"`
	ClearMaxProducts bool                   `json:"clear_max_products"`
	MaxAds           *int                   `json:"max_ads"`
	ClearMaxAds      bool                   `json:"clear_max_ads"`
	CommissionRate   *decimal.Decimal       `json:"commission_rate"`
	PrioritySupport  *bool                  `json:"priority_support"`
	IsActive         *bool                  `json:"is_active"`
}

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

func (s *Service) CreatePlan(ctx context.Context, req *CreatePlanRequest) (*models.SubscriptionPlan, error) {
	if req == nil {
		return nil, apperr.BadRequest("empty plan")
	}
	plan := &models.SubscriptionPlan{
		ID:              tool.GenerateUUIDV7(),
		Name:            req.Name,
		Description:     req.Description,
		Type:            req.Type,
		Price:           req.Price,
		BillingInterval: req.BillingInterval,
		TrialDays:       req.TrialDays,
		Benefits:        datatypes.JSONMap(lo.Ternary(req.Benefits == nil, map[string]any{}, req.Benefits)),
		MaxProducts:     req.MaxProducts,
		MaxAds:          req.MaxAds,
		CommissionRate:  req.CommissionRate,
		PrioritySupport: req.PrioritySupport,
		IsActive:        lo.FromPtrOr(req.IsActive, true),
	}
	if err := validate(plan); err != nil {
		return nil, err
	}
	if err := s.store.Plans().Create(ctx, plan); err != nil {
		return nil, fmt.Errorf("failed to create plan: %w", err)
	}
	logctx.FromCtx(ctx, s.log).Infow("plan created", "plan_id", plan.ID, "type", plan.Type, "price", plan.Price)
	return plan, nil
}

func (s *Service) ListPlans(ctx context.Context, includeInactive bool) ([]*models.SubscriptionPlan, error) {
	return s.store.Plans().List(ctx, includeInactive)
}

// ListPlansByType returns the active plans of a tier, cheapest first.
func (s *Service) ListPlansByType(ctx context.Context, tier types.PlanTier) ([]*models.SubscriptionPlan, error) {
	planTypes := tier.Types()
	if planTypes == nil {
		return nil, apperr.BadRequest("unknown plan tier: %s", tier)
	}
	return s.store.Plans().ListActiveByTypes(ctx, planTypes)
}

func (s *Service) GetPlan(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	return Get(ctx, s.store, id)
}

// Get loads a plan through st, which may be transactional.
func Get(ctx context.Context, st repository.Store, id string) (*models.SubscriptionPlan, error) {
	if !tool.IsUUID(id) {
		return nil, apperr.NotFound("plan not found: %s", id)
	}
	plan, err := st.Plans().Get(ctx, id)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("plan not found: %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get plan: %w", err)
	}
	return plan, nil
}

func (s *Service) UpdatePlan(ctx context.Context, id string, req *UpdatePlanRequest) (*models.SubscriptionPlan, error) {
	if req == nil {
		return nil, apperr.BadRequest("empty plan update")
	}
	var plan *models.SubscriptionPlan
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		var err error
		if plan, err = Get(ctx, tx, id); err != nil {
			return err
		}
		merge(plan, req)
		if err := validate(plan); err != nil {
			return err
		}
		if err := tx.Plans().Save(ctx, plan); err != nil {
			return fmt.Errorf("failed to save plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	logctx.FromCtx(ctx, s.log).Infow("plan updated", "plan_id", plan.ID)
	return plan, nil
}

// DeletePlan refuses to delete a plan while ACTIVE subscriptions reference it.
func (s *Service) DeletePlan(ctx context.Context, id string) error {
	err := s.store.InTx(ctx, func(tx repository.Store) error {
		if _, err := Get(ctx, tx, id); err != nil {
			return err
		}
		n, err := tx.Subscriptions().CountByPlanAndStatus(ctx, id, types.SubscriptionStatusActive)
		if err != nil {
			return err
		}
		if n > 0 {
			return apperr.BadRequest("cannot delete plan with %d active subscriptions", n)
		}
		if err := tx.Plans().Delete(ctx, id); err != nil {
			return fmt.Errorf("failed to delete plan: %w", err)
		}
		return nil
	})
	if err != nil {
		return err
	}
	logctx.FromCtx(ctx, s.log).Infow("plan deleted", "plan_id", id)
	return nil
}

func merge(plan *models.SubscriptionPlan, req *UpdatePlanRequest) {
	if req.Name != nil {
		plan.Name = *req.Name
	}
	if req.Description != nil {
		plan.Description = *req.Description
	}
	if req.Type != nil {
		plan.Type = *req.Type
	}
	if req.Price != nil {
		plan.Price = *req.Price
	}
	if req.BillingInterval != nil {
		plan.BillingInterval = *req.BillingInterval
	}
	if req.TrialDays != nil {
		plan.TrialDays = *req.TrialDays
	}
	if req.Benefits != nil {
		plan.Benefits = datatypes.JSONMap(req.Benefits)
	}
	switch {
	case req.ClearMaxProducts:
		plan.MaxProducts = nil
	case req.MaxProducts != nil:
		plan.MaxProducts = req.MaxProducts
	}
	switch {
	case req.ClearMaxAds:
		plan.MaxAds = nil
	case req.MaxAds != nil:
		plan.MaxAds = req.MaxAds
	}
	if req.CommissionRate != nil {
		plan.CommissionRate = req.CommissionRate
	}
	if req.PrioritySupport != nil {
		plan.PrioritySupport = *req.PrioritySupport
	}
	if req.IsActive != nil {
		plan.IsActive = *req.IsActive
	}
}

func validate(plan *models.SubscriptionPlan) error {
	switch {
	case plan.Name == "":
		return apperr.BadRequest("plan name is required")
	case !plan.Type.Valid():
		return apperr.BadRequest("invalid plan type: %q", plan.Type)
	case !plan.BillingInterval.Valid():
		return apperr.BadRequest("invalid billing interval: %q", plan.BillingInterval)
	case plan.Price.IsNegative():
		return apperr.BadRequest("price must not be negative")
	case plan.TrialDays < 0:
		return apperr.BadRequest("trial days must not be negative")
	case plan.MaxProducts != nil && *plan.MaxProducts < 0:
		return apperr.BadRequest("max products must not be negative")
	case plan.MaxAds != nil && *plan.MaxAds < 0:
		return apperr.BadRequest("max ads must not be negative")
	case plan.CommissionRate != nil && plan.CommissionRate.IsNegative():
		return apperr.BadRequest("commission rate must not be negative")
	}
	return nil
}
