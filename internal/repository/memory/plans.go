package memory

import (
	"context"
	"slices"
	"sort"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/pkg/types"
)

type planRepo struct {
	st *state
	j  *journal
}

func (r planRepo) Create(_ context.Context, plan *models.SubscriptionPlan) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.plans[plan.ID]; ok {
		return repository.ErrDuplicate
	}
	r.j.plan(r.st, plan.ID)
	stamp(&plan.CreatedAt, &plan.UpdatedAt)
	r.st.plans[plan.ID] = clonePlan(plan)
	return nil
}

func (r planRepo) Get(_ context.Context, id string) (*models.SubscriptionPlan, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	p, ok := r.st.plans[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return clonePlan(p), nil
}

func (r planRepo) List(_ context.Context, includeInactive bool) ([]*models.SubscriptionPlan, error) {
	out := r.filter(func(p *models.SubscriptionPlan) bool { return includeInactive || p.IsActive })
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Type != out[j].Type {
			return out[i].Type < out[j].Type
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	return out, nil
}

func (r planRepo) ListActiveByTypes(_ context.Context, planTypes []types.PlanType) ([]*models.SubscriptionPlan, error) {
	out := r.filter(func(p *models.SubscriptionPlan) bool {
		return p.IsActive && slices.Contains(planTypes, p.Type)
	})
	sort.SliceStable(out, func(i, j int) bool { return out[i].Price.LessThan(out[j].Price) })
	return out, nil
}

func (r planRepo) Save(_ context.Context, plan *models.SubscriptionPlan) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.plans[plan.ID]; !ok {
		return repository.ErrNotFound
	}
	r.j.plan(r.st, plan.ID)
	stamp(&plan.CreatedAt, &plan.UpdatedAt)
	r.st.plans[plan.ID] = clonePlan(plan)
	return nil
}

func (r planRepo) Delete(_ context.Context, id string) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.plans[id]; !ok {
		return repository.ErrNotFound
	}
	r.j.plan(r.st, id)
	delete(r.st.plans, id)
	return nil
}

func (r planRepo) filter(keep func(*models.SubscriptionPlan) bool) []*models.SubscriptionPlan {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	out := make([]*models.SubscriptionPlan, 0, len(r.st.plans))
	for _, p := range r.st.plans {
		if keep(p) {
			out = append(out, clonePlan(p))
		}
	}
	// map iteration order is random; make ties deterministic
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
