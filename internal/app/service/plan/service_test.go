package plan

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/repository/memory"
	"github.com/broxiva/subscriptions/pkg/apperr"
	"github.com/broxiva/subscriptions/pkg/tool"
	"github.com/broxiva/subscriptions/pkg/types"
)

func newTestService() (*Service, *memory.Store) {
	st := memory.New()
	return NewService(st, zap.NewNop().Sugar()), st
}

func createPlan(t *testing.T, svc *Service, name string, planType types.PlanType, price string) *models.SubscriptionPlan {
	t.Helper()
	p, err := svc.CreatePlan(context.Background(), &CreatePlanRequest{
		Name:            name,
		Type:            planType,
		Price:           decimal.RequireFromString(price),
		BillingInterval: types.BillingIntervalMonthly,
	})
	require.NoError(t, err)
	return p
}

func TestCreatePlan_Validation(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	valid := func() *CreatePlanRequest {
		return &CreatePlanRequest{
			Name:            "Starter",
			Type:            types.PlanTypeVendorStarter,
			Price:           decimal.NewFromInt(10),
			BillingInterval: types.BillingIntervalMonthly,
		}
	}

	tests := []struct {
		name   string
		mutate func(r *CreatePlanRequest)
	}{
		{name: "missing name", mutate: func(r *CreatePlanRequest) { r.Name = "" }},
		{name: "unknown type", mutate: func(r *CreatePlanRequest) { r.Type = "FREE" }},
		{name: "unknown interval", mutate: func(r *CreatePlanRequest) { r.BillingInterval = "WEEKLY" }},
		{name: "negative price", mutate: func(r *CreatePlanRequest) { r.Price = decimal.NewFromInt(-1) }},
		{name: "negative trial", mutate: func(r *CreatePlanRequest) { r.TrialDays = -3 }},
		{name: "negative max ads", mutate: func(r *CreatePlanRequest) { r.MaxAds = lo.ToPtr(-1) }},
		{name: "negative commission", mutate: func(r *CreatePlanRequest) { r.CommissionRate = lo.ToPtr(decimal.NewFromInt(-5)) }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := valid()
			tt.mutate(req)
			_, err := svc.CreatePlan(ctx, req)
			require.ErrorIs(t, err, apperr.ErrBadRequest)
		})
	}

	p, err := svc.CreatePlan(ctx, valid())
	require.NoError(t, err)
	require.True(t, p.IsActive)
	require.NotNil(t, p.Benefits)
}

func TestListPlansByType_TierAndPriceOrder(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()

	createPlan(t, svc, "Enterprise", types.PlanTypeVendorEnterprise, "299")
	createPlan(t, svc, "Pro", types.PlanTypeCustomerPro, "19.99")
	createPlan(t, svc, "Starter", types.PlanTypeVendorStarter, "29")
	createPlan(t, svc, "Premium", types.PlanTypeCustomerPremium, "9.99")
	inactive := createPlan(t, svc, "Legacy", types.PlanTypeVendorProfessional, "1")
	_, err := svc.UpdatePlan(ctx, inactive.ID, &UpdatePlanRequest{IsActive: lo.ToPtr(false)})
	require.NoError(t, err)

	customer, err := svc.ListPlansByType(ctx, types.PlanTierCustomer)
	require.NoError(t, err)
	require.Equal(t, []string{"Premium", "Pro"}, lo.Map(customer, func(p *models.SubscriptionPlan, _ int) string { return p.Name }))

	vendor, err := svc.ListPlansByType(ctx, types.PlanTierVendor)
	require.NoError(t, err)
	require.Equal(t, []string{"Starter", "Enterprise"}, lo.Map(vendor, func(p *models.SubscriptionPlan, _ int) string { return p.Name }))
	for _, p := range vendor {
		require.Equal(t, types.PlanTierVendor, p.Type.Tier())
	}

	_, err = svc.ListPlansByType(ctx, "reseller")
	require.ErrorIs(t, err, apperr.ErrBadRequest)
}

func TestListPlans_InactiveFilter(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	createPlan(t, svc, "A", types.PlanTypeCustomerPremium, "5")
	b := createPlan(t, svc, "B", types.PlanTypeCustomerPremium, "3")
	_, err := svc.UpdatePlan(ctx, b.ID, &UpdatePlanRequest{IsActive: lo.ToPtr(false)})
	require.NoError(t, err)

	active, err := svc.ListPlans(ctx, false)
	require.NoError(t, err)
	require.Len(t, active, 1)

	all, err := svc.ListPlans(ctx, true)
	require.NoError(t, err)
	require.Equal(t, []string{"B", "A"}, lo.Map(all, func(p *models.SubscriptionPlan, _ int) string { return p.Name }))
}

func TestUpdatePlan_MergesOnlyProvidedFields(t *testing.T) {
	svc, _ := newTestService()
	ctx := context.Background()
	p, err := svc.CreatePlan(ctx, &CreatePlanRequest{
		Name:            "Pro",
		Type:            types.PlanTypeVendorProfessional,
		Price:           decimal.NewFromInt(49),
		BillingInterval: types.BillingIntervalQuarterly,
		MaxProducts:     lo.ToPtr(100),
		Benefits:        map[string]any{"analytics": true},
	})
	require.NoError(t, err)

	updated, err := svc.UpdatePlan(ctx, p.ID, &UpdatePlanRequest{
		Price:            lo.ToPtr(decimal.NewFromInt(59)),
		ClearMaxProducts: true,
	})
	require.NoError(t, err)
	require.True(t, decimal.NewFromInt(59).Equal(updated.Price))
	require.Nil(t, updated.MaxProducts)
	require.Equal(t, "Pro", updated.Name)
	require.Equal(t, types.BillingIntervalQuarterly, updated.BillingInterval)
	require.Equal(t, true, updated.Benefits["analytics"])

	_, err = svc.UpdatePlan(ctx, p.ID, &UpdatePlanRequest{TrialDays: lo.ToPtr(-1)})
	require.ErrorIs(t, err, apperr.ErrBadRequest)
	stored, err := svc.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	require.Equal(t, 0, stored.TrialDays)

	_, err = svc.UpdatePlan(ctx, tool.GenerateUUIDV7(), &UpdatePlanRequest{})
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestGetPlan_NotFound(t *testing.T) {
	svc, _ := newTestService()
	_, err := svc.GetPlan(context.Background(), tool.GenerateUUIDV7())
	require.ErrorIs(t, err, apperr.ErrNotFound)
	_, err = svc.GetPlan(context.Background(), "not-a-uuid")
	require.ErrorIs(t, err, apperr.ErrNotFound)
}

func TestDeletePlan_BlockedByActiveSubscription(t *testing.T) {
	svc, st := newTestService()
	ctx := context.Background()
	p := createPlan(t, svc, "Premium", types.PlanTypeCustomerPremium, "9.99")

	sub := &models.Subscription{ID: tool.GenerateUUIDV7(), UserID: "u1", PlanID: p.ID, Status: types.SubscriptionStatusActive}
	require.NoError(t, st.Subscriptions().Create(ctx, sub))

	err := svc.DeletePlan(ctx, p.ID)
	require.ErrorIs(t, err, apperr.ErrBadRequest)

	sub.Status = types.SubscriptionStatusExpired
	require.NoError(t, st.Subscriptions().Save(ctx, sub))
	require.NoError(t, svc.DeletePlan(ctx, p.ID))

	require.ErrorIs(t, svc.DeletePlan(ctx, p.ID), apperr.ErrNotFound)
}
