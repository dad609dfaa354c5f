package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/broxiva/subscriptions/internal/app/service/plan"
	"github.com/broxiva/subscriptions/pkg/response"
	"github.com/broxiva/subscriptions/pkg/types"
)

// @Summary      List plans
// @Description  Lists the active plans ordered by type then price.
// @Tags         Plans
// @Produce      json
// @Success      200  {object}  handlers.RespPlans
// @Router       /api/v1/plans [get]
func ApiListPlans(svc *plan.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		plans, err := svc.ListPlans(c.Request.Context(), false)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, plans)
	}
}

// @Summary      List plans of a tier
// @Description  Lists the active customer or vendor plans, cheapest first.
// @Tags         Plans
// @Produce      json
// @Param        tier  path  string  true  "customer or vendor"
// @Success      200  {object}  handlers.RespPlans
// @Router       /api/v1/plans/type/{tier} [get]
func ApiListPlansByType(svc *plan.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		plans, err := svc.ListPlansByType(c.Request.Context(), types.PlanTier(c.Param("tier")))
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, plans)
	}
}

// @Summary      Get plan
// @Tags         Plans
// @Produce      json
// @Param        id  path  string  true  "plan id"
// @Success      200  {object}  handlers.RespPlan
// @Router       /api/v1/plans/{id} [get]
func ApiGetPlan(svc *plan.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		p, err := svc.GetPlan(c.Request.Context(), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, p)
	}
}

// @Summary      List plans (Admin)
// @Description  Lists all plans. Inactive plans are included unless include_inactive=false.
// @Tags         Admin
// @Produce      json
// @Param        include_inactive  query  bool  false  "include inactive plans"
// @Success      200  {object}  handlers.RespPlans
// @Router       /api/v1/admin/plans [get]
func ApiAdminListPlans(svc *plan.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		includeInactive := true
		if v := c.Query("include_inactive"); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				badRequest(c, "invalid include_inactive")
				return
			}
			includeInactive = b
		}
		plans, err := svc.ListPlans(c.Request.Context(), includeInactive)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, plans)
	}
}

// @Summary      Create plan (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body plan.CreatePlanRequest true "plan"
// @Success      201  {object}  handlers.RespPlan
// @Router       /api/v1/admin/plans [post]
func ApiCreatePlan(svc *plan.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req plan.CreatePlanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		p, err := svc.CreatePlan(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, response.OKT(p))
	}
}

// @Summary      Update plan (Admin)
// @Description  Updates the provided fields only.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "plan id"
// @Param        request body plan.UpdatePlanRequest true "fields to change"
// @Success      200  {object}  handlers.RespPlan
// @Router       /api/v1/admin/plans/{id} [patch]
func ApiUpdatePlan(svc *plan.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req plan.UpdatePlanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		p, err := svc.UpdatePlan(c.Request.Context(), c.Param("id"), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, p)
	}
}

// @Summary      Delete plan (Admin)
// @Description  Fails while active subscriptions reference the plan.
// @Tags         Admin
// @Produce      json
// @Param        id  path  string  true  "plan id"
// @Success      200  {object}  handlers.RespOK
// @Router       /api/v1/admin/plans/{id} [delete]
func ApiDeletePlan(svc *plan.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		if err := svc.DeletePlan(c.Request.Context(), c.Param("id")); err != nil {
			writeError(c, err)
			return
		}
		ok[any](c, nil)
	}
}

func RegisterPlanRoutes(r gin.IRouter, svc *plan.Service) {
	r.GET("/plans", ApiListPlans(svc))
	r.GET("/plans/type/:tier", ApiListPlansByType(svc))
	r.GET("/plans/:id", ApiGetPlan(svc))
}

func RegisterAdminPlanRoutes(r gin.IRouter, svc *plan.Service) {
	r.GET("/plans", ApiAdminListPlans(svc))
	r.POST("/plans", ApiCreatePlan(svc))
	r.PATCH("/plans/:id", ApiUpdatePlan(svc))
	r.DELETE("/plans/:id", ApiDeletePlan(svc))
}
