package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/broxiva/subscriptions/internal/app/service/entitlement"
	"github.com/broxiva/subscriptions/pkg/types"
)

type BenefitCheck struct {
	Key     string `json:"key"`
	Granted bool   `json:"granted"`
}

// @Summary      Benefits
// @Description  Summarises the caller's plan benefits and limits.
// @Tags         Entitlements
// @Produce      json
// @Success      200  {object}  handlers.RespBenefits
// @Router       /api/v1/benefits [get]
func ApiGetBenefits(svc *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		b, err := svc.GetUserBenefits(c.Request.Context(), currentUser(c))
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, b)
	}
}

// @Summary      Check benefit
// @Tags         Entitlements
// @Produce      json
// @Param        key  path  string  true  "benefit key"
// @Success      200  {object}  handlers.RespBenefitCheck
// @Router       /api/v1/benefits/{key} [get]
func ApiHasBenefit(svc *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		key := c.Param("key")
		granted, err := svc.HasBenefit(c.Request.Context(), currentUser(c), key)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, BenefitCheck{Key: key, Granted: granted})
	}
}

// @Summary      Check action
// @Description  Reports whether the caller's plan limits allow createProduct or createAd.
// @Tags         Entitlements
// @Produce      json
// @Param        action  path  string  true  "createProduct or createAd"
// @Success      200  {object}  handlers.RespActionResult
// @Router       /api/v1/entitlements/{action} [get]
func ApiCanPerformAction(svc *entitlement.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		res, err := svc.CanPerformAction(c.Request.Context(), currentUser(c), types.Action(c.Param("action")))
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, res)
	}
}

func RegisterEntitlementRoutes(r gin.IRouter, svc *entitlement.Service) {
	r.GET("/benefits", ApiGetBenefits(svc))
	r.GET("/benefits/:key", ApiHasBenefit(svc))
	r.GET("/entitlements/:action", ApiCanPerformAction(svc))
}
