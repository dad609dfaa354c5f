package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/broxiva/subscriptions/internal/app/service/subscription"
	"github.com/broxiva/subscriptions/pkg/response"
)

type SubscribeRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

type ChangePlanRequest struct {
	PlanID string `json:"plan_id" binding:"required"`
}

// @Summary      Subscribe
// @Description  Subscribes the caller to a plan. Paid plans without trial are invoiced right away.
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Param        request body handlers.SubscribeRequest true "plan to subscribe to"
// @Success      201  {object}  handlers.RespSubscribe
// @Failure      409  {object}  handlers.RespOK
// @Router       /api/v1/subscriptions [post]
func ApiSubscribe(svc *subscription.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req SubscribeRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.Subscribe(c.Request.Context(), currentUser(c), req.PlanID)
		if err != nil {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusCreated, response.OKT(res))
	}
}

// @Summary      Current subscription
// @Description  Returns the newest ACTIVE, TRIAL or PAST_DUE subscription of the caller.
// @Tags         Subscriptions
// @Produce      json
// @Success      200  {object}  handlers.RespSubscription
// @Failure      404  {object}  handlers.RespOK
// @Router       /api/v1/subscriptions/current [get]
func ApiCurrentSubscription(svc *subscription.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := svc.GetCurrentSubscription(c.Request.Context(), currentUser(c))
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, sub)
	}
}

// @Summary      List subscriptions
// @Description  Lists every subscription of the caller, newest first.
// @Tags         Subscriptions
// @Produce      json
// @Success      200  {object}  handlers.RespSubscriptions
// @Router       /api/v1/subscriptions [get]
func ApiListSubscriptions(svc *subscription.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		subs, err := svc.ListUserSubscriptions(c.Request.Context(), currentUser(c))
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, subs)
	}
}

// @Summary      Cancel subscription
// @Description  Cancels at period end. The status changes when the period ends.
// @Tags         Subscriptions
// @Produce      json
// @Param        id  path  string  true  "subscription id"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id}/cancel [post]
func ApiCancelSubscription(svc *subscription.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := svc.Cancel(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, sub)
	}
}

// @Summary      Reactivate subscription
// @Description  Undoes a pending cancellation.
// @Tags         Subscriptions
// @Produce      json
// @Param        id  path  string  true  "subscription id"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id}/reactivate [post]
func ApiReactivateSubscription(svc *subscription.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		sub, err := svc.Reactivate(c.Request.Context(), currentUser(c), c.Param("id"))
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, sub)
	}
}

// @Summary      Change plan
// @Description  Moves the subscription to another active plan. The current period is kept.
// @Tags         Subscriptions
// @Accept       json
// @Produce      json
// @Param        id  path  string  true  "subscription id"
// @Param        request body handlers.ChangePlanRequest true "target plan"
// @Success      200  {object}  handlers.RespSubscription
// @Router       /api/v1/subscriptions/{id}/change-plan [post]
func ApiChangePlan(svc *subscription.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req ChangePlanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		sub, err := svc.ChangePlan(c.Request.Context(), currentUser(c), c.Param("id"), req.PlanID)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, sub)
	}
}

func RegisterSubscriptionRoutes(r gin.IRouter, svc *subscription.Service) {
	r.POST("/subscriptions", ApiSubscribe(svc))
	r.GET("/subscriptions", ApiListSubscriptions(svc))
	r.GET("/subscriptions/current", ApiCurrentSubscription(svc))
	r.POST("/subscriptions/:id/cancel", ApiCancelSubscription(svc))
	r.POST("/subscriptions/:id/reactivate", ApiReactivateSubscription(svc))
	r.POST("/subscriptions/:id/change-plan", ApiChangePlan(svc))
}
