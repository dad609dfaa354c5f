package handlers

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/broxiva/subscriptions/internal/app/service/changelog"
	"github.com/broxiva/subscriptions/internal/app/service/invoice"
	"github.com/broxiva/subscriptions/internal/app/service/rollforward"
	"github.com/broxiva/subscriptions/internal/app/service/statistics"
	"github.com/broxiva/subscriptions/internal/app/service/subscription"
	"github.com/broxiva/subscriptions/pkg/apperr"
	"github.com/broxiva/subscriptions/pkg/tool"
)

// @Summary      Scan subscriptions (Admin)
// @Description  Retrieves a paginated and filterable list of subscriptions.
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body subscription.ScanRequest true "filters, pagination and sorting"
// @Success      200  {object}  handlers.RespScanSubscriptions
// @Router       /api/v1/admin/subscriptions/scan [post]
func ApiScanSubscriptions(svc *subscription.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req subscription.ScanRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.ScanSubscriptions(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, res)
	}
}

// @Summary      Subscription change logs (Admin)
// @Tags         Admin
// @Produce      json
// @Param        id  path  string  true  "subscription id"
// @Success      200  {object}  handlers.RespSubscriptionLogs
// @Router       /api/v1/admin/subscriptions/{id}/logs [get]
func ApiSubscriptionLogs(svc *changelog.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.Param("id")
		if !tool.IsUUID(id) {
			writeError(c, apperr.NotFound("subscription not found: %s", id))
			return
		}
		logs, err := svc.List(c.Request.Context(), id)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, logs)
	}
}

// @Summary      Statistics (Admin)
// @Tags         Admin
// @Accept       json
// @Produce      json
// @Param        request body statistics.Request true "data items and filters"
// @Success      200  {object}  handlers.RespStatistic
// @Router       /api/v1/admin/statistics [post]
func ApiGetStatistic(svc *statistics.Service) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req statistics.Request
		if err := c.ShouldBindJSON(&req); err != nil {
			badRequest(c, err.Error())
			return
		}
		res, err := svc.GetStatistic(c.Request.Context(), &req)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, res)
	}
}

// @Summary      Run roll-forward (Admin)
// @Description  Runs one roll-forward pass now. Fails with 409 while another pass holds the run lock.
// @Tags         Admin
// @Produce      json
// @Param        snapshot  query  bool  false  "also take the daily subscription snapshot"
// @Success      200  {object}  handlers.RespRollforward
// @Router       /api/v1/admin/rollforward/run [post]
func ApiRunRollforward(runner *rollforward.Runner) gin.HandlerFunc {
	return func(c *gin.Context) {
		snapshot, _ := strconv.ParseBool(c.Query("snapshot"))
		res, err := runner.Run(c.Request.Context(), snapshot)
		if err != nil {
			writeError(c, err)
			return
		}
		ok(c, res)
	}
}

// AdminServices groups the services behind the admin routes.
type AdminServices struct {
	Subscriptions *subscription.Service
	Changelog     *changelog.Service
	Invoices      *invoice.Service
	Statistics    *statistics.Service
	Rollforward   *rollforward.Runner
}

func RegisterAdminRoutes(r gin.IRouter, s AdminServices) {
	r.POST("/subscriptions/scan", ApiScanSubscriptions(s.Subscriptions))
	r.GET("/subscriptions/:id/logs", ApiSubscriptionLogs(s.Changelog))
	r.POST("/invoices/:id/mark_paid", ApiMarkInvoicePaid(s.Invoices))
	r.POST("/statistics", ApiGetStatistic(s.Statistics))
	r.POST("/rollforward/run", ApiRunRollforward(s.Rollforward))
}
