package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/broxiva/subscriptions/pkg/logctx"
	"github.com/broxiva/subscriptions/pkg/response"
)

type HealthStatus struct {
	Status  string `json:"status"`
	TraceID string `json:"trace_id,omitempty"`
}

// @Summary      Health check
// @Description  Liveness probe. Echoes the request trace id.
// @Tags         System
// @Produce      json
// @Success      200  {object}  handlers.RespHealth
// @Router       /healthz [get]
func Healthz(c *gin.Context) {
	c.JSON(http.StatusOK, response.OKT(HealthStatus{
		Status:  "ok",
		TraceID: logctx.TraceID(c.Request.Context()),
	}))
}

func RegisterHealthRoutes(r gin.IRouter) {
	r.GET("/healthz", Healthz)
}
