package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/pkg/logctx"
	"github.com/broxiva/subscriptions/pkg/response"
)

// writeError maps a service error onto the response envelope. Unexpected
// errors are logged and answered with a generic message.
func writeError(c *gin.Context, err error) {
	status, code := response.FromError(err)
	msg := err.Error()
	if status >= http.StatusInternalServerError {
		logctx.FromGin(c, zap.S()).Errorw("request failed", "path", c.FullPath(), "err", err)
		msg = "internal error"
	}
	_ = c.Error(err)
	c.JSON(status, response.ErrorT[any](code, msg))
}

func badRequest(c *gin.Context, msg string) {
	c.JSON(http.StatusBadRequest, response.ErrorT[any](response.APIResponseCodeBadRequest, msg))
}

func ok[T any](c *gin.Context, data T) {
	c.JSON(http.StatusOK, response.OKT(data))
}

// currentUser is the subject of the bearer token, set by middleware.Auth.
func currentUser(c *gin.Context) string {
	return c.GetString(logctx.GinUserIDKey)
}
