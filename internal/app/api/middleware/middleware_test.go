package middleware

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/broxiva/subscriptions/pkg/config"
	"github.com/broxiva/subscriptions/pkg/logctx"
	"github.com/broxiva/subscriptions/pkg/response"
)

const secret = "test-secret"

func sign(t *testing.T, method jwt.SigningMethod, key any, claims Claims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(method, claims).SignedString(key)
	require.NoError(t, err)
	return s
}

func newRouter(log *zap.SugaredLogger) *gin.Engine {
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(TraceMiddleware(), RequestLoggerMiddleware(log), AccessLogMiddleware())
	authed := r.Group("/", Auth(config.AuthConfig{JWTSecret: secret, AdminRole: "admin"}))
	authed.GET("/me", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"user":     c.GetString(logctx.GinUserIDKey),
			"ctx_user": logctx.UserID(c.Request.Context()),
			"trace":    logctx.TraceID(c.Request.Context()),
		})
	})
	authed.GET("/admin", AdminOnly("admin"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	r.POST("/hook", WebhookSecret("hook-secret"), func(c *gin.Context) { c.Status(http.StatusNoContent) })
	return r
}

func do(r http.Handler, method, path string, header http.Header) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, nil)
	for k, vv := range header {
		for _, v := range vv {
			req.Header.Add(k, v)
		}
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func bearer(token string) http.Header {
	return http.Header{"Authorization": {"Bearer " + token}}
}

func TestAuth(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	r := newRouter(zap.New(core).Sugar())

	token := sign(t, jwt.SigningMethodHS256, []byte(secret), Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	})
	h := bearer(token)
	h.Set(HeaderRequestID, "req-1")
	w := do(r, http.MethodGet, "/me", h)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, "req-1", w.Header().Get(HeaderRequestID))
	var body map[string]string
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Equal(t, map[string]string{"user": "u1", "ctx_user": "u1", "trace": "req-1"}, body)

	access := logs.FilterMessage("http_access").All()
	require.Len(t, access, 1)
	require.Equal(t, "u1", access[0].ContextMap()["user_id"])
	require.Equal(t, "req-1", access[0].ContextMap()["trace_id"])
	require.Equal(t, "/me", access[0].ContextMap()["path"])
}

func TestAuth_Rejects(t *testing.T) {
	r := newRouter(zap.NewNop().Sugar())

	expired := sign(t, jwt.SigningMethodHS256, []byte(secret), Claims{
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(-time.Hour))},
	})
	wrongKey := sign(t, jwt.SigningMethodHS256, []byte("other"), Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}})
	noSubject := sign(t, jwt.SigningMethodHS256, []byte(secret), Claims{Role: "admin"})
	wrongAlg := sign(t, jwt.SigningMethodHS512, []byte(secret), Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}})

	for name, h := range map[string]http.Header{
		"missing":    nil,
		"not bearer": {"Authorization": {"Basic dTE6cGFzcw=="}},
		"expired":    bearer(expired),
		"wrong key":  bearer(wrongKey),
		"no subject": bearer(noSubject),
		"wrong alg":  bearer(wrongAlg),
	} {
		w := do(r, http.MethodGet, "/me", h)
		require.Equal(t, http.StatusUnauthorized, w.Code, name)
		var resp response.APIResponse[any]
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Equal(t, response.APIResponseCodeUnauthorized, resp.Code, name)
	}
}

func TestAdminOnly(t *testing.T) {
	r := newRouter(zap.NewNop().Sugar())

	user := sign(t, jwt.SigningMethodHS256, []byte(secret), Claims{RegisteredClaims: jwt.RegisteredClaims{Subject: "u1"}})
	require.Equal(t, http.StatusForbidden, do(r, http.MethodGet, "/admin", bearer(user)).Code)

	admin := sign(t, jwt.SigningMethodHS256, []byte(secret), Claims{Role: "admin", RegisteredClaims: jwt.RegisteredClaims{Subject: "ops"}})
	require.Equal(t, http.StatusNoContent, do(r, http.MethodGet, "/admin", bearer(admin)).Code)
}

func TestWebhookSecret(t *testing.T) {
	r := newRouter(zap.NewNop().Sugar())

	require.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/hook", nil).Code)
	require.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/hook", http.Header{HeaderWebhookSecret: {"nope"}}).Code)
	require.Equal(t, http.StatusNoContent, do(r, http.MethodPost, "/hook", http.Header{HeaderWebhookSecret: {"hook-secret"}}).Code)
}

func TestTraceMiddleware_GeneratesID(t *testing.T) {
	r := newRouter(zap.NewNop().Sugar())
	w := do(r, http.MethodPost, "/hook", nil)
	require.NotEmpty(t, w.Header().Get(HeaderRequestID))
}
