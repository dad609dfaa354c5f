package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/pkg/config"
	"github.com/broxiva/subscriptions/pkg/logctx"
	"github.com/broxiva/subscriptions/pkg/response"
)

const HeaderWebhookSecret = "X-Webhook-Secret"

// Claims are the JWT claims issued by the platform's auth service. The
// subject is the user id.
type Claims struct {
	Role string `json:"role,omitempty"`
	jwt.RegisteredClaims
}

var errMissingToken = errors.New("missing bearer token")

// Auth validates an HS256 bearer token and stores the user id and role in the
// gin and request contexts.
func Auth(cfg config.AuthConfig) gin.HandlerFunc {
	parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	secret := []byte(cfg.JWTSecret)

	return func(c *gin.Context) {
		claims, err := parseBearer(parser, secret, c.GetHeader("Authorization"))
		if err != nil {
			abort(c, http.StatusUnauthorized, response.APIResponseCodeUnauthorized, err.Error())
			return
		}

		c.Set(logctx.GinUserIDKey, claims.Subject)
		c.Set(logctx.GinRoleKey, claims.Role)
		c.Request = c.Request.WithContext(logctx.WithUserID(c.Request.Context(), claims.Subject))
		if l, ok := c.Get(logctx.GinLoggerKey); ok {
			if lg, ok := l.(*zap.SugaredLogger); ok && lg != nil {
				setLogger(c, lg.With("user_id", claims.Subject))
			}
		}
		c.Next()
	}
}

func parseBearer(parser *jwt.Parser, secret []byte, header string) (*Claims, error) {
	if len(secret) == 0 {
		return nil, errors.New("authentication is not configured")
	}
	raw, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || raw == "" {
		return nil, errMissingToken
	}
	claims := &Claims{}
	if _, err := parser.ParseWithClaims(raw, claims, func(*jwt.Token) (any, error) { return secret, nil }); err != nil {
		return nil, err
	}
	if claims.Subject == "" {
		return nil, errors.New("token has no subject")
	}
	return claims, nil
}

// AdminOnly rejects requests whose role claim is not role. It must run after Auth.
func AdminOnly(role string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if role == "" || c.GetString(logctx.GinRoleKey) != role {
			abort(c, http.StatusForbidden, response.APIResponseCodeForbidden, "admin role required")
			return
		}
		c.Next()
	}
}

// WebhookSecret authenticates server-to-server callbacks by a shared secret
// header. An empty secret rejects every call.
func WebhookSecret(secret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader(HeaderWebhookSecret)
		if secret == "" || subtle.ConstantTimeCompare([]byte(got), []byte(secret)) != 1 {
			abort(c, http.StatusUnauthorized, response.APIResponseCodeUnauthorized, "invalid webhook secret")
			return
		}
		c.Next()
	}
}

func abort(c *gin.Context, status int, code response.APIResponseCode, msg string) {
	c.AbortWithStatusJSON(status, response.ErrorT[any](code, msg))
}
