package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/docs"
	"github.com/broxiva/subscriptions/internal/app/api/handlers"
	mw "github.com/broxiva/subscriptions/internal/app/api/middleware"
	"github.com/broxiva/subscriptions/internal/app/service/changelog"
	"github.com/broxiva/subscriptions/internal/app/service/entitlement"
	"github.com/broxiva/subscriptions/internal/app/service/invoice"
	"github.com/broxiva/subscriptions/internal/app/service/payment"
	"github.com/broxiva/subscriptions/internal/app/service/plan"
	"github.com/broxiva/subscriptions/internal/app/service/rollforward"
	"github.com/broxiva/subscriptions/internal/app/service/statistics"
	"github.com/broxiva/subscriptions/internal/app/service/subscription"
	cfgpkg "github.com/broxiva/subscriptions/pkg/config"
	"github.com/broxiva/subscriptions/pkg/metrics"
)

// Services is everything the HTTP routes depend on.
type Services struct {
	fx.In

	Plans         *plan.Service
	Subscriptions *subscription.Service
	Entitlements  *entitlement.Service
	Invoices      *invoice.Service
	Payments      *payment.Service
	Changelog     *changelog.Service
	Statistics    *statistics.Service
	Rollforward   *rollforward.Runner
}

func newEngine(cfg *cfgpkg.Config) *gin.Engine {
	if cfg.Env == cfgpkg.EnvProd {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	// request logger & access log are attached per group in registerRoutes
	r.Use(mw.TraceMiddleware())
	return r
}

func registerRoutes(r *gin.Engine, log *zap.SugaredLogger, cfg *cfgpkg.Config, s Services) {
	pub := r.Group("/")
	pub.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())
	handlers.RegisterHealthRoutes(pub)
	docs.SwaggerInfo.BasePath = "/"
	pub.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))

	apiV1 := r.Group("/api/v1")
	apiV1.Use(mw.RequestLoggerMiddleware(log), mw.AccessLogMiddleware())

	// plan catalogue is public
	handlers.RegisterPlanRoutes(apiV1, s.Plans)

	payments := apiV1.Group("/payments")
	payments.Use(mw.WebhookSecret(cfg.Payment.WebhookSecret))
	handlers.RegisterPaymentRoutes(payments, s.Payments)

	authed := apiV1.Group("")
	authed.Use(mw.Auth(cfg.Auth))
	handlers.RegisterSubscriptionRoutes(authed, s.Subscriptions)
	handlers.RegisterEntitlementRoutes(authed, s.Entitlements)
	handlers.RegisterInvoiceRoutes(authed, s.Invoices)

	admin := authed.Group("/admin")
	admin.Use(mw.AdminOnly(cfg.Auth.AdminRole))
	handlers.RegisterAdminPlanRoutes(admin, s.Plans)
	handlers.RegisterAdminRoutes(admin, handlers.AdminServices{
		Subscriptions: s.Subscriptions,
		Changelog:     s.Changelog,
		Invoices:      s.Invoices,
		Statistics:    s.Statistics,
		Rollforward:   s.Rollforward,
	})
}

// registerMetrics instruments r and serves /metrics on its own listener.
func registerMetrics(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	if cfg.MetricsAddr == "" {
		return
	}
	p := metrics.NewPrometheus(metrics.Options{Logger: log})
	r.Use(p.HandlerFunc())

	srv := &http.Server{Addr: cfg.MetricsAddr, Handler: p.Router(), ReadHeaderTimeout: 5 * time.Second}
	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("metrics started", "addr", cfg.MetricsAddr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("metrics server error: %v", err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			return srv.Shutdown(ctx)
		},
	})
}

func runServer(lc fx.Lifecycle, log *zap.SugaredLogger, cfg *cfgpkg.Config, r *gin.Engine) {
	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{Addr: addr, Handler: r, ReadHeaderTimeout: 5 * time.Second}

	lc.Append(fx.Hook{
		OnStart: func(ctx context.Context) error {
			log.Infow("starting HTTP server", "addr", addr)
			go func() {
				if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					log.Errorf("server error: %v", err)
					panic(err)
				}
			}()
			return nil
		},
		OnStop: func(ctx context.Context) error {
			log.Infow("stopping HTTP server")
			shutdownCtx, cancel := context.WithTimeout(ctx, 120*time.Second)
			defer cancel()
			return srv.Shutdown(shutdownCtx)
		},
	})
}

// metrics middleware must be installed before any route is registered
var Module = fx.Options(
	fx.Provide(newEngine),
	fx.Invoke(registerMetrics),
	fx.Invoke(registerRoutes),
	fx.Invoke(runServer),
)
