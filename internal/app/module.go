package app

import (
	"time"

	"go.uber.org/fx"

	"github.com/broxiva/subscriptions/internal/app/api/server"
	"github.com/broxiva/subscriptions/internal/app/service/changelog"
	"github.com/broxiva/subscriptions/internal/app/service/entitlement"
	"github.com/broxiva/subscriptions/internal/app/service/invoice"
	"github.com/broxiva/subscriptions/internal/app/service/payment"
	"github.com/broxiva/subscriptions/internal/app/service/plan"
	"github.com/broxiva/subscriptions/internal/app/service/rollforward"
	"github.com/broxiva/subscriptions/internal/app/service/statistics"
	"github.com/broxiva/subscriptions/internal/app/service/subscription"
	"github.com/broxiva/subscriptions/internal/platform/db"
	"github.com/broxiva/subscriptions/internal/platform/eventbus"
	"github.com/broxiva/subscriptions/internal/platform/runlock"
	"github.com/broxiva/subscriptions/pkg/config"
	"github.com/broxiva/subscriptions/pkg/logger"
	"github.com/broxiva/subscriptions/pkg/metrics"
)

const (
	DefaultStartTimeout = 15 * time.Second
	DefaultStopTimeout  = 10 * time.Second
)

// Core is everything except the HTTP server. The roll-forward command runs
// on top of it.
var Core = fx.Options(
	logger.Module,
	config.Module,
	metrics.Module,
	db.Module,
	eventbus.Module,
	runlock.Module,
	plan.Module,
	changelog.Module,
	invoice.Module,
	subscription.Module,
	entitlement.Module,
	payment.Module,
	statistics.Module,
	rollforward.Module,
)

var Module = fx.Options(
	Core,
	server.Module,
)
