package db

import (
	"context"

	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/internal/repository/memory"
	cfgpkg "github.com/broxiva/subscriptions/pkg/config"
	"github.com/broxiva/subscriptions/pkg/gormlog"
)

const DriverMemory = "memory"

func NewDB(l *zap.SugaredLogger, cfg *cfgpkg.Config) (*gorm.DB, error) {
	if cfg.Database.DSN == "" {
		l.Error("database DSN is empty")
		return nil, gorm.ErrInvalidDB
	}
	db, err := gorm.Open(postgres.Open(cfg.Database.DSN), &gorm.Config{
		Logger:         gormlog.New(l, cfg.Database.SlowThreshold),
		TranslateError: true,
	})
	if err != nil {
		l.Errorf("failed to connect database: %v", err)
		return nil, err
	}
	l.Infow("connected to postgres via DSN")
	return db, nil
}

// NewBackend opens the configured persistence backend.
func NewBackend(lc fx.Lifecycle, l *zap.SugaredLogger, cfg *cfgpkg.Config) (repository.Store, error) {
	if cfg.Database.Driver == DriverMemory {
		l.Warnw("using in-memory store, data is lost on restart")
		return memory.New(), nil
	}
	gdb, err := NewDB(l, cfg)
	if err != nil {
		return nil, err
	}
	if err := AutoMigrate(l, gdb); err != nil {
		return nil, err
	}
	registerDBClose(lc, l, gdb)
	return NewStore(gdb, cfg.Entitlement), nil
}

var Module = fx.Options(
	fx.Provide(NewBackend),
)

// AutoMigrate runs GORM migrations on startup
func AutoMigrate(l *zap.SugaredLogger, db *gorm.DB) error {
	if err := db.AutoMigrate(
		&models.SubscriptionPlan{},
		&models.Subscription{},
		&models.SubscriptionInvoice{},
		&models.SubscriptionLog{},
		&models.SubscriptionDailySnapshot{},
		&models.PaymentConfirmationLog{},
	); err != nil {
		l.Errorf("automigrate failed: %v", err)
		return err
	}
	l.Infow("automigrate completed")
	return nil
}

// registerDBClose ensures the underlying *sql.DB is closed on shutdown
func registerDBClose(lc fx.Lifecycle, l *zap.SugaredLogger, gdb *gorm.DB) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			sqlDB, err := gdb.DB()
			if err != nil {
				l.Warnw("gorm: get sql.DB failed", "err", err)
				return nil
			}
			l.Infow("closing postgres connection pool")
			return sqlDB.Close()
		},
	})
}
