package db

import (
	"context"
	"fmt"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/pkg/types"
)

type statsRepo struct{ db *gorm.DB }

const dayExpr = "TO_CHAR(created_at, 'YYYY-MM-DD')"

func (r statsRepo) DailyInvoiceCount(ctx context.Context, filters types.CommonFilters) ([]repository.StatPoint, error) {
	return r.find(r.invoices(ctx, filters).
		Select(dayExpr + " AS date, COUNT(*) AS value").
		Group(dayExpr).
		Order("date"))
}

func (r statsRepo) DailyInvoiceAmount(ctx context.Context, filters types.CommonFilters) ([]repository.StatPoint, error) {
	return r.find(r.invoices(ctx, filters).
		Select(dayExpr + " AS date, currency AS label, SUM(amount) AS value").
		Group(dayExpr).Group("currency").
		Order("date").Order("label"))
}

func (r statsRepo) TotalPaidAmount(ctx context.Context, filters types.CommonFilters) ([]repository.StatPoint, error) {
	return r.find(r.invoices(ctx, filters).
		Select("currency AS label, SUM(amount) AS value").
		Where("status = ?", types.InvoiceStatusPaid).
		Group("currency").
		Order("label"))
}

func (r statsRepo) DailyNewSubscriptionCount(ctx context.Context, filters types.CommonFilters) ([]repository.StatPoint, error) {
	return r.find(r.subscriptions(ctx, filters).
		Select(dayExpr + " AS date, COUNT(*) AS value").
		Group(dayExpr).
		Order("date"))
}

func (r statsRepo) SubscriptionStatusCount(ctx context.Context, filters types.CommonFilters) ([]repository.StatPoint, error) {
	return r.find(r.subscriptions(ctx, filters).
		Select("status AS label, COUNT(*) AS value").
		Group("status").
		Order("label"))
}

func (r statsRepo) invoices(ctx context.Context, filters types.CommonFilters) *gorm.DB {
	return r.db.WithContext(ctx).Table(models.SubscriptionInvoice{}.TableName()).
		Where(clause.Where{Exprs: []clause.Expression{filters}})
}

func (r statsRepo) subscriptions(ctx context.Context, filters types.CommonFilters) *gorm.DB {
	return r.db.WithContext(ctx).Table(models.Subscription{}.TableName()).
		Where(clause.Where{Exprs: []clause.Expression{filters}})
}

func (r statsRepo) find(q *gorm.DB) ([]repository.StatPoint, error) {
	var points []repository.StatPoint
	if err := q.Find(&points).Error; err != nil {
		return nil, fmt.Errorf("failed to query statistic: %w", err)
	}
	return points, nil
}
