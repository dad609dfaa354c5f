package db

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/pkg/config"
	"github.com/broxiva/subscriptions/pkg/types"
)

// Store implements repository.Store on postgres.
type Store struct {
	db   *gorm.DB
	ent  config.EntitlementConfig
	inTx bool
}

var _ repository.Store = (*Store)(nil)

func NewStore(db *gorm.DB, ent config.EntitlementConfig) *Store {
	return &Store{db: db, ent: ent}
}

func (s *Store) Plans() repository.PlanRepository                 { return planRepo{s.db} }
func (s *Store) Subscriptions() repository.SubscriptionRepository { return subscriptionRepo{s.db} }
func (s *Store) Invoices() repository.InvoiceRepository           { return invoiceRepo{s.db} }
func (s *Store) Usage() repository.UsageCounter                   { return usageRepo{db: s.db, cfg: s.ent} }
func (s *Store) Logs() repository.LogRepository                   { return logRepo{s.db} }
func (s *Store) Stats() repository.StatsRepository                { return statsRepo{s.db} }

func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.inTx {
		return fn(s)
	}
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&Store{db: tx, ent: s.ent, inTx: true})
	})
}

// translate maps gorm errors onto the repository sentinels.
func translate(err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, gorm.ErrRecordNotFound):
		return repository.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return fmt.Errorf("%w: %v", repository.ErrDuplicate, err)
	}
	return err
}

type planRepo struct{ db *gorm.DB }

func (r planRepo) Create(ctx context.Context, plan *models.SubscriptionPlan) error {
	return translate(r.db.WithContext(ctx).Create(plan).Error)
}

func (r planRepo) Get(ctx context.Context, id string) (*models.SubscriptionPlan, error) {
	var plan models.SubscriptionPlan
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&plan).Error; err != nil {
		return nil, translate(err)
	}
	return &plan, nil
}

func (r planRepo) List(ctx context.Context, includeInactive bool) ([]*models.SubscriptionPlan, error) {
	var plans []*models.SubscriptionPlan
	q := r.db.WithContext(ctx).Order("type").Order("price").Order("id")
	if !includeInactive {
		q = q.Where("is_active = ?", true)
	}
	if err := q.Find(&plans).Error; err != nil {
		return nil, fmt.Errorf("failed to list plans: %w", err)
	}
	return plans, nil
}

func (r planRepo) ListActiveByTypes(ctx context.Context, planTypes []types.PlanType) ([]*models.SubscriptionPlan, error) {
	var plans []*models.SubscriptionPlan
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND type IN ?", true, planTypes).
		Order("price").Order("id").
		Find(&plans).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list plans by type: %w", err)
	}
	return plans, nil
}

func (r planRepo) Save(ctx context.Context, plan *models.SubscriptionPlan) error {
	return translate(r.db.WithContext(ctx).Save(plan).Error)
}

func (r planRepo) Delete(ctx context.Context, id string) error {
	res := r.db.WithContext(ctx).Where("id = ?", id).Delete(&models.SubscriptionPlan{})
	if res.Error != nil {
		return translate(res.Error)
	}
	if res.RowsAffected == 0 {
		return repository.ErrNotFound
	}
	return nil
}

type subscriptionRepo struct{ db *gorm.DB }

func (r subscriptionRepo) Create(ctx context.Context, sub *models.Subscription) error {
	return translate(r.db.WithContext(ctx).Create(sub).Error)
}

func (r subscriptionRepo) Get(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&sub).Error; err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (r subscriptionRepo) GetForUpdate(ctx context.Context, id string) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		Take(&sub).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (r subscriptionRepo) FindLatest(ctx context.Context, userID string, statuses []types.SubscriptionStatus) (*models.Subscription, error) {
	var sub models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ? AND status IN ?", userID, statuses).
		Order("created_at DESC").Order("id DESC").
		Take(&sub).Error
	if err != nil {
		return nil, translate(err)
	}
	return &sub, nil
}

func (r subscriptionRepo) ListByUser(ctx context.Context, userID string) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").Order("id DESC").
		Find(&subs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

func (r subscriptionRepo) Save(ctx context.Context, sub *models.Subscription) error {
	return translate(r.db.WithContext(ctx).Save(sub).Error)
}

func (r subscriptionRepo) CountByPlanAndStatus(ctx context.Context, planID string, status types.SubscriptionStatus) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where("plan_id = ? AND status = ?", planID, status).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}
	return n, nil
}

func (r subscriptionRepo) ActivateEndedTrials(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := r.db.WithContext(ctx).Model(&subs).
		Clauses(clause.Returning{}).
		Where("status = ? AND trial_end IS NOT NULL AND trial_end <= ?", types.SubscriptionStatusTrial, now).
		Updates(map[string]any{"status": types.SubscriptionStatusActive}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to activate ended trials: %w", err)
	}
	return subs, nil
}

func (r subscriptionRepo) ExpireCancelled(ctx context.Context, now time.Time) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	err := r.db.WithContext(ctx).Model(&subs).
		Clauses(clause.Returning{}).
		Where("status = ? AND cancel_at_period_end = ? AND current_period_end <= ?", types.SubscriptionStatusActive, true, now).
		Updates(map[string]any{"status": types.SubscriptionStatusExpired}).Error
	if err != nil {
		return nil, fmt.Errorf("failed to expire cancelled subscriptions: %w", err)
	}
	return subs, nil
}

func (r subscriptionRepo) ListDueForRenewal(ctx context.Context, now time.Time, afterID string, limit int) ([]*models.Subscription, error) {
	var subs []*models.Subscription
	q := r.db.WithContext(ctx).
		Where("status = ? AND cancel_at_period_end = ? AND current_period_end <= ?", types.SubscriptionStatusActive, false, now)
	if afterID != "" {
		q = q.Where("id > ?", afterID)
	}
	if err := q.Order("id").Limit(limit).Find(&subs).Error; err != nil {
		return nil, fmt.Errorf("failed to list subscriptions due for renewal: %w", err)
	}
	return subs, nil
}

func (r subscriptionRepo) Scan(ctx context.Context, q repository.ScanQuery) ([]*models.Subscription, int64, error) {
	base := r.db.WithContext(ctx).Model(&models.Subscription{}).
		Where(clause.Where{Exprs: []clause.Expression{q.Filters}}).
		Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to count subscriptions: %w", err)
	}

	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	page := base.
		Order(clause.OrderByColumn{Column: clause.Column{Name: sortBy}, Desc: q.Desc}).
		Order(clause.OrderByColumn{Column: clause.Column{Name: "id"}, Desc: q.Desc}).
		Offset(q.From)
	if q.Size > 0 {
		page = page.Limit(q.Size)
	}
	var subs []*models.Subscription
	if err := page.Find(&subs).Error; err != nil {
		return nil, 0, fmt.Errorf("failed to scan subscriptions: %w", err)
	}
	return subs, total, nil
}

func (r subscriptionRepo) SnapshotDaily(ctx context.Context, at time.Time) (int64, error) {
	res := r.db.WithContext(ctx).Exec(`
INSERT INTO subscription_daily_snapshot
    (id, subscription_id, snapshot_date, user_id, plan_id, status, current_period_end, cancel_at_period_end, snapshot_created_at)
SELECT gen_random_uuid(), id, ?, user_id, plan_id, status, current_period_end, cancel_at_period_end, ?
FROM subscription
WHERE status IN ?
ON CONFLICT (subscription_id, snapshot_date) DO NOTHING`,
		models.SnapshotDate(at), at, types.CurrentSubscriptionStatuses)
	if res.Error != nil {
		return 0, fmt.Errorf("failed to snapshot subscriptions: %w", res.Error)
	}
	return res.RowsAffected, nil
}

type invoiceRepo struct{ db *gorm.DB }

func (r invoiceRepo) Create(ctx context.Context, inv *models.SubscriptionInvoice) error {
	return translate(r.db.WithContext(ctx).Create(inv).Error)
}

func (r invoiceRepo) Get(ctx context.Context, id string) (*models.SubscriptionInvoice, error) {
	var inv models.SubscriptionInvoice
	if err := r.db.WithContext(ctx).Where("id = ?", id).Take(&inv).Error; err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (r invoiceRepo) GetForUpdate(ctx context.Context, id string) (*models.SubscriptionInvoice, error) {
	var inv models.SubscriptionInvoice
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: clause.LockingStrengthUpdate}).
		Where("id = ?", id).
		Take(&inv).Error
	if err != nil {
		return nil, translate(err)
	}
	return &inv, nil
}

func (r invoiceRepo) Save(ctx context.Context, inv *models.SubscriptionInvoice) error {
	return translate(r.db.WithContext(ctx).Save(inv).Error)
}

func (r invoiceRepo) ListByUser(ctx context.Context, userID string, subscriptionID *string) ([]*models.SubscriptionInvoice, error) {
	var invoices []*models.SubscriptionInvoice
	q := r.db.WithContext(ctx).
		Select("subscription_invoice.*").
		Joins("JOIN subscription ON subscription.id = subscription_invoice.subscription_id").
		Where("subscription.user_id = ?", userID)
	if subscriptionID != nil {
		q = q.Where("subscription_invoice.subscription_id = ?", *subscriptionID)
	}
	err := q.Order("subscription_invoice.created_at DESC").
		Order("subscription_invoice.id DESC").
		Find(&invoices).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list invoices: %w", err)
	}
	return invoices, nil
}

// usageRepo counts rows in tables owned by the catalog and ads services.
type usageRepo struct {
	db  *gorm.DB
	cfg config.EntitlementConfig
}

func (r usageRepo) CountProducts(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Table(r.cfg.ProductTable).
		Where(clause.Eq{Column: clause.Column{Name: r.cfg.ProductOwnerCol}, Value: userID}).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count products: %w", err)
	}
	return n, nil
}

func (r usageRepo) CountActiveAds(ctx context.Context, userID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Table(r.cfg.AdTable).
		Where(clause.Eq{Column: clause.Column{Name: r.cfg.AdOwnerCol}, Value: userID}).
		Where(clause.Eq{Column: clause.Column{Name: r.cfg.AdStatusCol}, Value: types.AdStatusActive}).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("failed to count advertisements: %w", err)
	}
	return n, nil
}

type logRepo struct{ db *gorm.DB }

func (r logRepo) SaveSubscriptionLog(ctx context.Context, log *models.SubscriptionLog) error {
	return translate(r.db.WithContext(ctx).Create(log).Error)
}

func (r logRepo) ListSubscriptionLogs(ctx context.Context, subscriptionID string) ([]*models.SubscriptionLog, error) {
	var logs []*models.SubscriptionLog
	err := r.db.WithContext(ctx).
		Where("subscription_id = ?", subscriptionID).
		Order("created_at").Order("id").
		Find(&logs).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list subscription logs: %w", err)
	}
	return logs, nil
}

func (r logRepo) SavePaymentConfirmationLog(ctx context.Context, log *models.PaymentConfirmationLog) error {
	return translate(r.db.WithContext(ctx).Save(log).Error)
}
