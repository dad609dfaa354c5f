// Package repository declares the persistence ports of the subscription
// service. internal/platform/db implements them on postgres and
// internal/repository/memory in process.
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/pkg/types"
)

var (
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned when a write violates a unique constraint.
	ErrDuplicate = errors.New("duplicate record")
)

// Store groups the repositories. Repositories obtained from the Store passed
// to an InTx callback run inside that transaction.
type Store interface {
	Plans() PlanRepository
	Subscriptions() SubscriptionRepository
	Invoices() InvoiceRepository
	Usage() UsageCounter
	Logs() LogRepository
	Stats() StatsRepository
	// InTx runs fn in a transaction, committing when fn returns nil.
	// Calling InTx on a transactional Store joins the running transaction.
	InTx(ctx context.Context, fn func(tx Store) error) error
}

type PlanRepository interface {
	Create(ctx context.Context, plan *models.SubscriptionPlan) error
	Get(ctx context.Context, id string) (*models.SubscriptionPlan, error)
	// List orders by type then price.
	List(ctx context.Context, includeInactive bool) ([]*models.SubscriptionPlan, error)
	// ListActiveByTypes returns active plans of the given types, cheapest first.
	ListActiveByTypes(ctx context.Context, planTypes []types.PlanType) ([]*models.SubscriptionPlan, error)
	Save(ctx context.Context, plan *models.SubscriptionPlan) error
	Delete(ctx context.Context, id string) error
}

// ScanQuery is an admin listing of subscriptions. Filters must be validated
// by the caller.
type ScanQuery struct {
	Filters types.CommonFilters
	From    int
	Size    int
	SortBy  string
	Desc    bool
}

type SubscriptionRepository interface {
	// Create returns ErrDuplicate when the user already has an ACTIVE or TRIAL subscription.
	Create(ctx context.Context, sub *models.Subscription) error
	Get(ctx context.Context, id string) (*models.Subscription, error)
	// GetForUpdate loads and row locks the subscription until the transaction ends.
	GetForUpdate(ctx context.Context, id string) (*models.Subscription, error)
	// FindLatest returns the newest subscription of the user in one of statuses.
	FindLatest(ctx context.Context, userID string, statuses []types.SubscriptionStatus) (*models.Subscription, error)
	ListByUser(ctx context.Context, userID string) ([]*models.Subscription, error)
	Save(ctx context.Context, sub *models.Subscription) error
	CountByPlanAndStatus(ctx context.Context, planID string, status types.SubscriptionStatus) (int64, error)
	// ActivateEndedTrials moves every TRIAL subscription whose trial ended at or
	// before now to ACTIVE and returns the updated rows.
	ActivateEndedTrials(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	// ExpireCancelled moves every ACTIVE subscription cancelled at period end
	// whose period ended at or before now to EXPIRED and returns the updated rows.
	ExpireCancelled(ctx context.Context, now time.Time) ([]*models.Subscription, error)
	// ListDueForRenewal pages ACTIVE, not cancelled subscriptions whose period
	// ended at or before now, ordered by id, starting after afterID.
	ListDueForRenewal(ctx context.Context, now time.Time, afterID string, limit int) ([]*models.Subscription, error)
	Scan(ctx context.Context, q ScanQuery) ([]*models.Subscription, int64, error)
	// SnapshotDaily copies every current subscription into the daily snapshot
	// table for the date of at. Existing rows of that date are kept.
	SnapshotDaily(ctx context.Context, at time.Time) (int64, error)
}

type InvoiceRepository interface {
	// Create returns ErrDuplicate when the period is already billed.
	Create(ctx context.Context, inv *models.SubscriptionInvoice) error
	Get(ctx context.Context, id string) (*models.SubscriptionInvoice, error)
	GetForUpdate(ctx context.Context, id string) (*models.SubscriptionInvoice, error)
	Save(ctx context.Context, inv *models.SubscriptionInvoice) error
	// ListByUser returns invoices of subscriptions owned by userID, newest first,
	// optionally restricted to one subscription.
	ListByUser(ctx context.Context, userID string, subscriptionID *string) ([]*models.SubscriptionInvoice, error)
}

// UsageCounter counts resources owned by a user elsewhere in the platform.
type UsageCounter interface {
	CountProducts(ctx context.Context, userID string) (int64, error)
	CountActiveAds(ctx context.Context, userID string) (int64, error)
}

type LogRepository interface {
	SaveSubscriptionLog(ctx context.Context, log *models.SubscriptionLog) error
	ListSubscriptionLogs(ctx context.Context, subscriptionID string) ([]*models.SubscriptionLog, error)
	SavePaymentConfirmationLog(ctx context.Context, log *models.PaymentConfirmationLog) error
}

// StatPoint is one row of a statistic series. Date is empty for totals.
type StatPoint struct {
	Date  string          `json:"date,omitempty"`
	Label string          `json:"label,omitempty"`
	Value decimal.Decimal `json:"value"`
}

// StatsRepository answers admin reporting queries. Filters must be validated
// by the caller against the columns of the queried table.
type StatsRepository interface {
	DailyInvoiceCount(ctx context.Context, filters types.CommonFilters) ([]StatPoint, error)
	// DailyInvoiceAmount is labelled by currency.
	DailyInvoiceAmount(ctx context.Context, filters types.CommonFilters) ([]StatPoint, error)
	DailyNewSubscriptionCount(ctx context.Context, filters types.CommonFilters) ([]StatPoint, error)
	// SubscriptionStatusCount is labelled by status.
	SubscriptionStatusCount(ctx context.Context, filters types.CommonFilters) ([]StatPoint, error)
	// TotalPaidAmount is labelled by currency.
	TotalPaidAmount(ctx context.Context, filters types.CommonFilters) ([]StatPoint, error)
}
