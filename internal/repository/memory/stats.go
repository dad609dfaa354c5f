package memory

import (
	"context"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/pkg/types"
)

type statsRepo struct{ st *state }

type statKey struct{ date, label string }

func (r statsRepo) DailyInvoiceCount(_ context.Context, filters types.CommonFilters) ([]repository.StatPoint, error) {
	return r.groupInvoices(filters, func(inv *models.SubscriptionInvoice) (statKey, decimal.Decimal) {
		return statKey{date: models.SnapshotDate(inv.CreatedAt)}, decimal.NewFromInt(1)
	}), nil
}

func (r statsRepo) DailyInvoiceAmount(_ context.Context, filters types.CommonFilters) ([]repository.StatPoint, error) {
	return r.groupInvoices(filters, func(inv *models.SubscriptionInvoice) (statKey, decimal.Decimal) {
		return statKey{date: models.SnapshotDate(inv.CreatedAt), label: inv.Currency}, inv.Amount
	}), nil
}

func (r statsRepo) TotalPaidAmount(_ context.Context, filters types.CommonFilters) ([]repository.StatPoint, error) {
	return r.groupInvoices(filters, func(inv *models.SubscriptionInvoice) (statKey, decimal.Decimal) {
		if !inv.Paid() {
			return statKey{}, decimal.Decimal{}
		}
		return statKey{label: inv.Currency}, inv.Amount
	}), nil
}

func (r statsRepo) DailyNewSubscriptionCount(_ context.Context, filters types.CommonFilters) ([]repository.StatPoint, error) {
	return r.groupSubscriptions(filters, func(s *models.Subscription) statKey {
		return statKey{date: models.SnapshotDate(s.CreatedAt)}
	}), nil
}

func (r statsRepo) SubscriptionStatusCount(_ context.Context, filters types.CommonFilters) ([]repository.StatPoint, error) {
	return r.groupSubscriptions(filters, func(s *models.Subscription) statKey {
		return statKey{label: string(s.Status)}
	}), nil
}

// groupInvoices sums values per key; a zero key skips the invoice.
func (r statsRepo) groupInvoices(filters types.CommonFilters, fn func(*models.SubscriptionInvoice) (statKey, decimal.Decimal)) []repository.StatPoint {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	sums := map[statKey]decimal.Decimal{}
	for _, inv := range r.st.invoices {
		if !matchAll(invoiceFields(inv), filters) {
			continue
		}
		k, v := fn(inv)
		if k == (statKey{}) {
			continue
		}
		sums[k] = sums[k].Add(v)
	}
	return points(sums)
}

func (r statsRepo) groupSubscriptions(filters types.CommonFilters, fn func(*models.Subscription) statKey) []repository.StatPoint {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	sums := map[statKey]decimal.Decimal{}
	for _, s := range r.st.subs {
		if !matchAll(subscriptionFields(s), filters) {
			continue
		}
		k := fn(s)
		sums[k] = sums[k].Add(decimal.NewFromInt(1))
	}
	return points(sums)
}

func points(sums map[statKey]decimal.Decimal) []repository.StatPoint {
	out := make([]repository.StatPoint, 0, len(sums))
	for k, v := range sums {
		out = append(out, repository.StatPoint{Date: k.date, Label: k.label, Value: v})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date < out[j].Date
		}
		return out[i].Label < out[j].Label
	})
	return out
}

func invoiceFields(inv *models.SubscriptionInvoice) map[string]any {
	return map[string]any{
		"id":              inv.ID,
		"subscription_id": inv.SubscriptionID,
		"status":          string(inv.Status),
		"currency":        inv.Currency,
		"period_start":    inv.PeriodStart,
		"period_end":      inv.PeriodEnd,
		"paid_at":         inv.PaidAt,
		"created_at":      inv.CreatedAt,
	}
}
