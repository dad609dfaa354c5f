package memory

import (
	"context"
	"time"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/repository"
)

type invoiceRepo struct {
	st *state
	j  *journal
}

func (r invoiceRepo) Create(_ context.Context, inv *models.SubscriptionInvoice) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.invoices[inv.ID]; ok {
		return repository.ErrDuplicate
	}
	for _, other := range r.st.invoices {
		if other.SubscriptionID == inv.SubscriptionID && other.PeriodStart.Equal(inv.PeriodStart) {
			return repository.ErrDuplicate
		}
	}
	r.j.invoice(r.st, inv.ID)
	stamp(&inv.CreatedAt, &inv.UpdatedAt)
	r.st.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (r invoiceRepo) Get(_ context.Context, id string) (*models.SubscriptionInvoice, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	inv, ok := r.st.invoices[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return cloneInvoice(inv), nil
}

func (r invoiceRepo) GetForUpdate(ctx context.Context, id string) (*models.SubscriptionInvoice, error) {
	return r.Get(ctx, id)
}

func (r invoiceRepo) Save(_ context.Context, inv *models.SubscriptionInvoice) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.invoices[inv.ID]; !ok {
		return repository.ErrNotFound
	}
	r.j.invoice(r.st, inv.ID)
	stamp(&inv.CreatedAt, &inv.UpdatedAt)
	r.st.invoices[inv.ID] = cloneInvoice(inv)
	return nil
}

func (r invoiceRepo) ListByUser(_ context.Context, userID string, subscriptionID *string) ([]*models.SubscriptionInvoice, error) {
	r.st.mu.RLock()
	out := make([]*models.SubscriptionInvoice, 0)
	for _, inv := range r.st.invoices {
		sub, ok := r.st.subs[inv.SubscriptionID]
		if !ok || sub.UserID != userID {
			continue
		}
		if subscriptionID != nil && inv.SubscriptionID != *subscriptionID {
			continue
		}
		out = append(out, cloneInvoice(inv))
	}
	r.st.mu.RUnlock()
	newestFirst(out, func(i *models.SubscriptionInvoice) (time.Time, string) { return i.CreatedAt, i.ID })
	return out, nil
}

type usageRepo struct{ st *state }

func (r usageRepo) CountProducts(_ context.Context, userID string) (int64, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	return r.st.products[userID], nil
}

func (r usageRepo) CountActiveAds(_ context.Context, userID string) (int64, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	return r.st.activeAds[userID], nil
}

type logRepo struct{ st *state }

func (r logRepo) SaveSubscriptionLog(_ context.Context, log *models.SubscriptionLog) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now()
	}
	c := *log
	r.st.subLogs = append(r.st.subLogs, &c)
	return nil
}

func (r logRepo) ListSubscriptionLogs(_ context.Context, subscriptionID string) ([]*models.SubscriptionLog, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	out := make([]*models.SubscriptionLog, 0)
	for _, l := range r.st.subLogs {
		if l.SubscriptionID == subscriptionID {
			c := *l
			out = append(out, &c)
		}
	}
	return out, nil
}

func (r logRepo) SavePaymentConfirmationLog(_ context.Context, log *models.PaymentConfirmationLog) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	stamp(&log.CreatedAt, &log.UpdatedAt)
	c := *log
	r.st.paymentLogs = append(r.st.paymentLogs, &c)
	return nil
}

// PaymentConfirmationLogs returns every saved confirmation log in save order.
func (s *Store) PaymentConfirmationLogs() []*models.PaymentConfirmationLog {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	out := make([]*models.PaymentConfirmationLog, 0, len(s.st.paymentLogs))
	for _, l := range s.st.paymentLogs {
		c := *l
		out = append(out, &c)
	}
	return out
}
