// Package memory is an in-process implementation of repository.Store used by
// tests and local runs without postgres.
package memory

import (
	"context"
	"maps"
	"sort"
	"sync"
	"time"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/repository"
)

type state struct {
	// txMu serialises transactions, which gives GetForUpdate its locking semantics.
	txMu sync.Mutex
	mu   sync.RWMutex

	plans       map[string]*models.SubscriptionPlan
	subs        map[string]*models.Subscription
	invoices    map[string]*models.SubscriptionInvoice
	snapshots   map[string]*models.SubscriptionDailySnapshot
	subLogs     []*models.SubscriptionLog
	paymentLogs []*models.PaymentConfirmationLog
	products    map[string]int64
	activeAds   map[string]int64
}

type Store struct {
	st *state
	// j is set on the Store handed to a transaction body.
	j *journal
}

var _ repository.Store = (*Store)(nil)

func New() *Store {
	return &Store{st: &state{
		plans:     map[string]*models.SubscriptionPlan{},
		subs:      map[string]*models.Subscription{},
		invoices:  map[string]*models.SubscriptionInvoice{},
		snapshots: map[string]*models.SubscriptionDailySnapshot{},
		products:  map[string]int64{},
		activeAds: map[string]int64{},
	}}
}

func (s *Store) Plans() repository.PlanRepository                 { return planRepo{s.st, s.j} }
func (s *Store) Subscriptions() repository.SubscriptionRepository { return subscriptionRepo{s.st, s.j} }
func (s *Store) Invoices() repository.InvoiceRepository           { return invoiceRepo{s.st, s.j} }
func (s *Store) Usage() repository.UsageCounter                   { return usageRepo{s.st} }
func (s *Store) Logs() repository.LogRepository                   { return logRepo{s.st} }
func (s *Store) Stats() repository.StatsRepository                { return statsRepo{s.st} }

// InTx runs fn with a journaling Store and undoes the rows fn wrote when it
// fails. Writes made outside the transaction meanwhile are kept. Logs are
// written outside transactions and survive a rollback.
func (s *Store) InTx(ctx context.Context, fn func(tx repository.Store) error) error {
	if s.j != nil {
		return fn(s)
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.st.txMu.Lock()
	defer s.st.txMu.Unlock()

	j := newJournal()
	if err := fn(&Store{st: s.st, j: j}); err != nil {
		s.st.rollback(j)
		return err
	}
	return nil
}

// SetUsage sets the resource counts returned by Usage for userID.
func (s *Store) SetUsage(userID string, products, activeAds int64) {
	s.st.mu.Lock()
	defer s.st.mu.Unlock()
	s.st.products[userID] = products
	s.st.activeAds[userID] = activeAds
}

// journal holds the image each row had before a transaction first wrote it;
// nil means the row did not exist. Guarded by state.mu like the rows.
type journal struct {
	plans     map[string]*models.SubscriptionPlan
	subs      map[string]*models.Subscription
	invoices  map[string]*models.SubscriptionInvoice
	snapshots map[string]*models.SubscriptionDailySnapshot
}

func newJournal() *journal {
	return &journal{
		plans:     map[string]*models.SubscriptionPlan{},
		subs:      map[string]*models.Subscription{},
		invoices:  map[string]*models.SubscriptionInvoice{},
		snapshots: map[string]*models.SubscriptionDailySnapshot{},
	}
}

func (j *journal) plan(st *state, id string) {
	if j == nil {
		return
	}
	if _, seen := j.plans[id]; !seen {
		j.plans[id] = clonePlan(st.plans[id])
	}
}

func (j *journal) sub(st *state, id string) {
	if j == nil {
		return
	}
	if _, seen := j.subs[id]; !seen {
		var orig *models.Subscription
		if s, ok := st.subs[id]; ok {
			orig = s.Clone()
		}
		j.subs[id] = orig
	}
}

func (j *journal) invoice(st *state, id string) {
	if j == nil {
		return
	}
	if _, seen := j.invoices[id]; !seen {
		j.invoices[id] = cloneInvoice(st.invoices[id])
	}
}

func (j *journal) snapshot(st *state, key string) {
	if j == nil {
		return
	}
	if _, seen := j.snapshots[key]; !seen {
		var orig *models.SubscriptionDailySnapshot
		if s, ok := st.snapshots[key]; ok {
			c := *s
			orig = &c
		}
		j.snapshots[key] = orig
	}
}

func (st *state) rollback(j *journal) {
	st.mu.Lock()
	defer st.mu.Unlock()
	undo(st.plans, j.plans)
	undo(st.subs, j.subs)
	undo(st.invoices, j.invoices)
	undo(st.snapshots, j.snapshots)
}

func undo[T any](rows, orig map[string]*T) {
	for id, v := range orig {
		if v == nil {
			delete(rows, id)
			continue
		}
		rows[id] = v
	}
}

func stamp(created, updated *time.Time) {
	now := time.Now()
	if created.IsZero() {
		*created = now
	}
	*updated = now
}

func clonePlan(p *models.SubscriptionPlan) *models.SubscriptionPlan {
	if p == nil {
		return nil
	}
	c := *p
	c.Benefits = maps.Clone(p.Benefits)
	if p.MaxProducts != nil {
		v := *p.MaxProducts
		c.MaxProducts = &v
	}
	if p.MaxAds != nil {
		v := *p.MaxAds
		c.MaxAds = &v
	}
	if p.CommissionRate != nil {
		v := *p.CommissionRate
		c.CommissionRate = &v
	}
	return &c
}

func cloneInvoice(i *models.SubscriptionInvoice) *models.SubscriptionInvoice {
	if i == nil {
		return nil
	}
	c := *i
	if i.PaidAt != nil {
		v := *i.PaidAt
		c.PaidAt = &v
	}
	if i.ExternalRef != nil {
		v := *i.ExternalRef
		c.ExternalRef = &v
	}
	return &c
}

// newestFirst orders by created_at then id, both descending.
func newestFirst[T any](items []T, key func(T) (time.Time, string)) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, idi := key(items[i])
		tj, idj := key(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return idi > idj
	})
}
