package memory

import (
	"context"
	"slices"
	"sort"
	"time"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/pkg/tool"
	"github.com/broxiva/subscriptions/pkg/types"
)

type subscriptionRepo struct {
	st *state
	j  *journal
}

// liveConflict mirrors the partial unique index on user_id for ACTIVE and TRIAL rows.
func (st *state) liveConflict(sub *models.Subscription) bool {
	if !sub.Live() {
		return false
	}
	for _, other := range st.subs {
		if other.ID != sub.ID && other.UserID == sub.UserID && other.Live() {
			return true
		}
	}
	return false
}

func (r subscriptionRepo) Create(_ context.Context, sub *models.Subscription) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.subs[sub.ID]; ok || r.st.liveConflict(sub) {
		return repository.ErrDuplicate
	}
	r.j.sub(r.st, sub.ID)
	stamp(&sub.CreatedAt, &sub.UpdatedAt)
	r.st.subs[sub.ID] = sub.Clone()
	return nil
}

func (r subscriptionRepo) Get(_ context.Context, id string) (*models.Subscription, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	s, ok := r.st.subs[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return s.Clone(), nil
}

func (r subscriptionRepo) GetForUpdate(ctx context.Context, id string) (*models.Subscription, error) {
	return r.Get(ctx, id)
}

func (r subscriptionRepo) FindLatest(_ context.Context, userID string, statuses []types.SubscriptionStatus) (*models.Subscription, error) {
	out := r.collect(func(s *models.Subscription) bool {
		return s.UserID == userID && slices.Contains(statuses, s.Status)
	})
	if len(out) == 0 {
		return nil, repository.ErrNotFound
	}
	return out[0], nil
}

func (r subscriptionRepo) ListByUser(_ context.Context, userID string) ([]*models.Subscription, error) {
	return r.collect(func(s *models.Subscription) bool { return s.UserID == userID }), nil
}

func (r subscriptionRepo) Save(_ context.Context, sub *models.Subscription) error {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	if _, ok := r.st.subs[sub.ID]; !ok {
		return repository.ErrNotFound
	}
	if r.st.liveConflict(sub) {
		return repository.ErrDuplicate
	}
	r.j.sub(r.st, sub.ID)
	stamp(&sub.CreatedAt, &sub.UpdatedAt)
	r.st.subs[sub.ID] = sub.Clone()
	return nil
}

func (r subscriptionRepo) CountByPlanAndStatus(_ context.Context, planID string, status types.SubscriptionStatus) (int64, error) {
	r.st.mu.RLock()
	defer r.st.mu.RUnlock()
	var n int64
	for _, s := range r.st.subs {
		if s.PlanID == planID && s.Status == status {
			n++
		}
	}
	return n, nil
}

func (r subscriptionRepo) ActivateEndedTrials(_ context.Context, now time.Time) ([]*models.Subscription, error) {
	return r.bulkUpdate(
		func(s *models.Subscription) bool { return s.TrialEnded(now) },
		func(s *models.Subscription) { s.Status = types.SubscriptionStatusActive },
	), nil
}

func (r subscriptionRepo) ExpireCancelled(_ context.Context, now time.Time) ([]*models.Subscription, error) {
	return r.bulkUpdate(
		func(s *models.Subscription) bool { return s.CancellationDue(now) },
		func(s *models.Subscription) { s.Status = types.SubscriptionStatusExpired },
	), nil
}

func (r subscriptionRepo) ListDueForRenewal(_ context.Context, now time.Time, afterID string, limit int) ([]*models.Subscription, error) {
	r.st.mu.RLock()
	out := make([]*models.Subscription, 0)
	for _, s := range r.st.subs {
		if s.ID > afterID && s.RenewalDue(now) {
			out = append(out, s.Clone())
		}
	}
	r.st.mu.RUnlock()
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r subscriptionRepo) Scan(_ context.Context, q repository.ScanQuery) ([]*models.Subscription, int64, error) {
	r.st.mu.RLock()
	out := make([]*models.Subscription, 0)
	for _, s := range r.st.subs {
		if matchAll(subscriptionFields(s), q.Filters) {
			out = append(out, s.Clone())
		}
	}
	r.st.mu.RUnlock()

	sortBy := q.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	sort.SliceStable(out, func(i, j int) bool {
		c := compareValues(subscriptionFields(out[i])[sortBy], subscriptionFields(out[j])[sortBy])
		if c == 0 {
			c = compareValues(out[i].ID, out[j].ID)
		}
		if q.Desc {
			return c > 0
		}
		return c < 0
	})

	total := int64(len(out))
	from := min(max(q.From, 0), len(out))
	out = out[from:]
	if q.Size > 0 && len(out) > q.Size {
		out = out[:q.Size]
	}
	return out, total, nil
}

func (r subscriptionRepo) SnapshotDaily(_ context.Context, at time.Time) (int64, error) {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	date := models.SnapshotDate(at)
	var n int64
	for _, s := range r.st.subs {
		if !slices.Contains(types.CurrentSubscriptionStatuses, s.Status) {
			continue
		}
		key := s.ID + "|" + date
		if _, ok := r.st.snapshots[key]; ok {
			continue
		}
		r.j.snapshot(r.st, key)
		r.st.snapshots[key] = &models.SubscriptionDailySnapshot{
			ID:                tool.GenerateUUIDV7(),
			SubscriptionID:    s.ID,
			SnapshotDate:      date,
			UserID:            s.UserID,
			PlanID:            s.PlanID,
			Status:            s.Status,
			CurrentPeriodEnd:  s.CurrentPeriodEnd,
			CancelAtPeriodEnd: s.CancelAtPeriodEnd,
			SnapshotCreatedAt: at,
		}
		n++
	}
	return n, nil
}

// Snapshots returns the snapshot rows of date.
func (s *Store) Snapshots(date string) []*models.SubscriptionDailySnapshot {
	s.st.mu.RLock()
	defer s.st.mu.RUnlock()
	var out []*models.SubscriptionDailySnapshot
	for _, snap := range s.st.snapshots {
		if snap.SnapshotDate == date {
			c := *snap
			out = append(out, &c)
		}
	}
	return out
}

func (r subscriptionRepo) bulkUpdate(match func(*models.Subscription) bool, apply func(*models.Subscription)) []*models.Subscription {
	r.st.mu.Lock()
	defer r.st.mu.Unlock()
	var out []*models.Subscription
	now := time.Now()
	for _, s := range r.st.subs {
		if !match(s) {
			continue
		}
		r.j.sub(r.st, s.ID)
		apply(s)
		s.UpdatedAt = now
		out = append(out, s.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (r subscriptionRepo) collect(keep func(*models.Subscription) bool) []*models.Subscription {
	r.st.mu.RLock()
	out := make([]*models.Subscription, 0)
	for _, s := range r.st.subs {
		if keep(s) {
			out = append(out, s.Clone())
		}
	}
	r.st.mu.RUnlock()
	newestFirst(out, func(s *models.Subscription) (time.Time, string) { return s.CreatedAt, s.ID })
	return out
}

func subscriptionFields(s *models.Subscription) map[string]any {
	return map[string]any{
		"id":                   s.ID,
		"user_id":              s.UserID,
		"plan_id":              s.PlanID,
		"status":               string(s.Status),
		"cancel_at_period_end": s.CancelAtPeriodEnd,
		"current_period_start": s.CurrentPeriodStart,
		"current_period_end":   s.CurrentPeriodEnd,
		"created_at":           s.CreatedAt,
		"updated_at":           s.UpdatedAt,
	}
}
