package rollforward

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/platform/runlock"
	"github.com/broxiva/subscriptions/pkg/apperr"
	"github.com/broxiva/subscriptions/pkg/config"
	"github.com/broxiva/subscriptions/pkg/types"
)

func newRunner(f *fixture, locker runlock.Locker) *Runner {
	cfg := &config.Config{Rollforward: config.RollforwardConfig{LockKey: "test:rollforward", LockTTL: time.Minute}}
	return NewRunner(f.job, locker, cfg, zap.NewNop().Sugar())
}

func TestRunner_RunsUnderLock(t *testing.T) {
	f := newFixture(t, 10)
	ctx := context.Background()
	f.add(t, &models.Subscription{
		Status:             types.SubscriptionStatusActive,
		CurrentPeriodStart: now.AddDate(0, -1, -1),
		CurrentPeriodEnd:   now.AddDate(0, 0, -1),
	})
	locker := runlock.NewLocal()
	r := newRunner(f, locker)

	res, err := r.Run(ctx, true)
	require.NoError(t, err)
	require.Equal(t, 1, res.Renewed)
	require.Len(t, f.st.Snapshots(models.SnapshotDate(now)), 1)

	// released after the run
	release, err := locker.Acquire(ctx, "test:rollforward", time.Minute)
	require.NoError(t, err)

	_, err = r.Run(ctx, false)
	require.ErrorIs(t, err, apperr.ErrConflict)

	require.NoError(t, release(ctx))
	_, err = r.Run(ctx, false)
	require.NoError(t, err)
	f.settle()
}
