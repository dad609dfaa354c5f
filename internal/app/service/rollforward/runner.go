package rollforward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/internal/platform/runlock"
	"github.com/broxiva/subscriptions/pkg/apperr"
	"github.com/broxiva/subscriptions/pkg/config"
)

// Runner runs the Job under the run lock. It backs the admin endpoint, the
// in-process ticker and cmd/rollforward.
type Runner struct {
	job    *Job
	locker runlock.Locker
	cfg    config.RollforwardConfig
	log    *zap.SugaredLogger
}

func NewRunner(job *Job, locker runlock.Locker, cfg *config.Config, log *zap.SugaredLogger) *Runner {
	return &Runner{job: job, locker: locker, cfg: cfg.Rollforward, log: log.With("component", "rollforward")}
}

// Run executes one locked pass. A pass already running elsewhere yields a
// Conflict error. With snapshot set the daily snapshot is taken after the pass.
func (r *Runner) Run(ctx context.Context, snapshot bool) (*Result, error) {
	release, err := r.locker.Acquire(ctx, r.cfg.LockKey, r.cfg.LockTTL)
	if errors.Is(err, runlock.ErrHeld) {
		return nil, apperr.Conflict("a roll-forward run is already in progress")
	}
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := release(context.WithoutCancel(ctx)); err != nil {
			r.log.Warnw("failed to release run lock", "key", r.cfg.LockKey, "err", err)
		}
	}()

	res, runErr := r.job.Run(ctx)
	if snapshot {
		if _, err := r.job.Snapshot(ctx); err != nil {
			runErr = errors.Join(runErr, err)
		}
	}
	if runErr != nil {
		return res, fmt.Errorf("rollforward run: %w", runErr)
	}
	return res, nil
}

// startTicker runs a pass every interval until the app stops. Passes that
// find the lock held are skipped.
func startTicker(lc fx.Lifecycle, r *Runner) {
	if r.cfg.Interval <= 0 {
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	lc.Append(fx.Hook{
		OnStart: func(context.Context) error {
			r.log.Infow("rollforward ticker started", "interval", r.cfg.Interval)
			go func() {
				defer close(done)
				t := time.NewTicker(r.cfg.Interval)
				defer t.Stop()
				for {
					select {
					case <-ctx.Done():
						return
					case <-t.C:
						if _, err := r.Run(ctx, true); err != nil {
							r.log.Errorw("scheduled rollforward failed", "err", err)
						}
					}
				}
			}()
			return nil
		},
		OnStop: func(stopCtx context.Context) error {
			cancel()
			select {
			case <-done:
				return nil
			case <-stopCtx.Done():
				return stopCtx.Err()
			}
		},
	})
}
