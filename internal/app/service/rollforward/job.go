package rollforward

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/internal/app/service/changelog"
	"github.com/broxiva/subscriptions/internal/app/service/invoice"
	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/platform/eventbus"
	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/pkg/config"
	"github.com/broxiva/subscriptions/pkg/logctx"
	"github.com/broxiva/subscriptions/pkg/metrics"
	"github.com/broxiva/subscriptions/pkg/types"
)

const (
	outcomeOK      = "ok"
	outcomeFailed  = "failed"
	outcomeSkipped = "skipped"
)

// Result counts what one run did.
type Result struct {
	StartedAt       time.Time `json:"started_at"`
	TrialsActivated int       `json:"trials_activated"`
	Expired         int       `json:"expired"`
	Renewed         int       `json:"renewed"`
	Skipped         int       `json:"skipped"`
	Failed          int       `json:"failed"`
}

// Job runs the roll-forward sweeps. It does not prevent overlapping runs;
// callers hold a runlock.Locker for that.
type Job struct {
	store     repository.Store
	invoices  *invoice.Service
	changelog *changelog.Service
	bus       eventbus.Emitter
	metrics   *metrics.Business
	log       *zap.SugaredLogger
	batchSize int
	now       func() time.Time
}

func NewJob(store repository.Store, cfg *config.Config, invoices *invoice.Service, cl *changelog.Service,
	bus eventbus.Emitter, m *metrics.Business, log *zap.SugaredLogger,
) *Job {
	return &Job{
		store:     store,
		invoices:  invoices,
		changelog: cl,
		bus:       bus,
		metrics:   m,
		log:       log.With("component", "rollforward"),
		batchSize: cfg.Rollforward.BatchSize,
		now:       time.Now,
	}
}

var Module = fx.Options(
	fx.Provide(NewJob, NewRunner),
	fx.Invoke(startTicker),
)

// Run executes one pass. Failures of single subscriptions do not stop the
// pass; they are counted and returned joined.
func (j *Job) Run(ctx context.Context) (*Result, error) {
	now := j.now()
	res := &Result{StartedAt: now}
	log := logctx.FromCtx(ctx, j.log)
	log.Infow("rollforward started", "now", now)

	var errs []error
	if n, err := j.activateTrials(ctx, now); err != nil {
		errs = append(errs, err)
	} else {
		res.TrialsActivated = n
	}
	if n, err := j.expireCancelled(ctx, now); err != nil {
		errs = append(errs, err)
	} else {
		res.Expired = n
	}
	errs = append(errs, j.renewDue(ctx, now, res)...)

	j.metrics.RollforwardOutcome(string(ActionRenew), outcomeOK, res.Renewed)
	j.metrics.RollforwardOutcome(string(ActionRenew), outcomeSkipped, res.Skipped)
	j.metrics.RollforwardOutcome(string(ActionRenew), outcomeFailed, res.Failed)
	j.metrics.RollforwardFinished(now)
	j.metrics.ObserveProcess("rollforward", "run", now)

	err := errors.Join(errs...)
	if err != nil {
		log.Errorw("rollforward finished with errors", "result", res, "err", err)
	} else {
		log.Infow("rollforward finished", "result", res)
	}
	return res, err
}

func (j *Job) activateTrials(ctx context.Context, now time.Time) (int, error) {
	subs, err := j.store.Subscriptions().ActivateEndedTrials(ctx, now)
	if err != nil {
		j.metrics.RollforwardOutcome(string(ActionActivateTrial), outcomeFailed, 1)
		return 0, fmt.Errorf("failed to activate ended trials: %w", err)
	}
	j.announce(ctx, subs, types.SubscriptionStatusTrial, types.SubscriptionChangeReasonTrialEnded, eventbus.SubscriptionTrialEnded)
	j.metrics.RollforwardOutcome(string(ActionActivateTrial), outcomeOK, len(subs))
	return len(subs), nil
}

func (j *Job) expireCancelled(ctx context.Context, now time.Time) (int, error) {
	subs, err := j.store.Subscriptions().ExpireCancelled(ctx, now)
	if err != nil {
		j.metrics.RollforwardOutcome(string(ActionExpire), outcomeFailed, 1)
		return 0, fmt.Errorf("failed to expire cancelled subscriptions: %w", err)
	}
	j.announce(ctx, subs, types.SubscriptionStatusActive, types.SubscriptionChangeReasonExpired, eventbus.SubscriptionExpired)
	j.metrics.RollforwardOutcome(string(ActionExpire), outcomeOK, len(subs))
	return len(subs), nil
}

// announce logs and publishes subscriptions moved by a bulk update. The
// before image only differs from the row in its previous status.
func (j *Job) announce(ctx context.Context, subs []*models.Subscription, from types.SubscriptionStatus,
	reason types.SubscriptionChangeReason, routingKey string,
) {
	for _, sub := range subs {
		before := sub.Clone()
		before.Status = from
		j.changelog.Record(ctx, reason, before, sub, map[string]any{"source": "rollforward"})
		j.bus.Emit(ctx, routingKey, sub)
	}
}

func (j *Job) renewDue(ctx context.Context, now time.Time, res *Result) []error {
	var errs []error
	afterID := ""
	for {
		if err := ctx.Err(); err != nil {
			return append(errs, err)
		}
		batch, err := j.store.Subscriptions().ListDueForRenewal(ctx, now, afterID, j.batchSize)
		if err != nil {
			return append(errs, fmt.Errorf("failed to list subscriptions due for renewal: %w", err))
		}
		for _, sub := range batch {
			afterID = sub.ID
			renewed, err := j.renew(ctx, sub.ID, now)
			switch {
			case err != nil:
				res.Failed++
				errs = append(errs, fmt.Errorf("renew subscription %s: %w", sub.ID, err))
				logctx.FromCtx(ctx, j.log).Errorw("failed to renew subscription", "subscription_id", sub.ID, "err", err)
			case renewed:
				res.Renewed++
			default:
				res.Skipped++
			}
		}
		if len(batch) < j.batchSize {
			return errs
		}
	}
}

// renew advances one subscription inside its own transaction. It re-decides
// under the row lock and reports false when the subscription is no longer due.
func (j *Job) renew(ctx context.Context, id string, now time.Time) (bool, error) {
	var before, after *models.Subscription
	var inv *models.SubscriptionInvoice
	err := j.store.InTx(ctx, func(tx repository.Store) error {
		sub, err := tx.Subscriptions().GetForUpdate(ctx, id)
		if err != nil {
			return fmt.Errorf("failed to lock subscription: %w", err)
		}
		plan, err := tx.Plans().Get(ctx, sub.PlanID)
		if err != nil {
			return fmt.Errorf("failed to get plan %s: %w", sub.PlanID, err)
		}
		d := Decide(now, sub, plan)
		if d.Action != ActionRenew {
			return nil
		}
		before = sub.Clone()
		Apply(sub, d)
		if err := tx.Subscriptions().Save(ctx, sub); err != nil {
			return fmt.Errorf("failed to save subscription: %w", err)
		}
		after = sub
		if plan.Price.IsPositive() {
			inv, err = j.invoices.CreateInvoice(ctx, tx, sub.ID, plan.Price, d.PeriodStart, d.PeriodEnd)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil || after == nil {
		return false, err
	}

	extra := map[string]any{"source": "rollforward"}
	if inv != nil {
		extra["invoice_id"] = inv.ID
	}
	j.changelog.Record(ctx, types.SubscriptionChangeReasonRenewed, before, after, extra)
	j.bus.Emit(ctx, eventbus.SubscriptionRenewed, after)
	j.invoices.Created(ctx, inv)
	return true, nil
}

// Snapshot copies the current subscriptions into today's daily snapshot.
func (j *Job) Snapshot(ctx context.Context) (int64, error) {
	n, err := j.store.Subscriptions().SnapshotDaily(ctx, j.now())
	if err != nil {
		return 0, fmt.Errorf("failed to snapshot subscriptions: %w", err)
	}
	logctx.FromCtx(ctx, j.log).Infow("subscriptions snapshotted", "rows", n, "date", models.SnapshotDate(j.now()))
	return n, nil
}
