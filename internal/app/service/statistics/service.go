package statistics

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"

	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/pkg/apperr"
	"github.com/broxiva/subscriptions/pkg/logctx"
	"github.com/broxiva/subscriptions/pkg/metrics"
	"github.com/broxiva/subscriptions/pkg/types"
)

type StatisticType string

const (
	// Invoice based
	StatisticTypeDailyInvoiceCount  StatisticType = "daily_invoice_count"
	StatisticTypeDailyInvoiceAmount StatisticType = "daily_invoice_amount"
	StatisticTypeTotalPaidAmount    StatisticType = "total_paid_amount"

	// Subscription based
	StatisticTypeDailyNewSubscriptionCount StatisticType = "daily_new_subscription_count"
	StatisticTypeSubscriptionStatusCount   StatisticType = "subscription_status_count"
)

var (
	invoiceFilterFields      = []string{"subscription_id", "status", "currency", "period_start", "period_end", "paid_at", "created_at"}
	subscriptionFilterFields = []string{"user_id", "plan_id", "status", "cancel_at_period_end", "current_period_end", "created_at"}
)

// filterFields lists the columns each statistic may be filtered on. A filter
// on a column the statistic does not have is dropped for that statistic.
var filterFields = map[StatisticType][]string{
	StatisticTypeDailyInvoiceCount:         invoiceFilterFields,
	StatisticTypeDailyInvoiceAmount:        invoiceFilterFields,
	StatisticTypeTotalPaidAmount:           invoiceFilterFields,
	StatisticTypeDailyNewSubscriptionCount: subscriptionFilterFields,
	StatisticTypeSubscriptionStatusCount:   subscriptionFilterFields,
}

type DataItem struct {
	ID StatisticType `json:"id"`
}

type Request struct {
	Filters   types.CommonFilters `json:"filters"`
	DataItems []*DataItem         `json:"data_items"`
}

// filtersFor returns the filters applicable to statisticType.
func (r *Request) filtersFor(statisticType StatisticType) types.CommonFilters {
	allowed := filterFields[statisticType]
	return lo.Filter(r.Filters, func(f *types.CommonFilter, _ int) bool {
		return lo.Contains(allowed, f.Field)
	})
}

func (r *Request) validate() error {
	if r == nil || len(r.DataItems) == 0 {
		return apperr.BadRequest("data_items must not be empty")
	}
	for _, di := range r.DataItems {
		if di == nil {
			return apperr.BadRequest("nil data item")
		}
		if _, ok := filterFields[di.ID]; !ok {
			return apperr.BadRequest("invalid data item id: %s", di.ID)
		}
	}
	known := lo.Uniq(append(append([]string{}, invoiceFilterFields...), subscriptionFilterFields...))
	if err := r.Filters.Validate(known); err != nil {
		return apperr.BadRequest("invalid filters: %v", err)
	}
	return nil
}

type Response struct {
	DataItems map[StatisticType][]repository.StatPoint `json:"data_items"`
}

type Service struct {
	store   repository.Store
	metrics *metrics.Business
	log     *zap.SugaredLogger
}

func New(store repository.Store, m *metrics.Business, log *zap.SugaredLogger) *Service {
	return &Service{store: store, metrics: m, log: log}
}

var Module = fx.Options(
	fx.Provide(New),
)

func (s *Service) get(ctx context.Context, request *Request, id StatisticType) ([]repository.StatPoint, error) {
	stats := s.store.Stats()
	filters := request.filtersFor(id)
	switch id {
	case StatisticTypeDailyInvoiceCount:
		return stats.DailyInvoiceCount(ctx, filters)
	case StatisticTypeDailyInvoiceAmount:
		return stats.DailyInvoiceAmount(ctx, filters)
	case StatisticTypeTotalPaidAmount:
		return stats.TotalPaidAmount(ctx, filters)
	case StatisticTypeDailyNewSubscriptionCount:
		return stats.DailyNewSubscriptionCount(ctx, filters)
	case StatisticTypeSubscriptionStatusCount:
		return stats.SubscriptionStatusCount(ctx, filters)
	default:
		return nil, apperr.BadRequest("invalid data item id: %s", id)
	}
}

type result struct {
	entry lo.Entry[StatisticType, []repository.StatPoint]
	err   error
}

// GetStatistic computes every requested data item concurrently and fails on
// the first error.
func (s *Service) GetStatistic(ctx context.Context, request *Request) (*Response, error) {
	if err := request.validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer s.metrics.ObserveProcess("statistics", "get", start)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	var wg sync.WaitGroup
	resChan := make(chan result, len(request.DataItems))
	for _, item := range request.DataItems {
		wg.Add(1)
		go func(id StatisticType) {
			defer wg.Done()
			points, err := s.get(ctx, request, id)
			resChan <- result{entry: lo.Entry[StatisticType, []repository.StatPoint]{Key: id, Value: points}, err: err}
		}(item.ID)
	}
	go func() { wg.Wait(); close(resChan) }()

	results := make(map[StatisticType][]repository.StatPoint, len(request.DataItems))
	for res := range resChan {
		if res.err != nil {
			logctx.FromCtx(ctx, s.log).Errorw("failed to compute statistic", "id", res.entry.Key, "err", res.err)
			return nil, fmt.Errorf("failed to compute %s: %w", res.entry.Key, res.err)
		}
		results[res.entry.Key] = lo.Ternary(res.entry.Value == nil, []repository.StatPoint{}, res.entry.Value)
	}
	return &Response{DataItems: results}, nil
}
