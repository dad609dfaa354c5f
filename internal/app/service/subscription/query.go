package subscription

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/broxiva/subscriptions/internal/models"
	"github.com/broxiva/subscriptions/internal/repository"
	"github.com/broxiva/subscriptions/pkg/apperr"
	"github.com/broxiva/subscriptions/pkg/types"
)

const (
	defaultScanSize = 20
	maxScanSize     = 200
)

var (
	scanFilterFields = []string{"user_id", "plan_id", "status", "cancel_at_period_end", "current_period_end", "created_at"}
	scanSortFields   = []string{"created_at", "current_period_end", "updated_at"}
)

type ScanRequest struct {
	Filters types.CommonFilters `json:"filters"`
	From    int                 `json:"from"`
	Size    int                 `json:"size"`
	SortBy  string              `json:"sort_by"`
	Desc    bool                `json:"desc"`
}

type ScanResult struct {
	Items []*models.Subscription `json:"items"`
	Total int64                  `json:"total"`
}

// GetCurrentSubscription returns the newest subscription of the user that
// still grants benefits.
func (s *Service) GetCurrentSubscription(ctx context.Context, userID string) (*models.Subscription, error) {
	sub, err := s.store.Subscriptions().FindLatest(ctx, userID, types.CurrentSubscriptionStatuses)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound("user has no current subscription")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get current subscription: %w", err)
	}
	return sub, nil
}

func (s *Service) ListUserSubscriptions(ctx context.Context, userID string) ([]*models.Subscription, error) {
	subs, err := s.store.Subscriptions().ListByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list subscriptions: %w", err)
	}
	return subs, nil
}

func (s *Service) ScanSubscriptions(ctx context.Context, req *ScanRequest) (*ScanResult, error) {
	if err := req.Filters.Validate(scanFilterFields); err != nil {
		return nil, apperr.BadRequest("invalid filters: %v", err)
	}
	if req.From < 0 {
		return nil, apperr.BadRequest("from must not be negative")
	}
	sortBy := req.SortBy
	if sortBy == "" {
		sortBy = "created_at"
	}
	if !slices.Contains(scanSortFields, sortBy) {
		return nil, apperr.BadRequest("unsupported sort field: %q", sortBy)
	}
	size := req.Size
	switch {
	case size <= 0:
		size = defaultScanSize
	case size > maxScanSize:
		size = maxScanSize
	}

	subs, total, err := s.store.Subscriptions().Scan(ctx, repository.ScanQuery{
		Filters: req.Filters,
		From:    req.From,
		Size:    size,
		SortBy:  sortBy,
		Desc:    req.Desc,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan subscriptions: %w", err)
	}
	return &ScanResult{Items: subs, Total: total}, nil
}
