package cache

import (
	"context"
	"time"

	"github.com/harshith-99/meat-shop/internal/domain"
)

// SummaryCache holds computed reconciliation reports keyed by
// (branch, date). Entries are invalidated whenever a daily update save
// touches the same branch/date.
type SummaryCache interface {
	Get(ctx context.Context, key string) (*domain.ReconciliationReport, bool, error)
	Set(ctx context.Context, key string, value *domain.ReconciliationReport, ttl time.Duration) error
	Invalidate(ctx context.Context, key string) error
}

type NoopSummaryCache struct{}

func (NoopSummaryCache) Get(_ context.Context, _ string) (*domain.ReconciliationReport, bool, error) {
	return nil, false, nil
}

func (NoopSummaryCache) Set(_ context.Context, _ string, _ *domain.ReconciliationReport, _ time.Duration) error {
	return nil
}

func (NoopSummaryCache) Invalidate(_ context.Context, _ string) error {
	return nil
}
