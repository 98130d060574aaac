// Package report aggregates tier usage and cache statistics for dashboards.
// It is a read-only consumer of the engine's logs.
package report

import (
	"context"
	"time"

	"github.com/ledgertier/ledgertier/internal/model"
	"github.com/ledgertier/ledgertier/internal/service"
)

// Service produces usage summaries from the tier log and cache.
type Service struct {
	store service.Storage
}

// NewService creates a reporting service.
func NewService(store service.Storage) *Service {
	return &Service{store: store}
}

// UsageReport is one aggregated view over a lookback window.
type UsageReport struct {
	Since           time.Time
	Cache           *service.CacheStats
	Tiers           []service.TierStat
	AliasCandidates []service.VendorUsage
}

// UsageSince builds the full usage report: per-tier counts and latency,
// cache totals, and the vendors worth promoting to aliases.
func (s *Service) UsageSince(ctx context.Context, lookback time.Duration, minAliasCount int) (*UsageReport, error) {
	since := time.Now().Add(-lookback)

	tiers, err := s.store.GetTierStats(ctx, since)
	if err != nil {
		return nil, err
	}

	cache, err := s.store.GetCacheStats(ctx)
	if err != nil {
		return nil, err
	}

	candidates, err := s.store.GetTopInferenceVendors(ctx, minAliasCount, since)
	if err != nil {
		return nil, err
	}

	return &UsageReport{
		Since:           since,
		Cache:           cache,
		Tiers:           tiers,
		AliasCandidates: candidates,
	}, nil
}

// InferenceShare returns the fraction of attempts that fell through to the
// inference tier, the number cost dashboards watch.
func (r *UsageReport) InferenceShare() float64 {
	var total, inference int
	for _, stat := range r.Tiers {
		total += stat.Count
		if stat.Tier == model.TierInference {
			inference += stat.Count
		}
	}
	if total == 0 {
		return 0
	}
	return float64(inference) / float64(total)
}
