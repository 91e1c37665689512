// service/stats_service.go
package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/scorecache/logging"
	"github.com/dev-mohitbeniwal/scorecache/model"
)

// CounterSource is implemented by Coordinator.
type CounterSource interface {
	Counters() model.CoordinatorCounters
}

type StatsOptions struct {
	Window time.Duration
	// UnitCost is the assumed price of one compute. Savings are an estimate:
	// every hit is valued at one avoided compute.
	UnitCost        float64
	Currency        string
	WarningHitRate  float64
	DegradedHitRate float64
	// MinSamples is the request count below which hit rates are not judged.
	MinSamples int64
}

type StatsService struct {
	durable   DurableStore
	ephemeral EphemeralStore
	counters  CounterSource
	opts      StatsOptions
	now       func() time.Time
}

// NewStatsService builds a stats collector. counters may be nil, in which
// case hits come from the fast tier's own counters.
func NewStatsService(durable DurableStore, ephemeral EphemeralStore, counters CounterSource, opts StatsOptions) *StatsService {
	if opts.Window <= 0 {
		opts.Window = 24 * time.Hour
	}
	if opts.Currency == "" {
		opts.Currency = "USD"
	}
	return &StatsService{
		durable:   durable,
		ephemeral: ephemeral,
		counters:  counters,
		opts:      opts,
		now:       time.Now,
	}
}

func (s *StatsService) Window() time.Duration {
	return s.opts.Window
}

// Snapshot gathers both tiers' statistics, the savings estimate and the
// current health. A durable failure is reported in Durable.Error.
func (s *StatsService) Snapshot(ctx context.Context, window time.Duration) model.StatsSnapshot {
	if window <= 0 {
		window = s.opts.Window
	}
	now := s.now()
	snap := model.StatsSnapshot{
		Window:      window,
		GeneratedAt: now,
		Currency:    s.opts.Currency,
		Ephemeral:   s.ephemeral.Health(ctx),
	}

	durable, err := s.durable.Stats(ctx, now.Add(-window))
	if err != nil {
		logger.Error("Failed to collect durable tier stats", zap.Duration("window", window), zap.Error(err))
		durable.Error = err.Error()
	}
	snap.Durable = durable

	if s.counters != nil {
		counters := s.counters.Counters()
		snap.Coordinator = &counters
		snap.Hits = counters.Hits()
	} else {
		snap.Hits = snap.Ephemeral.Hits
	}
	snap.EstimatedSavings = float64(snap.Hits) * s.opts.UnitCost
	snap.ComputeSpend = float64(snap.Durable.Records) * s.opts.UnitCost
	snap.Health = s.classify(snap.Ephemeral, snap.Coordinator, now)

	logger.Debug("Stats snapshot collected",
		zap.Duration("window", window),
		zap.Int64("hits", snap.Hits),
		zap.Float64("estimatedSavings", snap.EstimatedSavings),
		zap.String("health", string(snap.Health.Status)))
	return snap
}

// Health is computed fresh on every call.
func (s *StatsService) Health(ctx context.Context) model.HealthReport {
	var counters *model.CoordinatorCounters
	if s.counters != nil {
		c := s.counters.Counters()
		counters = &c
	}
	return s.classify(s.ephemeral.Health(ctx), counters, s.now())
}

func (s *StatsService) classify(eph model.EphemeralHealth, counters *model.CoordinatorCounters, now time.Time) model.HealthReport {
	report := model.HealthReport{
		Status:             model.HealthHealthy,
		EphemeralAvailable: eph.Available,
		CheckedAt:          now,
	}

	if counters != nil {
		report.Samples = counters.Requests
		report.HitRate = counters.HitRate()
	} else {
		report.Samples = eph.Hits + eph.Misses
		report.HitRate = eph.HitRate
	}

	raise := func(status model.HealthStatus, reason string) {
		if status == model.HealthDegraded || report.Status == model.HealthHealthy {
			report.Status = status
		}
		report.Reasons = append(report.Reasons, reason)
	}

	if !eph.Available {
		raise(model.HealthDegraded, "fast tier unavailable")
	}
	if report.Samples >= s.opts.MinSamples && report.Samples > 0 {
		switch {
		case report.HitRate < s.opts.DegradedHitRate:
			raise(model.HealthDegraded, fmt.Sprintf("hit rate %.2f below %.2f", report.HitRate, s.opts.DegradedHitRate))
		case report.HitRate < s.opts.WarningHitRate:
			raise(model.HealthWarning, fmt.Sprintf("hit rate %.2f below %.2f", report.HitRate, s.opts.WarningHitRate))
		}
	}
	if counters != nil && counters.DurableReadErrors > 0 {
		raise(model.HealthWarning, fmt.Sprintf("%d durable read errors", counters.DurableReadErrors))
	}
	return report
}
