// service/services.go
package service

import (
	"context"
	"time"

	"github.com/dev-mohitbeniwal/scorecache/config"
	"github.com/dev-mohitbeniwal/scorecache/fingerprint"
	"github.com/dev-mohitbeniwal/scorecache/model"
	"github.com/dev-mohitbeniwal/scorecache/util"
)

type IInvalidationService interface {
	Invalidate(ctx context.Context, subjectID, oldPolicyVersion string) (model.InvalidationResult, error)
	RotatePolicy(ctx context.Context, subjectID, oldPolicyVersion string, window time.Duration) (model.InvalidationResult, model.WarmStats, error)
}

type IWarmingService interface {
	WarmRecent(ctx context.Context, window time.Duration) model.WarmStats
	WarmSubject(ctx context.Context, subjectID string, window time.Duration) model.WarmStats
}

type IStatsService interface {
	Snapshot(ctx context.Context, window time.Duration) model.StatsSnapshot
	Health(ctx context.Context) model.HealthReport
	Window() time.Duration
}

type Services struct {
	Scores       *Coordinator[model.Score]
	Invalidation IInvalidationService
	Warming      IWarmingService
	Stats        IStatsService
}

func InitializeServices(
	cfg *config.Configuration,
	keys *fingerprint.Generator,
	ephemeral EphemeralStore,
	durable DurableStore,
	eventBus *util.EventBus,
) (*Services, error) {
	scores := NewCoordinator[model.Score](keys, ephemeral, durable, JSONCodec[model.Score]{}, CoordinatorOptions{
		TTL:               cfg.Cache.TTL,
		SingleFlight:      cfg.Cache.SingleFlight,
		LeaseTTL:          cfg.Cache.LeaseTTL,
		LeaseWait:         cfg.Cache.LeaseWait,
		ReadRepairTimeout: cfg.Cache.ReadRepairTimeout,
	}, eventBus)

	warming := NewWarmingService(keys, durable, ephemeral, WarmingOptions{
		TTL:         cfg.Cache.TTL,
		BatchLimit:  cfg.Warming.BatchLimit,
		Concurrency: cfg.Warming.Concurrency,
	}, eventBus)

	services := &Services{
		Scores:       scores,
		Invalidation: NewInvalidationService(durable, ephemeral, warming, eventBus),
		Warming:      warming,
		Stats: NewStatsService(durable, ephemeral, scores, StatsOptions{
			Window:          cfg.Stats.Window,
			UnitCost:        cfg.Stats.UnitCost,
			Currency:        cfg.Stats.Currency,
			WarningHitRate:  cfg.Stats.WarningHitRate,
			DegradedHitRate: cfg.Stats.DegradedHitRate,
			MinSamples:      cfg.Stats.MinSamples,
		}),
	}

	return services, nil
}
