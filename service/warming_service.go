// service/warming_service.go
package service

import (
	"context"
	"time"

	"github.com/sourcegraph/conc/pool"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/dev-mohitbeniwal/scorecache/fingerprint"
	logger "github.com/dev-mohitbeniwal/scorecache/logging"
	"github.com/dev-mohitbeniwal/scorecache/model"
	"github.com/dev-mohitbeniwal/scorecache/util"
)

type WarmingOptions struct {
	TTL         time.Duration
	BatchLimit  int
	Concurrency int
}

// WarmingService copies recent durable records into the fast tier.
type WarmingService struct {
	keys      *fingerprint.Generator
	durable   DurableStore
	ephemeral EphemeralStore
	opts      WarmingOptions
	eventBus  *util.EventBus
	now       func() time.Time
}

func NewWarmingService(keys *fingerprint.Generator, durable DurableStore, ephemeral EphemeralStore, opts WarmingOptions, eventBus *util.EventBus) *WarmingService {
	if keys == nil {
		keys = fingerprint.NewGenerator("")
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.BatchLimit <= 0 {
		opts.BatchLimit = 5000
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = 8
	}
	return &WarmingService{
		keys:      keys,
		durable:   durable,
		ephemeral: ephemeral,
		opts:      opts,
		eventBus:  eventBus,
		now:       time.Now,
	}
}

// WarmRecent warms records of every subject created within window.
func (s *WarmingService) WarmRecent(ctx context.Context, window time.Duration) model.WarmStats {
	return s.warm(ctx, "", window)
}

// WarmSubject warms one subject, typically right after its policy changed.
func (s *WarmingService) WarmSubject(ctx context.Context, subjectID string, window time.Duration) model.WarmStats {
	return s.warm(ctx, subjectID, window)
}

func (s *WarmingService) warm(ctx context.Context, subjectID string, window time.Duration) model.WarmStats {
	start := time.Now()
	if retention := s.durable.Retention(); window <= 0 || window > retention {
		window = retention
	}
	stats := model.WarmStats{SubjectID: subjectID, Window: window}

	records, err := s.durable.RecentRecords(ctx, s.now().Add(-window), subjectID, s.opts.BatchLimit)
	if err != nil {
		stats.Error = err.Error()
		stats.Duration = time.Since(start)
		logger.Error("Cache warming could not read durable tier",
			zap.String("subjectID", subjectID),
			zap.Duration("window", window),
			zap.Error(err))
		return stats
	}
	stats.Scanned = len(records)

	// Records arrive newest first, so the first one seen per key wins.
	seen := make(map[string]struct{}, len(records))
	var warmed, failed atomic.Int64
	p := pool.New().WithMaxGoroutines(s.opts.Concurrency)
	for _, rec := range records {
		key := s.keys.DeriveKey(rec.SubjectID, rec.Fingerprint, rec.PolicyVersion).String()
		if _, dup := seen[key]; dup {
			stats.Skipped++
			continue
		}
		seen[key] = struct{}{}

		rec := rec
		p.Go(func() {
			if ctx.Err() != nil {
				failed.Inc()
				return
			}
			if !s.ephemeral.SetAt(ctx, key, rec.Payload, rec.CreatedAt, s.opts.TTL) {
				failed.Inc()
				logger.Warn("Failed to warm cache entry", zap.String("cacheKey", key), zap.String("recordID", rec.ID))
				return
			}
			warmed.Inc()
		})
	}
	p.Wait()

	stats.Warmed = int(warmed.Load())
	stats.Failed = int(failed.Load())
	stats.Duration = time.Since(start)

	logger.Info("Cache warming finished",
		zap.String("subjectID", subjectID),
		zap.Duration("window", window),
		zap.Int("scanned", stats.Scanned),
		zap.Int("warmed", stats.Warmed),
		zap.Int("failed", stats.Failed),
		zap.Int("skipped", stats.Skipped),
		zap.Duration("duration", stats.Duration))

	s.eventBus.Publish(ctx, util.EventCacheWarmed, model.CacheEvent{
		Type:      util.EventCacheWarmed,
		SubjectID: subjectID,
		Count:     stats.Warmed,
		Duration:  stats.Duration,
		Details: map[string]any{
			"scanned": stats.Scanned,
			"failed":  stats.Failed,
			"skipped": stats.Skipped,
			"window":  window.String(),
		},
		Timestamp: s.now(),
	})
	return stats
}
