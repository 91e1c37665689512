// service/invalidation_service.go
package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/scorecache/logging"
	"github.com/dev-mohitbeniwal/scorecache/model"
	"github.com/dev-mohitbeniwal/scorecache/util"
)

// InvalidationService retires results of an old policy version.
//
// Invalidation is advisory. The policy version is part of every cache key,
// so bumping it already stops old results from being served; this service
// only records the stale count for accounting and clears the fast tier.
type InvalidationService struct {
	durable   DurableStore
	ephemeral EphemeralStore
	warmer    IWarmingService
	eventBus  *util.EventBus
	now       func() time.Time
}

func NewInvalidationService(durable DurableStore, ephemeral EphemeralStore, warmer IWarmingService, eventBus *util.EventBus) *InvalidationService {
	return &InvalidationService{
		durable:   durable,
		ephemeral: ephemeral,
		warmer:    warmer,
		eventBus:  eventBus,
		now:       time.Now,
	}
}

// Invalidate marks the subject's records of oldPolicyVersion stale and clears
// its fast tier keys. It is safe to repeat; a repeat reports a durable count
// of zero. The fast tier is cleared even when the durable marker fails.
func (s *InvalidationService) Invalidate(ctx context.Context, subjectID, oldPolicyVersion string) (model.InvalidationResult, error) {
	start := time.Now()
	result := model.InvalidationResult{SubjectID: subjectID, PolicyVersion: oldPolicyVersion}

	stale, markErr := s.durable.MarkStale(ctx, subjectID, oldPolicyVersion)
	if markErr != nil {
		logger.Error("Failed to record invalidation in durable tier",
			zap.String("subjectID", subjectID),
			zap.String("policyVersion", oldPolicyVersion),
			zap.Error(markErr))
	}
	result.DurableCount = stale
	result.EphemeralCount = s.ephemeral.InvalidatePattern(ctx, subjectID, oldPolicyVersion)

	logger.Info("Cache invalidated",
		zap.String("subjectID", subjectID),
		zap.String("policyVersion", oldPolicyVersion),
		zap.Int("durableCount", result.DurableCount),
		zap.Int("ephemeralCount", result.EphemeralCount),
		zap.Duration("duration", time.Since(start)))

	if markErr != nil {
		return result, markErr
	}

	s.eventBus.Publish(ctx, util.EventCacheInvalidated, model.CacheEvent{
		Type:          util.EventCacheInvalidated,
		SubjectID:     subjectID,
		PolicyVersion: oldPolicyVersion,
		Count:         result.DurableCount,
		Duration:      time.Since(start),
		Details:       map[string]any{"ephemeralCount": result.EphemeralCount},
		Timestamp:     s.now(),
	})
	return result, nil
}

// RotatePolicy invalidates oldPolicyVersion and then warms the subject's
// remaining records so the first requests after a policy update do not all
// miss at once.
func (s *InvalidationService) RotatePolicy(ctx context.Context, subjectID, oldPolicyVersion string, window time.Duration) (model.InvalidationResult, model.WarmStats, error) {
	result, err := s.Invalidate(ctx, subjectID, oldPolicyVersion)
	if err != nil {
		return result, model.WarmStats{}, err
	}
	if s.warmer == nil {
		return result, model.WarmStats{}, nil
	}
	return result, s.warmer.WarmSubject(ctx, subjectID, window), nil
}
