// audit/service.go
package audit

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/scorecache/logging"
	"github.com/dev-mohitbeniwal/scorecache/model"
	"github.com/dev-mohitbeniwal/scorecache/util"
)

type Service interface {
	LogEvent(ctx context.Context, log CacheAuditLog) error
	QueryEvents(ctx context.Context, from, to time.Time, subjectID, eventType string) ([]CacheAuditLog, error)
}

type service struct {
	repo Repository
}

func NewService(repo Repository) Service {
	return &service{repo: repo}
}

func (s *service) LogEvent(ctx context.Context, log CacheAuditLog) error {
	return s.repo.LogEvent(ctx, log)
}

func (s *service) QueryEvents(ctx context.Context, from, to time.Time, subjectID, eventType string) ([]CacheAuditLog, error) {
	return s.repo.QueryEvents(ctx, from, to, subjectID, eventType)
}

// Subscribe records every cache event published on bus.
func Subscribe(bus *util.EventBus, svc Service) {
	handler := func(ctx context.Context, event util.Event) error {
		payload, ok := event.Payload.(model.CacheEvent)
		if !ok {
			return fmt.Errorf("unexpected %s payload type: %T", event.Type, event.Payload)
		}
		if err := svc.LogEvent(ctx, FromEvent(payload)); err != nil {
			logger.Warn("Failed to record cache audit event",
				zap.String("eventType", event.Type),
				zap.String("subjectID", payload.SubjectID),
				zap.Error(err))
			return err
		}
		return nil
	}
	for _, eventType := range []string{util.EventCacheComputed, util.EventCacheInvalidated, util.EventCacheWarmed} {
		bus.Subscribe(eventType, handler)
	}
}
