// util/event_bus.go

package util

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	logger "github.com/dev-mohitbeniwal/scorecache/logging"
)

// Cache event types.
const (
	EventCacheComputed    = "cache.computed"
	EventCacheInvalidated = "cache.invalidated"
	EventCacheWarmed      = "cache.warmed"
)

// Event represents an event in the system
type Event struct {
	Type    string
	Payload interface{}
}

// EventHandler is a function that handles an event
type EventHandler func(context.Context, Event) error

// EventBus delivers events to subscribers asynchronously. Handler failures
// are logged; they never reach the publisher.
type EventBus struct {
	subscribers map[string][]EventHandler
	mu          sync.RWMutex
	errorChan   chan error
	inflight    sync.WaitGroup
	closed      bool
}

// NewEventBus creates a new EventBus
func NewEventBus() *EventBus {
	return &EventBus{
		subscribers: make(map[string][]EventHandler),
		errorChan:   make(chan error, 100),
	}
}

// Subscribe adds a new subscriber for a specific event type
func (eb *EventBus) Subscribe(eventType string, handler EventHandler) {
	eb.mu.Lock()
	defer eb.mu.Unlock()

	eb.subscribers[eventType] = append(eb.subscribers[eventType], handler)
}

// Publish sends an event to all subscribers. Handlers run on a context that
// outlives the publisher's request.
func (eb *EventBus) Publish(ctx context.Context, eventType string, payload interface{}) {
	if eb == nil {
		return
	}
	eb.mu.RLock()
	if eb.closed {
		eb.mu.RUnlock()
		logger.Debug("Event bus closed, dropping event", zap.String("eventType", eventType))
		return
	}
	handlers := append([]EventHandler(nil), eb.subscribers[eventType]...)
	eb.inflight.Add(len(handlers))
	eb.mu.RUnlock()

	if len(handlers) == 0 {
		return
	}

	event := Event{
		Type:    eventType,
		Payload: payload,
	}
	handlerCtx := context.WithoutCancel(ctx)

	for _, handler := range handlers {
		go func(h EventHandler) {
			defer eb.inflight.Done()
			if err := h(handlerCtx, event); err != nil {
				select {
				case eb.errorChan <- fmt.Errorf("event handler error for %s: %w", eventType, err):
				default:
					logger.Error("Error channel full, logging event handler error",
						zap.Error(err),
						zap.String("eventType", eventType))
				}
			}
		}(handler)
	}
}

// Start begins processing handler errors until ctx is done.
func (eb *EventBus) Start(ctx context.Context) {
	go eb.processErrors(ctx)
}

func (eb *EventBus) processErrors(ctx context.Context) {
	for {
		select {
		case err := <-eb.errorChan:
			logger.Error("Event handler error", zap.Error(err))
		case <-ctx.Done():
			return
		}
	}
}

// Close stops accepting events and waits for running handlers, or until ctx
// is done.
func (eb *EventBus) Close(ctx context.Context) error {
	eb.mu.Lock()
	eb.closed = true
	eb.mu.Unlock()

	done := make(chan struct{})
	go func() {
		eb.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("event bus drain: %w", ctx.Err())
	}
}
