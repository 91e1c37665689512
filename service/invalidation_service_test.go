package service_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	cache_errors "github.com/dev-mohitbeniwal/scorecache/errors"
	"github.com/dev-mohitbeniwal/scorecache/model"
	"github.com/dev-mohitbeniwal/scorecache/service"
	"github.com/dev-mohitbeniwal/scorecache/test/mock"
	"github.com/dev-mohitbeniwal/scorecache/util"
)

func seedScores(t *testing.T, h *harness, c *service.Coordinator[model.Score], subject, policy string, n int) {
	t.Helper()
	for i := 0; i < n; i++ {
		req := service.Request{SubjectID: subject, Content: []byte(fmt.Sprintf("doc-%d", i)), PolicyVersion: policy}
		_, err := c.Lookup(context.Background(), req, (&scorer{score: i}).compute)
		require.NoError(t, err)
	}
}

func TestInvalidateIsIdempotent(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(t, service.CoordinatorOptions{})
	seedScores(t, h, c, "discovery", "v1", 3)
	seedScores(t, h, c, "discovery", "v2", 2)

	inv := service.NewInvalidationService(h.durable, h.ephemeral, nil, nil)

	first, err := inv.Invalidate(context.Background(), "discovery", "v1")
	require.NoError(t, err)
	assert.Equal(t, 3, first.DurableCount)
	assert.Equal(t, 3, first.EphemeralCount)

	second, err := inv.Invalidate(context.Background(), "discovery", "v1")
	require.NoError(t, err)
	assert.Equal(t, 0, second.DurableCount)
	assert.Equal(t, 0, second.EphemeralCount)

	assert.Len(t, h.durable.Records(), 5, "records are never deleted")
	assert.Len(t, h.server.Keys(), 2, "other versions stay in the fast tier")
}

func TestInvalidationIsAdvisory(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(t, service.CoordinatorOptions{})
	seedScores(t, h, c, "discovery", "v1", 1)

	inv := service.NewInvalidationService(h.durable, h.ephemeral, nil, nil)
	_, err := inv.Invalidate(context.Background(), "discovery", "v1")
	require.NoError(t, err)

	// The durable record still answers v1 lookups; only a version bump
	// changes what is served.
	s := &scorer{score: 99}
	res, err := c.Lookup(context.Background(), service.Request{SubjectID: "discovery", Content: []byte("doc-0"), PolicyVersion: "v1"}, s.compute)
	require.NoError(t, err)
	assert.Equal(t, model.ProvenanceDurable, res.Provenance)
	assert.EqualValues(t, 0, s.calls.Load())
}

func TestInvalidateDurableFailureStillClearsFastTier(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(t, service.CoordinatorOptions{})
	seedScores(t, h, c, "discovery", "v1", 2)
	h.durable.MarkErr = mock.ErrUnavailable

	inv := service.NewInvalidationService(h.durable, h.ephemeral, nil, nil)
	res, err := inv.Invalidate(context.Background(), "discovery", "v1")
	assert.ErrorIs(t, err, cache_errors.ErrDurableWrite)
	assert.Equal(t, 2, res.EphemeralCount)
	assert.Empty(t, h.server.Keys())
}

func TestInvalidateWithFastTierDown(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(t, service.CoordinatorOptions{})
	seedScores(t, h, c, "discovery", "v1", 2)
	h.server.Close()

	inv := service.NewInvalidationService(h.durable, h.ephemeral, nil, nil)
	res, err := inv.Invalidate(context.Background(), "discovery", "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, res.DurableCount)
	assert.Equal(t, 0, res.EphemeralCount)
}

func TestInvalidatePublishesEvent(t *testing.T) {
	h := newHarness(t)
	bus := util.NewEventBus()
	var mu sync.Mutex
	var got []model.CacheEvent
	bus.Subscribe(util.EventCacheInvalidated, func(_ context.Context, e util.Event) error {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, e.Payload.(model.CacheEvent))
		return nil
	})

	inv := service.NewInvalidationService(h.durable, h.ephemeral, nil, bus)
	_, err := inv.Invalidate(context.Background(), "discovery", "v1")
	require.NoError(t, err)
	require.NoError(t, bus.Close(context.Background()))

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, got, 1)
	assert.Equal(t, "discovery", got[0].SubjectID)
	assert.Equal(t, "v1", got[0].PolicyVersion)
}

func TestRotatePolicyWarmsSubject(t *testing.T) {
	h := newHarness(t)
	c := h.coordinator(t, service.CoordinatorOptions{})
	seedScores(t, h, c, "discovery", "v1", 2)
	seedScores(t, h, c, "discovery", "v2", 3)
	h.server.FlushAll()

	warmer := service.NewWarmingService(h.keys, h.durable, h.ephemeral, service.WarmingOptions{TTL: time.Hour}, nil)
	inv := service.NewInvalidationService(h.durable, h.ephemeral, warmer, nil)

	res, warm, err := inv.RotatePolicy(context.Background(), "discovery", "v1", time.Hour)
	require.NoError(t, err)
	assert.Equal(t, 2, res.DurableCount)
	assert.Equal(t, 3, warm.Warmed, "only records not covered by the marker are warmed")
	assert.Len(t, h.server.Keys(), 3)
}
