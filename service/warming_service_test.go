package service_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/scorecache/fingerprint"
	"github.com/dev-mohitbeniwal/scorecache/model"
	"github.com/dev-mohitbeniwal/scorecache/service"
	"github.com/dev-mohitbeniwal/scorecache/test/mock"
)

func durableRecord(subject, content, policy string, payload string, createdAt time.Time) model.DurableRecord {
	return model.DurableRecord{
		CacheEntry:    model.CacheEntry{Payload: []byte(payload), CreatedAt: createdAt},
		SubjectID:     subject,
		Fingerprint:   fingerprint.Fingerprint([]byte(content)),
		PolicyVersion: policy,
	}
}

func TestWarmRecentCopiesDurableRecords(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	for i := 0; i < 10; i++ {
		h.durable.Add(durableRecord("discovery", fmt.Sprint(i), "v1", fmt.Sprintf(`{"score":%d}`, i), now.Add(-time.Duration(i)*time.Minute)))
	}
	h.durable.Add(durableRecord("discovery", "old", "v1", `{"score":0}`, now.Add(-3*time.Hour)))

	w := service.NewWarmingService(h.keys, h.durable, h.ephemeral, service.WarmingOptions{TTL: time.Hour, Concurrency: 3}, nil)
	stats := w.WarmRecent(context.Background(), time.Hour)

	assert.Equal(t, 10, stats.Scanned)
	assert.Equal(t, 10, stats.Warmed)
	assert.Zero(t, stats.Failed)
	assert.Empty(t, stats.Error)

	c := h.coordinator(t, service.CoordinatorOptions{})
	s := &scorer{}
	res, err := c.Lookup(context.Background(), service.Request{SubjectID: "discovery", Content: []byte("3"), PolicyVersion: "v1"}, s.compute)
	require.NoError(t, err)
	assert.Equal(t, model.ProvenanceFast, res.Provenance)
	assert.Equal(t, 3, res.Value.Score)
}

func TestWarmKeepsNewestDuplicate(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.durable.Add(
		durableRecord("discovery", "hello", "v1", `{"score":1}`, now.Add(-2*time.Minute)),
		durableRecord("discovery", "hello", "v1", `{"score":2}`, now.Add(-time.Minute)),
	)

	w := service.NewWarmingService(h.keys, h.durable, h.ephemeral, service.WarmingOptions{}, nil)
	stats := w.WarmRecent(context.Background(), time.Hour)
	assert.Equal(t, 2, stats.Scanned)
	assert.Equal(t, 1, stats.Warmed)
	assert.Equal(t, 1, stats.Skipped)

	rec, ok := h.ephemeral.Get(context.Background(), h.keys.KeyFor("discovery", []byte("hello"), "v1").String())
	require.True(t, ok)
	assert.Equal(t, `{"score":2}`, string(rec.Payload))
}

func TestWarmSubjectOnlyTouchesSubject(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	h.durable.Add(
		durableRecord("discovery", "a", "v2", `{}`, now),
		durableRecord("relevance", "a", "v2", `{}`, now),
	)

	w := service.NewWarmingService(h.keys, h.durable, h.ephemeral, service.WarmingOptions{}, nil)
	stats := w.WarmSubject(context.Background(), "discovery", time.Hour)
	assert.Equal(t, "discovery", stats.SubjectID)
	assert.Equal(t, 1, stats.Warmed)
	assert.Len(t, h.server.Keys(), 1)
}

func TestWarmWindowClampedToRetention(t *testing.T) {
	h := newHarness(t)
	w := service.NewWarmingService(h.keys, h.durable, h.ephemeral, service.WarmingOptions{}, nil)

	stats := w.WarmRecent(context.Background(), 90*24*time.Hour)
	assert.Equal(t, h.durable.Retention(), stats.Window)
}

func TestWarmPartialFailureWithFastTierDown(t *testing.T) {
	h := newHarness(t)
	now := time.Now()
	for i := 0; i < 4; i++ {
		h.durable.Add(durableRecord("discovery", fmt.Sprint(i), "v1", `{}`, now))
	}
	h.server.Close()

	w := service.NewWarmingService(h.keys, h.durable, h.ephemeral, service.WarmingOptions{Concurrency: 2}, nil)
	var stats model.WarmStats
	assert.NotPanics(t, func() { stats = w.WarmRecent(context.Background(), time.Hour) })
	assert.Equal(t, 4, stats.Scanned)
	assert.Equal(t, 0, stats.Warmed)
	assert.Equal(t, 4, stats.Failed)
}

func TestWarmDurableReadFailure(t *testing.T) {
	h := newHarness(t)
	h.durable.RecentErr = mock.ErrUnavailable

	w := service.NewWarmingService(h.keys, h.durable, h.ephemeral, service.WarmingOptions{}, nil)
	stats := w.WarmRecent(context.Background(), time.Hour)
	assert.NotEmpty(t, stats.Error)
	assert.Zero(t, stats.Scanned)
	assert.Zero(t, stats.Failed)
}

func TestWarmIsIdempotent(t *testing.T) {
	h := newHarness(t)
	h.durable.Add(durableRecord("discovery", "a", "v1", `{}`, time.Now()))

	w := service.NewWarmingService(h.keys, h.durable, h.ephemeral, service.WarmingOptions{}, nil)
	first := w.WarmRecent(context.Background(), time.Hour)
	second := w.WarmRecent(context.Background(), time.Hour)
	assert.Equal(t, first.Warmed, second.Warmed)
	assert.Len(t, h.server.Keys(), 1)
}
