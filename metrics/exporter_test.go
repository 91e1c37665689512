package metrics

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/scorecache/model"
)

func sampleSnapshot() model.StatsSnapshot {
	return model.StatsSnapshot{
		Window:           24 * time.Hour,
		GeneratedAt:      time.Unix(1_700_000_000, 0),
		Ephemeral:        model.EphemeralHealth{Available: true, Hits: 8, Misses: 2, HitRate: 0.8, MemoryUsed: 2048, KeyCount: 10},
		Durable:          model.DurableStats{Records: 4, UniqueKeys: 3, DuplicateRecords: 1, Subjects: 2, Bytes: 512},
		Coordinator:      &model.CoordinatorCounters{Requests: 12, FastHits: 8, DurableHits: 2, Computes: 2},
		Hits:             10,
		EstimatedSavings: 0.02,
		ComputeSpend:     0.008,
		Currency:         "USD",
		Health:           model.HealthReport{Status: model.HealthWarning},
	}
}

func TestExporterEmitsNothingBeforeUpdate(t *testing.T) {
	assert.Equal(t, 0, testutil.CollectAndCount(NewExporter()))
}

func TestExporterCollectsSnapshot(t *testing.T) {
	e := NewExporter()
	e.Update(sampleSnapshot())

	expected := `
# HELP scorecache_coordinator_hits_total Lookups answered without compute, by tier.
# TYPE scorecache_coordinator_hits_total counter
scorecache_coordinator_hits_total{tier="durable"} 2
scorecache_coordinator_hits_total{tier="fast"} 8
# HELP scorecache_health_status 1 for the current health status, 0 otherwise.
# TYPE scorecache_health_status gauge
scorecache_health_status{status="degraded"} 0
scorecache_health_status{status="healthy"} 0
scorecache_health_status{status="warning"} 1
# HELP scorecache_estimated_savings Estimated compute cost avoided by cache hits.
# TYPE scorecache_estimated_savings gauge
scorecache_estimated_savings{currency="USD"} 0.02
`
	require.NoError(t, testutil.CollectAndCompare(e, strings.NewReader(expected),
		"scorecache_coordinator_hits_total",
		"scorecache_health_status",
		"scorecache_estimated_savings",
	))
}

func TestExporterSkipsDurableGaugesOnError(t *testing.T) {
	snap := sampleSnapshot()
	snap.Durable = model.DurableStats{Error: "durable stats: unavailable"}
	snap.Coordinator = nil

	e := NewExporter()
	e.Update(snap)
	assert.Equal(t, 0, testutil.CollectAndCount(e, "scorecache_durable_records", "scorecache_compute_spend"))
	assert.Equal(t, 0, testutil.CollectAndCount(e, "scorecache_coordinator_requests_total"))
	assert.Equal(t, 1, testutil.CollectAndCount(e, "scorecache_ephemeral_up"))
}

func TestWriteText(t *testing.T) {
	reg := prometheus.NewRegistry()
	e := NewExporter()
	require.NoError(t, reg.Register(e))
	e.Update(sampleSnapshot())

	var buf bytes.Buffer
	require.NoError(t, WriteText(&buf, reg))
	out := buf.String()

	assert.Contains(t, out, "# HELP scorecache_ephemeral_up")
	assert.Contains(t, out, "# TYPE scorecache_ephemeral_up gauge")
	assert.Contains(t, out, "scorecache_ephemeral_up 1\n")
	assert.Contains(t, out, `scorecache_durable_records{window="24h0m0s"} 4`)
	assert.Contains(t, out, `scorecache_compute_spend{currency="USD",window="24h0m0s"} 0.008`)
}
