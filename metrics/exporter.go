// Package metrics exports cache statistics in the Prometheus text format.
//
// The Exporter does not query either tier when scraped. It serves the last
// snapshot handed to Update, which the stats job refreshes periodically.
package metrics

import (
	"fmt"
	"io"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/prometheus/common/expfmt"

	"github.com/dev-mohitbeniwal/scorecache/model"
)

const namespace = "scorecache"

// ContentType is the media type of WriteText output.
const ContentType = "text/plain; version=0.0.4; charset=utf-8"

var healthStatuses = []model.HealthStatus{model.HealthHealthy, model.HealthWarning, model.HealthDegraded}

// Exporter is a prometheus.Collector over the latest StatsSnapshot.
type Exporter struct {
	mu   sync.RWMutex
	snap *model.StatsSnapshot

	requests       *prometheus.Desc
	hits           *prometheus.Desc
	computes       *prometheus.Desc
	sharedComputes *prometheus.Desc
	errors         *prometheus.Desc
	readRepairs    *prometheus.Desc

	ephemeralUp      *prometheus.Desc
	ephemeralHitRate *prometheus.Desc
	ephemeralMemory  *prometheus.Desc
	ephemeralKeys    *prometheus.Desc

	durableRecords    *prometheus.Desc
	durableDuplicates *prometheus.Desc
	durableSubjects   *prometheus.Desc
	durableBytes      *prometheus.Desc
	invalidations     *prometheus.Desc
	staleRecords      *prometheus.Desc

	savings      *prometheus.Desc
	computeSpend *prometheus.Desc
	health       *prometheus.Desc
	generatedAt  *prometheus.Desc
}

func NewExporter() *Exporter {
	desc := func(subsystem, name, help string, labels ...string) *prometheus.Desc {
		return prometheus.NewDesc(prometheus.BuildFQName(namespace, subsystem, name), help, labels, nil)
	}
	return &Exporter{
		requests:       desc("coordinator", "requests_total", "Lookups served by the coordinator."),
		hits:           desc("coordinator", "hits_total", "Lookups answered without compute, by tier.", "tier"),
		computes:       desc("coordinator", "computes_total", "Successful computes after a full miss."),
		sharedComputes: desc("coordinator", "shared_computes_total", "Lookups that shared another caller's in-flight compute."),
		errors:         desc("coordinator", "errors_total", "Coordinator errors by kind.", "kind"),
		readRepairs:    desc("coordinator", "read_repairs_total", "Fast tier backfills scheduled after a durable hit."),

		ephemeralUp:      desc("ephemeral", "up", "Whether the fast tier answered the last health check."),
		ephemeralHitRate: desc("ephemeral", "hit_rate", "Fast tier hits over lookups."),
		ephemeralMemory:  desc("ephemeral", "memory_used_bytes", "Memory reported by the fast tier."),
		ephemeralKeys:    desc("ephemeral", "keys", "Keys held by the fast tier."),

		durableRecords:    desc("durable", "records", "Records created within the stats window.", "window"),
		durableDuplicates: desc("durable", "duplicate_records", "Records sharing a cache key with a newer one, within the window.", "window"),
		durableSubjects:   desc("durable", "subjects", "Subjects with records within the window.", "window"),
		durableBytes:      desc("durable", "payload_bytes", "Payload bytes of records within the window.", "window"),
		invalidations:     desc("durable", "invalidations", "Invalidation markers within the window.", "window"),
		staleRecords:      desc("durable", "stale_records", "Records made stale by invalidations within the window.", "window"),

		savings:      desc("", "estimated_savings", "Estimated compute cost avoided by cache hits.", "currency"),
		computeSpend: desc("", "compute_spend", "Estimated compute cost of records created within the window.", "currency", "window"),
		health:       desc("", "health_status", "1 for the current health status, 0 otherwise.", "status"),
		generatedAt:  desc("", "snapshot_timestamp_seconds", "When the exported snapshot was taken."),
	}
}

// Update replaces the snapshot served to scrapes.
func (e *Exporter) Update(snap model.StatsSnapshot) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.snap = &snap
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, d := range []*prometheus.Desc{
		e.requests, e.hits, e.computes, e.sharedComputes, e.errors, e.readRepairs,
		e.ephemeralUp, e.ephemeralHitRate, e.ephemeralMemory, e.ephemeralKeys,
		e.durableRecords, e.durableDuplicates, e.durableSubjects, e.durableBytes, e.invalidations, e.staleRecords,
		e.savings, e.computeSpend, e.health, e.generatedAt,
	} {
		ch <- d
	}
}

func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	e.mu.RLock()
	snap := e.snap
	e.mu.RUnlock()
	if snap == nil {
		return
	}

	gauge := func(d *prometheus.Desc, v float64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.GaugeValue, v, labels...)
	}
	counter := func(d *prometheus.Desc, v int64, labels ...string) {
		ch <- prometheus.MustNewConstMetric(d, prometheus.CounterValue, float64(v), labels...)
	}

	if c := snap.Coordinator; c != nil {
		counter(e.requests, c.Requests)
		counter(e.hits, c.FastHits, "fast")
		counter(e.hits, c.DurableHits, "durable")
		counter(e.computes, c.Computes)
		counter(e.sharedComputes, c.SharedComputes)
		counter(e.errors, c.ComputeErrors, "compute")
		counter(e.errors, c.DurableReadErrors, "durable_read")
		counter(e.errors, c.DurableWriteErrors, "durable_write")
		counter(e.errors, c.ReadRepairFailures, "read_repair")
		counter(e.readRepairs, c.ReadRepairs)
	}

	gauge(e.ephemeralUp, boolValue(snap.Ephemeral.Available))
	gauge(e.ephemeralHitRate, snap.Ephemeral.HitRate)
	gauge(e.ephemeralMemory, float64(snap.Ephemeral.MemoryUsed))
	gauge(e.ephemeralKeys, float64(snap.Ephemeral.KeyCount))

	window := snap.Window.String()
	if snap.Durable.Error == "" {
		gauge(e.durableRecords, float64(snap.Durable.Records), window)
		gauge(e.durableDuplicates, float64(snap.Durable.DuplicateRecords), window)
		gauge(e.durableSubjects, float64(snap.Durable.Subjects), window)
		gauge(e.durableBytes, float64(snap.Durable.Bytes), window)
		gauge(e.invalidations, float64(snap.Durable.Invalidations), window)
		gauge(e.staleRecords, float64(snap.Durable.StaleRecords), window)
		gauge(e.computeSpend, snap.ComputeSpend, snap.Currency, window)
	}

	gauge(e.savings, snap.EstimatedSavings, snap.Currency)
	for _, status := range healthStatuses {
		gauge(e.health, boolValue(snap.Health.Status == status), string(status))
	}
	gauge(e.generatedAt, float64(snap.GeneratedAt.Unix()))
}

func boolValue(b bool) float64 {
	if b {
		return 1
	}
	return 0
}

// WriteText gathers g and writes every family in the text exposition format:
// # HELP and # TYPE comment lines followed by metric{labels} value lines.
func WriteText(w io.Writer, g prometheus.Gatherer) error {
	families, err := g.Gather()
	if err != nil {
		return fmt.Errorf("failed to gather metrics: %w", err)
	}
	return writeFamilies(w, families)
}

func writeFamilies(w io.Writer, families []*dto.MetricFamily) error {
	for _, mf := range families {
		if _, err := expfmt.MetricFamilyToText(w, mf); err != nil {
			return fmt.Errorf("failed to write metric family %s: %w", mf.GetName(), err)
		}
	}
	return nil
}
