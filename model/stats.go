// model/stats.go
package model

import "time"

type EphemeralHealth struct {
	Available  bool    `json:"available"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
	MemoryUsed int64   `json:"memory_used"`
	KeyCount   int64   `json:"key_count"`
}

type DurableStats struct {
	Records          int64  `json:"records"`
	UniqueKeys       int64  `json:"unique_keys"`
	DuplicateRecords int64  `json:"duplicate_records"`
	Subjects         int64  `json:"subjects"`
	Bytes            int64  `json:"bytes"`
	Invalidations    int64  `json:"invalidations"`
	StaleRecords     int64  `json:"stale_records"`
	Error            string `json:"error,omitempty"`
}

// CoordinatorCounters are cumulative since the coordinator was built.
type CoordinatorCounters struct {
	Requests           int64 `json:"requests"`
	FastHits           int64 `json:"fast_hits"`
	DurableHits        int64 `json:"durable_hits"`
	Computes           int64 `json:"computes"`
	SharedComputes     int64 `json:"shared_computes"`
	ComputeErrors      int64 `json:"compute_errors"`
	DurableReadErrors  int64 `json:"durable_read_errors"`
	DurableWriteErrors int64 `json:"durable_write_errors"`
	ReadRepairs        int64 `json:"read_repairs"`
	ReadRepairFailures int64 `json:"read_repair_failures"`
}

// Hits counts requests answered without compute.
func (c CoordinatorCounters) Hits() int64 {
	return c.FastHits + c.DurableHits
}

// HitRate is hits over requests, 0 when there were no requests.
func (c CoordinatorCounters) HitRate() float64 {
	if c.Requests == 0 {
		return 0
	}
	return float64(c.Hits()) / float64(c.Requests)
}

type HealthStatus string

const (
	HealthHealthy  HealthStatus = "healthy"
	HealthWarning  HealthStatus = "warning"
	HealthDegraded HealthStatus = "degraded"
)

type HealthReport struct {
	Status             HealthStatus `json:"status"`
	HitRate            float64      `json:"hit_rate"`
	Samples            int64        `json:"samples"`
	EphemeralAvailable bool         `json:"ephemeral_available"`
	Reasons            []string     `json:"reasons,omitempty"`
	CheckedAt          time.Time    `json:"checked_at"`
}

type StatsSnapshot struct {
	Window           time.Duration        `json:"window"`
	GeneratedAt      time.Time            `json:"generated_at"`
	Ephemeral        EphemeralHealth      `json:"ephemeral"`
	Durable          DurableStats         `json:"durable"`
	Coordinator      *CoordinatorCounters `json:"coordinator,omitempty"`
	Hits             int64                `json:"hits"`
	EstimatedSavings float64              `json:"estimated_savings"`
	ComputeSpend     float64              `json:"compute_spend"`
	Currency         string               `json:"currency"`
	Health           HealthReport         `json:"health"`
}
