// model/cache.go
package model

import "time"

// Provenance records which tier answered a lookup.
type Provenance string

const (
	ProvenanceFast     Provenance = "fast"
	ProvenanceDurable  Provenance = "durable"
	ProvenanceComputed Provenance = "computed"
)

// CacheEntry is the unit stored in either tier.
type CacheEntry struct {
	Key        string    `json:"key"`
	Payload    []byte    `json:"payload"`
	CreatedAt  time.Time `json:"created_at"`
	SizeBytes  int       `json:"size_bytes"`
	Compressed bool      `json:"compressed"`
}

// DurableRecord is an append-only row in the tier of record. Several rows may
// share a Key when writers race; readers take the most recent.
type DurableRecord struct {
	CacheEntry
	ID            string `json:"id"`
	SubjectID     string `json:"subject_id"`
	Fingerprint   string `json:"fingerprint"`
	PolicyVersion string `json:"policy_version"`
	OwnerRef      string `json:"owner_ref,omitempty"`
}

// EphemeralRecord is a fast-tier entry. It may vanish at any time.
type EphemeralRecord struct {
	CacheEntry
	TTL time.Duration `json:"ttl"`
}

// InvalidationMarker is advisory: it never deletes or mutates records.
type InvalidationMarker struct {
	SubjectID     string    `json:"subject_id"`
	PolicyVersion string    `json:"policy_version"`
	InvalidatedAt time.Time `json:"invalidated_at"`
	StaleCount    int       `json:"stale_count"`
}

type InvalidationResult struct {
	SubjectID      string `json:"subject_id"`
	PolicyVersion  string `json:"policy_version"`
	DurableCount   int    `json:"durable_count"`
	EphemeralCount int    `json:"ephemeral_count"`
}

type WarmStats struct {
	SubjectID string        `json:"subject_id,omitempty"`
	Window    time.Duration `json:"window"`
	Scanned   int           `json:"scanned"`
	Warmed    int           `json:"warmed"`
	Failed    int           `json:"failed"`
	Skipped   int           `json:"skipped"`
	Duration  time.Duration `json:"duration"`
	Error     string        `json:"error,omitempty"`
}

// Score is the result of LLM content scoring, the payload this cache was
// built for.
type Score struct {
	Score     int    `json:"score"`
	Rationale string `json:"rationale,omitempty"`
	Model     string `json:"model,omitempty"`
}
