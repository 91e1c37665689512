// model/events.go
package model

import "time"

// CacheEvent is the payload of every cache.* event on the event bus.
type CacheEvent struct {
	Type          string         `json:"type"`
	SubjectID     string         `json:"subject_id"`
	PolicyVersion string         `json:"policy_version,omitempty"`
	CacheKey      string         `json:"cache_key,omitempty"`
	RecordID      string         `json:"record_id,omitempty"`
	OwnerRef      string         `json:"owner_ref,omitempty"`
	Count         int            `json:"count,omitempty"`
	Duration      time.Duration  `json:"duration,omitempty"`
	Details       map[string]any `json:"details,omitempty"`
	Timestamp     time.Time      `json:"timestamp"`
}
