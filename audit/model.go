// audit/model.go
package audit

import (
	"time"

	"github.com/goccy/go-json"

	"github.com/dev-mohitbeniwal/scorecache/model"
)

// CacheAuditLog is one indexed document of the cache event trail.
type CacheAuditLog struct {
	Timestamp     time.Time       `json:"timestamp"`
	EventType     string          `json:"event_type"`
	SubjectID     string          `json:"subject_id"`
	PolicyVersion string          `json:"policy_version,omitempty"`
	CacheKey      string          `json:"cache_key,omitempty"`
	RecordID      string          `json:"record_id,omitempty"`
	OwnerRef      string          `json:"owner_ref,omitempty"`
	Count         int             `json:"count,omitempty"`
	DurationMs    int64           `json:"duration_ms,omitempty"`
	Details       json.RawMessage `json:"details,omitempty"`
}

func FromEvent(e model.CacheEvent) CacheAuditLog {
	log := CacheAuditLog{
		Timestamp:     e.Timestamp,
		EventType:     e.Type,
		SubjectID:     e.SubjectID,
		PolicyVersion: e.PolicyVersion,
		CacheKey:      e.CacheKey,
		RecordID:      e.RecordID,
		OwnerRef:      e.OwnerRef,
		Count:         e.Count,
		DurationMs:    e.Duration.Milliseconds(),
	}
	if log.Timestamp.IsZero() {
		log.Timestamp = time.Now()
	}
	if len(e.Details) > 0 {
		if details, err := json.Marshal(e.Details); err == nil {
			log.Details = details
		}
	}
	return log
}
