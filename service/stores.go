// service/stores.go
package service

import (
	"context"
	"time"

	"github.com/dev-mohitbeniwal/scorecache/model"
)

// EphemeralStore is the fast tier. Implementations never return errors:
// failures read as a miss, false or zero. Implemented by cache.EphemeralStore.
type EphemeralStore interface {
	Get(ctx context.Context, key string) (model.EphemeralRecord, bool)
	SetAt(ctx context.Context, key string, payload []byte, createdAt time.Time, ttl time.Duration) bool
	InvalidatePattern(ctx context.Context, subjectID, policyVersion string) int
	Health(ctx context.Context) model.EphemeralHealth
}

// LeaseStore grants TTL-bound leases shared by every instance.
type LeaseStore interface {
	AcquireLease(ctx context.Context, name string, ttl time.Duration) (string, bool)
	ReleaseLease(ctx context.Context, name, token string) bool
}

// DurableStore is the tier of record. Implemented by dao.CacheRecordDAO.
type DurableStore interface {
	Lookup(ctx context.Context, subjectID, fingerprint, policyVersion string) (*model.DurableRecord, error)
	Persist(ctx context.Context, record model.DurableRecord) (string, error)
	MarkStale(ctx context.Context, subjectID, oldPolicyVersion string) (int, error)
	RecentRecords(ctx context.Context, since time.Time, subjectID string, limit int) ([]model.DurableRecord, error)
	Stats(ctx context.Context, since time.Time) (model.DurableStats, error)
	Retention() time.Duration
}
