// test/mock/durable.go
package mock

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	cache_errors "github.com/dev-mohitbeniwal/scorecache/errors"
	"github.com/dev-mohitbeniwal/scorecache/fingerprint"
	"github.com/dev-mohitbeniwal/scorecache/model"
)

// MemoryDurableStore is an in-memory service.DurableStore with the same
// append-only and marker semantics as dao.CacheRecordDAO.
type MemoryDurableStore struct {
	mu        sync.Mutex
	records   []model.DurableRecord
	markers   []model.InvalidationMarker
	retention time.Duration
	now       func() time.Time

	LookupErr  error
	PersistErr error
	MarkErr    error
	RecentErr  error
	StatsErr   error

	Lookups  int
	Persists int
}

func NewMemoryDurableStore(retention time.Duration) *MemoryDurableStore {
	if retention <= 0 {
		retention = 30 * 24 * time.Hour
	}
	return &MemoryDurableStore{retention: retention, now: time.Now}
}

// SetClock replaces the time source.
func (s *MemoryDurableStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// Fail makes every operation return err; nil restores normal behaviour.
func (s *MemoryDurableStore) Fail(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.LookupErr, s.PersistErr, s.MarkErr, s.RecentErr, s.StatsErr = err, err, err, err, err
}

func (s *MemoryDurableStore) Retention() time.Duration {
	return s.retention
}

func (s *MemoryDurableStore) Records() []model.DurableRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]model.DurableRecord(nil), s.records...)
}

func (s *MemoryDurableStore) Lookup(_ context.Context, subjectID, fp, policyVersion string) (*model.DurableRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Lookups++
	if s.LookupErr != nil {
		return nil, &cache_errors.DurableReadError{Op: "lookup", Err: s.LookupErr}
	}

	cutoff := s.now().Add(-s.retention)
	var best *model.DurableRecord
	for i := range s.records {
		r := s.records[i]
		if r.SubjectID != subjectID || r.Fingerprint != fp || r.PolicyVersion != policyVersion {
			continue
		}
		if r.CreatedAt.Before(cutoff) {
			continue
		}
		if best == nil || r.CreatedAt.After(best.CreatedAt) {
			copied := r
			best = &copied
		}
	}
	return best, nil
}

func (s *MemoryDurableStore) Persist(_ context.Context, record model.DurableRecord) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Persists++
	if s.PersistErr != nil {
		return "", &cache_errors.DurableWriteError{Op: "persist", Key: record.Key, Err: s.PersistErr}
	}
	if record.ID == "" {
		record.ID = uuid.NewString()
	}
	if record.Key == "" {
		record.Key = fingerprint.Key{SubjectID: record.SubjectID, Fingerprint: record.Fingerprint, PolicyVersion: record.PolicyVersion}.Digest()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = s.now()
	}
	record.Payload = append([]byte(nil), record.Payload...)
	s.records = append(s.records, record)
	return record.ID, nil
}

// Add inserts records directly, keeping their timestamps.
func (s *MemoryDurableStore) Add(records ...model.DurableRecord) {
	for _, r := range records {
		_, _ = s.Persist(context.Background(), r)
	}
}

func (s *MemoryDurableStore) latestMarker(subjectID, policyVersion string) (time.Time, bool) {
	var latest time.Time
	found := false
	for _, m := range s.markers {
		if m.SubjectID == subjectID && m.PolicyVersion == policyVersion && (!found || m.InvalidatedAt.After(latest)) {
			latest, found = m.InvalidatedAt, true
		}
	}
	return latest, found
}

func (s *MemoryDurableStore) MarkStale(_ context.Context, subjectID, oldPolicyVersion string) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.MarkErr != nil {
		return 0, &cache_errors.DurableWriteError{Op: "mark stale", Key: subjectID + ":" + oldPolicyVersion, Err: s.MarkErr}
	}

	since, hasMarker := s.latestMarker(subjectID, oldPolicyVersion)
	stale := 0
	for _, r := range s.records {
		if r.SubjectID == subjectID && r.PolicyVersion == oldPolicyVersion && (!hasMarker || r.CreatedAt.After(since)) {
			stale++
		}
	}
	s.markers = append(s.markers, model.InvalidationMarker{
		SubjectID:     subjectID,
		PolicyVersion: oldPolicyVersion,
		InvalidatedAt: s.now(),
		StaleCount:    stale,
	})
	return stale, nil
}

func (s *MemoryDurableStore) RecentRecords(_ context.Context, since time.Time, subjectID string, limit int) ([]model.DurableRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.RecentErr != nil {
		return nil, &cache_errors.DurableReadError{Op: "recent records", Err: s.RecentErr}
	}

	var out []model.DurableRecord
	for _, r := range s.records {
		if r.CreatedAt.Before(since) || (subjectID != "" && r.SubjectID != subjectID) {
			continue
		}
		if marked, ok := s.latestMarker(r.SubjectID, r.PolicyVersion); ok && !r.CreatedAt.After(marked) {
			continue
		}
		out = append(out, r)
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (s *MemoryDurableStore) Stats(_ context.Context, since time.Time) (model.DurableStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.StatsErr != nil {
		return model.DurableStats{}, &cache_errors.DurableReadError{Op: "stats", Err: s.StatsErr}
	}

	var stats model.DurableStats
	keys := map[string]struct{}{}
	subjects := map[string]struct{}{}
	for _, r := range s.records {
		if r.CreatedAt.Before(since) {
			continue
		}
		stats.Records++
		stats.Bytes += int64(r.SizeBytes)
		keys[r.Key] = struct{}{}
		subjects[r.SubjectID] = struct{}{}
	}
	stats.UniqueKeys = int64(len(keys))
	stats.Subjects = int64(len(subjects))
	stats.DuplicateRecords = stats.Records - stats.UniqueKeys
	for _, m := range s.markers {
		if !m.InvalidatedAt.Before(since) {
			stats.Invalidations++
			stats.StaleRecords += int64(m.StaleCount)
		}
	}
	return stats, nil
}

// ErrUnavailable is a convenient failure to inject.
var ErrUnavailable = errors.New("durable tier unavailable")
