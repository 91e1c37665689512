// dao/cache_record_dao.go
package dao

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	cache_errors "github.com/dev-mohitbeniwal/scorecache/errors"
	"github.com/dev-mohitbeniwal/scorecache/fingerprint"
	logger "github.com/dev-mohitbeniwal/scorecache/logging"
	"github.com/dev-mohitbeniwal/scorecache/model"
)

// CypherRunner is implemented by db.Neo4jClient.
type CypherRunner interface {
	ExecuteRead(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
	ExecuteWrite(ctx context.Context, cypher string, params map[string]any) ([]*neo4j.Record, error)
}

type CacheRecordOptions struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
	// Retention bounds hit eligibility. Older rows stay for audit.
	Retention time.Duration
}

// CacheRecordDAO is the durable tier of record. Records are append-only:
// nothing here updates or deletes a CacheRecord node.
type CacheRecordDAO struct {
	Runner CypherRunner
	opts   CacheRecordOptions
	now    func() time.Time
}

func NewCacheRecordDAO(runner CypherRunner, opts CacheRecordOptions) *CacheRecordDAO {
	if opts.ReadTimeout <= 0 {
		opts.ReadTimeout = 2 * time.Second
	}
	if opts.WriteTimeout <= 0 {
		opts.WriteTimeout = 5 * time.Second
	}
	if opts.Retention <= 0 {
		opts.Retention = 30 * 24 * time.Hour
	}
	return &CacheRecordDAO{Runner: runner, opts: opts, now: time.Now}
}

// WithClock replaces the time source. Used by tests.
func (dao *CacheRecordDAO) WithClock(now func() time.Time) *CacheRecordDAO {
	dao.now = now
	return dao
}

func (dao *CacheRecordDAO) Retention() time.Duration {
	return dao.opts.Retention
}

var schemaStatements = []string{
	`CREATE CONSTRAINT cache_record_id IF NOT EXISTS
	FOR (r:CacheRecord) REQUIRE r.id IS UNIQUE`,
	`CREATE CONSTRAINT subject_id IF NOT EXISTS
	FOR (s:Subject) REQUIRE s.id IS UNIQUE`,
	`CREATE INDEX cache_record_lookup IF NOT EXISTS
	FOR (r:CacheRecord) ON (r.subject_id, r.fingerprint, r.policy_version)`,
	`CREATE INDEX cache_record_created_at IF NOT EXISTS
	FOR (r:CacheRecord) ON (r.created_at)`,
	`CREATE INDEX invalidation_marker_lookup IF NOT EXISTS
	FOR (m:InvalidationMarker) ON (m.subject_id, m.policy_version)`,
}

// EnsureSchema creates the constraints and indexes the lookups rely on.
func (dao *CacheRecordDAO) EnsureSchema(ctx context.Context) error {
	logger.Info("Ensuring cache record schema")
	for _, stmt := range schemaStatements {
		writeCtx, cancel := context.WithTimeout(ctx, dao.opts.WriteTimeout)
		_, err := dao.Runner.ExecuteWrite(writeCtx, stmt, nil)
		cancel()
		if err != nil {
			logger.Error("Failed to ensure cache record schema", zap.Error(err))
			return &cache_errors.DurableWriteError{Op: "ensure schema", Err: err}
		}
	}
	logger.Info("Successfully ensured cache record schema")
	return nil
}

const recordProjection = `
	r.id AS id,
	r.cache_key AS cacheKey,
	r.subject_id AS subjectID,
	r.fingerprint AS fingerprint,
	r.policy_version AS policyVersion,
	r.payload AS payload,
	r.created_at AS createdAt,
	r.size_bytes AS sizeBytes,
	r.compressed AS compressed,
	r.owner_ref AS ownerRef`

// Lookup returns the most recent record for the exact key created within the
// retention window. (nil, nil) is a miss.
func (dao *CacheRecordDAO) Lookup(ctx context.Context, subjectID, fp, policyVersion string) (*model.DurableRecord, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, dao.opts.ReadTimeout)
	defer cancel()

	query := `
	MATCH (r:CacheRecord {subject_id: $subjectID, fingerprint: $fingerprint, policy_version: $policyVersion})
	WHERE r.created_at >= $cutoff
	RETURN ` + recordProjection + `
	ORDER BY r.created_at DESC
	LIMIT 1`
	params := map[string]any{
		"subjectID":     subjectID,
		"fingerprint":   fp,
		"policyVersion": policyVersion,
		"cutoff":        dao.now().Add(-dao.opts.Retention).UnixMilli(),
	}

	records, err := dao.Runner.ExecuteRead(ctx, query, params)
	if err != nil {
		logger.Error("Failed to look up cache record",
			zap.String("subjectID", subjectID),
			zap.String("policyVersion", policyVersion),
			zap.Error(err))
		return nil, &cache_errors.DurableReadError{Op: "lookup", Err: err}
	}
	if len(records) == 0 {
		logger.Debug("Cache record not found",
			zap.String("subjectID", subjectID),
			zap.String("fingerprint", fp),
			zap.String("policyVersion", policyVersion))
		return nil, nil
	}

	rec := recordFrom(records[0])
	logger.Debug("Cache record retrieved",
		zap.String("recordID", rec.ID),
		zap.String("subjectID", subjectID),
		zap.Duration("duration", time.Since(start)))
	return &rec, nil
}

// Persist appends a record and returns its id. Concurrent writers for the
// same key each create their own row.
func (dao *CacheRecordDAO) Persist(ctx context.Context, record model.DurableRecord) (string, error) {
	start := time.Now()
	ctx, cancel := context.WithTimeout(ctx, dao.opts.WriteTimeout)
	defer cancel()

	if record.ID == "" {
		record.ID = uuid.New().String()
	}
	if record.Key == "" {
		record.Key = fingerprint.Key{
			SubjectID:     record.SubjectID,
			Fingerprint:   record.Fingerprint,
			PolicyVersion: record.PolicyVersion,
		}.Digest()
	}
	if record.CreatedAt.IsZero() {
		record.CreatedAt = dao.now()
	}
	if record.SizeBytes == 0 {
		record.SizeBytes = len(record.Payload)
	}

	query := `
	MERGE (s:Subject {id: $subjectID})
	CREATE (r:CacheRecord $props)
	CREATE (r)-[:RESULT_FOR]->(s)
	RETURN r.id AS id`
	params := map[string]any{
		"subjectID": record.SubjectID,
		"props": map[string]any{
			"id":             record.ID,
			"cache_key":      record.Key,
			"subject_id":     record.SubjectID,
			"fingerprint":    record.Fingerprint,
			"policy_version": record.PolicyVersion,
			"payload":        record.Payload,
			"created_at":     record.CreatedAt.UnixMilli(),
			"size_bytes":     int64(record.SizeBytes),
			"compressed":     record.Compressed,
			"owner_ref":      record.OwnerRef,
		},
	}

	records, err := dao.Runner.ExecuteWrite(ctx, query, params)
	if err != nil {
		logger.Error("Failed to persist cache record",
			zap.String("cacheKey", record.Key),
			zap.String("subjectID", record.SubjectID),
			zap.Error(err))
		return "", &cache_errors.DurableWriteError{Op: "persist", Key: record.Key, Err: err}
	}
	if len(records) == 0 {
		return "", &cache_errors.DurableWriteError{Op: "persist", Key: record.Key, Err: fmt.Errorf("no record returned")}
	}

	id := stringValue(records[0], "id")
	logger.Info("Cache record persisted",
		zap.String("recordID", id),
		zap.String("subjectID", record.SubjectID),
		zap.String("policyVersion", record.PolicyVersion),
		zap.Int("sizeBytes", record.SizeBytes),
		zap.Duration("duration", time.Since(start)))
	return id, nil
}

// MarkStale appends an InvalidationMarker for the subject and version and
// returns how many records were created since the previous marker. Records
// themselves are left untouched.
func (dao *CacheRecordDAO) MarkStale(ctx context.Context, subjectID, oldPolicyVersion string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, dao.opts.WriteTimeout)
	defer cancel()

	query := `
	OPTIONAL MATCH (m:InvalidationMarker {subject_id: $subjectID, policy_version: $policyVersion})
	WITH coalesce(max(m.invalidated_at), -1) AS since
	OPTIONAL MATCH (r:CacheRecord {subject_id: $subjectID, policy_version: $policyVersion})
	WHERE r.created_at > since
	WITH count(r) AS stale
	CREATE (n:InvalidationMarker {
		id: $id,
		subject_id: $subjectID,
		policy_version: $policyVersion,
		invalidated_at: $now,
		stale_count: stale
	})
	RETURN stale`
	params := map[string]any{
		"id":            uuid.New().String(),
		"subjectID":     subjectID,
		"policyVersion": oldPolicyVersion,
		"now":           dao.now().UnixMilli(),
	}

	records, err := dao.Runner.ExecuteWrite(ctx, query, params)
	if err != nil {
		logger.Error("Failed to mark cache records stale",
			zap.String("subjectID", subjectID),
			zap.String("policyVersion", oldPolicyVersion),
			zap.Error(err))
		return 0, &cache_errors.DurableWriteError{Op: "mark stale", Key: subjectID + ":" + oldPolicyVersion, Err: err}
	}

	stale := 0
	if len(records) > 0 {
		stale = int(int64Value(records[0], "stale"))
	}
	logger.Info("Cache records marked stale",
		zap.String("subjectID", subjectID),
		zap.String("policyVersion", oldPolicyVersion),
		zap.Int("stale", stale))
	return stale, nil
}

// RecentRecords returns records created since since, newest first, leaving
// out any record covered by its subject/version's latest marker. An empty
// subjectID means every subject.
func (dao *CacheRecordDAO) RecentRecords(ctx context.Context, since time.Time, subjectID string, limit int) ([]model.DurableRecord, error) {
	ctx, cancel := context.WithTimeout(ctx, dao.opts.ReadTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 1000
	}
	query := `
	MATCH (r:CacheRecord)
	WHERE r.created_at >= $since AND ($subjectID = '' OR r.subject_id = $subjectID)
	OPTIONAL MATCH (m:InvalidationMarker {subject_id: r.subject_id, policy_version: r.policy_version})
	WITH r, max(m.invalidated_at) AS invalidatedAt
	WHERE invalidatedAt IS NULL OR r.created_at > invalidatedAt
	RETURN ` + recordProjection + `
	ORDER BY r.created_at DESC
	LIMIT $limit`
	params := map[string]any{
		"since":     since.UnixMilli(),
		"subjectID": subjectID,
		"limit":     int64(limit),
	}

	records, err := dao.Runner.ExecuteRead(ctx, query, params)
	if err != nil {
		logger.Error("Failed to list recent cache records",
			zap.Time("since", since),
			zap.String("subjectID", subjectID),
			zap.Error(err))
		return nil, &cache_errors.DurableReadError{Op: "recent records", Err: err}
	}

	out := make([]model.DurableRecord, 0, len(records))
	for _, r := range records {
		out = append(out, recordFrom(r))
	}
	logger.Debug("Recent cache records listed", zap.Int("count", len(out)), zap.String("subjectID", subjectID))
	return out, nil
}

// Stats aggregates the records and markers created since since.
func (dao *CacheRecordDAO) Stats(ctx context.Context, since time.Time) (model.DurableStats, error) {
	ctx, cancel := context.WithTimeout(ctx, dao.opts.ReadTimeout)
	defer cancel()

	params := map[string]any{"since": since.UnixMilli()}
	var stats model.DurableStats

	records, err := dao.Runner.ExecuteRead(ctx, `
	MATCH (r:CacheRecord)
	WHERE r.created_at >= $since
	RETURN count(r) AS records,
		count(DISTINCT r.cache_key) AS uniqueKeys,
		count(DISTINCT r.subject_id) AS subjects,
		coalesce(sum(r.size_bytes), 0) AS bytes`, params)
	if err != nil {
		logger.Error("Failed to aggregate cache records", zap.Error(err))
		return stats, &cache_errors.DurableReadError{Op: "stats", Err: err}
	}
	if len(records) > 0 {
		stats.Records = int64Value(records[0], "records")
		stats.UniqueKeys = int64Value(records[0], "uniqueKeys")
		stats.Subjects = int64Value(records[0], "subjects")
		stats.Bytes = int64Value(records[0], "bytes")
		stats.DuplicateRecords = stats.Records - stats.UniqueKeys
	}

	records, err = dao.Runner.ExecuteRead(ctx, `
	MATCH (m:InvalidationMarker)
	WHERE m.invalidated_at >= $since
	RETURN count(m) AS invalidations,
		coalesce(sum(m.stale_count), 0) AS staleRecords`, params)
	if err != nil {
		logger.Error("Failed to aggregate invalidation markers", zap.Error(err))
		return stats, &cache_errors.DurableReadError{Op: "stats", Err: err}
	}
	if len(records) > 0 {
		stats.Invalidations = int64Value(records[0], "invalidations")
		stats.StaleRecords = int64Value(records[0], "staleRecords")
	}
	return stats, nil
}

func recordFrom(r *neo4j.Record) model.DurableRecord {
	payload := bytesValue(r, "payload")
	size := int(int64Value(r, "sizeBytes"))
	if size == 0 {
		size = len(payload)
	}
	return model.DurableRecord{
		CacheEntry: model.CacheEntry{
			Key:        stringValue(r, "cacheKey"),
			Payload:    payload,
			CreatedAt:  time.UnixMilli(int64Value(r, "createdAt")),
			SizeBytes:  size,
			Compressed: boolValue(r, "compressed"),
		},
		ID:            stringValue(r, "id"),
		SubjectID:     stringValue(r, "subjectID"),
		Fingerprint:   stringValue(r, "fingerprint"),
		PolicyVersion: stringValue(r, "policyVersion"),
		OwnerRef:      stringValue(r, "ownerRef"),
	}
}

func stringValue(r *neo4j.Record, key string) string {
	v, _ := r.Get(key)
	s, _ := v.(string)
	return s
}

func int64Value(r *neo4j.Record, key string) int64 {
	v, _ := r.Get(key)
	switch n := v.(type) {
	case int64:
		return n
	case int:
		return int64(n)
	case float64:
		return int64(n)
	}
	return 0
}

func boolValue(r *neo4j.Record, key string) bool {
	v, _ := r.Get(key)
	b, _ := v.(bool)
	return b
}

func bytesValue(r *neo4j.Record, key string) []byte {
	v, _ := r.Get(key)
	switch b := v.(type) {
	case []byte:
		return b
	case string:
		return []byte(b)
	}
	return nil
}
