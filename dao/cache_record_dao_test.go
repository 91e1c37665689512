package dao_test

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"github.com/stretchr/testify/assert"
	testifymock "github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/dev-mohitbeniwal/scorecache/dao"
	cache_errors "github.com/dev-mohitbeniwal/scorecache/errors"
	"github.com/dev-mohitbeniwal/scorecache/fingerprint"
	"github.com/dev-mohitbeniwal/scorecache/model"
	"github.com/dev-mohitbeniwal/scorecache/test/mock"
)

var fixedNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func newDAO(runner *mock.MockCypherRunner) *dao.CacheRecordDAO {
	return dao.NewCacheRecordDAO(runner, dao.CacheRecordOptions{
		ReadTimeout:  time.Second,
		WriteTimeout: time.Second,
		Retention:    24 * time.Hour,
	}).WithClock(func() time.Time { return fixedNow })
}

func cypherContaining(fragment string) any {
	return testifymock.MatchedBy(func(cypher string) bool { return strings.Contains(cypher, fragment) })
}

func TestLookupReturnsMostRecentRecord(t *testing.T) {
	runner := new(mock.MockCypherRunner)
	d := newDAO(runner)
	created := fixedNow.Add(-time.Hour)

	runner.On("ExecuteRead", testifymock.Anything, cypherContaining("ORDER BY r.created_at DESC"),
		testifymock.MatchedBy(func(p map[string]any) bool {
			return p["subjectID"] == "discovery" &&
				p["fingerprint"] == "fp" &&
				p["policyVersion"] == "v1" &&
				p["cutoff"] == fixedNow.Add(-24*time.Hour).UnixMilli()
		})).
		Return([]*neo4j.Record{mock.Record(
			"id", "rec-1",
			"cacheKey", "digest",
			"subjectID", "discovery",
			"fingerprint", "fp",
			"policyVersion", "v1",
			"payload", []byte(`{"score":75}`),
			"createdAt", created.UnixMilli(),
			"sizeBytes", int64(12),
			"compressed", false,
			"ownerRef", "user-1",
		)}, nil)

	rec, err := d.Lookup(context.Background(), "discovery", "fp", "v1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, "rec-1", rec.ID)
	assert.Equal(t, "digest", rec.Key)
	assert.Equal(t, `{"score":75}`, string(rec.Payload))
	assert.True(t, created.Equal(rec.CreatedAt))
	assert.Equal(t, 12, rec.SizeBytes)
	assert.Equal(t, "user-1", rec.OwnerRef)
	runner.AssertExpectations(t)
}

func TestLookupMiss(t *testing.T) {
	runner := new(mock.MockCypherRunner)
	runner.On("ExecuteRead", testifymock.Anything, testifymock.Anything, testifymock.Anything).
		Return([]*neo4j.Record{}, nil)

	rec, err := newDAO(runner).Lookup(context.Background(), "discovery", "fp", "v1")
	require.NoError(t, err)
	assert.Nil(t, rec)
}

func TestLookupFailureIsDurableReadError(t *testing.T) {
	runner := new(mock.MockCypherRunner)
	runner.On("ExecuteRead", testifymock.Anything, testifymock.Anything, testifymock.Anything).
		Return(nil, errors.New("connection reset"))

	rec, err := newDAO(runner).Lookup(context.Background(), "discovery", "fp", "v1")
	assert.Nil(t, rec)
	assert.ErrorIs(t, err, cache_errors.ErrDurableRead)

	var readErr *cache_errors.DurableReadError
	require.ErrorAs(t, err, &readErr)
	assert.Equal(t, "lookup", readErr.Op)
}

func TestLookupIsBoundedByReadTimeout(t *testing.T) {
	runner := new(mock.MockCypherRunner)
	runner.On("ExecuteRead",
		testifymock.MatchedBy(func(ctx context.Context) bool {
			deadline, ok := ctx.Deadline()
			return ok && time.Until(deadline) <= time.Second
		}),
		testifymock.Anything, testifymock.Anything).
		Return([]*neo4j.Record{}, nil)

	_, err := newDAO(runner).Lookup(context.Background(), "discovery", "fp", "v1")
	require.NoError(t, err)
	runner.AssertExpectations(t)
}

func TestPersistAppendsRecord(t *testing.T) {
	runner := new(mock.MockCypherRunner)
	var props map[string]any
	runner.On("ExecuteWrite", testifymock.Anything, cypherContaining("CREATE (r:CacheRecord $props)"), testifymock.Anything).
		Run(func(args testifymock.Arguments) {
			props = args.Get(2).(map[string]any)["props"].(map[string]any)
		}).
		Return([]*neo4j.Record{mock.Record("id", "generated")}, nil)

	id, err := newDAO(runner).Persist(context.Background(), model.DurableRecord{
		CacheEntry:    model.CacheEntry{Payload: []byte(`{"score":75}`)},
		SubjectID:     "discovery",
		Fingerprint:   "fp",
		PolicyVersion: "v1",
		OwnerRef:      "user-1",
	})
	require.NoError(t, err)
	assert.Equal(t, "generated", id)

	require.NotNil(t, props)
	assert.NotEmpty(t, props["id"])
	assert.Equal(t, fingerprint.Key{SubjectID: "discovery", Fingerprint: "fp", PolicyVersion: "v1"}.Digest(), props["cache_key"])
	assert.Equal(t, fixedNow.UnixMilli(), props["created_at"])
	assert.Equal(t, int64(12), props["size_bytes"])
	assert.Equal(t, "user-1", props["owner_ref"])
}

func TestPersistFailureIsDurableWriteError(t *testing.T) {
	runner := new(mock.MockCypherRunner)
	runner.On("ExecuteWrite", testifymock.Anything, testifymock.Anything, testifymock.Anything).
		Return(nil, errors.New("leader switch"))

	_, err := newDAO(runner).Persist(context.Background(), model.DurableRecord{
		CacheEntry: model.CacheEntry{Key: "digest"},
		SubjectID:  "discovery",
	})
	assert.ErrorIs(t, err, cache_errors.ErrDurableWrite)

	var writeErr *cache_errors.DurableWriteError
	require.ErrorAs(t, err, &writeErr)
	assert.Equal(t, "digest", writeErr.Key)
}

func TestMarkStaleReturnsCount(t *testing.T) {
	runner := new(mock.MockCypherRunner)
	runner.On("ExecuteWrite", testifymock.Anything, cypherContaining("CREATE (n:InvalidationMarker"),
		testifymock.MatchedBy(func(p map[string]any) bool {
			return p["subjectID"] == "discovery" && p["policyVersion"] == "v1" && p["now"] == fixedNow.UnixMilli()
		})).
		Return([]*neo4j.Record{mock.Record("stale", int64(7))}, nil).Once()
	runner.On("ExecuteWrite", testifymock.Anything, cypherContaining("CREATE (n:InvalidationMarker"), testifymock.Anything).
		Return([]*neo4j.Record{mock.Record("stale", int64(0))}, nil).Once()

	d := newDAO(runner)
	n, err := d.MarkStale(context.Background(), "discovery", "v1")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	n, err = d.MarkStale(context.Background(), "discovery", "v1")
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestMarkStaleNeverUpdatesRecords(t *testing.T) {
	runner := new(mock.MockCypherRunner)
	runner.On("ExecuteWrite", testifymock.Anything,
		testifymock.MatchedBy(func(cypher string) bool {
			return !strings.Contains(cypher, "SET r") && !strings.Contains(cypher, "DELETE")
		}), testifymock.Anything).
		Return([]*neo4j.Record{mock.Record("stale", int64(1))}, nil)

	_, err := newDAO(runner).MarkStale(context.Background(), "discovery", "v1")
	require.NoError(t, err)
	runner.AssertExpectations(t)
}

func TestRecentRecords(t *testing.T) {
	runner := new(mock.MockCypherRunner)
	since := fixedNow.Add(-6 * time.Hour)
	runner.On("ExecuteRead", testifymock.Anything, cypherContaining("InvalidationMarker"),
		testifymock.MatchedBy(func(p map[string]any) bool {
			return p["since"] == since.UnixMilli() && p["subjectID"] == "" && p["limit"] == int64(50)
		})).
		Return([]*neo4j.Record{
			mock.Record("id", "a", "cacheKey", "k1", "subjectID", "discovery", "policyVersion", "v1", "payload", []byte("1"), "createdAt", fixedNow.UnixMilli()),
			mock.Record("id", "b", "cacheKey", "k2", "subjectID", "relevance", "policyVersion", "v1", "payload", "2", "createdAt", fixedNow.UnixMilli()-1),
		}, nil)

	recs, err := newDAO(runner).RecentRecords(context.Background(), since, "", 50)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "a", recs[0].ID)
	assert.Equal(t, []byte("2"), recs[1].Payload)
	assert.Equal(t, 1, recs[1].SizeBytes)
}

func TestStats(t *testing.T) {
	runner := new(mock.MockCypherRunner)
	runner.On("ExecuteRead", testifymock.Anything, cypherContaining("uniqueKeys"), testifymock.Anything).
		Return([]*neo4j.Record{mock.Record("records", int64(10), "uniqueKeys", int64(8), "subjects", int64(2), "bytes", int64(4096))}, nil)
	runner.On("ExecuteRead", testifymock.Anything, cypherContaining("staleRecords"), testifymock.Anything).
		Return([]*neo4j.Record{mock.Record("invalidations", int64(3), "staleRecords", int64(5))}, nil)

	stats, err := newDAO(runner).Stats(context.Background(), fixedNow.Add(-time.Hour))
	require.NoError(t, err)
	assert.Equal(t, model.DurableStats{
		Records:          10,
		UniqueKeys:       8,
		DuplicateRecords: 2,
		Subjects:         2,
		Bytes:            4096,
		Invalidations:    3,
		StaleRecords:     5,
	}, stats)
}

func TestEnsureSchema(t *testing.T) {
	runner := new(mock.MockCypherRunner)
	runner.On("ExecuteWrite", testifymock.Anything, cypherContaining("IF NOT EXISTS"), testifymock.Anything).
		Return([]*neo4j.Record{}, nil)

	require.NoError(t, newDAO(runner).EnsureSchema(context.Background()))
	runner.AssertNumberOfCalls(t, "ExecuteWrite", 5)

	failing := new(mock.MockCypherRunner)
	failing.On("ExecuteWrite", testifymock.Anything, testifymock.Anything, testifymock.Anything).
		Return(nil, errors.New("forbidden"))
	assert.ErrorIs(t, newDAO(failing).EnsureSchema(context.Background()), cache_errors.ErrDurableWrite)
}
