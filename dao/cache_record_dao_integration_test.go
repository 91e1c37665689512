//go:build integration

package dao_test

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/dev-mohitbeniwal/scorecache/config"
	"github.com/dev-mohitbeniwal/scorecache/dao"
	"github.com/dev-mohitbeniwal/scorecache/db"
	"github.com/dev-mohitbeniwal/scorecache/fingerprint"
	"github.com/dev-mohitbeniwal/scorecache/model"
)

const neo4jPassword = "scorecache-test"

// startNeo4jContainer starts a throwaway Neo4j and returns a connected client.
func startNeo4jContainer(ctx context.Context, t *testing.T) *db.Neo4jClient {
	t.Helper()

	req := testcontainers.ContainerRequest{
		Image:        "neo4j:5.20",
		ExposedPorts: []string{"7687/tcp"},
		Env:          map[string]string{"NEO4J_AUTH": "neo4j/" + neo4jPassword},
		WaitingFor:   wait.ForLog("Started.").WithStartupTimeout(2 * time.Minute),
	}
	container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
		ContainerRequest: req,
		Started:          true,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	host, err := container.Host(ctx)
	require.NoError(t, err)
	port, err := container.MappedPort(ctx, "7687")
	require.NoError(t, err)

	client, err := db.NewNeo4j(ctx, config.Neo4jConfiguration{
		URI:          fmt.Sprintf("bolt://%s:%s", host, port.Port()),
		Username:     "neo4j",
		Password:     neo4jPassword,
		Database:     "neo4j",
		MaxPoolSize:  5,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = client.Close(context.Background()) })
	return client
}

func TestIntegration_CacheRecordLifecycle(t *testing.T) {
	ctx := context.Background()
	client := startNeo4jContainer(ctx, t)

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	records := dao.NewCacheRecordDAO(client, dao.CacheRecordOptions{
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 10 * time.Second,
		Retention:    24 * time.Hour,
	}).WithClock(func() time.Time { return now })

	require.NoError(t, records.EnsureSchema(ctx))
	require.NoError(t, records.EnsureSchema(ctx), "schema creation is repeatable")

	fp := func(content string) string { return fingerprint.Fingerprint([]byte(content)) }
	persist := func(subject, content string, at time.Time) string {
		id, err := records.Persist(ctx, model.DurableRecord{
			CacheEntry:    model.CacheEntry{Payload: []byte(`{"score":1}`), CreatedAt: at},
			SubjectID:     subject,
			Fingerprint:   fp(content),
			PolicyVersion: "v1",
		})
		require.NoError(t, err)
		return id
	}

	first := persist("discovery", "one", now.Add(-3*time.Minute))
	persist("discovery", "two", now.Add(-2*time.Minute))
	other := persist("relevance", "one", now.Add(-2*time.Minute))

	rec, err := records.Lookup(ctx, "discovery", fp("one"), "v1")
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.Equal(t, first, rec.ID)
	assert.Equal(t, now.Add(-3*time.Minute).UnixMilli(), rec.CreatedAt.UnixMilli())

	now = now.Add(time.Second)
	stale, err := records.MarkStale(ctx, "discovery", "v1")
	require.NoError(t, err)
	assert.Equal(t, 2, stale)

	now = now.Add(time.Second)
	stale, err = records.MarkStale(ctx, "discovery", "v1")
	require.NoError(t, err)
	assert.Equal(t, 0, stale, "a repeated invalidation finds nothing new")

	now = now.Add(time.Second)
	fresh := persist("discovery", "three", now)

	recent, err := records.RecentRecords(ctx, now.Add(-time.Hour), "", 100)
	require.NoError(t, err)
	ids := make([]string, 0, len(recent))
	for _, r := range recent {
		ids = append(ids, r.ID)
	}
	assert.Equal(t, []string{fresh, other}, ids, "records before the marker are left out, newest first")

	recent, err = records.RecentRecords(ctx, now.Add(-time.Hour), "discovery", 100)
	require.NoError(t, err)
	require.Len(t, recent, 1)
	assert.Equal(t, fresh, recent[0].ID)

	rec, err = records.Lookup(ctx, "discovery", fp("one"), "v1")
	require.NoError(t, err)
	require.NotNil(t, rec, "invalidation is advisory: records are never removed")

	now = now.Add(time.Second)
	stale, err = records.MarkStale(ctx, "discovery", "v1")
	require.NoError(t, err)
	assert.Equal(t, 1, stale)

	stats, err := records.Stats(ctx, now.Add(-time.Hour))
	require.NoError(t, err)
	assert.EqualValues(t, 4, stats.Records)
	assert.EqualValues(t, 4, stats.UniqueKeys)
	assert.EqualValues(t, 2, stats.Subjects)
	assert.EqualValues(t, 3, stats.Invalidations)
	assert.EqualValues(t, 3, stats.StaleRecords)
}
