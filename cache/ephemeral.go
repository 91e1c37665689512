// cache/ephemeral.go

// Package cache implements the fast, TTL-based ephemeral tier on Redis.
//
// Every method absorbs Redis failures: reads degrade to a miss, writes to
// false, scans to zero. The durable tier is authoritative, so losing this tier
// costs latency, never correctness.
package cache

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/spf13/cast"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	cache_errors "github.com/dev-mohitbeniwal/scorecache/errors"
	"github.com/dev-mohitbeniwal/scorecache/fingerprint"
	logger "github.com/dev-mohitbeniwal/scorecache/logging"
	"github.com/dev-mohitbeniwal/scorecache/model"
)

type Options struct {
	OpTimeout            time.Duration
	CompressionThreshold int
	ScanBatchSize        int64
	ScanMaxRounds        int
}

func (o Options) withDefaults() Options {
	if o.OpTimeout <= 0 {
		o.OpTimeout = 250 * time.Millisecond
	}
	if o.CompressionThreshold <= 0 {
		o.CompressionThreshold = DefaultCompressionThreshold
	}
	if o.ScanBatchSize <= 0 {
		o.ScanBatchSize = 500
	}
	if o.ScanMaxRounds <= 0 {
		o.ScanMaxRounds = 20
	}
	return o
}

// EphemeralStore is safe for concurrent use; the Redis client's pool is shared.
type EphemeralStore struct {
	client redis.UniversalClient
	keys   *fingerprint.Generator
	opts   Options
	now    func() time.Time

	hits   atomic.Int64
	misses atomic.Int64
}

func NewEphemeralStore(client redis.UniversalClient, keys *fingerprint.Generator, opts Options) *EphemeralStore {
	if keys == nil {
		keys = fingerprint.NewGenerator("")
	}
	return &EphemeralStore{
		client: client,
		keys:   keys,
		opts:   opts.withDefaults(),
		now:    time.Now,
	}
}

// Get returns the entry at key. Any failure is reported as a miss.
func (s *EphemeralStore) Get(ctx context.Context, key string) (model.EphemeralRecord, bool) {
	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	pipe := s.client.Pipeline()
	getCmd := pipe.Get(ctx, key)
	ttlCmd := pipe.PTTL(ctx, key)
	_, err := pipe.Exec(ctx)
	if errors.Is(err, redis.Nil) {
		s.misses.Inc()
		logger.Debug("Cache entry not found in fast tier", zap.String("cacheKey", key))
		return model.EphemeralRecord{}, false
	}
	if err != nil {
		s.misses.Inc()
		s.transient("get", key, err)
		return model.EphemeralRecord{}, false
	}

	stored, err := getCmd.Bytes()
	if err != nil {
		s.misses.Inc()
		s.transient("get", key, err)
		return model.EphemeralRecord{}, false
	}

	f, err := decodeFrame(stored)
	if err != nil {
		s.misses.Inc()
		logger.Warn("Discarding undecodable fast tier entry", zap.String("cacheKey", key), zap.Error(err))
		return model.EphemeralRecord{}, false
	}

	s.hits.Inc()
	return model.EphemeralRecord{
		CacheEntry: model.CacheEntry{
			Key:        key,
			Payload:    f.body,
			CreatedAt:  f.createdAt,
			SizeBytes:  len(f.body),
			Compressed: f.compressed,
		},
		TTL: ttlCmd.Val(),
	}, true
}

// Set stores payload at key for ttl. It returns false on any failure.
func (s *EphemeralStore) Set(ctx context.Context, key string, payload []byte, ttl time.Duration) bool {
	return s.SetAt(ctx, key, payload, s.now(), ttl)
}

// SetAt is Set with an explicit creation time, used when copying a durable
// record so the fast tier reports the original compute time.
func (s *EphemeralStore) SetAt(ctx context.Context, key string, payload []byte, createdAt time.Time, ttl time.Duration) bool {
	stored, compressed, err := encodeFrame(payload, createdAt, s.opts.CompressionThreshold)
	if err != nil {
		logger.Warn("Failed to encode fast tier entry", zap.String("cacheKey", key), zap.Error(err))
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	if err := s.client.Set(ctx, key, stored, ttl).Err(); err != nil {
		s.transient("set", key, err)
		return false
	}

	logger.Debug("Cache entry written to fast tier",
		zap.String("cacheKey", key),
		zap.Int("sizeBytes", len(payload)),
		zap.Int("storedBytes", len(stored)),
		zap.Bool("compressed", compressed))
	return true
}

// InvalidatePattern deletes every key of subjectID (of policyVersion only,
// when not empty) and returns how many were removed. The scan is cursor based
// and stops after ScanMaxRounds batches, so very large subjects may need
// several calls.
func (s *EphemeralStore) InvalidatePattern(ctx context.Context, subjectID, policyVersion string) int {
	pattern := s.keys.Pattern(subjectID, policyVersion)
	deleted := 0
	var cursor uint64

	for round := 0; round < s.opts.ScanMaxRounds; round++ {
		batchCtx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
		keys, next, err := s.client.Scan(batchCtx, cursor, pattern, s.opts.ScanBatchSize).Result()
		if err == nil && len(keys) > 0 {
			var n int64
			n, err = s.client.Unlink(batchCtx, keys...).Result()
			deleted += int(n)
		}
		cancel()

		if err != nil {
			s.transient("invalidate", pattern, err)
			return deleted
		}
		cursor = next
		if cursor == 0 {
			break
		}
	}
	if cursor != 0 {
		logger.Warn("Fast tier invalidation stopped at scan cap",
			zap.String("pattern", pattern),
			zap.Int("deleted", deleted),
			zap.Int("maxRounds", s.opts.ScanMaxRounds))
	}

	logger.Info("Fast tier entries invalidated",
		zap.String("subjectID", subjectID),
		zap.String("policyVersion", policyVersion),
		zap.Int("deleted", deleted))
	return deleted
}

// Ping reports whether Redis answers within the operation timeout.
func (s *EphemeralStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()
	return s.client.Ping(ctx).Err()
}

// Health reports availability plus this store's own hit/miss counters.
func (s *EphemeralStore) Health(ctx context.Context) model.EphemeralHealth {
	hits, misses := s.hits.Load(), s.misses.Load()
	health := model.EphemeralHealth{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		health.HitRate = float64(hits) / float64(total)
	}

	if err := s.Ping(ctx); err != nil {
		s.transient("ping", "", err)
		return health
	}
	health.Available = true

	ctx, cancel := context.WithTimeout(ctx, s.opts.OpTimeout)
	defer cancel()

	if n, err := s.client.DBSize(ctx).Result(); err == nil {
		health.KeyCount = n
	}
	if im, ok := s.client.(interface {
		InfoMap(context.Context, ...string) *redis.InfoCmd
	}); ok {
		if info, err := im.InfoMap(ctx, "memory").Result(); err == nil {
			health.MemoryUsed = memoryUsed(info)
		}
	}
	return health
}

// memoryUsed reads used_memory from an INFO reply split by section.
func memoryUsed(info map[string]map[string]string) int64 {
	return cast.ToInt64(info["Memory"]["used_memory"])
}

func (s *EphemeralStore) transient(op, key string, err error) {
	logger.Warn("Fast tier unavailable, degrading",
		zap.Error(&cache_errors.TransientStoreError{Op: op, Key: key, Err: err}))
}
