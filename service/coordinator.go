// service/coordinator.go
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/atomic"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	cache_errors "github.com/dev-mohitbeniwal/scorecache/errors"
	"github.com/dev-mohitbeniwal/scorecache/fingerprint"
	logger "github.com/dev-mohitbeniwal/scorecache/logging"
	"github.com/dev-mohitbeniwal/scorecache/model"
	"github.com/dev-mohitbeniwal/scorecache/util"
)

// ComputeFunc is the expensive operation being cached. Its errors are
// returned to the caller unchanged.
type ComputeFunc[T any] func(ctx context.Context, subjectID string, content []byte) (T, error)

type Request struct {
	SubjectID     string
	Content       []byte
	PolicyVersion string
	OwnerRef      string
	// ForceRefresh skips both tiers and recomputes.
	ForceRefresh bool
}

type Result[T any] struct {
	Value      T
	Provenance model.Provenance
	Key        fingerprint.Key
	CreatedAt  time.Time
	RecordID   string
}

type CoordinatorOptions struct {
	TTL time.Duration
	// SingleFlight shares one in-process compute among concurrent callers
	// of the same key.
	SingleFlight bool
	// LeaseTTL > 0 additionally takes a Redis lease around compute so other
	// instances wait for the durable write instead of computing.
	LeaseTTL          time.Duration
	LeaseWait         time.Duration
	ReadRepairTimeout time.Duration
}

// Coordinator serves typed results from the fast tier, then the durable tier,
// then compute, writing computed results through to both tiers.
type Coordinator[T any] struct {
	keys      *fingerprint.Generator
	ephemeral EphemeralStore
	durable   DurableStore
	leases    LeaseStore
	codec     Codec[T]
	opts      CoordinatorOptions
	eventBus  *util.EventBus
	group     singleflight.Group
	now       func() time.Time

	repairs   sync.WaitGroup
	repairsMu sync.Mutex
	closed    bool

	requests           atomic.Int64
	fastHits           atomic.Int64
	durableHits        atomic.Int64
	computes           atomic.Int64
	sharedComputes     atomic.Int64
	computeErrors      atomic.Int64
	durableReadErrors  atomic.Int64
	durableWriteErrors atomic.Int64
	readRepairs        atomic.Int64
	readRepairFailures atomic.Int64
}

func NewCoordinator[T any](
	keys *fingerprint.Generator,
	ephemeral EphemeralStore,
	durable DurableStore,
	codec Codec[T],
	opts CoordinatorOptions,
	eventBus *util.EventBus,
) *Coordinator[T] {
	if keys == nil {
		keys = fingerprint.NewGenerator("")
	}
	if codec == nil {
		codec = JSONCodec[T]{}
	}
	if opts.TTL <= 0 {
		opts.TTL = 24 * time.Hour
	}
	if opts.LeaseWait <= 0 {
		opts.LeaseWait = 5 * time.Second
	}
	if opts.ReadRepairTimeout <= 0 {
		opts.ReadRepairTimeout = time.Second
	}

	c := &Coordinator[T]{
		keys:      keys,
		ephemeral: ephemeral,
		durable:   durable,
		codec:     codec,
		opts:      opts,
		eventBus:  eventBus,
		now:       time.Now,
	}
	if leases, ok := ephemeral.(LeaseStore); ok && opts.LeaseTTL > 0 {
		c.leases = leases
	}
	return c
}

// Lookup returns the cached result for req, computing it on a full miss.
// Only compute errors, *errors.DurableWriteError and ctx's own error are ever
// returned. With SingleFlight the compute runs detached from any one caller's
// cancellation.
func (c *Coordinator[T]) Lookup(ctx context.Context, req Request, compute ComputeFunc[T]) (Result[T], error) {
	c.requests.Inc()
	key := c.keys.KeyFor(req.SubjectID, req.Content, req.PolicyVersion)

	if !req.ForceRefresh {
		if res, ok := c.fromEphemeral(ctx, key); ok {
			return res, nil
		}
		if res, ok := c.fromDurable(ctx, key, true); ok {
			return res, nil
		}
	}

	if !c.opts.SingleFlight {
		return c.computeAndStore(ctx, key, req, compute)
	}

	// The shared compute ignores cancellation. Each caller waits on its own ctx.
	var leader atomic.Bool
	shared := context.WithoutCancel(ctx)
	ch := c.group.DoChan(key.Digest(), func() (interface{}, error) {
		leader.Store(true)
		return c.computeAndStore(shared, key, req, compute)
	})

	select {
	case <-ctx.Done():
		return Result[T]{}, ctx.Err()
	case res := <-ch:
		if !leader.Load() {
			c.sharedComputes.Inc()
			logger.Debug("Shared in-flight computation", zap.String("cacheKey", key.String()))
		}
		if res.Err != nil {
			return Result[T]{}, res.Err
		}
		return res.Val.(Result[T]), nil
	}
}

func (c *Coordinator[T]) fromEphemeral(ctx context.Context, key fingerprint.Key) (Result[T], bool) {
	rec, ok := c.ephemeral.Get(ctx, key.String())
	if !ok {
		return Result[T]{}, false
	}
	value, err := c.codec.Decode(rec.Payload)
	if err != nil {
		logger.Warn("Undecodable fast tier payload, treating as miss",
			zap.String("cacheKey", key.String()),
			zap.Error(err))
		return Result[T]{}, false
	}
	c.fastHits.Inc()
	logger.Debug("Cache hit", zap.String("cacheKey", key.String()), zap.String("provenance", string(model.ProvenanceFast)))
	return Result[T]{Value: value, Provenance: model.ProvenanceFast, Key: key, CreatedAt: rec.CreatedAt}, true
}

// fromDurable consults the tier of record. Read failures are logged and
// reported as a miss so the caller falls through to compute.
func (c *Coordinator[T]) fromDurable(ctx context.Context, key fingerprint.Key, repair bool) (Result[T], bool) {
	rec, err := c.durable.Lookup(ctx, key.SubjectID, key.Fingerprint, key.PolicyVersion)
	if err != nil {
		c.durableReadErrors.Inc()
		logger.Error("Durable tier read failed, falling through to compute",
			zap.String("cacheKey", key.String()),
			zap.Error(err))
		return Result[T]{}, false
	}
	if rec == nil {
		return Result[T]{}, false
	}
	value, err := c.codec.Decode(rec.Payload)
	if err != nil {
		logger.Warn("Undecodable durable payload, treating as miss",
			zap.String("cacheKey", key.String()),
			zap.String("recordID", rec.ID),
			zap.Error(err))
		return Result[T]{}, false
	}

	c.durableHits.Inc()
	logger.Debug("Cache hit", zap.String("cacheKey", key.String()), zap.String("provenance", string(model.ProvenanceDurable)))
	if repair {
		c.readRepair(ctx, key, *rec)
	}
	return Result[T]{
		Value:      value,
		Provenance: model.ProvenanceDurable,
		Key:        key,
		CreatedAt:  rec.CreatedAt,
		RecordID:   rec.ID,
	}, true
}

// readRepair backfills the fast tier in the background. It runs detached
// from ctx's cancellation so a returning request does not abort it.
func (c *Coordinator[T]) readRepair(ctx context.Context, key fingerprint.Key, rec model.DurableRecord) {
	c.repairsMu.Lock()
	defer c.repairsMu.Unlock()
	if c.closed {
		return
	}
	c.readRepairs.Inc()
	c.repairs.Add(1)

	repairCtx := context.WithoutCancel(ctx)
	go func() {
		defer c.repairs.Done()
		ctx, cancel := context.WithTimeout(repairCtx, c.opts.ReadRepairTimeout)
		defer cancel()

		if !c.ephemeral.SetAt(ctx, key.String(), rec.Payload, rec.CreatedAt, c.opts.TTL) {
			c.readRepairFailures.Inc()
			logger.Warn("Read-repair of fast tier failed", zap.String("cacheKey", key.String()))
			return
		}
		logger.Debug("Read-repair of fast tier completed", zap.String("cacheKey", key.String()))
	}()
}

func (c *Coordinator[T]) computeAndStore(ctx context.Context, key fingerprint.Key, req Request, compute ComputeFunc[T]) (Result[T], error) {
	if c.leases != nil {
		token, ok := c.leases.AcquireLease(ctx, key.Digest(), c.opts.LeaseTTL)
		if ok {
			defer c.leases.ReleaseLease(context.WithoutCancel(ctx), key.Digest(), token)
		} else if res, hit := c.awaitLeaseHolder(ctx, key, req); hit {
			return res, nil
		}
	}

	start := time.Now()
	value, err := compute(ctx, req.SubjectID, req.Content)
	if err != nil {
		c.computeErrors.Inc()
		logger.Error("Compute failed",
			zap.String("cacheKey", key.String()),
			zap.Duration("duration", time.Since(start)),
			zap.Error(err))
		return Result[T]{}, err
	}
	c.computes.Inc()
	elapsed := time.Since(start)

	payload, err := c.codec.Encode(value)
	if err != nil {
		return Result[T]{}, fmt.Errorf("failed to encode computed result for %s: %w", key.String(), err)
	}

	createdAt := c.now()
	record := model.DurableRecord{
		CacheEntry: model.CacheEntry{
			Key:       key.Digest(),
			Payload:   payload,
			CreatedAt: createdAt,
			SizeBytes: len(payload),
		},
		SubjectID:     req.SubjectID,
		Fingerprint:   key.Fingerprint,
		PolicyVersion: req.PolicyVersion,
		OwnerRef:      req.OwnerRef,
	}
	id, err := c.durable.Persist(ctx, record)
	if err != nil {
		c.durableWriteErrors.Inc()
		logger.Error("Durable write failed after compute",
			zap.String("cacheKey", key.String()),
			zap.Error(err))
		var writeErr *cache_errors.DurableWriteError
		if !errors.As(err, &writeErr) {
			err = &cache_errors.DurableWriteError{Op: "persist", Key: record.Key, Err: err}
		}
		return Result[T]{}, err
	}

	if !c.ephemeral.SetAt(ctx, key.String(), payload, createdAt, c.opts.TTL) {
		logger.Warn("Fast tier write-through skipped", zap.String("cacheKey", key.String()))
	}

	logger.Info("Computed and cached result",
		zap.String("cacheKey", key.String()),
		zap.String("recordID", id),
		zap.Int("sizeBytes", len(payload)),
		zap.Duration("computeDuration", elapsed))

	c.eventBus.Publish(ctx, util.EventCacheComputed, model.CacheEvent{
		Type:          util.EventCacheComputed,
		SubjectID:     req.SubjectID,
		PolicyVersion: req.PolicyVersion,
		CacheKey:      key.String(),
		RecordID:      id,
		OwnerRef:      req.OwnerRef,
		Duration:      elapsed,
		Details:       map[string]any{"sizeBytes": len(payload), "forceRefresh": req.ForceRefresh},
		Timestamp:     createdAt,
	})

	return Result[T]{
		Value:      value,
		Provenance: model.ProvenanceComputed,
		Key:        key,
		CreatedAt:  createdAt,
		RecordID:   id,
	}, nil
}

// awaitLeaseHolder polls the durable tier while another instance computes
// the key. It gives up after LeaseWait, and the caller then computes anyway.
func (c *Coordinator[T]) awaitLeaseHolder(ctx context.Context, key fingerprint.Key, req Request) (Result[T], bool) {
	if req.ForceRefresh {
		return Result[T]{}, false
	}
	logger.Debug("Key is being computed elsewhere, waiting", zap.String("cacheKey", key.String()))

	deadline := time.NewTimer(c.opts.LeaseWait)
	defer deadline.Stop()
	ticker := time.NewTicker(max(c.opts.LeaseWait/10, time.Millisecond))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return Result[T]{}, false
		case <-deadline.C:
			logger.Warn("Gave up waiting for lease holder", zap.String("cacheKey", key.String()))
			return Result[T]{}, false
		case <-ticker.C:
			if res, ok := c.fromDurable(ctx, key, true); ok {
				return res, true
			}
		}
	}
}

// Counters returns a snapshot of the cumulative counters.
func (c *Coordinator[T]) Counters() model.CoordinatorCounters {
	return model.CoordinatorCounters{
		Requests:           c.requests.Load(),
		FastHits:           c.fastHits.Load(),
		DurableHits:        c.durableHits.Load(),
		Computes:           c.computes.Load(),
		SharedComputes:     c.sharedComputes.Load(),
		ComputeErrors:      c.computeErrors.Load(),
		DurableReadErrors:  c.durableReadErrors.Load(),
		DurableWriteErrors: c.durableWriteErrors.Load(),
		ReadRepairs:        c.readRepairs.Load(),
		ReadRepairFailures: c.readRepairFailures.Load(),
	}
}

// Close stops scheduling read-repairs and waits for running ones, or until
// ctx is done.
func (c *Coordinator[T]) Close(ctx context.Context) error {
	c.repairsMu.Lock()
	c.closed = true
	c.repairsMu.Unlock()

	done := make(chan struct{})
	go func() {
		c.repairs.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for read-repairs: %w", ctx.Err())
	}
}
