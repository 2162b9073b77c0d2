// Package resolver runs the single-producer background worker that answers
// "store_id -> address" lookups, serving a bounded in-memory cache and
// falling back to a PD round-trip on a miss.
package resolver

import (
	"context"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/cuemby/stratakv/pkg/log"
	"github.com/cuemby/stratakv/pkg/metrics"
	"github.com/cuemby/stratakv/pkg/pdclient"
)

const (
	defaultCacheSize = 4096
	// defaultStaleness bounds how long a resolved address is trusted before
	// the next lookup re-queries PD, per spec.md §4.5's "bounded staleness".
	defaultStaleness = 30 * time.Second
	// pdQueryRateLimit bounds how often this worker hits PD on cache misses,
	// so a burst of misses (e.g. a peer restart invalidating many entries at
	// once) degrades to queued lookups instead of hammering PD.
	pdQueryRateLimit = 50
	pdQueryBurst     = 50
)

type request struct {
	storeID uint64
	resp    chan<- response
}

type response struct {
	address string
	err     error
}

// Worker owns a PD client handle and a bounded, time-expiring address cache.
// All cache reads and PD round-trips happen on its single goroutine;
// callers interact with it only through Resolve, Start, and Stop.
type Worker struct {
	pd      *pdclient.Client
	cache   *expirable.LRU[uint64, string]
	limiter *rate.Limiter

	requests chan request
	quit     chan struct{}
	done     chan struct{}
}

// New constructs a Worker. cacheSize <= 0 selects the default capacity; the
// cache entry lifetime is fixed at defaultStaleness.
func New(pd *pdclient.Client, cacheSize int) (*Worker, error) {
	if cacheSize <= 0 {
		cacheSize = defaultCacheSize
	}
	cache := expirable.NewLRU[uint64, string](cacheSize, nil, defaultStaleness)
	return &Worker{
		pd:       pd,
		cache:    cache,
		limiter:  rate.NewLimiter(rate.Limit(pdQueryRateLimit), pdQueryBurst),
		requests: make(chan request),
		quit:     make(chan struct{}),
		done:     make(chan struct{}),
	}, nil
}

// Start spawns the worker goroutine. Must be called once before Resolve.
func (w *Worker) Start() {
	go w.run()
}

// Stop signals the worker to exit and blocks until it has joined.
func (w *Worker) Stop() {
	close(w.quit)
	<-w.done
}

// Resolve looks up storeID's network address, serving from cache when
// possible and querying PD on a miss. Safe to call from any goroutine.
func (w *Worker) Resolve(ctx context.Context, storeID uint64) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	respCh := make(chan response, 1)
	select {
	case w.requests <- request{storeID: storeID, resp: respCh}:
	case <-ctx.Done():
		return "", ctx.Err()
	case <-w.quit:
		return "", fmt.Errorf("resolver: worker stopped")
	}

	select {
	case r := <-respCh:
		return r.address, r.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (w *Worker) run() {
	defer close(w.done)
	for {
		select {
		case req := <-w.requests:
			addr, err := w.resolveOne(req.storeID)
			req.resp <- response{address: addr, err: err}
		case <-w.quit:
			return
		}
	}
}

func (w *Worker) resolveOne(storeID uint64) (string, error) {
	if addr, ok := w.cache.Get(storeID); ok {
		metrics.ResolverCacheHitsTotal.Inc()
		return addr, nil
	}

	metrics.ResolverCacheMissesTotal.Inc()
	if err := w.limiter.Wait(context.Background()); err != nil {
		return "", fmt.Errorf("resolver: rate limit wait: %w", err)
	}
	addr, err := w.pd.ResolveStoreAddress(context.Background(), storeID)
	if err != nil {
		return "", fmt.Errorf("resolver: resolve store %d: %w", storeID, err)
	}

	w.cache.Add(storeID, addr)
	log.WithStoreID(storeID).Debug().Str("address", addr).Msg("resolved store address")
	return addr, nil
}

// Invalidate drops storeID from the cache, forcing the next Resolve to
// query PD again. Used when a peer reports a stale address.
func (w *Worker) Invalidate(storeID uint64) {
	w.cache.Remove(storeID)
}
