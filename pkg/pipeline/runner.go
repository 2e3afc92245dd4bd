package pipeline

import (
	"context"
	"encoding/json"
	"time"

	"github.com/charmbracelet/log"

	"github.com/matzehuels/pkggather/pkg/cache"
	"github.com/matzehuels/pkggather/pkg/core/gather"
	"github.com/matzehuels/pkggather/pkg/core/packaging"
	"github.com/matzehuels/pkggather/pkg/observability"
)

// Runner encapsulates plan execution with caching.
// Both CLI and API use it to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger. Multiple
// goroutines can safely use the same Runner with different requests.
type Runner struct {
	Gatherer *gather.Gatherer
	Cache    cache.Cache
	Keyer    cache.Keyer
	Logger   *log.Logger

	// TTL is the lifetime of cached gather results.
	TTL time.Duration
}

// NewRunner creates a runner.
// If g is nil, a Gatherer with default options is used.
// If keyer is nil, a DefaultKeyer is used.
// If c is nil, a NullCache is used (caching disabled).
func NewRunner(g *gather.Gatherer, c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if logger == nil {
		logger = log.Default()
	}
	if g == nil {
		g = gather.New(gather.Options{Logger: logger})
	}
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	return &Runner{
		Gatherer: g,
		Cache:    c,
		Keyer:    keyer,
		Logger:   logger,
		TTL:      DefaultGatherTTL,
	}
}

// cachedGather is the cache envelope for a gather outcome. Request counts
// and timings describe one run and are not stored.
type cachedGather struct {
	Packages []*packaging.SourcePackageDependencyInfo `json:"packages"`
}

// Plan gathers the candidates for req and prunes them for req.Action.
func (r *Runner) Plan(ctx context.Context, req Request) (plan *Plan, err error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}
	start := time.Now()
	hooks := observability.Pipeline()
	hooks.OnPlanStart(ctx, string(req.Action), len(req.Context.PrimaryTargets)+len(req.Context.PrimaryTargetIDs))
	defer func() {
		kept, cached := 0, false
		if plan != nil {
			kept, cached = len(plan.Packages), plan.CacheHit
		}
		hooks.OnPlanComplete(ctx, string(req.Action), kept, cached, time.Since(start), err)
	}()

	out, hit, err := r.GatherWithCacheInfo(ctx, req.Context, req.Refresh)
	if err != nil {
		return nil, err
	}
	gatherTime := time.Since(start)

	pruneStart := time.Now()
	kept := Prune(out.Packages, req)
	pruneTime := time.Since(pruneStart)

	r.Logger.Info("planned packages",
		"action", req.Action,
		"gathered", len(out.Packages),
		"kept", len(kept),
		"cached", hit,
		"duration", time.Since(start))

	return &Plan{
		Action:   req.Action,
		Packages: kept,
		CacheHit: hit,
		Stats: Stats{
			Gathered:    len(out.Packages),
			Kept:        len(kept),
			Requests:    out.Requests,
			GatherTime:  gatherTime,
			PruneTime:   pruneTime,
			SourceTimes: out.SourceTimes,
		},
	}, nil
}

// GatherWithCacheInfo runs the gather stage with caching and reports
// whether the result came from the cache. A cached outcome carries no
// requests or source times. With refresh set, the cache is not read but
// the fresh outcome is still stored.
func (r *Runner) GatherWithCacheInfo(ctx context.Context, gc *gather.Context, refresh bool) (*gather.Outcome, bool, error) {
	if err := gc.Validate(); err != nil {
		return nil, false, err
	}
	key := r.Keyer.GatherKey(KeyOpts(gc))

	if !refresh {
		if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
			var cached cachedGather
			if err := json.Unmarshal(data, &cached); err == nil {
				observability.Cache().OnCacheHit(ctx, "gather")
				return &gather.Outcome{Packages: cached.Packages}, true, nil
			}
			r.Logger.Debug("discarding unreadable cache entry", "key", key)
		}
		observability.Cache().OnCacheMiss(ctx, "gather")
	}

	out, err := r.Gatherer.Gather(ctx, gc)
	if err != nil {
		return nil, false, err
	}

	data, err := json.Marshal(cachedGather{Packages: out.Packages})
	if err == nil {
		if err := r.Cache.Set(ctx, key, data, r.TTL); err != nil {
			r.Logger.Debug("cache write failed", "key", key, "err", err)
		} else {
			observability.Cache().OnCacheSet(ctx, "gather", len(data))
		}
	}
	return out, false, nil
}

// Gather is a convenience wrapper that calls GatherWithCacheInfo and discards the cache hit info.
func (r *Runner) Gather(ctx context.Context, gc *gather.Context, refresh bool) (*gather.Outcome, error) {
	out, _, err := r.GatherWithCacheInfo(ctx, gc, refresh)
	return out, err
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}
