// Package observability provides hooks for metrics, tracing, and logging.
//
// Libraries emit events through package-level registries; applications
// register implementations once at startup. The defaults are no-ops, so
// instrumentation costs nothing unless a hook is installed:
//
//	func main() {
//	    observability.SetGatherHooks(observability.NewLogHooks(logger))
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Gather().OnGatherStart(ctx, len(targets), len(sources))
//	// ... gather ...
//	observability.Gather().OnGatherComplete(ctx, len(pkgs), time.Since(start), err)
//
// Hook implementations must be safe for concurrent use: OnFetch is called
// from gather workers.
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Gather Hooks
// =============================================================================

// GatherHooks receives events from the dependency gatherer.
type GatherHooks interface {
	// OnGatherStart is called once per gather, after the context is validated.
	OnGatherStart(ctx context.Context, targets, sources int)

	// OnFetch is called after every source lookup. exact reports whether a
	// single version was requested rather than all versions of id.
	OnFetch(ctx context.Context, source, id string, exact bool, duration time.Duration, err error)

	// OnGatherComplete is called once per gather with the final candidate count.
	OnGatherComplete(ctx context.Context, count int, duration time.Duration, err error)
}

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from the plan pipeline.
type PipelineHooks interface {
	OnPlanStart(ctx context.Context, action string, targets int)
	OnPlanComplete(ctx context.Context, action string, kept int, cached bool, duration time.Duration, err error)
}

// =============================================================================
// Cache Hooks
// =============================================================================

// CacheHooks receives events from cache operations.
type CacheHooks interface {
	// OnCacheHit records a cache hit.
	OnCacheHit(ctx context.Context, keyType string)

	// OnCacheMiss records a cache miss.
	OnCacheMiss(ctx context.Context, keyType string)

	// OnCacheSet records a cache write.
	OnCacheSet(ctx context.Context, keyType string, size int)
}

// =============================================================================
// HTTP Hooks
// =============================================================================

// HTTPHooks receives events from HTTP client operations.
type HTTPHooks interface {
	// OnResponse records an HTTP response.
	OnResponse(ctx context.Context, method, host, path string, statusCode int, duration time.Duration)

	// OnError records an HTTP error (network failure, timeout).
	OnError(ctx context.Context, method, host, path string, err error)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopGatherHooks is a no-op implementation of GatherHooks.
type NoopGatherHooks struct{}

func (NoopGatherHooks) OnGatherStart(context.Context, int, int)                             {}
func (NoopGatherHooks) OnFetch(context.Context, string, string, bool, time.Duration, error) {}
func (NoopGatherHooks) OnGatherComplete(context.Context, int, time.Duration, error)         {}

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnPlanStart(context.Context, string, int) {}
func (NoopPipelineHooks) OnPlanComplete(context.Context, string, int, bool, time.Duration, error) {
}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnResponse(context.Context, string, string, string, int, time.Duration) {}
func (NoopHTTPHooks) OnError(context.Context, string, string, string, error)                 {}

// =============================================================================
// Global Hook Registry
// =============================================================================

var (
	gatherHooks   GatherHooks   = NoopGatherHooks{}
	pipelineHooks PipelineHooks = NoopPipelineHooks{}
	cacheHooks    CacheHooks    = NoopCacheHooks{}
	httpHooks     HTTPHooks     = NoopHTTPHooks{}
	hooksMu       sync.RWMutex
)

// SetGatherHooks registers custom gather hooks. Nil is ignored.
func SetGatherHooks(h GatherHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		gatherHooks = h
	}
}

// SetPipelineHooks registers custom pipeline hooks. Nil is ignored.
func SetPipelineHooks(h PipelineHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		pipelineHooks = h
	}
}

// SetCacheHooks registers custom cache hooks. Nil is ignored.
func SetCacheHooks(h CacheHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		cacheHooks = h
	}
}

// SetHTTPHooks registers custom HTTP hooks. Nil is ignored.
func SetHTTPHooks(h HTTPHooks) {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	if h != nil {
		httpHooks = h
	}
}

// Gather returns the registered gather hooks.
func Gather() GatherHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return gatherHooks
}

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return pipelineHooks
}

// Cache returns the registered cache hooks.
func Cache() CacheHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return cacheHooks
}

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks {
	hooksMu.RLock()
	defer hooksMu.RUnlock()
	return httpHooks
}

// Reset restores all hooks to their no-op defaults.
// This is primarily useful for testing.
func Reset() {
	hooksMu.Lock()
	defer hooksMu.Unlock()
	gatherHooks = NoopGatherHooks{}
	pipelineHooks = NoopPipelineHooks{}
	cacheHooks = NoopCacheHooks{}
	httpHooks = NoopHTTPHooks{}
}
