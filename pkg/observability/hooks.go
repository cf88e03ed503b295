// Package observability provides hooks for metrics, tracing, and logging.
//
// This package enables optional instrumentation without adding hard dependencies
// on specific observability backends. Consumers register hooks at startup to
// receive events about graph tracking, script runs, rendering, cache
// operations and served HTTP requests.
//
// # Architecture
//
// The package uses a simple hooks pattern:
//   - Define hook interfaces for different event categories
//   - Provide no-op default implementations
//   - Allow registration of custom implementations at startup
//
// Hooks are registered by main, not by libraries, so the tracker and the
// server never import a metrics backend directly. The [prom] subpackage
// provides a Prometheus implementation of every hook interface.
//
// # Usage
//
// Register hooks at application startup:
//
//	func main() {
//	    observability.SetTrackerHooks(&myTrackerHooks{})
//	    observability.SetCacheHooks(&myCacheHooks{})
//	    // ... run application
//	}
//
// Libraries call hooks to emit events:
//
//	observability.Tracker().OnContainerBuilt("temporal", 2, len(contents))
//
// [prom]: github.com/nikhilxb/xnode-db/pkg/observability/prom
package observability

import (
	"context"
	"sync"
	"time"
)

// =============================================================================
// Tracker Hooks
// =============================================================================

// TrackerHooks receives events from graph tracking sessions.
//
// Tracking runs synchronously inside user code and has no context, so these
// methods take none. Implementations must be cheap; they run on every
// tracked call.
type TrackerHooks interface {
	// OnOpRecorded records one tracked function call.
	OnOpRecorded(name string)

	// OnContainerBuilt records a new container of the given kind and level.
	OnContainerBuilt(kind string, level, size int)

	// OnInvariantViolation records a rejected grouping request.
	OnInvariantViolation(err error)
}

// =============================================================================
// Pipeline Hooks
// =============================================================================

// PipelineHooks receives events from script runs, snapshot generation and
// rendering.
type PipelineHooks interface {
	// Script events
	OnRunStart(ctx context.Context, script string)
	OnRunComplete(ctx context.Context, script string, ops int, duration time.Duration, err error)

	// Snapshot events
	OnSnapshot(ctx context.Context, symbols int, duration time.Duration)

	// Render events
	OnRenderStart(ctx context.Context, formats []string)
	OnRenderComplete(ctx context.Context, formats []string, duration time.Duration, err error)
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

// HTTPHooks receives events from the symbol server.
type HTTPHooks interface {
	// OnRequest records an incoming HTTP request.
	OnRequest(ctx context.Context, method, route string)

	// OnResponse records a completed HTTP response.
	OnResponse(ctx context.Context, method, route string, statusCode int, duration time.Duration)
}

// =============================================================================
// No-op Implementations
// =============================================================================

// NoopTrackerHooks is a no-op implementation of TrackerHooks.
type NoopTrackerHooks struct{}

func (NoopTrackerHooks) OnOpRecorded(string)               {}
func (NoopTrackerHooks) OnContainerBuilt(string, int, int) {}
func (NoopTrackerHooks) OnInvariantViolation(error)        {}

// NoopPipelineHooks is a no-op implementation of PipelineHooks.
type NoopPipelineHooks struct{}

func (NoopPipelineHooks) OnRunStart(context.Context, string) {}
func (NoopPipelineHooks) OnRunComplete(context.Context, string, int, time.Duration, error) {
}
func (NoopPipelineHooks) OnSnapshot(context.Context, int, time.Duration)                   {}
func (NoopPipelineHooks) OnRenderStart(context.Context, []string)                          {}
func (NoopPipelineHooks) OnRenderComplete(context.Context, []string, time.Duration, error) {}

// NoopCacheHooks is a no-op implementation of CacheHooks.
type NoopCacheHooks struct{}

func (NoopCacheHooks) OnCacheHit(context.Context, string)      {}
func (NoopCacheHooks) OnCacheMiss(context.Context, string)     {}
func (NoopCacheHooks) OnCacheSet(context.Context, string, int) {}

// NoopHTTPHooks is a no-op implementation of HTTPHooks.
type NoopHTTPHooks struct{}

func (NoopHTTPHooks) OnRequest(context.Context, string, string)                       {}
func (NoopHTTPHooks) OnResponse(context.Context, string, string, int, time.Duration) {}

// =============================================================================
// Global Hook Registry
// =============================================================================

// slot holds the registered implementation of one hook interface.
type slot[T any] struct {
	mu   sync.RWMutex
	h    T
	noop T
}

func newSlot[T any](noop T) *slot[T] {
	return &slot[T]{h: noop, noop: noop}
}

// set replaces the implementation. A nil h is ignored.
func (s *slot[T]) set(h T) {
	if any(h) == nil {
		return
	}
	s.mu.Lock()
	s.h = h
	s.mu.Unlock()
}

func (s *slot[T]) get() T {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.h
}

func (s *slot[T]) reset() {
	s.mu.Lock()
	s.h = s.noop
	s.mu.Unlock()
}

var (
	trackerSlot  = newSlot[TrackerHooks](NoopTrackerHooks{})
	pipelineSlot = newSlot[PipelineHooks](NoopPipelineHooks{})
	cacheSlot    = newSlot[CacheHooks](NoopCacheHooks{})
	httpSlot     = newSlot[HTTPHooks](NoopHTTPHooks{})
)

// SetTrackerHooks registers tracker hooks. Call it at startup, before any
// session records ops.
func SetTrackerHooks(h TrackerHooks) { trackerSlot.set(h) }

// SetPipelineHooks registers pipeline hooks.
func SetPipelineHooks(h PipelineHooks) { pipelineSlot.set(h) }

// SetCacheHooks registers cache hooks.
func SetCacheHooks(h CacheHooks) { cacheSlot.set(h) }

// SetHTTPHooks registers HTTP hooks. Call it before the server starts.
func SetHTTPHooks(h HTTPHooks) { httpSlot.set(h) }

// Tracker returns the registered tracker hooks.
func Tracker() TrackerHooks { return trackerSlot.get() }

// Pipeline returns the registered pipeline hooks.
func Pipeline() PipelineHooks { return pipelineSlot.get() }

// Cache returns the registered cache hooks.
func Cache() CacheHooks { return cacheSlot.get() }

// HTTP returns the registered HTTP hooks.
func HTTP() HTTPHooks { return httpSlot.get() }

// Reset restores every hook to its no-op default. Tests call it in cleanup.
func Reset() {
	trackerSlot.reset()
	pipelineSlot.reset()
	cacheSlot.reset()
	httpSlot.reset()
}
