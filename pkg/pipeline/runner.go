package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nikhilxb/xnode-db/pkg/cache"
	apperr "github.com/nikhilxb/xnode-db/pkg/errors"
	"github.com/nikhilxb/xnode-db/pkg/observability"
	"github.com/nikhilxb/xnode-db/pkg/render/nodelink"
	"github.com/nikhilxb/xnode-db/pkg/schema"
	"github.com/nikhilxb/xnode-db/pkg/script"
	"github.com/nikhilxb/xnode-db/pkg/store"
	"github.com/nikhilxb/xnode-db/pkg/tracker"
)

// Runner encapsulates pipeline execution with caching.
// Both CLI and server use this to avoid duplicating caching logic.
//
// The Runner is stateless except for the cache and logger - it doesn't
// store pipeline results. Multiple goroutines can safely use the same
// Runner with different options.
type Runner struct {
	Cache  cache.Cache
	Keyer  cache.Keyer
	Logger *log.Logger
}

// NewRunner creates a runner with the given cache and keyer.
// If keyer is nil, a DefaultKeyer is used.
// If cache is nil, a NullCache is used (caching disabled).
func NewRunner(c cache.Cache, keyer cache.Keyer, logger *log.Logger) *Runner {
	if keyer == nil {
		keyer = cache.NewDefaultKeyer()
	}
	if c == nil {
		c = cache.NewNullCache()
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Runner{
		Cache:  c,
		Keyer:  keyer,
		Logger: logger,
	}
}

// Execute runs the complete run → snapshot → render pipeline with caching.
// With no formats requested, the render stage is skipped.
func (r *Runner) Execute(ctx context.Context, opts Options) (*Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateAndSetDefaults(); err != nil {
		return nil, fmt.Errorf("invalid options: %w", err)
	}

	result := &Result{
		Artifacts: make(map[string][]byte),
	}

	// Stage 1: Run
	runStart := time.Now()
	res, err := r.Run(ctx, opts)
	if err != nil {
		return nil, err
	}
	result.Run = res
	result.Stats.RunTime = time.Since(runStart)
	result.Stats.Ops = len(res.Session.Ops())
	result.Stats.Containers = len(res.Session.Containers())

	r.Logger.Info("ran script",
		"script", opts.Script,
		"ops", result.Stats.Ops,
		"containers", result.Stats.Containers,
		"duration", result.Stats.RunTime)

	// Stage 2: Snapshot
	snapStart := time.Now()
	snap, err := r.Snapshot(ctx, res, opts)
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	result.Snapshot = snap
	result.Stats.SnapshotTime = time.Since(snapStart)
	result.Stats.Symbols = len(snap.Symbols)
	if data, err := schema.Marshal(snap); err == nil {
		result.SnapshotHash = cache.Hash(data)
	}

	r.Logger.Info("built snapshot",
		"id", snap.ID,
		"symbols", result.Stats.Symbols,
		"truncated", snap.Truncated,
		"duration", result.Stats.SnapshotTime)

	if len(opts.Formats) == 0 {
		return result, nil
	}

	// Stage 3: Render
	renderStart := time.Now()
	artifacts, renderHit, err := r.RenderWithCacheInfo(ctx, snap, opts)
	if err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	result.Artifacts = artifacts
	result.Stats.RenderTime = time.Since(renderStart)
	result.CacheInfo.RenderHit = renderHit

	r.Logger.Info("rendered outputs",
		"formats", opts.Formats,
		"duration", result.Stats.RenderTime)

	return result, nil
}

// Run executes the script named by opts. Script failures are reported with
// the INVALID_SCRIPT code and grouping violations with INVARIANT_VIOLATION;
// the original error stays in the chain.
func (r *Runner) Run(ctx context.Context, opts Options) (*script.Result, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForRun(); err != nil {
		return nil, err
	}

	runOpts := []script.Option{script.WithLogger(opts.Logger), script.WithMaxSteps(opts.MaxSteps)}
	var (
		res *script.Result
		err error
	)
	if opts.Source != nil {
		res, err = script.Run(ctx, opts.Script, opts.Source, runOpts...)
	} else {
		res, err = script.RunFile(ctx, opts.Script, runOpts...)
	}
	if err != nil {
		return nil, classifyRunError(opts.Script, err)
	}
	return res, nil
}

func classifyRunError(name string, err error) error {
	switch {
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	case errors.Is(err, tracker.ErrAlreadyContained), errors.Is(err, tracker.ErrLayering):
		return apperr.Wrap(apperr.ErrCodeInvariant, err, "run %s", name)
	case errors.Is(err, fs.ErrNotExist):
		return apperr.Wrap(apperr.ErrCodeNotFound, err, "script %s", name)
	case errors.Is(err, script.ErrScript):
		return apperr.Wrap(apperr.ErrCodeInvalidScript, err, "run %s", name)
	}
	return apperr.Wrap(apperr.ErrCodeInternal, err, "run %s", name)
}

// Snapshot encodes the script's public globals and everything reachable
// from them.
func (r *Runner) Snapshot(ctx context.Context, res *script.Result, opts Options) (*schema.Snapshot, error) {
	opts.SetSnapshotDefaults()

	start := time.Now()
	engineOpts := append(script.SchemaOptions(), schema.WithMaxSymbols(opts.MaxSymbols))
	snap, err := schema.NewEngine(engineOpts...).Snapshot(opts.Context, res.Namespace())
	if err != nil {
		return nil, err
	}
	observability.Pipeline().OnSnapshot(ctx, len(snap.Symbols), time.Since(start))
	return snap, nil
}

// RenderWithCacheInfo generates artifacts with caching and returns cache hit info.
func (r *Runner) RenderWithCacheInfo(ctx context.Context, snap *schema.Snapshot, opts Options) (map[string][]byte, bool, error) {
	r.applyLogger(&opts)
	if err := opts.ValidateForRender(); err != nil {
		return nil, false, err
	}

	// Compute cache key from snapshot data
	snapData, err := schema.Marshal(snap)
	if err != nil {
		return nil, false, fmt.Errorf("serialize snapshot for cache key: %w", err)
	}
	snapHash := cache.Hash(snapData)

	// Try to get all formats from cache
	artifacts := make(map[string][]byte)
	if !opts.Refresh {
		for _, format := range opts.Formats {
			key := r.Keyer.ArtifactKey(snapHash, opts.ArtifactKeyOpts(format))
			data, hit, err := r.Cache.Get(ctx, key)
			if err != nil || !hit {
				break
			}
			artifacts[format] = data
		}
		if len(artifacts) == len(opts.Formats) {
			return artifacts, true, nil
		}
	}

	rendered, err := nodelink.Render(ctx, snap, opts.Formats, opts.RenderOptions())
	if err != nil {
		if errors.Is(err, nodelink.ErrInvalidHead) {
			return nil, false, apperr.Wrap(apperr.ErrCodeSymbolNotFound, err, "head %s", opts.Head)
		}
		return nil, false, err
	}

	for format, data := range rendered {
		key := r.Keyer.ArtifactKey(snapHash, opts.ArtifactKeyOpts(format))
		if err := r.Cache.Set(ctx, key, data, cache.TTLArtifact); err != nil {
			opts.Logger.Warn("cache artifact", "format", format, "error", err)
		}
	}
	return rendered, false, nil
}

// Render is a convenience wrapper that calls RenderWithCacheInfo and discards the cache hit info.
func (r *Runner) Render(ctx context.Context, snap *schema.Snapshot, opts Options) (map[string][]byte, error) {
	artifacts, _, err := r.RenderWithCacheInfo(ctx, snap, opts)
	return artifacts, err
}

// LoadSnapshot reads a snapshot from st, going through the cache first.
// Missing snapshots are reported with the SNAPSHOT_NOT_FOUND code.
func (r *Runner) LoadSnapshot(ctx context.Context, st store.Store, id string) (*schema.Snapshot, error) {
	if err := apperr.ValidateSnapshotID(id); err != nil {
		return nil, err
	}
	key := r.Keyer.SnapshotKey(id)
	if data, hit, err := r.Cache.Get(ctx, key); err == nil && hit {
		if snap, err := schema.Unmarshal(data); err == nil {
			return snap, nil
		}
	}

	snap, err := st.Load(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.Wrap(apperr.ErrCodeSnapshotNotFound, err, "snapshot %s", id)
	}
	if err != nil {
		return nil, err
	}
	if data, err := schema.Marshal(snap); err == nil {
		_ = r.Cache.Set(ctx, key, data, cache.TTLSnapshot)
	}
	return snap, nil
}

// ForgetSnapshot drops a cached snapshot after it is replaced or deleted.
func (r *Runner) ForgetSnapshot(ctx context.Context, id string) {
	_ = r.Cache.Delete(ctx, r.Keyer.SnapshotKey(id))
}

// Close releases resources held by the runner (primarily the cache).
func (r *Runner) Close() error {
	if r.Cache != nil {
		return r.Cache.Close()
	}
	return nil
}

// applyLogger sets the runner's logger on options if not already set.
func (r *Runner) applyLogger(opts *Options) {
	if opts.Logger == nil {
		opts.Logger = r.Logger
	}
}
