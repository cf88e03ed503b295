// Package pipeline provides the run → snapshot → render pipeline for xnode.
//
// This package implements the complete pipeline that the CLI and the HTTP
// server share. By centralizing it, both entry points apply the same
// defaults, the same schema configuration and the same artifact caching.
//
// # Architecture
//
// The pipeline consists of three stages:
//
//  1. Run: Execute a Starlark script, recording its computation graph
//  2. Snapshot: Encode the script's globals and everything reachable from
//     them into a self-contained symbol table
//  3. Render: Draw the graph as DOT, SVG, PDF or PNG, or emit the snapshot
//     as JSON
//
// Each stage can be run independently or as part of the complete pipeline.
//
// # Usage
//
// Create a Runner and execute the pipeline:
//
//	runner := pipeline.NewRunner(cache, nil, logger)
//	result, err := runner.Execute(ctx, pipeline.Options{
//	    Script:  "model.star",
//	    Formats: []string{"svg"},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	svg := result.Artifacts["svg"]
//
// Render a stored snapshot:
//
//	artifacts, err := runner.Render(ctx, snap, pipeline.Options{Formats: []string{"dot"}})
package pipeline

import (
	"fmt"
	"io"
	"time"

	"github.com/charmbracelet/log"

	"github.com/nikhilxb/xnode-db/pkg/cache"
	apperr "github.com/nikhilxb/xnode-db/pkg/errors"
	"github.com/nikhilxb/xnode-db/pkg/render"
	"github.com/nikhilxb/xnode-db/pkg/render/nodelink"
	"github.com/nikhilxb/xnode-db/pkg/schema"
	"github.com/nikhilxb/xnode-db/pkg/script"
)

// =============================================================================
// Default Values - Single Source of Truth for CLI and Server
// =============================================================================

const (
	// DefaultMaxSymbols bounds how many symbols a snapshot loads in full.
	DefaultMaxSymbols = 10000

	// DefaultMaxSteps bounds Starlark execution. Zero disables the limit.
	DefaultMaxSteps = uint64(0)
)

// DefaultFormat is the output format used when none is requested.
const DefaultFormat = render.FormatSVG

// =============================================================================
// Options - Pipeline Configuration
// =============================================================================

// Options contains all configuration for the pipeline.
// This struct supports JSON serialization for API requests.
type Options struct {
	// Run options
	Script   string `json:"script,omitempty"`    // Path of the script to run
	Source   []byte `json:"source,omitempty"`    // Inline source; Script is then only the display name
	MaxSteps uint64 `json:"max_steps,omitempty"` // Starlark step limit

	// Snapshot options
	Context    string `json:"context,omitempty"` // Label stored with the snapshot; defaults to Script
	MaxSymbols int    `json:"max_symbols,omitempty"`

	// Render options
	Formats  []string `json:"formats,omitempty"`
	Head     string   `json:"head,omitempty"` // Restrict the diagram to one value's history
	Detailed bool     `json:"detailed,omitempty"`
	Scale    float64  `json:"scale,omitempty"` // PNG scale factor
	Refresh  bool     `json:"refresh,omitempty"`

	// Runtime options (not serialized)
	Logger *log.Logger `json:"-"`

	// validated tracks whether ValidateAndSetDefaults has been called.
	validated bool `json:"-"`
}

// Result contains the outputs of a pipeline run.
type Result struct {
	// Run is the finished script, including its tracking session.
	Run *script.Result

	// Snapshot is the symbol table built from the script's globals.
	Snapshot *schema.Snapshot

	// SnapshotHash is the content hash of the marshalled snapshot.
	SnapshotHash string

	// Artifacts contains rendered outputs keyed by format.
	Artifacts map[string][]byte

	// Stats contains timing and size information.
	Stats Stats

	// CacheInfo tracks which stages hit the cache.
	CacheInfo CacheInfo
}

// Stats contains pipeline execution statistics.
type Stats struct {
	Ops          int
	Containers   int
	Symbols      int
	RunTime      time.Duration
	SnapshotTime time.Duration
	RenderTime   time.Duration
}

// CacheInfo tracks cache hits for each pipeline stage.
type CacheInfo struct {
	RenderHit bool // Whether all artifacts came from cache
}

// =============================================================================
// Options Methods
// =============================================================================

// ValidateAndSetDefaults checks required fields and applies defaults for the full pipeline.
// This method is idempotent - calling it multiple times has the same effect as calling it once.
func (o *Options) ValidateAndSetDefaults() error {
	if o.validated {
		return nil
	}
	if err := o.ValidateForRun(); err != nil {
		return err
	}
	o.SetSnapshotDefaults()
	o.SetRenderDefaults()
	o.validated = true
	return nil
}

// ValidateForRun checks required fields for running a script.
func (o *Options) ValidateForRun() error {
	if o.Script == "" {
		return apperr.New(apperr.ErrCodeInvalidInput, "script is required")
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
	return nil
}

// SetSnapshotDefaults sets default values for snapshot generation.
func (o *Options) SetSnapshotDefaults() {
	if o.Context == "" {
		o.Context = o.Script
	}
	if o.MaxSymbols == 0 {
		o.MaxSymbols = DefaultMaxSymbols
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// SetRenderDefaults sets default values for rendering.
func (o *Options) SetRenderDefaults() {
	if o.Scale == 0 {
		o.Scale = nodelink.DefaultPNGScale
	}
	if o.Logger == nil {
		o.Logger = log.NewWithOptions(io.Discard, log.Options{})
	}
}

// ValidateForRender validates formats and sets defaults for rendering.
// An empty format list defaults to [DefaultFormat].
func (o *Options) ValidateForRender() error {
	o.SetRenderDefaults()
	if len(o.Formats) == 0 {
		o.Formats = []string{DefaultFormat}
	}
	for _, f := range o.Formats {
		if err := apperr.ValidateFormat(f); err != nil {
			return err
		}
	}
	if o.Head != "" {
		if err := apperr.ValidateSymbolRef(o.Head); err != nil {
			return err
		}
	}
	if o.Scale < 0 {
		return apperr.New(apperr.ErrCodeInvalidInput, "scale must be positive, got %g", o.Scale)
	}
	return nil
}

// RenderOptions returns the diagram options for nodelink rendering.
func (o *Options) RenderOptions() nodelink.Options {
	return nodelink.Options{Head: o.Head, Detailed: o.Detailed, Scale: o.Scale}
}

// ArtifactKeyOpts returns cache key options for artifact rendering.
func (o *Options) ArtifactKeyOpts(format string) cache.ArtifactKeyOpts {
	return cache.ArtifactKeyOpts{
		Format:   format,
		Head:     o.Head,
		Detailed: o.Detailed,
		Scale:    o.Scale,
	}
}

func (o *Options) String() string {
	return fmt.Sprintf("script=%s formats=%v head=%s detailed=%v", o.Script, o.Formats, o.Head, o.Detailed)
}
