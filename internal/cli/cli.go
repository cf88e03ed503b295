// Package cli implements the xnode command-line interface.
//
// This package provides commands for running tracked Starlark scripts,
// rendering and inspecting the snapshots they produce, serving snapshots to
// a visual debugger, and managing the artifact cache. The CLI is built using
// cobra and supports verbose logging via the charmbracelet/log library.
//
// # Commands
//
// The main commands are:
//   - run: Execute a script and capture its computation graph
//   - render: Draw a snapshot as DOT, SVG, PDF or PNG
//   - inspect: Print a snapshot's namespace or one symbol
//   - browse: Explore a snapshot interactively
//   - serve: Answer symbol requests over HTTP
//   - snapshots: List and delete stored snapshots
//   - cache: Manage the artifact cache
//
// # Configuration
//
// Settings are read from $XDG_CONFIG_HOME/xnode/config.toml (or --config).
// The file is optional; see [Config] for its sections.
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging.
package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	"github.com/nikhilxb/xnode-db/pkg/buildinfo"
	"github.com/nikhilxb/xnode-db/pkg/cache"
	"github.com/nikhilxb/xnode-db/pkg/pipeline"
	"github.com/nikhilxb/xnode-db/pkg/schema"
	"github.com/nikhilxb/xnode-db/pkg/store"
)

// =============================================================================
// Constants
// =============================================================================

// appName is the application name used for directories and display.
const appName = "xnode"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// =============================================================================
// CLI - Central CLI State
// =============================================================================

// CLI holds shared state for all commands.
type CLI struct {
	Logger *log.Logger

	// Config is loaded before any command runs.
	Config *Config

	configFile string
}

// New creates a new CLI instance with a default logger and configuration.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger: newLogger(w, level),
		Config: DefaultConfig(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:   appName,
		Short: "xnode records computation graphs and serves them to a visual debugger",
		Long: `xnode runs Starlark scripts whose function calls are tracked as a
computation graph, captures the results as snapshots, and renders or serves
them for inspection.`,
		Version:      buildinfo.Resolved(),
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}

	root.SetVersionTemplate(buildinfo.Template())
	root.PersistentFlags().StringVar(&c.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/xnode/config.toml)")

	// Register all subcommands
	root.AddCommand(c.runCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.inspectCommand())
	root.AddCommand(c.browseCommand())
	root.AddCommand(c.serveCommand())
	root.AddCommand(c.snapshotsCommand())
	root.AddCommand(c.cacheCommand())
	root.AddCommand(c.completionCommand())

	return root
}

func (c *CLI) loadConfig() error {
	path, required := c.configFile, true
	if path == "" {
		p, err := configPath()
		if err != nil {
			return nil
		}
		path, required = p, false
	}
	cfg, err := LoadConfig(path, required)
	if err != nil {
		return err
	}
	c.Config = cfg
	c.Logger.Debug("loaded config", "path", path, "cache", cfg.Cache.Backend, "store", cfg.Store.Backend)
	return nil
}

// =============================================================================
// Runner and Store Factories
// =============================================================================

// newRunner creates a pipeline runner for CLI use.
func (c *CLI) newRunner(ctx context.Context, noCache bool) (*pipeline.Runner, error) {
	ch, err := c.newCache(ctx, noCache)
	if err != nil {
		return nil, err
	}
	var keyer cache.Keyer
	if c.Config.Cache.Prefix != "" {
		keyer = cache.NewScopedKeyer(nil, c.Config.Cache.Prefix)
	}
	return pipeline.NewRunner(cache.Instrument(ch), keyer, c.Logger), nil
}

func (c *CLI) newCache(ctx context.Context, noCache bool) (cache.Cache, error) {
	if noCache {
		return cache.NewNullCache(), nil
	}
	switch c.Config.Cache.Backend {
	case backendNone:
		return cache.NewNullCache(), nil
	case backendRedis:
		return cache.NewRedisCache(ctx, c.Config.Cache.Redis)
	}
	dir := c.Config.Cache.Dir
	if dir == "" {
		d, err := cacheDir()
		if err != nil {
			return cache.NewNullCache(), nil
		}
		dir = d
	}
	return cache.NewFileCache(dir)
}

// newStore opens the configured snapshot store.
func (c *CLI) newStore(ctx context.Context) (store.Store, error) {
	switch c.Config.Store.Backend {
	case backendMemory:
		return store.NewMemoryStore(), nil
	case backendMongo:
		return store.NewMongoStore(ctx, c.Config.Store.Mongo)
	}
	return store.NewFileStore(c.Config.Store.Dir)
}

// loadSnapshot reads a snapshot from a JSON file, or from the configured
// store when arg is not an existing file.
func (c *CLI) loadSnapshot(ctx context.Context, arg string) (*schema.Snapshot, error) {
	if _, err := os.Stat(arg); err == nil {
		return schema.ImportJSON(arg)
	}
	st, err := c.newStore(ctx)
	if err != nil {
		return nil, err
	}
	defer st.Close()
	snap, err := st.Load(ctx, arg)
	if err != nil {
		return nil, fmt.Errorf("%s is neither a snapshot file nor a stored snapshot: %w", arg, err)
	}
	return snap, nil
}

// =============================================================================
// Paths
// =============================================================================

// cacheDir returns the cache directory using XDG standard (~/.cache/xnode/).
func cacheDir() (string, error) {
	if cacheHome := os.Getenv("XDG_CACHE_HOME"); cacheHome != "" {
		return filepath.Join(cacheHome, appName), nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".cache", appName), nil
}
