package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/nikhilxb/xnode-db/pkg/observability"
	"github.com/nikhilxb/xnode-db/pkg/observability/prom"
	"github.com/nikhilxb/xnode-db/pkg/schema"
	"github.com/nikhilxb/xnode-db/pkg/server"
	"github.com/nikhilxb/xnode-db/pkg/store"
)

// serveOpts holds the command-line flags for the serve command.
type serveOpts struct {
	addr    string
	metrics bool
	noCache bool
}

// serveCommand creates the serve command, which answers symbol requests for
// stored snapshots over HTTP.
func (c *CLI) serveCommand() *cobra.Command {
	var opts serveOpts

	cmd := &cobra.Command{
		Use:   "serve [SNAPSHOT.json...]",
		Short: "Serve snapshots over HTTP",
		Long: `Start an HTTP server that answers namespace and symbol requests.

With snapshot files as arguments, only those snapshots are served, from
memory. Without arguments the configured store is served, and snapshots can
be uploaded and deleted through the API.`,
		Example: `  xnode serve
  xnode serve model.json --addr :8642
  xnode serve --metrics`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("addr") && c.Config.Server.Addr != "" {
				opts.addr = c.Config.Server.Addr
			}
			if !cmd.Flags().Changed("metrics") {
				opts.metrics = c.Config.Server.Metrics
			}
			return c.runServe(cmd.Context(), args, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", server.DefaultAddr, "listen address")
	cmd.Flags().BoolVar(&opts.metrics, "metrics", false, "expose Prometheus metrics at /metrics")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the artifact cache")

	return cmd
}

func (c *CLI) runServe(ctx context.Context, files []string, opts serveOpts) error {
	srv, cleanup, err := c.newServer(ctx, files, opts)
	if err != nil {
		return err
	}
	defer cleanup()

	printSuccess("Serving on %s", StyleLink.Render("http://"+opts.addr))
	if opts.metrics {
		printDetail("Metrics at http://%s/metrics", opts.addr)
	}
	err = srv.ListenAndServe(ctx, opts.addr)
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// newServer wires a server from the CLI configuration. The returned cleanup
// closes the store and runner and resets observability hooks.
func (c *CLI) newServer(ctx context.Context, files []string, opts serveOpts) (*server.Server, func(), error) {
	st, err := c.serveStore(ctx, files)
	if err != nil {
		return nil, nil, err
	}
	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		st.Close()
		return nil, nil, err
	}

	srvOpts := []server.Option{server.WithLogger(c.Logger)}
	if n := c.Config.Server.MaxUploadBytes; n > 0 {
		srvOpts = append(srvOpts, server.WithMaxUploadBytes(n))
	}
	if opts.metrics {
		reg := prometheus.NewRegistry()
		reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
		m := prom.Register(reg)
		observability.SetTrackerHooks(m)
		observability.SetPipelineHooks(m)
		observability.SetCacheHooks(m)
		observability.SetHTTPHooks(m)
		srvOpts = append(srvOpts, server.WithMetrics(reg))
	}

	cleanup := func() {
		runner.Close()
		st.Close()
		if opts.metrics {
			observability.Reset()
		}
	}
	return server.New(st, runner, srvOpts...), cleanup, nil
}

// serveStore returns a memory store holding files, or the configured store
// when no files are given.
func (c *CLI) serveStore(ctx context.Context, files []string) (store.Store, error) {
	if len(files) == 0 {
		return c.newStore(ctx)
	}
	st := store.NewMemoryStore()
	for _, path := range files {
		snap, err := schema.ImportJSON(path)
		if err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
		if err := st.Save(ctx, snap); err != nil {
			return nil, err
		}
		c.Logger.Debug("loaded snapshot", "id", snap.ID, "symbols", len(snap.Symbols), "file", path)
	}
	return st, nil
}
