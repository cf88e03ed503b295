package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	apperr "github.com/nikhilxb/xnode-db/pkg/errors"
	"github.com/nikhilxb/xnode-db/pkg/pipeline"
	"github.com/nikhilxb/xnode-db/pkg/schema"
	"github.com/nikhilxb/xnode-db/pkg/script"
)

// runOpts holds the command-line flags for the run command.
type runOpts struct {
	output   string // snapshot JSON path
	save     bool   // also keep the snapshot in the configured store
	formats  string // diagrams to render next to the snapshot
	head     string
	detailed bool
	maxSteps uint64
	noCache  bool
}

// runCommand creates the run command, which executes a tracked script and
// captures its globals as a snapshot.
func (c *CLI) runCommand() *cobra.Command {
	var opts runOpts

	cmd := &cobra.Command{
		Use:   "run SCRIPT",
		Short: "Run a Starlark script and capture its computation graph",
		Long: `Run a Starlark script with graph tracking enabled.

The script can use track, op, abstract, tick, tick_all, surface and value to
record its computation. When it finishes, its public globals and everything
reachable from them are captured as a snapshot.`,
		Example: `  xnode run model.star
  xnode run model.star -o model.json --format svg
  xnode run model.star --save`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if opts.maxSteps == 0 {
				opts.maxSteps = c.Config.Script.MaxSteps
			}
			return c.runRun(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "snapshot output file (default SCRIPT with .json extension)")
	cmd.Flags().BoolVar(&opts.save, "save", false, "save the snapshot to the configured store")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", "", "also render: dot, svg, pdf, png (comma-separated)")
	cmd.Flags().StringVar(&opts.head, "head", "", "draw only the history of this symbol (e.g. @id:12)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show surfaced properties and levels in diagrams")
	cmd.Flags().Uint64Var(&opts.maxSteps, "max-steps", 0, "stop the script after this many execution steps")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the artifact cache")

	return cmd
}

func (c *CLI) runRun(ctx context.Context, path string, opts runOpts) error {
	if timeout := c.Config.Script.Timeout.Duration; timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var formats []string
	if opts.formats != "" {
		fs, err := apperr.ValidateFormats(opts.formats)
		if err != nil {
			return err
		}
		formats = fs
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	prog := newProgress(c.Logger)
	res, err := runner.Execute(ctx, pipeline.Options{
		Script:     path,
		MaxSteps:   opts.maxSteps,
		MaxSymbols: c.Config.Schema.MaxSymbols,
		Formats:    formats,
		Head:       opts.head,
		Detailed:   opts.detailed,
		Logger:     c.Logger,
	})
	if err != nil {
		if bt := script.Backtrace(err); bt != err.Error() {
			fmt.Fprintln(os.Stderr, bt)
		}
		return err
	}
	prog.done("captured snapshot", "id", res.Snapshot.ID)

	printSuccess("Ran %s", StyleHighlight.Render(path))
	printRunStats(res.Stats.Ops, res.Stats.Containers, res.Stats.Symbols, res.CacheInfo.RenderHit)
	if res.Snapshot.Truncated {
		printWarning("Snapshot truncated at %d symbols; raise schema.max_symbols to capture more", res.Stats.Symbols)
	}

	output := opts.output
	if output == "" {
		output = strings.TrimSuffix(path, filepath.Ext(path)) + ".json"
	}
	if err := schema.ExportJSON(res.Snapshot, output); err != nil {
		return err
	}
	printFile(output)

	base := strings.TrimSuffix(output, filepath.Ext(output))
	for _, format := range formats {
		out := base + "." + format
		if out == output {
			continue
		}
		if err := os.WriteFile(out, res.Artifacts[format], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		printFile(out)
	}

	if opts.save {
		st, err := c.newStore(ctx)
		if err != nil {
			return err
		}
		defer st.Close()
		if err := st.Save(ctx, res.Snapshot); err != nil {
			return err
		}
		printKeyValue("Stored", res.Snapshot.ID)
	}

	fmt.Fprintln(stdout)
	printNextStep("Inspect", fmt.Sprintf("%s inspect %s", appName, output))
	return nil
}
