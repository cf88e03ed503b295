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
	"github.com/nikhilxb/xnode-db/pkg/render"
)

// renderOpts holds the command-line flags for the render command.
type renderOpts struct {
	output   string  // output file (single format) or base path (multiple)
	formats  string  // comma-separated output formats
	head     string  // restrict the diagram to one value's history
	detailed bool    // show surfaced properties, argument names and levels
	scale    float64 // PNG scale factor
	noCache  bool
}

// renderCommand creates the render command for drawing a snapshot's graph.
func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render SNAPSHOT",
		Short: "Render a snapshot's computation graph",
		Long: `Render the computation graph captured in a snapshot.

SNAPSHOT is a snapshot JSON file or the id of a stored snapshot. Ops are drawn
as boxes, tracked values as ellipses, and containers as nested clusters.
PDF and PNG output require rsvg-convert.`,
		Example: `  xnode render model.json
  xnode render model.json -f dot,png --detailed
  xnode render model.json --head @id:12 -o history.svg`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd.Context(), args[0], opts)
		},
	}

	cmd.Flags().StringVarP(&opts.output, "output", "o", "", "output file (single format) or base path (multiple)")
	cmd.Flags().StringVarP(&opts.formats, "format", "f", render.FormatSVG, "output format(s): dot, svg, pdf, png, json (comma-separated)")
	cmd.Flags().StringVar(&opts.head, "head", "", "draw only the history of this symbol (e.g. @id:12)")
	cmd.Flags().BoolVar(&opts.detailed, "detailed", false, "show surfaced properties, argument names and levels")
	cmd.Flags().Float64Var(&opts.scale, "scale", 0, "PNG scale factor (default 2)")
	cmd.Flags().BoolVar(&opts.noCache, "no-cache", false, "disable the artifact cache")

	return cmd
}

func (c *CLI) runRender(ctx context.Context, arg string, opts renderOpts) error {
	formats, err := apperr.ValidateFormats(opts.formats)
	if err != nil {
		return err
	}
	snap, err := c.loadSnapshot(ctx, arg)
	if err != nil {
		return err
	}

	runner, err := c.newRunner(ctx, opts.noCache)
	if err != nil {
		return err
	}
	defer runner.Close()

	spinner := newSpinner(ctx, "Rendering...")
	spinner.Start()
	artifacts, cached, err := runner.RenderWithCacheInfo(ctx, snap, pipeline.Options{
		Formats:  formats,
		Head:     opts.head,
		Detailed: opts.detailed,
		Scale:    opts.scale,
		Logger:   c.Logger,
	})
	if err != nil {
		spinner.StopWithError("Render failed")
		return err
	}
	spinner.Stop()

	status := "rendered"
	if cached {
		status = "from cache"
	}
	printSuccess("Rendered %s %s", StyleHighlight.Render(snap.ID), StyleDim.Render("("+status+")"))

	base := renderBase(arg, opts.output, len(formats))
	for _, format := range formats {
		out := base + "." + format
		if len(formats) == 1 && opts.output != "" {
			out = opts.output
		}
		if err := os.WriteFile(out, artifacts[format], 0o644); err != nil {
			return fmt.Errorf("write %s: %w", out, err)
		}
		printFile(out)
	}
	return nil
}

// renderBase returns the path outputs are named after: the -o value without
// its extension, or the snapshot argument without its extension.
func renderBase(arg, output string, nformats int) string {
	if output != "" {
		if nformats > 1 {
			return strings.TrimSuffix(output, filepath.Ext(output))
		}
		return output
	}
	return strings.TrimSuffix(arg, filepath.Ext(arg))
}
