package nodelink

import (
	"context"
	"fmt"
	"time"

	"github.com/nikhilxb/xnode-db/pkg/observability"
	"github.com/nikhilxb/xnode-db/pkg/render"
	"github.com/nikhilxb/xnode-db/pkg/schema"
)

// DefaultPNGScale is the scale used for PNG output.
const DefaultPNGScale = 2.0

// Render produces the artifact for each requested format. The DOT source is
// generated once and shared by the image formats; "json" is the snapshot
// itself.
func Render(ctx context.Context, snap *schema.Snapshot, formats []string, opts Options) (map[string][]byte, error) {
	hooks := observability.Pipeline()
	hooks.OnRenderStart(ctx, formats)
	start := time.Now()

	artifacts, err := renderAll(ctx, snap, formats, opts)
	hooks.OnRenderComplete(ctx, formats, time.Since(start), err)
	return artifacts, err
}

func renderAll(ctx context.Context, snap *schema.Snapshot, formats []string, opts Options) (map[string][]byte, error) {
	dot, err := ToDOT(snap, opts)
	if err != nil {
		return nil, err
	}

	var svg []byte
	artifacts := make(map[string][]byte, len(formats))
	for _, format := range formats {
		var data []byte
		var err error

		switch format {
		case render.FormatDOT:
			data = []byte(dot)
		case render.FormatSVG, render.FormatPDF, render.FormatPNG:
			if svg == nil {
				if svg, err = RenderSVG(ctx, dot); err != nil {
					return nil, fmt.Errorf("render %s: %w", format, err)
				}
			}
			switch format {
			case render.FormatSVG:
				data = svg
			case render.FormatPDF:
				data, err = render.ToPDF(ctx, svg)
			case render.FormatPNG:
				scale := opts.Scale
				if scale == 0 {
					scale = DefaultPNGScale
				}
				data, err = render.ToPNG(ctx, svg, scale)
			}
		case render.FormatJSON:
			data, err = schema.Marshal(snap)
		default:
			return nil, fmt.Errorf("unsupported format: %s", format)
		}

		if err != nil {
			return nil, fmt.Errorf("render %s: %w", format, err)
		}
		artifacts[format] = data
	}
	return artifacts, nil
}
