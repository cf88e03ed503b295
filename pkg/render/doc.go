// Package render converts rendered graph diagrams between output formats.
//
// # Overview
//
// Diagrams are produced as SVG by the [nodelink] subpackage. This package
// turns SVG into the other supported formats:
//
//   - [ToPDF] converts SVG to PDF
//   - [ToPNG] converts SVG to PNG at a scale factor
//
// Both shell out to rsvg-convert (from librsvg), which must be on PATH.
//
//	dot, err := nodelink.ToDOT(snap, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//	pdf, err := render.ToPDF(ctx, svg)
//	png, err := render.ToPNG(ctx, svg, 2.0)  // 2x scale
//
// # Formats
//
// [Formats] lists every output format a snapshot can be rendered to, and
// [ContentType] gives the MIME type served for each.
//
// [nodelink]: github.com/nikhilxb/xnode-db/pkg/render/nodelink
package render
