// Package nodelink renders tracked computation graphs as node-link diagrams.
//
// # Overview
//
// The input is a [schema.Snapshot]: the graph is read from its graphop,
// graphdata and graphcontainer symbols, so a diagram can be drawn from a
// snapshot file long after the program that produced it has exited.
//
// # Usage
//
// Convert a snapshot to DOT format, then render to SVG:
//
//	dot, err := nodelink.ToDOT(snap, nodelink.Options{})
//	svg, err := nodelink.RenderSVG(ctx, dot)
//
// Or produce several formats at once:
//
//	artifacts, err := nodelink.Render(ctx, snap, []string{"svg", "pdf"}, nodelink.Options{})
//
// # Options
//
//   - Head: draw only the computation behind one tracked value
//   - Detailed: add surfaced properties, argument names and levels
//
// # DOT Format
//
// Ops are rounded boxes, tracked values are ellipses (root values filled
// grey), and containers are clusters nested the way the containers nest.
// The generated DOT uses top-to-bottom layout (rankdir=TB).
//
// # Dependencies
//
// This package uses [github.com/goccy/go-graphviz] for in-process SVG
// rendering. PDF and PNG conversion requires librsvg (rsvg-convert).
package nodelink
