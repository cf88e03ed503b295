package nodelink

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"maps"
	"regexp"
	"slices"
	"strconv"
	"strings"
	"unicode"

	"github.com/goccy/go-graphviz"

	"github.com/nikhilxb/xnode-db/pkg/render"
	"github.com/nikhilxb/xnode-db/pkg/schema"
)

// ErrInvalidHead is returned by [ToDOT] when Options.Head does not name a
// tracked value in the snapshot.
var ErrInvalidHead = errors.New("head is not a tracked value")

// Options configures node-link diagram rendering.
type Options struct {
	// Head restricts the diagram to the computation that produced one
	// tracked value, given as a symbol reference. Empty draws everything.
	Head string

	// Detailed adds surfaced properties to value labels, argument names to
	// edges, and levels to container labels.
	Detailed bool

	// Scale is the PNG scale factor. Zero uses DefaultPNGScale.
	Scale float64
}

// ToDOT converts the graph held in a snapshot to Graphviz DOT format.
// The resulting DOT string can be rendered using [RenderSVG], [RenderPDF], or [RenderPNG].
//
// Ops are drawn as boxes and tracked values as ellipses, with edges from
// each input to the op that used it and from each op to its outputs.
// Containers become nested clusters: abstractive ones rounded, temporal ones
// dashed. Values sit in the innermost container of the op that produced
// them.
func ToDOT(snap *schema.Snapshot, opts Options) (string, error) {
	g := newGraph(snap)

	ops := make(map[string]bool, len(g.ops))
	data := make(map[string]bool, len(g.data))
	if opts.Head != "" {
		sym := snap.Symbol(opts.Head)
		if sym == nil || sym.Type != "graphdata" {
			return "", fmt.Errorf("%w: %s", ErrInvalidHead, opts.Head)
		}
		ops, data = g.closure(opts.Head)
	} else {
		for _, op := range g.ops {
			ops[op] = true
		}
		for _, d := range g.data {
			data[d] = true
		}
	}

	// Place every drawn node in its innermost container.
	members := make(map[string][]string) // container ("" = top) -> nodes
	children := make(map[string][]string)
	used := make(map[string]bool)
	place := func(node, owner string) {
		members[owner] = append(members[owner], node)
		c := owner
		for _, p := range g.chain(owner) {
			if used[c] {
				break
			}
			used[c] = true
			children[p] = append(children[p], c)
			c = p
		}
		if c != "" && !used[c] {
			used[c] = true
			children[""] = append(children[""], c)
		}
	}
	for _, op := range g.ops {
		if ops[op] {
			place(op, g.parent[op])
		}
	}
	for _, d := range g.data {
		if !data[d] {
			continue
		}
		owner := ""
		if op, ok := g.creator[d]; ok && ops[op] {
			owner = g.parent[op]
		}
		place(d, owner)
	}

	var buf bytes.Buffer
	buf.WriteString("digraph G {\n")
	buf.WriteString("  rankdir=TB;\n")
	buf.WriteString("  bgcolor=\"transparent\";\n")
	buf.WriteString("  compound=true;\n")
	buf.WriteString("  node [fontsize=14, margin=\"0.15,0.05\"];\n")
	buf.WriteString("  ranksep=0.4;\n")
	buf.WriteString("  nodesep=0.3;\n")
	buf.WriteString("\n")

	w := &dotWriter{buf: &buf, g: g, ops: ops, opts: opts, members: members, children: children}
	w.writeBlock("", "  ")

	buf.WriteString("\n")
	for _, op := range g.ops {
		if !ops[op] {
			continue
		}
		for _, e := range g.args[op] {
			if !data[e.data] {
				continue
			}
			writeEdge(&buf, e.data, op, e.label(), opts.Detailed)
		}
		for i, d := range g.outputs[op] {
			if !data[d] {
				continue
			}
			writeEdge(&buf, op, d, strconv.Itoa(i), opts.Detailed && len(g.outputs[op]) > 1)
		}
	}

	buf.WriteString("}\n")
	return buf.String(), nil
}

type dotWriter struct {
	buf      *bytes.Buffer
	g        *graph
	ops      map[string]bool
	opts     Options
	members  map[string][]string
	children map[string][]string
}

func (w *dotWriter) writeBlock(container, indent string) {
	for _, n := range w.members[container] {
		label := w.nodeLabel(n)
		fmt.Fprintf(w.buf, "%s%s [%s];\n", indent, quote(n), strings.Join(w.nodeAttrs(n, label), ", "))
	}
	kids := slices.Clone(w.children[container])
	slices.SortFunc(kids, compareRefs)
	for _, c := range kids {
		tok, _ := schema.RefToken(c)
		fmt.Fprintf(w.buf, "%ssubgraph cluster_%d {\n", indent, tok)
		for _, attr := range w.clusterAttrs(c) {
			fmt.Fprintf(w.buf, "%s  %s;\n", indent, attr)
		}
		w.writeBlock(c, indent+"  ")
		fmt.Fprintf(w.buf, "%s}\n", indent)
	}
}

func (w *dotWriter) nodeLabel(ref string) string {
	if w.ops[ref] {
		return w.g.str(ref)
	}
	return fmtDataLabel(w.g, ref, w.opts.Detailed)
}

func (w *dotWriter) nodeAttrs(ref, label string) []string {
	attrs := []string{"label=" + quote(label)}
	if w.ops[ref] {
		return append(attrs, "shape=box", "style=\"rounded,filled\"", "fillcolor=white")
	}
	attrs = append(attrs, "shape=ellipse")
	if _, ok := w.g.creator[ref]; !ok {
		attrs = append(attrs, "style=filled", "fillcolor=lightgrey")
	}
	return attrs
}

func (w *dotWriter) clusterAttrs(ref string) []string {
	label := w.g.str(ref)
	v := w.g.viewer(ref)
	if w.opts.Detailed && v != nil {
		label += fmt.Sprintf("\nlevel %d", asInt(v["height"]))
	}
	attrs := []string{"label=" + quote(label)}
	if kind, _ := v["kind"].(string); kind == "temporal" {
		return append(attrs, "style=dashed", "color=grey40")
	}
	return append(attrs, "style=rounded", "color=black")
}

// fmtDataLabel labels a value with its summary and, when detailed, one line
// per surfaced property.
func fmtDataLabel(g *graph, ref string, detailed bool) string {
	label := g.str(ref)
	if !detailed {
		return label
	}
	props, _ := g.viewer(ref)["props"].(map[string]any)
	parts := []string{label}
	for _, name := range slices.Sorted(maps.Keys(props)) {
		parts = append(parts, fmt.Sprintf("%s: %s", name, fmtValue(g, props[name])))
	}
	return strings.Join(parts, "\n")
}

// fmtValue shows an encoded value: references by their summary, strings
// unescaped, everything else as printed.
func fmtValue(g *graph, v any) string {
	switch x := v.(type) {
	case nil:
		return "nil"
	case string:
		if schema.IsRef(x) {
			return g.str(x)
		}
		return schema.Unescape(x)
	}
	return fmt.Sprint(v)
}

func writeEdge(buf *bytes.Buffer, from, to, label string, withLabel bool) {
	if withLabel {
		fmt.Fprintf(buf, "  %s -> %s [label=%s];\n", quote(from), quote(to), quote(label))
		return
	}
	fmt.Fprintf(buf, "  %s -> %s;\n", quote(from), quote(to))
}

// quote returns s as a DOT quoted string. Only quotes and backslashes are
// escaped; newlines become DOT line breaks and other control characters,
// which Graphviz cannot carry into SVG, become U+FFFD.
func quote(s string) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte('"')
	for _, r := range s {
		switch {
		case r == '"' || r == '\\':
			b.WriteByte('\\')
			b.WriteRune(r)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteByte(' ')
		case unicode.IsControl(r):
			b.WriteRune(unicode.ReplacementChar)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}

// RenderSVG renders a DOT graph to SVG using Graphviz.
// Returns the SVG bytes ready for display or further conversion with [render.ToPDF] or [render.ToPNG].
func RenderSVG(ctx context.Context, dot string) ([]byte, error) {
	gv, err := graphviz.New(ctx)
	if err != nil {
		return nil, fmt.Errorf("init graphviz: %w", err)
	}
	defer gv.Close()

	g, err := graphviz.ParseBytes([]byte(dot))
	if err != nil {
		return nil, fmt.Errorf("parse DOT: %w", err)
	}
	defer g.Close()

	var buf bytes.Buffer
	if err := gv.Render(ctx, g, graphviz.SVG, &buf); err != nil {
		return nil, fmt.Errorf("render: %w", err)
	}
	return normalizeViewBox(buf.Bytes()), nil
}

var (
	svgTagRe  = regexp.MustCompile(`<svg[^>]*>`)
	viewBoxRe = regexp.MustCompile(`viewBox="([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)\s+([0-9.]+)"`)
)

// normalizeViewBox replaces Graphviz's point-based svg header with one
// sized in pixels and anchored at the origin.
func normalizeViewBox(svg []byte) []byte {
	match := viewBoxRe.FindSubmatch(svg)
	if match == nil {
		return svg
	}

	w, _ := strconv.ParseFloat(string(match[3]), 64)
	h, _ := strconv.ParseFloat(string(match[4]), 64)
	if w == 0 || h == 0 {
		return svg
	}

	header := fmt.Sprintf(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 %.2f %.2f" width="%.0f" height="%.0f">`,
		w, h, w, h)
	return svgTagRe.ReplaceAll(svg, []byte(header))
}

// RenderPDF renders a DOT graph as PDF via SVG conversion.
//
// Requires librsvg: brew install librsvg (macOS), apt install librsvg2-bin (Linux).
func RenderPDF(ctx context.Context, dot string) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPDF(ctx, svg)
}

// RenderPNG renders a DOT graph as PNG via SVG conversion.
// A scale of 2.0 produces a 2x resolution image suitable for high-DPI displays.
func RenderPNG(ctx context.Context, dot string, scale float64) ([]byte, error) {
	svg, err := RenderSVG(ctx, dot)
	if err != nil {
		return nil, err
	}
	return render.ToPNG(ctx, svg, scale)
}
