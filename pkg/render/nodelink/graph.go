package nodelink

import (
	"cmp"
	"fmt"
	"maps"
	"slices"

	"github.com/nikhilxb/xnode-db/pkg/schema"
)

// graph is the node-link view of a snapshot: the ops and tracked values it
// holds, how they connect, and which containers enclose them.
type graph struct {
	snap *schema.Snapshot

	ops  []string
	data []string

	args    map[string][]argEdge // op -> inputs
	outputs map[string][]string  // op -> outputs, by position
	creator map[string]string    // data -> producing op
	parent  map[string]string    // op or container -> enclosing container
}

// argEdge is one tracked input of an op. Name is the keyword for keyword
// arguments and empty for positional ones.
type argEdge struct {
	data string
	pos  int
	name string
}

func (e argEdge) label() string {
	if e.name != "" {
		return e.name
	}
	return fmt.Sprint(e.pos)
}

// newGraph reads the graph symbols out of snap. Symbols that were not
// loaded contribute only what other symbols say about them.
func newGraph(snap *schema.Snapshot) *graph {
	g := &graph{
		snap:    snap,
		args:    make(map[string][]argEdge),
		outputs: make(map[string][]string),
		creator: make(map[string]string),
		parent:  make(map[string]string),
	}

	type output struct {
		data string
		pos  int
	}
	outs := make(map[string][]output)
	dataSeen := make(map[string]bool)
	addData := func(ref string) {
		if !dataSeen[ref] {
			dataSeen[ref] = true
			g.data = append(g.data, ref)
		}
	}

	for _, ref := range sortedRefs(snap.Symbols) {
		sym := snap.Symbols[ref]
		if sym.Data == nil {
			continue
		}
		v := sym.Data.Viewer
		switch sym.Type {
		case "graphop":
			g.ops = append(g.ops, ref)
			if p, ok := v["container"].(string); ok {
				g.parent[ref] = p
			}
			for _, a := range asSlice(v["args"]) {
				pair := asSlice(a)
				if len(pair) != 2 {
					continue
				}
				d, ok := pair[1].(string)
				if !ok {
					continue
				}
				g.args[ref] = append(g.args[ref], argEdge{data: d, pos: asInt(pair[0])})
			}
			kwargs, _ := v["kwargs"].(map[string]any)
			for _, name := range slices.Sorted(maps.Keys(kwargs)) {
				if d, ok := kwargs[name].(string); ok {
					g.args[ref] = append(g.args[ref], argEdge{data: d, name: name})
				}
			}
		case "graphdata":
			if op, ok := v["creatorop"].(string); ok {
				g.creator[ref] = op
				outs[op] = append(outs[op], output{ref, asInt(v["creatorpos"])})
			}
		case "graphcontainer":
			if p, ok := v["container"].(string); ok {
				g.parent[ref] = p
			}
		}
	}

	for _, op := range g.ops {
		for _, e := range g.args[op] {
			addData(e.data)
		}
		o := outs[op]
		slices.SortStableFunc(o, func(a, b output) int { return cmp.Compare(a.pos, b.pos) })
		for _, x := range o {
			g.outputs[op] = append(g.outputs[op], x.data)
			addData(x.data)
		}
	}
	slices.SortFunc(g.data, compareRefs)
	return g
}

// closure returns the ops and values the value head was computed from.
func (g *graph) closure(head string) (ops, data map[string]bool) {
	ops = make(map[string]bool)
	data = map[string]bool{head: true}
	queue := []string{head}
	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]
		op, ok := g.creator[d]
		if !ok || ops[op] {
			continue
		}
		ops[op] = true
		for _, e := range g.args[op] {
			if !data[e.data] {
				data[e.data] = true
				queue = append(queue, e.data)
			}
		}
	}
	return ops, data
}

// chain returns the containers enclosing ref, innermost first.
func (g *graph) chain(ref string) []string {
	var out []string
	seen := make(map[string]bool)
	for p, ok := g.parent[ref]; ok && !seen[p]; p, ok = g.parent[p] {
		seen[p] = true
		out = append(out, p)
	}
	return out
}

func (g *graph) str(ref string) string {
	if sym := g.snap.Symbols[ref]; sym != nil {
		return sym.Str
	}
	return ref
}

func (g *graph) viewer(ref string) map[string]any {
	if sym := g.snap.Symbols[ref]; sym != nil && sym.Data != nil {
		return sym.Data.Viewer
	}
	return nil
}

func sortedRefs[V any](m map[string]V) []string {
	refs := slices.Collect(maps.Keys(m))
	slices.SortFunc(refs, compareRefs)
	return refs
}

// compareRefs orders references by token, so symbols appear in the order
// they were first seen.
func compareRefs(a, b string) int {
	ta, okA := schema.RefToken(a)
	tb, okB := schema.RefToken(b)
	if okA && okB {
		return cmp.Compare(ta, tb)
	}
	return cmp.Compare(a, b)
}

func asSlice(v any) []any {
	s, _ := v.([]any)
	return s
}

// asInt reads an integer that may have been decoded from JSON as float64.
func asInt(v any) int {
	switch n := v.(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	}
	return 0
}
