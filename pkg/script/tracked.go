package script

import (
	"fmt"
	"slices"

	"go.starlark.net/starlark"

	"github.com/nikhilxb/xnode-db/pkg/tracker"
)

// Tracked is the Starlark face of a tracked value. Scripts see it as a value
// of type "tracked" with the attributes value, position and op; the wrapped
// value itself is reached with value(t) or t.value.
type Tracked struct {
	data *tracker.Data
}

var (
	_ starlark.Value    = (*Tracked)(nil)
	_ starlark.HasAttrs = (*Tracked)(nil)
)

// Data returns the underlying tracked value.
func (t *Tracked) Data() *tracker.Data { return t.data }

func (t *Tracked) value() starlark.Value {
	if v, ok := t.data.Value().(starlark.Value); ok {
		return v
	}
	return starlark.None
}

func (t *Tracked) String() string        { return fmt.Sprintf("tracked(%s)", t.value()) }
func (t *Tracked) Type() string          { return "tracked" }
func (t *Tracked) Freeze()               { t.value().Freeze() }
func (t *Tracked) Truth() starlark.Bool  { return t.value().Truth() }
func (t *Tracked) Hash() (uint32, error) { return uint32(t.data.ID()), nil }

func (t *Tracked) Attr(name string) (starlark.Value, error) {
	switch name {
	case "value":
		return t.value(), nil
	case "position":
		return starlark.MakeInt(t.data.Position()), nil
	case "op":
		if op := t.data.Op(); op != nil {
			return starlark.String(op.Name()), nil
		}
		return starlark.None, nil
	}
	return nil, nil
}

func (t *Tracked) AttrNames() []string { return []string{"op", "position", "value"} }

// trackedFunc is the callable returned by the op and abstract builtins.
type trackedFunc struct {
	host     *host
	fn       starlark.Callable
	name     string
	outputs  []tracker.Props
	abstract bool
}

var _ starlark.Callable = (*trackedFunc)(nil)

func (f *trackedFunc) String() string {
	if f.abstract {
		return fmt.Sprintf("<abstract %s>", f.name)
	}
	return fmt.Sprintf("<op %s>", f.name)
}

func (f *trackedFunc) Type() string         { return "tracked_function" }
func (f *trackedFunc) Freeze()              { f.fn.Freeze() }
func (f *trackedFunc) Truth() starlark.Bool { return starlark.True }
func (f *trackedFunc) Hash() (uint32, error) {
	return 0, fmt.Errorf("unhashable type: %s", f.Type())
}
func (f *trackedFunc) Name() string { return f.name }

func (f *trackedFunc) CallInternal(thread *starlark.Thread, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	h := f.host
	goArgs := make([]any, len(args))
	for i, a := range args {
		goArgs[i] = h.toGo(a)
	}
	goKwargs := make(map[string]any, len(kwargs))
	for _, kv := range kwargs {
		goKwargs[string(kv[0].(starlark.String))] = h.toGo(kv[1])
	}

	multi := false
	call := func(a []any, kw map[string]any) ([]any, error) {
		res, err := starlark.Call(thread, f.fn, h.toTuple(a), h.toKwargs(kw))
		if err != nil {
			return nil, err
		}
		results := starlark.Tuple{res}
		if t, ok := res.(starlark.Tuple); ok {
			multi = true
			results = t
		}
		out := make([]any, len(results))
		for i, r := range results {
			if f.abstract {
				out[i] = h.toGo(r)
			} else {
				out[i] = unwrapValue(r)
			}
		}
		return out, nil
	}

	opts := []tracker.WrapOption{tracker.WithName(f.name)}
	var wrapped tracker.Func
	if f.abstract {
		wrapped = h.session.WrapAbstract(call, opts...)
	} else {
		opts = append(opts, tracker.WithOutputProps(f.outputs...))
		wrapped = h.session.WrapOp(call, opts...)
	}

	out, err := wrapped(goArgs, goKwargs)
	if err != nil {
		return nil, err
	}
	if !multi && len(out) == 1 {
		return h.toStarlark(out[0]), nil
	}
	tuple := make(starlark.Tuple, len(out))
	for i, o := range out {
		tuple[i] = h.toStarlark(o)
	}
	return tuple, nil
}

// host holds the per-run state shared by builtins.
type host struct {
	session  *tracker.Session
	wrappers map[*tracker.Data]*Tracked
}

func newHost(s *tracker.Session) *host {
	return &host{session: s, wrappers: make(map[*tracker.Data]*Tracked)}
}

// wrap returns the one Tracked for d, so that identity comparisons in
// scripts agree with the graph.
func (h *host) wrap(d *tracker.Data) *Tracked {
	if t, ok := h.wrappers[d]; ok {
		return t
	}
	t := &Tracked{data: d}
	h.wrappers[d] = t
	return t
}

// toGo converts a Starlark value for the tracker: Tracked becomes its
// *tracker.Data, everything else stays a starlark.Value.
func (h *host) toGo(v starlark.Value) any {
	if t, ok := v.(*Tracked); ok {
		return t.data
	}
	return v
}

// toStarlark reverses toGo.
func (h *host) toStarlark(v any) starlark.Value {
	switch x := v.(type) {
	case *tracker.Data:
		return h.wrap(x)
	case starlark.Value:
		return x
	case nil:
		return starlark.None
	}
	return starlark.String(fmt.Sprint(v))
}

func (h *host) toTuple(args []any) starlark.Tuple {
	t := make(starlark.Tuple, len(args))
	for i, a := range args {
		t[i] = h.toStarlark(a)
	}
	return t
}

func (h *host) toKwargs(kwargs map[string]any) []starlark.Tuple {
	names := make([]string, 0, len(kwargs))
	for k := range kwargs {
		names = append(names, k)
	}
	slices.Sort(names)
	out := make([]starlark.Tuple, len(names))
	for i, k := range names {
		out[i] = starlark.Tuple{starlark.String(k), h.toStarlark(kwargs[k])}
	}
	return out
}

// unwrapValue returns the wrapped value of a Tracked and v otherwise.
func unwrapValue(v starlark.Value) starlark.Value {
	if t, ok := v.(*Tracked); ok {
		return t.value()
	}
	return v
}

// lookupAttr resolves surfaced properties on Starlark values: attributes of
// HasAttrs values, then string keys of dicts.
func lookupAttr(value any, attr string) (any, error) {
	v, ok := value.(starlark.Value)
	if !ok {
		return tracker.DefaultLookup(value, attr)
	}
	if ha, ok := v.(starlark.HasAttrs); ok {
		x, err := ha.Attr(attr)
		if err != nil {
			return nil, err
		}
		if x != nil {
			return x, nil
		}
	}
	if d, ok := v.(*starlark.Dict); ok {
		x, found, err := d.Get(starlark.String(attr))
		if err != nil {
			return nil, err
		}
		if found {
			return x, nil
		}
	}
	return nil, fmt.Errorf("%w: %q on %s", tracker.ErrNoAttribute, attr, v.Type())
}
