package script

import (
	"fmt"

	"go.starlark.net/starlark"

	"github.com/nikhilxb/xnode-db/pkg/tracker"
)

// builtins returns the predeclared names available to every script.
func (h *host) builtins() starlark.StringDict {
	return starlark.StringDict{
		"track":    starlark.NewBuiltin("track", h.track),
		"op":       starlark.NewBuiltin("op", h.op),
		"abstract": starlark.NewBuiltin("abstract", h.abstractFn),
		"tick":     starlark.NewBuiltin("tick", h.tick),
		"tick_all": starlark.NewBuiltin("tick_all", h.tickAll),
		"surface":  starlark.NewBuiltin("surface", h.surface),
		"value":    starlark.NewBuiltin("value", h.value),
	}
}

// track(value, props=None) wraps value as a root tracked value.
func (h *host) track(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v, props starlark.Value = starlark.None, starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "value", &v, "props?", &props); err != nil {
		return nil, err
	}
	p, err := toProps(b.Name(), props)
	if err != nil {
		return nil, err
	}
	d, err := h.session.Track(unwrapValue(v), p)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return h.wrap(d), nil
}

// op(fn, name=None, outputs=None) returns a version of fn whose calls are
// recorded in the graph.
func (h *host) op(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	var name string
	var outputs starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "fn", &fn, "name?", &name, "outputs?", &outputs); err != nil {
		return nil, err
	}
	props, err := toOutputProps(b.Name(), outputs)
	if err != nil {
		return nil, err
	}
	if name == "" {
		name = fn.Name()
	}
	return &trackedFunc{host: h, fn: fn, name: name, outputs: props}, nil
}

// abstract(fn, name=None) returns a version of fn whose calls are each
// enclosed in an abstractive container.
func (h *host) abstractFn(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var fn starlark.Callable
	var name string
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "fn", &fn, "name?", &name); err != nil {
		return nil, err
	}
	if name == "" {
		name = fn.Name()
	}
	return &trackedFunc{host: h, fn: fn, name: name, abstract: true}, nil
}

// tick(value, level=0) closes the tick that produced value.
func (h *host) tick(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var t *Tracked
	level := 0
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "value", &t, "level?", &level); err != nil {
		return nil, err
	}
	c, err := h.session.Tick(t.data, level)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.MakeInt(c.Len()), nil
}

// tick_all(level=0) closes every uncontained node at level.
func (h *host) tickAll(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	level := 0
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "level?", &level); err != nil {
		return nil, err
	}
	c, err := h.session.TickAll(level)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return starlark.MakeInt(c.Len()), nil
}

// surface(value, name, attr=None) shows an attribute of a tracked value
// under name. With no attr the whole value is shown.
func (h *host) surface(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var t *Tracked
	var name string
	var attr starlark.Value = starlark.None
	if err := starlark.UnpackArgs(b.Name(), args, kwargs, "value", &t, "name", &name, "attr?", &attr); err != nil {
		return nil, err
	}
	a, err := attrName(b.Name(), attr)
	if err != nil {
		return nil, err
	}
	if err := t.data.Surface(name, a); err != nil {
		return nil, fmt.Errorf("%s: %w", b.Name(), err)
	}
	return t, nil
}

// value(x) returns the wrapped value of a tracked x, or x itself.
func (h *host) value(_ *starlark.Thread, b *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var v starlark.Value
	if err := starlark.UnpackPositionalArgs(b.Name(), args, kwargs, 1, &v); err != nil {
		return nil, err
	}
	return unwrapValue(v), nil
}

func attrName(fn string, v starlark.Value) (string, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return tracker.Self, nil
	case starlark.String:
		return string(x), nil
	}
	return "", fmt.Errorf("%s: attribute name must be a string or None, got %s", fn, v.Type())
}

// toProps converts None or a dict of display name to attribute name.
func toProps(fn string, v starlark.Value) (tracker.Props, error) {
	if v == starlark.None {
		return nil, nil
	}
	d, ok := v.(*starlark.Dict)
	if !ok {
		return nil, fmt.Errorf("%s: props must be a dict, got %s", fn, v.Type())
	}
	props := make(tracker.Props, d.Len())
	for _, kv := range d.Items() {
		k, ok := kv[0].(starlark.String)
		if !ok {
			return nil, fmt.Errorf("%s: prop names must be strings, got %s", fn, kv[0].Type())
		}
		a, err := attrName(fn, kv[1])
		if err != nil {
			return nil, err
		}
		props[string(k)] = a
	}
	return props, nil
}

// toOutputProps accepts None, a single props dict (for the first output) or
// a list of props dicts, one per output.
func toOutputProps(fn string, v starlark.Value) ([]tracker.Props, error) {
	switch x := v.(type) {
	case starlark.NoneType:
		return nil, nil
	case *starlark.Dict:
		p, err := toProps(fn, x)
		if err != nil {
			return nil, err
		}
		return []tracker.Props{p}, nil
	case starlark.Indexable:
		out := make([]tracker.Props, x.Len())
		for i := range out {
			p, err := toProps(fn, x.Index(i))
			if err != nil {
				return nil, err
			}
			out[i] = p
		}
		return out, nil
	}
	return nil, fmt.Errorf("%s: outputs must be a dict or a list of dicts, got %s", fn, v.Type())
}
