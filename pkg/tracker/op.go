package tracker

import (
	"maps"
	"slices"
)

// Op records one invocation of a function wrapped by [Session.WrapOp].
//
// Only arguments that were tracked values are recorded. Positional slots keep
// the call's arity: an untracked argument is stored as a nil placeholder so
// that slot i always corresponds to argument i.
type Op struct {
	nestable
	id     uint64
	name   string
	args   []*Data
	kwargs map[string]*Data
}

func newOp(id uint64, name string, args []any, kwargs map[string]any) *Op {
	op := &Op{
		id:     id,
		name:   name,
		args:   make([]*Data, len(args)),
		kwargs: make(map[string]*Data),
	}
	for i, a := range args {
		if d, ok := a.(*Data); ok && d != nil {
			op.args[i] = d
		}
	}
	for k, v := range kwargs {
		if d, ok := v.(*Data); ok && d != nil {
			op.kwargs[k] = d
		}
	}
	return op
}

// ID returns the op's identity token.
func (o *Op) ID() uint64 { return o.id }

// Name returns the display name of the invoked function.
func (o *Op) Name() string { return o.name }

// Level always returns 0.
func (o *Op) Level() int { return 0 }

// Outermost returns the op's outermost uncontained ancestor.
func (o *Op) Outermost() Node { return outermost(o) }

// Args returns the positional slots. Untracked arguments are nil.
// The returned slice must not be modified.
func (o *Op) Args() []*Data { return o.args }

// Kwargs returns a copy of the tracked keyword arguments.
func (o *Op) Kwargs() map[string]*Data { return maps.Clone(o.kwargs) }

// KwargNames returns the tracked keyword argument names in sorted order.
func (o *Op) KwargNames() []string { return slices.Sorted(maps.Keys(o.kwargs)) }

// TrackedArgs returns every tracked argument: positional values in slot
// order, then keyword values in name order. Traversals use it to find the
// op's inputs.
func (o *Op) TrackedArgs() []*Data {
	out := make([]*Data, 0, len(o.args)+len(o.kwargs))
	for _, a := range o.args {
		if a != nil {
			out = append(out, a)
		}
	}
	for _, k := range o.KwargNames() {
		out = append(out, o.kwargs[k])
	}
	return out
}
