package tracker

import (
	"fmt"
	"maps"
	"slices"
)

// Self is the attribute name that surfaces the whole wrapped value instead
// of one of its attributes.
const Self = ""

// Props selects which parts of a tracked value are shown in a client. Keys
// are display names; values are attribute names looked up on the wrapped
// value, or [Self] for the value itself.
type Props map[string]string

// Data records one tracked value: the value itself, the op that produced it
// and the properties surfaced for display.
//
// The wrapped value is assumed immutable for the lifetime of the graph.
// Mutating it after it has been tracked makes the recorded graph inaccurate.
type Data struct {
	id     uint64
	value  any
	op     *Op
	pos    int
	props  map[string]any
	lookup AttrLookup
}

// ID returns the value's identity token.
func (d *Data) ID() uint64 { return d.id }

// Value returns the wrapped value.
func (d *Data) Value() any { return d.value }

// Op returns the op that produced the value, or nil for a root value.
func (d *Data) Op() *Op { return d.op }

// Position returns the value's index in its op's outputs, or -1 for a root.
func (d *Data) Position() int { return d.pos }

// IsRoot reports whether the value was tracked directly rather than produced
// by an op.
func (d *Data) IsRoot() bool { return d.op == nil }

// Props returns a copy of the surfaced properties, keyed by display name.
func (d *Data) Props() map[string]any { return maps.Clone(d.props) }

// PropNames returns the surfaced property names in sorted order.
func (d *Data) PropNames() []string { return slices.Sorted(maps.Keys(d.props)) }

// Surface adds or replaces the property shown under name. The attribute is
// looked up immediately; attr == [Self] surfaces the whole value.
func (d *Data) Surface(name, attr string) error {
	v, err := d.extract(attr)
	if err != nil {
		return fmt.Errorf("surface %q: %w", name, err)
	}
	d.props[name] = v
	return nil
}

func (d *Data) extract(attr string) (any, error) {
	if attr == Self {
		return d.value, nil
	}
	return d.lookup(d.value, attr)
}

func (d *Data) surfaceAll(props Props) error {
	for _, name := range slices.Sorted(maps.Keys(props)) {
		if err := d.Surface(name, props[name]); err != nil {
			return err
		}
	}
	return nil
}

// String returns a short description used in logs.
func (d *Data) String() string {
	if d.op == nil {
		return fmt.Sprintf("data#%d(root)", d.id)
	}
	return fmt.Sprintf("data#%d(%s[%d])", d.id, d.op.name, d.pos)
}
