package tracker

import (
	"maps"
	"slices"
)

// Group encloses the computation that produced outputs from inputs in a new
// abstractive container.
//
// The walk starts at the producing op of each output and follows tracked
// arguments backwards. A value in inputs (compared by identity) stops its
// branch, as does a root value. Every op reached contributes its outermost
// uncontained ancestor, once, in discovery order. Parents are assigned only
// after the walk, so ops that share a container are all enclosed by nesting
// that container.
//
// Group with no outputs returns an empty container.
func (s *Session) Group(outputs, inputs []*Data, name string) (*Container, error) {
	frontier := make(map[*Data]struct{}, len(inputs))
	for _, d := range inputs {
		frontier[d] = struct{}{}
	}

	var members []Node
	added := make(map[Node]struct{})
	visitedOps := make(map[*Op]struct{})
	seenData := make(map[*Data]struct{})

	queue := make([]*Data, 0, len(outputs))
	for _, d := range outputs {
		if d == nil {
			return nil, ErrNilData
		}
		queue = append(queue, d)
	}

	for len(queue) > 0 {
		d := queue[0]
		queue = queue[1:]

		if _, ok := seenData[d]; ok {
			continue
		}
		seenData[d] = struct{}{}
		if _, ok := frontier[d]; ok {
			continue
		}
		op := d.op
		if op == nil {
			continue
		}
		if _, ok := visitedOps[op]; ok {
			continue
		}
		visitedOps[op] = struct{}{}

		top := op.Outermost()
		if _, ok := added[top]; !ok {
			added[top] = struct{}{}
			members = append(members, top)
		}
		queue = append(queue, op.TrackedArgs()...)
	}

	return s.enclose(members, Abstractive, 0, name)
}

// Tick encloses the tick of execution that produced output in a new temporal
// container at level+1.
//
// If the outermost ancestor of output's producing op is below level, the
// missing levels are built first by ticking output at level-1, so the
// result never skips a layer. The walk then follows tracked arguments
// backwards and collects every outermost ancestor at exactly level; a branch
// stops at the first ancestor at any other level, or at a root value.
//
// A root output, or one whose history has already been enclosed above
// level, yields an empty container.
func (s *Session) Tick(output *Data, level int) (*Container, error) {
	if level < 0 {
		return nil, ErrInvalidLevel
	}
	if output == nil {
		return nil, ErrNilData
	}
	if output.op != nil && output.op.Outermost().Level() < level {
		if _, err := s.Tick(output, level-1); err != nil {
			return nil, err
		}
	}

	var members []Node
	added := make(map[Node]struct{})
	visitedOps := make(map[*Op]struct{})

	var queue []*Op
	if output.op != nil {
		queue = append(queue, output.op)
	}
	for len(queue) > 0 {
		op := queue[0]
		queue = queue[1:]

		if _, ok := visitedOps[op]; ok {
			continue
		}
		visitedOps[op] = struct{}{}

		top := op.Outermost()
		if top.Level() != level {
			continue
		}
		if _, ok := added[top]; !ok {
			added[top] = struct{}{}
			members = append(members, top)
		}
		for _, a := range op.TrackedArgs() {
			if a.op != nil {
				queue = append(queue, a.op)
			}
		}
	}

	return s.enclose(members, Temporal, level+1, "")
}

// TickAll encloses every uncontained node at level in a new temporal
// container at level+1, in registry order.
//
// If any uncontained node is below level, TickAll(level-1) runs first so the
// lower layers are closed before this one.
func (s *Session) TickAll(level int) (*Container, error) {
	if level < 0 {
		return nil, ErrInvalidLevel
	}
	if slices.ContainsFunc(s.roots, func(n Node) bool { return n.Level() < level }) {
		if _, err := s.TickAll(level - 1); err != nil {
			return nil, err
		}
	}

	var members []Node
	for _, n := range s.roots {
		if n.Level() == level {
			members = append(members, n)
		}
	}
	return s.enclose(members, Temporal, level+1, "")
}

func sortedKeys(m map[string]any) []string {
	return slices.Sorted(maps.Keys(m))
}
