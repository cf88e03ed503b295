package tracker

import "slices"

// Kind distinguishes the two grouping semantics of a [Container].
type Kind int

const (
	// Abstractive containers collapse a subgraph into a single black box.
	// They always have level 0.
	Abstractive Kind = iota
	// Temporal containers enclose one tick of execution. A temporal
	// container at level n encloses only nodes at level n-1.
	Temporal
)

// String returns "abstractive" or "temporal".
func (k Kind) String() string {
	if k == Temporal {
		return "temporal"
	}
	return "abstractive"
}

// Container groups ops and other containers. Containers are created only by
// the grouping operations of [Session]; their contents never change after
// creation.
type Container struct {
	nestable
	id       uint64
	name     string
	kind     Kind
	level    int
	step     int
	contents []Node
}

// ID returns the container's identity token.
func (c *Container) ID() uint64 { return c.id }

// Name returns the optional display name.
func (c *Container) Name() string { return c.name }

// Kind returns the container's grouping semantics.
func (c *Container) Kind() Kind { return c.kind }

// Level returns 0 for abstractive containers and the tick height for
// temporal ones.
func (c *Container) Level() int { return c.level }

// Step returns the container's index among the temporal containers of the
// same level in its session, counting from 0. It returns -1 for abstractive
// containers.
func (c *Container) Step() int { return c.step }

// IsTemporal reports whether the container encloses a tick.
func (c *Container) IsTemporal() bool { return c.kind == Temporal }

// Outermost returns the container's outermost uncontained ancestor.
func (c *Container) Outermost() Node { return outermost(c) }

// Contents returns the enclosed nodes in discovery order.
func (c *Container) Contents() []Node { return slices.Clone(c.contents) }

// Len returns the number of enclosed nodes.
func (c *Container) Len() int { return len(c.contents) }

// Contains reports whether n is a direct member of the container.
func (c *Container) Contains(n Node) bool { return slices.Contains(c.contents, n) }
