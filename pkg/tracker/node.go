package tracker

// Node is an item that can be enclosed by a [Container]: either an [Op] or
// another [Container].
//
// The interface is sealed; only this package provides implementations.
type Node interface {
	// ID returns the node's identity token, unique within its session.
	ID() uint64

	// Parent returns the enclosing container, or nil if the node is uncontained.
	Parent() *Container

	// Level returns the node's temporal level: 0 for ops and abstractive
	// containers, at least 1 for temporal containers.
	Level() int

	// Outermost returns the first node without a parent found by following
	// parent links from this node. It returns the node itself when it has no
	// parent.
	Outermost() Node

	setParent(c *Container) error
}

// nestable holds the parent link shared by ops and containers.
type nestable struct {
	parent *Container
}

func (n *nestable) Parent() *Container { return n.parent }

func (n *nestable) setParent(c *Container) error {
	if n.parent != nil {
		return ErrAlreadyContained
	}
	n.parent = c
	return nil
}

// outermost follows parent links from self. Parents always point at
// containers created after their children, so the chain is finite.
func outermost(self Node) Node {
	if p := self.Parent(); p != nil {
		return p.Outermost()
	}
	return self
}
