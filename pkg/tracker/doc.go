// Package tracker records a computation graph while code executes.
//
// # Overview
//
// Values enter the graph through [Session.Track], which wraps them as root
// [Data] nodes. Functions enter the graph through [Session.WrapOp]: every call
// of the returned [Func] records one [Op] and wraps each result as a [Data]
// whose producing op is that call. The result is a DAG of data and ops that
// can be walked backwards from any output to the roots it was computed from.
//
// # Containers
//
// Ops can be grouped into [Container] nodes in two independent ways:
//
//   - Abstractive containers (level 0) collapse a subgraph into a black box.
//     They are created by [Session.WrapAbstract] or [Session.Group], which walk
//     backwards from a call's outputs to its inputs and enclose every op found
//     on the way.
//   - Temporal containers (level ≥ 1) close off one "tick" of execution. They
//     are created by [Session.Tick] (seeded from one output) and
//     [Session.TickAll] (seeded from every uncontained node).
//
// Both kinds enclose the outermost uncontained ancestor of each node they
// reach, so grouping an area that already contains containers nests those
// containers instead of stealing their members.
//
// # Invariants
//
// Every [Op] and [Container] has at most one parent, assigned exactly once.
// A temporal container at level n contains only nodes at level n-1; when a
// tick would skip a level, the missing level is materialised first. Parent
// assignment is deferred until a traversal has finished, so siblings that
// share an ancestor are all enclosed by the same new container.
//
// Violations are reported as errors ([ErrAlreadyContained], [ErrLayering])
// and never leave a partially built container behind.
//
// # Identity
//
// Algorithms compare nodes by identity, never by the wrapped value. Each node
// also carries a token from a per-session counter ([Op.ID], [Data.ID],
// [Container.ID]) that serializers use instead of memory addresses.
//
// # Concurrency
//
// A [Session] is not safe for concurrent use. Tracked calls and grouping
// requests must come from one goroutine at a time, or be serialized by the
// caller.
package tracker
