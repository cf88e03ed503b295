package tracker

import (
	"io"
	"slices"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/nikhilxb/xnode-db/pkg/observability"
)

// Session owns the state of one tracking run: the identity counter, the
// registry of uncontained nodes and the attribute lookup used for surfaced
// properties. Independent sessions never share nodes.
//
// The zero value is not usable - use [NewSession].
// A Session is not safe for concurrent use.
type Session struct {
	id     string
	next   uint64
	roots  []Node
	nodes  []Node
	ticks  map[int]int
	lookup AttrLookup
	logger *log.Logger
}

// SessionOption configures a [Session].
type SessionOption func(*Session)

// WithLookup sets the attribute lookup used to extract surfaced properties.
// The default is [DefaultLookup].
func WithLookup(fn AttrLookup) SessionOption {
	return func(s *Session) {
		if fn != nil {
			s.lookup = fn
		}
	}
}

// WithLogger sets the logger used for debug output. The default discards
// everything.
func WithLogger(l *log.Logger) SessionOption {
	return func(s *Session) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithSessionID overrides the generated session id.
func WithSessionID(id string) SessionOption {
	return func(s *Session) {
		if id != "" {
			s.id = id
		}
	}
}

// NewSession creates an empty tracking session with a random id.
func NewSession(opts ...SessionOption) *Session {
	s := &Session{
		id:     uuid.NewString(),
		ticks:  make(map[int]int),
		lookup: DefaultLookup,
		logger: log.New(io.Discard),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// Roots returns the nodes that currently have no container, in the order
// they were created. These are the candidates for the next grouping request.
func (s *Session) Roots() []Node { return slices.Clone(s.roots) }

// Nodes returns every op and container created in the session, in creation
// order.
func (s *Session) Nodes() []Node { return slices.Clone(s.nodes) }

// Ops returns every recorded op in creation order.
func (s *Session) Ops() []*Op {
	var ops []*Op
	for _, n := range s.nodes {
		if op, ok := n.(*Op); ok {
			ops = append(ops, op)
		}
	}
	return ops
}

// Containers returns every container in creation order.
func (s *Session) Containers() []*Container {
	var cs []*Container
	for _, n := range s.nodes {
		if c, ok := n.(*Container); ok {
			cs = append(cs, c)
		}
	}
	return cs
}

// Track wraps value as a root [Data] with no producing op. Roots are not
// ops, so they are not added to the registry. Surfaced properties are
// extracted immediately; a failed lookup is returned as an error.
func (s *Session) Track(value any, props Props) (*Data, error) {
	d := s.newData(value, nil, -1)
	if err := d.surfaceAll(props); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *Session) nextID() uint64 {
	s.next++
	return s.next
}

func (s *Session) newData(value any, op *Op, pos int) *Data {
	return &Data{
		id:     s.nextID(),
		value:  value,
		op:     op,
		pos:    pos,
		props:  make(map[string]any),
		lookup: s.lookup,
	}
}

func (s *Session) register(n Node) {
	s.roots = append(s.roots, n)
	s.nodes = append(s.nodes, n)
}

func (s *Session) unregister(members []Node) {
	gone := make(map[Node]struct{}, len(members))
	for _, m := range members {
		gone[m] = struct{}{}
	}
	s.roots = slices.DeleteFunc(s.roots, func(n Node) bool {
		_, ok := gone[n]
		return ok
	})
}

// enclose creates a container around members and moves them out of the
// registry. All checks run before any parent link is written, so a rejected
// request leaves the graph untouched.
func (s *Session) enclose(members []Node, kind Kind, level int, name string) (*Container, error) {
	for _, m := range members {
		if m.Parent() != nil {
			return nil, s.violation(ErrAlreadyContained, m)
		}
		if kind == Temporal && m.Level() != level-1 {
			return nil, s.violation(ErrLayering, m)
		}
	}

	c := &Container{
		id:       s.nextID(),
		name:     name,
		kind:     kind,
		level:    level,
		step:     -1,
		contents: members,
	}
	if kind == Temporal {
		c.step = s.ticks[level]
		s.ticks[level]++
	}
	for _, m := range members {
		if err := m.setParent(c); err != nil {
			return nil, s.violation(err, m)
		}
	}
	s.unregister(members)
	s.register(c)

	s.logger.Debug("built container",
		"session", s.id,
		"container", c.id,
		"kind", kind,
		"level", level,
		"size", len(members))
	observability.Tracker().OnContainerBuilt(kind.String(), level, len(members))
	return c, nil
}

func (s *Session) violation(err error, n Node) error {
	s.logger.Debug("rejected grouping request", "session", s.id, "node", n.ID(), "err", err)
	observability.Tracker().OnInvariantViolation(err)
	return err
}
