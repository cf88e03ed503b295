package tracker

import "errors"

var (
	// ErrAlreadyContained is returned when a grouping request would give a
	// node a second parent. It indicates a bookkeeping bug, never a normal
	// runtime condition; no container is created when it is returned.
	ErrAlreadyContained = errors.New("node already has a container")

	// ErrLayering is returned when a temporal container would directly
	// contain a node whose level is not exactly one below its own.
	ErrLayering = errors.New("temporal container must contain nodes exactly one level below it")

	// ErrInvalidLevel is returned by [Session.Tick] and [Session.TickAll]
	// for negative levels.
	ErrInvalidLevel = errors.New("temporal level must not be negative")

	// ErrNilData is returned when a nil [Data] is given where a tracked
	// value is required.
	ErrNilData = errors.New("nil tracked value")

	// ErrNoAttribute is returned by the default attribute lookup when the
	// value has no attribute with the requested name.
	ErrNoAttribute = errors.New("no such attribute")
)
