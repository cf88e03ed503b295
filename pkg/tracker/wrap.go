package tracker

import (
	"reflect"
	"runtime"
	"strings"

	"github.com/nikhilxb/xnode-db/pkg/observability"
)

// Func is the calling convention for functions that can be tracked.
// Multi-result functions return one element per result.
type Func func(args []any, kwargs map[string]any) ([]any, error)

// WrapOption configures [Session.WrapOp] and [Session.WrapAbstract].
type WrapOption func(*wrapConfig)

type wrapConfig struct {
	name    string
	outputs []Props
}

// WithName sets the display name recorded for each call. The default is the
// Go name of the wrapped function.
func WithName(name string) WrapOption {
	return func(c *wrapConfig) { c.name = name }
}

// WithOutputProps sets the surfaced properties of each result, by position.
// Results past the end of props surface nothing.
func WithOutputProps(props ...Props) WrapOption {
	return func(c *wrapConfig) { c.outputs = props }
}

func newWrapConfig(fn Func, opts []WrapOption) *wrapConfig {
	c := &wrapConfig{}
	for _, opt := range opts {
		opt(c)
	}
	if c.name == "" {
		c.name = funcName(fn)
	}
	return c
}

func (c *wrapConfig) propsAt(i int) Props {
	if i < len(c.outputs) {
		return c.outputs[i]
	}
	return nil
}

// funcName returns the unqualified Go name of fn, or "op" when it cannot be
// determined.
func funcName(fn Func) string {
	if fn == nil {
		return "op"
	}
	f := runtime.FuncForPC(reflect.ValueOf(fn).Pointer())
	if f == nil {
		return "op"
	}
	name := f.Name()
	if i := strings.LastIndexByte(name, '/'); i >= 0 {
		name = name[i+1:]
	}
	if i := strings.IndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	if name == "" {
		return "op"
	}
	return name
}

// WrapOp returns a Func that records each call of fn as an [Op].
//
// Tracked arguments are unwrapped before fn sees them. When fn succeeds, one
// op is created, every result is wrapped as a [Data] produced by it and the
// op is added to the session's uncontained roots. When fn fails, or a
// surfaced output property cannot be extracted, the error is returned and the
// graph is left unchanged.
func (s *Session) WrapOp(fn Func, opts ...WrapOption) Func {
	cfg := newWrapConfig(fn, opts)
	return func(args []any, kwargs map[string]any) ([]any, error) {
		results, err := fn(unwrapArgs(args), unwrapKwargs(kwargs))
		if err != nil {
			return nil, err
		}

		op := newOp(0, cfg.name, args, kwargs)
		outs := make([]any, len(results))
		for i, r := range results {
			d := s.newData(r, op, i)
			if err := d.surfaceAll(cfg.propsAt(i)); err != nil {
				return nil, err
			}
			outs[i] = d
		}
		op.id = s.nextID()
		s.register(op)

		s.logger.Debug("recorded op", "session", s.id, "op", op.id, "name", op.name, "outputs", len(outs))
		observability.Tracker().OnOpRecorded(op.name)
		return outs, nil
	}
}

// WrapAbstract returns a Func that encloses everything computed by each call
// of fn in a new abstractive [Container].
//
// Arguments and results are passed through unchanged. The tracked arguments
// bound the backward walk and the tracked results seed it; see
// [Session.Group]. A call with no tracked results creates an empty
// container. When fn fails, its error is returned and no container is
// created.
func (s *Session) WrapAbstract(fn Func, opts ...WrapOption) Func {
	cfg := newWrapConfig(fn, opts)
	return func(args []any, kwargs map[string]any) ([]any, error) {
		inputs := collectData(args)
		for _, k := range sortedKeys(kwargs) {
			if d, ok := kwargs[k].(*Data); ok && d != nil {
				inputs = append(inputs, d)
			}
		}

		results, err := fn(args, kwargs)
		if err != nil {
			return nil, err
		}
		if _, err := s.Group(collectData(results), inputs, cfg.name); err != nil {
			return nil, err
		}
		return results, nil
	}
}

// Unwrap returns the underlying value of v if it is a [Data], and v
// otherwise.
func Unwrap(v any) any {
	if d, ok := v.(*Data); ok && d != nil {
		return d.value
	}
	return v
}

func unwrapArgs(args []any) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = Unwrap(a)
	}
	return out
}

func unwrapKwargs(kwargs map[string]any) map[string]any {
	if kwargs == nil {
		return nil
	}
	out := make(map[string]any, len(kwargs))
	for k, v := range kwargs {
		out[k] = Unwrap(v)
	}
	return out
}

func collectData(vals []any) []*Data {
	var out []*Data
	for _, v := range vals {
		if d, ok := v.(*Data); ok && d != nil {
			out = append(out, d)
		}
	}
	return out
}
