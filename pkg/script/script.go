// Package script runs Starlark programs whose computations are recorded in a
// tracker graph.
//
// A script marks values and functions for tracking with a small set of
// builtins:
//
//	w = track([[1, 2], [3, 4]], props={"shape": None})
//	matmul = op(_matmul, name="matmul", outputs={"value": None})
//	layer = abstract(_layer, name="dense")
//	y = layer(x, w)
//	tick(y)
//
// Tracked values are of type "tracked"; ops receive the wrapped values, so
// ordinary Starlark functions can be tracked unmodified. See [Run] for the
// full list of builtins.
//
// After the run, [Result.Namespace] exposes the script's globals with
// tracked values replaced by their *tracker.Data, ready for the schema
// engine configured by [SchemaOptions].
package script

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/nikhilxb/xnode-db/pkg/observability"
	"github.com/nikhilxb/xnode-db/pkg/tracker"
)

// ErrScript is returned when a script fails to parse or raises an error.
// The Starlark error is wrapped alongside it; use [Backtrace] to format it.
var ErrScript = errors.New("script failed")

var fileOptions = &syntax.FileOptions{
	Set:             true,
	While:           true,
	TopLevelControl: true,
	GlobalReassign:  true,
}

// Result is the outcome of a successful run.
type Result struct {
	// Session holds the recorded graph.
	Session *tracker.Session

	// Globals are the script's top-level bindings.
	Globals starlark.StringDict

	// Steps is the number of Starlark execution steps taken.
	Steps uint64
}

// Namespace returns the script's public globals (names not starting with
// "_") with tracked values replaced by their *tracker.Data.
func (r *Result) Namespace() map[string]any {
	ns := make(map[string]any, len(r.Globals))
	for name, v := range r.Globals {
		if strings.HasPrefix(name, "_") {
			continue
		}
		if t, ok := v.(*Tracked); ok {
			ns[name] = t.data
			continue
		}
		ns[name] = v
	}
	return ns
}

type config struct {
	logger      *log.Logger
	maxSteps    uint64
	sessionOpts []tracker.SessionOption
}

// Option configures [Run].
type Option func(*config)

// WithLogger sets the logger that receives print output and debug messages.
// Without one, both are discarded.
func WithLogger(l *log.Logger) Option {
	return func(c *config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithMaxSteps cancels the script after n Starlark execution steps.
// Zero means no limit.
func WithMaxSteps(n uint64) Option {
	return func(c *config) { c.maxSteps = n }
}

// WithSessionOptions passes options to the tracking session.
func WithSessionOptions(opts ...tracker.SessionOption) Option {
	return func(c *config) { c.sessionOpts = append(c.sessionOpts, opts...) }
}

// Run executes the Starlark program src (a string, []byte or io.Reader)
// read from filename, recording tracked calls in a new session.
//
// The predeclared builtins are:
//
//	track(value, props=None)          wrap value as a root tracked value
//	op(fn, name=None, outputs=None)   record each call of fn as an op
//	abstract(fn, name=None)           enclose each call of fn in a container
//	tick(value, level=0)              close the tick that produced value
//	tick_all(level=0)                 close every uncontained node at level
//	surface(value, name, attr=None)   show an attribute under name
//	value(x)                          unwrap a tracked value
//
// Cancelling ctx stops the script at its next step. Errors raised by the
// script, including rejected grouping requests, are returned wrapped with
// [ErrScript].
func Run(ctx context.Context, filename string, src any, opts ...Option) (*Result, error) {
	cfg := &config{logger: log.New(io.Discard)}
	for _, opt := range opts {
		opt(cfg)
	}

	sessionOpts := append([]tracker.SessionOption{
		tracker.WithLookup(lookupAttr),
		tracker.WithLogger(cfg.logger),
	}, cfg.sessionOpts...)
	session := tracker.NewSession(sessionOpts...)
	h := newHost(session)

	thread := &starlark.Thread{
		Name: filename,
		Print: func(_ *starlark.Thread, msg string) {
			cfg.logger.Info(msg, "script", filename)
		},
	}
	if cfg.maxSteps > 0 {
		thread.SetMaxExecutionSteps(cfg.maxSteps)
	}

	done := make(chan struct{})
	defer close(done)
	go func() {
		select {
		case <-ctx.Done():
			thread.Cancel(ctx.Err().Error())
		case <-done:
		}
	}()

	hooks := observability.Pipeline()
	hooks.OnRunStart(ctx, filename)
	start := time.Now()

	cfg.logger.Debug("running script", "script", filename, "session", session.ID())
	globals, err := starlark.ExecFileOptions(fileOptions, thread, filename, src, h.builtins())
	hooks.OnRunComplete(ctx, filename, len(session.Ops()), time.Since(start), err)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%w: %s: %w", ErrScript, filename, ctxErr)
		}
		return nil, fmt.Errorf("%w: %w", ErrScript, err)
	}

	cfg.logger.Debug("script finished",
		"script", filename,
		"ops", len(session.Ops()),
		"containers", len(session.Containers()),
		"steps", thread.ExecutionSteps())
	return &Result{Session: session, Globals: globals, Steps: thread.ExecutionSteps()}, nil
}

// RunFile reads and runs the script at path.
func RunFile(ctx context.Context, path string, opts ...Option) (*Result, error) {
	src, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return Run(ctx, path, src, opts...)
}

// Backtrace returns the Starlark backtrace of a script error, or the error
// text when none is available.
func Backtrace(err error) string {
	var evalErr *starlark.EvalError
	if errors.As(err, &evalErr) {
		return evalErr.Backtrace()
	}
	return err.Error()
}
