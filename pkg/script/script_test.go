package script

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"
	"testing"

	"github.com/charmbracelet/log"
	"go.starlark.net/starlark"

	"github.com/nikhilxb/xnode-db/pkg/schema"
	"github.com/nikhilxb/xnode-db/pkg/tracker"
)

func run(t *testing.T, src string, opts ...Option) *Result {
	t.Helper()
	opts = append([]Option{WithLogger(log.New(io.Discard))}, opts...)
	res, err := Run(context.Background(), "test.star", src, opts...)
	if err != nil {
		t.Fatalf("Run: %v\n%s", err, Backtrace(err))
	}
	return res
}

func runErr(t *testing.T, src string, opts ...Option) error {
	t.Helper()
	opts = append([]Option{WithLogger(log.New(io.Discard))}, opts...)
	_, err := Run(context.Background(), "test.star", src, opts...)
	if err == nil {
		t.Fatal("Run succeeded, want error")
	}
	return err
}

func dataOf(t *testing.T, res *Result, name string) *tracker.Data {
	t.Helper()
	d, ok := res.Namespace()[name].(*tracker.Data)
	if !ok {
		t.Fatalf("%s is %T, want *tracker.Data", name, res.Namespace()[name])
	}
	return d
}

func intValue(t *testing.T, v any) int64 {
	t.Helper()
	i, ok := v.(starlark.Int)
	if !ok {
		t.Fatalf("value is %T, want starlark.Int", v)
	}
	n, ok := i.Int64()
	if !ok {
		t.Fatalf("value %s overflows int64", i)
	}
	return n
}

func TestRun_Op(t *testing.T) {
	res := run(t, `
def _add(a, b):
    return a + b

add = op(_add)
x = track(1)
y = track(2)
z = add(x, y)
`)
	z := dataOf(t, res, "z")
	if got := intValue(t, z.Value()); got != 3 {
		t.Errorf("z = %d, want 3", got)
	}
	op := z.Op()
	if op == nil {
		t.Fatal("z has no producing op")
	}
	if op.Name() != "_add" {
		t.Errorf("op name = %q, want %q", op.Name(), "_add")
	}
	args := op.Args()
	if len(args) != 2 || args[0] != dataOf(t, res, "x") || args[1] != dataOf(t, res, "y") {
		t.Errorf("op args do not reference x and y")
	}
	if n := len(res.Session.Ops()); n != 1 {
		t.Errorf("got %d ops, want 1", n)
	}
}

func TestRun_OpKwargsAndUntracked(t *testing.T) {
	res := run(t, `
def _scale(x, factor=1, bias=0):
    return x * factor + bias

scale = op(_scale, name="scale")
x = track(5)
y = scale(x, factor=track(3), bias=2)
`)
	y := dataOf(t, res, "y")
	if got := intValue(t, y.Value()); got != 17 {
		t.Errorf("y = %d, want 17", got)
	}
	kw := y.Op().Kwargs()
	if _, ok := kw["factor"]; !ok {
		t.Error("tracked kwarg factor not recorded")
	}
	if _, ok := kw["bias"]; ok {
		t.Error("untracked kwarg bias recorded as tracked")
	}
	if n := len(y.Op().TrackedArgs()); n != 2 {
		t.Errorf("got %d tracked args, want 2", n)
	}
}

func TestRun_OpMultipleOutputs(t *testing.T) {
	res := run(t, `
def _split(x):
    return x, x * 2

split = op(_split, outputs=[{"value": None}, {}])
a, b = split(track(4))
`)
	a, b := dataOf(t, res, "a"), dataOf(t, res, "b")
	if a.Op() != b.Op() {
		t.Fatal("outputs should share one op")
	}
	if a.Position() != 0 || b.Position() != 1 {
		t.Errorf("positions = %d, %d; want 0, 1", a.Position(), b.Position())
	}
	if got := intValue(t, a.Props()["value"]); got != 4 {
		t.Errorf("a.value prop = %d, want 4", got)
	}
	if len(b.Props()) != 0 {
		t.Errorf("b props = %v, want none", b.Props())
	}
}

func TestRun_OpPreservesIdentity(t *testing.T) {
	res := run(t, `
def _id(x):
    return x

ident = op(_id)
x = track([1, 2])
y = ident(x)
same = x == x
chained = ident(y) != y
`)
	if res.Globals["same"] != starlark.True {
		t.Error("a tracked value should equal itself")
	}
	if res.Globals["chained"] != starlark.True {
		t.Error("each op call should produce a new tracked value")
	}
}

func TestRun_Abstract(t *testing.T) {
	res, err := RunFile(context.Background(), "testdata/mlp.star", WithLogger(log.New(io.Discard)))
	if err != nil {
		t.Fatalf("RunFile: %v\n%s", err, Backtrace(err))
	}
	out := dataOf(t, res, "out")
	if got := intValue(t, out.Value()); got != 21 {
		t.Errorf("out = %d, want 21", got)
	}

	containers := res.Session.Containers()
	if len(containers) != 2 {
		t.Fatalf("got %d containers, want 2", len(containers))
	}
	for _, c := range containers {
		if c.Name() != "dense" || c.Kind() != tracker.Abstractive {
			t.Errorf("container %q %s, want dense abstractive", c.Name(), c.Kind())
		}
		var names []string
		for _, n := range c.Contents() {
			names = append(names, n.(*tracker.Op).Name())
		}
		if got := strings.Join(names, ","); got != "relu,add,mul" {
			t.Errorf("contents = %s, want relu,add,mul", got)
		}
	}
	if roots := res.Session.Roots(); len(roots) != 2 {
		t.Errorf("got %d uncontained nodes, want 2", len(roots))
	}
	if got := intValue(t, out.Props()["value"]); got != 21 {
		t.Errorf("surfaced value = %d, want 21", got)
	}
	if got := intValue(t, dataOf(t, res, "x").Props()["value"]); got != 3 {
		t.Errorf("x value prop = %d, want 3", got)
	}
}

func TestRun_Tick(t *testing.T) {
	res, err := RunFile(context.Background(), "testdata/rnn.star", WithLogger(log.New(io.Discard)))
	if err != nil {
		t.Fatalf("RunFile: %v\n%s", err, Backtrace(err))
	}
	if got := intValue(t, res.Globals["final"]); got != 11 {
		t.Errorf("final = %d, want 11", got)
	}

	containers := res.Session.Containers()
	if len(containers) != 3 {
		t.Fatalf("got %d containers, want 3", len(containers))
	}
	for i, c := range containers {
		if !c.IsTemporal() || c.Level() != 1 || c.Len() != 1 {
			t.Errorf("container %d: temporal=%v level=%d len=%d", i, c.IsTemporal(), c.Level(), c.Len())
		}
		if c.Step() != i {
			t.Errorf("container %d: step %d", i, c.Step())
		}
	}
	if got := res.Globals["steps"].String(); got != "[1, 1, 1]" {
		t.Errorf("steps = %s, want [1, 1, 1]", got)
	}
}

func TestRun_TickAll(t *testing.T) {
	res := run(t, `
def _inc(x):
    return x + 1

inc = op(_inc)
a = inc(track(1))
b = inc(track(2))
n = tick_all()
m = tick_all()
`)
	if got := intValue(t, res.Globals["n"]); got != 2 {
		t.Errorf("first tick_all enclosed %d nodes, want 2", got)
	}
	if got := intValue(t, res.Globals["m"]); got != 0 {
		t.Errorf("second tick_all enclosed %d nodes, want 0", got)
	}
}

func TestRun_Surface(t *testing.T) {
	res := run(t, `
x = track({"shape": [2, 2], "dtype": "f32"}, props={"shape": "shape"})
surface(x, "type", "dtype")
surface(x, "all")
`)
	x := dataOf(t, res, "x")
	props := x.Props()
	if got := props["shape"].(starlark.Value).String(); got != "[2, 2]" {
		t.Errorf("shape = %s", got)
	}
	if got := props["type"]; got != starlark.String("f32") {
		t.Errorf("type = %v", got)
	}
	if _, ok := props["all"].(*starlark.Dict); !ok {
		t.Errorf("all = %T, want *starlark.Dict", props["all"])
	}
}

func TestRun_Errors(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"syntax", "x = = 1", "test.star:1"},
		{"fail", `fail("boom")`, "boom"},
		{"missing prop", `track(1, props={"shape": "shape"})`, "no such attribute"},
		{"bad props", `track(1, props=[1])`, "props must be a dict"},
		{"bad level", `
def _f(x):
    return x
tick(op(_f)(track(1)), level=-1)
`, "must not be negative"},
		{"tick untracked", `tick(1)`, "tick"},
		{"op failure", `
def _f(x):
    fail("inner")
op(_f)(track(1))
`, "inner"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := runErr(t, tt.src)
			if !errors.Is(err, ErrScript) {
				t.Errorf("error %v does not wrap ErrScript", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error %q does not mention %q", err, tt.want)
			}
		})
	}
}

func TestRun_MaxSteps(t *testing.T) {
	err := runErr(t, `
for i in range(1000000):
    pass
`, WithMaxSteps(100))
	if !strings.Contains(err.Error(), "too many steps") {
		t.Errorf("error %q does not mention the step limit", err)
	}
}

func TestRun_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Run(ctx, "loop.star", `
while True:
    pass
`, WithLogger(log.New(io.Discard)))
	if !errors.Is(err, context.Canceled) {
		t.Errorf("err = %v, want context.Canceled", err)
	}
	if !errors.Is(err, ErrScript) {
		t.Errorf("err = %v, want ErrScript", err)
	}
}

func TestRun_SessionOptions(t *testing.T) {
	res := run(t, `x = track(1)`, WithSessionOptions(tracker.WithSessionID("fixed")))
	if res.Session.ID() != "fixed" {
		t.Errorf("session id = %q, want fixed", res.Session.ID())
	}
}

func TestRun_DefaultLoggerIsSilent(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Default()
	log.SetDefault(log.New(&buf))
	t.Cleanup(func() { log.SetDefault(prev) })

	if _, err := Run(context.Background(), "quiet.star", `print("hello")`); err != nil {
		t.Fatal(err)
	}
	if buf.Len() != 0 {
		t.Errorf("Run without a logger wrote %q", buf.String())
	}
}

func TestResult_Namespace(t *testing.T) {
	res := run(t, `
_hidden = 1
shown = 2
x = track(3)
`)
	ns := res.Namespace()
	if _, ok := ns["_hidden"]; ok {
		t.Error("names starting with _ should be hidden")
	}
	if got := intValue(t, ns["shown"]); got != 2 {
		t.Errorf("shown = %d, want 2", got)
	}
	if _, ok := ns["x"].(*tracker.Data); !ok {
		t.Errorf("x = %T, want *tracker.Data", ns["x"])
	}
	for _, builtin := range []string{"track", "op", "tick"} {
		if _, ok := ns[builtin]; ok {
			t.Errorf("builtin %s leaked into the namespace", builtin)
		}
	}
}

func TestSchemaOptions(t *testing.T) {
	res, err := RunFile(context.Background(), "testdata/mlp.star", WithLogger(log.New(io.Discard)))
	if err != nil {
		t.Fatalf("RunFile: %v", err)
	}
	engine := schema.NewEngine(SchemaOptions()...)
	snap, err := engine.Snapshot("mlp", res.Namespace())
	if err != nil {
		t.Fatalf("Snapshot: %v", err)
	}
	if err := snap.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	counts := snap.Counts()
	if counts["graphop"] != 6 {
		t.Errorf("graphop count = %d, want 6", counts["graphop"])
	}
	if counts["graphcontainer"] != 2 {
		t.Errorf("graphcontainer count = %d, want 2", counts["graphcontainer"])
	}
	for _, name := range []string{"mul", "add", "relu", "dense"} {
		sym := snap.Symbol(snap.Namespace[name])
		if sym == nil || sym.Type != "function" {
			t.Errorf("%s: got %+v, want function symbol", name, sym)
		}
	}

	out := snap.Symbol(snap.Namespace["out"])
	if out == nil || out.Type != "graphdata" || out.Data == nil {
		t.Fatalf("out: got %+v", out)
	}
	if got := out.Data.Viewer["value"]; got != int64(21) {
		t.Errorf("out value = %#v, want int64(21)", got)
	}
}

func TestSchemaTypes(t *testing.T) {
	dict := starlark.NewDict(1)
	_ = dict.SetKey(starlark.String("k"), starlark.MakeInt(1))

	tests := []struct {
		name string
		v    starlark.Value
		want string
	}{
		{"list", starlark.NewList([]starlark.Value{starlark.MakeInt(1)}), "list"},
		{"tuple", starlark.Tuple{starlark.True}, "list"},
		{"dict", dict, "dict"},
		{"builtin", starlark.NewBuiltin("f", nil), "function"},
		{"none", starlark.None, "none"},
		{"string", starlark.String("s"), "string"},
		{"bigint", starlark.MakeInt(1).Lsh(100), "string"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			engine := schema.NewEngine(SchemaOptions()...)
			shells := engine.Namespace(map[string]any{"v": tt.v})
			for _, sym := range shells {
				if sym.Type != tt.want {
					t.Errorf("type = %q, want %q", sym.Type, tt.want)
				}
			}
		})
	}
}

func TestSchemaDict(t *testing.T) {
	tests := []struct {
		name string
		src  string
		want string
	}{
		{"string keys", `d = {"a": 1, "b": 2}`, "map[a:1 b:2]"},
		{"keys that print alike", `d = {1: "int", "1": "str"}`, "[[1 int] [1 str]]"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := run(t, tt.src)
			snap, err := schema.NewEngine(SchemaOptions()...).Snapshot("dict", res.Namespace())
			if err != nil {
				t.Fatal(err)
			}
			p, err := snap.Load(snap.Namespace["d"])
			if err != nil {
				t.Fatal(err)
			}
			v := p.Data.Viewer
			if v["length"] != 2 {
				t.Errorf("length = %v, want 2", v["length"])
			}
			if got := fmt.Sprint(v["contents"]); got != tt.want {
				t.Errorf("contents = %s, want %s", got, tt.want)
			}
			if pairs, ok := v["contents"].([]any); ok {
				if k := pairs[0].([]any)[0]; k != int64(1) {
					t.Errorf("first key = %#v, want int64(1)", k)
				}
				if k := pairs[1].([]any)[0]; k != "1" {
					t.Errorf("second key = %#v, want \"1\"", k)
				}
			}
		})
	}
}

func TestRunFile_Examples(t *testing.T) {
	scripts, err := filepath.Glob("../../examples/scripts/*.star")
	if err != nil {
		t.Fatal(err)
	}
	if len(scripts) == 0 {
		t.Skip("no example scripts")
	}
	for _, path := range scripts {
		t.Run(filepath.Base(path), func(t *testing.T) {
			res, err := RunFile(context.Background(), path, WithLogger(log.New(io.Discard)))
			if err != nil {
				t.Fatalf("RunFile: %v\n%s", err, Backtrace(err))
			}
			if len(res.Session.Ops()) == 0 || len(res.Session.Containers()) == 0 {
				t.Errorf("%s recorded %d ops and %d containers", path,
					len(res.Session.Ops()), len(res.Session.Containers()))
			}
		})
	}
}
