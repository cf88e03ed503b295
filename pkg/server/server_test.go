package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/charmbracelet/log"
	"github.com/prometheus/client_golang/prometheus"

	apperr "github.com/nikhilxb/xnode-db/pkg/errors"
	"github.com/nikhilxb/xnode-db/pkg/observability"
	"github.com/nikhilxb/xnode-db/pkg/pipeline"
	"github.com/nikhilxb/xnode-db/pkg/schema"
	"github.com/nikhilxb/xnode-db/pkg/store"
)

const script = `
def _mul(a, b):
    return a * b

mul = op(_mul, name="mul")
x = track(6, props={"value": None})
y = mul(x, 7)
label = "@home"
`

type fixture struct {
	srv  *Server
	st   *store.MemoryStore
	snap *schema.Snapshot
	ts   *httptest.Server
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	logger := log.New(io.Discard)
	runner := pipeline.NewRunner(nil, nil, logger)
	res, err := runner.Execute(context.Background(), pipeline.Options{
		Script: "mul.star",
		Source: []byte(script),
	})
	if err != nil {
		t.Fatal(err)
	}
	st := store.NewMemoryStore()
	if err := st.Save(context.Background(), res.Snapshot); err != nil {
		t.Fatal(err)
	}
	srv := New(st, runner, append([]Option{WithLogger(logger)}, opts...)...)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return &fixture{srv: srv, st: st, snap: res.Snapshot, ts: ts}
}

func (f *fixture) get(t *testing.T, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := http.Get(f.ts.URL + path)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	return resp, body
}

func decodeError(t *testing.T, body []byte) errorBody {
	t.Helper()
	var e errorBody
	if err := json.Unmarshal(body, &e); err != nil {
		t.Fatalf("error body %q: %v", body, err)
	}
	return e
}

func TestHealth(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/healthz")
	if resp.StatusCode != http.StatusOK || strings.TrimSpace(string(body)) != "ok" {
		t.Errorf("GET /healthz = %d %q", resp.StatusCode, body)
	}
}

func TestList(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/snapshots")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var infos []store.Info
	if err := json.Unmarshal(body, &infos); err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].ID != f.snap.ID || infos[0].Context != "mul.star" {
		t.Errorf("infos = %+v", infos)
	}
}

func TestNamespace(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/snapshots/"+f.snap.ID)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	var ns namespaceBody
	if err := json.Unmarshal(body, &ns); err != nil {
		t.Fatal(err)
	}
	for _, name := range []string{"x", "y", "mul", "label"} {
		ref, ok := ns.Names[name]
		if !ok {
			t.Errorf("namespace missing %q", name)
			continue
		}
		if ns.Shells[ref] == nil {
			t.Errorf("no shell for %s (%s)", name, ref)
		}
	}
	if sh := ns.Shells[ns.Names["y"]]; sh == nil || sh.Type != "graphdata" || sh.Data != nil {
		t.Errorf("y shell = %+v, want graphdata without data", sh)
	}
}

func TestSymbol(t *testing.T) {
	f := newFixture(t)
	ref := f.snap.Namespace["y"]

	for _, path := range []string{ref, strings.NewReplacer("@", "%40", ":", "%3A").Replace(ref)} {
		resp, body := f.get(t, "/api/snapshots/"+f.snap.ID+"/symbols/"+path)
		if resp.StatusCode != http.StatusOK {
			t.Fatalf("GET symbol %s = %d: %s", path, resp.StatusCode, body)
		}
		var p schema.Payload
		if err := json.Unmarshal(body, &p); err != nil {
			t.Fatal(err)
		}
		if p.SymbolID != ref {
			t.Errorf("symbolId = %q, want %q", p.SymbolID, ref)
		}
		op, _ := p.Data.Viewer["creatorop"].(string)
		if p.Shells[op] == nil || p.Shells[op].Type != "graphop" {
			t.Errorf("payload shells missing creator op %q: %v", op, p.Shells)
		}
	}
}

func TestErrors(t *testing.T) {
	f := newFixture(t)
	tests := []struct {
		name   string
		path   string
		status int
		code   apperr.Code
	}{
		{"missing snapshot", "/api/snapshots/nope", http.StatusNotFound, apperr.ErrCodeSnapshotNotFound},
		{"bad snapshot id", "/api/snapshots/.hidden", http.StatusBadRequest, apperr.ErrCodeInvalidInput},
		{"unknown symbol", "/api/snapshots/" + f.snap.ID + "/symbols/@id:99999", http.StatusNotFound, apperr.ErrCodeSymbolNotFound},
		{"malformed symbol", "/api/snapshots/" + f.snap.ID + "/symbols/x", http.StatusBadRequest, apperr.ErrCodeInvalidSymbol},
		{"bad format", "/api/snapshots/" + f.snap.ID + "/graph.gif", http.StatusBadRequest, apperr.ErrCodeInvalidFormat},
		{"bad detailed", "/api/snapshots/" + f.snap.ID + "/graph.dot?detailed=maybe", http.StatusBadRequest, apperr.ErrCodeInvalidInput},
		{"unknown head", "/api/snapshots/" + f.snap.ID + "/graph.dot?head=@id:99999", http.StatusNotFound, apperr.ErrCodeSymbolNotFound},
		{"no route", "/nowhere", http.StatusNotFound, apperr.ErrCodeNotFound},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, body := f.get(t, tt.path)
			if resp.StatusCode != tt.status {
				t.Errorf("status = %d, want %d (%s)", resp.StatusCode, tt.status, body)
			}
			if e := decodeError(t, body); e.Code != tt.code {
				t.Errorf("code = %s, want %s", e.Code, tt.code)
			}
		})
	}
}

func TestGraph(t *testing.T) {
	f := newFixture(t)
	resp, body := f.get(t, "/api/snapshots/"+f.snap.ID+"/graph.dot?detailed=true")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d: %s", resp.StatusCode, body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/vnd.graphviz") {
		t.Errorf("Content-Type = %q", ct)
	}
	if !strings.HasPrefix(string(body), "digraph G") || !strings.Contains(string(body), `label="mul"`) {
		t.Errorf("body is not the expected DOT:\n%s", body)
	}

	resp, body = f.get(t, "/api/snapshots/"+f.snap.ID+"/graph.json")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("json status = %d", resp.StatusCode)
	}
	if snap, err := schema.Unmarshal(body); err != nil || snap.ID != f.snap.ID {
		t.Errorf("json graph = %v, %v", snap, err)
	}
}

func TestUploadAndDelete(t *testing.T) {
	f := newFixture(t)
	snap, err := schema.NewEngine().Snapshot("upload", map[string]any{"n": []int{1, 2, 3}})
	if err != nil {
		t.Fatal(err)
	}
	data, _ := schema.Marshal(snap)

	resp, err := http.Post(f.ts.URL+"/api/snapshots", "application/json", bytes.NewReader(data))
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST status = %d", resp.StatusCode)
	}
	if loc := resp.Header.Get("Location"); loc != "/api/snapshots/"+snap.ID {
		t.Errorf("Location = %q", loc)
	}
	if r, _ := f.get(t, "/api/snapshots/"+snap.ID); r.StatusCode != http.StatusOK {
		t.Errorf("uploaded snapshot not served: %d", r.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, f.ts.URL+"/api/snapshots/"+snap.ID, nil)
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE status = %d", resp.StatusCode)
	}
	if r, _ := f.get(t, "/api/snapshots/"+snap.ID); r.StatusCode != http.StatusNotFound {
		t.Errorf("deleted snapshot still served: %d", r.StatusCode)
	}

	resp, _ = http.DefaultClient.Do(req)
	resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("second DELETE status = %d", resp.StatusCode)
	}
}

func TestUpload_Invalid(t *testing.T) {
	f := newFixture(t, WithMaxUploadBytes(1024))
	tests := []struct {
		name string
		body string
	}{
		{"not json", "{"},
		{"dangling ref", `{"id":"s1","namespace":{"x":"@id:1"},"symbols":{}}`},
		{"bad id", `{"id":"../up","namespace":{},"symbols":{}}`},
		{"too large", `{"id":"big","context":"` + strings.Repeat("x", 2048) + `"}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Post(f.ts.URL+"/api/snapshots", "application/json", strings.NewReader(tt.body))
			if err != nil {
				t.Fatal(err)
			}
			defer resp.Body.Close()
			if resp.StatusCode != http.StatusBadRequest {
				t.Errorf("status = %d, want 400", resp.StatusCode)
			}
		})
	}
}

func TestMethodNotAllowed(t *testing.T) {
	f := newFixture(t)
	req, _ := http.NewRequest(http.MethodPut, f.ts.URL+"/api/snapshots", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}

func TestMetrics(t *testing.T) {
	reg := prometheus.NewRegistry()
	reg.MustRegister(prometheus.NewCounter(prometheus.CounterOpts{Name: "xnode_test_total", Help: "test"}))
	f := newFixture(t, WithMetrics(reg))
	resp, body := f.get(t, "/metrics")
	if resp.StatusCode != http.StatusOK || !strings.Contains(string(body), "xnode_test_total") {
		t.Errorf("GET /metrics = %d\n%s", resp.StatusCode, body)
	}

	// Without a gatherer the route does not exist.
	g := newFixture(t)
	if resp, _ := g.get(t, "/metrics"); resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /metrics without gatherer = %d", resp.StatusCode)
	}
}

type recordingHTTPHooks struct {
	observability.NoopHTTPHooks
	routes   []string
	statuses []int
}

func (h *recordingHTTPHooks) OnResponse(_ context.Context, _, route string, status int, _ time.Duration) {
	h.routes = append(h.routes, route)
	h.statuses = append(h.statuses, status)
}

func TestObserve(t *testing.T) {
	hooks := &recordingHTTPHooks{}
	observability.SetHTTPHooks(hooks)
	t.Cleanup(observability.Reset)

	f := newFixture(t)
	f.get(t, "/api/snapshots/"+f.snap.ID)
	f.get(t, "/api/snapshots/missing")

	if len(hooks.routes) != 2 {
		t.Fatalf("routes = %v", hooks.routes)
	}
	if strings.TrimSuffix(hooks.routes[0], "/") != "/api/snapshots/{id}" {
		t.Errorf("route = %q, want the pattern", hooks.routes[0])
	}
	if hooks.statuses[0] != http.StatusOK || hooks.statuses[1] != http.StatusNotFound {
		t.Errorf("statuses = %v", hooks.statuses)
	}
}

func TestServe_Shutdown(t *testing.T) {
	f := newFixture(t)
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.srv.Serve(ctx, ln) }()

	resp, err := http.Get("http://" + ln.Addr().String() + "/healthz")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Serve() = %v, want nil after shutdown", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("Serve() did not return after cancel")
	}
}
