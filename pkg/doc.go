// Package pkg provides the core libraries for xnode computation-graph tracking.
//
// # Overview
//
// xnode records a program's function calls as a computation graph: tracked
// values, the ops that consumed and produced them, and the containers that
// group ops into abstractions and time steps. The graph is captured as a
// self-contained snapshot that a visual debugger can browse symbol by
// symbol. The pkg directory is organized into four areas:
//
//  1. [tracker] - Graph recording (ops, values, containers, tick)
//  2. [schema] - Symbol table encoding and snapshots
//  3. [script] - Starlark host that exposes tracking to scripts
//  4. [pipeline] - Orchestration (run → snapshot → render) for CLI and server
//
// # Architecture
//
// The typical data flow:
//
//	Starlark script or Go program
//	         ↓
//	    [tracker] package (record ops, group into containers)
//	         ↓
//	    [schema] package (encode reachable values as symbols)
//	         ↓
//	    [store] / [server] (persist, answer symbol requests)
//	         ↓
//	    [render/nodelink] (DOT, SVG, PDF, PNG)
//
// # Quick Start
//
// Track a small computation and snapshot it:
//
//	s := tracker.NewSession()
//	add := s.WrapOp(addFn, tracker.WithName("add"))
//
//	x, _ := s.Track(1, nil)
//	y, _ := add([]any{x, 2}, nil)
//	s.Tick(y[0].(*tracker.Data), 0)
//
//	snap, _ := schema.NewEngine().Snapshot("main.go:12", map[string]any{"y": y[0]})
//	dot, _ := nodelink.ToDOT(snap, nodelink.Options{})
//
// # Main Packages
//
// [tracker] - Ops, tracked values and containers. Abstractive containers are
// built by [tracker.Session.WrapAbstract]; temporal ones by
// [tracker.Session.Tick] and [tracker.Session.TickAll].
//
// [schema] - The symbol table: "@id:N" references, shells and payloads, and
// the [schema.Snapshot] document stored and served by everything else.
//
// [script] - Runs Starlark with track, op, abstract, tick, tick_all, surface
// and value builtins.
//
// [render/nodelink] - Node-link diagrams via Graphviz, with containers drawn
// as nested clusters. [render] converts SVG to PDF and PNG.
//
// ## Infrastructure
//
// [cache] - Artifact and snapshot caching (file, Redis, null).
//
// [store] - Snapshot persistence (memory, file, MongoDB).
//
// [server] - HTTP API answering namespace and symbol requests.
//
// [observability] - Hooks for metrics and tracing; [observability/prom]
// implements them with Prometheus.
//
// [errors] - Error codes shared by the CLI and the server.
//
// # Testing
//
// Run tests:
//
//	go test ./pkg/...                    # All tests
//	go test ./pkg/tracker/...            # Specific package
//	go test -run Example                 # Examples only
//	go test -tags integration ./pkg/...  # Include Redis and MongoDB tests
//
// [tracker]: https://pkg.go.dev/github.com/nikhilxb/xnode-db/pkg/tracker
// [schema]: https://pkg.go.dev/github.com/nikhilxb/xnode-db/pkg/schema
// [script]: https://pkg.go.dev/github.com/nikhilxb/xnode-db/pkg/script
// [pipeline]: https://pkg.go.dev/github.com/nikhilxb/xnode-db/pkg/pipeline
// [store]: https://pkg.go.dev/github.com/nikhilxb/xnode-db/pkg/store
// [server]: https://pkg.go.dev/github.com/nikhilxb/xnode-db/pkg/server
// [render]: https://pkg.go.dev/github.com/nikhilxb/xnode-db/pkg/render
// [render/nodelink]: https://pkg.go.dev/github.com/nikhilxb/xnode-db/pkg/render/nodelink
// [cache]: https://pkg.go.dev/github.com/nikhilxb/xnode-db/pkg/cache
// [observability]: https://pkg.go.dev/github.com/nikhilxb/xnode-db/pkg/observability
// [observability/prom]: https://pkg.go.dev/github.com/nikhilxb/xnode-db/pkg/observability/prom
// [errors]: https://pkg.go.dev/github.com/nikhilxb/xnode-db/pkg/errors
package pkg
