// Package schema translates tracked values and ordinary Go values into the
// symbol table read by visual debugger clients.
//
// # Symbols
//
// Every non-primitive value that the client can look at is a symbol,
// addressed by a reference of the form "@id:<token>". A symbol has a shell
// (type, optional name and a one-line summary) and, once loaded, a data
// payload:
//
//	{
//	  "@id:7": {
//	    "type": "graphop",
//	    "name": "",
//	    "str": "conv2d",
//	    "data": {
//	      "viewer": {"function": "conv2d", "args": [[0, "@id:3"], [1, null]], ...},
//	      "attributes": null
//	    }
//	  }
//	}
//
// Primitive values (nil, booleans, numbers and strings) appear inline in
// payloads. A string that begins with "@" is written with one extra leading
// "@" so that it can never be mistaken for a reference; see [Escape].
//
// # Types
//
// [Engine] picks a [TypeInfo] for each value by walking an ordered table and
// taking the first match. Order matters: booleans are tested before numbers,
// and the catch-all "object" handler is last. [WithTypes] prepends handlers,
// which is how hosts such as the Starlark runner teach the engine about their
// own value types.
//
// Graph values have dedicated handlers: *tracker.Data ("graphdata"),
// *tracker.Op ("graphop") and *tracker.Container ("graphcontainer"). Their
// viewer payloads carry the references a client needs to lay out the graph.
//
// # Snapshots
//
// [Engine.Snapshot] loads a namespace and everything reachable from it into a
// self-contained [Snapshot], which can be written to disk, stored and served
// without the engine. [Snapshot.Load] answers the same symbol requests as
// [Engine.Load].
package schema
