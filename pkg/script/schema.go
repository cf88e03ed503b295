package script

import (
	"go.starlark.net/starlark"

	"github.com/nikhilxb/xnode-db/pkg/schema"
)

// SchemaOptions configures a schema engine to display Starlark values:
// primitives are mapped to their Go equivalents, tracked values to their
// *tracker.Data, and Starlark containers get dedicated handlers.
func SchemaOptions() []schema.Option {
	return []schema.Option{
		schema.WithNormalize(normalize),
		schema.WithTypes(SchemaTypes()...),
	}
}

// SchemaTypes returns the handlers for Starlark values that have no Go
// equivalent.
func SchemaTypes() []schema.TypeInfo {
	return []schema.TypeInfo{
		{
			Name:   "dict",
			Match:  func(v any) bool { _, ok := v.(*starlark.Dict); return ok },
			Str:    starlarkStr,
			Viewer: dictViewer,
		},
		{
			Name: "list",
			Match: func(v any) bool {
				_, ok := v.(starlark.Iterable)
				return ok
			},
			Str:    starlarkStr,
			Viewer: listViewer,
		},
		{
			Name:  "function",
			Match: func(v any) bool { _, ok := v.(starlark.Callable); return ok },
			Str:   starlarkStr,
			Viewer: func(v any, _ schema.Encoder) map[string]any {
				return map[string]any{"name": v.(starlark.Callable).Name()}
			},
		},
		{
			Name:  "object",
			Match: func(v any) bool { _, ok := v.(starlark.Value); return ok },
			Str:   starlarkStr,
			Viewer: func(v any, _ schema.Encoder) map[string]any {
				return map[string]any{"type": v.(starlark.Value).Type()}
			},
			Attributes: attrsOf,
		},
	}
}

func normalize(v any) any {
	switch x := v.(type) {
	case *Tracked:
		return x.data
	case starlark.NoneType:
		return nil
	case starlark.Bool:
		return bool(x)
	case starlark.Int:
		if i, ok := x.Int64(); ok {
			return i
		}
		return x.String()
	case starlark.Float:
		return float64(x)
	case starlark.String:
		return string(x)
	case starlark.Bytes:
		return string(x)
	}
	return v
}

func starlarkStr(v any) string { return v.(starlark.Value).String() }

func listViewer(v any, enc schema.Encoder) map[string]any {
	var contents []any
	iter := v.(starlark.Iterable).Iterate()
	defer iter.Done()
	var x starlark.Value
	for iter.Next(&x) {
		contents = append(contents, enc.Encode(x))
	}
	if contents == nil {
		contents = []any{}
	}
	return map[string]any{"contents": contents, "length": len(contents)}
}

func dictViewer(v any, enc schema.Encoder) map[string]any {
	d := v.(*starlark.Dict)
	entries := make([]schema.MapEntry, 0, d.Len())
	for _, kv := range d.Items() {
		name := kv[0].String()
		if s, ok := kv[0].(starlark.String); ok {
			name = string(s)
		}
		entries = append(entries, schema.MapEntry{Name: name, Key: kv[0], Value: kv[1]})
	}
	return map[string]any{"contents": schema.DictContents(entries, enc), "length": len(entries)}
}

func attrsOf(v any, enc schema.Encoder) map[string]any {
	ha, ok := v.(starlark.HasAttrs)
	if !ok {
		return nil
	}
	attrs := make(map[string]any)
	for _, name := range ha.AttrNames() {
		x, err := ha.Attr(name)
		if err != nil || x == nil {
			continue
		}
		if _, isFn := x.(starlark.Callable); isFn {
			continue
		}
		attrs[name] = enc.Encode(x)
	}
	return attrs
}
