package schema

import (
	"cmp"
	"fmt"
	"maps"
	"math"
	"reflect"
	"runtime"
	"slices"
	"strconv"

	"github.com/nikhilxb/xnode-db/pkg/tracker"
)

// Encoder converts a nested value into its payload form: primitives are
// returned inline and everything else becomes a reference.
type Encoder interface {
	Encode(v any) any
}

// TypeInfo describes how one kind of value is shown to clients.
type TypeInfo struct {
	// Name is the symbol "type" field, e.g. "number" or "graphop".
	Name string

	// Match reports whether the handler applies to v.
	Match func(v any) bool

	// Inline returns the payload form of a primitive value. Handlers with an
	// Inline function never produce references.
	Inline func(v any) any

	// Str returns the one-line summary shown in the shell. Nil uses
	// fmt.Sprint.
	Str func(v any) string

	// Viewer returns the viewer payload. Nested values must go through enc.
	// Nil means an empty viewer.
	Viewer func(v any, enc Encoder) map[string]any

	// Attributes returns additional named attributes, or nil.
	Attributes func(v any, enc Encoder) map[string]any
}

func (t *TypeInfo) str(v any) string {
	if t.Str != nil {
		return t.Str(v)
	}
	return fmt.Sprint(v)
}

// DefaultTypes returns the built-in handlers in dispatch order.
func DefaultTypes() []TypeInfo {
	return []TypeInfo{
		noneType,
		boolType,
		numberType,
		stringType,
		graphDataType,
		graphOpType,
		graphContainerType,
		listType,
		dictType,
		functionType,
		objectType,
	}
}

var noneType = TypeInfo{
	Name:   "none",
	Match:  func(v any) bool { return v == nil },
	Inline: func(any) any { return nil },
	Str:    func(any) string { return "nil" },
}

var boolType = TypeInfo{
	Name: "bool",
	Match: func(v any) bool {
		return reflect.ValueOf(v).Kind() == reflect.Bool
	},
	Inline: func(v any) any { return reflect.ValueOf(v).Bool() },
}

var numberType = TypeInfo{
	Name: "number",
	Match: func(v any) bool {
		switch reflect.ValueOf(v).Kind() {
		case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
			reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
			reflect.Float32, reflect.Float64:
			return true
		}
		return false
	},
	Inline: func(v any) any {
		rv := reflect.ValueOf(v)
		if rv.CanFloat() {
			// JSON has no NaN or infinities.
			if f := rv.Float(); math.IsNaN(f) || math.IsInf(f, 0) {
				return strconv.FormatFloat(f, 'g', -1, 64)
			}
		}
		return v
	},
}

var stringType = TypeInfo{
	Name: "string",
	Match: func(v any) bool {
		return reflect.ValueOf(v).Kind() == reflect.String
	},
	Inline: func(v any) any { return Escape(reflect.ValueOf(v).String()) },
	Str:    func(v any) string { return reflect.ValueOf(v).String() },
}

var graphDataType = TypeInfo{
	Name: "graphdata",
	Match: func(v any) bool {
		_, ok := v.(*tracker.Data)
		return ok
	},
	Str: func(v any) string {
		return fmt.Sprint(v.(*tracker.Data).Value())
	},
	Viewer: func(v any, enc Encoder) map[string]any {
		d := v.(*tracker.Data)
		props := make(map[string]any)
		all := d.Props()
		for _, name := range d.PropNames() {
			props[name] = enc.Encode(all[name])
		}
		var creator any
		if op := d.Op(); op != nil {
			creator = enc.Encode(op)
		}
		return map[string]any{
			"creatorop":  creator,
			"creatorpos": d.Position(),
			"props":      props,
			"value":      enc.Encode(d.Value()),
		}
	},
}

var graphOpType = TypeInfo{
	Name: "graphop",
	Match: func(v any) bool {
		_, ok := v.(*tracker.Op)
		return ok
	},
	Str: func(v any) string { return v.(*tracker.Op).Name() },
	Viewer: func(v any, enc Encoder) map[string]any {
		op := v.(*tracker.Op)
		args := make([]any, len(op.Args()))
		for i, a := range op.Args() {
			var ref any
			if a != nil {
				ref = enc.Encode(a)
			}
			args[i] = []any{i, ref}
		}
		kwargs := make(map[string]any)
		all := op.Kwargs()
		for _, name := range op.KwargNames() {
			kwargs[name] = enc.Encode(all[name])
		}
		return map[string]any{
			"function":  op.Name(),
			"args":      args,
			"kwargs":    kwargs,
			"container": encodeParent(op.Parent(), enc),
		}
	},
}

var graphContainerType = TypeInfo{
	Name: "graphcontainer",
	Match: func(v any) bool {
		_, ok := v.(*tracker.Container)
		return ok
	},
	Str: func(v any) string {
		c := v.(*tracker.Container)
		if c.Name() != "" {
			return c.Name()
		}
		if c.IsTemporal() {
			return fmt.Sprintf("tick %d (level %d)", c.Step(), c.Level())
		}
		return c.Kind().String()
	},
	Viewer: func(v any, enc Encoder) map[string]any {
		c := v.(*tracker.Container)
		contents := make([]any, 0, c.Len())
		for _, n := range c.Contents() {
			contents = append(contents, enc.Encode(n))
		}
		return map[string]any{
			"contents":     contents,
			"kind":         c.Kind().String(),
			"name":         c.Name(),
			"height":       c.Level(),
			"temporalstep": c.Step(),
			"container":    encodeParent(c.Parent(), enc),
		}
	},
}

func encodeParent(c *tracker.Container, enc Encoder) any {
	if c == nil {
		return nil
	}
	return enc.Encode(c)
}

var listType = TypeInfo{
	Name: "list",
	Match: func(v any) bool {
		k := reflect.ValueOf(v).Kind()
		return k == reflect.Slice || k == reflect.Array
	},
	Str: func(v any) string {
		rv := reflect.ValueOf(v)
		return fmt.Sprintf("%s (len %d)", rv.Type(), rv.Len())
	},
	Viewer: func(v any, enc Encoder) map[string]any {
		rv := reflect.ValueOf(v)
		contents := make([]any, rv.Len())
		for i := range contents {
			contents[i] = enc.Encode(rv.Index(i).Interface())
		}
		return map[string]any{"contents": contents, "length": len(contents)}
	},
}

var dictType = TypeInfo{
	Name: "dict",
	Match: func(v any) bool {
		return reflect.ValueOf(v).Kind() == reflect.Map
	},
	Str: func(v any) string {
		rv := reflect.ValueOf(v)
		return fmt.Sprintf("%s (len %d)", rv.Type(), rv.Len())
	},
	Viewer: func(v any, enc Encoder) map[string]any {
		rv := reflect.ValueOf(v)
		entries := make([]MapEntry, 0, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			k, x := iter.Key().Interface(), iter.Value().Interface()
			entries = append(entries, MapEntry{Name: fmt.Sprint(k), Key: k, Value: x})
		}
		// Map iteration is random; keys that print alike are ordered by type
		// and then by value.
		slices.SortFunc(entries, func(a, b MapEntry) int {
			return cmp.Or(
				cmp.Compare(a.Name, b.Name),
				cmp.Compare(fmt.Sprintf("%T", a.Key), fmt.Sprintf("%T", b.Key)),
				cmp.Compare(fmt.Sprint(a.Value), fmt.Sprint(b.Value)),
			)
		})
		return map[string]any{"contents": DictContents(entries, enc), "length": len(entries)}
	},
}

// MapEntry is one entry of a mapping. Name is the key as clients see it.
type MapEntry struct {
	Name  string
	Key   any
	Value any
}

// DictContents encodes the entries of a mapping in the order given. When
// every Name is distinct the result is an object keyed by Name. Otherwise it
// is a list of [key, value] pairs with both halves encoded, so keys that
// print alike, such as 1 and "1", keep separate entries.
func DictContents(entries []MapEntry, enc Encoder) any {
	seen := make(map[string]bool, len(entries))
	for _, e := range entries {
		if seen[e.Name] {
			return dictPairs(entries, enc)
		}
		seen[e.Name] = true
	}
	contents := make(map[string]any, len(entries))
	for _, e := range entries {
		contents[e.Name] = enc.Encode(e.Value)
	}
	return contents
}

func dictPairs(entries []MapEntry, enc Encoder) []any {
	pairs := make([]any, len(entries))
	for i, e := range entries {
		pairs[i] = []any{enc.Encode(e.Key), enc.Encode(e.Value)}
	}
	return pairs
}

var functionType = TypeInfo{
	Name: "function",
	Match: func(v any) bool {
		return reflect.ValueOf(v).Kind() == reflect.Func
	},
	Str: funcName,
	Viewer: func(v any, _ Encoder) map[string]any {
		return map[string]any{"name": funcName(v)}
	},
}

func funcName(v any) string {
	if f := runtime.FuncForPC(reflect.ValueOf(v).Pointer()); f != nil {
		return f.Name()
	}
	return reflect.TypeOf(v).String()
}

var objectType = TypeInfo{
	Name:  "object",
	Match: func(any) bool { return true },
	Viewer: func(v any, _ Encoder) map[string]any {
		return map[string]any{"type": reflect.TypeOf(v).String()}
	},
	Attributes: structFields,
}

// structFields returns the exported fields of a struct or pointer to struct,
// or nil for any other value.
func structFields(v any, enc Encoder) map[string]any {
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer {
		if rv.IsNil() {
			return nil
		}
		rv = rv.Elem()
	}
	if rv.Kind() != reflect.Struct {
		return nil
	}
	attrs := make(map[string]any)
	for _, f := range reflect.VisibleFields(rv.Type()) {
		if !f.IsExported() || f.Anonymous {
			continue
		}
		fv, err := rv.FieldByIndexErr(f.Index)
		if err != nil {
			continue
		}
		attrs[f.Name] = enc.Encode(fv.Interface())
	}
	return attrs
}

// sortedKeys returns the keys of m in order.
func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
