package tracker

import (
	"fmt"
	"reflect"
)

// AttrLookup resolves a named attribute of a tracked value. It is used to
// extract surfaced properties (see [Props]).
type AttrLookup func(value any, attr string) (any, error)

// Attributer is implemented by values that expose named attributes
// themselves. [DefaultLookup] consults it before falling back to reflection.
type Attributer interface {
	Attr(name string) (any, error)
}

// DefaultLookup resolves attr on value using, in order: the [Attributer]
// interface, a string-keyed map entry, an exported struct field, or an
// exported method with no arguments and one result. Pointers and interfaces
// are dereferenced. It returns an error wrapping [ErrNoAttribute] when none
// match.
func DefaultLookup(value any, attr string) (any, error) {
	if a, ok := value.(Attributer); ok {
		return a.Attr(attr)
	}
	if value == nil {
		return nil, fmt.Errorf("%w: %q on nil", ErrNoAttribute, attr)
	}

	v := reflect.ValueOf(value)
	if m := v.MethodByName(attr); m.IsValid() && m.Type().NumIn() == 0 && m.Type().NumOut() == 1 {
		return m.Call(nil)[0].Interface(), nil
	}
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return nil, fmt.Errorf("%w: %q on nil %s", ErrNoAttribute, attr, v.Type())
		}
		v = v.Elem()
	}

	switch v.Kind() {
	case reflect.Map:
		if v.Type().Key().Kind() == reflect.String {
			if e := v.MapIndex(reflect.ValueOf(attr).Convert(v.Type().Key())); e.IsValid() {
				return e.Interface(), nil
			}
		}
	case reflect.Struct:
		if f, ok := v.Type().FieldByName(attr); ok && f.IsExported() {
			fv, err := v.FieldByIndexErr(f.Index)
			if err != nil {
				return nil, fmt.Errorf("%w: %q on %T: %v", ErrNoAttribute, attr, value, err)
			}
			return fv.Interface(), nil
		}
	}
	return nil, fmt.Errorf("%w: %q on %T", ErrNoAttribute, attr, value)
}
