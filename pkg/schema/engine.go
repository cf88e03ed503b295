package schema

import (
	"errors"
	"fmt"
	"reflect"
	"slices"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
)

var (
	// ErrInvalidRef is returned when a symbol id is not of the form
	// "@id:<token>".
	ErrInvalidRef = errors.New("invalid symbol reference")

	// ErrUnknownSymbol is returned when a reference names no known symbol.
	ErrUnknownSymbol = errors.New("unknown symbol")

	// ErrNotLoaded is returned by [Snapshot.Load] for symbols that were
	// referenced but not loaded before the snapshot hit its size limit.
	ErrNotLoaded = errors.New("symbol data not included in snapshot")
)

// DefaultMaxSymbols bounds the number of symbols loaded by
// [Engine.Snapshot] unless [WithMaxSymbols] says otherwise.
const DefaultMaxSymbols = 10000

// maxStr is the longest shell summary, in runes.
const maxStr = 120

// Symbol is one entry of the symbol table.
type Symbol struct {
	Type string      `json:"type"`
	Name string      `json:"name,omitempty"`
	Str  string      `json:"str"`
	Data *SymbolData `json:"data"`
}

// SymbolData is the loaded payload of a symbol.
type SymbolData struct {
	Viewer     map[string]any `json:"viewer"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// Payload answers one symbol request: the symbol's data plus the shells of
// every symbol that data refers to.
type Payload struct {
	SymbolID string             `json:"symbolId"`
	Data     *SymbolData        `json:"data"`
	Shells   map[string]*Symbol `json:"shells"`
}

// Engine assigns references to values and builds their payloads.
//
// The engine holds on to every value it has referenced, so a reference stays
// valid for the engine's lifetime. Values with identity (pointers, maps,
// slices, channels, functions) get one reference no matter how often they are
// encoded; other values get a fresh reference each time.
//
// An Engine is not safe for concurrent use.
type Engine struct {
	types      []TypeInfo
	normalize  func(any) any
	maxSymbols int

	next     uint64
	tokens   map[identity]uint64
	objs     map[uint64]any
	shells   map[uint64]*Symbol
	payloads map[uint64]*SymbolData
}

// Option configures an [Engine].
type Option func(*Engine)

// WithTypes adds handlers ahead of the built-in ones.
func WithTypes(types ...TypeInfo) Option {
	return func(e *Engine) {
		e.types = append(slices.Clone(types), e.types...)
	}
}

// WithNormalize installs a function applied to every value before dispatch.
// Hosts use it to map their own wrappers onto the values the built-in
// handlers understand.
func WithNormalize(fn func(any) any) Option {
	return func(e *Engine) { e.normalize = fn }
}

// WithMaxSymbols bounds the number of symbols [Engine.Snapshot] loads.
// Values below 1 are ignored.
func WithMaxSymbols(n int) Option {
	return func(e *Engine) {
		if n > 0 {
			e.maxSymbols = n
		}
	}
}

// NewEngine creates an engine with the default handlers.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		types:      DefaultTypes(),
		maxSymbols: DefaultMaxSymbols,
		tokens:     make(map[identity]uint64),
		objs:       make(map[uint64]any),
		shells:     make(map[uint64]*Symbol),
		payloads:   make(map[uint64]*SymbolData),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Encode returns the payload form of v: primitives inline, everything else
// as a reference. It implements [Encoder].
func (e *Engine) Encode(v any) any {
	v = e.norm(v)
	ti := e.typeOf(v)
	if ti.Inline != nil {
		return ti.Inline(v)
	}
	return Ref(e.intern(v, ti))
}

// Namespace registers named values and returns their shells keyed by
// reference. Primitive values get a reference too, with their data already
// filled in, since a name needs something to point at. When several names
// refer to the same value, the shell carries the first name in sorted
// order.
func (e *Engine) Namespace(ns map[string]any) map[string]*Symbol {
	out := make(map[string]*Symbol)
	for _, ref := range e.bind(ns) {
		if _, ok := out[ref]; ok {
			continue
		}
		tok, _ := RefToken(ref)
		out[ref] = e.shell(tok, true)
	}
	return out
}

// bind interns every namespace value and returns name → reference.
func (e *Engine) bind(ns map[string]any) map[string]string {
	refs := make(map[string]string, len(ns))
	for _, name := range sortedKeys(ns) {
		v := e.norm(ns[name])
		ti := e.typeOf(v)
		var tok uint64
		if ti.Inline != nil {
			tok = e.newToken(v, ti)
			e.payloads[tok] = &SymbolData{Viewer: map[string]any{"contents": ti.Inline(v)}}
		} else {
			tok = e.intern(v, ti)
		}
		if sh := e.shells[tok]; sh.Name == "" {
			sh.Name = name
		}
		refs[name] = Ref(tok)
	}
	return refs
}

// Load builds (or returns the cached) payload of the symbol ref.
func (e *Engine) Load(ref string) (*Payload, error) {
	tok, ok := RefToken(ref)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	obj, ok := e.objs[tok]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, ref)
	}

	data, ok := e.payloads[tok]
	if !ok {
		ti := e.typeOf(obj)
		data = &SymbolData{Viewer: map[string]any{}}
		if ti.Viewer != nil {
			data.Viewer = ti.Viewer(obj, e)
		}
		if ti.Attributes != nil {
			data.Attributes = ti.Attributes(obj, e)
		}
		e.payloads[tok] = data
	}

	shells := make(map[string]*Symbol)
	walkRefs(data, func(r string) {
		if t, ok := RefToken(r); ok {
			if _, known := e.shells[t]; known {
				shells[r] = e.shell(t, false)
			}
		}
	})
	return &Payload{SymbolID: ref, Data: data, Shells: shells}, nil
}

// Snapshot loads the namespace and every symbol reachable from it, breadth
// first, into a self-contained [Snapshot]. When more than the configured
// maximum number of symbols is reachable, the rest are included as shells
// only and Truncated is set.
func (e *Engine) Snapshot(context string, ns map[string]any) (*Snapshot, error) {
	snap := &Snapshot{
		ID:        uuid.NewString(),
		Context:   context,
		CreatedAt: time.Now().UTC(),
		Namespace: e.bind(ns),
		Symbols:   make(map[string]*Symbol),
	}

	var queue []string
	for _, name := range sortedKeys(snap.Namespace) {
		ref := snap.Namespace[name]
		if _, ok := snap.Symbols[ref]; ok {
			continue
		}
		tok, _ := RefToken(ref)
		snap.Symbols[ref] = e.shell(tok, false)
		queue = append(queue, ref)
	}

	loaded := 0
	for len(queue) > 0 {
		ref := queue[0]
		queue = queue[1:]
		if loaded >= e.maxSymbols {
			snap.Truncated = true
			break
		}

		p, err := e.Load(ref)
		if err != nil {
			return nil, err
		}
		snap.Symbols[ref].Data = p.Data
		loaded++

		for _, r := range sortedKeys(p.Shells) {
			if _, ok := snap.Symbols[r]; ok {
				continue
			}
			snap.Symbols[r] = p.Shells[r]
			queue = append(queue, r)
		}
	}
	return snap, nil
}

// Len returns the number of symbols the engine has referenced.
func (e *Engine) Len() int { return len(e.objs) }

func (e *Engine) norm(v any) any {
	if e.normalize != nil {
		v = e.normalize(v)
	}
	if isNil(v) {
		return nil
	}
	return v
}

func (e *Engine) typeOf(v any) *TypeInfo {
	for i := range e.types {
		if e.types[i].Match(v) {
			return &e.types[i]
		}
	}
	return &objectType
}

// intern returns the token of v, creating a symbol for it if needed.
func (e *Engine) intern(v any, ti *TypeInfo) uint64 {
	id, ok := identityOf(v)
	if ok {
		if tok, seen := e.tokens[id]; seen {
			return tok
		}
	}
	tok := e.newToken(v, ti)
	if ok {
		e.tokens[id] = tok
	}
	return tok
}

func (e *Engine) newToken(v any, ti *TypeInfo) uint64 {
	e.next++
	tok := e.next
	e.objs[tok] = v
	e.shells[tok] = &Symbol{Type: ti.Name, Str: truncate(ti.str(v))}
	return tok
}

// shell returns a copy of the shell for tok. Data is attached only when
// withData is set and the payload is already known.
func (e *Engine) shell(tok uint64, withData bool) *Symbol {
	sh := *e.shells[tok]
	sh.Data = nil
	if withData {
		sh.Data = e.payloads[tok]
	}
	return &sh
}

type identity struct {
	typ reflect.Type
	ptr uintptr
	len int
}

func identityOf(v any) (identity, bool) {
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.UnsafePointer:
		return identity{typ: rv.Type(), ptr: rv.Pointer()}, true
	case reflect.Slice:
		return identity{typ: rv.Type(), ptr: rv.Pointer(), len: rv.Len()}, true
	}
	return identity{}, false
}

func isNil(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Interface, reflect.Slice:
		return rv.IsNil()
	}
	return false
}

func truncate(s string) string {
	if utf8.RuneCountInString(s) <= maxStr {
		return s
	}
	r := []rune(s)
	return string(r[:maxStr-1]) + "…"
}

// walkRefs calls fn for every reference in a payload.
func walkRefs(data *SymbolData, fn func(string)) {
	if data == nil {
		return
	}
	walkValue(data.Viewer, fn)
	walkValue(data.Attributes, fn)
}

func walkValue(v any, fn func(string)) {
	switch t := v.(type) {
	case string:
		if IsRef(t) {
			fn(t)
		}
	case []any:
		for _, x := range t {
			walkValue(x, fn)
		}
	case map[string]any:
		for _, k := range sortedKeys(t) {
			walkValue(t[k], fn)
		}
	}
}
