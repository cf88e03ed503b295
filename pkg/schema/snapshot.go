package schema

import (
	"errors"
	"fmt"
	"time"
)

// ErrInvalidSnapshot is returned by [Snapshot.Validate] and [ReadJSON] for
// snapshots whose references do not resolve.
var ErrInvalidSnapshot = errors.New("invalid snapshot")

// Snapshot is a self-contained symbol table captured at one point of a
// program run. It needs no engine to answer symbol requests.
type Snapshot struct {
	// ID identifies the snapshot in stores and URLs.
	ID string `json:"id"`

	// Context describes where the program was when the snapshot was taken,
	// e.g. "model.star:42".
	Context string `json:"context"`

	// CreatedAt is the capture time in UTC.
	CreatedAt time.Time `json:"created_at"`

	// Namespace maps variable names to symbol references.
	Namespace map[string]string `json:"namespace"`

	// Symbols holds every captured symbol keyed by reference. Symbols with
	// nil Data were referenced but not loaded.
	Symbols map[string]*Symbol `json:"symbols"`

	// Truncated is set when the size limit stopped loading early.
	Truncated bool `json:"truncated,omitempty"`
}

// Names returns the namespace variable names in sorted order.
func (s *Snapshot) Names() []string {
	return sortedKeys(s.Namespace)
}

// Shells returns the namespace shells keyed by reference, without data
// except for primitives, in the same shape as [Engine.Namespace].
func (s *Snapshot) Shells() map[string]*Symbol {
	out := make(map[string]*Symbol)
	for _, name := range s.Names() {
		ref := s.Namespace[name]
		if _, ok := out[ref]; ok {
			continue
		}
		sym, ok := s.Symbols[ref]
		if !ok {
			continue
		}
		cp := *sym
		if cp.Type != "none" && cp.Type != "bool" && cp.Type != "number" && cp.Type != "string" {
			cp.Data = nil
		}
		out[ref] = &cp
	}
	return out
}

// Load answers a symbol request from the captured table.
func (s *Snapshot) Load(ref string) (*Payload, error) {
	if _, ok := RefToken(ref); !ok {
		return nil, fmt.Errorf("%w: %q", ErrInvalidRef, ref)
	}
	sym, ok := s.Symbols[ref]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrUnknownSymbol, ref)
	}
	if sym.Data == nil {
		return nil, fmt.Errorf("%w: %s", ErrNotLoaded, ref)
	}

	shells := make(map[string]*Symbol)
	walkRefs(sym.Data, func(r string) {
		if other, ok := s.Symbols[r]; ok {
			cp := *other
			cp.Data = nil
			shells[r] = &cp
		}
	})
	return &Payload{SymbolID: ref, Data: sym.Data, Shells: shells}, nil
}

// Symbol returns the symbol for ref, or nil.
func (s *Snapshot) Symbol(ref string) *Symbol {
	return s.Symbols[ref]
}

// Counts returns the number of symbols of each type.
func (s *Snapshot) Counts() map[string]int {
	counts := make(map[string]int)
	for _, sym := range s.Symbols {
		counts[sym.Type]++
	}
	return counts
}

// Validate checks that every symbol has a type, every key is a reference,
// and every reference in the namespace and in loaded payloads resolves.
func (s *Snapshot) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing id", ErrInvalidSnapshot)
	}
	for _, name := range s.Names() {
		if _, ok := s.Symbols[s.Namespace[name]]; !ok {
			return fmt.Errorf("%w: namespace entry %q refers to missing symbol %s", ErrInvalidSnapshot, name, s.Namespace[name])
		}
	}
	for _, ref := range sortedKeys(s.Symbols) {
		sym := s.Symbols[ref]
		if !IsRef(ref) {
			return fmt.Errorf("%w: symbol key %q is not a reference", ErrInvalidSnapshot, ref)
		}
		if sym == nil || sym.Type == "" {
			return fmt.Errorf("%w: symbol %s has no type", ErrInvalidSnapshot, ref)
		}
		var missing string
		walkRefs(sym.Data, func(r string) {
			if _, ok := s.Symbols[r]; !ok && missing == "" {
				missing = r
			}
		})
		if missing != "" {
			return fmt.Errorf("%w: symbol %s refers to missing symbol %s", ErrInvalidSnapshot, ref, missing)
		}
	}
	return nil
}
