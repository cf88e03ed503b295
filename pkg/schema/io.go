package schema

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"
)

// WriteJSON encodes a snapshot as indented JSON and writes it to w.
// The output can be re-imported with [ReadJSON].
func WriteJSON(s *Snapshot, w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(s); err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	return nil
}

// ReadJSON decodes a snapshot from r and validates it.
//
// After decoding, numbers in payloads are float64 and nested values are
// []any or map[string]any, as with any JSON document. ReadJSON does not
// close r.
func ReadJSON(r io.Reader) (*Snapshot, error) {
	var s Snapshot
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if s.Namespace == nil {
		s.Namespace = make(map[string]string)
	}
	if s.Symbols == nil {
		s.Symbols = make(map[string]*Symbol)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Marshal returns the compact JSON encoding of s.
func Marshal(s *Snapshot) ([]byte, error) {
	return json.Marshal(s)
}

// Unmarshal decodes and validates a snapshot from data.
func Unmarshal(data []byte) (*Snapshot, error) {
	return ReadJSON(bytes.NewReader(data))
}

// ExportJSON writes a snapshot to a JSON file at path.
func ExportJSON(s *Snapshot, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()
	return WriteJSON(s, f)
}

// ImportJSON reads and validates a snapshot from the JSON file at path.
func ImportJSON(path string) (*Snapshot, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	s, err := ReadJSON(f)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	return s, nil
}
