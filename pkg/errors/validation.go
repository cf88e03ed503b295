package errors

import (
	"regexp"
	"slices"
	"strings"
	"unicode"
)

// snapshotIDRegex matches ids that are safe to use as file names and URL
// path segments.
var snapshotIDRegex = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._-]*$`)

// ValidateSnapshotID validates a snapshot id for safety.
// Snapshot ids become file names in the file store and path segments in the
// server, so the rules are conservative:
//   - No empty ids
//   - Maximum length of 128 characters
//   - Letters, digits, '.', '_' and '-' only, starting with a letter or digit
//   - No path traversal sequences (..)
func ValidateSnapshotID(id string) error {
	if id == "" {
		return New(ErrCodeInvalidInput, "snapshot id cannot be empty")
	}
	if len(id) > 128 {
		return New(ErrCodeInvalidInput, "snapshot id too long (max 128 characters)")
	}
	if strings.Contains(id, "..") {
		return New(ErrCodeInvalidInput, "snapshot id cannot contain path traversal sequences (..)")
	}
	if !snapshotIDRegex.MatchString(id) {
		return New(ErrCodeInvalidInput, "invalid snapshot id: %q", id)
	}
	return nil
}

// symbolRefRegex matches symbol references of the form "@id:<token>".
var symbolRefRegex = regexp.MustCompile(`^@id:[0-9]+$`)

// ValidateSymbolRef validates a symbol reference such as "@id:42".
func ValidateSymbolRef(ref string) error {
	if ref == "" {
		return New(ErrCodeInvalidSymbol, "symbol id cannot be empty")
	}
	for _, r := range ref {
		if unicode.IsControl(r) {
			return New(ErrCodeInvalidSymbol, "symbol id contains invalid control characters")
		}
	}
	if !symbolRefRegex.MatchString(ref) {
		return New(ErrCodeInvalidSymbol, "malformed symbol id: %q (want @id:<number>)", ref)
	}
	return nil
}

// Formats lists the output formats understood by the renderer.
var Formats = []string{"dot", "svg", "pdf", "png", "json"}

// ValidateFormat validates one output format name.
func ValidateFormat(format string) error {
	if format == "" {
		return New(ErrCodeInvalidFormat, "format cannot be empty")
	}
	if !slices.Contains(Formats, format) {
		return New(ErrCodeInvalidFormat, "unsupported format %q (valid: %s)", format, strings.Join(Formats, ", "))
	}
	return nil
}

// ValidateFormats validates a comma-separated format list and returns the
// individual names with duplicates removed.
func ValidateFormats(list string) ([]string, error) {
	var out []string
	for _, f := range strings.Split(list, ",") {
		f = strings.ToLower(strings.TrimSpace(f))
		if f == "" {
			continue
		}
		if err := ValidateFormat(f); err != nil {
			return nil, err
		}
		if !slices.Contains(out, f) {
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return nil, New(ErrCodeInvalidFormat, "no output format given")
	}
	return out, nil
}
