package schema

import (
	"strconv"
	"strings"
)

// RefPrefix starts every symbol reference.
const RefPrefix = "@id:"

// Ref returns the reference for a symbol token.
func Ref(token uint64) string {
	return RefPrefix + strconv.FormatUint(token, 10)
}

// RefToken parses a reference and returns its token.
func RefToken(ref string) (uint64, bool) {
	rest, ok := strings.CutPrefix(ref, RefPrefix)
	if !ok {
		return 0, false
	}
	n, err := strconv.ParseUint(rest, 10, 64)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsRef reports whether s is a symbol reference rather than a string value.
func IsRef(s string) bool {
	_, ok := RefToken(s)
	return ok
}

// Escape prepares a string value for a payload. Strings beginning with "@"
// get one extra leading "@"; all others are returned unchanged.
func Escape(s string) string {
	if strings.HasPrefix(s, "@") {
		return "@" + s
	}
	return s
}

// Unescape reverses [Escape]. It must only be applied to payload strings for
// which [IsRef] is false.
func Unescape(s string) string {
	if strings.HasPrefix(s, "@@") {
		return s[1:]
	}
	return s
}
