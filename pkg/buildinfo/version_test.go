package buildinfo

import (
	"strings"
	"testing"
)

func TestResolvedPrefersLinkedVersion(t *testing.T) {
	old := Version
	t.Cleanup(func() { Version = old })

	Version = "v9.9.9"
	if got := Resolved(); got != "v9.9.9" {
		t.Errorf("Resolved() = %q, want v9.9.9", got)
	}
	if !strings.Contains(String(), "version: v9.9.9") {
		t.Errorf("String() = %q", String())
	}
	if !strings.HasPrefix(Template(), "{{.Name}} version v9.9.9") {
		t.Errorf("Template() = %q", Template())
	}
}
