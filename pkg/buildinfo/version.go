// Package buildinfo provides build-time version information for xnode.
//
// Variables are set via ldflags during build:
//
//	go build -ldflags "-X github.com/nikhilxb/xnode-db/pkg/buildinfo.Version=v0.3.0 \
//	    -X github.com/nikhilxb/xnode-db/pkg/buildinfo.Commit=$(git rev-parse HEAD)"
//
// When Version is not set, the module version recorded by the Go toolchain is
// used instead (so `go install ...@v0.3.0` reports the right version).
package buildinfo

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version is the semantic version (e.g., "v0.3.0").
	Version = "dev"

	// Commit is the git commit SHA.
	Commit = "none"

	// Date is the build timestamp.
	Date = "unknown"
)

// Resolved returns Version, or the main module version from the embedded
// build info when Version was not set at link time.
func Resolved() string {
	if Version != "dev" {
		return Version
	}
	if bi, ok := debug.ReadBuildInfo(); ok && bi.Main.Version != "" && bi.Main.Version != "(devel)" {
		return bi.Main.Version
	}
	return Version
}

// String returns the formatted build information.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s", Resolved(), Commit, Date)
}

// Template returns the version template string for cobra.
func Template() string {
	return fmt.Sprintf("{{.Name}} version %s\ncommit: %s\nbuilt: %s\n", Resolved(), Commit, Date)
}
