package cache

import "fmt"

const (
	keyArtifact = "artifact"
	keySnapshot = "snapshot"
)

// Keyer builds cache keys.
type Keyer interface {
	// SnapshotKey is the key of a stored snapshot.
	SnapshotKey(id string) string

	// ArtifactKey is the key of a diagram rendered from the snapshot whose
	// JSON hashes to snapshotHash.
	ArtifactKey(snapshotHash string, opts ArtifactKeyOpts) string
}

// ArtifactKeyOpts holds the render options that change an artifact.
type ArtifactKeyOpts struct {
	Format   string
	Head     string
	Detailed bool
	Scale    float64
}

// DefaultKeyer builds unscoped keys of the form "kind:...".
type DefaultKeyer struct{}

// NewDefaultKeyer returns the default keyer.
func NewDefaultKeyer() Keyer {
	return DefaultKeyer{}
}

// SnapshotKey returns "snapshot:<id>".
func (DefaultKeyer) SnapshotKey(id string) string {
	return fmt.Sprintf("%s:%s", keySnapshot, id)
}

// ArtifactKey returns "artifact:<hash of snapshot hash and options>".
func (DefaultKeyer) ArtifactKey(snapshotHash string, opts ArtifactKeyOpts) string {
	return keyArtifact + ":" + opts.digest(snapshotHash)
}
