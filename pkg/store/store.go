// Package store persists snapshots so they can be browsed and served after
// the program that produced them has exited.
//
// Three backends implement [Store]:
//   - [MemoryStore]: in-process, for tests and a server started with
//     snapshot files on its command line
//   - [FileStore]: one JSON file per snapshot, for the CLI
//   - [MongoStore]: a MongoDB collection, for a shared server
//
// Snapshots are stored in their JSON form ([schema.Marshal]), so every
// backend returns an independent copy on Load.
package store

import (
	"context"
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/nikhilxb/xnode-db/pkg/schema"
)

// ErrNotFound is returned when no snapshot has the requested id.
var ErrNotFound = errors.New("snapshot not found")

// Store is the interface for snapshot storage backends.
type Store interface {
	// Save stores snap under snap.ID, replacing any previous version.
	Save(ctx context.Context, snap *schema.Snapshot) error

	// Load returns the snapshot with the given id, or ErrNotFound.
	Load(ctx context.Context, id string) (*schema.Snapshot, error)

	// List returns a summary of every stored snapshot, newest first.
	List(ctx context.Context) ([]Info, error)

	// Delete removes a snapshot. Deleting a missing id returns ErrNotFound.
	Delete(ctx context.Context, id string) error

	// Close releases the backend.
	Close() error
}

// Info summarizes a stored snapshot.
type Info struct {
	ID        string    `json:"id" bson:"_id"`
	Context   string    `json:"context" bson:"context"`
	CreatedAt time.Time `json:"created_at" bson:"created_at"`
	Symbols   int       `json:"symbols" bson:"symbols"`
	Truncated bool      `json:"truncated,omitempty" bson:"truncated"`
}

// InfoOf summarizes snap.
func InfoOf(snap *schema.Snapshot) Info {
	return Info{
		ID:        snap.ID,
		Context:   snap.Context,
		CreatedAt: snap.CreatedAt,
		Symbols:   len(snap.Symbols),
		Truncated: snap.Truncated,
	}
}

// sortInfos orders infos newest first, then by id.
func sortInfos(infos []Info) {
	slices.SortFunc(infos, func(a, b Info) int {
		if c := b.CreatedAt.Compare(a.CreatedAt); c != 0 {
			return c
		}
		return strings.Compare(a.ID, b.ID)
	})
}
