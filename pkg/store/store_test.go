package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/nikhilxb/xnode-db/pkg/schema"
)

func newSnapshot(t *testing.T, id string, created time.Time) *schema.Snapshot {
	t.Helper()
	snap, err := schema.NewEngine().Snapshot("test.star:1", map[string]any{"x": []int{1, 2}, "s": "@home"})
	if err != nil {
		t.Fatal(err)
	}
	snap.ID = id
	snap.CreatedAt = created
	return snap
}

// testStore runs the behavior every backend shares.
func testStore(t *testing.T, s Store) {
	t.Helper()
	ctx := context.Background()
	t0 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	if _, err := s.Load(ctx, "missing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Load(missing) error = %v, want ErrNotFound", err)
	}

	older := newSnapshot(t, "older", t0)
	newer := newSnapshot(t, "newer", t0.Add(time.Hour))
	for _, snap := range []*schema.Snapshot{older, newer} {
		if err := s.Save(ctx, snap); err != nil {
			t.Fatalf("Save(%s): %v", snap.ID, err)
		}
	}

	got, err := s.Load(ctx, "older")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.Context != older.Context || len(got.Symbols) != len(older.Symbols) {
		t.Errorf("Load returned %+v", got)
	}
	if got.Namespace["s"] != older.Namespace["s"] {
		t.Error("namespace not preserved")
	}

	// Loaded snapshots are copies.
	got.Context = "changed"
	again, _ := s.Load(ctx, "older")
	if again.Context != older.Context {
		t.Error("mutating a loaded snapshot changed the stored one")
	}

	infos, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(infos) != 2 || infos[0].ID != "newer" || infos[1].ID != "older" {
		t.Fatalf("List = %+v, want newer then older", infos)
	}
	if infos[1].Symbols != len(older.Symbols) {
		t.Errorf("Info.Symbols = %d, want %d", infos[1].Symbols, len(older.Symbols))
	}

	older.Context = "replaced"
	if err := s.Save(ctx, older); err != nil {
		t.Fatalf("Save replace: %v", err)
	}
	if got, _ := s.Load(ctx, "older"); got.Context != "replaced" {
		t.Errorf("replaced context = %q", got.Context)
	}

	if err := s.Delete(ctx, "older"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if err := s.Delete(ctx, "older"); !errors.Is(err, ErrNotFound) {
		t.Errorf("second Delete error = %v, want ErrNotFound", err)
	}
	if infos, _ := s.List(ctx); len(infos) != 1 {
		t.Errorf("List after Delete = %+v", infos)
	}
}

func TestMemoryStore(t *testing.T) {
	testStore(t, NewMemoryStore())
}

func TestFileStore(t *testing.T) {
	s, err := NewFileStore(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	testStore(t, s)
}

func TestFileStore_Permissions(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStore(dir)
	if err := s.Save(context.Background(), newSnapshot(t, "p", time.Now())); err != nil {
		t.Fatal(err)
	}
	info, err := os.Stat(filepath.Join(dir, "p.json"))
	if err != nil {
		t.Fatal(err)
	}
	if perm := info.Mode().Perm(); perm != 0o600 {
		t.Errorf("snapshot file mode = %o, want 600", perm)
	}
}

func TestFileStore_RejectsUnsafeIDs(t *testing.T) {
	s, _ := NewFileStore(t.TempDir())
	ctx := context.Background()
	for _, id := range []string{"", "../escape", "a/b", ".hidden"} {
		if _, err := s.Load(ctx, id); err == nil || errors.Is(err, ErrNotFound) {
			t.Errorf("Load(%q) error = %v, want validation error", id, err)
		}
		snap := newSnapshot(t, "ok", time.Now())
		snap.ID = id
		if err := s.Save(ctx, snap); err == nil {
			t.Errorf("Save(%q) succeeded", id)
		}
	}
}

func TestFileStore_ListSkipsBadFiles(t *testing.T) {
	dir := t.TempDir()
	s, _ := NewFileStore(dir)
	if err := s.Save(context.Background(), newSnapshot(t, "good", time.Now())); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "bad.json"), []byte("{"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	infos, err := s.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(infos) != 1 || infos[0].ID != "good" {
		t.Errorf("List = %+v, want only good", infos)
	}
}

func TestDefaultDir(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", "/data")
	dir, err := DefaultDir()
	if err != nil {
		t.Fatal(err)
	}
	if dir != filepath.Join("/data", "xnode", "snapshots") {
		t.Errorf("DefaultDir() = %q", dir)
	}
}
