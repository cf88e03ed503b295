package cache

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/nikhilxb/xnode-db/pkg/observability"
)

func TestNullCache(t *testing.T) {
	ctx := context.Background()
	c := NewNullCache()
	defer c.Close()

	if err := c.Set(ctx, "key", []byte("value"), time.Hour); err != nil {
		t.Errorf("Set error: %v", err)
	}
	data, hit, err := c.Get(ctx, "key")
	if err != nil || hit || data != nil {
		t.Errorf("Get = %q, %v, %v; want miss", data, hit, err)
	}
	if err := c.Delete(ctx, "key"); err != nil {
		t.Errorf("Delete error: %v", err)
	}
}

func TestFileCache(t *testing.T) {
	ctx := context.Background()
	c, err := NewFileCache(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}

	if _, hit, err := c.Get(ctx, "missing"); err != nil || hit {
		t.Errorf("Get(missing) hit=%v err=%v", hit, err)
	}
	if err := c.Set(ctx, "k", []byte("v"), time.Hour); err != nil {
		t.Fatalf("Set: %v", err)
	}
	data, hit, err := c.Get(ctx, "k")
	if err != nil || !hit || string(data) != "v" {
		t.Errorf("Get = %q, %v, %v", data, hit, err)
	}

	if err := c.Set(ctx, "k", []byte("v2"), 0); err != nil {
		t.Fatalf("Set overwrite: %v", err)
	}
	if data, _, _ := c.Get(ctx, "k"); string(data) != "v2" {
		t.Errorf("overwrite: got %q", data)
	}

	if err := c.Delete(ctx, "k"); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("entry still present after Delete")
	}
	if err := c.Delete(ctx, "k"); err != nil {
		t.Errorf("Delete of missing key: %v", err)
	}
}

func TestFileCache_Expiry(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	if err := c.Set(ctx, "k", []byte("v"), time.Nanosecond); err != nil {
		t.Fatal(err)
	}
	time.Sleep(time.Millisecond)
	if _, hit, _ := c.Get(ctx, "k"); hit {
		t.Error("expired entry returned")
	}
	if _, err := os.Stat(c.path("k")); !os.IsNotExist(err) {
		t.Error("expired entry not removed")
	}
}

func TestFileCache_Corrupt(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	path := c.path("k")
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, hit, err := c.Get(ctx, "k"); hit || err != nil {
		t.Errorf("corrupt entry: hit=%v err=%v, want miss", hit, err)
	}
}

func TestFileCache_Clear(t *testing.T) {
	ctx := context.Background()
	c, _ := NewFileCache(t.TempDir())
	for _, k := range []string{"a", "b", "c"} {
		if err := c.Set(ctx, k, []byte(k), 0); err != nil {
			t.Fatal(err)
		}
	}
	n, err := c.Clear()
	if err != nil {
		t.Fatalf("Clear: %v", err)
	}
	if n != 3 {
		t.Errorf("Clear removed %d entries, want 3", n)
	}
	if _, hit, _ := c.Get(ctx, "a"); hit {
		t.Error("entry survived Clear")
	}
}

func TestHash(t *testing.T) {
	h1 := Hash([]byte("hello"))
	if h1 != Hash([]byte("hello")) {
		t.Error("Hash should be deterministic")
	}
	if h1 == Hash([]byte("world")) {
		t.Error("Different inputs should produce different hashes")
	}
	if len(h1) != 64 {
		t.Errorf("Hash length should be 64, got %d", len(h1))
	}
}

func TestDefaultKeyer(t *testing.T) {
	k := NewDefaultKeyer()

	if got := k.SnapshotKey("abc"); got != "snapshot:abc" {
		t.Errorf("SnapshotKey = %q", got)
	}

	svg := k.ArtifactKey("hash", ArtifactKeyOpts{Format: "svg"})
	if !strings.HasPrefix(svg, "artifact:") {
		t.Errorf("ArtifactKey = %q, want artifact: prefix", svg)
	}
	for _, opts := range []ArtifactKeyOpts{
		{Format: "png"},
		{Format: "svg", Head: "@id:3"},
		{Format: "svg", Detailed: true},
	} {
		if k.ArtifactKey("hash", opts) == svg {
			t.Errorf("ArtifactKey(%+v) collides with the plain svg key", opts)
		}
	}
	if k.ArtifactKey("other", ArtifactKeyOpts{Format: "svg"}) == svg {
		t.Error("different snapshots should produce different keys")
	}
	if k.ArtifactKey("hash", ArtifactKeyOpts{Format: "svg"}) != svg {
		t.Error("ArtifactKey should be deterministic")
	}
	if len(strings.TrimPrefix(svg, "artifact:")) != 64 {
		t.Errorf("ArtifactKey = %q, want a 64-character digest", svg)
	}
}

func TestArtifactKeyOptsDigest(t *testing.T) {
	base := ArtifactKeyOpts{Format: "png", Head: "@id:1", Scale: 2}
	tests := []struct {
		name string
		hash string
		opts ArtifactKeyOpts
	}{
		{"scale", "h", ArtifactKeyOpts{Format: "png", Head: "@id:1", Scale: 3}},
		{"head", "h", ArtifactKeyOpts{Format: "png", Head: "@id:2", Scale: 2}},
		{"fields do not run together", "hp", ArtifactKeyOpts{Format: "ng", Head: "@id:1", Scale: 2}},
	}
	want := base.digest("h")
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.opts.digest(tt.hash) == want {
				t.Errorf("digest(%q, %+v) collides with %+v", tt.hash, tt.opts, base)
			}
		})
	}
}

func TestScopedKeyer(t *testing.T) {
	scoped := NewScopedKeyer(NewDefaultKeyer(), "staging:")
	if got := scoped.SnapshotKey("abc"); got != "staging:snapshot:abc" {
		t.Errorf("SnapshotKey = %q", got)
	}
	if got := scoped.ArtifactKey("h", ArtifactKeyOpts{}); !strings.HasPrefix(got, "staging:artifact:") {
		t.Errorf("ArtifactKey = %q", got)
	}

	// A nil inner keyer falls back to the default.
	if got := NewScopedKeyer(nil, "p:").SnapshotKey("x"); got != "p:snapshot:x" {
		t.Errorf("nil inner: %q", got)
	}
}

func TestKeyType(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"artifact:abc", "artifact"},
		{"snapshot:abc", "snapshot"},
		{"staging:artifact:abc", "artifact"},
		{"plain", "other"},
		{"x:y", "other"},
	}
	for _, tt := range tests {
		if got := keyType(tt.key); got != tt.want {
			t.Errorf("keyType(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

type recordingHooks struct {
	observability.NoopCacheHooks
	hits, misses, sets []string
}

func (h *recordingHooks) OnCacheHit(_ context.Context, k string)  { h.hits = append(h.hits, k) }
func (h *recordingHooks) OnCacheMiss(_ context.Context, k string) { h.misses = append(h.misses, k) }
func (h *recordingHooks) OnCacheSet(_ context.Context, k string, _ int) {
	h.sets = append(h.sets, k)
}

func TestInstrument(t *testing.T) {
	hooks := &recordingHooks{}
	observability.SetCacheHooks(hooks)
	t.Cleanup(observability.Reset)

	ctx := context.Background()
	fc, _ := NewFileCache(t.TempDir())
	c := Instrument(fc)

	_, _, _ = c.Get(ctx, "artifact:x")
	_ = c.Set(ctx, "artifact:x", []byte("1"), 0)
	_, _, _ = c.Get(ctx, "artifact:x")
	_, _, _ = c.Get(ctx, "snapshot:y")

	if len(hooks.hits) != 1 || hooks.hits[0] != "artifact" {
		t.Errorf("hits = %v", hooks.hits)
	}
	if len(hooks.misses) != 2 || hooks.misses[1] != "snapshot" {
		t.Errorf("misses = %v", hooks.misses)
	}
	if len(hooks.sets) != 1 {
		t.Errorf("sets = %v", hooks.sets)
	}
}

func TestRetryableError(t *testing.T) {
	if Retryable(nil) != nil {
		t.Error("Retryable(nil) should return nil")
	}
	err := Retryable(ErrUnavailable)
	if !IsRetryable(err) {
		t.Error("IsRetryable should return true for wrapped error")
	}
	if !errors.Is(err, ErrUnavailable) {
		t.Error("wrapped error should unwrap to the original")
	}
	if err.Error() != ErrUnavailable.Error() {
		t.Errorf("Error message should be preserved: %s", err.Error())
	}
	if IsRetryable(ErrUnavailable) {
		t.Error("IsRetryable should return false for unwrapped error")
	}
}

func TestBackoff(t *testing.T) {
	ctx := context.Background()
	b := Backoff{Attempts: 3, Delay: time.Millisecond}
	errPermanent := errors.New("permanent")

	tests := []struct {
		name      string
		failures  int
		err       error
		wantCalls int
		wantErr   error
	}{
		{"success", 0, nil, 1, nil},
		{"permanent", 5, errPermanent, 1, errPermanent},
		{"recovers", 1, Retryable(ErrUnavailable), 2, nil},
		{"exhausted", 5, Retryable(ErrUnavailable), 3, ErrUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			calls := 0
			err := b.Do(ctx, func() error {
				calls++
				if calls <= tt.failures {
					return tt.err
				}
				return nil
			})
			if calls != tt.wantCalls {
				t.Errorf("calls = %d, want %d", calls, tt.wantCalls)
			}
			if tt.wantErr == nil && err != nil {
				t.Errorf("err = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("err = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestBackoffContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Backoff{Attempts: 3, Delay: time.Hour}.Do(ctx, func() error {
		return Retryable(ErrUnavailable)
	})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("Should return context error: %v", err)
	}
}
