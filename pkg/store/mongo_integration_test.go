//go:build integration

package store

import (
	"context"
	"os"
	"testing"

	"github.com/google/uuid"
)

func TestMongoStore(t *testing.T) {
	uri := os.Getenv("XNODE_TEST_MONGO_URI")
	if uri == "" {
		t.Skip("XNODE_TEST_MONGO_URI not set")
	}
	ctx := context.Background()
	s, err := NewMongoStore(ctx, MongoConfig{
		URI:        uri,
		Database:   "xnode_test",
		Collection: "snapshots_" + uuid.NewString()[:8],
	})
	if err != nil {
		t.Fatalf("NewMongoStore: %v", err)
	}
	t.Cleanup(func() {
		_ = s.coll.Drop(context.Background())
		s.Close()
	})
	testStore(t, s)
}
