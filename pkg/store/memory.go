package store

import (
	"context"
	"fmt"
	"sync"

	"github.com/nikhilxb/xnode-db/pkg/schema"
)

// MemoryStore keeps snapshots in memory. It is safe for concurrent use.
type MemoryStore struct {
	mu    sync.RWMutex
	snaps map[string][]byte
	infos map[string]Info
}

// NewMemoryStore creates an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		snaps: make(map[string][]byte),
		infos: make(map[string]Info),
	}
}

func (s *MemoryStore) Save(_ context.Context, snap *schema.Snapshot) error {
	data, err := schema.Marshal(snap)
	if err != nil {
		return fmt.Errorf("marshal snapshot: %w", err)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.snaps[snap.ID] = data
	s.infos[snap.ID] = InfoOf(snap)
	return nil
}

func (s *MemoryStore) Load(_ context.Context, id string) (*schema.Snapshot, error) {
	s.mu.RLock()
	data, ok := s.snaps[id]
	s.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return schema.Unmarshal(data)
}

func (s *MemoryStore) List(context.Context) ([]Info, error) {
	s.mu.RLock()
	infos := make([]Info, 0, len(s.infos))
	for _, info := range s.infos {
		infos = append(infos, info)
	}
	s.mu.RUnlock()
	sortInfos(infos)
	return infos, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.snaps[id]; !ok {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	delete(s.snaps, id)
	delete(s.infos, id)
	return nil
}

func (s *MemoryStore) Close() error { return nil }

var _ Store = (*MemoryStore)(nil)
