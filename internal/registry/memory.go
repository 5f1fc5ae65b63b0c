package registry

import (
	"context"
	"sort"
	"sync"
	"time"
)

type memoryEntry struct {
	node      Node
	expiresAt time.Time
}

// MemoryStore is a process-local Store, used when no redis is configured and
// in tests.
type MemoryStore struct {
	mu      sync.RWMutex
	entries map[string]memoryEntry
	now     func() time.Time
}

// NewMemoryStore returns an empty store on the wall clock.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		entries: make(map[string]memoryEntry),
		now:     time.Now,
	}
}

func (s *MemoryStore) Put(_ context.Context, node Node, ttl time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.entries[node.ID] = memoryEntry{node: node, expiresAt: s.now().Add(ttl)}
	return nil
}

func (s *MemoryStore) Get(_ context.Context, id string) (Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	entry, ok := s.entries[id]
	if !ok || !s.now().Before(entry.expiresAt) {
		return Node{}, ErrNodeNotFound
	}
	return entry.node, nil
}

// List returns live nodes ordered by name then id. Expired entries are purged.
func (s *MemoryStore) List(_ context.Context) ([]Node, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	nodes := make([]Node, 0, len(s.entries))
	for id, entry := range s.entries {
		if !now.Before(entry.expiresAt) {
			delete(s.entries, id)
			continue
		}
		nodes = append(nodes, entry.node)
	}
	sortNodes(nodes)
	return nodes, nil
}

func (s *MemoryStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.entries, id)
	return nil
}

// HealthCheck always succeeds; the store lives in process.
func (s *MemoryStore) HealthCheck(context.Context) error {
	return nil
}

func sortNodes(nodes []Node) {
	sort.Slice(nodes, func(i, j int) bool {
		if nodes[i].Name != nodes[j].Name {
			return nodes[i].Name < nodes[j].Name
		}
		return nodes[i].ID < nodes[j].ID
	})
}
