package domain

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// NodeStore keeps the latest node records in memory and writes every
// mutation through to the repository before returning.
type NodeStore struct {
	mu    sync.RWMutex
	nodes map[string]NodeRecord
	repo  NodeRepository
	now   func() time.Time
}

func NewNodeStore(repo NodeRepository) *NodeStore {
	return &NodeStore{
		nodes: make(map[string]NodeRecord),
		repo:  repo,
		now:   time.Now,
	}
}

// Load replaces the in-memory state with the repository contents.
func (s *NodeStore) Load(ctx context.Context) error {
	nodes, err := s.repo.LoadAll(ctx)
	if err != nil {
		return fmt.Errorf("load nodes: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodes = make(map[string]NodeRecord, len(nodes))
	for id, rec := range nodes {
		s.nodes[id] = rec
	}

	return nil
}

func (s *NodeStore) Get(nodeID string) (NodeRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.nodes[nodeID]

	return rec, ok
}

// Update merges u into the record for nodeID, creating it if needed. The
// in-memory copy only changes once the repository accepted the write.
func (s *NodeStore) Update(ctx context.Context, nodeID string, u NodeUpdate) (NodeRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec := u.Apply(s.nodes[nodeID])
	rec.UpdatedAt = s.now()
	if err := s.repo.Upsert(ctx, nodeID, rec); err != nil {
		return NodeRecord{}, fmt.Errorf("persist node %s: %w", nodeID, err)
	}
	s.nodes[nodeID] = rec

	return rec, nil
}

func (s *NodeStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.nodes)
}
