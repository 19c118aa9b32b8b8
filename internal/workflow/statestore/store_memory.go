package statestore

import (
	"context"
	"sync"

	"regflow/internal/workflow"
	"regflow/pkg/platform/sentinel"
)

// InMemoryStore keeps snapshots for the life of the process.
type InMemoryStore struct {
	mu    sync.RWMutex
	snaps map[string]workflow.Snapshot
}

func NewInMemory() *InMemoryStore {
	return &InMemoryStore{snaps: make(map[string]workflow.Snapshot)}
}

func (s *InMemoryStore) Load(_ context.Context, sessionID string) (*workflow.Snapshot, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap, ok := s.snaps[sessionID]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	snap.Registration = snap.Registration.Clone()
	return &snap, nil
}

func (s *InMemoryStore) Save(_ context.Context, sessionID string, snap workflow.Snapshot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap.Registration = snap.Registration.Clone()
	s.snaps[sessionID] = snap
	return nil
}

func (s *InMemoryStore) Clear(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.snaps, sessionID)
	return nil
}
