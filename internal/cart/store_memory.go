package cart

import (
	"context"
	"sync"
)

// MemStore keeps encoded snapshots in process memory, keyed by user id when
// present and session key otherwise.
type MemStore struct {
	mu sync.RWMutex
	m  map[string][]byte
}

func NewMemStore() *MemStore {
	return &MemStore{m: map[string][]byte{}}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Load(ctx context.Context, owner Owner) (Snapshot, error) {
	if err := owner.validate(); err != nil {
		return Snapshot{}, err
	}

	s.mu.RLock()
	raw, ok := s.m[memKey(owner)]
	s.mu.RUnlock()

	if !ok {
		return Snapshot{}, nil
	}
	return DecodeSnapshot(raw)
}

func (s *MemStore) Save(ctx context.Context, owner Owner, snap Snapshot) error {
	if err := owner.validate(); err != nil {
		return err
	}

	raw, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.m[memKey(owner)] = raw
	return nil
}

func memKey(o Owner) string {
	if o.UserID != "" {
		return "user:" + o.UserID
	}
	return "session:" + o.SessionKey
}
