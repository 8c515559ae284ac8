package session

import (
	"context"
	"sync"
	"time"
)

type memEntry struct {
	raw     []byte
	expires time.Time
}

type MemStore struct {
	mu  sync.Mutex
	ttl time.Duration
	m   map[string]memEntry
	now func() time.Time
}

func NewMemStore(ttl time.Duration) *MemStore {
	return &MemStore{ttl: ttl, m: map[string]memEntry{}, now: time.Now}
}

func (s *MemStore) Ping(ctx context.Context) error { return nil }

func (s *MemStore) Load(ctx context.Context, key string) (*Session, error) {
	s.mu.Lock()
	e, ok := s.m[key]
	if ok && s.ttl > 0 {
		now := s.now()
		if now.After(e.expires) {
			delete(s.m, key)
			ok = false
		} else {
			e.expires = now.Add(s.ttl)
			s.m[key] = e
		}
	}
	s.mu.Unlock()

	if !ok {
		return New(key), nil
	}
	return decode(key, e.raw)
}

func (s *MemStore) Save(ctx context.Context, sess *Session) error {
	if !sess.Modified() {
		return nil
	}
	raw, err := sess.encode()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.m[sess.Key] = memEntry{raw: raw, expires: s.now().Add(s.ttl)}
	s.mu.Unlock()

	sess.modified = false
	return nil
}
