// Package session keeps per-visitor key/value payloads behind a signed
// cookie. Values are opaque JSON; a session is written back only when it was
// marked modified.
package session

import (
	"context"
	"encoding/json"
	"errors"
)

var ErrNoSession = errors.New("no session in context")

type Session struct {
	Key      string
	values   map[string]json.RawMessage
	modified bool
}

func New(key string) *Session {
	return &Session{Key: key, values: map[string]json.RawMessage{}}
}

func (s *Session) Get(name string) (json.RawMessage, bool) {
	v, ok := s.values[name]
	return v, ok
}

func (s *Session) Set(name string, v json.RawMessage) {
	s.values[name] = v
	s.modified = true
}

func (s *Session) Delete(name string) {
	if _, ok := s.values[name]; !ok {
		return
	}
	delete(s.values, name)
	s.modified = true
}

// MarkModified flags the session for persistence without changing a value,
// for callers that mutated a value in place.
func (s *Session) MarkModified() { s.modified = true }

func (s *Session) Modified() bool { return s.modified }

func (s *Session) encode() ([]byte, error) {
	return json.Marshal(s.values)
}

func decode(key string, raw []byte) (*Session, error) {
	s := New(key)
	if len(raw) == 0 {
		return s, nil
	}
	if err := json.Unmarshal(raw, &s.values); err != nil {
		return nil, err
	}
	if s.values == nil {
		s.values = map[string]json.RawMessage{}
	}
	return s, nil
}

// Store loads and saves sessions by key. Load of an unknown key returns an
// empty session, never an error.
type Store interface {
	Load(ctx context.Context, key string) (*Session, error)
	Save(ctx context.Context, s *Session) error
	Ping(ctx context.Context) error
}

type ctxKey struct{}

func WithKey(ctx context.Context, key string) context.Context {
	return context.WithValue(ctx, ctxKey{}, key)
}

func KeyFromContext(ctx context.Context) (string, bool) {
	v, ok := ctx.Value(ctxKey{}).(string)
	return v, ok && v != ""
}
