package cart

import (
	"context"
	"errors"

	"Carton/internal/session"
)

var ErrNoSessionKey = errors.New("session store needs a session key")

// SessionStore embeds the cart snapshot in the visitor's session payload under
// Key. Carts are per session; the user id of an owner is ignored.
type SessionStore struct {
	Sessions session.Store
	Key      string
}

func NewSessionStore(sessions session.Store, key string) *SessionStore {
	if key == "" {
		key = DefaultSessionKey
	}
	return &SessionStore{Sessions: sessions, Key: key}
}

func (s *SessionStore) Ping(ctx context.Context) error {
	return s.Sessions.Ping(ctx)
}

func (s *SessionStore) Load(ctx context.Context, owner Owner) (Snapshot, error) {
	if owner.SessionKey == "" {
		return Snapshot{}, ErrNoSessionKey
	}

	sess, err := s.Sessions.Load(ctx, owner.SessionKey)
	if err != nil {
		return Snapshot{}, err
	}

	raw, ok := sess.Get(s.Key)
	if !ok {
		return Snapshot{}, nil
	}
	return DecodeSnapshot(raw)
}

func (s *SessionStore) Save(ctx context.Context, owner Owner, snap Snapshot) error {
	if owner.SessionKey == "" {
		return ErrNoSessionKey
	}

	sess, err := s.Sessions.Load(ctx, owner.SessionKey)
	if err != nil {
		return err
	}

	raw, err := EncodeSnapshot(snap)
	if err != nil {
		return err
	}
	sess.Set(s.Key, raw)
	return s.Sessions.Save(ctx, sess)
}
