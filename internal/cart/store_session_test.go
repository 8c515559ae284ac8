package cart

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"Carton/internal/session"
)

func TestSessionStore_KeepsOtherSessionValues(t *testing.T) {
	ctx := context.Background()
	sessions := session.NewMemStore(time.Hour)

	sess, err := sessions.Load(ctx, "s1")
	require.NoError(t, err)
	sess.Set("locale", json.RawMessage(`"de"`))
	require.NoError(t, sessions.Save(ctx, sess))

	st := NewSessionStore(sessions, "BASKET")
	c := New(Config{})
	require.NoError(t, c.Add(Product{ID: "p1"}, price("3"), 2))
	require.NoError(t, st.Save(ctx, Owner{SessionKey: "s1"}, c.Snapshot()))

	sess, err = sessions.Load(ctx, "s1")
	require.NoError(t, err)
	locale, ok := sess.Get("locale")
	require.True(t, ok)
	assert.JSONEq(t, `"de"`, string(locale))
	_, ok = sess.Get("BASKET")
	assert.True(t, ok)

	snap, err := st.Load(ctx, Owner{SessionKey: "s1", UserID: "ignored"})
	require.NoError(t, err)
	back, err := Restore(Config{}, snap)
	require.NoError(t, err)
	assert.Equal(t, 2, back.Count())
}

func TestSessionStore_NeedsSessionKey(t *testing.T) {
	st := NewSessionStore(session.NewMemStore(time.Hour), "")
	assert.Equal(t, DefaultSessionKey, st.Key)

	_, err := st.Load(context.Background(), Owner{UserID: "u1"})
	require.ErrorIs(t, err, ErrNoSessionKey)
	err = st.Save(context.Background(), Owner{UserID: "u1"}, Snapshot{})
	require.ErrorIs(t, err, ErrNoSessionKey)
}

func TestSessionStore_Redis(t *testing.T) {
	mr := miniredis.RunT(t)
	ctx := context.Background()

	sessions, err := session.NewRedisStore(ctx, mr.Addr(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sessions.Close() })

	m := &Manager{Store: NewSessionStore(sessions, DefaultSessionKey)}
	owner := Owner{SessionKey: "s-redis"}

	_, err = m.Mutate(ctx, owner, "add", func(c *Cart) error {
		return c.Add(Product{ID: "p1", Title: "Keyboard"}, price("49.90"), 1)
	})
	require.NoError(t, err)

	c, err := m.Open(ctx, owner)
	require.NoError(t, err)
	requireTotal(t, c, "49.90")
	assert.True(t, mr.Exists("session:s-redis"))
}
