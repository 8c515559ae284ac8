package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func exerciseStore(t *testing.T, st Store) {
	t.Helper()
	ctx := context.Background()

	s, err := st.Load(ctx, "k1")
	require.NoError(t, err)
	_, ok := s.Get("CART")
	require.False(t, ok)

	// Unmodified sessions are not written.
	require.NoError(t, st.Save(ctx, s))
	s.values["ghost"] = json.RawMessage(`1`)
	require.NoError(t, st.Save(ctx, s))
	again, err := st.Load(ctx, "k1")
	require.NoError(t, err)
	_, ok = again.Get("ghost")
	require.False(t, ok)
	delete(s.values, "ghost")

	s.Set("CART", json.RawMessage(`{"v":1,"items":[]}`))
	require.True(t, s.Modified())
	require.NoError(t, st.Save(ctx, s))
	require.False(t, s.Modified())

	loaded, err := st.Load(ctx, "k1")
	require.NoError(t, err)
	raw, ok := loaded.Get("CART")
	require.True(t, ok)
	require.JSONEq(t, `{"v":1,"items":[]}`, string(raw))

	other, err := st.Load(ctx, "k2")
	require.NoError(t, err)
	_, ok = other.Get("CART")
	require.False(t, ok)
}

func TestMemStore(t *testing.T) {
	exerciseStore(t, NewMemStore(time.Hour))
}

func TestMemStore_Expiry(t *testing.T) {
	st := NewMemStore(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	s := New("k")
	s.Set("CART", json.RawMessage(`{}`))
	require.NoError(t, st.Save(context.Background(), s))

	now = now.Add(2 * time.Minute)
	loaded, err := st.Load(context.Background(), "k")
	require.NoError(t, err)
	_, ok := loaded.Get("CART")
	require.False(t, ok)
}

func TestMemStore_ReadsExtendExpiry(t *testing.T) {
	st := NewMemStore(time.Minute)
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	st.now = func() time.Time { return now }

	s := New("k")
	s.Set("CART", json.RawMessage(`{}`))
	require.NoError(t, st.Save(context.Background(), s))

	for i := 0; i < 3; i++ {
		now = now.Add(40 * time.Second)
		loaded, err := st.Load(context.Background(), "k")
		require.NoError(t, err)
		_, ok := loaded.Get("CART")
		require.Truef(t, ok, "read %d", i)
	}
}

func TestRedisStore(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := NewRedisStoreFromClient(rdb, time.Hour)
	require.NoError(t, st.Ping(context.Background()))
	exerciseStore(t, st)

	require.True(t, mr.Exists("session:k1"))
	require.Equal(t, time.Hour, mr.TTL("session:k1"))
}

func TestRedisStore_ReadsExtendExpiry(t *testing.T) {
	mr := miniredis.RunT(t)
	rdb := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })

	st := NewRedisStoreFromClient(rdb, time.Hour)
	ctx := context.Background()

	s := New("k")
	s.Set("CART", json.RawMessage(`{}`))
	require.NoError(t, st.Save(ctx, s))

	mr.FastForward(40 * time.Minute)
	_, err := st.Load(ctx, "k")
	require.NoError(t, err)
	require.Equal(t, time.Hour, mr.TTL("session:k"))

	mr.FastForward(40 * time.Minute)
	loaded, err := st.Load(ctx, "k")
	require.NoError(t, err)
	_, ok := loaded.Get("CART")
	require.True(t, ok)
}

func TestRedisStore_CorruptPayload(t *testing.T) {
	mr := miniredis.RunT(t)
	require.NoError(t, mr.Set("session:bad", "not json"))

	st, err := NewRedisStore(context.Background(), mr.Addr(), time.Hour)
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	_, err = st.Load(context.Background(), "bad")
	require.Error(t, err)
}
