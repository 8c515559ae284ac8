package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

const (
	keyPrefix   = "session:"
	pingTimeout = 1 * time.Second
	dialTimeout = 5 * time.Second
)

// RedisStore keeps each session as one JSON blob with a sliding TTL: every
// read pushes the expiry out again.
type RedisStore struct {
	rdb *goredis.Client
	ttl time.Duration
}

// NewRedisStore connects to addr, accepting either host:port or a redis://
// URL, and verifies the connection.
func NewRedisStore(ctx context.Context, addr string, ttl time.Duration) (*RedisStore, error) {
	opts, err := goredis.ParseURL(addr)
	if err != nil {
		opts = &goredis.Options{Addr: addr}
	}
	opts.DialTimeout = dialTimeout

	rdb := goredis.NewClient(opts)

	pctx, cancel := context.WithTimeout(ctx, dialTimeout)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisStore{rdb: rdb, ttl: ttl}, nil
}

func NewRedisStoreFromClient(rdb *goredis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func (s *RedisStore) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, pingTimeout)
	defer cancel()
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Load(ctx context.Context, key string) (*Session, error) {
	var cmd *goredis.StringCmd
	if s.ttl > 0 {
		cmd = s.rdb.GetEx(ctx, keyPrefix+key, s.ttl)
	} else {
		cmd = s.rdb.Get(ctx, keyPrefix+key)
	}
	raw, err := cmd.Bytes()
	if errors.Is(err, goredis.Nil) {
		return New(key), nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get session: %w", err)
	}

	sess, err := decode(key, raw)
	if err != nil {
		return nil, fmt.Errorf("decode session: %w", err)
	}
	return sess, nil
}

func (s *RedisStore) Save(ctx context.Context, sess *Session) error {
	if !sess.Modified() {
		return nil
	}
	raw, err := sess.encode()
	if err != nil {
		return err
	}
	if err := s.rdb.Set(ctx, keyPrefix+sess.Key, raw, s.ttl).Err(); err != nil {
		return fmt.Errorf("redis set session: %w", err)
	}
	sess.modified = false
	return nil
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
