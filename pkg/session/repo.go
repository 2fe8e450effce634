package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore keeps each record under prefix+id with the record's MaxAge as
// key TTL. Every access re-arms the TTL, so Redis drops idle sessions.
type RedisStore struct {
	rdb    redis.UniversalClient
	prefix string
	now    func() time.Time
}

func NewRedisStore(rdb redis.UniversalClient, prefix string) *RedisStore {
	return &RedisStore{
		rdb:    rdb,
		prefix: prefix,
		now:    time.Now,
	}
}

func (s *RedisStore) key(id string) string {
	return s.prefix + id
}

func (s *RedisStore) Get(ctx context.Context, id string) (*Record, error) {
	raw, err := s.rdb.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("session/repo: get %s: %w", id, err)
	}

	rec := new(Record)
	if err := json.Unmarshal(raw, rec); err != nil {
		// A record we can't read is as good as gone.
		_ = s.rdb.Del(ctx, s.key(id)).Err()
		return nil, fmt.Errorf("session/repo: corrupt record %s: %v, %w", id, err, ErrNotFound)
	}
	if rec.Expired(s.now()) {
		_ = s.rdb.Del(ctx, s.key(id)).Err()
		return nil, ErrNotFound
	}
	return rec, nil
}

func (s *RedisStore) Save(ctx context.Context, rec *Record) error {
	if rec.MaxAge <= 0 {
		return fmt.Errorf("session/repo: record %s has no max age", rec.ID)
	}
	rec.LastAccess = s.now()
	raw, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("session/repo: encode %s: %w", rec.ID, err)
	}
	if err := s.rdb.Set(ctx, s.key(rec.ID), raw, rec.MaxAge).Err(); err != nil {
		return fmt.Errorf("session/repo: save %s: %w", rec.ID, err)
	}
	return nil
}

// Touch records an access. The whole record is rewritten, which also
// persists any Data changes made while handling the request.
func (s *RedisStore) Touch(ctx context.Context, rec *Record) error {
	return s.Save(ctx, rec)
}

// Destroy is idempotent.
func (s *RedisStore) Destroy(ctx context.Context, id string) error {
	if err := s.rdb.Del(ctx, s.key(id)).Err(); err != nil {
		return fmt.Errorf("session/repo: destroy %s: %w", id, err)
	}
	return nil
}
