package session

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the shared-store backend for running more than one process
// behind the webhook. Session bodies are JSON values with a native TTL; a
// parallel stage key enables the Lua compare-and-set that keeps the
// COMPLETE transition exactly-once across processes.
type RedisStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewRedisStore(rdb *redis.Client, ttl time.Duration) *RedisStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisStore{rdb: rdb, ttl: ttl}
}

func sessKey(key string) string  { return "sess:" + key }
func stageKey(key string) string { return "sess-stage:" + key }

// advanceScript writes the session only when the stored stage still matches
// the expected value. A missing stage key is acceptable only for the very
// first transition (expected stage 0).
var advanceScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[2])
if cur then
  if tonumber(cur) ~= tonumber(ARGV[2]) then
    return 0
  end
elseif tonumber(ARGV[2]) ~= 0 then
  return 0
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[4])
redis.call('SET', KEYS[2], ARGV[3], 'PX', ARGV[4])
return 1
`)

func (r *RedisStore) Get(ctx context.Context, key string) (*Session, error) {
	raw, err := r.rdb.Get(ctx, sessKey(key)).Result()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("session: redis get: %w", err)
	}
	var s Session
	if err := json.Unmarshal([]byte(raw), &s); err != nil {
		return nil, fmt.Errorf("session: decode: %w", err)
	}
	return &s, nil
}

func (r *RedisStore) Put(ctx context.Context, s *Session) error {
	raw, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("session: encode: %w", err)
	}
	pipe := r.rdb.TxPipeline()
	pipe.Set(ctx, sessKey(s.Key), raw, r.ttl)
	pipe.Set(ctx, stageKey(s.Key), strconv.Itoa(int(s.Stage)), r.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("session: redis put: %w", err)
	}
	return nil
}

func (r *RedisStore) Advance(ctx context.Context, s *Session, from Stage) (bool, error) {
	raw, err := json.Marshal(s)
	if err != nil {
		return false, fmt.Errorf("session: encode: %w", err)
	}
	res, err := advanceScript.Run(ctx, r.rdb,
		[]string{sessKey(s.Key), stageKey(s.Key)},
		raw, int(from), int(s.Stage), r.ttl.Milliseconds(),
	).Int()
	if err != nil {
		return false, fmt.Errorf("session: redis advance: %w", err)
	}
	return res == 1, nil
}

func (r *RedisStore) Delete(ctx context.Context, key string) error {
	if err := r.rdb.Del(ctx, sessKey(key), stageKey(key)).Err(); err != nil {
		return fmt.Errorf("session: redis delete: %w", err)
	}
	return nil
}
