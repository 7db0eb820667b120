package redisrepo

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// StoredResponse is what a completed request left behind for replays.
type StoredResponse struct {
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

// Claim is the outcome of Begin. Exactly one of the three holds: the caller
// owns the key, another request owns it, or Replay is the earlier response.
type Claim struct {
	Owned      bool
	InProgress bool
	Replay     *StoredResponse
}

const idemPending = "pending"

// Either claims an unused key or returns what is stored under it.
var beginScript = redis.NewScript(`
local cur = redis.call('GET', KEYS[1])
if cur then
  return cur
end
redis.call('SET', KEYS[1], ARGV[1], 'PX', ARGV[2])
return false
`)

// IdempotencyStore backs the Idempotency-Key header. A key is pending while
// its first request runs and then holds that request's response for ttl.
type IdempotencyStore struct {
	rdb *redis.Client
	ttl time.Duration
}

func NewIdempotencyStore(rdb *redis.Client, ttl time.Duration) *IdempotencyStore {
	return &IdempotencyStore{rdb: rdb, ttl: ttl}
}

func (s *IdempotencyStore) Begin(ctx context.Context, key string, lockTTL time.Duration) (Claim, error) {
	const op = "redisrepo.IdempotencyStore.Begin"

	v, err := beginScript.Run(ctx, s.rdb, []string{key}, idemPending, lockTTL.Milliseconds()).Text()
	if errors.Is(err, redis.Nil) {
		return Claim{Owned: true}, nil
	}
	if err != nil {
		return Claim{}, fmt.Errorf("%s: %w", op, err)
	}
	if v == idemPending {
		return Claim{InProgress: true}, nil
	}

	var resp StoredResponse
	if err := json.Unmarshal([]byte(v), &resp); err != nil {
		return Claim{}, fmt.Errorf("%s: decode stored response: %w", op, err)
	}
	return Claim{Replay: &resp}, nil
}

// Complete replaces the pending marker with the response.
func (s *IdempotencyStore) Complete(ctx context.Context, key string, status int, body []byte) error {
	const op = "redisrepo.IdempotencyStore.Complete"

	b, err := json.Marshal(StoredResponse{Status: status, Body: body})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err := s.rdb.Set(ctx, key, b, s.ttl).Err(); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	return nil
}

// Abort frees the key so the client can retry after a failed request.
func (s *IdempotencyStore) Abort(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redisrepo.IdempotencyStore.Abort: %w", err)
	}
	return nil
}
