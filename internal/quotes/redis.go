package quotes

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	binkerr "github.com/tonyfindev/BinkOS-sub002/internal/errors"
)

const defaultRedisPrefix = "binkd:quotes"

// Redis stores quotes as JSON values with a key TTL matching the quote
// expiry, so a shared agent fleet sees the same quotes.
type Redis[T Record] struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

func NewRedis[T Record](client *redis.Client, prefix string, now func() time.Time) *Redis[T] {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	if now == nil {
		now = time.Now
	}
	return &Redis[T]{client: client, prefix: prefix, now: now}
}

func (s *Redis[T]) key(id string) string { return s.prefix + ":" + id }

func (s *Redis[T]) Put(ctx context.Context, rec T) error {
	if rec.Key() == "" {
		return binkerr.New(binkerr.CodeInternal, "quote record has no id")
	}
	ttl := rec.Expiry().Sub(s.now())
	if ttl <= 0 {
		return binkerr.Newf(binkerr.CodeInternal, "quote %s is already expired at store time", rec.Key())
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return binkerr.Wrap(binkerr.CodeInternal, "encode quote record", err)
	}
	if err := s.client.Set(ctx, s.key(rec.Key()), data, ttl).Err(); err != nil {
		return binkerr.Wrap(binkerr.CodeStorageUnavailable, "write quote store", err)
	}
	return nil
}

func (s *Redis[T]) Get(ctx context.Context, id string) (T, bool, error) {
	var zero T
	data, err := s.client.Get(ctx, s.key(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return zero, false, nil
	}
	if err != nil {
		return zero, false, binkerr.Wrap(binkerr.CodeStorageUnavailable, "read quote store", err)
	}
	var rec T
	if err := json.Unmarshal(data, &rec); err != nil {
		return zero, false, binkerr.Wrap(binkerr.CodeStorageUnavailable, "decode quote record", err)
	}
	// The key TTL already bounds lifetime; the expiry check covers clock skew
	// between writers.
	if !s.now().Before(rec.Expiry()) {
		return zero, false, nil
	}
	return rec, true, nil
}

func (s *Redis[T]) Delete(ctx context.Context, id string) error {
	if err := s.client.Del(ctx, s.key(id)).Err(); err != nil {
		return binkerr.Wrap(binkerr.CodeStorageUnavailable, "delete quote record", err)
	}
	return nil
}

// ClearExpired is a no-op: redis expires keys itself.
func (s *Redis[T]) ClearExpired(time.Time) int { return 0 }
