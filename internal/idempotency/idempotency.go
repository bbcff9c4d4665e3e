// Package idempotency remembers which Idempotency-Key produced which order so
// a retried POST /orders does not place the order twice.
package idempotency

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	keyOrderCreate = "idem:order:create:%s"
	pendingMarker  = "pending"
)

var (
	// ErrInFlight means another request holding the same key has not finished.
	ErrInFlight = errors.New("idempotency: request with this key is still in progress")
	// ErrKeyReused means the key was first used with a different request body.
	ErrKeyReused = errors.New("idempotency: key was used with a different request")
)

type Store interface {
	// Begin claims key for a request whose body hashes to fingerprint. It
	// returns 0 when the caller now owns the key, or the id of the order an
	// earlier request with the same key and body created.
	Begin(ctx context.Context, key, fingerprint string) (int64, error)
	Complete(ctx context.Context, key, fingerprint string, orderID int64) error
	Release(ctx context.Context, key string) error
}

// RedisStore keeps one value per key: "pending:<fingerprint>" while the
// order is being placed, "<order id>:<fingerprint>" afterwards. A pending
// claim only lives for lease, so a request that died between commit and
// Complete does not block its key for the full ttl.
type RedisStore struct {
	rdb   *redis.Client
	lease time.Duration
	ttl   time.Duration
}

func NewRedisStore(ctx context.Context, url string, lease, ttl time.Duration) (*RedisStore, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	if lease <= 0 || lease > ttl {
		lease = ttl
	}

	rdb := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()

	if err := rdb.Ping(pingCtx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}

	return &RedisStore{rdb: rdb, lease: lease, ttl: ttl}, nil
}

func (s *RedisStore) Begin(ctx context.Context, key, fingerprint string) (int64, error) {
	k := fmt.Sprintf(keyOrderCreate, key)

	// Two rounds cover a completed key expiring between SETNX and GET.
	for i := 0; i < 2; i++ {
		claimed, err := s.rdb.SetNX(ctx, k, pendingMarker+":"+fingerprint, s.lease).Result()
		if err != nil {
			return 0, fmt.Errorf("claim idempotency key: %w", err)
		}
		if claimed {
			return 0, nil
		}

		val, err := s.rdb.Get(ctx, k).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			return 0, fmt.Errorf("read idempotency key: %w", err)
		}

		state, stored, _ := strings.Cut(val, ":")
		if stored != fingerprint {
			return 0, ErrKeyReused
		}
		if state == pendingMarker {
			return 0, ErrInFlight
		}

		orderID, err := strconv.ParseInt(state, 10, 64)
		if err != nil {
			return 0, fmt.Errorf("corrupt idempotency value %q: %w", val, err)
		}
		return orderID, nil
	}

	return 0, ErrInFlight
}

// Complete records orderID under key and extends it to the full ttl.
func (s *RedisStore) Complete(ctx context.Context, key, fingerprint string, orderID int64) error {
	k := fmt.Sprintf(keyOrderCreate, key)
	val := strconv.FormatInt(orderID, 10) + ":" + fingerprint
	if err := s.rdb.Set(ctx, k, val, s.ttl).Err(); err != nil {
		return fmt.Errorf("complete idempotency key: %w", err)
	}
	return nil
}

func (s *RedisStore) Release(ctx context.Context, key string) error {
	if err := s.rdb.Del(ctx, fmt.Sprintf(keyOrderCreate, key)).Err(); err != nil {
		return fmt.Errorf("release idempotency key: %w", err)
	}
	return nil
}

func (s *RedisStore) Ping(ctx context.Context) error {
	return s.rdb.Ping(ctx).Err()
}

func (s *RedisStore) Close() error {
	return s.rdb.Close()
}
