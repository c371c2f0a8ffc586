// Package redisstore backs idempotency-key replay with Redis so retries can be
// deduplicated across instances. Keys expire after a configurable TTL.
package redisstore

import (
	"context"
	"errors"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

// DefaultTTL bounds how long a stored recipe result stays replayable.
const DefaultTTL = 24 * time.Hour

// Store implements the orchestrator's IdemStore on a Redis client.
type Store struct {
	client redis.UniversalClient
	ttl    time.Duration
}

// New wraps an existing client. A non-positive ttl falls back to DefaultTTL.
func New(client redis.UniversalClient, ttl time.Duration) *Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Store{client: client, ttl: ttl}
}

// Open dials a standalone Redis at addr and verifies connectivity.
func Open(ctx context.Context, addr string, ttl time.Duration) (*Store, error) {
	client := redis.NewClient(&redis.Options{Addr: addr})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, err
	}
	return New(client, ttl), nil
}

// Close releases the client if this store owns one.
func (s *Store) Close() error {
	if c, ok := s.client.(*redis.Client); ok {
		return c.Close()
	}
	return nil
}

func idemKey(orgID uuid.UUID, key string) string {
	return "idem:" + orgID.String() + ":" + key
}

// ResolveIdempotencyKey returns the stored payload for the key, if present.
func (s *Store) ResolveIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string) ([]byte, bool, error) {
	payload, err := s.client.Get(ctx, idemKey(orgID, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return payload, true, nil
}

// SaveIdempotencyKey stores the payload unless the key already exists. First
// write wins, matching the replay contract.
func (s *Store) SaveIdempotencyKey(ctx context.Context, orgID uuid.UUID, key string, payload []byte) error {
	return s.client.SetNX(ctx, idemKey(orgID, key), payload, s.ttl).Err()
}
