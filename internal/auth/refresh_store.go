package auth

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// ErrRefreshTokenRevoked means the refresh jti is unknown, expired or revoked.
var ErrRefreshTokenRevoked = errors.New("refresh token revoked")

// RefreshStore remembers which refresh tokens are still redeemable.
type RefreshStore interface {
	Save(ctx context.Context, jti, userID string, ttl time.Duration) error
	// Lookup returns the owning user id or ErrRefreshTokenRevoked.
	Lookup(ctx context.Context, jti string) (string, error)
	Revoke(ctx context.Context, jti string) error
}

const refreshKeyPrefix = "helpdesk:refresh:"

type redisRefreshStore struct {
	client *redis.Client
}

// NewRedisRefreshStore stores refresh jtis as keys with the token lifetime as TTL.
func NewRedisRefreshStore(client *redis.Client) RefreshStore {
	return &redisRefreshStore{client: client}
}

func (s *redisRefreshStore) Save(ctx context.Context, jti, userID string, ttl time.Duration) error {
	return s.client.Set(ctx, refreshKeyPrefix+jti, userID, ttl).Err()
}

func (s *redisRefreshStore) Lookup(ctx context.Context, jti string) (string, error) {
	userID, err := s.client.Get(ctx, refreshKeyPrefix+jti).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrRefreshTokenRevoked
	}
	return userID, err
}

func (s *redisRefreshStore) Revoke(ctx context.Context, jti string) error {
	return s.client.Del(ctx, refreshKeyPrefix+jti).Err()
}
