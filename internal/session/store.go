// Package session keeps per-user state that is not part of the cart, such as
// the selected coupon code.
package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gofrs/uuid"
	"github.com/redis/go-redis/v9"
)

type Store interface {
	// CouponCode returns the selected code, or "" when none is set.
	CouponCode(ctx context.Context, userID uuid.UUID) (string, error)
	SetCouponCode(ctx context.Context, userID uuid.UUID, code string) error
	ClearCouponCode(ctx context.Context, userID uuid.UUID) error
}

type redisStore struct {
	client redis.Cmdable
	prefix string
	ttl    time.Duration
}

// NewRedisStore keeps entries under prefix for ttl after the last write.
func NewRedisStore(client redis.Cmdable, prefix string, ttl time.Duration) Store {
	return &redisStore{client: client, prefix: prefix, ttl: ttl}
}

func (s *redisStore) key(userID uuid.UUID) string {
	return fmt.Sprintf("%s:session:%s:coupon", s.prefix, userID)
}

func (s *redisStore) CouponCode(ctx context.Context, userID uuid.UUID) (string, error) {
	code, err := s.client.Get(ctx, s.key(userID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("session: failed to read coupon for user %s: %w", userID, err)
	}
	return code, nil
}

func (s *redisStore) SetCouponCode(ctx context.Context, userID uuid.UUID, code string) error {
	if code == "" {
		return s.ClearCouponCode(ctx, userID)
	}
	if err := s.client.Set(ctx, s.key(userID), code, s.ttl).Err(); err != nil {
		return fmt.Errorf("session: failed to store coupon for user %s: %w", userID, err)
	}
	return nil
}

func (s *redisStore) ClearCouponCode(ctx context.Context, userID uuid.UUID) error {
	if err := s.client.Del(ctx, s.key(userID)).Err(); err != nil {
		return fmt.Errorf("session: failed to clear coupon for user %s: %w", userID, err)
	}
	return nil
}

// NewRedisClient connects and pings the server.
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to ping redis at %s: %w", addr, err)
	}
	return client, nil
}
