package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records revoked token ids until the tokens would have expired anyway
type Denylist interface {
	Revoke(ctx context.Context, tokenID string, until time.Time) error
	IsRevoked(ctx context.Context, tokenID string) (bool, error)
}

const revokedKeyPrefix = "revoked:"

type RedisDenylist struct {
	client *redis.Client
	now    func() time.Time
}

func NewRedisDenylist(client *redis.Client) *RedisDenylist {
	return &RedisDenylist{client: client, now: time.Now}
}

// NewRedisClient connects to addr and pings it once
func NewRedisClient(ctx context.Context, addr, password string, db int) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", addr, err)
	}
	return client, nil
}

func (d *RedisDenylist) Revoke(ctx context.Context, tokenID string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		// already expired, verification rejects it without our help
		return nil
	}
	if err := d.client.Set(ctx, revokedKeyPrefix+tokenID, 1, ttl).Err(); err != nil {
		return fmt.Errorf("failed to revoke token: %w", err)
	}
	return nil
}

func (d *RedisDenylist) IsRevoked(ctx context.Context, tokenID string) (bool, error) {
	n, err := d.client.Exists(ctx, revokedKeyPrefix+tokenID).Result()
	if err != nil {
		return false, fmt.Errorf("failed to check token revocation: %w", err)
	}
	return n > 0, nil
}
