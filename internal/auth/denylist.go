package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Denylist records revoked access token ids until they would have expired.
type Denylist interface {
	Revoke(ctx context.Context, jti string, until time.Time) error
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// RedisDenylist stores revoked jtis as keys that expire with the token.
type RedisDenylist struct {
	client *redis.Client
	prefix string
	now    func() time.Time
}

// NewRedisDenylist returns a denylist keyed under prefix.
func NewRedisDenylist(client *redis.Client, prefix string) *RedisDenylist {
	return &RedisDenylist{client: client, prefix: prefix, now: time.Now}
}

func (d *RedisDenylist) key(jti string) string {
	return d.prefix + ":" + jti
}

// Revoke denylists jti until the given time. Tokens already past until are
// ignored since the verifier rejects them anyway.
func (d *RedisDenylist) Revoke(ctx context.Context, jti string, until time.Time) error {
	ttl := until.Sub(d.now())
	if ttl <= 0 {
		return nil
	}
	if err := d.client.Set(ctx, d.key(jti), "1", ttl).Err(); err != nil {
		return fmt.Errorf("denylist token: %w", err)
	}
	return nil
}

// IsRevoked reports whether jti has been denylisted.
func (d *RedisDenylist) IsRevoked(ctx context.Context, jti string) (bool, error) {
	err := d.client.Get(ctx, d.key(jti)).Err()
	switch {
	case errors.Is(err, redis.Nil):
		return false, nil
	case err != nil:
		return false, fmt.Errorf("check denylist: %w", err)
	}
	return true, nil
}
