package auth

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestDenylist(t *testing.T) (*RedisDenylist, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	d := NewRedisDenylist(client, "denylist")
	d.now = func() time.Time { return testEpoch }
	return d, mr
}

func TestRedisDenylist_RevokeUntilExpiry(t *testing.T) {
	d, mr := newTestDenylist(t)
	ctx := context.Background()

	require.NoError(t, d.Revoke(ctx, "jti-1", testEpoch.Add(10*time.Minute)))

	revoked, err := d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.True(t, revoked)
	assert.Equal(t, 10*time.Minute, mr.TTL("denylist:jti-1"))

	mr.FastForward(10 * time.Minute)
	revoked, err = d.IsRevoked(ctx, "jti-1")
	require.NoError(t, err)
	assert.False(t, revoked)
}

func TestRedisDenylist_UnknownAndExpiredTokens(t *testing.T) {
	d, mr := newTestDenylist(t)
	ctx := context.Background()

	revoked, err := d.IsRevoked(ctx, "never-seen")
	require.NoError(t, err)
	assert.False(t, revoked)

	require.NoError(t, d.Revoke(ctx, "old", testEpoch.Add(-time.Second)))
	assert.False(t, mr.Exists("denylist:old"))
}

func TestRedisDenylist_RedisDown(t *testing.T) {
	d, mr := newTestDenylist(t)
	mr.Close()

	_, err := d.IsRevoked(context.Background(), "jti")
	assert.Error(t, err)
}
