package redis

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callbridge-backend/pkg/constants"
)

func newTestClient(t *testing.T) (*redis.Client, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })
	return client, mr
}

func TestPresenceLifecycle(t *testing.T) {
	client, _ := newTestClient(t)
	repo := NewPresenceRepository(client)
	ctx := context.Background()
	userID := uuid.New()

	online, err := repo.IsUserOnline(ctx, userID)
	require.NoError(t, err)
	assert.False(t, online)

	require.NoError(t, repo.SetUserOnline(ctx, userID))

	online, err = repo.IsUserOnline(ctx, userID)
	require.NoError(t, err)
	assert.True(t, online)

	users, err := repo.GetOnlineUsers(ctx)
	require.NoError(t, err)
	assert.Contains(t, users, userID)

	count, err := repo.GetOnlineCount(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	require.NoError(t, repo.SetUserOffline(ctx, userID))

	online, err = repo.IsUserOnline(ctx, userID)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestPresenceExpiresWithoutHeartbeat(t *testing.T) {
	client, mr := newTestClient(t)
	repo := NewPresenceRepository(client)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.SetUserOnline(ctx, userID))

	mr.FastForward(constants.PresenceTTL + 1)

	online, err := repo.IsUserOnline(ctx, userID)
	require.NoError(t, err)
	assert.False(t, online)
}

func TestRefreshPresenceExtendsTTL(t *testing.T) {
	client, mr := newTestClient(t)
	repo := NewPresenceRepository(client)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.SetUserOnline(ctx, userID))

	mr.FastForward(constants.PresenceTTL / 2)
	require.NoError(t, repo.RefreshPresence(ctx, userID))
	mr.FastForward(constants.PresenceTTL / 2)

	online, err := repo.IsUserOnline(ctx, userID)
	require.NoError(t, err)
	assert.True(t, online)
}
