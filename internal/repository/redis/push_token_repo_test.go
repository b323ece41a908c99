package redis

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPushTokenUpsertAndGet(t *testing.T) {
	client, _ := newTestClient(t)
	repo := NewPushTokenRepository(client)
	ctx := context.Background()
	userID := uuid.New()

	_, err := repo.Get(ctx, userID)
	assert.ErrorIs(t, err, ErrTokenNotFound)

	require.NoError(t, repo.Upsert(ctx, userID, "ExponentPushToken[abc]"))

	token, err := repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "ExponentPushToken[abc]", token)

	// New registration replaces the old token
	require.NoError(t, repo.Upsert(ctx, userID, "ExponentPushToken[def]"))

	token, err = repo.Get(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, "ExponentPushToken[def]", token)
}

func TestPushTokenDelete(t *testing.T) {
	client, _ := newTestClient(t)
	repo := NewPushTokenRepository(client)
	ctx := context.Background()
	userID := uuid.New()

	require.NoError(t, repo.Upsert(ctx, userID, "tok"))
	require.NoError(t, repo.Delete(ctx, userID))

	_, err := repo.Get(ctx, userID)
	assert.ErrorIs(t, err, ErrTokenNotFound)
}
