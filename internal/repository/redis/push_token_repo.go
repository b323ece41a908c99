package redis

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

// ErrTokenNotFound is returned when a user has no registered push token
var ErrTokenNotFound = errors.New("push token not found")

// PushTokenRepository stores each user's device push token in Redis.
// A user has at most one token; registering a new one replaces the old.
type PushTokenRepository struct {
	client *redis.Client
}

// NewPushTokenRepository creates a new push token repository
func NewPushTokenRepository(client *redis.Client) *PushTokenRepository {
	return &PushTokenRepository{client: client}
}

func tokenKey(userID uuid.UUID) string {
	return fmt.Sprintf("push:token:%s", userID)
}

// Upsert stores or replaces the push token of a user
func (r *PushTokenRepository) Upsert(ctx context.Context, userID uuid.UUID, token string) error {
	if err := r.client.Set(ctx, tokenKey(userID), token, 0).Err(); err != nil {
		return fmt.Errorf("failed to store push token: %w", err)
	}
	return nil
}

// Get retrieves the push token of a user
func (r *PushTokenRepository) Get(ctx context.Context, userID uuid.UUID) (string, error) {
	token, err := r.client.Get(ctx, tokenKey(userID)).Result()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return "", ErrTokenNotFound
		}
		return "", fmt.Errorf("failed to get push token: %w", err)
	}
	return token, nil
}

// Delete removes the push token of a user
func (r *PushTokenRepository) Delete(ctx context.Context, userID uuid.UUID) error {
	if err := r.client.Del(ctx, tokenKey(userID)).Err(); err != nil {
		return fmt.Errorf("failed to delete push token: %w", err)
	}
	return nil
}
