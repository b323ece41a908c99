package jwt

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

const testSecret = "test-secret-key-at-least-32-characters-long"

func TestGenerateAndValidateAccessToken(t *testing.T) {
	manager := NewManager(testSecret, 15*time.Minute, 24*time.Hour)

	userID := uuid.New()
	tokenString, err := manager.GenerateAccessToken(userID, "alice")
	assert.NoError(t, err)
	assert.NotEmpty(t, tokenString)

	claims, err := manager.ValidateToken(tokenString)
	assert.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Equal(t, "alice", claims.Username)
	assert.Equal(t, userID.String(), claims.Subject)
}

func TestValidateToken_WrongSecret(t *testing.T) {
	manager := NewManager(testSecret, 15*time.Minute, 24*time.Hour)
	other := NewManager("another-secret-key-at-least-32-chars!", 15*time.Minute, 24*time.Hour)

	tokenString, err := manager.GenerateAccessToken(uuid.New(), "alice")
	assert.NoError(t, err)

	_, err = other.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateToken_Expired(t *testing.T) {
	manager := NewManager(testSecret, -1*time.Minute, 24*time.Hour)

	tokenString, err := manager.GenerateAccessToken(uuid.New(), "alice")
	assert.NoError(t, err)

	_, err = manager.ValidateToken(tokenString)
	assert.Error(t, err)
}

func TestValidateToken_Garbage(t *testing.T) {
	manager := NewManager(testSecret, 15*time.Minute, 24*time.Hour)

	_, err := manager.ValidateToken("not-a-token")
	assert.Error(t, err)
}

func TestGenerateRefreshToken(t *testing.T) {
	manager := NewManager(testSecret, 15*time.Minute, 24*time.Hour)

	userID := uuid.New()
	tokenString, err := manager.GenerateRefreshToken(userID)
	assert.NoError(t, err)

	claims, err := manager.ValidateToken(tokenString)
	assert.NoError(t, err)
	assert.Equal(t, userID, claims.UserID)
	assert.Empty(t, claims.Username)
}
