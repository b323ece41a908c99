package push

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

type fakeTokenStore struct {
	tokens map[uuid.UUID]string
}

func (f *fakeTokenStore) Get(ctx context.Context, userID uuid.UUID) (string, error) {
	token, ok := f.tokens[userID]
	if !ok {
		return "", errors.New("push token not found")
	}
	return token, nil
}

type failingProvider struct {
	calls int
}

func (p *failingProvider) Send(ctx context.Context, notification *Notification, token string) error {
	p.calls++
	return errors.New("gateway unreachable")
}

func TestNotifyIncomingCall(t *testing.T) {
	userID := uuid.New()
	callID := uuid.New()

	provider := &MockProvider{}
	svc := NewService(provider, &fakeTokenStore{
		tokens: map[uuid.UUID]string{userID: "ExponentPushToken[abc]"},
	}, nil)

	svc.NotifyIncomingCall(context.Background(), userID, callID, "alice", "video")

	sent := provider.Sent()
	assert.Len(t, sent, 1)
	assert.Equal(t, "Incoming Call", sent[0].Title)
	assert.Equal(t, "alice is calling you", sent[0].Body)
	assert.Equal(t, "high", sent[0].Priority)
	assert.Equal(t, callID.String(), sent[0].Data["call_id"])
}

func TestNotifyMissedCall(t *testing.T) {
	userID := uuid.New()

	provider := &MockProvider{}
	svc := NewService(provider, &fakeTokenStore{
		tokens: map[uuid.UUID]string{userID: "ExponentPushToken[abc]"},
	}, nil)

	svc.NotifyMissedCall(context.Background(), userID, uuid.New(), "alice")

	sent := provider.Sent()
	assert.Len(t, sent, 1)
	assert.Equal(t, "You missed a call from alice", sent[0].Body)
}

func TestSend_BestEffort(t *testing.T) {
	t.Run("skips users with no registered token", func(t *testing.T) {
		provider := &MockProvider{}
		svc := NewService(provider, &fakeTokenStore{}, nil)

		svc.NotifyMessage(context.Background(), uuid.New(), uuid.New(), "alice", "hello")

		assert.Empty(t, provider.Sent())
	})

	t.Run("swallows provider failures", func(t *testing.T) {
		userID := uuid.New()
		provider := &failingProvider{}
		svc := NewService(provider, &fakeTokenStore{
			tokens: map[uuid.UUID]string{userID: "tok"},
		}, nil)

		// Must not panic or propagate anything
		svc.NotifyMessage(context.Background(), userID, uuid.New(), "alice", "hello")

		assert.Equal(t, 1, provider.calls)
	})
}
