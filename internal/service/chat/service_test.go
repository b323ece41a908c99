package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"callbridge-backend/internal/domain"
	"callbridge-backend/internal/event"
	apperrors "callbridge-backend/pkg/errors"
)

// Mocks

type MockMessageRepository struct {
	mock.Mock
}

func (m *MockMessageRepository) Save(ctx context.Context, message *domain.Message) error {
	args := m.Called(ctx, message)
	return args.Error(0)
}

func (m *MockMessageRepository) MarkRead(ctx context.Context, messageID uuid.UUID) (uuid.UUID, bool, error) {
	args := m.Called(ctx, messageID)
	return args.Get(0).(uuid.UUID), args.Bool(1), args.Error(2)
}

func (m *MockMessageRepository) GetConversation(ctx context.Context, a, b uuid.UUID, limit int) ([]*domain.Message, error) {
	args := m.Called(ctx, a, b, limit)
	return args.Get(0).([]*domain.Message), args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) ToUser(ctx context.Context, userID uuid.UUID, eventName string, payload any) {
	m.Called(ctx, userID, eventName, payload)
}

type MockPushSender struct {
	mock.Mock
}

func (m *MockPushSender) NotifyMessage(ctx context.Context, receiverID uuid.UUID, messageID uuid.UUID, senderName, preview string) {
	m.Called(ctx, receiverID, messageID, senderName, preview)
}

func newTestService() (*Service, *MockMessageRepository, *MockNotifier, *MockPushSender) {
	repo := new(MockMessageRepository)
	notifier := new(MockNotifier)
	push := new(MockPushSender)
	svc := NewService(repo, notifier, push, nil)
	svc.retryDelay = time.Millisecond // keep retry tests fast
	return svc, repo, notifier, push
}

func TestSend(t *testing.T) {
	senderID := uuid.New()
	receiverID := uuid.New()

	t.Run("persists then notifies receiver, sender, and push", func(t *testing.T) {
		svc, repo, notifier, push := newTestService()
		ctx := context.Background()

		repo.On("Save", ctx, mock.AnythingOfType("*domain.Message")).Return(nil)
		notifier.On("ToUser", ctx, receiverID, event.ChatMessage, mock.AnythingOfType("*domain.Message")).Return()
		notifier.On("ToUser", ctx, senderID, event.ChatDelivered, mock.AnythingOfType("*event.ChatDeliveredEvent")).Return()
		push.On("NotifyMessage", ctx, receiverID, mock.AnythingOfType("uuid.UUID"), "alice", "hello").Return()

		message, err := svc.Send(ctx, senderID, &SendInput{
			ReceiverID: receiverID,
			SenderName: "alice",
			Content:    "hello",
		})

		require.NoError(t, err)
		assert.Equal(t, "hello", message.Content)
		assert.True(t, message.Delivered)
		assert.False(t, message.Read)

		repo.AssertExpectations(t)
		notifier.AssertExpectations(t)
		push.AssertExpectations(t)
	})

	t.Run("retries failed saves and succeeds on a later attempt", func(t *testing.T) {
		svc, repo, notifier, push := newTestService()
		ctx := context.Background()

		repo.On("Save", ctx, mock.AnythingOfType("*domain.Message")).Return(errors.New("timeout")).Twice()
		repo.On("Save", ctx, mock.AnythingOfType("*domain.Message")).Return(nil).Once()
		notifier.On("ToUser", ctx, receiverID, event.ChatMessage, mock.Anything).Return()
		notifier.On("ToUser", ctx, senderID, event.ChatDelivered, mock.Anything).Return()
		push.On("NotifyMessage", ctx, receiverID, mock.Anything, "alice", "hello").Return()

		_, err := svc.Send(ctx, senderID, &SendInput{
			ReceiverID: receiverID,
			SenderName: "alice",
			Content:    "hello",
		})

		assert.NoError(t, err)
		repo.AssertNumberOfCalls(t, "Save", 3)
	})

	t.Run("drops the message silently after all attempts fail", func(t *testing.T) {
		svc, repo, notifier, push := newTestService()
		ctx := context.Background()

		repo.On("Save", ctx, mock.AnythingOfType("*domain.Message")).Return(errors.New("cluster down"))

		message, err := svc.Send(ctx, senderID, &SendInput{
			ReceiverID: receiverID,
			SenderName: "alice",
			Content:    "hello",
		})

		assert.Nil(t, message)
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodePersistence))
		repo.AssertNumberOfCalls(t, "Save", 3)

		// No notification of any kind for a message that was not stored
		notifier.AssertNotCalled(t, "ToUser", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		push.AssertNotCalled(t, "NotifyMessage", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything)
	})

	t.Run("rejects invalid input", func(t *testing.T) {
		svc, repo, _, _ := newTestService()
		ctx := context.Background()

		_, err := svc.Send(ctx, senderID, &SendInput{Content: "hi"})
		assert.Error(t, err)

		_, err = svc.Send(ctx, senderID, &SendInput{ReceiverID: senderID, Content: "hi"})
		assert.Error(t, err)

		_, err = svc.Send(ctx, senderID, &SendInput{ReceiverID: receiverID})
		assert.Error(t, err)

		_, err = svc.Send(ctx, senderID, &SendInput{ReceiverID: receiverID, Content: "   \t\n"})
		assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeMissingField))

		repo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
	})
}

func TestTypingRelay(t *testing.T) {
	svc, _, notifier, _ := newTestService()
	ctx := context.Background()
	senderID := uuid.New()
	receiverID := uuid.New()

	notifier.On("ToUser", ctx, receiverID, event.ChatTyping, mock.AnythingOfType("*event.TypingEvent")).Return()
	notifier.On("ToUser", ctx, receiverID, event.ChatStopTyping, mock.AnythingOfType("*event.TypingEvent")).Return()

	assert.NoError(t, svc.StartTyping(ctx, senderID, receiverID))
	assert.NoError(t, svc.StopTyping(ctx, senderID, receiverID))

	notifier.AssertExpectations(t)
}

func TestMarkRead(t *testing.T) {
	readerID := uuid.New()
	senderID := uuid.New()
	messageID := uuid.New()

	t.Run("acks the reader and notifies the original sender", func(t *testing.T) {
		svc, repo, notifier, _ := newTestService()
		ctx := context.Background()

		repo.On("MarkRead", ctx, messageID).Return(senderID, true, nil)
		notifier.On("ToUser", ctx, readerID, event.MessageRead, mock.AnythingOfType("*event.MessageReadEvent")).Return()
		notifier.On("ToUser", ctx, senderID, event.MessageRead, mock.AnythingOfType("*event.MessageReadEvent")).Return()

		assert.NoError(t, svc.MarkRead(ctx, readerID, messageID))
		notifier.AssertExpectations(t)
	})

	t.Run("still acks the reader when the message is unknown", func(t *testing.T) {
		svc, repo, notifier, _ := newTestService()
		ctx := context.Background()

		repo.On("MarkRead", ctx, messageID).Return(uuid.Nil, false, nil)
		notifier.On("ToUser", ctx, readerID, event.MessageRead, mock.AnythingOfType("*event.MessageReadEvent")).Return()

		assert.NoError(t, svc.MarkRead(ctx, readerID, messageID))
		notifier.AssertNumberOfCalls(t, "ToUser", 1)
	})

	t.Run("does not notify the sender twice when reading own message", func(t *testing.T) {
		svc, repo, notifier, _ := newTestService()
		ctx := context.Background()

		repo.On("MarkRead", ctx, messageID).Return(readerID, true, nil)
		notifier.On("ToUser", ctx, readerID, event.MessageRead, mock.AnythingOfType("*event.MessageReadEvent")).Return()

		assert.NoError(t, svc.MarkRead(ctx, readerID, messageID))
		notifier.AssertNumberOfCalls(t, "ToUser", 1)
	})
}

func TestHistory(t *testing.T) {
	svc, repo, _, _ := newTestService()
	ctx := context.Background()
	userID := uuid.New()
	peerID := uuid.New()

	messages := []*domain.Message{
		{MessageID: uuid.New(), SenderID: peerID, ReceiverID: userID, Content: "hi", CreatedAt: time.Now()},
	}

	repo.On("GetConversation", ctx, userID, peerID, 20).Return(messages, nil)

	out, err := svc.History(ctx, userID, peerID, 0)
	require.NoError(t, err)
	assert.Len(t, out, 1)

	_, err = svc.History(ctx, userID, uuid.Nil, 10)
	assert.Error(t, err)
}
