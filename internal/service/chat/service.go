// Package chat implements message persistence with retry, typing
// relay, and read receipts.
package chat

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"callbridge-backend/internal/domain"
	"callbridge-backend/internal/event"
	"callbridge-backend/pkg/constants"
	apperrors "callbridge-backend/pkg/errors"
	"callbridge-backend/pkg/logger"
	"callbridge-backend/pkg/metrics"
)

// MessageRepository defines message storage operations used by the service
type MessageRepository interface {
	Save(ctx context.Context, message *domain.Message) error
	MarkRead(ctx context.Context, messageID uuid.UUID) (senderID uuid.UUID, found bool, err error)
	GetConversation(ctx context.Context, a, b uuid.UUID, limit int) ([]*domain.Message, error)
}

// Notifier delivers real-time events to a user's active connections
type Notifier interface {
	ToUser(ctx context.Context, userID uuid.UUID, eventName string, payload any)
}

// PushSender delivers best-effort push notifications
type PushSender interface {
	NotifyMessage(ctx context.Context, receiverID uuid.UUID, messageID uuid.UUID, senderName, preview string)
}

// Service handles chat business logic
type Service struct {
	repo     MessageRepository
	notifier Notifier
	push     PushSender
	metrics  *metrics.Metrics

	saveAttempts int
	retryDelay   time.Duration
}

// NewService creates a new chat service
func NewService(repo MessageRepository, notifier Notifier, push PushSender, m *metrics.Metrics) *Service {
	return &Service{
		repo:         repo,
		notifier:     notifier,
		push:         push,
		metrics:      m,
		saveAttempts: constants.ChatSaveAttempts,
		retryDelay:   constants.ChatRetryBaseDelay,
	}
}

// SendInput contains the parameters of an outgoing message
type SendInput struct {
	ReceiverID uuid.UUID
	SenderName string
	Content    string
}

// Send persists a message and fans out notifications. Persistence is
// retried with linear backoff; if every attempt fails the message is
// dropped and nobody is notified, so clients never see a message that
// was not stored.
func (s *Service) Send(ctx context.Context, senderID uuid.UUID, input *SendInput) (*domain.Message, error) {
	if input.ReceiverID == uuid.Nil {
		return nil, apperrors.MissingFieldError("to")
	}
	if input.ReceiverID == senderID {
		return nil, apperrors.ValidationError("Cannot message yourself")
	}
	if strings.TrimSpace(input.Content) == "" {
		return nil, apperrors.MissingFieldError("content")
	}

	message := &domain.Message{
		MessageID:  uuid.New(),
		SenderID:   senderID,
		ReceiverID: input.ReceiverID,
		Content:    input.Content,
		Delivered:  true,
		CreatedAt:  time.Now().UTC(),
	}

	if err := s.saveWithRetry(ctx, message); err != nil {
		s.metrics.RecordMessageSaveFailed()
		logger.Error("Message dropped after exhausting save attempts",
			zap.String("message_id", message.MessageID.String()),
			zap.String("sender_id", senderID.String()),
			zap.Error(err))
		return nil, apperrors.PersistenceError("Failed to save message", err)
	}

	s.metrics.RecordMessagePersisted()

	s.notifier.ToUser(ctx, input.ReceiverID, event.ChatMessage, message)
	s.notifier.ToUser(ctx, senderID, event.ChatDelivered, &event.ChatDeliveredEvent{
		MessageID: message.MessageID,
	})
	s.push.NotifyMessage(ctx, input.ReceiverID, message.MessageID, input.SenderName, preview(input.Content))

	return message, nil
}

// saveWithRetry attempts the save up to saveAttempts times, waiting
// attempt*retryDelay between failures
func (s *Service) saveWithRetry(ctx context.Context, message *domain.Message) error {
	var lastErr error
	for attempt := 1; attempt <= s.saveAttempts; attempt++ {
		lastErr = s.repo.Save(ctx, message)
		if lastErr == nil {
			return nil
		}

		logger.Warn("Message save attempt failed",
			zap.String("message_id", message.MessageID.String()),
			zap.Int("attempt", attempt),
			zap.Error(lastErr))

		if attempt == s.saveAttempts {
			break
		}
		s.metrics.RecordMessageSaveRetry()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(attempt) * s.retryDelay):
		}
	}
	return lastErr
}

// StartTyping relays a typing indicator to the conversation peer
func (s *Service) StartTyping(ctx context.Context, senderID, receiverID uuid.UUID) error {
	if receiverID == uuid.Nil {
		return apperrors.MissingFieldError("to")
	}
	s.notifier.ToUser(ctx, receiverID, event.ChatTyping, &event.TypingEvent{From: senderID})
	return nil
}

// StopTyping relays a typing-stopped indicator to the conversation peer
func (s *Service) StopTyping(ctx context.Context, senderID, receiverID uuid.UUID) error {
	if receiverID == uuid.Nil {
		return apperrors.MissingFieldError("to")
	}
	s.notifier.ToUser(ctx, receiverID, event.ChatStopTyping, &event.TypingEvent{From: senderID})
	return nil
}

// MarkRead flags a message as read. The reader always gets the receipt
// echoed back as an ack; when the message is found and was sent by
// someone else, its original sender is notified too.
func (s *Service) MarkRead(ctx context.Context, readerID, messageID uuid.UUID) error {
	if messageID == uuid.Nil {
		return apperrors.MissingFieldError("message_id")
	}

	senderID, found, err := s.repo.MarkRead(ctx, messageID)
	if err != nil {
		return apperrors.PersistenceError("Failed to mark message read", err)
	}

	receipt := &event.MessageReadEvent{MessageID: messageID, ReadBy: readerID}
	s.notifier.ToUser(ctx, readerID, event.MessageRead, receipt)

	if found && senderID != readerID {
		s.notifier.ToUser(ctx, senderID, event.MessageRead, receipt)
	}

	return nil
}

// History returns the most recent messages between two users, newest first
func (s *Service) History(ctx context.Context, userID, peerID uuid.UUID, limit int) ([]*domain.Message, error) {
	if peerID == uuid.Nil {
		return nil, apperrors.MissingFieldError("peer")
	}
	if limit <= 0 || limit > constants.MaxPageSize {
		limit = constants.DefaultPageSize
	}
	return s.repo.GetConversation(ctx, userID, peerID, limit)
}

// preview truncates message content for push notification bodies
func preview(content string) string {
	const max = 80
	runes := []rune(content)
	if len(runes) <= max {
		return content
	}
	return string(runes[:max]) + "…"
}
