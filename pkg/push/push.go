package push

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"callbridge-backend/pkg/logger"
	"callbridge-backend/pkg/metrics"
)

// Provider defines the interface for delivering a push notification to a device token
type Provider interface {
	Send(ctx context.Context, notification *Notification, token string) error
}

// Notification represents a push notification
type Notification struct {
	Title    string            `json:"title"`
	Body     string            `json:"body"`
	Data     map[string]string `json:"data,omitempty"`
	Priority string            `json:"priority,omitempty"` // high, normal
	Sound    string            `json:"sound,omitempty"`
	Category string            `json:"category,omitempty"`
}

// TokenStore defines the interface for resolving a user's device token.
// Each user has at most one registered token.
type TokenStore interface {
	Get(ctx context.Context, userID uuid.UUID) (string, error)
}

// Service handles push notification delivery. All sends are best-effort:
// failures are logged and counted, never returned to callers.
type Service struct {
	provider Provider
	tokens   TokenStore
	metrics  *metrics.Metrics
}

// NewService creates a new push notification service
func NewService(provider Provider, tokens TokenStore, m *metrics.Metrics) *Service {
	return &Service{
		provider: provider,
		tokens:   tokens,
		metrics:  m,
	}
}

// NotifyIncomingCall notifies the receiver of an incoming call
func (s *Service) NotifyIncomingCall(ctx context.Context, receiverID uuid.UUID, callID uuid.UUID, callerName, callType string) {
	s.send(ctx, "incoming_call", receiverID, &Notification{
		Title:    "Incoming Call",
		Body:     fmt.Sprintf("%s is calling you", callerName),
		Priority: "high",
		Sound:    "default",
		Category: "INCOMING_CALL",
		Data: map[string]string{
			"type":      "call",
			"call_id":   callID.String(),
			"caller":    callerName,
			"call_type": callType,
		},
	})
}

// NotifyMissedCall notifies the receiver that a call rang out
func (s *Service) NotifyMissedCall(ctx context.Context, receiverID uuid.UUID, callID uuid.UUID, callerName string) {
	s.send(ctx, "missed_call", receiverID, &Notification{
		Title:    "Missed Call",
		Body:     fmt.Sprintf("You missed a call from %s", callerName),
		Priority: "normal",
		Sound:    "default",
		Data: map[string]string{
			"type":    "missed_call",
			"call_id": callID.String(),
			"caller":  callerName,
		},
	})
}

// NotifyMessage notifies the receiver of a new chat message
func (s *Service) NotifyMessage(ctx context.Context, receiverID uuid.UUID, messageID uuid.UUID, senderName, preview string) {
	s.send(ctx, "chat_message", receiverID, &Notification{
		Title:    senderName,
		Body:     preview,
		Priority: "high",
		Sound:    "default",
		Data: map[string]string{
			"type":       "message",
			"message_id": messageID.String(),
			"sender":     senderName,
		},
	})
}

func (s *Service) send(ctx context.Context, kind string, userID uuid.UUID, notification *Notification) {
	if s == nil || s.provider == nil {
		return
	}
	s.metrics.RecordPushAttempt(kind)

	token, err := s.tokens.Get(ctx, userID)
	if err != nil {
		logger.Debug("No push token registered for user",
			zap.String("user_id", userID.String()),
			zap.String("kind", kind))
		return
	}

	if err := s.provider.Send(ctx, notification, token); err != nil {
		s.metrics.RecordPushFailure(kind)
		logger.Warn("Failed to send push notification",
			zap.String("user_id", userID.String()),
			zap.String("kind", kind),
			zap.Error(err))
		return
	}

	logger.Debug("Push notification sent",
		zap.String("user_id", userID.String()),
		zap.String("kind", kind))
}

// MockProvider is a mock implementation for development and testing
type MockProvider struct {
	mu   sync.Mutex
	sent []*Notification
}

// Send implements Provider interface
func (m *MockProvider) Send(ctx context.Context, notification *Notification, token string) error {
	m.mu.Lock()
	m.sent = append(m.sent, notification)
	m.mu.Unlock()

	logger.Debug("MockProvider: sending notification",
		zap.String("title", notification.Title),
		zap.String("body", notification.Body))
	return nil
}

// Sent returns the notifications delivered so far
func (m *MockProvider) Sent() []*Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]*Notification, len(m.sent))
	copy(out, m.sent)
	return out
}
