package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"callbridge-backend/internal/domain"
	"callbridge-backend/internal/event"
	"callbridge-backend/internal/service/call"
	"callbridge-backend/internal/service/chat"
	"callbridge-backend/pkg/constants"
	apperrors "callbridge-backend/pkg/errors"
	"callbridge-backend/pkg/logger"
	"callbridge-backend/pkg/metrics"
)

// CallService defines the signaling operations the router dispatches to
type CallService interface {
	Request(ctx context.Context, callerID uuid.UUID, input *call.RequestInput) (*domain.Call, error)
	Accept(ctx context.Context, userID, callID uuid.UUID, answer map[string]any) error
	Reject(ctx context.Context, userID, callID uuid.UUID) error
	End(ctx context.Context, userID, callID uuid.UUID, endedAt time.Time, dataUsage int64) error
	RelayICE(ctx context.Context, fromID, toID uuid.UUID, candidate map[string]any) error
}

// ChatService defines the messaging operations the router dispatches to
type ChatService interface {
	Send(ctx context.Context, senderID uuid.UUID, input *chat.SendInput) (*domain.Message, error)
	StartTyping(ctx context.Context, senderID, receiverID uuid.UUID) error
	StopTyping(ctx context.Context, senderID, receiverID uuid.UUID) error
	MarkRead(ctx context.Context, readerID, messageID uuid.UUID) error
}

// PresenceStore tracks which users are connected
type PresenceStore interface {
	SetUserOnline(ctx context.Context, userID uuid.UUID) error
	SetUserOffline(ctx context.Context, userID uuid.UUID) error
	RefreshPresence(ctx context.Context, userID uuid.UUID) error
}

// Router owns the WebSocket endpoint: it upgrades connections, tracks
// presence, and dispatches inbound envelopes to the services.
type Router struct {
	hub      *Hub
	calls    CallService
	chats    ChatService
	presence PresenceStore
	metrics  *metrics.Metrics
}

// NewRouter creates a new router and hooks it into the hub's
// disconnect path
func NewRouter(hub *Hub, calls CallService, chats ChatService, presence PresenceStore, m *metrics.Metrics) *Router {
	r := &Router{
		hub:      hub,
		calls:    calls,
		chats:    chats,
		presence: presence,
		metrics:  m,
	}
	if hub != nil {
		hub.OnDisconnect(r.disconnected)
	}
	return r
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		allowed := os.Getenv("WS_ALLOWED_ORIGINS")
		if allowed == "" {
			return true
		}
		origin := r.Header.Get("Origin")
		for _, o := range strings.Split(allowed, ",") {
			if origin == strings.TrimSpace(o) {
				return true
			}
		}
		return false
	},
}

// ServeWS handles WebSocket requests
func (r *Router) ServeWS(c *gin.Context) {
	// Acquire semaphore to limit concurrent connections; released when
	// the connection's read pump exits
	select {
	case r.hub.semaphore <- struct{}{}:
	default:
		logger.Warn("WebSocket connection rejected: max connections reached",
			zap.Int("max_connections", r.hub.maxConnections))
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "Server at capacity, please try again later"})
		return
	}

	// Identity comes from the auth middleware
	userIDVal, exists := c.Get("user_id")
	if !exists {
		<-r.hub.semaphore
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}
	userID, ok := userIDVal.(uuid.UUID)
	if !ok {
		<-r.hub.semaphore
		c.JSON(http.StatusInternalServerError, gin.H{"error": "invalid user_id"})
		return
	}
	username := c.GetString("username")

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		<-r.hub.semaphore
		logger.Warn("WebSocket upgrade failed",
			zap.String("user_id", userID.String()),
			zap.Error(err))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	client := &Client{
		hub:      r.hub,
		router:   r,
		conn:     conn,
		send:     make(chan []byte, 256),
		userID:   userID,
		username: username,
		ctx:      ctx,
		cancel:   cancel,
	}

	r.hub.register <- client

	r.connected(userID)

	go client.writePump()
	go client.readPump()
}

// connected marks the user online and announces it
func (r *Router) connected(userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.CallEventTimeout)
	defer cancel()

	if err := r.presence.SetUserOnline(ctx, userID); err != nil {
		logger.Warn("Failed to set user online",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
	r.hub.Broadcast(ctx, event.UserOnline, &event.PresenceEvent{UserID: userID})
}

// disconnected marks the user offline once their connection is gone
func (r *Router) disconnected(userID uuid.UUID) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.CallEventTimeout)
	defer cancel()

	if err := r.presence.SetUserOffline(ctx, userID); err != nil {
		logger.Warn("Failed to set user offline",
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
	r.hub.Broadcast(ctx, event.UserOffline, &event.PresenceEvent{UserID: userID})
}

// heartbeat extends the user's presence TTL on each pong
func (r *Router) heartbeat(c *Client) {
	ctx, cancel := context.WithTimeout(context.Background(), constants.CallEventTimeout)
	defer cancel()

	if err := r.presence.RefreshPresence(ctx, c.userID); err != nil {
		logger.Debug("Failed to refresh presence",
			zap.String("user_id", c.userID.String()),
			zap.Error(err))
	}
}

// Inbound payloads, one per event type

type callRequestPayload struct {
	To    uuid.UUID      `json:"to"`
	Type  string         `json:"type"`
	Offer map[string]any `json:"offer"`
}

type callAcceptPayload struct {
	CallID uuid.UUID      `json:"call_id"`
	Answer map[string]any `json:"answer"`
}

type callRejectPayload struct {
	CallID uuid.UUID `json:"call_id"`
}

type callEndedPayload struct {
	CallID    uuid.UUID `json:"call_id"`
	EndedAt   time.Time `json:"ended_at"`
	DataUsage int64     `json:"data_usage"`
}

type iceCandidatePayload struct {
	To        uuid.UUID      `json:"to"`
	Candidate map[string]any `json:"candidate"`
}

type chatMessagePayload struct {
	To      uuid.UUID `json:"to"`
	Content string    `json:"content"`
}

type typingPayload struct {
	To uuid.UUID `json:"to"`
}

type messageReadPayload struct {
	MessageID uuid.UUID `json:"message_id"`
}

// dispatch routes one inbound frame. Failures go back to the sending
// client only; a busy rejection becomes a call_busy event, everything
// else becomes an error event.
func (r *Router) dispatch(c *Client, raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil || env.Event == "" {
		r.metrics.RecordWebSocketEvent("malformed", "error")
		c.sendEvent(event.Error, &event.ErrorEvent{
			Code:    string(apperrors.ErrCodeValidation),
			Message: "Malformed event envelope",
		})
		return
	}

	ctx, cancel := context.WithTimeout(c.ctx, constants.CallEventTimeout)
	defer cancel()

	if err := r.route(ctx, c, &env); err != nil {
		r.metrics.RecordWebSocketEvent(env.Event, "error")
		r.replyError(c, err)
		return
	}
	r.metrics.RecordWebSocketEvent(env.Event, "ok")
}

func (r *Router) route(ctx context.Context, c *Client, env *Envelope) error {
	switch env.Event {
	case event.CallRequest:
		var p callRequestPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		created, err := r.calls.Request(ctx, c.userID, &call.RequestInput{
			ReceiverID: p.To,
			CallerName: c.username,
			Type:       domain.CallType(p.Type),
			Offer:      p.Offer,
		})
		if err != nil {
			return err
		}
		c.sendEvent(event.CallRinging, &event.CallRingingEvent{
			CallID: created.CallID,
			To:     created.ReceiverID,
		})
		return nil

	case event.CallAccept:
		var p callAcceptPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return r.calls.Accept(ctx, c.userID, p.CallID, p.Answer)

	case event.CallReject:
		var p callRejectPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return r.calls.Reject(ctx, c.userID, p.CallID)

	case event.CallEnded:
		var p callEndedPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return r.calls.End(ctx, c.userID, p.CallID, p.EndedAt, p.DataUsage)

	case event.ICECandidate:
		var p iceCandidatePayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return r.calls.RelayICE(ctx, c.userID, p.To, p.Candidate)

	case event.ChatMessage:
		var p chatMessagePayload
		if err := decode(env, &p); err != nil {
			return err
		}
		_, err := r.chats.Send(ctx, c.userID, &chat.SendInput{
			ReceiverID: p.To,
			SenderName: c.username,
			Content:    p.Content,
		})
		return err

	case event.ChatTyping:
		var p typingPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return r.chats.StartTyping(ctx, c.userID, p.To)

	case event.ChatStopTyping:
		var p typingPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return r.chats.StopTyping(ctx, c.userID, p.To)

	case event.MessageRead:
		var p messageReadPayload
		if err := decode(env, &p); err != nil {
			return err
		}
		return r.chats.MarkRead(ctx, c.userID, p.MessageID)

	default:
		return apperrors.ValidationError("Unknown event: " + env.Event)
	}
}

// replyError reports a handler failure to the originating client
func (r *Router) replyError(c *Client, err error) {
	appErr := apperrors.GetAppError(err)

	if appErr.Code == apperrors.ErrCodeUserBusy {
		if details, ok := appErr.Details.(map[string]string); ok {
			if to, perr := uuid.Parse(details["to"]); perr == nil {
				c.sendEvent(event.CallBusy, &event.CallBusyEvent{To: to})
				return
			}
		}
	}

	c.sendEvent(event.Error, &event.ErrorEvent{
		Code:    string(appErr.Code),
		Message: appErr.Message,
	})
}

func decode(env *Envelope, v any) error {
	if err := json.Unmarshal(env.Data, v); err != nil {
		return apperrors.ValidationError("Malformed " + env.Event + " payload")
	}
	return nil
}
