// Package ws implements the WebSocket edge: one connection per user,
// event fan-out through Redis Pub/Sub, and dispatch of inbound events
// to the signaling and chat services.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"callbridge-backend/pkg/logger"
	"callbridge-backend/pkg/metrics"
)

// broadcastChannel carries events addressed to every connected user
const broadcastChannel = "events:broadcast"

// userChannel is the Redis Pub/Sub channel carrying events for one user
func userChannel(userID uuid.UUID) string {
	return fmt.Sprintf("events:user:%s", userID)
}

// Envelope frames every event on the wire, in both directions
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// Hub tracks connected clients and routes outbound events through Redis
// Pub/Sub, so an event reaches its user no matter which node holds the
// connection. Publishing to a user with no active subscription is a
// silent drop: offline users are reached by push notification instead.
type Hub struct {
	// One connection per user; a new connection replaces the old one
	clients map[uuid.UUID]*Client

	// Redis client for Pub/Sub
	redisClient *redis.Client

	metrics *metrics.Metrics

	// Called after a user's last connection is gone
	onDisconnect func(userID uuid.UUID)

	// Mutex for thread-safe operations
	mu sync.RWMutex

	// Channels
	register   chan *Client
	unregister chan *Client

	// Concurrency limit: maxConnections is the maximum number of concurrent WebSocket connections
	maxConnections int
	// Semaphore for limiting concurrent connections
	semaphore chan struct{}
}

// NewHub creates a new hub and starts its event loop
func NewHub(redisClient *redis.Client, m *metrics.Metrics) *Hub {
	// Default max connections: 1000 (configurable via environment if needed)
	maxConns := 1000
	if val := os.Getenv("WS_MAX_CONNECTIONS"); val != "" {
		if n, err := strconv.Atoi(val); err == nil && n > 0 {
			maxConns = n
		}
	}

	hub := &Hub{
		clients:        make(map[uuid.UUID]*Client),
		redisClient:    redisClient,
		metrics:        m,
		register:       make(chan *Client),
		unregister:     make(chan *Client),
		maxConnections: maxConns,
		semaphore:      make(chan struct{}, maxConns),
	}

	go hub.run()
	go hub.subscribeBroadcast()

	return hub
}

// OnDisconnect registers the callback invoked when a user's connection
// closes without being replaced. Must be set before serving.
func (h *Hub) OnDisconnect(fn func(userID uuid.UUID)) {
	h.onDisconnect = fn
}

// run handles hub operations
func (h *Hub) run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			if old, ok := h.clients[client.userID]; ok {
				// New connection supersedes the old one. Shutdown is
				// signalled through the context only; the send channel
				// is never closed, because the old connection's
				// subscription may still be delivering into it.
				old.cancel()
			}
			h.clients[client.userID] = client
			h.mu.Unlock()

			h.metrics.WebSocketConnected()

			// Forward this user's Redis channel to the connection
			go h.subscribeToUser(client)

		case client := <-h.unregister:
			h.mu.Lock()
			current, ok := h.clients[client.userID]
			if ok && current == client {
				delete(h.clients, client.userID)
				client.cancel()
			}
			h.mu.Unlock()

			if ok && current == client {
				h.metrics.WebSocketDisconnected()
				if h.onDisconnect != nil {
					go h.onDisconnect(client.userID)
				}
			}
		}
	}
}

// ToUser delivers an event to a user's active connection, wherever it
// is. Nothing is queued for users without one.
func (h *Hub) ToUser(ctx context.Context, userID uuid.UUID, eventName string, payload any) {
	raw, err := marshalEnvelope(eventName, payload)
	if err != nil {
		logger.Error("Failed to marshal event",
			zap.String("event", eventName),
			zap.Error(err))
		return
	}

	if err := h.redisClient.Publish(ctx, userChannel(userID), raw).Err(); err != nil {
		logger.Warn("Failed to publish user event",
			zap.String("event", eventName),
			zap.String("user_id", userID.String()),
			zap.Error(err))
	}
}

// Broadcast delivers an event to every connected user on every node
func (h *Hub) Broadcast(ctx context.Context, eventName string, payload any) {
	raw, err := marshalEnvelope(eventName, payload)
	if err != nil {
		logger.Error("Failed to marshal event",
			zap.String("event", eventName),
			zap.Error(err))
		return
	}

	if err := h.redisClient.Publish(ctx, broadcastChannel, raw).Err(); err != nil {
		logger.Warn("Failed to publish broadcast event",
			zap.String("event", eventName),
			zap.Error(err))
	}
}

// ConnectionCount returns the number of clients connected to this node
func (h *Hub) ConnectionCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// subscribeToUser subscribes to Redis Pub/Sub for one user and forwards
// payloads to the connection. Runs until the client context is cancelled.
func (h *Hub) subscribeToUser(client *Client) {
	pubsub := h.redisClient.Subscribe(client.ctx, userChannel(client.userID))
	defer pubsub.Close()

	if _, err := pubsub.Receive(client.ctx); err != nil {
		logger.Error("Failed to subscribe to user channel",
			zap.String("user_id", client.userID.String()),
			zap.Error(err))
		return
	}

	ch := pubsub.Channel()

	for {
		select {
		case <-client.ctx.Done():
			return
		case msg := <-ch:
			if msg == nil {
				continue
			}
			client.deliver([]byte(msg.Payload))
		}
	}
}

// subscribeBroadcast forwards the broadcast channel to every local client
func (h *Hub) subscribeBroadcast() {
	ctx := context.Background()

	pubsub := h.redisClient.Subscribe(ctx, broadcastChannel)
	defer pubsub.Close()

	if _, err := pubsub.Receive(ctx); err != nil {
		logger.Error("Failed to subscribe to broadcast channel", zap.Error(err))
		return
	}

	for msg := range pubsub.Channel() {
		if msg == nil {
			continue
		}
		payload := []byte(msg.Payload)

		h.mu.RLock()
		for _, client := range h.clients {
			client.deliver(payload)
		}
		h.mu.RUnlock()
	}
}

func marshalEnvelope(eventName string, payload any) ([]byte, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal %s payload: %w", eventName, err)
	}
	return json.Marshal(&Envelope{Event: eventName, Data: data})
}
