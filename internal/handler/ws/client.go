package ws

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"callbridge-backend/pkg/constants"
	"callbridge-backend/pkg/logger"
)

// Client represents one user's WebSocket connection
type Client struct {
	hub      *Hub
	router   *Router
	conn     *websocket.Conn
	send     chan []byte
	userID   uuid.UUID
	username string
	ctx      context.Context
	cancel   context.CancelFunc
}

// deliver queues a pre-marshalled envelope for the connection. A client
// whose send buffer is full loses the frame rather than stalling the hub.
func (c *Client) deliver(payload []byte) {
	select {
	case c.send <- payload:
	default:
		logger.Warn("Dropping event for slow client",
			zap.String("user_id", c.userID.String()))
	}
}

// sendEvent marshals and queues an event for this connection only
func (c *Client) sendEvent(eventName string, payload any) {
	raw, err := marshalEnvelope(eventName, payload)
	if err != nil {
		logger.Error("Failed to marshal event",
			zap.String("event", eventName),
			zap.Error(err))
		return
	}
	c.deliver(raw)
}

// readPump reads messages from WebSocket
func (c *Client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
		<-c.hub.semaphore
	}()

	c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval + constants.WebSocketWriteTimeout))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(constants.WebSocketPingInterval + constants.WebSocketWriteTimeout))
		c.router.heartbeat(c)
		return nil
	})

	for {
		_, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logger.Debug("WebSocket connection closed",
					zap.String("user_id", c.userID.String()),
					zap.Error(err))
			}
			break
		}

		c.router.dispatch(c, message)
	}
}

// writePump writes messages to WebSocket
func (c *Client) writePump() {
	ticker := time.NewTicker(constants.WebSocketPingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case <-c.ctx.Done():
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			c.conn.WriteMessage(websocket.CloseMessage, []byte{})
			return

		case message := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))

			w, err := c.conn.NextWriter(websocket.TextMessage)
			if err != nil {
				return
			}
			w.Write(message)

			if err := w.Close(); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(constants.WebSocketWriteTimeout))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
