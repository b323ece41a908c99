// Package constants defines application-wide constants for timeouts, limits, and durations.
package constants

import "time"

// Call signaling constants
const (
	// CallRingTimeout is how long an unanswered call stays in the requested state
	// before it is marked missed
	CallRingTimeout = 30 * time.Second

	// CallEventTimeout bounds persistence and fan-out work triggered by a
	// scheduled timer, which runs without a caller-supplied context
	CallEventTimeout = 10 * time.Second
)

// Chat persistence constants
const (
	// ChatSaveAttempts is the maximum number of attempts to persist a chat message
	ChatSaveAttempts = 3

	// ChatRetryBaseDelay is multiplied by the attempt index between retries
	ChatRetryBaseDelay = 100 * time.Millisecond
)

// WebSocket constants
const (
	// WebSocketPingInterval is the interval for WebSocket ping/pong
	WebSocketPingInterval = 60 * time.Second

	// WebSocketWriteTimeout is the per-frame write deadline
	WebSocketWriteTimeout = 10 * time.Second
)

// Presence constants
const (
	// PresenceTTL is how long a presence key lives without a heartbeat
	PresenceTTL = 5 * time.Minute
)

// JWT constants
const (
	// AccessTokenExpiry is the default access token lifetime
	AccessTokenExpiry = 15 * time.Minute

	// RefreshTokenExpiry is the default refresh token lifetime
	RefreshTokenExpiry = 7 * 24 * time.Hour
)

// Database connection constants
const (
	// MaxConnLifetime is the maximum lifetime of a database connection
	MaxConnLifetime = 1 * time.Hour

	// MaxConnIdleTime is the maximum idle time for a database connection
	MaxConnIdleTime = 30 * time.Minute
)

// Server constants
const (
	// GracefulShutdownTimeout is the timeout for graceful server shutdown
	GracefulShutdownTimeout = 30 * time.Second
)

// Pagination constants
const (
	// DefaultPageSize is the default number of items per page
	DefaultPageSize = 20

	// MaxPageSize is the maximum number of items per page
	MaxPageSize = 100
)
