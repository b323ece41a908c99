package domain

import (
	"time"

	"github.com/google/uuid"
)

// CallStatus represents the lifecycle state of a call
type CallStatus string

const (
	CallStatusRequested CallStatus = "requested"
	CallStatusAccepted  CallStatus = "accepted"
	CallStatusRejected  CallStatus = "rejected"
	CallStatusEnded     CallStatus = "ended"
	CallStatusMissed    CallStatus = "missed"
)

// Terminal reports whether the status admits no further transitions
func (s CallStatus) Terminal() bool {
	switch s {
	case CallStatusRejected, CallStatusEnded, CallStatusMissed:
		return true
	}
	return false
}

// CallType distinguishes audio from video calls
type CallType string

const (
	CallTypeAudio CallType = "audio"
	CallTypeVideo CallType = "video"
)

// ValidCallType reports whether t is a recognized call type
func ValidCallType(t string) bool {
	return CallType(t) == CallTypeAudio || CallType(t) == CallTypeVideo
}

// Call represents a call record
// Maps to CockroachDB calls table
type Call struct {
	CallID     uuid.UUID  `json:"call_id" db:"call_id"`
	CallerID   uuid.UUID  `json:"caller_id" db:"caller_id"`
	ReceiverID uuid.UUID  `json:"receiver_id" db:"receiver_id"`
	Type       CallType   `json:"type" db:"call_type"`
	Status     CallStatus `json:"status" db:"status"`
	StartedAt  time.Time  `json:"started_at" db:"started_at"`
	EndedAt    *time.Time `json:"ended_at,omitempty" db:"ended_at"`
	DataUsage  int64      `json:"data_usage" db:"data_usage"` // bytes reported by the ending client
}

// Involves reports whether userID is the caller or the receiver
func (c *Call) Involves(userID uuid.UUID) bool {
	return c.CallerID == userID || c.ReceiverID == userID
}

// Peer returns the other party of the call relative to userID
func (c *Call) Peer(userID uuid.UUID) uuid.UUID {
	if c.CallerID == userID {
		return c.ReceiverID
	}
	return c.CallerID
}
