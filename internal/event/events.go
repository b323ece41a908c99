// Package event defines the WebSocket event vocabulary shared by the
// signaling and chat layers. Event names are part of the wire protocol
// and must not change without coordinating with clients.
package event

import (
	"time"

	"github.com/google/uuid"

	"callbridge-backend/internal/domain"
)

// Inbound and outbound event names
const (
	CallRequest  = "call_request"
	CallRinging  = "call_ringing"
	CallAccept   = "call_accept"
	CallReject   = "call_reject"
	CallEnded    = "call_ended"
	CallBusy     = "call_busy"
	CallTimeout  = "call_timeout"
	ICECandidate = "ice_candidate"

	ChatMessage    = "chat_message"
	ChatDelivered  = "chat_delivered"
	ChatTyping     = "chat_typing"
	ChatStopTyping = "chat_stop_typing"
	MessageRead    = "message_read"

	UserOnline  = "user_online"
	UserOffline = "user_offline"

	Error = "error"
)

// CallRequestEvent is sent to the receiver of a new call
type CallRequestEvent struct {
	CallID uuid.UUID       `json:"call_id"`
	From   uuid.UUID       `json:"from"`
	Type   domain.CallType `json:"type"`
	Offer  map[string]any  `json:"offer"`
}

// CallRingingEvent acknowledges a call request to its caller, carrying
// the server-assigned call ID
type CallRingingEvent struct {
	CallID uuid.UUID `json:"call_id"`
	To     uuid.UUID `json:"to"`
}

// CallAcceptEvent is sent to the caller when the receiver accepts
type CallAcceptEvent struct {
	CallID uuid.UUID      `json:"call_id"`
	From   uuid.UUID      `json:"from"`
	Answer map[string]any `json:"answer"`
}

// CallRejectEvent is sent to the caller when the receiver declines
type CallRejectEvent struct {
	CallID uuid.UUID `json:"call_id"`
	From   uuid.UUID `json:"from"`
}

// CallEndedEvent is sent to the peer when the other party hangs up
type CallEndedEvent struct {
	CallID  uuid.UUID `json:"call_id"`
	From    uuid.UUID `json:"from"`
	EndedAt time.Time `json:"ended_at"`
}

// CallBusyEvent is sent back to a caller whose target is in an active call
type CallBusyEvent struct {
	To uuid.UUID `json:"to"`
}

// CallTimeoutEvent is sent to both parties when a call rings out
type CallTimeoutEvent struct {
	CallID uuid.UUID `json:"call_id"`
}

// ICECandidateEvent relays an ICE candidate between peers
type ICECandidateEvent struct {
	From      uuid.UUID      `json:"from"`
	Candidate map[string]any `json:"candidate"`
}

// ChatDeliveredEvent acknowledges persistence of a message to its sender
type ChatDeliveredEvent struct {
	MessageID uuid.UUID `json:"message_id"`
}

// TypingEvent signals typing start/stop to the conversation peer
type TypingEvent struct {
	From uuid.UUID `json:"from"`
}

// MessageReadEvent signals that a message has been read
type MessageReadEvent struct {
	MessageID uuid.UUID `json:"message_id"`
	ReadBy    uuid.UUID `json:"read_by"`
}

// PresenceEvent signals a user's connect or disconnect
type PresenceEvent struct {
	UserID uuid.UUID `json:"user_id"`
}

// ErrorEvent reports a handler failure to the originating client
type ErrorEvent struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}
