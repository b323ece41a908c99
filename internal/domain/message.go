package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Message represents a chat message
// Maps to the Cassandra messages table, partitioned by conversation pair
type Message struct {
	MessageID  uuid.UUID `json:"message_id" cql:"message_id"`
	SenderID   uuid.UUID `json:"sender_id" cql:"sender_id"`
	ReceiverID uuid.UUID `json:"receiver_id" cql:"receiver_id"`
	Content    string    `json:"content" cql:"content"`
	Delivered  bool      `json:"delivered" cql:"delivered"`
	Read       bool      `json:"read" cql:"read"`
	CreatedAt  time.Time `json:"created_at" cql:"created_at"`
}

// PairKey returns the conversation partition key for two users.
// The key is order-independent so both directions of a conversation
// land in the same partition.
func PairKey(a, b uuid.UUID) string {
	as, bs := a.String(), b.String()
	if strings.Compare(as, bs) > 0 {
		as, bs = bs, as
	}
	return as + ":" + bs
}
