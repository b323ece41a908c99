package cassandra

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"

	"callbridge-backend/internal/domain"
)

// MessageRepository handles message storage in Cassandra.
//
// Messages are partitioned by conversation pair key (order-independent
// pair of user IDs) and clustered by created_at DESC. A secondary
// messages_by_id table maps a bare message_id back to its partition so
// read receipts, which only carry the message ID, can find the row.
type MessageRepository struct {
	session *gocql.Session
}

// NewMessageRepository creates a new MessageRepository
func NewMessageRepository(session *gocql.Session) *MessageRepository {
	return &MessageRepository{session: session}
}

// Save inserts a new message and its id-lookup row
func (r *MessageRepository) Save(ctx context.Context, message *domain.Message) error {
	if message.MessageID == uuid.Nil {
		message.MessageID = uuid.New()
	}

	pairKey := domain.PairKey(message.SenderID, message.ReceiverID)

	batch := r.session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	batch.Query(`
		INSERT INTO messages (
			pair_key, created_at, message_id, sender_id, receiver_id,
			content, delivered, read
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		pairKey,
		message.CreatedAt,
		message.MessageID,
		message.SenderID,
		message.ReceiverID,
		message.Content,
		message.Delivered,
		message.Read,
	)
	batch.Query(`
		INSERT INTO messages_by_id (message_id, pair_key, created_at, sender_id)
		VALUES (?, ?, ?, ?)
	`,
		message.MessageID,
		pairKey,
		message.CreatedAt,
		message.SenderID,
	)

	if err := r.session.ExecuteBatch(batch); err != nil {
		return fmt.Errorf("failed to save message: %w", err)
	}

	return nil
}

// MarkRead flags a message as read, located by ID alone.
// Returns the sender of the message and whether it was found.
func (r *MessageRepository) MarkRead(ctx context.Context, messageID uuid.UUID) (uuid.UUID, bool, error) {
	var (
		pairKey   string
		createdAt time.Time
		senderID  uuid.UUID
	)

	lookup := `SELECT pair_key, created_at, sender_id FROM messages_by_id WHERE message_id = ? LIMIT 1`
	err := r.session.Query(lookup, messageID).WithContext(ctx).Scan(&pairKey, &createdAt, &senderID)
	if err != nil {
		if errors.Is(err, gocql.ErrNotFound) {
			return uuid.Nil, false, nil
		}
		return uuid.Nil, false, fmt.Errorf("failed to look up message: %w", err)
	}

	update := `UPDATE messages SET read = true WHERE pair_key = ? AND created_at = ? AND message_id = ?`
	if err := r.session.Query(update, pairKey, createdAt, messageID).WithContext(ctx).Exec(); err != nil {
		return uuid.Nil, false, fmt.Errorf("failed to mark message read: %w", err)
	}

	return senderID, true, nil
}

// GetConversation retrieves the most recent messages between two users,
// newest first
func (r *MessageRepository) GetConversation(ctx context.Context, a, b uuid.UUID, limit int) ([]*domain.Message, error) {
	query := `
		SELECT message_id, sender_id, receiver_id, content, delivered, read, created_at
		FROM messages
		WHERE pair_key = ?
		ORDER BY created_at DESC
		LIMIT ?
	`

	iter := r.session.Query(query, domain.PairKey(a, b), limit).WithContext(ctx).Iter()

	var messages []*domain.Message
	for {
		message := &domain.Message{}
		if !iter.Scan(
			&message.MessageID,
			&message.SenderID,
			&message.ReceiverID,
			&message.Content,
			&message.Delivered,
			&message.Read,
			&message.CreatedAt,
		) {
			break
		}
		messages = append(messages, message)
	}

	if err := iter.Close(); err != nil {
		return nil, fmt.Errorf("failed to fetch conversation: %w", err)
	}

	return messages, nil
}
