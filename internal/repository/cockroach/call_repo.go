package cockroach

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"callbridge-backend/internal/domain"
	apperrors "callbridge-backend/pkg/errors"
)

// querier is the subset of pgxpool.Pool used by the repositories.
// Satisfied by pgxmock in tests.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// CallRepository handles call data operations
type CallRepository struct {
	db querier
}

// NewCallRepository creates a new call repository
func NewCallRepository(db querier) *CallRepository {
	return &CallRepository{db: db}
}

// CreateIfIdle inserts a new call only if neither party has a call in
// 'requested' or 'accepted' status. The check and the insert run as one
// statement so two concurrent requests cannot both pass admission.
// Returns false when the claim lost to an existing active call.
func (r *CallRepository) CreateIfIdle(ctx context.Context, call *domain.Call) (bool, error) {
	query := `
		INSERT INTO calls (call_id, caller_id, receiver_id, call_type, status, started_at)
		SELECT $1, $2, $3, $4, 'requested', $5
		WHERE NOT EXISTS (
			SELECT 1 FROM calls
			WHERE (caller_id = $2 OR receiver_id = $2 OR caller_id = $3 OR receiver_id = $3)
			AND status IN ('requested', 'accepted')
		)
	`

	tag, err := r.db.Exec(ctx, query,
		call.CallID,
		call.CallerID,
		call.ReceiverID,
		call.Type,
		call.StartedAt,
	)
	if err != nil {
		return false, fmt.Errorf("failed to create call: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// HasActiveCall reports whether the user is party to a call in
// 'requested' or 'accepted' status
func (r *CallRepository) HasActiveCall(ctx context.Context, userID uuid.UUID) (bool, error) {
	query := `
		SELECT EXISTS (
			SELECT 1 FROM calls
			WHERE (caller_id = $1 OR receiver_id = $1)
			AND status IN ('requested', 'accepted')
		)
	`

	var busy bool
	if err := r.db.QueryRow(ctx, query, userID).Scan(&busy); err != nil {
		return false, fmt.Errorf("failed to check active call: %w", err)
	}

	return busy, nil
}

// UpdateStatusIf transitions a call from one status to another. The guard
// is part of the UPDATE so a stale transition never overwrites a newer one.
// Returns false when the call was not in the expected status.
func (r *CallRepository) UpdateStatusIf(ctx context.Context, callID uuid.UUID, from, to domain.CallStatus) (bool, error) {
	query := `
		UPDATE calls
		SET status = $3
		WHERE call_id = $1 AND status = $2
	`

	tag, err := r.db.Exec(ctx, query, callID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update call status: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// End marks an accepted call as ended, recording the end time and the
// data usage reported by the hanging-up client.
// Returns false when the call was not in 'accepted' status.
func (r *CallRepository) End(ctx context.Context, callID uuid.UUID, endedAt time.Time, dataUsage int64) (bool, error) {
	query := `
		UPDATE calls
		SET status = 'ended', ended_at = $2, data_usage = $3
		WHERE call_id = $1 AND status = 'accepted'
	`

	tag, err := r.db.Exec(ctx, query, callID, endedAt, dataUsage)
	if err != nil {
		return false, fmt.Errorf("failed to end call: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// MarkMissedIfRequested marks a call as missed only if it is still
// ringing. Used by the ring timeout: a call answered or declined between
// timer arm and timer fire is left untouched.
func (r *CallRepository) MarkMissedIfRequested(ctx context.Context, callID uuid.UUID, endedAt time.Time) (bool, error) {
	query := `
		UPDATE calls
		SET status = 'missed', ended_at = $2
		WHERE call_id = $1 AND status = 'requested'
	`

	tag, err := r.db.Exec(ctx, query, callID, endedAt)
	if err != nil {
		return false, fmt.Errorf("failed to mark call missed: %w", err)
	}

	return tag.RowsAffected() == 1, nil
}

// GetByID retrieves a call by ID
func (r *CallRepository) GetByID(ctx context.Context, callID uuid.UUID) (*domain.Call, error) {
	query := `
		SELECT call_id, caller_id, receiver_id, call_type, status,
		       started_at, ended_at, data_usage
		FROM calls
		WHERE call_id = $1
	`

	call := &domain.Call{}
	err := r.db.QueryRow(ctx, query, callID).Scan(
		&call.CallID,
		&call.CallerID,
		&call.ReceiverID,
		&call.Type,
		&call.Status,
		&call.StartedAt,
		&call.EndedAt,
		&call.DataUsage,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.CallNotFoundError()
		}
		return nil, fmt.Errorf("failed to get call: %w", err)
	}

	return call, nil
}

// GetUserCalls retrieves the call history of a user, newest first
func (r *CallRepository) GetUserCalls(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Call, error) {
	query := `
		SELECT call_id, caller_id, receiver_id, call_type, status,
		       started_at, ended_at, data_usage
		FROM calls
		WHERE caller_id = $1 OR receiver_id = $1
		ORDER BY started_at DESC
		LIMIT $2 OFFSET $3
	`

	rows, err := r.db.Query(ctx, query, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get user calls: %w", err)
	}
	defer rows.Close()

	var calls []*domain.Call
	for rows.Next() {
		call := &domain.Call{}
		err := rows.Scan(
			&call.CallID,
			&call.CallerID,
			&call.ReceiverID,
			&call.Type,
			&call.Status,
			&call.StartedAt,
			&call.EndedAt,
			&call.DataUsage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan call: %w", err)
		}
		calls = append(calls, call)
	}

	return calls, rows.Err()
}
