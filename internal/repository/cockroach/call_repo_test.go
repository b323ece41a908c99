package cockroach

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	pgxmock "github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"callbridge-backend/internal/domain"
	apperrors "callbridge-backend/pkg/errors"
)

func newMockRepo(t *testing.T) (*CallRepository, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewCallRepository(mock), mock
}

func TestCreateIfIdle(t *testing.T) {
	call := &domain.Call{
		CallID:     uuid.New(),
		CallerID:   uuid.New(),
		ReceiverID: uuid.New(),
		Type:       domain.CallTypeVideo,
		Status:     domain.CallStatusRequested,
		StartedAt:  time.Now().UTC(),
	}

	t.Run("claims the call when both parties are idle", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec("INSERT INTO calls").
			WithArgs(call.CallID, call.CallerID, call.ReceiverID, call.Type, call.StartedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))

		ok, err := repo.CreateIfIdle(context.Background(), call)
		assert.NoError(t, err)
		assert.True(t, ok)
		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("loses the claim when a party has an active call", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec("INSERT INTO calls").
			WithArgs(call.CallID, call.CallerID, call.ReceiverID, call.Type, call.StartedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 0))

		ok, err := repo.CreateIfIdle(context.Background(), call)
		assert.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestHasActiveCall(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()

	mock.ExpectQuery("SELECT EXISTS").
		WithArgs(userID).
		WillReturnRows(pgxmock.NewRows([]string{"exists"}).AddRow(true))

	busy, err := repo.HasActiveCall(context.Background(), userID)
	assert.NoError(t, err)
	assert.True(t, busy)
}

func TestUpdateStatusIf(t *testing.T) {
	callID := uuid.New()

	t.Run("transitions when status matches", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec("UPDATE calls").
			WithArgs(callID, domain.CallStatusRequested, domain.CallStatusAccepted).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		ok, err := repo.UpdateStatusIf(context.Background(), callID, domain.CallStatusRequested, domain.CallStatusAccepted)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("refuses a stale transition", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec("UPDATE calls").
			WithArgs(callID, domain.CallStatusRequested, domain.CallStatusRejected).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		ok, err := repo.UpdateStatusIf(context.Background(), callID, domain.CallStatusRequested, domain.CallStatusRejected)
		assert.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestEnd(t *testing.T) {
	repo, mock := newMockRepo(t)
	callID := uuid.New()
	endedAt := time.Now().UTC()

	mock.ExpectExec("UPDATE calls").
		WithArgs(callID, endedAt, int64(2048)).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))

	ok, err := repo.End(context.Background(), callID, endedAt, 2048)
	assert.NoError(t, err)
	assert.True(t, ok)
}

func TestMarkMissedIfRequested(t *testing.T) {
	callID := uuid.New()
	endedAt := time.Now().UTC()

	t.Run("marks a still-ringing call missed", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec("UPDATE calls").
			WithArgs(callID, endedAt).
			WillReturnResult(pgxmock.NewResult("UPDATE", 1))

		ok, err := repo.MarkMissedIfRequested(context.Background(), callID, endedAt)
		assert.NoError(t, err)
		assert.True(t, ok)
	})

	t.Run("leaves an answered call untouched", func(t *testing.T) {
		repo, mock := newMockRepo(t)

		mock.ExpectExec("UPDATE calls").
			WithArgs(callID, endedAt).
			WillReturnResult(pgxmock.NewResult("UPDATE", 0))

		ok, err := repo.MarkMissedIfRequested(context.Background(), callID, endedAt)
		assert.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestGetByID_NotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	callID := uuid.New()

	mock.ExpectQuery("SELECT (.+) FROM calls").
		WithArgs(callID).
		WillReturnRows(pgxmock.NewRows([]string{
			"call_id", "caller_id", "receiver_id", "call_type", "status",
			"started_at", "ended_at", "data_usage",
		}))

	call, err := repo.GetByID(context.Background(), callID)
	assert.Nil(t, call)
	assert.True(t, apperrors.HasCode(err, apperrors.ErrCodeCallNotFound))
}

func TestGetUserCalls(t *testing.T) {
	repo, mock := newMockRepo(t)
	userID := uuid.New()
	peer := uuid.New()
	started := time.Now().UTC()

	mock.ExpectQuery("SELECT (.+) FROM calls").
		WithArgs(userID, 20, 0).
		WillReturnRows(pgxmock.NewRows([]string{
			"call_id", "caller_id", "receiver_id", "call_type", "status",
			"started_at", "ended_at", "data_usage",
		}).AddRow(
			uuid.New(), userID, peer, domain.CallTypeAudio, domain.CallStatusEnded,
			started, &started, int64(1024),
		))

	calls, err := repo.GetUserCalls(context.Background(), userID, 20, 0)
	assert.NoError(t, err)
	require.Len(t, calls, 1)
	assert.Equal(t, userID, calls[0].CallerID)
	assert.Equal(t, domain.CallStatusEnded, calls[0].Status)
}
