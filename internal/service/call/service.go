// Package call implements call signaling: admission control, the call
// state machine, and the ring timeout coordinator.
package call

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"callbridge-backend/internal/domain"
	"callbridge-backend/internal/event"
	"callbridge-backend/pkg/constants"
	apperrors "callbridge-backend/pkg/errors"
	"callbridge-backend/pkg/logger"
	"callbridge-backend/pkg/metrics"
)

// CallRepository defines call storage operations used by the service
type CallRepository interface {
	CreateIfIdle(ctx context.Context, call *domain.Call) (bool, error)
	HasActiveCall(ctx context.Context, userID uuid.UUID) (bool, error)
	UpdateStatusIf(ctx context.Context, callID uuid.UUID, from, to domain.CallStatus) (bool, error)
	End(ctx context.Context, callID uuid.UUID, endedAt time.Time, dataUsage int64) (bool, error)
	MarkMissedIfRequested(ctx context.Context, callID uuid.UUID, endedAt time.Time) (bool, error)
	GetByID(ctx context.Context, callID uuid.UUID) (*domain.Call, error)
	GetUserCalls(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Call, error)
}

// Notifier delivers real-time events to a user's active connections
type Notifier interface {
	ToUser(ctx context.Context, userID uuid.UUID, eventName string, payload any)
}

// PushSender delivers best-effort push notifications
type PushSender interface {
	NotifyIncomingCall(ctx context.Context, receiverID uuid.UUID, callID uuid.UUID, callerName, callType string)
	NotifyMissedCall(ctx context.Context, receiverID uuid.UUID, callID uuid.UUID, callerName string)
}

// pendingCall tracks an armed ring timer and the context needed when it fires
type pendingCall struct {
	timer      *time.Timer
	callerID   uuid.UUID
	receiverID uuid.UUID
	callerName string
}

// Service handles call signaling business logic.
//
// Ring timers are owned here, keyed by call ID, so a timeout survives the
// caller's connection. Timers are single-shot and never cancelled: when
// one fires it re-checks the call status in storage, and a call that was
// answered or declined in the meantime is left alone.
type Service struct {
	repo        CallRepository
	notifier    Notifier
	push        PushSender
	metrics     *metrics.Metrics
	ringTimeout time.Duration

	pending      sync.Map // uuid.UUID -> *pendingCall
	pendingCount atomic.Int64
}

// NewService creates a new call service
func NewService(repo CallRepository, notifier Notifier, push PushSender, m *metrics.Metrics, ringTimeout time.Duration) *Service {
	if ringTimeout <= 0 {
		ringTimeout = constants.CallRingTimeout
	}
	return &Service{
		repo:        repo,
		notifier:    notifier,
		push:        push,
		metrics:     m,
		ringTimeout: ringTimeout,
	}
}

// RequestInput contains the parameters of a new call request
type RequestInput struct {
	ReceiverID uuid.UUID
	CallerName string
	Type       domain.CallType
	Offer      map[string]any
}

// Request admits and creates a new call, notifies the receiver, and arms
// the ring timeout. Admission is a transactional claim: the idle check
// and the insert are one statement, so two overlapping requests cannot
// both succeed.
func (s *Service) Request(ctx context.Context, callerID uuid.UUID, input *RequestInput) (*domain.Call, error) {
	if input.ReceiverID == uuid.Nil {
		return nil, apperrors.MissingFieldError("to")
	}
	if input.ReceiverID == callerID {
		return nil, apperrors.ValidationError("Cannot call yourself")
	}
	if !domain.ValidCallType(string(input.Type)) {
		return nil, apperrors.ValidationError("Call type must be audio or video")
	}
	if len(input.Offer) == 0 {
		return nil, apperrors.MissingFieldError("offer")
	}

	call := &domain.Call{
		CallID:     uuid.New(),
		CallerID:   callerID,
		ReceiverID: input.ReceiverID,
		Type:       input.Type,
		Status:     domain.CallStatusRequested,
		StartedAt:  time.Now().UTC(),
	}

	claimed, err := s.repo.CreateIfIdle(ctx, call)
	if err != nil {
		return nil, apperrors.PersistenceError("Failed to create call", err)
	}
	if !claimed {
		s.metrics.RecordBusyRejection()
		// The claim fails when either party already has an active
		// call; tell the caller which one it was.
		receiverBusy, berr := s.repo.HasActiveCall(ctx, input.ReceiverID)
		if berr == nil && !receiverBusy {
			logger.Info("Call rejected, caller busy",
				zap.String("caller_id", callerID.String()))
			return nil, apperrors.StateConflictError("You already have an active call")
		}
		logger.Info("Call rejected, receiver busy",
			zap.String("caller_id", callerID.String()),
			zap.String("receiver_id", input.ReceiverID.String()))
		return nil, apperrors.BusyError(input.ReceiverID.String())
	}

	s.metrics.RecordCallTransition(string(domain.CallStatusRequested))
	logger.Info("Call requested",
		zap.String("call_id", call.CallID.String()),
		zap.String("caller_id", callerID.String()),
		zap.String("receiver_id", input.ReceiverID.String()),
		zap.String("type", string(input.Type)))

	s.notifier.ToUser(ctx, input.ReceiverID, event.CallRequest, &event.CallRequestEvent{
		CallID: call.CallID,
		From:   callerID,
		Type:   input.Type,
		Offer:  input.Offer,
	})
	s.push.NotifyIncomingCall(ctx, input.ReceiverID, call.CallID, input.CallerName, string(input.Type))

	s.armTimeout(call.CallID, callerID, input.ReceiverID, input.CallerName)

	return call, nil
}

// Accept transitions a ringing call to accepted and relays the answer to
// the caller. Only the call's receiver may accept.
func (s *Service) Accept(ctx context.Context, userID, callID uuid.UUID, answer map[string]any) error {
	if len(answer) == 0 {
		return apperrors.MissingFieldError("answer")
	}

	call, err := s.repo.GetByID(ctx, callID)
	if err != nil {
		return err
	}
	if call.ReceiverID != userID {
		return apperrors.UnauthorizedError("Only the call receiver can accept")
	}

	ok, err := s.repo.UpdateStatusIf(ctx, callID, domain.CallStatusRequested, domain.CallStatusAccepted)
	if err != nil {
		return apperrors.PersistenceError("Failed to accept call", err)
	}
	if !ok {
		return s.conflict(ctx, callID, "accept")
	}

	s.metrics.RecordCallTransition(string(domain.CallStatusAccepted))
	logger.Info("Call accepted",
		zap.String("call_id", callID.String()),
		zap.String("receiver_id", userID.String()))

	s.notifier.ToUser(ctx, call.CallerID, event.CallAccept, &event.CallAcceptEvent{
		CallID: callID,
		From:   userID,
		Answer: answer,
	})

	return nil
}

// Reject transitions a ringing call to rejected and tells the caller.
// Only the call's receiver may reject.
func (s *Service) Reject(ctx context.Context, userID, callID uuid.UUID) error {
	call, err := s.repo.GetByID(ctx, callID)
	if err != nil {
		return err
	}
	if call.ReceiverID != userID {
		return apperrors.UnauthorizedError("Only the call receiver can reject")
	}

	ok, err := s.repo.UpdateStatusIf(ctx, callID, domain.CallStatusRequested, domain.CallStatusRejected)
	if err != nil {
		return apperrors.PersistenceError("Failed to reject call", err)
	}
	if !ok {
		return s.conflict(ctx, callID, "reject")
	}

	s.metrics.RecordCallTransition(string(domain.CallStatusRejected))
	logger.Info("Call rejected",
		zap.String("call_id", callID.String()),
		zap.String("receiver_id", userID.String()))

	s.notifier.ToUser(ctx, call.CallerID, event.CallReject, &event.CallRejectEvent{
		CallID: callID,
		From:   userID,
	})

	return nil
}

// End transitions an accepted call to ended, recording the data usage
// and end time reported by the hanging-up client, and tells the peer.
// Either party may hang up. A zero endedAt means the client did not
// report one and the server clock is used.
func (s *Service) End(ctx context.Context, userID, callID uuid.UUID, endedAt time.Time, dataUsage int64) error {
	call, err := s.repo.GetByID(ctx, callID)
	if err != nil {
		return err
	}
	if !call.Involves(userID) {
		return apperrors.UnauthorizedError("Not a participant of this call")
	}

	if endedAt.IsZero() {
		endedAt = time.Now().UTC()
	} else {
		endedAt = endedAt.UTC()
	}
	ok, err := s.repo.End(ctx, callID, endedAt, dataUsage)
	if err != nil {
		return apperrors.PersistenceError("Failed to end call", err)
	}
	if !ok {
		return s.conflict(ctx, callID, "end")
	}

	s.metrics.RecordCallTransition(string(domain.CallStatusEnded))
	logger.Info("Call ended",
		zap.String("call_id", callID.String()),
		zap.String("ended_by", userID.String()),
		zap.Int64("data_usage", dataUsage))

	s.notifier.ToUser(ctx, call.Peer(userID), event.CallEnded, &event.CallEndedEvent{
		CallID:  callID,
		From:    userID,
		EndedAt: endedAt,
	})

	return nil
}

// RelayICE forwards an ICE candidate to the peer. Candidates are pure
// relay traffic: nothing is persisted and no call lookup is made.
func (s *Service) RelayICE(ctx context.Context, fromID, toID uuid.UUID, candidate map[string]any) error {
	if toID == uuid.Nil {
		return apperrors.MissingFieldError("to")
	}
	if len(candidate) == 0 {
		return apperrors.MissingFieldError("candidate")
	}

	s.notifier.ToUser(ctx, toID, event.ICECandidate, &event.ICECandidateEvent{
		From:      fromID,
		Candidate: candidate,
	})

	return nil
}

// IsBusy reports whether the user is party to an active call
func (s *Service) IsBusy(ctx context.Context, userID uuid.UUID) (bool, error) {
	return s.repo.HasActiveCall(ctx, userID)
}

// History returns the user's call history, newest first
func (s *Service) History(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*domain.Call, error) {
	if limit <= 0 || limit > constants.MaxPageSize {
		limit = constants.DefaultPageSize
	}
	if offset < 0 {
		offset = 0
	}
	return s.repo.GetUserCalls(ctx, userID, limit, offset)
}

// PendingTimers returns the number of armed ring timers
func (s *Service) PendingTimers() int {
	return int(s.pendingCount.Load())
}

// conflict maps a failed guarded transition to the right error: the call
// either no longer exists or is in a state the transition cannot leave.
func (s *Service) conflict(ctx context.Context, callID uuid.UUID, op string) error {
	call, err := s.repo.GetByID(ctx, callID)
	if err != nil {
		return err
	}
	logger.Warn("Call state conflict",
		zap.String("call_id", callID.String()),
		zap.String("op", op),
		zap.String("status", string(call.Status)))
	return apperrors.StateConflictError("Cannot " + op + " call in status " + string(call.Status))
}

// armTimeout registers a single-shot ring timer for a newly requested call
func (s *Service) armTimeout(callID, callerID, receiverID uuid.UUID, callerName string) {
	p := &pendingCall{
		callerID:   callerID,
		receiverID: receiverID,
		callerName: callerName,
	}
	p.timer = time.AfterFunc(s.ringTimeout, func() {
		s.fireTimeout(callID)
	})
	s.pending.Store(callID, p)
	s.metrics.SetPendingTimers(int(s.pendingCount.Add(1)))
}

// fireTimeout runs when a ring timer elapses. The call status is
// re-checked in storage before acting: if it left 'requested' in the
// meantime, the timeout is a no-op.
func (s *Service) fireTimeout(callID uuid.UUID) {
	v, loaded := s.pending.LoadAndDelete(callID)
	if !loaded {
		return
	}
	s.metrics.SetPendingTimers(int(s.pendingCount.Add(-1)))
	p := v.(*pendingCall)

	ctx, cancel := context.WithTimeout(context.Background(), constants.CallEventTimeout)
	defer cancel()

	missed, err := s.repo.MarkMissedIfRequested(ctx, callID, time.Now().UTC())
	if err != nil {
		logger.Error("Failed to apply ring timeout",
			zap.String("call_id", callID.String()),
			zap.Error(err))
		return
	}
	if !missed {
		// Answered, declined, or ended before the timer fired
		return
	}

	s.metrics.RecordCallTimeout()
	s.metrics.RecordCallTransition(string(domain.CallStatusMissed))
	logger.Info("Call timed out",
		zap.String("call_id", callID.String()),
		zap.String("caller_id", p.callerID.String()),
		zap.String("receiver_id", p.receiverID.String()))

	timeoutEvent := &event.CallTimeoutEvent{CallID: callID}
	s.notifier.ToUser(ctx, p.callerID, event.CallTimeout, timeoutEvent)
	s.notifier.ToUser(ctx, p.receiverID, event.CallTimeout, timeoutEvent)

	s.push.NotifyMissedCall(ctx, p.receiverID, callID, p.callerName)
}
