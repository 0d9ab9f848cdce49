package calls

import (
	"context"
	"time"

	"live-support/internal/apperr"
)

var (
	ErrCallNotFound    = apperr.New(apperr.ErrNotFound, "call not found")
	ErrSessionExists   = apperr.New(apperr.ErrConflict, "call already exists for session")
	ErrNotPending      = apperr.New(apperr.ErrConflict, "call is not pending")
	ErrQuotaExceeded   = apperr.New(apperr.ErrRateLimited, "daily call limit exceeded")
	ErrInvalidAction   = apperr.New(apperr.ErrInvalidInput, "action must be accept or reject")
	ErrMissingSession  = apperr.New(apperr.ErrInvalidInput, "session_id is required")
	ErrMissingCallerID = apperr.New(apperr.ErrInvalidInput, "caller_id is required")
	ErrMissingAgentID  = apperr.New(apperr.ErrInvalidInput, "agent_id is required to accept")
)

// Repository persists calls. Every mutating method is atomic with respect to
// its row; Accept is additionally atomic with the daily quota counter.
type Repository interface {
	Create(ctx context.Context, c Call) error
	GetBySession(ctx context.Context, sessionID string) (Call, error)

	// Accept moves a pending call to accepted and consumes one unit of the
	// quota for day. It returns ErrQuotaExceeded without any change when the
	// day already holds limit accepts, and ErrNotPending when the call has
	// left pending.
	Accept(ctx context.Context, sessionID, agentID string, day time.Time, limit int) (Call, error)

	// Reject moves a pending call to rejected.
	Reject(ctx context.Context, sessionID string) (Call, error)

	// End moves an accepted call to ended. changed is false, with the current
	// row, when the call was not in accepted.
	End(ctx context.Context, sessionID string, at time.Time) (c Call, changed bool, err error)

	List(ctx context.Context, q ListQuery) ([]Call, error)

	// QuotaUsed returns accepts already counted for day.
	QuotaUsed(ctx context.Context, day time.Time) (int, error)
}

// ListQuery filters history projections. Results are newest first.
type ListQuery struct {
	Status Status
	From   time.Time
	To     time.Time
	Limit  int
}
