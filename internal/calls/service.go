package calls

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"live-support/pkg/logger"

	"github.com/google/uuid"
)

const (
	DefaultDailyLimit   = 10
	DefaultHistoryLimit = 50
	MaxHistoryLimit     = 500
)

// Signal is the real-time side of the lifecycle: session membership and the
// pushes agents and callers receive.
type Signal interface {
	JoinSession(sessionID, clientID string)
	AnnouncePending()
	AnnounceCallEnded(sessionID, exceptClientID string)
	ReleaseSession(sessionID string)
}

// Alerter tells humans about a new call out of band.
type Alerter interface {
	NotifyIncomingCall(ctx context.Context, callerName, sessionID string) (bool, error)
}

// EventHook observes successful transitions.
type EventHook interface {
	CallTransitioned(ctx context.Context, c Call, actor string)
}

type Options struct {
	DailyLimit   int
	HistoryLimit int // History page size when the caller passes none
	Alerter      Alerter
	Hook         EventHook
	Logger       *slog.Logger
}

// Service owns the call state machine and the daily accept quota.
type Service struct {
	repo         Repository
	signal       Signal
	alerter      Alerter
	hook         EventHook
	log          *slog.Logger
	clock        func() time.Time
	dailyLimit   int
	historyLimit int
}

func NewService(repo Repository, signal Signal, opts Options) *Service {
	if opts.DailyLimit <= 0 {
		opts.DailyLimit = DefaultDailyLimit
	}
	if opts.HistoryLimit <= 0 || opts.HistoryLimit > MaxHistoryLimit {
		opts.HistoryLimit = DefaultHistoryLimit
	}
	return &Service{
		repo:         repo,
		signal:       signal,
		alerter:      opts.Alerter,
		hook:         opts.Hook,
		log:          logger.Component(opts.Logger, "calls"),
		clock:        time.Now,
		dailyLimit:   opts.DailyLimit,
		historyLimit: opts.HistoryLimit,
	}
}

func (s *Service) DailyLimit() int { return s.dailyLimit }

type NotifyRequest struct {
	CallerID   string
	CallerName string
	SessionID  string
}

// Notify registers an incoming call as pending, joins the caller to the
// session and alerts agents.
func (s *Service) Notify(ctx context.Context, req NotifyRequest) (Call, error) {
	req.SessionID = strings.TrimSpace(req.SessionID)
	req.CallerID = strings.TrimSpace(req.CallerID)
	if req.SessionID == "" {
		return Call{}, ErrMissingSession
	}
	if req.CallerID == "" {
		return Call{}, ErrMissingCallerID
	}
	name := strings.TrimSpace(req.CallerName)
	if name == "" {
		name = DefaultCallerName
	}

	c := Call{
		ID:         uuid.NewString(),
		SessionID:  req.SessionID,
		CallerID:   req.CallerID,
		CallerName: name,
		Status:     StatusPending,
		StartTime:  s.clock().UTC(),
	}
	if err := s.repo.Create(ctx, c); err != nil {
		return Call{}, fmt.Errorf("notify: %w", err)
	}

	s.signal.JoinSession(c.SessionID, c.CallerID)

	if s.alerter != nil {
		if sent, err := s.alerter.NotifyIncomingCall(ctx, c.CallerName, c.SessionID); err != nil {
			s.log.Warn("incoming call alert failed", "session_id", c.SessionID, "err", err)
		} else if !sent {
			s.log.Debug("incoming call alert skipped", "session_id", c.SessionID)
		}
	}

	s.signal.AnnouncePending()
	s.emit(ctx, c, c.CallerID)
	s.log.Info("call pending", "session_id", c.SessionID, "caller_id", c.CallerID)
	return c, nil
}

// Respond applies an agent's accept or reject decision to a pending call.
func (s *Service) Respond(ctx context.Context, sessionID string, action Action, agentID string) (Call, error) {
	if strings.TrimSpace(sessionID) == "" {
		return Call{}, ErrMissingSession
	}
	if !action.Valid() {
		return Call{}, ErrInvalidAction
	}

	var (
		c   Call
		err error
	)
	switch action {
	case ActionAccept:
		if agentID == "" {
			return Call{}, ErrMissingAgentID
		}
		c, err = s.repo.Accept(ctx, sessionID, agentID, QuotaDay(s.clock()), s.dailyLimit)
		if err != nil {
			return Call{}, fmt.Errorf("accept: %w", err)
		}
		s.signal.JoinSession(sessionID, agentID)
	case ActionReject:
		c, err = s.repo.Reject(ctx, sessionID)
		if err != nil {
			return Call{}, fmt.Errorf("reject: %w", err)
		}
		s.signal.AnnounceCallEnded(sessionID, agentID)
		s.signal.ReleaseSession(sessionID)
	}

	s.signal.AnnouncePending()
	s.emit(ctx, c, agentID)
	s.log.Info("call responded", "session_id", sessionID, "action", string(action), "agent_id", agentID)
	return c, nil
}

// EndResult reports whether End changed the call.
type EndResult struct {
	Call    Call
	Changed bool
}

// End finishes an accepted call. Ending a call in any other state succeeds
// without effect, since a disconnect may already have raced this request.
// endedBy, when set, is excluded from the call_ended push.
func (s *Service) End(ctx context.Context, sessionID, endedBy string) (EndResult, error) {
	if strings.TrimSpace(sessionID) == "" {
		return EndResult{}, ErrMissingSession
	}

	c, changed, err := s.repo.End(ctx, sessionID, s.clock().UTC())
	if err != nil {
		return EndResult{}, fmt.Errorf("end: %w", err)
	}
	if !changed {
		return EndResult{Call: c}, nil
	}

	s.signal.AnnounceCallEnded(sessionID, endedBy)
	s.signal.ReleaseSession(sessionID)
	s.emit(ctx, c, endedBy)
	s.log.Info("call ended", "session_id", sessionID, "duration_s", *c.DurationSeconds)
	return EndResult{Call: c, Changed: true}, nil
}

func (s *Service) History(ctx context.Context, limit int) ([]Call, error) {
	if limit <= 0 {
		limit = s.historyLimit
	}
	if limit > MaxHistoryLimit {
		limit = MaxHistoryLimit
	}
	return s.repo.List(ctx, ListQuery{Limit: limit})
}

func (s *Service) Pending(ctx context.Context) ([]Call, error) {
	return s.repo.List(ctx, ListQuery{Status: StatusPending})
}

// Get returns the call for a session.
func (s *Service) Get(ctx context.Context, sessionID string) (Call, error) {
	return s.repo.GetBySession(ctx, sessionID)
}

func (s *Service) emit(ctx context.Context, c Call, actor string) {
	if s.hook != nil {
		s.hook.CallTransitioned(ctx, c, actor)
	}
}
