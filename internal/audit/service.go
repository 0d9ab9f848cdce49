package audit

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// Repository is the persistence contract for audit events.
//
// It MUST be append-only.
type Repository interface {
	Append(ctx context.Context, e Event) error
}

// Service records internal audit information.
// Callers should treat audit logging as best-effort.
type Service struct {
	repo  Repository
	clock func() time.Time
	log   *slog.Logger
}

func NewService(repo Repository, l *slog.Logger) *Service {
	if l == nil {
		l = slog.Default()
	}
	return &Service{repo: repo, clock: time.Now, log: l.With("component", "audit")}
}

var ErrInvalidEvent = errors.New("audit: invalid event")

func (s *Service) Append(ctx context.Context, e Event) error {
	if s.repo == nil {
		return errors.New("audit: repository not configured")
	}
	if e.Type == "" {
		return ErrInvalidEvent
	}

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = s.clock().UTC()
	}
	if e.Metadata == "" {
		e.Metadata = "{}"
	}
	if e.IPAddress == "" {
		e.IPAddress = ClientIPFromContext(ctx)
	}
	return s.repo.Append(ctx, e)
}

// Record appends e and logs instead of failing. Use it on request paths.
func (s *Service) Record(ctx context.Context, e Event) {
	if s == nil {
		return
	}
	if err := s.Append(ctx, e); err != nil {
		s.log.Warn("audit append failed", "type", string(e.Type), "err", err)
	}
}

// LogOTP records an OTP lifecycle step for username.
func (s *Service) LogOTP(ctx context.Context, t EventType, username, ip, message string) {
	s.Record(ctx, Event{
		Type:      t,
		Actor:     username,
		IPAddress: ip,
		Message:   message,
	})
}
