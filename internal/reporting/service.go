package reporting

import (
	"context"
	"errors"
	"strings"
	"time"

	"live-support/internal/apperr"
	"live-support/internal/calls"
)

const DayLayout = "2006-01-02"

var ErrInvalidRequest = apperr.New(apperr.ErrInvalidInput, "reporting: invalid request")

// Repository is the read side reporting needs. calls repositories satisfy it.
type Repository interface {
	List(ctx context.Context, q calls.ListQuery) ([]calls.Call, error)
	QuotaUsed(ctx context.Context, day time.Time) (int, error)
}

type Service struct {
	repo       Repository
	dailyLimit int
	clock      func() time.Time
}

func NewService(repo Repository, dailyLimit int) *Service {
	if dailyLimit <= 0 {
		dailyLimit = calls.DefaultDailyLimit
	}
	return &Service{repo: repo, dailyLimit: dailyLimit, clock: time.Now}
}

func (s *Service) CallsSummary(ctx context.Context, r TimeRange) (CallsSummary, error) {
	if r.From.IsZero() || r.To.IsZero() || !r.To.After(r.From) {
		return CallsSummary{}, ErrInvalidRequest
	}
	if s.repo == nil {
		return CallsSummary{}, errors.New("reporting: repository not configured")
	}

	rows, err := s.repo.List(ctx, calls.ListQuery{From: r.From, To: r.To})
	if err != nil {
		return CallsSummary{}, err
	}

	out := CallsSummary{Range: r}
	for _, c := range rows {
		out.TotalCalls++
		switch c.Status {
		case calls.StatusPending:
			out.PendingCalls++
		case calls.StatusAccepted:
			out.AcceptedCalls++
		case calls.StatusRejected:
			out.RejectedCalls++
		case calls.StatusEnded:
			out.EndedCalls++
			if c.DurationSeconds != nil {
				out.TotalDurationSeconds += *c.DurationSeconds
			}
		}
	}
	if out.EndedCalls > 0 {
		out.AverageDurationSeconds = out.TotalDurationSeconds / out.EndedCalls
	}
	return out, nil
}

// ParseDay reads a YYYY-MM-DD day. Blank means today in UTC.
func (s *Service) ParseDay(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return calls.QuotaDay(s.clock()), nil
	}
	d, err := time.Parse(DayLayout, raw)
	if err != nil {
		return time.Time{}, ErrInvalidRequest
	}
	return d.UTC(), nil
}

func (s *Service) Daily(ctx context.Context, day time.Time) (DailySummary, error) {
	day = calls.QuotaDay(day)
	sum, err := s.CallsSummary(ctx, TimeRange{From: day, To: day.AddDate(0, 0, 1)})
	if err != nil {
		return DailySummary{}, err
	}
	used, err := s.repo.QuotaUsed(ctx, day)
	if err != nil {
		return DailySummary{}, err
	}

	out := DailySummary{
		Day:          day.Format(DayLayout),
		CallsSummary: sum,
		QuotaLimit:   s.dailyLimit,
		QuotaUsed:    used,
	}
	if used < s.dailyLimit {
		out.QuotaRemaining = s.dailyLimit - used
	}
	return out, nil
}
