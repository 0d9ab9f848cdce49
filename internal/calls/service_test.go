package calls

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"live-support/internal/apperr"
	"live-support/internal/audit"
	"live-support/pkg/logger"
)

type fakeSignal struct {
	mu       sync.Mutex
	joins    []string
	pending  int
	ended    []string
	released []string
}

func (f *fakeSignal) JoinSession(sessionID, clientID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.joins = append(f.joins, sessionID+"/"+clientID)
}

func (f *fakeSignal) AnnouncePending() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending++
}

func (f *fakeSignal) AnnounceCallEnded(sessionID, except string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ended = append(f.ended, sessionID+"-"+except)
}

func (f *fakeSignal) ReleaseSession(sessionID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.released = append(f.released, sessionID)
}

type fakeAlerter struct {
	calls []string
	err   error
}

func (f *fakeAlerter) NotifyIncomingCall(_ context.Context, name, sessionID string) (bool, error) {
	f.calls = append(f.calls, name+"@"+sessionID)
	return f.err == nil, f.err
}

type fixture struct {
	svc    *Service
	repo   *MemoryRepo
	signal *fakeSignal
	alert  *fakeAlerter
	events *audit.MemoryRepo
	now    time.Time
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	f := &fixture{
		repo:   NewMemoryRepo(),
		signal: &fakeSignal{},
		alert:  &fakeAlerter{},
		events: audit.NewMemoryRepo(),
		now:    time.Unix(1700000000, 0).UTC(),
	}
	f.svc = NewService(f.repo, f.signal, Options{
		Alerter: f.alert,
		Hook:    AuditAdapter{Audit: audit.NewService(f.events, logger.Discard())},
		Logger:  logger.Discard(),
	})
	f.svc.clock = func() time.Time { return f.now }
	return f
}

func (f *fixture) notify(t *testing.T, sessionID string) Call {
	t.Helper()
	c, err := f.svc.Notify(context.Background(), NotifyRequest{CallerID: "caller_" + sessionID, SessionID: sessionID})
	if err != nil {
		t.Fatalf("notify %s: %v", sessionID, err)
	}
	return c
}

func TestNotify_CreatesPendingAndAlerts(t *testing.T) {
	f := newFixture(t)

	c, err := f.svc.Notify(context.Background(), NotifyRequest{CallerID: "caller_7", SessionID: "s1"})
	if err != nil {
		t.Fatalf("notify: %v", err)
	}
	if c.Status != StatusPending || c.CallerName != DefaultCallerName || !c.StartTime.Equal(f.now) {
		t.Fatalf("unexpected call %+v", c)
	}
	if len(f.signal.joins) != 1 || f.signal.joins[0] != "s1/caller_7" {
		t.Fatalf("caller not joined: %v", f.signal.joins)
	}
	if f.signal.pending != 1 {
		t.Fatalf("expected pending_update broadcast")
	}
	if len(f.alert.calls) != 1 || f.alert.calls[0] != "Anonymous@s1" {
		t.Fatalf("alert=%v", f.alert.calls)
	}
	if len(f.events.OfType(audit.EventCallNotified)) != 1 {
		t.Fatalf("expected audit event")
	}
}

func TestNotify_Validation(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	if _, err := f.svc.Notify(ctx, NotifyRequest{CallerID: "caller_1"}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("missing session: %v", err)
	}
	if _, err := f.svc.Notify(ctx, NotifyRequest{SessionID: "s1"}); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("missing caller: %v", err)
	}

	f.notify(t, "s1")
	if _, err := f.svc.Notify(ctx, NotifyRequest{CallerID: "caller_2", SessionID: "s1"}); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("duplicate session: %v", err)
	}
}

func TestNotify_AlertFailureIsNotFatal(t *testing.T) {
	f := newFixture(t)
	f.alert.err = errors.New("telegram down")
	f.notify(t, "s1")
	if f.signal.pending != 1 {
		t.Fatalf("agents must still be told")
	}
}

func TestRespond_AcceptJoinsAgent(t *testing.T) {
	f := newFixture(t)
	f.notify(t, "s1")

	c, err := f.svc.Respond(context.Background(), "s1", ActionAccept, "agent_3")
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if c.Status != StatusAccepted || c.AgentID != "agent_3" {
		t.Fatalf("unexpected call %+v", c)
	}
	if got := f.signal.joins[len(f.signal.joins)-1]; got != "s1/agent_3" {
		t.Fatalf("agent not joined: %v", f.signal.joins)
	}
	if n, _ := f.repo.QuotaUsed(context.Background(), f.now); n != 1 {
		t.Fatalf("quota used=%d", n)
	}
}

func TestRespond_Errors(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notify(t, "s1")

	if _, err := f.svc.Respond(ctx, "s1", Action("maybe"), "agent_3"); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("invalid action: %v", err)
	}
	if _, err := f.svc.Respond(ctx, "s1", ActionAccept, ""); !errors.Is(err, apperr.ErrInvalidInput) {
		t.Fatalf("missing agent: %v", err)
	}
	if _, err := f.svc.Respond(ctx, "nope", ActionAccept, "agent_3"); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("unknown session: %v", err)
	}

	if _, err := f.svc.Respond(ctx, "s1", ActionReject, "agent_3"); err != nil {
		t.Fatalf("reject: %v", err)
	}
	if _, err := f.svc.Respond(ctx, "s1", ActionReject, "agent_3"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("second reject must conflict: %v", err)
	}
	if _, err := f.svc.Respond(ctx, "s1", ActionAccept, "agent_4"); !errors.Is(err, apperr.ErrConflict) {
		t.Fatalf("accept after reject must conflict: %v", err)
	}
	if len(f.signal.released) != 1 || f.signal.released[0] != "s1" {
		t.Fatalf("rejected session not released: %v", f.signal.released)
	}
}

func TestRespond_AcceptTwiceConflictsWithoutSpendingQuota(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notify(t, "s1")

	if _, err := f.svc.Respond(ctx, "s1", ActionAccept, "agent_3"); err != nil {
		t.Fatalf("accept: %v", err)
	}
	if _, err := f.svc.Respond(ctx, "s1", ActionAccept, "agent_4"); !errors.Is(err, ErrNotPending) {
		t.Fatalf("expected ErrNotPending, got %v", err)
	}
	if n, _ := f.repo.QuotaUsed(ctx, f.now); n != 1 {
		t.Fatalf("quota used=%d", n)
	}
}

func TestRespond_DailyQuotaUnderConcurrency(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	const sessions = 15
	for i := 0; i < sessions; i++ {
		f.notify(t, fmt.Sprintf("s%d", i))
	}

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		limited  int
	)
	for i := 0; i < sessions; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := f.svc.Respond(ctx, fmt.Sprintf("s%d", i), ActionAccept, fmt.Sprintf("agent_%d", i))
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, apperr.ErrRateLimited):
				limited++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	if accepted != DefaultDailyLimit || limited != sessions-DefaultDailyLimit {
		t.Fatalf("accepted=%d limited=%d", accepted, limited)
	}

	pending, _ := f.svc.Pending(ctx)
	if len(pending) != sessions-DefaultDailyLimit {
		t.Fatalf("quota-rejected calls must stay pending, got %d", len(pending))
	}
	if used, _ := f.repo.QuotaUsed(ctx, QuotaDay(f.now)); used != DefaultDailyLimit {
		t.Fatalf("quota used=%d", used)
	}

	// next UTC day starts a fresh counter
	f.now = f.now.Add(24 * time.Hour)
	if _, err := f.svc.Respond(ctx, pending[0].SessionID, ActionAccept, "agent_x"); err != nil {
		t.Fatalf("accept on next day: %v", err)
	}
}

func TestEnd_FloorsDurationAndIsIdempotent(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notify(t, "s1")
	if _, err := f.svc.Respond(ctx, "s1", ActionAccept, "agent_3"); err != nil {
		t.Fatalf("accept: %v", err)
	}

	f.now = f.now.Add(95*time.Second + 900*time.Millisecond)
	res, err := f.svc.End(ctx, "s1", "agent_3")
	if err != nil {
		t.Fatalf("end: %v", err)
	}
	if !res.Changed || res.Call.Status != StatusEnded {
		t.Fatalf("unexpected result %+v", res)
	}
	if res.Call.DurationSeconds == nil || *res.Call.DurationSeconds != 95 {
		t.Fatalf("duration=%v", res.Call.DurationSeconds)
	}
	if len(f.signal.ended) != 1 || f.signal.ended[0] != "s1-agent_3" {
		t.Fatalf("call_ended push=%v", f.signal.ended)
	}

	f.now = f.now.Add(time.Minute)
	again, err := f.svc.End(ctx, "s1", "")
	if err != nil {
		t.Fatalf("second end: %v", err)
	}
	if again.Changed || *again.Call.DurationSeconds != 95 {
		t.Fatalf("second end must be a no-op, got %+v", again)
	}
	if len(f.signal.ended) != 1 {
		t.Fatalf("no second broadcast expected")
	}
}

func TestEnd_PendingIsNoopAndUnknownIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.notify(t, "s1")

	res, err := f.svc.End(ctx, "s1", "")
	if err != nil || res.Changed || res.Call.Status != StatusPending {
		t.Fatalf("pending end: %+v %v", res, err)
	}
	if _, err := f.svc.End(ctx, "nope", ""); !errors.Is(err, apperr.ErrNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestHistory_NewestFirstWithLimit(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 0; i < 5; i++ {
		f.notify(t, fmt.Sprintf("s%d", i))
		f.now = f.now.Add(time.Minute)
	}

	got, err := f.svc.History(ctx, 3)
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if len(got) != 3 || got[0].SessionID != "s4" || got[2].SessionID != "s2" {
		t.Fatalf("unexpected order: %v", sessionIDs(got))
	}

	all, _ := f.svc.History(ctx, 0)
	if len(all) != 5 {
		t.Fatalf("default limit should include all 5, got %d", len(all))
	}
}

func sessionIDs(cs []Call) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.SessionID
	}
	return out
}

func TestStatusHelpers(t *testing.T) {
	if StatusPending.Terminal() || StatusAccepted.Terminal() {
		t.Fatalf("pending and accepted are not terminal")
	}
	if !StatusRejected.Terminal() || !StatusEnded.Terminal() {
		t.Fatalf("rejected and ended are terminal")
	}
	if Status("nope").Valid() || !StatusEnded.Valid() {
		t.Fatalf("Valid mismatch")
	}
	if got := QuotaDay(time.Date(2024, 3, 9, 23, 59, 0, 0, time.FixedZone("x", -3600))); !got.Equal(time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)) {
		t.Fatalf("QuotaDay must use UTC, got %v", got)
	}
}
