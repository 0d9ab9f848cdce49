package calls

import (
	"context"
	"sort"
	"sync"
	"time"
)

// MemoryRepo is an in-process Repository for tests and local runs.
// One mutex covers calls and the quota map, which gives Accept the same
// all-or-nothing behavior as the Postgres transaction.
type MemoryRepo struct {
	mu    sync.Mutex
	calls map[string]Call
	quota map[time.Time]int
}

func NewMemoryRepo() *MemoryRepo {
	return &MemoryRepo{
		calls: make(map[string]Call),
		quota: make(map[time.Time]int),
	}
}

func (r *MemoryRepo) Create(_ context.Context, c Call) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.calls[c.SessionID]; ok {
		return ErrSessionExists
	}
	r.calls[c.SessionID] = c
	return nil
}

func (r *MemoryRepo) GetBySession(_ context.Context, sessionID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[sessionID]
	if !ok {
		return Call{}, ErrCallNotFound
	}
	return c, nil
}

func (r *MemoryRepo) Accept(_ context.Context, sessionID, agentID string, day time.Time, limit int) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[sessionID]
	if !ok {
		return Call{}, ErrCallNotFound
	}
	if c.Status != StatusPending {
		return Call{}, ErrNotPending
	}
	day = QuotaDay(day)
	if r.quota[day] >= limit {
		return Call{}, ErrQuotaExceeded
	}
	r.quota[day]++
	c.Status = StatusAccepted
	c.AgentID = agentID
	r.calls[sessionID] = c
	return c, nil
}

func (r *MemoryRepo) Reject(_ context.Context, sessionID string) (Call, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[sessionID]
	if !ok {
		return Call{}, ErrCallNotFound
	}
	if c.Status != StatusPending {
		return Call{}, ErrNotPending
	}
	c.Status = StatusRejected
	r.calls[sessionID] = c
	return c, nil
}

func (r *MemoryRepo) End(_ context.Context, sessionID string, at time.Time) (Call, bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	c, ok := r.calls[sessionID]
	if !ok {
		return Call{}, false, ErrCallNotFound
	}
	if c.Status != StatusAccepted {
		return c, false, nil
	}
	dur := FloorSeconds(c.StartTime, at)
	c.Status = StatusEnded
	c.EndTime = &at
	c.DurationSeconds = &dur
	r.calls[sessionID] = c
	return c, true, nil
}

func (r *MemoryRepo) List(_ context.Context, q ListQuery) ([]Call, error) {
	r.mu.Lock()
	out := make([]Call, 0, len(r.calls))
	for _, c := range r.calls {
		if q.Status != "" && c.Status != q.Status {
			continue
		}
		if !q.From.IsZero() && c.StartTime.Before(q.From) {
			continue
		}
		if !q.To.IsZero() && !c.StartTime.Before(q.To) {
			continue
		}
		out = append(out, c)
	}
	r.mu.Unlock()

	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.After(out[j].StartTime) })
	if q.Limit > 0 && len(out) > q.Limit {
		out = out[:q.Limit]
	}
	return out, nil
}

func (r *MemoryRepo) QuotaUsed(_ context.Context, day time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.quota[QuotaDay(day)], nil
}
