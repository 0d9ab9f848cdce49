package calls

import (
	"context"
	"encoding/json"

	"live-support/internal/audit"
)

// AuditAdapter bridges call transitions to the shared audit.Service.
type AuditAdapter struct {
	Audit *audit.Service
}

func (a AuditAdapter) CallTransitioned(ctx context.Context, c Call, actor string) {
	if a.Audit == nil {
		return
	}
	var t audit.EventType
	switch c.Status {
	case StatusPending:
		t = audit.EventCallNotified
	case StatusAccepted:
		t = audit.EventCallAccepted
	case StatusRejected:
		t = audit.EventCallRejected
	case StatusEnded:
		t = audit.EventCallEnded
	default:
		return
	}

	meta := map[string]any{"call_id": c.ID, "caller_id": c.CallerID}
	if c.AgentID != "" {
		meta["agent_id"] = c.AgentID
	}
	if c.DurationSeconds != nil {
		meta["duration"] = *c.DurationSeconds
	}
	raw, _ := json.Marshal(meta)

	a.Audit.Record(ctx, audit.Event{
		Type:      t,
		Actor:     actor,
		SessionID: c.SessionID,
		Message:   "call " + string(c.Status),
		Metadata:  string(raw),
	})
}
