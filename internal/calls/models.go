package calls

import "time"

// Call is one support call attempt, keyed by its session id.
//
// Rows are never deleted; status only moves forward:
//
//	pending -> accepted -> ended
//	pending -> rejected
type Call struct {
	ID         string `json:"id"`
	SessionID  string `json:"session_id"`
	CallerID   string `json:"caller_id"`
	CallerName string `json:"caller_name"`
	AgentID    string `json:"agent_id,omitempty"`

	Status Status `json:"status"`

	StartTime time.Time  `json:"start_time"`
	EndTime   *time.Time `json:"end_time,omitempty"`

	// DurationSeconds is set when the call ends, floored to whole seconds.
	DurationSeconds *int `json:"duration,omitempty"`
}

type Status string

const (
	StatusPending  Status = "pending"
	StatusAccepted Status = "accepted"
	StatusRejected Status = "rejected"
	StatusEnded    Status = "ended"
)

// Terminal reports whether no further transition is possible.
func (s Status) Terminal() bool {
	return s == StatusRejected || s == StatusEnded
}

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusAccepted, StatusRejected, StatusEnded:
		return true
	default:
		return false
	}
}

type Action string

const (
	ActionAccept Action = "accept"
	ActionReject Action = "reject"
)

func (a Action) Valid() bool {
	return a == ActionAccept || a == ActionReject
}

const DefaultCallerName = "Anonymous"

// QuotaDay is the UTC calendar day an accept decision counts against.
func QuotaDay(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// FloorSeconds is the whole-second duration between start and end.
func FloorSeconds(start, end time.Time) int {
	d := end.Sub(start)
	if d < 0 {
		return 0
	}
	return int(d / time.Second)
}
