package reporting

import "time"

type TimeRange struct {
	From time.Time `json:"from"`
	To   time.Time `json:"to"`
}

// CallsSummary aggregates calls whose start time falls inside a range.
type CallsSummary struct {
	Range TimeRange `json:"range"`

	TotalCalls    int `json:"total_calls"`
	PendingCalls  int `json:"pending_calls"`
	AcceptedCalls int `json:"accepted_calls"`
	RejectedCalls int `json:"rejected_calls"`
	EndedCalls    int `json:"ended_calls"`

	// Durations only count ended calls.
	TotalDurationSeconds   int `json:"total_duration_seconds"`
	AverageDurationSeconds int `json:"average_duration_seconds"`
}

// DailySummary is CallsSummary for one UTC day plus the accept quota state.
type DailySummary struct {
	Day string `json:"day"`
	CallsSummary

	QuotaLimit     int `json:"quota_limit"`
	QuotaUsed      int `json:"quota_used"`
	QuotaRemaining int `json:"quota_remaining"`
}
