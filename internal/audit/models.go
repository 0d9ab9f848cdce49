package audit

import "time"

// Event is an immutable, append-only audit log record.
//
// Invariants:
// - Events are never updated or deleted.
// - Actor and IP capture are best-effort; do not block critical flows on audit failures.
type Event struct {
	ID   string    `json:"id"`
	Type EventType `json:"type"`

	// Actor is the username or client id causing the event.
	Actor     string `json:"actor,omitempty"`
	ActorRole string `json:"actor_role,omitempty"`
	IPAddress string `json:"ip_address,omitempty"`

	SessionID string `json:"session_id,omitempty"`

	// Message is a short human-readable description for internal ops.
	Message string `json:"message,omitempty"`

	// Metadata is optional JSON for full details.
	Metadata string `json:"metadata,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

type EventType string

const (
	EventOTPRequested   EventType = "otp_requested"
	EventOTPVerified    EventType = "otp_verified"
	EventOTPFailed      EventType = "otp_failed"
	EventCallNotified   EventType = "call_notified"
	EventCallAccepted   EventType = "call_accepted"
	EventCallRejected   EventType = "call_rejected"
	EventCallEnded      EventType = "call_ended"
	EventRecordingSaved EventType = "recording_saved"
)
