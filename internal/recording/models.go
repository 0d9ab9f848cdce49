package recording

import (
	"context"
	"strings"
	"time"

	"live-support/internal/apperr"
)

// NoSession is the key placeholder for recordings started without a session.
const NoSession = "nosess"

const defaultRole = "unknown"

var (
	ErrMissingOffer = apperr.New(apperr.ErrInvalidInput, "sdp is required")
	ErrBadOfferType = apperr.New(apperr.ErrInvalidInput, "type must be offer")
)

// Key identifies one recorder slot. At most one recorder is live per key.
type Key struct {
	SessionID string
	Role      string
}

// NewKey normalizes raw request fields into a Key.
func NewKey(sessionID, role string) Key {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		sessionID = NoSession
	}
	role = strings.TrimSpace(role)
	if role == "" {
		role = defaultRole
	}
	return Key{SessionID: sessionID, Role: role}
}

// HasSession reports whether the key belongs to a real call session.
func (k Key) HasSession() bool {
	return k.SessionID != "" && k.SessionID != NoSession
}

func (k Key) String() string { return k.SessionID + "::" + k.Role }

// Description is an SDP offer or answer.
type Description struct {
	Type string `json:"type"`
	SDP  string `json:"sdp"`
}

// Metadata is the persisted record of a finished recording.
type Metadata struct {
	ID        string    `json:"id"`
	SessionID string    `json:"session_id"`
	Role      string    `json:"role"`
	FilePath  string    `json:"file_path"`
	Files     []string  `json:"files,omitempty"`
	Size      int64     `json:"size"`
	CreatedAt time.Time `json:"created_at"`
}

// Pipeline is one live capture. Close flushes every output file and releases
// the underlying media resources; it must be safe to call once.
type Pipeline interface {
	Files() []string
	Close(ctx context.Context) error
}

// PipelineFactory negotiates a new capture from an offer. basePath is the
// output path without extension; implementations choose extensions per track.
type PipelineFactory interface {
	Start(ctx context.Context, basePath string, offer Description) (Pipeline, Description, error)
}

// Repository persists finished recording metadata.
type Repository interface {
	Save(ctx context.Context, m Metadata) error
	ListBySession(ctx context.Context, sessionID string) ([]Metadata, error)
}
