package signaling

import (
	"encoding/json"
	"strings"
)

// Message is the closed set of inbound signaling frames. Every frame decodes
// to exactly one variant; anything unrecognised becomes Ignored.
type Message interface {
	isMessage()
}

type JoinSession struct {
	SessionID string
}

type Offer struct {
	Target string
	SDP    string
}

type Answer struct {
	Target string
	SDP    string
}

type ICECandidate struct {
	Target    string
	Candidate json.RawMessage
}

// Ignored carries the raw type tag for logging.
type Ignored struct {
	Type   string
	Reason string
}

func (JoinSession) isMessage()  {}
func (Offer) isMessage()        {}
func (Answer) isMessage()       {}
func (ICECandidate) isMessage() {}
func (Ignored) isMessage()      {}

const (
	TypeJoinSession   = "join_session"
	TypeOffer         = "offer"
	TypeAnswer        = "answer"
	TypeICECandidate  = "ice_candidate"
	TypePendingUpdate = "pending_update"
	TypeCallEnded     = "call_ended"
)

type envelope struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id"`
	Target    string          `json:"target"`
	SDP       string          `json:"sdp"`
	Candidate json.RawMessage `json:"candidate"`
}

// Decode parses one frame. It never fails: malformed input and unknown types
// map to Ignored, and variants missing their routing field do too.
func Decode(raw []byte) Message {
	var env envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Ignored{Reason: "malformed json"}
	}

	switch env.Type {
	case TypeJoinSession:
		if env.SessionID == "" {
			return Ignored{Type: env.Type, Reason: "missing session_id"}
		}
		return JoinSession{SessionID: env.SessionID}
	case TypeOffer:
		if env.Target == "" {
			return Ignored{Type: env.Type, Reason: "missing target"}
		}
		return Offer{Target: env.Target, SDP: env.SDP}
	case TypeAnswer:
		if env.Target == "" {
			return Ignored{Type: env.Type, Reason: "missing target"}
		}
		return Answer{Target: env.Target, SDP: env.SDP}
	case TypeICECandidate:
		if env.Target == "" {
			return Ignored{Type: env.Type, Reason: "missing target"}
		}
		return ICECandidate{Target: env.Target, Candidate: env.Candidate}
	default:
		return Ignored{Type: env.Type, Reason: "unknown type"}
	}
}

// Outbound is a server-to-client frame.
type Outbound struct {
	Type      string          `json:"type"`
	SDP       string          `json:"sdp,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

func (o Outbound) encode() ([]byte, error) {
	return json.Marshal(o)
}

var (
	PendingUpdate = Outbound{Type: TypePendingUpdate}
	CallEnded     = Outbound{Type: TypeCallEnded}
)

// Role is a connection's side of a call.
type Role string

const (
	RoleAgent   Role = "agent"
	RoleCaller  Role = "caller"
	RoleUnknown Role = "unknown"
)

// RoleOf derives the role from the client id prefix used in connection URLs.
func RoleOf(clientID string) Role {
	switch {
	case strings.HasPrefix(clientID, "agent_"):
		return RoleAgent
	case strings.HasPrefix(clientID, "caller_"):
		return RoleCaller
	default:
		return RoleUnknown
	}
}
