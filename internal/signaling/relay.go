package signaling

import (
	"log/slog"

	"live-support/pkg/logger"
)

// Relay routes signaling frames between peers of the same session.
// Delivery is best-effort: a failing recipient is logged and skipped.
type Relay struct {
	reg *Registry
	log *slog.Logger
}

func NewRelay(reg *Registry, l *slog.Logger) *Relay {
	return &Relay{reg: reg, log: logger.Component(l, "signaling")}
}

func (r *Relay) Registry() *Registry { return r.reg }

// Handle applies one inbound message from a connected peer.
func (r *Relay) Handle(from Peer, msg Message) {
	switch m := msg.(type) {
	case JoinSession:
		r.reg.JoinSession(m.SessionID, from.ID())
	case Offer:
		r.sendToFirst(from, m.Target, RoleCaller, Outbound{Type: TypeOffer, SDP: m.SDP})
	case Answer:
		r.sendToFirst(from, m.Target, RoleAgent, Outbound{Type: TypeAnswer, SDP: m.SDP})
	case ICECandidate:
		r.BroadcastSession(m.Target, from.ID(), Outbound{Type: TypeICECandidate, Candidate: m.Candidate})
	case Ignored:
		r.log.Debug("message ignored", "client_id", from.ID(), "type", m.Type, "reason", m.Reason)
	default:
		r.log.Warn("unhandled message variant", "client_id", from.ID())
	}
}

// sendToFirst delivers to the earliest-joined live participant with role.
// No match drops the message.
func (r *Relay) sendToFirst(from Peer, sessionID string, role Role, out Outbound) {
	for _, p := range r.reg.MembersOf(sessionID) {
		if p.ID() == from.ID() || p.Role() != role {
			continue
		}
		r.deliver([]Peer{p}, out)
		return
	}
	r.log.Debug("no recipient", "session_id", sessionID, "type", out.Type, "role", string(role))
}

// BroadcastSession sends out to every live participant except exceptID.
// It returns the number of peers the frame was queued for.
func (r *Relay) BroadcastSession(sessionID, exceptID string, out Outbound) int {
	members := r.reg.MembersOf(sessionID)
	targets := members[:0]
	for _, p := range members {
		if p.ID() != exceptID {
			targets = append(targets, p)
		}
	}
	return r.deliver(targets, out)
}

// BroadcastRole sends out to every live peer with role.
func (r *Relay) BroadcastRole(role Role, out Outbound) int {
	return r.deliver(r.reg.Peers(role), out)
}

func (r *Relay) deliver(targets []Peer, out Outbound) int {
	if len(targets) == 0 {
		return 0
	}
	frame, err := out.encode()
	if err != nil {
		r.log.Error("encode outbound", "type", out.Type, "err", err)
		return 0
	}
	sent := 0
	for _, p := range targets {
		if err := p.Send(frame); err != nil {
			r.log.Debug("delivery failed", "client_id", p.ID(), "type", out.Type, "err", err)
			continue
		}
		sent++
	}
	return sent
}

// Disconnect runs the cleanup cascade for p: registry removal, session
// pruning and a call_ended notice to whoever remains. Repeated calls for the
// same peer are no-ops.
func (r *Relay) Disconnect(p Peer) {
	dep, ok := r.reg.Disconnect(p)
	if !ok {
		return
	}
	for _, s := range dep.Sessions {
		r.deliver(s.Remaining, CallEnded)
	}
	r.log.Info("client disconnected", "client_id", dep.ClientID, "sessions", len(dep.Sessions))
}

// The methods below are the hooks the call lifecycle uses.

func (r *Relay) JoinSession(sessionID, clientID string) {
	r.reg.JoinSession(sessionID, clientID)
}

func (r *Relay) AnnouncePending() {
	r.BroadcastRole(RoleAgent, PendingUpdate)
}

func (r *Relay) AnnounceCallEnded(sessionID, exceptID string) {
	r.BroadcastSession(sessionID, exceptID, CallEnded)
}

func (r *Relay) ReleaseSession(sessionID string) {
	r.reg.DropSession(sessionID)
}
