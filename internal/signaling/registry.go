package signaling

import (
	"sync"

	"live-support/internal/apperr"
)

var ErrAlreadyRegistered = apperr.New(apperr.ErrConflict, "client already connected")

// Peer is one live connection as seen by the registry and relay.
type Peer interface {
	ID() string
	Role() Role
	// Send queues a frame without blocking. It fails when the peer is
	// closed or its queue is full.
	Send(frame []byte) error
	Close()
}

// Departure is the result of removing a peer: every session it left and the
// live peers that remain in each.
type Departure struct {
	ClientID string
	Sessions []SessionRemainder
}

type SessionRemainder struct {
	SessionID string
	Remaining []Peer
}

// Registry maps client ids to live peers and session ids to ordered
// participant lists. All methods are safe for concurrent use.
type Registry struct {
	mu       sync.Mutex
	peers    map[string]Peer
	sessions map[string][]string
	joined   map[string]map[string]struct{}
}

func NewRegistry() *Registry {
	return &Registry{
		peers:    make(map[string]Peer),
		sessions: make(map[string][]string),
		joined:   make(map[string]map[string]struct{}),
	}
}

// Register adds p. A client id that is already live is rejected rather than
// replaced, so the existing socket keeps its handle.
func (r *Registry) Register(p Peer) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.peers[p.ID()]; ok {
		return ErrAlreadyRegistered
	}
	r.peers[p.ID()] = p
	return nil
}

// Unregister removes the peer for clientID. No-op if absent.
func (r *Registry) Unregister(clientID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.peers, clientID)
}

// Lookup returns the live peer for clientID.
func (r *Registry) Lookup(clientID string) (Peer, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.peers[clientID]
	return p, ok
}

// JoinSession adds clientID to the session, creating it if absent.
// Joining twice keeps the original position.
func (r *Registry) JoinSession(sessionID, clientID string) {
	if sessionID == "" || clientID == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.joinLocked(sessionID, clientID)
}

func (r *Registry) joinLocked(sessionID, clientID string) {
	set := r.joined[clientID]
	if set == nil {
		set = make(map[string]struct{})
		r.joined[clientID] = set
	}
	if _, ok := set[sessionID]; ok {
		return
	}
	set[sessionID] = struct{}{}
	r.sessions[sessionID] = append(r.sessions[sessionID], clientID)
}

// LeaveAll removes clientID from every session and returns the session ids
// it left. Sessions that become empty are deleted.
func (r *Registry) LeaveAll(clientID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.leaveAllLocked(clientID)
}

func (r *Registry) leaveAllLocked(clientID string) []string {
	set := r.joined[clientID]
	if len(set) == 0 {
		delete(r.joined, clientID)
		return nil
	}
	left := make([]string, 0, len(set))
	for sid := range set {
		r.removeMemberLocked(sid, clientID)
		left = append(left, sid)
	}
	delete(r.joined, clientID)
	return left
}

func (r *Registry) removeMemberLocked(sessionID, clientID string) {
	members := r.sessions[sessionID]
	for i, id := range members {
		if id == clientID {
			members = append(members[:i:i], members[i+1:]...)
			break
		}
	}
	if len(members) == 0 {
		delete(r.sessions, sessionID)
		return
	}
	r.sessions[sessionID] = members
}

// MembersOf returns the live peers in the session in join order.
// Participants without a live connection are skipped.
func (r *Registry) MembersOf(sessionID string) []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.membersLocked(sessionID)
}

func (r *Registry) membersLocked(sessionID string) []Peer {
	ids := r.sessions[sessionID]
	out := make([]Peer, 0, len(ids))
	for _, id := range ids {
		if p, ok := r.peers[id]; ok {
			out = append(out, p)
		}
	}
	return out
}

// Participants returns the ids recorded for a session, live or not.
func (r *Registry) Participants(sessionID string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.sessions[sessionID]...)
}

// InSession reports whether clientID participates in sessionID.
func (r *Registry) InSession(sessionID, clientID string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.joined[clientID][sessionID]
	return ok
}

// DropSession forgets a session and all of its participants.
func (r *Registry) DropSession(sessionID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropSessionLocked(sessionID)
}

func (r *Registry) dropSessionLocked(sessionID string) {
	for _, id := range r.sessions[sessionID] {
		if set := r.joined[id]; set != nil {
			delete(set, sessionID)
			if len(set) == 0 {
				delete(r.joined, id)
			}
		}
	}
	delete(r.sessions, sessionID)
}

// Peers returns every live peer with the given role.
func (r *Registry) Peers(role Role) []Peer {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []Peer
	for _, p := range r.peers {
		if p.Role() == role {
			out = append(out, p)
		}
	}
	return out
}

// Disconnect removes p from the registry and from every session in one step.
// A session left with no live member is dropped along with any ids that
// never connected. It only acts when p is still the registered handle for
// its id, so the second of two racing calls for the same peer returns false.
func (r *Registry) Disconnect(p Peer) (Departure, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	id := p.ID()
	if cur, ok := r.peers[id]; !ok || cur != p {
		return Departure{}, false
	}
	delete(r.peers, id)

	dep := Departure{ClientID: id}
	for _, sid := range r.leaveAllLocked(id) {
		remaining := r.membersLocked(sid)
		if len(remaining) == 0 {
			r.dropSessionLocked(sid)
		}
		dep.Sessions = append(dep.Sessions, SessionRemainder{
			SessionID: sid,
			Remaining: remaining,
		})
	}
	return dep, true
}

// Stats is a point-in-time size snapshot.
type Stats struct {
	Connections int
	Sessions    int
}

func (r *Registry) Stats() Stats {
	r.mu.Lock()
	defer r.mu.Unlock()
	return Stats{Connections: len(r.peers), Sessions: len(r.sessions)}
}
