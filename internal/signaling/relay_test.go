package signaling

import (
	"testing"

	"live-support/pkg/logger"
)

func newRelayWith(t *testing.T, peers ...*fakePeer) *Relay {
	t.Helper()
	r := NewRelay(NewRegistry(), logger.Discard())
	for _, p := range peers {
		if err := r.Registry().Register(p); err != nil {
			t.Fatalf("register %s: %v", p.id, err)
		}
	}
	return r
}

func TestRelay_OfferGoesToCallerOnly(t *testing.T) {
	caller, agent := newFakePeer("caller_7"), newFakePeer("agent_3")
	r := newRelayWith(t, caller, agent)
	r.Handle(caller, JoinSession{SessionID: "s1"})
	r.Handle(agent, JoinSession{SessionID: "s1"})

	r.Handle(agent, Decode([]byte(`{"type":"offer","target":"s1","sdp":"X"}`)))

	got := caller.received()
	if len(got) != 1 || got[0] != `{"type":"offer","sdp":"X"}` {
		t.Fatalf("caller got %v", got)
	}
	if n := len(agent.received()); n != 0 {
		t.Fatalf("sender received %d frames", n)
	}
}

func TestRelay_AnswerGoesToFirstAgent(t *testing.T) {
	caller := newFakePeer("caller_7")
	a1, a2 := newFakePeer("agent_1"), newFakePeer("agent_2")
	r := newRelayWith(t, caller, a1, a2)
	for _, p := range []*fakePeer{caller, a1, a2} {
		r.Handle(p, JoinSession{SessionID: "s1"})
	}

	r.Handle(caller, Answer{Target: "s1", SDP: "Y"})

	if got := a1.received(); len(got) != 1 || got[0] != `{"type":"answer","sdp":"Y"}` {
		t.Fatalf("agent_1 got %v", got)
	}
	if len(a2.received()) != 0 {
		t.Fatalf("agent_2 must not receive the answer")
	}
}

func TestRelay_OfferWithoutCallerIsDropped(t *testing.T) {
	agent := newFakePeer("agent_3")
	r := newRelayWith(t, agent)
	r.Handle(agent, JoinSession{SessionID: "s1"})
	r.Handle(agent, Offer{Target: "s1", SDP: "X"})
	if len(agent.received()) != 0 {
		t.Fatalf("unexpected delivery")
	}
}

func TestRelay_ICEFansOutToOthers(t *testing.T) {
	a, b, c := newFakePeer("caller_1"), newFakePeer("agent_1"), newFakePeer("agent_2")
	r := newRelayWith(t, a, b, c)
	for _, p := range []*fakePeer{a, b, c} {
		r.Handle(p, JoinSession{SessionID: "s1"})
	}

	r.Handle(a, Decode([]byte(`{"type":"ice_candidate","target":"s1","candidate":{"candidate":"c1","sdpMid":"0"}}`)))

	want := `{"type":"ice_candidate","candidate":{"candidate":"c1","sdpMid":"0"}}`
	for _, p := range []*fakePeer{b, c} {
		if got := p.received(); len(got) != 1 || got[0] != want {
			t.Fatalf("%s got %v", p.id, got)
		}
	}
	if len(a.received()) != 0 {
		t.Fatalf("sender must not receive its own candidate")
	}
}

func TestRelay_FailingRecipientDoesNotBlockOthers(t *testing.T) {
	a, b, c := newFakePeer("caller_1"), newFakePeer("agent_1"), newFakePeer("agent_2")
	b.fail = true
	r := newRelayWith(t, a, b, c)
	for _, p := range []*fakePeer{a, b, c} {
		r.Handle(p, JoinSession{SessionID: "s1"})
	}

	if n := r.BroadcastSession("s1", "caller_1", CallEnded); n != 1 {
		t.Fatalf("sent=%d, want 1", n)
	}
	if len(c.received()) != 1 {
		t.Fatalf("healthy recipient missed the frame")
	}
}

func TestRelay_DisconnectCascadeRunsOnce(t *testing.T) {
	caller, agent := newFakePeer("caller_7"), newFakePeer("agent_3")
	r := newRelayWith(t, caller, agent)
	r.Handle(caller, JoinSession{SessionID: "s1"})
	r.Handle(agent, JoinSession{SessionID: "s1"})

	r.Disconnect(caller)
	r.Disconnect(caller)

	got := agent.received()
	if len(got) != 1 || got[0] != `{"type":"call_ended"}` {
		t.Fatalf("agent got %v", got)
	}
	if _, ok := r.Registry().Lookup("caller_7"); ok {
		t.Fatalf("caller still registered")
	}
	if r.Registry().InSession("s1", "caller_7") {
		t.Fatalf("caller still in session")
	}
}

func TestRelay_AnnouncePendingReachesAgentsOnly(t *testing.T) {
	caller, a1, a2 := newFakePeer("caller_1"), newFakePeer("agent_1"), newFakePeer("agent_2")
	r := newRelayWith(t, caller, a1, a2)

	r.AnnouncePending()

	for _, p := range []*fakePeer{a1, a2} {
		if got := p.received(); len(got) != 1 || got[0] != `{"type":"pending_update"}` {
			t.Fatalf("%s got %v", p.id, got)
		}
	}
	if len(caller.received()) != 0 {
		t.Fatalf("caller must not get pending_update")
	}
}

func TestRelay_IgnoredIsNoop(t *testing.T) {
	caller, agent := newFakePeer("caller_7"), newFakePeer("agent_3")
	r := newRelayWith(t, caller, agent)
	r.Handle(caller, JoinSession{SessionID: "s1"})
	r.Handle(agent, JoinSession{SessionID: "s1"})

	r.Handle(agent, Decode([]byte(`{"type":"bogus","target":"s1"}`)))
	r.Handle(agent, Decode([]byte(`not json`)))

	if len(caller.received()) != 0 {
		t.Fatalf("ignored frames must not be relayed")
	}
}
