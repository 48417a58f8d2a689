package match

import (
	"errors"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/AdAstra10/solmegle-sub000/internal/protocol"
	"github.com/AdAstra10/solmegle-sub000/internal/registry"
)

// Compile-time interface checks.
var (
	_ SessionLog  = (*fakeLog)(nil)
	_ ICEProvider = (*fakeICE)(nil)
)

// fakeLog records CreateSession calls for assertions.
type fakeLog struct {
	created [][3]string // sessionID, a, b
}

func (f *fakeLog) CreateSession(sessionID, a, b string, at time.Time) {
	f.created = append(f.created, [3]string{sessionID, a, b})
}

type fakeICE struct{}

func (fakeICE) Servers() []webrtc.ICEServer {
	return []webrtc.ICEServer{{URLs: []string{"stun:stun.test:3478"}}}
}

func newTestEngine() (*Engine, *registry.Registry, *fakeLog) {
	reg := registry.New()
	log := &fakeLog{}
	return NewEngine(reg, fakeICE{}, log), reg, log
}

func connect(reg *registry.Registry, id string) *registry.Connection {
	c := registry.NewConnection(id)
	reg.Register(c)
	return c
}

// drain empties a connection's outbox for assertions.
func drain(c *registry.Connection) []protocol.Event {
	var evts []protocol.Event
	for {
		select {
		case e := <-c.Outbox():
			evts = append(evts, e)
		default:
			return evts
		}
	}
}

func lastOfType(evts []protocol.Event, typ protocol.EventType) (protocol.Event, bool) {
	for i := len(evts) - 1; i >= 0; i-- {
		if evts[i].Type == typ {
			return evts[i], true
		}
	}
	return protocol.Event{}, false
}

// TestThreeJoinersMatchFIFO: u1, u2, u3 join in order with no prior
// state. One match pairs u1/u2 with a fresh session id; u3 remains
// waiting at position 1.
func TestThreeJoinersMatchFIFO(t *testing.T) {
	engine, reg, log := newTestEngine()
	u1 := connect(reg, "u1")
	u2 := connect(reg, "u2")
	u3 := connect(reg, "u3")

	for _, c := range []*registry.Connection{u1, u2, u3} {
		if err := engine.JoinQueue(c.ID, ""); err != nil {
			t.Fatalf("JoinQueue(%s) failed: %v", c.ID, err)
		}
	}

	e1, ok1 := lastOfType(drain(u1), protocol.EventSessionStart)
	e2, ok2 := lastOfType(drain(u2), protocol.EventSessionStart)
	if !ok1 || !ok2 {
		t.Fatal("u1/u2 did not receive session_start")
	}
	if e1.SessionID == "" || e1.SessionID != e2.SessionID {
		t.Fatalf("session ids disagree: %q vs %q", e1.SessionID, e2.SessionID)
	}
	if e1.Peer != "u2" || e2.Peer != "u1" {
		t.Fatalf("peers wrong: u1 sees %s, u2 sees %s", e1.Peer, e2.Peer)
	}
	if len(e1.ICEServers) == 0 {
		t.Fatal("session_start missing ICE servers")
	}

	u3evts := drain(u3)
	if _, ok := lastOfType(u3evts, protocol.EventSessionStart); ok {
		t.Fatal("u3 was matched; should still be waiting")
	}
	qj, ok := lastOfType(u3evts, protocol.EventQueueJoined)
	if !ok {
		t.Fatal("u3 did not receive queue_joined")
	}
	if qj.Position != 1 {
		t.Fatalf("u3 position = %d, want 1", qj.Position)
	}
	if qj.EstimatedWaitSeconds != secondsPerPosition {
		t.Fatalf("u3 wait estimate = %d, want %d", qj.EstimatedWaitSeconds, secondsPerPosition)
	}
	if reg.WaitingCount() != 1 {
		t.Fatalf("WaitingCount = %d, want 1", reg.WaitingCount())
	}

	if len(log.created) != 1 {
		t.Fatalf("store saw %d sessions, want 1", len(log.created))
	}
	if log.created[0][1] != "u1" || log.created[0][2] != "u2" {
		t.Fatalf("store recorded %v, want u1/u2", log.created[0])
	}
}

// TestJoinWhilePairedReemitsSession: a paired connection calling
// join_queue gets its current session info again and is not enqueued.
func TestJoinWhilePairedReemitsSession(t *testing.T) {
	engine, reg, _ := newTestEngine()
	u1 := connect(reg, "u1")
	connect(reg, "u2")

	engine.JoinQueue("u1", "ada")
	engine.JoinQueue("u2", "grace")
	drain(u1)

	err := engine.JoinQueue("u1", "")
	if !errors.Is(err, ErrAlreadyPaired) {
		t.Fatalf("JoinQueue while paired: err = %v, want ErrAlreadyPaired", err)
	}
	if reg.WaitingCount() != 0 {
		t.Fatalf("WaitingCount = %d, want 0 (queue unchanged)", reg.WaitingCount())
	}

	evts := drain(u1)
	ss, ok := lastOfType(evts, protocol.EventSessionStart)
	if !ok {
		t.Fatal("session info was not re-emitted")
	}
	if ss.Peer != "u2" || ss.DisplayName != "grace" {
		t.Fatalf("re-emitted session names peer %s/%s, want u2/grace", ss.Peer, ss.DisplayName)
	}
	if _, ok := lastOfType(evts, protocol.EventQueueJoined); ok {
		t.Fatal("paired connection received queue_joined")
	}
}

// TestJoinWhileWaitingKeepsSingleEntry: a duplicate join refreshes
// queue_joined but never creates a second waiting entry.
func TestJoinWhileWaitingKeepsSingleEntry(t *testing.T) {
	engine, reg, _ := newTestEngine()
	u1 := connect(reg, "u1")

	engine.JoinQueue("u1", "")
	engine.JoinQueue("u1", "")

	if reg.WaitingCount() != 1 {
		t.Fatalf("WaitingCount = %d, want 1", reg.WaitingCount())
	}
	evts := drain(u1)
	qj, ok := lastOfType(evts, protocol.EventQueueJoined)
	if !ok || qj.Position != 1 {
		t.Fatalf("expected refreshed queue_joined at position 1, got %+v", evts)
	}
}

func TestJoinUnknownConnection(t *testing.T) {
	engine, _, _ := newTestEngine()
	if err := engine.JoinQueue("ghost", ""); err == nil {
		t.Fatal("JoinQueue accepted an unregistered connection")
	}
}

func TestLeaveQueue(t *testing.T) {
	engine, reg, _ := newTestEngine()
	u1 := connect(reg, "u1")
	connect(reg, "u2")

	engine.JoinQueue("u1", "")
	engine.LeaveQueue("u1")
	engine.LeaveQueue("u1") // no-op
	engine.JoinQueue("u2", "")

	if reg.WaitingCount() != 1 {
		t.Fatalf("WaitingCount = %d, want 1", reg.WaitingCount())
	}
	if _, ok := lastOfType(drain(u1), protocol.EventSessionStart); ok {
		t.Fatal("left connection was matched")
	}
}

// TestMatchRollbackRequeuesBoth: when session creation fails, both
// dequeued connections return to the queue with their original order.
func TestMatchRollbackRequeuesBoth(t *testing.T) {
	engine, reg, log := newTestEngine()
	u1 := connect(reg, "u1")
	connect(reg, "u2")
	stranger := connect(reg, "x")

	engine.JoinQueue("u1", "")

	// Wedge u1 into an active session behind the engine's back, so the
	// upcoming match attempt hits the registry's invariant check.
	if _, err := reg.CreateSession("wedged", u1, stranger); err != nil {
		t.Fatalf("setup session failed: %v", err)
	}

	engine.JoinQueue("u2", "")

	if reg.WaitingCount() != 2 {
		t.Fatalf("WaitingCount = %d after rollback, want 2", reg.WaitingCount())
	}
	if pos := reg.QueuePosition("u1"); pos != 1 {
		t.Fatalf("u1 position after rollback = %d, want 1", pos)
	}
	if pos := reg.QueuePosition("u2"); pos != 2 {
		t.Fatalf("u2 position after rollback = %d, want 2", pos)
	}
	if len(log.created) != 0 {
		t.Fatalf("store saw %d sessions, want 0", len(log.created))
	}
}
