// Package registry is the single authoritative record of live
// connections, the FIFO waiting queue, and active sessions, together
// with the reverse indices that make every lookup O(1).
//
// A Registry is not safe for concurrent use. All mutations happen as
// short synchronous steps on the hub's event loop, which is what makes
// compound operations (dequeue-two-then-create-session) atomic with
// respect to other inbound events.
package registry

import (
	"fmt"
	"time"
)

// Registry owns all transient matchmaking state.
type Registry struct {
	conns         map[string]*Connection
	waiting       *waitingQueue
	sessions      map[string]*Session
	sessionByConn map[string]string // derived: connection id → active session id
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		conns:         make(map[string]*Connection),
		waiting:       newWaitingQueue(),
		sessions:      make(map[string]*Session),
		sessionByConn: make(map[string]string),
	}
}

// ---------------------------------------------------------------------------
// Connections
// ---------------------------------------------------------------------------

// Register records a live connection. Idempotent: re-registering an
// already known id keeps the existing record (ids are process-unique,
// so this does not happen in practice).
func (r *Registry) Register(conn *Connection) {
	if _, ok := r.conns[conn.ID]; ok {
		return
	}
	r.conns[conn.ID] = conn
}

// Lookup returns the connection handle for an id.
func (r *Registry) Lookup(id string) (*Connection, bool) {
	c, ok := r.conns[id]
	return c, ok
}

// Unregister removes every trace of a connection: its waiting entry and
// its record. The caller (lifecycle manager) must have handled session
// teardown first, so that the peer notification sees consistent indices.
func (r *Registry) Unregister(id string) (*Connection, bool) {
	c, ok := r.conns[id]
	if !ok {
		return nil, false
	}
	r.waiting.remove(id)
	delete(r.conns, id)
	return c, true
}

// ConnCount returns the number of live connections.
func (r *Registry) ConnCount() int {
	return len(r.conns)
}

// ---------------------------------------------------------------------------
// Waiting queue
// ---------------------------------------------------------------------------

// Enqueue adds a connection to the waiting queue. A connection id
// appears in the waiting set at most once; enqueueing an id that is
// already waiting returns the existing entry untouched.
func (r *Registry) Enqueue(conn *Connection) *WaitingEntry {
	if e, ok := r.waiting.entry(conn.ID); ok {
		return e
	}
	return r.waiting.push(conn, time.Now())
}

// LeaveQueue removes the waiting entry for an id, if present.
func (r *Registry) LeaveQueue(id string) bool {
	return r.waiting.remove(id)
}

// Requeue puts a taken waiting entry back with its original timestamp.
// Used by the match rollback path so neither user loses their place.
func (r *Registry) Requeue(e *WaitingEntry) {
	r.waiting.requeue(e)
}

// TakeOldestPair atomically removes and returns the two longest-waiting
// entries, or ok=false if fewer than two connections are waiting.
func (r *Registry) TakeOldestPair() (first, second *WaitingEntry, ok bool) {
	return r.waiting.takeOldestPair()
}

// WaitingCount returns the live waiting-queue size.
func (r *Registry) WaitingCount() int {
	return r.waiting.size()
}

// QueuePosition returns the 1-based place in line, or 0 if not waiting.
func (r *Registry) QueuePosition(id string) int {
	return r.waiting.position(id)
}

// IsWaiting reports whether the connection id is in the waiting set.
func (r *Registry) IsWaiting(id string) bool {
	_, ok := r.waiting.entry(id)
	return ok
}

// ---------------------------------------------------------------------------
// Sessions
// ---------------------------------------------------------------------------

// CreateSession records a new active session between two distinct
// connections and updates both reverse indices. It fails if either
// participant already belongs to an active session or the participants
// are not two distinct registered connections — conditions the matching
// engine's queue invariants should make unreachable.
func (r *Registry) CreateSession(id string, a, b *Connection) (*Session, error) {
	if a.ID == b.ID {
		return nil, fmt.Errorf("session %s: duplicate participant %s", id, a.ID)
	}
	if sid, ok := r.sessionByConn[a.ID]; ok {
		return nil, fmt.Errorf("session %s: %s already in session %s", id, a.ID, sid)
	}
	if sid, ok := r.sessionByConn[b.ID]; ok {
		return nil, fmt.Errorf("session %s: %s already in session %s", id, b.ID, sid)
	}
	s := &Session{ID: id, A: a.ID, B: b.ID, CreatedAt: time.Now()}
	r.sessions[id] = s
	r.sessionByConn[a.ID] = id
	r.sessionByConn[b.ID] = id
	return s, nil
}

// Session returns an active or ended-but-not-yet-cleared session by id.
func (r *Registry) Session(id string) (*Session, bool) {
	s, ok := r.sessions[id]
	return s, ok
}

// SessionFor returns the active session a connection belongs to, if any.
func (r *Registry) SessionFor(connID string) (*Session, bool) {
	sid, ok := r.sessionByConn[connID]
	if !ok {
		return nil, false
	}
	return r.sessions[sid], true
}

// ClearSession drops a session and both participants' reverse index
// entries, returning the participants to IDLE. Called after the peer
// notification has been delivered, so notification-dependent logic sees
// who was paired with whom at the moment of teardown.
func (r *Registry) ClearSession(id string) {
	s, ok := r.sessions[id]
	if !ok {
		return
	}
	delete(r.sessionByConn, s.A)
	delete(r.sessionByConn, s.B)
	delete(r.sessions, id)
}

// SessionCount returns the number of sessions not yet cleared.
func (r *Registry) SessionCount() int {
	return len(r.sessions)
}
