// Package match implements FIFO pairing of waiting connections.
package match

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pion/webrtc/v4"

	"github.com/AdAstra10/solmegle-sub000/internal/protocol"
	"github.com/AdAstra10/solmegle-sub000/internal/registry"
	"github.com/AdAstra10/solmegle-sub000/internal/util"
)

// ErrAlreadyPaired is returned by JoinQueue when the connection already
// belongs to an active session. The caller's session info has been
// re-emitted by then, so the gateway treats this as a benign resync
// rather than a user error.
var ErrAlreadyPaired = errors.New("connection already in an active session")

// secondsPerPosition is the wait-estimate heuristic announced in
// queue_joined. Matching happens as soon as two users wait, so the
// number only matters when the queue is deep.
const secondsPerPosition = 15

// SessionLog receives fire-and-forget session-creation records.
type SessionLog interface {
	CreateSession(sessionID, participantA, participantB string, at time.Time)
}

// ICEProvider supplies the STUN/TURN descriptors announced to both
// participants of a new session.
type ICEProvider interface {
	Servers() []webrtc.ICEServer
}

// Engine pairs the two longest-waiting connections into a session.
// Not safe for concurrent use: all calls happen on the hub event loop.
type Engine struct {
	reg *registry.Registry
	ice ICEProvider
	log SessionLog
}

// NewEngine wires the engine to its registry, ICE provider, and
// persistence collaborator.
func NewEngine(reg *registry.Registry, ice ICEProvider, log SessionLog) *Engine {
	return &Engine{reg: reg, ice: ice, log: log}
}

// JoinQueue puts a connection into the waiting queue and attempts a
// match when at least two connections are waiting.
//
// A connection that is already paired is not enqueued; its current
// session_start is re-emitted so the UI can resynchronize, and
// ErrAlreadyPaired is returned. A connection that is already waiting
// keeps its place and just gets a fresh queue_joined.
func (e *Engine) JoinQueue(connID, displayName string) error {
	conn, ok := e.reg.Lookup(connID)
	if !ok {
		return fmt.Errorf("join_queue: unknown connection %s", connID)
	}
	if displayName != "" {
		conn.DisplayName = displayName
	}

	if sess, ok := e.reg.SessionFor(connID); ok {
		peerID, _ := sess.Other(connID)
		var peerName string
		if peer, ok := e.reg.Lookup(peerID); ok {
			peerName = peer.DisplayName
		}
		conn.Deliver(protocol.SessionStart(sess.ID, peerID, peerName, e.ice.Servers()))
		return ErrAlreadyPaired
	}

	e.reg.Enqueue(conn)
	pos := e.reg.QueuePosition(connID)
	conn.Deliver(protocol.QueueJoined(pos, pos*secondsPerPosition))
	util.LogDebug("join_queue: %s waiting at position %d", connID, pos)

	if e.reg.WaitingCount() >= 2 {
		e.tryMatch()
	}
	return nil
}

// LeaveQueue removes the connection's waiting entry if present; no-op
// otherwise.
func (e *Engine) LeaveQueue(connID string) {
	if e.reg.LeaveQueue(connID) {
		util.LogDebug("leave_queue: %s left the waiting queue", connID)
	}
}

// tryMatch dequeues the two oldest waiting entries and creates their
// session. Both entries are removed from the queue before the session
// exists, so no connection is ever visible in the queue and a session
// at once. If session creation fails, both entries are re-queued with
// their original timestamps so neither user is silently dropped.
func (e *Engine) tryMatch() {
	first, second, ok := e.reg.TakeOldestPair()
	if !ok {
		return
	}

	sessionID := uuid.NewString()
	sess, err := e.reg.CreateSession(sessionID, first.Conn, second.Conn)
	if err != nil {
		util.LogError("match: session creation failed, re-queueing both: %v", err)
		e.reg.Requeue(first)
		e.reg.Requeue(second)
		return
	}

	servers := e.ice.Servers()
	first.Conn.Deliver(protocol.SessionStart(sessionID, second.Conn.ID, second.Conn.DisplayName, servers))
	second.Conn.Deliver(protocol.SessionStart(sessionID, first.Conn.ID, first.Conn.DisplayName, servers))

	util.Stats.AddMatch()
	util.LogInfo("matched %s with %s (session %s)", first.Conn.ID, second.Conn.ID, sessionID)
	a, b := sess.Participants()
	e.log.CreateSession(sessionID, a, b, sess.CreatedAt)
}
