// Package lifecycle tears sessions down cleanly: explicit end requests,
// abrupt disconnects, and the peer notifications both produce.
package lifecycle

import (
	"errors"
	"time"

	"github.com/AdAstra10/solmegle-sub000/internal/protocol"
	"github.com/AdAstra10/solmegle-sub000/internal/registry"
	"github.com/AdAstra10/solmegle-sub000/internal/util"
)

// ErrNotParticipant means the initiator tried to end a session it does
// not belong to.
var ErrNotParticipant = errors.New("initiator is not a session participant")

// HistoryLog receives fire-and-forget session end-time records.
type HistoryLog interface {
	CloseSession(sessionID string, at time.Time)
}

// Manager handles session teardown and disconnect cleanup. Not safe for
// concurrent use: all calls happen on the hub event loop.
type Manager struct {
	reg *registry.Registry
	log HistoryLog
}

// New wires the manager to its registry and persistence collaborator.
func New(reg *registry.Registry, log HistoryLog) *Manager {
	return &Manager{reg: reg, log: log}
}

// EndSession ends an active session. Ending is idempotent: an unknown
// or already-ended session id is logged and ignored, producing no
// further notification. On success the non-initiator participant is
// notified with the initiator's id and the given reason, then both
// participants' reverse session indices are cleared, returning them to
// IDLE (not re-queued). The notification is enqueued before the indices
// are cleared, so notification-dependent logic observes who was paired
// with whom at the moment of teardown.
func (m *Manager) EndSession(sessionID, initiatorID, reason string) error {
	sess, ok := m.reg.Session(sessionID)
	if !ok || sess.Ended {
		util.LogDebug("end_session: %s unknown or already ended, ignoring", sessionID)
		return nil
	}
	other, ok := sess.Other(initiatorID)
	if !ok {
		return ErrNotParticipant
	}

	sess.Ended = true
	if peer, ok := m.reg.Lookup(other); ok {
		peer.Deliver(protocol.SessionEnded(sessionID, initiatorID, reason))
	}
	m.reg.ClearSession(sessionID)

	util.Stats.AddEnded()
	util.LogInfo("session %s ended by %s (%s)", sessionID, initiatorID, reason)
	m.log.CloseSession(sessionID, time.Now())
	return nil
}

// OnDisconnect reacts to a transport-level disconnect: the connection
// leaves the waiting queue if present, and any active session it was in
// is ended with this connection as initiator, notifying the remaining
// peer that its partner disconnected.
func (m *Manager) OnDisconnect(connID string) {
	m.reg.LeaveQueue(connID)
	if sess, ok := m.reg.SessionFor(connID); ok {
		// The disconnecting side is always a participant here, so
		// EndSession cannot fail.
		_ = m.EndSession(sess.ID, connID, protocol.ReasonPartnerDisconnected)
	}
}
