// Package relay forwards signaling and chat frames between the two
// participants of a session, verbatim and without inspecting payloads.
package relay

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/AdAstra10/solmegle-sub000/internal/protocol"
	"github.com/AdAstra10/solmegle-sub000/internal/registry"
	"github.com/AdAstra10/solmegle-sub000/internal/util"
)

var (
	// ErrUnknownSession means the session id does not name an active session.
	ErrUnknownSession = errors.New("unknown or ended session")
	// ErrNotInSession means the sender is not a participant of the session.
	ErrNotInSession = errors.New("sender is not in this session")
	// ErrNotYourPeer means the addressed connection is not the sender's
	// partner in the session. Dropping these frames is what prevents
	// cross-session signal injection.
	ErrNotYourPeer = errors.New("destination is not your session peer")
)

// TranscriptLog receives fire-and-forget chat message records. Relay
// correctness does not depend on these writes succeeding.
type TranscriptLog interface {
	AppendMessage(sessionID, sender, body string, at time.Time)
}

// Relay routes frames inside one session. Not safe for concurrent use:
// all calls happen on the hub event loop.
type Relay struct {
	reg *registry.Registry
	log TranscriptLog
}

// New wires the relay to its registry and transcript collaborator.
func New(reg *registry.Registry, log TranscriptLog) *Relay {
	return &Relay{reg: reg, log: log}
}

// RelaySignal forwards an opaque signaling payload to the sender's
// session peer. The addressed connection must be the other member of
// the session; anything else is rejected without delivery. Delivery is
// best-effort, at most once: if the destination is no longer
// registered, the call is a no-op.
func (r *Relay) RelaySignal(sessionID, fromID, toID string, payload json.RawMessage) error {
	other, err := r.peerOf(sessionID, fromID)
	if err != nil {
		return err
	}
	if other != toID {
		return ErrNotYourPeer
	}
	peer, ok := r.reg.Lookup(toID)
	if !ok {
		return nil
	}
	peer.Deliver(protocol.Signal(sessionID, fromID, payload))
	util.Stats.AddRelayed()
	return nil
}

// RelayMessage forwards a chat line to the sender's session peer and
// appends it to the transcript. The transcript write is independent of
// delivery: it happens even when the peer is already gone.
func (r *Relay) RelayMessage(sessionID, sender, text string) error {
	other, err := r.peerOf(sessionID, sender)
	if err != nil {
		return err
	}
	now := time.Now()
	if peer, ok := r.reg.Lookup(other); ok {
		peer.Deliver(protocol.ChatMessage(sessionID, sender, text, now))
		util.Stats.AddRelayed()
	}
	r.log.AppendMessage(sessionID, sender, text, now)
	return nil
}

// peerOf resolves the sender's partner in an active session.
func (r *Relay) peerOf(sessionID, senderID string) (string, error) {
	sess, ok := r.reg.Session(sessionID)
	if !ok || sess.Ended {
		return "", ErrUnknownSession
	}
	other, ok := sess.Other(senderID)
	if !ok {
		return "", ErrNotInSession
	}
	return other, nil
}
