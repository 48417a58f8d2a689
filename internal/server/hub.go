// Package server is the WebSocket gateway: it upgrades connections,
// runs the per-connection read/write pumps, and serializes every
// registry, queue, and session mutation through a single hub goroutine.
package server

import (
	"context"
	"errors"

	"github.com/AdAstra10/solmegle-sub000/internal/lifecycle"
	"github.com/AdAstra10/solmegle-sub000/internal/match"
	"github.com/AdAstra10/solmegle-sub000/internal/protocol"
	"github.com/AdAstra10/solmegle-sub000/internal/registry"
	"github.com/AdAstra10/solmegle-sub000/internal/relay"
	"github.com/AdAstra10/solmegle-sub000/internal/util"
)

// frame is one raw inbound WebSocket message awaiting dispatch.
type frame struct {
	client *client
	data   []byte
}

// Hub owns the matchmaking core. All mutations run on the Run loop's
// goroutine, which is what makes compound operations atomic — the core
// packages themselves carry no locks.
type Hub struct {
	reg       *registry.Registry
	engine    *match.Engine
	relay     *relay.Relay
	lifecycle *lifecycle.Manager

	register   chan *client
	unregister chan *client
	inbound    chan frame
}

// NewHub wires the hub to the core components.
func NewHub(reg *registry.Registry, engine *match.Engine, rel *relay.Relay, lcm *lifecycle.Manager) *Hub {
	return &Hub{
		reg:        reg,
		engine:     engine,
		relay:      rel,
		lifecycle:  lcm,
		register:   make(chan *client),
		unregister: make(chan *client),
		inbound:    make(chan frame),
	}
}

// Run is the hub event loop. It blocks until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case c := <-h.register:
			h.reg.Register(c.conn)
			util.Stats.AddConn()
			util.LogDebug("connected: %s from %s", c.conn.ID, c.sock.RemoteAddr())

		case c := <-h.unregister:
			h.disconnect(c)

		case f := <-h.inbound:
			h.dispatch(f)

		case <-ctx.Done():
			return
		}
	}
}

// dispatch decodes and routes one inbound frame. Every failure mode —
// malformed frame, user error from the core, even a panic — is isolated
// to this one event and reported to the originating connection as an
// error event. Nothing here takes the process down.
func (h *Hub) dispatch(f frame) {
	defer func() {
		if r := recover(); r != nil {
			util.LogError("panic handling event from %s: %v", f.client.conn.ID, r)
			f.client.conn.Deliver(protocol.ErrorEvent("internal error"))
		}
	}()

	evt, err := protocol.Decode(f.data)
	if err != nil {
		f.client.conn.Deliver(protocol.ErrorEvent(err.Error()))
		return
	}

	connID := f.client.conn.ID
	switch evt.Type {
	case protocol.EventJoinQueue:
		err := h.engine.JoinQueue(connID, evt.DisplayName)
		if errors.Is(err, match.ErrAlreadyPaired) {
			// Benign resync: the current session_start was re-emitted.
			util.LogDebug("join_queue from paired connection %s, session re-emitted", connID)
			return
		}
		h.report(f.client, err)

	case protocol.EventLeaveQueue:
		h.engine.LeaveQueue(connID)

	case protocol.EventSignal:
		h.report(f.client, h.relay.RelaySignal(evt.SessionID, connID, evt.To, evt.Payload))

	case protocol.EventChatMessage:
		h.report(f.client, h.relay.RelayMessage(evt.SessionID, connID, evt.Text))

	case protocol.EventEndSession:
		h.report(f.client, h.lifecycle.EndSession(evt.SessionID, connID, protocol.ReasonEnded))

	default:
		// Decode only passes inbound types through, so this is unreachable.
		f.client.conn.Deliver(protocol.ErrorEvent("unsupported event type"))
	}
}

// report surfaces a user error to the originating connection.
func (h *Hub) report(c *client, err error) {
	if err != nil {
		c.conn.Deliver(protocol.ErrorEvent(err.Error()))
	}
}

// disconnect runs the full teardown for a dropped client: queue
// removal, session end with peer notification, then unregistration.
func (h *Hub) disconnect(c *client) {
	h.lifecycle.OnDisconnect(c.conn.ID)
	if conn, ok := h.reg.Unregister(c.conn.ID); ok {
		conn.Close()
		util.Stats.RemoveConn()
		util.LogDebug("disconnected: %s", conn.ID)
	}
}
