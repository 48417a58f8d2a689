package registry

import (
	"time"

	"github.com/AdAstra10/solmegle-sub000/internal/protocol"
)

// outboxSize is the per-connection outbound event buffer. A slow reader
// that falls this far behind starts losing events — delivery is
// best-effort and never blocks the hub.
const outboxSize = 32

// Connection is the transient handle for one live client link. It is
// created on transport connect, owned by the Registry for its lifetime,
// and destroyed on transport disconnect.
type Connection struct {
	ID          string
	DisplayName string
	ConnectedAt time.Time

	outbox chan protocol.Event
	closed bool
}

// NewConnection creates a connection handle with the given process-unique id.
func NewConnection(id string) *Connection {
	return &Connection{
		ID:          id,
		ConnectedAt: time.Now(),
		outbox:      make(chan protocol.Event, outboxSize),
	}
}

// Deliver enqueues an outbound event for the connection's write pump.
// Returns false if the connection is closed or its outbox is full — the
// event is dropped, never retried or buffered elsewhere.
func (c *Connection) Deliver(evt protocol.Event) bool {
	if c.closed {
		return false
	}
	select {
	case c.outbox <- evt:
		return true
	default:
		return false
	}
}

// Outbox returns the receive end of the outbound event channel. The
// channel is closed by Close, which ends the write pump's range loop.
func (c *Connection) Outbox() <-chan protocol.Event {
	return c.outbox
}

// Close closes the outbox. Must only be called from the single goroutine
// that owns the registry; safe to call more than once.
func (c *Connection) Close() {
	if c.closed {
		return
	}
	c.closed = true
	close(c.outbox)
}
