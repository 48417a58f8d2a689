package server

import (
	"time"

	"github.com/gorilla/websocket"

	"github.com/AdAstra10/solmegle-sub000/internal/registry"
	"github.com/AdAstra10/solmegle-sub000/internal/util"
)

// Pump tuning.
const (
	writeWait    = 10 * time.Second     // deadline for one outbound write
	pongWait     = 60 * time.Second     // read deadline, refreshed on pong
	pingPeriod   = (pongWait * 9) / 10  // must be less than pongWait
	maxFrameSize = 64 * 1024            // inbound frame size limit
)

// client binds one WebSocket to its registry connection handle. The
// read pump funnels frames into the hub; the write pump drains the
// connection's outbox back to the socket. Separating the two keeps a
// slow reader from blocking the hub.
type client struct {
	sock *websocket.Conn
	conn *registry.Connection
	hub  *Hub
}

// readPump reads frames from the socket and hands them to the hub. It
// owns the read deadline: a peer that stops answering pings is treated
// as disconnected. On exit it triggers the hub-side teardown.
func (c *client) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.sock.Close()
	}()

	c.sock.SetReadLimit(maxFrameSize)
	c.sock.SetReadDeadline(time.Now().Add(pongWait))
	c.sock.SetPongHandler(func(string) error {
		c.sock.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, data, err := c.sock.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				util.LogDebug("read error from %s: %v", c.conn.ID, err)
			}
			return
		}
		c.hub.inbound <- frame{client: c, data: data}
	}
}

// writePump drains the connection's outbox to the socket and keeps the
// link alive with periodic pings. It exits when the outbox is closed
// (hub-side teardown) or a write fails.
func (c *client) writePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.sock.Close()
	}()

	for {
		select {
		case evt, ok := <-c.conn.Outbox():
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				c.sock.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
				return
			}
			if err := c.sock.WriteJSON(evt); err != nil {
				return
			}

		case <-ticker.C:
			c.sock.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.sock.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
