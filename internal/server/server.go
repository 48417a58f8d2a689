package server

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/AdAstra10/solmegle-sub000/internal/registry"
	"github.com/AdAstra10/solmegle-sub000/internal/util"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server exposes the /ws upgrade endpoint and feeds accepted
// connections into the hub.
type Server struct {
	hub      *Hub
	addr     string
	listener net.Listener
}

// New creates a server for the given listen address.
func New(addr string, hub *Hub) *Server {
	return &Server{hub: hub, addr: addr}
}

// Start begins listening and serving. Returns the bound port (useful
// when addr requests port 0). The HTTP server runs in the background
// until ctx is cancelled.
func (s *Server) Start(ctx context.Context) (int, error) {
	listener, err := net.Listen("tcp", s.addr)
	if err != nil {
		return 0, fmt.Errorf("failed to listen on %s: %w", s.addr, err)
	}
	s.listener = listener
	port := listener.Addr().(*net.TCPAddr).Port

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.handleWS)

	srv := &http.Server{Handler: mux}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		srv.Shutdown(shutdownCtx)
	}()
	go func() {
		if err := srv.Serve(listener); err != nil && err != http.ErrServerClosed {
			util.LogError("http server: %v", err)
		}
	}()

	return port, nil
}

// handleWS upgrades the HTTP request, assigns the connection its
// process-unique id, registers it with the hub, and starts the pumps.
func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sock, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}

	conn := registry.NewConnection(uuid.NewString())
	c := &client{sock: sock, conn: conn, hub: s.hub}

	// The register send completes before the pumps start, so the hub
	// sees the connection before any of its frames.
	s.hub.register <- c
	go c.writePump()
	go c.readPump()
}
