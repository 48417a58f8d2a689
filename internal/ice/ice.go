// Package ice builds the STUN/TURN descriptor list handed to both
// participants of a new session. The descriptors are consumed by the
// browser-side peer connection; this server never gathers candidates
// itself.
package ice

import "github.com/pion/webrtc/v4"

// Default STUN servers used when no override is configured.
var defaultSTUNServers = []string{
	"stun:stun.l.google.com:19302",
	"stun:stun1.l.google.com:19302",
}

// Provider returns the ICE server list announced in session_start
// events. The list is static for the process lifetime; it is consulted
// once per successful match.
type Provider struct {
	servers []webrtc.ICEServer
}

// Config carries the ICE endpoint settings from the CLI.
type Config struct {
	STUNServers []string // stun: URLs; defaults to Google STUN when empty

	// Optional static TURN relay. Username/Password are long-lived
	// credentials; with no TURNURL the session is STUN-only and peers
	// behind symmetric NAT will fail to connect directly.
	TURNURL      string
	TURNUsername string
	TURNPassword string
}

// NewProvider builds a provider from config, falling back to the
// default STUN list.
func NewProvider(cfg Config) *Provider {
	stun := cfg.STUNServers
	if len(stun) == 0 {
		stun = defaultSTUNServers
	}
	servers := []webrtc.ICEServer{{URLs: stun}}
	if cfg.TURNURL != "" {
		servers = append(servers, webrtc.ICEServer{
			URLs:       []string{cfg.TURNURL},
			Username:   cfg.TURNUsername,
			Credential: cfg.TURNPassword,
		})
	}
	return &Provider{servers: servers}
}

// Servers returns the descriptor list. The returned slice is shared;
// callers must not mutate it.
func (p *Provider) Servers() []webrtc.ICEServer {
	return p.servers
}
