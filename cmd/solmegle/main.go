// Solmegle — anonymous two-party matchmaking and signaling relay server.
//
// Clients connect over WebSocket (/ws), join a FIFO waiting queue, and
// are paired two at a time into ephemeral sessions. The server forwards
// opaque WebRTC signaling payloads and chat messages between the two
// participants of a session; the actual peer-to-peer media negotiation
// happens in the browsers.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"

	"github.com/pterm/pterm"

	"github.com/AdAstra10/solmegle-sub000/internal/config"
	"github.com/AdAstra10/solmegle-sub000/internal/ice"
	"github.com/AdAstra10/solmegle-sub000/internal/lifecycle"
	"github.com/AdAstra10/solmegle-sub000/internal/match"
	"github.com/AdAstra10/solmegle-sub000/internal/registry"
	"github.com/AdAstra10/solmegle-sub000/internal/relay"
	"github.com/AdAstra10/solmegle-sub000/internal/server"
	"github.com/AdAstra10/solmegle-sub000/internal/store"
	"github.com/AdAstra10/solmegle-sub000/internal/util"
)

var version = "dev"

func main() {
	// Root context — cancelled on Ctrl+C.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	// CLI flags.
	addr := flag.String("addr", ":8080", "Listen address")
	dbPath := flag.String("db", "", "SQLite transcript database path (empty disables history)")
	stunList := flag.String("stun", "", "Comma-separated stun: URLs (empty uses built-in defaults)")
	turnURL := flag.String("turn", "", "Optional turn: URL")
	turnUser := flag.String("turnUser", "", "TURN username")
	turnPass := flag.String("turnPass", "", "TURN password")
	debugMode := flag.Bool("debug", false, "Enable debug logging")
	flag.Parse()

	if *debugMode {
		util.EnableDebug()
	}

	cfg := &config.Config{
		Addr:         *addr,
		DBPath:       *dbPath,
		STUNServers:  config.ParseSTUNList(*stunList),
		TURNURL:      *turnURL,
		TURNUsername: *turnUser,
		TURNPassword: *turnPass,
		Debug:        *debugMode,
	}
	if err := cfg.Validate(); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}

	pterm.Info.Println(fmt.Sprintf("Solmegle — v%s", version))
	pterm.Println()

	if err := run(ctx, cfg); err != nil {
		util.LogError("%v", err)
		os.Exit(1)
	}
	util.LogInfo("server stopped")
}

func run(ctx context.Context, cfg *config.Config) error {
	var history store.History = store.Nop{}
	if cfg.DBPath != "" {
		st, err := store.Open(cfg.DBPath)
		if err != nil {
			return err
		}
		defer st.Close()
		history = st
	}

	reg := registry.New()
	provider := ice.NewProvider(ice.Config{
		STUNServers:  cfg.STUNServers,
		TURNURL:      cfg.TURNURL,
		TURNUsername: cfg.TURNUsername,
		TURNPassword: cfg.TURNPassword,
	})

	engine := match.NewEngine(reg, provider, history)
	rel := relay.New(reg, history)
	lcm := lifecycle.New(reg, history)

	hub := server.NewHub(reg, engine, rel, lcm)
	go hub.Run(ctx)

	srv := server.New(cfg.Addr, hub)
	port, err := srv.Start(ctx)
	if err != nil {
		return err
	}

	util.StartStatsReporter(ctx)
	util.LogInfo("listening on port %d — WebSocket endpoint /ws", port)

	<-ctx.Done()
	return nil
}
