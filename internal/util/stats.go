package util

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/pterm/pterm"
)

// ──────────────────────────────────────────────────────────────────────────────
// Global stats singleton
// ──────────────────────────────────────────────────────────────────────────────

// Stats is the process-wide connection/matching counter.
var Stats = &stats{}

type stats struct {
	TotalConns    atomic.Int64 // cumulative count of connections since process start
	ClosedConns   atomic.Int64 // cumulative count of closed connections since process start
	MatchesMade   atomic.Int64 // cumulative count of sessions created
	SessionsEnded atomic.Int64 // cumulative count of sessions ended
	FramesRelayed atomic.Int64 // cumulative count of signal + chat frames forwarded
}

func (s *stats) AddConn()    { s.TotalConns.Add(1) }
func (s *stats) RemoveConn() { s.ClosedConns.Add(1) }
func (s *stats) AddMatch()   { s.MatchesMade.Add(1) }
func (s *stats) AddEnded()   { s.SessionsEnded.Add(1) }
func (s *stats) AddRelayed() { s.FramesRelayed.Add(1) }

// ──────────────────────────────────────────────────────────────────────────────
// Periodic reporter
// ──────────────────────────────────────────────────────────────────────────────

// StartStatsReporter launches a goroutine that logs matching statistics
// every 10 seconds. Quiet intervals (no connections, matches, or relayed
// frames) produce no output. It stops when ctx is cancelled.
func StartStatsReporter(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(10 * time.Second)
		defer ticker.Stop()

		var prevTotal, prevClosed, prevMatches, prevEnded, prevRelayed int64
		for {
			select {
			case <-ticker.C:
				total := Stats.TotalConns.Load()
				closed := Stats.ClosedConns.Load()
				matches := Stats.MatchesMade.Load()
				ended := Stats.SessionsEnded.Load()
				relayed := Stats.FramesRelayed.Load()

				inC := total - prevTotal
				outC := closed - prevClosed
				m := matches - prevMatches
				e := ended - prevEnded
				rl := relayed - prevRelayed

				if inC > 0 || outC > 0 || m > 0 || e > 0 || rl > 0 {
					pterm.DefaultLogger.Info(formatStats(inC, outC, m, e, rl))
				}

				prevTotal = total
				prevClosed = closed
				prevMatches = matches
				prevEnded = ended
				prevRelayed = relayed

			case <-ctx.Done():
				return
			}
		}
	}()
}

// formatStats returns a formatted string of the interval's activity for display.
func formatStats(inC, outC, matches, ended, relayed int64) string {
	return fmt.Sprintf("Conn: %2d↑ %2d↓ | Sessions: %d+ %d- | Relayed: %d",
		inC,
		outC,
		matches,
		ended,
		relayed,
	)
}
