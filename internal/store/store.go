// Package store persists session history and chat transcripts to a
// local SQLite database. Writes are fire-and-forget: the hub enqueues a
// job and moves on, a single writer goroutine applies it, and failures
// are logged but never propagated — in-memory matching and relay
// correctness must not wait on storage I/O.
package store

import (
	"context"
	"fmt"
	"time"

	"zombiezen.com/go/sqlite"
	"zombiezen.com/go/sqlite/sqlitex"

	"github.com/AdAstra10/solmegle-sub000/internal/util"
)

const schema = `
CREATE TABLE IF NOT EXISTS sessions (
	id            TEXT PRIMARY KEY,
	participant_a TEXT NOT NULL,
	participant_b TEXT NOT NULL,
	started_at    INTEGER NOT NULL,
	ended_at      INTEGER
);

CREATE TABLE IF NOT EXISTS messages (
	session_id TEXT NOT NULL,
	sender     TEXT NOT NULL,
	body       TEXT NOT NULL,
	sent_at    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS messages_session ON messages (session_id, sent_at);
`

// jobBufferSize bounds the pending-write queue. When the writer falls
// this far behind, further history writes are dropped (and counted in
// the log) rather than backpressuring the hub.
const jobBufferSize = 256

// History is the persistence collaborator surface consumed by the core.
// The matching engine, relay, and lifecycle manager each depend on one
// method of it through their own narrower interfaces.
type History interface {
	CreateSession(sessionID, participantA, participantB string, at time.Time)
	AppendMessage(sessionID, sender, body string, at time.Time)
	CloseSession(sessionID string, at time.Time)
	Close() error
}

var (
	_ History = (*SQLite)(nil)
	_ History = Nop{}
)

type jobKind uint8

const (
	jobCreateSession jobKind = iota + 1
	jobAppendMessage
	jobCloseSession
)

type job struct {
	kind      jobKind
	sessionID string
	a, b      string // create: participants; append: a = sender
	body      string
	at        time.Time
}

// SQLite is the session-persistence collaborator backed by a SQLite
// file in WAL mode. Safe for use from a single enqueueing goroutine;
// all actual writes happen on the internal writer goroutine.
type SQLite struct {
	pool    *sqlitex.Pool
	jobs    chan job
	drained chan struct{}
}

// Open creates (or opens) the database at path, applies the schema, and
// starts the writer goroutine. Use ":memory:" for tests.
func Open(path string) (*SQLite, error) {
	if path == "" {
		return nil, fmt.Errorf("store: path is required")
	}
	pool, err := sqlitex.NewPool(path, sqlitex.PoolOptions{
		PoolSize:    1,
		PrepareConn: prepareConn,
	})
	if err != nil {
		return nil, fmt.Errorf("store: opening %s: %w", path, err)
	}

	conn, err := pool.Take(context.Background())
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: init: %w", err)
	}
	err = sqlitex.ExecuteScript(conn, schema, nil)
	pool.Put(conn)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("store: applying schema: %w", err)
	}

	s := &SQLite{
		pool:    pool,
		jobs:    make(chan job, jobBufferSize),
		drained: make(chan struct{}),
	}
	go s.writerLoop()
	util.LogInfo("session store opened: %s", path)
	return s, nil
}

// prepareConn applies per-connection pragmas: WAL for concurrent
// readers, NORMAL synchronous (transcripts survive a process crash; OS
// crash durability is not needed for best-effort history), and a busy
// timeout instead of immediate SQLITE_BUSY.
func prepareConn(conn *sqlite.Conn) error {
	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
	} {
		if err := sqlitex.ExecuteTransient(conn, pragma, nil); err != nil {
			return err
		}
	}
	return nil
}

// CreateSession records a new session row. Fire-and-forget.
func (s *SQLite) CreateSession(sessionID, participantA, participantB string, at time.Time) {
	s.enqueue(job{kind: jobCreateSession, sessionID: sessionID, a: participantA, b: participantB, at: at})
}

// AppendMessage records one chat message. Fire-and-forget.
func (s *SQLite) AppendMessage(sessionID, sender, body string, at time.Time) {
	s.enqueue(job{kind: jobAppendMessage, sessionID: sessionID, a: sender, body: body, at: at})
}

// CloseSession stamps the session's end time. Fire-and-forget.
func (s *SQLite) CloseSession(sessionID string, at time.Time) {
	s.enqueue(job{kind: jobCloseSession, sessionID: sessionID, at: at})
}

func (s *SQLite) enqueue(j job) {
	select {
	case s.jobs <- j:
	default:
		util.LogWarning("store: write queue full, dropping %s for session %s", j.kind, j.sessionID)
	}
}

// Close stops accepting writes, waits for the pending queue to drain,
// and closes the pool.
func (s *SQLite) Close() error {
	close(s.jobs)
	<-s.drained
	if err := s.pool.Close(); err != nil {
		return fmt.Errorf("store: close: %w", err)
	}
	return nil
}

// writerLoop is the single-writer goroutine. It exits when the job
// channel is closed and drained.
func (s *SQLite) writerLoop() {
	defer close(s.drained)
	for j := range s.jobs {
		if err := s.apply(j); err != nil {
			util.LogWarning("store: %s failed for session %s: %v", j.kind, j.sessionID, err)
		}
	}
}

func (s *SQLite) apply(j job) error {
	conn, err := s.pool.Take(context.Background())
	if err != nil {
		return err
	}
	defer s.pool.Put(conn)

	switch j.kind {
	case jobCreateSession:
		return sqlitex.Execute(conn,
			`INSERT OR IGNORE INTO sessions (id, participant_a, participant_b, started_at) VALUES (?, ?, ?, ?);`,
			&sqlitex.ExecOptions{Args: []any{j.sessionID, j.a, j.b, j.at.UnixMilli()}})
	case jobAppendMessage:
		return sqlitex.Execute(conn,
			`INSERT INTO messages (session_id, sender, body, sent_at) VALUES (?, ?, ?, ?);`,
			&sqlitex.ExecOptions{Args: []any{j.sessionID, j.a, j.body, j.at.UnixMilli()}})
	case jobCloseSession:
		return sqlitex.Execute(conn,
			`UPDATE sessions SET ended_at = ? WHERE id = ? AND ended_at IS NULL;`,
			&sqlitex.ExecOptions{Args: []any{j.at.UnixMilli(), j.sessionID}})
	default:
		return fmt.Errorf("unknown job kind %d", j.kind)
	}
}

func (k jobKind) String() string {
	switch k {
	case jobCreateSession:
		return "create_session"
	case jobAppendMessage:
		return "append_message"
	case jobCloseSession:
		return "close_session"
	default:
		return "unknown"
	}
}

// Nop is the disabled store used when no database path is configured
// and in tests that don't care about history.
type Nop struct{}

func (Nop) CreateSession(sessionID, participantA, participantB string, at time.Time) {}
func (Nop) AppendMessage(sessionID, sender, body string, at time.Time)               {}
func (Nop) CloseSession(sessionID string, at time.Time)                              {}
func (Nop) Close() error                                                             { return nil }
