package registry

import (
	"time"

	"github.com/eapache/queue"
)

// WaitingEntry is a connection waiting for a partner, ordered by its
// enqueue time. The seq number breaks timestamp ties with insertion
// order and survives a rollback re-queue, so an entry that is put back
// keeps its original place in line.
type WaitingEntry struct {
	Conn       *Connection
	EnqueuedAt time.Time

	seq     uint64
	removed bool
}

// waitingQueue is the FIFO waiting set: an eapache ring buffer for
// arrival order plus an id index for O(1) membership checks and
// leave-by-id. Removal tombstones the ring slot; tombstones at the
// front are compacted eagerly, the rest drain as the queue advances.
type waitingQueue struct {
	ring    *queue.Queue
	byID    map[string]*WaitingEntry
	nextSeq uint64
}

func newWaitingQueue() *waitingQueue {
	return &waitingQueue{
		ring: queue.New(),
		byID: make(map[string]*WaitingEntry),
	}
}

// push appends a new entry. The caller must have checked that the
// connection id is not already waiting.
func (q *waitingQueue) push(conn *Connection, at time.Time) *WaitingEntry {
	q.nextSeq++
	e := &WaitingEntry{Conn: conn, EnqueuedAt: at, seq: q.nextSeq}
	q.ring.Add(e)
	q.byID[conn.ID] = e
	return e
}

// requeue puts a previously taken entry back, keeping its original
// enqueue timestamp and sequence number. Selection is by (EnqueuedAt,
// seq), so the entry's place in line is unchanged even though the ring
// slot is new. A fresh entry object is added; the taken one stays
// tombstoned in its old slot, which keeps every ring slot's removed
// flag final once set.
func (q *waitingQueue) requeue(e *WaitingEntry) *WaitingEntry {
	fresh := &WaitingEntry{Conn: e.Conn, EnqueuedAt: e.EnqueuedAt, seq: e.seq}
	q.ring.Add(fresh)
	q.byID[fresh.Conn.ID] = fresh
	return fresh
}

// remove tombstones the entry for the given connection id. Returns false
// if the id is not waiting.
func (q *waitingQueue) remove(id string) bool {
	e, ok := q.byID[id]
	if !ok {
		return false
	}
	e.removed = true
	delete(q.byID, id)
	q.compact()
	return true
}

// size is the number of live (non-tombstoned) entries.
func (q *waitingQueue) size() int {
	return len(q.byID)
}

// entry returns the live waiting entry for a connection id, if any.
func (q *waitingQueue) entry(id string) (*WaitingEntry, bool) {
	e, ok := q.byID[id]
	return e, ok
}

// position returns the 1-based place in line of the given connection,
// or 0 if it is not waiting.
func (q *waitingQueue) position(id string) int {
	target, ok := q.byID[id]
	if !ok {
		return 0
	}
	pos := 1
	for _, e := range q.byID {
		if e.before(target) {
			pos++
		}
	}
	return pos
}

// takeOldestPair removes and returns the two longest-waiting live
// entries, or ok=false (removing nothing) if fewer than two are waiting.
// Queues here are tens of entries, so a linear scan over the ring is the
// whole selection step.
func (q *waitingQueue) takeOldestPair() (first, second *WaitingEntry, ok bool) {
	if len(q.byID) < 2 {
		return nil, nil, false
	}
	for i := 0; i < q.ring.Length(); i++ {
		e := q.ring.Get(i).(*WaitingEntry)
		if e.removed {
			continue
		}
		switch {
		case first == nil || e.before(first):
			second = first
			first = e
		case second == nil || e.before(second):
			second = e
		}
	}
	first.removed = true
	second.removed = true
	delete(q.byID, first.Conn.ID)
	delete(q.byID, second.Conn.ID)
	q.compact()
	return first, second, true
}

// compact pops tombstoned entries off the front of the ring.
func (q *waitingQueue) compact() {
	for q.ring.Length() > 0 {
		if e := q.ring.Peek().(*WaitingEntry); !e.removed {
			return
		}
		q.ring.Remove()
	}
}

func (e *WaitingEntry) before(other *WaitingEntry) bool {
	if e.EnqueuedAt.Equal(other.EnqueuedAt) {
		return e.seq < other.seq
	}
	return e.EnqueuedAt.Before(other.EnqueuedAt)
}
