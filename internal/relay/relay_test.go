package relay

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/AdAstra10/solmegle-sub000/internal/protocol"
	"github.com/AdAstra10/solmegle-sub000/internal/registry"
)

var _ TranscriptLog = (*fakeTranscript)(nil)

type loggedMessage struct {
	sessionID, sender, body string
}

type fakeTranscript struct {
	messages []loggedMessage
}

func (f *fakeTranscript) AppendMessage(sessionID, sender, body string, at time.Time) {
	f.messages = append(f.messages, loggedMessage{sessionID, sender, body})
}

// pairedFixture builds a registry with connections a and b paired in
// session s1, plus an unpaired bystander.
func pairedFixture(t *testing.T) (*Relay, *registry.Registry, *fakeTranscript, *registry.Connection, *registry.Connection, *registry.Connection) {
	t.Helper()
	reg := registry.New()
	a := registry.NewConnection("a")
	b := registry.NewConnection("b")
	bystander := registry.NewConnection("z")
	reg.Register(a)
	reg.Register(b)
	reg.Register(bystander)
	if _, err := reg.CreateSession("s1", a, b); err != nil {
		t.Fatalf("fixture session: %v", err)
	}
	log := &fakeTranscript{}
	return New(reg, log), reg, log, a, b, bystander
}

func drain(c *registry.Connection) []protocol.Event {
	var evts []protocol.Event
	for {
		select {
		case e := <-c.Outbox():
			evts = append(evts, e)
		default:
			return evts
		}
	}
}

func TestRelaySignalForwardsVerbatim(t *testing.T) {
	r, _, _, a, b, _ := pairedFixture(t)
	payload := json.RawMessage(`{"sdp":"v=0\r\n","candidate":null}`)

	if err := r.RelaySignal("s1", "a", "b", payload); err != nil {
		t.Fatalf("RelaySignal failed: %v", err)
	}

	evts := drain(b)
	if len(evts) != 1 {
		t.Fatalf("b received %d events, want 1", len(evts))
	}
	got := evts[0]
	if got.Type != protocol.EventSignal || got.SessionID != "s1" || got.From != "a" {
		t.Fatalf("wrong envelope: %+v", got)
	}
	if string(got.Payload) != string(payload) {
		t.Fatalf("payload not verbatim:\n got %s\nwant %s", got.Payload, payload)
	}
	if evts := drain(a); len(evts) != 0 {
		t.Fatalf("sender received %d events, want 0", len(evts))
	}
}

// TestRelaySignalRejectsNonPeer: a `to` id that is not the sender's
// session peer is dropped with no outbound delivery anywhere.
func TestRelaySignalRejectsNonPeer(t *testing.T) {
	r, _, _, a, b, bystander := pairedFixture(t)

	err := r.RelaySignal("s1", "a", "z", json.RawMessage(`{}`))
	if !errors.Is(err, ErrNotYourPeer) {
		t.Fatalf("err = %v, want ErrNotYourPeer", err)
	}

	for name, c := range map[string]*registry.Connection{"b": b, "bystander": bystander, "a": a} {
		if evts := drain(c); len(evts) != 0 {
			t.Errorf("%s received %d events, want 0", name, len(evts))
		}
	}
}

func TestRelaySignalErrors(t *testing.T) {
	r, _, _, _, _, _ := pairedFixture(t)
	payload := json.RawMessage(`{}`)

	testCases := []struct {
		name      string
		sessionID string
		from, to  string
		want      error
	}{
		{"unknown session", "nope", "a", "b", ErrUnknownSession},
		{"sender not in session", "s1", "z", "b", ErrNotInSession},
		{"self-addressed", "s1", "a", "a", ErrNotYourPeer},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if err := r.RelaySignal(tc.sessionID, tc.from, tc.to, payload); !errors.Is(err, tc.want) {
				t.Fatalf("err = %v, want %v", err, tc.want)
			}
		})
	}
}

// TestRelaySignalGoneDestination: a validated but unregistered
// destination makes the call a silent no-op — no retry, no buffering.
func TestRelaySignalGoneDestination(t *testing.T) {
	r, reg, _, _, _, _ := pairedFixture(t)
	reg.Unregister("b")

	if err := r.RelaySignal("s1", "a", "b", json.RawMessage(`{}`)); err != nil {
		t.Fatalf("RelaySignal to gone peer: %v", err)
	}
}

func TestRelayMessageForwardsAndLogs(t *testing.T) {
	r, _, log, a, b, _ := pairedFixture(t)

	before := time.Now().UnixMilli()
	if err := r.RelayMessage("s1", "a", "hello there"); err != nil {
		t.Fatalf("RelayMessage failed: %v", err)
	}

	evts := drain(b)
	if len(evts) != 1 {
		t.Fatalf("b received %d events, want 1", len(evts))
	}
	got := evts[0]
	if got.Type != protocol.EventChatMessage || got.Sender != "a" || got.Text != "hello there" {
		t.Fatalf("wrong chat event: %+v", got)
	}
	if got.Timestamp < before {
		t.Fatalf("timestamp %d predates call", got.Timestamp)
	}
	if evts := drain(a); len(evts) != 0 {
		t.Fatal("chat echoed back to sender")
	}

	if len(log.messages) != 1 || log.messages[0] != (loggedMessage{"s1", "a", "hello there"}) {
		t.Fatalf("transcript = %+v", log.messages)
	}
}

// TestRelayMessageLogsWhenPeerGone: the transcript write is independent
// of delivery.
func TestRelayMessageLogsWhenPeerGone(t *testing.T) {
	r, reg, log, _, _, _ := pairedFixture(t)
	reg.Unregister("b")

	if err := r.RelayMessage("s1", "a", "anyone?"); err != nil {
		t.Fatalf("RelayMessage: %v", err)
	}
	if len(log.messages) != 1 {
		t.Fatalf("transcript saw %d messages, want 1", len(log.messages))
	}
}

func TestRelayMessageEndedSession(t *testing.T) {
	r, reg, _, _, _, _ := pairedFixture(t)
	sess, _ := reg.Session("s1")
	sess.Ended = true

	if err := r.RelayMessage("s1", "a", "late"); !errors.Is(err, ErrUnknownSession) {
		t.Fatalf("err = %v, want ErrUnknownSession", err)
	}
}
