package protocol

import (
	"encoding/json"
	"fmt"
)

// Decode parses an inbound WebSocket frame and validates it before it
// reaches the core logic. Connection identity is never taken from the
// frame — the server stamps sender ids from the socket itself — so
// Decode only checks the fields each event type genuinely needs.
func Decode(data []byte) (Event, error) {
	var evt Event
	if err := json.Unmarshal(data, &evt); err != nil {
		return Event{}, fmt.Errorf("malformed event: %w", err)
	}
	if err := evt.validate(); err != nil {
		return Event{}, err
	}
	return evt, nil
}

func (e Event) validate() error {
	switch e.Type {
	case EventJoinQueue, EventLeaveQueue:
		return nil

	case EventSignal:
		if e.SessionID == "" {
			return fmt.Errorf("signal: missing sessionId")
		}
		if e.To == "" {
			return fmt.Errorf("signal: missing to")
		}
		if len(e.Payload) == 0 {
			return fmt.Errorf("signal: missing payload")
		}
		return nil

	case EventChatMessage:
		if e.SessionID == "" {
			return fmt.Errorf("chat_message: missing sessionId")
		}
		if e.Text == "" {
			return fmt.Errorf("chat_message: missing text")
		}
		return nil

	case EventEndSession:
		if e.SessionID == "" {
			return fmt.Errorf("end_session: missing sessionId")
		}
		return nil

	case "":
		return fmt.Errorf("missing event type")

	default:
		return fmt.Errorf("unknown event type: %q", e.Type)
	}
}
