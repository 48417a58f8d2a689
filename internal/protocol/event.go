// Package protocol defines the tagged event types exchanged with clients
// over the signaling WebSocket, plus boundary validation for inbound frames.
package protocol

import (
	"encoding/json"
	"time"

	"github.com/pion/webrtc/v4"
)

// EventType identifies the kind of event.
type EventType string

// Inbound event types (client → server).
const (
	EventJoinQueue   EventType = "join_queue"
	EventLeaveQueue  EventType = "leave_queue"
	EventSignal      EventType = "signal"
	EventChatMessage EventType = "chat_message"
	EventEndSession  EventType = "end_session"
)

// Outbound event types (server → client).
const (
	EventQueueJoined  EventType = "queue_joined"
	EventSessionStart EventType = "session_start"
	EventSessionEnded EventType = "session_ended"
	EventError        EventType = "error"
)

// End reasons carried on session_ended, so a UI can distinguish a
// voluntary end from an abandoned partner. The teardown mechanism is
// identical for both.
const (
	ReasonEnded               = "ended"
	ReasonPartnerDisconnected = "partner_disconnected"
)

// Event is the JSON structure exchanged over the WebSocket. A single
// struct with omitempty fields covers every inbound and outbound type;
// Validate enforces which fields each inbound type requires.
//
// Payload is opaque: the browser-side WebRTC negotiation defines its
// internal structure, and this server forwards it verbatim.
type Event struct {
	Type      EventType `json:"type"`
	SessionID string    `json:"sessionId,omitempty"`
	From      string    `json:"from,omitempty"`
	To        string    `json:"to,omitempty"`
	Sender    string    `json:"sender,omitempty"`
	Initiator string    `json:"initiator,omitempty"`
	Peer      string    `json:"peer,omitempty"`

	DisplayName string          `json:"displayName,omitempty"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	Text        string          `json:"text,omitempty"`
	Reason      string          `json:"reason,omitempty"`
	Message     string          `json:"message,omitempty"`

	Position             int   `json:"position,omitempty"`
	EstimatedWaitSeconds int   `json:"estimatedWaitSeconds,omitempty"`
	Timestamp            int64 `json:"timestamp,omitempty"`

	ICEServers []webrtc.ICEServer `json:"iceServers,omitempty"`
}

// ErrorEvent builds the outbound error event for the originating connection.
func ErrorEvent(message string) Event {
	return Event{Type: EventError, Message: message}
}

// QueueJoined builds the outbound queue acknowledgement.
func QueueJoined(position, estimatedWaitSeconds int) Event {
	return Event{
		Type:                 EventQueueJoined,
		Position:             position,
		EstimatedWaitSeconds: estimatedWaitSeconds,
	}
}

// SessionStart builds the outbound match announcement for one participant.
func SessionStart(sessionID, peerID, peerName string, iceServers []webrtc.ICEServer) Event {
	return Event{
		Type:        EventSessionStart,
		SessionID:   sessionID,
		Peer:        peerID,
		DisplayName: peerName,
		ICEServers:  iceServers,
	}
}

// SessionEnded builds the outbound teardown notification. The initiator id
// lets the receiving UI tell who caused the end.
func SessionEnded(sessionID, initiator, reason string) Event {
	return Event{
		Type:      EventSessionEnded,
		SessionID: sessionID,
		Initiator: initiator,
		Reason:    reason,
	}
}

// Signal builds the outbound forwarded signaling frame.
func Signal(sessionID, from string, payload json.RawMessage) Event {
	return Event{
		Type:      EventSignal,
		SessionID: sessionID,
		From:      from,
		Payload:   payload,
	}
}

// ChatMessage builds the outbound forwarded chat frame.
func ChatMessage(sessionID, sender, text string, at time.Time) Event {
	return Event{
		Type:      EventChatMessage,
		SessionID: sessionID,
		Sender:    sender,
		Text:      text,
		Timestamp: at.UnixMilli(),
	}
}
