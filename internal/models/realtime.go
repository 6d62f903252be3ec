package models

import (
	"encoding/json"
	"fmt"
)

// Wire types for notification-bus payloads.
const (
	EventTypeMatchFound   = "match_found"
	EventTypeNewMessage   = "new_message"
	EventTypeSessionEnded = "session_ended"
	EventTypeEnd          = "end" // broadcast control payload
)

// Event is a decoded notification-bus payload. Payloads are decoded at
// the bus boundary so nothing downstream inspects raw JSON.
type Event interface {
	eventType() string
}

// MatchFoundEvent notifies a queued participant that a session now
// references them as a party.
type MatchFoundEvent struct {
	SessionID string `json:"session_id"`
}

// NewMessageEvent notifies session subscribers of a freshly persisted
// message row.
type NewMessageEvent struct {
	Message Message `json:"message"`
}

// SessionEndedEvent notifies session subscribers that ended_at became
// non-null on the session row.
type SessionEndedEvent struct {
	SessionID string `json:"session_id"`
}

// SessionEndControl is the ad-hoc {type:"end"} broadcast published on a
// session's control channel. It is best-effort; the durable ended_at
// write is the guaranteed path.
type SessionEndControl struct {
	SessionID string `json:"session_id"`
}

func (MatchFoundEvent) eventType() string   { return EventTypeMatchFound }
func (NewMessageEvent) eventType() string   { return EventTypeNewMessage }
func (SessionEndedEvent) eventType() string { return EventTypeSessionEnded }
func (SessionEndControl) eventType() string { return EventTypeEnd }

type eventEnvelope struct {
	Type      string          `json:"type"`
	SessionID string          `json:"session_id,omitempty"`
	Message   json.RawMessage `json:"message,omitempty"`
}

// EncodeEvent serializes an event into its wire envelope.
func EncodeEvent(ev Event) ([]byte, error) {
	env := eventEnvelope{Type: ev.eventType()}
	switch e := ev.(type) {
	case MatchFoundEvent:
		env.SessionID = e.SessionID
	case SessionEndedEvent:
		env.SessionID = e.SessionID
	case SessionEndControl:
		env.SessionID = e.SessionID
	case NewMessageEvent:
		raw, err := json.Marshal(e.Message)
		if err != nil {
			return nil, err
		}
		env.Message = raw
	default:
		return nil, fmt.Errorf("unknown event type %T", ev)
	}
	return json.Marshal(env)
}

// DecodeEvent parses a wire envelope into its tagged variant.
func DecodeEvent(payload []byte) (Event, error) {
	var env eventEnvelope
	if err := json.Unmarshal(payload, &env); err != nil {
		return nil, fmt.Errorf("malformed event payload: %w", err)
	}
	switch env.Type {
	case EventTypeMatchFound:
		return MatchFoundEvent{SessionID: env.SessionID}, nil
	case EventTypeSessionEnded:
		return SessionEndedEvent{SessionID: env.SessionID}, nil
	case EventTypeEnd:
		return SessionEndControl{SessionID: env.SessionID}, nil
	case EventTypeNewMessage:
		var msg Message
		if err := json.Unmarshal(env.Message, &msg); err != nil {
			return nil, fmt.Errorf("malformed message event: %w", err)
		}
		return NewMessageEvent{Message: msg}, nil
	}
	return nil, fmt.Errorf("unknown event type %q", env.Type)
}
