package ws

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
)

// Event types - Client → Server
const (
	EventTypeDelivered = "delivered"
	EventTypePing      = "ping"
)

// Event types - both directions
const (
	EventTypeTyping = "typing"
)

// Event types - Server → Client. Lifecycle events use the names in
// domain/events.go.
const (
	EventTypePong  = "pong"
	EventTypeError = "error"
)

// Event is the base envelope for all WebSocket messages.
type Event struct {
	Type      string          `json:"type"`
	Payload   json.RawMessage `json:"payload,omitempty"`
	Timestamp int64           `json:"ts,omitempty"`
}

// --- Client → Server payloads ---

type TypingPayload struct {
	To       uuid.UUID `json:"to"`
	IsTyping bool      `json:"is_typing"`
}

type DeliveredPayload struct {
	MessageID uuid.UUID `json:"message_id"`
}

// --- Server → Client payloads ---

type ErrorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewEvent creates a server→client event with the current timestamp.
func NewEvent(eventType string, payload any) (*Event, error) {
	evt := &Event{Type: eventType, Timestamp: time.Now().Unix()}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return nil, err
		}
		evt.Payload = data
	}
	return evt, nil
}

// encodeEvent builds the wire form of a server→client event.
func encodeEvent(eventType string, payload any) ([]byte, error) {
	evt, err := NewEvent(eventType, payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(evt)
}
