package domain

import (
	"time"

	"github.com/google/uuid"
)

// Realtime event names pushed to clients.
const (
	EventPresenceUpdate   = "presence:update"
	EventMessageNew       = "message:new"
	EventMessageEdit      = "message:edit"
	EventMessageDelete    = "message:delete"
	EventMessageReaction  = "message:reaction"
	EventMessageDelivered = "message:delivered"
	EventMessageRead      = "message:read"
	EventTyping           = "typing"
)

type ReactionEvent struct {
	MessageID uuid.UUID  `json:"message_id"`
	Reactions []Reaction `json:"reactions"`
}

type DeleteEvent struct {
	MessageID uuid.UUID   `json:"message_id"`
	Scope     DeleteScope `json:"scope"`
}

type DeliveredEvent struct {
	MessageID   uuid.UUID `json:"message_id"`
	DeliveredAt time.Time `json:"delivered_at"`
}

type ReadEvent struct {
	MessageIDs []uuid.UUID `json:"message_ids"`
	ReadAt     time.Time   `json:"read_at"`
}

type TypingEvent struct {
	From     uuid.UUID `json:"from"`
	IsTyping bool      `json:"is_typing"`
}
