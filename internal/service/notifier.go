package service

import "github.com/google/uuid"

// Notifier pushes live events to connected users. Delivery is best effort:
// an event for a user without a live connection is dropped.
type Notifier interface {
	Notify(userID uuid.UUID, event string, payload any)
	Broadcast(event string, payload any)
}

// OnlineLister reports who currently holds a live connection.
type OnlineLister interface {
	IsOnline(userID uuid.UUID) bool
	ListOnline() []uuid.UUID
}
