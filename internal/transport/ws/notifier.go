package ws

import (
	"github.com/google/uuid"
)

// HubNotifier implements service.Notifier using the WebSocket Hub.
type HubNotifier struct {
	hub *Hub
}

func NewHubNotifier(hub *Hub) *HubNotifier {
	return &HubNotifier{hub: hub}
}

func (n *HubNotifier) Notify(userID uuid.UUID, event string, payload any) {
	n.hub.SendToUser(userID, event, payload)
}

func (n *HubNotifier) Broadcast(event string, payload any) {
	n.hub.Broadcast(event, payload)
}
