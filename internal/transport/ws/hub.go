package ws

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/vedran77/murmur/internal/domain"
	"github.com/vedran77/murmur/internal/metrics"
	"github.com/vedran77/murmur/internal/presence"
	"github.com/vedran77/murmur/internal/service"
	"go.uber.org/zap"
)

const ackTimeout = 5 * time.Second

// DeliveryAcker records delivery acknowledgements sent over the socket.
type DeliveryAcker interface {
	MarkDelivered(ctx context.Context, userID, messageID uuid.UUID) (*domain.DeliveredEvent, error)
}

// Hub routes events to connected clients. Which client belongs to which user
// lives in the presence directory; the hub adds fan-out and the presence
// broadcasts on top.
type Hub struct {
	dir   *presence.Directory
	acker DeliveryAcker
	log   *zap.Logger

	// presenceMu orders presence broadcasts so clients never receive an
	// older online list after a newer one.
	presenceMu sync.Mutex
}

func NewHub(dir *presence.Directory, acker DeliveryAcker, log *zap.Logger) *Hub {
	dir.OnChange(func(online int) {
		metrics.OnlineUsers.Set(float64(online))
	})
	return &Hub{dir: dir, acker: acker, log: log}
}

// Attach makes c the live connection for its user. A connection the user
// already had is closed.
func (h *Hub) Attach(c *Client) {
	if prev := h.dir.Register(c.userID, c); prev != nil {
		prev.Close("signed in from another session")
		h.log.Info("ws: replaced session", zap.Stringer("user_id", c.userID))
	}
	h.log.Info("ws: user connected",
		zap.Stringer("user_id", c.userID),
		zap.Int("online", h.dir.Count()),
	)
	h.broadcastPresence()
}

// Detach removes c unless a newer connection already took its place.
func (h *Hub) Detach(c *Client) {
	if !h.dir.Release(c.userID, c) {
		return
	}
	h.log.Info("ws: user disconnected",
		zap.Stringer("user_id", c.userID),
		zap.Int("online", h.dir.Count()),
	)
	h.broadcastPresence()
}

// SendToUser pushes an event to userID if they are online. It never blocks;
// the event is dropped when the user is offline or their buffer is full.
func (h *Hub) SendToUser(userID uuid.UUID, eventType string, payload any) bool {
	conn, ok := h.dir.Resolve(userID)
	if !ok {
		metrics.RealtimeEvents.WithLabelValues(eventType, metrics.OutcomeDropped).Inc()
		h.log.Debug("ws: recipient offline, event dropped",
			zap.Stringer("user_id", userID),
			zap.String("event", eventType),
		)
		return false
	}

	data, err := encodeEvent(eventType, payload)
	if err != nil {
		h.log.Error("ws: marshal error", zap.String("event", eventType), zap.Error(err))
		return false
	}
	return h.deliver(userID, conn, eventType, data)
}

// Broadcast sends an event to every connected client.
func (h *Hub) Broadcast(eventType string, payload any) {
	data, err := encodeEvent(eventType, payload)
	if err != nil {
		h.log.Error("ws: marshal error", zap.String("event", eventType), zap.Error(err))
		return
	}
	for _, conn := range h.dir.Snapshot() {
		var userID uuid.UUID
		if c, ok := conn.(*Client); ok {
			userID = c.userID
		}
		h.deliver(userID, conn, eventType, data)
	}
}

// HandleTyping forwards a typing signal to the named peer as-is.
func (h *Hub) HandleTyping(sender *Client, p TypingPayload) {
	if p.To == sender.userID {
		return
	}
	h.SendToUser(p.To, EventTypeTyping, domain.TypingEvent{From: sender.userID, IsTyping: p.IsTyping})
}

// HandleDelivered records that sender's client received a message.
func (h *Hub) HandleDelivered(sender *Client, p DeliveredPayload) {
	ctx, cancel := context.WithTimeout(context.Background(), ackTimeout)
	defer cancel()

	if _, err := h.acker.MarkDelivered(ctx, sender.userID, p.MessageID); err != nil {
		switch {
		case errors.Is(err, service.ErrNotFound):
			sender.sendError("NOT_FOUND", "message not found")
		case errors.Is(err, service.ErrForbidden):
			sender.sendError("FORBIDDEN", "only the recipient can acknowledge delivery")
		default:
			h.log.Error("ws: delivery ack failed",
				zap.Stringer("user_id", sender.userID),
				zap.Stringer("message_id", p.MessageID),
				zap.Error(err),
			)
			sender.sendError("INTERNAL", "operation failed")
		}
	}
}

// Online returns the sorted ids of connected users.
func (h *Hub) Online() []uuid.UUID {
	return h.dir.ListOnline()
}

// CloseAll disconnects every client, used on shutdown.
func (h *Hub) CloseAll(reason string) {
	for _, conn := range h.dir.Snapshot() {
		conn.Close(reason)
	}
}

func (h *Hub) broadcastPresence() {
	h.presenceMu.Lock()
	defer h.presenceMu.Unlock()
	h.Broadcast(domain.EventPresenceUpdate, h.dir.ListOnline())
}

func (h *Hub) deliver(userID uuid.UUID, conn presence.Conn, eventType string, data []byte) bool {
	if !conn.Send(data) {
		metrics.RealtimeEvents.WithLabelValues(eventType, metrics.OutcomeDropped).Inc()
		h.log.Warn("ws: send buffer full, event dropped",
			zap.Stringer("user_id", userID),
			zap.String("event", eventType),
		)
		return false
	}
	metrics.RealtimeEvents.WithLabelValues(eventType, metrics.OutcomeDelivered).Inc()
	return true
}
