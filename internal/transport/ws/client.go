package ws

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

const (
	writeWait      = 10 * time.Second
	pingInterval   = 30 * time.Second
	maxMessageSize = 4096
	sendBufSize    = 256
)

// Client represents a single WebSocket connection.
type Client struct {
	hub    *Hub
	conn   *websocket.Conn
	userID uuid.UUID
	log    *zap.Logger

	send chan []byte

	// done is closed exactly once by Close. send is never closed, so a
	// late Send on a dead client returns false instead of panicking.
	done        chan struct{}
	closeOnce   sync.Once
	closeReason string
}

func NewClient(hub *Hub, conn *websocket.Conn, userID uuid.UUID, log *zap.Logger) *Client {
	conn.SetReadLimit(maxMessageSize)
	return &Client{
		hub:    hub,
		conn:   conn,
		userID: userID,
		log:    log.With(zap.Stringer("user_id", userID)),
		send:   make(chan []byte, sendBufSize),
		done:   make(chan struct{}),
	}
}

func (c *Client) UserID() uuid.UUID {
	return c.userID
}

// Send queues data for the write pump without blocking.
func (c *Client) Send(data []byte) bool {
	select {
	case <-c.done:
		return false
	default:
	}
	select {
	case c.send <- data:
		return true
	default:
		return false
	}
}

// Close asks the write pump to close the connection with reason.
func (c *Client) Close(reason string) {
	c.closeOnce.Do(func() {
		c.closeReason = reason
		close(c.done)
	})
}

// ReadPump reads events until the connection fails or ctx ends. It detaches
// the client from the hub on the way out.
func (c *Client) ReadPump(ctx context.Context) {
	defer func() {
		c.hub.Detach(c)
		c.Close("")
	}()

	for {
		var event Event
		err := wsjson.Read(ctx, c.conn, &event)
		if err != nil {
			if websocket.CloseStatus(err) != -1 {
				c.log.Debug("ws: client disconnected")
			} else {
				select {
				case <-c.done:
				default:
					c.log.Debug("ws: read error", zap.Error(err))
				}
			}
			return
		}

		c.handleEvent(&event)
	}
}

// WritePump writes messages from the send channel to the WebSocket.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingInterval)
	defer ticker.Stop()

	for {
		select {
		case message := <-c.send:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Write(ctx, websocket.MessageText, message)
			cancel()
			if err != nil {
				c.log.Debug("ws: write error", zap.Error(err))
				c.Close("")
				c.conn.Close(websocket.StatusInternalError, "")
				return
			}

		case <-ticker.C:
			ctx, cancel := context.WithTimeout(context.Background(), writeWait)
			err := c.conn.Ping(ctx)
			cancel()
			if err != nil {
				c.log.Debug("ws: ping error", zap.Error(err))
				c.Close("")
				c.conn.Close(websocket.StatusGoingAway, "")
				return
			}

		case <-c.done:
			c.conn.Close(websocket.StatusNormalClosure, c.closeReason)
			return
		}
	}
}

// handleEvent routes an incoming client event.
func (c *Client) handleEvent(event *Event) {
	switch event.Type {
	case EventTypeTyping:
		var p TypingPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.To == uuid.Nil {
			c.sendError("INVALID_PAYLOAD", "typing requires a target user")
			return
		}
		c.hub.HandleTyping(c, p)

	case EventTypeDelivered:
		var p DeliveredPayload
		if err := json.Unmarshal(event.Payload, &p); err != nil || p.MessageID == uuid.Nil {
			c.sendError("INVALID_PAYLOAD", "delivered requires a message_id")
			return
		}
		c.hub.HandleDelivered(c, p)

	case EventTypePing:
		c.sendEvent(EventTypePong, nil)

	default:
		c.sendError("UNKNOWN_EVENT", "unknown event type: "+event.Type)
	}
}

func (c *Client) sendEvent(eventType string, payload any) {
	data, err := encodeEvent(eventType, payload)
	if err != nil {
		return
	}
	c.Send(data)
}

func (c *Client) sendError(code, message string) {
	c.sendEvent(EventTypeError, ErrorPayload{Code: code, Message: message})
}
