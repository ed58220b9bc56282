package ws

import (
	"context"
	"errors"
	"net/http"
	"net/url"

	"github.com/google/uuid"
	"github.com/vedran77/murmur/internal/auth"
	"github.com/vedran77/murmur/internal/service"
	"go.uber.org/zap"
	"nhooyr.io/websocket"
)

// Authenticator resolves an access token to a user id.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (uuid.UUID, error)
}

// ServeWS returns an HTTP handler that upgrades to WebSocket. The token is
// checked before the upgrade, so an unauthenticated client never gets a
// socket. allowedOrigin "*" accepts any origin.
func ServeWS(hub *Hub, authn Authenticator, allowedOrigin string, log *zap.Logger) http.HandlerFunc {
	opts := &websocket.AcceptOptions{}
	if allowedOrigin == "" || allowedOrigin == "*" {
		opts.InsecureSkipVerify = true
	} else if u, err := url.Parse(allowedOrigin); err == nil && u.Host != "" {
		opts.OriginPatterns = []string{u.Host}
	} else {
		opts.OriginPatterns = []string{allowedOrigin}
	}

	return func(w http.ResponseWriter, r *http.Request) {
		userID, err := authn.Authenticate(r.Context(), auth.TokenFromRequest(r))
		if err != nil {
			if errors.Is(err, service.ErrUnauthorized) {
				http.Error(w, "unauthorized", http.StatusUnauthorized)
				return
			}
			log.Error("ws: authenticate failed", zap.Error(err))
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		conn, err := websocket.Accept(w, r, opts)
		if err != nil {
			log.Warn("ws: accept error", zap.Error(err))
			return
		}

		client := NewClient(hub, conn, userID, log)
		hub.Attach(client)

		go client.WritePump()
		client.ReadPump(r.Context())
	}
}
