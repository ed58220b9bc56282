package auth

import (
	"net/http"
	"strings"
)

// CookieName is the cookie the browser client keeps its access token in.
const CookieName = "jwt"

// TokenFromRequest finds the access token on r. It checks, in order, the
// Authorization bearer header, the ?token= query parameter (browsers cannot
// set headers on a websocket upgrade) and the session cookie.
func TokenFromRequest(r *http.Request) string {
	if header := r.Header.Get("Authorization"); header != "" {
		if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
			return strings.TrimSpace(header[7:])
		}
	}
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	if c, err := r.Cookie(CookieName); err == nil {
		return c.Value
	}
	return ""
}
