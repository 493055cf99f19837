// internal/handlers/feed_ws.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/coder/websocket"

	"github.com/cardtable/uno-service/internal/auth"
	"github.com/cardtable/uno-service/internal/middleware"
)

// Close codes beyond the standard range for subscription rejections.
const (
	BadSubprotocolError   = 3000
	InvalidAuthTokenError = 3001
	NoSuchChannelError    = 3002
)

// FeedWSHandler upgrades the connection to a live feed of one channel's
// session: /feed/ws/{channel}. Subscribers receive every event frame plus a
// state frame after each accepted command. Commands themselves go over the
// HTTP endpoints; the feed is read-only.
func FeedWSHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := strings.Trim(strings.TrimPrefix(r.URL.Path, "/feed/ws/"), "/")
		if channel == "" {
			http.Error(w, "missing channel in path (/feed/ws/{channel})", http.StatusBadRequest)
			return
		}

		c, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			Subprotocols:   []string{"feed"},
			OriginPatterns: []string{"*"},
		})
		if err != nil {
			s.Log.WithError(err).Warnf("websocket accept failed for channel %s", channel)
			return
		}
		if c.Subprotocol() != "feed" {
			c.Close(BadSubprotocolError, "client must use the 'feed' subprotocol")
			return
		}

		token := middleware.TokenFromRequest(r)
		if token == "" {
			token = r.URL.Query().Get("token")
		}
		if _, err := auth.AuthenticateJWT(token); err != nil {
			c.Close(InvalidAuthTokenError, "authentication failed")
			return
		}

		middleware.LogFeedConnect(s.Log, r.RemoteAddr, channel)

		// Send the current state up front when a session is live; a feed for
		// an idle channel just waits for the first event.
		if session, err := s.Registry.FindByChannel(channel); err == nil {
			if err := s.Hub.SendState(r.Context(), c, session.Snapshot()); err != nil {
				c.Close(websocket.StatusInternalError, "initial state write failed")
				return
			}
		}

		sub := s.Hub.Subscribe(channel, c)
		defer s.Hub.Unsubscribe(sub)

		// Read loop: the feed carries nothing inbound, but reading drives
		// ping/pong and detects the close handshake.
		ctx := r.Context()
		var readErr error
		for {
			if _, _, readErr = c.Read(ctx); readErr != nil {
				break
			}
		}
		middleware.LogFeedDisconnect(s.Log, r.RemoteAddr, channel, readErr)
		c.Close(websocket.StatusNormalClosure, "bye")
	}
}
