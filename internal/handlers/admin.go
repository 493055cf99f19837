// internal/handlers/admin.go
package handlers

import (
	"net/http"

	"github.com/cardtable/uno-service/internal/database"
)

// AdminResetHandler force-finishes whatever session occupies a channel,
// freeing it for a new game. The registry drops it regardless of state.
func AdminResetHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req channelRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Channel == "" {
			http.Error(w, "channel is required", http.StatusBadRequest)
			return
		}

		res, err := s.Registry.ForceReset(req.Channel)
		if err != nil {
			writeGameError(w, err)
			return
		}
		s.emit(res)
		writeJSON(w, res.Public)
	}
}

// AdminSessionsHandler lists every live session.
func AdminSessionsHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, s.Registry.ListActiveSessions())
	}
}

// AdminEndAllHandler force-finishes every live session, notifying each
// channel's feed. Also used internally for the shutdown broadcast.
func AdminEndAllHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		results := s.Registry.CloseAll("all games were ended by an admin")
		for _, res := range results {
			s.emit(res)
		}
		writeJSON(w, map[string]int{"ended": len(results)})
	}
}

// AdminAllowChannelHandler adds a channel to the allow-list.
func AdminAllowChannelHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req channelRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Channel == "" {
			http.Error(w, "channel is required", http.StatusBadRequest)
			return
		}
		if err := database.AllowChannel(r.Context(), req.Channel, "admin"); err != nil {
			s.Log.WithError(err).Error("failed to allow channel")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"channel": req.Channel, "status": "allowed"})
	}
}

// AdminRevokeChannelHandler removes a channel from the allow-list.
func AdminRevokeChannelHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req channelRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Channel == "" {
			http.Error(w, "channel is required", http.StatusBadRequest)
			return
		}
		if err := database.RevokeChannel(r.Context(), req.Channel); err != nil {
			s.Log.WithError(err).Error("failed to revoke channel")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]string{"channel": req.Channel, "status": "revoked"})
	}
}

// AdminListChannelsHandler lists the allow-listed channels.
func AdminListChannelsHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys, err := database.ListAllowedChannels(r.Context())
		if err != nil {
			s.Log.WithError(err).Error("failed to list channels")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string][]string{"channels": keys})
	}
}
