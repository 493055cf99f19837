// internal/handlers/session.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/cardtable/uno-service/internal/database"
	"github.com/cardtable/uno-service/internal/middleware"
)

// channelRequest is the shared body of the lobby-phase commands. Host
// defaults to the authenticated caller where it is omitted.
type channelRequest struct {
	Channel string `json:"channel"`
	Host    string `json:"host"`
}

// CreateSessionHandler opens a lobby in a channel with the caller as host.
func CreateSessionHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req channelRequest
		if !decodeBody(w, r, &req) {
			return
		}
		req.Channel = strings.TrimSpace(req.Channel)
		if req.Channel == "" {
			http.Error(w, "channel is required", http.StatusBadRequest)
			return
		}

		allowed, err := database.ChannelAllowed(r.Context(), req.Channel)
		if err != nil {
			s.Log.WithError(err).Error("allowlist lookup failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}
		if !allowed {
			http.Error(w, "games are not allowed in this channel", http.StatusForbidden)
			return
		}

		res, err := s.Registry.CreateSession(userID, req.Channel)
		if err != nil {
			writeGameError(w, err)
			return
		}
		s.emit(res)
		writeJSON(w, res.Public)
	}
}

// JoinSessionHandler adds the caller to the lobby hosted by the given user.
func JoinSessionHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req channelRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Host == "" {
			http.Error(w, "host is required", http.StatusBadRequest)
			return
		}

		res, err := s.Registry.Join(req.Host, userID)
		if err != nil {
			writeGameError(w, err)
			return
		}
		s.emit(res)
		writeJSON(w, res.Public)
	}
}

// LeaveSessionHandler removes the caller from a lobby before it starts.
func LeaveSessionHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req channelRequest
		if !decodeBody(w, r, &req) {
			return
		}
		if req.Host == "" {
			http.Error(w, "host is required", http.StatusBadRequest)
			return
		}

		res, err := s.Registry.Leave(req.Host, userID)
		if err != nil {
			writeGameError(w, err)
			return
		}
		s.emit(res)
		writeJSON(w, res.Public)
	}
}

// CancelSessionHandler tears a lobby or running game down. Host only.
func CancelSessionHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req channelRequest
		if !decodeBody(w, r, &req) {
			return
		}
		host := req.Host
		if host == "" {
			host = userID
		}

		res, err := s.Registry.Cancel(host, userID)
		if err != nil {
			writeGameError(w, err)
			return
		}
		s.emit(res)
		writeJSON(w, res.Public)
	}
}

// StartSessionHandler deals the opening hands and begins play. Host only.
func StartSessionHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID := middleware.UserID(r.Context())
		var req channelRequest
		if !decodeBody(w, r, &req) {
			return
		}
		host := req.Host
		if host == "" {
			host = userID
		}

		res, err := s.Registry.Start(host, userID)
		if err != nil {
			writeGameError(w, err)
			return
		}
		s.emit(res)
		writeJSON(w, res.Public)
	}
}

// SessionStateHandler returns the public state of the channel's session,
// with the rendered roster. Any authenticated user may look.
func SessionStateHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		channel := r.URL.Query().Get("channel")
		if channel == "" {
			http.Error(w, "channel is required", http.StatusBadRequest)
			return
		}

		session, err := s.Registry.FindByChannel(channel)
		if err != nil {
			writeGameError(w, err)
			return
		}
		ps := session.Snapshot()
		writeJSON(w, struct {
			State  interface{} `json:"state"`
			Roster string      `json:"roster"`
		}{State: ps, Roster: ps.Roster()})
	}
}
