// internal/handlers/gameplay.go
package handlers

import (
	"net/http"

	"github.com/cardtable/uno-service/internal/game"
	"github.com/cardtable/uno-service/internal/middleware"
)

// playRequest carries one card play: the card descriptor the client rendered
// plus the hand index it was shown at. Both are re-validated under the
// session lock, so plays against a stale render fail cleanly.
type playRequest struct {
	Channel string    `json:"channel"`
	Card    game.Card `json:"card"`
	Index   int       `json:"index"`
}

// findSession resolves a channel to the caller's running session or writes
// the error response.
func findSession(s *Server, w http.ResponseWriter, r *http.Request, channel string) (*game.Session, string, bool) {
	userID := middleware.UserID(r.Context())
	if channel == "" {
		http.Error(w, "channel is required", http.StatusBadRequest)
		return nil, "", false
	}
	session, err := s.Registry.FindByParticipant(channel, userID)
	if err != nil {
		writeGameError(w, err)
		return nil, "", false
	}
	return session, userID, true
}

// handResponse is the private view returned to the acting player.
type handResponse struct {
	Hand       []game.Card `json:"hand"`
	LegalPlays []int       `json:"legal_plays"`
	Drawn      []game.Card `json:"drawn,omitempty"`
	ChooseWild bool        `json:"choose_wild,omitempty"`
}

// privateView pairs a command result with recomputed legal plays.
func privateView(session *game.Session, userID string, res *game.Result) handResponse {
	out := handResponse{
		Hand:       res.Hand,
		Drawn:      res.Drawn,
		ChooseWild: res.PendingWild,
	}
	// Best effort: the player may have been eliminated by this command.
	if idx, err := session.LegalPlayIndices(userID); err == nil {
		out.LegalPlays = idx
	}
	return out
}

// HandHandler returns the caller's current hand and its playable indices.
func HandHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		session, userID, ok := findSession(s, w, r, r.URL.Query().Get("channel"))
		if !ok {
			return
		}
		hand, err := session.HandOf(userID)
		if err != nil {
			writeGameError(w, err)
			return
		}
		out := handResponse{Hand: hand}
		if idx, err := session.LegalPlayIndices(userID); err == nil {
			out.LegalPlays = idx
		}
		writeJSON(w, out)
	}
}

// PlayHandler applies one card play. A wild comes back with choose_wild set
// and must be completed via the color endpoint.
func PlayHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req playRequest
		if !decodeBody(w, r, &req) {
			return
		}
		session, userID, ok := findSession(s, w, r, req.Channel)
		if !ok {
			return
		}

		res, err := session.ApplyPlay(userID, req.Card, req.Index)
		if err != nil {
			writeGameError(w, err)
			return
		}
		s.emit(res)
		writeJSON(w, privateView(session, userID, res))
	}
}

// colorRequest completes or abandons a pending wild play.
type colorRequest struct {
	Channel string `json:"channel"`
	Color   string `json:"color"`
}

// ColorHandler completes a suspended wild play with the chosen color.
func ColorHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req colorRequest
		if !decodeBody(w, r, &req) {
			return
		}
		session, userID, ok := findSession(s, w, r, req.Channel)
		if !ok {
			return
		}

		color, _ := game.ParseColor(req.Color)
		res, err := session.SelectWildColor(userID, color)
		if err != nil {
			writeGameError(w, err)
			return
		}
		s.emit(res)
		writeJSON(w, privateView(session, userID, res))
	}
}

// CancelColorHandler abandons a pending wild play without consuming the turn.
func CancelColorHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req colorRequest
		if !decodeBody(w, r, &req) {
			return
		}
		session, userID, ok := findSession(s, w, r, req.Channel)
		if !ok {
			return
		}

		res, err := session.CancelWildSelection(userID)
		if err != nil {
			writeGameError(w, err)
			return
		}
		writeJSON(w, privateView(session, userID, res))
	}
}

// DrawHandler draws one card on the caller's turn.
func DrawHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req channelRequest
		if !decodeBody(w, r, &req) {
			return
		}
		session, userID, ok := findSession(s, w, r, req.Channel)
		if !ok {
			return
		}

		res, err := session.ApplyDraw(userID)
		if err != nil {
			writeGameError(w, err)
			return
		}
		s.emit(res)
		writeJSON(w, privateView(session, userID, res))
	}
}

// UnoHandler resolves the declare race: a one-card player saying it first is
// safe, anyone else catching them forces the penalty draw.
func UnoHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req channelRequest
		if !decodeBody(w, r, &req) {
			return
		}
		session, userID, ok := findSession(s, w, r, req.Channel)
		if !ok {
			return
		}

		res, err := session.CallOut(userID)
		if err != nil {
			writeGameError(w, err)
			return
		}
		s.emit(res)
		writeJSON(w, privateView(session, userID, res))
	}
}

// QuitHandler removes the caller from a running game.
func QuitHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req channelRequest
		if !decodeBody(w, r, &req) {
			return
		}
		session, userID, ok := findSession(s, w, r, req.Channel)
		if !ok {
			return
		}

		res, err := session.LeaveDuringGame(userID)
		if err != nil {
			writeGameError(w, err)
			return
		}
		s.emit(res)
		writeJSON(w, res.Public)
	}
}
