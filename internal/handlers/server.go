// internal/handlers/server.go
package handlers

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/cardtable/uno-service/internal/cache"
	"github.com/cardtable/uno-service/internal/game"
)

// Server bundles the session registry with the feed hub and logger so the
// HTTP and WebSocket handlers share one wiring point.
type Server struct {
	Registry *game.Registry
	Hub      *Hub
	Log      *logrus.Logger
}

// NewServer builds a Server around a fresh registry and hub.
func NewServer(log *logrus.Logger, idleTTL time.Duration) *Server {
	return &Server{
		Registry: game.NewRegistry(log, idleTTL),
		Hub:      NewHub(log),
		Log:      log,
	}
}

// emit fans a command result out to the channel's feed subscribers and
// queues its events for the archive. Called after the session lock is
// released; the result carries immutable snapshots.
func (s *Server) emit(res *game.Result) {
	if res == nil {
		return
	}
	s.Hub.Broadcast(res)

	for _, ev := range res.Events {
		record := cache.EventRecord{
			SessionID:  ev.SessionID,
			ChannelKey: ev.ChannelKey,
			EventType:  string(ev.Type),
			ActorID:    ev.ActorID,
			Message:    ev.Message,
			Timestamp:  ev.At.UnixMilli(),
		}
		go func() {
			ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
			defer cancel()
			if err := cache.PublishEvent(ctx, record); err != nil {
				s.Log.WithError(err).Warn("failed to archive event")
			}
		}()
	}
}

// writeJSON renders a 200 response with a JSON body.
func writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

// errorBody is the JSON shape of every rejected command.
type errorBody struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// writeGameError maps the rule-engine error classes onto HTTP statuses:
// validation 400, conflict 409, not-found 404.
func writeGameError(w http.ResponseWriter, err error) {
	status := http.StatusNotFound
	switch {
	case game.IsValidation(err):
		status = http.StatusBadRequest
	case game.IsConflict(err):
		status = http.StatusConflict
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(errorBody{Error: game.CodeOf(err), Message: err.Error()})
}

// decodeBody parses a JSON request body into v.
func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		http.Error(w, "bad request payload", http.StatusBadRequest)
		return false
	}
	return true
}
