// internal/handlers/token.go
package handlers

import (
	"net/http"
	"strings"

	"github.com/cardtable/uno-service/internal/auth"
)

// TokenHandler mints a session token for a caller-chosen user id. The id is
// the player's chat identity; there is no password credential, the token
// only binds subsequent commands to one identity.
func TokenHandler(s *Server) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req struct {
			UserID string `json:"user_id"`
		}
		if !decodeBody(w, r, &req) {
			return
		}
		req.UserID = strings.TrimSpace(req.UserID)
		if req.UserID == "" {
			http.Error(w, "user_id is required", http.StatusBadRequest)
			return
		}

		token, err := auth.CreateJWT(req.UserID)
		if err != nil {
			s.Log.WithError(err).Error("failed to mint token")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		http.SetCookie(w, &http.Cookie{
			Name:     "auth_token",
			Value:    token,
			Path:     "/",
			HttpOnly: true,
			SameSite: http.SameSiteLaxMode,
		})
		writeJSON(w, map[string]string{"token": token, "user_id": req.UserID})
	}
}
