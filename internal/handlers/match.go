// internal/handlers/match.go
package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/vege25/duelgame/internal/models"
	"github.com/vege25/duelgame/internal/session"
)

type matchRequest struct {
	UserID int64 `json:"user_id"`
}

// MatchResponse is the reply of the HTTP matchmaking endpoint. Game is only
// present on the opponent path.
type MatchResponse struct {
	Message string        `json:"message"`
	Lobby   *models.Lobby `json:"lobby"`
	Game    *models.Game  `json:"game,omitempty"`
}

// MatchHandler runs the same matchmaker as the WebSocket flow without a live
// socket: the caller gets its lobby (and game, when paired) and connects over
// WebSocket separately. Identity verification happens upstream.
func MatchHandler(srv *SessionServer) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}

		var req matchRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "bad request payload", http.StatusBadRequest)
			return
		}
		if req.UserID <= 0 {
			http.Error(w, "user_id is required", http.StatusBadRequest)
			return
		}

		assignment, err := srv.Matchmaker.Assign(r.Context(), req.UserID)
		if err != nil {
			srv.Logger.Warnf("match request for user %d failed: %v", req.UserID, err)
			http.Error(w, "failed to assign lobby", http.StatusInternalServerError)
			return
		}

		resp := MatchResponse{Lobby: assignment.Lobby, Game: assignment.Game}
		if assignment.Role == session.RoleOpponent {
			resp.Message = "Joined existing lobby and created new game"
		} else {
			resp.Message = "Created new lobby"
		}

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(resp)
	}
}
