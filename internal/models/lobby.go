// internal/models/lobby.go
package models

import "time"

// Lobby status values. A lobby starts out 'waiting' and moves to 'ongoing'
// once an opponent claims it; the status never moves back.
const (
	LobbyWaiting  = "waiting"
	LobbyOngoing  = "ongoing"
	LobbyFinished = "finished"
)

// Lobby represents a row in the lobbies table. OpponentID is nil while the
// lobby is still waiting for a second participant.
type Lobby struct {
	LobbyID    int64     `json:"lobby_id"`
	CreatorID  int64     `json:"creator_id"`
	OpponentID *int64    `json:"opponent_id"`
	Status     string    `json:"status"` // 'waiting', 'ongoing', or 'finished'
	CreatedAt  time.Time `json:"created_at"`
}
