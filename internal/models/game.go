// internal/models/game.go
package models

import "time"

// Game status values.
const (
	GameOngoing  = "ongoing"
	GameFinished = "finished"
)

// StartingMana is the mana pool both players begin with when a game is created.
const StartingMana = 10

// Game represents a row in the games table. CurrentTurn always holds the id
// of one of the two players. The connectivity flags are flipped by the
// disconnect handler; once both are false the row is torn down together with
// its lobby and disconnect history.
type Game struct {
	GameID           int64     `json:"game_id"`
	LobbyID          int64     `json:"lobby_id"`
	Player1ID        int64     `json:"player1_id"`
	Player2ID        int64     `json:"player2_id"`
	Player1Mana      int       `json:"player1_mana"`
	Player2Mana      int       `json:"player2_mana"`
	Player1Connected bool      `json:"player1_connected"`
	Player2Connected bool      `json:"player2_connected"`
	GameStatus       string    `json:"game_status"` // 'ongoing' or 'finished'
	CurrentTurn      int64     `json:"current_turn"`
	TurnNumber       int       `json:"turn_number"`
	CreatedAt        time.Time `json:"created_at"`
}

// HasPlayer reports whether userID is one of the game's two participants.
func (g *Game) HasPlayer(userID int64) bool {
	return userID == g.Player1ID || userID == g.Player2ID
}
