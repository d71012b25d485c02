// internal/session/messages.go
package session

import "github.com/vege25/duelgame/internal/models"

// Inbound message discriminants.
const (
	MessageGameDataSet = "game_data_set"
	MessageChangeTurn  = "change_turn"
)

// Outbound status values.
const (
	StatusCreated     = "created"
	StatusJoined      = "joined"
	StatusReadyToSet  = "ready_to_set_game_data"
	StatusTurnChanged = "turn_changed"
)

// ClientMessage is the envelope for every inbound control message. The Type
// field is the discriminant; unknown or missing types are protocol errors.
type ClientMessage struct {
	Type        string `json:"type"`
	UserID      int64  `json:"user_id"`
	GameID      int64  `json:"game_id"`
	CurrentTurn int64  `json:"current_turn"`
}

// CreatedMessage is sent to a participant assigned as lobby creator.
type CreatedMessage struct {
	Status  string `json:"status"`
	LobbyID int64  `json:"lobbyId"`
}

// JoinedMessage is sent to a participant assigned as opponent, together with
// the claimed lobby and the freshly created game.
type JoinedMessage struct {
	Status    string        `json:"status"`
	LobbyData *models.Lobby `json:"lobbyData"`
	GameData  *models.Game  `json:"gameData"`
}

// GameDataMessage carries a game snapshot to the other session members,
// tagged as either a ready notification or a turn-change notification.
type GameDataMessage struct {
	Status   string       `json:"status"`
	GameData *models.Game `json:"gameData"`
}

// ErrorMessage is the shape of every handled failure surfaced to a client.
type ErrorMessage struct {
	Error string `json:"error"`
}
