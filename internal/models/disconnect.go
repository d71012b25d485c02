// internal/models/disconnect.go
package models

import "time"

// Disconnect is an append-only record of a single-sided departure from an
// ongoing game. All records for a game are deleted in bulk when the game is
// torn down.
type Disconnect struct {
	DisconnectID   int64     `json:"disconnect_id"`
	GameID         int64     `json:"game_id"`
	UserID         int64     `json:"user_id"`
	DisconnectTime time.Time `json:"disconnect_time"`
}
