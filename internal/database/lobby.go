// internal/database/lobby.go
package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/vege25/duelgame/internal/models"
	"github.com/vege25/duelgame/internal/session"
)

// CreateLobby inserts a new 'waiting' lobby and returns the stored row.
func (s *Store) CreateLobby(ctx context.Context, creatorID int64) (*models.Lobby, error) {
	q := `
	INSERT INTO lobbies (creator_id, status)
	VALUES ($1, 'waiting')
	RETURNING lobby_id, creator_id, opponent_id, status, created_at
	`
	var l models.Lobby
	err := s.pool.QueryRow(ctx, q, creatorID).Scan(
		&l.LobbyID,
		&l.CreatorID,
		&l.OpponentID,
		&l.Status,
		&l.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// GetLobby fetches a lobby by id.
func (s *Store) GetLobby(ctx context.Context, lobbyID int64) (*models.Lobby, error) {
	q := `
	SELECT lobby_id, creator_id, opponent_id, status, created_at
	FROM lobbies
	WHERE lobby_id = $1
	`
	var l models.Lobby
	err := s.pool.QueryRow(ctx, q, lobbyID).Scan(
		&l.LobbyID,
		&l.CreatorID,
		&l.OpponentID,
		&l.Status,
		&l.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

// DeleteSoloLobby deletes the lobby only while it is still a solo lobby of
// the given creator. The condition and the delete are one statement, so an
// opponent claim that commits first simply makes this a no-op.
func (s *Store) DeleteSoloLobby(ctx context.Context, lobbyID, userID int64) (bool, error) {
	tag, err := s.pool.Exec(ctx, `
		DELETE FROM lobbies
		WHERE lobby_id = $1 AND creator_id = $2 AND opponent_id IS NULL
	`, lobbyID, userID)
	if err != nil {
		return false, err
	}
	return tag.RowsAffected() > 0, nil
}
