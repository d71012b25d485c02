// internal/database/game.go
package database

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"

	"github.com/vege25/duelgame/internal/models"
	"github.com/vege25/duelgame/internal/session"
)

const gameColumns = `
	game_id, lobby_id, player1_id, player2_id,
	player1_mana, player2_mana,
	player1_connected, player2_connected,
	game_status, current_turn, turn_number, created_at
`

func scanGame(row pgx.Row) (*models.Game, error) {
	var g models.Game
	err := row.Scan(
		&g.GameID,
		&g.LobbyID,
		&g.Player1ID,
		&g.Player2ID,
		&g.Player1Mana,
		&g.Player2Mana,
		&g.Player1Connected,
		&g.Player2Connected,
		&g.GameStatus,
		&g.CurrentTurn,
		&g.TurnNumber,
		&g.CreatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, session.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &g, nil
}

// ClaimWaitingLobby atomically claims the oldest waiting lobby as the given
// opponent and creates its game, all in one transaction. The row lock plus
// the conditional UPDATE guarantee exactly one winner per lobby under
// concurrent claims.
func (s *Store) ClaimWaitingLobby(ctx context.Context, opponentID int64) (*models.Lobby, *models.Game, error) {
	var l models.Lobby
	var g *models.Game

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var lobbyID, creatorID int64
		err := tx.QueryRow(ctx, `
			SELECT lobby_id, creator_id
			FROM lobbies
			WHERE status = 'waiting' AND creator_id <> $1
			ORDER BY created_at ASC
			LIMIT 1
			FOR UPDATE SKIP LOCKED
		`, opponentID).Scan(&lobbyID, &creatorID)
		if errors.Is(err, pgx.ErrNoRows) {
			return session.ErrNoWaitingLobby
		}
		if err != nil {
			return err
		}

		tag, err := tx.Exec(ctx, `
			UPDATE lobbies
			SET opponent_id = $1, status = 'ongoing'
			WHERE lobby_id = $2 AND status = 'waiting'
		`, opponentID, lobbyID)
		if err != nil {
			return err
		}
		if tag.RowsAffected() == 0 {
			return session.ErrNoWaitingLobby
		}

		startingTurn := session.PickStartingTurn(creatorID, opponentID)
		g, err = scanGame(tx.QueryRow(ctx, `
			INSERT INTO games (
				lobby_id, player1_id, player2_id,
				player1_mana, player2_mana,
				game_status, current_turn
			)
			VALUES ($1, $2, $3, $4, $5, 'ongoing', $6)
			RETURNING `+gameColumns,
			lobbyID, creatorID, opponentID,
			models.StartingMana, models.StartingMana,
			startingTurn,
		))
		if err != nil {
			return err
		}

		return tx.QueryRow(ctx, `
			SELECT lobby_id, creator_id, opponent_id, status, created_at
			FROM lobbies
			WHERE lobby_id = $1
		`, lobbyID).Scan(&l.LobbyID, &l.CreatorID, &l.OpponentID, &l.Status, &l.CreatedAt)
	})
	if err != nil {
		return nil, nil, err
	}
	return &l, g, nil
}

// GetGame fetches a game by id.
func (s *Store) GetGame(ctx context.Context, gameID int64) (*models.Game, error) {
	return scanGame(s.pool.QueryRow(ctx,
		`SELECT `+gameColumns+` FROM games WHERE game_id = $1`, gameID))
}

// GetGameByLobby fetches the game created from the given lobby.
func (s *Store) GetGameByLobby(ctx context.Context, lobbyID int64) (*models.Game, error) {
	return scanGame(s.pool.QueryRow(ctx,
		`SELECT `+gameColumns+` FROM games WHERE lobby_id = $1`, lobbyID))
}

// AdvanceTurn persists the new turn holder, bumps the turn counter, and
// returns the updated row.
func (s *Store) AdvanceTurn(ctx context.Context, gameID, nextTurn int64) (*models.Game, error) {
	return scanGame(s.pool.QueryRow(ctx, `
		UPDATE games
		SET current_turn = $1, turn_number = turn_number + 1
		WHERE game_id = $2
		RETURNING `+gameColumns,
		nextTurn, gameID,
	))
}

// MarkDisconnected clears the departing player's connectivity flag inside one
// transaction. If the other player is already gone it deletes the game, the
// lobby, and the game's disconnect history; otherwise it inserts one
// disconnect record. Any failure rolls the whole transaction back.
func (s *Store) MarkDisconnected(ctx context.Context, lobbyID, userID int64) (int64, bool, error) {
	var gameID int64
	var tornDown bool

	err := pgx.BeginTxFunc(ctx, s.pool, pgx.TxOptions{}, func(tx pgx.Tx) error {
		var p1, p2 int64
		var p1Connected, p2Connected bool
		err := tx.QueryRow(ctx, `
			SELECT game_id, player1_id, player2_id, player1_connected, player2_connected
			FROM games
			WHERE lobby_id = $1
			FOR UPDATE
		`, lobbyID).Scan(&gameID, &p1, &p2, &p1Connected, &p2Connected)
		if errors.Is(err, pgx.ErrNoRows) {
			return session.ErrNotFound
		}
		if err != nil {
			return err
		}

		var column string
		var otherConnected bool
		switch userID {
		case p1:
			column = "player1_connected"
			otherConnected = p2Connected
		case p2:
			column = "player2_connected"
			otherConnected = p1Connected
		default:
			return session.ErrNotInGame
		}

		if _, err := tx.Exec(ctx,
			`UPDATE games SET `+column+` = false WHERE game_id = $1`, gameID); err != nil {
			return err
		}

		if !otherConnected {
			// Both players are gone: full teardown.
			if _, err := tx.Exec(ctx, `DELETE FROM disconnects WHERE game_id = $1`, gameID); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `DELETE FROM games WHERE game_id = $1`, gameID); err != nil {
				return err
			}
			if _, err := tx.Exec(ctx, `DELETE FROM lobbies WHERE lobby_id = $1`, lobbyID); err != nil {
				return err
			}
			tornDown = true
			return nil
		}

		_, err = tx.Exec(ctx, `
			INSERT INTO disconnects (game_id, user_id, disconnect_time)
			VALUES ($1, $2, NOW())
		`, gameID, userID)
		return err
	})
	if err != nil {
		return 0, false, err
	}
	return gameID, tornDown, nil
}
