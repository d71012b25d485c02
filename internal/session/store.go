// internal/session/store.go
package session

import (
	"context"
	"errors"
	"math/rand"

	"github.com/vege25/duelgame/internal/models"
)

// Sentinel errors returned by Store implementations.
var (
	// ErrNoWaitingLobby signals that no lobby with status 'waiting' was
	// available to claim, or that another participant claimed it first.
	ErrNoWaitingLobby = errors.New("no waiting lobby available")

	// ErrNotFound signals that the requested lobby or game row does not exist.
	ErrNotFound = errors.New("session record not found")

	// ErrNotInGame signals that a departing user matched neither player of the
	// game tied to their session. Should not occur with correct registry
	// bookkeeping; callers treat it as a log-only no-op.
	ErrNotInGame = errors.New("user is not a player in this game")
)

// Store is the narrow persistence contract the session core depends on.
// Implementations must offer all-or-nothing semantics for the multi-step
// operations (ClaimWaitingLobby, MarkDisconnected); a failure rolls back
// every side effect of the call.
type Store interface {
	// CreateLobby inserts a new 'waiting' lobby for the given creator and
	// returns the stored row.
	CreateLobby(ctx context.Context, creatorID int64) (*models.Lobby, error)

	// GetLobby fetches a lobby by id. Returns ErrNotFound if absent.
	GetLobby(ctx context.Context, lobbyID int64) (*models.Lobby, error)

	// ClaimWaitingLobby atomically claims the oldest 'waiting' lobby as the
	// given opponent: it sets opponent_id, moves status to 'ongoing', and
	// creates the paired game with a randomly chosen starting turn holder,
	// all in one transaction. A participant's own waiting lobby is never
	// claimable by them. Returns ErrNoWaitingLobby when there is nothing to
	// claim. Exactly one concurrent caller can win a given lobby.
	ClaimWaitingLobby(ctx context.Context, opponentID int64) (*models.Lobby, *models.Game, error)

	// GetGame fetches a game by id. Returns ErrNotFound if absent.
	GetGame(ctx context.Context, gameID int64) (*models.Game, error)

	// GetGameByLobby fetches the game created from the given lobby.
	// Returns ErrNotFound if the lobby never paired.
	GetGameByLobby(ctx context.Context, lobbyID int64) (*models.Game, error)

	// AdvanceTurn persists nextTurn as the game's current turn holder,
	// increments the turn counter, and returns the updated row.
	AdvanceTurn(ctx context.Context, gameID, nextTurn int64) (*models.Game, error)

	// DeleteSoloLobby deletes the lobby only if it still has userID as its
	// creator and no opponent, as a single conditional operation, and reports
	// whether a row was deleted. A concurrent opponent claim makes this a
	// no-op returning false; the caller then follows the paired-game path.
	DeleteSoloLobby(ctx context.Context, lobbyID, userID int64) (bool, error)

	// MarkDisconnected flags userID as disconnected on the game belonging to
	// lobbyID, inside one transaction. If the other player is already
	// disconnected it deletes the game, the lobby, and every disconnect
	// record for the game and reports tornDown=true; otherwise it inserts a
	// single disconnect record. Returns ErrNotInGame if userID matches
	// neither player, ErrNotFound if the lobby has no game.
	MarkDisconnected(ctx context.Context, lobbyID, userID int64) (gameID int64, tornDown bool, err error)
}

// PickStartingTurn chooses the starting turn holder for a new game with a
// fair coin flip between the two participants.
func PickStartingTurn(player1ID, player2ID int64) int64 {
	if rand.Intn(2) == 0 {
		return player1ID
	}
	return player2ID
}
