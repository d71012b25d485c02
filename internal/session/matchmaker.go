// internal/session/matchmaker.go
package session

import (
	"context"
	"errors"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/vege25/duelgame/internal/events"
	"github.com/vege25/duelgame/internal/models"
)

// Role identifies which side of the pairing an arriving participant landed on.
type Role int

const (
	RoleCreator Role = iota
	RoleOpponent
)

func (r Role) String() string {
	if r == RoleOpponent {
		return "opponent"
	}
	return "creator"
}

// Assignment is the result of matchmaking a single participant. Game is nil
// on the creator path; the game does not exist until an opponent arrives.
type Assignment struct {
	Role  Role
	Lobby *models.Lobby
	Game  *models.Game
}

// Matchmaker pairs arriving participants into lobbies: the first arrival
// creates a waiting lobby, the second claims it and gets a game. Assign calls
// are serialized in-process; this process owns all live lobbies, so the mutex
// guarantees exactly one winner per waiting lobby, with the store's
// conditional claim as the database-level backstop against any other writer.
type Matchmaker struct {
	mu     sync.Mutex
	store  Store
	events events.Emitter
	logger *logrus.Logger
}

// NewMatchmaker wires a Matchmaker to its store and event queue.
func NewMatchmaker(store Store, emitter events.Emitter, logger *logrus.Logger) *Matchmaker {
	return &Matchmaker{
		store:  store,
		events: emitter,
		logger: logger,
	}
}

// Assign finds-or-creates a lobby for the participant. A persistence failure
// aborts with no partial state: the claim and the game creation are one store
// transaction, so the opponent path never leaves a claimed lobby without its
// game.
func (m *Matchmaker) Assign(ctx context.Context, participantID int64) (*Assignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	lob, g, err := m.store.ClaimWaitingLobby(ctx, participantID)
	if err == nil {
		m.logger.Infof("user %d joined lobby %d, created game %d", participantID, lob.LobbyID, g.GameID)
		m.emit(ctx, events.Record{
			Event:   events.EventGameCreated,
			LobbyID: lob.LobbyID,
			GameID:  g.GameID,
			UserID:  participantID,
		})
		return &Assignment{Role: RoleOpponent, Lobby: lob, Game: g}, nil
	}
	if !errors.Is(err, ErrNoWaitingLobby) {
		return nil, err
	}

	lob, err = m.store.CreateLobby(ctx, participantID)
	if err != nil {
		return nil, err
	}
	m.logger.Infof("user %d created lobby %d", participantID, lob.LobbyID)
	m.emit(ctx, events.Record{
		Event:   events.EventLobbyCreated,
		LobbyID: lob.LobbyID,
		UserID:  participantID,
	})
	return &Assignment{Role: RoleCreator, Lobby: lob}, nil
}

func (m *Matchmaker) emit(ctx context.Context, rec events.Record) {
	if err := m.events.Publish(ctx, rec); err != nil {
		m.logger.Warnf("failed to publish %s event: %v", rec.Event, err)
	}
}
