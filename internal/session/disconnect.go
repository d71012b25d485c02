// internal/session/disconnect.go
package session

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"

	"github.com/vege25/duelgame/internal/events"
)

// Disconnector reacts to connection loss. A solo lobby is deleted outright;
// a paired game gets the departing player's connectivity flag cleared, with
// full teardown once both players are gone. All multi-step mutation happens
// inside one store transaction, so a failure never leaves partial teardown
// behind.
type Disconnector struct {
	store  Store
	events events.Emitter
	logger *logrus.Logger
}

// NewDisconnector wires a Disconnector to its store and event queue.
func NewDisconnector(store Store, emitter events.Emitter, logger *logrus.Logger) *Disconnector {
	return &Disconnector{
		store:  store,
		events: emitter,
		logger: logger,
	}
}

// HandleDisconnect runs the cleanup for a departed participant, keyed by the
// session (lobby) id recorded at join time. Registry membership is the
// caller's responsibility and is removed regardless of this outcome.
func (d *Disconnector) HandleDisconnect(ctx context.Context, lobbyID, userID int64) error {
	// The solo check and the delete are one conditional store operation: an
	// opponent claim racing this departure either commits first, in which
	// case nothing is deleted and the paired-game path below applies, or
	// finds no waiting lobby.
	deleted, err := d.store.DeleteSoloLobby(ctx, lobbyID, userID)
	if err != nil {
		d.logger.Warnf("disconnect: deleting solo lobby %d: %v", lobbyID, err)
		return err
	}

	if deleted {
		d.logger.Infof("deleted solo lobby %d after user %d left", lobbyID, userID)
		d.emit(ctx, events.Record{
			Event:   events.EventLobbyDeleted,
			LobbyID: lobbyID,
			UserID:  userID,
		})
		return nil
	}

	gameID, tornDown, err := d.store.MarkDisconnected(ctx, lobbyID, userID)
	switch {
	case errors.Is(err, ErrNotInGame):
		d.logger.Warnf("disconnect: user %d is not a player in the game for lobby %d, ignoring", userID, lobbyID)
		return nil
	case errors.Is(err, ErrNotFound):
		// The session was already cleaned up, e.g. the lobby was torn down
		// while this connection was going away.
		d.logger.Infof("disconnect: no session state left for lobby %d, nothing to do", lobbyID)
		return nil
	case err != nil:
		d.logger.Warnf("disconnect: handling departure of user %d from lobby %d: %v", userID, lobbyID, err)
		return err
	}

	if tornDown {
		d.logger.Infof("both players gone, tore down game %d and lobby %d", gameID, lobbyID)
		d.emit(ctx, events.Record{
			Event:   events.EventGameTornDown,
			LobbyID: lobbyID,
			GameID:  gameID,
			UserID:  userID,
		})
		return nil
	}

	d.logger.Infof("recorded disconnect of user %d from game %d, awaiting other player", userID, gameID)
	d.emit(ctx, events.Record{
		Event:   events.EventPlayerDisconnected,
		LobbyID: lobbyID,
		GameID:  gameID,
		UserID:  userID,
	})
	return nil
}

func (d *Disconnector) emit(ctx context.Context, rec events.Record) {
	if err := d.events.Publish(ctx, rec); err != nil {
		d.logger.Warnf("failed to publish %s event: %v", rec.Event, err)
	}
}
