// internal/session/coordinator.go
package session

import (
	"context"
	"encoding/json"

	"github.com/sirupsen/logrus"

	"github.com/vege25/duelgame/internal/events"
)

// Client-facing error strings. Internal failure details stay in the server
// log; clients get a stable, generic message.
const (
	errInvalidFormat = "Invalid message format. Please check the message structure and try again."
	errUnknownType   = "Unknown message type."
	errServerFailure = "An error occurred on the server. Please try again later."
	errGameMismatch  = "Game does not belong to your session."
	errNotYourTurn   = "It is not your turn."
	errBadTurnTarget = "Requested turn holder is not a player in this game."
)

// Coordinator validates and applies in-session control messages against the
// store and relays the results to the other session members. A game only ever
// moves from 'ongoing' to 'finished'; the coordinator itself never terminates
// a game, that path belongs to the disconnect handler.
type Coordinator struct {
	store    Store
	registry *Registry
	events   events.Emitter
	logger   *logrus.Logger
}

// NewCoordinator wires a Coordinator to its collaborators.
func NewCoordinator(store Store, registry *Registry, emitter events.Emitter, logger *logrus.Logger) *Coordinator {
	return &Coordinator{
		store:    store,
		registry: registry,
		events:   emitter,
		logger:   logger,
	}
}

// HandleMessage processes one inbound message from conn. The persistence
// write and the broadcast happen as one sequential step, so relay order to
// any recipient matches commit order. Malformed or unknown messages answer
// the sender only and never reach other session members.
func (c *Coordinator) HandleMessage(ctx context.Context, conn *Conn, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		c.logger.Warnf("session %d: invalid json from user %d: %v", conn.SessionID, conn.UserID, err)
		conn.WriteError(errInvalidFormat)
		return
	}

	switch msg.Type {
	case MessageGameDataSet:
		c.handleGameDataSet(ctx, conn, msg)
	case MessageChangeTurn:
		c.handleChangeTurn(ctx, conn, msg)
	default:
		c.logger.Warnf("session %d: unknown message type %q from user %d", conn.SessionID, msg.Type, conn.UserID)
		conn.WriteError(errUnknownType)
	}
}

// handleGameDataSet relays the current persisted game snapshot to every other
// session member as a ready notification. No state mutation occurs.
func (c *Coordinator) handleGameDataSet(ctx context.Context, conn *Conn, msg ClientMessage) {
	g, err := c.store.GetGame(ctx, msg.GameID)
	if err != nil {
		c.logger.Warnf("session %d: fetching game %d: %v", conn.SessionID, msg.GameID, err)
		conn.WriteError(errServerFailure)
		return
	}
	if g.LobbyID != conn.SessionID {
		conn.WriteError(errGameMismatch)
		return
	}

	c.logger.Infof("user %d set game data for game %d", conn.UserID, g.GameID)
	c.registry.BroadcastExcept(conn.SessionID, conn, GameDataMessage{
		Status:   StatusReadyToSet,
		GameData: g,
	})
}

// handleChangeTurn advances the turn holder. Only the persisted current turn
// holder may advance the turn, and only to one of the game's two players;
// illegitimate requests are answered with a protocol error instead of being
// applied.
func (c *Coordinator) handleChangeTurn(ctx context.Context, conn *Conn, msg ClientMessage) {
	g, err := c.store.GetGame(ctx, msg.GameID)
	if err != nil {
		c.logger.Warnf("session %d: fetching game %d: %v", conn.SessionID, msg.GameID, err)
		conn.WriteError(errServerFailure)
		return
	}
	if g.LobbyID != conn.SessionID {
		conn.WriteError(errGameMismatch)
		return
	}
	if g.CurrentTurn != conn.UserID {
		c.logger.Warnf("user %d tried to change turn for game %d out of turn", conn.UserID, g.GameID)
		conn.WriteError(errNotYourTurn)
		return
	}
	if !g.HasPlayer(msg.CurrentTurn) {
		c.logger.Warnf("user %d requested turn holder %d who is not in game %d", conn.UserID, msg.CurrentTurn, g.GameID)
		conn.WriteError(errBadTurnTarget)
		return
	}

	updated, err := c.store.AdvanceTurn(ctx, msg.GameID, msg.CurrentTurn)
	if err != nil {
		c.logger.Warnf("session %d: advancing turn for game %d: %v", conn.SessionID, msg.GameID, err)
		conn.WriteError(errServerFailure)
		return
	}

	c.logger.Infof("user %d advanced game %d to turn %d (holder %d)", conn.UserID, updated.GameID, updated.TurnNumber, updated.CurrentTurn)
	if err := c.events.Publish(ctx, events.Record{
		Event:   events.EventTurnChanged,
		LobbyID: updated.LobbyID,
		GameID:  updated.GameID,
		UserID:  conn.UserID,
	}); err != nil {
		c.logger.Warnf("failed to publish turn_changed event: %v", err)
	}

	c.registry.BroadcastExcept(conn.SessionID, conn, GameDataMessage{
		Status:   StatusTurnChanged,
		GameData: updated,
	})
}
