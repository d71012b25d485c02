// internal/session/coordinator_test.go
package session

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vege25/duelgame/internal/events"
	"github.com/vege25/duelgame/internal/models"
)

// pairedSession builds a store with one paired game and a registry holding a
// live connection per player.
func pairedSession(t *testing.T) (*MemoryStore, *Coordinator, *models.Game, *Conn, *Conn) {
	t.Helper()
	store := NewMemoryStore()
	registry := NewRegistry()
	coord := NewCoordinator(store, registry, events.Nop{}, testLogger())

	mm := NewMatchmaker(store, events.Nop{}, testLogger())
	ctx := context.Background()
	_, err := mm.Assign(ctx, 1)
	require.NoError(t, err)
	a, err := mm.Assign(ctx, 2)
	require.NoError(t, err)
	require.NotNil(t, a.Game)

	c1 := NewConn(1, a.Lobby.LobbyID, func() {})
	c2 := NewConn(2, a.Lobby.LobbyID, func() {})
	registry.Join(a.Lobby.LobbyID, c1)
	registry.Join(a.Lobby.LobbyID, c2)
	return store, coord, a.Game, c1, c2
}

func TestGameDataSetRelaysSnapshot(t *testing.T) {
	_, coord, g, c1, c2 := pairedSession(t)

	raw := []byte(fmt.Sprintf(`{"type":"game_data_set","user_id":1,"game_id":%d}`, g.GameID))
	coord.HandleMessage(context.Background(), c1, raw)

	msg := recv(t, c2)
	gd, ok := msg.(GameDataMessage)
	require.True(t, ok, "expected GameDataMessage, got %#v", msg)
	assert.Equal(t, StatusReadyToSet, gd.Status)
	require.NotNil(t, gd.GameData)
	assert.Equal(t, g.GameID, gd.GameData.GameID)

	assertNoMessage(t, c1)
}

func TestChangeTurnPersistsAndRelays(t *testing.T) {
	store, coord, g, c1, c2 := pairedSession(t)

	sender, recipient := c1, c2
	if g.CurrentTurn == 2 {
		sender, recipient = c2, c1
	}
	target := recipient.UserID

	raw := []byte(fmt.Sprintf(`{"type":"change_turn","user_id":%d,"game_id":%d,"current_turn":%d}`,
		sender.UserID, g.GameID, target))
	coord.HandleMessage(context.Background(), sender, raw)

	msg := recv(t, recipient)
	gd, ok := msg.(GameDataMessage)
	require.True(t, ok, "expected GameDataMessage, got %#v", msg)
	assert.Equal(t, StatusTurnChanged, gd.Status)
	require.NotNil(t, gd.GameData)
	assert.Equal(t, target, gd.GameData.CurrentTurn)
	assert.Equal(t, g.TurnNumber+1, gd.GameData.TurnNumber)
	assertNoMessage(t, sender)

	stored, err := store.GetGame(context.Background(), g.GameID)
	require.NoError(t, err)
	assert.Equal(t, target, stored.CurrentTurn)
	assert.True(t, stored.HasPlayer(stored.CurrentTurn), "persisted turn holder must be a participant")
}

func TestChangeTurnRejectedWhenNotHolder(t *testing.T) {
	store, coord, g, c1, c2 := pairedSession(t)

	intruder, holder := c1, c2
	if g.CurrentTurn == 1 {
		intruder, holder = c2, c1
	}

	raw := []byte(fmt.Sprintf(`{"type":"change_turn","user_id":%d,"game_id":%d,"current_turn":%d}`,
		intruder.UserID, g.GameID, intruder.UserID))
	coord.HandleMessage(context.Background(), intruder, raw)

	msg := recv(t, intruder)
	em, ok := msg.(ErrorMessage)
	require.True(t, ok, "expected ErrorMessage, got %#v", msg)
	assert.NotEmpty(t, em.Error)
	assertNoMessage(t, holder)

	stored, err := store.GetGame(context.Background(), g.GameID)
	require.NoError(t, err)
	assert.Equal(t, g.CurrentTurn, stored.CurrentTurn, "rejected request must not change the turn")
	assert.Equal(t, g.TurnNumber, stored.TurnNumber)
}

func TestChangeTurnRejectedForOutsiderTarget(t *testing.T) {
	store, coord, g, c1, c2 := pairedSession(t)

	sender := c1
	if g.CurrentTurn == 2 {
		sender = c2
	}

	raw := []byte(fmt.Sprintf(`{"type":"change_turn","user_id":%d,"game_id":%d,"current_turn":999}`,
		sender.UserID, g.GameID))
	coord.HandleMessage(context.Background(), sender, raw)

	msg := recv(t, sender)
	_, ok := msg.(ErrorMessage)
	require.True(t, ok, "expected ErrorMessage, got %#v", msg)

	stored, err := store.GetGame(context.Background(), g.GameID)
	require.NoError(t, err)
	assert.Equal(t, g.CurrentTurn, stored.CurrentTurn)
}

func TestMessageForForeignGameRejected(t *testing.T) {
	store, coord, _, c1, c2 := pairedSession(t)

	// Pair a second, unrelated game.
	mm := NewMatchmaker(store, events.Nop{}, testLogger())
	ctx := context.Background()
	_, err := mm.Assign(ctx, 3)
	require.NoError(t, err)
	other, err := mm.Assign(ctx, 4)
	require.NoError(t, err)

	raw := []byte(fmt.Sprintf(`{"type":"game_data_set","user_id":1,"game_id":%d}`, other.Game.GameID))
	coord.HandleMessage(ctx, c1, raw)

	msg := recv(t, c1)
	_, ok := msg.(ErrorMessage)
	require.True(t, ok, "expected ErrorMessage, got %#v", msg)
	assertNoMessage(t, c2)
}

func TestMalformedMessageAnswersSenderOnly(t *testing.T) {
	_, coord, _, c1, c2 := pairedSession(t)

	coord.HandleMessage(context.Background(), c1, []byte(`{not json`))

	msg := recv(t, c1)
	em, ok := msg.(ErrorMessage)
	require.True(t, ok, "expected ErrorMessage, got %#v", msg)
	assert.Contains(t, em.Error, "Invalid message format")
	assertNoMessage(t, c2)
}

func TestUnknownTypeAnswersSenderOnly(t *testing.T) {
	_, coord, g, c1, c2 := pairedSession(t)

	raw := []byte(fmt.Sprintf(`{"type":"cast_spell","user_id":1,"game_id":%d}`, g.GameID))
	coord.HandleMessage(context.Background(), c1, raw)

	msg := recv(t, c1)
	_, ok := msg.(ErrorMessage)
	require.True(t, ok, "expected ErrorMessage, got %#v", msg)
	assertNoMessage(t, c2)
}

func TestMissingGameAnswersServerError(t *testing.T) {
	_, coord, _, c1, c2 := pairedSession(t)

	raw := []byte(`{"type":"game_data_set","user_id":1,"game_id":424242}`)
	coord.HandleMessage(context.Background(), c1, raw)

	msg := recv(t, c1)
	_, ok := msg.(ErrorMessage)
	require.True(t, ok, "expected ErrorMessage, got %#v", msg)
	assertNoMessage(t, c2)
}
