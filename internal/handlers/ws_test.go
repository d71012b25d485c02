// internal/handlers/ws_test.go
package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vege25/duelgame/internal/session"
)

func dialUser(t *testing.T, ts *httptest.Server, userID int64) *websocket.Conn {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, fmt.Sprintf("%s/ws?user_id=%d", ts.URL, userID), nil)
	require.NoError(t, err)
	return c
}

func readJSON(t *testing.T, c *websocket.Conn) map[string]interface{} {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	typ, data, err := c.Read(ctx)
	require.NoError(t, err)
	require.Equal(t, websocket.MessageText, typ)
	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func sendJSON(t *testing.T, c *websocket.Conn, msg interface{}) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	data, err := json.Marshal(msg)
	require.NoError(t, err)
	require.NoError(t, c.Write(ctx, websocket.MessageText, data))
}

// pairedClients dials two clients against a fresh server and consumes their
// assignment messages, returning both sockets plus the backing store.
func pairedClients(t *testing.T) (*session.MemoryStore, *httptest.Server, *websocket.Conn, *websocket.Conn) {
	t.Helper()
	srv, store := testServer()
	ts := httptest.NewServer(WSHandler(srv))
	t.Cleanup(ts.Close)

	c1 := dialUser(t, ts, 1)
	created := readJSON(t, c1)
	require.Equal(t, session.StatusCreated, created["status"])

	c2 := dialUser(t, ts, 2)
	joined := readJSON(t, c2)
	require.Equal(t, session.StatusJoined, joined["status"])
	require.NotNil(t, joined["gameData"])

	return store, ts, c1, c2
}

func TestWebSocketAssignmentMessages(t *testing.T) {
	srv, _ := testServer()
	ts := httptest.NewServer(WSHandler(srv))
	defer ts.Close()

	c1 := dialUser(t, ts, 1)
	defer c1.Close(websocket.StatusNormalClosure, "")

	created := readJSON(t, c1)
	assert.Equal(t, session.StatusCreated, created["status"])
	assert.NotZero(t, created["lobbyId"])

	c2 := dialUser(t, ts, 2)
	defer c2.Close(websocket.StatusNormalClosure, "")

	joined := readJSON(t, c2)
	assert.Equal(t, session.StatusJoined, joined["status"])
	lobby, ok := joined["lobbyData"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, created["lobbyId"], lobby["lobby_id"])
	game, ok := joined["gameData"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(1), game["player1_id"])
	assert.Equal(t, float64(2), game["player2_id"])
}

func TestWebSocketGameDataSetRelay(t *testing.T) {
	store, _, c1, c2 := pairedClients(t)
	defer c1.Close(websocket.StatusNormalClosure, "")
	defer c2.Close(websocket.StatusNormalClosure, "")

	games := store.Games()
	require.Len(t, games, 1)
	sendJSON(t, c2, map[string]interface{}{"type": session.MessageGameDataSet, "game_id": games[0].GameID})

	msg := readJSON(t, c1)
	assert.Equal(t, session.StatusReadyToSet, msg["status"])
	assert.NotNil(t, msg["gameData"])
}

func TestWebSocketChangeTurnRelay(t *testing.T) {
	store, _, c1, c2 := pairedClients(t)
	defer c1.Close(websocket.StatusNormalClosure, "")
	defer c2.Close(websocket.StatusNormalClosure, "")

	games := store.Games()
	require.Len(t, games, 1)
	g := games[0]

	// Only the current holder may pass the turn; pick sender and receiver
	// accordingly.
	sender, receiver := c1, c2
	target := g.Player2ID
	if g.CurrentTurn == g.Player2ID {
		sender, receiver = c2, c1
		target = g.Player1ID
	}

	sendJSON(t, sender, map[string]interface{}{
		"type":         session.MessageChangeTurn,
		"game_id":      g.GameID,
		"current_turn": target,
	})

	msg := readJSON(t, receiver)
	assert.Equal(t, session.StatusTurnChanged, msg["status"])
	game, ok := msg["gameData"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(target), game["current_turn"])
	assert.Equal(t, float64(g.TurnNumber+1), game["turn_number"])
}

func TestWebSocketAcceptsCamelCasedUserID(t *testing.T) {
	srv, _ := testServer()
	ts := httptest.NewServer(WSHandler(srv))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, ts.URL+"/ws?userId=5", nil)
	require.NoError(t, err)
	defer c.Close(websocket.StatusNormalClosure, "")

	created := readJSON(t, c)
	assert.Equal(t, session.StatusCreated, created["status"])
}

func TestWebSocketRejectsMissingUserID(t *testing.T) {
	srv, _ := testServer()
	ts := httptest.NewServer(WSHandler(srv))
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, _, err := websocket.Dial(ctx, ts.URL+"/ws", nil)
	require.NoError(t, err)

	_, _, err = c.Read(ctx)
	require.Error(t, err)
	assert.Equal(t, websocket.StatusPolicyViolation, websocket.CloseStatus(err))
}

func TestWebSocketDisconnectCleanup(t *testing.T) {
	store, _, c1, c2 := pairedClients(t)

	games := store.Games()
	require.Len(t, games, 1)
	gameID := games[0].GameID

	// First departure leaves the game standing and records the disconnect.
	require.NoError(t, c1.Close(websocket.StatusNormalClosure, ""))
	waitFor(t, func() bool { return store.DisconnectCount(gameID) == 1 })
	assert.Len(t, store.Games(), 1)

	// Second departure tears the whole session down.
	require.NoError(t, c2.Close(websocket.StatusNormalClosure, ""))
	waitFor(t, func() bool {
		return len(store.Games()) == 0 && len(store.Lobbies()) == 0
	})
	assert.Zero(t, store.DisconnectCount(gameID))
}

func TestWebSocketSoloDisconnectDeletesLobby(t *testing.T) {
	srv, store := testServer()
	ts := httptest.NewServer(WSHandler(srv))
	defer ts.Close()

	c1 := dialUser(t, ts, 1)
	readJSON(t, c1)
	require.Len(t, store.Lobbies(), 1)

	require.NoError(t, c1.Close(websocket.StatusNormalClosure, ""))
	waitFor(t, func() bool { return len(store.Lobbies()) == 0 })
}

// waitFor polls until cond holds; disconnect cleanup runs after the handler's
// read loop returns, so tests observe it asynchronously.
func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}
