// internal/session/memory.go
package session

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/vege25/duelgame/internal/models"
)

// MemoryStore is an in-memory Store implementation with the same atomicity
// semantics as the Postgres store. It backs tests and local development runs
// that have no database at hand.
type MemoryStore struct {
	mu          sync.Mutex
	nextLobbyID int64
	nextGameID  int64
	lobbies     map[int64]*models.Lobby
	games       map[int64]*models.Game
	disconnects map[int64][]models.Disconnect

	failErr error
}

// NewMemoryStore initializes an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		lobbies:     make(map[int64]*models.Lobby),
		games:       make(map[int64]*models.Game),
		disconnects: make(map[int64][]models.Disconnect),
	}
}

// SetFailure makes every subsequent operation fail with err (nil clears it).
// Used to exercise persistence-failure paths.
func (s *MemoryStore) SetFailure(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failErr = err
}

func cloneLobby(l *models.Lobby) *models.Lobby {
	c := *l
	if l.OpponentID != nil {
		v := *l.OpponentID
		c.OpponentID = &v
	}
	return &c
}

func cloneGame(g *models.Game) *models.Game {
	c := *g
	return &c
}

func (s *MemoryStore) CreateLobby(ctx context.Context, creatorID int64) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	s.nextLobbyID++
	l := &models.Lobby{
		LobbyID:   s.nextLobbyID,
		CreatorID: creatorID,
		Status:    models.LobbyWaiting,
		CreatedAt: time.Now(),
	}
	s.lobbies[l.LobbyID] = l
	return cloneLobby(l), nil
}

func (s *MemoryStore) GetLobby(ctx context.Context, lobbyID int64) (*models.Lobby, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	l, ok := s.lobbies[lobbyID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneLobby(l), nil
}

func (s *MemoryStore) ClaimWaitingLobby(ctx context.Context, opponentID int64) (*models.Lobby, *models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, nil, s.failErr
	}

	// Oldest waiting lobby first; ids are assigned in creation order.
	ids := make([]int64, 0, len(s.lobbies))
	for id := range s.lobbies {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	for _, id := range ids {
		l := s.lobbies[id]
		if l.Status != models.LobbyWaiting || l.CreatorID == opponentID {
			continue
		}
		opp := opponentID
		l.OpponentID = &opp
		l.Status = models.LobbyOngoing

		s.nextGameID++
		g := &models.Game{
			GameID:           s.nextGameID,
			LobbyID:          l.LobbyID,
			Player1ID:        l.CreatorID,
			Player2ID:        opponentID,
			Player1Mana:      models.StartingMana,
			Player2Mana:      models.StartingMana,
			Player1Connected: true,
			Player2Connected: true,
			GameStatus:       models.GameOngoing,
			CurrentTurn:      PickStartingTurn(l.CreatorID, opponentID),
			TurnNumber:       1,
			CreatedAt:        time.Now(),
		}
		s.games[g.GameID] = g
		return cloneLobby(l), cloneGame(g), nil
	}
	return nil, nil, ErrNoWaitingLobby
}

func (s *MemoryStore) GetGame(ctx context.Context, gameID int64) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	g, ok := s.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	return cloneGame(g), nil
}

func (s *MemoryStore) GetGameByLobby(ctx context.Context, lobbyID int64) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	for _, g := range s.games {
		if g.LobbyID == lobbyID {
			return cloneGame(g), nil
		}
	}
	return nil, ErrNotFound
}

func (s *MemoryStore) AdvanceTurn(ctx context.Context, gameID, nextTurn int64) (*models.Game, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return nil, s.failErr
	}
	g, ok := s.games[gameID]
	if !ok {
		return nil, ErrNotFound
	}
	g.CurrentTurn = nextTurn
	g.TurnNumber++
	return cloneGame(g), nil
}

func (s *MemoryStore) DeleteSoloLobby(ctx context.Context, lobbyID, userID int64) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return false, s.failErr
	}
	l, ok := s.lobbies[lobbyID]
	if !ok || l.CreatorID != userID || l.OpponentID != nil {
		return false, nil
	}
	delete(s.lobbies, lobbyID)
	return true, nil
}

func (s *MemoryStore) MarkDisconnected(ctx context.Context, lobbyID, userID int64) (int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failErr != nil {
		return 0, false, s.failErr
	}

	var g *models.Game
	for _, cand := range s.games {
		if cand.LobbyID == lobbyID {
			g = cand
			break
		}
	}
	if g == nil {
		return 0, false, ErrNotFound
	}

	var otherConnected bool
	switch userID {
	case g.Player1ID:
		otherConnected = g.Player2Connected
		g.Player1Connected = false
	case g.Player2ID:
		otherConnected = g.Player1Connected
		g.Player2Connected = false
	default:
		return 0, false, ErrNotInGame
	}

	if !otherConnected {
		delete(s.disconnects, g.GameID)
		delete(s.games, g.GameID)
		delete(s.lobbies, lobbyID)
		return g.GameID, true, nil
	}

	s.disconnects[g.GameID] = append(s.disconnects[g.GameID], models.Disconnect{
		DisconnectID:   int64(len(s.disconnects[g.GameID]) + 1),
		GameID:         g.GameID,
		UserID:         userID,
		DisconnectTime: time.Now(),
	})
	return g.GameID, false, nil
}

// Lobbies returns a snapshot of all lobby rows, ordered by id.
func (s *MemoryStore) Lobbies() []models.Lobby {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Lobby, 0, len(s.lobbies))
	for _, l := range s.lobbies {
		out = append(out, *cloneLobby(l))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].LobbyID < out[j].LobbyID })
	return out
}

// Games returns a snapshot of all game rows, ordered by id.
func (s *MemoryStore) Games() []models.Game {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.Game, 0, len(s.games))
	for _, g := range s.games {
		out = append(out, *cloneGame(g))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].GameID < out[j].GameID })
	return out
}

// DisconnectCount returns the number of disconnect records held for a game.
func (s *MemoryStore) DisconnectCount(gameID int64) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.disconnects[gameID])
}
