package memory

import (
	"context"
	"sync"

	"livequiz-service/internal/domain"
)

// GameStore is an in-memory implementation of app.GameStore, used for tests
// and for running without Postgres.
type GameStore struct {
	mu       sync.RWMutex
	sessions map[string]domain.Session
	byCode   map[string]string
	players  map[string]domain.Player
	// joinOrder preserves insertion order per session so leaderboard
	// tie-breaks stay stable.
	joinOrder map[string][]string
}

func NewGameStore() *GameStore {
	return &GameStore{
		sessions:  make(map[string]domain.Session),
		byCode:    make(map[string]string),
		players:   make(map[string]domain.Player),
		joinOrder: make(map[string][]string),
	}
}

func (s *GameStore) CreateSession(_ context.Context, session domain.Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[session.ID] = session
	s.byCode[session.JoinCode] = session.ID
	return nil
}

func (s *GameStore) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return session, nil
}

func (s *GameStore) GetSessionByCode(_ context.Context, joinCode string) (domain.Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	id, ok := s.byCode[joinCode]
	if !ok {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return s.sessions[id], nil
}

func (s *GameStore) UpdateSessionStatus(_ context.Context, sessionID string, from, to domain.SessionStatus) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	if session.Status != from || !from.CanTransition(to) {
		return domain.ErrStatusConflict
	}
	session.Status = to
	s.sessions[sessionID] = session
	return nil
}

func (s *GameStore) UpdateSessionQuestionIndex(_ context.Context, sessionID string, index int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	session, ok := s.sessions[sessionID]
	if !ok {
		return domain.ErrSessionNotFound
	}
	session.CurrentQuestionIndex = index
	s.sessions[sessionID] = session
	return nil
}

func (s *GameStore) CreatePlayer(_ context.Context, player domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.players[player.ID] = player
	s.joinOrder[player.SessionID] = append(s.joinOrder[player.SessionID], player.ID)
	return nil
}

func (s *GameStore) GetPlayer(_ context.Context, playerID string) (domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	player, ok := s.players[playerID]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return player, nil
}

func (s *GameStore) ListPlayers(_ context.Context, sessionID string) ([]domain.Player, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	ids := s.joinOrder[sessionID]
	out := make([]domain.Player, 0, len(ids))
	for _, id := range ids {
		out = append(out, s.players[id])
	}
	return out, nil
}

func (s *GameStore) UpdatePlayerResult(_ context.Context, player domain.Player) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	current, ok := s.players[player.ID]
	if !ok {
		return domain.ErrPlayerNotFound
	}
	current.Score = player.Score
	current.LastAnswerStatus = player.LastAnswerStatus
	current.CorrectCount = player.CorrectCount
	current.WrongCount = player.WrongCount
	s.players[player.ID] = current
	return nil
}

func (s *GameStore) ClearAnswerStatuses(_ context.Context, sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, id := range s.joinOrder[sessionID] {
		player := s.players[id]
		player.LastAnswerStatus = domain.AnswerNone
		s.players[id] = player
	}
	return nil
}
