package app

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"livequiz-service/internal/domain"
)

// GameService contains the session lifecycle use cases consumed by the
// transport layer: hosting, joining, starting and reconciling sessions.
type GameService struct {
	log      *zap.Logger
	rules    Rules
	store    GameStore
	quizzes  QuizRepository
	runners  RunnerRegistry
	presence PresenceTracker

	// startMu serializes Start so a lost activation race always finds the
	// winner's runner already registered.
	startMu sync.Mutex

	mu  sync.Mutex
	rnd *rand.Rand
}

func NewGameService(log *zap.Logger, rules Rules, store GameStore, quizzes QuizRepository, runners RunnerRegistry, presence PresenceTracker) *GameService {
	return &GameService{
		log:      log,
		rules:    rules,
		store:    store,
		quizzes:  quizzes,
		runners:  runners,
		presence: presence,
		rnd:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// CreateSession launches a waiting session for a quiz with a fresh 6-digit
// join code.
func (s *GameService) CreateSession(ctx context.Context, quizID, hostID string) (domain.Session, error) {
	quiz, err := s.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Session{}, err
	}
	if err := validateQuiz(quiz); err != nil {
		return domain.Session{}, err
	}

	session := domain.Session{
		ID:       uuid.New().String(),
		JoinCode: s.newJoinCode(),
		QuizID:   quizID,
		Status:   domain.StatusWaiting,
		HostID:   hostID,
	}
	if err := s.store.CreateSession(ctx, session); err != nil {
		return domain.Session{}, err
	}
	s.log.Info("session created",
		zap.String("session", session.ID),
		zap.String("quiz", quizID),
		zap.String("code", session.JoinCode))
	return session, nil
}

// Join resolves a join code to a session and creates the player record used
// as the channel identity for all subsequent messages. A taken display name
// is recovered automatically by appending "#" and a random 4-digit suffix.
func (s *GameService) Join(ctx context.Context, joinCode, name string) (domain.Player, domain.Session, error) {
	session, err := s.store.GetSessionByCode(ctx, joinCode)
	if err != nil {
		return domain.Player{}, domain.Session{}, err
	}
	if session.Status == domain.StatusFinished {
		return domain.Player{}, domain.Session{}, domain.ErrSessionFinished
	}

	existing, err := s.store.ListPlayers(ctx, session.ID)
	if err != nil {
		return domain.Player{}, domain.Session{}, err
	}
	finalName := name
	if nameTaken(existing, name) {
		finalName = fmt.Sprintf("%s#%04d", name, s.suffix())
	}

	player := domain.Player{
		ID:        uuid.New().String(),
		SessionID: session.ID,
		Name:      finalName,
	}
	if err := s.store.CreatePlayer(ctx, player); err != nil {
		return domain.Player{}, domain.Session{}, err
	}

	if runner, ok := s.runners.Get(session.ID); ok {
		runner.AddPlayer(player)
	}
	return player, session, nil
}

// Start moves a waiting session to active and launches its runner. The
// waiting→active write is a compare-and-set, so of any number of concurrent
// starts exactly one activates; the rest receive the winner's runner. The
// quiz is loaded once per session; option order is shuffled here so the
// correct index broadcast later matches what every client renders.
func (s *GameService) Start(ctx context.Context, sessionID string) (*Runner, error) {
	s.startMu.Lock()
	defer s.startMu.Unlock()

	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if session.Status != domain.StatusWaiting {
		return s.liveRunner(sessionID, session.Status)
	}

	quiz, err := s.quizzes.GetQuiz(ctx, session.QuizID)
	if err != nil {
		return nil, err
	}
	if err := validateQuiz(quiz); err != nil {
		return nil, err
	}
	quiz = s.shuffleOptions(quiz)

	players, err := s.store.ListPlayers(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	err = s.store.UpdateSessionStatus(ctx, sessionID, domain.StatusWaiting, domain.StatusActive)
	if errors.Is(err, domain.ErrStatusConflict) {
		// Another instance activated (or finished) the session first.
		session, err = s.store.GetSession(ctx, sessionID)
		if err != nil {
			return nil, err
		}
		return s.liveRunner(sessionID, session.Status)
	}
	if err != nil {
		return nil, err
	}
	session.Status = domain.StatusActive

	runner := NewRunner(s.log, s.rules, s.store, s.presence, session, quiz, players)
	s.runners.Put(sessionID, runner)
	go func() {
		runner.Run(context.Background())
		s.runners.Delete(sessionID)
	}()

	s.log.Info("session started",
		zap.String("session", sessionID),
		zap.Int("players", len(players)),
		zap.Int("questions", len(quiz.Questions)))
	return runner, nil
}

// liveRunner resolves a start request for a session that is no longer
// waiting: return the running runner if this instance holds it.
func (s *GameService) liveRunner(sessionID string, status domain.SessionStatus) (*Runner, error) {
	if status == domain.StatusFinished {
		return nil, domain.ErrSessionFinished
	}
	if runner, ok := s.runners.Get(sessionID); ok {
		return runner, nil
	}
	return nil, domain.ErrSessionNotActive
}

// Runner returns the live runner for an active session.
func (s *GameService) Runner(sessionID string) (*Runner, bool) {
	return s.runners.Get(sessionID)
}

// Presence exposes the tracker so the transport can register liveness.
func (s *GameService) Presence() PresenceTracker {
	return s.presence
}

// Snapshot assembles the full reconciliation state for a reconnecting
// player: current phase, question index and the player's persisted score.
func (s *GameService) Snapshot(ctx context.Context, sessionID, playerID string) (domain.StateSnapshot, error) {
	session, err := s.store.GetSession(ctx, sessionID)
	if err != nil {
		return domain.StateSnapshot{}, err
	}
	player, err := s.store.GetPlayer(ctx, playerID)
	if err != nil {
		return domain.StateSnapshot{}, err
	}

	snap := domain.StateSnapshot{Session: session, Player: player}
	if runner, ok := s.runners.Get(sessionID); ok {
		update := runner.LastUpdate()
		snap.Phase = update.Phase
		snap.Timer = update.Timer
		snap.Session.CurrentQuestionIndex = update.QuestionIndex
	} else if session.Status == domain.StatusFinished {
		snap.Phase = domain.PhaseFinished
	}
	return snap, nil
}

// GetPlayer fetches a single player record.
func (s *GameService) GetPlayer(ctx context.Context, playerID string) (domain.Player, error) {
	return s.store.GetPlayer(ctx, playerID)
}

func (s *GameService) newJoinCode() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return fmt.Sprintf("%06d", 100000+s.rnd.Intn(900000))
}

func (s *GameService) suffix() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return 1000 + s.rnd.Intn(9000)
}

func (s *GameService) shuffleOptions(quiz domain.Quiz) domain.Quiz {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := quiz
	out.Questions = make([]domain.Question, len(quiz.Questions))
	for i, q := range quiz.Questions {
		shuffled := q
		shuffled.Options = make([]domain.Option, len(q.Options))
		copy(shuffled.Options, q.Options)
		s.rnd.Shuffle(len(shuffled.Options), func(a, b int) {
			shuffled.Options[a], shuffled.Options[b] = shuffled.Options[b], shuffled.Options[a]
		})
		out.Questions[i] = shuffled
	}
	return out
}

// validateQuiz rejects question content that would make scoring undefined.
func validateQuiz(quiz domain.Quiz) error {
	if len(quiz.Questions) == 0 {
		return domain.ErrQuizNotFound
	}
	for _, q := range quiz.Questions {
		correct := 0
		for _, opt := range q.Options {
			if opt.Correct {
				correct++
			}
		}
		if correct != 1 {
			return domain.ErrInvalidQuestion
		}
	}
	return nil
}

func nameTaken(players []domain.Player, name string) bool {
	for _, p := range players {
		if p.Name == name {
			return true
		}
	}
	return false
}
