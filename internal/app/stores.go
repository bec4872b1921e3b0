package app

import (
	"context"

	"livequiz-service/internal/domain"
)

// GameStore persists session and player records (in-memory, Postgres, etc).
// Updates are scoped to a single row; the runner is the only writer for a
// given session, so the store needs no cross-row transactions.
type GameStore interface {
	CreateSession(ctx context.Context, session domain.Session) error
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	GetSessionByCode(ctx context.Context, joinCode string) (domain.Session, error)
	// UpdateSessionStatus is a compare-and-set: the transition applies only
	// when the stored status still equals from, otherwise ErrStatusConflict.
	// Concurrent activation races resolve to exactly one winner this way.
	UpdateSessionStatus(ctx context.Context, sessionID string, from, to domain.SessionStatus) error
	UpdateSessionQuestionIndex(ctx context.Context, sessionID string, index int) error

	CreatePlayer(ctx context.Context, player domain.Player) error
	GetPlayer(ctx context.Context, playerID string) (domain.Player, error)
	ListPlayers(ctx context.Context, sessionID string) ([]domain.Player, error)
	UpdatePlayerResult(ctx context.Context, player domain.Player) error
	ClearAnswerStatuses(ctx context.Context, sessionID string) error
}

// QuizRepository loads quiz content (from cache/backing store).
type QuizRepository interface {
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
}

// PresenceTracker follows which players currently hold a live connection to
// a session. Any heartbeat/timeout mechanism is acceptable; quorum reads
// only need the aggregate count.
type PresenceTracker interface {
	Join(ctx context.Context, sessionID, playerID string) error
	Leave(ctx context.Context, sessionID, playerID string) error
	Heartbeat(ctx context.Context, sessionID, playerID string) error
	Count(ctx context.Context, sessionID string) (int, error)
}

// RunnerRegistry holds the live runner per active session.
type RunnerRegistry interface {
	Put(sessionID string, runner *Runner)
	Get(sessionID string) (*Runner, bool)
	Delete(sessionID string)
}

// Rules carries game pacing and feature flags.
type Rules struct {
	PreviewSeconds     int
	ResultsSeconds     int
	LeaderboardSeconds int
	AutoAdvance        bool
	StreaksEnabled     bool
	PowerupsEnabled    bool
}

// DefaultRules matches the pacing of the original host flow.
func DefaultRules() Rules {
	return Rules{
		PreviewSeconds:     5,
		ResultsSeconds:     5,
		LeaderboardSeconds: 8,
		AutoAdvance:        false,
		StreaksEnabled:     true,
		PowerupsEnabled:    true,
	}
}

// defaultQuestionSeconds is used when a question carries no time limit.
const defaultQuestionSeconds = 20
