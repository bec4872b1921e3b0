package domain

// Session is one live run of a quiz for a group of connected players.
// It is mutated only by the session runner once active.
type Session struct {
	ID                   string        `json:"id"`
	JoinCode             string        `json:"joinCode"`
	QuizID               string        `json:"quizId"`
	Status               SessionStatus `json:"status"`
	CurrentQuestionIndex int           `json:"currentQuestionIndex"`
	HostID               string        `json:"hostId"`
}

// Player is a persisted participant record. Score never decreases; the
// scoring path is the only writer of Score, counters and LastAnswerStatus.
type Player struct {
	ID               string       `json:"id"`
	SessionID        string       `json:"sessionId"`
	Name             string       `json:"name"`
	Score            int          `json:"score"`
	LastAnswerStatus AnswerStatus `json:"lastAnswerStatus"`
	CorrectCount     int          `json:"correctCount"`
	WrongCount       int          `json:"wrongCount"`
}

// Option represents a possible answer for a question.
type Option struct {
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question models an MCQ question with exactly one correct option.
// Display order may be shuffled per session load; the correctness flag
// travels with the option.
type Question struct {
	ID               string   `json:"id"`
	Text             string   `json:"text"`
	TimeLimitSeconds int      `json:"timeLimitSeconds"`
	Options          []Option `json:"options"`
}

// CorrectIndex returns the position of the correct option, or -1.
func (q Question) CorrectIndex() int {
	for i, opt := range q.Options {
		if opt.Correct {
			return i
		}
	}
	return -1
}

// Quiz is an ordered collection of questions, read-only to this service.
type Quiz struct {
	ID        string     `json:"id"`
	Title     string     `json:"title"`
	Questions []Question `json:"questions"`
}

// PhaseUpdate is published on every tick and transition. Consumers must
// treat repeats and reordering as no-ops keyed by (Phase, QuestionIndex).
type PhaseUpdate struct {
	Phase              Phase        `json:"phase"`
	PhaseName          string       `json:"phaseName"`
	QuestionIndex      int          `json:"questionIndex"`
	Timer              int          `json:"timer"`
	AnswerCount        int          `json:"answerCount"`
	CorrectOptionIndex *int         `json:"correctOptionIndex,omitempty"`
	Leaderboard        []Player     `json:"leaderboard,omitempty"`
	Report             *FinalReport `json:"report,omitempty"`
}

// AnswerSubmission is the scoring signal from a player.
type AnswerSubmission struct {
	PlayerID      string `json:"playerId"`
	OptionIndex   int    `json:"optionIndex"`
	QuestionIndex int    `json:"questionIndex"`
}

// PowerupGrant is the host's reply to a 50/50 request; it travels only to
// the requesting player.
type PowerupGrant struct {
	PlayerID      string `json:"playerId"`
	HiddenIndices []int  `json:"hiddenIndices"`
}

// FinalReport summarizes a finished game.
type FinalReport struct {
	TotalPlayers    int     `json:"totalPlayers"`
	TotalQuestions  int     `json:"totalQuestions"`
	AverageScore    float64 `json:"averageScore"`
	AverageAccuracy float64 `json:"averageAccuracy"`
}

// StateSnapshot is the full reconciliation state a player fetches on
// (re)connect instead of trusting streamed deltas.
type StateSnapshot struct {
	Session Session `json:"session"`
	Player  Player  `json:"player"`
	Phase   Phase   `json:"phase"`
	Timer   int     `json:"timer"`
}
