package app

import (
	"context"
	"errors"
	"testing"

	"go.uber.org/zap"

	"livequiz-service/internal/domain"
)

// fakeStore records writes and can be told to fail them.
type fakeStore struct {
	session       domain.Session
	players       map[string]domain.Player
	statusWrites  []domain.SessionStatus
	indexWrites   []int
	resultWrites  int
	clearedRounds int
	failWrites    bool
}

func newFakeStore(session domain.Session, players []domain.Player) *fakeStore {
	s := &fakeStore{session: session, players: make(map[string]domain.Player)}
	for _, p := range players {
		s.players[p.ID] = p
	}
	return s
}

func (s *fakeStore) CreateSession(context.Context, domain.Session) error { return nil }

func (s *fakeStore) GetSession(context.Context, string) (domain.Session, error) {
	return s.session, nil
}

func (s *fakeStore) GetSessionByCode(context.Context, string) (domain.Session, error) {
	return s.session, nil
}

func (s *fakeStore) UpdateSessionStatus(_ context.Context, _ string, from, to domain.SessionStatus) error {
	if s.failWrites {
		return errors.New("store down")
	}
	if s.session.Status != from {
		return domain.ErrStatusConflict
	}
	s.session.Status = to
	s.statusWrites = append(s.statusWrites, to)
	return nil
}

func (s *fakeStore) UpdateSessionQuestionIndex(_ context.Context, _ string, index int) error {
	if s.failWrites {
		return errors.New("store down")
	}
	s.session.CurrentQuestionIndex = index
	s.indexWrites = append(s.indexWrites, index)
	return nil
}

func (s *fakeStore) CreatePlayer(context.Context, domain.Player) error { return nil }

func (s *fakeStore) GetPlayer(_ context.Context, playerID string) (domain.Player, error) {
	p, ok := s.players[playerID]
	if !ok {
		return domain.Player{}, domain.ErrPlayerNotFound
	}
	return p, nil
}

func (s *fakeStore) ListPlayers(context.Context, string) ([]domain.Player, error) {
	return nil, nil
}

func (s *fakeStore) UpdatePlayerResult(_ context.Context, player domain.Player) error {
	if s.failWrites {
		return errors.New("store down")
	}
	s.players[player.ID] = player
	s.resultWrites++
	return nil
}

func (s *fakeStore) ClearAnswerStatuses(context.Context, string) error {
	if s.failWrites {
		return errors.New("store down")
	}
	s.clearedRounds++
	return nil
}

// fakePresence reports a fixed number of live connections.
type fakePresence struct {
	count int
}

func (p *fakePresence) Join(context.Context, string, string) error      { return nil }
func (p *fakePresence) Leave(context.Context, string, string) error     { return nil }
func (p *fakePresence) Heartbeat(context.Context, string, string) error { return nil }
func (p *fakePresence) Count(context.Context, string) (int, error)      { return p.count, nil }

func twoQuestionQuiz() domain.Quiz {
	return domain.Quiz{
		ID:    "quiz-1",
		Title: "Capitals",
		Questions: []domain.Question{
			{
				ID:               "q1",
				Text:             "Capital of France?",
				TimeLimitSeconds: 3,
				Options: []domain.Option{
					{Text: "Berlin"},
					{Text: "Paris", Correct: true},
					{Text: "Rome"},
					{Text: "Madrid"},
				},
			},
			{
				ID:               "q2",
				Text:             "Capital of Japan?",
				TimeLimitSeconds: 3,
				Options: []domain.Option{
					{Text: "Tokyo", Correct: true},
					{Text: "Kyoto"},
					{Text: "Osaka"},
					{Text: "Nagoya"},
				},
			},
		},
	}
}

func testPlayers(ids ...string) []domain.Player {
	players := make([]domain.Player, 0, len(ids))
	for _, id := range ids {
		players = append(players, domain.Player{ID: id, SessionID: "s1", Name: "player-" + id})
	}
	return players
}

func newTestRunner(t *testing.T, rules Rules, presence PresenceTracker, players []domain.Player) (*Runner, *fakeStore) {
	t.Helper()
	session := domain.Session{ID: "s1", JoinCode: "482913", QuizID: "quiz-1", Status: domain.StatusActive}
	store := newFakeStore(session, players)
	runner := NewRunner(zap.NewNop(), rules, store, presence, session, twoQuestionQuiz(), players)
	runner.retryDelay = 0
	return runner, store
}

// tick drives the loop synchronously, bypassing the real ticker.
func tick(runner *Runner, n int) {
	for i := 0; i < n; i++ {
		runner.handle(context.Background(), tickEvent{})
	}
}

func TestPreviewCountsDownIntoQuestion(t *testing.T) {
	runner, _ := newTestRunner(t, DefaultRules(), &fakePresence{count: 1}, testPlayers("a"))

	if runner.phase != domain.PhasePreview || runner.timer != 5 {
		t.Fatalf("expected preview with 5s, got %v/%d", runner.phase, runner.timer)
	}

	tick(runner, 5)
	if runner.phase != domain.PhaseQuestion {
		t.Fatalf("expected question phase, got %v", runner.phase)
	}
	if runner.timer != 3 {
		t.Fatalf("expected question timer 3, got %d", runner.timer)
	}
}

func TestDuplicateAnswerKeepsFirst(t *testing.T) {
	runner, _ := newTestRunner(t, DefaultRules(), &fakePresence{count: 2}, testPlayers("a", "b"))
	tick(runner, 5)

	runner.handle(context.Background(), answerEvent{sub: domain.AnswerSubmission{PlayerID: "a", OptionIndex: 2, QuestionIndex: 0}})
	runner.handle(context.Background(), answerEvent{sub: domain.AnswerSubmission{PlayerID: "a", OptionIndex: 1, QuestionIndex: 0}})

	if got := runner.answers.count(); got != 1 {
		t.Fatalf("expected player counted once, got %d", got)
	}
	if idx, _ := runner.answers.get("a"); idx != 2 {
		t.Fatalf("expected first submission retained, got %d", idx)
	}
}

func TestQuorumEndsQuestionWithoutTimer(t *testing.T) {
	presence := &fakePresence{count: 4}
	runner, _ := newTestRunner(t, DefaultRules(), presence, testPlayers("a", "b", "c", "d"))
	tick(runner, 5)

	for _, id := range []string{"a", "b", "c"} {
		runner.handle(context.Background(), answerEvent{sub: domain.AnswerSubmission{PlayerID: id, OptionIndex: 1, QuestionIndex: 0}})
	}
	if runner.phase != domain.PhaseQuestion {
		t.Fatalf("expected question to stay open with 3/4 answers, got %v", runner.phase)
	}

	// The 4th player drops off presence; the leave notification re-checks
	// quorum and the phase must advance without waiting on the timer.
	presence.count = 3
	runner.handle(context.Background(), leaveEvent{playerID: "d"})

	if runner.phase != domain.PhaseResults {
		t.Fatalf("expected results after quorum, got %v", runner.phase)
	}
}

func TestScoringRunsOnceWhenBothTriggersFire(t *testing.T) {
	runner, store := newTestRunner(t, DefaultRules(), &fakePresence{count: 1}, testPlayers("a"))
	tick(runner, 5)

	// Quorum fires first, then the pending timer expiry arrives anyway.
	runner.handle(context.Background(), answerEvent{sub: domain.AnswerSubmission{PlayerID: "a", OptionIndex: 1, QuestionIndex: 0}})
	runner.handle(context.Background(), tickEvent{})

	if store.resultWrites != 1 {
		t.Fatalf("expected exactly one player result write, got %d", store.resultWrites)
	}
	if got := store.players["a"].Score; got != 1100 {
		t.Fatalf("expected 1000 + 100 streak bonus, got %d", got)
	}
}

func TestLateAndOutOfRangeAnswersIgnored(t *testing.T) {
	runner, _ := newTestRunner(t, DefaultRules(), &fakePresence{count: 3}, testPlayers("a", "b", "c"))
	tick(runner, 5)

	runner.handle(context.Background(), answerEvent{sub: domain.AnswerSubmission{PlayerID: "a", OptionIndex: 9, QuestionIndex: 0}})
	runner.handle(context.Background(), answerEvent{sub: domain.AnswerSubmission{PlayerID: "b", OptionIndex: 1, QuestionIndex: 1}})
	runner.handle(context.Background(), answerEvent{sub: domain.AnswerSubmission{PlayerID: "zz", OptionIndex: 1, QuestionIndex: 0}})

	if got := runner.answers.count(); got != 0 {
		t.Fatalf("expected no recorded answers, got %d", got)
	}

	// Run the timer out, then confirm a straggler is dropped.
	tick(runner, 3)
	if runner.phase != domain.PhaseResults {
		t.Fatalf("expected results after timeout, got %v", runner.phase)
	}
	runner.handle(context.Background(), answerEvent{sub: domain.AnswerSubmission{PlayerID: "c", OptionIndex: 1, QuestionIndex: 0}})
	if got := runner.answers.count(); got != 0 {
		t.Fatalf("expected straggler ignored, got %d", got)
	}
}

func TestFullGameScenario(t *testing.T) {
	// Join code 482913, 2 questions, players A and B. A answers question 1
	// correctly; B lets the timer run out.
	runner, store := newTestRunner(t, DefaultRules(), &fakePresence{count: 2}, testPlayers("A", "B"))
	ctx := context.Background()

	tick(runner, 5)
	runner.handle(ctx, answerEvent{sub: domain.AnswerSubmission{PlayerID: "A", OptionIndex: 1, QuestionIndex: 0}})
	tick(runner, 3)

	if runner.phase != domain.PhaseResults {
		t.Fatalf("expected results, got %v", runner.phase)
	}
	update := runner.LastUpdate()
	if update.CorrectOptionIndex == nil || *update.CorrectOptionIndex != 1 {
		t.Fatalf("expected correct option index 1 broadcast, got %+v", update.CorrectOptionIndex)
	}

	a := store.players["A"]
	if a.Score != 1100 || a.CorrectCount != 1 || a.LastAnswerStatus != domain.AnswerCorrect {
		t.Fatalf("unexpected record for A: %+v", a)
	}
	b := store.players["B"]
	if b.Score != 0 || b.WrongCount != 1 || b.LastAnswerStatus != domain.AnswerIncorrect {
		t.Fatalf("unexpected record for B: %+v", b)
	}

	// Operator advances through the leaderboard into question 2.
	runner.handle(ctx, advanceEvent{})
	if runner.phase != domain.PhaseLeaderboard {
		t.Fatalf("expected leaderboard, got %v", runner.phase)
	}
	runner.handle(ctx, advanceEvent{})
	if runner.phase != domain.PhasePreview || runner.qIndex != 1 {
		t.Fatalf("expected preview of question 2, got %v/%d", runner.phase, runner.qIndex)
	}
	if store.indexWrites[len(store.indexWrites)-1] != 1 {
		t.Fatalf("expected question index persisted, got %v", store.indexWrites)
	}
	if store.clearedRounds != 1 {
		t.Fatalf("expected answer statuses cleared between rounds, got %d", store.clearedRounds)
	}

	// Question 2: B answers correctly, A misses. B starts a fresh streak.
	tick(runner, 5)
	runner.handle(ctx, answerEvent{sub: domain.AnswerSubmission{PlayerID: "B", OptionIndex: 0, QuestionIndex: 1}})
	tick(runner, 3)

	if got := store.players["B"].Score; got != 1100 {
		t.Fatalf("expected B at 1100 after first correct, got %d", got)
	}
	if got := runner.streaks["A"]; got != 0 {
		t.Fatalf("expected A streak reset, got %d", got)
	}

	// Last leaderboard advance finishes the game.
	runner.handle(ctx, advanceEvent{})
	runner.handle(ctx, advanceEvent{})
	if runner.phase != domain.PhaseFinished {
		t.Fatalf("expected finished, got %v", runner.phase)
	}
	if store.session.Status != domain.StatusFinished {
		t.Fatalf("expected persisted finished status, got %v", store.session.Status)
	}

	update = runner.LastUpdate()
	if update.Report == nil {
		t.Fatalf("expected final report")
	}
	if update.Report.TotalPlayers != 2 || update.Report.AverageScore != 1100 {
		t.Fatalf("unexpected report: %+v", update.Report)
	}
	if update.Report.AverageAccuracy != 0.5 {
		t.Fatalf("expected 2 correct of 4 slots, got %v", update.Report.AverageAccuracy)
	}
}

func TestAbortFromAnyPhase(t *testing.T) {
	runner, store := newTestRunner(t, DefaultRules(), &fakePresence{count: 1}, testPlayers("a"))
	tick(runner, 2) // still in preview

	runner.handle(context.Background(), abortEvent{})
	if runner.phase != domain.PhaseFinished {
		t.Fatalf("expected finished after abort, got %v", runner.phase)
	}
	if len(store.statusWrites) != 1 || store.statusWrites[0] != domain.StatusFinished {
		t.Fatalf("expected finished persisted, got %v", store.statusWrites)
	}

	// Terminal: further events are no-ops.
	runner.handle(context.Background(), advanceEvent{})
	tick(runner, 3)
	if runner.phase != domain.PhaseFinished {
		t.Fatalf("finished must be terminal, got %v", runner.phase)
	}
}

func TestCorrectIndexPerSessionOrder(t *testing.T) {
	runner, _ := newTestRunner(t, DefaultRules(), &fakePresence{count: 1}, testPlayers("a"))

	if got := runner.CorrectIndex(0); got != 1 {
		t.Fatalf("expected correct index 1 for question 1, got %d", got)
	}
	if got := runner.CorrectIndex(1); got != 0 {
		t.Fatalf("expected correct index 0 for question 2, got %d", got)
	}
	if got := runner.CorrectIndex(-1); got != -1 {
		t.Fatalf("expected -1 for negative index, got %d", got)
	}
	if got := runner.CorrectIndex(2); got != -1 {
		t.Fatalf("expected -1 past the last question, got %d", got)
	}

	// The results broadcast must report the same position.
	tick(runner, 5)
	runner.handle(context.Background(), answerEvent{sub: domain.AnswerSubmission{PlayerID: "a", OptionIndex: 1, QuestionIndex: 0}})
	update := runner.LastUpdate()
	if update.CorrectOptionIndex == nil || *update.CorrectOptionIndex != runner.CorrectIndex(0) {
		t.Fatalf("expected broadcast index %d, got %+v", runner.CorrectIndex(0), update.CorrectOptionIndex)
	}
}

func TestAutoAdvanceDwells(t *testing.T) {
	rules := DefaultRules()
	rules.AutoAdvance = true
	runner, _ := newTestRunner(t, rules, &fakePresence{count: 1}, testPlayers("a"))

	tick(runner, 5) // preview -> question
	tick(runner, 3) // question times out -> results
	if runner.phase != domain.PhaseResults || runner.timer != rules.ResultsSeconds {
		t.Fatalf("expected results dwell, got %v/%d", runner.phase, runner.timer)
	}
	tick(runner, rules.ResultsSeconds)
	if runner.phase != domain.PhaseLeaderboard || runner.timer != rules.LeaderboardSeconds {
		t.Fatalf("expected leaderboard dwell, got %v/%d", runner.phase, runner.timer)
	}
	tick(runner, rules.LeaderboardSeconds)
	if runner.phase != domain.PhasePreview || runner.qIndex != 1 {
		t.Fatalf("expected auto-advance to question 2, got %v/%d", runner.phase, runner.qIndex)
	}
}

func TestPersistenceFailureStillAdvancesPhase(t *testing.T) {
	runner, store := newTestRunner(t, DefaultRules(), &fakePresence{count: 1}, testPlayers("a"))
	tick(runner, 5)
	store.failWrites = true

	runner.handle(context.Background(), answerEvent{sub: domain.AnswerSubmission{PlayerID: "a", OptionIndex: 1, QuestionIndex: 0}})

	if runner.phase != domain.PhaseResults {
		t.Fatalf("expected in-memory phase to advance despite store failure, got %v", runner.phase)
	}
	select {
	case err := <-runner.Errors():
		if err == nil {
			t.Fatalf("expected surfaced store error")
		}
	default:
		t.Fatalf("expected store failure surfaced to the host")
	}
	// The in-memory score is authoritative for the rest of the game.
	if got := runner.players["a"].Score; got != 1100 {
		t.Fatalf("expected in-memory score kept, got %d", got)
	}
}

func TestLateJoinerParticipatesInScoring(t *testing.T) {
	runner, store := newTestRunner(t, DefaultRules(), &fakePresence{count: 2}, testPlayers("a"))
	tick(runner, 5)

	runner.handle(context.Background(), joinEvent{player: domain.Player{ID: "late", SessionID: "s1", Name: "late"}})
	store.players["late"] = domain.Player{ID: "late", SessionID: "s1", Name: "late"}

	runner.handle(context.Background(), answerEvent{sub: domain.AnswerSubmission{PlayerID: "late", OptionIndex: 1, QuestionIndex: 0}})
	tick(runner, 3)

	if got := store.players["late"].Score; got != 1100 {
		t.Fatalf("expected late joiner scored, got %d", got)
	}
	// The player who never answered is scored as wrong.
	if got := store.players["a"].WrongCount; got != 1 {
		t.Fatalf("expected missing answer scored wrong, got %d", got)
	}
}
