package app

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"go.uber.org/zap"

	"livequiz-service/internal/domain"
)

// Runner owns one live session: phase, timer, answers, streaks and
// power-ups. All mutation happens on a single goroutine draining an event
// queue, so trigger races (timer expiry vs. quorum) collapse into a
// serialized decision and scoring runs exactly once per question.
type Runner struct {
	log      *zap.Logger
	rules    Rules
	store    GameStore
	presence PresenceTracker
	quiz     domain.Quiz
	rnd      *rand.Rand

	retryDelay time.Duration

	events chan event
	errs   chan error

	mu          sync.RWMutex
	subscribers map[chan domain.PhaseUpdate]struct{}
	lastUpdate  domain.PhaseUpdate

	// Everything below is owned by the event loop.
	session  domain.Session
	phase    domain.Phase
	qIndex   int
	timer    int
	scored   bool
	answers  *answerLog
	streaks  map[string]int
	powerups map[string]*powerupState
	players  map[string]*domain.Player
	order    []string
}

type event interface{}

type tickEvent struct{}
type advanceEvent struct{}
type abortEvent struct{}
type joinEvent struct{ player domain.Player }
type leaveEvent struct{ playerID string }
type answerEvent struct{ sub domain.AnswerSubmission }

type powerupEvent struct {
	playerID string
	reply    chan powerupReply
}

type powerupReply struct {
	grant domain.PowerupGrant
	err   error
}

// NewRunner prepares a runner in the Preview phase for question 0. Call Run
// to start the timer loop.
func NewRunner(log *zap.Logger, rules Rules, store GameStore, presence PresenceTracker, session domain.Session, quiz domain.Quiz, players []domain.Player) *Runner {
	r := &Runner{
		log:         log,
		rules:       rules,
		store:       store,
		presence:    presence,
		quiz:        quiz,
		rnd:         rand.New(rand.NewSource(time.Now().UnixNano())),
		retryDelay:  100 * time.Millisecond,
		events:      make(chan event, 128),
		errs:        make(chan error, 8),
		subscribers: make(map[chan domain.PhaseUpdate]struct{}),
		session:     session,
		phase:       domain.PhasePreview,
		timer:       rules.PreviewSeconds,
		answers:     newAnswerLog(),
		streaks:     make(map[string]int),
		powerups:    make(map[string]*powerupState),
		players:     make(map[string]*domain.Player),
	}
	for i := range players {
		p := players[i]
		r.players[p.ID] = &p
		r.order = append(r.order, p.ID)
	}
	r.lastUpdate = r.buildUpdate()
	return r
}

// Run drives the per-second tick until the session finishes or ctx is
// cancelled. One goroutine per active session is the only host-side
// suspension point.
func (r *Runner) Run(ctx context.Context) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	r.publish()
	for {
		select {
		case <-ctx.Done():
			r.handle(context.Background(), abortEvent{})
			return
		case ev := <-r.events:
			r.handle(ctx, ev)
		case <-ticker.C:
			r.handle(ctx, tickEvent{})
		}
		if r.phase.Terminal() {
			return
		}
	}
}

// Subscribe returns a channel receiving phase updates. The caller must
// invoke the returned cancel function to avoid leaks.
func (r *Runner) Subscribe() (<-chan domain.PhaseUpdate, func()) {
	ch := make(chan domain.PhaseUpdate, 8)

	r.mu.Lock()
	r.subscribers[ch] = struct{}{}
	initial := r.lastUpdate
	r.mu.Unlock()

	ch <- initial

	cancel := func() {
		r.mu.Lock()
		if _, ok := r.subscribers[ch]; ok {
			delete(r.subscribers, ch)
			close(ch)
		}
		r.mu.Unlock()
	}
	return ch, cancel
}

// Errors exposes scoring/persistence failures for the host operator.
func (r *Runner) Errors() <-chan error {
	return r.errs
}

// LastUpdate returns the most recently published state, used for full
// reconciliation on (re)connect.
func (r *Runner) LastUpdate() domain.PhaseUpdate {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastUpdate
}

// SubmitAnswer queues a player's answer. Duplicates and late submissions
// are dropped inside the loop; the call itself never blocks the player.
func (r *Runner) SubmitAnswer(sub domain.AnswerSubmission) {
	select {
	case r.events <- answerEvent{sub: sub}:
	default:
	}
}

// RequestPowerup services a 50/50 request through the serialized queue and
// waits for the reply.
func (r *Runner) RequestPowerup(ctx context.Context, playerID string) (domain.PowerupGrant, error) {
	reply := make(chan powerupReply, 1)
	select {
	case r.events <- powerupEvent{playerID: playerID, reply: reply}:
	case <-ctx.Done():
		return domain.PowerupGrant{}, ctx.Err()
	}
	select {
	case res := <-reply:
		return res.grant, res.err
	case <-ctx.Done():
		return domain.PowerupGrant{}, ctx.Err()
	}
}

// CorrectIndex reports the position of the correct option for a question as
// this session renders it (option order is shuffled per session). Quiz
// content is immutable once the runner exists, so this is safe to call from
// any goroutine. Returns -1 for an out-of-range question.
func (r *Runner) CorrectIndex(questionIndex int) int {
	if questionIndex < 0 || questionIndex >= len(r.quiz.Questions) {
		return -1
	}
	return r.quiz.Questions[questionIndex].CorrectIndex()
}

// Advance is the operator's "next" action.
func (r *Runner) Advance() {
	r.events <- advanceEvent{}
}

// Abort force-finishes the session from any non-terminal phase.
func (r *Runner) Abort() {
	r.events <- abortEvent{}
}

// AddPlayer registers a late joiner with the running session.
func (r *Runner) AddPlayer(player domain.Player) {
	r.events <- joinEvent{player: player}
}

// NotifyLeave re-evaluates quorum after a player drops off presence.
func (r *Runner) NotifyLeave(playerID string) {
	select {
	case r.events <- leaveEvent{playerID: playerID}:
	default:
	}
}

func (r *Runner) handle(ctx context.Context, ev event) {
	if r.phase.Terminal() {
		if pe, ok := ev.(powerupEvent); ok {
			pe.reply <- powerupReply{err: domain.ErrSessionFinished}
		}
		return
	}

	switch ev := ev.(type) {
	case tickEvent:
		r.handleTick(ctx)
	case answerEvent:
		r.handleAnswer(ctx, ev.sub)
	case powerupEvent:
		ev.reply <- r.handlePowerup(ev.playerID)
	case advanceEvent:
		r.handleAdvance(ctx)
	case abortEvent:
		r.finish(ctx)
	case joinEvent:
		r.handleJoin(ev.player)
	case leaveEvent:
		r.maybeEndQuestion(ctx)
	}
}

func (r *Runner) handleTick(ctx context.Context) {
	if r.timer > 0 {
		r.timer--
	}
	if r.timer > 0 {
		r.publish()
		return
	}

	switch r.phase {
	case domain.PhasePreview:
		r.enterQuestion()
	case domain.PhaseQuestion:
		r.finishQuestion(ctx)
	case domain.PhaseResults:
		if r.rules.AutoAdvance {
			r.enterLeaderboard()
		} else {
			r.publish()
		}
	case domain.PhaseLeaderboard:
		if r.rules.AutoAdvance {
			r.nextQuestionOrFinish(ctx)
		} else {
			r.publish()
		}
	}
}

func (r *Runner) handleAnswer(ctx context.Context, sub domain.AnswerSubmission) {
	if r.phase != domain.PhaseQuestion || r.timer <= 0 {
		return
	}
	if sub.QuestionIndex != r.qIndex {
		return
	}
	if _, ok := r.players[sub.PlayerID]; !ok {
		return
	}
	question := r.quiz.Questions[r.qIndex]
	if sub.OptionIndex < 0 || sub.OptionIndex >= len(question.Options) {
		return
	}
	if !r.answers.accept(sub.PlayerID, sub.OptionIndex) {
		return
	}
	r.maybeEndQuestion(ctx)
}

// maybeEndQuestion closes the question early once every present player has
// answered. A disconnected player never blocks progress: quorum counts only
// live connections.
func (r *Runner) maybeEndQuestion(ctx context.Context) {
	if r.phase != domain.PhaseQuestion || r.scored {
		return
	}
	present, err := r.presence.Count(ctx, r.session.ID)
	if err != nil {
		r.log.Warn("presence count failed", zap.String("session", r.session.ID), zap.Error(err))
		return
	}
	if present > 0 && r.answers.count() >= present {
		r.finishQuestion(ctx)
	}
}

func (r *Runner) handlePowerup(playerID string) powerupReply {
	if !r.rules.PowerupsEnabled {
		return powerupReply{err: domain.ErrPowerupUnavailable}
	}
	if _, ok := r.players[playerID]; !ok {
		return powerupReply{err: domain.ErrPlayerNotFound}
	}
	if r.phase != domain.PhaseQuestion || r.timer <= 0 {
		return powerupReply{err: domain.ErrPowerupUnavailable}
	}

	state := r.powerups[playerID]
	if state == nil {
		state = &powerupState{}
		r.powerups[playerID] = state
	}
	if state.used {
		return powerupReply{err: domain.ErrPowerupUsed}
	}

	hidden, err := fiftyFifty(r.quiz.Questions[r.qIndex], r.rnd)
	if err != nil {
		return powerupReply{err: err}
	}
	state.used = true
	state.hiddenIndices = hidden
	return powerupReply{grant: domain.PowerupGrant{PlayerID: playerID, HiddenIndices: hidden}}
}

func (r *Runner) handleAdvance(ctx context.Context) {
	switch r.phase {
	case domain.PhaseResults:
		r.enterLeaderboard()
	case domain.PhaseLeaderboard:
		r.nextQuestionOrFinish(ctx)
	}
}

func (r *Runner) handleJoin(player domain.Player) {
	if _, ok := r.players[player.ID]; ok {
		return
	}
	p := player
	r.players[p.ID] = &p
	r.order = append(r.order, p.ID)
}

func (r *Runner) enterQuestion() {
	r.phase = domain.PhaseQuestion
	question := r.quiz.Questions[r.qIndex]
	r.timer = question.TimeLimitSeconds
	if r.timer <= 0 {
		r.timer = defaultQuestionSeconds
	}
	r.answers.reset()
	r.scored = false
	r.publish()
}

// finishQuestion runs the scoring engine exactly once per question. Both
// trigger sources (timer expiry and quorum) funnel here; the scored flag
// keeps the second arrival a no-op.
func (r *Runner) finishQuestion(ctx context.Context) {
	if r.phase != domain.PhaseQuestion || r.scored {
		return
	}
	r.scored = true

	question := r.quiz.Questions[r.qIndex]
	results := scoreQuestion(question, r.order, r.answers.snapshot(), r.streaks, r.rules.StreaksEnabled)

	for _, playerID := range r.order {
		res := results[playerID]
		player := r.players[playerID]
		player.Score += res.Awarded
		player.LastAnswerStatus = res.Status
		if res.Status == domain.AnswerCorrect {
			player.CorrectCount++
		} else {
			player.WrongCount++
		}
		r.streaks[playerID] = res.NewStreak

		r.persist("update player result", func() error {
			return r.store.UpdatePlayerResult(ctx, *player)
		})
	}

	r.phase = domain.PhaseResults
	r.timer = 0
	if r.rules.AutoAdvance {
		r.timer = r.rules.ResultsSeconds
	}
	r.publish()
}

func (r *Runner) enterLeaderboard() {
	r.phase = domain.PhaseLeaderboard
	r.timer = 0
	if r.rules.AutoAdvance {
		r.timer = r.rules.LeaderboardSeconds
	}
	r.publish()
}

func (r *Runner) nextQuestionOrFinish(ctx context.Context) {
	if r.qIndex+1 >= len(r.quiz.Questions) {
		r.finish(ctx)
		return
	}

	r.qIndex++
	r.session.CurrentQuestionIndex = r.qIndex
	r.persist("update question index", func() error {
		return r.store.UpdateSessionQuestionIndex(ctx, r.session.ID, r.qIndex)
	})

	// Clear the previous round's feedback so players see "get ready"
	// instead of stale correct/incorrect screens.
	for _, player := range r.players {
		player.LastAnswerStatus = domain.AnswerNone
	}
	r.persist("clear answer statuses", func() error {
		return r.store.ClearAnswerStatuses(ctx, r.session.ID)
	})

	r.answers.reset()
	r.scored = false
	r.phase = domain.PhasePreview
	r.timer = r.rules.PreviewSeconds
	r.publish()
}

func (r *Runner) finish(ctx context.Context) {
	if r.phase.Terminal() {
		return
	}
	r.phase = domain.PhaseFinished
	r.timer = 0
	r.session.Status = domain.StatusFinished
	r.persist("mark session finished", func() error {
		return r.store.UpdateSessionStatus(ctx, r.session.ID, domain.StatusActive, domain.StatusFinished)
	})
	r.publish()
}

// persist retries a store write a few times with doubling backoff. When the
// attempts are exhausted the in-memory phase still advances; the divergence
// is logged and surfaced to the host rather than failing the session.
func (r *Runner) persist(what string, op func() error) {
	var err error
	delay := r.retryDelay
	for attempt := 0; attempt < 3; attempt++ {
		if err = op(); err == nil {
			return
		}
		r.log.Warn("store write failed",
			zap.String("session", r.session.ID),
			zap.String("op", what),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
		if delay > 0 {
			time.Sleep(delay)
			delay *= 2
		}
	}
	r.log.Error("store write abandoned, in-memory state diverges",
		zap.String("session", r.session.ID),
		zap.String("op", what),
		zap.Error(err))
	select {
	case r.errs <- err:
	default:
	}
}

func (r *Runner) buildUpdate() domain.PhaseUpdate {
	update := domain.PhaseUpdate{
		Phase:         r.phase,
		PhaseName:     r.phase.String(),
		QuestionIndex: r.qIndex,
		Timer:         r.timer,
		AnswerCount:   r.answers.count(),
	}

	switch r.phase {
	case domain.PhaseResults:
		idx := r.CorrectIndex(r.qIndex)
		update.CorrectOptionIndex = &idx
	case domain.PhaseLeaderboard:
		update.Leaderboard = rankPlayers(r.playerList())
	case domain.PhaseFinished:
		update.Leaderboard = rankPlayers(r.playerList())
		report := buildFinalReport(r.playerList(), len(r.quiz.Questions))
		update.Report = &report
	}
	return update
}

func (r *Runner) playerList() []domain.Player {
	out := make([]domain.Player, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, *r.players[id])
	}
	return out
}

func (r *Runner) publish() {
	update := r.buildUpdate()

	r.mu.Lock()
	r.lastUpdate = update
	for ch := range r.subscribers {
		select {
		case ch <- update:
		default:
			// Drop the stale update so a slow client never blocks the tick.
			select {
			case <-ch:
			default:
			}
			ch <- update
		}
	}
	r.mu.Unlock()
}
