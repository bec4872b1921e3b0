package app

import "livequiz-service/internal/domain"

// ClientState is the player-side mirror of the host phase.
type ClientState int

const (
	ClientWaiting ClientState = iota
	ClientPreview
	ClientQuestion
	ClientAnswerSent
	ClientResults
	ClientFinished
)

var clientStateNames = map[ClientState]string{
	ClientWaiting:    "waiting",
	ClientPreview:    "preview",
	ClientQuestion:   "question",
	ClientAnswerSent: "answer_sent",
	ClientResults:    "results",
	ClientFinished:   "finished",
}

func (s ClientState) String() string {
	if name, ok := clientStateNames[s]; ok {
		return name
	}
	return "unknown"
}

// ClientMirror renders local UI state from received phase updates. The
// transport offers no ordering or delivery guarantee, so applying the same
// update twice, or an older one late, must leave the mirror unchanged:
// updates are keyed by (phase, questionIndex) and only move forward.
type ClientMirror struct {
	state         ClientState
	phase         domain.Phase
	questionIndex int
	started       bool
	answered      bool
	chosenIndex   int
	hiddenIndices []int
	feedback      domain.AnswerStatus
}

// NewClientMirror starts in the waiting room.
func NewClientMirror() *ClientMirror {
	return &ClientMirror{state: ClientWaiting, chosenIndex: -1}
}

// State returns the current local UI state.
func (m *ClientMirror) State() ClientState {
	return m.state
}

// QuestionIndex returns the question the mirror currently tracks.
func (m *ClientMirror) QuestionIndex() int {
	return m.questionIndex
}

// HiddenIndices returns option indices revealed as wrong by the 50/50.
func (m *ClientMirror) HiddenIndices() []int {
	return m.hiddenIndices
}

// Feedback is the correctness result of the player's own last answer,
// sourced from the persisted record that only the scoring path writes.
func (m *ClientMirror) Feedback() domain.AnswerStatus {
	return m.feedback
}

// ApplyPhase folds a broadcast phase update into local state. Stale or
// duplicate deliveries are no-ops.
func (m *ClientMirror) ApplyPhase(update domain.PhaseUpdate) {
	if m.state == ClientFinished {
		return
	}
	if m.started {
		if update.QuestionIndex < m.questionIndex {
			return
		}
		if update.QuestionIndex == m.questionIndex && update.Phase < m.phase {
			return
		}
	}

	if !m.started || update.QuestionIndex != m.questionIndex {
		// New question: forget the previous round's answer and 50/50 reveal.
		m.answered = false
		m.chosenIndex = -1
		m.hiddenIndices = nil
		m.feedback = domain.AnswerNone
		m.questionIndex = update.QuestionIndex
	}
	m.started = true
	m.phase = update.Phase

	switch update.Phase {
	case domain.PhasePreview:
		m.state = ClientPreview
	case domain.PhaseQuestion:
		if m.answered {
			m.state = ClientAnswerSent
		} else {
			m.state = ClientQuestion
		}
	case domain.PhaseResults, domain.PhaseLeaderboard:
		m.state = ClientResults
	case domain.PhaseFinished:
		m.state = ClientFinished
	}
}

// SubmitAnswer records the local choice and reports whether the submission
// should be sent. At most one answer per question; further input is ignored.
func (m *ClientMirror) SubmitAnswer(optionIndex int) bool {
	if m.state != ClientQuestion || m.answered {
		return false
	}
	m.answered = true
	m.chosenIndex = optionIndex
	m.state = ClientAnswerSent
	return true
}

// ApplyPowerup records the 50/50 reveal for the current question.
func (m *ClientMirror) ApplyPowerup(grant domain.PowerupGrant) {
	m.hiddenIndices = grant.HiddenIndices
}

// ApplyPlayer refreshes correctness feedback from the player's own record.
func (m *ClientMirror) ApplyPlayer(player domain.Player) {
	m.feedback = player.LastAnswerStatus
}
