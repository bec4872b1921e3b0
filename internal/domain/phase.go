package domain

// Phase is one step of question progression inside an active session.
type Phase int

const (
	PhasePreview Phase = iota
	PhaseQuestion
	PhaseResults
	PhaseLeaderboard
	PhaseFinished
)

var phaseNames = map[Phase]string{
	PhasePreview:     "preview",
	PhaseQuestion:    "question",
	PhaseResults:     "results",
	PhaseLeaderboard: "leaderboard",
	PhaseFinished:    "finished",
}

func (p Phase) String() string {
	if name, ok := phaseNames[p]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transitions are possible.
func (p Phase) Terminal() bool {
	return p == PhaseFinished
}

// CanTransition is the closed transition table of the phase machine.
// PhaseFinished is reachable from every non-terminal phase (operator abort);
// the regular path is preview → question → results → leaderboard → preview.
func (p Phase) CanTransition(next Phase) bool {
	if p.Terminal() {
		return false
	}
	if next == PhaseFinished {
		return true
	}
	switch p {
	case PhasePreview:
		return next == PhaseQuestion
	case PhaseQuestion:
		return next == PhaseResults
	case PhaseResults:
		return next == PhaseLeaderboard
	case PhaseLeaderboard:
		return next == PhasePreview
	}
	return false
}

// SessionStatus is the persisted lifecycle of a session. It only moves
// forward: waiting → active → finished.
type SessionStatus string

const (
	StatusWaiting  SessionStatus = "waiting"
	StatusActive   SessionStatus = "active"
	StatusFinished SessionStatus = "finished"
)

func (s SessionStatus) rank() int {
	switch s {
	case StatusWaiting:
		return 0
	case StatusActive:
		return 1
	case StatusFinished:
		return 2
	}
	return -1
}

// CanTransition reports whether the status may move to next.
func (s SessionStatus) CanTransition(next SessionStatus) bool {
	return next.rank() > s.rank()
}

// AnswerStatus is a player's feedback for the most recent question.
// The empty value means no result has been published yet.
type AnswerStatus string

const (
	AnswerNone      AnswerStatus = ""
	AnswerCorrect   AnswerStatus = "correct"
	AnswerIncorrect AnswerStatus = "incorrect"
)
