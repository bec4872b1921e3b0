package app

// answerLog records at most one answer per player for the current question.
// It is owned by the runner goroutine and never shared, so it needs no lock.
type answerLog struct {
	choices map[string]int
}

func newAnswerLog() *answerLog {
	return &answerLog{choices: make(map[string]int)}
}

// accept records the answer unless the player already answered this
// question. The first submission wins; duplicates are silently ignored.
func (l *answerLog) accept(playerID string, optionIndex int) bool {
	if _, ok := l.choices[playerID]; ok {
		return false
	}
	l.choices[playerID] = optionIndex
	return true
}

// get returns the recorded option index for a player, if any.
func (l *answerLog) get(playerID string) (int, bool) {
	idx, ok := l.choices[playerID]
	return idx, ok
}

// count is the number of distinct players who answered this question.
func (l *answerLog) count() int {
	return len(l.choices)
}

// reset clears the log at the start of a new question.
func (l *answerLog) reset() {
	l.choices = make(map[string]int)
}

// snapshot copies the recorded answers for scoring.
func (l *answerLog) snapshot() map[string]int {
	out := make(map[string]int, len(l.choices))
	for player, idx := range l.choices {
		out[player] = idx
	}
	return out
}
