package app

import "livequiz-service/internal/domain"

const (
	correctPoints  = 1000
	streakBonus    = 100
	streakBonusCap = 5
)

// playerResult is the scoring outcome for a single player on one question.
type playerResult struct {
	Status    domain.AnswerStatus
	Awarded   int
	NewStreak int
}

// scoreQuestion converts a question's recorded answers into per-player
// deltas. A correct answer is worth a flat 1000 points plus, when streaks
// are enabled, min(newStreak, 5)*100. A wrong or missing answer awards
// nothing and resets the streak. Every listed player receives a result:
// players without a recorded answer are scored as wrong, so a dropped
// connection never blocks the game (they just miss the round).
func scoreQuestion(question domain.Question, playerIDs []string, answers map[string]int, streaks map[string]int, streaksEnabled bool) map[string]playerResult {
	correctIdx := question.CorrectIndex()
	results := make(map[string]playerResult, len(playerIDs))

	for _, playerID := range playerIDs {
		chosen, answered := answers[playerID]
		if answered && chosen == correctIdx {
			newStreak := streaks[playerID] + 1
			awarded := correctPoints
			if streaksEnabled {
				bonus := newStreak
				if bonus > streakBonusCap {
					bonus = streakBonusCap
				}
				awarded += bonus * streakBonus
			}
			results[playerID] = playerResult{
				Status:    domain.AnswerCorrect,
				Awarded:   awarded,
				NewStreak: newStreak,
			}
			continue
		}
		results[playerID] = playerResult{
			Status:    domain.AnswerIncorrect,
			Awarded:   0,
			NewStreak: 0,
		}
	}
	return results
}
