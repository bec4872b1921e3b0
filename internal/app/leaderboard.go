package app

import (
	"sort"

	"livequiz-service/internal/domain"
)

// rankPlayers returns a copy ordered by score descending. The sort is
// stable: players with equal scores keep their join order.
func rankPlayers(players []domain.Player) []domain.Player {
	ranked := make([]domain.Player, len(players))
	copy(ranked, players)
	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}

// buildFinalReport aggregates the end-of-game summary.
func buildFinalReport(players []domain.Player, totalQuestions int) domain.FinalReport {
	report := domain.FinalReport{
		TotalPlayers:   len(players),
		TotalQuestions: totalQuestions,
	}
	if len(players) == 0 {
		return report
	}

	totalScore := 0
	totalCorrect := 0
	for _, p := range players {
		totalScore += p.Score
		totalCorrect += p.CorrectCount
	}
	report.AverageScore = float64(totalScore) / float64(len(players))
	if totalQuestions > 0 {
		report.AverageAccuracy = float64(totalCorrect) / float64(len(players)*totalQuestions)
	}
	return report
}
