package app

import (
	"math/rand"

	"livequiz-service/internal/domain"
)

// powerupState tracks the one-time 50/50 per player per session.
type powerupState struct {
	used          bool
	hiddenIndices []int
}

// fiftyFifty picks two distinct incorrect option indices to hide from the
// requesting player. The question needs at least three options so that two
// incorrect ones exist.
func fiftyFifty(question domain.Question, rnd *rand.Rand) ([]int, error) {
	if len(question.Options) < 3 {
		return nil, domain.ErrPowerupUnavailable
	}

	wrong := make([]int, 0, len(question.Options))
	for i, opt := range question.Options {
		if !opt.Correct {
			wrong = append(wrong, i)
		}
	}
	if len(wrong) < 2 {
		return nil, domain.ErrPowerupUnavailable
	}

	rnd.Shuffle(len(wrong), func(i, j int) {
		wrong[i], wrong[j] = wrong[j], wrong[i]
	})
	return wrong[:2], nil
}
