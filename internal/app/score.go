package app

import (
	"sort"

	"live-quiz-service/internal/domain"
)

const (
	pointsPerCorrect   = 10
	firstCorrectBonus  = 10
	repeatCorrectBonus = 5
	maxCorrectStreak   = 3
)

// CalculateScore totals a participant's answer events for one quiz.
//
// Events are processed fastest first across all questions. Every correct event
// earns 10 points; the first correct event of a question earns another 10, and
// the next correct events of the same question earn 5 each until the question's
// streak reaches 3. The input slice is not modified.
func CalculateScore(events []domain.AnswerEvent) int {
	ordered := make([]domain.AnswerEvent, len(events))
	copy(ordered, events)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].TimeTaken < ordered[j].TimeTaken
	})

	score := 0
	streak := make(map[string]int)
	for _, ev := range ordered {
		if !ev.Correct {
			continue
		}
		score += pointsPerCorrect
		n, seen := streak[ev.QuestionID]
		switch {
		case !seen:
			streak[ev.QuestionID] = 1
			score += firstCorrectBonus
		case n < maxCorrectStreak:
			streak[ev.QuestionID] = n + 1
			score += repeatCorrectBonus
		}
	}
	return score
}
