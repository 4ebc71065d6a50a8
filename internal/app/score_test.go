package app_test

import (
	"math/rand"
	"testing"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

func TestCalculateScoreRewardsFirstAndRepeatCorrect(t *testing.T) {
	events := []domain.AnswerEvent{
		{QuestionID: "q1", Correct: true, TimeTaken: 1},
		{QuestionID: "q1", Correct: true, TimeTaken: 2},
		{QuestionID: "q2", Correct: true, TimeTaken: 3},
	}
	if got := app.CalculateScore(events); got != 55 {
		t.Fatalf("expected 55, got %d", got)
	}
}

func TestCalculateScoreCapsStreakBonus(t *testing.T) {
	var events []domain.AnswerEvent
	for i := 0; i < 5; i++ {
		events = append(events, domain.AnswerEvent{QuestionID: "q1", Correct: true, TimeTaken: float64(i)})
	}
	// 5x10 flat + 10 first + 5 + 5 (streak reaches 3), then no more bonus.
	if got := app.CalculateScore(events); got != 70 {
		t.Fatalf("expected 70, got %d", got)
	}
}

func TestCalculateScoreIgnoresIncorrect(t *testing.T) {
	events := []domain.AnswerEvent{
		{QuestionID: "q1", Correct: false, TimeTaken: 0.5},
		{QuestionID: "q2", Correct: false, TimeTaken: 1.5},
	}
	if got := app.CalculateScore(events); got != 0 {
		t.Fatalf("expected 0, got %d", got)
	}
	if got := app.CalculateScore(nil); got != 0 {
		t.Fatalf("expected 0 for no events, got %d", got)
	}
}

func TestCalculateScoreIsOrderIndependent(t *testing.T) {
	events := []domain.AnswerEvent{
		{QuestionID: "q1", Correct: true, TimeTaken: 4.2},
		{QuestionID: "q2", Correct: false, TimeTaken: 1.1},
		{QuestionID: "q1", Correct: true, TimeTaken: 0.3},
		{QuestionID: "q3", Correct: true, TimeTaken: 2.7},
		{QuestionID: "q1", Correct: true, TimeTaken: 9.9},
		{QuestionID: "q1", Correct: true, TimeTaken: 7.5},
		{QuestionID: "q2", Correct: true, TimeTaken: 3.3},
	}
	want := app.CalculateScore(events)

	rnd := rand.New(rand.NewSource(42))
	for i := 0; i < 50; i++ {
		shuffled := append([]domain.AnswerEvent(nil), events...)
		rnd.Shuffle(len(shuffled), func(a, b int) { shuffled[a], shuffled[b] = shuffled[b], shuffled[a] })
		if got := app.CalculateScore(shuffled); got != want {
			t.Fatalf("shuffle %d: expected %d, got %d", i, want, got)
		}
	}
}

func TestCalculateScoreDoesNotReorderInput(t *testing.T) {
	events := []domain.AnswerEvent{
		{QuestionID: "q2", Correct: true, TimeTaken: 5},
		{QuestionID: "q1", Correct: true, TimeTaken: 1},
	}
	_ = app.CalculateScore(events)
	if events[0].QuestionID != "q2" {
		t.Fatalf("expected caller slice untouched, got %+v", events)
	}
}
