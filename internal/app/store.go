package app

import (
	"context"

	"live-quiz-service/internal/domain"
)

// QuizStore persists quizzes, their ordered questions and the options of each question.
// Lookups of missing records return the matching domain.Err*NotFound.
type QuizStore interface {
	NewQuizID() string
	NewQuestionID() string

	CreateQuiz(ctx context.Context, quiz domain.Quiz) error
	GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error)
	UpdateQuiz(ctx context.Context, quizID string, update domain.QuizUpdate) error
	ListQuizzesByOwner(ctx context.Context, ownerID string) ([]domain.Quiz, error)

	CreateQuestion(ctx context.Context, question domain.Question) error
	// GetQuestions returns the quiz's questions in creation order.
	GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error)
	GetQuestion(ctx context.Context, questionID string) (domain.Question, error)

	CreateOption(ctx context.Context, option domain.Option) (domain.Option, error)
	GetOptions(ctx context.Context, questionID string) ([]domain.Option, error)

	// WithinTx runs fn against a store whose writes become visible to other
	// readers all at once, and only if fn returns nil.
	WithinTx(ctx context.Context, fn func(ctx context.Context, tx QuizStore) error) error
}

// UserStore looks up and registers users.
type UserStore interface {
	GetUser(ctx context.Context, userID string) (domain.User, error)
	CreateUser(ctx context.Context, user domain.User) error
}

// AnswerStore is the append-only log of answer events.
type AnswerStore interface {
	RecordAnswer(ctx context.Context, answer domain.AnswerEvent) error
	GetParticipantAnswers(ctx context.Context, quizID, participantKey string) ([]domain.AnswerEvent, error)
	// ListParticipants returns distinct participants in first-answer order.
	ListParticipants(ctx context.Context, quizID string) ([]domain.Participant, error)
}

// Store is the full persistence capability consumed by the engine.
type Store interface {
	QuizStore
	UserStore
	AnswerStore
}

// Locker provides the per-quiz critical section around pointer changes.
type Locker interface {
	Lock(ctx context.Context, quizID string) (unlock func(), err error)
}

// LeaderboardCache holds fully ranked leaderboards between answer submissions.
//
// Every Invalidate moves the quiz to a new generation. Put only stores entries
// ranked under gen while that is still the current generation, so a board
// computed before an answer was recorded is never cached after it.
type LeaderboardCache interface {
	Get(ctx context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, bool, error)
	Generation(ctx context.Context, quizID string) (int64, error)
	Put(ctx context.Context, quizID string, gen int64, entries []domain.LeaderboardEntry) error
	Invalidate(ctx context.Context, quizID string) error
}

type noopLeaderboardCache struct{}

func (noopLeaderboardCache) Get(context.Context, string, int) ([]domain.LeaderboardEntry, bool, error) {
	return nil, false, nil
}

func (noopLeaderboardCache) Generation(context.Context, string) (int64, error) { return 0, nil }

func (noopLeaderboardCache) Put(context.Context, string, int64, []domain.LeaderboardEntry) error {
	return nil
}

func (noopLeaderboardCache) Invalidate(context.Context, string) error { return nil }
