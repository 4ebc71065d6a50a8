package app

import (
	"context"
	"strings"
	"time"

	"live-quiz-service/internal/domain"
)

// QuizLifecycle is the draft -> active -> completed state machine of a quiz and
// its current-question pointer.
//
// Every pointer change runs inside the quiz's Locker critical section and is
// written as a single guarded update, so the pointer and its start timestamp
// always change together and a racing writer fails instead of overwriting.
type QuizLifecycle struct {
	quizzes QuizStore
	locks   Locker
	now     func() time.Time
}

func NewQuizLifecycle(quizzes QuizStore, locks Locker, now func() time.Time) *QuizLifecycle {
	if now == nil {
		now = time.Now
	}
	return &QuizLifecycle{quizzes: quizzes, locks: locks, now: now}
}

// Create validates the whole input, then writes the quiz, its questions and
// their options in one transaction. The quiz starts as a draft.
func (l *QuizLifecycle) Create(ctx context.Context, in domain.QuizInput) (domain.Quiz, error) {
	in.Title = strings.TrimSpace(in.Title)
	in.OwnerID = strings.TrimSpace(in.OwnerID)
	in.Questions = normalizeQuestions(in.Questions)
	if err := validateInput(in, in.Questions); err != nil {
		return domain.Quiz{}, err
	}

	quiz := domain.Quiz{
		ID:        l.quizzes.NewQuizID(),
		Title:     in.Title,
		OwnerID:   in.OwnerID,
		Status:    domain.StatusDraft,
		CreatedAt: l.now(),
	}
	err := l.quizzes.WithinTx(ctx, func(ctx context.Context, tx QuizStore) error {
		if err := tx.CreateQuiz(ctx, quiz); err != nil {
			return err
		}
		return addQuestions(ctx, tx, quiz.ID, 0, in.Questions)
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	return quiz, nil
}

// Activate moves a draft quiz with at least one question to active and points
// it at its first question.
func (l *QuizLifecycle) Activate(ctx context.Context, quizID string) (domain.Quiz, error) {
	unlock, err := l.locks.Lock(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	defer unlock()

	quiz, err := l.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if quiz.Status != domain.StatusDraft {
		return domain.Quiz{}, domain.ErrQuizNotDraft
	}
	questions, err := l.quizzes.GetQuestions(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	if len(questions) == 0 {
		return domain.Quiz{}, domain.ErrNoQuestions
	}

	active, draft := domain.StatusActive, domain.StatusDraft
	first, now := questions[0].ID, l.now()
	err = l.quizzes.UpdateQuiz(ctx, quizID, domain.QuizUpdate{
		Status:            &active,
		CurrentQuestionID: &first,
		QuestionStartedAt: &now,
		ExpectStatus:      &draft,
	})
	if err != nil {
		return domain.Quiz{}, err
	}
	quiz.Status, quiz.CurrentQuestionID, quiz.QuestionStartedAt = active, first, &now
	return quiz, nil
}

// Advance moves an active quiz to its next question, or completes it when the
// current question is the last one. A non-empty expectedQuestionID makes the
// call fail with ErrStaleAdvance unless that question is still current. Calls
// without it are serialized but not deduplicated: N of them advance N steps.
func (l *QuizLifecycle) Advance(ctx context.Context, quizID, expectedQuestionID string) (domain.AdvanceResult, error) {
	unlock, err := l.locks.Lock(ctx, quizID)
	if err != nil {
		return domain.AdvanceResult{}, err
	}
	defer unlock()

	quiz, err := l.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.AdvanceResult{}, err
	}
	questions, err := l.quizzes.GetQuestions(ctx, quizID)
	if err != nil {
		return domain.AdvanceResult{}, err
	}
	if len(questions) == 0 {
		return domain.AdvanceResult{}, domain.ErrQuestionNotFound
	}
	current := quiz.CurrentQuestionID
	if current == "" || quiz.Status != domain.StatusActive {
		return domain.AdvanceResult{}, domain.ErrNoCurrentQuestion
	}
	if expectedQuestionID != "" && expectedQuestionID != current {
		return domain.AdvanceResult{}, domain.ErrStaleAdvance
	}

	idx := -1
	for i, q := range questions {
		if q.ID == current {
			idx = i
			break
		}
	}
	if idx < 0 {
		return domain.AdvanceResult{}, domain.ErrQuestionNotFound
	}

	if idx == len(questions)-1 {
		completed, none, zero := domain.StatusCompleted, "", time.Time{}
		err = l.quizzes.UpdateQuiz(ctx, quizID, domain.QuizUpdate{
			Status:                  &completed,
			CurrentQuestionID:       &none,
			QuestionStartedAt:       &zero,
			ExpectCurrentQuestionID: &current,
		})
		if err != nil {
			return domain.AdvanceResult{}, err
		}
		return domain.AdvanceResult{Status: completed}, nil
	}

	next, now := questions[idx+1].ID, l.now()
	err = l.quizzes.UpdateQuiz(ctx, quizID, domain.QuizUpdate{
		CurrentQuestionID:       &next,
		QuestionStartedAt:       &now,
		ExpectCurrentQuestionID: &current,
	})
	if err != nil {
		return domain.AdvanceResult{}, err
	}
	return domain.AdvanceResult{Status: domain.StatusActive, CurrentQuestionID: next}, nil
}

// CurrentQuestion returns the question the quiz is presenting, with options
// stripped of their correctness flag.
func (l *QuizLifecycle) CurrentQuestion(ctx context.Context, quizID string) (domain.QuestionView, error) {
	quiz, err := l.quizzes.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuestionView{}, err
	}
	if quiz.CurrentQuestionID == "" || quiz.QuestionStartedAt == nil {
		return domain.QuestionView{}, domain.ErrQuestionNotFound
	}
	question, err := l.quizzes.GetQuestion(ctx, quiz.CurrentQuestionID)
	if err != nil {
		return domain.QuestionView{}, err
	}
	options, err := l.quizzes.GetOptions(ctx, question.ID)
	if err != nil {
		return domain.QuestionView{}, err
	}

	view := domain.QuestionView{
		ID:        question.ID,
		QuizID:    question.QuizID,
		Text:      question.Text,
		Position:  question.Position,
		Options:   make([]domain.OptionView, len(options)),
		StartedAt: *quiz.QuestionStartedAt,
	}
	for i, o := range options {
		view.Options[i] = domain.OptionView{ID: o.ID, Text: o.Text}
	}
	return view, nil
}

// addQuestions writes questions (and their options) after the first offset positions.
func addQuestions(ctx context.Context, tx QuizStore, quizID string, offset int, inputs []domain.QuestionInput) error {
	for i, in := range inputs {
		question := domain.Question{
			ID:       tx.NewQuestionID(),
			QuizID:   quizID,
			Text:     in.Text,
			Position: offset + i,
		}
		if err := tx.CreateQuestion(ctx, question); err != nil {
			return err
		}
		for j, text := range in.Options {
			_, err := tx.CreateOption(ctx, domain.Option{
				QuestionID: question.ID,
				Text:       text,
				Correct:    j+1 == in.CorrectOption,
			})
			if err != nil {
				return err
			}
		}
	}
	return nil
}
