package app_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func TestCreateRejectsMalformedInput(t *testing.T) {
	lc := app.NewQuizLifecycle(memory.NewStore(), memory.NewLocker(), nil)
	valid := sampleInput()

	cases := map[string]func(in *domain.QuizInput){
		"missing title":    func(in *domain.QuizInput) { in.Title = "  " },
		"missing owner":    func(in *domain.QuizInput) { in.OwnerID = "" },
		"no questions":     func(in *domain.QuizInput) { in.Questions = nil },
		"question text":    func(in *domain.QuizInput) { in.Questions[1].Text = "" },
		"empty options":    func(in *domain.QuizInput) { in.Questions[0].Options = nil },
		"blank option":     func(in *domain.QuizInput) { in.Questions[0].Options[1] = " " },
		"missing correct":  func(in *domain.QuizInput) { in.Questions[0].CorrectOption = 0 },
		"correct past end": func(in *domain.QuizInput) { in.Questions[1].CorrectOption = 4 },
		"negative correct": func(in *domain.QuizInput) { in.Questions[1].CorrectOption = -1 },
	}
	for name, mutate := range cases {
		in := cloneInput(valid)
		mutate(&in)
		if _, err := lc.Create(context.Background(), in); domain.KindOf(err) != domain.KindValidation {
			t.Fatalf("%s: expected validation error, got %v", name, err)
		}
	}
}

func TestCreateWritesDraftQuizWithStructure(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	lc := app.NewQuizLifecycle(store, memory.NewLocker(), nil)

	quiz, err := lc.Create(ctx, sampleInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	stored, err := store.GetQuiz(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("get quiz: %v", err)
	}
	if stored.Status != domain.StatusDraft || stored.CurrentQuestionID != "" || stored.Title != "Capitals" {
		t.Fatalf("unexpected stored quiz %+v", stored)
	}

	questions, _ := store.GetQuestions(ctx, quiz.ID)
	if len(questions) != 2 || questions[0].Text != "Capital of France?" || questions[1].Position != 1 {
		t.Fatalf("unexpected questions %+v", questions)
	}
	options, _ := store.GetOptions(ctx, questions[1].ID)
	if len(options) != 3 || options[0].Correct || !options[1].Correct || options[2].Correct {
		t.Fatalf("expected only the second option to be correct, got %+v", options)
	}
}

func TestActivateRules(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newTestClock()
	lc := app.NewQuizLifecycle(store, memory.NewLocker(), clock.Now)

	if _, err := lc.Activate(ctx, "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}

	_ = store.CreateQuiz(ctx, domain.Quiz{ID: "empty", Title: "Empty", Status: domain.StatusDraft})
	if _, err := lc.Activate(ctx, "empty"); !errors.Is(err, domain.ErrNoQuestions) {
		t.Fatalf("expected no questions error, got %v", err)
	}
	if empty, _ := store.GetQuiz(ctx, "empty"); empty.Status != domain.StatusDraft {
		t.Fatalf("expected failed activation to keep draft, got %s", empty.Status)
	}

	quiz, _ := lc.Create(ctx, sampleInput())
	questions, _ := store.GetQuestions(ctx, quiz.ID)
	activated, err := lc.Activate(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("activate: %v", err)
	}
	if activated.Status != domain.StatusActive || activated.CurrentQuestionID != questions[0].ID {
		t.Fatalf("expected first question current, got %+v", activated)
	}
	stored, _ := store.GetQuiz(ctx, quiz.ID)
	if !stored.QuestionStartedAt.Equal(clock.Now()) {
		t.Fatalf("expected start timestamp %v, got %v", clock.Now(), stored.QuestionStartedAt)
	}

	if _, err := lc.Activate(ctx, quiz.ID); !errors.Is(err, domain.ErrQuizNotDraft) {
		t.Fatalf("expected re-activation to be an invalid state, got %v", err)
	}
}

func TestAdvanceWalksQuestionsThenCompletes(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	clock := newTestClock()
	lc := app.NewQuizLifecycle(store, memory.NewLocker(), clock.Now)

	quiz, _ := lc.Create(ctx, sampleInput())
	questions, _ := store.GetQuestions(ctx, quiz.ID)

	if _, err := lc.Advance(ctx, quiz.ID, ""); !errors.Is(err, domain.ErrNoCurrentQuestion) {
		t.Fatalf("expected draft advance to fail, got %v", err)
	}

	_, _ = lc.Activate(ctx, quiz.ID)
	clock.Advance(30 * time.Second)

	res, err := lc.Advance(ctx, quiz.ID, "")
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if res.Status != domain.StatusActive || res.CurrentQuestionID != questions[1].ID {
		t.Fatalf("expected second question, got %+v", res)
	}
	stored, _ := store.GetQuiz(ctx, quiz.ID)
	if stored.CurrentQuestionID != questions[1].ID || !stored.QuestionStartedAt.Equal(clock.Now()) {
		t.Fatalf("expected pointer and timestamp reset, got %+v", stored)
	}

	res, err = lc.Advance(ctx, quiz.ID, questions[1].ID)
	if err != nil {
		t.Fatalf("advance to completion: %v", err)
	}
	if res.Status != domain.StatusCompleted {
		t.Fatalf("expected completed, got %+v", res)
	}
	stored, _ = store.GetQuiz(ctx, quiz.ID)
	if stored.Status != domain.StatusCompleted || stored.CurrentQuestionID != "" {
		t.Fatalf("expected completed quiz without pointer, got %+v", stored)
	}

	if _, err := lc.Advance(ctx, quiz.ID, ""); !errors.Is(err, domain.ErrNoCurrentQuestion) {
		t.Fatalf("expected second completion advance to fail, got %v", err)
	}
	if again, _ := store.GetQuiz(ctx, quiz.ID); again != stored {
		t.Fatalf("expected failed advance to leave quiz untouched, got %+v", again)
	}
}

func TestAdvanceMissingQuizOrQuestions(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	lc := app.NewQuizLifecycle(store, memory.NewLocker(), nil)

	if _, err := lc.Advance(ctx, "missing", ""); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
	_ = store.CreateQuiz(ctx, domain.Quiz{ID: "bare", Status: domain.StatusActive, CurrentQuestionID: "ghost"})
	if _, err := lc.Advance(ctx, "bare", ""); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected questions not found, got %v", err)
	}
}

func TestConcurrentAdvanceFromSameQuestion(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	lc := app.NewQuizLifecycle(store, memory.NewLocker(), nil)

	in := sampleInput()
	in.Questions = append(in.Questions, in.Questions[0], in.Questions[1])
	quiz, _ := lc.Create(ctx, in)
	questions, _ := store.GetQuestions(ctx, quiz.ID)
	_, _ = lc.Activate(ctx, quiz.ID)

	const callers = 16
	for step := 0; step < len(questions); step++ {
		from := questions[step].ID
		var wg sync.WaitGroup
		var mu sync.Mutex
		successes, stale := 0, 0
		for i := 0; i < callers; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				_, err := lc.Advance(ctx, quiz.ID, from)
				mu.Lock()
				defer mu.Unlock()
				switch {
				case err == nil:
					successes++
				case errors.Is(err, domain.ErrStaleAdvance), errors.Is(err, domain.ErrNoCurrentQuestion):
					stale++
				default:
					t.Errorf("unexpected error %v", err)
				}
			}()
		}
		wg.Wait()
		if successes != 1 || stale != callers-1 {
			t.Fatalf("step %d: expected 1 success and %d failures, got %d/%d", step, callers-1, successes, stale)
		}
	}

	stored, _ := store.GetQuiz(ctx, quiz.ID)
	if stored.Status != domain.StatusCompleted {
		t.Fatalf("expected completion after walking every question, got %s", stored.Status)
	}
}

func TestUnguardedAdvancesStepOnceEach(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	lc := app.NewQuizLifecycle(store, memory.NewLocker(), nil)

	in := sampleInput()
	in.Questions = append(in.Questions, in.Questions[0], in.Questions[1])
	quiz, _ := lc.Create(ctx, in)
	questions, _ := store.GetQuestions(ctx, quiz.ID)
	_, _ = lc.Activate(ctx, quiz.ID)

	const callers = 3
	var wg sync.WaitGroup
	errs := make(chan error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := lc.Advance(ctx, quiz.ID, "")
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Fatalf("unguarded advance: %v", err)
		}
	}

	stored, _ := store.GetQuiz(ctx, quiz.ID)
	if stored.Status != domain.StatusActive || stored.CurrentQuestionID != questions[callers].ID {
		t.Fatalf("expected %d steps to land on the last question, got %+v", callers, stored)
	}
}

func TestCurrentQuestionHidesCorrectness(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	lc := app.NewQuizLifecycle(store, memory.NewLocker(), nil)

	quiz, _ := lc.Create(ctx, sampleInput())
	if _, err := lc.CurrentQuestion(ctx, quiz.ID); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected no current question for draft, got %v", err)
	}
	_, _ = lc.Activate(ctx, quiz.ID)

	view, err := lc.CurrentQuestion(ctx, quiz.ID)
	if err != nil {
		t.Fatalf("current question: %v", err)
	}
	if view.Text != "Capital of France?" || len(view.Options) != 3 || view.Options[1].Text != "Paris" {
		t.Fatalf("unexpected view %+v", view)
	}
	if _, err := lc.CurrentQuestion(ctx, "missing"); !errors.Is(err, domain.ErrQuizNotFound) {
		t.Fatalf("expected quiz not found, got %v", err)
	}
}

func sampleInput() domain.QuizInput {
	return domain.QuizInput{
		Title:   "Capitals",
		OwnerID: "u1",
		Questions: []domain.QuestionInput{
			{Text: "Capital of France?", Options: []string{"Berlin", "Paris", "Madrid"}, CorrectOption: 2},
			{Text: "Capital of Japan?", Options: []string{"Seoul", "Tokyo", "Bangkok"}, CorrectOption: 2},
		},
	}
}

func cloneInput(in domain.QuizInput) domain.QuizInput {
	out := in
	out.Questions = make([]domain.QuestionInput, len(in.Questions))
	for i, q := range in.Questions {
		q.Options = append([]string(nil), q.Options...)
		out.Questions[i] = q
	}
	return out
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func newTestClock() *testClock {
	return &testClock{now: time.Date(2024, 11, 22, 10, 0, 0, 0, time.UTC)}
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
