package redis

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
	"live-quiz-service/internal/infra/memory"
)

func TestCatalogCacheServesRepeatReadsFromRedis(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	store := &countingStore{Store: memory.NewStore()}
	questionID := seedQuestion(t, store.Store)
	cache := NewCatalogCache(store, client, time.Minute)

	options, err := cache.GetOptions(ctx, questionID)
	if err != nil {
		t.Fatalf("get options: %v", err)
	}
	if len(options) != 2 || !options[1].Correct {
		t.Fatalf("unexpected options %+v", options)
	}
	if !mr.Exists("quiz:question:" + questionID + ":options") {
		t.Fatalf("expected options to be cached")
	}
	if ttl := mr.TTL("quiz:question:" + questionID + ":options"); ttl < time.Minute || ttl > time.Minute+6*time.Second {
		t.Fatalf("expected ttl with jitter, got %v", ttl)
	}

	again, _ := cache.GetOptions(ctx, questionID)
	if store.optionCalls.Load() != 1 {
		t.Fatalf("expected cache hit, store calls=%d", store.optionCalls.Load())
	}
	if len(again) != 2 || again[1] != options[1] {
		t.Fatalf("expected cached options to match, got %+v", again)
	}

	question, err := cache.GetQuestion(ctx, questionID)
	if err != nil || question.Text != "What is 2 + 2?" {
		t.Fatalf("unexpected question %+v %v", question, err)
	}
	_, _ = cache.GetQuestion(ctx, questionID)
	if store.questionCalls.Load() != 1 {
		t.Fatalf("expected question cache hit, store calls=%d", store.questionCalls.Load())
	}
}

func TestCatalogCacheCollapsesConcurrentMisses(t *testing.T) {
	ctx := context.Background()
	_, client := newMiniredis(t)
	store := &countingStore{Store: memory.NewStore(), delay: 20 * time.Millisecond}
	questionID := seedQuestion(t, store.Store)
	cache := NewCatalogCache(store, client, time.Minute)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := cache.GetOptions(ctx, questionID); err != nil {
				t.Errorf("get options: %v", err)
			}
		}()
	}
	wg.Wait()
	if calls := store.optionCalls.Load(); calls != 1 {
		t.Fatalf("expected one load for concurrent misses, got %d", calls)
	}
}

func TestCatalogCacheDoesNotCacheMisses(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	cache := NewCatalogCache(memory.NewStore(), client, time.Minute)

	if _, err := cache.GetQuestion(ctx, "ghost"); !errors.Is(err, domain.ErrQuestionNotFound) {
		t.Fatalf("expected question not found, got %v", err)
	}
	if mr.Exists("quiz:question:ghost") {
		t.Fatalf("expected miss not to be cached")
	}
}

func TestCatalogCacheFallsBackWhenRedisIsDown(t *testing.T) {
	ctx := context.Background()
	mr, client := newMiniredis(t)
	store := memory.NewStore()
	questionID := seedQuestion(t, store)
	cache := NewCatalogCache(store, client, time.Minute)
	mr.Close()

	options, err := cache.GetOptions(ctx, questionID)
	if err != nil || len(options) != 2 {
		t.Fatalf("expected store fallback, got %+v %v", options, err)
	}
}

func seedQuestion(t *testing.T, store *memory.Store) string {
	t.Helper()
	ctx := context.Background()
	var questionID string
	err := store.WithinTx(ctx, func(ctx context.Context, tx app.QuizStore) error {
		quiz := domain.Quiz{ID: tx.NewQuizID(), Title: "Math", OwnerID: "u1", Status: domain.StatusDraft}
		if err := tx.CreateQuiz(ctx, quiz); err != nil {
			return err
		}
		questionID = tx.NewQuestionID()
		if err := tx.CreateQuestion(ctx, domain.Question{ID: questionID, QuizID: quiz.ID, Text: "What is 2 + 2?"}); err != nil {
			return err
		}
		if _, err := tx.CreateOption(ctx, domain.Option{QuestionID: questionID, Text: "3"}); err != nil {
			return err
		}
		_, err := tx.CreateOption(ctx, domain.Option{QuestionID: questionID, Text: "4", Correct: true})
		return err
	})
	if err != nil {
		t.Fatalf("seed question: %v", err)
	}
	return questionID
}

type countingStore struct {
	*memory.Store
	delay         time.Duration
	questionCalls atomic.Int32
	optionCalls   atomic.Int32
}

func (s *countingStore) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	s.questionCalls.Add(1)
	return s.Store.GetQuestion(ctx, questionID)
}

func (s *countingStore) GetOptions(ctx context.Context, questionID string) ([]domain.Option, error) {
	s.optionCalls.Add(1)
	time.Sleep(s.delay)
	return s.Store.GetOptions(ctx, questionID)
}
