package memory

import (
	"context"
	"fmt"
	"sync"

	"live-quiz-service/internal/domain"
)

// Locker is an in-process, per-quiz mutex implementing app.Locker.
// Waiting for a held lock honors ctx cancellation, which is reported as
// domain.ErrQuizBusy.
type Locker struct {
	mu    sync.Mutex
	locks map[string]*quizLock
}

type quizLock struct {
	held chan struct{}
	refs int
}

func NewLocker() *Locker {
	return &Locker{locks: make(map[string]*quizLock)}
}

func (l *Locker) Lock(ctx context.Context, quizID string) (func(), error) {
	l.mu.Lock()
	ql, ok := l.locks[quizID]
	if !ok {
		ql = &quizLock{held: make(chan struct{}, 1)}
		l.locks[quizID] = ql
	}
	ql.refs++
	l.mu.Unlock()

	select {
	case ql.held <- struct{}{}:
	case <-ctx.Done():
		l.release(quizID, ql)
		return nil, fmt.Errorf("wait for quiz %s lock: %w: %w", quizID, domain.ErrQuizBusy, ctx.Err())
	}

	var once sync.Once
	return func() {
		once.Do(func() {
			<-ql.held
			l.release(quizID, ql)
		})
	}, nil
}

func (l *Locker) release(quizID string, ql *quizLock) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ql.refs--
	if ql.refs == 0 {
		delete(l.locks, quizID)
	}
}

// size reports how many quizzes currently have holders or waiters.
func (l *Locker) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.locks)
}
