package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"live-quiz-service/internal/domain"
)

const defaultLockRetry = 25 * time.Millisecond

// releaseScript deletes the lock only while it still holds the caller's token,
// so a holder whose lease expired cannot release somebody else's lock.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

// Locker is a per-quiz mutual exclusion lease shared by every instance that
// talks to the same Redis.
//   - The lease is a SET NX PX key holding a random token.
//   - Lock retries until wait elapses or ctx ends and then reports domain.ErrQuizBusy.
//   - The lease expires after ttl even if the holder never unlocks.
type Locker struct {
	client *redis.Client
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

func NewLocker(client *redis.Client, ttl, wait time.Duration) *Locker {
	return &Locker{
		client: client,
		ttl:    ttl,
		wait:   wait,
		retry:  defaultLockRetry,
	}
}

func (l *Locker) Lock(ctx context.Context, quizID string) (func(), error) {
	key := l.key(quizID)
	token := uuid.NewString()
	deadline := time.Now().Add(l.wait)

	for {
		ok, err := l.client.SetNX(ctx, key, token, l.ttl).Result()
		if err != nil {
			if ctx.Err() != nil {
				return nil, fmt.Errorf("%w: %w", domain.ErrQuizBusy, ctx.Err())
			}
			return nil, domain.StoreFailure("acquire quiz lock", err)
		}
		if ok {
			var once sync.Once
			return func() {
				once.Do(func() {
					// released with a fresh context so a cancelled request still frees the lease
					_ = releaseScript.Run(context.Background(), l.client, []string{key}, token).Err()
				})
			}, nil
		}
		if !time.Now().Before(deadline) {
			return nil, domain.ErrQuizBusy
		}

		timer := time.NewTimer(l.retry)
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil, fmt.Errorf("%w: %w", domain.ErrQuizBusy, ctx.Err())
		case <-timer.C:
		}
	}
}

func (l *Locker) key(quizID string) string {
	return "quiz:" + quizID + ":lock"
}
