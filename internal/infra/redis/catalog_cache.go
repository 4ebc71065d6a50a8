package redis

import (
	"context"
	"encoding/json"
	"math/rand"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// CatalogCache wraps a Store and caches question and option reads in Redis.
// Questions and options never change once written (edits only append), so
// cached entries are only bounded by ttl and never invalidated.
//
// Keys:
//
//	quiz:question:{questionID}          JSON domain.Question
//	quiz:question:{questionID}:options  JSON []domain.Option
type CatalogCache struct {
	app.Store
	client *redis.Client
	ttl    time.Duration
	sf     singleflight.Group
}

func NewCatalogCache(store app.Store, client *redis.Client, ttl time.Duration) *CatalogCache {
	return &CatalogCache{
		Store:  store,
		client: client,
		ttl:    ttl,
	}
}

func (c *CatalogCache) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	return cached(ctx, c, c.questionKey(questionID), func() (domain.Question, error) {
		return c.Store.GetQuestion(ctx, questionID)
	})
}

func (c *CatalogCache) GetOptions(ctx context.Context, questionID string) ([]domain.Option, error) {
	return cached(ctx, c, c.optionsKey(questionID), func() ([]domain.Option, error) {
		return c.Store.GetOptions(ctx, questionID)
	})
}

// cached serves key from Redis, or loads it once per key across concurrent
// callers and fills the cache. Load errors are never cached.
func cached[T any](ctx context.Context, c *CatalogCache, key string, load func() (T, error)) (T, error) {
	if v, ok := readJSON[T](ctx, c.client, key); ok {
		return v, nil
	}

	result, err, _ := c.sf.Do(key, func() (interface{}, error) {
		// Re-check cache in case another goroutine filled it.
		if v, ok := readJSON[T](ctx, c.client, key); ok {
			return v, nil
		}
		v, err := load()
		if err != nil {
			return nil, err
		}
		if raw, err := json.Marshal(v); err == nil {
			_ = c.client.Set(ctx, key, raw, c.ttlWithJitter()).Err()
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	return result.(T), nil
}

func readJSON[T any](ctx context.Context, client *redis.Client, key string) (T, bool) {
	var v T
	raw, err := client.Get(ctx, key).Bytes()
	if err != nil {
		return v, false
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, false
	}
	return v, true
}

func (c *CatalogCache) questionKey(questionID string) string {
	return "quiz:question:" + questionID
}

func (c *CatalogCache) optionsKey(questionID string) string {
	return "quiz:question:" + questionID + ":options"
}

func (c *CatalogCache) ttlWithJitter() time.Duration {
	if c.ttl <= 0 {
		return 0
	}
	jitterMax := int64(c.ttl) / 10
	return c.ttl + time.Duration(rand.Int63n(jitterMax+1))
}
