package redis

import (
	"context"
	"errors"
	"math"
	"time"

	"github.com/redis/go-redis/v9"
	"live-quiz-service/internal/domain"
)

// rankSlots is the score space reserved per point so that ties keep the
// order they were ranked in; boards larger than this are not cached.
const rankSlots = 1_000_000

// generationTTL bounds the life of an idle quiz's generation counter. It only
// has to outlast a single leaderboard computation.
const generationTTL = 24 * time.Hour

// LeaderboardCache keeps the last ranked leaderboard of a quiz in a sorted set:
//
//	ZADD quiz:{quizID}:leaderboard {points*rankSlots + rankSlots-1-index} {name}
//
// The set is dropped whenever an answer is recorded and otherwise expires after ttl.
// Each drop also increments quiz:{quizID}:leaderboard:gen; Put runs under WATCH
// on that counter and writes nothing once it has moved past the caller's gen.
type LeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
}

func NewLeaderboardCache(client *redis.Client, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{client: client, ttl: ttl}
}

func (c *LeaderboardCache) Get(ctx context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, bool, error) {
	key := c.key(quizID)
	n, err := c.client.Exists(ctx, key).Result()
	if err != nil {
		return nil, false, err
	}
	if n == 0 {
		return nil, false, nil
	}

	stop := int64(-1)
	if limit > 0 {
		stop = int64(limit) - 1
	}
	members, err := c.client.ZRevRangeWithScores(ctx, key, 0, stop).Result()
	if err != nil {
		return nil, false, err
	}
	if len(members) == 0 {
		// expired between EXISTS and ZREVRANGE
		return nil, false, nil
	}

	entries := make([]domain.LeaderboardEntry, len(members))
	for i, m := range members {
		name, _ := m.Member.(string)
		entries[i] = domain.LeaderboardEntry{
			Rank:   i + 1,
			Name:   name,
			Points: int(math.Floor(m.Score / rankSlots)),
		}
	}
	return entries, true, nil
}

func (c *LeaderboardCache) Generation(ctx context.Context, quizID string) (int64, error) {
	gen, err := c.client.Get(ctx, c.genKey(quizID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	return gen, err
}

func (c *LeaderboardCache) Put(ctx context.Context, quizID string, gen int64, entries []domain.LeaderboardEntry) error {
	if len(entries) == 0 || len(entries) > rankSlots {
		return nil
	}
	members := make([]redis.Z, len(entries))
	for i, e := range entries {
		members[i] = redis.Z{
			Score:  float64(e.Points)*rankSlots + float64(rankSlots-1-i),
			Member: e.Name,
		}
	}

	key, genKey := c.key(quizID), c.genKey(quizID)
	err := c.client.Watch(ctx, func(tx *redis.Tx) error {
		current, err := tx.Get(ctx, genKey).Int64()
		if err != nil && !errors.Is(err, redis.Nil) {
			return err
		}
		if current != gen {
			return nil
		}
		_, err = tx.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
			pipe.Del(ctx, key)
			pipe.ZAdd(ctx, key, members...)
			if c.ttl > 0 {
				pipe.Expire(ctx, key, c.ttl)
			}
			return nil
		})
		return err
	}, genKey)
	if errors.Is(err, redis.TxFailedErr) {
		// invalidated between the check and EXEC
		return nil
	}
	return err
}

func (c *LeaderboardCache) Invalidate(ctx context.Context, quizID string) error {
	genKey := c.genKey(quizID)
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Incr(ctx, genKey)
		pipe.Expire(ctx, genKey, generationTTL)
		pipe.Del(ctx, c.key(quizID))
		return nil
	})
	return err
}

func (c *LeaderboardCache) key(quizID string) string {
	return "quiz:" + quizID + ":leaderboard"
}

func (c *LeaderboardCache) genKey(quizID string) string {
	return c.key(quizID) + ":gen"
}
