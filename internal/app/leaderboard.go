package app

import (
	"context"
	"sort"

	"golang.org/x/sync/errgroup"
	"live-quiz-service/internal/domain"
)

// DefaultLeaderboardLimit is used when the caller does not ask for a size.
const DefaultLeaderboardLimit = 10

const answerFetchConcurrency = 8

// LeaderboardAggregator ranks a quiz's participants by computed score.
type LeaderboardAggregator struct {
	answers AnswerStore
}

func NewLeaderboardAggregator(answers AnswerStore) *LeaderboardAggregator {
	return &LeaderboardAggregator{answers: answers}
}

// Rank scores every participant and returns the full ranking, highest score
// first. Ties keep first-answer order.
func (a *LeaderboardAggregator) Rank(ctx context.Context, quizID string, participants []domain.Participant) ([]domain.LeaderboardEntry, error) {
	if len(participants) == 0 {
		return nil, domain.ErrNoParticipants
	}

	entries := make([]domain.LeaderboardEntry, len(participants))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(answerFetchConcurrency)
	for i, p := range participants {
		i, p := i, p
		g.Go(func() error {
			events, err := a.answers.GetParticipantAnswers(gctx, quizID, p.Key)
			if err != nil {
				return err
			}
			// Display name is the contact key until identity resolution exists.
			entries[i] = domain.LeaderboardEntry{Name: p.Key, Points: CalculateScore(events)}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Points > entries[j].Points
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
	return entries, nil
}

// Top returns at most limit entries of the ranking; limit <= 0 means DefaultLeaderboardLimit.
func Top(entries []domain.LeaderboardEntry, limit int) []domain.LeaderboardEntry {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	if len(entries) > limit {
		return entries[:limit]
	}
	return entries
}
