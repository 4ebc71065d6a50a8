package postgres

import (
	"context"
	"time"

	"github.com/jackc/pgx/v4/pgxpool"
	"live-quiz-service/internal/domain"
)

// AnswerLog appends answer events to Postgres over a pgx pool, the hot path of a live quiz.
type AnswerLog struct {
	pool *pgxpool.Pool
}

func NewAnswerLog(pool *pgxpool.Pool) *AnswerLog {
	return &AnswerLog{pool: pool}
}

func (l *AnswerLog) RecordAnswer(ctx context.Context, answer domain.AnswerEvent) error {
	submittedAt := answer.SubmittedAt
	if submittedAt.IsZero() {
		submittedAt = time.Now()
	}
	_, err := l.pool.Exec(ctx,
		`INSERT INTO answers (quiz_id, participant_key, question_id, option_id, correct, time_taken, submitted_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		answer.QuizID, answer.ParticipantKey, answer.QuestionID, answer.OptionID,
		answer.Correct, answer.TimeTaken, submittedAt,
	)
	if err != nil {
		return domain.StoreFailure("insert answer", err)
	}
	return nil
}

func (l *AnswerLog) GetParticipantAnswers(ctx context.Context, quizID, participantKey string) ([]domain.AnswerEvent, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT question_id, option_id, correct, time_taken, submitted_at
		   FROM answers
		  WHERE quiz_id = $1 AND participant_key = $2
		  ORDER BY id`,
		quizID, participantKey,
	)
	if err != nil {
		return nil, domain.StoreFailure("select answers", err)
	}
	defer rows.Close()

	var out []domain.AnswerEvent
	for rows.Next() {
		a := domain.AnswerEvent{QuizID: quizID, ParticipantKey: participantKey}
		if err := rows.Scan(&a.QuestionID, &a.OptionID, &a.Correct, &a.TimeTaken, &a.SubmittedAt); err != nil {
			return nil, domain.StoreFailure("scan answer", err)
		}
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreFailure("select answers", err)
	}
	return out, nil
}

func (l *AnswerLog) ListParticipants(ctx context.Context, quizID string) ([]domain.Participant, error) {
	rows, err := l.pool.Query(ctx,
		`SELECT participant_key, MIN(submitted_at), COUNT(*)
		   FROM answers
		  WHERE quiz_id = $1
		  GROUP BY participant_key
		  ORDER BY MIN(id)`,
		quizID,
	)
	if err != nil {
		return nil, domain.StoreFailure("select participants", err)
	}
	defer rows.Close()

	out := make([]domain.Participant, 0)
	for rows.Next() {
		var p domain.Participant
		var answers int64
		if err := rows.Scan(&p.Key, &p.FirstSeenAt, &answers); err != nil {
			return nil, domain.StoreFailure("scan participant", err)
		}
		p.Answers = int(answers)
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.StoreFailure("select participants", err)
	}
	return out, nil
}
