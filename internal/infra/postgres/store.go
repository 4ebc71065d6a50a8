package postgres

import (
	"github.com/jackc/pgx/v4/pgxpool"
	"github.com/uptrace/bun"
)

// Store is the Postgres-backed persistence: bun for the quiz catalog and
// users, a pgx pool for the answer log.
type Store struct {
	*QuizStore
	*AnswerLog
}

func NewStore(db *bun.DB, pool *pgxpool.Pool) *Store {
	return &Store{
		QuizStore: NewQuizStore(db),
		AnswerLog: NewAnswerLog(pool),
	}
}
