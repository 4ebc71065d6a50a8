package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"github.com/uptrace/bun/driver/pgdriver"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

const (
	pgUniqueViolation     = "23505"
	pgForeignKeyViolation = "23503"
)

type quizRow struct {
	bun.BaseModel `bun:"table:quizzes"`

	ID                string    `bun:"id,pk"`
	Title             string    `bun:"title,notnull"`
	OwnerID           string    `bun:"owner_id,notnull"`
	Status            string    `bun:"status,notnull"`
	CurrentQuestionID string    `bun:"current_question_id,nullzero"`
	QuestionStartedAt time.Time `bun:"question_started_at,nullzero"`
	CreatedAt         time.Time `bun:"created_at,notnull"`
}

type questionRow struct {
	bun.BaseModel `bun:"table:questions"`

	ID       string `bun:"id,pk"`
	QuizID   string `bun:"quiz_id,notnull"`
	Text     string `bun:"text,notnull"`
	Position int    `bun:"position,notnull"`
}

type optionRow struct {
	bun.BaseModel `bun:"table:options"`

	ID         string `bun:"id,pk"`
	QuestionID string `bun:"question_id,notnull"`
	Text       string `bun:"text,notnull"`
	Correct    bool   `bun:"correct,notnull"`
}

type userRow struct {
	bun.BaseModel `bun:"table:users"`

	ID          string    `bun:"id,pk"`
	DisplayName string    `bun:"display_name,notnull"`
	CreatedAt   time.Time `bun:"created_at,notnull"`
}

// QuizStore keeps quizzes, questions, options and users in Postgres through bun.
// conn is either the shared *bun.DB or the bun.Tx of an enclosing WithinTx.
type QuizStore struct {
	db   *bun.DB
	conn bun.IDB
	inTx bool
}

func NewQuizStore(db *bun.DB) *QuizStore {
	return &QuizStore{db: db, conn: db}
}

func (s *QuizStore) NewQuizID() string     { return uuid.NewString() }
func (s *QuizStore) NewQuestionID() string { return uuid.NewString() }

func (s *QuizStore) CreateQuiz(ctx context.Context, quiz domain.Quiz) error {
	row := toQuizRow(quiz)
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	if _, err := s.conn.NewInsert().Model(&row).Exec(ctx); err != nil {
		return domain.StoreFailure("insert quiz", err)
	}
	return nil
}

func (s *QuizStore) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	var row quizRow
	err := s.conn.NewSelect().Model(&row).Where("id = ?", quizID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	if err != nil {
		return domain.Quiz{}, domain.StoreFailure("select quiz", err)
	}
	return row.toDomain(), nil
}

// UpdateQuiz applies the update as one UPDATE statement; the Expect* guards
// become WHERE conditions so a concurrent writer makes it affect no rows.
func (s *QuizStore) UpdateQuiz(ctx context.Context, quizID string, update domain.QuizUpdate) error {
	q := s.conn.NewUpdate().Model((*quizRow)(nil)).Where("id = ?", quizID)
	sets := 0
	if update.Title != nil {
		q, sets = q.Set("title = ?", *update.Title), sets+1
	}
	if update.Status != nil {
		q, sets = q.Set("status = ?", string(*update.Status)), sets+1
	}
	if update.CurrentQuestionID != nil {
		q, sets = q.Set("current_question_id = NULLIF(?, '')", *update.CurrentQuestionID), sets+1
	}
	if update.QuestionStartedAt != nil {
		if update.QuestionStartedAt.IsZero() {
			q = q.Set("question_started_at = NULL")
		} else {
			q = q.Set("question_started_at = ?", *update.QuestionStartedAt)
		}
		sets++
	}
	if sets == 0 {
		_, err := s.GetQuiz(ctx, quizID)
		return err
	}
	if update.ExpectStatus != nil {
		q = q.Where("status = ?", string(*update.ExpectStatus))
	}
	if update.ExpectCurrentQuestionID != nil {
		q = q.Where("COALESCE(current_question_id, '') = ?", *update.ExpectCurrentQuestionID)
	}

	res, err := q.Exec(ctx)
	if err != nil {
		return domain.StoreFailure("update quiz", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return domain.StoreFailure("update quiz", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := s.GetQuiz(ctx, quizID); err != nil {
		return err
	}
	return domain.ErrConcurrentUpdate
}

func (s *QuizStore) ListQuizzesByOwner(ctx context.Context, ownerID string) ([]domain.Quiz, error) {
	var rows []quizRow
	err := s.conn.NewSelect().Model(&rows).
		Where("owner_id = ?", ownerID).
		OrderExpr("created_at ASC, id ASC").
		Scan(ctx)
	if err != nil {
		return nil, domain.StoreFailure("select quizzes", err)
	}
	out := make([]domain.Quiz, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (s *QuizStore) CreateQuestion(ctx context.Context, question domain.Question) error {
	row := questionRow{
		ID:       question.ID,
		QuizID:   question.QuizID,
		Text:     question.Text,
		Position: question.Position,
	}
	if _, err := s.conn.NewInsert().Model(&row).Exec(ctx); err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return domain.ErrQuizNotFound
		}
		return domain.StoreFailure("insert question", err)
	}
	return nil
}

func (s *QuizStore) GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	exists, err := s.conn.NewSelect().Model((*quizRow)(nil)).Where("id = ?", quizID).Exists(ctx)
	if err != nil {
		return nil, domain.StoreFailure("select quiz", err)
	}
	if !exists {
		return nil, domain.ErrQuizNotFound
	}

	var rows []questionRow
	err = s.conn.NewSelect().Model(&rows).
		Where("quiz_id = ?", quizID).
		OrderExpr("position ASC, seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, domain.StoreFailure("select questions", err)
	}
	out := make([]domain.Question, len(rows))
	for i, row := range rows {
		out[i] = row.toDomain()
	}
	return out, nil
}

func (s *QuizStore) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	var row questionRow
	err := s.conn.NewSelect().Model(&row).Where("id = ?", questionID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	if err != nil {
		return domain.Question{}, domain.StoreFailure("select question", err)
	}
	return row.toDomain(), nil
}

func (s *QuizStore) CreateOption(ctx context.Context, option domain.Option) (domain.Option, error) {
	option.ID = uuid.NewString()
	row := optionRow{
		ID:         option.ID,
		QuestionID: option.QuestionID,
		Text:       option.Text,
		Correct:    option.Correct,
	}
	if _, err := s.conn.NewInsert().Model(&row).Exec(ctx); err != nil {
		if pgCode(err) == pgForeignKeyViolation {
			return domain.Option{}, domain.ErrQuestionNotFound
		}
		return domain.Option{}, domain.StoreFailure("insert option", err)
	}
	return option, nil
}

func (s *QuizStore) GetOptions(ctx context.Context, questionID string) ([]domain.Option, error) {
	exists, err := s.conn.NewSelect().Model((*questionRow)(nil)).Where("id = ?", questionID).Exists(ctx)
	if err != nil {
		return nil, domain.StoreFailure("select question", err)
	}
	if !exists {
		return nil, domain.ErrQuestionNotFound
	}

	var rows []optionRow
	err = s.conn.NewSelect().Model(&rows).
		Where("question_id = ?", questionID).
		OrderExpr("seq ASC").
		Scan(ctx)
	if err != nil {
		return nil, domain.StoreFailure("select options", err)
	}
	out := make([]domain.Option, len(rows))
	for i, row := range rows {
		out[i] = domain.Option{ID: row.ID, QuestionID: row.QuestionID, Text: row.Text, Correct: row.Correct}
	}
	return out, nil
}

// WithinTx runs fn in a database transaction; nested calls join the outer one.
func (s *QuizStore) WithinTx(ctx context.Context, fn func(ctx context.Context, tx app.QuizStore) error) error {
	if s.inTx {
		return fn(ctx, s)
	}
	var fnErr error
	err := s.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		fnErr = fn(ctx, &QuizStore{db: s.db, conn: tx, inTx: true})
		return fnErr
	})
	if err != nil && fnErr == nil {
		return domain.StoreFailure("quiz transaction", err)
	}
	return err
}

func (s *QuizStore) GetUser(ctx context.Context, userID string) (domain.User, error) {
	var row userRow
	err := s.conn.NewSelect().Model(&row).Where("id = ?", userID).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.User{}, domain.ErrUserNotFound
	}
	if err != nil {
		return domain.User{}, domain.StoreFailure("select user", err)
	}
	return domain.User{ID: row.ID, DisplayName: row.DisplayName, CreatedAt: row.CreatedAt}, nil
}

func (s *QuizStore) CreateUser(ctx context.Context, user domain.User) error {
	row := userRow{ID: user.ID, DisplayName: user.DisplayName, CreatedAt: user.CreatedAt}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}
	if _, err := s.conn.NewInsert().Model(&row).Exec(ctx); err != nil {
		if pgCode(err) == pgUniqueViolation {
			return domain.ErrUserExists
		}
		return domain.StoreFailure("insert user", err)
	}
	return nil
}

func toQuizRow(q domain.Quiz) quizRow {
	row := quizRow{
		ID:                q.ID,
		Title:             q.Title,
		OwnerID:           q.OwnerID,
		Status:            string(q.Status),
		CurrentQuestionID: q.CurrentQuestionID,
		CreatedAt:         q.CreatedAt,
	}
	if q.QuestionStartedAt != nil {
		row.QuestionStartedAt = *q.QuestionStartedAt
	}
	return row
}

func (r quizRow) toDomain() domain.Quiz {
	quiz := domain.Quiz{
		ID:                r.ID,
		Title:             r.Title,
		OwnerID:           r.OwnerID,
		Status:            domain.Status(r.Status),
		CurrentQuestionID: r.CurrentQuestionID,
		CreatedAt:         r.CreatedAt,
	}
	if !r.QuestionStartedAt.IsZero() {
		started := r.QuestionStartedAt
		quiz.QuestionStartedAt = &started
	}
	return quiz
}

func (r questionRow) toDomain() domain.Question {
	return domain.Question{ID: r.ID, QuizID: r.QuizID, Text: r.Text, Position: r.Position}
}

func pgCode(err error) string {
	var pgErr pgdriver.Error
	if errors.As(err, &pgErr) {
		return pgErr.Field('C')
	}
	return ""
}
