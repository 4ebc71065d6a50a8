package memory

import (
	"context"
	"errors"
	"sync"

	"github.com/google/uuid"
	"live-quiz-service/internal/app"
	"live-quiz-service/internal/domain"
)

// Store is an in-memory implementation of app.Store.
// Reads return copies, so callers never observe a half-applied update.
type Store struct {
	mu            sync.RWMutex
	quizzes       map[string]domain.Quiz
	quizOrder     []string
	questions     map[string]domain.Question
	quizQuestions map[string][]string
	options       map[string][]domain.Option
	users         map[string]domain.User
	answers       map[string][]domain.AnswerEvent
}

func NewStore() *Store {
	return &Store{
		quizzes:       make(map[string]domain.Quiz),
		questions:     make(map[string]domain.Question),
		quizQuestions: make(map[string][]string),
		options:       make(map[string][]domain.Option),
		users:         make(map[string]domain.User),
		answers:       make(map[string][]domain.AnswerEvent),
	}
}

func (s *Store) NewQuizID() string     { return uuid.NewString() }
func (s *Store) NewQuestionID() string { return uuid.NewString() }

func (s *Store) CreateQuiz(_ context.Context, quiz domain.Quiz) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.putQuizLocked(quiz)
	return nil
}

func (s *Store) GetQuiz(_ context.Context, quizID string) (domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.Quiz{}, domain.ErrQuizNotFound
	}
	return quiz, nil
}

func (s *Store) UpdateQuiz(_ context.Context, quizID string, update domain.QuizUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	quiz, ok := s.quizzes[quizID]
	if !ok {
		return domain.ErrQuizNotFound
	}
	updated, err := applyUpdate(quiz, update)
	if err != nil {
		return err
	}
	s.quizzes[quizID] = updated
	return nil
}

func (s *Store) ListQuizzesByOwner(_ context.Context, ownerID string) ([]domain.Quiz, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Quiz, 0)
	for _, id := range s.quizOrder {
		if q := s.quizzes[id]; q.OwnerID == ownerID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (s *Store) CreateQuestion(_ context.Context, question domain.Question) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.quizzes[question.QuizID]; !ok {
		return domain.ErrQuizNotFound
	}
	s.putQuestionLocked(question)
	return nil
}

func (s *Store) GetQuestions(_ context.Context, quizID string) ([]domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.quizzes[quizID]; !ok {
		return nil, domain.ErrQuizNotFound
	}
	ids := s.quizQuestions[quizID]
	out := make([]domain.Question, len(ids))
	for i, id := range ids {
		out[i] = s.questions[id]
	}
	return out, nil
}

func (s *Store) GetQuestion(_ context.Context, questionID string) (domain.Question, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	q, ok := s.questions[questionID]
	if !ok {
		return domain.Question{}, domain.ErrQuestionNotFound
	}
	return q, nil
}

func (s *Store) CreateOption(_ context.Context, option domain.Option) (domain.Option, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.questions[option.QuestionID]; !ok {
		return domain.Option{}, domain.ErrQuestionNotFound
	}
	option.ID = uuid.NewString()
	s.options[option.QuestionID] = append(s.options[option.QuestionID], option)
	return option, nil
}

func (s *Store) GetOptions(_ context.Context, questionID string) ([]domain.Option, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.questions[questionID]; !ok {
		return nil, domain.ErrQuestionNotFound
	}
	return append([]domain.Option(nil), s.options[questionID]...), nil
}

// WithinTx stages every write made through tx and applies them under a single
// lock acquisition once fn succeeds. Nothing is applied if fn or a guarded
// update fails.
func (s *Store) WithinTx(ctx context.Context, fn func(ctx context.Context, tx app.QuizStore) error) error {
	tx := newTx(s)
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return tx.commit()
}

func (s *Store) GetUser(_ context.Context, userID string) (domain.User, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	u, ok := s.users[userID]
	if !ok {
		return domain.User{}, domain.ErrUserNotFound
	}
	return u, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.users[user.ID]; ok {
		return domain.ErrUserExists
	}
	s.users[user.ID] = user
	return nil
}

func (s *Store) RecordAnswer(_ context.Context, answer domain.AnswerEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.answers[answer.QuizID] = append(s.answers[answer.QuizID], answer)
	return nil
}

func (s *Store) GetParticipantAnswers(_ context.Context, quizID, participantKey string) ([]domain.AnswerEvent, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []domain.AnswerEvent
	for _, a := range s.answers[quizID] {
		if a.ParticipantKey == participantKey {
			out = append(out, a)
		}
	}
	return out, nil
}

func (s *Store) ListParticipants(_ context.Context, quizID string) ([]domain.Participant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	index := make(map[string]int)
	out := make([]domain.Participant, 0)
	for _, a := range s.answers[quizID] {
		if i, ok := index[a.ParticipantKey]; ok {
			out[i].Answers++
			continue
		}
		index[a.ParticipantKey] = len(out)
		out = append(out, domain.Participant{Key: a.ParticipantKey, FirstSeenAt: a.SubmittedAt, Answers: 1})
	}
	return out, nil
}

func (s *Store) putQuizLocked(quiz domain.Quiz) {
	if _, ok := s.quizzes[quiz.ID]; !ok {
		s.quizOrder = append(s.quizOrder, quiz.ID)
	}
	s.quizzes[quiz.ID] = quiz
}

func (s *Store) putQuestionLocked(question domain.Question) {
	if _, ok := s.questions[question.ID]; !ok {
		s.quizQuestions[question.QuizID] = append(s.quizQuestions[question.QuizID], question.ID)
	}
	s.questions[question.ID] = question
}

// applyUpdate checks the update's guards against quiz and returns the changed copy.
func applyUpdate(quiz domain.Quiz, update domain.QuizUpdate) (domain.Quiz, error) {
	if update.ExpectStatus != nil && quiz.Status != *update.ExpectStatus {
		return quiz, domain.ErrConcurrentUpdate
	}
	if update.ExpectCurrentQuestionID != nil && quiz.CurrentQuestionID != *update.ExpectCurrentQuestionID {
		return quiz, domain.ErrConcurrentUpdate
	}
	if update.Title != nil {
		quiz.Title = *update.Title
	}
	if update.Status != nil {
		quiz.Status = *update.Status
	}
	if update.CurrentQuestionID != nil {
		quiz.CurrentQuestionID = *update.CurrentQuestionID
	}
	if update.QuestionStartedAt != nil {
		quiz.QuestionStartedAt = nil
		if !update.QuestionStartedAt.IsZero() {
			started := *update.QuestionStartedAt
			quiz.QuestionStartedAt = &started
		}
	}
	return quiz, nil
}

type pendingUpdate struct {
	quizID string
	update domain.QuizUpdate
}

// tx is the staging area behind Store.WithinTx. Reads see the committed state
// overlaid with the transaction's own writes.
type tx struct {
	base      *Store
	quizzes   map[string]domain.Quiz
	quizOrder []string
	updates   []pendingUpdate
	questions []domain.Question
	options   []domain.Option
}

func newTx(base *Store) *tx {
	return &tx{base: base, quizzes: make(map[string]domain.Quiz)}
}

func (t *tx) NewQuizID() string     { return t.base.NewQuizID() }
func (t *tx) NewQuestionID() string { return t.base.NewQuestionID() }

func (t *tx) CreateQuiz(_ context.Context, quiz domain.Quiz) error {
	if _, ok := t.quizzes[quiz.ID]; !ok {
		t.quizOrder = append(t.quizOrder, quiz.ID)
	}
	t.quizzes[quiz.ID] = quiz
	return nil
}

func (t *tx) GetQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	if quiz, ok := t.quizzes[quizID]; ok {
		return quiz, nil
	}
	quiz, err := t.base.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, err
	}
	for _, p := range t.updates {
		if p.quizID == quizID {
			quiz, _ = applyUpdate(quiz, domain.QuizUpdate{
				Title:             p.update.Title,
				Status:            p.update.Status,
				CurrentQuestionID: p.update.CurrentQuestionID,
				QuestionStartedAt: p.update.QuestionStartedAt,
			})
		}
	}
	return quiz, nil
}

func (t *tx) UpdateQuiz(ctx context.Context, quizID string, update domain.QuizUpdate) error {
	if quiz, ok := t.quizzes[quizID]; ok {
		updated, err := applyUpdate(quiz, update)
		if err != nil {
			return err
		}
		t.quizzes[quizID] = updated
		return nil
	}
	current, err := t.GetQuiz(ctx, quizID)
	if err != nil {
		return err
	}
	if _, err := applyUpdate(current, update); err != nil {
		return err
	}
	t.updates = append(t.updates, pendingUpdate{quizID: quizID, update: update})
	return nil
}

func (t *tx) ListQuizzesByOwner(ctx context.Context, ownerID string) ([]domain.Quiz, error) {
	committed, err := t.base.ListQuizzesByOwner(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	out := make([]domain.Quiz, 0, len(committed))
	for _, q := range committed {
		if q, err = t.GetQuiz(ctx, q.ID); err != nil {
			return nil, err
		}
		out = append(out, q)
	}
	for _, id := range t.quizOrder {
		if q := t.quizzes[id]; q.OwnerID == ownerID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (t *tx) CreateQuestion(ctx context.Context, question domain.Question) error {
	if _, err := t.GetQuiz(ctx, question.QuizID); err != nil {
		return err
	}
	t.questions = append(t.questions, question)
	return nil
}

func (t *tx) GetQuestions(ctx context.Context, quizID string) ([]domain.Question, error) {
	var out []domain.Question
	if _, staged := t.quizzes[quizID]; !staged {
		committed, err := t.base.GetQuestions(ctx, quizID)
		if err != nil {
			return nil, err
		}
		out = committed
	}
	for _, q := range t.questions {
		if q.QuizID == quizID {
			out = append(out, q)
		}
	}
	return out, nil
}

func (t *tx) GetQuestion(ctx context.Context, questionID string) (domain.Question, error) {
	for _, q := range t.questions {
		if q.ID == questionID {
			return q, nil
		}
	}
	return t.base.GetQuestion(ctx, questionID)
}

func (t *tx) CreateOption(ctx context.Context, option domain.Option) (domain.Option, error) {
	if _, err := t.GetQuestion(ctx, option.QuestionID); err != nil {
		return domain.Option{}, err
	}
	option.ID = uuid.NewString()
	t.options = append(t.options, option)
	return option, nil
}

func (t *tx) GetOptions(ctx context.Context, questionID string) ([]domain.Option, error) {
	if _, err := t.GetQuestion(ctx, questionID); err != nil {
		return nil, err
	}
	out, err := t.base.GetOptions(ctx, questionID)
	if err != nil && !errors.Is(err, domain.ErrQuestionNotFound) {
		return nil, err
	}
	for _, o := range t.options {
		if o.QuestionID == questionID {
			out = append(out, o)
		}
	}
	return out, nil
}

func (t *tx) WithinTx(ctx context.Context, fn func(ctx context.Context, tx app.QuizStore) error) error {
	return fn(ctx, t)
}

func (t *tx) commit() error {
	s := t.base
	s.mu.Lock()
	defer s.mu.Unlock()

	// Check every guarded update before touching committed state.
	changed := make(map[string]domain.Quiz)
	for _, p := range t.updates {
		quiz, ok := changed[p.quizID]
		if !ok {
			if quiz, ok = s.quizzes[p.quizID]; !ok {
				return domain.ErrQuizNotFound
			}
		}
		updated, err := applyUpdate(quiz, p.update)
		if err != nil {
			return err
		}
		changed[p.quizID] = updated
	}

	for _, id := range t.quizOrder {
		s.putQuizLocked(t.quizzes[id])
	}
	for id, quiz := range changed {
		s.quizzes[id] = quiz
	}
	for _, q := range t.questions {
		s.putQuestionLocked(q)
	}
	for _, o := range t.options {
		s.options[o.QuestionID] = append(s.options[o.QuestionID], o)
	}
	return nil
}
