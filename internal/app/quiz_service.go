package app

import (
	"context"
	"io"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"live-quiz-service/internal/domain"
)

// SessionEngine is the facade the transport layer talks to. Every operation
// returns its payload plus an error whose domain.KindOf is the outcome;
// validation, not-found and invalid-state errors pass through unchanged, while
// store and unexpected failures are logged and replaced with a generic error.
type SessionEngine struct {
	store       Store
	locks       Locker
	lifecycle   *QuizLifecycle
	leaderboard *LeaderboardAggregator
	cache       LeaderboardCache
	topLimit    int
	log         logrus.FieldLogger
	now         func() time.Time
}

// Option configures a SessionEngine.
type Option func(*SessionEngine)

// WithLeaderboardCache caches ranked leaderboards between answer submissions.
func WithLeaderboardCache(cache LeaderboardCache) Option {
	return func(s *SessionEngine) {
		if cache != nil {
			s.cache = cache
		}
	}
}

// WithLeaderboardLimit sets the leaderboard size used when callers pass no limit.
func WithLeaderboardLimit(limit int) Option {
	return func(s *SessionEngine) {
		if limit > 0 {
			s.topLimit = limit
		}
	}
}

// WithLogger sets the logger used for store and internal failures.
func WithLogger(log logrus.FieldLogger) Option {
	return func(s *SessionEngine) {
		if log != nil {
			s.log = log
		}
	}
}

// WithClock is used by tests for deterministic timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *SessionEngine) {
		if now != nil {
			s.now = now
		}
	}
}

func NewSessionEngine(store Store, locks Locker, opts ...Option) *SessionEngine {
	discard := logrus.New()
	discard.SetOutput(io.Discard)

	s := &SessionEngine{
		store:    store,
		locks:    locks,
		cache:    noopLeaderboardCache{},
		topLimit: DefaultLeaderboardLimit,
		log:      discard,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.lifecycle = NewQuizLifecycle(store, locks, s.now)
	s.leaderboard = NewLeaderboardAggregator(store)
	return s
}

// CreateQuiz stores a new draft quiz with its questions and options.
func (s *SessionEngine) CreateQuiz(ctx context.Context, in domain.QuizInput) (domain.Quiz, error) {
	quiz, err := s.lifecycle.Create(ctx, in)
	if err != nil {
		return domain.Quiz{}, s.fail("create quiz", err)
	}
	s.log.WithFields(logrus.Fields{"quiz": quiz.ID, "owner": quiz.OwnerID}).Info("quiz created")
	return quiz, nil
}

// EditQuiz renames a quiz and appends new questions after the existing ones.
// Existing questions are never removed or rewritten.
func (s *SessionEngine) EditQuiz(ctx context.Context, quizID string, edit domain.QuizEdit) (domain.Quiz, error) {
	edit.Title = strings.TrimSpace(edit.Title)
	edit.Questions = normalizeQuestions(edit.Questions)
	if err := validateInput(edit, edit.Questions); err != nil {
		return domain.Quiz{}, err
	}

	var quiz domain.Quiz
	err := s.store.WithinTx(ctx, func(ctx context.Context, tx QuizStore) error {
		var err error
		if quiz, err = tx.GetQuiz(ctx, quizID); err != nil {
			return err
		}
		if edit.Title != "" {
			if err := tx.UpdateQuiz(ctx, quizID, domain.QuizUpdate{Title: &edit.Title}); err != nil {
				return err
			}
			quiz.Title = edit.Title
		}
		if len(edit.Questions) == 0 {
			return nil
		}
		existing, err := tx.GetQuestions(ctx, quizID)
		if err != nil {
			return err
		}
		return addQuestions(ctx, tx, quizID, len(existing), edit.Questions)
	})
	if err != nil {
		return domain.Quiz{}, s.fail("edit quiz", err)
	}
	return quiz, nil
}

// QuizDetails returns a quiz with every question and option, correctness flags included.
func (s *SessionEngine) QuizDetails(ctx context.Context, quizID string) (domain.QuizDetails, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.QuizDetails{}, s.fail("quiz details", err)
	}
	questions, err := s.store.GetQuestions(ctx, quizID)
	if err != nil {
		return domain.QuizDetails{}, s.fail("quiz details", err)
	}
	details := domain.QuizDetails{Quiz: quiz, Questions: make([]domain.QuestionDetails, len(questions))}
	for i, q := range questions {
		options, err := s.store.GetOptions(ctx, q.ID)
		if err != nil {
			return domain.QuizDetails{}, s.fail("quiz details", err)
		}
		details.Questions[i] = domain.QuestionDetails{Question: q, Options: options}
	}
	return details, nil
}

// ListQuizzes returns every quiz owned by an existing user.
func (s *SessionEngine) ListQuizzes(ctx context.Context, userID string) ([]domain.Quiz, error) {
	if _, err := s.store.GetUser(ctx, userID); err != nil {
		return nil, s.fail("list quizzes", err)
	}
	quizzes, err := s.store.ListQuizzesByOwner(ctx, userID)
	if err != nil {
		return nil, s.fail("list quizzes", err)
	}
	return quizzes, nil
}

// ActivateQuiz starts a draft quiz at its first question.
func (s *SessionEngine) ActivateQuiz(ctx context.Context, quizID string) (domain.Quiz, error) {
	quiz, err := s.lifecycle.Activate(ctx, quizID)
	if err != nil {
		return domain.Quiz{}, s.fail("activate quiz", err)
	}
	s.log.WithFields(logrus.Fields{"quiz": quizID, "question": quiz.CurrentQuestionID}).Info("quiz activated")
	return quiz, nil
}

// NextQuestion advances the quiz; see QuizLifecycle.Advance for expectedQuestionID.
func (s *SessionEngine) NextQuestion(ctx context.Context, quizID, expectedQuestionID string) (domain.AdvanceResult, error) {
	res, err := s.lifecycle.Advance(ctx, quizID, expectedQuestionID)
	if err != nil {
		return domain.AdvanceResult{}, s.fail("next question", err)
	}
	s.log.WithFields(logrus.Fields{"quiz": quizID, "status": res.Status, "question": res.CurrentQuestionID}).Info("quiz advanced")
	return res, nil
}

// CurrentQuestion returns the live question without correctness flags.
func (s *SessionEngine) CurrentQuestion(ctx context.Context, quizID string) (domain.QuestionView, error) {
	view, err := s.lifecycle.CurrentQuestion(ctx, quizID)
	if err != nil {
		return domain.QuestionView{}, s.fail("current question", err)
	}
	return view, nil
}

// SubmitAnswer records a participant's answer to the current question and
// returns the participant's new total.
func (s *SessionEngine) SubmitAnswer(ctx context.Context, quizID, participantKey, questionID, optionID string) (domain.AnswerResult, error) {
	participantKey = strings.TrimSpace(participantKey)
	if participantKey == "" || questionID == "" || optionID == "" {
		return domain.AnswerResult{}, domain.Validationf("participant, questionId and optionId are required")
	}

	answer, err := s.recordAnswer(ctx, quizID, participantKey, questionID, optionID)
	if err != nil {
		return domain.AnswerResult{}, s.fail("submit answer", err)
	}
	if err := s.cache.Invalidate(ctx, quizID); err != nil {
		s.log.WithError(err).WithField("quiz", quizID).Warn("leaderboard cache invalidation failed")
	}

	events, err := s.store.GetParticipantAnswers(ctx, quizID, participantKey)
	if err != nil {
		return domain.AnswerResult{}, s.fail("submit answer", err)
	}
	return domain.AnswerResult{
		QuestionID: questionID,
		Correct:    answer.Correct,
		TimeTaken:  answer.TimeTaken,
		TotalScore: CalculateScore(events),
	}, nil
}

// recordAnswer checks and stores the answer inside the quiz's critical section,
// so an advance cannot move the pointer between the check and the write.
func (s *SessionEngine) recordAnswer(ctx context.Context, quizID, participantKey, questionID, optionID string) (domain.AnswerEvent, error) {
	unlock, err := s.locks.Lock(ctx, quizID)
	if err != nil {
		return domain.AnswerEvent{}, err
	}
	defer unlock()

	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.AnswerEvent{}, err
	}
	if quiz.Status != domain.StatusActive || quiz.QuestionStartedAt == nil {
		return domain.AnswerEvent{}, domain.ErrQuizNotActive
	}
	if quiz.CurrentQuestionID != questionID {
		return domain.AnswerEvent{}, domain.ErrQuestionNotCurrent
	}

	options, err := s.store.GetOptions(ctx, questionID)
	if err != nil {
		return domain.AnswerEvent{}, err
	}
	var selected *domain.Option
	for i := range options {
		if options[i].ID == optionID {
			selected = &options[i]
			break
		}
	}
	if selected == nil {
		return domain.AnswerEvent{}, domain.ErrOptionNotFound
	}

	now := s.now()
	taken := now.Sub(*quiz.QuestionStartedAt).Seconds()
	if taken < 0 {
		taken = 0
	}
	answer := domain.AnswerEvent{
		QuizID:         quizID,
		ParticipantKey: participantKey,
		QuestionID:     questionID,
		OptionID:       optionID,
		Correct:        selected.Correct,
		TimeTaken:      taken,
		SubmittedAt:    now,
	}
	if err := s.store.RecordAnswer(ctx, answer); err != nil {
		return domain.AnswerEvent{}, err
	}
	return answer, nil
}

// Statistics returns quiz metadata with the full participant list.
func (s *SessionEngine) Statistics(ctx context.Context, quizID string) (domain.Statistics, error) {
	quiz, err := s.store.GetQuiz(ctx, quizID)
	if err != nil {
		return domain.Statistics{}, s.fail("statistics", err)
	}
	participants, err := s.store.ListParticipants(ctx, quizID)
	if err != nil {
		return domain.Statistics{}, s.fail("statistics", err)
	}
	return domain.Statistics{
		QuizID:            quiz.ID,
		Title:             quiz.Title,
		Status:            quiz.Status,
		ParticipantsCount: len(participants),
		Participants:      participants,
	}, nil
}

// Participants lists everyone who answered at least once.
func (s *SessionEngine) Participants(ctx context.Context, quizID string) ([]domain.Participant, error) {
	if _, err := s.store.GetQuiz(ctx, quizID); err != nil {
		return nil, s.fail("participants", err)
	}
	participants, err := s.store.ListParticipants(ctx, quizID)
	if err != nil {
		return nil, s.fail("participants", err)
	}
	return participants, nil
}

// TopParticipants returns the leaderboard capped at limit (the engine's default when <= 0).
// It fails with domain.ErrNoParticipants when nobody has answered yet.
func (s *SessionEngine) TopParticipants(ctx context.Context, quizID string, limit int) ([]domain.LeaderboardEntry, error) {
	if limit <= 0 {
		limit = s.topLimit
	}
	cached, ok, err := s.cache.Get(ctx, quizID, limit)
	if err != nil {
		s.log.WithError(err).WithField("quiz", quizID).Warn("leaderboard cache read failed")
	} else if ok {
		return cached, nil
	}

	// read before ranking so an answer recorded meanwhile makes the Put a no-op
	gen, genErr := s.cache.Generation(ctx, quizID)
	if genErr != nil {
		s.log.WithError(genErr).WithField("quiz", quizID).Warn("leaderboard cache generation read failed")
	}

	participants, err := s.store.ListParticipants(ctx, quizID)
	if err != nil {
		return nil, s.fail("top participants", err)
	}
	entries, err := s.leaderboard.Rank(ctx, quizID, participants)
	if err != nil {
		return nil, s.fail("top participants", err)
	}
	if genErr == nil {
		if err := s.cache.Put(ctx, quizID, gen, entries); err != nil {
			s.log.WithError(err).WithField("quiz", quizID).Warn("leaderboard cache write failed")
		}
	}
	return Top(entries, limit), nil
}

// GetUser looks up a user by id.
func (s *SessionEngine) GetUser(ctx context.Context, userID string) (domain.User, error) {
	user, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return domain.User{}, s.fail("get user", err)
	}
	return user, nil
}

// RegisterUser creates a user; the display name defaults to the id.
func (s *SessionEngine) RegisterUser(ctx context.Context, userID, displayName string) (domain.User, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return domain.User{}, domain.Validationf("id is required")
	}
	displayName = strings.TrimSpace(displayName)
	if displayName == "" {
		displayName = userID
	}
	user := domain.User{ID: userID, DisplayName: displayName, CreatedAt: s.now()}
	if err := s.store.CreateUser(ctx, user); err != nil {
		return domain.User{}, s.fail("register user", err)
	}
	return user, nil
}

func (s *SessionEngine) fail(op string, err error) error {
	switch domain.KindOf(err) {
	case domain.KindOK:
		return nil
	case domain.KindValidation, domain.KindNotFound, domain.KindInvalidState:
		return err
	case domain.KindStore:
		s.log.WithError(err).WithField("op", op).Error("store failure")
		return domain.ErrStore
	default:
		s.log.WithError(err).WithField("op", op).Error("unexpected failure")
		return domain.ErrInternal
	}
}
