package domain

import (
	"errors"
	"fmt"
)

// Kind is the categorical outcome of an engine operation.
type Kind int

const (
	KindOK Kind = iota
	KindValidation
	KindNotFound
	KindInvalidState
	KindStore
	KindInternal
)

func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindValidation:
		return "invalid_input"
	case KindNotFound:
		return "not_found"
	case KindInvalidState:
		return "invalid_state"
	case KindStore:
		return "store_error"
	default:
		return "internal_error"
	}
}

var (
	// ErrValidation marks missing or malformed caller input.
	ErrValidation = errors.New("invalid input")
	// ErrNotFound marks a referenced quiz, question, user or participant that does not exist.
	ErrNotFound = errors.New("not found")
	// ErrInvalidState marks an operation that is not valid for the quiz's current lifecycle state.
	ErrInvalidState = errors.New("invalid state")
	// ErrStore marks a persistence failure; callers may retry.
	ErrStore = errors.New("storage failure")
	// ErrInternal is the generic failure reported for anything unexpected.
	ErrInternal = errors.New("internal error")
)

var (
	// ErrQuizNotFound is returned when a quiz id does not resolve.
	ErrQuizNotFound = newError(ErrNotFound, "quiz not found")
	// ErrQuestionNotFound indicates a question id is unknown or not part of the quiz.
	ErrQuestionNotFound = newError(ErrNotFound, "question not found")
	// ErrOptionNotFound indicates a submitted option does not belong to the question.
	ErrOptionNotFound = newError(ErrNotFound, "option not found")
	// ErrUserNotFound is returned when a user id does not resolve.
	ErrUserNotFound = newError(ErrNotFound, "user not found")
	// ErrUserExists is returned when registering an id that is already taken.
	ErrUserExists = newError(ErrValidation, "user already exists")
	// ErrNoParticipants means nobody has answered yet, so there is no leaderboard to show.
	ErrNoParticipants = newError(ErrNotFound, "no participants for this quiz")
	// ErrNoQuestions is returned when activating a quiz without questions.
	ErrNoQuestions = newError(ErrInvalidState, "quiz must have at least one question")
	// ErrQuizNotDraft is returned when activating a quiz that is already active or completed.
	ErrQuizNotDraft = newError(ErrInvalidState, "quiz is not in draft status")
	// ErrNoCurrentQuestion is returned when advancing a quiz that has no current question.
	ErrNoCurrentQuestion = newError(ErrInvalidState, "no active question for this quiz")
	// ErrStaleAdvance is returned when the caller's expected current question was already left behind.
	ErrStaleAdvance = newError(ErrInvalidState, "quiz already moved past the expected question")
	// ErrQuestionNotCurrent is returned for answers to a question that is not being presented.
	ErrQuestionNotCurrent = newError(ErrInvalidState, "question is not the current question")
	// ErrQuizNotActive is returned for answers submitted while the quiz is not running.
	ErrQuizNotActive = newError(ErrInvalidState, "quiz is not active")
	// ErrQuizBusy is returned when the quiz lock could not be taken, either because
	// another request held it past the wait or because the caller gave up waiting.
	ErrQuizBusy = newError(ErrInvalidState, "quiz is busy with another request")
	// ErrConcurrentUpdate is returned by stores when a guarded quiz update lost a race.
	ErrConcurrentUpdate = newError(ErrInvalidState, "quiz was modified concurrently")
)

type kindError struct {
	kind error
	msg  string
}

func newError(kind error, msg string) error {
	return &kindError{kind: kind, msg: msg}
}

func (e *kindError) Error() string { return e.msg }

func (e *kindError) Unwrap() error { return e.kind }

// Validationf builds a validation error with a caller-facing message.
func Validationf(format string, args ...any) error {
	return newError(ErrValidation, fmt.Sprintf(format, args...))
}

type storeError struct {
	op  string
	err error
}

// StoreFailure wraps a persistence error so it classifies as KindStore while keeping the cause.
func StoreFailure(op string, err error) error {
	if err == nil {
		return nil
	}
	return &storeError{op: op, err: err}
}

func (e *storeError) Error() string { return e.op + ": " + e.err.Error() }

func (e *storeError) Unwrap() []error { return []error{ErrStore, e.err} }

// KindOf classifies err. Domain kinds found earlier in the list win, so a store
// error that wraps ErrQuizNotFound still reports not-found.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindOK
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrNotFound):
		return KindNotFound
	case errors.Is(err, ErrInvalidState):
		return KindInvalidState
	case errors.Is(err, ErrStore):
		return KindStore
	default:
		return KindInternal
	}
}
