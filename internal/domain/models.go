package domain

import "time"

// Status is the lifecycle state of a quiz.
type Status string

const (
	StatusDraft     Status = "draft"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

// Quiz is a named, owned collection of ordered questions.
// CurrentQuestionID is non-empty and QuestionStartedAt non-nil iff Status is StatusActive.
type Quiz struct {
	ID                string     `json:"id"`
	Title             string     `json:"title"`
	OwnerID           string     `json:"ownerId"`
	Status            Status     `json:"status"`
	CurrentQuestionID string     `json:"currentQuestionId,omitempty"`
	QuestionStartedAt *time.Time `json:"questionStartedAt,omitempty"`
	CreatedAt         time.Time  `json:"createdAt"`
}

// QuizUpdate is a partial change to a quiz. Nil fields are left untouched; an
// empty CurrentQuestionID or zero QuestionStartedAt clears the column.
// The Expect* fields turn the update into a compare-and-set: the store fails
// with ErrConcurrentUpdate when the stored quiz does not match them.
type QuizUpdate struct {
	Title             *string
	Status            *Status
	CurrentQuestionID *string
	QuestionStartedAt *time.Time

	ExpectStatus            *Status
	ExpectCurrentQuestionID *string
}

// Question belongs to exactly one quiz; Position is its creation ordinal within the quiz.
type Question struct {
	ID       string `json:"id"`
	QuizID   string `json:"quizId"`
	Text     string `json:"text"`
	Position int    `json:"position"`
}

// Option is a possible answer for a question.
type Option struct {
	ID         string `json:"id"`
	QuestionID string `json:"questionId"`
	Text       string `json:"text"`
	Correct    bool   `json:"correct"`
}

// OptionView is the participant-facing option, without the correctness flag.
type OptionView struct {
	ID   string `json:"id"`
	Text string `json:"text"`
}

// QuestionView is the live question presented to participants.
type QuestionView struct {
	ID        string       `json:"id"`
	QuizID    string       `json:"quizId"`
	Text      string       `json:"text"`
	Position  int          `json:"position"`
	Options   []OptionView `json:"options"`
	StartedAt time.Time    `json:"startedAt"`
}

// QuestionInput is the caller-supplied definition of a question.
// CorrectOption is the 1-based index into Options.
type QuestionInput struct {
	Text          string   `json:"question" validate:"required"`
	Options       []string `json:"answers" validate:"required,min=1,dive,required"`
	CorrectOption int      `json:"correctAnswer" validate:"required,min=1"`
}

// QuizInput is the caller-supplied definition of a new quiz.
type QuizInput struct {
	Title     string          `json:"title" validate:"required"`
	OwnerID   string          `json:"userId" validate:"required"`
	Questions []QuestionInput `json:"questions" validate:"required,min=1,dive"`
}

// QuizEdit renames a quiz and appends questions to it.
type QuizEdit struct {
	Title     string          `json:"name"`
	Questions []QuestionInput `json:"questions" validate:"dive"`
}

// User is an account that can own quizzes.
type User struct {
	ID          string    `json:"id"`
	DisplayName string    `json:"displayName"`
	CreatedAt   time.Time `json:"createdAt"`
}

// Participant is a contact key that has answered at least one question of a quiz.
type Participant struct {
	Key         string    `json:"key"`
	FirstSeenAt time.Time `json:"firstSeenAt"`
	Answers     int       `json:"answers"`
}

// AnswerEvent is an immutable record of one participant's response to one question.
// TimeTaken is in seconds; smaller is faster.
type AnswerEvent struct {
	QuizID         string    `json:"quizId"`
	ParticipantKey string    `json:"participant"`
	QuestionID     string    `json:"questionId"`
	OptionID       string    `json:"optionId"`
	Correct        bool      `json:"correct"`
	TimeTaken      float64   `json:"timeTaken"`
	SubmittedAt    time.Time `json:"submittedAt"`
}

// AnswerResult summarizes the outcome of a submission for a single participant.
type AnswerResult struct {
	QuestionID string  `json:"questionId"`
	Correct    bool    `json:"correct"`
	TimeTaken  float64 `json:"timeTaken"`
	TotalScore int     `json:"totalScore"`
}

// LeaderboardEntry is one ranked participant.
type LeaderboardEntry struct {
	Rank   int    `json:"rank"`
	Name   string `json:"name"`
	Points int    `json:"points"`
}

// Statistics is the organizer's view of a quiz and who took part in it.
type Statistics struct {
	QuizID            string        `json:"quizId"`
	Title             string        `json:"title"`
	Status            Status        `json:"status"`
	ParticipantsCount int           `json:"participantsCount"`
	Participants      []Participant `json:"participants"`
}

// AdvanceResult reports where a quiz ended up after an advancement.
type AdvanceResult struct {
	Status            Status `json:"status"`
	CurrentQuestionID string `json:"currentQuestionId,omitempty"`
}

// QuestionDetails is the organizer's view of a question, correctness flags included.
type QuestionDetails struct {
	Question
	Options []Option `json:"options"`
}

// QuizDetails is a quiz with its full question and option structure.
type QuizDetails struct {
	Quiz
	Questions []QuestionDetails `json:"questions"`
}
