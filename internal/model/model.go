package model

import (
	"context"
	"time"
)

// UserRole represents a user's access level.
type UserRole string

const (
	// UserRoleAdmin may correct answer keys and manage the question bank.
	UserRoleAdmin UserRole = "admin"
)

// User represents an administrator account.
type User struct {
	ID           int64
	Username     string
	DisplayName  string
	PasswordHash string
	Role         UserRole
	Active       bool
	CreatedAt    time.Time
}

// AuthSession represents an authentication session.
type AuthSession struct {
	ID        string
	UserID    int64
	CreatedAt time.Time
	ExpiresAt time.Time
}

type userCtxKey struct{}

// ContextWithUser stores a user in the request context.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userCtxKey{}, u)
}

// UserFromContext retrieves the authenticated user from context, or nil.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userCtxKey{}).(*User)
	return u
}

// Option is a single answer choice within a question.
type Option struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// Question represents a multiple-choice question. Immutable once a
// session has started.
type Question struct {
	ID      int64    `json:"id"`
	Topic   string   `json:"topic"`
	Prompt  string   `json:"prompt"`
	Note    string   `json:"note,omitempty"`
	Options []Option `json:"options"`
}

// AnswerKey returns the ids of the options marked correct, in option order.
func (q Question) AnswerKey() []string {
	var key []string
	for _, o := range q.Options {
		if o.Correct {
			key = append(key, o.ID)
		}
	}
	return key
}

// HasOption reports whether id names one of the question's options.
func (q Question) HasOption(id string) bool {
	for _, o := range q.Options {
		if o.ID == id {
			return true
		}
	}
	return false
}

// Topic describes a question grouping with its bank-wide question count.
type Topic struct {
	Name          string `json:"name"`
	QuestionCount int    `json:"question_count"`
	Description   string `json:"description,omitempty"`
}

// SessionMode distinguishes timed exams from untimed practice.
type SessionMode string

const (
	ModePractice SessionMode = "practice"
	ModeExam     SessionMode = "exam"
)

// EndReason records what terminated a session.
type EndReason string

const (
	EndCompleted   EndReason = "completed"
	EndedEarly     EndReason = "ended_early"
	EndTimeExpired EndReason = "time_expired"
)

// SessionConfig holds the per-session options chosen at start. Immutable
// for the session's lifetime.
type SessionConfig struct {
	SelectedTopics     []string `json:"selected_topics"` // empty = all topics
	ShuffleQuestions   bool     `json:"shuffle_questions"`
	ShuffleOptions     bool     `json:"shuffle_options"`
	AutoAdvance        bool     `json:"auto_advance"`
	ShowFeedback       bool     `json:"show_feedback"`
	TimerEnabled       bool     `json:"timer_enabled"`
	MinutesPerQuestion float64  `json:"minutes_per_question"`
}

// QuestionResult is the scored outcome of one submitted question.
type QuestionResult struct {
	QuestionID       int64    `json:"question_id"`
	SelectedAnswers  []string `json:"selected_answers"`
	CorrectAnswers   []string `json:"correct_answers"`
	IsCorrect        bool     `json:"is_correct"`
	TimeSpentSeconds int      `json:"time_spent_seconds"`
	Attempts         int      `json:"attempts"`
}

// TopicResult aggregates results for one topic present in the session.
// TotalQuestions counts every question presented in the topic, answered
// or not.
type TopicResult struct {
	Topic          string `json:"topic"`
	TotalQuestions int    `json:"total_questions"`
	CorrectCount   int    `json:"correct_count"`
	ScorePercent   int    `json:"score_percent"`
}

// SessionResults is the final score sheet of a finished session.
// TotalQuestions counts submitted questions only; topic denominators
// count all presented questions.
type SessionResults struct {
	TotalQuestions        int              `json:"total_questions"`
	CorrectCount          int              `json:"correct_count"`
	ScorePercent          int              `json:"score_percent"`
	TotalTimeSpentSeconds int              `json:"total_time_spent_seconds"`
	TopicResults          []TopicResult    `json:"topic_results"`
	QuestionResults       []QuestionResult `json:"question_results"`
}

// HistoryRecord is the immutable snapshot of a completed exam-mode
// session kept in the history log. Practice sessions leave no record.
type HistoryRecord struct {
	SessionID       string         `json:"session_id"`
	Date            time.Time      `json:"date"`
	Config          SessionConfig  `json:"config"`
	Results         SessionResults `json:"results"`
	Questions       []Question     `json:"questions"`
	DurationSeconds int            `json:"duration_seconds"`
	Mode            SessionMode    `json:"mode"`
	EndReason       EndReason      `json:"end_reason"`
}

// ServerConfig holds runtime parameters set via CLI flags.
type ServerConfig struct {
	BasePath      string // URL prefix for sub-path deployments (e.g. "/drill")
	SecureCookies bool   // Set Secure flag on cookies (disable for local dev)
	Defaults      SessionConfig
}

// OptionImport is one answer choice in a bank file.
type OptionImport struct {
	ID      string `json:"id"`
	Text    string `json:"text"`
	Correct bool   `json:"correct"`
}

// QuestionImport is used for loading questions from JSON bank files.
type QuestionImport struct {
	Topic   string         `json:"topic"`
	Prompt  string         `json:"prompt"`
	Note    string         `json:"note,omitempty"`
	Options []OptionImport `json:"options"`
}
