// Package session drives a practice or exam attempt from start to
// finish: question ordering, the answer/submit/advance loop, the exam
// countdown, and final scoring.
package session

import (
	"context"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/certdrill/certdrill/internal/model"
	"github.com/certdrill/certdrill/internal/score"
)

// Validation and lifecycle errors. None are retryable; each signals a
// caller mistake rather than a transient fault.
var (
	ErrEmptyQuestionSet   = errors.New("no questions match the selected topics")
	ErrInvalidOptionID    = errors.New("option id does not belong to the current question")
	ErrNoAnswerSelected   = errors.New("no answer selected")
	ErrInvalidDirection   = errors.New("invalid advance direction")
	ErrInvalidTimerConfig = errors.New("minutes per question must be positive")
	ErrSessionComplete    = errors.New("session is already complete")
	ErrNotFound           = errors.New("session not found")
)

// Direction selects where Advance moves.
type Direction string

const (
	Next     Direction = "next"
	Previous Direction = "previous"
)

// HistoryLog receives finished exam-mode sessions.
type HistoryLog interface {
	AppendHistory(ctx context.Context, rec model.HistoryRecord) error
	ListHistory(ctx context.Context) ([]model.HistoryRecord, error)
}

// questionState tracks the interaction with one ordered question.
// Submitted questions keep their selection and stay locked; revisiting
// one restores the submitted view instead of discarding it.
type questionState struct {
	selected  []string
	submitted bool
	resultIdx int
	attempts  int
	enteredAt time.Time
}

// Session is one practice or exam attempt. All transitions serialize
// behind the mutex; the countdown goroutine participates through Tick
// like any other caller.
type Session struct {
	mu sync.Mutex

	id        string
	mode      model.SessionMode
	config    model.SessionConfig
	questions []model.Question
	startTime time.Time
	endTime   time.Time

	current int
	states  []questionState
	results []model.QuestionResult

	totalSeconds     int
	remainingSeconds int
	timerRunning     bool
	stopTimer        chan struct{}

	finished  bool
	endReason model.EndReason
	final     *model.SessionResults

	history HistoryLog
}

// New configures and starts a session over the given question set.
// Questions are filtered to the selected topics (none selected means
// all), then shuffled per the config. Option shuffling permutes display
// order only; the answer key is a property of option ids and is not
// affected. The timer, when enabled, starts immediately.
func New(cfg model.SessionConfig, questions []model.Question, history HistoryLog) (*Session, error) {
	if cfg.TimerEnabled && cfg.MinutesPerQuestion <= 0 {
		return nil, ErrInvalidTimerConfig
	}
	filtered := filterByTopics(questions, cfg.SelectedTopics)
	if len(filtered) == 0 {
		return nil, ErrEmptyQuestionSet
	}

	ordered := make([]model.Question, len(filtered))
	for i, q := range filtered {
		options := make([]model.Option, len(q.Options))
		copy(options, q.Options)
		if cfg.ShuffleOptions {
			rand.Shuffle(len(options), func(a, b int) {
				options[a], options[b] = options[b], options[a]
			})
		}
		q.Options = options
		ordered[i] = q
	}
	if cfg.ShuffleQuestions {
		rand.Shuffle(len(ordered), func(a, b int) {
			ordered[a], ordered[b] = ordered[b], ordered[a]
		})
	}

	now := time.Now()
	s := &Session{
		id:        uuid.NewString(),
		mode:      model.ModePractice,
		config:    cfg,
		questions: ordered,
		startTime: now,
		states:    make([]questionState, len(ordered)),
		history:   history,
	}
	s.states[0].enteredAt = now

	if cfg.TimerEnabled {
		s.mode = model.ModeExam
		s.totalSeconds = int(math.Ceil(float64(len(ordered)) * cfg.MinutesPerQuestion * 60))
		s.remainingSeconds = s.totalSeconds
		s.timerRunning = true
		s.stopTimer = make(chan struct{})
		go s.runTimer(s.stopTimer)
	}

	return s, nil
}

// ID returns the session's opaque token.
func (s *Session) ID() string { return s.id }

// Mode returns practice or exam.
func (s *Session) Mode() model.SessionMode { return s.mode }

// Answer replaces the current question's selection. Submitted questions
// are locked: answering one is a no-op. Option ids outside the current
// question fail with ErrInvalidOptionID and leave the session unchanged.
func (s *Session) Answer(selected []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return ErrSessionComplete
	}
	st := &s.states[s.current]
	if st.submitted {
		return nil
	}
	q := s.questions[s.current]
	for _, id := range selected {
		if !q.HasOption(id) {
			return fmt.Errorf("%w: %q", ErrInvalidOptionID, id)
		}
	}
	st.selected = append([]string(nil), selected...)
	st.attempts++
	return nil
}

// Submit scores the current selection and records the result.
// Submitting an already-submitted question is a no-op returning the
// existing result. An empty selection fails with ErrNoAnswerSelected.
// With auto-advance enabled the session moves to the next question
// after recording the result, except at the last question.
func (s *Session) Submit() (model.QuestionResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return model.QuestionResult{}, ErrSessionComplete
	}
	st := &s.states[s.current]
	if st.submitted {
		return s.results[st.resultIdx], nil
	}
	if len(st.selected) == 0 {
		return model.QuestionResult{}, ErrNoAnswerSelected
	}

	q := s.questions[s.current]
	key := q.AnswerKey()
	result := model.QuestionResult{
		QuestionID:       q.ID,
		SelectedAnswers:  sortedCopy(st.selected),
		CorrectAnswers:   sortedCopy(key),
		IsCorrect:        score.Correct(st.selected, key),
		TimeSpentSeconds: int(time.Since(st.enteredAt).Seconds()),
		Attempts:         st.attempts,
	}
	st.submitted = true
	st.resultIdx = len(s.results)
	s.results = append(s.results, result)

	if s.config.AutoAdvance && s.current < len(s.questions)-1 {
		s.moveTo(s.current + 1)
	}
	return result, nil
}

// Advance moves to the neighboring question. Next at the last question
// finishes the session. Previous at the first question stays put.
// Anything but the two known directions is rejected without touching
// session state.
func (s *Session) Advance(ctx context.Context, dir Direction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return ErrSessionComplete
	}
	switch dir {
	case Previous:
		if s.current > 0 {
			s.moveTo(s.current - 1)
		}
		return nil
	case Next:
		if s.current == len(s.questions)-1 {
			return s.finishLocked(ctx, model.EndCompleted)
		}
		s.moveTo(s.current + 1)
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidDirection, dir)
	}
}

// moveTo changes the current index. The selection of an unsubmitted
// question is discarded on leaving it; submitted questions keep theirs.
func (s *Session) moveTo(index int) {
	if st := &s.states[s.current]; !st.submitted {
		st.selected = nil
	}
	s.current = index
	s.states[index].enteredAt = time.Now()
}

// Finish completes the session and computes the final results. Exam-mode
// sessions are appended to the history log; a failed append still leaves
// the session complete and is reported alongside the results.
func (s *Session) Finish(ctx context.Context) (*model.SessionResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return nil, ErrSessionComplete
	}
	err := s.finishLocked(ctx, model.EndCompleted)
	return s.final, err
}

// EndEarly abandons a running session. Scoring is identical to Finish;
// only the recorded cause differs.
func (s *Session) EndEarly(ctx context.Context) (*model.SessionResults, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.finished {
		return nil, ErrSessionComplete
	}
	err := s.finishLocked(ctx, model.EndedEarly)
	return s.final, err
}

func (s *Session) finishLocked(ctx context.Context, reason model.EndReason) error {
	s.stopTimerLocked()
	s.finished = true
	s.endReason = reason
	s.endTime = time.Now()

	results := score.Aggregate(s.results, s.questions)
	s.final = &results

	if s.mode != model.ModeExam {
		return nil
	}
	rec := model.HistoryRecord{
		SessionID:       s.id,
		Date:            s.startTime,
		Config:          s.config,
		Results:         results,
		Questions:       s.questions,
		DurationSeconds: int(s.endTime.Sub(s.startTime).Seconds()),
		Mode:            s.mode,
		EndReason:       reason,
	}
	if err := s.history.AppendHistory(ctx, rec); err != nil {
		return fmt.Errorf("append history record: %w", err)
	}
	return nil
}

// Results returns the final score sheet, or nil while the session is
// still active.
func (s *Session) Results() *model.SessionResults {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.final
}

// Discard deterministically stops the countdown goroutine without
// finishing the session. Used when a session is dropped from the
// registry before completion.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopTimerLocked()
}

func filterByTopics(questions []model.Question, topics []string) []model.Question {
	if len(topics) == 0 {
		return questions
	}
	want := make(map[string]struct{}, len(topics))
	for _, t := range topics {
		want[t] = struct{}{}
	}
	var filtered []model.Question
	for _, q := range questions {
		if _, ok := want[q.Topic]; ok {
			filtered = append(filtered, q)
		}
	}
	return filtered
}

func sortedCopy(ids []string) []string {
	out := append([]string(nil), ids...)
	sort.Strings(out)
	return out
}
