package session

import (
	"context"
	"errors"
	"testing"

	"github.com/certdrill/certdrill/internal/model"
)

// fakeHistory records appended sessions in memory.
type fakeHistory struct {
	records []model.HistoryRecord
	fail    bool
}

func (f *fakeHistory) AppendHistory(_ context.Context, rec model.HistoryRecord) error {
	if f.fail {
		return errors.New("disk full")
	}
	f.records = append(f.records, rec)
	return nil
}

func (f *fakeHistory) ListHistory(_ context.Context) ([]model.HistoryRecord, error) {
	return f.records, nil
}

func testQuestions() []model.Question {
	return []model.Question{
		{ID: 1, Topic: "Networking", Prompt: "Which port does SSH use?", Options: []model.Option{
			{ID: "a", Text: "22", Correct: true},
			{ID: "b", Text: "23"},
			{ID: "c", Text: "80"},
		}},
		{ID: 2, Topic: "Networking", Prompt: "Which are transport protocols?", Options: []model.Option{
			{ID: "a", Text: "TCP", Correct: true},
			{ID: "b", Text: "IP"},
			{ID: "c", Text: "UDP", Correct: true},
		}},
		{ID: 3, Topic: "Storage", Prompt: "Which filesystem supports snapshots?", Options: []model.Option{
			{ID: "a", Text: "ZFS", Correct: true},
			{ID: "b", Text: "FAT32"},
		}},
	}
}

func newTestSession(t *testing.T, cfg model.SessionConfig, history HistoryLog) *Session {
	t.Helper()
	if history == nil {
		history = &fakeHistory{}
	}
	s, err := New(cfg, testQuestions(), history)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(s.Discard)
	return s
}

func TestFullRun(t *testing.T) {
	s := newTestSession(t, model.SessionConfig{ShowFeedback: true}, nil)
	ctx := context.Background()

	// Question 1: correct.
	if err := s.Answer([]string{"a"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	r, err := s.Submit()
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if !r.IsCorrect {
		t.Error("expected question 1 to score correct")
	}
	if err := s.Advance(ctx, Next); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	// Question 2: partial selection, no credit.
	if err := s.Answer([]string{"a"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if r, err = s.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if r.IsCorrect {
		t.Error("partial selection must not score correct")
	}
	if err := s.Advance(ctx, Next); err != nil {
		t.Fatalf("Advance: %v", err)
	}

	// Question 3: skipped; advancing past the last question finishes.
	if err := s.Advance(ctx, Next); err != nil {
		t.Fatalf("Advance at last: %v", err)
	}

	results := s.Results()
	if results == nil {
		t.Fatal("expected results after finish")
	}
	if results.TotalQuestions != 2 {
		t.Errorf("TotalQuestions = %d, want 2", results.TotalQuestions)
	}
	if results.ScorePercent != 50 {
		t.Errorf("ScorePercent = %d, want 50", results.ScorePercent)
	}

	view := s.Snapshot()
	if view.Active {
		t.Error("snapshot still active after finish")
	}
	if view.EndReason != model.EndCompleted {
		t.Errorf("EndReason = %q, want %q", view.EndReason, model.EndCompleted)
	}
}

func TestSubmitWithoutSelection(t *testing.T) {
	s := newTestSession(t, model.SessionConfig{}, nil)
	if _, err := s.Submit(); !errors.Is(err, ErrNoAnswerSelected) {
		t.Errorf("Submit with no selection: err = %v, want ErrNoAnswerSelected", err)
	}
}

func TestSubmitIdempotent(t *testing.T) {
	s := newTestSession(t, model.SessionConfig{}, nil)
	if err := s.Answer([]string{"a"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	first, err := s.Submit()
	if err != nil {
		t.Fatalf("Submit: %v", err)
	}

	// Answering a submitted question is a no-op; resubmitting returns
	// the recorded result without adding a new one.
	if err := s.Answer([]string{"b"}); err != nil {
		t.Fatalf("Answer after submit: %v", err)
	}
	second, err := s.Submit()
	if err != nil {
		t.Fatalf("resubmit: %v", err)
	}
	if second.IsCorrect != first.IsCorrect || second.QuestionID != first.QuestionID {
		t.Errorf("resubmit returned a different result: %+v vs %+v", second, first)
	}
	if got := len(s.results); got != 1 {
		t.Errorf("results length = %d after double submit, want 1", got)
	}
}

func TestAnswerInvalidOption(t *testing.T) {
	s := newTestSession(t, model.SessionConfig{}, nil)
	if err := s.Answer([]string{"z"}); !errors.Is(err, ErrInvalidOptionID) {
		t.Errorf("Answer with unknown option: err = %v, want ErrInvalidOptionID", err)
	}
	// The failed call must not leave a partial selection behind.
	if view := s.Snapshot(); len(view.Selected) != 0 {
		t.Errorf("selection after rejected answer = %v, want empty", view.Selected)
	}
}

func TestTopicFilter(t *testing.T) {
	history := &fakeHistory{}
	s, err := New(model.SessionConfig{SelectedTopics: []string{"Storage"}}, testQuestions(), history)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Discard()
	if view := s.Snapshot(); view.Total != 1 {
		t.Errorf("Total = %d with Storage filter, want 1", view.Total)
	}

	if _, err := New(model.SessionConfig{SelectedTopics: []string{"Quantum"}}, testQuestions(), history); !errors.Is(err, ErrEmptyQuestionSet) {
		t.Errorf("New with unmatched topic: err = %v, want ErrEmptyQuestionSet", err)
	}
}

func TestShuffleIsPermutation(t *testing.T) {
	questions := testQuestions()
	s, err := New(model.SessionConfig{ShuffleQuestions: true, ShuffleOptions: true}, questions, &fakeHistory{})
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Discard()

	if len(s.questions) != len(questions) {
		t.Fatalf("shuffled set has %d questions, want %d", len(s.questions), len(questions))
	}
	byID := make(map[int64]model.Question, len(questions))
	for _, q := range questions {
		byID[q.ID] = q
	}
	for _, got := range s.questions {
		want, ok := byID[got.ID]
		if !ok {
			t.Fatalf("shuffled set contains unknown question %d", got.ID)
		}
		// Option shuffling must not change the answer key.
		gotKey := got.AnswerKey()
		wantKey := want.AnswerKey()
		if len(gotKey) != len(wantKey) {
			t.Errorf("question %d: answer key changed from %v to %v", got.ID, wantKey, gotKey)
		}
		wantSet := make(map[string]bool, len(wantKey))
		for _, id := range wantKey {
			wantSet[id] = true
		}
		for _, id := range gotKey {
			if !wantSet[id] {
				t.Errorf("question %d: answer key gained option %q", got.ID, id)
			}
		}
	}
}

func TestRevisitRestoresSubmittedState(t *testing.T) {
	s := newTestSession(t, model.SessionConfig{ShowFeedback: true}, nil)
	ctx := context.Background()

	if err := s.Answer([]string{"a"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if _, err := s.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if err := s.Advance(ctx, Next); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := s.Advance(ctx, Previous); err != nil {
		t.Fatalf("Advance back: %v", err)
	}

	view := s.Snapshot()
	if !view.Submitted {
		t.Error("revisited question lost its submitted flag")
	}
	if len(view.Selected) != 1 || view.Selected[0] != "a" {
		t.Errorf("revisited selection = %v, want [a]", view.Selected)
	}
	if view.Feedback == nil {
		t.Error("revisited submitted question shows no feedback")
	}
}

func TestNavigationClearsUnsubmittedSelection(t *testing.T) {
	s := newTestSession(t, model.SessionConfig{}, nil)
	ctx := context.Background()

	if err := s.Answer([]string{"a"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if err := s.Advance(ctx, Next); err != nil {
		t.Fatalf("Advance: %v", err)
	}
	if err := s.Advance(ctx, Previous); err != nil {
		t.Fatalf("Advance back: %v", err)
	}

	view := s.Snapshot()
	if view.Submitted {
		t.Error("unsubmitted question came back submitted")
	}
	if len(view.Selected) != 0 {
		t.Errorf("unsubmitted selection survived navigation: %v", view.Selected)
	}
}

func TestAdvanceUnknownDirection(t *testing.T) {
	history := &fakeHistory{}
	s, err := New(model.SessionConfig{SelectedTopics: []string{"Storage"}}, testQuestions(), history)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer s.Discard()

	// One-question session: a collapsed default arm would treat any
	// unknown direction as "next" and finish here.
	if err := s.Advance(context.Background(), Direction("bogus")); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("Advance with unknown direction: err = %v, want ErrInvalidDirection", err)
	}
	view := s.Snapshot()
	if !view.Active {
		t.Error("unknown direction finished the session")
	}
	if view.Index != 0 {
		t.Errorf("Index = %d after rejected advance, want 0", view.Index)
	}

	if err := s.Advance(context.Background(), Direction("")); !errors.Is(err, ErrInvalidDirection) {
		t.Errorf("Advance with empty direction: err = %v, want ErrInvalidDirection", err)
	}
}

func TestNewRejectsNonPositiveMinutes(t *testing.T) {
	history := &fakeHistory{}
	for _, minutes := range []float64{0, -1} {
		cfg := model.SessionConfig{TimerEnabled: true, MinutesPerQuestion: minutes}
		if _, err := New(cfg, testQuestions(), history); !errors.Is(err, ErrInvalidTimerConfig) {
			t.Errorf("New with %v minutes per question: err = %v, want ErrInvalidTimerConfig", minutes, err)
		}
	}
}

func TestPreviousAtFirstStays(t *testing.T) {
	s := newTestSession(t, model.SessionConfig{}, nil)
	if err := s.Advance(context.Background(), Previous); err != nil {
		t.Fatalf("Advance previous at first: %v", err)
	}
	if view := s.Snapshot(); view.Index != 0 {
		t.Errorf("Index = %d after previous at first question, want 0", view.Index)
	}
}

func TestAutoAdvance(t *testing.T) {
	s := newTestSession(t, model.SessionConfig{AutoAdvance: true}, nil)

	if err := s.Answer([]string{"a"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if _, err := s.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if view := s.Snapshot(); view.Index != 1 {
		t.Errorf("Index = %d after auto-advance, want 1", view.Index)
	}
}

func TestEndEarly(t *testing.T) {
	history := &fakeHistory{}
	s := newTestSession(t, model.SessionConfig{
		TimerEnabled:       true,
		MinutesPerQuestion: 1,
	}, history)

	if err := s.Answer([]string{"a"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if _, err := s.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	results, err := s.EndEarly(context.Background())
	if err != nil {
		t.Fatalf("EndEarly: %v", err)
	}
	if results.TotalQuestions != 1 {
		t.Errorf("TotalQuestions = %d, want 1", results.TotalQuestions)
	}
	if len(history.records) != 1 {
		t.Fatalf("history has %d records, want 1", len(history.records))
	}
	if history.records[0].EndReason != model.EndedEarly {
		t.Errorf("EndReason = %q, want %q", history.records[0].EndReason, model.EndedEarly)
	}

	if _, err := s.EndEarly(context.Background()); !errors.Is(err, ErrSessionComplete) {
		t.Errorf("EndEarly on finished session: err = %v, want ErrSessionComplete", err)
	}
}

func TestTimerExpiry(t *testing.T) {
	history := &fakeHistory{}
	s := newTestSession(t, model.SessionConfig{
		TimerEnabled:       true,
		MinutesPerQuestion: 1,
	}, history)

	if err := s.Answer([]string{"a"}); err != nil {
		t.Fatalf("Answer: %v", err)
	}
	if _, err := s.Submit(); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	if done := s.Tick(s.totalSeconds); !done {
		t.Fatal("Tick past zero did not finish the session")
	}
	// A late tick after expiry is a no-op.
	if done := s.Tick(1); !done {
		t.Error("Tick on finished session reported it active")
	}

	results := s.Results()
	if results == nil {
		t.Fatal("expected results after expiry")
	}
	// Only submitted questions count toward the aggregate.
	if results.TotalQuestions != len(results.QuestionResults) {
		t.Errorf("TotalQuestions = %d, QuestionResults = %d; must match",
			results.TotalQuestions, len(results.QuestionResults))
	}
	if results.TotalQuestions != 1 {
		t.Errorf("TotalQuestions = %d, want 1", results.TotalQuestions)
	}

	if len(history.records) != 1 {
		t.Fatalf("history has %d records, want 1", len(history.records))
	}
	if history.records[0].EndReason != model.EndTimeExpired {
		t.Errorf("EndReason = %q, want %q", history.records[0].EndReason, model.EndTimeExpired)
	}
}

func TestPauseHoldsRemainingTime(t *testing.T) {
	s := newTestSession(t, model.SessionConfig{
		TimerEnabled:       true,
		MinutesPerQuestion: 1,
	}, nil)

	before := s.Snapshot()
	s.Pause()
	if done := s.Tick(10); done {
		t.Fatal("Tick finished a paused session")
	}
	after := s.Snapshot()
	if *after.RemainingSeconds != *before.RemainingSeconds {
		t.Errorf("remaining changed while paused: %d -> %d",
			*before.RemainingSeconds, *after.RemainingSeconds)
	}

	s.Resume()
	if done := s.Tick(10); done {
		t.Fatal("Tick finished well before expiry")
	}
	resumed := s.Snapshot()
	if *resumed.RemainingSeconds != *before.RemainingSeconds-10 {
		t.Errorf("remaining after resume+tick = %d, want %d",
			*resumed.RemainingSeconds, *before.RemainingSeconds-10)
	}
}

func TestPracticeModeWritesNoHistory(t *testing.T) {
	history := &fakeHistory{}
	s := newTestSession(t, model.SessionConfig{}, history)

	if _, err := s.Finish(context.Background()); err != nil {
		t.Fatalf("Finish: %v", err)
	}
	if len(history.records) != 0 {
		t.Errorf("practice session wrote %d history records, want 0", len(history.records))
	}
}

func TestHistoryFailureStillFinishes(t *testing.T) {
	history := &fakeHistory{fail: true}
	s := newTestSession(t, model.SessionConfig{
		TimerEnabled:       true,
		MinutesPerQuestion: 1,
	}, history)

	results, err := s.Finish(context.Background())
	if err == nil {
		t.Error("expected an error from the failed history append")
	}
	if results == nil {
		t.Fatal("session must still produce results when the append fails")
	}
	if s.Results() == nil {
		t.Error("session did not stay finished after append failure")
	}
}

func TestManagerLifecycle(t *testing.T) {
	ctx := context.Background()
	src := &fakeSource{questions: testQuestions()}
	mgr := NewManager(src, src, &fakeHistory{})

	s, err := mgr.Start(ctx, model.SessionConfig{})
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	got, err := mgr.Get(s.ID())
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got.ID() != s.ID() {
		t.Errorf("Get returned session %q, want %q", got.ID(), s.ID())
	}

	mgr.Discard(s.ID())
	if _, err := mgr.Get(s.ID()); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after discard: err = %v, want ErrNotFound", err)
	}
}

// fakeSource serves a fixed question set and applies no overrides.
type fakeSource struct {
	questions []model.Question
}

func (f *fakeSource) FetchQuestions(_ context.Context) ([]model.Question, []model.Topic, error) {
	return f.questions, nil, nil
}

func (f *fakeSource) ApplyOverrides(_ context.Context, qs []model.Question) ([]model.Question, error) {
	return qs, nil
}
