package score

import (
	"testing"

	"github.com/certdrill/certdrill/internal/model"
)

func TestCorrect(t *testing.T) {
	tests := []struct {
		name     string
		selected []string
		key      []string
		want     bool
	}{
		{"exact single", []string{"a"}, []string{"a"}, true},
		{"wrong single", []string{"b"}, []string{"a"}, false},
		{"multi order irrelevant", []string{"c", "a"}, []string{"a", "c"}, true},
		{"partial selection is wrong", []string{"a"}, []string{"a", "c"}, false},
		{"extra selection is wrong", []string{"a", "b", "c"}, []string{"a", "c"}, false},
		{"disjoint", []string{"b", "d"}, []string{"a", "c"}, false},
		{"duplicates collapse", []string{"a", "a", "c"}, []string{"a", "c"}, true},
		{"empty vs key", nil, []string{"a"}, false},
		{"both empty", nil, nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Correct(tt.selected, tt.key); got != tt.want {
				t.Errorf("Correct(%v, %v) = %v, want %v", tt.selected, tt.key, got, tt.want)
			}
		})
	}
}

func TestPercent(t *testing.T) {
	tests := []struct {
		correct, total, want int
	}{
		{0, 0, 0},
		{0, 5, 0},
		{5, 5, 100},
		{1, 2, 50},
		{1, 3, 33},
		{2, 3, 67},
		{1, 6, 17},
	}
	for _, tt := range tests {
		if got := Percent(tt.correct, tt.total); got != tt.want {
			t.Errorf("Percent(%d, %d) = %d, want %d", tt.correct, tt.total, got, tt.want)
		}
	}
}

func sampleQuestions() []model.Question {
	return []model.Question{
		{ID: 1, Topic: "Networking", Options: []model.Option{
			{ID: "a", Correct: true}, {ID: "b"},
		}},
		{ID: 2, Topic: "Networking", Options: []model.Option{
			{ID: "a"}, {ID: "b", Correct: true},
		}},
		{ID: 3, Topic: "Storage", Options: []model.Option{
			{ID: "a", Correct: true}, {ID: "b"},
		}},
	}
}

func TestAggregate(t *testing.T) {
	questions := sampleQuestions()
	// Question 1 answered correctly, question 2 left unanswered,
	// question 3 answered correctly.
	results := []model.QuestionResult{
		{QuestionID: 1, SelectedAnswers: []string{"a"}, CorrectAnswers: []string{"a"}, IsCorrect: true, TimeSpentSeconds: 10},
		{QuestionID: 3, SelectedAnswers: []string{"a"}, CorrectAnswers: []string{"a"}, IsCorrect: true, TimeSpentSeconds: 5},
	}

	agg := Aggregate(results, questions)

	if agg.TotalQuestions != 2 {
		t.Errorf("TotalQuestions = %d, want 2 (submitted only)", agg.TotalQuestions)
	}
	if agg.CorrectCount != 2 {
		t.Errorf("CorrectCount = %d, want 2", agg.CorrectCount)
	}
	if agg.ScorePercent != 100 {
		t.Errorf("ScorePercent = %d, want 100", agg.ScorePercent)
	}
	if agg.TotalTimeSpentSeconds != 15 {
		t.Errorf("TotalTimeSpentSeconds = %d, want 15", agg.TotalTimeSpentSeconds)
	}

	if len(agg.TopicResults) != 2 {
		t.Fatalf("got %d topic results, want 2", len(agg.TopicResults))
	}
	// Topics in presentation order.
	net := agg.TopicResults[0]
	if net.Topic != "Networking" {
		t.Fatalf("first topic = %q, want Networking", net.Topic)
	}
	// The unanswered question still counts in its topic's denominator.
	if net.TotalQuestions != 2 || net.CorrectCount != 1 || net.ScorePercent != 50 {
		t.Errorf("Networking = %d/%d (%d%%), want 1/2 (50%%)",
			net.CorrectCount, net.TotalQuestions, net.ScorePercent)
	}
	stor := agg.TopicResults[1]
	if stor.TotalQuestions != 1 || stor.CorrectCount != 1 || stor.ScorePercent != 100 {
		t.Errorf("Storage = %d/%d (%d%%), want 1/1 (100%%)",
			stor.CorrectCount, stor.TotalQuestions, stor.ScorePercent)
	}
}

func TestAggregateOrderIndependent(t *testing.T) {
	questions := sampleQuestions()
	results := []model.QuestionResult{
		{QuestionID: 1, IsCorrect: true, TimeSpentSeconds: 3},
		{QuestionID: 2, IsCorrect: false, TimeSpentSeconds: 7},
		{QuestionID: 3, IsCorrect: true, TimeSpentSeconds: 2},
	}
	reversed := []model.QuestionResult{results[2], results[1], results[0]}

	a := Aggregate(results, questions)
	b := Aggregate(reversed, questions)

	if a.ScorePercent != b.ScorePercent || a.CorrectCount != b.CorrectCount ||
		a.TotalQuestions != b.TotalQuestions || a.TotalTimeSpentSeconds != b.TotalTimeSpentSeconds {
		t.Errorf("aggregate totals depend on result order: %+v vs %+v", a, b)
	}
	for i := range a.TopicResults {
		if a.TopicResults[i] != b.TopicResults[i] {
			t.Errorf("topic result %d depends on result order: %+v vs %+v",
				i, a.TopicResults[i], b.TopicResults[i])
		}
	}
}

func TestAggregateEmpty(t *testing.T) {
	agg := Aggregate(nil, nil)
	if agg.TotalQuestions != 0 || agg.CorrectCount != 0 || agg.ScorePercent != 0 {
		t.Errorf("empty aggregate = %+v, want zeros", agg)
	}
	if len(agg.TopicResults) != 0 {
		t.Errorf("got %d topic results, want 0", len(agg.TopicResults))
	}
}
