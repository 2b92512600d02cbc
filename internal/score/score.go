// Package score compares submitted answers against answer keys and
// aggregates per-topic and session-wide results. It holds no state.
package score

import (
	"math"

	"github.com/certdrill/certdrill/internal/model"
)

// Correct reports whether the selected option ids equal the answer key as
// a set. Order is irrelevant and there is no partial credit: a question
// requiring two options answered with one of them is wrong.
func Correct(selected, key []string) bool {
	if len(toSet(selected)) != len(toSet(key)) {
		return false
	}
	keySet := toSet(key)
	for id := range toSet(selected) {
		if _, ok := keySet[id]; !ok {
			return false
		}
	}
	return true
}

// Percent returns round(100 * correct / total), or 0 when total is zero.
func Percent(correct, total int) int {
	if total == 0 {
		return 0
	}
	return int(math.Round(100 * float64(correct) / float64(total)))
}

// Aggregate computes the final score sheet from the recorded results and
// the full presented question set.
//
// The aggregate score counts submitted questions only, while each topic's
// denominator counts every question presented in that topic: a question
// left unanswered at finish lowers its topic percentage but not the
// overall one. The ordering of results does not affect any computed
// value; the QuestionResults field preserves submission order.
func Aggregate(results []model.QuestionResult, questions []model.Question) model.SessionResults {
	byQuestion := make(map[int64]model.QuestionResult, len(results))
	correctCount := 0
	timeSpent := 0
	for _, r := range results {
		byQuestion[r.QuestionID] = r
		if r.IsCorrect {
			correctCount++
		}
		timeSpent += r.TimeSpentSeconds
	}

	// Topics appear in presentation order.
	var topicOrder []string
	totals := make(map[string]int)
	corrects := make(map[string]int)
	for _, q := range questions {
		if _, seen := totals[q.Topic]; !seen {
			topicOrder = append(topicOrder, q.Topic)
		}
		totals[q.Topic]++
		if r, ok := byQuestion[q.ID]; ok && r.IsCorrect {
			corrects[q.Topic]++
		}
	}

	var topicResults []model.TopicResult
	for _, topic := range topicOrder {
		topicResults = append(topicResults, model.TopicResult{
			Topic:          topic,
			TotalQuestions: totals[topic],
			CorrectCount:   corrects[topic],
			ScorePercent:   Percent(corrects[topic], totals[topic]),
		})
	}

	return model.SessionResults{
		TotalQuestions:        len(results),
		CorrectCount:          correctCount,
		ScorePercent:          Percent(correctCount, len(results)),
		TotalTimeSpentSeconds: timeSpent,
		TopicResults:          topicResults,
		QuestionResults:       results,
	}
}

func toSet(ids []string) map[string]struct{} {
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set
}
