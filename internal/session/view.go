package session

import "github.com/certdrill/certdrill/internal/model"

// Feedback reveals the correctness of a submitted question.
type Feedback struct {
	IsCorrect      bool     `json:"is_correct"`
	CorrectAnswers []string `json:"correct_answers"`
}

// View is a read-only projection of the session for the presentation
// layer. The current question is included as presented, option order
// and all; correctness flags are the handler's job to withhold.
type View struct {
	ID               string                `json:"id"`
	Mode             model.SessionMode     `json:"mode"`
	Active           bool                  `json:"active"`
	Index            int                   `json:"index"`
	Total            int                   `json:"total"`
	Question         *model.Question       `json:"question,omitempty"`
	Selected         []string              `json:"selected"`
	Submitted        bool                  `json:"submitted"`
	Feedback         *Feedback             `json:"feedback,omitempty"`
	RemainingSeconds *int                  `json:"remaining_seconds,omitempty"`
	Results          *model.SessionResults `json:"results,omitempty"`
	EndReason        model.EndReason       `json:"end_reason,omitempty"`
}

// Snapshot captures the session's observable state.
func (s *Session) Snapshot() View {
	s.mu.Lock()
	defer s.mu.Unlock()

	v := View{
		ID:     s.id,
		Mode:   s.mode,
		Active: !s.finished,
		Index:  s.current,
		Total:  len(s.questions),
	}
	if s.finished {
		v.Results = s.final
		v.EndReason = s.endReason
		return v
	}

	q := s.questions[s.current]
	st := s.states[s.current]
	v.Question = &q
	v.Selected = append([]string(nil), st.selected...)
	v.Submitted = st.submitted
	if st.submitted && s.config.ShowFeedback {
		r := s.results[st.resultIdx]
		v.Feedback = &Feedback{
			IsCorrect:      r.IsCorrect,
			CorrectAnswers: append([]string(nil), r.CorrectAnswers...),
		}
	}
	if s.config.TimerEnabled {
		remaining := s.remainingSeconds
		v.RemainingSeconds = &remaining
	}
	return v
}
