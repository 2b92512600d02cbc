package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/certdrill/certdrill/internal/model"
)

var (
	// ErrQuestionNotFound is returned when an override targets a
	// question that is not in the bank.
	ErrQuestionNotFound = errors.New("question not found")
	// ErrInvalidModification is returned when an override names option
	// ids the question does not have, or names none at all.
	ErrInvalidModification = errors.New("invalid answer-key modification")
)

// SaveOverride records an administrator's corrected answer key for a
// question. The ids are validated against the stored options; the
// override takes effect on future session starts.
func (s *Store) SaveOverride(ctx context.Context, questionID int64, correctIDs []string) error {
	q, err := s.GetQuestion(ctx, questionID)
	if err == sql.ErrNoRows {
		return fmt.Errorf("%w: %d", ErrQuestionNotFound, questionID)
	}
	if err != nil {
		return err
	}

	if len(correctIDs) == 0 {
		return fmt.Errorf("%w: answer key must not be empty", ErrInvalidModification)
	}
	for _, id := range correctIDs {
		if !q.HasOption(id) {
			return fmt.Errorf("%w: question %d has no option %q", ErrInvalidModification, questionID, id)
		}
	}

	encoded, err := json.Marshal(correctIDs)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO answer_overrides (question_id, correct_ids, updated_at) VALUES (?, ?, ?)
		 ON CONFLICT(question_id) DO UPDATE SET correct_ids = ?, updated_at = ?`,
		questionID, string(encoded), time.Now(), string(encoded), time.Now(),
	)
	if err != nil {
		return err
	}
	slog.Info("saved answer-key override", "question_id", questionID, "correct_ids", correctIDs)
	return nil
}

// ApplyOverrides overlays recorded answer-key corrections onto the given
// questions. It satisfies the session manager's modification applier.
// Overrides referencing options that no longer exist are skipped.
func (s *Store) ApplyOverrides(ctx context.Context, questions []model.Question) ([]model.Question, error) {
	overrides, err := s.loadOverrides(ctx)
	if err != nil {
		return nil, err
	}
	if len(overrides) == 0 {
		return questions, nil
	}

	for i, q := range questions {
		ids, ok := overrides[q.ID]
		if !ok {
			continue
		}
		valid := true
		for _, id := range ids {
			if !q.HasOption(id) {
				valid = false
				break
			}
		}
		if !valid {
			slog.Warn("skipping stale answer-key override", "question_id", q.ID)
			continue
		}
		correct := make(map[string]bool, len(ids))
		for _, id := range ids {
			correct[id] = true
		}
		options := make([]model.Option, len(q.Options))
		for j, o := range q.Options {
			o.Correct = correct[o.ID]
			options[j] = o
		}
		questions[i].Options = options
	}
	return questions, nil
}

func (s *Store) loadOverrides(ctx context.Context) (map[int64][]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT question_id, correct_ids FROM answer_overrides`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := make(map[int64][]string)
	for rows.Next() {
		var questionID int64
		var encoded string
		if err := rows.Scan(&questionID, &encoded); err != nil {
			return nil, err
		}
		var ids []string
		if err := json.Unmarshal([]byte(encoded), &ids); err != nil {
			return nil, fmt.Errorf("%w: question %d: %v", ErrInvalidModification, questionID, err)
		}
		overrides[questionID] = ids
	}
	return overrides, rows.Err()
}
