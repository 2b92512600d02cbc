package store

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/certdrill/certdrill/internal/model"
)

// historyRetention caps the history log. The oldest records are evicted
// at insert time, never lazily on read.
const historyRetention = 50

// AppendHistory stores a completed exam session's snapshot. Appending
// the same session id again replaces the record, so retries are safe.
// It satisfies the session package's history log.
func (s *Store) AppendHistory(ctx context.Context, rec model.HistoryRecord) error {
	encoded, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("encode history record: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO history (session_id, created_at, record) VALUES (?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET record = ?`,
		rec.SessionID, rec.Date, string(encoded), string(encoded),
	)
	if err != nil {
		return err
	}

	_, err = tx.ExecContext(ctx,
		`DELETE FROM history WHERE session_id NOT IN (
			SELECT session_id FROM history ORDER BY created_at DESC, rowid DESC LIMIT ?
		)`, historyRetention,
	)
	if err != nil {
		return err
	}
	return tx.Commit()
}

// ListHistory returns the recorded exam sessions, newest first.
func (s *Store) ListHistory(ctx context.Context) ([]model.HistoryRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT record FROM history ORDER BY created_at DESC, rowid DESC`,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []model.HistoryRecord
	for rows.Next() {
		var encoded string
		if err := rows.Scan(&encoded); err != nil {
			return nil, err
		}
		var rec model.HistoryRecord
		if err := json.Unmarshal([]byte(encoded), &rec); err != nil {
			return nil, fmt.Errorf("decode history record: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}
