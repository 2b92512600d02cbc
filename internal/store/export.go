package store

import (
	"context"
	"fmt"
	"time"

	"github.com/certdrill/certdrill/internal/model"
)

// ExportHistory builds an export-ready snapshot of the exam history log.
func (s *Store) ExportHistory(ctx context.Context) (model.HistoryExport, error) {
	records, err := s.ListHistory(ctx)
	if err != nil {
		return model.HistoryExport{}, fmt.Errorf("list history: %w", err)
	}
	return model.HistoryExport{
		ExportedAt: time.Now(),
		Count:      len(records),
		Records:    records,
	}, nil
}
