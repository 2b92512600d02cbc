package model

import "time"

// HistoryExport is the top-level JSON structure for exam history export.
type HistoryExport struct {
	ExportedAt time.Time       `json:"exported_at"`
	Count      int             `json:"count"`
	Records    []HistoryRecord `json:"records"`
}
