package checkpoint

import (
	"fmt"

	"github.com/dewanshDT/startup-scraper/pkg/registry"
)

// Progress is the enrichment progress marker.
type Progress struct {
	// ProcessedCount is the number of references consumed so far.
	ProcessedCount int `json:"processed_count"`

	// LastProcessedID is the id of the last consumed reference.
	LastProcessedID *string `json:"last_processed_id"`

	// RecordCount is the output collection length at the time of writing.
	// Absent in markers written by older runs.
	RecordCount *int `json:"record_count,omitempty"`

	// RunID identifies the run that wrote the marker.
	RunID string `json:"run_id,omitempty"`

	// Timestamp is when the marker was written. Kept as text so markers
	// with zone-less timestamps still load.
	Timestamp string `json:"timestamp,omitempty"`
}

// NewProgress builds a marker for processed references and recordCount records.
func NewProgress(processed int, lastID string, recordCount int, runID string) Progress {
	p := Progress{
		ProcessedCount: processed,
		RecordCount:    &recordCount,
		RunID:          runID,
	}
	if lastID != "" {
		p.LastProcessedID = &lastID
	}
	return p
}

// LastID returns the last processed id, or "" when unset.
func (p Progress) LastID() string {
	if p.LastProcessedID == nil {
		return ""
	}
	return *p.LastProcessedID
}

// Reconcile checks a loaded output collection against the marker and returns
// the collection to resume from.
func Reconcile(p Progress, records []registry.Record) ([]registry.Record, error) {
	if p.RecordCount == nil {
		return records, nil
	}

	want := *p.RecordCount
	switch {
	case want < 0:
		return nil, fmt.Errorf("%w: negative record_count %d", ErrResumeMismatch, want)
	case len(records) > want:
		return records[:want], nil
	case len(records) < want:
		return nil, fmt.Errorf("%w: progress expects %d records, output has %d",
			ErrResumeMismatch, want, len(records))
	}

	return records, nil
}
