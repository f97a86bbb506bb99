package checkpoint

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dewanshDT/startup-scraper/pkg/registry"
	"github.com/rs/zerolog"
)

// Artifact file names inside the data directory.
const (
	ReferencesFile = "checkpoint_ids.json"
	RecordsFile    = "startups_data.json"
	ProgressFile   = "progress.json"
)

const (
	artifactReferences = "references"
	artifactRecords    = "records"
	artifactProgress   = "progress"
)

var (
	// ErrNotFound indicates the requested artifact does not exist.
	ErrNotFound = errors.New("checkpoint artifact not found")

	// ErrCorrupt indicates an artifact exists but is not valid JSON.
	ErrCorrupt = errors.New("checkpoint artifact is corrupt")

	// ErrResumeMismatch indicates the output collection and the progress
	// marker disagree in a way that cannot be repaired.
	ErrResumeMismatch = errors.New("output collection does not match progress marker")
)

// Option configures a Store.
type Option func(*Store)

// WithClock sets the clock used to stamp progress markers.
func WithClock(now func() time.Time) Option {
	return func(s *Store) {
		s.now = now
	}
}

// Store reads and writes the checkpoint artifacts of one data directory.
type Store struct {
	dir    string
	now    func() time.Time
	logger zerolog.Logger
}

// NewStore creates a store rooted at dir, creating the directory if needed.
func NewStore(dir string, logger zerolog.Logger, opts ...Option) (*Store, error) {
	if dir == "" {
		dir = "."
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}

	s := &Store{
		dir:    dir,
		now:    time.Now,
		logger: logger.With().Str("component", "checkpoint").Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Dir returns the data directory.
func (s *Store) Dir() string { return s.dir }

// ReferencesPath returns the reference set path.
func (s *Store) ReferencesPath() string { return filepath.Join(s.dir, ReferencesFile) }

// RecordsPath returns the output collection path.
func (s *Store) RecordsPath() string { return filepath.Join(s.dir, RecordsFile) }

// ProgressPath returns the progress marker path.
func (s *Store) ProgressPath() string { return filepath.Join(s.dir, ProgressFile) }

// LoadReferences reads the reference set. Returns ErrNotFound if none was saved.
func (s *Store) LoadReferences() ([]registry.Reference, error) {
	var refs []registry.Reference
	if err := s.readJSON(s.ReferencesPath(), &refs); err != nil {
		return nil, err
	}
	if refs == nil {
		refs = []registry.Reference{}
	}
	return refs, nil
}

// SaveReferences writes the reference set.
func (s *Store) SaveReferences(refs []registry.Reference) error {
	if refs == nil {
		refs = []registry.Reference{}
	}
	return s.writeJSON(s.ReferencesPath(), artifactReferences, refs)
}

// LoadRecords reads the output collection. Returns ErrNotFound if none was saved.
func (s *Store) LoadRecords() ([]registry.Record, error) {
	var records []registry.Record
	if err := s.readJSON(s.RecordsPath(), &records); err != nil {
		return nil, err
	}
	if records == nil {
		records = []registry.Record{}
	}
	return records, nil
}

// SaveRecords overwrites the output collection.
func (s *Store) SaveRecords(records []registry.Record) error {
	if records == nil {
		records = []registry.Record{}
	}
	return s.writeJSON(s.RecordsPath(), artifactRecords, records)
}

// LoadProgress reads the progress marker. Returns ErrNotFound if none was saved.
func (s *Store) LoadProgress() (Progress, error) {
	var p Progress
	if err := s.readJSON(s.ProgressPath(), &p); err != nil {
		return Progress{}, err
	}
	if p.ProcessedCount < 0 {
		return Progress{}, fmt.Errorf("%w: %s: negative processed_count", ErrCorrupt, s.ProgressPath())
	}
	return p, nil
}

// SaveProgress stamps and writes the progress marker.
func (s *Store) SaveProgress(p Progress) error {
	p.Timestamp = s.now().UTC().Format(time.RFC3339Nano)
	return s.writeJSON(s.ProgressPath(), artifactProgress, p)
}

// Reset removes all checkpoint artifacts and returns the paths it removed.
func (s *Store) Reset() ([]string, error) {
	var removed []string
	for _, path := range []string{s.ReferencesPath(), s.RecordsPath(), s.ProgressPath()} {
		err := os.Remove(path)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			ErrorsTotal.WithLabelValues("remove").Inc()
			return removed, fmt.Errorf("remove %s: %w", path, err)
		}
		removed = append(removed, path)
	}

	s.logger.Info().Strs("removed", removed).Msg("Checkpoint artifacts reset")
	return removed, nil
}

// Status summarizes the checkpoint artifacts on disk.
type Status struct {
	References    int
	HasReferences bool
	Records       int
	HasRecords    bool
	Progress      *Progress
}

// Status reads every artifact and reports what is present.
func (s *Store) Status() (Status, error) {
	var st Status

	refs, err := s.LoadReferences()
	switch {
	case err == nil:
		st.References, st.HasReferences = len(refs), true
	case !errors.Is(err, ErrNotFound):
		return st, err
	}

	records, err := s.LoadRecords()
	switch {
	case err == nil:
		st.Records, st.HasRecords = len(records), true
	case !errors.Is(err, ErrNotFound):
		return st, err
	}

	p, err := s.LoadProgress()
	switch {
	case err == nil:
		st.Progress = &p
	case !errors.Is(err, ErrNotFound):
		return st, err
	}

	return st, nil
}

func (s *Store) readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		ErrorsTotal.WithLabelValues("read").Inc()
		return fmt.Errorf("read %s: %w", path, err)
	}

	if err := json.Unmarshal(data, v); err != nil {
		ErrorsTotal.WithLabelValues("read").Inc()
		return fmt.Errorf("%w: %s: %v", ErrCorrupt, path, err)
	}
	return nil
}

// writeJSON replaces path atomically with the indented JSON encoding of v.
func (s *Store) writeJSON(path, artifact string, v any) error {
	tmp, err := os.CreateTemp(s.dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		ErrorsTotal.WithLabelValues("write").Inc()
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpPath := tmp.Name()

	fail := func(err error) error {
		tmp.Close()
		os.Remove(tmpPath)
		ErrorsTotal.WithLabelValues("write").Inc()
		return fmt.Errorf("write %s: %w", path, err)
	}

	enc := json.NewEncoder(tmp)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return fail(err)
	}
	if err := tmp.Sync(); err != nil {
		return fail(err)
	}

	info, err := tmp.Stat()
	if err != nil {
		return fail(err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		ErrorsTotal.WithLabelValues("write").Inc()
		return fmt.Errorf("write %s: %w", path, err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		ErrorsTotal.WithLabelValues("write").Inc()
		return fmt.Errorf("rename %s: %w", path, err)
	}

	WritesTotal.WithLabelValues(artifact).Inc()
	ArtifactBytes.WithLabelValues(artifact).Set(float64(info.Size()))

	s.logger.Debug().
		Str("artifact", artifact).
		Str("path", path).
		Int64("bytes", info.Size()).
		Msg("Checkpoint artifact written")

	return nil
}
