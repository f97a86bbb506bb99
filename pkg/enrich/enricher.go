// Package enrich turns harvested references into normalized records.
//
// For each reference, in order, the enricher fetches the profile, looks up
// registration data when the profile carries a registration id, and appends
// the merged record to the output collection. The collection and the
// progress marker are checkpointed every CheckpointInterval references and
// once more when the walk ends. Cancellation stops the walk after the
// reference in progress, so an interrupted run resumes at the next one.
package enrich

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dewanshDT/startup-scraper/pkg/checkpoint"
	"github.com/dewanshDT/startup-scraper/pkg/client"
	"github.com/dewanshDT/startup-scraper/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
)

var (
	itemsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_items_total",
		Help: "Total references processed by result",
	}, []string{"result"}) // "enriched", "skipped"

	lookupsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_registration_lookups_total",
		Help: "Total registration lookups by result",
	}, []string{"result"}) // "found", "empty", "failed", "skipped"

	checkpointsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "scraper_checkpoints_total",
		Help: "Total enrichment checkpoints written",
	})

	progressGauge = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "scraper_enrich_progress",
		Help: "Enrichment progress in references",
	}, []string{"kind"}) // "processed", "total"
)

// Source fetches the per-reference data.
type Source interface {
	Profile(ctx context.Context, id string) (*registry.Profile, error)
	Registration(ctx context.Context, registrationID string) (*registry.RegistrationData, error)
}

// Store persists the output collection and the progress marker.
type Store interface {
	LoadProgress() (checkpoint.Progress, error)
	SaveProgress(p checkpoint.Progress) error
	LoadRecords() ([]registry.Record, error)
	SaveRecords(records []registry.Record) error
}

// Config holds enricher configuration.
type Config struct {
	// CheckpointInterval is the number of references between checkpoints.
	CheckpointInterval int

	// RunID is written into every progress marker.
	RunID string
}

// DefaultConfig returns the default enricher configuration.
func DefaultConfig() Config {
	return Config{CheckpointInterval: 50}
}

// Result describes one enrichment run.
type Result struct {
	// Records is the full output collection, including resumed records.
	Records []registry.Record

	// Total is the number of references.
	Total int

	// Resumed is the index the run started at.
	Resumed int

	// Processed is the number of references consumed, across runs.
	Processed int

	// Skipped counts references whose profile could not be fetched this run.
	Skipped int

	// Checkpoints counts collection persists this run.
	Checkpoints int

	// Interrupted is set when the context was cancelled before the walk ended.
	Interrupted bool
}

// Enricher walks references and builds the output collection.
type Enricher struct {
	source Source
	store  Store
	config Config
	logger zerolog.Logger
}

// New creates a new enricher.
func New(source Source, store Store, config Config, logger zerolog.Logger) (*Enricher, error) {
	if config.CheckpointInterval < 1 {
		return nil, fmt.Errorf("checkpoint interval must be >= 1 (got %d)", config.CheckpointInterval)
	}

	return &Enricher{
		source: source,
		store:  store,
		config: config,
		logger: logger.With().Str("component", "enricher").Logger(),
	}, nil
}

// Run enriches refs starting where the last progress marker left off.
//
// Cancelling ctx lets the reference in progress finish and stops the walk
// before the next one; the completed prefix is checkpointed and the result
// reports Interrupted. Errors are
// returned only for unusable resume state and failed writes.
func (e *Enricher) Run(ctx context.Context, refs []registry.Reference) (*Result, error) {
	start := time.Now()
	total := len(refs)

	records, startIndex, err := e.resume(total)
	if err != nil {
		return nil, err
	}

	result := &Result{
		Total:     total,
		Resumed:   startIndex,
		Processed: startIndex,
	}
	progressGauge.WithLabelValues("total").Set(float64(total))
	progressGauge.WithLabelValues("processed").Set(float64(startIndex))

	e.logger.Info().
		Int("total", total).
		Int("start_index", startIndex).
		Int("records", len(records)).
		Msg("Starting enrichment")

	saved := startIndex
	for i := startIndex; i < total; i++ {
		if ctx.Err() != nil {
			result.Interrupted = true
			break
		}

		ref := refs[i]
		e.logger.Info().
			Int("index", i+1).
			Int("total", total).
			Str("id", ref.ID).
			Str("name", ref.Name).
			Msgf("Processing %d/%d: %s (%s)", i+1, total, ref.Name, ref.ID)

		// The current item runs to completion even if ctx is cancelled
		// meanwhile; the loop stops before the next one.
		record, err := e.enrich(context.WithoutCancel(ctx), ref)
		if err != nil {
			itemsTotal.WithLabelValues("skipped").Inc()
			result.Skipped++
			event := e.logger.Warn()
			if !client.IsTransient(err) {
				event = e.logger.Error()
			}
			event.
				Err(err).
				Str("id", ref.ID).
				Str("name", ref.Name).
				Msg("Skipping reference, failed to fetch profile")
		} else {
			itemsTotal.WithLabelValues("enriched").Inc()
			records = append(records, record)
		}

		result.Processed = i + 1
		progressGauge.WithLabelValues("processed").Set(float64(result.Processed))

		if (i+1)%e.config.CheckpointInterval == 0 {
			if err := e.checkpoint(records, i+1, ref.ID); err != nil {
				return nil, err
			}
			saved = i + 1
			result.Checkpoints++
			e.logger.Info().
				Int("processed", i+1).
				Int("total", total).
				Int("records", len(records)).
				Msgf("Checkpoint saved at %d/%d", i+1, total)
		}
	}

	result.Records = records

	if result.Interrupted {
		if result.Processed > saved {
			if err := e.checkpoint(records, result.Processed, refs[result.Processed-1].ID); err != nil {
				return nil, err
			}
			result.Checkpoints++
		}
		e.logger.Warn().
			Int("processed", result.Processed).
			Int("total", total).
			Int("records", len(records)).
			Msg("Enrichment interrupted, progress saved")
		return result, nil
	}

	lastID := ""
	if total > 0 {
		lastID = refs[total-1].ID
	}
	if err := e.checkpoint(records, total, lastID); err != nil {
		return nil, err
	}
	result.Checkpoints++

	e.logger.Info().
		Int("records", len(records)).
		Int("skipped", result.Skipped).
		Dur("duration", time.Since(start)).
		Msgf("Enrichment complete: %d startups processed", len(records))

	return result, nil
}

// resume loads the progress marker and, when resuming, the output collection.
func (e *Enricher) resume(total int) ([]registry.Record, int, error) {
	progress, err := e.store.LoadProgress()
	if err != nil && !errors.Is(err, checkpoint.ErrNotFound) {
		return nil, 0, fmt.Errorf("load progress: %w", err)
	}

	startIndex := progress.ProcessedCount
	if startIndex == 0 {
		return []registry.Record{}, 0, nil
	}

	if startIndex > total {
		e.logger.Warn().
			Int("processed_count", startIndex).
			Int("total", total).
			Msg("Progress marker is past the reference set, clamping")
		startIndex = total
	}

	loaded, err := e.store.LoadRecords()
	switch {
	case errors.Is(err, checkpoint.ErrNotFound):
		loaded = []registry.Record{}
	case err != nil:
		return nil, 0, fmt.Errorf("load records: %w", err)
	}

	records, err := checkpoint.Reconcile(progress, loaded)
	if err != nil {
		return nil, 0, err
	}
	if len(records) < len(loaded) {
		e.logger.Warn().
			Int("loaded", len(loaded)).
			Int("kept", len(records)).
			Msg("Output collection ahead of progress marker, truncated")
	}

	e.logger.Info().
		Int("start_index", startIndex).
		Str("last_processed_id", progress.LastID()).
		Msgf("Resuming from startup %d", startIndex)

	return records, startIndex, nil
}

// enrich fetches and merges the data for one reference. An error means the
// profile fetch failed; registration failures only leave contact data unset.
func (e *Enricher) enrich(ctx context.Context, ref registry.Reference) (registry.Record, error) {
	profile, err := e.source.Profile(ctx, ref.ID)
	if err != nil {
		return registry.Record{}, err
	}

	registrationID, ok := profile.RegistrationID()
	if !ok {
		lookupsTotal.WithLabelValues("skipped").Inc()
		e.logger.Debug().Str("id", ref.ID).Msg("No registration id available")
		return registry.Normalize(profile, nil), nil
	}

	reg, err := e.source.Registration(ctx, registrationID)
	switch {
	case err != nil:
		lookupsTotal.WithLabelValues("failed").Inc()
		e.logger.Warn().
			Err(err).
			Str("id", ref.ID).
			Str("registration_id", registrationID).
			Msg("Registration lookup failed")
		reg = nil
	case reg == nil:
		lookupsTotal.WithLabelValues("empty").Inc()
		e.logger.Debug().
			Str("registration_id", registrationID).
			Msg("Registration details not available")
	default:
		lookupsTotal.WithLabelValues("found").Inc()
		e.logger.Debug().
			Str("registration_id", registrationID).
			Msg("Registration details retrieved")
	}

	return registry.Normalize(profile, reg), nil
}

// checkpoint writes the output collection, then the progress marker.
func (e *Enricher) checkpoint(records []registry.Record, processed int, lastID string) error {
	if err := e.store.SaveRecords(records); err != nil {
		return fmt.Errorf("save records: %w", err)
	}

	progress := checkpoint.NewProgress(processed, lastID, len(records), e.config.RunID)
	if err := e.store.SaveProgress(progress); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}

	checkpointsTotal.Inc()
	return nil
}
