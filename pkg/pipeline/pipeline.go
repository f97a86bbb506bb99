// Package pipeline sequences a scraping run: harvest the listing into a
// reference set, enrich every reference into a record, and summarize.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/dewanshDT/startup-scraper/pkg/enrich"
	"github.com/dewanshDT/startup-scraper/pkg/registry"
	"github.com/rs/zerolog"
)

// ErrNoReferences indicates the harvest produced nothing to enrich.
var ErrNoReferences = errors.New("no startup references harvested")

// Harvester produces the ordered reference set.
type Harvester interface {
	Harvest(ctx context.Context) ([]registry.Reference, error)
}

// Enricher turns references into records.
type Enricher interface {
	Run(ctx context.Context, refs []registry.Reference) (*enrich.Result, error)
}

// Summary describes a completed (or interrupted) run.
type Summary struct {
	References         int
	Records            int
	Skipped            int
	Resumed            int
	WithRegistrationID int
	WithEmail          int
	WithPhone          int
	Elapsed            time.Duration
	Interrupted        bool
	OutputPath         string
}

// Pipeline runs the two scraping phases in order.
type Pipeline struct {
	harvester  Harvester
	enricher   Enricher
	outputPath string
	logger     zerolog.Logger
	now        func() time.Time
	closer     func() error
}

// New creates a pipeline from its phases. outputPath is only reported.
func New(harvester Harvester, enricher Enricher, outputPath string, logger zerolog.Logger) *Pipeline {
	return &Pipeline{
		harvester:  harvester,
		enricher:   enricher,
		outputPath: outputPath,
		logger:     logger.With().Str("component", "pipeline").Logger(),
		now:        time.Now,
	}
}

// Run executes the pipeline. An interrupted run returns a summary with
// Interrupted set and no error; the last checkpoint is the resumable state.
func (p *Pipeline) Run(ctx context.Context) (*Summary, error) {
	start := p.now()
	summary := &Summary{OutputPath: p.outputPath}
	defer func() {
		summary.Elapsed = p.now().Sub(start)
	}()

	p.logger.Info().Msg("Phase 1: Fetching all startup IDs")

	refs, err := p.harvester.Harvest(ctx)
	if err != nil {
		if ctx.Err() != nil {
			summary.Interrupted = true
			p.logger.Warn().Msg("Scraping interrupted during listing harvest, reference set not saved")
			return summary, nil
		}
		p.logger.Error().Err(err).Msg("Listing harvest failed, aborting")
		return summary, fmt.Errorf("%w: %w", ErrNoReferences, err)
	}

	summary.References = len(refs)
	if len(refs) == 0 {
		p.logger.Error().Msg("No startup IDs found, exiting")
		return summary, ErrNoReferences
	}

	p.logger.Info().
		Int("references", len(refs)).
		Msg("Phase 2 & 3: Fetching detailed information and contact details")

	result, err := p.enricher.Run(ctx, refs)
	if err != nil {
		p.logger.Error().Err(err).Msg("Enrichment failed")
		return summary, fmt.Errorf("enrich: %w", err)
	}

	summary.Records = len(result.Records)
	summary.Skipped = result.Skipped
	summary.Resumed = result.Resumed
	summary.Interrupted = result.Interrupted
	for _, r := range result.Records {
		if r.HasRegistrationID() {
			summary.WithRegistrationID++
		}
		if r.HasEmail() {
			summary.WithEmail++
		}
		if r.HasPhone() {
			summary.WithPhone++
		}
	}

	p.report(summary, p.now().Sub(start))
	return summary, nil
}

// Close releases resources acquired by Build.
func (p *Pipeline) Close() error {
	if p.closer == nil {
		return nil
	}
	return p.closer()
}

func (p *Pipeline) report(s *Summary, elapsed time.Duration) {
	outputPath := s.OutputPath
	if abs, err := filepath.Abs(outputPath); err == nil && outputPath != "" {
		outputPath = abs
	}

	if s.Interrupted {
		p.logger.Warn().
			Int("records", s.Records).
			Msg("Scraping interrupted by user. Progress has been saved.")
	}

	p.logger.Info().
		Int("references", s.References).
		Int("records", s.Records).
		Int("skipped", s.Skipped).
		Int("resumed_at", s.Resumed).
		Int("with_registration_id", s.WithRegistrationID).
		Int("with_email", s.WithEmail).
		Int("with_phone", s.WithPhone).
		Dur("elapsed", elapsed).
		Str("output", outputPath).
		Msgf("Scraping finished: %d startups processed", s.Records)
}
