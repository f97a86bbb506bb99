package pagination

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/dewanshDT/startup-scraper/pkg/checkpoint"
	"github.com/dewanshDT/startup-scraper/pkg/registry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

// ErrBootstrap indicates page 0 of the listing could not be fetched.
var ErrBootstrap = errors.New("listing bootstrap failed")

var (
	pagesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "scraper_listing_pages_total",
		Help: "Total listing pages processed by result",
	}, []string{"result"}) // "ok", "failed", "empty"

	referencesHarvested = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "scraper_listing_references",
		Help: "References collected by the last harvest",
	})
)

// Config holds harvester configuration.
type Config struct {
	// ProgressEvery logs progress every N fetched pages. The last page is
	// always logged.
	ProgressEvery int
}

// DefaultConfig returns the default harvester configuration.
func DefaultConfig() Config {
	return Config{
		ProgressEvery: 1,
	}
}

// PageFetcher fetches a single listing page.
type PageFetcher interface {
	FetchPage(ctx context.Context, page int) (*registry.ListingPage, error)
}

// PageFetcherFunc adapts a function to PageFetcher.
type PageFetcherFunc func(ctx context.Context, page int) (*registry.ListingPage, error)

// FetchPage calls f(ctx, page).
func (f PageFetcherFunc) FetchPage(ctx context.Context, page int) (*registry.ListingPage, error) {
	return f(ctx, page)
}

// ReferenceStore persists the harvested reference set.
type ReferenceStore interface {
	LoadReferences() ([]registry.Reference, error)
	SaveReferences(refs []registry.Reference) error
}

// Harvester walks the listing pages and collects references.
type Harvester struct {
	fetcher  PageFetcher
	store    ReferenceStore
	config   Config
	progress *rate.Sometimes
	logger   zerolog.Logger
}

// NewHarvester creates a new harvester.
func NewHarvester(fetcher PageFetcher, store ReferenceStore, config Config, logger zerolog.Logger) *Harvester {
	if config.ProgressEvery <= 0 {
		config.ProgressEvery = 1
	}

	return &Harvester{
		fetcher:  fetcher,
		store:    store,
		config:   config,
		progress: &rate.Sometimes{First: 1, Every: config.ProgressEvery},
		logger:   logger.With().Str("component", "harvester").Logger(),
	}
}

// Harvest returns the ordered reference set, loading it from the store when
// one was saved and otherwise fetching every listing page.
func (h *Harvester) Harvest(ctx context.Context) ([]registry.Reference, error) {
	refs, err := h.store.LoadReferences()
	switch {
	case err == nil:
		h.logger.Info().
			Int("references", len(refs)).
			Msg("Loaded references from checkpoint")
		referencesHarvested.Set(float64(len(refs)))
		return refs, nil
	case !errors.Is(err, checkpoint.ErrNotFound):
		return nil, fmt.Errorf("load references: %w", err)
	}

	start := time.Now()

	first, err := h.fetch(ctx, 0)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		pagesTotal.WithLabelValues("failed").Inc()
		h.logger.Error().Err(err).Msg("Failed to fetch first listing page, aborting")
		return []registry.Reference{}, fmt.Errorf("%w: %w", ErrBootstrap, err)
	}

	totalPages := first.TotalPages
	h.logger.Info().
		Int("total_pages", totalPages).
		Int("total_elements", first.TotalElements).
		Msg("Starting listing harvest")

	refs = append([]registry.Reference{}, first.References()...)
	h.pageDone(0, totalPages, len(first.Content), len(refs))

	for page := 1; page < totalPages && len(first.Content) > 0; page++ {
		if err := ctx.Err(); err != nil {
			return nil, h.interrupted(err, page, len(refs))
		}

		result, err := h.fetch(ctx, page)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, h.interrupted(ctxErr, page, len(refs))
			}
			pagesTotal.WithLabelValues("failed").Inc()
			h.logger.Warn().
				Err(err).
				Int("page", page).
				Msg("Skipping listing page due to error")
			continue
		}

		if len(result.Content) == 0 {
			pagesTotal.WithLabelValues("empty").Inc()
			h.logger.Info().
				Int("page", page).
				Int("total_pages", totalPages).
				Msg("Listing page empty, ending harvest early")
			break
		}

		refs = append(refs, result.References()...)
		h.pageDone(page, totalPages, len(result.Content), len(refs))
	}

	referencesHarvested.Set(float64(len(refs)))

	if len(refs) == 0 {
		h.logger.Warn().Msg("Listing harvest produced no references")
		return refs, nil
	}

	if err := h.store.SaveReferences(refs); err != nil {
		return nil, fmt.Errorf("save references: %w", err)
	}

	h.logger.Info().
		Int("references", len(refs)).
		Dur("duration", time.Since(start)).
		Msg("Listing harvest complete")

	return refs, nil
}

func (h *Harvester) fetch(ctx context.Context, page int) (*registry.ListingPage, error) {
	result, err := h.fetcher.FetchPage(ctx, page)
	if err != nil {
		return nil, err
	}
	if result == nil {
		return nil, fmt.Errorf("page %d: empty response", page)
	}
	return result, nil
}

func (h *Harvester) pageDone(page, totalPages, items, collected int) {
	if items > 0 {
		pagesTotal.WithLabelValues("ok").Inc()
	} else {
		pagesTotal.WithLabelValues("empty").Inc()
	}

	logged := false
	log := func() {
		logged = true
		h.logger.Info().
			Int("page", page).
			Int("last_page", totalPages-1).
			Int("references", collected).
			Msgf("Fetched page %d/%d: %d references so far", page, totalPages-1, collected)
	}

	h.progress.Do(log)
	if !logged && page == totalPages-1 {
		log()
	}
}

func (h *Harvester) interrupted(err error, page, collected int) error {
	h.logger.Warn().
		Int("page", page).
		Int("references", collected).
		Msg("Listing harvest interrupted, reference set not saved")
	return fmt.Errorf("harvest interrupted at page %d: %w", page, err)
}
