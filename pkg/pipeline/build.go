package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/dewanshDT/startup-scraper/pkg/checkpoint"
	"github.com/dewanshDT/startup-scraper/pkg/client"
	"github.com/dewanshDT/startup-scraper/pkg/enrich"
	"github.com/dewanshDT/startup-scraper/pkg/pagination"
	"github.com/dewanshDT/startup-scraper/pkg/ratelimit"
	"github.com/dewanshDT/startup-scraper/pkg/registry"
	"github.com/rs/zerolog"
)

// Config wires a complete pipeline.
type Config struct {
	Endpoints registry.Endpoints

	// Regions restricts the listing to these region ids. Empty means all.
	Regions []string

	// DataDir holds the checkpoint artifacts.
	DataDir string

	UserAgent      string
	RequestTimeout time.Duration
	RateLimitDelay time.Duration
	Retry          client.RetryPolicy

	CheckpointInterval int
	RunID              string
}

// Build constructs the client, pacer, store and both phases from cfg. Call
// Close on the returned pipeline to release the HTTP client.
func Build(cfg Config, logger zerolog.Logger) (*Pipeline, error) {
	store, err := checkpoint.NewStore(cfg.DataDir, logger)
	if err != nil {
		return nil, err
	}

	clientCfg := client.DefaultConfig(cfg.UserAgent)
	clientCfg.Retry = cfg.Retry
	clientCfg.Pacer = ratelimit.NewPacer(cfg.RateLimitDelay, logger)
	if cfg.RequestTimeout > 0 {
		clientCfg.Timeout = cfg.RequestTimeout
	}

	httpClient, err := client.New(clientCfg, logger)
	if err != nil {
		return nil, fmt.Errorf("create client: %w", err)
	}

	api := registry.NewAPI(httpClient, cfg.Endpoints, logger)
	filter := registry.NewSearchFilter(cfg.Regions)

	harvester := pagination.NewHarvester(
		pagination.PageFetcherFunc(func(ctx context.Context, page int) (*registry.ListingPage, error) {
			return api.SearchPage(ctx, filter, page)
		}),
		store,
		pagination.DefaultConfig(),
		logger,
	)

	enricher, err := enrich.New(api, store, enrich.Config{
		CheckpointInterval: cfg.CheckpointInterval,
		RunID:              cfg.RunID,
	}, logger)
	if err != nil {
		httpClient.Close()
		return nil, err
	}

	p := New(harvester, enricher, store.RecordsPath(), logger)
	p.closer = httpClient.Close
	return p, nil
}
