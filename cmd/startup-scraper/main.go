package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/dewanshDT/startup-scraper/internal/config"
	"github.com/dewanshDT/startup-scraper/pkg/checkpoint"
	"github.com/dewanshDT/startup-scraper/pkg/logging"
	"github.com/dewanshDT/startup-scraper/pkg/metrics"
	"github.com/dewanshDT/startup-scraper/pkg/pipeline"
	"github.com/google/uuid"
	_ "github.com/joho/godotenv/autoload"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const version = "1.0.0"

// options holds command-line overrides. Only flags the user set are applied.
type options struct {
	configPath         string
	dataDir            string
	regions            []string
	allRegions         bool
	rateLimitDelay     float64
	retryAttempts      int
	checkpointInterval int
	logLevel           string
	pretty             bool
	logFile            string
	metricsAddr        string
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The first signal lets the current startup finish; a second one kills
	// the process with the default handler.
	go func() {
		<-ctx.Done()
		stop()
	}()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "startup-scraper",
		Short: "Scrape the startup registry into a resumable JSON dataset",
		Long: `startup-scraper harvests startup references from the registry listing,
enriches each one with its profile and registration details, and writes the
merged records to startups_data.json in the data directory.

Runs are resumable: the reference set and a progress marker are checkpointed
next to the output, and an interrupted run continues where it stopped.

Running without a subcommand is the same as "startup-scraper run".`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, opts)
		},
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "config file (.json, .yaml); defaults to ./config.json when present")
	pf.StringVar(&opts.dataDir, "data-dir", "", "directory for checkpoints and output")
	pf.StringVar(&opts.logLevel, "log-level", "", "log level (debug, info, warn, error)")
	pf.BoolVar(&opts.pretty, "pretty", false, "human-readable console logs")
	pf.StringVar(&opts.logFile, "log-file", "", "also append JSON logs to this file (empty disables)")

	addRunFlags(root, opts)

	runCmd := &cobra.Command{
		Use:   "run",
		Short: "Harvest and enrich startups, resuming from checkpoints",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScrape(cmd, opts)
		},
	}
	addRunFlags(runCmd, opts)

	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the checkpoint state of the data directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return showStatus(cmd, opts)
		},
	}

	resetCmd := &cobra.Command{
		Use:   "reset",
		Short: "Remove checkpoints and output to force a fresh run",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return resetCheckpoints(cmd, opts)
		},
	}

	root.AddCommand(runCmd, statusCmd, resetCmd)
	return root
}

func addRunFlags(cmd *cobra.Command, opts *options) {
	f := cmd.Flags()
	f.StringSliceVar(&opts.regions, "region", nil, "region (state) id to scrape; repeatable")
	f.BoolVar(&opts.allRegions, "all-regions", false, "scrape every region")
	f.Float64Var(&opts.rateLimitDelay, "rate-limit-delay", 0, "seconds between requests")
	f.IntVar(&opts.retryAttempts, "retry-attempts", 0, "retries per request after the first attempt")
	f.IntVar(&opts.checkpointInterval, "checkpoint-interval", 0, "references between checkpoints")
	f.StringVar(&opts.metricsAddr, "metrics-addr", "", "serve Prometheus metrics on this address, e.g. :9090")
}

// loadConfig resolves the configuration and applies the flags that were set.
func loadConfig(cmd *cobra.Command, opts *options) (config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return config.Config{}, err
	}

	changed := func(name string) bool {
		f := cmd.Flag(name)
		return f != nil && f.Changed
	}

	if changed("data-dir") {
		cfg.DataDir = opts.dataDir
	}
	if changed("log-level") {
		cfg.LogLevel = opts.logLevel
	}
	if changed("pretty") {
		cfg.Pretty = opts.pretty
	}
	if changed("log-file") {
		cfg.LogFile = opts.logFile
	}
	if changed("region") {
		cfg.States = opts.regions
		cfg.ScrapeAllStates = false
	}
	if changed("all-regions") {
		cfg.ScrapeAllStates = opts.allRegions
	}
	if changed("rate-limit-delay") {
		cfg.RateLimitDelay = opts.rateLimitDelay
	}
	if changed("retry-attempts") {
		cfg.RetryAttempts = opts.retryAttempts
	}
	if changed("checkpoint-interval") {
		cfg.CheckpointInterval = opts.checkpointInterval
	}
	if changed("metrics-addr") {
		cfg.MetricsAddr = opts.metricsAddr
	}

	if err := cfg.Validate(); err != nil {
		return config.Config{}, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func runScrape(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	logCfg := cfg.Logging()
	logCfg.Output = cmd.ErrOrStderr()
	logger, closeLog, err := logging.Setup(logCfg)
	if err != nil {
		return err
	}
	defer closeLog()

	runID := uuid.NewString()
	logger = logging.WithRunID(logger, runID)
	logger.Info().
		Str("version", version).
		Strs("regions", cfg.Regions()).
		Str("data_dir", cfg.DataDir).
		Float64("rate_limit_delay", cfg.RateLimitDelay).
		Int("checkpoint_interval", cfg.CheckpointInterval).
		Msg("Starting startup scraper")

	if cfg.MetricsAddr != "" {
		srv, err := metrics.Start(cfg.MetricsAddr, logger)
		if err != nil {
			return err
		}
		defer func() {
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			srv.Shutdown(ctx)
		}()
	}

	p, err := pipeline.Build(cfg.Pipeline(runID), logger)
	if err != nil {
		return err
	}
	defer p.Close()

	summary, err := p.Run(cmd.Context())
	if err != nil {
		if errors.Is(err, pipeline.ErrNoReferences) {
			return fmt.Errorf("scrape aborted: %w", err)
		}
		return err
	}

	printSummary(cmd.OutOrStdout(), summary)
	return nil
}

func printSummary(w io.Writer, s *pipeline.Summary) {
	if s.Interrupted {
		fmt.Fprintln(w, "Scraping interrupted. Progress has been saved; run again to resume.")
	}
	fmt.Fprintf(w, "References:            %d\n", s.References)
	fmt.Fprintf(w, "Startups processed:    %d\n", s.Records)
	fmt.Fprintf(w, "Skipped:               %d\n", s.Skipped)
	fmt.Fprintf(w, "With registration id:  %d\n", s.WithRegistrationID)
	fmt.Fprintf(w, "With email:            %d\n", s.WithEmail)
	fmt.Fprintf(w, "With phone:            %d\n", s.WithPhone)
	fmt.Fprintf(w, "Elapsed:               %s\n", s.Elapsed.Round(time.Millisecond))
	fmt.Fprintf(w, "Output:                %s\n", absPath(s.OutputPath))
}

func showStatus(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	store, err := checkpoint.NewStore(cfg.DataDir, zerolog.Nop())
	if err != nil {
		return err
	}
	st, err := store.Status()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Data directory:  %s\n", absPath(store.Dir()))

	if st.HasReferences {
		fmt.Fprintf(w, "References:      %d\n", st.References)
	} else {
		fmt.Fprintln(w, "References:      not harvested")
	}

	if st.HasRecords {
		fmt.Fprintf(w, "Records:         %d\n", st.Records)
	} else {
		fmt.Fprintln(w, "Records:         none")
	}

	if p := st.Progress; p != nil {
		fmt.Fprintf(w, "Progress:        %d/%d processed", p.ProcessedCount, st.References)
		if id := p.LastID(); id != "" {
			fmt.Fprintf(w, ", last id %s", id)
		}
		if p.Timestamp != "" {
			fmt.Fprintf(w, ", saved %s", p.Timestamp)
		}
		fmt.Fprintln(w)
	} else {
		fmt.Fprintln(w, "Progress:        not started")
	}

	return nil
}

func resetCheckpoints(cmd *cobra.Command, opts *options) error {
	cfg, err := loadConfig(cmd, opts)
	if err != nil {
		return err
	}

	store, err := checkpoint.NewStore(cfg.DataDir, zerolog.Nop())
	if err != nil {
		return err
	}
	removed, err := store.Reset()
	if err != nil {
		return err
	}

	w := cmd.OutOrStdout()
	if len(removed) == 0 {
		fmt.Fprintln(w, "Nothing to reset")
		return nil
	}
	for _, path := range removed {
		fmt.Fprintf(w, "Removed %s\n", path)
	}
	return nil
}

func absPath(path string) string {
	if abs, err := filepath.Abs(path); err == nil {
		return abs
	}
	return path
}
