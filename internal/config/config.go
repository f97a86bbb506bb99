// Package config loads the scraper configuration.
//
// Values are resolved in order: built-in defaults, an optional JSON or YAML
// file, then SCRAPER_* environment variables. Command-line flags are applied
// by the caller on top of the result.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/dewanshDT/startup-scraper/pkg/client"
	"github.com/dewanshDT/startup-scraper/pkg/logging"
	"github.com/dewanshDT/startup-scraper/pkg/pipeline"
	"github.com/dewanshDT/startup-scraper/pkg/registry"
	"gopkg.in/yaml.v3"
)

// DefaultPath is read when no config file is given and it exists.
const DefaultPath = "config.json"

// EnvPrefix prefixes every environment override.
const EnvPrefix = "SCRAPER_"

// Defaults matching the registry's public endpoints.
const (
	DefaultListingAPIURL = "https://api.startupindia.gov.in/sih/api/noauth/search/profiles"
	DefaultDetailsAPIURL = "https://api.startupindia.gov.in/sih/api/common/replica/user/profile/"
	DefaultCINAPIURL     = "https://api.startupindia.gov.in/sih/api/noauth/dpiit/services/cin/info"

	// DefaultStateID is Chhattisgarh.
	DefaultStateID = "5f48ce592a9bb065cdf9fb25"

	DefaultUserAgent = "startup-scraper/1.0 (+https://github.com/dewanshDT/startup-scraper)"
)

// Config aggregates the scraper configuration. Durations are in seconds to
// stay compatible with existing config.json files.
type Config struct {
	ListingAPIURL string `json:"listing_api_url" yaml:"listing_api_url"`
	DetailsAPIURL string `json:"details_api_url" yaml:"details_api_url"`
	CINAPIURL     string `json:"cin_api_url" yaml:"cin_api_url"`

	StateID         string   `json:"state_id" yaml:"state_id"`
	States          []string `json:"states" yaml:"states"`
	ScrapeAllStates bool     `json:"scrape_all_states" yaml:"scrape_all_states"`

	RateLimitDelay     float64 `json:"rate_limit_delay" yaml:"rate_limit_delay"`
	RetryAttempts      int     `json:"retry_attempts" yaml:"retry_attempts"`
	RetryBackoff       float64 `json:"retry_backoff" yaml:"retry_backoff"`
	RetryBaseDelay     float64 `json:"retry_base_delay" yaml:"retry_base_delay"`
	RequestTimeout     float64 `json:"request_timeout" yaml:"request_timeout"`
	CheckpointInterval int     `json:"checkpoint_interval" yaml:"checkpoint_interval"`

	UserAgent   string `json:"user_agent" yaml:"user_agent"`
	DataDir     string `json:"data_dir" yaml:"data_dir"`
	LogLevel    string `json:"log_level" yaml:"log_level"`
	LogFile     string `json:"log_file" yaml:"log_file"`
	Pretty      bool   `json:"pretty" yaml:"pretty"`
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		ListingAPIURL:      DefaultListingAPIURL,
		DetailsAPIURL:      DefaultDetailsAPIURL,
		CINAPIURL:          DefaultCINAPIURL,
		StateID:            DefaultStateID,
		RateLimitDelay:     0.5,
		RetryAttempts:      3,
		RetryBackoff:       2,
		RetryBaseDelay:     1,
		RequestTimeout:     30,
		CheckpointInterval: 50,
		UserAgent:          DefaultUserAgent,
		DataDir:            ".",
		LogLevel:           string(logging.LevelInfo),
		LogFile:            "scraper.log",
	}
}

// Load resolves the configuration from defaults, the file at path and the
// environment. An empty path reads DefaultPath when it exists.
func Load(path string) (Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultPath); err == nil {
			path = DefaultPath
		}
	}

	if path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return Config{}, err
		}
	}

	if err := cfg.applyEnv(os.LookupEnv); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("config file %s not found", path)
	}
	if err != nil {
		return fmt.Errorf("read config file: %w", err)
	}

	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
	case ".json", "":
		if err := json.Unmarshal(data, c); err != nil {
			return fmt.Errorf("parse config file %s: %w", path, err)
		}
	default:
		return fmt.Errorf("unsupported config file extension %q", ext)
	}

	return nil
}

// applyEnv overrides fields from SCRAPER_* variables found through lookup.
func (c *Config) applyEnv(lookup func(string) (string, bool)) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(EnvPrefix + key)
		if !ok || strings.TrimSpace(v) == "" {
			return "", false
		}
		return strings.TrimSpace(v), true
	}

	strs := map[string]*string{
		"LISTING_API_URL": &c.ListingAPIURL,
		"DETAILS_API_URL": &c.DetailsAPIURL,
		"CIN_API_URL":     &c.CINAPIURL,
		"STATE_ID":        &c.StateID,
		"USER_AGENT":      &c.UserAgent,
		"DATA_DIR":        &c.DataDir,
		"LOG_LEVEL":       &c.LogLevel,
		"LOG_FILE":        &c.LogFile,
		"METRICS_ADDR":    &c.MetricsAddr,
	}
	for key, dst := range strs {
		if v, ok := get(key); ok {
			*dst = v
		}
	}

	floats := map[string]*float64{
		"RATE_LIMIT_DELAY": &c.RateLimitDelay,
		"RETRY_BACKOFF":    &c.RetryBackoff,
		"RETRY_BASE_DELAY": &c.RetryBaseDelay,
		"REQUEST_TIMEOUT":  &c.RequestTimeout,
	}
	for key, dst := range floats {
		if v, ok := get(key); ok {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s%s value %q: %w", EnvPrefix, key, v, err)
			}
			*dst = f
		}
	}

	ints := map[string]*int{
		"RETRY_ATTEMPTS":      &c.RetryAttempts,
		"CHECKPOINT_INTERVAL": &c.CheckpointInterval,
	}
	for key, dst := range ints {
		if v, ok := get(key); ok {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s value %q: %w", EnvPrefix, key, v, err)
			}
			*dst = n
		}
	}

	bools := map[string]*bool{
		"SCRAPE_ALL_STATES": &c.ScrapeAllStates,
		"PRETTY":            &c.Pretty,
	}
	for key, dst := range bools {
		if v, ok := get(key); ok {
			b, err := strconv.ParseBool(v)
			if err != nil {
				return fmt.Errorf("invalid %s%s value %q: %w", EnvPrefix, key, v, err)
			}
			*dst = b
		}
	}

	if v, ok := get("STATES"); ok {
		c.States = splitList(v)
	}

	return nil
}

// Validate reports every invalid field.
func (c Config) Validate() error {
	var errs []error

	for name, raw := range map[string]string{
		"listing_api_url": c.ListingAPIURL,
		"details_api_url": c.DetailsAPIURL,
		"cin_api_url":     c.CINAPIURL,
	} {
		u, err := url.Parse(raw)
		if raw == "" || err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("%s must be an absolute URL (got %q)", name, raw))
		}
	}

	if c.RateLimitDelay < 0 {
		errs = append(errs, fmt.Errorf("rate_limit_delay must be >= 0 (got %v)", c.RateLimitDelay))
	}
	if c.RetryAttempts < 0 {
		errs = append(errs, fmt.Errorf("retry_attempts must be >= 0 (got %d)", c.RetryAttempts))
	}
	if c.RetryBackoff < 1 {
		errs = append(errs, fmt.Errorf("retry_backoff must be >= 1 (got %v)", c.RetryBackoff))
	}
	if c.RetryBaseDelay < 0 {
		errs = append(errs, fmt.Errorf("retry_base_delay must be >= 0 (got %v)", c.RetryBaseDelay))
	}
	if c.RequestTimeout <= 0 {
		errs = append(errs, fmt.Errorf("request_timeout must be > 0 (got %v)", c.RequestTimeout))
	}
	if c.CheckpointInterval < 1 {
		errs = append(errs, fmt.Errorf("checkpoint_interval must be >= 1 (got %d)", c.CheckpointInterval))
	}
	if c.UserAgent == "" {
		errs = append(errs, errors.New("user_agent is required"))
	}
	if !logging.ValidLevel(logging.LogLevel(c.LogLevel)) {
		errs = append(errs, fmt.Errorf("log_level %q is not one of debug, info, warn, error", c.LogLevel))
	}

	return errors.Join(errs...)
}

// Regions returns the region ids for the listing filter. Empty means all.
func (c Config) Regions() []string {
	if c.ScrapeAllStates {
		return []string{}
	}
	if len(c.States) > 0 {
		return append([]string{}, c.States...)
	}
	if c.StateID != "" {
		return []string{c.StateID}
	}
	return []string{}
}

// RetryPolicy converts the retry settings into a client policy.
func (c Config) RetryPolicy() client.RetryPolicy {
	policy := client.DefaultRetryPolicy()
	policy.MaxRetries = c.RetryAttempts
	policy.Multiplier = c.RetryBackoff
	policy.BaseDelay = seconds(c.RetryBaseDelay)
	return policy
}

// Pipeline builds the pipeline configuration for one run.
func (c Config) Pipeline(runID string) pipeline.Config {
	return pipeline.Config{
		Endpoints: registry.Endpoints{
			ListingURL:      c.ListingAPIURL,
			ProfileURL:      c.DetailsAPIURL,
			RegistrationURL: c.CINAPIURL,
		},
		Regions:            c.Regions(),
		DataDir:            c.DataDir,
		UserAgent:          c.UserAgent,
		RequestTimeout:     seconds(c.RequestTimeout),
		RateLimitDelay:     seconds(c.RateLimitDelay),
		Retry:              c.RetryPolicy(),
		CheckpointInterval: c.CheckpointInterval,
		RunID:              runID,
	}
}

// Logging builds the logger configuration.
func (c Config) Logging() logging.Config {
	cfg := logging.DefaultConfig()
	cfg.Level = logging.LogLevel(c.LogLevel)
	cfg.Pretty = c.Pretty
	cfg.File = c.LogFile
	return cfg
}

func seconds(s float64) time.Duration {
	return time.Duration(s * float64(time.Second))
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
