package main

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dewanshDT/startup-scraper/internal/testutil"
	"github.com/dewanshDT/startup-scraper/pkg/checkpoint"
	"github.com/rs/zerolog"
)

// execute runs the CLI with args and returns what it printed to stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()

	var out bytes.Buffer
	root := newRootCmd()
	root.SetOut(&out)
	root.SetErr(io.Discard)
	root.SetArgs(args)

	err := root.Execute()
	return out.String(), err
}

func writeConfig(t *testing.T, mock *testutil.MockRegistry) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := fmt.Sprintf(`listing_api_url: %s
details_api_url: %s
cin_api_url: %s
rate_limit_delay: 0
retry_attempts: 0
request_timeout: 5
log_file: ""
`, mock.ListingURL(), mock.ProfileURL(), mock.RegistrationURL())

	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func seedRegistry(mock *testutil.MockRegistry) {
	mock.SetListing([]testutil.MockStartup{
		{ID: "A", Name: "Alpha"},
		{ID: "B", Name: "Beta"},
	}, 10)
	mock.SetProfile("A", testutil.NewOKResponse(testutil.ProfileJSON("A", "Alpha", "U-A")))
	mock.SetProfile("B", testutil.NewOKResponse(testutil.ProfileJSON("B", "Beta", "")))
	mock.SetRegistration("U-A", testutil.NewOKResponse(testutil.RegistrationJSON("hello@alpha.in", "9876543210")))
}

func TestRun_EndToEnd(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	seedRegistry(mock)

	configPath := writeConfig(t, mock)
	dataDir := t.TempDir()

	out, err := execute(t, "run",
		"--config", configPath,
		"--data-dir", dataDir,
		"--region", "r1", "--region", "r2",
		"--checkpoint-interval", "1",
		"--log-file", "",
	)
	if err != nil {
		t.Fatalf("run error = %v", err)
	}

	for _, want := range []string{
		"References:            2",
		"Startups processed:    2",
		"With registration id:  1",
		"With email:            1",
		filepath.Join(dataDir, checkpoint.RecordsFile),
	} {
		if !strings.Contains(out, want) {
			t.Errorf("output missing %q:\n%s", want, out)
		}
	}

	filters := mock.Filters()
	if len(filters) == 0 {
		t.Fatal("no listing requests recorded")
	}
	states, _ := filters[0]["states"].([]any)
	if len(states) != 2 || states[0] != "r1" || states[1] != "r2" {
		t.Errorf("states = %v, want [r1 r2]", filters[0]["states"])
	}

	store, err := checkpoint.NewStore(dataDir, zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}
	records, err := store.LoadRecords()
	if err != nil {
		t.Fatalf("LoadRecords() error = %v", err)
	}
	if len(records) != 2 {
		t.Errorf("len(records) = %d, want 2", len(records))
	}
}

func TestRun_DefaultCommand(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	seedRegistry(mock)

	out, err := execute(t,
		"--config", writeConfig(t, mock),
		"--data-dir", t.TempDir(),
		"--all-regions",
	)
	if err != nil {
		t.Fatalf("root command error = %v", err)
	}
	if !strings.Contains(out, "Startups processed:    2") {
		t.Errorf("output = %q, want a run summary", out)
	}

	states, _ := mock.Filters()[0]["states"].([]any)
	if len(states) != 0 {
		t.Errorf("states = %v, want none with --all-regions", states)
	}
}

func TestRun_NoReferences(t *testing.T) {
	mock := testutil.NewMockRegistry()
	defer mock.Close()
	mock.SetListingPage(0, testutil.NewServerErrorResponse())

	_, err := execute(t, "run",
		"--config", writeConfig(t, mock),
		"--data-dir", t.TempDir(),
	)
	if err == nil || !strings.Contains(err.Error(), "scrape aborted") {
		t.Errorf("run error = %v, want scrape aborted", err)
	}
}

func TestRun_InvalidFlags(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"zero interval", []string{"run", "--checkpoint-interval", "0"}, "checkpoint_interval"},
		{"negative delay", []string{"run", "--rate-limit-delay", "-1"}, "rate_limit_delay"},
		{"bad level", []string{"run", "--log-level", "loud"}, "log_level"},
		{"missing config", []string{"run", "--config", "does-not-exist.json"}, "does-not-exist.json"},
		{"unknown flag", []string{"run", "--nope"}, "unknown flag"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			args := append(tt.args, "--data-dir", t.TempDir())
			_, err := execute(t, args...)
			if err == nil {
				t.Fatal("expected error, got nil")
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestStatus(t *testing.T) {
	dataDir := t.TempDir()

	out, err := execute(t, "status", "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	for _, want := range []string{"References:      not harvested", "Records:         none", "Progress:        not started"} {
		if !strings.Contains(out, want) {
			t.Errorf("empty status missing %q:\n%s", want, out)
		}
	}

	mock := testutil.NewMockRegistry()
	defer mock.Close()
	seedRegistry(mock)
	if _, err := execute(t, "run", "--config", writeConfig(t, mock), "--data-dir", dataDir); err != nil {
		t.Fatalf("run error = %v", err)
	}

	out, err = execute(t, "status", "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("status error = %v", err)
	}
	for _, want := range []string{"References:      2", "Records:         2", "Progress:        2/2 processed, last id B"} {
		if !strings.Contains(out, want) {
			t.Errorf("status missing %q:\n%s", want, out)
		}
	}
}

func TestReset(t *testing.T) {
	dataDir := t.TempDir()

	out, err := execute(t, "reset", "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("reset error = %v", err)
	}
	if !strings.Contains(out, "Nothing to reset") {
		t.Errorf("output = %q, want Nothing to reset", out)
	}

	mock := testutil.NewMockRegistry()
	defer mock.Close()
	seedRegistry(mock)
	if _, err := execute(t, "run", "--config", writeConfig(t, mock), "--data-dir", dataDir); err != nil {
		t.Fatalf("run error = %v", err)
	}

	out, err = execute(t, "reset", "--data-dir", dataDir)
	if err != nil {
		t.Fatalf("reset error = %v", err)
	}
	for _, name := range []string{checkpoint.ReferencesFile, checkpoint.RecordsFile, checkpoint.ProgressFile} {
		if !strings.Contains(out, name) {
			t.Errorf("reset output missing %s:\n%s", name, out)
		}
		if _, err := os.Stat(filepath.Join(dataDir, name)); !os.IsNotExist(err) {
			t.Errorf("%s still exists after reset", name)
		}
	}
}
