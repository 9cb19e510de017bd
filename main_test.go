package main

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func TestConfigPath(t *testing.T) {
	if got := configPath(nil); got != defaultConfigFile {
		t.Errorf("configPath(nil) = %q, want %q", got, defaultConfigFile)
	}
	if got := configPath([]string{"other.yml"}); got != "other.yml" {
		t.Errorf("configPath = %q, want other.yml", got)
	}
}

// TestRunDryRun drives the whole pipeline over a small on-disk dump with the
// mock sender.
func TestRunDryRun(t *testing.T) {
	dumpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dumpDir, "users.json"),
		[]byte(`[{"id": "U1", "name": "alice"}]`), 0o600); err != nil {
		t.Fatal(err)
	}
	channelDir := filepath.Join(dumpDir, "_jobs")
	if err := os.Mkdir(channelDir, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(channelDir, "2021-01-01.json"), []byte(`[
		{"user": "U1", "user_profile": {"real_name": "Alice A"}, "text": "hiring, ping <@U1>",
		 "ts": "1", "reply_count": 1, "reactions": [{"name": "+1"}], "replies": []}
	]`), 0o600); err != nil {
		t.Fatal(err)
	}

	configFile := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(configFile, []byte(`
data:
  path_to_dump: `+dumpDir+`
  channel: _jobs
telegram:
  chat_id: "1"
relay:
  mode: paced
  pace: 1ms
`), 0o600); err != nil {
		t.Fatal(err)
	}

	dryRun = true
	defer func() { dryRun = false }()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if err := run(context.Background(), configFile, logger); err != nil {
		t.Fatalf("run() error: %v", err)
	}
}

// TestRunMissingDump verifies that input-stage failures abort the run.
func TestRunMissingDump(t *testing.T) {
	configFile := filepath.Join(t.TempDir(), "config.yml")
	if err := os.WriteFile(configFile, []byte(`
data:
  path_to_dump: /nonexistent/dump
  channel: _jobs
telegram:
  chat_id: "1"
`), 0o600); err != nil {
		t.Fatal(err)
	}

	dryRun = true
	defer func() { dryRun = false }()

	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
	if err := run(context.Background(), configFile, logger); err == nil {
		t.Fatal("run() should fail when the dump is missing")
	}
}
