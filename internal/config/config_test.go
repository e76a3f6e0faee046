package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestConfigYAMLRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()

	cfg := DefaultConfig()
	cfg.Backend.URL = "http://backend.internal:9000"
	cfg.Timeouts.Chat = 300

	if err := WriteConfig(tmpDir, cfg); err != nil {
		t.Fatalf("WriteConfig failed: %v", err)
	}

	loaded, err := ReadConfig(tmpDir)
	if err != nil {
		t.Fatalf("ReadConfig failed: %v", err)
	}

	if loaded.Backend.URL != "http://backend.internal:9000" {
		t.Errorf("Backend.URL: got %q", loaded.Backend.URL)
	}
	if loaded.Timeouts.Chat != 300 {
		t.Errorf("Timeouts.Chat: got %d, want 300", loaded.Timeouts.Chat)
	}
}

func TestReadOrDefaultMissingFile(t *testing.T) {
	cfg, err := ReadOrDefault(t.TempDir())
	if err != nil {
		t.Fatalf("ReadOrDefault failed: %v", err)
	}
	if cfg.Backend.URL != "http://localhost:8000" {
		t.Errorf("default backend URL: got %q", cfg.Backend.URL)
	}
}

func TestReadOrDefaultMalformedFile(t *testing.T) {
	tmpDir := t.TempDir()
	dir := filepath.Join(tmpDir, ".provet")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("{not yaml"), 0644); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	if _, err := ReadOrDefault(tmpDir); err == nil {
		t.Fatal("malformed config must not silently fall back to defaults")
	}
}

func TestAPITimeouts(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Timeouts.Upload = 90
	cfg.Timeouts.Status = 0 // zero falls through to the client default

	got := cfg.APITimeouts()
	if got.Upload != 90*time.Second {
		t.Errorf("Upload: got %v, want 90s", got.Upload)
	}
	if got.Status != 0 {
		t.Errorf("Status: got %v, want zero (client default)", got.Status)
	}
}

func TestHistoryPath(t *testing.T) {
	cfg := DefaultConfig()

	got := cfg.HistoryPath("/work")
	want := filepath.Join("/work", ".provet", "history.db")
	if got != want {
		t.Errorf("relative path: got %q, want %q", got, want)
	}

	cfg.History.Path = "/var/lib/provet/history.db"
	if got := cfg.HistoryPath("/work"); got != cfg.History.Path {
		t.Errorf("absolute path: got %q", got)
	}

	cfg.History.Enabled = false
	if got := cfg.HistoryPath("/work"); got != "" {
		t.Errorf("disabled history: got %q, want empty", got)
	}
}

func TestBackwardCompatibility(t *testing.T) {
	// A config written by an older build that lacks the history section
	// must still parse.
	tmpDir := t.TempDir()
	oldConfig := `version: 1
backend:
  url: http://localhost:8000
timeouts:
  upload: 60
  review: 120
  chat: 120
  status: 10
`
	dir := filepath.Join(tmpDir, ".provet")
	if err := os.MkdirAll(dir, 0755); err != nil {
		t.Fatalf("failed to create dir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(oldConfig), 0644); err != nil {
		t.Fatalf("failed to write old config: %v", err)
	}

	cfg, err := ReadConfig(tmpDir)
	if err != nil {
		t.Fatalf("ReadConfig failed on old config: %v", err)
	}
	if cfg.Backend.URL != "http://localhost:8000" {
		t.Errorf("Backend.URL: got %q", cfg.Backend.URL)
	}
}
