package cli

import (
	"context"
	"testing"
	"time"

	"github.com/provet-dev/provet/internal/api"
	"github.com/provet-dev/provet/internal/config"
	"github.com/provet-dev/provet/internal/session"
	"github.com/provet-dev/provet/internal/stub"
)

func TestCleanupResetsSession(t *testing.T) {
	srv, err := stub.NewServer()
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	srv.Delay = 50 * time.Millisecond
	go func() { _ = srv.Start() }()
	t.Cleanup(func() { _ = srv.Stop() })

	cfg := config.DefaultConfig()
	cfg.Backend.URL = srv.URL()
	cfg.History.Enabled = false

	machine, cleanup, err := buildMachine(cfg, t.TempDir())
	if err != nil {
		t.Fatalf("buildMachine failed: %v", err)
	}

	files := []api.File{{Name: "bid.pdf", Content: []byte("%PDF-1.4 bid")}}
	if err := machine.UploadDocuments(context.Background(), files); err != nil {
		t.Fatalf("UploadDocuments failed: %v", err)
	}

	// Quitting with the analysis stream still open must tear the session
	// down, not leak the connection.
	cleanup()

	snap := machine.Snapshot()
	if snap.State != session.StateIdle {
		t.Errorf("state after cleanup: got %v, want idle", snap.State)
	}
	if snap.ThreadID != "" {
		t.Errorf("threadID after cleanup: got %q, want empty", snap.ThreadID)
	}
}
