package sim

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"rosterd/internal/app"
)

func TestConfigWatcherReloads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roster.yaml")
	if err := os.WriteFile(path, []byte("tick_rate: 20\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cw, err := NewConfigWatcher(path)
	if err != nil {
		t.Fatalf("NewConfigWatcher error: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go cw.Run(ctx)

	if err := os.WriteFile(path, []byte("ranking:\n  board_mode: shared\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	select {
	case cfg := <-cw.Changes:
		if cfg.Ranking.BoardMode != string(app.BoardsShared) {
			t.Fatalf("board mode = %q, want shared", cfg.Ranking.BoardMode)
		}
	case err := <-cw.Errors:
		t.Fatalf("watch error: %v", err)
	case <-time.After(5 * time.Second):
		t.Fatal("no reload after write")
	}

	if err := os.WriteFile(path, []byte("ranking:\n  board_mode: sideways\n"), 0o644); err != nil {
		t.Fatalf("rewrite config: %v", err)
	}
	select {
	case <-cw.Errors:
	case cfg := <-cw.Changes:
		t.Fatalf("invalid config delivered: %+v", cfg.Ranking)
	case <-time.After(5 * time.Second):
		t.Fatal("no error after invalid write")
	}
}
