package history

import (
	"context"
	"io"
	"log/slog"
	"path/filepath"
	"testing"
	"time"

	"github.com/matheussiqueirahub/Commute-Briefing/internal/config"
)

func newLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError}))
}

func TestOpenDisabled(t *testing.T) {
	s, err := Open(context.Background(), config.HistoryConfig{}, newLogger())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Append(context.Background(), Run{Epoch: 1, Outcome: "ready"}); err != nil {
		t.Fatalf("append on disabled store: %v", err)
	}
	runs, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent on disabled store: %v", err)
	}
	if runs != nil {
		t.Fatalf("expected no runs, got %d", len(runs))
	}
}

func TestAppendAndRecent(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.HistoryConfig{Path: filepath.Join(tmp, "history.db")}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	if err := s.Append(context.Background(), Run{Epoch: 1, Outcome: "error", Kind: "quota"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(context.Background(), Run{Epoch: 2, Outcome: "ready", Words: 420, LatencyMS: 1800}); err != nil {
		t.Fatalf("append: %v", err)
	}

	runs, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 2 {
		t.Fatalf("expected 2 runs, got %d", len(runs))
	}
	if runs[0].Epoch != 2 || runs[0].Outcome != "ready" || runs[0].Words != 420 {
		t.Fatalf("unexpected newest run: %+v", runs[0])
	}
	if runs[1].Kind != "quota" {
		t.Fatalf("unexpected oldest run: %+v", runs[1])
	}
}

func TestPruneByDaysAndCap(t *testing.T) {
	tmp := t.TempDir()
	cfg := config.HistoryConfig{Path: filepath.Join(tmp, "history.db"), RetentionDays: 1, MaxRuns: 1}
	s, err := Open(context.Background(), cfg, newLogger())
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })

	s.clock = func() time.Time { return time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC) }
	if err := s.Append(context.Background(), Run{Epoch: 1, Outcome: "ready"}); err != nil {
		t.Fatalf("append: %v", err)
	}

	s.clock = func() time.Time { return time.Date(2025, 1, 3, 0, 0, 0, 0, time.UTC) }
	if err := s.Append(context.Background(), Run{Epoch: 2, Outcome: "ready"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Append(context.Background(), Run{Epoch: 3, Outcome: "ready"}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := s.Prune(context.Background()); err != nil {
		t.Fatalf("prune: %v", err)
	}

	runs, err := s.Recent(context.Background(), 10)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(runs) != 1 {
		t.Fatalf("expected 1 run after prune, got %d", len(runs))
	}
	if runs[0].Epoch != 3 {
		t.Fatalf("wrong run survived prune: %+v", runs[0])
	}
}
