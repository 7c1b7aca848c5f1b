package runtime

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/matheussiqueirahub/Commute-Briefing/internal/config"
)

func TestSetupTelemetryServesMetrics(t *testing.T) {
	cfg := config.Config{
		RuntimeName: "briefing-test",
		Environment: "production",
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	shutdown, handler, err := setupTelemetry(cfg, logger)
	if err != nil {
		t.Fatalf("setupTelemetry: %v", err)
	}
	if handler == nil {
		t.Fatal("expected a metrics handler")
	}

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics scrape status = %d, want %d", rec.Code, http.StatusOK)
	}

	if err := shutdown(context.Background()); err != nil {
		t.Fatalf("telemetry shutdown: %v", err)
	}
}
