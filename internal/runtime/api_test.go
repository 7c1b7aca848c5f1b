package runtime

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/matheussiqueirahub/Commute-Briefing/internal/config"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/history"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/orchestrator"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/player"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/queue"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/stream"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/summarizer"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/synth"
)

func newTestRuntime(t *testing.T) *Runtime {
	t.Helper()
	cfg := config.Default()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	r := &Runtime{cfg: cfg, logger: logger}
	r.broadcast = stream.NewBroadcaster()
	renderer := player.NewFrameRenderer(r.broadcast, 20*time.Millisecond)
	r.player = player.New(renderer, time.Hour, logger)
	r.queue = queue.New(cfg.Queue.MaxItems)
	r.orch = orchestrator.New(summarizer.NewMockGenerator(), synth.NewMockSynth(), r.player, orchestrator.Options{
		MinWords:    cfg.Summarizer.MinWords,
		MaxWords:    cfg.Summarizer.MaxWords,
		Temperature: cfg.Summarizer.Temperature,
		Voice:       cfg.Synth.Voice,
		SampleRate:  cfg.Synth.SampleRate,
	}, logger)

	store, err := history.Open(context.Background(), config.HistoryConfig{}, logger)
	if err != nil {
		t.Fatalf("open history: %v", err)
	}
	r.history = store
	t.Cleanup(func() {
		r.orch.Close()
		r.player.Close()
		_ = store.Close()
	})
	return r
}

func doJSON(t *testing.T, mux *http.ServeMux, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	return rec
}

func TestQueueEndpoints(t *testing.T) {
	r := newTestRuntime(t)
	mux := r.buildMux(nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/queue", `{"title":"Markets","content":"Stocks rose."}`)
	if rec.Code != http.StatusCreated {
		t.Fatalf("add status = %d, body %s", rec.Code, rec.Body.String())
	}
	var added queue.Item
	if err := json.Unmarshal(rec.Body.Bytes(), &added); err != nil {
		t.Fatalf("decode added item: %v", err)
	}
	if added.Title != "Markets" || added.ID == "" {
		t.Fatalf("unexpected item: %+v", added)
	}

	rec = doJSON(t, mux, http.MethodGet, "/api/queue", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status = %d", rec.Code)
	}
	var listed struct {
		Items []queue.Item `json:"items"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &listed); err != nil {
		t.Fatalf("decode list: %v", err)
	}
	if len(listed.Items) != 1 {
		t.Fatalf("expected 1 item, got %d", len(listed.Items))
	}

	rec = doJSON(t, mux, http.MethodDelete, "/api/queue/"+added.ID, "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("remove status = %d", rec.Code)
	}
	rec = doJSON(t, mux, http.MethodDelete, "/api/queue/"+added.ID, "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("remove missing status = %d, want 404", rec.Code)
	}
}

func TestQueueAddRejectsEmptyContent(t *testing.T) {
	r := newTestRuntime(t)
	mux := r.buildMux(nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/queue", `{"content":"   "}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestGenerateWithEmptyQueue(t *testing.T) {
	r := newTestRuntime(t)
	mux := r.buildMux(nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/generate", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

// waitForTerminal polls until a generation run reaches ready or error.
func waitForTerminal(t *testing.T, r *Runtime) orchestrator.Status {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		st := r.orch.Status()
		if st.State == orchestrator.StateReady || st.State == orchestrator.StateError {
			return st
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("generation never reached a terminal state, last status %+v", r.orch.Status())
	return orchestrator.Status{}
}

func TestGenerateOutlivesTriggeringRequest(t *testing.T) {
	r := newTestRuntime(t)
	srv := httptest.NewServer(r.buildMux(nil))
	defer srv.Close()

	resp, err := http.Post(srv.URL+"/api/queue", "application/json",
		strings.NewReader(`{"title":"News","content":"Something happened."}`))
	if err != nil {
		t.Fatalf("add article: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("add status = %d", resp.StatusCode)
	}

	// The server cancels the request context as soon as the 202 is written;
	// the run must keep going on the runtime context regardless.
	resp, err = http.Post(srv.URL+"/api/generate", "application/json", nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("generate status = %d", resp.StatusCode)
	}

	st := waitForTerminal(t, r)
	if st.State != orchestrator.StateReady {
		t.Fatalf("state = %v (message %q), want ready", st.State, st.Message)
	}
}

func TestGenerateAccepted(t *testing.T) {
	r := newTestRuntime(t)
	mux := r.buildMux(nil)

	doJSON(t, mux, http.MethodPost, "/api/queue", `{"title":"Weather","content":"Sunny all day."}`)
	rec := doJSON(t, mux, http.MethodPost, "/api/generate", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("status = %d, body %s", rec.Code, rec.Body.String())
	}
	var resp struct {
		Epoch uint64 `json:"epoch"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Epoch != 1 {
		t.Fatalf("epoch = %d, want 1", resp.Epoch)
	}
}

func TestPitchEndpointClamps(t *testing.T) {
	r := newTestRuntime(t)
	mux := r.buildMux(nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/playback/pitch", `{"cents":900}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Cents float64 `json:"cents"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Cents != player.MaxPitchCents {
		t.Fatalf("cents = %v, want clamped to %v", resp.Cents, player.MaxPitchCents)
	}
}

func TestPlayWithoutBufferConflicts(t *testing.T) {
	r := newTestRuntime(t)
	mux := r.buildMux(nil)

	rec := doJSON(t, mux, http.MethodPost, "/api/playback/play", "")
	if rec.Code != http.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
}

func TestStatusEndpoint(t *testing.T) {
	r := newTestRuntime(t)
	mux := r.buildMux(nil)

	rec := doJSON(t, mux, http.MethodGet, "/api/status", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var resp struct {
		Generation struct {
			State string `json:"state"`
		} `json:"generation"`
		Transport string `json:"transport"`
		QueueLen  int    `json:"queue_len"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Generation.State != "idle" || resp.Transport != "stopped" || resp.QueueLen != 0 {
		t.Fatalf("unexpected status payload: %s", rec.Body.String())
	}
}

func TestVoicesEndpoint(t *testing.T) {
	r := newTestRuntime(t)
	mux := r.buildMux(nil)

	rec := doJSON(t, mux, http.MethodGet, "/api/voices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "Kore") {
		t.Fatalf("voices payload missing Kore: %s", rec.Body.String())
	}
}
