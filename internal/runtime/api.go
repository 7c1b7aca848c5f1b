package runtime

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/matheussiqueirahub/Commute-Briefing/internal/config"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/orchestrator"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/queue"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/stream"
)

func (r *Runtime) buildMux(metricHandler http.Handler) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", r.handleHealth)
	mux.HandleFunc("GET /readyz", r.handleReady)
	if metricHandler != nil {
		mux.Handle("GET /metrics", metricHandler)
	}

	mux.Handle("GET /stream", stream.NewHTTPHandler(r.broadcast, r.cfg.Synth.SampleRate, r.logger))

	mux.HandleFunc("GET /api/queue", r.handleQueueList)
	mux.HandleFunc("POST /api/queue", r.handleQueueAdd)
	mux.HandleFunc("DELETE /api/queue", r.handleQueueClear)
	mux.HandleFunc("DELETE /api/queue/{id}", r.handleQueueRemove)

	mux.HandleFunc("POST /api/generate", r.handleGenerate)
	mux.HandleFunc("POST /api/playback/play", r.handlePlay)
	mux.HandleFunc("POST /api/playback/pause", r.handlePause)
	mux.HandleFunc("POST /api/playback/stop", r.handleStop)
	mux.HandleFunc("POST /api/playback/pitch", r.handlePitch)

	mux.HandleFunc("GET /api/status", r.handleStatus)
	mux.HandleFunc("GET /api/history", r.handleHistory)
	mux.HandleFunc("GET /api/voices", r.handleVoices)

	return mux
}

func (r *Runtime) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

func (r *Runtime) handleReady(w http.ResponseWriter, _ *http.Request) {
	if r.ready.Load() && r.bus.Healthy() {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ready"))
		return
	}
	w.WriteHeader(http.StatusServiceUnavailable)
	_, _ = w.Write([]byte("not ready"))
}

func (r *Runtime) handleQueueList(w http.ResponseWriter, _ *http.Request) {
	r.writeJSON(w, http.StatusOK, map[string]any{"items": r.queue.Items()})
}

func (r *Runtime) handleQueueAdd(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Title   string `json:"title"`
		Content string `json:"content"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		r.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	item, err := r.queue.Add(body.Title, body.Content)
	if err != nil {
		r.writeError(w, queueErrorStatus(err), err.Error())
		return
	}
	r.writeJSON(w, http.StatusCreated, item)
}

func (r *Runtime) handleQueueRemove(w http.ResponseWriter, req *http.Request) {
	if err := r.queue.Remove(req.PathValue("id")); err != nil {
		r.writeError(w, queueErrorStatus(err), err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Runtime) handleQueueClear(w http.ResponseWriter, _ *http.Request) {
	r.queue.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (r *Runtime) handleGenerate(w http.ResponseWriter, req *http.Request) {
	// The run outlives this request; tying it to req.Context() would cancel
	// it the moment the 202 is written.
	epoch, err := r.generate(r.runCtx())
	if err != nil {
		if errors.Is(err, orchestrator.ErrNoItems) {
			r.writeError(w, http.StatusConflict, err.Error())
			return
		}
		r.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	r.writeJSON(w, http.StatusAccepted, map[string]any{"epoch": epoch})
}

func (r *Runtime) handlePlay(w http.ResponseWriter, _ *http.Request) {
	if err := r.player.Play(); err != nil {
		r.writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Runtime) handlePause(w http.ResponseWriter, _ *http.Request) {
	if err := r.player.Pause(); err != nil {
		r.writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (r *Runtime) handleStop(w http.ResponseWriter, _ *http.Request) {
	r.player.Stop()
	w.WriteHeader(http.StatusNoContent)
}

func (r *Runtime) handlePitch(w http.ResponseWriter, req *http.Request) {
	var body struct {
		Cents float64 `json:"cents"`
	}
	if err := json.NewDecoder(req.Body).Decode(&body); err != nil {
		r.writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	applied := r.player.SetPitch(body.Cents)
	r.writeJSON(w, http.StatusOK, map[string]any{"cents": applied})
}

func (r *Runtime) handleStatus(w http.ResponseWriter, _ *http.Request) {
	st := r.orch.Status()
	r.writeJSON(w, http.StatusOK, map[string]any{
		"generation": map[string]any{
			"epoch":   st.Epoch,
			"state":   st.State.String(),
			"message": st.Message,
		},
		"transport":   r.player.Transport().String(),
		"progress":    r.player.Progress(),
		"pitch_cents": r.player.Pitch(),
		"queue_len":   r.queue.Len(),
		"transcript":  st.Transcript,
		"voice":       r.cfg.Synth.Voice,
		"listeners":   r.broadcast.ListenerCount(),
	})
}

func (r *Runtime) handleHistory(w http.ResponseWriter, req *http.Request) {
	limit := 50
	if raw := req.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n <= 0 {
			r.writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	runs, err := r.history.Recent(req.Context(), limit)
	if err != nil {
		r.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	r.writeJSON(w, http.StatusOK, map[string]any{"runs": runs})
}

func (r *Runtime) handleVoices(w http.ResponseWriter, _ *http.Request) {
	r.writeJSON(w, http.StatusOK, map[string]any{"voices": config.Voices})
}

func queueErrorStatus(err error) int {
	switch {
	case errors.Is(err, queue.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, queue.ErrQueueFull):
		return http.StatusConflict
	default:
		return http.StatusBadRequest
	}
}

func (r *Runtime) writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		r.logger.Warn("failed to encode response", slog.String("error", err.Error()))
	}
}

func (r *Runtime) writeError(w http.ResponseWriter, status int, msg string) {
	r.writeJSON(w, status, map[string]string{"error": msg})
}
