// Package runtime assembles the briefing daemon: bus, queue, generation
// orchestrator, playback engine, run history, HTTP API, and telemetry.
package runtime

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/matheussiqueirahub/Commute-Briefing/internal/bus"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/config"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/history"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/natsserver"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/orchestrator"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/player"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/protocol"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/queue"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/stream"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/summarizer"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/synth"
)

// version is stamped into the telemetry resource attributes.
const version = "0.1.0-dev"

type Runtime struct {
	cfg           config.Config
	logger        *slog.Logger
	httpServer    *http.Server
	metricsServer *http.Server
	tracerClose   func(context.Context) error
	ready         atomic.Bool
	wg            sync.WaitGroup

	embedded  *natsserver.EmbeddedServer
	bus       *bus.Client
	queue     *queue.Queue
	player    *player.Player
	orch      *orchestrator.Orchestrator
	history   *history.Store
	broadcast *stream.Broadcaster
	subs      []*nats.Subscription

	// baseCtx outlives individual HTTP requests; generation runs started
	// from a handler must not die with the request that triggered them.
	baseCtx context.Context

	genMu    sync.Mutex
	genTimer *time.Timer
}

func New(cfg config.Config, logger *slog.Logger) *Runtime {
	return &Runtime{
		cfg:    cfg,
		logger: logger,
	}
}

func (r *Runtime) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	r.baseCtx = ctx

	shutdownTelemetry, metricHandler, err := setupTelemetry(r.cfg, r.logger)
	if err != nil {
		return fmt.Errorf("failed to setup telemetry: %w", err)
	}
	r.tracerClose = shutdownTelemetry

	r.embedded, err = natsserver.Start(r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to start embedded bus: %w", err)
	}

	r.bus, err = bus.Connect(ctx, r.cfg.Bus, r.logger)
	if err != nil {
		return fmt.Errorf("failed to connect to bus: %w", err)
	}

	r.history, err = history.Open(ctx, r.cfg.History, r.logger)
	if err != nil {
		return fmt.Errorf("failed to open run history: %w", err)
	}

	gen, err := buildGenerator(r.cfg)
	if err != nil {
		return fmt.Errorf("failed to build summarizer backend: %w", err)
	}
	syn, err := buildSynthesizer(r.cfg)
	if err != nil {
		return fmt.Errorf("failed to build synthesis backend: %w", err)
	}

	r.broadcast = stream.NewBroadcaster()
	renderer := player.NewFrameRenderer(r.broadcast,
		time.Duration(r.cfg.Playback.FrameDurationMS)*time.Millisecond)
	r.player = player.New(renderer,
		time.Duration(r.cfg.Playback.ProgressIntervalMS)*time.Millisecond, r.logger)

	r.queue = queue.New(r.cfg.Queue.MaxItems)
	r.orch = orchestrator.New(gen, syn, r.player, orchestrator.Options{
		MinWords:    r.cfg.Summarizer.MinWords,
		MaxWords:    r.cfg.Summarizer.MaxWords,
		Temperature: r.cfg.Summarizer.Temperature,
		Voice:       r.cfg.Synth.Voice,
		SampleRate:  r.cfg.Synth.SampleRate,
	}, r.logger)

	r.wire(ctx)
	if err := r.subscribe(ctx); err != nil {
		return fmt.Errorf("failed to subscribe to control subjects: %w", err)
	}

	// With a dedicated prometheus bind, /metrics gets its own listener so
	// scrapes stay off the public API port.
	apiMetrics := metricHandler
	if metricHandler != nil && r.cfg.Telemetry.PrometheusBind != "" {
		apiMetrics = nil
		r.startMetricsServer(metricHandler)
	}

	mux := r.buildMux(apiMetrics)
	addr := fmt.Sprintf("%s:%d", r.cfg.HTTP.Bind, r.cfg.HTTP.Port)
	r.httpServer = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("http server failed", slog.String("error", err.Error()))
		}
	}()

	r.ready.Store(true)
	r.logger.Info("runtime started", slog.String("addr", addr))

	<-ctx.Done()
	r.logger.Info("runtime stopping")
	r.ready.Store(false)

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := r.httpServer.Shutdown(shutdownCtx); err != nil {
		r.logger.Error("http shutdown error", slog.String("error", err.Error()))
	}
	if r.metricsServer != nil {
		if err := r.metricsServer.Shutdown(shutdownCtx); err != nil {
			r.logger.Error("metrics shutdown error", slog.String("error", err.Error()))
		}
	}
	r.wg.Wait()

	r.cancelAutoGenerate()
	for _, sub := range r.subs {
		_ = sub.Drain()
	}
	r.orch.Close()
	r.player.Close()
	if err := r.history.Close(); err != nil {
		r.logger.Error("history close error", slog.String("error", err.Error()))
	}
	r.bus.Close()
	if r.embedded != nil {
		r.embedded.Shutdown()
	}
	if r.tracerClose != nil {
		if err := r.tracerClose(shutdownCtx); err != nil {
			r.logger.Error("telemetry shutdown error", slog.String("error", err.Error()))
		}
	}

	return nil
}

// startMetricsServer serves the prometheus handler on its own listener.
func (r *Runtime) startMetricsServer(handler http.Handler) {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", handler)
	r.metricsServer = &http.Server{
		Addr:              r.cfg.Telemetry.PrometheusBind,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		if err := r.metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			r.logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()
	r.logger.Info("metrics listener started", slog.String("addr", r.cfg.Telemetry.PrometheusBind))
}

func buildGenerator(cfg config.Config) (summarizer.Generator, error) {
	switch cfg.Summarizer.Mode {
	case "gemini":
		return summarizer.NewGeminiGenerator(cfg.Gemini.Endpoint, cfg.Gemini.APIKey, cfg.Summarizer.Model), nil
	case "exec":
		return summarizer.NewExecGenerator(cfg.Summarizer.Command)
	default:
		return summarizer.NewMockGenerator(), nil
	}
}

func buildSynthesizer(cfg config.Config) (synth.Synthesizer, error) {
	switch cfg.Synth.Mode {
	case "gemini":
		return synth.NewGeminiSynth(cfg.Gemini.Endpoint, cfg.Gemini.APIKey, cfg.Synth.Model), nil
	case "exec":
		return synth.NewExecSynth(cfg.Synth.Command)
	default:
		return synth.NewMockSynth(), nil
	}
}

// wire connects the component callbacks to the bus and the run history.
func (r *Runtime) wire(ctx context.Context) {
	r.orch.OnStatus(func(st orchestrator.Status) {
		r.publish(protocol.SubjectGenerationState, protocol.GenerationEvent{
			Epoch:     st.Epoch,
			State:     st.State.String(),
			Message:   st.Message,
			Timestamp: time.Now().UTC(),
		})
		if st.State == orchestrator.StateReady {
			// The transcript rides in the status snapshot; reading it back
			// from the orchestrator here could pair this ready event with a
			// newer run's text.
			r.publish(protocol.SubjectTranscript, protocol.TranscriptEvent{
				Epoch:     st.Epoch,
				Text:      st.Transcript,
				Voice:     r.cfg.Synth.Voice,
				Timestamp: time.Now().UTC(),
			})
		}
	})

	r.orch.OnFinish(func(res orchestrator.Result) {
		run := history.Run{
			Epoch:     res.Epoch,
			Outcome:   res.State,
			Kind:      res.Kind,
			Words:     res.Words,
			LatencyMS: res.Latency.Milliseconds(),
		}
		if err := r.history.Append(context.Background(), run); err != nil {
			r.logger.Warn("failed to record run", slog.String("error", err.Error()))
		}
	})

	r.player.OnProgress(func(transport player.Transport, fraction, pitch float64) {
		r.publish(protocol.SubjectProgress, protocol.ProgressEvent{
			Transport: transport.String(),
			Fraction:  fraction,
			Pitch:     pitch,
			Timestamp: time.Now().UTC(),
		})
	})

	r.queue.OnChange(func(empty bool) {
		if empty {
			r.cancelAutoGenerate()
			r.orch.Reset()
			return
		}
		if r.cfg.Queue.AutoGenerate {
			r.scheduleAutoGenerate(ctx)
		}
	})
}

// scheduleAutoGenerate arms a debounce timer so a burst of queue edits
// yields a single generation.
func (r *Runtime) scheduleAutoGenerate(ctx context.Context) {
	delay := time.Duration(r.cfg.Queue.AutoGenerateMS) * time.Millisecond
	r.genMu.Lock()
	defer r.genMu.Unlock()
	if r.genTimer != nil {
		r.genTimer.Stop()
	}
	r.genTimer = time.AfterFunc(delay, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := r.generate(ctx); err != nil {
			r.logger.Warn("auto-generate skipped", slog.String("error", err.Error()))
		}
	})
}

func (r *Runtime) cancelAutoGenerate() {
	r.genMu.Lock()
	defer r.genMu.Unlock()
	if r.genTimer != nil {
		r.genTimer.Stop()
		r.genTimer = nil
	}
}

func (r *Runtime) generate(ctx context.Context) (uint64, error) {
	return r.orch.Generate(ctx, r.queue.Items())
}

// runCtx returns the runtime's lifetime context for work that must survive
// the caller, such as generation runs triggered by an HTTP request.
func (r *Runtime) runCtx() context.Context {
	if r.baseCtx != nil {
		return r.baseCtx
	}
	return context.Background()
}

func (r *Runtime) subscribe(ctx context.Context) error {
	conn := r.bus.Conn()

	genSub, err := conn.Subscribe(protocol.SubjectGenerate, func(msg *nats.Msg) {
		if _, err := r.generate(ctx); err != nil {
			r.logger.Warn("generate command rejected", slog.String("error", err.Error()))
		}
	})
	if err != nil {
		return err
	}
	r.subs = append(r.subs, genSub)

	transportSub, err := conn.Subscribe(protocol.SubjectTransport, r.handleTransport)
	if err != nil {
		return err
	}
	r.subs = append(r.subs, transportSub)

	return nil
}

func (r *Runtime) handleTransport(msg *nats.Msg) {
	var cmd protocol.TransportCommand
	if err := json.Unmarshal(msg.Data, &cmd); err != nil {
		r.logger.Warn("failed to decode transport command", slog.String("error", err.Error()))
		return
	}
	switch cmd.Action {
	case "play":
		if err := r.player.Play(); err != nil {
			r.logger.Warn("play rejected", slog.String("error", err.Error()))
		}
	case "pause":
		if err := r.player.Pause(); err != nil {
			r.logger.Warn("pause rejected", slog.String("error", err.Error()))
		}
	case "stop":
		r.player.Stop()
	case "pitch":
		r.player.SetPitch(cmd.Cents)
	default:
		r.logger.Warn("unknown transport action", slog.String("action", cmd.Action))
	}
}

func (r *Runtime) publish(subject string, payload any) {
	data, err := json.Marshal(payload)
	if err != nil {
		r.logger.Warn("failed to marshal bus event", slog.String("subject", subject), slog.String("error", err.Error()))
		return
	}
	if err := r.bus.Conn().Publish(subject, data); err != nil {
		r.logger.Warn("failed to publish bus event", slog.String("subject", subject), slog.String("error", err.Error()))
	}
}
