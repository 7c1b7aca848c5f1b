// Package orchestrator runs the briefing generation pipeline: summarize the
// queued articles, synthesize the summary, decode it, and hand the buffer to
// the playback engine. Every request claims a fresh epoch; results carrying
// a superseded epoch are dropped without touching published state.
package orchestrator

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/matheussiqueirahub/Commute-Briefing/internal/audio"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/queue"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/remote"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/summarizer"
	"github.com/matheussiqueirahub/Commute-Briefing/internal/synth"
)

// State is the generation phase. Exactly one state is active at a time.
type State int

const (
	StateIdle State = iota
	StateSummarizing
	StateGeneratingAudio
	StateReady
	StateError
)

func (s State) String() string {
	switch s {
	case StateSummarizing:
		return "summarizing"
	case StateGeneratingAudio:
		return "generating_audio"
	case StateReady:
		return "ready"
	case StateError:
		return "error"
	default:
		return "idle"
	}
}

// Status is the externally visible generation state. Message is populated
// only in the error state and is already user-facing. Transcript is the
// summary text stored by the same run, snapshotted with the state so
// observers never pair one run's state with another run's text.
type Status struct {
	Epoch      uint64
	State      State
	Message    string
	Transcript string
}

// Result describes one finished generation run, successful or not. Hooks
// receive it for run-history recording; Kind is empty on success.
type Result struct {
	Epoch   uint64
	State   string
	Kind    string
	Words   int
	Latency time.Duration
}

// Loader receives the decoded buffer once a run completes. A nil buffer
// clears any previously published audio.
type Loader interface {
	Load(buf *audio.Buffer)
	Stop()
}

// Observer is notified on every status transition.
type Observer func(Status)

// Options carry the generation parameters resolved from configuration.
type Options struct {
	MinWords    int
	MaxWords    int
	Temperature float64
	Voice       string
	SampleRate  int
}

var ErrNoItems = errors.New("nothing queued to generate from")

type Orchestrator struct {
	gen    summarizer.Generator
	synth  synth.Synthesizer
	loader Loader
	opts   Options
	logger *slog.Logger
	clock  func() time.Time

	mu         sync.Mutex
	epoch      uint64
	status     Status
	transcript string
	observer   Observer
	onFinish   func(Result)
	wg         sync.WaitGroup

	meter       metric.Meter
	runCounter  metric.Int64Counter
	staleDrops  metric.Int64Counter
	runDuration metric.Float64Histogram
}

func New(gen summarizer.Generator, syn synth.Synthesizer, loader Loader, opts Options, logger *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		gen:    gen,
		synth:  syn,
		loader: loader,
		opts:   opts,
		logger: logger.With(slog.String("component", "orchestrator")),
		clock:  time.Now,
		meter:  otel.Meter("github.com/matheussiqueirahub/Commute-Briefing/orchestrator"),
	}
	if err := o.initMetrics(); err != nil {
		o.logger.Warn("failed to initialize metrics", slog.String("error", err.Error()))
	}
	return o
}

func (o *Orchestrator) initMetrics() error {
	var err error
	o.runCounter, err = o.meter.Int64Counter("briefing_generation_runs_total",
		metric.WithDescription("Completed generation runs by outcome"))
	if err != nil {
		return err
	}
	o.staleDrops, err = o.meter.Int64Counter("briefing_generation_stale_drops_total",
		metric.WithDescription("Generation results discarded because a newer request superseded them"))
	if err != nil {
		return err
	}
	o.runDuration, err = o.meter.Float64Histogram("briefing_generation_duration_seconds",
		metric.WithDescription("Wall-clock duration of successful generation runs"))
	return err
}

// OnStatus registers the status observer. Must be set before Generate.
func (o *Orchestrator) OnStatus(fn Observer) {
	o.mu.Lock()
	o.observer = fn
	o.mu.Unlock()
}

// OnFinish registers a hook invoked once per run that reached a terminal
// state while still current. Stale runs never reach it.
func (o *Orchestrator) OnFinish(fn func(Result)) {
	o.mu.Lock()
	o.onFinish = fn
	o.mu.Unlock()
}

// Status returns the current generation status.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.status
}

// Transcript returns the last published briefing text and its epoch. Empty
// until a run reaches the audio stage.
func (o *Orchestrator) Transcript() (string, uint64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.transcript, o.status.Epoch
}

// Generate starts an asynchronous run over a snapshot of the queue. It
// claims a fresh epoch, which marks any in-flight run stale, clears the
// previously published transcript and audio, and returns the new epoch.
func (o *Orchestrator) Generate(ctx context.Context, items []queue.Item) (uint64, error) {
	if len(items) == 0 {
		return 0, ErrNoItems
	}

	o.mu.Lock()
	o.epoch++
	epoch := o.epoch
	o.transcript = ""
	o.status = Status{Epoch: epoch, State: StateSummarizing}
	o.mu.Unlock()

	o.loader.Stop()
	o.loader.Load(nil)
	o.notify()

	o.wg.Add(1)
	go o.run(ctx, epoch, items)
	return epoch, nil
}

// Reset forces the idle state and marks any in-flight run stale. Called
// when the queue drains; in-flight remote calls are not cancelled, their
// results are checked and dropped on arrival.
func (o *Orchestrator) Reset() {
	o.mu.Lock()
	o.epoch++
	o.transcript = ""
	o.status = Status{Epoch: o.epoch, State: StateIdle}
	o.mu.Unlock()

	o.loader.Stop()
	o.loader.Load(nil)
	o.notify()
}

// Close waits for any in-flight run goroutine to return.
func (o *Orchestrator) Close() {
	o.wg.Wait()
}

func (o *Orchestrator) run(ctx context.Context, epoch uint64, items []queue.Item) {
	defer o.wg.Done()
	started := o.clock()

	segments := make([]summarizer.Segment, len(items))
	for i, it := range items {
		segments[i] = summarizer.Segment{Title: it.Title, Content: it.Content}
	}

	text, err := o.gen.Summarize(ctx, summarizer.Request{
		Segments:    segments,
		MinWords:    o.opts.MinWords,
		MaxWords:    o.opts.MaxWords,
		Temperature: o.opts.Temperature,
	})
	if err != nil {
		o.fail(epoch, started, err)
		return
	}

	if !o.advance(epoch, text) {
		return
	}

	pcm, err := o.synth.Synthesize(ctx, synth.Request{
		Text:       text,
		Voice:      o.opts.Voice,
		SampleRate: o.opts.SampleRate,
	})
	if err != nil {
		o.fail(epoch, started, err)
		return
	}

	buf, err := audio.FromPCM16(pcm, o.opts.SampleRate)
	if err != nil {
		o.fail(epoch, started, remote.NewError("synthesize", remote.KindNoAudio, err))
		return
	}

	o.publish(epoch, started, text, buf)
}

// advance moves a still-current run from summarizing to generating_audio
// and stores the summary. Returns false if the run went stale.
func (o *Orchestrator) advance(epoch uint64, text string) bool {
	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		o.dropStale(epoch, "summarize")
		return false
	}
	o.transcript = text
	o.status = Status{Epoch: epoch, State: StateGeneratingAudio, Transcript: text}
	o.mu.Unlock()
	o.notify()
	return true
}

// publish loads the decoded buffer into the player and marks the run ready,
// unless a newer request claimed the epoch meanwhile.
func (o *Orchestrator) publish(epoch uint64, started time.Time, text string, buf *audio.Buffer) {
	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		o.dropStale(epoch, "synthesize")
		return
	}
	o.status = Status{Epoch: epoch, State: StateReady, Transcript: text}
	finish := o.onFinish
	// The load stays under the lock so the epoch check and the load are
	// atomic against Generate and Reset: any newer request must bump the
	// epoch (under this lock) before it clears the player, which means a
	// run that passes the check here cannot have its buffer land after
	// that clear. The player never calls back into the orchestrator, so
	// this cannot cycle.
	o.loader.Load(buf)
	o.mu.Unlock()
	o.notify()

	elapsed := o.clock().Sub(started)
	words := len(strings.Fields(text))
	o.logger.Info("briefing ready",
		slog.Uint64("epoch", epoch),
		slog.Int("words", words),
		slog.Duration("elapsed", elapsed),
		slog.Duration("audio", buf.Duration()))
	if o.runCounter != nil {
		o.runCounter.Add(context.Background(), 1,
			metric.WithAttributes(attribute.String("outcome", "ready")))
	}
	if o.runDuration != nil {
		o.runDuration.Record(context.Background(), elapsed.Seconds())
	}
	if finish != nil {
		finish(Result{Epoch: epoch, State: "ready", Words: words, Latency: elapsed})
	}
}

// fail records a classified failure for a still-current run. The underlying
// error stays in the log; only the user-facing message is published.
func (o *Orchestrator) fail(epoch uint64, started time.Time, err error) {
	kind := remote.ClassifyKind(err)

	o.mu.Lock()
	if epoch != o.epoch {
		o.mu.Unlock()
		o.dropStale(epoch, kind.String())
		return
	}
	o.status = Status{Epoch: epoch, State: StateError, Message: remote.UserMessage(err)}
	finish := o.onFinish
	o.mu.Unlock()
	o.notify()

	elapsed := o.clock().Sub(started)
	o.logger.Warn("generation failed",
		slog.Uint64("epoch", epoch),
		slog.String("kind", kind.String()),
		slog.String("error", err.Error()))
	if o.runCounter != nil {
		o.runCounter.Add(context.Background(), 1, metric.WithAttributes(
			attribute.String("outcome", "error"),
			attribute.String("kind", kind.String())))
	}
	if finish != nil {
		finish(Result{Epoch: epoch, State: "error", Kind: kind.String(), Latency: elapsed})
	}
}

func (o *Orchestrator) dropStale(epoch uint64, stage string) {
	o.logger.Debug("dropping stale generation result",
		slog.Uint64("epoch", epoch),
		slog.String("stage", stage))
	if o.staleDrops != nil {
		o.staleDrops.Add(context.Background(), 1)
	}
}

func (o *Orchestrator) notify() {
	o.mu.Lock()
	fn := o.observer
	st := o.status
	o.mu.Unlock()
	if fn != nil {
		fn(st)
	}
}
