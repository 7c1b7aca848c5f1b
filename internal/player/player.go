// Package player owns the decoded briefing audio and its transport state:
// play, pause, stop, live pitch control, and wall-clock progress reporting.
package player

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/matheussiqueirahub/Commute-Briefing/internal/audio"
)

// Transport is the play/pause/stop status of the engine.
type Transport int

const (
	Stopped Transport = iota
	Playing
	Paused
)

func (t Transport) String() string {
	switch t {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Pitch bounds in cents.
const (
	MinPitchCents = -400.0
	MaxPitchCents = 400.0
)

var (
	ErrNoBuffer   = errors.New("no audio buffer loaded")
	ErrNotPlaying = errors.New("pause is only valid while playing")
)

// Source is an active rendering of the loaded buffer. Stop halts rendering
// and detaches the completion callback, so a stopped source never reports
// natural completion.
type Source interface {
	SetDetune(cents float64)
	Stop()
}

// Renderer creates sources. The done callback fires at most once, only when
// rendering runs to natural completion without Stop being called first.
type Renderer interface {
	Start(buf *audio.Buffer, offset time.Duration, detuneCents float64, done func()) Source
}

// ProgressFunc receives transport state, the progress fraction in [0, 1],
// and the current pitch on every tick and transport transition.
type ProgressFunc func(transport Transport, fraction float64, pitchCents float64)

// Player is the playback engine. All state lives in one struct guarded by
// one mutex; position is derived from the clock, never stored.
type Player struct {
	mu       sync.Mutex
	renderer Renderer
	logger   *slog.Logger
	clock    func() time.Time

	buf          *audio.Buffer
	transport    Transport
	pitchCents   float64
	pausedOffset time.Duration
	refStart     time.Time
	source       Source
	sourceSeq    uint64
	completed    bool
	progress     float64

	tickInterval time.Duration
	stopTick     chan struct{}
	onProgress   ProgressFunc
}

func New(renderer Renderer, tickInterval time.Duration, logger *slog.Logger) *Player {
	if tickInterval <= 0 {
		tickInterval = 100 * time.Millisecond
	}
	return &Player{
		renderer:     renderer,
		logger:       logger.With(slog.String("component", "player")),
		clock:        time.Now,
		tickInterval: tickInterval,
	}
}

// OnProgress registers the progress observer. Must be set before playback
// starts.
func (p *Player) OnProgress(fn ProgressFunc) {
	p.mu.Lock()
	p.onProgress = fn
	p.mu.Unlock()
}

// Load replaces the current buffer, discarding the previous one and any
// active playback.
func (p *Player) Load(buf *audio.Buffer) {
	p.mu.Lock()
	p.detachSourceLocked()
	p.stopTickerLocked()
	p.buf = buf
	p.transport = Stopped
	p.pausedOffset = 0
	p.progress = 0
	p.completed = false
	p.mu.Unlock()
	p.emit()
}

// Play starts or resumes playback from the accumulated paused offset.
// Calling Play with no buffer loaded is a precondition violation.
func (p *Player) Play() error {
	p.mu.Lock()
	if p.buf == nil {
		p.mu.Unlock()
		return ErrNoBuffer
	}

	// A prior source must be fully detached before a new one starts, so
	// sound never overlaps and completion is never double-reported.
	p.detachSourceLocked()
	p.stopTickerLocked()

	if p.transport == Stopped && p.completed {
		p.pausedOffset = 0
		p.completed = false
	}

	p.sourceSeq++
	seq := p.sourceSeq
	p.refStart = p.clock()
	p.transport = Playing
	p.source = p.renderer.Start(p.buf, p.pausedOffset, p.pitchCents, func() {
		p.handleCompletion(seq)
	})
	p.startTickerLocked()
	p.logger.Debug("playback started",
		slog.Duration("offset", p.pausedOffset),
		slog.Float64("pitch_cents", p.pitchCents))
	p.mu.Unlock()
	p.emit()
	return nil
}

// Pause halts playback and accumulates the elapsed wall-clock time into the
// paused offset. Only valid while playing.
func (p *Player) Pause() error {
	p.mu.Lock()
	if p.transport != Playing {
		p.mu.Unlock()
		return ErrNotPlaying
	}
	p.detachSourceLocked()
	p.stopTickerLocked()

	p.pausedOffset += p.clock().Sub(p.refStart)
	if dur := p.buf.Duration(); p.pausedOffset > dur {
		p.pausedOffset = dur
	}
	if p.pausedOffset < 0 {
		p.pausedOffset = 0
	}
	p.transport = Paused
	p.progress = p.fractionLocked()
	p.mu.Unlock()
	p.emit()
	return nil
}

// Stop halts any active source, resets the offset and progress to zero, and
// returns the transport to stopped. Valid from any state.
func (p *Player) Stop() {
	p.mu.Lock()
	p.detachSourceLocked()
	p.stopTickerLocked()
	p.pausedOffset = 0
	p.progress = 0
	p.completed = false
	p.transport = Stopped
	p.mu.Unlock()
	p.emit()
}

// SetPitch clamps cents to [-400, 400], stores it for the next Play, and
// applies it immediately to the active source.
func (p *Player) SetPitch(cents float64) float64 {
	if cents < MinPitchCents {
		cents = MinPitchCents
	} else if cents > MaxPitchCents {
		cents = MaxPitchCents
	}
	p.mu.Lock()
	p.pitchCents = cents
	src := p.source
	p.mu.Unlock()
	if src != nil {
		src.SetDetune(cents)
	}
	return cents
}

// Pitch returns the stored detune in cents.
func (p *Player) Pitch() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pitchCents
}

// Transport returns the current transport state.
func (p *Player) Transport() Transport {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.transport
}

// Progress reports the playback fraction in [0, 1]. While playing it is
// derived from the wall clock assuming unity playback rate; under nonzero
// detune the rendering rate differs and the reported fraction drifts from
// the true audio position. That drift is an accepted approximation.
func (p *Player) Progress() float64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.transport == Playing {
		f := p.fractionLocked()
		if f > p.progress {
			p.progress = f
		}
		return p.progress
	}
	return p.progress
}

// Offset returns the accumulated paused offset.
func (p *Player) Offset() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.pausedOffset
}

// Close stops playback and releases the ticker.
func (p *Player) Close() {
	p.Stop()
}

// fractionLocked computes elapsed/duration for the current transport.
func (p *Player) fractionLocked() float64 {
	dur := p.buf.Duration()
	if dur <= 0 {
		return 0
	}
	elapsed := p.pausedOffset
	if p.transport == Playing {
		elapsed += p.clock().Sub(p.refStart)
	}
	f := float64(elapsed) / float64(dur)
	if f > 1 {
		f = 1
	}
	if f < 0 {
		f = 0
	}
	return f
}

// detachSourceLocked stops the active source, if any, preventing its
// completion callback from firing.
func (p *Player) detachSourceLocked() {
	if p.source != nil {
		p.source.Stop()
		p.source = nil
	}
	p.sourceSeq++
}

// handleCompletion runs when a source reaches the natural end of the buffer.
// Stale sequences (the source was detached meanwhile) are ignored.
func (p *Player) handleCompletion(seq uint64) {
	p.mu.Lock()
	if seq != p.sourceSeq || p.transport != Playing {
		p.mu.Unlock()
		return
	}
	p.source = nil
	p.stopTickerLocked()
	p.pausedOffset = 0
	p.transport = Stopped
	p.completed = true
	p.progress = 1
	p.logger.Debug("playback completed")
	p.mu.Unlock()
	p.emit()
}

func (p *Player) startTickerLocked() {
	stop := make(chan struct{})
	p.stopTick = stop
	go func() {
		ticker := time.NewTicker(p.tickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if done := p.tick(); done {
					return
				}
			}
		}
	}()
}

func (p *Player) stopTickerLocked() {
	if p.stopTick != nil {
		close(p.stopTick)
		p.stopTick = nil
	}
}

// tick emits one progress update. Returns true once the transport left
// playing or elapsed reached the buffer duration.
func (p *Player) tick() bool {
	p.mu.Lock()
	if p.transport != Playing {
		p.mu.Unlock()
		return true
	}
	f := p.fractionLocked()
	if f > p.progress {
		p.progress = f
	}
	p.mu.Unlock()
	p.emit()
	return f >= 1
}

func (p *Player) emit() {
	p.mu.Lock()
	fn := p.onProgress
	transport := p.transport
	f := p.progress
	pitch := p.pitchCents
	p.mu.Unlock()
	if fn != nil {
		fn(transport, f, pitch)
	}
}
