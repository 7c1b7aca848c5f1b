package player

import (
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/matheussiqueirahub/Commute-Briefing/internal/audio"
)

// Sink receives rendered PCM frames in real time.
type Sink interface {
	WriteFrame(samples []float32)
}

// FrameRenderer renders the buffer as fixed-duration frames at wall-clock
// rate, resampling on the fly when a detune is applied. A detune of c cents
// shifts the read rate by 2^(c/1200), so pitched-up playback finishes early
// and pitched-down playback finishes late relative to the nominal duration.
type FrameRenderer struct {
	sink     Sink
	frameDur time.Duration
}

func NewFrameRenderer(sink Sink, frameDur time.Duration) *FrameRenderer {
	if frameDur <= 0 {
		frameDur = 20 * time.Millisecond
	}
	return &FrameRenderer{sink: sink, frameDur: frameDur}
}

func (r *FrameRenderer) Start(buf *audio.Buffer, offset time.Duration, detuneCents float64, done func()) Source {
	s := &frameSource{
		stop: make(chan struct{}),
	}
	s.setRate(detuneCents)
	go s.run(r, buf, offset, done)
	return s
}

type frameSource struct {
	rateBits atomic.Uint64 // float64 playback-rate ratio
	stop     chan struct{}
	stopOnce sync.Once
}

func (s *frameSource) SetDetune(cents float64) {
	s.setRate(cents)
}

func (s *frameSource) setRate(cents float64) {
	s.rateBits.Store(math.Float64bits(math.Pow(2, cents/1200)))
}

func (s *frameSource) rate() float64 {
	return math.Float64frombits(s.rateBits.Load())
}

func (s *frameSource) Stop() {
	s.stopOnce.Do(func() { close(s.stop) })
}

// run streams frames until the read position passes the end of the buffer,
// then reports natural completion. Stop detaches the done callback by
// ending the loop before completion is reached.
func (s *frameSource) run(r *FrameRenderer, buf *audio.Buffer, offset time.Duration, done func()) {
	frameLen := int(float64(buf.SampleRate) * r.frameDur.Seconds())
	if frameLen <= 0 {
		frameLen = 1
	}
	pos := offset.Seconds() * float64(buf.SampleRate)
	total := float64(len(buf.Samples))

	ticker := time.NewTicker(r.frameDur)
	defer ticker.Stop()

	for pos < total {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
		}

		rate := s.rate()
		frame := make([]float32, 0, frameLen)
		for i := 0; i < frameLen && pos < total; i++ {
			frame = append(frame, audio.Lerp(buf.Samples, pos))
			pos += rate
		}
		if r.sink != nil && len(frame) > 0 {
			r.sink.WriteFrame(frame)
		}
	}

	select {
	case <-s.stop:
	default:
		done()
	}
}
