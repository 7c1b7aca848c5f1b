package player

import (
	"sync"
	"testing"
	"time"

	"github.com/matheussiqueirahub/Commute-Briefing/internal/audio"
)

type collectSink struct {
	mu     sync.Mutex
	frames [][]float32
}

func (s *collectSink) WriteFrame(samples []float32) {
	s.mu.Lock()
	frame := make([]float32, len(samples))
	copy(frame, samples)
	s.frames = append(s.frames, frame)
	s.mu.Unlock()
}

func (s *collectSink) total() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, f := range s.frames {
		n += len(f)
	}
	return n
}

func shortBuffer(n int) *audio.Buffer {
	samples := make([]float32, n)
	for i := range samples {
		samples[i] = float32(i) / float32(n)
	}
	return &audio.Buffer{Samples: samples, SampleRate: 1000}
}

func TestFrameRendererRunsToCompletion(t *testing.T) {
	sink := &collectSink{}
	r := NewFrameRenderer(sink, 5*time.Millisecond)

	done := make(chan struct{})
	r.Start(shortBuffer(50), 0, 0, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("renderer did not complete")
	}
	if got := sink.total(); got != 50 {
		t.Fatalf("rendered %d samples, want 50", got)
	}
}

func TestFrameRendererStopSuppressesCompletion(t *testing.T) {
	sink := &collectSink{}
	r := NewFrameRenderer(sink, 20*time.Millisecond)

	done := make(chan struct{})
	src := r.Start(shortBuffer(100000), 0, 0, func() { close(done) })
	src.Stop()

	select {
	case <-done:
		t.Fatal("done fired after explicit stop")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestFrameRendererDetuneShortensPlayback(t *testing.T) {
	sink := &collectSink{}
	r := NewFrameRenderer(sink, 5*time.Millisecond)

	// +1200 cents doubles the read rate, so half as many samples come out.
	done := make(chan struct{})
	r.Start(shortBuffer(100), 0, 1200, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("renderer did not complete")
	}
	got := sink.total()
	if got < 45 || got > 55 {
		t.Fatalf("rendered %d samples at double rate, want ~50", got)
	}
}

func TestFrameRendererStartsFromOffset(t *testing.T) {
	sink := &collectSink{}
	r := NewFrameRenderer(sink, 5*time.Millisecond)

	// 1000 Hz buffer, 40ms offset skips the first 40 samples.
	done := make(chan struct{})
	r.Start(shortBuffer(100), 40*time.Millisecond, 0, func() { close(done) })

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("renderer did not complete")
	}
	if got := sink.total(); got != 60 {
		t.Fatalf("rendered %d samples from offset, want 60", got)
	}
}
