package synth

import (
	"context"
	"encoding/binary"
	"math"
	"time"
)

type mockSynth struct{}

// NewMockSynth produces a quiet sine tone whose length scales with the input
// text, so playback behaves realistically without a remote call.
func NewMockSynth() Synthesizer {
	return &mockSynth{}
}

func (m *mockSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(30 * time.Millisecond):
	}

	// Roughly 60ms of audio per word, minimum one second.
	words := 1 + len(req.Text)/6
	samples := req.SampleRate * words * 60 / 1000
	if samples < req.SampleRate {
		samples = req.SampleRate
	}

	pcm := make([]byte, samples*2)
	for i := 0; i < samples; i++ {
		v := int16(3000 * math.Sin(2*math.Pi*220*float64(i)/float64(req.SampleRate)))
		binary.LittleEndian.PutUint16(pcm[i*2:], uint16(v))
	}
	return pcm, nil
}
