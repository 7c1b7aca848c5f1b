package audio

import (
	"testing"
	"time"
)

func TestFromPCM16Normalization(t *testing.T) {
	// Samples: 0, 16384 (0.5), -32768 (-1.0), 32767 (~1.0)
	pcm := []byte{
		0x00, 0x00,
		0x00, 0x40,
		0x00, 0x80,
		0xFF, 0x7F,
	}
	buf, err := FromPCM16(pcm, DefaultSampleRate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := []float32{0, 0.5, -1.0, 32767.0 / 32768.0}
	if len(buf.Samples) != len(want) {
		t.Fatalf("expected %d samples, got %d", len(want), len(buf.Samples))
	}
	for i, w := range want {
		if diff := buf.Samples[i] - w; diff > 1e-6 || diff < -1e-6 {
			t.Errorf("sample[%d] = %v, want %v", i, buf.Samples[i], w)
		}
	}
}

func TestFromPCM16DropsTrailingOddByte(t *testing.T) {
	buf, err := FromPCM16([]byte{0x00, 0x40, 0xFF}, DefaultSampleRate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(buf.Samples) != 1 {
		t.Fatalf("expected 1 sample, got %d", len(buf.Samples))
	}
}

func TestFromPCM16RejectsEmptyPayload(t *testing.T) {
	if _, err := FromPCM16(nil, DefaultSampleRate); err != ErrEmptyPCM {
		t.Fatalf("expected ErrEmptyPCM, got %v", err)
	}
}

func TestBufferDuration(t *testing.T) {
	buf := &Buffer{Samples: make([]float32, DefaultSampleRate*10), SampleRate: DefaultSampleRate}
	if got := buf.Duration(); got != 10*time.Second {
		t.Fatalf("Duration = %v, want 10s", got)
	}
	var nilBuf *Buffer
	if nilBuf.Duration() != 0 {
		t.Fatal("nil buffer must report zero duration")
	}
}

func TestToPCM16RoundTrip(t *testing.T) {
	pcm := []byte{0x00, 0x00, 0x00, 0x40, 0x00, 0x80}
	buf, err := FromPCM16(pcm, DefaultSampleRate)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	got := ToPCM16(buf.Samples)
	for i := range pcm {
		if got[i] != pcm[i] {
			t.Fatalf("round-trip byte[%d] = %02x, want %02x", i, got[i], pcm[i])
		}
	}
}

func TestToPCM16Clips(t *testing.T) {
	got := ToPCM16([]float32{2.0, -2.0})
	// 2.0 clips to 32767, -2.0 clips to -32768.
	if got[0] != 0xFF || got[1] != 0x7F {
		t.Errorf("positive clip = [%02x %02x], want [FF 7F]", got[0], got[1])
	}
	if got[2] != 0x00 || got[3] != 0x80 {
		t.Errorf("negative clip = [%02x %02x], want [00 80]", got[2], got[3])
	}
}

func TestLerpInterpolates(t *testing.T) {
	samples := []float32{0, 1}
	if got := Lerp(samples, 0.5); got != 0.5 {
		t.Errorf("Lerp(0.5) = %v, want 0.5", got)
	}
	if got := Lerp(samples, 1); got != 1 {
		t.Errorf("Lerp(1) = %v, want 1", got)
	}
	if got := Lerp(samples, 5); got != 0 {
		t.Errorf("Lerp past end = %v, want 0", got)
	}
	if got := Lerp(samples, -1); got != 0 {
		t.Errorf("Lerp(-1) = %v, want 0", got)
	}
}
