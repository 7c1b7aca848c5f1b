// Package audio converts synthesized PCM16 payloads into normalized float
// buffers for the playback engine.
package audio

import (
	"encoding/binary"
	"errors"
	"time"
)

// DefaultSampleRate is the output rate requested from the speech service.
const DefaultSampleRate = 24000

// Buffer is one decoded mono audio clip. Samples are normalized to
// [-1.0, 1.0]. Buffers are immutable once built and are discarded, not
// pooled, when superseded.
type Buffer struct {
	Samples    []float32
	SampleRate int
}

var ErrEmptyPCM = errors.New("empty PCM payload")

// FromPCM16 reinterprets little-endian signed 16-bit mono samples and
// normalizes each by 32768.0. A trailing odd byte is dropped.
func FromPCM16(pcm []byte, sampleRate int) (*Buffer, error) {
	if len(pcm) == 0 {
		return nil, ErrEmptyPCM
	}
	if sampleRate <= 0 {
		return nil, errors.New("sample rate must be positive")
	}
	if len(pcm)%2 != 0 {
		pcm = pcm[:len(pcm)-1]
	}

	samples := make([]float32, len(pcm)/2)
	for i := range samples {
		s := int16(binary.LittleEndian.Uint16(pcm[i*2 : i*2+2]))
		samples[i] = float32(s) / 32768.0
	}
	return &Buffer{Samples: samples, SampleRate: sampleRate}, nil
}

// Duration reports the clip length at unity playback rate.
func (b *Buffer) Duration() time.Duration {
	if b == nil || b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(float64(len(b.Samples)) / float64(b.SampleRate) * float64(time.Second))
}

// ToPCM16 converts normalized samples back to little-endian PCM16 bytes,
// clipping to the int16 range.
func ToPCM16(samples []float32) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := float64(s) * 32768.0
		if v > 32767 {
			v = 32767
		} else if v < -32768 {
			v = -32768
		}
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(int16(v)))
	}
	return buf
}

// Lerp reads a fractional sample position with linear interpolation.
// Positions past the end return 0.
func Lerp(samples []float32, pos float64) float32 {
	if pos < 0 || len(samples) == 0 {
		return 0
	}
	i := int(pos)
	if i >= len(samples)-1 {
		if i < len(samples) {
			return samples[i]
		}
		return 0
	}
	frac := float32(pos - float64(i))
	return samples[i]*(1-frac) + samples[i+1]*frac
}
