package synth

import "context"

// Request contains the parameters for one speech synthesis call.
type Request struct {
	Text       string
	Voice      string // one of config.Voices
	SampleRate int    // target output rate in Hz
}

// Synthesizer is the contract for producing speech audio. Implementations
// return raw little-endian PCM16 mono bytes at the requested sample rate.
// An empty payload must be reported as remote.KindNoAudio, distinct from
// transport failures.
type Synthesizer interface {
	Synthesize(ctx context.Context, req Request) ([]byte, error)
}
