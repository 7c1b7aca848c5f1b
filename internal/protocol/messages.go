package protocol

import "time"

// GenerateCommand asks the orchestrator to build a fresh briefing from the
// current queue contents.
type GenerateCommand struct {
	RequestedAt time.Time `json:"requested_at"`
}

// TransportCommand drives the playback engine.
type TransportCommand struct {
	Action string  `json:"action"` // play, pause, stop, pitch
	Cents  float64 `json:"cents,omitempty"`
}

// GenerationEvent is broadcast whenever the orchestrator changes state.
type GenerationEvent struct {
	Epoch     uint64    `json:"epoch"`
	State     string    `json:"state"`
	Message   string    `json:"message,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// TranscriptEvent carries the last successful briefing text.
type TranscriptEvent struct {
	Epoch     uint64    `json:"epoch"`
	Text      string    `json:"text"`
	Voice     string    `json:"voice"`
	Timestamp time.Time `json:"timestamp"`
}

// ProgressEvent is emitted on each progress tick while playing.
type ProgressEvent struct {
	Transport string    `json:"transport"`
	Fraction  float64   `json:"fraction"`
	Pitch     float64   `json:"pitch_cents"`
	Timestamp time.Time `json:"timestamp"`
}

const (
	SubjectGenerate        = "briefing.generate"
	SubjectTransport       = "briefing.transport"
	SubjectGenerationState = "briefing.state"
	SubjectTranscript      = "briefing.transcript"
	SubjectProgress        = "briefing.playback.progress"
)
