package summarizer

import "context"

// Segment is one article handed to the model, already labeled for the
// prompt.
type Segment struct {
	Title   string
	Content string
}

// Request describes a briefing summarization call.
type Request struct {
	Segments    []Segment
	MinWords    int
	MaxWords    int
	Temperature float64
}

// Generator is the contract for producing a spoken-style briefing script.
// Failures are remote-service errors; callers classify them, nothing more.
type Generator interface {
	Summarize(ctx context.Context, req Request) (string, error)
}
