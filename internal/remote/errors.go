// Package remote defines the failure taxonomy shared by the summarization
// and speech-synthesis clients. Backends tag failures with a Kind; the
// orchestrator turns the Kind into a single user-facing message and never
// lets the underlying error travel further.
package remote

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
)

type Kind int

const (
	KindUnknown Kind = iota
	KindConfig       // missing or invalid credential
	KindQuota        // rate limit or quota exhausted
	KindSafety       // content-safety rejection
	KindNetwork      // connectivity failure
	KindUnavailable  // service overloaded or down
	KindNoAudio      // synthesis succeeded but returned no payload
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindQuota:
		return "quota"
	case KindSafety:
		return "safety"
	case KindNetwork:
		return "network"
	case KindUnavailable:
		return "unavailable"
	case KindNoAudio:
		return "no_audio"
	default:
		return "unknown"
	}
}

// Error wraps a backend failure with its classified kind.
type Error struct {
	Kind Kind
	Op   string // "summarize" or "synthesize"
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Kind)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// NewError builds a classified remote error.
func NewError(op string, kind Kind, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}

// ClassifyKind extracts the Kind from err, classifying plain transport
// errors as network failures.
func ClassifyKind(err error) Kind {
	var re *Error
	if errors.As(err, &re) {
		return re.Kind
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return KindNetwork
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindNetwork
	}
	return KindUnknown
}

// FromStatus classifies an HTTP failure from the model service.
func FromStatus(op string, status int, body string) *Error {
	err := fmt.Errorf("service returned status %d: %s", status, truncate(body, 200))
	lower := strings.ToLower(body)
	switch {
	case status == 401 || status == 403:
		return NewError(op, KindConfig, err)
	case status == 400 && strings.Contains(lower, "api key"):
		return NewError(op, KindConfig, err)
	case status == 429:
		return NewError(op, KindQuota, err)
	case status == 503 || status == 529:
		return NewError(op, KindUnavailable, err)
	default:
		return NewError(op, KindUnknown, err)
	}
}

// UserMessage maps a classified error to the message surfaced to the caller.
// Unclassified errors fall back to the raw underlying message.
func UserMessage(err error) string {
	switch ClassifyKind(err) {
	case KindConfig:
		return "Missing or invalid API key. Set GEMINI_API_KEY and try again."
	case KindQuota:
		return "Rate limit reached. Wait a moment before generating again."
	case KindSafety:
		return "The request was blocked by content safety filters. Edit the queued articles and retry."
	case KindNetwork:
		return "Network error reaching the model service. Check your connection and retry."
	case KindUnavailable:
		return "The model service is currently overloaded. Try again later."
	case KindNoAudio:
		return "No audio data returned by the speech service."
	default:
		return err.Error()
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
