package summarizer

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/matheussiqueirahub/Commute-Briefing/internal/remote"
)

func TestBuildPromptLabelsSegments(t *testing.T) {
	prompt := buildPrompt([]Segment{
		{Title: "Traffic", Content: "The bridge is closed."},
		{Title: "Weather", Content: "Rain until noon."},
	})
	if !strings.Contains(prompt, "--- Article 1: Traffic ---") {
		t.Errorf("missing first label:\n%s", prompt)
	}
	if !strings.Contains(prompt, "--- Article 2: Weather ---") {
		t.Errorf("missing second label:\n%s", prompt)
	}
	if !strings.Contains(prompt, "The bridge is closed.") {
		t.Error("missing first content")
	}
}

func TestSystemPromptCarriesGreetingAndBounds(t *testing.T) {
	p := systemPrompt(300, 500)
	if !strings.Contains(p, Greeting) {
		t.Error("system prompt must pin the fixed greeting")
	}
	if !strings.Contains(p, "300 to 500 words") {
		t.Errorf("system prompt must carry word bounds:\n%s", p)
	}
}

func TestGeminiMissingKeyIsConfigError(t *testing.T) {
	g := NewGeminiGenerator("http://localhost:0", "", "gemini-2.5-flash")
	_, err := g.Summarize(context.Background(), Request{
		Segments: []Segment{{Title: "a", Content: "b"}},
	})
	if remote.ClassifyKind(err) != remote.KindConfig {
		t.Fatalf("expected config error, got %v", err)
	}
}

func TestGeminiSummarizeSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, ":generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		w.Write([]byte(`{"candidates":[{"content":{"parts":[{"text":"Good morning, briefing text."}]},"finishReason":"STOP"}]}`))
	}))
	defer srv.Close()

	g := NewGeminiGenerator(srv.URL, "key", "gemini-2.5-flash")
	text, err := g.Summarize(context.Background(), Request{
		Segments: []Segment{{Title: "a", Content: "b"}},
		MinWords: 300, MaxWords: 500,
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "Good morning, briefing text." {
		t.Fatalf("unexpected text %q", text)
	}
}

func TestGeminiSafetyBlockIsSafetyError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"promptFeedback":{"blockReason":"SAFETY"}}`))
	}))
	defer srv.Close()

	g := NewGeminiGenerator(srv.URL, "key", "gemini-2.5-flash")
	_, err := g.Summarize(context.Background(), Request{
		Segments: []Segment{{Title: "a", Content: "b"}},
	})
	if remote.ClassifyKind(err) != remote.KindSafety {
		t.Fatalf("expected safety error, got %v", err)
	}
}

func TestGeminiQuotaStatusIsQuotaError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "quota exceeded", http.StatusTooManyRequests)
	}))
	defer srv.Close()

	g := NewGeminiGenerator(srv.URL, "key", "gemini-2.5-flash")
	_, err := g.Summarize(context.Background(), Request{
		Segments: []Segment{{Title: "a", Content: "b"}},
	})
	if remote.ClassifyKind(err) != remote.KindQuota {
		t.Fatalf("expected quota error, got %v", err)
	}
}

func TestMockGeneratorOpensWithGreeting(t *testing.T) {
	g := NewMockGenerator()
	text, err := g.Summarize(context.Background(), Request{
		Segments: []Segment{{Title: "Traffic", Content: "..."}},
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasPrefix(text, Greeting) {
		t.Fatalf("mock output must open with the greeting, got %q", text)
	}
}

func TestMockGeneratorHonorsCancellation(t *testing.T) {
	g := NewMockGenerator()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := g.Summarize(ctx, Request{Segments: []Segment{{Title: "a", Content: "b"}}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
