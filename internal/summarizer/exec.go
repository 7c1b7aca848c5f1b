package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os/exec"
	"strings"
	"sync"

	"github.com/mattn/go-shellwords"
)

type execGenerator struct {
	cmd []string
	mu  sync.Mutex
}

type execSegment struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type execSummaryRequest struct {
	Segments    []execSegment `json:"segments"`
	MinWords    int           `json:"min_words"`
	MaxWords    int           `json:"max_words"`
	Temperature float64       `json:"temperature"`
}

type execSummaryResponse struct {
	Text string `json:"text"`
}

// NewExecGenerator runs an external command that reads a JSON request on
// stdin and writes {"text": ...} on stdout. Useful for local models.
func NewExecGenerator(command string) (Generator, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse summarizer command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("summarizer command empty")
	}
	return &execGenerator{cmd: args}, nil
}

func (g *execGenerator) Summarize(ctx context.Context, req Request) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	payload := execSummaryRequest{
		MinWords:    req.MinWords,
		MaxWords:    req.MaxWords,
		Temperature: req.Temperature,
	}
	for _, seg := range req.Segments {
		payload.Segments = append(payload.Segments, execSegment{Title: seg.Title, Content: seg.Content})
	}
	input, err := json.Marshal(payload)
	if err != nil {
		return "", err
	}

	base := g.cmd[0]
	args := append([]string{}, g.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(input)
	output, err := cmd.Output()
	if err != nil {
		return "", fmt.Errorf("summarizer exec command failed: %w", err)
	}

	var resp execSummaryResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return "", fmt.Errorf("decode summarizer exec response: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", fmt.Errorf("summarizer exec command returned empty text")
	}
	return text, nil
}
