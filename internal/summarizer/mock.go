package summarizer

import (
	"context"
	"fmt"
	"strings"
	"time"
)

type mockGenerator struct{}

func NewMockGenerator() Generator { return &mockGenerator{} }

func (m *mockGenerator) Summarize(ctx context.Context, req Request) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(20 * time.Millisecond):
	}
	var titles []string
	for _, seg := range req.Segments {
		titles = append(titles, seg.Title)
	}
	return fmt.Sprintf("%s Today we cover: %s. Have a good commute!",
		Greeting, strings.Join(titles, ", ")), nil
}
