package summarizer

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matheussiqueirahub/Commute-Briefing/internal/remote"
)

const op = "summarize"

type geminiGenerator struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewGeminiGenerator builds a Generator backed by the Gemini REST API.
func NewGeminiGenerator(endpoint, apiKey, model string) Generator {
	return &geminiGenerator{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: 60 * time.Second},
	}
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiPart struct {
	Text string `json:"text"`
}

type geminiGenerateRequest struct {
	Contents          []geminiContent   `json:"contents"`
	SystemInstruction *geminiContent    `json:"systemInstruction,omitempty"`
	GenerationConfig  *generationConfig `json:"generationConfig,omitempty"`
}

type generationConfig struct {
	Temperature     float64 `json:"temperature,omitempty"`
	MaxOutputTokens int     `json:"maxOutputTokens,omitempty"`
}

type geminiGenerateResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

func (g *geminiGenerator) Summarize(ctx context.Context, req Request) (string, error) {
	if g.apiKey == "" {
		return "", remote.NewError(op, remote.KindConfig, errors.New("gemini API key is not set"))
	}
	if len(req.Segments) == 0 {
		return "", fmt.Errorf("summarize: no segments provided")
	}

	payload := geminiGenerateRequest{
		Contents: []geminiContent{{
			Role:  "user",
			Parts: []geminiPart{{Text: buildPrompt(req.Segments)}},
		}},
		SystemInstruction: &geminiContent{
			Parts: []geminiPart{{Text: systemPrompt(req.MinWords, req.MaxWords)}},
		},
		GenerationConfig: &generationConfig{
			Temperature:     req.Temperature,
			MaxOutputTokens: 4096,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode summarize request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.endpoint, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return "", remote.NewError(op, remote.KindNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", remote.NewError(op, remote.KindNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", remote.FromStatus(op, resp.StatusCode, string(respBody))
	}

	var parsed geminiGenerateResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", remote.NewError(op, remote.KindUnknown, fmt.Errorf("malformed response: %w", err))
	}
	if parsed.PromptFeedback.BlockReason != "" {
		return "", remote.NewError(op, remote.KindSafety,
			fmt.Errorf("prompt blocked: %s", parsed.PromptFeedback.BlockReason))
	}
	if len(parsed.Candidates) == 0 {
		return "", remote.NewError(op, remote.KindUnknown, errors.New("no candidates in response"))
	}
	cand := parsed.Candidates[0]
	if cand.FinishReason == "SAFETY" {
		return "", remote.NewError(op, remote.KindSafety, errors.New("response blocked by safety filter"))
	}
	if len(cand.Content.Parts) == 0 {
		return "", remote.NewError(op, remote.KindUnknown, errors.New("empty candidate content"))
	}

	text := strings.TrimSpace(cand.Content.Parts[0].Text)
	if text == "" {
		return "", remote.NewError(op, remote.KindUnknown, errors.New("model returned empty text"))
	}
	return text, nil
}
