package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/matheussiqueirahub/Commute-Briefing/internal/remote"
)

const op = "synthesize"

type geminiSynth struct {
	endpoint string
	apiKey   string
	model    string
	client   *http.Client
}

// NewGeminiSynth builds a Synthesizer backed by the Gemini TTS API.
func NewGeminiSynth(endpoint, apiKey, model string) Synthesizer {
	return &geminiSynth{
		endpoint: strings.TrimRight(endpoint, "/"),
		apiKey:   apiKey,
		model:    model,
		client:   &http.Client{Timeout: 120 * time.Second},
	}
}

type speechRequest struct {
	Contents         []speechContent `json:"contents"`
	GenerationConfig speechGenConfig `json:"generationConfig"`
}

type speechContent struct {
	Parts []speechPart `json:"parts"`
}

type speechPart struct {
	Text string `json:"text"`
}

type speechGenConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	SpeechConfig       speechConfig `json:"speechConfig"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoice `json:"prebuiltVoiceConfig"`
}

type prebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type speechResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				InlineData struct {
					MimeType string `json:"mimeType"`
					Data     string `json:"data"`
				} `json:"inlineData"`
			} `json:"parts"`
		} `json:"content"`
	} `json:"candidates"`
}

func (g *geminiSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	if g.apiKey == "" {
		return nil, remote.NewError(op, remote.KindConfig, errors.New("gemini API key is not set"))
	}

	payload := speechRequest{
		Contents: []speechContent{{Parts: []speechPart{{Text: req.Text}}}},
		GenerationConfig: speechGenConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: speechConfig{
				VoiceConfig: voiceConfig{
					PrebuiltVoiceConfig: prebuiltVoice{VoiceName: req.Voice},
				},
			},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("encode synthesis request: %w", err)
	}

	url := fmt.Sprintf("%s/models/%s:generateContent?key=%s", g.endpoint, g.model, g.apiKey)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(httpReq)
	if err != nil {
		return nil, remote.NewError(op, remote.KindNetwork, err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, remote.NewError(op, remote.KindNetwork, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, remote.FromStatus(op, resp.StatusCode, string(respBody))
	}

	var parsed speechResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, remote.NewError(op, remote.KindUnknown, fmt.Errorf("malformed response: %w", err))
	}

	encoded := ""
	if len(parsed.Candidates) > 0 && len(parsed.Candidates[0].Content.Parts) > 0 {
		encoded = parsed.Candidates[0].Content.Parts[0].InlineData.Data
	}
	if encoded == "" {
		return nil, remote.NewError(op, remote.KindNoAudio, errors.New("response contained no audio payload"))
	}

	pcm, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, remote.NewError(op, remote.KindUnknown, fmt.Errorf("decode audio payload: %w", err))
	}
	if len(pcm) == 0 {
		return nil, remote.NewError(op, remote.KindNoAudio, errors.New("decoded audio payload is empty"))
	}
	return pcm, nil
}
