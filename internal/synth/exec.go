package synth

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"sync"

	"github.com/matheussiqueirahub/Commute-Briefing/internal/remote"
	"github.com/mattn/go-shellwords"
)

type execSynth struct {
	cmd []string
	mu  sync.Mutex
}

type execSynthRequest struct {
	Text       string `json:"text"`
	Voice      string `json:"voice"`
	SampleRate int    `json:"sample_rate"`
}

type execSynthResponse struct {
	PCMBase64 string `json:"pcm_base64"`
}

// NewExecSynth runs an external command that reads a JSON request on stdin
// and writes {"pcm_base64": ...} on stdout.
func NewExecSynth(command string) (Synthesizer, error) {
	parser := shellwords.NewParser()
	args, err := parser.Parse(command)
	if err != nil {
		return nil, fmt.Errorf("parse synth command: %w", err)
	}
	if len(args) == 0 {
		return nil, fmt.Errorf("synth command empty")
	}
	return &execSynth{cmd: args}, nil
}

func (e *execSynth) Synthesize(ctx context.Context, req Request) ([]byte, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	input, err := json.Marshal(execSynthRequest{
		Text:       req.Text,
		Voice:      req.Voice,
		SampleRate: req.SampleRate,
	})
	if err != nil {
		return nil, err
	}

	base := e.cmd[0]
	args := append([]string{}, e.cmd[1:]...)
	cmd := exec.CommandContext(ctx, base, args...)
	cmd.Stdin = bytes.NewReader(input)
	output, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("synth exec command failed: %w", err)
	}

	var resp execSynthResponse
	if err := json.Unmarshal(output, &resp); err != nil {
		return nil, fmt.Errorf("decode synth exec response: %w", err)
	}
	if resp.PCMBase64 == "" {
		return nil, remote.NewError(op, remote.KindNoAudio, errors.New("exec synth returned no audio payload"))
	}
	pcm, err := base64.StdEncoding.DecodeString(resp.PCMBase64)
	if err != nil {
		return nil, fmt.Errorf("decode synth exec payload: %w", err)
	}
	if len(pcm) == 0 {
		return nil, remote.NewError(op, remote.KindNoAudio, errors.New("exec synth payload is empty"))
	}
	return pcm, nil
}
