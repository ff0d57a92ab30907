package media

import (
	"context"
	"time"
)

// Transcoder converts MP3 speech to WAV with ffmpeg, overwriting any previous output
type Transcoder struct {
	path    string
	timeout time.Duration
	run     Runner
}

// NewTranscoder uses the ffmpeg binary at path. A nil runner selects ExecRunner.
func NewTranscoder(path string, timeout time.Duration, runner Runner) *Transcoder {
	if path == "" {
		path = "ffmpeg"
	}
	if runner == nil {
		runner = ExecRunner
	}
	return &Transcoder{path: path, timeout: timeout, run: runner}
}

// Convert writes input's .wav sibling and returns its path
func (t *Transcoder) Convert(ctx context.Context, input string) (string, error) {
	output := withExt(input, ".wav")
	if err := run(ctx, t.run, t.timeout, t.path, "-y", "-i", input, output); err != nil {
		return "", err
	}
	if err := requireOutput("ffmpeg", output); err != nil {
		return "", err
	}
	return output, nil
}

// Binary is the configured executable, used by health checks
func (t *Transcoder) Binary() string { return t.path }
