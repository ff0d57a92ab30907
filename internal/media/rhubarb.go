package media

import (
	"context"
	"time"
)

// LipSyncExtractor runs Rhubarb Lip Sync in phonetic mode, which is faster than
// the default recognizer and language independent.
type LipSyncExtractor struct {
	path    string
	timeout time.Duration
	run     Runner
}

// NewLipSyncExtractor uses the rhubarb binary at path. A nil runner selects ExecRunner.
func NewLipSyncExtractor(path string, timeout time.Duration, runner Runner) *LipSyncExtractor {
	if path == "" {
		path = "./bin/rhubarb"
	}
	if runner == nil {
		runner = ExecRunner
	}
	return &LipSyncExtractor{path: path, timeout: timeout, run: runner}
}

// Convert writes the mouth-cue JSON next to the WAV input and returns its path
func (e *LipSyncExtractor) Convert(ctx context.Context, input string) (string, error) {
	output := withExt(input, ".json")
	if err := run(ctx, e.run, e.timeout, e.path, "-f", "json", "-o", output, input, "-r", "phonetic"); err != nil {
		return "", err
	}
	if err := requireOutput("rhubarb", output); err != nil {
		return "", err
	}
	return output, nil
}

// Binary is the configured executable, used by health checks
func (e *LipSyncExtractor) Binary() string { return e.path }
