// Package media wraps the command-line tools that turn synthesized speech into
// lip-sync data: ffmpeg for MP3 to WAV and Rhubarb for WAV to mouth cues.
package media

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"
)

// maxToolOutput caps the stderr kept on a failed run
const maxToolOutput = 2 << 10

// Converter turns the file at input into a sibling file and returns its path
type Converter interface {
	Convert(ctx context.Context, input string) (string, error)
}

// Runner executes a command. Swapped out in tests.
type Runner func(ctx context.Context, name string, args ...string) error

// ToolError is a failed or timed-out tool invocation
type ToolError struct {
	Tool   string
	Err    error
	Output string
}

func (e *ToolError) Error() string {
	if e.Output == "" {
		return fmt.Sprintf("%s failed: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("%s failed: %v: %s", e.Tool, e.Err, e.Output)
}

func (e *ToolError) Unwrap() error { return e.Err }

// ExecRunner runs the command and returns a ToolError carrying its output on failure
func ExecRunner(ctx context.Context, name string, args ...string) error {
	var output bytes.Buffer
	cmd := exec.CommandContext(ctx, name, args...)
	cmd.Stdout = &output
	cmd.Stderr = &output

	if err := cmd.Run(); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			err = ctxErr
		}
		out := output.String()
		if len(out) > maxToolOutput {
			out = out[len(out)-maxToolOutput:]
		}
		return &ToolError{Tool: filepath.Base(name), Err: err, Output: strings.TrimSpace(out)}
	}
	return nil
}

func withExt(path, ext string) string {
	return strings.TrimSuffix(path, filepath.Ext(path)) + ext
}

func run(ctx context.Context, runner Runner, timeout time.Duration, name string, args ...string) error {
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	return runner(ctx, name, args...)
}

func requireOutput(tool, path string) error {
	info, err := os.Stat(path)
	if err != nil {
		return &ToolError{Tool: tool, Err: fmt.Errorf("expected output %s: %w", filepath.Base(path), err)}
	}
	if info.Size() == 0 {
		return &ToolError{Tool: tool, Err: fmt.Errorf("output %s is empty", filepath.Base(path))}
	}
	return nil
}
