package media

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordedCall struct {
	name string
	args []string
}

// fakeRunner records calls and writes content to the output path found at outIdx
func fakeRunner(calls *[]recordedCall, outIdx int, content string) Runner {
	return func(ctx context.Context, name string, args ...string) error {
		*calls = append(*calls, recordedCall{name: name, args: args})
		if content == "" {
			return nil
		}
		return os.WriteFile(args[outIdx], []byte(content), 0o600)
	}
}

func TestTranscoderArguments(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "message_0.mp3")

	var calls []recordedCall
	tr := NewTranscoder("/usr/bin/ffmpeg", time.Second, fakeRunner(&calls, 3, "RIFF"))

	out, err := tr.Convert(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "message_0.wav"), out)
	require.Len(t, calls, 1)
	assert.Equal(t, "/usr/bin/ffmpeg", calls[0].name)
	assert.Equal(t, []string{"-y", "-i", input, out}, calls[0].args)
}

func TestLipSyncExtractorArguments(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "message_1.wav")

	var calls []recordedCall
	ex := NewLipSyncExtractor("", time.Second, fakeRunner(&calls, 3, `{"mouthCues":[]}`))

	out, err := ex.Convert(context.Background(), input)
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(dir, "message_1.json"), out)
	require.Len(t, calls, 1)
	assert.Equal(t, "./bin/rhubarb", calls[0].name)
	assert.Equal(t, []string{"-f", "json", "-o", out, input, "-r", "phonetic"}, calls[0].args)
}

func TestConvertFailsWithoutOutput(t *testing.T) {
	var calls []recordedCall
	tr := NewTranscoder("ffmpeg", time.Second, fakeRunner(&calls, 3, ""))

	_, err := tr.Convert(context.Background(), filepath.Join(t.TempDir(), "message_0.mp3"))

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "ffmpeg", toolErr.Tool)
}

func TestConvertPropagatesRunnerError(t *testing.T) {
	boom := errors.New("exit status 1")
	ex := NewLipSyncExtractor("rhubarb", time.Second, func(context.Context, string, ...string) error {
		return &ToolError{Tool: "rhubarb", Err: boom, Output: "unsupported format"}
	})

	_, err := ex.Convert(context.Background(), "x.wav")
	assert.ErrorIs(t, err, boom)
	assert.Contains(t, err.Error(), "unsupported format")
}

func TestRunAppliesTimeout(t *testing.T) {
	var deadline time.Time
	var ok bool
	tr := NewTranscoder("ffmpeg", 50*time.Millisecond, func(ctx context.Context, _ string, _ ...string) error {
		deadline, ok = ctx.Deadline()
		return errors.New("stop")
	})

	_, _ = tr.Convert(context.Background(), "a.mp3")
	assert.True(t, ok)
	assert.WithinDuration(t, time.Now(), deadline, time.Second)
}

func TestExecRunnerReportsMissingBinary(t *testing.T) {
	err := ExecRunner(context.Background(), filepath.Join(t.TempDir(), "no-such-tool"))

	var toolErr *ToolError
	require.ErrorAs(t, err, &toolErr)
	assert.Equal(t, "no-such-tool", toolErr.Tool)
}
