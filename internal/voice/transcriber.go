// Package voice turns uploaded speech into text for the chat pipeline.
package voice

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"talking-avatar/backend/pkg/logger"
	"talking-avatar/backend/pkg/resilience"

	"github.com/google/uuid"
)

// DefaultExtension is used when the upload has no usable file extension
const DefaultExtension = ".webm"

// ErrTranscriptionFailed wraps any failure of the speech-to-text provider
var ErrTranscriptionFailed = errors.New("transcription failed")

var extPattern = regexp.MustCompile(`^\.[a-zA-Z0-9]{1,10}$`)

// SpeechToText transcribes the audio file at path
type SpeechToText interface {
	Transcribe(ctx context.Context, path string) (string, error)
}

// Transcriber writes an upload to a private scratch file, transcribes it and
// removes the file again.
type Transcriber struct {
	stt        SpeechToText
	scratchDir string
	breaker    *resilience.CircuitBreaker
	log        *logger.Logger
}

// NewTranscriber stores uploads under scratchDir
func NewTranscriber(stt SpeechToText, scratchDir string, log *logger.Logger) *Transcriber {
	if scratchDir == "" {
		scratchDir = os.TempDir()
	}
	if log == nil {
		log = logger.GetGlobal()
	}
	return &Transcriber{stt: stt, scratchDir: scratchDir, log: log}
}

// WithBreaker routes provider calls through cb
func (t *Transcriber) WithBreaker(cb *resilience.CircuitBreaker) *Transcriber {
	t.breaker = cb
	return t
}

// Transcribe returns the trimmed transcript of audio. An empty string means the
// provider heard nothing. The scratch file is removed on every path.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, filename string) (string, error) {
	if err := os.MkdirAll(t.scratchDir, 0o700); err != nil {
		return "", fmt.Errorf("%w: create scratch directory: %v", ErrTranscriptionFailed, err)
	}

	path := filepath.Join(t.scratchDir, "voice-"+uuid.NewString()+Extension(filename))
	err := os.WriteFile(path, audio, 0o600)
	if err != nil {
		return "", fmt.Errorf("%w: write upload: %v", ErrTranscriptionFailed, err)
	}
	defer func() {
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			t.log.Warn("failed to remove voice upload", "path", path, "error", err.Error())
		}
	}()

	call := func() (string, error) { return t.stt.Transcribe(ctx, path) }
	var text string
	if t.breaker != nil {
		text, err = resilience.Call(t.breaker, call)
	} else {
		text, err = call()
	}
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrTranscriptionFailed, err)
	}
	return strings.TrimSpace(text), nil
}

// Extension picks the scratch file extension from the client's file name
func Extension(filename string) string {
	ext := filepath.Ext(filename)
	if !extPattern.MatchString(ext) {
		return DefaultExtension
	}
	return strings.ToLower(ext)
}
