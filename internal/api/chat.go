// Package api holds the HTTP handlers. Handlers translate service errors into
// pkg/errors values with c.Error and leave rendering to the error middleware.
package api

import (
	"context"
	stderrors "errors"
	"io"
	"net/http"

	"talking-avatar/backend/internal/models"
	"talking-avatar/backend/internal/voice"
	"talking-avatar/backend/pkg/errors"
	"talking-avatar/backend/pkg/logger"
	"talking-avatar/backend/pkg/middleware"

	"github.com/gin-gonic/gin"
)

// DefaultMaxUploadSize caps voice uploads at 25MB
const DefaultMaxUploadSize int64 = 25 << 20

// ReplyPipeline is implemented by pipeline.Orchestrator
type ReplyPipeline interface {
	Run(ctx context.Context, utterance string) ([]models.ReplySegment, error)
	Configured() bool
	MissingKeys() []models.ReplySegment
}

// SpeechTranscriber is implemented by voice.Transcriber
type SpeechTranscriber interface {
	Transcribe(ctx context.Context, audio []byte, filename string) (string, error)
}

// ChatHandler serves text and voice chat
type ChatHandler struct {
	pipeline      ReplyPipeline
	transcriber   SpeechTranscriber
	maxUploadSize int64
}

// NewChatHandler creates a chat handler. maxUploadSize <= 0 selects DefaultMaxUploadSize.
func NewChatHandler(pipeline ReplyPipeline, transcriber SpeechTranscriber, maxUploadSize int64) *ChatHandler {
	if maxUploadSize <= 0 {
		maxUploadSize = DefaultMaxUploadSize
	}
	return &ChatHandler{
		pipeline:      pipeline,
		transcriber:   transcriber,
		maxUploadSize: maxUploadSize,
	}
}

// Chat answers a text message with reply segments. An empty or missing
// message gets the introduction.
func (h *ChatHandler) Chat(c *gin.Context) {
	var req models.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil && !stderrors.Is(err, io.EOF) {
		c.Error(errors.NewValidationError("Invalid request format"))
		return
	}

	// A client that hangs up does not abort a run half way through its files
	segments, err := h.pipeline.Run(middleware.Detached(c), req.Message)
	if err != nil {
		c.Error(errors.NewUpstreamError("Failed to generate a reply", err))
		return
	}

	c.JSON(http.StatusOK, models.ChatResponse{Messages: segments})
}

// Voice transcribes the multipart "audio" upload and answers it like Chat
func (h *ChatHandler) Voice(c *gin.Context) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadSize)

	file, header, err := c.Request.FormFile("audio")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if stderrors.As(err, &tooLarge) {
			c.Error(errors.NewValidationError("Audio file is too large"))
			return
		}
		c.Error(errors.NewValidationError("Audio file is required"))
		return
	}
	defer file.Close()

	audio, err := io.ReadAll(file)
	if err != nil {
		c.Error(errors.NewValidationError("Failed to read audio upload").WithCause(err))
		return
	}
	if len(audio) == 0 {
		c.Error(errors.NewValidationError("Audio file is empty"))
		return
	}

	if h.transcriber == nil {
		if !h.pipeline.Configured() {
			c.JSON(http.StatusOK, models.VoiceChatResponse{Transcript: "", Messages: h.pipeline.MissingKeys()})
			return
		}
		c.Error(errors.NewTranscriptionError("Speech transcription is not configured"))
		return
	}

	ctx := middleware.Detached(c)
	transcript, err := h.transcriber.Transcribe(ctx, audio, header.Filename)
	if err != nil {
		c.Error(errors.NewTranscriptionError("Failed to transcribe audio").WithCause(err))
		return
	}
	if transcript == "" {
		c.Error(errors.NewTranscriptionError("No speech detected in audio"))
		return
	}
	logger.FromContext(c).Debug("voice message transcribed", "chars", len(transcript))

	// Without synthesis keys Run answers with the configuration reminder

	segments, err := h.pipeline.Run(ctx, transcript)
	if err != nil {
		c.Error(errors.NewUpstreamError("Failed to generate a reply", err))
		return
	}

	c.JSON(http.StatusOK, models.VoiceChatResponse{Transcript: transcript, Messages: segments})
}

var _ SpeechTranscriber = (*voice.Transcriber)(nil)
