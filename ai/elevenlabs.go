package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

const (
	DefaultElevenLabsBaseURL = "https://api.elevenlabs.io/v1"
	DefaultVoiceID           = "EXAVITQu4vr4xnSDxMaL"
	DefaultTTSModel          = "eleven_multilingual_v2"
)

// ErrEmptyAudio is returned when synthesis succeeds with an empty body
var ErrEmptyAudio = errors.New("text-to-speech returned no audio")

// ElevenLabsConfig configures ElevenLabsClient
type ElevenLabsConfig struct {
	APIKey  string
	BaseURL string
	VoiceID string
	ModelID string
	Timeout time.Duration
}

// ElevenLabsClient synthesizes speech and lists voices
type ElevenLabsClient struct {
	cfg        ElevenLabsConfig
	httpClient *http.Client
}

// NewElevenLabsClient fills unset fields with defaults
func NewElevenLabsClient(cfg ElevenLabsConfig) *ElevenLabsClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultElevenLabsBaseURL
	}
	if cfg.VoiceID == "" {
		cfg.VoiceID = DefaultVoiceID
	}
	if cfg.ModelID == "" {
		cfg.ModelID = DefaultTTSModel
	}
	return &ElevenLabsClient{cfg: cfg, httpClient: newHTTPClient(cfg.Timeout)}
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

// Synthesize returns MP3 audio for text in the configured voice
func (c *ElevenLabsClient) Synthesize(ctx context.Context, text string) ([]byte, error) {
	requestBody := ttsRequest{
		Text:          text,
		ModelID:       c.cfg.ModelID,
		VoiceSettings: voiceSettings{Stability: 0.5, SimilarityBoost: 0.5},
	}

	jsonData, err := json.Marshal(requestBody)
	if err != nil {
		return nil, fmt.Errorf("error marshaling TTS request: %w", err)
	}

	endpoint := joinURL(c.cfg.BaseURL, "text-to-speech/"+url.PathEscape(c.cfg.VoiceID))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(jsonData))
	if err != nil {
		return nil, fmt.Errorf("error creating TTS request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Accept", "audio/mpeg")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making TTS API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiErrorFrom("ElevenLabs", resp)
	}

	audio, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading TTS response body: %w", err)
	}
	if len(audio) == 0 {
		return nil, ErrEmptyAudio
	}
	return audio, nil
}

// Voices returns the provider's voice catalogue unchanged
func (c *ElevenLabsClient) Voices(ctx context.Context) (json.RawMessage, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, joinURL(c.cfg.BaseURL, "voices"), nil)
	if err != nil {
		return nil, fmt.Errorf("error creating voices request: %w", err)
	}
	req.Header.Set("xi-api-key", c.cfg.APIKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error making voices API request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, apiErrorFrom("ElevenLabs", resp)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("error reading voices response body: %w", err)
	}
	if !json.Valid(body) {
		return nil, fmt.Errorf("voices response is not JSON")
	}
	return json.RawMessage(body), nil
}
