package ai

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompleteSendsJSONModeRequest(t *testing.T) {
	var got chatRequest
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		require.NoError(t, json.NewDecoder(r.Body).Decode(&got))

		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"choices":[{"message":{"content":"[{\"text\":\"hi\"}]"}}]}`))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "sk-test", BaseURL: server.URL + "/v1"})
	content, err := client.Complete(context.Background(), "system", "Hello")
	require.NoError(t, err)

	assert.Equal(t, `[{"text":"hi"}]`, content)
	assert.Equal(t, DefaultChatModel, got.Model)
	assert.Equal(t, 1000, got.MaxTokens)
	assert.InDelta(t, 0.6, got.Temperature, 0.0001)
	assert.Equal(t, "json_object", got.ResponseFormat.Type)
	require.Len(t, got.Messages, 2)
	assert.Equal(t, "system", got.Messages[0].Role)
	assert.Equal(t, "Hello", got.Messages[1].Content)
}

func TestCompleteErrors(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		check  func(t *testing.T, err error)
	}{
		{
			name:   "non-200 status",
			status: http.StatusTooManyRequests,
			body:   `{"error":{"message":"slow down"}}`,
			check: func(t *testing.T, err error) {
				var apiErr *APIError
				require.ErrorAs(t, err, &apiErr)
				assert.Equal(t, http.StatusTooManyRequests, apiErr.StatusCode)
			},
		},
		{
			name:   "no choices",
			status: http.StatusOK,
			body:   `{"choices":[]}`,
			check: func(t *testing.T, err error) {
				assert.ErrorIs(t, err, ErrEmptyCompletion)
			},
		},
		{
			name:   "garbage body",
			status: http.StatusOK,
			body:   `not json`,
			check: func(t *testing.T, err error) {
				assert.Error(t, err)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			}))
			defer server.Close()

			client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL})
			_, err := client.Complete(context.Background(), "s", "u")
			tt.check(t, err)
		})
	}
}

func TestTranscribeUploadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "voice-1.webm")
	require.NoError(t, os.WriteFile(path, []byte("fake-audio"), 0o600))

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/audio/transcriptions", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, DefaultTranscribeModel, r.FormValue("model"))
		assert.Equal(t, "text", r.FormValue("response_format"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		data, _ := io.ReadAll(file)
		assert.Equal(t, "voice-1.webm", header.Filename)
		assert.Equal(t, "fake-audio", string(data))

		w.Write([]byte("  hello there \n"))
	}))
	defer server.Close()

	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: server.URL})
	text, err := client.Transcribe(context.Background(), path)
	require.NoError(t, err)
	assert.Equal(t, "hello there", text)
}

func TestTranscribeMissingFile(t *testing.T) {
	client := NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: "http://127.0.0.1:1"})
	_, err := client.Transcribe(context.Background(), filepath.Join(t.TempDir(), "nope.webm"))
	assert.Error(t, err)
}
