package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"talking-avatar/backend/internal/models"
	"talking-avatar/backend/internal/pipeline"
	"talking-avatar/backend/pkg/cache"
	apperrors "talking-avatar/backend/pkg/errors"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type stubPipeline struct {
	segments   []models.ReplySegment
	err        error
	configured bool
	got        string
	ctxErr     error
}

func (s *stubPipeline) Run(ctx context.Context, utterance string) ([]models.ReplySegment, error) {
	s.got = utterance
	s.ctxErr = ctx.Err()
	return s.segments, s.err
}

func (s *stubPipeline) Configured() bool { return s.configured }

func (s *stubPipeline) MissingKeys() []models.ReplySegment {
	return []models.ReplySegment{{Text: "keys"}}
}

func serve(handler gin.HandlerFunc, req *http.Request) *httptest.ResponseRecorder {
	r := gin.New()
	r.Use(apperrors.ErrorHandler())
	r.Handle(req.Method, req.URL.Path, handler)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestChatHidesPipelineFailure(t *testing.T) {
	stub := &stubPipeline{
		configured: true,
		err:        &pipeline.StageError{Index: 1, Stage: pipeline.StageSynthesis, Err: errors.New("elevenlabs: 401 invalid api key")},
	}
	h := NewChatHandler(stub, nil, 0)

	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`))
	req.Header.Set("Content-Type", "application/json")
	w := serve(h.Chat, req)

	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), apperrors.CodeUpstream)
	assert.NotContains(t, w.Body.String(), "invalid api key")
}

func TestChatEmptyBodyIsEmptyMessage(t *testing.T) {
	stub := &stubPipeline{segments: []models.ReplySegment{}}
	h := NewChatHandler(stub, nil, 0)

	w := serve(h.Chat, httptest.NewRequest(http.MethodPost, "/chat", nil))

	require.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"messages":[]}`, w.Body.String())
	assert.Equal(t, "", stub.got)
}

func TestChatRunSurvivesClientCancel(t *testing.T) {
	stub := &stubPipeline{segments: []models.ReplySegment{}}
	h := NewChatHandler(stub, nil, 0)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	req := httptest.NewRequest(http.MethodPost, "/chat", strings.NewReader(`{"message":"hi"}`)).WithContext(ctx)
	req.Header.Set("Content-Type", "application/json")
	serve(h.Chat, req)

	assert.Equal(t, "hi", stub.got)
	assert.NoError(t, stub.ctxErr)
}

type stubCatalog struct {
	calls int
	err   error
}

func (s *stubCatalog) Voices(context.Context) (json.RawMessage, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return json.RawMessage(`{"voices":[{"name":"Bella"}]}`), nil
}

func TestVoicesUpstreamFailureIsNotCached(t *testing.T) {
	catalog := &stubCatalog{err: errors.New("elevenlabs: 503")}
	mem := cache.NewMemory(0, 0)
	h := NewVoicesHandler(catalog, mem, time.Minute)

	w := serve(h.List, httptest.NewRequest(http.MethodGet, "/voices", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, 0, mem.Len())

	catalog.err = nil
	w = serve(h.List, httptest.NewRequest(http.MethodGet, "/voices", nil))
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, mem.Len())
	assert.Equal(t, 2, catalog.calls)
}

func TestVoicesWithoutCache(t *testing.T) {
	catalog := &stubCatalog{}
	h := NewVoicesHandler(catalog, nil, time.Minute)

	for i := 0; i < 2; i++ {
		w := serve(h.List, httptest.NewRequest(http.MethodGet, "/voices", nil))
		require.Equal(t, http.StatusOK, w.Code)
	}
	assert.Equal(t, 2, catalog.calls)
}
