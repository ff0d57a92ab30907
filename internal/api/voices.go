package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"talking-avatar/backend/pkg/cache"
	"talking-avatar/backend/pkg/errors"
	"talking-avatar/backend/pkg/logger"

	"github.com/gin-gonic/gin"
)

const voicesCacheKey = "voices"

// VoiceCatalog is implemented by ai.ElevenLabsClient
type VoiceCatalog interface {
	Voices(ctx context.Context) (json.RawMessage, error)
}

// VoicesHandler passes the speech provider's voice list through, cached
type VoicesHandler struct {
	catalog VoiceCatalog
	cache   cache.Cache
	ttl     time.Duration
}

// NewVoicesHandler creates the handler. A nil catalog means no speech key is
// configured and the list is always empty.
func NewVoicesHandler(catalog VoiceCatalog, c cache.Cache, ttl time.Duration) *VoicesHandler {
	return &VoicesHandler{catalog: catalog, cache: c, ttl: ttl}
}

// List serves GET /voices
func (h *VoicesHandler) List(c *gin.Context) {
	if h.catalog == nil {
		c.JSON(http.StatusOK, gin.H{"voices": []any{}})
		return
	}

	ctx := c.Request.Context()
	log := logger.FromContext(c)

	if h.cache != nil {
		cached, ok, err := h.cache.Get(ctx, voicesCacheKey)
		if err != nil {
			log.Warn("voice cache read failed", "error", err.Error())
		} else if ok {
			c.Data(http.StatusOK, "application/json; charset=utf-8", cached)
			return
		}
	}

	voices, err := h.catalog.Voices(ctx)
	if err != nil {
		c.Error(errors.NewUpstreamError("Failed to list voices", err))
		return
	}

	if h.cache != nil {
		if err := h.cache.Set(ctx, voicesCacheKey, voices, h.ttl); err != nil {
			log.Warn("voice cache write failed", "error", err.Error())
		}
	}
	c.Data(http.StatusOK, "application/json; charset=utf-8", voices)
}
