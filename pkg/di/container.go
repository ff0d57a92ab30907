// Package di wires the application's components from configuration.
package di

import (
	"context"
	"errors"
	"fmt"
	"time"

	"talking-avatar/backend/ai"
	"talking-avatar/backend/internal/api"
	"talking-avatar/backend/internal/auth"
	"talking-avatar/backend/internal/media"
	"talking-avatar/backend/internal/pipeline"
	"talking-avatar/backend/internal/store"
	"talking-avatar/backend/internal/voice"
	"talking-avatar/backend/internal/ws"
	"talking-avatar/backend/pkg/cache"
	"talking-avatar/backend/pkg/config"
	"talking-avatar/backend/pkg/health"
	"talking-avatar/backend/pkg/logger"
	"talking-avatar/backend/pkg/observability"
	"talking-avatar/backend/pkg/resilience"

	"go.opentelemetry.io/otel"
)

const (
	serviceName         = "talking-avatar"
	instrumentationName = "talking-avatar/backend/internal/pipeline"
	cachePrefix         = "avatar:"
)

// Container holds all the dependencies for the application
type Container struct {
	Config        *config.Config
	Logger        *logger.Logger
	Store         store.Store
	Sessions      *auth.MemorySessions
	Gateway       *auth.Gateway
	Pipeline      *pipeline.Orchestrator
	Transcriber   api.SpeechTranscriber
	Voices        api.VoiceCatalog
	Cache         cache.Cache
	Hub           *ws.Hub
	Health        *health.Checker
	Observability *observability.Provider
	Breakers      map[string]*resilience.CircuitBreaker

	closers []func() error
}

// Overrides replaces collaborators that would otherwise be built from
// configuration. Nil fields are built as usual.
type Overrides struct {
	Store      store.Store
	Hasher     *auth.PasswordHasher
	LLM        pipeline.LanguageModel
	TTS        pipeline.SpeechSynthesizer
	STT        voice.SpeechToText
	Voices     api.VoiceCatalog
	Transcoder media.Converter
	LipSync    media.Converter
	Cache      cache.Cache
}

// New creates a new dependency injection container. Provider keys must already
// be resolved into cfg; a missing key leaves the pipeline in degraded mode.
func New(ctx context.Context, cfg *config.Config, log *logger.Logger, o Overrides) (*Container, error) {
	if log == nil {
		log = logger.GetGlobal()
	}
	c := &Container{
		Config:   cfg,
		Logger:   log,
		Breakers: make(map[string]*resilience.CircuitBreaker),
	}

	obs, err := observability.Setup(observability.Options{
		ServiceName:    serviceName,
		TracingEnabled: cfg.Observability.TracingEnabled,
		MetricsEnabled: cfg.Observability.MetricsEnabled,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to set up observability: %w", err)
	}
	c.Observability = obs
	c.closers = append(c.closers, func() error {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return obs.Shutdown(shutdownCtx)
	})

	c.Store = o.Store
	if c.Store == nil {
		st, err := store.Open(ctx, cfg)
		if err != nil {
			c.Close()
			return nil, fmt.Errorf("failed to open credential store: %w", err)
		}
		c.Store = st
		c.closers = append(c.closers, st.Close)
	}

	hasher := o.Hasher
	if hasher == nil {
		hasher = auth.NewPasswordHasher(auth.DefaultHashParams())
	}
	c.Sessions = auth.NewMemorySessions()
	c.Gateway = auth.NewGateway(c.Store, c.Sessions, hasher, cfg.Security.MinPasswordLength, log)
	if err := auth.RegisterSessionMetrics(obs.Meter(instrumentationName), c.Sessions); err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to register session metrics: %w", err)
	}

	llm, tts, stt := o.LLM, o.TTS, o.STT
	c.Voices = o.Voices
	if cfg.Providers.OpenAIKey != "" {
		openAI := ai.NewOpenAIClient(ai.OpenAIConfig{
			APIKey:          cfg.Providers.OpenAIKey,
			BaseURL:         cfg.Providers.OpenAIBaseURL,
			ChatModel:       cfg.Providers.ChatModel,
			TranscribeModel: cfg.Providers.TranscribeModel,
			Timeout:         cfg.Providers.Timeout,
		})
		if llm == nil {
			llm = openAI
		}
		if stt == nil {
			stt = openAI
		}
	}
	if cfg.Providers.ElevenLabsKey != "" {
		elevenLabs := ai.NewElevenLabsClient(ai.ElevenLabsConfig{
			APIKey:  cfg.Providers.ElevenLabsKey,
			BaseURL: cfg.Providers.ElevenLabsBaseURL,
			VoiceID: cfg.Providers.VoiceID,
			ModelID: cfg.Providers.TTSModel,
			Timeout: cfg.Providers.Timeout,
		})
		if tts == nil {
			tts = elevenLabs
		}
		if c.Voices == nil {
			c.Voices = elevenLabs
		}
	}

	transcoder, lipSync := o.Transcoder, o.LipSync
	if transcoder == nil {
		transcoder = media.NewTranscoder(cfg.Tools.FFmpegPath, cfg.Tools.Timeout, media.ExecRunner)
	}
	if lipSync == nil {
		lipSync = media.NewLipSyncExtractor(cfg.Tools.RhubarbPath, cfg.Tools.Timeout, media.ExecRunner)
	}

	c.Pipeline, err = pipeline.NewOrchestrator(pipeline.Deps{
		LLM:        llm,
		TTS:        tts,
		Transcoder: transcoder,
		LipSync:    lipSync,
		Canned:     pipeline.LoadCannedReplies(cfg.Pipeline.AssetsDir, log),
		LLMBreaker: c.breaker("llm"),
		TTSBreaker: c.breaker("tts"),
		Meter:      obs.Meter(instrumentationName),
		Tracer:     otel.Tracer(instrumentationName),
	}, pipeline.Config{
		ScratchDir:          cfg.Pipeline.ScratchDir,
		MaxConcurrentRuns:   cfg.Pipeline.MaxConcurrentRuns,
		ProvidersConfigured: llm != nil && tts != nil,
	}, log)
	if err != nil {
		c.Close()
		return nil, fmt.Errorf("failed to create reply pipeline: %w", err)
	}
	if !c.Pipeline.Configured() {
		log.Warn("provider API keys missing, chat will answer with the configuration reminder")
	}

	if stt != nil {
		c.Transcriber = voice.NewTranscriber(stt, cfg.Pipeline.ScratchDir, log).WithBreaker(c.breaker("stt"))
	}

	c.Cache = o.Cache
	if c.Cache == nil {
		c.Cache = c.buildCache(ctx)
	}

	c.Hub = ws.NewHub(c.Pipeline, c.Sessions, cfg.Security.AllowedOrigins, log)
	c.closers = append(c.closers, func() error { c.Hub.Close(); return nil })

	c.Health = health.NewChecker(log, 30*time.Second)
	c.Health.RegisterStoreCheck(c.Store.Ping)
	c.Health.RegisterProvidersCheck(c.Pipeline.Configured)
	// Injected converters have no executable to look up
	for name, conv := range map[string]media.Converter{"ffmpeg": transcoder, "rhubarb": lipSync} {
		if tool, ok := conv.(interface{ Binary() string }); ok {
			c.Health.RegisterBinaryCheck(name, tool.Binary())
		}
	}
	for name, cb := range c.Breakers {
		cb := cb
		c.Health.RegisterCheck("breaker-"+name, false, func(context.Context) (health.Status, string, error) {
			if cb.State() == resilience.StateOpen {
				return health.StatusDegraded, "circuit open, calls fail fast", nil
			}
			return health.StatusUp, string(cb.State()), nil
		})
	}

	return c, nil
}

func (c *Container) breaker(name string) *resilience.CircuitBreaker {
	cb := resilience.NewCircuitBreaker(resilience.DefaultConfig(name), c.Logger)
	c.Breakers[name] = cb
	return cb
}

// buildCache prefers Redis when configured and reachable, else an in-process cache
func (c *Container) buildCache(ctx context.Context) cache.Cache {
	if url := c.Config.Cache.RedisURL; url != "" {
		r, err := cache.NewRedis(url, c.Config.Cache.RedisPassword, cachePrefix)
		if err == nil {
			pingCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
			err = r.Ping(pingCtx)
			cancel()
			if err == nil {
				c.closers = append(c.closers, r.Close)
				c.Logger.Info("using redis cache")
				return r
			}
			r.Close()
		}
		c.Logger.Warn("redis unavailable, falling back to in-process cache", "error", err.Error())
	}

	m := cache.NewMemory(128, time.Minute)
	c.closers = append(c.closers, func() error { m.Close(); return nil })
	return m
}

// Close releases everything the container opened, last opened first
func (c *Container) Close() error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		if err := c.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	c.closers = nil
	return errors.Join(errs...)
}
