// Package pipeline turns a user utterance into speakable reply segments: it asks
// the language model for segments, synthesizes each one, transcodes the audio and
// extracts mouth cues for lip sync.
package pipeline

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"talking-avatar/backend/internal/media"
	"talking-avatar/backend/internal/models"
	"talking-avatar/backend/pkg/logger"
	"talking-avatar/backend/pkg/resilience"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/semaphore"
)

const instrumentationName = "talking-avatar/backend/internal/pipeline"

// LanguageModel produces the raw JSON reply for an utterance
type LanguageModel interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

// SpeechSynthesizer turns text into MP3 audio
type SpeechSynthesizer interface {
	Synthesize(ctx context.Context, text string) ([]byte, error)
}

// Config controls where runs write their files and how many run at once
type Config struct {
	// ScratchDir holds one private directory per run, removed when the run ends
	ScratchDir string
	// MaxConcurrentRuns bounds rendering runs; zero means unbounded
	MaxConcurrentRuns int
	// ProvidersConfigured is false when either provider key is missing
	ProvidersConfigured bool
}

// Deps are the collaborators of an Orchestrator. Breakers, Meter and Tracer are optional.
type Deps struct {
	LLM        LanguageModel
	TTS        SpeechSynthesizer
	Transcoder media.Converter
	LipSync    media.Converter
	Canned     *CannedReplies

	LLMBreaker *resilience.CircuitBreaker
	TTSBreaker *resilience.CircuitBreaker
	Meter      metric.Meter
	Tracer     trace.Tracer
}

// Orchestrator runs the reply pipeline
type Orchestrator struct {
	deps    Deps
	cfg     Config
	log     *logger.Logger
	sem     *semaphore.Weighted
	metrics *pipelineMetrics
	tracer  trace.Tracer
}

// NewOrchestrator wires an orchestrator. Transcoder and LipSync are required
// only when providers are configured.
func NewOrchestrator(deps Deps, cfg Config, log *logger.Logger) (*Orchestrator, error) {
	if log == nil {
		log = logger.GetGlobal()
	}
	if deps.Canned == nil {
		return nil, errors.New("pipeline: canned replies are required")
	}
	if cfg.ProvidersConfigured && (deps.LLM == nil || deps.TTS == nil || deps.Transcoder == nil || deps.LipSync == nil) {
		return nil, errors.New("pipeline: providers configured but a collaborator is missing")
	}
	if cfg.ScratchDir == "" {
		cfg.ScratchDir = os.TempDir()
	}
	if deps.LLMBreaker == nil {
		deps.LLMBreaker = resilience.NewCircuitBreaker(resilience.DefaultConfig("llm"), log)
	}
	if deps.TTSBreaker == nil {
		deps.TTSBreaker = resilience.NewCircuitBreaker(resilience.DefaultConfig("tts"), log)
	}
	if deps.Meter == nil {
		deps.Meter = otel.GetMeterProvider().Meter(instrumentationName)
	}
	if deps.Tracer == nil {
		deps.Tracer = otel.Tracer(instrumentationName)
	}

	m, err := newPipelineMetrics(deps.Meter)
	if err != nil {
		return nil, fmt.Errorf("pipeline metrics: %w", err)
	}

	o := &Orchestrator{
		deps:    deps,
		cfg:     cfg,
		log:     log.With("component", "pipeline"),
		metrics: m,
		tracer:  deps.Tracer,
	}
	if cfg.MaxConcurrentRuns > 0 {
		o.sem = semaphore.NewWeighted(int64(cfg.MaxConcurrentRuns))
	}
	return o, nil
}

// Configured reports whether replies are generated or canned
func (o *Orchestrator) Configured() bool {
	return o.cfg.ProvidersConfigured
}

// MissingKeys returns the canned reply for an unconfigured process
func (o *Orchestrator) MissingKeys() []models.ReplySegment {
	return o.deps.Canned.MissingKeys()
}

// Run produces the reply for utterance. Either every segment renders or the
// run fails with a *StageError and no segments.
func (o *Orchestrator) Run(ctx context.Context, utterance string) ([]models.ReplySegment, error) {
	start := time.Now()

	if strings.TrimSpace(utterance) == "" {
		o.metrics.recordRun(ctx, outcomeIntro, start)
		return o.deps.Canned.Intro(), nil
	}
	if !o.Configured() {
		o.metrics.recordRun(ctx, outcomeUnconfigured, start)
		return o.deps.Canned.MissingKeys(), nil
	}

	ctx, span := o.tracer.Start(ctx, "pipeline.Run")
	defer span.End()

	if o.sem != nil {
		if err := o.sem.Acquire(ctx, 1); err != nil {
			return nil, o.fail(ctx, span, start, runError(StageWorkspace, err))
		}
		defer o.sem.Release(1)
	}
	o.metrics.inFlight.Add(ctx, 1)
	defer o.metrics.inFlight.Add(ctx, -1)

	segments, err := o.render(ctx, utterance)
	if err != nil {
		return nil, o.fail(ctx, span, start, err)
	}

	span.SetAttributes(attribute.Int("segments", len(segments)))
	o.metrics.recordRun(ctx, outcomeOK, start)
	return segments, nil
}

func (o *Orchestrator) fail(ctx context.Context, span trace.Span, start time.Time, err error) error {
	span.RecordError(err)
	span.SetStatus(codes.Error, "pipeline run failed")
	o.metrics.recordRun(ctx, outcomeError, start)

	args := []any{"duration", time.Since(start).String()}
	var stageErr *StageError
	if errors.As(err, &stageErr) {
		args = append(args, "stage", string(stageErr.Stage), "segment", stageErr.Index)
	}
	o.log.LogError(err, "pipeline run failed", args...)
	return err
}

func (o *Orchestrator) render(ctx context.Context, utterance string) ([]models.ReplySegment, error) {
	stageStart := time.Now()
	content, err := resilience.Call(o.deps.LLMBreaker, func() (string, error) {
		return o.deps.LLM.Complete(ctx, systemPrompt, utterance)
	})
	o.metrics.recordStage(ctx, StageCompletion, stageStart)
	if err != nil {
		return nil, runError(StageCompletion, err)
	}

	reply, err := decodeReply(content)
	if err != nil {
		return nil, runError(StageDecode, err)
	}
	if reply.shape == shapeSingleProperty {
		o.log.Warn("language model wrapped segments in an unexpected property",
			"shape", reply.shape.String(), "property", reply.property)
	} else {
		o.log.Debug("language model reply decoded", "shape", reply.shape.String(), "segments", len(reply.segments))
	}
	if reply.truncated > 0 {
		o.log.Warn("language model returned too many segments", "dropped", reply.truncated)
	}
	if len(reply.segments) == 0 {
		return reply.segments, nil
	}

	dir, err := o.newWorkspace()
	if err != nil {
		return nil, runError(StageWorkspace, err)
	}
	defer o.removeWorkspace(dir)

	for i := range reply.segments {
		if err := o.renderSegment(ctx, dir, i, &reply.segments[i]); err != nil {
			return nil, err
		}
	}
	return reply.segments, nil
}

// renderSegment writes message_<i>.mp3, .wav and .json inside the run directory
// and attaches the audio and mouth cues to seg.
func (o *Orchestrator) renderSegment(ctx context.Context, dir string, i int, seg *models.ReplySegment) error {
	ctx, span := o.tracer.Start(ctx, "pipeline.segment", trace.WithAttributes(attribute.Int("index", i)))
	defer span.End()

	stageStart := time.Now()
	audio, err := resilience.Call(o.deps.TTSBreaker, func() ([]byte, error) {
		return o.deps.TTS.Synthesize(ctx, seg.Text)
	})
	o.metrics.recordStage(ctx, StageSynthesis, stageStart)
	if err != nil {
		return segmentError(i, StageSynthesis, err)
	}

	mp3 := filepath.Join(dir, fmt.Sprintf("message_%d.mp3", i))
	if err := os.WriteFile(mp3, audio, 0o600); err != nil {
		return segmentError(i, StageSynthesis, err)
	}

	stageStart = time.Now()
	wav, err := o.deps.Transcoder.Convert(ctx, mp3)
	o.metrics.recordStage(ctx, StageTranscode, stageStart)
	if err != nil {
		return segmentError(i, StageTranscode, err)
	}

	stageStart = time.Now()
	cuesPath, err := o.deps.LipSync.Convert(ctx, wav)
	o.metrics.recordStage(ctx, StageLipSync, stageStart)
	if err != nil {
		return segmentError(i, StageLipSync, err)
	}

	cues, err := os.ReadFile(cuesPath)
	if err != nil {
		return segmentError(i, StageLipSync, err)
	}
	var doc models.LipSyncDocument
	if err := json.Unmarshal(cues, &doc); err != nil {
		return segmentError(i, StageLipSync, fmt.Errorf("parse mouth cues: %w", err))
	}

	seg.Audio = base64.StdEncoding.EncodeToString(audio)
	seg.LipSync = json.RawMessage(cues)
	o.metrics.segments.Add(ctx, 1)
	return nil
}

func (o *Orchestrator) newWorkspace() (string, error) {
	dir := filepath.Join(o.cfg.ScratchDir, "run-"+uuid.NewString())
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("create run directory: %w", err)
	}
	return dir, nil
}

func (o *Orchestrator) removeWorkspace(dir string) {
	if err := os.RemoveAll(dir); err != nil {
		o.log.Warn("failed to remove run directory", "dir", dir, "error", err.Error())
	}
}
