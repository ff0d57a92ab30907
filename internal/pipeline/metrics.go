package pipeline

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// run outcomes
const (
	outcomeIntro        = "intro"
	outcomeUnconfigured = "unconfigured"
	outcomeOK           = "ok"
	outcomeError        = "error"
)

type pipelineMetrics struct {
	runs          metric.Int64Counter
	runDuration   metric.Float64Histogram
	stageDuration metric.Float64Histogram
	segments      metric.Int64Counter
	inFlight      metric.Int64UpDownCounter
}

func newPipelineMetrics(meter metric.Meter) (*pipelineMetrics, error) {
	runs, err := meter.Int64Counter("avatar_pipeline_runs",
		metric.WithDescription("Reply pipeline runs by outcome"))
	if err != nil {
		return nil, err
	}
	runDuration, err := meter.Float64Histogram("avatar_pipeline_run_duration",
		metric.WithDescription("Wall time of a reply pipeline run"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	stageDuration, err := meter.Float64Histogram("avatar_pipeline_stage_duration",
		metric.WithDescription("Wall time of one pipeline stage"),
		metric.WithUnit("s"))
	if err != nil {
		return nil, err
	}
	segments, err := meter.Int64Counter("avatar_pipeline_segments",
		metric.WithDescription("Reply segments rendered"))
	if err != nil {
		return nil, err
	}
	inFlight, err := meter.Int64UpDownCounter("avatar_pipeline_in_flight",
		metric.WithDescription("Pipeline runs currently rendering"))
	if err != nil {
		return nil, err
	}

	return &pipelineMetrics{
		runs:          runs,
		runDuration:   runDuration,
		stageDuration: stageDuration,
		segments:      segments,
		inFlight:      inFlight,
	}, nil
}

func (m *pipelineMetrics) recordRun(ctx context.Context, outcome string, start time.Time) {
	attrs := metric.WithAttributes(attribute.String("outcome", outcome))
	m.runs.Add(ctx, 1, attrs)
	m.runDuration.Record(ctx, time.Since(start).Seconds(), attrs)
}

func (m *pipelineMetrics) recordStage(ctx context.Context, stage Stage, start time.Time) {
	m.stageDuration.Record(ctx, time.Since(start).Seconds(),
		metric.WithAttributes(attribute.String("stage", string(stage))))
}
