// Package observability sets up OpenTelemetry tracing and a Prometheus-backed meter provider.
package observability

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/metric/noop"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// Options selects which signals are exported
type Options struct {
	ServiceName    string
	TracingEnabled bool
	MetricsEnabled bool
	// TraceOutput receives spans when tracing is on; defaults to stdout
	TraceOutput io.Writer
}

// Provider owns the installed exporters
type Provider struct {
	meterProvider metric.MeterProvider
	handler       http.Handler
	shutdown      []func(context.Context) error
}

// Setup installs the global tracer and meter providers
func Setup(opts Options) (*Provider, error) {
	res, err := resource.Merge(
		resource.Default(),
		resource.NewSchemaless(attribute.String("service.name", opts.ServiceName)),
	)
	if err != nil {
		return nil, fmt.Errorf("build resource: %w", err)
	}

	p := &Provider{meterProvider: noop.NewMeterProvider()}

	if opts.TracingEnabled {
		out := opts.TraceOutput
		if out == nil {
			out = os.Stdout
		}
		exp, err := stdouttrace.New(stdouttrace.WithWriter(out))
		if err != nil {
			return nil, fmt.Errorf("initialize stdouttrace exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(
			sdktrace.WithBatcher(exp),
			sdktrace.WithResource(res),
		)
		otel.SetTracerProvider(tp)
		p.shutdown = append(p.shutdown, tp.Shutdown)
	}

	if opts.MetricsEnabled {
		registry := prometheus.NewRegistry()
		registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)

		exp, err := otelprom.New(otelprom.WithRegisterer(registry))
		if err != nil {
			return nil, fmt.Errorf("initialize prometheus exporter: %w", err)
		}
		mp := sdkmetric.NewMeterProvider(
			sdkmetric.WithReader(exp),
			sdkmetric.WithResource(res),
		)
		otel.SetMeterProvider(mp)

		p.meterProvider = mp
		p.handler = promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
		p.shutdown = append(p.shutdown, mp.Shutdown)
	}

	return p, nil
}

// Meter returns a named meter; a no-op meter when metrics are off
func (p *Provider) Meter(name string) metric.Meter {
	return p.meterProvider.Meter(name)
}

// MetricsHandler serves the Prometheus exposition, or nil when metrics are off
func (p *Provider) MetricsHandler() http.Handler {
	return p.handler
}

// Shutdown flushes and stops every exporter
func (p *Provider) Shutdown(ctx context.Context) error {
	var errs []error
	for _, fn := range p.shutdown {
		if err := fn(ctx); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
