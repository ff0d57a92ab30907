package auth

import (
	"context"

	"go.opentelemetry.io/otel/metric"
)

// RegisterSessionMetrics publishes the number of live sessions as a gauge
func RegisterSessionMetrics(meter metric.Meter, sessions SessionRegistry) error {
	_, err := meter.Int64ObservableGauge("avatar_auth_sessions",
		metric.WithDescription("Live bearer sessions"),
		metric.WithInt64Callback(func(_ context.Context, o metric.Int64Observer) error {
			o.Observe(int64(sessions.Count()))
			return nil
		}))
	return err
}
