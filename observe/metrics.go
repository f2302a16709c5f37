package observe

import (
	"context"

	"github.com/antarasi/authgate"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Metric names
const (
	MetricLoginTotal     = "authgate.login.total"
	MetricGateRejections = "authgate.gate.rejections.total"
	MetricLogoutTotal    = "authgate.logout.total"
)

// MetricsSink turns activity events into counters.
//
// Safe for concurrent use.
type MetricsSink struct {
	logins     metric.Int64Counter
	rejections metric.Int64Counter
	logouts    metric.Int64Counter
}

var _ authgate.ActivitySink = (*MetricsSink)(nil)

// NewMetricsSink creates the counters on meter
func NewMetricsSink(meter metric.Meter) (*MetricsSink, error) {
	logins, err := meter.Int64Counter(
		MetricLoginTotal,
		metric.WithDescription("Login attempts by outcome"),
		metric.WithUnit("{login}"),
	)
	if err != nil {
		return nil, err
	}

	rejections, err := meter.Int64Counter(
		MetricGateRejections,
		metric.WithDescription("Calls rejected by the authorization gate"),
		metric.WithUnit("{call}"),
	)
	if err != nil {
		return nil, err
	}

	logouts, err := meter.Int64Counter(
		MetricLogoutTotal,
		metric.WithDescription("Logouts"),
		metric.WithUnit("{logout}"),
	)
	if err != nil {
		return nil, err
	}

	return &MetricsSink{logins: logins, rejections: rejections, logouts: logouts}, nil
}

// Record implements authgate.ActivitySink
func (m *MetricsSink) Record(ctx context.Context, event authgate.ActivityEvent) error {
	provider := attribute.String("provider", event.Provider)

	switch event.EventType {
	case authgate.ActivityEventLoginSuccess, authgate.ActivityEventLoginFailure:
		outcome := "success"
		if event.EventType == authgate.ActivityEventLoginFailure {
			outcome = "failure"
		}
		m.logins.Add(ctx, 1, metric.WithAttributes(
			attribute.String("outcome", outcome),
			attribute.String("strategy", metaString(event.Metadata, "strategy")),
			provider,
		))

	case authgate.ActivityEventGateRejected:
		m.rejections.Add(ctx, 1, metric.WithAttributes(
			attribute.String("kind", metaString(event.Metadata, "kind")),
			attribute.String("method", metaString(event.Metadata, "method")),
			provider,
		))

	case authgate.ActivityEventLogout:
		m.logouts.Add(ctx, 1, metric.WithAttributes(provider))
	}

	return nil
}

func metaString(meta map[string]any, key string) string {
	if v, ok := meta[key].(string); ok {
		return v
	}
	return ""
}
