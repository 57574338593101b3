// Package telemetry wires the ambient observability stack: prometheus
// counters/histograms for turn and tool metrics, and an otel tracer
// provider for span-level correlation across a turn. Grounded on the
// teacher's use of github.com/prometheus/client_golang and
// go.opentelemetry.io/otel/sdk elsewhere in the corpus for the same
// concern (request counters, latency histograms, a process-wide tracer
// provider), adapted here to spectator's turn/tool vocabulary instead of
// HTTP routes.
package telemetry

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/trace"
)

// Metrics is the set of prometheus collectors the turn controller and the
// pipeline's tool round report into.
type Metrics struct {
	TurnsTotal       *prometheus.CounterVec
	TurnDuration     *prometheus.HistogramVec
	ToolCallsTotal   *prometheus.CounterVec
	ToolCallDuration *prometheus.HistogramVec
	AnomaliesTotal   *prometheus.CounterVec
}

// NewMetrics registers a fresh Metrics set against reg. Passing
// prometheus.NewRegistry() (rather than the global DefaultRegisterer) keeps
// repeated test construction from panicking on duplicate registration.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		TurnsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spectator_turns_total",
			Help: "Number of turns completed, labeled by outcome.",
		}, []string{"outcome"}),
		TurnDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spectator_turn_duration_seconds",
			Help:    "Wall-clock duration of a full turn.",
			Buckets: prometheus.DefBuckets,
		}, []string{"outcome"}),
		ToolCallsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spectator_tool_calls_total",
			Help: "Number of tool calls executed, labeled by tool and outcome.",
		}, []string{"tool", "outcome"}),
		ToolCallDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "spectator_tool_call_duration_seconds",
			Help:    "Wall-clock duration of a single tool call.",
			Buckets: prometheus.DefBuckets,
		}, []string{"tool"}),
		AnomaliesTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "spectator_autopsy_anomalies_total",
			Help: "Number of anomalies surfaced by autopsy, labeled by code.",
		}, []string{"code"}),
	}
	reg.MustRegister(m.TurnsTotal, m.TurnDuration, m.ToolCallsTotal, m.ToolCallDuration, m.AnomaliesTotal)
	return m
}

// RecordTurn records one completed turn's outcome and duration.
func (m *Metrics) RecordTurn(outcome string, seconds float64) {
	m.TurnsTotal.WithLabelValues(outcome).Inc()
	m.TurnDuration.WithLabelValues(outcome).Observe(seconds)
}

// RecordToolCall records one tool call's outcome and duration.
func (m *Metrics) RecordToolCall(tool, outcome string, seconds float64) {
	m.ToolCallsTotal.WithLabelValues(tool, outcome).Inc()
	m.ToolCallDuration.WithLabelValues(tool).Observe(seconds)
}

// RecordAnomaly increments the counter for one autopsy anomaly code.
func (m *Metrics) RecordAnomaly(code string) {
	m.AnomaliesTotal.WithLabelValues(code).Inc()
}

// NewTracerProvider returns a process-wide otel TracerProvider labeled with
// serviceName, suitable for registering with otel.SetTracerProvider. It
// uses no exporter: spans are created and ended for in-process correlation
// (a Tracer's span context flowing through RunTurn/autopsy), not shipped
// anywhere, since this system has no tracing backend in scope.
func NewTracerProvider(serviceName string) *sdktrace.TracerProvider {
	res := resource.NewSchemaless(attribute.String("service.name", serviceName))
	return sdktrace.NewTracerProvider(sdktrace.WithResource(res))
}

// Tracer returns a named tracer from the global otel tracer provider.
func Tracer(name string) trace.Tracer {
	return otel.Tracer(name)
}

// StartSpan starts a span named name under ctx using the global tracer.
func StartSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return Tracer("spectator").Start(ctx, name)
}
