// Package telemetry is the observability sink for the conversational
// pipeline. Events arrive fire-and-forget from the orchestrator: recording
// must be cheap and must never error back into the request path.
package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	nexus "github.com/3bi-io/nexus-core"
	"github.com/3bi-io/nexus-core/orchestrator"
)

// PrometheusSink exposes chat and task metrics on a dedicated registry.
type PrometheusSink struct {
	registry *prometheus.Registry
	logger   *zap.SugaredLogger

	chatRequests   *prometheus.CounterVec
	chatLatency    *prometheus.HistogramVec
	chatTokens     *prometheus.CounterVec
	contextSize    prometheus.Histogram
	taskExecutions *prometheus.CounterVec
	taskCost       *prometheus.CounterVec
}

func NewPrometheusSink(namespace string, logger *zap.SugaredLogger) *PrometheusSink {
	registry := prometheus.NewRegistry()

	sink := &PrometheusSink{
		registry: registry,
		logger:   logger,
		chatRequests: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_requests_total",
				Help:      "Total chat requests by model and agent",
			},
			[]string{"model", "agent"},
		),
		chatLatency: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chat_latency_seconds",
				Help:      "End-to-end chat latency in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"model"},
		),
		chatTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "chat_tokens_total",
				Help:      "Token usage by direction",
			},
			[]string{"model", "direction"},
		),
		contextSize: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "chat_context_items",
				Help:      "Number of context items folded into the prompt",
				Buckets:   []float64{0, 1, 2, 5, 10, 20},
			},
		),
		taskExecutions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_executions_total",
				Help:      "Task executions by backend and outcome",
			},
			[]string{"backend", "task", "outcome"},
		),
		taskCost: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "task_cost_total",
				Help:      "Cumulative estimated task cost in USD",
			},
			[]string{"backend"},
		),
	}

	registry.MustRegister(
		sink.chatRequests,
		sink.chatLatency,
		sink.chatTokens,
		sink.contextSize,
		sink.taskExecutions,
		sink.taskCost,
	)
	return sink
}

// RecordChat implements orchestrator.TelemetrySink.
func (s *PrometheusSink) RecordChat(telemetry orchestrator.ChatTelemetry) {
	agent := telemetry.Agent
	if agent == "" {
		agent = "general"
	}
	s.chatRequests.WithLabelValues(telemetry.Model, agent).Inc()
	if telemetry.Model != "" {
		s.chatLatency.WithLabelValues(telemetry.Model).Observe(float64(telemetry.LatencyMs) / 1000)
	}
	s.contextSize.Observe(float64(telemetry.ContextSize))
	if telemetry.Usage != nil {
		s.chatTokens.WithLabelValues(telemetry.Model, "input").Add(float64(telemetry.Usage.PromptTokens))
		s.chatTokens.WithLabelValues(telemetry.Model, "output").Add(float64(telemetry.Usage.CompletionTokens))
	}
}

// RecordTask counts one task execution attempt outcome.
func (s *PrometheusSink) RecordTask(backend nexus.Backend, task nexus.TaskType, success bool, cost float64) {
	outcome := "success"
	if !success {
		outcome = "failure"
	}
	s.taskExecutions.WithLabelValues(string(backend), string(task), outcome).Inc()
	s.taskCost.WithLabelValues(string(backend)).Add(cost)
}

// Handler serves the metrics endpoint for this sink's registry.
func (s *PrometheusSink) Handler() http.Handler {
	return promhttp.HandlerFor(s.registry, promhttp.HandlerOpts{})
}
