// Package router maps a unit of AI work to a concrete backend choice plus an
// ordered fallback chain.
package router

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	nexus "github.com/3bi-io/nexus-core"
	"github.com/3bi-io/nexus-core/stats"
	"github.com/3bi-io/nexus-core/utils/array"
)

// CapabilityDetector reports whether in-process accelerated inference is
// usable right now.
type CapabilityDetector interface {
	HasLocalAcceleration(ctx context.Context) bool
}

// CapabilityUnavailableError is raised only for tasks that no hosted backend
// implements, when the local capability they require is absent.
type CapabilityUnavailableError struct {
	Task nexus.TaskType
}

func (e CapabilityUnavailableError) Error() string {
	return fmt.Sprintf("task %s requires local acceleration, which is not available", e.Task)
}

// modelSpec is a static planning baseline for one (task, backend) choice.
// Estimates, not guarantees; deliberately independent from the live stats.
type modelSpec struct {
	model     string
	cost      float64
	latencyMs int64
}

// Selector decides which backend serves a task. Deterministic given the
// environment and options; the stats store is read as a soft signal only.
type Selector struct {
	detector CapabilityDetector
	store    *stats.Store
	logger   *zap.SugaredLogger
}

func NewSelector(detector CapabilityDetector, store *stats.Store, logger *zap.SugaredLogger) *Selector {
	return &Selector{
		detector: detector,
		store:    store,
		logger:   logger,
	}
}

// Select maps (task, options) to a route decision. It returns an error only
// for invalid tasks and for the two local-only tasks when local acceleration
// is absent; every other combination resolves to some backend.
func (s *Selector) Select(ctx context.Context, task nexus.TaskType, options nexus.RouterOptions) (*nexus.RouteDecision, error) {
	if _, err := nexus.ParseTaskType(string(task)); err != nil {
		return nil, err
	}

	if options.PreferredBackend != nil {
		decision, ok := s.selectPreferred(ctx, task, options)
		if ok {
			return s.finish(task, options, decision), nil
		}
		// Preference could not be honored. Re-run selection without it.
		stripped := options
		stripped.PreferredBackend = nil
		return s.Select(ctx, task, stripped)
	}

	decision, err := s.selectByTask(ctx, task, options)
	if err != nil {
		return nil, err
	}
	return s.finish(task, options, decision), nil
}

func (s *Selector) selectPreferred(ctx context.Context, task nexus.TaskType, options nexus.RouterOptions) (*nexus.RouteDecision, bool) {
	preferred := *options.PreferredBackend
	if !backendAllowed(task, preferred) {
		s.logger.Infow("Preferred backend cannot serve task, falling back to automatic selection",
			"backend", preferred, "task", task)
		return nil, false
	}
	if preferred == nexus.BackendLocal && !s.detector.HasLocalAcceleration(ctx) {
		s.logger.Infow("Preferred local backend unavailable, falling back to automatic selection",
			"task", task)
		return nil, false
	}

	spec := catalog(task, preferred, options.EffectivePriority())
	return &nexus.RouteDecision{
		Backend:            preferred,
		Model:              spec.model,
		Reason:             fmt.Sprintf("caller preferred %s", preferred),
		EstimatedCost:      spec.cost,
		EstimatedLatencyMs: spec.latencyMs,
		Fallbacks:          hostedFallbacks(task, preferred),
	}, true
}

func (s *Selector) selectByTask(ctx context.Context, task nexus.TaskType, options nexus.RouterOptions) (*nexus.RouteDecision, error) {
	priority := options.EffectivePriority()

	switch task {
	case nexus.TaskEmbedding, nexus.TaskClassification:
		preferLocal := priority == nexus.PriorityPrivacy || priority == nexus.PriorityCost || priority == nexus.PrioritySpeed
		if preferLocal && s.detector.HasLocalAcceleration(ctx) {
			return s.decide(task, nexus.BackendLocal, priority,
				fmt.Sprintf("local acceleration available and priority is %s", priority),
				nexus.BackendSecondary, nexus.BackendPrimary), nil
		}
		return s.decide(task, nexus.BackendSecondary, priority,
			"reliable server-side inference at modest cost",
			nexus.BackendPrimary), nil

	case nexus.TaskChat, nexus.TaskTextGeneration:
		switch {
		case priority == nexus.PrioritySpeed:
			return s.decide(task, nexus.BackendPrimary, priority,
				"fastest hosted model",
				nexus.BackendSecondary), nil
		case priority == nexus.PriorityCost && !options.RequiresAuth:
			return s.decide(task, nexus.BackendSecondary, priority,
				"lowest-cost hosted inference",
				nexus.BackendPrimary), nil
		case priority == nexus.PriorityQuality:
			return s.decide(task, nexus.BackendPrimary, priority,
				"highest-capability hosted model",
				nexus.BackendSecondary), nil
		default:
			return s.decide(task, nexus.BackendPrimary, priority,
				"balanced hosted model",
				nexus.BackendSecondary), nil
		}

	case nexus.TaskImageGen:
		if priority == nexus.PriorityQuality {
			return s.decide(task, nexus.BackendPrimary, priority,
				"highest-quality image model",
				nexus.BackendSecondary), nil
		}
		return s.decide(task, nexus.BackendSecondary, priority,
			"cheaper and faster image generation",
			nexus.BackendPrimary), nil

	case nexus.TaskObjectDetection, nexus.TaskCaptioning:
		if !s.detector.HasLocalAcceleration(ctx) {
			return nil, CapabilityUnavailableError{Task: task}
		}
		// No hosted backend implements these; the fallback chain is empty.
		return s.decide(task, nexus.BackendLocal, priority,
			"only the local pipeline implements this task"), nil
	}

	return nil, fmt.Errorf("unknown task type: %s", task)
}

func (s *Selector) decide(task nexus.TaskType, backend nexus.Backend, priority nexus.Priority, reason string, fallbacks ...nexus.Backend) *nexus.RouteDecision {
	spec := catalog(task, backend, priority)
	return &nexus.RouteDecision{
		Backend:            backend,
		Model:              spec.model,
		Reason:             reason,
		EstimatedCost:      spec.cost,
		EstimatedLatencyMs: spec.latencyMs,
		Fallbacks:          fallbacks,
	}
}

// finish applies the cross-cutting steps every branch shares: fold a degraded
// live success rate into the reason, and warn on advisory budget overruns.
func (s *Selector) finish(task nexus.TaskType, options nexus.RouterOptions, decision *nexus.RouteDecision) *nexus.RouteDecision {
	metrics := s.store.Get(decision.Backend)
	if metrics.TotalCalls >= 10 && metrics.SuccessRate < 0.5 {
		decision.Reason = fmt.Sprintf("%s (note: recent success rate %.0f%%)", decision.Reason, metrics.SuccessRate*100)
	}

	// Budgets are advisory in this design: a stricter variant could reject
	// instead of warn.
	if options.MaxCost != nil && decision.EstimatedCost > *options.MaxCost {
		s.logger.Warnw("Estimated cost exceeds caller budget",
			"task", task, "backend", decision.Backend,
			"estimated", decision.EstimatedCost, "budget", *options.MaxCost)
	}
	if options.MaxLatencyMs != nil && decision.EstimatedLatencyMs > *options.MaxLatencyMs {
		s.logger.Warnw("Estimated latency exceeds caller budget",
			"task", task, "backend", decision.Backend,
			"estimated_ms", decision.EstimatedLatencyMs, "budget_ms", *options.MaxLatencyMs)
	}
	return decision
}

func backendAllowed(task nexus.TaskType, backend nexus.Backend) bool {
	return array.Contains(nexus.AllowedBackends(task), backend)
}

// hostedFallbacks lists the remaining hosted backends for the task, in
// selection-policy order. Local inference never appears as a fallback: its
// availability is capability-gated, not failure-related.
func hostedFallbacks(task nexus.TaskType, chosen nexus.Backend) []nexus.Backend {
	fallbacks := []nexus.Backend{}
	for _, backend := range []nexus.Backend{nexus.BackendSecondary, nexus.BackendPrimary} {
		if backend == chosen || !backendAllowed(task, backend) {
			continue
		}
		fallbacks = append(fallbacks, backend)
	}
	return fallbacks
}
