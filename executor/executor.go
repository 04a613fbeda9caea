// Package executor runs a routed task with automatic fallback across the
// alternative backends and records outcome metrics.
package executor

import (
	"context"
	"fmt"

	"github.com/benbjohnson/clock"
	"github.com/goccy/go-json"
	"go.uber.org/zap"

	nexus "github.com/3bi-io/nexus-core"
	"github.com/3bi-io/nexus-core/backend"
	"github.com/3bi-io/nexus-core/router"
	"github.com/3bi-io/nexus-core/stats"
)

// BackendExecutionError records one failed attempt against one backend.
// Recovered locally by trying the next fallback.
type BackendExecutionError struct {
	Backend nexus.Backend
	Err     error
}

func (e BackendExecutionError) Error() string {
	return fmt.Sprintf("backend %s failed: %v", e.Backend, e.Err)
}

func (e BackendExecutionError) Unwrap() error { return e.Err }

// AllBackendsExhaustedError means every backend in the fallback chain was
// tried and failed. Wraps the last underlying error.
type AllBackendsExhaustedError struct {
	Task     nexus.TaskType
	Attempts int
	Err      error
}

func (e AllBackendsExhaustedError) Error() string {
	return fmt.Sprintf("all %d backends exhausted for task %s: %v", e.Attempts, e.Task, e.Err)
}

func (e AllBackendsExhaustedError) Unwrap() error { return e.Err }

// TaskRecorder receives per-attempt outcomes for observability. Recording is
// best-effort and must never fail an execution.
type TaskRecorder interface {
	RecordTask(backend nexus.Backend, task nexus.TaskType, success bool, cost float64)
}

// Executor dispatches to the chosen backend and walks the fallback chain on
// failure. Its only observable state is the stats store it updates.
type Executor struct {
	selector *router.Selector
	store    *stats.Store
	invokers map[nexus.Backend]backend.Invoker
	recorder TaskRecorder
	clock    clock.Clock
	logger   *zap.SugaredLogger
}

// New builds an executor. The recorder may be nil when no telemetry sink is
// configured.
func New(selector *router.Selector, store *stats.Store, invokers map[nexus.Backend]backend.Invoker, recorder TaskRecorder, logger *zap.SugaredLogger) *Executor {
	return newWithClock(selector, store, invokers, recorder, clock.New(), logger)
}

// NewWithClock is for tests that need deterministic latency measurement.
func NewWithClock(selector *router.Selector, store *stats.Store, invokers map[nexus.Backend]backend.Invoker, recorder TaskRecorder, clk clock.Clock, logger *zap.SugaredLogger) *Executor {
	return newWithClock(selector, store, invokers, recorder, clk, logger)
}

func newWithClock(selector *router.Selector, store *stats.Store, invokers map[nexus.Backend]backend.Invoker, recorder TaskRecorder, clk clock.Clock, logger *zap.SugaredLogger) *Executor {
	return &Executor{
		selector: selector,
		store:    store,
		invokers: invokers,
		recorder: recorder,
		clock:    clk,
		logger:   logger,
	}
}

// Execute routes the task, attempts it on the decided backend, and on failure
// walks the fallback list in order. Each fallback gets a fresh decision with
// the preference forced to that backend, so the model stays consistent with
// that backend's catalog. A canceled context stops the chain immediately.
func (e *Executor) Execute(ctx context.Context, task nexus.TaskType, input json.RawMessage, options nexus.RouterOptions) (*nexus.ExecutionResult, error) {
	decision, err := e.selector.Select(ctx, task, options)
	if err != nil {
		return nil, err
	}

	chain := make([]nexus.Backend, 0, 1+len(decision.Fallbacks))
	chain = append(chain, decision.Backend)
	chain = append(chain, decision.Fallbacks...)

	var lastErr error
	for index, candidate := range chain {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		attempt := decision
		if index > 0 {
			forced := options
			forced.PreferredBackend = &chain[index]
			attempt, err = e.selector.Select(ctx, task, forced)
			if err != nil {
				lastErr = err
				continue
			}
			e.logger.Infow("Falling back to alternative backend",
				"task", task, "backend", candidate, "model", attempt.Model)
		}

		result, err := e.attempt(ctx, task, attempt, input)
		if err != nil {
			lastErr = BackendExecutionError{Backend: attempt.Backend, Err: err}
			e.logger.Warnw("Backend attempt failed",
				"task", task, "backend", attempt.Backend, "model", attempt.Model, "error", err)
			continue
		}
		return result, nil
	}

	return nil, AllBackendsExhaustedError{Task: task, Attempts: len(chain), Err: lastErr}
}

func (e *Executor) attempt(ctx context.Context, task nexus.TaskType, decision *nexus.RouteDecision, input json.RawMessage) (*nexus.ExecutionResult, error) {
	invoker, ok := e.invokers[decision.Backend]
	if !ok {
		return nil, backend.MisconfiguredEnvironmentError{
			Err: fmt.Errorf("no invoker configured for backend %s", decision.Backend),
		}
	}

	start := e.clock.Now()
	raw, err := invoker.Invoke(ctx, task, decision.Model, input)
	latency := e.clock.Since(start)

	if err != nil {
		e.store.RecordFailure(decision.Backend, latency)
		if e.recorder != nil {
			e.recorder.RecordTask(decision.Backend, task, false, 0)
		}
		return nil, err
	}

	e.store.RecordSuccess(decision.Backend, latency, decision.EstimatedCost)
	if e.recorder != nil {
		e.recorder.RecordTask(decision.Backend, task, true, decision.EstimatedCost)
	}
	return &nexus.ExecutionResult{
		Result:    raw,
		Backend:   decision.Backend,
		Model:     decision.Model,
		LatencyMs: latency.Milliseconds(),
		Cost:      decision.EstimatedCost,
	}, nil
}
