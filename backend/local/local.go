// Package local hosts the in-process inference pipelines backing the
// localInference backend. A pipeline is loaded per (task, model) pair and
// invoked directly, with no network hop and zero marginal cost.
package local

import (
	"context"
	"fmt"
	"sync"

	"github.com/goccy/go-json"

	nexus "github.com/3bi-io/nexus-core"
)

// PipelineFunc runs one loaded pipeline over raw task input.
type PipelineFunc func(ctx context.Context, input json.RawMessage) (json.RawMessage, error)

type pipelineKey struct {
	task  nexus.TaskType
	model string
}

// Registry maps (task, model) to a loaded pipeline. Invoking a combination
// that is not loaded is an error, not a fallback trigger in itself.
type Registry struct {
	mu        sync.RWMutex
	pipelines map[pipelineKey]PipelineFunc
}

func NewRegistry() *Registry {
	return &Registry{pipelines: make(map[pipelineKey]PipelineFunc)}
}

func (r *Registry) Register(task nexus.TaskType, model string, fn PipelineFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelines[pipelineKey{task: task, model: model}] = fn
}

// Loaded reports whether a pipeline exists for the combination.
func (r *Registry) Loaded(task nexus.TaskType, model string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.pipelines[pipelineKey{task: task, model: model}]
	return ok
}

// Invoke runs the pipeline for (task, model).
func (r *Registry) Invoke(ctx context.Context, task nexus.TaskType, model string, input json.RawMessage) (json.RawMessage, error) {
	r.mu.RLock()
	fn, ok := r.pipelines[pipelineKey{task: task, model: model}]
	r.mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("pipeline not loaded for task %s with model %s", task, model)
	}
	return fn(ctx, input)
}
