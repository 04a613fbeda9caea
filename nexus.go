package nexus

import (
	"fmt"

	"github.com/goccy/go-json"
)

// Backend is one of the closed set of AI execution targets.
type Backend string

const (
	// In-process accelerated inference. Zero marginal cost, privacy
	// preserving, only usable when the runtime capability is present.
	BackendLocal Backend = "localInference"

	// Hosted multi-model gateway. General purpose.
	BackendPrimary Backend = "primaryGateway"

	// Alternative hosted inference service. Typically cheaper and slower.
	BackendSecondary Backend = "secondaryInference"
)

// Backends lists every known backend. The set is closed; adding a backend is
// a compile-time-visible change that must update every switch over Backend.
func Backends() []Backend {
	return []Backend{BackendLocal, BackendPrimary, BackendSecondary}
}

func ParseBackend(value string) (Backend, error) {
	switch Backend(value) {
	case BackendLocal, BackendPrimary, BackendSecondary:
		return Backend(value), nil
	}
	return "", fmt.Errorf("unknown backend: %s", value)
}

// TaskType is a typed unit of AI work.
type TaskType string

const (
	TaskChat            TaskType = "chat"
	TaskTextGeneration  TaskType = "textGeneration"
	TaskEmbedding       TaskType = "embedding"
	TaskClassification  TaskType = "classification"
	TaskImageGen        TaskType = "imageGen"
	TaskObjectDetection TaskType = "objectDetection"
	TaskCaptioning      TaskType = "captioning"
)

func ParseTaskType(value string) (TaskType, error) {
	switch TaskType(value) {
	case TaskChat, TaskTextGeneration, TaskEmbedding, TaskClassification,
		TaskImageGen, TaskObjectDetection, TaskCaptioning:
		return TaskType(value), nil
	}
	return "", fmt.Errorf("unknown task type: %s", value)
}

// AllowedBackends returns the backends structurally able to serve the task.
// Object detection and captioning are implemented by the local pipeline only.
func AllowedBackends(task TaskType) []Backend {
	switch task {
	case TaskObjectDetection, TaskCaptioning:
		return []Backend{BackendLocal}
	case TaskEmbedding, TaskClassification:
		return []Backend{BackendLocal, BackendPrimary, BackendSecondary}
	case TaskImageGen:
		return []Backend{BackendPrimary, BackendSecondary}
	case TaskChat, TaskTextGeneration:
		return []Backend{BackendLocal, BackendPrimary, BackendSecondary}
	}
	return nil
}

// Priority is the caller's steering signal for backend selection. It is a
// soft signal, not a hard constraint.
type Priority string

const (
	PrioritySpeed   Priority = "speed"
	PriorityCost    Priority = "cost"
	PriorityQuality Priority = "quality"
	PriorityPrivacy Priority = "privacy"
)

// RouterOptions captures the caller's intent for a single task. Immutable per
// call; the selector copies it before stripping a failed preference.
type RouterOptions struct {
	// Steering priority. Defaults to quality when empty.
	Priority Priority `json:"priority,omitempty"`

	// Advisory cost ceiling in USD. Exceeding it warns, never rejects.
	MaxCost *float64 `json:"max_cost,omitempty"`

	// Advisory latency ceiling in milliseconds. Exceeding it warns, never rejects.
	MaxLatencyMs *int64 `json:"max_latency_ms,omitempty"`

	// When set, selection honors this backend if it is usable.
	PreferredBackend *Backend `json:"preferred_backend,omitempty"`

	// Whether the caller holds credentials for authenticated backends.
	RequiresAuth bool `json:"requires_auth,omitempty"`
}

// EffectivePriority resolves the default.
func (o RouterOptions) EffectivePriority() Priority {
	if o.Priority == "" {
		return PriorityQuality
	}
	return o.Priority
}

// RouteDecision is the selector's output. A value object, never persisted.
type RouteDecision struct {
	Backend Backend `json:"backend"`

	// Model identifier within the chosen backend's catalog.
	Model string `json:"model"`

	// Human-readable reasoning for the decision.
	Reason string `json:"reason"`

	// Planning estimates from static baseline tables, independent from the
	// live backend metrics.
	EstimatedCost      float64 `json:"estimated_cost"`
	EstimatedLatencyMs int64   `json:"estimated_latency_ms"`

	// Ordered alternatives to try after Backend fails. Never contains
	// Backend itself; empty only for tasks with no alternative.
	Fallbacks []Backend `json:"fallbacks"`
}

// ExecutionResult is returned to the caller after a task completes. The
// backend may differ from the selector's first choice when fallback occurred.
type ExecutionResult struct {
	Result    json.RawMessage `json:"result"`
	Backend   Backend         `json:"backend"`
	Model     string          `json:"model"`
	LatencyMs int64           `json:"latency_ms"`
	Cost      float64         `json:"cost"`
	FromCache bool            `json:"from_cache,omitempty"`
}

// Role of a conversation turn.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// ConversationTurn is one message in a conversation. Ephemeral within a
// single orchestration call; the durable record is the interaction log's job.
type ConversationTurn struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}
