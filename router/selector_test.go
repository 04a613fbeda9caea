package router

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	nexus "github.com/3bi-io/nexus-core"
	"github.com/3bi-io/nexus-core/stats"
	"github.com/3bi-io/nexus-core/utils"
	"github.com/3bi-io/nexus-core/utils/array"
)

type staticDetector struct {
	available bool
}

func (d staticDetector) HasLocalAcceleration(ctx context.Context) bool {
	return d.available
}

func newTestSelector(t *testing.T, localAvailable bool) (*Selector, *stats.Store) {
	store := stats.NewStore()
	selector := NewSelector(staticDetector{available: localAvailable}, store, zaptest.NewLogger(t).Sugar())
	return selector, store
}

func TestSelectRejectsUnknownTask(t *testing.T) {
	selector, _ := newTestSelector(t, true)

	_, err := selector.Select(context.Background(), nexus.TaskType("translation"), nexus.RouterOptions{})
	assert.ErrorContains(t, err, "unknown task type")
}

func TestSelectedBackendIsAlwaysAllowed(t *testing.T) {
	tasks := []nexus.TaskType{
		nexus.TaskChat, nexus.TaskTextGeneration, nexus.TaskEmbedding,
		nexus.TaskClassification, nexus.TaskImageGen,
		nexus.TaskObjectDetection, nexus.TaskCaptioning,
	}
	priorities := []nexus.Priority{
		nexus.PrioritySpeed, nexus.PriorityCost, nexus.PriorityQuality, nexus.PriorityPrivacy,
	}

	for _, localAvailable := range []bool{true, false} {
		selector, _ := newTestSelector(t, localAvailable)
		for _, task := range tasks {
			for _, priority := range priorities {
				decision, err := selector.Select(context.Background(), task, nexus.RouterOptions{Priority: priority})
				if err != nil {
					var unavailable CapabilityUnavailableError
					require.ErrorAs(t, err, &unavailable)
					continue
				}
				allowed := nexus.AllowedBackends(task)
				assert.True(t, array.Contains(allowed, decision.Backend),
					"task %s priority %s local=%v chose %s", task, priority, localAvailable, decision.Backend)
				for _, fallback := range decision.Fallbacks {
					assert.True(t, array.Contains(allowed, fallback))
					assert.NotEqual(t, decision.Backend, fallback, "fallbacks never repeat the chosen backend")
				}
			}
		}
	}
}

func TestLocalOnlyTasks(t *testing.T) {
	t.Run("route to local with empty fallbacks when accelerated", func(t *testing.T) {
		selector, _ := newTestSelector(t, true)

		for _, task := range []nexus.TaskType{nexus.TaskObjectDetection, nexus.TaskCaptioning} {
			decision, err := selector.Select(context.Background(), task, nexus.RouterOptions{})
			require.NoError(t, err)
			assert.Equal(t, nexus.BackendLocal, decision.Backend)
			assert.Empty(t, decision.Fallbacks)
			assert.Equal(t, 0.0, decision.EstimatedCost)
		}
	})

	t.Run("fail with capability error when not accelerated", func(t *testing.T) {
		selector, _ := newTestSelector(t, false)

		for _, task := range []nexus.TaskType{nexus.TaskObjectDetection, nexus.TaskCaptioning} {
			_, err := selector.Select(context.Background(), task, nexus.RouterOptions{})
			var unavailable CapabilityUnavailableError
			require.ErrorAs(t, err, &unavailable)
			assert.Equal(t, task, unavailable.Task)
		}
	})
}

func TestEmbeddingRouting(t *testing.T) {
	t.Run("privacy priority with local acceleration stays local at zero cost", func(t *testing.T) {
		selector, _ := newTestSelector(t, true)

		decision, err := selector.Select(context.Background(), nexus.TaskEmbedding,
			nexus.RouterOptions{Priority: nexus.PriorityPrivacy})
		require.NoError(t, err)
		assert.Equal(t, nexus.BackendLocal, decision.Backend)
		assert.Equal(t, 0.0, decision.EstimatedCost)
		assert.Equal(t, []nexus.Backend{nexus.BackendSecondary, nexus.BackendPrimary}, decision.Fallbacks)
	})

	t.Run("without local acceleration falls to secondary", func(t *testing.T) {
		selector, _ := newTestSelector(t, false)

		decision, err := selector.Select(context.Background(), nexus.TaskEmbedding,
			nexus.RouterOptions{Priority: nexus.PriorityPrivacy})
		require.NoError(t, err)
		assert.Equal(t, nexus.BackendSecondary, decision.Backend)
	})

	t.Run("quality priority prefers hosted inference", func(t *testing.T) {
		selector, _ := newTestSelector(t, true)

		decision, err := selector.Select(context.Background(), nexus.TaskEmbedding,
			nexus.RouterOptions{Priority: nexus.PriorityQuality})
		require.NoError(t, err)
		assert.Equal(t, nexus.BackendSecondary, decision.Backend)
	})
}

func TestChatRouting(t *testing.T) {
	testCases := []struct {
		name     string
		options  nexus.RouterOptions
		expected nexus.Backend
		model    string
	}{
		{
			name:     "default priority is quality",
			options:  nexus.RouterOptions{},
			expected: nexus.BackendPrimary,
			model:    "anthropic/claude-3.5-sonnet",
		},
		{
			name:     "speed prefers the fast hosted model",
			options:  nexus.RouterOptions{Priority: nexus.PrioritySpeed},
			expected: nexus.BackendPrimary,
			model:    "openai/gpt-4o-mini",
		},
		{
			name:     "cost without credentials goes to secondary",
			options:  nexus.RouterOptions{Priority: nexus.PriorityCost},
			expected: nexus.BackendSecondary,
			model:    "llama-3.1-70b-instruct",
		},
		{
			name:     "cost with credentials stays on primary",
			options:  nexus.RouterOptions{Priority: nexus.PriorityCost, RequiresAuth: true},
			expected: nexus.BackendPrimary,
			model:    "openai/gpt-4o",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			selector, _ := newTestSelector(t, false)

			decision, err := selector.Select(context.Background(), nexus.TaskChat, testCase.options)
			require.NoError(t, err)
			assert.Equal(t, testCase.expected, decision.Backend)
			assert.Equal(t, testCase.model, decision.Model)
		})
	}
}

func TestImageGenRouting(t *testing.T) {
	selector, _ := newTestSelector(t, true)

	quality, err := selector.Select(context.Background(), nexus.TaskImageGen,
		nexus.RouterOptions{Priority: nexus.PriorityQuality})
	require.NoError(t, err)
	assert.Equal(t, nexus.BackendPrimary, quality.Backend)

	cheap, err := selector.Select(context.Background(), nexus.TaskImageGen,
		nexus.RouterOptions{Priority: nexus.PriorityCost})
	require.NoError(t, err)
	assert.Equal(t, nexus.BackendSecondary, cheap.Backend)
	// Local never serves image generation, even when accelerated.
	assert.NotContains(t, cheap.Fallbacks, nexus.BackendLocal)
}

func TestPreferredBackend(t *testing.T) {
	t.Run("honored when usable", func(t *testing.T) {
		selector, _ := newTestSelector(t, true)

		decision, err := selector.Select(context.Background(), nexus.TaskChat,
			nexus.RouterOptions{PreferredBackend: utils.ToPtr(nexus.BackendSecondary)})
		require.NoError(t, err)
		assert.Equal(t, nexus.BackendSecondary, decision.Backend)
		assert.Contains(t, decision.Reason, "caller preferred")
	})

	t.Run("unavailable local preference falls back to automatic selection", func(t *testing.T) {
		selector, _ := newTestSelector(t, false)

		decision, err := selector.Select(context.Background(), nexus.TaskChat,
			nexus.RouterOptions{PreferredBackend: utils.ToPtr(nexus.BackendLocal)})
		require.NoError(t, err)
		assert.Equal(t, nexus.BackendPrimary, decision.Backend)
	})

	t.Run("preference for a backend that cannot serve the task is ignored", func(t *testing.T) {
		selector, _ := newTestSelector(t, true)

		decision, err := selector.Select(context.Background(), nexus.TaskImageGen,
			nexus.RouterOptions{PreferredBackend: utils.ToPtr(nexus.BackendLocal)})
		require.NoError(t, err)
		assert.NotEqual(t, nexus.BackendLocal, decision.Backend)
	})
}

func TestDegradedSuccessRateNote(t *testing.T) {
	selector, store := newTestSelector(t, false)

	for i := 0; i < 10; i++ {
		store.RecordFailure(nexus.BackendPrimary, 0)
	}

	decision, err := selector.Select(context.Background(), nexus.TaskChat, nexus.RouterOptions{})
	require.NoError(t, err)
	assert.Equal(t, nexus.BackendPrimary, decision.Backend, "degraded metrics annotate, never redirect")
	assert.Contains(t, decision.Reason, "recent success rate")
}

func TestAdvisoryBudgetsNeverReject(t *testing.T) {
	selector, _ := newTestSelector(t, false)

	decision, err := selector.Select(context.Background(), nexus.TaskChat, nexus.RouterOptions{
		MaxCost:      utils.ToPtr(0.000001),
		MaxLatencyMs: utils.ToPtr(int64(1)),
	})
	require.NoError(t, err)
	assert.NotNil(t, decision)
}
