package nexus

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBackend(t *testing.T) {
	for _, backend := range Backends() {
		parsed, err := ParseBackend(string(backend))
		require.NoError(t, err)
		assert.Equal(t, backend, parsed)
	}

	_, err := ParseBackend("mainframe")
	assert.ErrorContains(t, err, "unknown backend")
}

func TestParseTaskType(t *testing.T) {
	valid := []TaskType{
		TaskChat, TaskTextGeneration, TaskEmbedding, TaskClassification,
		TaskImageGen, TaskObjectDetection, TaskCaptioning,
	}
	for _, task := range valid {
		parsed, err := ParseTaskType(string(task))
		require.NoError(t, err)
		assert.Equal(t, task, parsed)
	}

	_, err := ParseTaskType("translation")
	assert.ErrorContains(t, err, "unknown task type")
}

func TestAllowedBackends(t *testing.T) {
	assert.Equal(t, []Backend{BackendLocal}, AllowedBackends(TaskObjectDetection))
	assert.Equal(t, []Backend{BackendLocal}, AllowedBackends(TaskCaptioning))
	assert.Equal(t, []Backend{BackendPrimary, BackendSecondary}, AllowedBackends(TaskImageGen))
	assert.Len(t, AllowedBackends(TaskChat), 3)
	assert.Nil(t, AllowedBackends(TaskType("bogus")))
}

func TestEffectivePriority(t *testing.T) {
	assert.Equal(t, PriorityQuality, RouterOptions{}.EffectivePriority())
	assert.Equal(t, PrioritySpeed, RouterOptions{Priority: PrioritySpeed}.EffectivePriority())
}
