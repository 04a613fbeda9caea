package orchestrator

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStreamAccumulator(t *testing.T) {
	t.Run("accumulates delta content across chunks", func(t *testing.T) {
		accumulator := &streamAccumulator{}
		accumulator.ingest([]byte(`data: {"choices":[{"delta":{"content":"Hello"}}]}`))
		accumulator.ingest([]byte(`data: {"choices":[{"delta":{"content":", world"}}]}`))
		accumulator.ingest([]byte(`data: [DONE]`))

		assert.Equal(t, "Hello, world", accumulator.Text())
		assert.Nil(t, accumulator.Usage())
	})

	t.Run("captures trailing usage", func(t *testing.T) {
		accumulator := &streamAccumulator{}
		accumulator.ingest([]byte(`data: {"choices":[{"delta":{"content":"hi"}}]}`))
		accumulator.ingest([]byte(`data: {"usage":{"prompt_tokens":10,"completion_tokens":2,"total_tokens":12}}`))

		usage := accumulator.Usage()
		require.NotNil(t, usage)
		assert.Equal(t, 10, usage.PromptTokens)
		assert.Equal(t, 2, usage.CompletionTokens)
		assert.Equal(t, 12, usage.TotalTokens)
	})

	t.Run("swallows malformed lines", func(t *testing.T) {
		accumulator := &streamAccumulator{}
		accumulator.ingest([]byte(`data: {not json`))
		accumulator.ingest([]byte(`: heartbeat comment`))
		accumulator.ingest([]byte(`event: ping`))
		accumulator.ingest([]byte(`data:`))
		accumulator.ingest([]byte(`data: {"choices":[{"delta":{"content":"ok"}}]}`))

		assert.Equal(t, "ok", accumulator.Text())
	})
}
