package collab

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	nexus "github.com/3bi-io/nexus-core"
	"github.com/3bi-io/nexus-core/orchestrator"
)

func collabServer(t *testing.T, expectedPath string, response any) *httptest.Server {
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, expectedPath, r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "Bearer internal-key", r.Header.Get("Authorization"))
		require.NoError(t, json.NewEncoder(w).Encode(response))
	}))
}

func TestClassify(t *testing.T) {
	server := collabServer(t, "/internal/coordinator/classify", orchestrator.Classification{
		Agent:          "reasoning",
		Complexity:     "complex",
		NeedsWebSearch: true,
	})
	defer server.Close()

	client := NewClient(server.URL, "internal-key", time.Second, zaptest.NewLogger(t).Sugar())
	classification, err := client.Classify(context.Background(),
		[]nexus.ConversationTurn{{Role: nexus.RoleUser, Content: "prove it"}})
	require.NoError(t, err)

	assert.Equal(t, "reasoning", classification.Agent)
	assert.Equal(t, "complex", classification.Complexity)
	assert.True(t, classification.NeedsWebSearch)
}

func TestRun(t *testing.T) {
	server := collabServer(t, "/internal/agents/creative", map[string]string{"text": "a sonnet"})
	defer server.Close()

	client := NewClient(server.URL, "internal-key", time.Second, zaptest.NewLogger(t).Sugar())
	text, err := client.Run(context.Background(), "creative", nil)
	require.NoError(t, err)
	assert.Equal(t, "a sonnet", text)
}

func TestSearch(t *testing.T) {
	server := collabServer(t, "/internal/search", orchestrator.SearchResult{
		Answer:    "it is sunny",
		Citations: []string{"https://example.com"},
	})
	defer server.Close()

	client := NewClient(server.URL, "internal-key", time.Second, zaptest.NewLogger(t).Sugar())
	result, err := client.Search(context.Background(), "weather today")
	require.NoError(t, err)
	assert.Equal(t, "it is sunny", result.Answer)
	assert.Equal(t, []string{"https://example.com"}, result.Citations)
}

func TestMemoryLookups(t *testing.T) {
	items := memoryResponse{Items: []orchestrator.Memory{{ID: "m1", Content: "remembered"}}}

	t.Run("similar", func(t *testing.T) {
		server := collabServer(t, "/internal/memory/similar", items)
		defer server.Close()

		client := NewClient(server.URL, "internal-key", time.Second, zaptest.NewLogger(t).Sugar())
		memories, err := client.SearchSimilar(context.Background(), "s1", "query", 10)
		require.NoError(t, err)
		require.Len(t, memories, 1)
		assert.Equal(t, "m1", memories[0].ID)
	})

	t.Run("recent", func(t *testing.T) {
		server := collabServer(t, "/internal/memory/recent", items)
		defer server.Close()

		client := NewClient(server.URL, "internal-key", time.Second, zaptest.NewLogger(t).Sugar())
		memories, err := client.RecentBySession(context.Background(), "s1", 5)
		require.NoError(t, err)
		assert.Len(t, memories, 1)
	})

	t.Run("important", func(t *testing.T) {
		server := collabServer(t, "/internal/memory/important", items)
		defer server.Close()

		client := NewClient(server.URL, "internal-key", time.Second, zaptest.NewLogger(t).Sugar())
		memories, err := client.TopByImportance(context.Background(), 5)
		require.NoError(t, err)
		assert.Len(t, memories, 1)
	})
}

func TestActiveBehaviors(t *testing.T) {
	server := collabServer(t, "/internal/behaviors/active", map[string]any{
		"behaviors": []orchestrator.Behavior{{Description: "be concise", Effectiveness: 0.9}},
	})
	defer server.Close()

	client := NewClient(server.URL, "internal-key", time.Second, zaptest.NewLogger(t).Sugar())
	behaviors, err := client.ActiveBehaviors(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, behaviors, 1)
	assert.Equal(t, "be concise", behaviors[0].Description)
}

func TestErrorStatusPropagates(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer server.Close()

	client := NewClient(server.URL, "internal-key", time.Second, zaptest.NewLogger(t).Sugar())
	_, err := client.Classify(context.Background(), nil)
	assert.ErrorContains(t, err, "HTTP 500")
}
