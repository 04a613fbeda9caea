// Package collab holds HTTP clients for the conversational pipeline's
// collaborator services. Each collaborator is one request/response call; the
// orchestrator decides which failures degrade and which propagate.
package collab

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"go.uber.org/zap"

	nexus "github.com/3bi-io/nexus-core"
	"github.com/3bi-io/nexus-core/orchestrator"
)

// Client talks to the product's internal collaborator services. It satisfies
// the orchestrator's Coordinator, AgentRunner, WebSearcher, MemoryStore, and
// BehaviorStore contracts.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

func NewClient(baseURL string, apiKey string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

func (c *Client) post(ctx context.Context, path string, requestBody any, responseBody any) error {
	encoded, err := json.Marshal(requestBody)
	if err != nil {
		return fmt.Errorf("failed to marshal request: %v", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(encoded))
	if err != nil {
		return err
	}
	request.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		request.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	response, err := c.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("collaborator request failed: %v", err)
	}
	defer response.Body.Close()

	payload, err := io.ReadAll(response.Body)
	if err != nil {
		return fmt.Errorf("failed to read collaborator response: %v", err)
	}
	if response.StatusCode != http.StatusOK {
		return fmt.Errorf("collaborator returned HTTP %d: %s", response.StatusCode, string(payload))
	}
	return json.Unmarshal(payload, responseBody)
}

// Classify implements orchestrator.Coordinator.
func (c *Client) Classify(ctx context.Context, messages []nexus.ConversationTurn) (*orchestrator.Classification, error) {
	var classification orchestrator.Classification
	err := c.post(ctx, "/internal/coordinator/classify", struct {
		Messages []nexus.ConversationTurn `json:"messages"`
	}{messages}, &classification)
	if err != nil {
		return nil, err
	}
	return &classification, nil
}

// Run implements orchestrator.AgentRunner.
func (c *Client) Run(ctx context.Context, agent string, messages []nexus.ConversationTurn) (string, error) {
	var response struct {
		Text string `json:"text"`
	}
	err := c.post(ctx, "/internal/agents/"+agent, struct {
		Messages []nexus.ConversationTurn `json:"messages"`
	}{messages}, &response)
	if err != nil {
		return "", err
	}
	return response.Text, nil
}

// Search implements orchestrator.WebSearcher.
func (c *Client) Search(ctx context.Context, query string) (*orchestrator.SearchResult, error) {
	var result orchestrator.SearchResult
	err := c.post(ctx, "/internal/search", struct {
		Query string `json:"query"`
	}{query}, &result)
	if err != nil {
		return nil, err
	}
	return &result, nil
}

type memoryQuery struct {
	SessionID string `json:"session_id,omitempty"`
	Query     string `json:"query,omitempty"`
	Limit     int    `json:"limit"`
}

type memoryResponse struct {
	Items []orchestrator.Memory `json:"items"`
}

// SearchSimilar implements orchestrator.MemoryStore.
func (c *Client) SearchSimilar(ctx context.Context, sessionID string, query string, limit int) ([]orchestrator.Memory, error) {
	var response memoryResponse
	err := c.post(ctx, "/internal/memory/similar", memoryQuery{SessionID: sessionID, Query: query, Limit: limit}, &response)
	if err != nil {
		return nil, err
	}
	return response.Items, nil
}

// RecentBySession implements orchestrator.MemoryStore.
func (c *Client) RecentBySession(ctx context.Context, sessionID string, limit int) ([]orchestrator.Memory, error) {
	var response memoryResponse
	err := c.post(ctx, "/internal/memory/recent", memoryQuery{SessionID: sessionID, Limit: limit}, &response)
	if err != nil {
		return nil, err
	}
	return response.Items, nil
}

// TopByImportance implements orchestrator.MemoryStore.
func (c *Client) TopByImportance(ctx context.Context, limit int) ([]orchestrator.Memory, error) {
	var response memoryResponse
	err := c.post(ctx, "/internal/memory/important", memoryQuery{Limit: limit}, &response)
	if err != nil {
		return nil, err
	}
	return response.Items, nil
}

// ActiveBehaviors implements orchestrator.BehaviorStore.
func (c *Client) ActiveBehaviors(ctx context.Context, limit int) ([]orchestrator.Behavior, error) {
	var response struct {
		Behaviors []orchestrator.Behavior `json:"behaviors"`
	}
	err := c.post(ctx, "/internal/behaviors/active", struct {
		Limit int `json:"limit"`
	}{limit}, &response)
	if err != nil {
		return nil, err
	}
	return response.Behaviors, nil
}
