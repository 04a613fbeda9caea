// Package inferapi is the client for the secondary hosted inference service,
// the cheaper and typically slower alternative to the primary gateway.
package inferapi

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
	"github.com/3bi-io/nexus-core/backend"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	logger     *zap.SugaredLogger
}

func NewClient(baseURL string, apiKey string, timeout time.Duration, logger *zap.SugaredLogger) *Client {
	if timeout <= 0 {
		timeout = 90 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type inferenceRequest struct {
	Task  nexus.TaskType  `json:"task"`
	Model string          `json:"model"`
	Input json.RawMessage `json:"input"`
}

type inferenceResponse struct {
	Result json.RawMessage `json:"result"`
	Detail string          `json:"detail,omitempty"`
}

// Invoke performs one task call. One attempt, no retries.
func (c *Client) Invoke(ctx context.Context, task nexus.TaskType, model string, input json.RawMessage) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, backend.MisconfiguredEnvironmentError{Err: fmt.Errorf("inference API key is not configured")}
	}

	body, err := json.Marshal(inferenceRequest{Task: task, Model: model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal inference request: %v", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/inference", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+c.apiKey)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("inference request failed: %v", err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read inference response: %v", err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("inference service returned HTTP %d: %s", response.StatusCode, string(responseBody))
	}

	var parsed inferenceResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse inference response: %v", err)
	}
	if parsed.Detail != "" {
		return nil, fmt.Errorf("inference error: %s", parsed.Detail)
	}
	return parsed.Result, nil
}
