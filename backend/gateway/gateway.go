// Package gateway is the client for the hosted multi-model gateway, the
// general-purpose primaryGateway backend.
package gateway

import (
	"bufio"
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
		timeout = 60 * time.Second
	}
	return &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: timeout},
		logger:     logger,
	}
}

type taskRequest struct {
	Task  nexus.TaskType  `json:"task"`
	Model string          `json:"model"`
	Input json.RawMessage `json:"input"`
}

type taskResponse struct {
	Result json.RawMessage `json:"result"`
	Error  *apiError       `json:"error,omitempty"`
}

type apiError struct {
	Message string `json:"message"`
	Type    string `json:"type,omitempty"`
}

// Invoke performs one non-streaming task call. One attempt, no retries.
func (c *Client) Invoke(ctx context.Context, task nexus.TaskType, model string, input json.RawMessage) (json.RawMessage, error) {
	if c.apiKey == "" {
		return nil, backend.MisconfiguredEnvironmentError{Err: fmt.Errorf("gateway API key is not configured")}
	}

	body, err := json.Marshal(taskRequest{Task: task, Model: model, Input: input})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal gateway request: %v", err)
	}

	request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/tasks", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	request.Header.Set("Content-Type", "application/json")
	request.Header.Set("Authorization", "Bearer "+c.apiKey)

	response, err := c.httpClient.Do(request)
	if err != nil {
		return nil, fmt.Errorf("gateway request failed: %v", err)
	}
	defer response.Body.Close()

	responseBody, err := io.ReadAll(response.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateway response: %v", err)
	}
	if response.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned HTTP %d: %s", response.StatusCode, string(responseBody))
	}

	var parsed taskResponse
	if err := json.Unmarshal(responseBody, &parsed); err != nil {
		return nil, fmt.Errorf("failed to parse gateway response: %v", err)
	}
	if parsed.Error != nil {
		return nil, fmt.Errorf("gateway error: %s", parsed.Error.Message)
	}
	return parsed.Result, nil
}

type chatStreamRequest struct {
	Model    string                   `json:"model"`
	Messages []nexus.ConversationTurn `json:"messages"`
	System   string                   `json:"system,omitempty"`
	Stream   bool                     `json:"stream"`
}

// StreamChat opens a token stream for a conversation. Each value on the data
// channel is one raw SSE data line as delivered by the gateway; relaying and
// parsing them is the caller's concern. Both channels close when the stream
// ends; the error channel carries at most one error.
func (c *Client) StreamChat(ctx context.Context, model string, system string, messages []nexus.ConversationTurn) (<-chan []byte, <-chan error) {
	dataCh := make(chan []byte)
	errCh := make(chan error, 1)

	go func() {
		defer close(dataCh)
		defer close(errCh)

		if c.apiKey == "" {
			errCh <- backend.MisconfiguredEnvironmentError{Err: fmt.Errorf("gateway API key is not configured")}
			return
		}

		body, err := json.Marshal(chatStreamRequest{
			Model:    model,
			Messages: messages,
			System:   system,
			Stream:   true,
		})
		if err != nil {
			errCh <- fmt.Errorf("failed to marshal stream request: %v", err)
			return
		}

		request, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/chat/completions", bytes.NewReader(body))
		if err != nil {
			errCh <- err
			return
		}
		request.Header.Set("Content-Type", "application/json")
		request.Header.Set("Accept", "text/event-stream")
		request.Header.Set("Authorization", "Bearer "+c.apiKey)

		response, err := c.httpClient.Do(request)
		if err != nil {
			errCh <- fmt.Errorf("gateway stream request failed: %v", err)
			return
		}
		defer response.Body.Close()

		if response.StatusCode != http.StatusOK {
			responseBody, _ := io.ReadAll(response.Body)
			errCh <- fmt.Errorf("gateway returned HTTP %d: %s", response.StatusCode, string(responseBody))
			return
		}

		// Sends block until the consumer receives, so a slow caller
		// throttles how fast the upstream body is drained.
		scanner := bufio.NewScanner(response.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := scanner.Bytes()
			if len(bytes.TrimSpace(line)) == 0 {
				continue
			}
			chunk := make([]byte, len(line))
			copy(chunk, line)
			select {
			case dataCh <- chunk:
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			}
		}
		if err := scanner.Err(); err != nil {
			errCh <- fmt.Errorf("gateway stream read failed: %v", err)
		}
	}()

	return dataCh, errCh
}
