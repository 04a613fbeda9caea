package orchestrator

import (
	"context"

	nexus "github.com/3bi-io/nexus-core"
)

// Classification is the coordinator's assessment of a conversational turn.
type Classification struct {
	// Recommended specialized agent, empty for the general path.
	Agent string `json:"agent,omitempty"`

	// Complexity of the request: "simple" or "complex".
	Complexity string `json:"complexity,omitempty"`

	// Whether the turn needs live-web augmentation.
	NeedsWebSearch bool `json:"needs_web_search,omitempty"`
}

// Coordinator classifies a turn's intent and complexity. Failure is never
// fatal to the request; the orchestrator degrades to the general path.
type Coordinator interface {
	Classify(ctx context.Context, messages []nexus.ConversationTurn) (*Classification, error)
}

// AgentRunner invokes a named specialized agent synchronously with the full
// message history. Unlike every other collaborator, its failure propagates.
type AgentRunner interface {
	Run(ctx context.Context, agent string, messages []nexus.ConversationTurn) (string, error)
}

// SearchResult is a short synthesized answer with citations.
type SearchResult struct {
	Answer    string   `json:"answer"`
	Citations []string `json:"citations,omitempty"`
}

// WebSearcher performs one live-web lookup.
type WebSearcher interface {
	Search(ctx context.Context, query string) (*SearchResult, error)
}

// Memory is one recalled item. Identity-based deduplication uses ID.
type Memory struct {
	ID         string  `json:"id"`
	Content    string  `json:"content"`
	Importance float64 `json:"importance,omitempty"`
}

// MemoryStore recalls prior context. Each lookup degrades independently.
type MemoryStore interface {
	// SearchSimilar returns semantically similar memories for the query.
	SearchSimilar(ctx context.Context, sessionID string, query string, limit int) ([]Memory, error)

	// RecentBySession returns the most recent session-scoped memories.
	RecentBySession(ctx context.Context, sessionID string, limit int) ([]Memory, error)

	// TopByImportance returns global memories ranked by importance.
	TopByImportance(ctx context.Context, limit int) ([]Memory, error)
}

// Behavior is a stored, ranked style hint folded into the system prompt.
type Behavior struct {
	Description   string  `json:"description"`
	Effectiveness float64 `json:"effectiveness,omitempty"`
}

// BehaviorStore returns active adaptive behaviors ranked by effectiveness.
type BehaviorStore interface {
	ActiveBehaviors(ctx context.Context, limit int) ([]Behavior, error)
}

// Usage carries token counters parsed from the terminal stream chunk.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}

// ChatTelemetry is emitted after a request completes. Loss is acceptable;
// added response latency is not.
type ChatTelemetry struct {
	SessionID   string
	Model       string
	Agent       string
	LatencyMs   int64
	ContextSize int
	Usage       *Usage
}

// TelemetrySink receives fire-and-forget observability events.
type TelemetrySink interface {
	RecordChat(telemetry ChatTelemetry)
}

// Interaction is the durable record of one exchange.
type Interaction struct {
	ID        string `json:"id"`
	SessionID string `json:"session_id"`
	UserID    string `json:"user_id,omitempty"`
	Query     string `json:"query"`
	Response  string `json:"response,omitempty"`
	Model     string `json:"model"`
	Agent     string `json:"agent,omitempty"`
}

// InteractionLog persists exchanges. Insert happens before streaming so a
// crash mid-stream still leaves an auditable row; UpdateResponse fills in the
// final text afterwards. Durability only, never read on the decision path.
type InteractionLog interface {
	Insert(ctx context.Context, interaction Interaction) error
	UpdateResponse(ctx context.Context, id string, response string) error
}

// ModelStreamer opens a raw token stream from a chat model. The gateway
// client satisfies this.
type ModelStreamer interface {
	StreamChat(ctx context.Context, model string, system string, messages []nexus.ConversationTurn) (<-chan []byte, <-chan error)
}
