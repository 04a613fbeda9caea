// Package orchestrator runs the server-side conversational pipeline: intent
// classification, context assembly, model-tier selection, token-stream relay,
// and durable logging.
package orchestrator

import (
	"context"
	"fmt"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"

	nexus "github.com/3bi-io/nexus-core"
)

const defaultSystemPrompt = "You are a helpful assistant."

// Specialized agents the coordinator may route to. Anything else degrades to
// the general path.
var specializedAgents = map[string]bool{
	"reasoning": true,
	"creative":  true,
	"learning":  true,
}

// Request is one inbound conversational turn with its history.
type Request struct {
	SessionID string                   `json:"session_id"`
	UserID    string                   `json:"user_id,omitempty"`
	Messages  []nexus.ConversationTurn `json:"messages"`

	// ForceAgent skips classification entirely and runs the named agent.
	ForceAgent string `json:"force_agent,omitempty"`

	// ForceAdvancedModel overrides the complexity signal for tier selection.
	ForceAdvancedModel bool `json:"force_advanced_model,omitempty"`
}

// Result summarizes a completed request. For the streamed general path Text
// holds the accumulated response; for the agent branch it is the single
// non-streamed reply.
type Result struct {
	Streamed      bool   `json:"streamed"`
	Text          string `json:"text"`
	Agent         string `json:"agent,omitempty"`
	Model         string `json:"model,omitempty"`
	Usage         *Usage `json:"usage,omitempty"`
	InteractionID string `json:"interaction_id"`
}

// Config carries the orchestrator's model tiers and base prompt.
type Config struct {
	// Default fast conversational model.
	DefaultModel string

	// High-capability model used for complex requests.
	AdvancedModel string

	// Base system prompt before context folding.
	SystemPrompt string
}

// Orchestrator executes one request per call. It holds no per-request state;
// everything mutable lives in the backing collaborators.
type Orchestrator struct {
	coordinator  Coordinator
	agents       AgentRunner
	searcher     WebSearcher
	memory       MemoryStore
	behaviors    BehaviorStore
	telemetry    TelemetrySink
	interactions InteractionLog
	streamer     ModelStreamer

	defaultModel  string
	advancedModel string
	systemPrompt  string

	clock  clock.Clock
	logger *zap.SugaredLogger
}

// Collaborators bundles the orchestrator's external dependencies. Coordinator,
// WebSearcher, MemoryStore, BehaviorStore, and TelemetrySink may be nil; the
// pipeline degrades without them. AgentRunner, InteractionLog, and
// ModelStreamer are required.
type Collaborators struct {
	Coordinator  Coordinator
	Agents       AgentRunner
	Searcher     WebSearcher
	Memory       MemoryStore
	Behaviors    BehaviorStore
	Telemetry    TelemetrySink
	Interactions InteractionLog
	Streamer     ModelStreamer
}

func New(config Config, collaborators Collaborators, logger *zap.SugaredLogger) *Orchestrator {
	return newWithClock(config, collaborators, clock.New(), logger)
}

// NewWithClock is for tests that need deterministic latency figures.
func NewWithClock(config Config, collaborators Collaborators, clk clock.Clock, logger *zap.SugaredLogger) *Orchestrator {
	return newWithClock(config, collaborators, clk, logger)
}

func newWithClock(config Config, collaborators Collaborators, clk clock.Clock, logger *zap.SugaredLogger) *Orchestrator {
	systemPrompt := config.SystemPrompt
	if systemPrompt == "" {
		systemPrompt = defaultSystemPrompt
	}
	return &Orchestrator{
		coordinator:   collaborators.Coordinator,
		agents:        collaborators.Agents,
		searcher:      collaborators.Searcher,
		memory:        collaborators.Memory,
		behaviors:     collaborators.Behaviors,
		telemetry:     collaborators.Telemetry,
		interactions:  collaborators.Interactions,
		streamer:      collaborators.Streamer,
		defaultModel:  config.DefaultModel,
		advancedModel: config.AdvancedModel,
		systemPrompt:  systemPrompt,
		clock:         clk,
		logger:        logger,
	}
}

// HandleChat runs the full pipeline for one request. Specialized-agent
// requests return a single non-streamed response; everything else relays the
// model's token stream through the writer.
func (o *Orchestrator) HandleChat(ctx context.Context, request *Request, stream StreamWriter) (*Result, error) {
	ctx, span := otel.Tracer("nexus/orchestrator").Start(ctx, "HandleChat")
	defer span.End()
	span.SetAttributes(attribute.String("session_id", request.SessionID))

	if len(request.Messages) == 0 {
		return nil, fmt.Errorf("no messages provided")
	}

	start := o.clock.Now()

	agent, classification := o.classify(ctx, request)
	if agent != "" {
		return o.runSpecializedAgent(ctx, request, agent, start)
	}
	return o.runGeneralPath(ctx, request, classification, stream, start)
}

// classify resolves the agent choice. A forced agent skips the coordinator
// entirely; a coordinator failure degrades silently to the general path.
func (o *Orchestrator) classify(ctx context.Context, request *Request) (string, *Classification) {
	if request.ForceAgent != "" {
		if specializedAgents[request.ForceAgent] {
			return request.ForceAgent, nil
		}
		o.logger.Warnw("Unknown forced agent, using general path",
			"agent", request.ForceAgent, "session_id", request.SessionID)
		return "", nil
	}

	if o.coordinator == nil {
		return "", nil
	}

	classification, err := o.coordinator.Classify(ctx, request.Messages)
	if err != nil {
		o.logger.Warnw("Intent classification failed, using general path",
			"session_id", request.SessionID, "error", err)
		return "", nil
	}
	if classification != nil && specializedAgents[classification.Agent] {
		return classification.Agent, classification
	}
	return "", classification
}

// runSpecializedAgent invokes the named agent synchronously. There is no
// fallback between specialized agents; a failure fails the request.
func (o *Orchestrator) runSpecializedAgent(ctx context.Context, request *Request, agent string, start time.Time) (*Result, error) {
	text, err := o.agents.Run(ctx, agent, request.Messages)
	if err != nil {
		return nil, fmt.Errorf("agent %s failed: %w", agent, err)
	}

	interactionID := o.persist(ctx, request, agent, "", text)
	o.emitTelemetry(ChatTelemetry{
		SessionID: request.SessionID,
		Agent:     agent,
		LatencyMs: o.clock.Since(start).Milliseconds(),
	})

	return &Result{
		Streamed:      false,
		Text:          text,
		Agent:         agent,
		InteractionID: interactionID,
	}, nil
}

func (o *Orchestrator) runGeneralPath(ctx context.Context, request *Request, classification *Classification, stream StreamWriter, start time.Time) (*Result, error) {
	assembled := o.assembleContext(ctx, request, classification)
	systemPrompt := o.buildSystemPrompt(assembled)
	model := o.selectModel(request, classification)

	// The initial row goes in before streaming starts so a crash mid-stream
	// still leaves an auditable record.
	interactionID := o.insertInteraction(ctx, request, "", model)

	accumulator := &streamAccumulator{}
	dataCh, errCh := o.streamer.StreamChat(ctx, model, systemPrompt, request.Messages)

relay:
	for {
		select {
		case chunk, ok := <-dataCh:
			if !ok {
				// The streamer may have queued a terminal error before
				// closing; both channels close together.
				if errCh != nil {
					if err := <-errCh; err != nil {
						return nil, UpstreamStreamError{Err: err}
					}
				}
				break relay
			}
			if err := stream.WriteChunk(chunk); err != nil {
				return nil, UpstreamStreamError{Err: fmt.Errorf("client transport failed: %v", err)}
			}
			accumulator.ingest(chunk)

		case err := <-errCh:
			if err != nil {
				return nil, UpstreamStreamError{Err: err}
			}
			// errCh closed with no error pending: wait for dataCh to drain.
			errCh = nil

		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	text := accumulator.Text()
	o.updateInteraction(ctx, interactionID, text)
	o.emitTelemetry(ChatTelemetry{
		SessionID:   request.SessionID,
		Model:       model,
		LatencyMs:   o.clock.Since(start).Milliseconds(),
		ContextSize: assembled.size(),
		Usage:       accumulator.Usage(),
	})

	return &Result{
		Streamed:      true,
		Text:          text,
		Model:         model,
		Usage:         accumulator.Usage(),
		InteractionID: interactionID,
	}, nil
}

// selectModel mirrors the route selector's policy shape, scoped to
// conversational tasks: a complexity signal or a forced override picks the
// high-capability tier, everything else takes the default fast model.
func (o *Orchestrator) selectModel(request *Request, classification *Classification) string {
	if request.ForceAdvancedModel {
		return o.advancedModel
	}
	if classification != nil && classification.Complexity == "complex" {
		return o.advancedModel
	}
	return o.defaultModel
}

// persist writes the full insert-then-update pair for non-streamed responses.
func (o *Orchestrator) persist(ctx context.Context, request *Request, agent string, model string, text string) string {
	id := o.insertInteraction(ctx, request, agent, model)
	o.updateInteraction(ctx, id, text)
	return id
}

func (o *Orchestrator) insertInteraction(ctx context.Context, request *Request, agent string, model string) string {
	id := uuid.New().String()
	if o.interactions == nil {
		return id
	}
	err := o.interactions.Insert(ctx, Interaction{
		ID:        id,
		SessionID: request.SessionID,
		UserID:    request.UserID,
		Query:     latestUserMessage(request.Messages),
		Model:     model,
		Agent:     agent,
	})
	if err != nil {
		o.logger.Warnw("Failed to insert interaction record",
			"interaction_id", id, "session_id", request.SessionID, "error", err)
	}
	return id
}

func (o *Orchestrator) updateInteraction(ctx context.Context, id string, text string) {
	if o.interactions == nil {
		return
	}
	if err := o.interactions.UpdateResponse(ctx, id, text); err != nil {
		o.logger.Warnw("Failed to update interaction record",
			"interaction_id", id, "error", err)
	}
}

// emitTelemetry submits to the sink on a background goroutine and does not
// join it before responding. Loss of this event is acceptable; it must never
// add latency to or fail the user-visible response.
func (o *Orchestrator) emitTelemetry(telemetry ChatTelemetry) {
	if o.telemetry == nil {
		return
	}
	go o.telemetry.RecordChat(telemetry)
}
