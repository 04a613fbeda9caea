package orchestrator

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	nexus "github.com/3bi-io/nexus-core"
)

// Vocabulary that suggests the user is asking about current events or
// time-sensitive facts the model cannot know.
var recencyPattern = regexp.MustCompile(`(?i)\b(today|yesterday|tonight|this (week|month|year|morning)|latest|current(ly)?|recent(ly)?|right now|breaking|news|as of|202\d|price of|stock|weather|score)\b`)

const (
	semanticFloor  = 5
	memoryCap      = 10
	behaviorLimit  = 10
	searchSnippets = 3
)

// assembledContext is everything the general path folds into the prompt.
type assembledContext struct {
	searchAnswer    string
	searchCitations []string
	memories        []Memory
	behaviors       []Behavior
}

// size is a rough item count used for telemetry.
func (a *assembledContext) size() int {
	n := len(a.memories) + len(a.behaviors)
	if a.searchAnswer != "" {
		n++
	}
	return n
}

// needsWebSearch applies the recency heuristic: either the coordinator
// flagged it, or the latest user message matches the recency vocabulary.
func needsWebSearch(classification *Classification, messages []nexus.ConversationTurn) bool {
	if classification != nil && classification.NeedsWebSearch {
		return true
	}
	return recencyPattern.MatchString(latestUserMessage(messages))
}

func latestUserMessage(messages []nexus.ConversationTurn) string {
	for i := len(messages) - 1; i >= 0; i-- {
		if messages[i].Role == nexus.RoleUser {
			return messages[i].Content
		}
	}
	return ""
}

// assembleContext gathers search, memory, and behavior context. Every fetch
// degrades to a smaller context on failure; assembly itself never fails the
// request.
func (o *Orchestrator) assembleContext(ctx context.Context, request *Request, classification *Classification) *assembledContext {
	assembled := &assembledContext{}
	query := latestUserMessage(request.Messages)

	if o.searcher != nil && needsWebSearch(classification, request.Messages) {
		result, err := o.searcher.Search(ctx, query)
		if err != nil {
			o.logger.Warnw("Web search failed, continuing without search context",
				"session_id", request.SessionID, "error", err)
		} else if result != nil {
			assembled.searchAnswer = result.Answer
			if len(result.Citations) > searchSnippets {
				assembled.searchCitations = result.Citations[:searchSnippets]
			} else {
				assembled.searchCitations = result.Citations
			}
		}
	}

	assembled.memories = o.recallMemories(ctx, request.SessionID, query)
	assembled.behaviors = o.fetchBehaviors(ctx)

	return assembled
}

// recallMemories tries semantic similarity first and supplements with
// session-scoped, then global importance-ranked lookups when the semantic
// pass returns fewer than semanticFloor items. Duplicates are dropped by
// identity and the total is capped at memoryCap.
func (o *Orchestrator) recallMemories(ctx context.Context, sessionID string, query string) []Memory {
	if o.memory == nil {
		return nil
	}

	seen := make(map[string]bool)
	recalled := make([]Memory, 0, memoryCap)

	appendUnique := func(items []Memory) {
		for _, item := range items {
			if len(recalled) >= memoryCap {
				return
			}
			if item.ID != "" && seen[item.ID] {
				continue
			}
			seen[item.ID] = true
			recalled = append(recalled, item)
		}
	}

	semantic, err := o.memory.SearchSimilar(ctx, sessionID, query, memoryCap)
	if err != nil {
		o.logger.Warnw("Semantic memory lookup failed", "session_id", sessionID, "error", err)
	} else {
		appendUnique(semantic)
	}

	if len(recalled) >= semanticFloor {
		return recalled
	}

	recent, err := o.memory.RecentBySession(ctx, sessionID, memoryCap-len(recalled))
	if err != nil {
		o.logger.Warnw("Session memory lookup failed", "session_id", sessionID, "error", err)
	} else {
		appendUnique(recent)
	}

	if len(recalled) >= semanticFloor {
		return recalled
	}

	global, err := o.memory.TopByImportance(ctx, memoryCap-len(recalled))
	if err != nil {
		o.logger.Warnw("Global memory lookup failed", "error", err)
	} else {
		appendUnique(global)
	}

	return recalled
}

func (o *Orchestrator) fetchBehaviors(ctx context.Context) []Behavior {
	if o.behaviors == nil {
		return nil
	}
	behaviors, err := o.behaviors.ActiveBehaviors(ctx, behaviorLimit)
	if err != nil {
		o.logger.Warnw("Behavior lookup failed", "error", err)
		return nil
	}
	if len(behaviors) > behaviorLimit {
		behaviors = behaviors[:behaviorLimit]
	}
	return behaviors
}

// buildSystemPrompt folds the assembled context into the base system prompt.
func (o *Orchestrator) buildSystemPrompt(assembled *assembledContext) string {
	var builder strings.Builder
	builder.WriteString(o.systemPrompt)

	if len(assembled.memories) > 0 {
		builder.WriteString("\n\nRelevant context from memory:\n")
		for _, memory := range assembled.memories {
			fmt.Fprintf(&builder, "- %s\n", memory.Content)
		}
	}

	if assembled.searchAnswer != "" {
		builder.WriteString("\nCurrent information from web search:\n")
		builder.WriteString(assembled.searchAnswer)
		builder.WriteString("\n")
		for _, citation := range assembled.searchCitations {
			fmt.Fprintf(&builder, "Source: %s\n", citation)
		}
	}

	if len(assembled.behaviors) > 0 {
		builder.WriteString("\nStyle guidance:\n")
		for _, behavior := range assembled.behaviors {
			fmt.Fprintf(&builder, "- %s\n", behavior.Description)
		}
	}

	return builder.String()
}
