package orchestrator

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// UpstreamStreamError means the model stream errored after tokens may already
// have been delivered. Not retried; the caller's stream is errored instead.
type UpstreamStreamError struct{ Err error }

func (e UpstreamStreamError) Error() string {
	return fmt.Sprintf("upstream stream failed: %v", e.Err)
}

func (e UpstreamStreamError) Unwrap() error { return e.Err }

// StreamWriter relays one raw chunk to the caller's transport. The
// implementation flushes before returning, so the relay loop's next pull is
// naturally throttled by a slow client.
type StreamWriter interface {
	WriteChunk(chunk []byte) error
}

var dataLinePrefix = []byte("data:")
var doneMarker = []byte("[DONE]")

// streamChunk mirrors the gateway's line-delimited event shape: incremental
// text deltas with an optional terminal usage summary.
type streamChunk struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Usage *Usage `json:"usage,omitempty"`
}

// streamAccumulator parses relayed chunks purely for bookkeeping: the full
// response text and, when present, token usage. Parsing failures on
// individual lines are swallowed; they must never abort the relay.
type streamAccumulator struct {
	text  bytes.Buffer
	usage *Usage
}

func (a *streamAccumulator) ingest(line []byte) {
	if !bytes.HasPrefix(line, dataLinePrefix) {
		return
	}
	payload := bytes.TrimSpace(bytes.TrimPrefix(line, dataLinePrefix))
	if len(payload) == 0 || bytes.Equal(payload, doneMarker) {
		return
	}

	var chunk streamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return
	}
	for _, choice := range chunk.Choices {
		a.text.WriteString(choice.Delta.Content)
	}
	if chunk.Usage != nil {
		a.usage = chunk.Usage
	}
}

func (a *streamAccumulator) Text() string  { return a.text.String() }
func (a *streamAccumulator) Usage() *Usage { return a.usage }
