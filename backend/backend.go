// Package backend defines the execution-target contract shared by the local
// pipeline and the remote inference services.
package backend

import (
	"context"

	"github.com/goccy/go-json"

	nexus "github.com/3bi-io/nexus-core"
)

// Invoker performs exactly one execution attempt against one backend. No
// internal retries; walking the fallback chain is the executor's job.
type Invoker interface {
	Invoke(ctx context.Context, task nexus.TaskType, model string, input json.RawMessage) (json.RawMessage, error)
}

// MisconfiguredEnvironmentError signals that a required backend credential or
// address is absent. Fatal for the request; surfaced as a 5xx-equivalent.
type MisconfiguredEnvironmentError struct{ Err error }

func (e MisconfiguredEnvironmentError) Error() string { return e.Err.Error() }
func (e MisconfiguredEnvironmentError) Unwrap() error { return e.Err }
