// Package interaction persists conversation exchanges. The log is durability
// only: nothing on the decision path ever reads it back.
package interaction

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/3bi-io/nexus-core/orchestrator"
)

// record wraps an interaction with its write timestamps.
type record struct {
	interaction orchestrator.Interaction
	createdAt   time.Time
	updatedAt   time.Time
}

// MemoryLog is the in-process interaction log used in development and tests.
type MemoryLog struct {
	mu      sync.RWMutex
	records map[string]*record
	clock   clock.Clock
}

func NewMemoryLog() *MemoryLog {
	return newMemoryLogWithClock(clock.New())
}

// NewMemoryLogWithClock is for tests that assert on timestamps.
func NewMemoryLogWithClock(clk clock.Clock) *MemoryLog {
	return newMemoryLogWithClock(clk)
}

func newMemoryLogWithClock(clk clock.Clock) *MemoryLog {
	return &MemoryLog{
		records: make(map[string]*record),
		clock:   clk,
	}
}

func (m *MemoryLog) Insert(ctx context.Context, interaction orchestrator.Interaction) error {
	if interaction.ID == "" {
		return fmt.Errorf("interaction id is required")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if _, exists := m.records[interaction.ID]; exists {
		return fmt.Errorf("interaction %s already exists", interaction.ID)
	}
	now := m.clock.Now()
	m.records[interaction.ID] = &record{
		interaction: interaction,
		createdAt:   now,
		updatedAt:   now,
	}
	return nil
}

func (m *MemoryLog) UpdateResponse(ctx context.Context, id string, response string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, exists := m.records[id]
	if !exists {
		return fmt.Errorf("interaction %s not found", id)
	}
	stored.interaction.Response = response
	stored.updatedAt = m.clock.Now()
	return nil
}

// Get returns a stored interaction, for tests and admin inspection.
func (m *MemoryLog) Get(id string) (orchestrator.Interaction, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	stored, exists := m.records[id]
	if !exists {
		return orchestrator.Interaction{}, false
	}
	return stored.interaction, true
}
