package interaction

import (
	"context"
	"fmt"
	"time"

	"github.com/goccy/go-json"
	"github.com/valkey-io/valkey-go"

	"github.com/3bi-io/nexus-core/orchestrator"
)

// Interactions are kept for a bounded window; long-term analytics live in the
// product's warehouse, not here.
const defaultRetention = 30 * 24 * time.Hour

// ValkeyLog stores interactions in Valkey keyed by interaction id.
type ValkeyLog struct {
	client    valkey.Client
	retention time.Duration
}

func NewValkeyLog(client valkey.Client) *ValkeyLog {
	return &ValkeyLog{client: client, retention: defaultRetention}
}

func interactionKey(id string) string {
	return fmt.Sprintf("nexus:interaction:%s", id)
}

func (v *ValkeyLog) Insert(ctx context.Context, interaction orchestrator.Interaction) error {
	if interaction.ID == "" {
		return fmt.Errorf("interaction id is required")
	}

	payload, err := json.Marshal(interaction)
	if err != nil {
		return fmt.Errorf("failed to marshal interaction: %v", err)
	}

	return v.client.Do(ctx, v.client.B().Set().
		Key(interactionKey(interaction.ID)).
		Value(valkey.BinaryString(payload)).
		Ex(v.retention).
		Build(),
	).Error()
}

func (v *ValkeyLog) UpdateResponse(ctx context.Context, id string, response string) error {
	key := interactionKey(id)

	stored := v.client.Do(ctx, v.client.B().Get().Key(key).Build())
	if err := stored.Error(); err != nil {
		if valkey.IsValkeyNil(err) {
			return fmt.Errorf("interaction %s not found", id)
		}
		return err
	}

	payload, err := stored.AsBytes()
	if err != nil {
		return fmt.Errorf("failed to read interaction: %v", err)
	}

	var interaction orchestrator.Interaction
	if err := json.Unmarshal(payload, &interaction); err != nil {
		return fmt.Errorf("failed to unmarshal interaction: %v", err)
	}
	interaction.Response = response

	updated, err := json.Marshal(interaction)
	if err != nil {
		return fmt.Errorf("failed to marshal interaction: %v", err)
	}

	return v.client.Do(ctx, v.client.B().Set().
		Key(key).
		Value(valkey.BinaryString(updated)).
		Ex(v.retention).
		Build(),
	).Error()
}
