package delegation

import (
	"context"

	"github.com/xraph/cadence/id"
)

// Store persists capability tokens, one per subscription.
type Store interface {
	// UpsertCapability replaces the token for c.SubscriptionID.
	UpsertCapability(ctx context.Context, c *Capability) error
	GetCapability(ctx context.Context, subID id.SubscriptionID) (*Capability, error)
}
