// Package delegation manages the capped spending allowance a subscriber
// grants to the billing agent.
package delegation

import (
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/types"
)

// Capability is the allowance attached to one subscription. Cap bounds the
// total pulled during a single billing cycle; Spent is reset whenever Cycle
// moves on.
type Capability struct {
	types.Entity
	ID             id.CapabilityID   `json:"id"`
	SubscriptionID id.SubscriptionID `json:"subscription_id"`
	FundingAccount string            `json:"funding_account"`
	Holder         string            `json:"holder"`
	Cap            types.Amount      `json:"cap_amount"`
	Cycle          uint32            `json:"cycle"`
	Spent          types.Amount      `json:"spent"`
	Revoked        bool              `json:"revoked"`
}

// Remaining returns the allowance left for the given cycle.
func (c *Capability) Remaining(cycle uint32) types.Amount {
	if c.Revoked {
		return 0
	}
	if cycle != c.Cycle {
		return c.Cap
	}
	if c.Spent >= c.Cap {
		return 0
	}
	return c.Cap - c.Spent
}
