package cadence

import (
	"github.com/xraph/cadence/subscription"
	"github.com/xraph/cadence/types"
)

// Re-export common types for convenience so users don't have to import types package.

// Amount is re-exported from types package.
type Amount = types.Amount

// Entity is re-exported from types package.
type Entity = types.Entity

// NeverBill is the next billing time of a subscription that will not be
// billed again.
const NeverBill = subscription.NeverBill

// Re-export helpers
var (
	Sum        = types.Sum
	AddSeconds = types.AddSeconds
	NewEntity  = types.NewEntity
)
