package cadence

import "github.com/xraph/cadence/id"

// ID is the primary identifier type for all Cadence entities.
type ID = id.ID

// Prefix identifies the entity type encoded in a TypeID.
type Prefix = id.Prefix

// Re-export ID parsers for callers that receive IDs over the wire.
var (
	ParseServiceID      = id.ParseServiceID
	ParsePlanID         = id.ParsePlanID
	ParseSubscriptionID = id.ParseSubscriptionID
	ParsePaymentID      = id.ParsePaymentID
)
