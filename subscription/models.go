package subscription

import (
	"math"

	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/types"
)

// Status is the lifecycle state of a subscription.
type Status string

const (
	StatusActive    Status = "active"
	StatusPastDue   Status = "past_due"
	StatusCancelled Status = "cancelled"
	StatusExpired   Status = "expired"
	StatusCompleted Status = "completed"
)

// NeverBill is the next_billing_at of a subscription that will not be billed
// again.
const NeverBill int64 = math.MaxInt64

// IsTerminal reports whether no further transition is possible.
func (s Status) IsTerminal() bool {
	return s == StatusCancelled || s == StatusExpired || s == StatusCompleted
}

// Subscription binds a subscriber to a plan with terms locked at enrollment.
type Subscription struct {
	types.Entity
	ID               id.SubscriptionID `json:"id"`
	Subscriber       string            `json:"subscriber"`
	ServiceID        id.ServiceID      `json:"service_id"`
	PlanID           id.PlanID         `json:"plan_id"`
	FundingAccount   string            `json:"funding_account"`
	LockedAmount     types.Amount      `json:"locked_amount"`
	LockedReward     types.Amount      `json:"locked_reward"`
	LockedInterval   int64             `json:"locked_interval"`
	MaxBillingCycles uint64            `json:"max_billing_cycles"`
	NextBillingAt    int64             `json:"next_billing_at"`
	LastPaymentAt    int64             `json:"last_payment_at"`
	Status           Status            `json:"status"`
	PaymentsMade     uint32            `json:"payments_made"`
}

// EffectiveStatus folds the implicit overdue transition into the stored
// status: an Active subscription whose due date has passed is PastDue.
func (s *Subscription) EffectiveStatus(now int64) Status {
	if s.Status == StatusActive && now > s.NextBillingAt {
		return StatusPastDue
	}
	return s.Status
}

// IsLive reports whether the subscription still occupies its
// (subscriber, plan) key.
func (s *Subscription) IsLive() bool {
	return s.Status != StatusCancelled
}

// GrantsAccess reports whether the subscriber should be served.
func (s *Subscription) GrantsAccess() bool {
	return s.Status == StatusActive || s.Status == StatusPastDue
}

// IsDue reports whether a collection is admitted at now.
func (s *Subscription) IsDue(now int64) bool {
	return s.GrantsAccess() && now >= s.NextBillingAt
}

// CyclesExhausted reports whether the cycle cap has been reached.
func (s *Subscription) CyclesExhausted() bool {
	return s.MaxBillingCycles > 0 && uint64(s.PaymentsMade) >= s.MaxBillingCycles
}
