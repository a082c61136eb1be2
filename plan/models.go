package plan

import (
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/types"
)

// MaxNameLength is the longest plan name accepted, in bytes.
const MaxNameLength = 32

// Plan is a set of billing terms owned by a service. Editing a plan never
// changes subscriptions that already locked its terms.
type Plan struct {
	types.Entity
	ID               id.PlanID    `json:"id"`
	ServiceID        id.ServiceID `json:"service_id"`
	Name             string       `json:"name"`
	Amount           types.Amount `json:"amount"`
	CollectorReward  types.Amount `json:"collector_reward"`
	Interval         int64        `json:"interval"`
	GracePeriod      int64        `json:"grace_period"`
	IsActive         bool         `json:"is_active"`
	Index            uint16       `json:"plan_index"`
	MaxBillingCycles uint64       `json:"max_billing_cycles"`
}

// IsOneTime reports whether the plan bills exactly once.
func (p *Plan) IsOneTime() bool { return p.MaxBillingCycles == 1 }

// Terms are the inputs for a new plan.
type Terms struct {
	Name             string       `json:"name"`
	Amount           types.Amount `json:"amount"`
	CollectorReward  types.Amount `json:"collector_reward"`
	Interval         int64        `json:"interval"`
	GracePeriod      int64        `json:"grace_period"`
	MaxBillingCycles uint64       `json:"max_billing_cycles"`
}

// Update is a partial plan edit. Nil fields are left untouched.
type Update struct {
	Name             *string       `json:"name,omitempty"`
	Amount           *types.Amount `json:"amount,omitempty"`
	CollectorReward  *types.Amount `json:"collector_reward,omitempty"`
	Interval         *int64        `json:"interval,omitempty"`
	GracePeriod      *int64        `json:"grace_period,omitempty"`
	IsActive         *bool         `json:"is_active,omitempty"`
	MaxBillingCycles *uint64       `json:"max_billing_cycles,omitempty"`
}

// Apply returns a copy of the plan with the update's fields applied.
func (u Update) Apply(p Plan) Plan {
	if u.Name != nil {
		p.Name = *u.Name
	}
	if u.Amount != nil {
		p.Amount = *u.Amount
	}
	if u.CollectorReward != nil {
		p.CollectorReward = *u.CollectorReward
	}
	if u.Interval != nil {
		p.Interval = *u.Interval
	}
	if u.GracePeriod != nil {
		p.GracePeriod = *u.GracePeriod
	}
	if u.IsActive != nil {
		p.IsActive = *u.IsActive
	}
	if u.MaxBillingCycles != nil {
		p.MaxBillingCycles = *u.MaxBillingCycles
	}
	return p
}

// IsEmpty reports whether the update changes nothing.
func (u Update) IsEmpty() bool {
	return u.Name == nil && u.Amount == nil && u.CollectorReward == nil &&
		u.Interval == nil && u.GracePeriod == nil && u.IsActive == nil &&
		u.MaxBillingCycles == nil
}
