package subscription

import (
	"context"

	"github.com/xraph/cadence/id"
)

type Store interface {
	Create(ctx context.Context, s *Subscription) error
	Get(ctx context.Context, subID id.SubscriptionID) (*Subscription, error)
	GetLive(ctx context.Context, subscriber string, planID id.PlanID) (*Subscription, error)
	List(ctx context.Context, opts ListOpts) ([]*Subscription, error)
	ListDue(ctx context.Context, now int64, limit int) ([]*Subscription, error)
	Update(ctx context.Context, s *Subscription) error
}

// ListOpts filters subscription listings. Zero-valued fields match anything.
type ListOpts struct {
	Subscriber     string
	ServiceID      id.ServiceID
	PlanID         id.PlanID
	FundingAccount string
	Status         Status
	Limit          int
	Offset         int
}

// Matches reports whether s passes the filter. Stores without a query
// language use it directly.
func (o ListOpts) Matches(s *Subscription) bool {
	if o.Subscriber != "" && s.Subscriber != o.Subscriber {
		return false
	}
	if !o.ServiceID.IsNil() && s.ServiceID.String() != o.ServiceID.String() {
		return false
	}
	if !o.PlanID.IsNil() && s.PlanID.String() != o.PlanID.String() {
		return false
	}
	if o.FundingAccount != "" && s.FundingAccount != o.FundingAccount {
		return false
	}
	if o.Status != "" && s.Status != o.Status {
		return false
	}
	return true
}
