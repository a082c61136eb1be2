package plan

import (
	"context"

	"github.com/xraph/cadence/id"
)

type Store interface {
	Create(ctx context.Context, p *Plan) error
	Get(ctx context.Context, planID id.PlanID) (*Plan, error)
	List(ctx context.Context, serviceID id.ServiceID, opts ListOpts) ([]*Plan, error)
	Update(ctx context.Context, p *Plan) error
}

// ListOpts filters plan listings. Results are ordered by plan index.
type ListOpts struct {
	ActiveOnly bool
	Limit      int
	Offset     int
}
