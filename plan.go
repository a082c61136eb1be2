package cadence

import (
	"context"
	"math"

	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/store"
	"github.com/xraph/cadence/types"
)

// ──────────────────────────────────────────────────
// Plan Catalog
// ──────────────────────────────────────────────────

// CreatePlan adds an active plan to the service. Only the service authority
// may call it. Plans are indexed in creation order.
func (c *Cadence) CreatePlan(ctx context.Context, authority string, serviceID id.ServiceID, terms plan.Terms) (*plan.Plan, error) {
	var p *plan.Plan

	err := c.invoke(ctx, func(ctx context.Context, tx store.Store, now int64) error {
		svc, err := tx.GetService(ctx, serviceID)
		if err != nil {
			return err
		}
		if !svc.IsAuthority(authority) {
			return ErrUnauthorizedAuthority
		}
		if err := validateTerms(terms); err != nil {
			return err
		}
		if svc.PlanCount == math.MaxUint16 {
			return ErrOverflow
		}

		p = &plan.Plan{
			Entity:           types.NewEntity(now),
			ID:               id.NewPlanID(),
			ServiceID:        svc.ID,
			Name:             terms.Name,
			Amount:           terms.Amount,
			CollectorReward:  terms.CollectorReward,
			Interval:         terms.Interval,
			GracePeriod:      terms.GracePeriod,
			IsActive:         true,
			Index:            svc.PlanCount,
			MaxBillingCycles: terms.MaxBillingCycles,
		}
		if err := tx.CreatePlan(ctx, p); err != nil {
			return err
		}

		svc.PlanCount++
		svc.Touch(now)
		return tx.UpdateService(ctx, svc)
	})
	if err != nil {
		return nil, err
	}

	c.plugins.EmitPlanCreated(ctx, p)
	return p, nil
}

// UpdatePlan applies a partial edit. The resulting plan must satisfy the
// creation rules. Subscriptions keep the terms they locked.
func (c *Cadence) UpdatePlan(ctx context.Context, authority string, planID id.PlanID, upd plan.Update) (*plan.Plan, error) {
	var before, after *plan.Plan

	err := c.invoke(ctx, func(ctx context.Context, tx store.Store, now int64) error {
		p, err := tx.GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		svc, err := tx.GetService(ctx, p.ServiceID)
		if err != nil {
			return err
		}
		if !svc.IsAuthority(authority) {
			return ErrUnauthorizedAuthority
		}

		updated := upd.Apply(*p)
		if err := validateTerms(termsOf(&updated)); err != nil {
			return err
		}
		if upd.IsEmpty() {
			before, after = p, p
			return nil
		}

		updated.Touch(now)
		if err := tx.UpdatePlan(ctx, &updated); err != nil {
			return err
		}
		before, after = p, &updated
		return nil
	})
	if err != nil {
		return nil, err
	}

	if before != after {
		c.plugins.EmitPlanUpdated(ctx, before, after)
	}
	return after, nil
}

// GetPlan retrieves a plan by ID.
func (c *Cadence) GetPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error) {
	return c.store.GetPlan(ctx, planID)
}

// ListPlans lists a service's plans in index order.
func (c *Cadence) ListPlans(ctx context.Context, serviceID id.ServiceID, opts plan.ListOpts) ([]*plan.Plan, error) {
	return c.store.ListPlans(ctx, serviceID, opts)
}
