package cadence

import (
	"context"
	"errors"
	"math"

	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/store"
	"github.com/xraph/cadence/subscription"
	"github.com/xraph/cadence/tokenledger"
	"github.com/xraph/cadence/types"
)

// ──────────────────────────────────────────────────
// Subscription Lifecycle
// ──────────────────────────────────────────────────

// CreateSubscription enrolls subscriber in the plan, locking its current
// terms and granting the billing agent an allowance of one cycle's amount.
// The first payment is due one interval from now.
func (c *Cadence) CreateSubscription(ctx context.Context, subscriber string, planID id.PlanID, fundingAccount string) (*subscription.Subscription, error) {
	var sub *subscription.Subscription

	err := c.invoke(ctx, func(ctx context.Context, tx store.Store, now int64) error {
		p, err := tx.GetPlan(ctx, planID)
		if err != nil {
			return err
		}
		if !p.IsActive {
			return ErrPlanNotActive
		}
		svc, err := tx.GetService(ctx, p.ServiceID)
		if err != nil {
			return err
		}

		if _, err := tokenledger.VerifyOwnership(ctx, c.ledger, fundingAccount, subscriber, svc.AcceptedAsset); err != nil {
			return accountError(err)
		}

		switch _, err := tx.GetLiveSubscription(ctx, subscriber, planID); {
		case err == nil:
			return ErrSubscriptionExists
		case !errors.Is(err, ErrSubscriptionNotFound):
			return err
		}

		// The ledger keeps one delegate per account.
		backed, err := tx.ListSubscriptions(ctx, subscription.ListOpts{FundingAccount: fundingAccount})
		if err != nil {
			return err
		}
		for _, other := range backed {
			if other.GrantsAccess() {
				return ErrFundingAccountInUse
			}
		}

		next, err := types.AddSeconds(now, p.Interval)
		if err != nil {
			return err
		}
		if svc.SubscriberCount == math.MaxUint32 {
			return ErrOverflow
		}

		sub = &subscription.Subscription{
			Entity:           types.NewEntity(now),
			ID:               id.NewSubscriptionID(),
			Subscriber:       subscriber,
			ServiceID:        svc.ID,
			PlanID:           p.ID,
			FundingAccount:   fundingAccount,
			LockedAmount:     p.Amount,
			LockedReward:     p.CollectorReward,
			LockedInterval:   p.Interval,
			MaxBillingCycles: p.MaxBillingCycles,
			NextBillingAt:    next,
			Status:           subscription.StatusActive,
		}
		if err := tx.CreateSubscription(ctx, sub); err != nil {
			return err
		}
		if _, err := c.delegation.Grant(ctx, tx, sub, c.agent, sub.LockedAmount); err != nil {
			return err
		}

		svc.SubscriberCount++
		svc.Touch(now)
		return tx.UpdateService(ctx, svc)
	})
	if err != nil {
		return nil, err
	}

	c.plugins.EmitSubscriptionCreated(ctx, sub)
	return sub, nil
}

// CancelSubscription revokes the allowance and retires the subscription.
// The (subscriber, plan) pair is free to enroll again afterwards.
func (c *Cadence) CancelSubscription(ctx context.Context, subscriber string, subID id.SubscriptionID) (*subscription.Subscription, error) {
	var sub *subscription.Subscription

	err := c.invoke(ctx, func(ctx context.Context, tx store.Store, now int64) error {
		var err error
		sub, err = tx.GetSubscription(ctx, subID)
		if err != nil {
			return err
		}
		if sub.Subscriber != subscriber {
			return ErrUnauthorizedSubscriber
		}
		if sub.Status == subscription.StatusCancelled {
			return ErrAlreadyCancelled
		}

		if err := c.delegation.Revoke(ctx, tx, sub); err != nil {
			return err
		}

		sub.Status = subscription.StatusCancelled
		sub.Touch(now)
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}

		svc, err := tx.GetService(ctx, sub.ServiceID)
		if err != nil {
			return err
		}
		if svc.SubscriberCount > 0 {
			svc.SubscriberCount--
		}
		svc.Touch(now)
		return tx.UpdateService(ctx, svc)
	})
	if err != nil {
		return nil, err
	}

	c.plugins.EmitSubscriptionCanceled(ctx, sub)
	return sub, nil
}

// ChangePlan moves an Active subscription from oldPlanID to newPlanID within
// the same service. The new terms apply from the next collection; nothing is
// charged and the billing date is unchanged.
func (c *Cadence) ChangePlan(ctx context.Context, subscriber string, subID id.SubscriptionID, oldPlanID, newPlanID id.PlanID) (*subscription.Subscription, error) {
	var (
		sub              *subscription.Subscription
		oldPlan, newPlan *plan.Plan
	)

	err := c.invoke(ctx, func(ctx context.Context, tx store.Store, now int64) error {
		var err error
		sub, err = tx.GetSubscription(ctx, subID)
		if err != nil {
			return err
		}
		if sub.Subscriber != subscriber {
			return ErrUnauthorizedSubscriber
		}

		newPlan, err = tx.GetPlan(ctx, newPlanID)
		if err != nil {
			return err
		}
		if !newPlan.IsActive {
			return ErrPlanNotActive
		}
		if sub.Status != subscription.StatusActive || sub.PlanID.String() != oldPlanID.String() {
			return ErrSubscriptionNotActive
		}
		if newPlan.ServiceID.String() != sub.ServiceID.String() {
			return ErrPlanServiceMismatch
		}
		oldPlan, err = tx.GetPlan(ctx, oldPlanID)
		if err != nil {
			return err
		}

		sub.PlanID = newPlan.ID
		sub.LockedAmount = newPlan.Amount
		sub.LockedReward = newPlan.CollectorReward
		sub.LockedInterval = newPlan.Interval
		sub.Touch(now)
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}

		_, err = c.delegation.Regrant(ctx, tx, sub, c.agent, sub.LockedAmount)
		return err
	})
	if err != nil {
		return nil, err
	}

	c.plugins.EmitSubscriptionChanged(ctx, sub, oldPlan, newPlan)
	return sub, nil
}

// ExpireSubscription ends a past-due subscription whose grace period has run
// out. Anyone may call it.
func (c *Cadence) ExpireSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	var sub *subscription.Subscription

	err := c.invoke(ctx, func(ctx context.Context, tx store.Store, now int64) error {
		var err error
		sub, err = tx.GetSubscription(ctx, subID)
		if err != nil {
			return err
		}
		if sub.EffectiveStatus(now) != subscription.StatusPastDue {
			return ErrNotPastDue
		}

		p, err := tx.GetPlan(ctx, sub.PlanID)
		if err != nil {
			return err
		}
		deadline, err := types.AddSeconds(sub.NextBillingAt, p.GracePeriod)
		if err != nil {
			return err
		}
		if now < deadline {
			return ErrGracePeriodNotElapsed
		}

		if err := c.delegation.Revoke(ctx, tx, sub); err != nil {
			return err
		}
		sub.Status = subscription.StatusExpired
		sub.Touch(now)
		return tx.UpdateSubscription(ctx, sub)
	})
	if err != nil {
		return nil, err
	}

	c.plugins.EmitSubscriptionExpired(ctx, sub)
	return sub, nil
}

// MarkPastDue persists the overdue flag on a subscription whose billing date
// has passed. It is a no-op on a subscription already marked. Anyone may
// call it.
func (c *Cadence) MarkPastDue(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	sub, _, err := c.markPastDue(ctx, subID)
	return sub, err
}

// markPastDue reports whether this call made the transition.
func (c *Cadence) markPastDue(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, bool, error) {
	var (
		sub     *subscription.Subscription
		changed bool
	)

	err := c.invoke(ctx, func(ctx context.Context, tx store.Store, now int64) error {
		var err error
		sub, err = tx.GetSubscription(ctx, subID)
		if err != nil {
			return err
		}
		switch sub.Status {
		case subscription.StatusPastDue:
			return nil
		case subscription.StatusActive:
		default:
			return ErrSubscriptionNotActive
		}
		if now <= sub.NextBillingAt {
			return ErrBillingNotDue
		}

		sub.Status = subscription.StatusPastDue
		sub.Touch(now)
		changed = true
		return tx.UpdateSubscription(ctx, sub)
	})
	if err != nil {
		return nil, false, err
	}

	if changed {
		c.plugins.EmitSubscriptionPastDue(ctx, sub)
	}
	return sub, changed, nil
}

// HasAccess reports whether subscriber holds an Active or PastDue
// subscription to the service.
func (c *Cadence) HasAccess(ctx context.Context, subscriber string, serviceID id.ServiceID) (bool, error) {
	subs, err := c.store.ListSubscriptions(ctx, subscription.ListOpts{
		Subscriber: subscriber,
		ServiceID:  serviceID,
	})
	if err != nil {
		return false, err
	}
	for _, sub := range subs {
		if sub.GrantsAccess() {
			return true, nil
		}
	}
	return false, nil
}

// GetSubscription retrieves a subscription by ID, including cancelled ones.
func (c *Cadence) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	return c.store.GetSubscription(ctx, subID)
}

// GetSubscriptionFor retrieves the live subscription of subscriber to a plan.
func (c *Cadence) GetSubscriptionFor(ctx context.Context, subscriber string, planID id.PlanID) (*subscription.Subscription, error) {
	return c.store.GetLiveSubscription(ctx, subscriber, planID)
}

// ListSubscriptions lists subscriptions matching opts.
func (c *Cadence) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	return c.store.ListSubscriptions(ctx, opts)
}
