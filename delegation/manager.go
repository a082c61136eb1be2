package delegation

import (
	"context"
	"errors"
	"fmt"

	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/subscription"
	"github.com/xraph/cadence/tokenledger"
	"github.com/xraph/cadence/types"
)

// Delegation errors. The root package re-exports them.
var (
	ErrCapabilityNotFound = errors.New("cadence: capability not found")
	ErrAllowanceExceeded  = errors.New("cadence: allowance exceeded for billing cycle")
	ErrDelegationRevoked  = errors.New("cadence: delegation revoked")
)

// Manager keeps the ledger approval and the stored Capability in step.
// Every method runs inside the caller's invocation and writes through tx.
type Manager struct {
	ledger tokenledger.Service
}

// NewManager returns a Manager backed by ledger.
func NewManager(ledger tokenledger.Service) *Manager {
	return &Manager{ledger: ledger}
}

// Grant approves holder to pull up to amount from the subscription's funding
// account and records the capability for the current cycle, replacing any
// earlier one. The subscriber signs the approval.
func (m *Manager) Grant(ctx context.Context, tx Store, sub *subscription.Subscription, holder string, amount types.Amount) (*Capability, error) {
	now, err := m.ledger.Now(ctx)
	if err != nil {
		return nil, err
	}

	if err := m.ledger.Approve(ctx, sub.Subscriber, sub.FundingAccount, holder, amount); err != nil {
		return nil, fmt.Errorf("delegation: approve: %w", err)
	}

	c, err := tx.GetCapability(ctx, sub.ID)
	switch {
	case errors.Is(err, ErrCapabilityNotFound):
		c = &Capability{
			Entity:         types.NewEntity(now),
			ID:             id.NewCapabilityID(),
			SubscriptionID: sub.ID,
		}
	case err != nil:
		return nil, err
	default:
		c.Touch(now)
	}

	c.FundingAccount = sub.FundingAccount
	c.Holder = holder
	c.Cap = amount
	c.Cycle = sub.PaymentsMade
	c.Spent = 0
	c.Revoked = false

	if err := tx.UpsertCapability(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Revoke clears the ledger approval and zeroes the capability.
func (m *Manager) Revoke(ctx context.Context, tx Store, sub *subscription.Subscription) error {
	now, err := m.ledger.Now(ctx)
	if err != nil {
		return err
	}

	if err := m.ledger.Revoke(ctx, sub.FundingAccount); err != nil {
		return fmt.Errorf("delegation: revoke: %w", err)
	}

	c, err := tx.GetCapability(ctx, sub.ID)
	if err != nil {
		return err
	}
	c.Revoked = true
	c.Cap = 0
	c.Touch(now)
	return tx.UpsertCapability(ctx, c)
}

// Rearm restores the ledger allowance to one cycle's amount after a
// collection has drawn it down, and opens the capability for the cycle that
// follows.
func (m *Manager) Rearm(ctx context.Context, tx Store, sub *subscription.Subscription) (*Capability, error) {
	now, err := m.ledger.Now(ctx)
	if err != nil {
		return nil, err
	}

	c, err := tx.GetCapability(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if c.Revoked {
		return nil, ErrDelegationRevoked
	}

	if err := m.ledger.Approve(ctx, sub.Subscriber, sub.FundingAccount, c.Holder, sub.LockedAmount); err != nil {
		return nil, fmt.Errorf("delegation: rearm: %w", err)
	}

	c.Cap = sub.LockedAmount
	c.Cycle = sub.PaymentsMade
	c.Spent = 0
	c.Touch(now)
	if err := tx.UpsertCapability(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// Regrant revokes then grants in the same invocation.
func (m *Manager) Regrant(ctx context.Context, tx Store, sub *subscription.Subscription, holder string, amount types.Amount) (*Capability, error) {
	if err := m.Revoke(ctx, tx, sub); err != nil {
		return nil, err
	}
	return m.Grant(ctx, tx, sub, holder, amount)
}

// Consume charges amount against the allowance of the cycle being collected,
// which is sub.PaymentsMade before it is incremented.
func (m *Manager) Consume(ctx context.Context, tx Store, sub *subscription.Subscription, amount types.Amount) (*Capability, error) {
	now, err := m.ledger.Now(ctx)
	if err != nil {
		return nil, err
	}

	c, err := tx.GetCapability(ctx, sub.ID)
	if err != nil {
		return nil, err
	}
	if c.Revoked || c.FundingAccount != sub.FundingAccount {
		return nil, ErrDelegationRevoked
	}

	if c.Cycle != sub.PaymentsMade {
		c.Cycle = sub.PaymentsMade
		c.Spent = 0
	}

	spent, err := c.Spent.Add(amount)
	if err != nil || spent > c.Cap {
		return nil, fmt.Errorf("%w: cycle %d spent %s of %s, requested %s",
			ErrAllowanceExceeded, c.Cycle, c.Spent, c.Cap, amount)
	}

	c.Spent = spent
	c.Touch(now)
	if err := tx.UpsertCapability(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}
