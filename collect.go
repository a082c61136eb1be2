package cadence

import (
	"context"
	"math"

	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/payment"
	"github.com/xraph/cadence/store"
	"github.com/xraph/cadence/subscription"
	"github.com/xraph/cadence/tokenledger"
	"github.com/xraph/cadence/types"
)

// ──────────────────────────────────────────────────
// Payment Collector
// ──────────────────────────────────────────────────

// CollectPayment pulls one billing cycle from a due subscription. Anyone may
// call it. When rewardAccount is non-empty and the subscription carries a
// reward, the reward is paid there and the rest goes to the service payout
// account; otherwise the full amount goes to the payout account.
func (c *Cadence) CollectPayment(ctx context.Context, cranker string, subID id.SubscriptionID, rewardAccount string) (*payment.Payment, error) {
	var (
		before    subscription.Subscription
		sub       *subscription.Subscription
		pay       *payment.Payment
		attempted bool
	)

	err := c.invoke(ctx, func(ctx context.Context, tx store.Store, now int64) error {
		var err error
		sub, err = tx.GetSubscription(ctx, subID)
		if err != nil {
			return err
		}
		before = *sub

		if !sub.GrantsAccess() {
			return ErrSubscriptionNotActive
		}
		if now < sub.NextBillingAt {
			return ErrBillingNotDue
		}
		if sub.CyclesExhausted() {
			return ErrSubscriptionCompleted
		}
		attempted = true

		svc, err := tx.GetService(ctx, sub.ServiceID)
		if err != nil {
			return err
		}

		var reward types.Amount
		if rewardAccount != "" && sub.LockedReward > 0 {
			acct, err := c.ledger.Account(ctx, rewardAccount)
			if err != nil {
				return accountError(err)
			}
			if acct.Asset != svc.AcceptedAsset {
				return accountError(tokenledger.ErrAssetMismatch)
			}
			reward = sub.LockedReward
		}
		treasury, err := sub.LockedAmount.Sub(reward)
		if err != nil {
			return err
		}

		capability, err := c.delegation.Consume(ctx, tx, sub, sub.LockedAmount)
		if err != nil {
			return err
		}

		if reward > 0 {
			if err := c.ledger.TransferChecked(ctx, tokenledger.Transfer{
				From:      sub.FundingAccount,
				To:        rewardAccount,
				Authority: capability.Holder,
				Amount:    reward,
				Decimals:  svc.AssetDecimals,
			}); err != nil {
				return err
			}
		}
		if err := c.ledger.TransferChecked(ctx, tokenledger.Transfer{
			From:      sub.FundingAccount,
			To:        svc.PayoutAccount,
			Authority: capability.Holder,
			Amount:    treasury,
			Decimals:  svc.AssetDecimals,
		}); err != nil {
			return err
		}

		cycle := sub.PaymentsMade
		if sub.PaymentsMade == math.MaxUint32 {
			return ErrOverflow
		}
		sub.PaymentsMade++
		sub.LastPaymentAt = now

		if sub.CyclesExhausted() {
			sub.Status = subscription.StatusCompleted
			sub.NextBillingAt = subscription.NeverBill
			if err := c.delegation.Revoke(ctx, tx, sub); err != nil {
				return err
			}
		} else {
			next, err := types.AddSeconds(sub.NextBillingAt, sub.LockedInterval)
			if err != nil {
				return err
			}
			sub.NextBillingAt = next
			sub.Status = subscription.StatusActive
			if _, err := c.delegation.Rearm(ctx, tx, sub); err != nil {
				return err
			}
		}
		sub.Touch(now)
		if err := tx.UpdateSubscription(ctx, sub); err != nil {
			return err
		}

		pay = &payment.Payment{
			Entity:         types.NewEntity(now),
			ID:             id.NewPaymentID(),
			SubscriptionID: sub.ID,
			ServiceID:      sub.ServiceID,
			PlanID:         sub.PlanID,
			Cycle:          cycle,
			Amount:         sub.LockedAmount,
			Reward:         reward,
			Treasury:       treasury,
			Cranker:        cranker,
			PayoutAccount:  svc.PayoutAccount,
			FundingAccount: sub.FundingAccount,
			CollectedAt:    now,
		}
		if reward > 0 {
			pay.RewardAccount = rewardAccount
		}
		return tx.CreatePayment(ctx, pay)
	})
	if err != nil {
		if attempted {
			c.plugins.EmitPaymentFailed(ctx, &before, err)
		}
		return nil, err
	}

	c.plugins.EmitPaymentCollected(ctx, sub, pay)
	if sub.Status == subscription.StatusCompleted {
		c.plugins.EmitSubscriptionCompleted(ctx, sub)
	}
	return pay, nil
}

// ListPayments lists a subscription's receipts, newest first.
func (c *Cadence) ListPayments(ctx context.Context, subID id.SubscriptionID, opts payment.ListOpts) ([]*payment.Payment, error) {
	return c.store.ListPayments(ctx, subID, opts)
}

// GetPayment retrieves a receipt by ID.
func (c *Cadence) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	return c.store.GetPayment(ctx, paymentID)
}
