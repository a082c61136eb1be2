package cadence_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/xraph/cadence"
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/payment"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/subscription"
	"github.com/xraph/cadence/tokenledger"
	"github.com/xraph/cadence/types"
)

// recorder captures collection hooks.
type recorder struct {
	mu        sync.Mutex
	collected []*payment.Payment
	failed    []error
	completed []id.SubscriptionID
}

func (r *recorder) Name() string { return "recorder" }

func (r *recorder) OnPaymentCollected(_ context.Context, _ *subscription.Subscription, p *payment.Payment) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.collected = append(r.collected, p)
	return nil
}

func (r *recorder) OnPaymentFailed(_ context.Context, _ *subscription.Subscription, err error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failed = append(r.failed, err)
	return nil
}

func (r *recorder) OnSubscriptionCompleted(_ context.Context, sub *subscription.Subscription) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, sub.ID)
	return nil
}

func TestCollectPaymentOnSchedule(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.plan(t, e.service(t), hourly())
	sub := e.subscribe(t, alice, aliceFunds, p)
	require.Equal(t, int64(3600), sub.NextBillingAt)

	e.at(t, 3000)
	_, err := e.c.CollectPayment(ctx, cranker, sub.ID, "")
	require.ErrorIs(t, err, cadence.ErrBillingNotDue)

	got, err := e.c.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, *sub, *got, "a refused collection changes nothing")

	e.at(t, 3601)
	pay, err := e.c.CollectPayment(ctx, cranker, sub.ID, "")
	require.NoError(t, err)
	assert.Equal(t, id.PrefixPayment, pay.ID.Prefix())
	assert.Equal(t, monthly, pay.Amount)
	assert.Zero(t, pay.Reward)
	assert.Equal(t, monthly, pay.Treasury)
	assert.Equal(t, uint32(0), pay.Cycle)
	assert.Equal(t, int64(3601), pay.CollectedAt)
	assert.Equal(t, cranker, pay.Cranker)

	got, err = e.c.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), got.PaymentsMade)
	assert.Equal(t, int64(3601), got.LastPaymentAt)
	// The schedule advances from the previous due date, not from now.
	assert.Equal(t, int64(7200), got.NextBillingAt)

	assert.Equal(t, types.Amount(90_000_000), e.ledger.Balance(aliceFunds))
	assert.Equal(t, monthly, e.ledger.Balance(payout))

	// The allowance is back to one cycle for the next collection.
	acct, err := e.ledger.Account(ctx, aliceFunds)
	require.NoError(t, err)
	assert.Equal(t, cadence.DefaultAgent, acct.Delegate)
	assert.Equal(t, monthly, acct.DelegatedAmount)
	capability, err := e.store.GetCapability(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, uint32(1), capability.Cycle)
	assert.Zero(t, capability.Spent)

	// Same cycle twice is refused.
	_, err = e.c.CollectPayment(ctx, cranker, sub.ID, "")
	assert.ErrorIs(t, err, cadence.ErrBillingNotDue)
}

func TestCollectPaymentDueInstant(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.plan(t, e.service(t), hourly())
	sub := e.subscribe(t, alice, aliceFunds, p)

	e.at(t, hour)
	_, err := e.c.CollectPayment(ctx, cranker, sub.ID, "")
	require.NoError(t, err)
}

func TestCollectPaymentCatchUp(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.plan(t, e.service(t), hourly())
	sub := e.subscribe(t, alice, aliceFunds, p)

	e.at(t, 4*hour+10)
	collected := 0
	for {
		_, err := e.c.CollectPayment(ctx, cranker, sub.ID, "")
		if errors.Is(err, cadence.ErrBillingNotDue) {
			break
		}
		require.NoError(t, err)
		collected++
	}
	assert.Equal(t, 4, collected)

	pays, err := e.c.ListPayments(ctx, sub.ID, payment.ListOpts{})
	require.NoError(t, err)
	require.Len(t, pays, 4)
	assert.Equal(t, uint32(3), pays[0].Cycle, "newest first")
	assert.Equal(t, uint32(0), pays[3].Cycle)

	got, err := e.c.GetPayment(ctx, pays[1].ID)
	require.NoError(t, err)
	assert.Equal(t, pays[1].Cycle, got.Cycle)
}

func TestCollectPaymentRewardSplit(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.plan(t, e.service(t), plan.Terms{Name: "Rewarded", Amount: monthly, CollectorReward: 100_000, Interval: hour})
	sub := e.subscribe(t, alice, aliceFunds, p)
	bobSub := e.subscribe(t, bob, bobFunds, p)

	e.at(t, hour)
	pay, err := e.c.CollectPayment(ctx, cranker, sub.ID, crankerAcct)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(100_000), pay.Reward)
	assert.Equal(t, types.Amount(9_900_000), pay.Treasury)
	assert.Equal(t, crankerAcct, pay.RewardAccount)
	assert.Equal(t, types.Amount(100_000), e.ledger.Balance(crankerAcct))
	assert.Equal(t, types.Amount(9_900_000), e.ledger.Balance(payout))

	// Without a reward account the merchant receives everything.
	pay, err = e.c.CollectPayment(ctx, cranker, bobSub.ID, "")
	require.NoError(t, err)
	assert.Zero(t, pay.Reward)
	assert.Empty(t, pay.RewardAccount)
	assert.Equal(t, types.Amount(19_900_000), e.ledger.Balance(payout))
}

func TestCollectPaymentRewardAccountAsset(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.plan(t, e.service(t), plan.Terms{Name: "Rewarded", Amount: monthly, CollectorReward: 1, Interval: hour})
	sub := e.subscribe(t, alice, aliceFunds, p)
	require.NoError(t, e.ledger.CreateAccount("cranker-eurc", cranker, "eurc", 0))

	e.at(t, hour)
	_, err := e.c.CollectPayment(ctx, cranker, sub.ID, "cranker-eurc")
	require.ErrorIs(t, err, cadence.ErrAccountMismatch)
	assert.Equal(t, types.Amount(100_000_000), e.ledger.Balance(aliceFunds))
}

func TestCollectPaymentInsufficientFunds(t *testing.T) {
	ctx := context.Background()
	rec := &recorder{}
	e := newEnv(t, cadence.WithPlugin(rec))
	p := e.plan(t, e.service(t), hourly())
	require.NoError(t, e.ledger.CreateAccount("carol-usdc", "carol", asset, 5))
	sub := e.subscribe(t, "carol", "carol-usdc", p)

	e.at(t, hour)
	_, err := e.c.CollectPayment(ctx, cranker, sub.ID, "")
	require.ErrorIs(t, err, tokenledger.ErrInsufficientFunds)
	assert.True(t, cadence.IsPaymentFailure(err))

	got, err := e.c.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Zero(t, got.PaymentsMade)
	assert.Equal(t, hour, got.NextBillingAt)

	capability, err := e.store.GetCapability(ctx, sub.ID)
	require.NoError(t, err)
	assert.Zero(t, capability.Spent, "allowance consumption is rolled back")

	assert.Equal(t, types.Amount(5), e.ledger.Balance("carol-usdc"))
	assert.Zero(t, e.ledger.Balance(payout))
	require.Len(t, rec.failed, 1)
	assert.Empty(t, rec.collected)

	// Topping up lets the same cycle through.
	require.NoError(t, e.ledger.Mint("carol-usdc", monthly))
	_, err = e.c.CollectPayment(ctx, cranker, sub.ID, "")
	require.NoError(t, err)
	assert.Len(t, rec.collected, 1)
}

func TestCollectPaymentDelegationWithdrawn(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.plan(t, e.service(t), hourly())
	sub := e.subscribe(t, alice, aliceFunds, p)

	// The subscriber pulls the approval directly on the ledger.
	require.NoError(t, e.ledger.Revoke(ctx, aliceFunds))

	e.at(t, hour)
	_, err := e.c.CollectPayment(ctx, cranker, sub.ID, "")
	require.ErrorIs(t, err, tokenledger.ErrNotDelegated)
	assert.True(t, cadence.IsPaymentFailure(err))
}

func TestAgentPullCappedAtOneCycle(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	p := e.plan(t, e.service(t), hourly())
	sub := e.subscribe(t, alice, aliceFunds, p)

	pull := func(amount types.Amount) error {
		return e.ledger.TransferChecked(ctx, tokenledger.Transfer{
			From:      aliceFunds,
			To:        crankerAcct,
			Authority: cadence.DefaultAgent,
			Amount:    amount,
			Decimals:  6,
		})
	}

	// Going around the engine, the agent can move one cycle and no more.
	require.ErrorIs(t, pull(monthly+1), tokenledger.ErrNotDelegated)
	require.NoError(t, pull(monthly))
	for range 5 {
		require.ErrorIs(t, pull(monthly), tokenledger.ErrNotDelegated)
	}
	require.ErrorIs(t, pull(1), tokenledger.ErrNotDelegated)
	assert.Equal(t, 100_000_000-monthly, e.ledger.Balance(aliceFunds))

	// The drained cycle cannot then be collected through the engine either.
	e.at(t, hour)
	_, err := e.c.CollectPayment(ctx, cranker, sub.ID, "")
	require.ErrorIs(t, err, tokenledger.ErrNotDelegated)
	assert.True(t, cadence.IsPaymentFailure(err))
	assert.Equal(t, 100_000_000-monthly, e.ledger.Balance(aliceFunds))
}

func TestCollectPaymentCycleCap(t *testing.T) {
	ctx := context.Background()

	for _, maxCycles := range []uint64{1, 3} {
		rec := &recorder{}
		e := newEnv(t, cadence.WithPlugin(rec))
		p := e.plan(t, e.service(t), plan.Terms{Name: "Capped", Amount: monthly, Interval: hour, MaxBillingCycles: maxCycles})
		sub := e.subscribe(t, alice, aliceFunds, p)

		e.at(t, int64(maxCycles)*hour)
		for range maxCycles {
			_, err := e.c.CollectPayment(ctx, cranker, sub.ID, "")
			require.NoError(t, err)
		}

		got, err := e.c.GetSubscription(ctx, sub.ID)
		require.NoError(t, err)
		assert.Equal(t, subscription.StatusCompleted, got.Status)
		assert.Equal(t, cadence.NeverBill, got.NextBillingAt)
		assert.Equal(t, uint32(maxCycles), got.PaymentsMade)
		assert.Equal(t, []id.SubscriptionID{sub.ID}, rec.completed)

		acct, err := e.ledger.Account(ctx, aliceFunds)
		require.NoError(t, err)
		assert.Empty(t, acct.Delegate, "completion revokes the allowance")

		for _, ts := range []int64{int64(maxCycles+1) * hour, 1 << 40} {
			e.at(t, ts)
			_, err = e.c.CollectPayment(ctx, cranker, sub.ID, "")
			assert.True(t, errors.Is(err, cadence.ErrSubscriptionNotActive) || errors.Is(err, cadence.ErrSubscriptionCompleted))
		}

		spent := monthly * types.Amount(maxCycles)
		assert.Equal(t, 100_000_000-spent, e.ledger.Balance(aliceFunds))
	}
}

func TestCollectPaymentUnknownSubscription(t *testing.T) {
	e := newEnv(t)
	_, err := e.c.CollectPayment(context.Background(), cranker, id.NewSubscriptionID(), "")
	assert.ErrorIs(t, err, cadence.ErrSubscriptionNotFound)
	assert.True(t, cadence.IsNotFound(err))
}

func TestSplitConservation(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		amount := types.Amount(rapid.Uint64Range(2, 1<<50).Draw(t, "amount"))
		reward := types.Amount(rapid.Uint64Range(0, uint64(amount)-1).Draw(t, "reward"))

		e := newEnv(t)
		p := e.plan(t, e.service(t), plan.Terms{Name: "Prop", Amount: amount, CollectorReward: reward, Interval: hour})
		require.NoError(t, e.ledger.CreateAccount("dave-usdc", "dave", asset, amount))
		sub := e.subscribe(t, "dave", "dave-usdc", p)

		e.at(t, hour)
		pay, err := e.c.CollectPayment(ctx, cranker, sub.ID, crankerAcct)
		require.NoError(t, err)

		total, err := pay.Reward.Add(pay.Treasury)
		require.NoError(t, err)
		require.Equal(t, amount, total)
		require.Less(t, pay.Reward, amount)
		require.Equal(t, reward, pay.Reward)
		require.Equal(t, pay.Reward, e.ledger.Balance(crankerAcct))
		require.Equal(t, pay.Treasury, e.ledger.Balance(payout))
		require.Zero(t, e.ledger.Balance("dave-usdc"))
	})
}

func TestBillingMonotonic(t *testing.T) {
	rapid.Check(t, func(t *rapid.T) {
		ctx := context.Background()
		interval := rapid.Int64Range(1, 5000).Draw(t, "interval")
		maxCycles := rapid.Uint64Range(0, 6).Draw(t, "max_cycles")

		e := newEnv(t)
		p := e.plan(t, e.service(t), plan.Terms{Name: "Prop", Amount: 1_000, Interval: interval, MaxBillingCycles: maxCycles})
		sub := e.subscribe(t, alice, aliceFunds, p)

		prev := *sub
		now := int64(0)
		steps := rapid.IntRange(1, 30).Draw(t, "steps")
		for i := range steps {
			now += rapid.Int64Range(0, 2*interval).Draw(t, "advance")
			e.at(t, now)

			_, err := e.c.CollectPayment(ctx, cranker, sub.ID, "")
			got, gerr := e.c.GetSubscription(ctx, sub.ID)
			require.NoError(t, gerr)

			if err != nil {
				require.Equal(t, prev.PaymentsMade, got.PaymentsMade, "step %d", i)
				require.Equal(t, prev.NextBillingAt, got.NextBillingAt, "step %d", i)
				if now < prev.NextBillingAt && prev.GrantsAccess() {
					require.ErrorIs(t, err, cadence.ErrBillingNotDue)
				}
				continue
			}

			require.GreaterOrEqual(t, now, prev.NextBillingAt, "collected before due")
			require.Equal(t, prev.PaymentsMade+1, got.PaymentsMade)
			require.Greater(t, got.NextBillingAt, prev.NextBillingAt)
			if got.Status != subscription.StatusCompleted {
				require.Equal(t, prev.NextBillingAt+interval, got.NextBillingAt)
			}
			if maxCycles > 0 {
				require.LessOrEqual(t, uint64(got.PaymentsMade), maxCycles)
			}
			prev = *got
		}
	})
}
