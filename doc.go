// Package cadence provides a recurring-billing engine for Go applications.
//
// Cadence is designed as a library, not a service. Merchants register a
// service and publish plans; subscribers enroll by granting the billing
// agent a bounded, revocable spending allowance; anyone may then collect a
// payment once it falls due, optionally earning a collector reward.
//
// # Quick Start
//
// Create an engine over a store and a ledger:
//
//	import (
//	    "github.com/xraph/cadence"
//	    "github.com/xraph/cadence/store/memory"
//	    "github.com/xraph/cadence/tokenledger"
//	)
//
//	ledger := tokenledger.NewMemoryWithClock(func() int64 { return time.Now().Unix() })
//	c := cadence.New(memory.New(), ledger)
//	if err := c.Start(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	defer c.Stop()
//
// # Core Concepts
//
// A Service is a merchant's billing identity. It accepts exactly one asset
// and pays out to one account:
//
//	svc, err := c.RegisterService(ctx, "merchant", "merchant-usdc", "usdc")
//
// Plans define what is charged and how often:
//
//	p, err := c.CreatePlan(ctx, "merchant", svc.ID, plan.Terms{
//	    Name:            "Pro",
//	    Amount:          10_000_000,
//	    CollectorReward: 100_000,
//	    Interval:        30 * 24 * 3600,
//	    GracePeriod:     3 * 24 * 3600,
//	})
//
// Subscriptions lock a plan's terms. The first payment is due one interval
// after enrollment:
//
//	sub, err := c.CreateSubscription(ctx, "alice", p.ID, "alice-usdc")
//
// Collection is permissionless and guarded by the due date:
//
//	receipt, err := c.CollectPayment(ctx, "cranker", sub.ID, "cranker-usdc")
//	if errors.Is(err, cadence.ErrBillingNotDue) {
//	    // try again later
//	}
//
// # Atomicity
//
// Every mutating operation runs as one invocation: ledger effects and store
// writes are committed together or not at all. Concurrent operations on the
// same subscription serialize, so a racing cancel and collect cannot both
// succeed.
//
// # Crank Worker
//
// WithCranker starts a background sweep that collects due subscriptions,
// marks failed ones past due, and expires them after their grace period:
//
//	c := cadence.New(store, ledger,
//	    cadence.WithCranker("bot", "bot-usdc"),
//	    cadence.WithCrankConfig(time.Minute, 200, 8),
//	)
//
// # TypeID
//
// All entities use TypeID for globally unique, type-safe identifiers:
//
//	svc_01h2xcejqtf2nbrexx3vqjhp41   // Service ID
//	plan_01h2xcejqtf2nbrexx3vqjhp41  // Plan ID
//	sub_01h2xcejqtf2nbrexx3vqjhp41   // Subscription ID
//	pay_01h455vb4pex5vsknk084sn02q   // Payment ID
package cadence
