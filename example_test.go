package cadence_test

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"

	"github.com/xraph/cadence"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/store/memory"
	"github.com/xraph/cadence/tokenledger"
)

func Example() {
	ctx := context.Background()

	ledger := tokenledger.NewMemory(0)
	ledger.CreateAsset("usdc", 6)
	_ = ledger.CreateAccount("merchant-usdc", "merchant", "usdc", 0)
	_ = ledger.CreateAccount("alice-usdc", "alice", "usdc", 50_000_000)

	c := cadence.New(memory.New(), ledger, cadence.WithLogger(slog.New(slog.DiscardHandler)))
	if err := c.Start(ctx); err != nil {
		log.Fatal(err)
	}
	defer c.Stop()

	svc, err := c.RegisterService(ctx, "merchant", "merchant-usdc", "usdc")
	if err != nil {
		log.Fatal(err)
	}
	p, err := c.CreatePlan(ctx, "merchant", svc.ID, plan.Terms{
		Name:     "Pro",
		Amount:   10_000_000,
		Interval: 3600,
	})
	if err != nil {
		log.Fatal(err)
	}
	sub, err := c.CreateSubscription(ctx, "alice", p.ID, "alice-usdc")
	if err != nil {
		log.Fatal(err)
	}

	_, err = c.CollectPayment(ctx, "anyone", sub.ID, "")
	fmt.Println(errors.Is(err, cadence.ErrBillingNotDue))

	_ = ledger.SetNow(3600)
	receipt, err := c.CollectPayment(ctx, "anyone", sub.ID, "")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(receipt.Amount.Format(svc.AssetDecimals))
	fmt.Println(ledger.Balance("alice-usdc").Format(6))

	// Output:
	// true
	// 10.000000
	// 40.000000
}
