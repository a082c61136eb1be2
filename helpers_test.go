package cadence_test

import (
	"context"
	"log/slog"

	"github.com/stretchr/testify/require"

	"github.com/xraph/cadence"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/service"
	"github.com/xraph/cadence/store/memory"
	"github.com/xraph/cadence/subscription"
	"github.com/xraph/cadence/tokenledger"
	"github.com/xraph/cadence/types"
)

const (
	merchant    = "merchant"
	payout      = "merchant-usdc"
	alice       = "alice"
	aliceFunds  = "alice-usdc"
	bob         = "bob"
	bobFunds    = "bob-usdc"
	cranker     = "cranker"
	crankerAcct = "cranker-usdc"
	asset       = "usdc"

	monthly = types.Amount(10_000_000)
	hour    = int64(3600)
)

// tb is the part of testing.TB that helpers need; *rapid.T satisfies it too.
type tb interface {
	Helper()
	Errorf(format string, args ...any)
	FailNow()
}

type env struct {
	ledger *tokenledger.Memory
	store  *memory.Store
	c      *cadence.Cadence
}

func newEnv(t tb, opts ...cadence.Option) *env {
	t.Helper()

	l := tokenledger.NewMemory(0)
	l.CreateAsset(asset, 6)
	l.CreateAsset("eurc", 6)
	require.NoError(t, l.CreateAccount(payout, merchant, asset, 0))
	require.NoError(t, l.CreateAccount(aliceFunds, alice, asset, 100_000_000))
	require.NoError(t, l.CreateAccount(bobFunds, bob, asset, 100_000_000))
	require.NoError(t, l.CreateAccount(crankerAcct, cranker, asset, 0))

	s := memory.New()
	opts = append([]cadence.Option{cadence.WithLogger(slog.New(slog.DiscardHandler))}, opts...)
	return &env{ledger: l, store: s, c: cadence.New(s, l, opts...)}
}

func (e *env) at(t tb, ts int64) {
	t.Helper()
	require.NoError(t, e.ledger.SetNow(ts))
}

func (e *env) service(t tb) *service.Service {
	t.Helper()
	svc, err := e.c.RegisterService(context.Background(), merchant, payout, asset)
	require.NoError(t, err)
	return svc
}

func hourly() plan.Terms {
	return plan.Terms{Name: "Hourly", Amount: monthly, Interval: hour}
}

func (e *env) plan(t tb, svc *service.Service, terms plan.Terms) *plan.Plan {
	t.Helper()
	p, err := e.c.CreatePlan(context.Background(), merchant, svc.ID, terms)
	require.NoError(t, err)
	return p
}

func (e *env) subscribe(t tb, who, funds string, p *plan.Plan) *subscription.Subscription {
	t.Helper()
	sub, err := e.c.CreateSubscription(context.Background(), who, p.ID, funds)
	require.NoError(t, err)
	return sub
}
