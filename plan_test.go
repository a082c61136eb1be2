package cadence_test

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/cadence"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/types"
)

func TestCreatePlan(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := e.service(t)

	first := e.plan(t, svc, hourly())
	second := e.plan(t, svc, plan.Terms{Name: "Yearly", Amount: 100, CollectorReward: 1, Interval: 365 * 24 * hour, MaxBillingCycles: 3})

	assert.True(t, first.IsActive)
	assert.Equal(t, uint16(0), first.Index)
	assert.Equal(t, uint16(1), second.Index)

	svc, err := e.c.GetService(ctx, svc.ID)
	require.NoError(t, err)
	assert.Equal(t, uint16(2), svc.PlanCount)

	plans, err := e.c.ListPlans(ctx, svc.ID, plan.ListOpts{})
	require.NoError(t, err)
	require.Len(t, plans, 2)
	assert.Equal(t, "Hourly", plans[0].Name)
	assert.Equal(t, "Yearly", plans[1].Name)
}

func TestCreatePlanValidation(t *testing.T) {
	ctx := context.Background()

	tests := []struct {
		name    string
		terms   plan.Terms
		wantErr error
	}{
		{"empty name", plan.Terms{Amount: 1, Interval: 1}, cadence.ErrInvalidPlanName},
		{"long name", plan.Terms{Name: strings.Repeat("x", 33), Amount: 1, Interval: 1}, cadence.ErrInvalidPlanName},
		{"zero amount", plan.Terms{Name: "p", Interval: 1}, cadence.ErrInvalidAmount},
		{"zero interval", plan.Terms{Name: "p", Amount: 1}, cadence.ErrInvalidInterval},
		{"negative interval", plan.Terms{Name: "p", Amount: 1, Interval: -5}, cadence.ErrInvalidInterval},
		{"reward equals amount", plan.Terms{Name: "p", Amount: 5, CollectorReward: 5, Interval: 1}, cadence.ErrInvalidCrankReward},
		{"reward above amount", plan.Terms{Name: "p", Amount: 5, CollectorReward: 6, Interval: 1}, cadence.ErrInvalidCrankReward},
		{"negative grace", plan.Terms{Name: "p", Amount: 5, Interval: 1, GracePeriod: -1}, cadence.ErrInvalidGracePeriod},
		{"name checked first", plan.Terms{Amount: 0, Interval: 0}, cadence.ErrInvalidPlanName},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := newEnv(t)
			svc := e.service(t)

			_, err := e.c.CreatePlan(ctx, merchant, svc.ID, tt.terms)
			require.ErrorIs(t, err, tt.wantErr)
			assert.True(t, cadence.IsValidation(err))

			svc, err = e.c.GetService(ctx, svc.ID)
			require.NoError(t, err)
			assert.Zero(t, svc.PlanCount)
		})
	}
}

func TestCreatePlanMaxNameLength(t *testing.T) {
	e := newEnv(t)
	svc := e.service(t)

	p := e.plan(t, svc, plan.Terms{Name: strings.Repeat("x", plan.MaxNameLength), Amount: 1, Interval: 1})
	assert.Len(t, p.Name, plan.MaxNameLength)
}

func TestCreatePlanUnauthorized(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := e.service(t)

	_, err := e.c.CreatePlan(ctx, alice, svc.ID, hourly())
	assert.ErrorIs(t, err, cadence.ErrUnauthorizedAuthority)
}

func TestUpdatePlan(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := e.service(t)
	p := e.plan(t, svc, hourly())
	sub := e.subscribe(t, alice, aliceFunds, p)

	price := types.Amount(20_000_000)
	inactive := false
	updated, err := e.c.UpdatePlan(ctx, merchant, p.ID, plan.Update{Amount: &price, IsActive: &inactive})
	require.NoError(t, err)
	assert.Equal(t, price, updated.Amount)
	assert.False(t, updated.IsActive)
	assert.Equal(t, p.Name, updated.Name)

	// Existing subscribers keep their locked terms.
	got, err := e.c.GetSubscription(ctx, sub.ID)
	require.NoError(t, err)
	assert.Equal(t, monthly, got.LockedAmount)

	// Inactive plans refuse new enrollments.
	_, err = e.c.CreateSubscription(ctx, bob, p.ID, bobFunds)
	assert.ErrorIs(t, err, cadence.ErrPlanNotActive)
}

func TestUpdatePlanRevalidates(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := e.service(t)
	p := e.plan(t, svc, plan.Terms{Name: "p", Amount: 100, CollectorReward: 10, Interval: hour})

	price := types.Amount(10)
	_, err := e.c.UpdatePlan(ctx, merchant, p.ID, plan.Update{Amount: &price})
	require.ErrorIs(t, err, cadence.ErrInvalidCrankReward)

	got, err := e.c.GetPlan(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, types.Amount(100), got.Amount)
}

func TestUpdatePlanUnauthorized(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := e.service(t)
	p := e.plan(t, svc, hourly())

	name := "hijacked"
	_, err := e.c.UpdatePlan(ctx, alice, p.ID, plan.Update{Name: &name})
	assert.ErrorIs(t, err, cadence.ErrUnauthorizedAuthority)
}

func TestUpdatePlanEmpty(t *testing.T) {
	ctx := context.Background()
	e := newEnv(t)
	svc := e.service(t)
	p := e.plan(t, svc, hourly())

	got, err := e.c.UpdatePlan(ctx, merchant, p.ID, plan.Update{})
	require.NoError(t, err)
	assert.Equal(t, p.UpdatedAt, got.UpdatedAt)
}
