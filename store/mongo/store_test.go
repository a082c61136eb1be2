package mongo

import (
	"encoding/json"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/cadence"
	"github.com/xraph/cadence/delegation"
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/payment"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/subscription"
	"github.com/xraph/cadence/types"
)

func duplicate(index string) error {
	return mongo.WriteException{WriteErrors: []mongo.WriteError{{
		Code:    11000,
		Message: "E11000 duplicate key error collection: db.x index: " + index + " dup key",
	}}}
}

func TestMapError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want error
	}{
		{"authority taken", duplicate(idxServiceAuthority), cadence.ErrServiceExists},
		{"live subscription", duplicate(idxSubLive), cadence.ErrSubscriptionExists},
		{"funding account in use", duplicate(idxSubFunding), cadence.ErrFundingAccountInUse},
		{"primary key", duplicate("_id_"), cadence.ErrAlreadyExists},
		{"write conflict", mongo.CommandError{Code: 112, Name: "WriteConflict", Labels: []string{"TransientTransactionError"}}, cadence.ErrTransactionFailed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.ErrorIs(t, mapError(tt.err), tt.want)
		})
	}

	plain := errors.New("boom")
	assert.Equal(t, plain, mapError(plain))
	assert.NoError(t, mapError(nil))
}

func TestMigrationIndexes(t *testing.T) {
	indexes := migrationIndexes()
	for _, col := range []string{colServices, colPlans, colSubscriptions, colCapabilities, colPayments} {
		assert.NotEmpty(t, indexes[col], col)
	}
	keys, ok := indexes[colSubscriptions][0].Keys.(bson.D)
	require.True(t, ok)
	assert.Equal(t, "subscriber", keys[0].Key)
	assert.Equal(t, "plan_id", keys[1].Key)

	var funding *options.IndexOptions
	for _, idx := range indexes[colSubscriptions] {
		if idx.Options == nil {
			continue
		}
		opts := &options.IndexOptions{}
		for _, set := range idx.Options.Opts {
			require.NoError(t, set(opts))
		}
		if opts.Name != nil && *opts.Name == idxSubFunding {
			funding = opts
		}
	}
	require.NotNil(t, funding, "funding account index")
	require.NotNil(t, funding.Unique)
	assert.True(t, *funding.Unique)
	assert.Equal(t, bson.M{"billing": true}, funding.PartialFilterExpression)
}

func TestSubscriptionModelLive(t *testing.T) {
	sub := &subscription.Subscription{
		ID:        id.NewSubscriptionID(),
		ServiceID: id.NewServiceID(),
		PlanID:    id.NewPlanID(),
		Status:    subscription.StatusExpired,
	}
	assert.True(t, toSubscriptionModel(sub).Live)
	assert.False(t, toSubscriptionModel(sub).Billing, "expired subscriptions release the funding account")

	sub.Status = subscription.StatusPastDue
	assert.True(t, toSubscriptionModel(sub).Billing)

	sub.Status = subscription.StatusCancelled
	assert.False(t, toSubscriptionModel(sub).Live)
	assert.False(t, toSubscriptionModel(sub).Billing)
}

func TestModelRoundTrips(t *testing.T) {
	sub := &subscription.Subscription{
		Entity:           types.NewEntity(42),
		ID:               id.NewSubscriptionID(),
		Subscriber:       "alice",
		ServiceID:        id.NewServiceID(),
		PlanID:           id.NewPlanID(),
		FundingAccount:   "alice-usdc",
		LockedAmount:     math.MaxUint64,
		LockedReward:     7,
		LockedInterval:   3600,
		MaxBillingCycles: math.MaxUint64,
		NextBillingAt:    subscription.NeverBill,
		LastPaymentAt:    41,
		Status:           subscription.StatusCompleted,
		PaymentsMade:     math.MaxUint32,
	}
	m := toSubscriptionModel(sub)
	assert.Equal(t, "18446744073709551615", m.LockedAmount)
	gotSub, err := fromSubscriptionModel(m)
	require.NoError(t, err)
	assertSameJSON(t, sub, gotSub)

	p := &plan.Plan{
		Entity:           types.NewEntity(1),
		ID:               id.NewPlanID(),
		ServiceID:        id.NewServiceID(),
		Name:             "Pro",
		Amount:           10_000_000,
		CollectorReward:  50_000,
		Interval:         2_592_000,
		GracePeriod:      86_400,
		IsActive:         true,
		Index:            math.MaxUint16,
		MaxBillingCycles: 12,
	}
	gotPlan, err := fromPlanModel(toPlanModel(p))
	require.NoError(t, err)
	assertSameJSON(t, p, gotPlan)

	c := &delegation.Capability{
		Entity:         types.NewEntity(5),
		ID:             id.NewCapabilityID(),
		SubscriptionID: sub.ID,
		FundingAccount: "alice-usdc",
		Holder:         "cadence",
		Cap:            math.MaxUint64,
		Cycle:          3,
		Spent:          10,
		Revoked:        true,
	}
	gotCap, err := fromCapabilityModel(toCapabilityModel(c))
	require.NoError(t, err)
	assertSameJSON(t, c, gotCap)

	pay := &payment.Payment{
		Entity:         types.NewEntity(9),
		ID:             id.NewPaymentID(),
		SubscriptionID: sub.ID,
		ServiceID:      sub.ServiceID,
		PlanID:         sub.PlanID,
		Cycle:          1,
		Amount:         100,
		Reward:         1,
		Treasury:       99,
		Cranker:        "bob",
		RewardAccount:  "bob-usdc",
		PayoutAccount:  "merchant-usdc",
		FundingAccount: "alice-usdc",
		CollectedAt:    9,
	}
	gotPay, err := fromPaymentModel(toPaymentModel(pay))
	require.NoError(t, err)
	assertSameJSON(t, pay, gotPay)
}

func TestFromModelRejectsBadAmount(t *testing.T) {
	m := toPlanModel(&plan.Plan{ID: id.NewPlanID(), ServiceID: id.NewServiceID()})
	m.Amount = "-1"
	_, err := fromPlanModel(m)
	assert.Error(t, err)
}

func assertSameJSON(t *testing.T, want, got any) {
	t.Helper()
	w, err := json.Marshal(want)
	require.NoError(t, err)
	g, err := json.Marshal(got)
	require.NoError(t, err)
	assert.JSONEq(t, string(w), string(g))
}
