package audithook

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/payment"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/subscription"
)

type sink struct{ events []*AuditEvent }

func (s *sink) Record(_ context.Context, evt *AuditEvent) error {
	s.events = append(s.events, evt)
	return nil
}

func testSub() *subscription.Subscription {
	return &subscription.Subscription{
		ID:         id.NewSubscriptionID(),
		Subscriber: "alice",
		PlanID:     id.NewPlanID(),
	}
}

func TestPaymentEvents(t *testing.T) {
	ctx := context.Background()
	s := &sink{}
	ext := New(s)
	sub := testSub()

	pay := &payment.Payment{ID: id.NewPaymentID(), Cycle: 1, Amount: 100, Reward: 1, Cranker: "bob"}
	require.NoError(t, ext.OnPaymentCollected(ctx, sub, pay))
	require.NoError(t, ext.OnPaymentFailed(ctx, sub, errors.New("insufficient funds")))

	require.Len(t, s.events, 2)

	collected := s.events[0]
	assert.Equal(t, ActionPaymentCollected, collected.Action)
	assert.Equal(t, pay.ID.String(), collected.ResourceID)
	assert.Equal(t, "100", collected.Metadata["amount"])
	assert.Equal(t, OutcomeSuccess, collected.Outcome)

	failed := s.events[1]
	assert.Equal(t, ActionPaymentFailed, failed.Action)
	assert.Equal(t, OutcomeFailure, failed.Outcome)
	assert.Equal(t, SeverityError, failed.Severity)
	assert.Equal(t, "insufficient funds", failed.Reason)
}

func TestPlanChangeDirection(t *testing.T) {
	ctx := context.Background()
	s := &sink{}
	ext := New(s)
	basic := &plan.Plan{ID: id.NewPlanID(), Amount: 5}
	pro := &plan.Plan{ID: id.NewPlanID(), Amount: 10}

	require.NoError(t, ext.OnSubscriptionChanged(ctx, testSub(), basic, pro))
	require.NoError(t, ext.OnSubscriptionChanged(ctx, testSub(), pro, basic))

	require.Len(t, s.events, 2)
	assert.Equal(t, ActionSubscriptionUpgraded, s.events[0].Action)
	assert.Equal(t, ActionSubscriptionDowngraded, s.events[1].Action)
}

func TestCrankOutcome(t *testing.T) {
	s := &sink{}
	ext := New(s)

	require.NoError(t, ext.OnCrankCompleted(context.Background(), 3, 3, 0, time.Second))
	require.NoError(t, ext.OnCrankCompleted(context.Background(), 3, 2, 1, time.Second))

	assert.Equal(t, OutcomeSuccess, s.events[0].Outcome)
	assert.Equal(t, OutcomePartial, s.events[1].Outcome)
	assert.Equal(t, int64(1000), s.events[1].Metadata["elapsed_ms"])
}

func TestActionFilters(t *testing.T) {
	ctx := context.Background()

	s := &sink{}
	ext := New(s, WithActions(ActionSubscriptionExpired))
	require.NoError(t, ext.OnSubscriptionCreated(ctx, testSub()))
	require.NoError(t, ext.OnSubscriptionExpired(ctx, testSub()))
	require.Len(t, s.events, 1)
	assert.Equal(t, ActionSubscriptionExpired, s.events[0].Action)

	s = &sink{}
	ext = New(s, WithoutActions(ActionSubscriptionCreated))
	require.NoError(t, ext.OnSubscriptionCreated(ctx, testSub()))
	require.NoError(t, ext.OnSubscriptionCanceled(ctx, testSub()))
	require.Len(t, s.events, 1)
	assert.Equal(t, ActionSubscriptionCanceled, s.events[0].Action)
}

func TestRecorderFailureIsSwallowed(t *testing.T) {
	failing := RecorderFunc(func(context.Context, *AuditEvent) error {
		return errors.New("backend down")
	})
	ext := New(failing, WithLogger(slog.New(slog.DiscardHandler)))

	assert.NoError(t, ext.OnSubscriptionPastDue(context.Background(), testSub()))
}
