// Package observability provides a metrics extension for Cadence that records
// lifecycle event counts through a pluggable MetricFactory.
package observability

import (
	"context"
	"errors"
	"time"

	"github.com/xraph/cadence/delegation"
	"github.com/xraph/cadence/payment"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/plugin"
	"github.com/xraph/cadence/service"
	"github.com/xraph/cadence/subscription"
	"github.com/xraph/cadence/tokenledger"
)

// Ensure MetricsExtension implements required interfaces.
var (
	_ plugin.Plugin                  = (*MetricsExtension)(nil)
	_ plugin.OnInit                  = (*MetricsExtension)(nil)
	_ plugin.OnServiceRegistered     = (*MetricsExtension)(nil)
	_ plugin.OnPlanCreated           = (*MetricsExtension)(nil)
	_ plugin.OnPlanUpdated           = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCreated   = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionChanged   = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCanceled  = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionPastDue   = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionExpired   = (*MetricsExtension)(nil)
	_ plugin.OnSubscriptionCompleted = (*MetricsExtension)(nil)
	_ plugin.OnPaymentCollected      = (*MetricsExtension)(nil)
	_ plugin.OnPaymentFailed         = (*MetricsExtension)(nil)
	_ plugin.OnCrankCompleted        = (*MetricsExtension)(nil)
)

// Counter interface for metric counters.
type Counter interface {
	Inc()
	Add(float64)
}

// Histogram interface for metric histograms.
type Histogram interface {
	Observe(float64)
}

// MetricFactory creates metrics.
type MetricFactory interface {
	Counter(name string) Counter
	Histogram(name string) Histogram
}

// MetricsExtension records system-wide lifecycle metrics.
// Register it as a Cadence plugin to track billing activity.
type MetricsExtension struct {
	// Catalog metrics
	ServiceRegistered Counter
	PlanCreated       Counter
	PlanUpdated       Counter

	// Subscription metrics
	SubscriptionCreated   Counter
	SubscriptionUpgraded  Counter
	SubscriptionDowngrade Counter
	SubscriptionCanceled  Counter
	SubscriptionPastDue   Counter
	SubscriptionExpired   Counter
	SubscriptionCompleted Counter

	// Collection metrics
	PaymentCollected    Counter
	PaymentAmount       Histogram
	CollectorReward     Histogram
	PaymentFailed       Counter
	InsufficientFunds   Counter
	AllowanceExhausted  Counter
	DelegationWithdrawn Counter

	// Crank metrics
	CrankSweeps    Counter
	CrankScanned   Counter
	CrankCollected Counter
	CrankFailed    Counter
	CrankLatency   Histogram
}

// NewMetricsExtension creates a MetricsExtension with the provided MetricFactory.
// Use app.Metrics() in forge extensions or NewPrometheusFactory standalone.
func NewMetricsExtension(factory MetricFactory) *MetricsExtension {
	return &MetricsExtension{
		ServiceRegistered: factory.Counter("cadence.service.registered"),
		PlanCreated:       factory.Counter("cadence.plan.created"),
		PlanUpdated:       factory.Counter("cadence.plan.updated"),

		SubscriptionCreated:   factory.Counter("cadence.subscription.created"),
		SubscriptionUpgraded:  factory.Counter("cadence.subscription.upgraded"),
		SubscriptionDowngrade: factory.Counter("cadence.subscription.downgraded"),
		SubscriptionCanceled:  factory.Counter("cadence.subscription.canceled"),
		SubscriptionPastDue:   factory.Counter("cadence.subscription.past_due"),
		SubscriptionExpired:   factory.Counter("cadence.subscription.expired"),
		SubscriptionCompleted: factory.Counter("cadence.subscription.completed"),

		PaymentCollected:    factory.Counter("cadence.payment.collected"),
		PaymentAmount:       factory.Histogram("cadence.payment.amount"),
		CollectorReward:     factory.Histogram("cadence.payment.reward"),
		PaymentFailed:       factory.Counter("cadence.payment.failed"),
		InsufficientFunds:   factory.Counter("cadence.payment.insufficient_funds"),
		AllowanceExhausted:  factory.Counter("cadence.payment.allowance_exceeded"),
		DelegationWithdrawn: factory.Counter("cadence.payment.delegation_revoked"),

		CrankSweeps:    factory.Counter("cadence.crank.sweeps"),
		CrankScanned:   factory.Counter("cadence.crank.scanned"),
		CrankCollected: factory.Counter("cadence.crank.collected"),
		CrankFailed:    factory.Counter("cadence.crank.failed"),
		CrankLatency:   factory.Histogram("cadence.crank.latency_ms"),
	}
}

// Name implements plugin.Plugin.
func (m *MetricsExtension) Name() string { return "observability-metrics" }

// OnInit implements plugin.OnInit.
func (m *MetricsExtension) OnInit(_ context.Context, _ interface{}) error {
	return nil
}

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// OnServiceRegistered implements plugin.OnServiceRegistered.
func (m *MetricsExtension) OnServiceRegistered(_ context.Context, _ *service.Service) error {
	m.ServiceRegistered.Inc()
	return nil
}

// OnPlanCreated implements plugin.OnPlanCreated.
func (m *MetricsExtension) OnPlanCreated(_ context.Context, _ *plan.Plan) error {
	m.PlanCreated.Inc()
	return nil
}

// OnPlanUpdated implements plugin.OnPlanUpdated.
func (m *MetricsExtension) OnPlanUpdated(_ context.Context, _, _ *plan.Plan) error {
	m.PlanUpdated.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (m *MetricsExtension) OnSubscriptionCreated(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionCreated.Inc()
	return nil
}

// OnSubscriptionChanged implements plugin.OnSubscriptionChanged. A move to a
// plan with a higher per-cycle amount counts as an upgrade.
func (m *MetricsExtension) OnSubscriptionChanged(_ context.Context, _ *subscription.Subscription, oldPlan, newPlan *plan.Plan) error {
	if newPlan.Amount >= oldPlan.Amount {
		m.SubscriptionUpgraded.Inc()
	} else {
		m.SubscriptionDowngrade.Inc()
	}
	return nil
}

// OnSubscriptionCanceled implements plugin.OnSubscriptionCanceled.
func (m *MetricsExtension) OnSubscriptionCanceled(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionCanceled.Inc()
	return nil
}

// OnSubscriptionPastDue implements plugin.OnSubscriptionPastDue.
func (m *MetricsExtension) OnSubscriptionPastDue(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionPastDue.Inc()
	return nil
}

// OnSubscriptionExpired implements plugin.OnSubscriptionExpired.
func (m *MetricsExtension) OnSubscriptionExpired(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionExpired.Inc()
	return nil
}

// OnSubscriptionCompleted implements plugin.OnSubscriptionCompleted.
func (m *MetricsExtension) OnSubscriptionCompleted(_ context.Context, _ *subscription.Subscription) error {
	m.SubscriptionCompleted.Inc()
	return nil
}

// ──────────────────────────────────────────────────
// Collection hooks
// ──────────────────────────────────────────────────

// OnPaymentCollected implements plugin.OnPaymentCollected.
func (m *MetricsExtension) OnPaymentCollected(_ context.Context, _ *subscription.Subscription, p *payment.Payment) error {
	m.PaymentCollected.Inc()
	m.PaymentAmount.Observe(float64(p.Amount))
	m.CollectorReward.Observe(float64(p.Reward))
	return nil
}

// OnPaymentFailed implements plugin.OnPaymentFailed.
func (m *MetricsExtension) OnPaymentFailed(_ context.Context, _ *subscription.Subscription, err error) error {
	m.PaymentFailed.Inc()
	switch {
	case errors.Is(err, tokenledger.ErrInsufficientFunds):
		m.InsufficientFunds.Inc()
	case errors.Is(err, delegation.ErrAllowanceExceeded):
		m.AllowanceExhausted.Inc()
	case errors.Is(err, delegation.ErrDelegationRevoked), errors.Is(err, tokenledger.ErrNotDelegated):
		m.DelegationWithdrawn.Inc()
	}
	return nil
}

// OnCrankCompleted implements plugin.OnCrankCompleted.
func (m *MetricsExtension) OnCrankCompleted(_ context.Context, scanned, collected, failed int, elapsed time.Duration) error {
	m.CrankSweeps.Inc()
	m.CrankScanned.Add(float64(scanned))
	m.CrankCollected.Add(float64(collected))
	m.CrankFailed.Add(float64(failed))
	m.CrankLatency.Observe(float64(elapsed.Milliseconds()))
	return nil
}
