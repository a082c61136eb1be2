// Package audithook bridges Cadence lifecycle events to an audit trail backend.
//
// It defines a local Recorder interface so the package does not import an
// audit backend directly. Callers inject a RecorderFunc adapter at wiring
// time.
package audithook

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/xraph/cadence/payment"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/plugin"
	"github.com/xraph/cadence/service"
	"github.com/xraph/cadence/subscription"
)

// Compile-time interface checks.
var (
	_ plugin.Plugin                  = (*Extension)(nil)
	_ plugin.OnServiceRegistered     = (*Extension)(nil)
	_ plugin.OnPlanCreated           = (*Extension)(nil)
	_ plugin.OnPlanUpdated           = (*Extension)(nil)
	_ plugin.OnSubscriptionCreated   = (*Extension)(nil)
	_ plugin.OnSubscriptionChanged   = (*Extension)(nil)
	_ plugin.OnSubscriptionCanceled  = (*Extension)(nil)
	_ plugin.OnSubscriptionPastDue   = (*Extension)(nil)
	_ plugin.OnSubscriptionExpired   = (*Extension)(nil)
	_ plugin.OnSubscriptionCompleted = (*Extension)(nil)
	_ plugin.OnPaymentCollected      = (*Extension)(nil)
	_ plugin.OnPaymentFailed         = (*Extension)(nil)
	_ plugin.OnCrankCompleted        = (*Extension)(nil)
)

// Recorder is the interface that audit backends must implement.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is a backend-neutral audit record.
type AuditEvent struct {
	Action     string         `json:"action"`
	Resource   string         `json:"resource"`
	Category   string         `json:"category"`
	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc is an adapter to use a plain function as a Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record implements Recorder.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// Extension bridges Cadence lifecycle events to an audit trail backend.
type Extension struct {
	recorder Recorder
	only     map[string]struct{} // nil audits every action
	skip     map[string]struct{}
	logger   *slog.Logger
}

// New creates an Extension that emits audit events through the provided Recorder.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{
		recorder: r,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements plugin.Plugin.
func (e *Extension) Name() string { return "audit-hook" }

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// OnServiceRegistered implements plugin.OnServiceRegistered.
func (e *Extension) OnServiceRegistered(ctx context.Context, svc *service.Service) error {
	return e.record(ctx, ActionServiceRegistered, SeverityInfo, OutcomeSuccess,
		ResourceService, svc.ID.String(), CategoryCatalog, nil,
		"authority", svc.Authority,
		"payout_account", svc.PayoutAccount,
		"asset", svc.AcceptedAsset,
	)
}

// OnPlanCreated implements plugin.OnPlanCreated.
func (e *Extension) OnPlanCreated(ctx context.Context, p *plan.Plan) error {
	return e.record(ctx, ActionPlanCreated, SeverityInfo, OutcomeSuccess,
		ResourcePlan, p.ID.String(), CategoryCatalog, nil,
		"service_id", p.ServiceID.String(),
		"name", p.Name,
		"amount", p.Amount.String(),
		"interval", p.Interval,
	)
}

// OnPlanUpdated implements plugin.OnPlanUpdated.
func (e *Extension) OnPlanUpdated(ctx context.Context, oldPlan, newPlan *plan.Plan) error {
	return e.record(ctx, ActionPlanUpdated, SeverityInfo, OutcomeSuccess,
		ResourcePlan, newPlan.ID.String(), CategoryCatalog, nil,
		"old_amount", oldPlan.Amount.String(),
		"new_amount", newPlan.Amount.String(),
		"is_active", newPlan.IsActive,
	)
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated implements plugin.OnSubscriptionCreated.
func (e *Extension) OnSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionCreated, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"subscriber", sub.Subscriber,
		"plan_id", sub.PlanID.String(),
		"next_billing_at", sub.NextBillingAt,
	)
}

// OnSubscriptionChanged implements plugin.OnSubscriptionChanged.
func (e *Extension) OnSubscriptionChanged(ctx context.Context, sub *subscription.Subscription, oldPlan, newPlan *plan.Plan) error {
	action := ActionSubscriptionUpgraded
	if newPlan.Amount < oldPlan.Amount {
		action = ActionSubscriptionDowngraded
	}
	return e.record(ctx, action, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"old_plan_id", oldPlan.ID.String(),
		"new_plan_id", newPlan.ID.String(),
	)
}

// OnSubscriptionCanceled implements plugin.OnSubscriptionCanceled.
func (e *Extension) OnSubscriptionCanceled(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionCanceled, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"subscriber", sub.Subscriber,
		"payments_made", sub.PaymentsMade,
	)
}

// OnSubscriptionPastDue implements plugin.OnSubscriptionPastDue.
func (e *Extension) OnSubscriptionPastDue(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionPastDue, SeverityWarning, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"next_billing_at", sub.NextBillingAt,
	)
}

// OnSubscriptionExpired implements plugin.OnSubscriptionExpired.
func (e *Extension) OnSubscriptionExpired(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionExpired, SeverityWarning, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"subscriber", sub.Subscriber,
	)
}

// OnSubscriptionCompleted implements plugin.OnSubscriptionCompleted.
func (e *Extension) OnSubscriptionCompleted(ctx context.Context, sub *subscription.Subscription) error {
	return e.record(ctx, ActionSubscriptionCompleted, SeverityInfo, OutcomeSuccess,
		ResourceSubscription, sub.ID.String(), CategorySubscription, nil,
		"payments_made", sub.PaymentsMade,
	)
}

// ──────────────────────────────────────────────────
// Collection hooks
// ──────────────────────────────────────────────────

// OnPaymentCollected implements plugin.OnPaymentCollected.
func (e *Extension) OnPaymentCollected(ctx context.Context, sub *subscription.Subscription, p *payment.Payment) error {
	return e.record(ctx, ActionPaymentCollected, SeverityInfo, OutcomeSuccess,
		ResourcePayment, p.ID.String(), CategoryPayment, nil,
		"subscription_id", sub.ID.String(),
		"cycle", p.Cycle,
		"amount", p.Amount.String(),
		"reward", p.Reward.String(),
		"cranker", p.Cranker,
	)
}

// OnPaymentFailed implements plugin.OnPaymentFailed.
func (e *Extension) OnPaymentFailed(ctx context.Context, sub *subscription.Subscription, err error) error {
	return e.record(ctx, ActionPaymentFailed, SeverityError, OutcomeFailure,
		ResourceSubscription, sub.ID.String(), CategoryPayment, err,
		"next_billing_at", sub.NextBillingAt,
	)
}

// OnCrankCompleted implements plugin.OnCrankCompleted.
func (e *Extension) OnCrankCompleted(ctx context.Context, scanned, collected, failed int, elapsed time.Duration) error {
	outcome := OutcomeSuccess
	if failed > 0 {
		outcome = OutcomePartial
	}
	return e.record(ctx, ActionCrankCompleted, SeverityInfo, outcome,
		ResourceCrank, "", CategoryOperations, nil,
		"scanned", scanned,
		"collected", collected,
		"failed", failed,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// record builds and sends an audit event if the action is enabled.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if !e.audits(action) {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = err.Error()
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}

	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			"action", action,
			"resource_id", resourceID,
			"error", recErr,
		)
	}
	return nil
}
