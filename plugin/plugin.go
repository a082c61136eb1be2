// Package plugin provides an extensible plugin system for Cadence.
// Plugins can hook into lifecycle events to extend functionality.
package plugin

import (
	"context"
	"time"

	"github.com/xraph/cadence/payment"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/service"
	"github.com/xraph/cadence/subscription"
)

// Plugin is the base interface that all plugins must implement.
type Plugin interface {
	Name() string
}

// ──────────────────────────────────────────────────
// Lifecycle hooks
// ──────────────────────────────────────────────────

// OnInit is called when the engine starts. engine is the *cadence.Cadence.
type OnInit interface {
	Plugin
	OnInit(ctx context.Context, engine interface{}) error
}

// OnShutdown is called when the engine stops.
type OnShutdown interface {
	Plugin
	OnShutdown(ctx context.Context) error
}

// ──────────────────────────────────────────────────
// Catalog hooks
// ──────────────────────────────────────────────────

// OnServiceRegistered is called when a merchant registers a service.
type OnServiceRegistered interface {
	Plugin
	OnServiceRegistered(ctx context.Context, svc *service.Service) error
}

// OnPlanCreated is called when a new plan is created.
type OnPlanCreated interface {
	Plugin
	OnPlanCreated(ctx context.Context, p *plan.Plan) error
}

// OnPlanUpdated is called when a plan is updated.
type OnPlanUpdated interface {
	Plugin
	OnPlanUpdated(ctx context.Context, oldPlan, newPlan *plan.Plan) error
}

// ──────────────────────────────────────────────────
// Subscription lifecycle hooks
// ──────────────────────────────────────────────────

// OnSubscriptionCreated is called when a new subscription is created.
type OnSubscriptionCreated interface {
	Plugin
	OnSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) error
}

// OnSubscriptionChanged is called when a subscription changes plans.
type OnSubscriptionChanged interface {
	Plugin
	OnSubscriptionChanged(ctx context.Context, sub *subscription.Subscription, oldPlan, newPlan *plan.Plan) error
}

// OnSubscriptionCanceled is called when a subscription is cancelled.
type OnSubscriptionCanceled interface {
	Plugin
	OnSubscriptionCanceled(ctx context.Context, sub *subscription.Subscription) error
}

// OnSubscriptionPastDue is called when the past-due flag is persisted.
type OnSubscriptionPastDue interface {
	Plugin
	OnSubscriptionPastDue(ctx context.Context, sub *subscription.Subscription) error
}

// OnSubscriptionExpired is called when a subscription expires.
type OnSubscriptionExpired interface {
	Plugin
	OnSubscriptionExpired(ctx context.Context, sub *subscription.Subscription) error
}

// OnSubscriptionCompleted is called when a subscription reaches its cycle cap.
type OnSubscriptionCompleted interface {
	Plugin
	OnSubscriptionCompleted(ctx context.Context, sub *subscription.Subscription) error
}

// ──────────────────────────────────────────────────
// Collection hooks
// ──────────────────────────────────────────────────

// OnPaymentCollected is called after a collection commits.
type OnPaymentCollected interface {
	Plugin
	OnPaymentCollected(ctx context.Context, sub *subscription.Subscription, p *payment.Payment) error
}

// OnPaymentFailed is called when a collection attempt fails. sub is the
// state before the attempt.
type OnPaymentFailed interface {
	Plugin
	OnPaymentFailed(ctx context.Context, sub *subscription.Subscription, err error) error
}

// OnCrankCompleted is called after each crank sweep.
type OnCrankCompleted interface {
	Plugin
	OnCrankCompleted(ctx context.Context, scanned, collected, failed int, elapsed time.Duration) error
}
