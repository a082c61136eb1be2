package plugin

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"sync"
	"time"

	"github.com/xraph/cadence/payment"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/service"
	"github.com/xraph/cadence/subscription"
)

// DefaultTimeout bounds every hook call.
const DefaultTimeout = 5 * time.Second

// Registry manages all registered plugins and provides efficient dispatch.
// It uses type-cached discovery for O(1) dispatch performance.
type Registry struct {
	mu      sync.RWMutex
	plugins []Plugin
	logger  *slog.Logger
	timeout time.Duration

	// Type-cached plugin lists for efficient dispatch
	onInit                  []OnInit
	onShutdown              []OnShutdown
	onServiceRegistered     []OnServiceRegistered
	onPlanCreated           []OnPlanCreated
	onPlanUpdated           []OnPlanUpdated
	onSubscriptionCreated   []OnSubscriptionCreated
	onSubscriptionChanged   []OnSubscriptionChanged
	onSubscriptionCanceled  []OnSubscriptionCanceled
	onSubscriptionPastDue   []OnSubscriptionPastDue
	onSubscriptionExpired   []OnSubscriptionExpired
	onSubscriptionCompleted []OnSubscriptionCompleted
	onPaymentCollected      []OnPaymentCollected
	onPaymentFailed         []OnPaymentFailed
	onCrankCompleted        []OnCrankCompleted
}

// NewRegistry creates a new plugin registry.
func NewRegistry() *Registry {
	return &Registry{
		logger:  slog.Default(),
		timeout: DefaultTimeout,
	}
}

// WithLogger sets the logger for the registry.
func (r *Registry) WithLogger(logger *slog.Logger) *Registry {
	r.logger = logger
	return r
}

// WithTimeout sets the per-hook timeout.
func (r *Registry) WithTimeout(d time.Duration) *Registry {
	if d > 0 {
		r.timeout = d
	}
	return r
}

// Register adds a plugin to the registry and caches its interfaces.
func (r *Registry) Register(p Plugin) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	// Check for duplicate
	for _, existing := range r.plugins {
		if existing.Name() == p.Name() {
			return fmt.Errorf("plugin: duplicate registration: %s", p.Name())
		}
	}

	r.plugins = append(r.plugins, p)

	// Type-switch to cache interfaces
	if v, ok := p.(OnInit); ok {
		r.onInit = append(r.onInit, v)
	}
	if v, ok := p.(OnShutdown); ok {
		r.onShutdown = append(r.onShutdown, v)
	}
	if v, ok := p.(OnServiceRegistered); ok {
		r.onServiceRegistered = append(r.onServiceRegistered, v)
	}
	if v, ok := p.(OnPlanCreated); ok {
		r.onPlanCreated = append(r.onPlanCreated, v)
	}
	if v, ok := p.(OnPlanUpdated); ok {
		r.onPlanUpdated = append(r.onPlanUpdated, v)
	}
	if v, ok := p.(OnSubscriptionCreated); ok {
		r.onSubscriptionCreated = append(r.onSubscriptionCreated, v)
	}
	if v, ok := p.(OnSubscriptionChanged); ok {
		r.onSubscriptionChanged = append(r.onSubscriptionChanged, v)
	}
	if v, ok := p.(OnSubscriptionCanceled); ok {
		r.onSubscriptionCanceled = append(r.onSubscriptionCanceled, v)
	}
	if v, ok := p.(OnSubscriptionPastDue); ok {
		r.onSubscriptionPastDue = append(r.onSubscriptionPastDue, v)
	}
	if v, ok := p.(OnSubscriptionExpired); ok {
		r.onSubscriptionExpired = append(r.onSubscriptionExpired, v)
	}
	if v, ok := p.(OnSubscriptionCompleted); ok {
		r.onSubscriptionCompleted = append(r.onSubscriptionCompleted, v)
	}
	if v, ok := p.(OnPaymentCollected); ok {
		r.onPaymentCollected = append(r.onPaymentCollected, v)
	}
	if v, ok := p.(OnPaymentFailed); ok {
		r.onPaymentFailed = append(r.onPaymentFailed, v)
	}
	if v, ok := p.(OnCrankCompleted); ok {
		r.onCrankCompleted = append(r.onCrankCompleted, v)
	}

	r.logger.Info("plugin registered",
		"name", p.Name(),
		"interfaces", implementedInterfaces(p),
	)

	return nil
}

var hookTypes = []struct {
	name string
	typ  reflect.Type
}{
	{"OnInit", reflect.TypeFor[OnInit]()},
	{"OnShutdown", reflect.TypeFor[OnShutdown]()},
	{"OnServiceRegistered", reflect.TypeFor[OnServiceRegistered]()},
	{"OnPlanCreated", reflect.TypeFor[OnPlanCreated]()},
	{"OnPlanUpdated", reflect.TypeFor[OnPlanUpdated]()},
	{"OnSubscriptionCreated", reflect.TypeFor[OnSubscriptionCreated]()},
	{"OnSubscriptionChanged", reflect.TypeFor[OnSubscriptionChanged]()},
	{"OnSubscriptionCanceled", reflect.TypeFor[OnSubscriptionCanceled]()},
	{"OnSubscriptionPastDue", reflect.TypeFor[OnSubscriptionPastDue]()},
	{"OnSubscriptionExpired", reflect.TypeFor[OnSubscriptionExpired]()},
	{"OnSubscriptionCompleted", reflect.TypeFor[OnSubscriptionCompleted]()},
	{"OnPaymentCollected", reflect.TypeFor[OnPaymentCollected]()},
	{"OnPaymentFailed", reflect.TypeFor[OnPaymentFailed]()},
	{"OnCrankCompleted", reflect.TypeFor[OnCrankCompleted]()},
}

// implementedInterfaces returns the hook names the plugin implements.
func implementedInterfaces(p Plugin) []string {
	var names []string
	v := reflect.TypeOf(p)
	for _, h := range hookTypes {
		if v.Implements(h.typ) {
			names = append(names, h.name)
		}
	}
	return names
}

// Get returns a plugin by name.
func (r *Registry) Get(name string) Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, p := range r.plugins {
		if p.Name() == name {
			return p
		}
	}
	return nil
}

// List returns all registered plugins.
func (r *Registry) List() []Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]Plugin, len(r.plugins))
	copy(result, r.plugins)
	return result
}

// Count returns the number of registered plugins.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.plugins)
}

// ──────────────────────────────────────────────────
// Event emission methods
// ──────────────────────────────────────────────────

// emit calls fn for each cached plugin, logging failures at Warn.
func emit[T Plugin](ctx context.Context, r *Registry, hook string, cached *[]T, fn func(T) error) {
	r.mu.RLock()
	plugins := *cached
	r.mu.RUnlock()

	for _, p := range plugins {
		if err := r.callWithTimeout(ctx, p.Name(), func() error {
			return fn(p)
		}); err != nil {
			r.logger.Warn("plugin "+hook+" failed",
				"plugin", p.Name(),
				"error", err,
			)
		}
	}
}

// EmitInit calls OnInit for all plugins that implement it.
func (r *Registry) EmitInit(ctx context.Context, engine interface{}) {
	emit(ctx, r, "OnInit", &r.onInit, func(p OnInit) error {
		return p.OnInit(ctx, engine)
	})
}

// EmitShutdown calls OnShutdown for all plugins that implement it.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(ctx, r, "OnShutdown", &r.onShutdown, func(p OnShutdown) error {
		return p.OnShutdown(ctx)
	})
}

// EmitServiceRegistered emits a service registered event.
func (r *Registry) EmitServiceRegistered(ctx context.Context, svc *service.Service) {
	emit(ctx, r, "OnServiceRegistered", &r.onServiceRegistered, func(p OnServiceRegistered) error {
		return p.OnServiceRegistered(ctx, svc)
	})
}

// EmitPlanCreated emits a plan created event.
func (r *Registry) EmitPlanCreated(ctx context.Context, pl *plan.Plan) {
	emit(ctx, r, "OnPlanCreated", &r.onPlanCreated, func(p OnPlanCreated) error {
		return p.OnPlanCreated(ctx, pl)
	})
}

// EmitPlanUpdated emits a plan updated event.
func (r *Registry) EmitPlanUpdated(ctx context.Context, oldPlan, newPlan *plan.Plan) {
	emit(ctx, r, "OnPlanUpdated", &r.onPlanUpdated, func(p OnPlanUpdated) error {
		return p.OnPlanUpdated(ctx, oldPlan, newPlan)
	})
}

// EmitSubscriptionCreated emits a subscription created event.
func (r *Registry) EmitSubscriptionCreated(ctx context.Context, sub *subscription.Subscription) {
	emit(ctx, r, "OnSubscriptionCreated", &r.onSubscriptionCreated, func(p OnSubscriptionCreated) error {
		return p.OnSubscriptionCreated(ctx, sub)
	})
}

// EmitSubscriptionChanged emits a plan change event.
func (r *Registry) EmitSubscriptionChanged(ctx context.Context, sub *subscription.Subscription, oldPlan, newPlan *plan.Plan) {
	emit(ctx, r, "OnSubscriptionChanged", &r.onSubscriptionChanged, func(p OnSubscriptionChanged) error {
		return p.OnSubscriptionChanged(ctx, sub, oldPlan, newPlan)
	})
}

// EmitSubscriptionCanceled emits a subscription cancelled event.
func (r *Registry) EmitSubscriptionCanceled(ctx context.Context, sub *subscription.Subscription) {
	emit(ctx, r, "OnSubscriptionCanceled", &r.onSubscriptionCanceled, func(p OnSubscriptionCanceled) error {
		return p.OnSubscriptionCanceled(ctx, sub)
	})
}

// EmitSubscriptionPastDue emits a past-due event.
func (r *Registry) EmitSubscriptionPastDue(ctx context.Context, sub *subscription.Subscription) {
	emit(ctx, r, "OnSubscriptionPastDue", &r.onSubscriptionPastDue, func(p OnSubscriptionPastDue) error {
		return p.OnSubscriptionPastDue(ctx, sub)
	})
}

// EmitSubscriptionExpired emits a subscription expired event.
func (r *Registry) EmitSubscriptionExpired(ctx context.Context, sub *subscription.Subscription) {
	emit(ctx, r, "OnSubscriptionExpired", &r.onSubscriptionExpired, func(p OnSubscriptionExpired) error {
		return p.OnSubscriptionExpired(ctx, sub)
	})
}

// EmitSubscriptionCompleted emits a subscription completed event.
func (r *Registry) EmitSubscriptionCompleted(ctx context.Context, sub *subscription.Subscription) {
	emit(ctx, r, "OnSubscriptionCompleted", &r.onSubscriptionCompleted, func(p OnSubscriptionCompleted) error {
		return p.OnSubscriptionCompleted(ctx, sub)
	})
}

// EmitPaymentCollected emits a payment collected event.
func (r *Registry) EmitPaymentCollected(ctx context.Context, sub *subscription.Subscription, pay *payment.Payment) {
	emit(ctx, r, "OnPaymentCollected", &r.onPaymentCollected, func(p OnPaymentCollected) error {
		return p.OnPaymentCollected(ctx, sub, pay)
	})
}

// EmitPaymentFailed emits a payment failed event.
func (r *Registry) EmitPaymentFailed(ctx context.Context, sub *subscription.Subscription, cause error) {
	emit(ctx, r, "OnPaymentFailed", &r.onPaymentFailed, func(p OnPaymentFailed) error {
		return p.OnPaymentFailed(ctx, sub, cause)
	})
}

// EmitCrankCompleted emits a crank completed event.
func (r *Registry) EmitCrankCompleted(ctx context.Context, scanned, collected, failed int, elapsed time.Duration) {
	emit(ctx, r, "OnCrankCompleted", &r.onCrankCompleted, func(p OnCrankCompleted) error {
		return p.OnCrankCompleted(ctx, scanned, collected, failed, elapsed)
	})
}

// callWithTimeout calls a plugin function with a timeout.
// Plugins should never block the billing pipeline.
func (r *Registry) callWithTimeout(ctx context.Context, pluginName string, fn func() error) error {
	done := make(chan error, 1)

	go func() {
		done <- fn()
	}()

	timer := time.NewTimer(r.timeout)
	defer timer.Stop()

	select {
	case err := <-done:
		return err
	case <-timer.C:
		return fmt.Errorf("plugin timeout: %s", pluginName)
	case <-ctx.Done():
		return ctx.Err()
	}
}
