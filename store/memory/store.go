// Package memory provides an in-process implementation of store.Store.
package memory

import (
	"cmp"
	"context"
	"maps"
	"slices"
	"sync"

	"github.com/xraph/cadence"
	"github.com/xraph/cadence/delegation"
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/payment"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/service"
	"github.com/xraph/cadence/store"
	"github.com/xraph/cadence/subscription"
)

// Store keeps every entity in maps. Records are stored by value and returned
// as copies, so callers never alias internal state.
type Store struct {
	invoke sync.Mutex // serializes Transact

	mu sync.RWMutex
	state
}

type state struct {
	services      map[string]service.Service
	authorities   map[string]string // authority -> service id
	plans         map[string]plan.Plan
	subscriptions map[string]subscription.Subscription
	live          map[string]string // subscriber/plan -> subscription id
	capabilities  map[string]delegation.Capability
	payments      map[string]payment.Payment
	paymentsBySub map[string][]string // insertion order
}

func New() *Store {
	return &Store{
		state: state{
			services:      make(map[string]service.Service),
			authorities:   make(map[string]string),
			plans:         make(map[string]plan.Plan),
			subscriptions: make(map[string]subscription.Subscription),
			live:          make(map[string]string),
			capabilities:  make(map[string]delegation.Capability),
			payments:      make(map[string]payment.Payment),
			paymentsBySub: make(map[string][]string),
		},
	}
}

// Compile-time interface check.
var _ store.Store = (*Store)(nil)

func liveKey(subscriber string, planID id.PlanID) string {
	return subscriber + "/" + planID.String()
}

// ──────────────────────────────────────────────────
// Service Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreateService(_ context.Context, svc *service.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.authorities[svc.Authority]; exists {
		return cadence.ErrServiceExists
	}
	if _, exists := s.services[svc.ID.String()]; exists {
		return cadence.ErrAlreadyExists
	}
	s.services[svc.ID.String()] = *svc
	s.authorities[svc.Authority] = svc.ID.String()
	return nil
}

func (s *Store) GetService(_ context.Context, serviceID id.ServiceID) (*service.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if svc, ok := s.services[serviceID.String()]; ok {
		return &svc, nil
	}
	return nil, cadence.ErrServiceNotFound
}

func (s *Store) GetServiceByAuthority(_ context.Context, authority string) (*service.Service, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if svcID, ok := s.authorities[authority]; ok {
		svc := s.services[svcID]
		return &svc, nil
	}
	return nil, cadence.ErrServiceNotFound
}

func (s *Store) UpdateService(_ context.Context, svc *service.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.services[svc.ID.String()]; !exists {
		return cadence.ErrServiceNotFound
	}
	s.services[svc.ID.String()] = *svc
	return nil
}

// ──────────────────────────────────────────────────
// Plan Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreatePlan(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[p.ID.String()]; exists {
		return cadence.ErrAlreadyExists
	}
	s.plans[p.ID.String()] = *p
	return nil
}

func (s *Store) GetPlan(_ context.Context, planID id.PlanID) (*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.plans[planID.String()]; ok {
		return &p, nil
	}
	return nil, cadence.ErrPlanNotFound
}

func (s *Store) ListPlans(_ context.Context, serviceID id.ServiceID, opts plan.ListOpts) ([]*plan.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*plan.Plan, 0)
	for _, p := range s.plans {
		if p.ServiceID.String() != serviceID.String() {
			continue
		}
		if opts.ActiveOnly && !p.IsActive {
			continue
		}
		result = append(result, &p)
	}
	slices.SortFunc(result, func(a, b *plan.Plan) int { return cmp.Compare(a.Index, b.Index) })

	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) UpdatePlan(_ context.Context, p *plan.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.plans[p.ID.String()]; !exists {
		return cadence.ErrPlanNotFound
	}
	s.plans[p.ID.String()] = *p
	return nil
}

// ──────────────────────────────────────────────────
// Subscription Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.subscriptions[sub.ID.String()]; exists {
		return cadence.ErrAlreadyExists
	}
	key := liveKey(sub.Subscriber, sub.PlanID)
	if sub.IsLive() {
		if _, taken := s.live[key]; taken {
			return cadence.ErrSubscriptionExists
		}
		s.live[key] = sub.ID.String()
	}
	s.subscriptions[sub.ID.String()] = *sub
	return nil
}

func (s *Store) GetSubscription(_ context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if sub, ok := s.subscriptions[subID.String()]; ok {
		return &sub, nil
	}
	return nil, cadence.ErrSubscriptionNotFound
}

func (s *Store) GetLiveSubscription(_ context.Context, subscriber string, planID id.PlanID) (*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if subID, ok := s.live[liveKey(subscriber, planID)]; ok {
		sub := s.subscriptions[subID]
		return &sub, nil
	}
	return nil, cadence.ErrSubscriptionNotFound
}

func (s *Store) ListSubscriptions(_ context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if opts.Matches(&sub) {
			result = append(result, &sub)
		}
	}
	slices.SortFunc(result, func(a, b *subscription.Subscription) int {
		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	return page(result, opts.Offset, opts.Limit), nil
}

func (s *Store) ListDueSubscriptions(_ context.Context, now int64, limit int) ([]*subscription.Subscription, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*subscription.Subscription, 0)
	for _, sub := range s.subscriptions {
		if sub.IsDue(now) {
			result = append(result, &sub)
		}
	}
	// Active before PastDue, so retried failures cannot fill the batch.
	slices.SortFunc(result, func(a, b *subscription.Subscription) int {
		if c := cmp.Compare(a.Status, b.Status); c != 0 {
			return c
		}
		if c := cmp.Compare(a.NextBillingAt, b.NextBillingAt); c != 0 {
			return c
		}
		return cmp.Compare(a.ID.String(), b.ID.String())
	})

	return page(result, 0, limit), nil
}

func (s *Store) UpdateSubscription(_ context.Context, sub *subscription.Subscription) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	prev, exists := s.subscriptions[sub.ID.String()]
	if !exists {
		return cadence.ErrSubscriptionNotFound
	}

	oldKey := liveKey(prev.Subscriber, prev.PlanID)
	newKey := liveKey(sub.Subscriber, sub.PlanID)
	if sub.IsLive() && oldKey != newKey {
		if _, taken := s.live[newKey]; taken {
			return cadence.ErrSubscriptionExists
		}
	}
	if prev.IsLive() && s.live[oldKey] == sub.ID.String() {
		delete(s.live, oldKey)
	}
	if sub.IsLive() {
		s.live[newKey] = sub.ID.String()
	}

	s.subscriptions[sub.ID.String()] = *sub
	return nil
}

// ──────────────────────────────────────────────────
// Capability Store implementation
// ──────────────────────────────────────────────────

func (s *Store) UpsertCapability(_ context.Context, c *delegation.Capability) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.capabilities[c.SubscriptionID.String()] = *c
	return nil
}

func (s *Store) GetCapability(_ context.Context, subID id.SubscriptionID) (*delegation.Capability, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if c, ok := s.capabilities[subID.String()]; ok {
		return &c, nil
	}
	return nil, cadence.ErrCapabilityNotFound
}

// ──────────────────────────────────────────────────
// Payment Store implementation
// ──────────────────────────────────────────────────

func (s *Store) CreatePayment(_ context.Context, p *payment.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.payments[p.ID.String()]; exists {
		return cadence.ErrAlreadyExists
	}
	s.payments[p.ID.String()] = *p
	subKey := p.SubscriptionID.String()
	s.paymentsBySub[subKey] = append(s.paymentsBySub[subKey], p.ID.String())
	return nil
}

func (s *Store) GetPayment(_ context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if p, ok := s.payments[paymentID.String()]; ok {
		return &p, nil
	}
	return nil, cadence.ErrPaymentNotFound
}

func (s *Store) ListPayments(_ context.Context, subID id.SubscriptionID, opts payment.ListOpts) ([]*payment.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := s.paymentsBySub[subID.String()]
	result := make([]*payment.Payment, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		p := s.payments[ids[i]]
		result = append(result, &p)
	}

	return page(result, opts.Offset, opts.Limit), nil
}

// ──────────────────────────────────────────────────
// Transactions
// ──────────────────────────────────────────────────

// Transact holds the invocation lock for the duration of fn and restores a
// snapshot of every map when fn fails.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	s.invoke.Lock()
	defer s.invoke.Unlock()

	snapshot := s.snapshot()
	if err := fn(ctx, txStore{s}); err != nil {
		s.mu.Lock()
		s.state = snapshot
		s.mu.Unlock()
		return err
	}
	return nil
}

// txStore is the view handed to Transact callbacks. Nested Transact calls run
// in the enclosing transaction.
type txStore struct {
	*Store
}

func (t txStore) Transact(ctx context.Context, fn func(ctx context.Context, tx store.Store) error) error {
	return fn(ctx, t)
}

func (s *Store) snapshot() state {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bySub := make(map[string][]string, len(s.paymentsBySub))
	for k, v := range s.paymentsBySub {
		bySub[k] = slices.Clone(v)
	}

	return state{
		services:      maps.Clone(s.services),
		authorities:   maps.Clone(s.authorities),
		plans:         maps.Clone(s.plans),
		subscriptions: maps.Clone(s.subscriptions),
		live:          maps.Clone(s.live),
		capabilities:  maps.Clone(s.capabilities),
		payments:      maps.Clone(s.payments),
		paymentsBySub: bySub,
	}
}

// ──────────────────────────────────────────────────
// Core methods
// ──────────────────────────────────────────────────

func (s *Store) Migrate(_ context.Context) error {
	return nil
}

func (s *Store) Ping(_ context.Context) error {
	return nil
}

func (s *Store) Close() error {
	return nil
}

func page[T any](items []T, offset, limit int) []T {
	start := min(offset, len(items))
	end := len(items)
	if limit > 0 && start+limit < end {
		end = start + limit
	}
	return items[start:end]
}
