package store

import (
	"context"

	"github.com/xraph/cadence/delegation"
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/payment"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/service"
	"github.com/xraph/cadence/subscription"
)

// Store is the unified storage interface for all Cadence entities.
// Instead of embedding the sub-interfaces, we explicitly declare all methods
// to avoid naming conflicts.
type Store interface {
	// Service methods
	CreateService(ctx context.Context, s *service.Service) error
	GetService(ctx context.Context, serviceID id.ServiceID) (*service.Service, error)
	GetServiceByAuthority(ctx context.Context, authority string) (*service.Service, error)
	UpdateService(ctx context.Context, s *service.Service) error

	// Plan methods
	CreatePlan(ctx context.Context, p *plan.Plan) error
	GetPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error)
	ListPlans(ctx context.Context, serviceID id.ServiceID, opts plan.ListOpts) ([]*plan.Plan, error)
	UpdatePlan(ctx context.Context, p *plan.Plan) error

	// Subscription methods
	CreateSubscription(ctx context.Context, s *subscription.Subscription) error
	GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error)
	GetLiveSubscription(ctx context.Context, subscriber string, planID id.PlanID) (*subscription.Subscription, error)
	ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error)
	ListDueSubscriptions(ctx context.Context, now int64, limit int) ([]*subscription.Subscription, error)
	UpdateSubscription(ctx context.Context, s *subscription.Subscription) error

	// Capability methods
	UpsertCapability(ctx context.Context, c *delegation.Capability) error
	GetCapability(ctx context.Context, subID id.SubscriptionID) (*delegation.Capability, error)

	// Payment methods
	CreatePayment(ctx context.Context, p *payment.Payment) error
	GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error)
	ListPayments(ctx context.Context, subID id.SubscriptionID, opts payment.ListOpts) ([]*payment.Payment, error)

	// Transact runs fn against a transactional view of the store. Reads made
	// through tx lock what they read until fn returns; every write is
	// discarded when fn returns an error. Calling Transact on tx runs fn
	// inside the enclosing transaction.
	Transact(ctx context.Context, fn func(ctx context.Context, tx Store) error) error

	// Core methods
	Migrate(ctx context.Context) error
	Ping(ctx context.Context) error
	Close() error
}

// Compile-time check that the unified store satisfies the delegation store.
var _ delegation.Store = (Store)(nil)
