// Package mongo implements store.Store on MongoDB through the grove
// mongodriver. Writes inside Transact run in a multi-document transaction,
// which requires a replica set.
package mongo

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/v2/bson"
	"go.mongodb.org/mongo-driver/v2/mongo"
	"go.mongodb.org/mongo-driver/v2/mongo/options"

	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"

	"github.com/xraph/cadence"
	"github.com/xraph/cadence/delegation"
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/payment"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/service"
	cadencestore "github.com/xraph/cadence/store"
	"github.com/xraph/cadence/subscription"
)

// Collection name constants.
const (
	colServices      = "cadence_services"
	colPlans         = "cadence_plans"
	colSubscriptions = "cadence_subscriptions"
	colCapabilities  = "cadence_capabilities"
	colPayments      = "cadence_payments"
)

// Index names; duplicate-key errors are matched against them.
const (
	idxServiceAuthority = "cadence_services_authority"
	idxPlanIndex        = "cadence_plans_service_index"
	idxSubLive          = "cadence_subs_live"
	idxSubDue           = "cadence_subs_due"
	idxSubFunding       = "cadence_subs_funding"
	idxCapSubscription  = "cadence_caps_subscription"
	idxPaymentCycle     = "cadence_payments_cycle"
)

// compile-time interface check
var _ cadencestore.Store = (*Store)(nil)

// querier is satisfied by both *mongodriver.MongoDB and *mongodriver.MongoTx.
type querier interface {
	NewFind(model ...any) *mongodriver.FindQuery
	NewInsert(model any) *mongodriver.InsertQuery
	NewUpdate(model any) *mongodriver.UpdateQuery
	NewDelete(model any) *mongodriver.DeleteQuery
}

// Store implements store.Store using MongoDB via Grove ORM.
type Store struct {
	db  *grove.DB
	mdb *mongodriver.MongoDB
	q   querier
	tx  *mongodriver.MongoTx
}

// New creates a new MongoDB store backed by Grove ORM.
func New(db *grove.DB) *Store {
	mdb := mongodriver.Unwrap(db)
	return &Store{
		db:  db,
		mdb: mdb,
		q:   mdb,
	}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates indexes for all cadence collections.
func (s *Store) Migrate(ctx context.Context) error {
	for col, models := range migrationIndexes() {
		if len(models) == 0 {
			continue
		}
		if _, err := s.mdb.Collection(col).Indexes().CreateMany(ctx, models); err != nil {
			return fmt.Errorf("%w: cadence/mongo: %s indexes: %w", cadence.ErrMigrationFailed, col, err)
		}
	}
	return nil
}

// Ping checks database connectivity.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.Ping(ctx)
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Transact runs fn inside a session transaction. Concurrent writers to the
// same document abort with a write conflict, surfaced as
// cadence.ErrTransactionFailed.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx cadencestore.Store) error) error {
	if s.tx != nil {
		return fn(ctx, s)
	}

	raw, err := s.mdb.GroveTx(ctx, 0, false)
	if err != nil {
		return fmt.Errorf("cadence/mongo: begin: %w", err)
	}
	tx, ok := raw.(*mongodriver.MongoTx)
	if !ok {
		return fmt.Errorf("cadence/mongo: unexpected transaction type %T", raw)
	}
	view := &Store{db: s.db, mdb: s.mdb, q: tx, tx: tx}

	if err := fn(ctx, view); err != nil {
		_ = tx.Rollback() //nolint:errcheck // the callback error wins
		return mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("cadence/mongo: commit: %w", err))
	}
	return nil
}

// findOne loads a single document matching filter into m.
func (s *Store) findOne(ctx context.Context, m any, notFound error, filter bson.M) error {
	if err := s.q.NewFind(m).Filter(filter).Scan(ctx); err != nil {
		if isNoDocuments(err) {
			return notFound
		}
		return err
	}
	return nil
}

// replace overwrites every field of the document with m's primary key.
func (s *Store) replace(ctx context.Context, m any, pk string, notFound error) error {
	res, err := s.q.NewUpdate(m).Filter(bson.M{"_id": pk}).Exec(ctx)
	if err != nil {
		return mapError(err)
	}
	if res.MatchedCount() == 0 {
		return notFound
	}
	return nil
}

// ==================== Service Store ====================

func (s *Store) CreateService(ctx context.Context, svc *service.Service) error {
	_, err := s.q.NewInsert(toServiceModel(svc)).Exec(ctx)
	return mapError(err)
}

func (s *Store) GetService(ctx context.Context, serviceID id.ServiceID) (*service.Service, error) {
	var m serviceModel
	if err := s.findOne(ctx, &m, cadence.ErrServiceNotFound, bson.M{"_id": serviceID.String()}); err != nil {
		return nil, err
	}
	return fromServiceModel(&m)
}

func (s *Store) GetServiceByAuthority(ctx context.Context, authority string) (*service.Service, error) {
	var m serviceModel
	if err := s.findOne(ctx, &m, cadence.ErrServiceNotFound, bson.M{"authority": authority}); err != nil {
		return nil, err
	}
	return fromServiceModel(&m)
}

func (s *Store) UpdateService(ctx context.Context, svc *service.Service) error {
	m := toServiceModel(svc)
	return s.replace(ctx, m, m.ID, cadence.ErrServiceNotFound)
}

// ==================== Plan Store ====================

func (s *Store) CreatePlan(ctx context.Context, p *plan.Plan) error {
	_, err := s.q.NewInsert(toPlanModel(p)).Exec(ctx)
	return mapError(err)
}

func (s *Store) GetPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error) {
	var m planModel
	if err := s.findOne(ctx, &m, cadence.ErrPlanNotFound, bson.M{"_id": planID.String()}); err != nil {
		return nil, err
	}
	return fromPlanModel(&m)
}

func (s *Store) ListPlans(ctx context.Context, serviceID id.ServiceID, opts plan.ListOpts) ([]*plan.Plan, error) {
	var models []planModel

	filter := bson.M{"service_id": serviceID.String()}
	if opts.ActiveOnly {
		filter["is_active"] = true
	}

	q := s.q.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "plan_index", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("cadence/mongo: list plans: %w", err)
	}

	result := make([]*plan.Plan, len(models))
	for i := range models {
		p, err := fromPlanModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

func (s *Store) UpdatePlan(ctx context.Context, p *plan.Plan) error {
	m := toPlanModel(p)
	return s.replace(ctx, m, m.ID, cadence.ErrPlanNotFound)
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	_, err := s.q.NewInsert(toSubscriptionModel(sub)).Exec(ctx)
	return mapError(err)
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	var m subscriptionModel
	if err := s.findOne(ctx, &m, cadence.ErrSubscriptionNotFound, bson.M{"_id": subID.String()}); err != nil {
		return nil, err
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) GetLiveSubscription(ctx context.Context, subscriber string, planID id.PlanID) (*subscription.Subscription, error) {
	var m subscriptionModel
	filter := bson.M{"subscriber": subscriber, "plan_id": planID.String(), "live": true}
	if err := s.findOne(ctx, &m, cadence.ErrSubscriptionNotFound, filter); err != nil {
		return nil, err
	}
	return fromSubscriptionModel(&m)
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel

	filter := bson.M{}
	if opts.Subscriber != "" {
		filter["subscriber"] = opts.Subscriber
	}
	if !opts.ServiceID.IsNil() {
		filter["service_id"] = opts.ServiceID.String()
	}
	if !opts.PlanID.IsNil() {
		filter["plan_id"] = opts.PlanID.String()
	}
	if opts.FundingAccount != "" {
		filter["funding_account"] = opts.FundingAccount
	}
	if opts.Status != "" {
		filter["status"] = string(opts.Status)
	}

	q := s.q.NewFind(&models).
		Filter(filter).
		Sort(bson.D{{Key: "_id", Value: 1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("cadence/mongo: list subscriptions: %w", err)
	}
	return fromSubscriptionModels(models)
}

func (s *Store) ListDueSubscriptions(ctx context.Context, now int64, limit int) ([]*subscription.Subscription, error) {
	var models []subscriptionModel

	filter := bson.M{
		"status": bson.M{"$in": bson.A{
			string(subscription.StatusActive),
			string(subscription.StatusPastDue),
		}},
		"next_billing_at": bson.M{"$lte": now},
	}
	q := s.q.NewFind(&models).
		Filter(filter).
		// "active" sorts before "past_due".
		Sort(bson.D{{Key: "status", Value: 1}, {Key: "next_billing_at", Value: 1}, {Key: "_id", Value: 1}})
	if limit > 0 {
		q = q.Limit(int64(limit))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("cadence/mongo: list due subscriptions: %w", err)
	}
	return fromSubscriptionModels(models)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	m := toSubscriptionModel(sub)
	return s.replace(ctx, m, m.ID, cadence.ErrSubscriptionNotFound)
}

func fromSubscriptionModels(models []subscriptionModel) ([]*subscription.Subscription, error) {
	result := make([]*subscription.Subscription, len(models))
	for i := range models {
		sub, err := fromSubscriptionModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = sub
	}
	return result, nil
}

// ==================== Capability Store ====================

// UpsertCapability keys on the token ID, which stays fixed for the life of a
// subscription; the unique subscription_id index rejects a second token.
func (s *Store) UpsertCapability(ctx context.Context, c *delegation.Capability) error {
	m := toCapabilityModel(c)
	_, err := s.q.NewUpdate(m).
		Filter(bson.M{"_id": m.ID}).
		Upsert().
		Exec(ctx)
	return mapError(err)
}

func (s *Store) GetCapability(ctx context.Context, subID id.SubscriptionID) (*delegation.Capability, error) {
	var m capabilityModel
	if err := s.findOne(ctx, &m, cadence.ErrCapabilityNotFound, bson.M{"subscription_id": subID.String()}); err != nil {
		return nil, err
	}
	return fromCapabilityModel(&m)
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	_, err := s.q.NewInsert(toPaymentModel(p)).Exec(ctx)
	return mapError(err)
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	var m paymentModel
	if err := s.findOne(ctx, &m, cadence.ErrPaymentNotFound, bson.M{"_id": paymentID.String()}); err != nil {
		return nil, err
	}
	return fromPaymentModel(&m)
}

func (s *Store) ListPayments(ctx context.Context, subID id.SubscriptionID, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel

	q := s.q.NewFind(&models).
		Filter(bson.M{"subscription_id": subID.String()}).
		Sort(bson.D{{Key: "cycle", Value: -1}})
	if opts.Limit > 0 {
		q = q.Limit(int64(opts.Limit))
	}
	if opts.Offset > 0 {
		q = q.Skip(int64(opts.Offset))
	}

	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("cadence/mongo: list payments: %w", err)
	}

	result := make([]*payment.Payment, len(models))
	for i := range models {
		p, err := fromPaymentModel(&models[i])
		if err != nil {
			return nil, err
		}
		result[i] = p
	}
	return result, nil
}

// ==================== Indexes ====================

func migrationIndexes() map[string][]mongo.IndexModel {
	return map[string][]mongo.IndexModel{
		colServices: {
			{
				Keys:    bson.D{{Key: "authority", Value: 1}},
				Options: options.Index().SetName(idxServiceAuthority).SetUnique(true),
			},
		},
		colPlans: {
			{
				Keys:    bson.D{{Key: "service_id", Value: 1}, {Key: "plan_index", Value: 1}},
				Options: options.Index().SetName(idxPlanIndex).SetUnique(true),
			},
		},
		colSubscriptions: {
			{
				Keys: bson.D{{Key: "subscriber", Value: 1}, {Key: "plan_id", Value: 1}},
				Options: options.Index().
					SetName(idxSubLive).
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"live": true}),
			},
			{
				Keys:    bson.D{{Key: "status", Value: 1}, {Key: "next_billing_at", Value: 1}},
				Options: options.Index().SetName(idxSubDue),
			},
			{
				Keys: bson.D{{Key: "funding_account", Value: 1}},
				Options: options.Index().
					SetName(idxSubFunding).
					SetUnique(true).
					SetPartialFilterExpression(bson.M{"billing": true}),
			},
			{Keys: bson.D{{Key: "service_id", Value: 1}}},
		},
		colCapabilities: {
			{
				Keys:    bson.D{{Key: "subscription_id", Value: 1}},
				Options: options.Index().SetName(idxCapSubscription).SetUnique(true),
			},
		},
		colPayments: {
			{
				Keys:    bson.D{{Key: "subscription_id", Value: 1}, {Key: "cycle", Value: 1}},
				Options: options.Index().SetName(idxPaymentCycle).SetUnique(true),
			},
		},
	}
}

// ==================== Helpers ====================

// Unique index names mapped to the sentinel a duplicate should raise.
var duplicateKeys = map[string]error{
	idxServiceAuthority: cadence.ErrServiceExists,
	idxSubLive:          cadence.ErrSubscriptionExists,
	idxSubFunding:       cadence.ErrFundingAccountInUse,
}

// mapError translates driver errors into cadence sentinels.
func mapError(err error) error {
	if err == nil {
		return nil
	}
	if mongo.IsDuplicateKeyError(err) {
		msg := err.Error()
		for idx, sentinel := range duplicateKeys {
			if strings.Contains(msg, idx) {
				return fmt.Errorf("%w: %w", sentinel, err)
			}
		}
		return fmt.Errorf("%w: %w", cadence.ErrAlreadyExists, err)
	}
	var labeled mongo.LabeledError
	if errors.As(err, &labeled) && labeled.HasErrorLabel("TransientTransactionError") {
		return fmt.Errorf("%w: %w", cadence.ErrTransactionFailed, err)
	}
	return err
}

func isNoDocuments(err error) bool {
	return errors.Is(err, mongo.ErrNoDocuments)
}
