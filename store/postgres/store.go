// Package postgres implements store.Store on PostgreSQL through the grove
// pgdriver.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/xraph/grove"
	"github.com/xraph/grove/driver"
	"github.com/xraph/grove/drivers/pgdriver"
	_ "github.com/xraph/grove/drivers/pgdriver/pgmigrate" // registers the pg migration executor
	"github.com/xraph/grove/migrate"

	"github.com/xraph/cadence"
	"github.com/xraph/cadence/delegation"
	"github.com/xraph/cadence/id"
	"github.com/xraph/cadence/payment"
	"github.com/xraph/cadence/plan"
	"github.com/xraph/cadence/service"
	cadencestore "github.com/xraph/cadence/store"
	"github.com/xraph/cadence/subscription"
)

// compile-time interface check
var _ cadencestore.Store = (*Store)(nil)

// querier is satisfied by both *pgdriver.PgDB and *pgdriver.PgTx.
type querier interface {
	NewSelect(model ...any) *pgdriver.SelectQuery
	NewInsert(model any) *pgdriver.InsertQuery
	NewUpdate(model any) *pgdriver.UpdateQuery
	NewDelete(model any) *pgdriver.DeleteQuery
}

// Store implements store.Store using PostgreSQL via Grove ORM.
type Store struct {
	db *grove.DB
	pg *pgdriver.PgDB
	q  querier

	// inTx is set on the view handed to Transact callbacks. Point reads
	// through it take row locks.
	inTx bool
}

// New creates a new PostgreSQL store backed by Grove ORM.
func New(db *grove.DB) *Store {
	pg := pgdriver.Unwrap(db)
	return &Store{db: db, pg: pg, q: pg}
}

// DB returns the underlying grove database for direct access.
func (s *Store) DB() *grove.DB { return s.db }

// Migrate creates the required tables and indexes using the grove orchestrator.
func (s *Store) Migrate(ctx context.Context) error {
	executor, err := migrate.NewExecutorFor(s.pg)
	if err != nil {
		return fmt.Errorf("cadence/postgres: create migration executor: %w", err)
	}
	orch := migrate.NewOrchestrator(executor, Migrations)
	if _, err := orch.Migrate(ctx); err != nil {
		return fmt.Errorf("%w: cadence/postgres: %w", cadence.ErrMigrationFailed, err)
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

// Transact runs fn in a SERIALIZABLE transaction. Serialization failures
// surface as cadence.ErrTransactionFailed so callers can retry.
func (s *Store) Transact(ctx context.Context, fn func(ctx context.Context, tx cadencestore.Store) error) error {
	if s.inTx {
		return fn(ctx, s)
	}

	tx, err := s.pg.BeginTxQuery(ctx, &driver.TxOptions{IsolationLevel: driver.LevelSerializable})
	if err != nil {
		return fmt.Errorf("cadence/postgres: begin: %w", err)
	}
	view := &Store{db: s.db, pg: s.pg, q: tx, inTx: true}

	if err := fn(ctx, view); err != nil {
		_ = tx.Rollback() //nolint:errcheck // the callback error wins
		return mapError(err)
	}
	if err := tx.Commit(); err != nil {
		return mapError(fmt.Errorf("cadence/postgres: commit: %w", err))
	}
	return nil
}

// selectOne scans a single row, locking it when running inside Transact.
func (s *Store) selectOne(ctx context.Context, m any, notFound error, where string, args ...any) error {
	q := s.q.NewSelect(m).Where(where, args...)
	if s.inTx {
		q = q.ForUpdate()
	}
	if err := q.Scan(ctx); err != nil {
		if isNoRows(err) {
			return notFound
		}
		return err
	}
	return nil
}

// ==================== Service Store ====================

func (s *Store) CreateService(ctx context.Context, svc *service.Service) error {
	_, err := s.q.NewInsert(toServiceModel(svc)).Exec(ctx)
	return mapError(err)
}

func (s *Store) GetService(ctx context.Context, serviceID id.ServiceID) (*service.Service, error) {
	m := new(serviceModel)
	if err := s.selectOne(ctx, m, cadence.ErrServiceNotFound, "id = $1", serviceID.String()); err != nil {
		return nil, err
	}
	return fromServiceModel(m)
}

func (s *Store) GetServiceByAuthority(ctx context.Context, authority string) (*service.Service, error) {
	m := new(serviceModel)
	if err := s.selectOne(ctx, m, cadence.ErrServiceNotFound, "authority = $1", authority); err != nil {
		return nil, err
	}
	return fromServiceModel(m)
}

func (s *Store) UpdateService(ctx context.Context, svc *service.Service) error {
	res, err := s.q.NewUpdate(toServiceModel(svc)).WherePK().Exec(ctx)
	return affected(res, err, cadence.ErrServiceNotFound)
}

// ==================== Plan Store ====================

func (s *Store) CreatePlan(ctx context.Context, p *plan.Plan) error {
	_, err := s.q.NewInsert(toPlanModel(p)).Exec(ctx)
	return mapError(err)
}

func (s *Store) GetPlan(ctx context.Context, planID id.PlanID) (*plan.Plan, error) {
	m := new(planModel)
	if err := s.selectOne(ctx, m, cadence.ErrPlanNotFound, "id = $1", planID.String()); err != nil {
		return nil, err
	}
	return fromPlanModel(m)
}

func (s *Store) ListPlans(ctx context.Context, serviceID id.ServiceID, opts plan.ListOpts) ([]*plan.Plan, error) {
	var models []planModel
	q := s.q.NewSelect(&models).Where("service_id = $1", serviceID.String())

	if opts.ActiveOnly {
		q = q.Where("is_active = $2", true)
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("plan_index ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
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
	res, err := s.q.NewUpdate(toPlanModel(p)).WherePK().Exec(ctx)
	return affected(res, err, cadence.ErrPlanNotFound)
}

// ==================== Subscription Store ====================

func (s *Store) CreateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	_, err := s.q.NewInsert(toSubscriptionModel(sub)).Exec(ctx)
	return mapError(err)
}

func (s *Store) GetSubscription(ctx context.Context, subID id.SubscriptionID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	if err := s.selectOne(ctx, m, cadence.ErrSubscriptionNotFound, "id = $1", subID.String()); err != nil {
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) GetLiveSubscription(ctx context.Context, subscriber string, planID id.PlanID) (*subscription.Subscription, error) {
	m := new(subscriptionModel)
	err := s.selectOne(ctx, m, cadence.ErrSubscriptionNotFound,
		"subscriber = $1 AND plan_id = $2 AND status <> $3",
		subscriber, planID.String(), string(subscription.StatusCancelled))
	if err != nil {
		return nil, err
	}
	return fromSubscriptionModel(m)
}

func (s *Store) ListSubscriptions(ctx context.Context, opts subscription.ListOpts) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.q.NewSelect(&models)

	argIdx := 0
	if opts.Subscriber != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("subscriber = $%d", argIdx), opts.Subscriber)
	}
	if !opts.ServiceID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("service_id = $%d", argIdx), opts.ServiceID.String())
	}
	if !opts.PlanID.IsNil() {
		argIdx++
		q = q.Where(fmt.Sprintf("plan_id = $%d", argIdx), opts.PlanID.String())
	}
	if opts.FundingAccount != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("funding_account = $%d", argIdx), opts.FundingAccount)
	}
	if opts.Status != "" {
		argIdx++
		q = q.Where(fmt.Sprintf("status = $%d", argIdx), string(opts.Status))
	}
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	q = q.OrderExpr("id ASC")

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromSubscriptionModels(models)
}

func (s *Store) ListDueSubscriptions(ctx context.Context, now int64, limit int) ([]*subscription.Subscription, error) {
	var models []subscriptionModel
	q := s.q.NewSelect(&models).
		Where("status IN ($1, $2)", string(subscription.StatusActive), string(subscription.StatusPastDue)).
		Where("next_billing_at <= $3", now).
		// 'active' sorts before 'past_due'.
		OrderExpr("status ASC, next_billing_at ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
	}
	return fromSubscriptionModels(models)
}

func (s *Store) UpdateSubscription(ctx context.Context, sub *subscription.Subscription) error {
	res, err := s.q.NewUpdate(toSubscriptionModel(sub)).WherePK().Exec(ctx)
	return affected(res, err, cadence.ErrSubscriptionNotFound)
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

func (s *Store) UpsertCapability(ctx context.Context, c *delegation.Capability) error {
	_, err := s.q.NewInsert(toCapabilityModel(c)).
		OnConflict("(subscription_id) DO UPDATE").
		Set(`"funding_account" = EXCLUDED."funding_account"`).
		Set(`"holder" = EXCLUDED."holder"`).
		Set(`"cap" = EXCLUDED."cap"`).
		Set(`"cycle" = EXCLUDED."cycle"`).
		Set(`"spent" = EXCLUDED."spent"`).
		Set(`"revoked" = EXCLUDED."revoked"`).
		Set(`"updated_at" = EXCLUDED."updated_at"`).
		Exec(ctx)
	return mapError(err)
}

func (s *Store) GetCapability(ctx context.Context, subID id.SubscriptionID) (*delegation.Capability, error) {
	m := new(capabilityModel)
	if err := s.selectOne(ctx, m, cadence.ErrCapabilityNotFound, "subscription_id = $1", subID.String()); err != nil {
		return nil, err
	}
	return fromCapabilityModel(m)
}

// ==================== Payment Store ====================

func (s *Store) CreatePayment(ctx context.Context, p *payment.Payment) error {
	_, err := s.q.NewInsert(toPaymentModel(p)).Exec(ctx)
	return mapError(err)
}

func (s *Store) GetPayment(ctx context.Context, paymentID id.PaymentID) (*payment.Payment, error) {
	m := new(paymentModel)
	err := s.q.NewSelect(m).Where("id = $1", paymentID.String()).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, cadence.ErrPaymentNotFound
		}
		return nil, err
	}
	return fromPaymentModel(m)
}

func (s *Store) ListPayments(ctx context.Context, subID id.SubscriptionID, opts payment.ListOpts) ([]*payment.Payment, error) {
	var models []paymentModel
	q := s.q.NewSelect(&models).
		Where("subscription_id = $1", subID.String()).
		OrderExpr("cycle DESC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}

	if err := q.Scan(ctx); err != nil {
		return nil, err
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

// ==================== Helpers ====================

// Unique index names mapped to the sentinel a duplicate should raise.
var uniqueViolations = map[string]error{
	"idx_cadence_services_authority": cadence.ErrServiceExists,
	"idx_cadence_subs_live":          cadence.ErrSubscriptionExists,
	"idx_cadence_subs_funding":       cadence.ErrFundingAccountInUse,
}

const (
	pgUniqueViolation      = "23505"
	pgSerializationFailure = "40001"
	pgDeadlockDetected     = "40P01"
)

// mapError translates PostgreSQL error codes into cadence sentinels.
func mapError(err error) error {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return err
	}
	switch pgErr.Code {
	case pgUniqueViolation:
		if sentinel, ok := uniqueViolations[pgErr.ConstraintName]; ok {
			return fmt.Errorf("%w: %w", sentinel, err)
		}
		return fmt.Errorf("%w: %w", cadence.ErrAlreadyExists, err)
	case pgSerializationFailure, pgDeadlockDetected:
		return fmt.Errorf("%w: %w", cadence.ErrTransactionFailed, err)
	}
	return err
}

// affected turns a zero-row update into notFound.
func affected(res driver.Result, err, notFound error) error {
	if err != nil {
		return mapError(err)
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return notFound
	}
	return nil
}

// isNoRows checks for the standard sql.ErrNoRows sentinel.
func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows) || errors.Is(err, pgx.ErrNoRows)
}
