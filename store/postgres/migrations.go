package postgres

import (
	"context"

	"github.com/xraph/grove/migrate"
)

// Migrations is the grove migration group for the Cadence store.
var Migrations = migrate.NewGroup("cadence")

func init() {
	Migrations.MustRegister(
		&migrate.Migration{
			Name:    "create_cadence_services",
			Version: "20250101000001",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS cadence_services (
    id               TEXT PRIMARY KEY,
    authority        TEXT NOT NULL,
    payout_account   TEXT NOT NULL,
    accepted_asset   TEXT NOT NULL,
    asset_decimals   SMALLINT NOT NULL CHECK (asset_decimals BETWEEN 0 AND 255),
    plan_count       INTEGER NOT NULL DEFAULT 0 CHECK (plan_count BETWEEN 0 AND 65535),
    subscriber_count BIGINT NOT NULL DEFAULT 0 CHECK (subscriber_count BETWEEN 0 AND 4294967295),
    created_at       BIGINT NOT NULL,
    updated_at       BIGINT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_cadence_services_authority ON cadence_services (authority);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS cadence_services`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_cadence_plans",
			Version: "20250101000002",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS cadence_plans (
    id                 TEXT PRIMARY KEY,
    service_id         TEXT NOT NULL REFERENCES cadence_services (id),
    name               TEXT NOT NULL,
    amount             NUMERIC(20,0) NOT NULL CHECK (amount > 0),
    collector_reward   NUMERIC(20,0) NOT NULL DEFAULT 0,
    interval_secs      BIGINT NOT NULL CHECK (interval_secs > 0),
    grace_period_secs  BIGINT NOT NULL DEFAULT 0 CHECK (grace_period_secs >= 0),
    is_active          BOOLEAN NOT NULL DEFAULT TRUE,
    plan_index         INTEGER NOT NULL CHECK (plan_index BETWEEN 0 AND 65535),
    max_billing_cycles NUMERIC(20,0) NOT NULL DEFAULT 0,
    created_at         BIGINT NOT NULL,
    updated_at         BIGINT NOT NULL,
    CHECK (collector_reward < amount)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_cadence_plans_service_index ON cadence_plans (service_id, plan_index);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS cadence_plans`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_cadence_subscriptions",
			Version: "20250101000003",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS cadence_subscriptions (
    id                   TEXT PRIMARY KEY,
    subscriber           TEXT NOT NULL,
    service_id           TEXT NOT NULL REFERENCES cadence_services (id),
    plan_id              TEXT NOT NULL REFERENCES cadence_plans (id),
    funding_account      TEXT NOT NULL,
    locked_amount        NUMERIC(20,0) NOT NULL,
    locked_reward        NUMERIC(20,0) NOT NULL DEFAULT 0,
    locked_interval_secs BIGINT NOT NULL,
    max_billing_cycles   NUMERIC(20,0) NOT NULL DEFAULT 0,
    next_billing_at      BIGINT NOT NULL,
    last_payment_at      BIGINT NOT NULL DEFAULT 0,
    status               TEXT NOT NULL DEFAULT 'active',
    payments_made        BIGINT NOT NULL DEFAULT 0 CHECK (payments_made BETWEEN 0 AND 4294967295),
    created_at           BIGINT NOT NULL,
    updated_at           BIGINT NOT NULL
);

-- One live subscription per (subscriber, plan); cancelled rows are tombstones.
CREATE UNIQUE INDEX IF NOT EXISTS idx_cadence_subs_live
    ON cadence_subscriptions (subscriber, plan_id) WHERE status <> 'cancelled';
CREATE INDEX IF NOT EXISTS idx_cadence_subs_due
    ON cadence_subscriptions (next_billing_at) WHERE status IN ('active', 'past_due');
CREATE INDEX IF NOT EXISTS idx_cadence_subs_subscriber ON cadence_subscriptions (subscriber, service_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS cadence_subscriptions`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_cadence_capabilities",
			Version: "20250101000004",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS cadence_capabilities (
    id              TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL REFERENCES cadence_subscriptions (id),
    funding_account TEXT NOT NULL,
    holder          TEXT NOT NULL,
    cap             NUMERIC(20,0) NOT NULL DEFAULT 0,
    cycle           BIGINT NOT NULL DEFAULT 0,
    spent           NUMERIC(20,0) NOT NULL DEFAULT 0,
    revoked         BOOLEAN NOT NULL DEFAULT FALSE,
    created_at      BIGINT NOT NULL,
    updated_at      BIGINT NOT NULL
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_cadence_caps_subscription ON cadence_capabilities (subscription_id);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS cadence_capabilities`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "create_cadence_payments",
			Version: "20250101000005",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
CREATE TABLE IF NOT EXISTS cadence_payments (
    id              TEXT PRIMARY KEY,
    subscription_id TEXT NOT NULL REFERENCES cadence_subscriptions (id),
    service_id      TEXT NOT NULL,
    plan_id         TEXT NOT NULL,
    cycle           BIGINT NOT NULL,
    amount          NUMERIC(20,0) NOT NULL,
    reward          NUMERIC(20,0) NOT NULL DEFAULT 0,
    treasury        NUMERIC(20,0) NOT NULL,
    cranker         TEXT NOT NULL DEFAULT '',
    reward_account  TEXT NOT NULL DEFAULT '',
    payout_account  TEXT NOT NULL,
    funding_account TEXT NOT NULL,
    collected_at    BIGINT NOT NULL,
    created_at      BIGINT NOT NULL,
    updated_at      BIGINT NOT NULL,
    CHECK (reward + treasury = amount)
);

CREATE UNIQUE INDEX IF NOT EXISTS idx_cadence_payments_cycle ON cadence_payments (subscription_id, cycle);
CREATE INDEX IF NOT EXISTS idx_cadence_payments_service ON cadence_payments (service_id, collected_at);
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `DROP TABLE IF EXISTS cadence_payments`)
				return err
			},
		},
		&migrate.Migration{
			Name:    "index_cadence_subs_funding",
			Version: "20250101000006",
			Up: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
-- The ledger holds one delegate per account, so one billing subscription per funding account.
CREATE UNIQUE INDEX IF NOT EXISTS idx_cadence_subs_funding
    ON cadence_subscriptions (funding_account) WHERE status IN ('active', 'past_due');
CREATE INDEX IF NOT EXISTS idx_cadence_subs_due_status
    ON cadence_subscriptions (status, next_billing_at) WHERE status IN ('active', 'past_due');
`)
				return err
			},
			Down: func(ctx context.Context, exec migrate.Executor) error {
				_, err := exec.Exec(ctx, `
DROP INDEX IF EXISTS idx_cadence_subs_due_status;
DROP INDEX IF EXISTS idx_cadence_subs_funding;
`)
				return err
			},
		},
	)
}
