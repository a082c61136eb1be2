package extension

import (
	"time"

	"github.com/xraph/cadence"
	"github.com/xraph/cadence/plugin"
	"github.com/xraph/cadence/store"
	"github.com/xraph/cadence/tokenledger"
)

// Option configures the Cadence Forge extension.
type Option func(*Extension)

// WithStore sets the store for the cadence engine.
func WithStore(s store.Store) Option {
	return func(e *Extension) {
		e.store = s
	}
}

// WithLedger sets the token ledger payments settle on. Without it the
// extension runs on an in-memory ledger.
func WithLedger(l tokenledger.Service) Option {
	return func(e *Extension) {
		e.ledger = l
	}
}

// WithCadenceOption passes a cadence.Option through to the underlying engine.
func WithCadenceOption(opt cadence.Option) Option {
	return func(e *Extension) {
		e.cadenceOpts = append(e.cadenceOpts, opt)
	}
}

// WithPlugin registers a cadence plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(e *Extension) {
		e.cadenceOpts = append(e.cadenceOpts, cadence.WithPlugin(p))
	}
}

// WithConfig sets the Forge extension configuration.
func WithConfig(cfg Config) Option {
	return func(e *Extension) { e.config = cfg }
}

// WithDisableMigrate prevents auto-migration on start.
func WithDisableMigrate() Option {
	return func(e *Extension) { e.config.DisableMigrate = true }
}

// WithRequireConfig requires config to be present in YAML files.
// If true and no config is found, Register returns an error.
func WithRequireConfig(require bool) Option {
	return func(e *Extension) { e.config.RequireConfig = require }
}

// WithAgent sets the billing-agent identity.
func WithAgent(identity string) Option {
	return func(e *Extension) { e.config.Agent = identity }
}

// WithCranker enables the background crank worker.
func WithCranker(identity, rewardAccount string) Option {
	return func(e *Extension) {
		e.config.Cranker = identity
		e.config.RewardAccount = rewardAccount
	}
}

// WithCrankInterval sets the time between sweeps.
func WithCrankInterval(d time.Duration) Option {
	return func(e *Extension) { e.config.CrankInterval = d }
}

// WithCrankBatchSize sets the subscriptions examined per sweep.
func WithCrankBatchSize(n int) Option {
	return func(e *Extension) { e.config.CrankBatchSize = n }
}

// WithLeaseRedis enables Redis-backed collection leases at addr.
func WithLeaseRedis(addr string, ttl time.Duration) Option {
	return func(e *Extension) {
		e.config.LeaseRedisAddr = addr
		e.config.LeaseTTL = ttl
	}
}

// WithGroveDatabase sets the name of the grove.DB to resolve from the DI container.
// The extension will auto-construct the appropriate store backend (postgres/mongo)
// based on the grove driver type. Pass an empty string to use the default (unnamed) grove.DB.
func WithGroveDatabase(name string) Option {
	return func(e *Extension) {
		e.config.GroveDatabase = name
		e.useGrove = true
	}
}
