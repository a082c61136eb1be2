package extension

import "time"

// Config holds the Cadence extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.cadence" or "cadence" keys).
type Config struct {
	// DisableMigrate prevents auto-migration on start.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Agent is the billing-agent identity that holds spending capabilities
	// (default: "cadence").
	Agent string `json:"agent" mapstructure:"agent" yaml:"agent"`

	// Cranker is the identity the background worker collects as. The worker
	// only runs when it is set.
	Cranker string `json:"cranker" mapstructure:"cranker" yaml:"cranker"`

	// RewardAccount receives collector rewards earned by the worker.
	RewardAccount string `json:"reward_account" mapstructure:"reward_account" yaml:"reward_account"`

	// CrankInterval is the time between sweeps (default: 30s).
	CrankInterval time.Duration `json:"crank_interval" mapstructure:"crank_interval" yaml:"crank_interval"`

	// CrankBatchSize caps the subscriptions examined per sweep (default: 100).
	CrankBatchSize int `json:"crank_batch_size" mapstructure:"crank_batch_size" yaml:"crank_batch_size"`

	// CrankConcurrency bounds parallel collections within a sweep (default: 4).
	CrankConcurrency int `json:"crank_concurrency" mapstructure:"crank_concurrency" yaml:"crank_concurrency"`

	// LeaseRedisAddr enables per-subscription Redis leases so several
	// workers can sweep one store.
	LeaseRedisAddr string `json:"lease_redis_addr" mapstructure:"lease_redis_addr" yaml:"lease_redis_addr"`

	// LeaseTTL is how long a collection lease is held (default: 30s).
	LeaseTTL time.Duration `json:"lease_ttl" mapstructure:"lease_ttl" yaml:"lease_ttl"`

	// GroveDatabase is the name of a grove.DB registered in the DI container.
	// When set, the extension resolves this named database and auto-constructs
	// the appropriate store based on the driver type (pg/mongo).
	// When empty and WithGroveDatabase was called, the default (unnamed) DB is used.
	GroveDatabase string `json:"grove_database" mapstructure:"grove_database" yaml:"grove_database"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Agent:            "cadence",
		CrankInterval:    30 * time.Second,
		CrankBatchSize:   100,
		CrankConcurrency: 4,
		LeaseTTL:         30 * time.Second,
	}
}
