// Package extension provides the Forge extension adapter for Cadence.
//
// It implements the forge.Extension interface to integrate Cadence
// into a Forge application with automatic dependency discovery,
// DI registration, and lifecycle management.
//
// Configuration can be provided programmatically via Option functions
// or via YAML configuration files under "extensions.cadence" or "cadence" keys.
package extension

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/xraph/forge"
	"github.com/xraph/grove"
	"github.com/xraph/vessel"

	"github.com/xraph/cadence"
	"github.com/xraph/cadence/lease"
	"github.com/xraph/cadence/store"
	"github.com/xraph/cadence/store/memory"
	mongostore "github.com/xraph/cadence/store/mongo"
	pgstore "github.com/xraph/cadence/store/postgres"
	"github.com/xraph/cadence/tokenledger"
)

// ExtensionName is the name registered with Forge.
const ExtensionName = "cadence"

// ExtensionDescription is the human-readable description.
const ExtensionDescription = "Delegated recurring-billing engine"

// ExtensionVersion is the semantic version.
const ExtensionVersion = "0.1.0"

// Ensure Extension implements forge.Extension at compile time.
var _ forge.Extension = (*Extension)(nil)

// Extension adapts Cadence as a Forge extension.
type Extension struct {
	*forge.BaseExtension

	config      Config
	engine      *cadence.Cadence
	store       store.Store
	ledger      tokenledger.Service
	redis       *redis.Client
	useGrove    bool
	cadenceOpts []cadence.Option
}

// New creates a new Cadence Forge extension with the given options.
func New(opts ...Option) *Extension {
	e := &Extension{
		BaseExtension: forge.NewBaseExtension(ExtensionName, ExtensionVersion, ExtensionDescription),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Engine returns the underlying Cadence instance.
// This is nil until Register is called.
func (e *Extension) Engine() *cadence.Cadence { return e.engine }

// Register implements [forge.Extension]. It loads configuration,
// initializes the cadence engine, and registers it in the DI container.
func (e *Extension) Register(fapp forge.App) error {
	if err := e.BaseExtension.Register(fapp); err != nil {
		return err
	}

	if err := e.loadConfiguration(); err != nil {
		return err
	}

	if e.store == nil && e.useGrove {
		s, err := e.resolveGroveStore(fapp)
		if err != nil {
			return err
		}
		e.store = s
	}

	// Use memory store if no store was provided programmatically.
	if e.store == nil {
		e.store = memory.New()
	}
	if e.ledger == nil {
		e.ledger = defaultLedger()
	}

	e.engine = cadence.New(e.store, e.ledger, e.buildCadenceOpts()...)

	return vessel.Provide(fapp.Container(), func() (*cadence.Cadence, error) {
		return e.engine, nil
	})
}

// wallClock drives the default in-memory ledger.
var wallClock = func() int64 { return time.Now().Unix() }

func defaultLedger() *tokenledger.Memory {
	return tokenledger.NewMemoryWithClock(wallClock)
}

// Start implements [forge.Extension].
func (e *Extension) Start(ctx context.Context) error {
	if e.engine == nil {
		return errors.New("cadence: extension not initialized")
	}

	if err := e.engine.Start(ctx); err != nil {
		return err
	}

	e.MarkStarted()
	return nil
}

// Stop implements [forge.Extension].
func (e *Extension) Stop(_ context.Context) error {
	defer e.MarkStopped()

	var errs []error
	if e.engine != nil {
		errs = append(errs, e.engine.Stop())
	}
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	return errors.Join(errs...)
}

// Health implements [forge.Extension].
func (e *Extension) Health(ctx context.Context) error {
	if e.store == nil {
		return errors.New("cadence: store not initialized")
	}
	return e.store.Ping(ctx)
}

// resolveGroveStore builds a store over the grove.DB registered in the
// container, choosing the backend from the driver name.
func (e *Extension) resolveGroveStore(fapp forge.App) (store.Store, error) {
	var (
		db  *grove.DB
		err error
	)
	if e.config.GroveDatabase != "" {
		db, err = vessel.InjectNamed[*grove.DB](fapp.Container(), e.config.GroveDatabase)
	} else {
		db, err = vessel.Inject[*grove.DB](fapp.Container())
	}
	if err != nil {
		return nil, fmt.Errorf("cadence: resolve grove database %q: %w", e.config.GroveDatabase, err)
	}

	return storeForDriver(db)
}

// storeForDriver picks the store implementation for db's driver.
func storeForDriver(db *grove.DB) (store.Store, error) {
	switch name := db.Driver().Name(); name {
	case "pg", "postgres":
		return pgstore.New(db), nil
	case "mongo", "mongodb":
		return mongostore.New(db), nil
	default:
		return nil, fmt.Errorf("cadence: unsupported grove driver %q", name)
	}
}

// buildCadenceOpts constructs cadence.Option values from the resolved config.
func (e *Extension) buildCadenceOpts() []cadence.Option {
	opts := make([]cadence.Option, 0, len(e.cadenceOpts)+5)

	opts = append(opts,
		cadence.WithAgent(e.config.Agent),
		cadence.WithAutoMigrate(!e.config.DisableMigrate),
		cadence.WithCrankConfig(e.config.CrankInterval, e.config.CrankBatchSize, e.config.CrankConcurrency),
	)
	if e.config.Cranker != "" {
		opts = append(opts, cadence.WithCranker(e.config.Cranker, e.config.RewardAccount))
	}
	if e.config.LeaseRedisAddr != "" {
		e.redis = redis.NewClient(&redis.Options{Addr: e.config.LeaseRedisAddr})
		opts = append(opts, cadence.WithLeaser(lease.NewRedis(e.redis, ""), e.config.LeaseTTL))
	}

	// Append any pass-through cadence options.
	opts = append(opts, e.cadenceOpts...)

	return opts
}

// --- Config Loading (mirrors grove/shield extension pattern) ---

// loadConfiguration loads config from YAML files or programmatic sources.
func (e *Extension) loadConfiguration() error {
	programmaticConfig := e.config

	// Try loading from config file.
	fileConfig, configLoaded := e.tryLoadFromConfigFile()

	if !configLoaded {
		if programmaticConfig.RequireConfig {
			return errors.New("cadence: configuration is required but not found in config files; " +
				"ensure 'extensions.cadence' or 'cadence' key exists in your config")
		}

		// Use programmatic config merged with defaults.
		e.config = mergeWithDefaults(programmaticConfig)
	} else {
		// Config loaded from YAML -- merge with programmatic options.
		e.config = mergeConfigurations(fileConfig, programmaticConfig)
	}

	if e.config.GroveDatabase != "" {
		e.useGrove = true
	}

	e.Logger().Debug("cadence: configuration loaded",
		forge.F("disable_migrate", e.config.DisableMigrate),
		forge.F("agent", e.config.Agent),
		forge.F("cranker", e.config.Cranker),
		forge.F("crank_interval", e.config.CrankInterval),
		forge.F("crank_batch_size", e.config.CrankBatchSize),
		forge.F("grove_database", e.config.GroveDatabase),
	)

	return nil
}

// tryLoadFromConfigFile attempts to load config from YAML files.
func (e *Extension) tryLoadFromConfigFile() (Config, bool) {
	cm := e.App().Config()
	var cfg Config

	for _, key := range []string{"extensions.cadence", "cadence"} {
		if !cm.IsSet(key) {
			continue
		}
		if err := cm.Bind(key, &cfg); err == nil {
			e.Logger().Debug("cadence: loaded config from file",
				forge.F("key", key),
			)
			return cfg, true
		}
		e.Logger().Warn("cadence: failed to bind config",
			forge.F("key", key),
			forge.F("error", "bind failed"),
		)
	}

	return Config{}, false
}

// mergeWithDefaults fills zero-valued fields with defaults.
func mergeWithDefaults(cfg Config) Config {
	defaults := DefaultConfig()
	if cfg.Agent == "" {
		cfg.Agent = defaults.Agent
	}
	if cfg.CrankInterval == 0 {
		cfg.CrankInterval = defaults.CrankInterval
	}
	if cfg.CrankBatchSize == 0 {
		cfg.CrankBatchSize = defaults.CrankBatchSize
	}
	if cfg.CrankConcurrency == 0 {
		cfg.CrankConcurrency = defaults.CrankConcurrency
	}
	if cfg.LeaseTTL == 0 {
		cfg.LeaseTTL = defaults.LeaseTTL
	}
	return cfg
}

// mergeConfigurations merges YAML config with programmatic options.
// YAML config takes precedence for most fields; programmatic values fill gaps.
func mergeConfigurations(yamlConfig, programmaticConfig Config) Config {
	// Programmatic bool flags override when true.
	if programmaticConfig.DisableMigrate {
		yamlConfig.DisableMigrate = true
	}

	// String fields: YAML takes precedence.
	fill := func(dst *string, src string) {
		if *dst == "" {
			*dst = src
		}
	}
	fill(&yamlConfig.Agent, programmaticConfig.Agent)
	fill(&yamlConfig.Cranker, programmaticConfig.Cranker)
	fill(&yamlConfig.RewardAccount, programmaticConfig.RewardAccount)
	fill(&yamlConfig.LeaseRedisAddr, programmaticConfig.LeaseRedisAddr)
	fill(&yamlConfig.GroveDatabase, programmaticConfig.GroveDatabase)

	// Duration/int fields: YAML takes precedence, programmatic fills gaps.
	if yamlConfig.CrankInterval == 0 {
		yamlConfig.CrankInterval = programmaticConfig.CrankInterval
	}
	if yamlConfig.CrankBatchSize == 0 {
		yamlConfig.CrankBatchSize = programmaticConfig.CrankBatchSize
	}
	if yamlConfig.CrankConcurrency == 0 {
		yamlConfig.CrankConcurrency = programmaticConfig.CrankConcurrency
	}
	if yamlConfig.LeaseTTL == 0 {
		yamlConfig.LeaseTTL = programmaticConfig.LeaseTTL
	}

	// Fill remaining zeros with defaults.
	return mergeWithDefaults(yamlConfig)
}
