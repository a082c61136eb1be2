package cadence

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/xraph/cadence/delegation"
	"github.com/xraph/cadence/lease"
	"github.com/xraph/cadence/plugin"
	"github.com/xraph/cadence/store"
	"github.com/xraph/cadence/tokenledger"
)

// DefaultAgent is the billing-agent identity capabilities are granted to.
const DefaultAgent = "cadence"

// Cadence is the recurring-billing engine.
type Cadence struct {
	store      store.Store
	ledger     tokenledger.Service
	delegation *delegation.Manager
	plugins    *plugin.Registry
	logger     *slog.Logger
	agent      string
	migrate    bool

	// Crank worker
	cranker          string
	rewardAccount    string
	crankInterval    time.Duration
	crankBatchSize   int
	crankConcurrency int
	leaser           lease.Leaser
	leaseTTL         time.Duration

	stopChan chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a new Cadence engine over s, settling value on ledger.
func New(s store.Store, ledger tokenledger.Service, opts ...Option) *Cadence {
	c := &Cadence{
		store:            s,
		ledger:           ledger,
		delegation:       delegation.NewManager(ledger),
		plugins:          plugin.NewRegistry(),
		logger:           slog.Default(),
		agent:            DefaultAgent,
		migrate:          true,
		crankInterval:    30 * time.Second,
		crankBatchSize:   100,
		crankConcurrency: 4,
		leaseTTL:         30 * time.Second,
		stopChan:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Option configures a Cadence instance.
type Option func(*Cadence)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Cadence) {
		c.logger = logger
		c.plugins.WithLogger(logger)
	}
}

// WithPlugin registers a plugin.
func WithPlugin(p plugin.Plugin) Option {
	return func(c *Cadence) {
		_ = c.plugins.Register(p) //nolint:errcheck // best-effort plugin registration during init
	}
}

// WithAgent sets the billing-agent identity that holds spending capabilities.
func WithAgent(identity string) Option {
	return func(c *Cadence) {
		if identity != "" {
			c.agent = identity
		}
	}
}

// WithAutoMigrate controls whether Start migrates the store. Enabled by default.
func WithAutoMigrate(enabled bool) Option {
	return func(c *Cadence) { c.migrate = enabled }
}

// WithCranker enables the background crank worker. Collections are made as
// identity, and rewards are paid to rewardAccount when it is non-empty.
func WithCranker(identity, rewardAccount string) Option {
	return func(c *Cadence) {
		c.cranker = identity
		c.rewardAccount = rewardAccount
	}
}

// WithCrankConfig configures the crank sweep. Zero values keep the defaults.
func WithCrankConfig(interval time.Duration, batchSize, concurrency int) Option {
	return func(c *Cadence) {
		if interval > 0 {
			c.crankInterval = interval
		}
		if batchSize > 0 {
			c.crankBatchSize = batchSize
		}
		if concurrency > 0 {
			c.crankConcurrency = concurrency
		}
	}
}

// WithLeaser guards each crank collection with a lease held for ttl, so that
// several workers can sweep the same store.
func WithLeaser(l lease.Leaser, ttl time.Duration) Option {
	return func(c *Cadence) {
		c.leaser = l
		if ttl > 0 {
			c.leaseTTL = ttl
		}
	}
}

// Store returns the underlying store.
func (c *Cadence) Store() store.Store { return c.store }

// Ledger returns the ledger service.
func (c *Cadence) Ledger() tokenledger.Service { return c.ledger }

// Agent returns the billing-agent identity.
func (c *Cadence) Agent() string { return c.agent }

// Start migrates the store, initializes plugins, and launches the crank
// worker when a cranker is configured.
func (c *Cadence) Start(ctx context.Context) error {
	if c.migrate {
		if err := c.store.Migrate(ctx); err != nil {
			return err
		}
	}

	c.plugins.EmitInit(ctx, c)

	if c.cranker != "" {
		c.wg.Add(1)
		go c.crankWorker(ctx)
	}

	c.logger.Info("cadence started",
		"agent", c.agent,
		"cranker", c.cranker,
		"crank_interval", c.crankInterval,
		"crank_batch_size", c.crankBatchSize,
		"crank_concurrency", c.crankConcurrency,
	)

	return nil
}

// Stop drains the crank worker and closes the store.
func (c *Cadence) Stop() error {
	c.stopOnce.Do(func() { close(c.stopChan) })
	c.wg.Wait()

	ctx := context.Background()
	c.plugins.EmitShutdown(ctx)

	return c.store.Close()
}

// invoke runs fn as one atomic invocation: ledger effects and store writes
// either all land or none do. now is read once from the ledger clock.
func (c *Cadence) invoke(ctx context.Context, fn func(ctx context.Context, tx store.Store, now int64) error) error {
	return c.ledger.Atomic(ctx, func(ctx context.Context) error {
		now, err := c.ledger.Now(ctx)
		if err != nil {
			return err
		}
		return c.store.Transact(ctx, func(ctx context.Context, tx store.Store) error {
			return fn(ctx, tx, now)
		})
	})
}
