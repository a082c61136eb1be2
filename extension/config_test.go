package extension

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestMergeWithDefaults(t *testing.T) {
	cfg := mergeWithDefaults(Config{CrankBatchSize: 10})

	assert.Equal(t, "cadence", cfg.Agent)
	assert.Equal(t, 10, cfg.CrankBatchSize)
	assert.Equal(t, 30*time.Second, cfg.CrankInterval)
	assert.Equal(t, 4, cfg.CrankConcurrency)
	assert.Equal(t, 30*time.Second, cfg.LeaseTTL)
}

func TestMergeConfigurations(t *testing.T) {
	yaml := Config{
		Cranker:       "ops",
		CrankInterval: time.Minute,
	}
	programmatic := Config{
		DisableMigrate: true,
		Cranker:        "ignored",
		RewardAccount:  "ops-usdc",
		CrankInterval:  time.Second,
		CrankBatchSize: 25,
		GroveDatabase:  "billing",
	}

	cfg := mergeConfigurations(yaml, programmatic)

	assert.True(t, cfg.DisableMigrate)
	assert.Equal(t, "ops", cfg.Cranker)
	assert.Equal(t, "ops-usdc", cfg.RewardAccount)
	assert.Equal(t, time.Minute, cfg.CrankInterval)
	assert.Equal(t, 25, cfg.CrankBatchSize)
	assert.Equal(t, "billing", cfg.GroveDatabase)
	assert.Equal(t, "cadence", cfg.Agent)
}

func TestOptions(t *testing.T) {
	e := New(
		WithCranker("ops", "ops-usdc"),
		WithCrankInterval(time.Minute),
		WithCrankBatchSize(5),
		WithLeaseRedis("localhost:6379", time.Second),
		WithGroveDatabase(""),
		WithDisableMigrate(),
	)

	assert.Equal(t, "ops", e.config.Cranker)
	assert.Equal(t, "ops-usdc", e.config.RewardAccount)
	assert.Equal(t, time.Minute, e.config.CrankInterval)
	assert.Equal(t, 5, e.config.CrankBatchSize)
	assert.Equal(t, "localhost:6379", e.config.LeaseRedisAddr)
	assert.True(t, e.useGrove)
	assert.True(t, e.config.DisableMigrate)
	assert.Nil(t, e.Engine())
}
