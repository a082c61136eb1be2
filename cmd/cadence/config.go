package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/xraph/grove"
	"github.com/xraph/grove/drivers/mongodriver"
	"github.com/xraph/grove/drivers/pgdriver"

	"github.com/xraph/cadence/store"
	mongostore "github.com/xraph/cadence/store/mongo"
	pgstore "github.com/xraph/cadence/store/postgres"
)

// config is read from CADENCE_* environment variables.
type config struct {
	Driver   string `env:"CADENCE_DRIVER"    envDefault:"postgres"`
	DSN      string `env:"CADENCE_DSN,required,notEmpty"`
	DueLimit int    `env:"CADENCE_DUE_LIMIT" envDefault:"50"`
	LogLevel string `env:"CADENCE_LOG_LEVEL" envDefault:"info"`
}

func loadConfig() (config, error) {
	cfg, err := env.ParseAs[config]()
	if err != nil {
		return config{}, fmt.Errorf("cadence: read environment: %w", err)
	}
	switch cfg.Driver {
	case "postgres", "mongo":
	default:
		return config{}, fmt.Errorf("cadence: unsupported CADENCE_DRIVER %q", cfg.Driver)
	}
	return cfg, nil
}

func (c config) logger() *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(strings.ToUpper(c.LogLevel))); err != nil {
		level = slog.LevelInfo
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// openStore connects to the configured backend.
func (c config) openStore(ctx context.Context) (store.Store, error) {
	switch c.Driver {
	case "mongo":
		mdb := mongodriver.New()
		if err := mdb.Open(ctx, c.DSN); err != nil {
			return nil, err
		}
		db, err := grove.Open(mdb)
		if err != nil {
			return nil, err
		}
		return mongostore.New(db), nil
	default:
		pg := pgdriver.New()
		if err := pg.Open(ctx, c.DSN); err != nil {
			return nil, err
		}
		db, err := grove.Open(pg)
		if err != nil {
			return nil, err
		}
		return pgstore.New(db), nil
	}
}
