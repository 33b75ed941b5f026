package main

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/fastprodman/rewardrecon/internal/config"
)

const (
	storeDriverPostgres = "postgres"
	storeDriverMemory   = "memory"
)

type apiConfig struct {
	Port            uint16        `env:"APP_PORT" default:"8080"`
	LogLevel        slog.Level    `env:"APP_LOG_LEVEL" default:"INFO"`
	ShutdownTimeout time.Duration `env:"APP_SHUTDOWN_TIMEOUT" default:"10s"`
	StoreDriver     string        `env:"STORE_DRIVER" default:"postgres"`

	Postgres  config.PostgresConfig
	Redis     config.RedisConfig
	Reconcile config.ReconcileConfig
	Vendors   config.VendorsConfig
}

func (c *apiConfig) validate() error {
	switch c.StoreDriver {
	case storeDriverPostgres:
		if c.Postgres.DSN == "" {
			return fmt.Errorf("PG_DSN is required with STORE_DRIVER=%s", storeDriverPostgres)
		}
	case storeDriverMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q", c.StoreDriver)
	}

	if !c.Reconcile.PointsPerUnit.IsPositive() {
		return fmt.Errorf("POINTS_PER_CURRENCY_UNIT must be > 0")
	}

	return nil
}
