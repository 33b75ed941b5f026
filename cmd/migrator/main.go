package main

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/fastprodman/rewardrecon/internal/infra/logging"
	"github.com/fastprodman/rewardrecon/internal/infra/pgmigrate"
	"github.com/fastprodman/rewardrecon/pkg/envconf"
	_ "github.com/jackc/pgx/v5/stdlib"
)

//go:embed migrations/*.sql
var schemaFS embed.FS

//go:embed test_data/*.sql
var seedFS embed.FS

type migratorConfig struct {
	DSN         string        `env:"PG_DSN"`
	LogLevel    slog.Level    `env:"APP_LOG_LEVEL" default:"INFO"`
	AppEnv      string        `env:"APP_ENV" default:""`
	PingTimeout time.Duration `env:"PG_PING_TIMEOUT" default:"10s"`
}

func main() {
	err := migrateAll()
	if err != nil {
		slog.Error("migration run failed", "error", err)
		os.Exit(1)
	}
}

func migrateAll() error {
	cfg := new(migratorConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger := logging.SetupJSON(cfg.LogLevel)

	db, err := sql.Open("pgx", cfg.DSN)
	if err != nil {
		return fmt.Errorf("open db: %w", err)
	}
	//nolint:errcheck
	defer db.Close()

	ctx, cancel := context.WithTimeout(context.Background(), cfg.PingTimeout)
	defer cancel()

	err = db.PingContext(ctx)
	if err != nil {
		return fmt.Errorf("ping db: %w", err)
	}

	version, err := pgmigrate.Up(db, schemaFS, "migrations", pgmigrate.SchemaTable)
	if err != nil {
		return fmt.Errorf("schema migrations: %w", err)
	}

	logger.Info("schema migrations applied", "version", version)

	if cfg.AppEnv != "DEV" {
		return nil
	}

	version, err = pgmigrate.Up(db, seedFS, "test_data", pgmigrate.SeedTable)
	if err != nil {
		return fmt.Errorf("dev seed migrations: %w", err)
	}

	logger.Info("dev seed applied", "version", version)

	return nil
}
