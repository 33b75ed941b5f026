package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/fastprodman/rewardrecon/internal/api"
	"github.com/fastprodman/rewardrecon/internal/infra/logging"
	"github.com/fastprodman/rewardrecon/internal/infra/pgutils"
	"github.com/fastprodman/rewardrecon/internal/models"
	rediscache "github.com/fastprodman/rewardrecon/internal/repos/balancecache/redis"
	"github.com/fastprodman/rewardrecon/internal/services/reconcile"
	"github.com/fastprodman/rewardrecon/internal/store"
	"github.com/fastprodman/rewardrecon/internal/store/memory"
	pgstore "github.com/fastprodman/rewardrecon/internal/store/postgres"
	"github.com/fastprodman/rewardrecon/pkg/envconf"
	"github.com/fastprodman/rewardrecon/pkg/shutdownqueue"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := run(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "error running api: %v\n", err)
		//nolint:gocritic
		os.Exit(1)
	}
}

func run(ctx context.Context) (retErr error) {
	cfg := new(apiConfig)

	err := envconf.Load(cfg)
	if err != nil {
		return fmt.Errorf("init config: %w", err)
	}

	err = cfg.validate()
	if err != nil {
		return fmt.Errorf("validate config: %w", err)
	}

	logger := logging.SetupJSON(cfg.LogLevel)

	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()

		serr := shutdownqueue.Shutdown(shutdownCtx)
		if serr != nil {
			retErr = errors.Join(retErr, serr)
		}
	}()

	// --- Infra ---
	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}

	opts := []reconcile.Option{
		reconcile.WithLogger(logger),
		reconcile.WithMaxAttempts(cfg.Reconcile.MaxAttempts),
	}

	if cfg.Redis.Addr != "" {
		cache, cerr := rediscache.New(ctx, cfg.Redis)
		if cerr != nil {
			return fmt.Errorf("open redis: %w", cerr)
		}

		shutdownqueue.Add("redis", func(context.Context) error {
			return cache.Close()
		})

		opts = append(opts, reconcile.WithCache(cache))
	}

	svc := reconcile.New(st, opts...)

	for _, v := range []models.Vendor{models.VendorOfferToro, models.VendorAdGem, models.VendorCPX} {
		slog.Info("vendor postbacks",
			"vendor", v,
			"enabled", cfg.Vendors.For(v).Secret != "",
			"algorithm", cfg.Vendors.For(v).Algorithm,
		)
	}

	// --- HTTP server ---
	srv := api.NewServer(cfg.Port, svc, api.Options{
		Vendors:       cfg.Vendors,
		PointsPerUnit: cfg.Reconcile.PointsPerUnit,
		Timeout:       cfg.Reconcile.Timeout,
		Logger:        logger,
	})

	// Register HTTP server graceful shutdown
	shutdownqueue.Add("http", func(c context.Context) error {
		slog.Info("Shut down server")

		err := srv.Shutdown(c)
		if err != nil {
			return fmt.Errorf("shutdown srv: %w", err)
		}

		return nil
	})

	errCh := make(chan error, 1)

	go func() {
		serr := srv.ListenAndServe()
		// http.ErrServerClosed is the normal path during Shutdown
		if serr != nil && !errors.Is(serr, http.ErrServerClosed) {
			errCh <- serr
			return
		}

		errCh <- nil
	}()

	slog.Info("API started", "port", cfg.Port, "store", cfg.StoreDriver)

	select {
	case <-ctx.Done():
		return nil
	case serr := <-errCh:
		if serr != nil {
			return fmt.Errorf("server error: %w", serr)
		}

		return nil
	}
}

func openStore(ctx context.Context, cfg *apiConfig) (store.Store, error) {
	if cfg.StoreDriver == storeDriverMemory {
		slog.Warn("using in-memory store; balances are lost on restart")

		return memory.New(), nil
	}

	db, err := pgutils.OpenDB(ctx, cfg.Postgres)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	shutdownqueue.Add("db", func(context.Context) error {
		return db.Close()
	})

	return pgstore.New(db), nil
}
