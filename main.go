package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"go-validator-pool-sync/config"
	"go-validator-pool-sync/controller"
	"go-validator-pool-sync/db"
	"go-validator-pool-sync/ledger"
	"go-validator-pool-sync/logger"
	"go-validator-pool-sync/service"
)

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// a missing .env file is fine, the environment may be set already
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fatal(err)
	}
	if err := logger.InitLogger(cfg.LogLevel, cfg.LogFile); err != nil {
		fatal(err)
	}
	defer logger.Sync()

	if err := run(ctx, cfg); err != nil && ctx.Err() == nil {
		logger.LogError(err)
		os.Exit(1)
	}
	logger.LogInfo("Server exited", zap.String("port", cfg.Port))
}

func run(ctx context.Context, cfg *config.Config) error {
	logger.LogInfo("Server Starting",
		zap.String("rpc", cfg.RPCURL),
		zap.String("ws", cfg.WSURL),
		zap.String("staker", cfg.StakerAddress))

	client, err := newLedgerClient(ctx, cfg)
	if err != nil {
		return err
	}
	defer client.Close()

	contracts, err := ledger.NewContracts(client, ledger.Addresses{
		ValidatorSet:  cfg.Contracts.ValidatorSet,
		Staking:       cfg.Contracts.Staking,
		BlockReward:   cfg.Contracts.BlockReward,
		KeyGenHistory: cfg.Contracts.KeyGenHistory,
	}, cfg.CallTimeout)
	if err != nil {
		return err
	}

	store := service.NewContextStore(cfg.StakerAddress)
	notifier := service.NewNotifier()
	engine := service.NewEngine(contracts, store, notifier, cfg.PoolConcurrency)
	watcher := service.NewWatcher(engine, contracts, store, service.WatcherConfig{
		PollInterval:   cfg.PollInterval,
		MaxResubscribe: cfg.ResubscribeMaxRetries,
		Subscribe:      true,
	})

	g, ctx := errgroup.WithContext(ctx)

	if cfg.DatabaseURL != "" {
		pool, err := db.Connect(ctx, cfg.DatabaseURL, cfg.MaxConnections)
		if err != nil {
			return err
		}
		defer pool.Close()
		database := db.NewDatabase(pool)
		if err := database.CreateSchema(ctx); err != nil {
			return err
		}
		id, events := notifier.Subscribe()
		g.Go(func() error {
			defer notifier.Unsubscribe(id)
			database.Record(ctx, events, store)
			return nil
		})
	}

	logger.LogInfo("Loading the initial context")
	if err := engine.Bootstrap(ctx); err != nil {
		// the watcher retries with the next block
		logger.LogError(errors.Wrap(err, "initial pass failed"))
	}

	g.Go(func() error {
		return watcher.Run(ctx)
	})

	contextController := controller.NewContextController(store)
	modeController := controller.NewModeController(watcher)
	eventsController := controller.NewEventsController(notifier, store)

	mux := http.NewServeMux()
	mux.HandleFunc("/context", contextController.GetContext)
	mux.HandleFunc("/pools", contextController.GetPools)
	mux.HandleFunc("/historic", modeController.ShowHistoric)
	mux.HandleFunc("/latest", modeController.ShowLatest)
	mux.HandleFunc("/events", eventsController.Stream)
	mux.Handle("/metrics", promhttp.Handler())

	srv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	g.Go(func() error {
		logger.LogInfo("Starting server", zap.String("port", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			return errors.Wrap(err, "http server")
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}

// fatal logs err with the default logger and exits.
func fatal(err error) {
	_ = logger.InitLogger("info", "")
	logger.LogError(err)
	os.Exit(1)
}

func newLedgerClient(ctx context.Context, cfg *config.Config) (*ledger.RPCClient, error) {
	if cfg.WSURL != "" {
		return ledger.NewSplitClient(cfg.RPCURL, cfg.WSURL, ledger.SplitOptions{
			Timeout: cfg.CallTimeout,
			RPS:     cfg.RPCRPS,
		}), nil
	}
	return ledger.NewProviderClient(ctx, cfg.RPCURL)
}
