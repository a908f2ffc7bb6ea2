package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"dag-ledger/config"
	"dag-ledger/dag"
	"dag-ledger/db"
	"dag-ledger/handlers"
	"dag-ledger/logger"
	"dag-ledger/repository"
	"dag-ledger/routers"
	"dag-ledger/signer"
)

var configPath string

func serveCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "run the DAG node with its HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(configPath)
			if err != nil {
				return err
			}
			return serve(cfg)
		},
	}
}

func serve(cfg *config.Config) error {
	if err := logger.InitLogger(cfg.Log.AppLogFile, cfg.Log.Level, cfg.Log.Format); err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer logger.Logger.Sync()

	logger.Logger.Info("Starting DAG server...")

	nodeStore, err := db.Open(cfg.Storage.Backend, cfg.Storage.Path, "dag_nodes")
	if err != nil {
		return err
	}
	defer nodeStore.Close()
	epochStore, err := db.Open(cfg.Storage.Backend, cfg.Storage.Path, "dag_epochs")
	if err != nil {
		return err
	}
	defer epochStore.Close()

	opts := dag.Options{
		Params: dag.Params{
			EpochValidityPeriod: cfg.DAG.EpochValidityPeriod,
			MaxTipsInEpoch:      cfg.DAG.MaxTipsInEpoch,
			ReferencesToBeTip:   cfg.DAG.ReferencesToBeTip,
		},
		LoadOnStart: cfg.DAG.LoadOnStart,
	}
	if cfg.Signer.Seed != "" {
		if opts.Signer, err = signer.FromSeedHex(cfg.Signer.Seed); err != nil {
			return err
		}
	}
	r := mux.NewRouter()
	if cfg.Metrics.Enabled {
		opts.Registry = prometheus.NewRegistry()
		opts.Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		)
		routers.RegisterMetrics(r, opts.Registry)
	}

	d, err := dag.New(repository.NewNodeRepository(nodeStore), repository.NewEpochRepository(epochStore), opts)
	if err != nil {
		return err
	}
	routers.RegisterRoutes(r, handlers.NewHandler(d))

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Server.Port),
		Handler: r,
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if cfg.DAG.EpochInterval > 0 {
		go runEpochDriver(ctx, d, cfg.DAG.EpochInterval)
	}

	// Start server in goroutine
	go func() {
		if err := srv.ListenAndServe(); err != nil {
			logger.Logger.Info("Server stopped", zap.Error(err))
		}
	}()

	logger.Logger.Info("Server running on port", zap.Int("port", cfg.Server.Port))

	// Graceful shutdown
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	<-sigCh
	logger.Logger.Info("Shutdown signal received, exiting...")
	cancel()
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	return srv.Shutdown(shutdownCtx)
}

// runEpochDriver finalises the pool periodically when the node runs standalone
func runEpochDriver(ctx context.Context, d *dag.DAG, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			epoch, err := d.ProduceEpoch()
			if err != nil {
				level := zap.WarnLevel
				if dag.IsIndexCorruption(err) {
					level = zap.ErrorLevel
				}
				logger.Logger.Check(level, "Epoch attempt aborted").Write(zap.Error(err))
				continue
			}
			logger.Logger.Debug("Standalone epoch produced",
				zap.Uint64("block_number", epoch.BlockNumber),
				zap.Int("nodes", len(epoch.AllNodes)))
		}
	}
}
