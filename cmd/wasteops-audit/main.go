// WasteOps Audit — журнал смен статуса работников.
//
// Audit:
//   - Читает события worker.status_changed из RabbitMQ
//   - Записывает их в Postgres (таблица worker_status_changes)
//   - Повторно доставленные события не дублируются
//   - Непригодные события уходят в dlq.workers
//
// Процесс масштабируется горизонтально: все экземпляры читают одну очередь.
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
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/shaiso/WasteOps/internal/audit"
	"github.com/shaiso/WasteOps/internal/config"
	"github.com/shaiso/WasteOps/internal/mq"
	"github.com/shaiso/WasteOps/internal/repo"
	"github.com/shaiso/WasteOps/internal/telemetry"
)

func main() {
	logger := telemetry.SetupLogger("wasteops-audit")
	logger.Info("starting wasteops-audit")

	cfg, err := config.Load(os.Getenv("WASTEOPS_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("audit stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	pool, err := repo.NewPool(ctx, cfg.Database.DSN)
	if err != nil {
		return fmt.Errorf("connect database: %w", err)
	}
	defer pool.Close()
	logger.Info("database connected")

	statusRepo := repo.NewStatusChangeRepo(pool)
	if err := statusRepo.EnsureSchema(ctx); err != nil {
		return err
	}
	journal := audit.New(statusRepo, logger)

	amqpURL := cfg.AMQP.URL
	if amqpURL == "" {
		amqpURL = mq.DefaultURL()
	}
	conn, err := mq.Dial(amqpURL, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	if err := mq.SetupTopology(ctx, conn); err != nil {
		return err
	}
	logger.Info("RabbitMQ connected" + mq.TopologyInfo())

	consumer := mq.NewConsumer(conn, mq.ConsumerConfig{
		Queue:    mq.QueueStatusAudit,
		Handler:  journal.Handler(),
		Prefetch: cfg.Audit.Prefetch,
		Logger:   logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		if !conn.IsConnected() {
			http.Error(w, "amqp disconnected", http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
		fmt.Fprint(w, "ok")
	})
	mux.Handle("/metrics", promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Audit.MetricsAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := consumer.Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		logger.Info("metrics listening", "addr", cfg.Audit.MetricsAddr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("metrics server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
