// WasteOps Console — справочник работников для операторов.
//
// Console:
//   - Загружает работников и зоны с бэкенда (через resolver с кандидатами)
//   - Периодически обновляет их по расписанию из конфигурации
//   - Отдаёт HTTP API: фильтры, смена статуса, табельные номера
//   - Публикует смены статуса в RabbitMQ (если задан amqp.url)
//     или пишет их прямо в журнал (если задан только database.dsn)
//
// Конфигурация: YAML из WASTEOPS_CONFIG и переменные WASTEOPS_*.
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

	"github.com/shaiso/WasteOps/internal/api"
	"github.com/shaiso/WasteOps/internal/audit"
	"github.com/shaiso/WasteOps/internal/config"
	"github.com/shaiso/WasteOps/internal/directory"
	"github.com/shaiso/WasteOps/internal/employeeid"
	"github.com/shaiso/WasteOps/internal/filter"
	"github.com/shaiso/WasteOps/internal/mq"
	"github.com/shaiso/WasteOps/internal/normalize"
	"github.com/shaiso/WasteOps/internal/repo"
	"github.com/shaiso/WasteOps/internal/resolver"
	"github.com/shaiso/WasteOps/internal/telemetry"
	"github.com/shaiso/WasteOps/internal/zones"
)

var startTime = time.Now()

func main() {
	logger := telemetry.SetupLogger("wasteops-console")
	logger.Info("starting wasteops-console")

	cfg, err := config.Load(os.Getenv("WASTEOPS_CONFIG"))
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("console stopped with error", "error", err)
		os.Exit(1)
	}
	logger.Info("stopped")
}

func run(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	res := resolver.New(resolver.Config{
		Policy:  cfg.Policy(),
		Timeout: cfg.Backend.Timeout,
		Logger:  logger,
	})

	recent := directory.NewMemorySink(100)
	sinks := []directory.EventSink{directory.LoggingSink{Logger: logger}, recent}
	published := false

	// RabbitMQ
	if cfg.AMQP.URL != "" {
		conn, err := mq.Dial(cfg.AMQP.URL, logger)
		if err != nil {
			logger.Warn("RabbitMQ not available, status changes will not be published", "error", err)
		} else {
			defer conn.Close()
			if err := mq.SetupTopology(ctx, conn); err != nil {
				logger.Warn("failed to setup topology", "error", err)
			}
			logger.Info("RabbitMQ connected" + mq.TopologyInfo())
			sinks = append(sinks, mq.NewPublisher(conn, logger))
			published = true
		}
	}

	// Журнал смен статуса
	var history api.History
	if cfg.Database.DSN != "" {
		pool, err := repo.NewPool(ctx, cfg.Database.DSN)
		if err != nil {
			return fmt.Errorf("connect database: %w", err)
		}
		defer pool.Close()

		statusRepo := repo.NewStatusChangeRepo(pool)
		if err := statusRepo.EnsureSchema(ctx); err != nil {
			return err
		}
		journal := audit.New(statusRepo, logger)
		history = journal
		if !published {
			sinks = append(sinks, journal)
		}
		logger.Info("status history enabled", "direct_write", !published)
	}

	dir := directory.New(directory.Config{
		Resolver:         res,
		Normalizer:       normalize.New(normalize.Config{Logger: logger}),
		ListCandidates:   cfg.WorkerCandidates(),
		UpdateCandidates: cfg.UpdateCandidates(),
		Sinks:            sinks,
		Logger:           logger,
	})

	zoneService := zones.New(zones.Config{
		Resolver:   res,
		Candidates: cfg.ZoneCandidates(),
		Logger:     logger,
	})

	ids := employeeid.New(employeeid.Config{
		Resolver: res,
		Sequence: cfg.SequenceCandidate(),
		Prefix:   cfg.EmployeeID.Prefix,
		Logger:   logger,
	})

	if err := dir.Refresh(ctx); err != nil {
		logger.Warn("initial directory load failed", "error", err)
	}
	zoneService.Zones(ctx)

	engine := filter.NewEngine(logger)
	view := directory.NewProjector(directory.ProjectorConfig{
		Source:        dir,
		Engine:        engine,
		Debounce:      cfg.View.Debounce,
		SafetyTimeout: cfg.View.SafetyTimeout,
		Logger:        logger,
	})
	defer view.Close()
	dir.OnChange(view.Invalidate)

	poller, err := directory.NewPoller(directory.PollerConfig{
		Jobs: []directory.Job{
			{Name: "workers", Schedule: cfg.Polling.Workers, Run: dir.Refresh},
			{Name: "zones", Schedule: cfg.Polling.Zones, Run: func(ctx context.Context) error {
				zoneService.Refresh(ctx)
				return zoneService.LastError()
			}},
		},
		Logger: logger,
	})
	if err != nil {
		return err
	}

	handler := api.NewHandler(api.Config{
		Directory:   dir,
		Zones:       zoneService,
		EmployeeIDs: ids,
		History:     history,
		Events:      recent,
		View:        view,
		Engine:      engine,
		Logger:      logger,
	})

	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		fmt.Fprintf(w, "ok %s", time.Since(startTime))
	})
	mux.Handle("/metrics", promhttp.Handler())
	handler.RegisterRoutes(mux)

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("listening", "addr", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		return poller.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down")

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		return server.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
