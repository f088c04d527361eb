package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"census/internal/app"
	"census/internal/citizens/handler"
	"census/internal/platform/config"
	"census/internal/platform/httpserver"
	"census/internal/platform/logger"
	"census/internal/platform/metrics"
)

const auditQueueSize = 4096

// main wires high-level dependencies, exposes the HTTP router, and keeps the
// server lifecycle small. Business logic lives in internal services packages.
func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "census:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.FromEnv()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	log := logger.New(cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log,
		app.WithRegisterer(prometheus.DefaultRegisterer),
		app.WithAuditQueue(auditQueueSize),
	)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(); err != nil {
			log.Error("close backends", "error", err)
		}
	}()
	if !a.Persistent {
		log.Warn("DATABASE_URL is not set; imports are kept in memory")
	}

	router := chi.NewRouter()
	handler.New(a.Service, log, metrics.New(),
		handler.WithMaxImportBytes(cfg.MaxImportBytes),
		handler.WithRequestTimeout(cfg.RequestTimeout),
	).Register(router)
	router.Handle("/metrics", promhttp.Handler())

	srv := httpserver.New(cfg.Addr, router)

	// The audit worker outlives the server so events emitted by in-flight
	// requests during shutdown are still delivered.
	workerCtx, stopWorker := context.WithCancel(context.Background())
	defer stopWorker()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer stopWorker()
		log.Info("starting census", "addr", cfg.Addr, "environment", cfg.Environment)
		return httpserver.Run(gctx, srv, cfg.ShutdownTimeout)
	})
	if a.Worker != nil {
		g.Go(func() error {
			return a.Worker.Run(workerCtx)
		})
	}

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("census stopped")
	return nil
}
