// Package app assembles the registry from configuration. The HTTP server and
// the admin CLI both build their service here so they agree on backends.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"census/internal/audit"
	"census/internal/citizens/metrics"
	"census/internal/citizens/service"
	"census/internal/citizens/store"
	"census/internal/platform/config"
	"census/internal/platform/kafka"
	"census/internal/platform/postgres"
	"census/internal/platform/redis"
	"census/pkg/platform/circuit"
)

const (
	auditTopicPartitions  = 3
	auditTopicReplication = 1
	auditBreakerCooldown  = 30 * time.Second
)

// App holds the assembled service and the resources it owns.
type App struct {
	Service *service.Service
	// Worker drains the audit queue. Nil when audit events are published inline.
	Worker *audit.Worker
	// Persistent is false when imports live in process memory.
	Persistent bool

	closers []func() error
}

type options struct {
	registerer prometheus.Registerer
	auditQueue int
}

type Option func(*options)

// WithRegisterer registers the domain metrics with reg. Without it metrics
// are not collected.
func WithRegisterer(reg prometheus.Registerer) Option {
	return func(o *options) {
		o.registerer = reg
	}
}

// WithAuditQueue publishes audit events through a queue of size events,
// drained by App.Worker.
func WithAuditQueue(size int) Option {
	return func(o *options) {
		o.auditQueue = size
	}
}

// New connects the configured backends. Postgres backs the store when
// DATABASE_URL is set, otherwise imports are kept in memory. Redis, when set,
// takes over import id allocation. Kafka, when set, receives audit events,
// falling back to the log while the broker is failing.
func New(ctx context.Context, cfg config.Server, logger *slog.Logger, opts ...Option) (_ *App, err error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	a := &App{}
	defer func() {
		if err != nil {
			_ = a.Close()
		}
	}()

	storage, allocator, err := a.openStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	rdb, err := redis.New(ctx, cfg.Redis)
	if err != nil {
		return nil, fmt.Errorf("connect redis: %w", err)
	}
	if rdb != nil {
		a.closers = append(a.closers, rdb.Close)
		allocator = store.NewRedisAllocator(rdb.Client)
		logger.InfoContext(ctx, "import ids allocated by redis")
	}

	sink, brokerHealth, err := a.openAuditSink(ctx, cfg, logger)
	if err != nil {
		return nil, err
	}
	var publisherOpts []audit.Option
	if o.auditQueue > 0 {
		publisherOpts = append(publisherOpts, audit.WithQueue(o.auditQueue))
	}
	publisher := audit.NewPublisher(sink, publisherOpts...)
	if q := publisher.Queue(); q != nil {
		a.Worker = audit.NewWorker(sink, q, logger)
	}

	serviceOpts := []service.Option{
		service.WithLogger(logger),
		service.WithAuditPublisher(publisher),
		service.WithHealthCheck("audit broker", brokerHealth),
	}
	if o.registerer != nil {
		serviceOpts = append(serviceOpts, service.WithMetrics(metrics.NewWithRegistry(o.registerer)))
	}
	a.Service = service.New(storage, allocator, serviceOpts...)
	return a, nil
}

func (a *App) openStore(ctx context.Context, cfg config.Server) (service.Store, service.Allocator, error) {
	db, err := postgres.Open(ctx, cfg.Database)
	if err != nil {
		return nil, nil, err
	}
	if db == nil {
		return store.NewInMemory(), store.NewMemoryAllocator(), nil
	}
	a.closers = append(a.closers, db.Close)
	a.Persistent = true

	pg := store.NewPostgres(db)
	if err := pg.Migrate(ctx); err != nil {
		return nil, nil, fmt.Errorf("migrate: %w", err)
	}
	return pg, store.NewPostgresAllocator(db), nil
}

// openAuditSink also returns the broker health check, nil without Kafka.
func (a *App) openAuditSink(ctx context.Context, cfg config.Server, logger *slog.Logger) (audit.Sink, service.HealthCheck, error) {
	producer, err := kafka.New(cfg.Kafka)
	if err != nil {
		return nil, nil, err
	}
	if producer == nil {
		return audit.NewLogSink(logger), nil, nil
	}
	a.closers = append(a.closers, func() error {
		producer.Close()
		return nil
	})
	if err := producer.EnsureTopic(ctx, auditTopicPartitions, auditTopicReplication); err != nil {
		return nil, nil, err
	}
	logger.InfoContext(ctx, "audit events published to kafka", "topic", cfg.Kafka.Topic)
	return audit.NewFallbackSink(
		audit.NewKafkaSink(producer),
		audit.NewLogSink(logger),
		circuit.New("kafka", circuit.WithCooldown(auditBreakerCooldown)),
		logger,
	), producer.Health, nil
}

// Close releases backends in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}
