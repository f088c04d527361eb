// Package service orchestrates the citizens registry: it runs the import
// validator, allocates import ids, drives patches through the store and
// reduces snapshots into the aggregate views. Store sentinel errors are
// translated into domain errors here and nowhere else.
package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"maps"
	"slices"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"census/internal/audit"
	"census/internal/citizens/aggregate"
	"census/internal/citizens/graph"
	"census/internal/citizens/metrics"
	"census/internal/citizens/models"
	id "census/pkg/domain"
	dErrors "census/pkg/domain-errors"
	"census/pkg/platform/sentinel"
	"census/pkg/requestcontext"
)

type Store interface {
	CreateImport(ctx context.Context, imp *models.Import) error
	PatchCitizen(ctx context.Context, importID id.ImportID, citizenID id.CitizenID, patch *models.CitizenPatch) (*models.Citizen, error)
	ListCitizens(ctx context.Context, importID id.ImportID) ([]*models.Citizen, error)
	Reset(ctx context.Context) error
	Health(ctx context.Context) error
}

type Allocator interface {
	NextImportID(ctx context.Context) (id.ImportID, error)
	Reset(ctx context.Context) error
	Health(ctx context.Context) error
}

// Transactor is implemented by stores that can run several store and
// allocator calls in one transaction.
type Transactor interface {
	RunInTx(ctx context.Context, fn func(ctx context.Context) error) error
}

// HealthCheck checks an optional dependency, such as the audit broker.
type HealthCheck func(ctx context.Context) error

type AuditPublisher interface {
	Emit(ctx context.Context, base audit.Event) error
}

// Service is the registry's application layer.
type Service struct {
	store          Store
	allocator      Allocator
	logger         *slog.Logger
	auditPublisher AuditPublisher
	metrics        *metrics.Metrics
	tracer         trace.Tracer
	healthChecks   map[string]HealthCheck
}

type Option func(s *Service)

func WithLogger(logger *slog.Logger) Option {
	return func(s *Service) {
		s.logger = logger
	}
}

func WithAuditPublisher(publisher AuditPublisher) Option {
	return func(s *Service) {
		s.auditPublisher = publisher
	}
}

func WithMetrics(m *metrics.Metrics) Option {
	return func(s *Service) {
		s.metrics = m
	}
}

func WithTracer(tracer trace.Tracer) Option {
	return func(s *Service) {
		s.tracer = tracer
	}
}

// WithHealthCheck adds a dependency to the ones Health reports on.
func WithHealthCheck(name string, check HealthCheck) Option {
	return func(s *Service) {
		if check == nil {
			return
		}
		if s.healthChecks == nil {
			s.healthChecks = make(map[string]HealthCheck)
		}
		s.healthChecks[name] = check
	}
}

// New constructs a Service.
func New(store Store, allocator Allocator, opts ...Option) *Service {
	s := &Service{
		store:     store,
		allocator: allocator,
		logger:    slog.Default(),
		tracer:    otel.Tracer("census/citizens"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Import validates a batch and stores it under a fresh import id. Nothing is
// stored when validation fails. An id whose insert fails is not reused.
func (s *Service) Import(ctx context.Context, citizens []*models.Citizen) (_ id.ImportID, err error) {
	ctx, span := s.tracer.Start(ctx, "citizens.Import",
		trace.WithAttributes(attribute.Int("citizens", len(citizens))))
	defer func() { endSpan(span, err) }()
	start := time.Now()

	if err := models.ValidateImport(citizens, requestcontext.Now(ctx)); err != nil {
		return 0, err
	}

	importID, err := s.allocator.NextImportID(ctx)
	if err != nil {
		return 0, s.translate(ctx, err, "failed to allocate import id")
	}
	span.SetAttributes(attribute.Int64("import_id", int64(importID)))

	imp := &models.Import{ID: importID, Citizens: citizens, CreatedAt: requestcontext.Now(ctx)}
	if err := s.store.CreateImport(ctx, imp); err != nil {
		if errors.Is(err, sentinel.ErrConflict) {
			s.logger.ErrorContext(ctx, "allocated import id already in use",
				"request_id", requestcontext.RequestID(ctx),
				"import_id", importID,
			)
			return 0, dErrors.Wrap(err, dErrors.CodeInternal, "failed to store import")
		}
		return 0, s.translate(ctx, err, "failed to store import")
	}

	s.emit(ctx, audit.Event{
		Action:   audit.ActionImportCreated,
		ImportID: int64(importID),
		Citizens: len(citizens),
	})
	if s.metrics != nil {
		s.metrics.RecordImport(len(citizens), start)
	}
	return importID, nil
}

// Patch updates one citizen and keeps the relatives relation symmetric. The
// returned citizen is the pre-update record merged with the patch.
func (s *Service) Patch(ctx context.Context, importID id.ImportID, citizenID id.CitizenID, patch *models.CitizenPatch) (_ *models.Citizen, err error) {
	ctx, span := s.tracer.Start(ctx, "citizens.Patch",
		trace.WithAttributes(
			attribute.Int64("import_id", int64(importID)),
			attribute.Int64("citizen_id", int64(citizenID)),
		))
	defer func() { endSpan(span, err) }()
	start := time.Now()

	if patch.IsEmpty() {
		s.recordPatch(metrics.PatchRejected, start)
		return nil, dErrors.New(dErrors.CodeEmptyPatch, "patch must set at least one field")
	}
	if fe := patch.Validate(requestcontext.Now(ctx)); fe != nil {
		s.recordPatch(metrics.PatchRejected, start)
		return nil, dErrors.New(dErrors.CodeInvalidField, fe.Detail())
	}

	pre, err := s.store.PatchCitizen(ctx, importID, citizenID, patch)
	if err != nil {
		switch {
		case errors.Is(err, sentinel.ErrNotFound):
			s.recordPatch(metrics.PatchRejected, start)
			return nil, dErrors.New(dErrors.CodeNotFound, "citizen not found")
		case errors.Is(err, sentinel.ErrUnknownReference):
			s.recordPatch(metrics.PatchRejected, start)
			return nil, dErrors.New(dErrors.CodeUnknownRelative, "relatives must be citizens of the same import")
		case errors.Is(err, sentinel.ErrConflict):
			s.recordPatch(metrics.PatchFailed, start)
			return nil, dErrors.Wrap(err, dErrors.CodeConflict, "citizen is being modified concurrently, retry")
		}
		s.recordPatch(metrics.PatchFailed, start)
		return nil, s.translate(ctx, err, "failed to patch citizen")
	}

	post := patch.Apply(pre)
	added, removed := graph.Diff(pre.Relatives, post.Relatives)
	added, removed = graph.Without(added, citizenID), graph.Without(removed, citizenID)
	span.SetAttributes(
		attribute.Int("edges_added", len(added)),
		attribute.Int("edges_removed", len(removed)),
	)

	cid := int64(citizenID)
	s.emit(ctx, audit.Event{
		Action:    audit.ActionCitizenPatched,
		ImportID:  int64(importID),
		CitizenID: &cid,
		Fields:    patch.Fields(),
	})
	s.recordPatch(metrics.PatchApplied, start)
	if s.metrics != nil {
		s.metrics.RecordEdges(len(added), len(removed))
	}
	return post, nil
}

// ListCitizens returns the current citizens of an import in import order.
func (s *Service) ListCitizens(ctx context.Context, importID id.ImportID) (_ []*models.Citizen, err error) {
	ctx, span := s.tracer.Start(ctx, "citizens.ListCitizens",
		trace.WithAttributes(attribute.Int64("import_id", int64(importID))))
	defer func() { endSpan(span, err) }()

	return s.snapshot(ctx, importID)
}

// Birthdays returns, for every month, how many presents each citizen buys
// for relatives born in that month.
func (s *Service) Birthdays(ctx context.Context, importID id.ImportID) (_ aggregate.Months, err error) {
	ctx, span := s.tracer.Start(ctx, "citizens.Birthdays",
		trace.WithAttributes(attribute.Int64("import_id", int64(importID))))
	defer func() { endSpan(span, err) }()
	start := time.Now()

	citizens, err := s.snapshot(ctx, importID)
	if err != nil {
		return nil, err
	}
	months := aggregate.Birthdays(citizens)
	if s.metrics != nil {
		s.metrics.ObserveAggregation("birthdays", start)
	}
	return months, nil
}

// AgePercentiles returns p50, p75 and p99 of citizen ages per town, as of
// the request time.
func (s *Service) AgePercentiles(ctx context.Context, importID id.ImportID) (_ []models.TownAgeStats, err error) {
	ctx, span := s.tracer.Start(ctx, "citizens.AgePercentiles",
		trace.WithAttributes(attribute.Int64("import_id", int64(importID))))
	defer func() { endSpan(span, err) }()
	start := time.Now()

	citizens, err := s.snapshot(ctx, importID)
	if err != nil {
		return nil, err
	}
	stats := aggregate.AgePercentiles(citizens, requestcontext.Now(ctx))
	if s.metrics != nil {
		s.metrics.ObserveAggregation("age_percentiles", start)
	}
	return stats, nil
}

// Reset drops every import and restarts id allocation. Administrative only.
// When the store is transactional both steps commit or roll back together.
func (s *Service) Reset(ctx context.Context) (err error) {
	ctx, span := s.tracer.Start(ctx, "citizens.Reset")
	defer func() { endSpan(span, err) }()

	reset := func(ctx context.Context) error {
		if err := s.store.Reset(ctx); err != nil {
			return fmt.Errorf("reset imports: %w", err)
		}
		if err := s.allocator.Reset(ctx); err != nil {
			return fmt.Errorf("reset import ids: %w", err)
		}
		return nil
	}
	if t, ok := s.store.(Transactor); ok {
		err = t.RunInTx(ctx, reset)
	} else {
		err = reset(ctx)
	}
	if err != nil {
		return s.translate(ctx, err, "failed to reset registry")
	}
	s.logger.WarnContext(ctx, "registry reset",
		"request_id", requestcontext.RequestID(ctx),
	)
	s.emit(ctx, audit.Event{Action: audit.ActionRegistryReset})
	return nil
}

// Health reports whether the store, the allocator and every registered
// dependency are reachable.
func (s *Service) Health(ctx context.Context) error {
	if err := s.store.Health(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "store unavailable")
	}
	if err := s.allocator.Health(ctx); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "import id allocator unavailable")
	}
	for _, name := range slices.Sorted(maps.Keys(s.healthChecks)) {
		if err := s.healthChecks[name](ctx); err != nil {
			return dErrors.Wrap(err, dErrors.CodeUnavailable, name+" unavailable")
		}
	}
	return nil
}

func (s *Service) snapshot(ctx context.Context, importID id.ImportID) ([]*models.Citizen, error) {
	citizens, err := s.store.ListCitizens(ctx, importID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "import not found")
		}
		return nil, s.translate(ctx, err, "failed to load import")
	}
	return citizens, nil
}

// translate maps infrastructure failures: unavailability and timeouts keep
// their own codes so they are never mistaken for caller errors.
func (s *Service) translate(ctx context.Context, err error, msg string) error {
	code := dErrors.CodeInternal
	switch {
	case errors.Is(err, sentinel.ErrUnavailable):
		code = dErrors.CodeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = dErrors.CodeTimeout
	}
	s.logger.ErrorContext(ctx, msg,
		"request_id", requestcontext.RequestID(ctx),
		"error", err,
		"code", code,
	)
	return dErrors.Wrap(err, code, msg)
}

func (s *Service) emit(ctx context.Context, event audit.Event) {
	if s.auditPublisher == nil {
		return
	}
	if err := s.auditPublisher.Emit(ctx, event); err != nil {
		s.logger.WarnContext(ctx, "failed to emit audit event",
			"request_id", requestcontext.RequestID(ctx),
			"action", event.Action,
			"error", err,
		)
	}
}

func (s *Service) recordPatch(result string, start time.Time) {
	if s.metrics != nil {
		s.metrics.RecordPatch(result, start)
	}
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, string(dErrors.CodeOf(err)))
	}
	span.End()
}
