package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"census/internal/citizens/aggregate"
	"census/internal/citizens/models"
	"census/internal/platform/metrics"
	"census/internal/platform/middleware"
	id "census/pkg/domain"
	dErrors "census/pkg/domain-errors"
	"census/pkg/platform/httputil"
	"census/pkg/platform/middleware/requesttime"
)

const (
	defaultMaxImportBytes = 64 << 20
	maxPatchBytes         = 1 << 20
	defaultRequestTimeout = 30 * time.Second
)

// Service defines the registry operations exposed over HTTP.
type Service interface {
	Import(ctx context.Context, citizens []*models.Citizen) (id.ImportID, error)
	Patch(ctx context.Context, importID id.ImportID, citizenID id.CitizenID, patch *models.CitizenPatch) (*models.Citizen, error)
	ListCitizens(ctx context.Context, importID id.ImportID) ([]*models.Citizen, error)
	Birthdays(ctx context.Context, importID id.ImportID) (aggregate.Months, error)
	AgePercentiles(ctx context.Context, importID id.ImportID) ([]models.TownAgeStats, error)
	Health(ctx context.Context) error
}

// Handler serves the imports API.
type Handler struct {
	logger         *slog.Logger
	service        Service
	metrics        *metrics.Metrics
	maxImportBytes int64
	requestTimeout time.Duration
}

type Option func(h *Handler)

// WithMaxImportBytes caps the POST /imports body.
func WithMaxImportBytes(n int64) Option {
	return func(h *Handler) {
		if n > 0 {
			h.maxImportBytes = n
		}
	}
}

func WithRequestTimeout(d time.Duration) Option {
	return func(h *Handler) {
		h.requestTimeout = d
	}
}

// New creates a new imports Handler. metrics may be nil.
func New(service Service, logger *slog.Logger, metrics *metrics.Metrics, opts ...Option) *Handler {
	h := &Handler{
		logger:         logger,
		service:        service,
		metrics:        metrics,
		maxImportBytes: defaultMaxImportBytes,
		requestTimeout: defaultRequestTimeout,
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.logger == nil {
		h.logger = slog.Default()
	}
	return h
}

// Register registers the imports routes with the chi router.
func (h *Handler) Register(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(middleware.Recovery(h.logger))
		r.Use(middleware.RequestID)
		r.Use(requesttime.Middleware)
		r.Use(middleware.Logger(h.logger))
		r.Use(middleware.Timeout(h.requestTimeout))
		r.Use(middleware.ContentTypeJSON)
		r.Use(middleware.LatencyMiddleware(h.metrics))

		r.With(middleware.MaxBodyBytes(h.maxImportBytes)).Post("/imports", h.handleImport)
		r.With(middleware.MaxBodyBytes(maxPatchBytes)).Patch("/imports/{import_id}/citizens/{citizen_id}", h.handlePatch)
		r.Get("/imports/{import_id}/citizens", h.handleListCitizens)
		r.Get("/imports/{import_id}/citizens/birthdays", h.handleBirthdays)
		r.Get("/imports/{import_id}/towns/stat/percentile/age", h.handleAgePercentiles)
		r.Get("/healthz", h.handleHealth)
	})
}

type importResponse struct {
	ImportID id.ImportID `json:"import_id"`
}

type healthResponse struct {
	Status string `json:"status"`
}

// handleImport validates and stores a new import.
func (h *Handler) handleImport(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.ImportRequest
	if err := decodeBody(r.Body, &req); err != nil {
		h.writeError(ctx, w, dErrors.Wrap(err, dErrors.CodeValidation, bodyErrorMessage(err)))
		return
	}
	citizens, err := req.Parse()
	if err != nil {
		h.writeError(ctx, w, dErrors.Wrap(err, dErrors.CodeValidation, err.Error()))
		return
	}

	importID, err := h.service.Import(ctx, citizens)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteData(w, http.StatusCreated, importResponse{ImportID: importID})
}

// handlePatch applies a partial update to one citizen.
func (h *Handler) handlePatch(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	importID, ok := h.importID(w, r)
	if !ok {
		return
	}
	citizenID, err := id.ParseCitizenID(chi.URLParam(r, "citizen_id"))
	if err != nil {
		h.writeError(ctx, w, dErrors.Wrap(err, dErrors.CodeBadRequest, dErrors.MessageOf(err)))
		return
	}

	var req models.PatchRequest
	if err := decodeBody(r.Body, &req); err != nil {
		h.writeError(ctx, w, dErrors.Wrap(err, dErrors.CodeInvalidField, bodyErrorMessage(err)))
		return
	}
	if req == nil {
		h.writeError(ctx, w, dErrors.New(dErrors.CodeInvalidField, "request body must be an object"))
		return
	}
	patch, err := req.Parse()
	if err != nil {
		h.writeError(ctx, w, dErrors.Wrap(err, dErrors.CodeInvalidField, fieldDetail(err)))
		return
	}

	citizen, err := h.service.Patch(ctx, importID, citizenID, patch)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, citizen)
}

func (h *Handler) handleListCitizens(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	importID, ok := h.importID(w, r)
	if !ok {
		return
	}
	citizens, err := h.service.ListCitizens(ctx, importID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, citizens)
}

func (h *Handler) handleBirthdays(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	importID, ok := h.importID(w, r)
	if !ok {
		return
	}
	months, err := h.service.Birthdays(ctx, importID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, months)
}

func (h *Handler) handleAgePercentiles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	importID, ok := h.importID(w, r)
	if !ok {
		return
	}
	stats, err := h.service.AgePercentiles(ctx, importID)
	if err != nil {
		h.writeError(ctx, w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, stats)
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.service.Health(r.Context()); err != nil {
		h.writeError(r.Context(), w, err)
		return
	}
	httputil.WriteData(w, http.StatusOK, healthResponse{Status: "ok"})
}

func (h *Handler) importID(w http.ResponseWriter, r *http.Request) (id.ImportID, bool) {
	importID, err := id.ParseImportID(chi.URLParam(r, "import_id"))
	if err != nil {
		h.writeError(r.Context(), w, dErrors.Wrap(err, dErrors.CodeBadRequest, dErrors.MessageOf(err)))
		return 0, false
	}
	return importID, true
}

// writeError logs client errors at warn level. Infrastructure errors are
// already logged by the service with their cause.
func (h *Handler) writeError(ctx context.Context, w http.ResponseWriter, err error) {
	code := dErrors.CodeOf(err)
	if dErrors.ToHTTPStatus(code) < http.StatusInternalServerError {
		h.logger.WarnContext(ctx, "request rejected",
			"request_id", middleware.GetRequestID(ctx),
			"code", string(code),
			"detail", dErrors.MessageOf(err),
		)
	}
	httputil.WriteError(w, err)
}

// decodeBody decodes exactly one JSON value from body.
func decodeBody(body io.Reader, v any) error {
	dec := json.NewDecoder(body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return errTrailingData
	}
	return nil
}

var errTrailingData = errors.New("unexpected data after JSON body")

func bodyErrorMessage(err error) string {
	var maxBytes *http.MaxBytesError
	switch {
	case errors.As(err, &maxBytes):
		return fmt.Sprintf("request body exceeds %d bytes", maxBytes.Limit)
	case errors.Is(err, io.EOF):
		return "request body is empty"
	case errors.Is(err, errTrailingData):
		return errTrailingData.Error()
	default:
		return "invalid JSON body"
	}
}

func fieldDetail(err error) string {
	var fe *models.FieldError
	if errors.As(err, &fe) {
		return fe.Detail()
	}
	return err.Error()
}
