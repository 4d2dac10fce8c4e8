package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/boddenberg/txsim-bench-go/internal/domain"
	"github.com/boddenberg/txsim-bench-go/internal/infra/observability"
	"github.com/boddenberg/txsim-bench-go/internal/service"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

// maxRequestBody bounds POST /v1/datasets bodies.
const maxRequestBody = 1 << 16

// createDatasetRequest leaves every field optional; absent fields take the
// configured defaults.
type createDatasetRequest struct {
	Customers    *int     `json:"customers"`
	Terminals    *int     `json:"terminals"`
	Days         *int     `json:"days"`
	StartDate    *string  `json:"start_date"`
	Radius       *float64 `json:"radius"`
	CustomerSeed *uint64  `json:"customer_seed"`
	TerminalSeed *uint64  `json:"terminal_seed"`
}

func (req createDatasetRequest) params(defaults domain.GenerationParams) (domain.GenerationParams, error) {
	p := defaults
	if req.Customers != nil {
		p.Customers = *req.Customers
	}
	if req.Terminals != nil {
		p.Terminals = *req.Terminals
	}
	if req.Days != nil {
		p.Days = *req.Days
	}
	if req.StartDate != nil {
		start, err := time.Parse(time.DateOnly, *req.StartDate)
		if err != nil {
			return p, &domain.ErrValidation{Field: "start_date", Message: "must be formatted YYYY-MM-DD"}
		}
		p.StartDate = start
	}
	if req.Radius != nil {
		p.Radius = *req.Radius
	}
	if req.CustomerSeed != nil {
		p.CustomerSeed = *req.CustomerSeed
	}
	if req.TerminalSeed != nil {
		p.TerminalSeed = *req.TerminalSeed
	}
	return p, nil
}

func createDatasetHandler(svc *service.DatasetService, defaults domain.GenerationParams, metrics *observability.Metrics, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "POST /v1/datasets")
		defer span.End()

		start := time.Now()
		defer func() { metrics.RecordRequestDuration("create_dataset", time.Since(start)) }()

		var req createDatasetRequest
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody)).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request", "invalid request body")
			return
		}

		p, err := req.params(defaults)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}
		span.SetAttributes(
			attribute.Int("dataset.customers", p.Customers),
			attribute.Int("dataset.terminals", p.Terminals),
			attribute.Int("dataset.days", p.Days),
		)

		summary, err := svc.Create(ctx, p)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		logger.Info("dataset created",
			zap.String("dataset", summary.ID),
			zap.String("subject", SubjectFromContext(ctx)),
		)
		writeJSON(w, http.StatusCreated, summary)
	}
}

func getDatasetHandler(svc *service.DatasetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/datasets/{datasetId}")
		defer span.End()

		id := chi.URLParam(r, "datasetId")
		span.SetAttributes(attribute.String("dataset.id", id))

		summary, err := svc.Get(ctx, id)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		writeJSON(w, http.StatusOK, summary)
	}
}

func getTableHandler(svc *service.DatasetService, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, span := tracer.Start(r.Context(), "GET /v1/datasets/{datasetId}/tables/{table}")
		defer span.End()

		id := chi.URLParam(r, "datasetId")
		table := chi.URLParam(r, "table")
		span.SetAttributes(attribute.String("dataset.id", id), attribute.String("dataset.table", table))

		path, err := svc.TablePath(ctx, id, table)
		if err != nil {
			handleServiceError(w, err, logger)
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		http.ServeFile(w, r, path)
	}
}
