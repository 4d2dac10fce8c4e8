package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/boddenberg/txsim-bench-go/internal/domain"
	"github.com/boddenberg/txsim-bench-go/internal/infra/observability"
	"github.com/boddenberg/txsim-bench-go/internal/service"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("handler")

// HealthCheck pings one dependency for /healthz and /readyz.
type HealthCheck struct {
	Name string
	Ping func(ctx context.Context) error
}

// Config carries the router's non-service inputs.
type Config struct {
	// JWTSecret protects /v1 when non-empty.
	JWTSecret string
	// Defaults fills request fields the client leaves out.
	Defaults domain.GenerationParams
	Checks   []HealthCheck
}

// NewRouter creates the HTTP router with all routes and middleware.
func NewRouter(svc *service.DatasetService, cfg Config, metrics *observability.Metrics, logger *zap.Logger) http.Handler {
	r := chi.NewRouter()

	// --- Middleware ---
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(observability.ZapLoggerMiddleware(logger))
	r.Use(observability.TracingMiddleware)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Heartbeat("/ping"))

	// --- Operational endpoints ---
	r.Get("/healthz", healthzHandler(cfg.Checks))
	r.Get("/readyz", readyzHandler(cfg.Checks, logger))
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))

	// --- API v1 ---
	r.Route("/v1", func(r chi.Router) {
		if cfg.JWTSecret != "" {
			r.Use(JWTAuthMiddleware([]byte(cfg.JWTSecret), logger))
		}

		r.Post("/datasets", createDatasetHandler(svc, cfg.Defaults, metrics, logger))
		r.Get("/datasets/{datasetId}", getDatasetHandler(svc, logger))
		r.Get("/datasets/{datasetId}/tables/{table}", getTableHandler(svc, logger))

		r.Get("/metrics/generator", generatorMetricsHandler(metrics))
	})

	return r
}

// ============================================================
// Operational handlers
// ============================================================

func checkAll(ctx context.Context, checks []HealthCheck) []domain.ServiceHealth {
	services := []domain.ServiceHealth{{Name: "txsim-api", Status: "healthy"}}
	for _, c := range checks {
		start := time.Now()
		err := c.Ping(ctx)
		status := "healthy"
		if err != nil {
			status = "degraded"
		}
		services = append(services, domain.ServiceHealth{
			Name:      c.Name,
			Status:    status,
			LatencyMs: time.Since(start).Milliseconds(),
		})
	}
	return services
}

func healthzHandler(checks []HealthCheck) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		services := checkAll(r.Context(), checks)

		overall := "healthy"
		for _, s := range services {
			if s.Status != "healthy" {
				overall = "degraded"
				break
			}
		}

		writeJSON(w, http.StatusOK, domain.HealthStatus{
			Status:   overall,
			Services: services,
		})
	}
}

func readyzHandler(checks []HealthCheck, logger *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		for _, c := range checks {
			if err := c.Ping(ctx); err != nil {
				logger.Warn("readiness check failed", zap.String("dependency", c.Name), zap.Error(err))
				writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready", "dependency": c.Name})
				return
			}
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
	}
}

func generatorMetricsHandler(metrics *observability.Metrics) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, metrics.GetGeneratorSnapshot())
	}
}
