package service

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"time"

	"github.com/boddenberg/txsim-bench-go/internal/domain"
	"github.com/boddenberg/txsim-bench-go/internal/infra/csvstore"
	"github.com/boddenberg/txsim-bench-go/internal/infra/observability"
	"github.com/boddenberg/txsim-bench-go/internal/infra/resilience"
	"github.com/boddenberg/txsim-bench-go/internal/port"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("service/datasets")

const registryName = "datasets"

// DatasetService generates datasets, writes their tables and keeps a
// registry of summaries for lookup.
type DatasetService struct {
	generator port.DatasetGenerator
	store     port.TableStore
	registry  port.Cache[domain.DatasetSummary]
	bulkhead  *resilience.Bulkhead
	limits    Limits
	metrics   *observability.Metrics
	logger    *zap.Logger
}

// Limits caps the size of on-demand requests. A zero field disables its cap.
type Limits struct {
	Customers int
	Terminals int
	Days      int
}

func (l Limits) check(p domain.GenerationParams) error {
	caps := []struct {
		field string
		value int
		max   int
	}{
		{"customers", p.Customers, l.Customers},
		{"terminals", p.Terminals, l.Terminals},
		{"days", p.Days, l.Days},
	}
	for _, c := range caps {
		if c.max > 0 && c.value > c.max {
			return &domain.ErrValidation{Field: c.field, Message: fmt.Sprintf("must not exceed %d", c.max)}
		}
	}
	return nil
}

// NewDatasetService creates the dataset service with all dependencies injected.
func NewDatasetService(
	generator port.DatasetGenerator,
	store port.TableStore,
	registry port.Cache[domain.DatasetSummary],
	bulkhead *resilience.Bulkhead,
	limits Limits,
	metrics *observability.Metrics,
	logger *zap.Logger,
) *DatasetService {
	return &DatasetService{
		generator: generator,
		store:     store,
		registry:  registry,
		bulkhead:  bulkhead,
		limits:    limits,
		metrics:   metrics,
		logger:    logger,
	}
}

// Create generates a dataset under a fresh id, saves its tables and
// registers its summary. Requests above the limits are rejected before any
// work. At most MaxConcurrency generations run at once.
func (s *DatasetService) Create(ctx context.Context, p domain.GenerationParams) (*domain.DatasetSummary, error) {
	ctx, span := tracer.Start(ctx, "DatasetService.Create")
	defer span.End()

	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := s.limits.check(p); err != nil {
		return nil, err
	}

	if err := s.bulkhead.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.bulkhead.Release()

	id := uuid.NewString()
	span.SetAttributes(attribute.String("dataset.id", id))

	summary, err := s.generate(ctx, id, p)
	if err != nil {
		return nil, err
	}
	return summary, nil
}

func (s *DatasetService) generate(ctx context.Context, name string, p domain.GenerationParams) (*domain.DatasetSummary, error) {
	start := time.Now()
	ds, err := s.generator.Generate(ctx, p)
	if err != nil {
		return nil, fmt.Errorf("generate dataset %s: %w", name, err)
	}

	dir, err := s.store.Save(name, ds)
	if err != nil {
		return nil, fmt.Errorf("save dataset %s: %w", name, err)
	}

	summary := ds.Summarize(name, p, dir)
	s.registry.Set(name, summary)
	s.metrics.RecordRequestDuration("generate", time.Since(start))

	s.logger.Info("dataset saved",
		zap.String("dataset", name),
		zap.String("location", dir),
		zap.Int("transactions", summary.Transactions),
		zap.Int("frauds", summary.Frauds),
	)
	return &summary, nil
}

// Get returns the summary of a registered dataset.
func (s *DatasetService) Get(ctx context.Context, id string) (*domain.DatasetSummary, error) {
	_, span := tracer.Start(ctx, "DatasetService.Get")
	defer span.End()

	summary, ok := s.registry.Get(id)
	if !ok {
		s.metrics.IncrRegistryMiss(registryName)
		return nil, &domain.ErrNotFound{Resource: "dataset", ID: id}
	}
	s.metrics.IncrRegistryHit(registryName)
	return &summary, nil
}

// TablePath returns the file holding one table of a registered dataset.
func (s *DatasetService) TablePath(ctx context.Context, id, table string) (string, error) {
	if !slices.Contains(csvstore.Tables, table) {
		return "", &domain.ErrValidation{Field: "table", Message: fmt.Sprintf("unknown table %q", table)}
	}
	if _, err := s.Get(ctx, id); err != nil {
		return "", err
	}
	return s.store.Path(id, table), nil
}

// GenerateAll produces one dataset per template, named by its size. Sizes
// with any table already on disk are skipped unless force is set. base
// supplies the start date, radius and seeds.
func (s *DatasetService) GenerateAll(ctx context.Context, templates []domain.DatasetTemplate, base domain.GenerationParams, force bool) ([]domain.DatasetSummary, error) {
	ctx, span := tracer.Start(ctx, "DatasetService.GenerateAll")
	defer span.End()

	var out []domain.DatasetSummary
	for _, tpl := range templates {
		name := strconv.Itoa(tpl.Size)
		if !force && s.store.Exists(name) {
			s.logger.Info("dataset exists, skipping", zap.String("dataset", name))
			continue
		}

		p := base
		p.Customers, p.Terminals, p.Days = tpl.Customers, tpl.Terminals, tpl.Days
		if err := p.Validate(); err != nil {
			return out, fmt.Errorf("template %s: %w", name, err)
		}

		s.logger.Info("generating dataset",
			zap.String("dataset", name),
			zap.Int("customers", p.Customers),
			zap.Int("terminals", p.Terminals),
			zap.Int("days", p.Days),
		)
		summary, err := s.generate(ctx, name, p)
		if err != nil {
			return out, err
		}
		out = append(out, *summary)
	}
	return out, nil
}
