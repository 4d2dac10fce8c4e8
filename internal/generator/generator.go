package generator

import (
	"context"
	"fmt"
	"runtime"
	"time"

	"github.com/boddenberg/txsim-bench-go/internal/domain"
	"github.com/boddenberg/txsim-bench-go/internal/infra/observability"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("generator")

// Options tunes how a dataset is computed. None of them change the output.
type Options struct {
	Workers       int
	GridThreshold int
	Rules         FraudRules
}

// DefaultOptions uses one worker per CPU and the default fraud rules.
func DefaultOptions() Options {
	return Options{
		Workers:       runtime.NumCPU(),
		GridThreshold: 2000,
		Rules:         DefaultFraudRules(),
	}
}

// Generator runs the full pipeline: profiles, terminal assignment,
// simulation, assembly and fraud injection.
type Generator struct {
	opts    Options
	metrics *observability.Metrics
	logger  *zap.Logger
}

// New creates a generator with all dependencies injected.
func New(opts Options, metrics *observability.Metrics, logger *zap.Logger) *Generator {
	return &Generator{opts: opts, metrics: metrics, logger: logger}
}

// stage runs fn inside a span, then records and logs its duration.
func (g *Generator) stage(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	ctx, span := tracer.Start(ctx, "Generator."+name)
	defer span.End()

	start := time.Now()
	err := fn(ctx)
	elapsed := time.Since(start)

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return fmt.Errorf("%s: %w", name, err)
	}

	g.metrics.RecordStage(name, elapsed)
	g.logger.Info("stage finished",
		zap.String("stage", name),
		zap.Duration("elapsed", elapsed),
	)
	return nil
}

// Generate validates params and produces the three tables. Invalid params
// fail before any work is done; a cancelled ctx aborts the run and no
// partial dataset is returned.
func (g *Generator) Generate(ctx context.Context, p domain.GenerationParams) (*domain.Dataset, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "Generator.Generate", trace.WithAttributes(
		attribute.Int("customers", p.Customers),
		attribute.Int("terminals", p.Terminals),
		attribute.Int("days", p.Days),
		attribute.Float64("radius", p.Radius),
	))
	defer span.End()

	ds, err := g.run(ctx, p)
	if err != nil {
		g.metrics.IncrDatasetFailure()
		g.logger.Error("dataset generation failed", zap.Error(err))
		return nil, err
	}

	g.metrics.RecordDataset(ds)
	g.logger.Info("dataset generated",
		zap.Int("customers", len(ds.Customers)),
		zap.Int("terminals", len(ds.Terminals)),
		zap.Int("transactions", len(ds.Transactions)),
		zap.Int("frauds", ds.Fraud.TotalFrauds()),
	)
	return ds, nil
}

func (g *Generator) run(ctx context.Context, p domain.GenerationParams) (*domain.Dataset, error) {
	ds := &domain.Dataset{}

	err := g.stage(ctx, "customer_profiles", func(context.Context) error {
		customers, err := GenerateCustomerProfiles(p.Customers, p.CustomerSeed)
		ds.Customers = customers
		return err
	})
	if err != nil {
		return nil, err
	}

	err = g.stage(ctx, "terminal_profiles", func(context.Context) error {
		terminals, err := GenerateTerminalProfiles(p.Terminals, p.TerminalSeed)
		ds.Terminals = terminals
		return err
	})
	if err != nil {
		return nil, err
	}

	err = g.stage(ctx, "terminal_assignment", func(ctx context.Context) error {
		return AssignTerminals(ctx, ds.Customers, ds.Terminals, p.Radius, g.opts.GridThreshold, g.opts.Workers)
	})
	if err != nil {
		return nil, err
	}

	var perCustomer [][]domain.Transaction
	err = g.stage(ctx, "transactions", func(ctx context.Context) error {
		var err error
		perCustomer, err = SimulateAll(ctx, ds.Customers, p.Days, g.opts.Workers)
		return err
	})
	if err != nil {
		return nil, err
	}

	err = g.stage(ctx, "assembly", func(context.Context) error {
		ds.Transactions = Assemble(perCustomer, p.StartDate)
		return nil
	})
	if err != nil {
		return nil, err
	}

	err = g.stage(ctx, "fraud_injection", func(ctx context.Context) error {
		report, err := InjectFrauds(ctx, ds.Transactions, ds.Customers, ds.Terminals, g.opts.Rules, g.opts.Workers)
		ds.Fraud = report
		return err
	})
	if err != nil {
		return nil, err
	}

	for _, s := range ds.Fraud.Scenarios {
		g.logger.Info("frauds injected",
			zap.Stringer("scenario", s.Scenario),
			zap.Int("introduced", s.Introduced),
			zap.Int("final", s.Final),
			zap.Duration("elapsed", s.Duration),
		)
	}
	return ds, nil
}
