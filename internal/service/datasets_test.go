package service_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/boddenberg/txsim-bench-go/internal/domain"
	"github.com/boddenberg/txsim-bench-go/internal/generator"
	"github.com/boddenberg/txsim-bench-go/internal/infra/cache"
	"github.com/boddenberg/txsim-bench-go/internal/infra/csvstore"
	"github.com/boddenberg/txsim-bench-go/internal/infra/observability"
	"github.com/boddenberg/txsim-bench-go/internal/infra/resilience"
	"github.com/boddenberg/txsim-bench-go/internal/service"

	"go.uber.org/zap"
)

// --- Mocks ---

type countingGenerator struct {
	inner *generator.Generator
	calls atomic.Int32
	err   error
}

func (g *countingGenerator) Generate(ctx context.Context, p domain.GenerationParams) (*domain.Dataset, error) {
	g.calls.Add(1)
	if g.err != nil {
		return nil, g.err
	}
	return g.inner.Generate(ctx, p)
}

func newService(t *testing.T, gen *countingGenerator, limits service.Limits) (*service.DatasetService, *csvstore.Store) {
	t.Helper()
	metrics := observability.NewMetrics()
	gen.inner = generator.New(generator.DefaultOptions(), metrics, zap.NewNop())

	store := csvstore.New(t.TempDir())
	registry := cache.New[domain.DatasetSummary](time.Hour)
	t.Cleanup(func() { registry.Close() })

	svc := service.NewDatasetService(gen, store, registry, resilience.NewBulkhead(2), limits, metrics, zap.NewNop())
	return svc, store
}

func smallParams() domain.GenerationParams {
	return domain.GenerationParams{
		Customers:    5,
		Terminals:    10,
		Days:         5,
		StartDate:    time.Date(2022, 1, 1, 0, 0, 0, 0, time.UTC),
		Radius:       50,
		TerminalSeed: 1,
	}
}

// --- Tests ---

func TestCreate_SavesAndRegisters(t *testing.T) {
	svc, store := newService(t, &countingGenerator{}, service.Limits{})

	summary, err := svc.Create(context.Background(), smallParams())
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if summary.ID == "" {
		t.Fatal("expected a dataset id")
	}
	if summary.Customers != 5 || summary.Terminals != 10 {
		t.Errorf("unexpected counts: %+v", summary)
	}
	if !store.Exists(summary.ID) {
		t.Error("expected tables on disk")
	}

	got, err := svc.Get(context.Background(), summary.ID)
	if err != nil {
		t.Fatalf("expected registered dataset, got %v", err)
	}
	if got.Transactions != summary.Transactions {
		t.Errorf("expected %d transactions, got %d", summary.Transactions, got.Transactions)
	}

	path, err := svc.TablePath(context.Background(), summary.ID, csvstore.TableTransaction)
	if err != nil {
		t.Fatalf("expected table path, got %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("expected transaction table at %s: %v", path, err)
	}
}

func TestCreate_ValidationErrors(t *testing.T) {
	gen := &countingGenerator{}
	svc, _ := newService(t, gen, service.Limits{Customers: 100, Terminals: 200, Days: 30})

	tests := []struct {
		name   string
		mutate func(*domain.GenerationParams)
		field  string
	}{
		{"negative customers", func(p *domain.GenerationParams) { p.Customers = -1 }, "customers"},
		{"too many customers", func(p *domain.GenerationParams) { p.Customers = 101 }, "customers"},
		{"too many terminals", func(p *domain.GenerationParams) { p.Terminals = 201 }, "terminals"},
		{"too many days", func(p *domain.GenerationParams) { p.Days = 31 }, "days"},
		{"zero days", func(p *domain.GenerationParams) { p.Days = 0 }, "days"},
		{"zero radius", func(p *domain.GenerationParams) { p.Radius = 0 }, "radius"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := smallParams()
			tt.mutate(&p)

			_, err := svc.Create(context.Background(), p)
			var validation *domain.ErrValidation
			if !errors.As(err, &validation) {
				t.Fatalf("expected ErrValidation, got %v", err)
			}
			if validation.Field != tt.field {
				t.Errorf("expected field %q, got %q", tt.field, validation.Field)
			}
		})
	}
	if n := gen.calls.Load(); n != 0 {
		t.Errorf("generator must not run on invalid input, ran %d times", n)
	}
}

func TestCreate_AtLimitsIsAccepted(t *testing.T) {
	p := smallParams()
	svc, _ := newService(t, &countingGenerator{}, service.Limits{Customers: p.Customers, Terminals: p.Terminals, Days: p.Days})

	if _, err := svc.Create(context.Background(), p); err != nil {
		t.Fatalf("expected params at the limits to pass, got %v", err)
	}
}

func TestCreate_GeneratorFailure(t *testing.T) {
	boom := errors.New("boom")
	svc, _ := newService(t, &countingGenerator{err: boom}, service.Limits{})

	_, err := svc.Create(context.Background(), smallParams())
	if !errors.Is(err, boom) {
		t.Fatalf("expected wrapped generator error, got %v", err)
	}
}

func TestGet_UnknownDataset(t *testing.T) {
	svc, _ := newService(t, &countingGenerator{}, service.Limits{})

	_, err := svc.Get(context.Background(), "missing")
	var notFound *domain.ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestTablePath_UnknownTable(t *testing.T) {
	svc, _ := newService(t, &countingGenerator{}, service.Limits{})

	_, err := svc.TablePath(context.Background(), "any", "accounts")
	var validation *domain.ErrValidation
	if !errors.As(err, &validation) {
		t.Fatalf("expected ErrValidation, got %v", err)
	}
}

func TestGenerateAll_SkipsExistingUnlessForced(t *testing.T) {
	gen := &countingGenerator{}
	svc, store := newService(t, gen, service.Limits{})

	templates := []domain.DatasetTemplate{
		{Size: 1, Customers: 3, Terminals: 6, Days: 3},
		{Size: 2, Customers: 4, Terminals: 8, Days: 3},
	}
	base := smallParams()

	// A stale table marks size 1 as present.
	if err := os.MkdirAll(store.Dir("1"), 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(store.Dir("1"), "customer.csv"), []byte("stale"), 0o644); err != nil {
		t.Fatal(err)
	}

	summaries, err := svc.GenerateAll(context.Background(), templates, base, false)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(summaries) != 1 || summaries[0].ID != "2" {
		t.Fatalf("expected only dataset 2, got %+v", summaries)
	}
	if n := gen.calls.Load(); n != 1 {
		t.Errorf("expected 1 generation, got %d", n)
	}

	summaries, err = svc.GenerateAll(context.Background(), templates, base, true)
	if err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if len(summaries) != 2 {
		t.Fatalf("expected both datasets when forced, got %d", len(summaries))
	}
	if summaries[0].Customers != 3 || summaries[1].Customers != 4 {
		t.Errorf("template counts not applied: %+v", summaries)
	}

	if _, err := svc.Get(context.Background(), "1"); err != nil {
		t.Errorf("expected dataset 1 registered, got %v", err)
	}
}
