package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/boddenberg/txsim-bench-go/internal/config"
	"github.com/boddenberg/txsim-bench-go/internal/domain"
	"github.com/boddenberg/txsim-bench-go/internal/generator"
	"github.com/boddenberg/txsim-bench-go/internal/handler"
	"github.com/boddenberg/txsim-bench-go/internal/infra/cache"
	"github.com/boddenberg/txsim-bench-go/internal/infra/csvstore"
	"github.com/boddenberg/txsim-bench-go/internal/infra/graph"
	"github.com/boddenberg/txsim-bench-go/internal/infra/observability"
	"github.com/boddenberg/txsim-bench-go/internal/infra/resilience"
	"github.com/boddenberg/txsim-bench-go/internal/port"
	"github.com/boddenberg/txsim-bench-go/internal/service"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const usage = `usage: txgen <command> [flags]

commands:
  generate   generate every configured dataset size into DATA_DIR
  load       load datasets into Neo4j and run the analytical queries
  serve      run the HTTP API`

// app bundles what every subcommand needs.
type app struct {
	cfg     *config.Config
	logger  *zap.Logger
	metrics *observability.Metrics
}

func main() {
	if len(os.Args) < 2 {
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}

	// --- Load .env file (for local development) ---
	_ = config.LoadDotEnv(".env")

	// --- Config ---
	cfg := config.Load()

	// --- Logger ---
	logger := observability.NewLogger(cfg.LogLevel, cfg.LogFile)
	defer logger.Sync()

	logger.Info("configuration loaded",
		zap.String("command", os.Args[1]),
		zap.String("data_dir", cfg.DataDir),
		zap.String("output_dir", cfg.OutputDir),
		zap.Time("start_date", cfg.StartDate),
		zap.Float64("radius", cfg.Radius),
		zap.Int("templates", len(cfg.Templates)),
		zap.Int("workers", cfg.Workers),
		zap.Int("max_retries", cfg.MaxRetries),
		zap.Duration("initial_backoff", cfg.InitialBackoff),
	)

	// --- Tracing ---
	shutdown, err := observability.InitTracer(cfg.OTLPEndpoint, "txsim-bench")
	if err != nil {
		logger.Fatal("failed to init tracer", zap.Error(err))
	}
	defer shutdown(context.Background())

	a := &app{cfg: cfg, logger: logger, metrics: observability.NewMetrics()}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	args := os.Args[2:]
	switch os.Args[1] {
	case "generate":
		err = a.generate(ctx, args)
	case "load":
		err = a.load(ctx, args)
	case "serve":
		err = a.serve(ctx, args)
	default:
		fmt.Fprintln(os.Stderr, usage)
		os.Exit(2)
	}
	if err != nil {
		logger.Error("command failed", zap.String("command", os.Args[1]), zap.Error(err))
		logger.Sync()
		os.Exit(1)
	}
}

func (a *app) newGenerator() *generator.Generator {
	opts := generator.DefaultOptions()
	opts.Workers = a.cfg.Workers
	opts.GridThreshold = a.cfg.GridThreshold
	return generator.New(opts, a.metrics, a.logger)
}

func (a *app) baseParams() domain.GenerationParams {
	return domain.GenerationParams{
		StartDate:    a.cfg.StartDate,
		Radius:       a.cfg.Radius,
		CustomerSeed: a.cfg.CustomerSeed,
		TerminalSeed: a.cfg.TerminalSeed,
	}
}

func (a *app) resilienceConfig() resilience.Config {
	return resilience.Config{
		MaxRetries:     a.cfg.MaxRetries,
		InitialBackoff: a.cfg.InitialBackoff,
		MaxBackoff:     30 * time.Second,
		MaxConcurrency: a.cfg.MaxConcurrency,
	}
}

// selectTemplates keeps the templates whose size is listed in sizes
// ("100,300"); an empty list keeps all.
func selectTemplates(all []domain.DatasetTemplate, sizes string) ([]domain.DatasetTemplate, error) {
	if sizes == "" {
		return all, nil
	}
	var out []domain.DatasetTemplate
	for _, s := range strings.Split(sizes, ",") {
		size, err := strconv.Atoi(strings.TrimSpace(s))
		if err != nil {
			return nil, fmt.Errorf("invalid size %q", s)
		}
		i := slices.IndexFunc(all, func(t domain.DatasetTemplate) bool { return t.Size == size })
		if i < 0 {
			return nil, fmt.Errorf("no template for size %d", size)
		}
		out = append(out, all[i])
	}
	return out, nil
}

// ============================================================
// generate
// ============================================================

func (a *app) generate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("generate", flag.ContinueOnError)
	force := fs.Bool("force", false, "regenerate sizes whose tables already exist")
	sizes := fs.String("sizes", "", "comma-separated sizes to generate (default all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	templates, err := selectTemplates(a.cfg.Templates, *sizes)
	if err != nil {
		return err
	}

	registry := cache.New[domain.DatasetSummary](a.cfg.CacheTTL)
	defer registry.Close()

	svc := service.NewDatasetService(
		a.newGenerator(),
		csvstore.New(a.cfg.DataDir),
		registry,
		resilience.NewBulkhead(1),
		service.Limits{},
		a.metrics,
		a.logger,
	)

	summaries, err := svc.GenerateAll(ctx, templates, a.baseParams(), *force)
	if err != nil {
		return err
	}
	for _, s := range summaries {
		a.logger.Info("dataset generated",
			zap.String("dataset", s.ID),
			zap.Int("transactions", s.Transactions),
			zap.Int("frauds", s.Frauds),
		)
	}
	return nil
}

// ============================================================
// load
// ============================================================

func (a *app) load(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("load", flag.ContinueOnError)
	sizes := fs.String("sizes", "", "comma-separated sizes to load (default all)")
	skipLoad := fs.Bool("skip-load", false, "only run the queries")
	queries := fs.String("queries", "", "comma-separated query names (default all)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	templates, err := selectTemplates(a.cfg.Templates, *sizes)
	if err != nil {
		return err
	}

	var selected []graph.Query
	if *queries == "" {
		selected = graph.Queries
	} else {
		for _, name := range strings.Split(*queries, ",") {
			q, ok := graph.LookupQuery(strings.TrimSpace(name))
			if !ok {
				return fmt.Errorf("unknown query %q", name)
			}
			selected = append(selected, q)
		}
	}

	store := csvstore.New(a.cfg.DataDir)
	for _, tpl := range templates {
		if err := a.loadSize(ctx, store, tpl.Size, *skipLoad, selected); err != nil {
			return fmt.Errorf("dataset %d: %w", tpl.Size, err)
		}
	}
	return nil
}

func (a *app) loadSize(ctx context.Context, store *csvstore.Store, size int, skipLoad bool, queries []graph.Query) error {
	uri := a.cfg.Neo4jURIFor(size)
	logger := a.logger.With(zap.String("neo4j", uri), zap.Int("size", size))

	runner, err := graph.NewNeo4jRunner(uri, a.cfg.Neo4jUser, a.cfg.Neo4jPassword)
	if err != nil {
		return err
	}
	defer runner.Close(context.Background())

	loader := graph.NewLoader(runner, graph.Options{
		OutputDir: filepath.Join(a.cfg.OutputDir, strconv.Itoa(size)),
		ChunkSize: a.cfg.Neo4jChunkSize,
		Retry:     a.resilienceConfig(),
	}, resilience.NewCircuitBreaker(uri, logger), a.metrics, logger)

	if err := loader.Ping(ctx); err != nil {
		return err
	}

	name := strconv.Itoa(size)
	if !skipLoad {
		// Neo4j reads node tables from its import directory, which mounts DATA_DIR.
		err := loader.LoadDataset(ctx, graph.Sources{
			CustomerURL:     fmt.Sprintf("file:///%s/%s.csv", name, csvstore.TableCustomer),
			TerminalURL:     fmt.Sprintf("file:///%s/%s.csv", name, csvstore.TableTerminal),
			TransactionPath: store.Path(name, csvstore.TableTransaction),
		})
		if err != nil {
			return err
		}
	}

	for _, q := range queries {
		if _, err := loader.RunQuery(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

// ============================================================
// serve
// ============================================================

func (a *app) serve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("serve", flag.ContinueOnError)
	listenPort := fs.Int("port", a.cfg.Port, "listen port")
	if err := fs.Parse(args); err != nil {
		return err
	}

	// --- Registry ---
	var (
		registry port.Cache[domain.DatasetSummary]
		checks   []handler.HealthCheck
	)
	if a.cfg.RedisAddr != "" {
		a.logger.Info("using Redis dataset registry", zap.String("redis_addr", a.cfg.RedisAddr))
		rc := cache.NewRedis[domain.DatasetSummary](
			redis.NewClient(&redis.Options{Addr: a.cfg.RedisAddr}),
			"txsim:dataset:", a.cfg.CacheTTL, a.logger,
		)
		defer rc.Close()
		registry = rc
		checks = append(checks, handler.HealthCheck{Name: "redis", Ping: rc.Ping})
	} else {
		a.logger.Info("using in-memory dataset registry")
		mem := cache.New[domain.DatasetSummary](a.cfg.CacheTTL)
		defer mem.Close()
		registry = mem
	}

	// --- Services ---
	svc := service.NewDatasetService(
		a.newGenerator(),
		csvstore.New(filepath.Join(a.cfg.DataDir, "api")),
		registry,
		resilience.NewBulkhead(a.cfg.MaxConcurrency),
		service.Limits{
			Customers: a.cfg.MaxAPICustomers,
			Terminals: a.cfg.MaxAPITerminals,
			Days:      a.cfg.MaxAPIDays,
		},
		a.metrics,
		a.logger,
	)

	// --- Router ---
	router := handler.NewRouter(svc, handler.Config{
		JWTSecret: a.cfg.JWTSecret,
		Defaults:  a.baseParams(),
		Checks:    checks,
	}, a.metrics, a.logger)
	if a.cfg.JWTSecret == "" {
		a.logger.Warn("API_JWT_SECRET not set, /v1 routes are unauthenticated")
	}

	// --- Server ---
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", *listenPort),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 5 * time.Minute, // generation runs inside the request
		IdleTimeout:  60 * time.Second,
	}

	// --- Graceful shutdown ---
	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("server starting", zap.Int("port", *listenPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.logger.Info("server shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server forced shutdown: %w", err)
	}

	a.logger.Info("server stopped")
	return nil
}
