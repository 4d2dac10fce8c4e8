package graph

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/boddenberg/txsim-bench-go/internal/domain"
	"github.com/boddenberg/txsim-bench-go/internal/infra/csvstore"
	"github.com/boddenberg/txsim-bench-go/internal/infra/observability"
	"github.com/boddenberg/txsim-bench-go/internal/infra/resilience"

	"github.com/sony/gobreaker"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.uber.org/zap"
)

var tracer = otel.Tracer("graph")

// Options configures a Loader.
type Options struct {
	// OutputDir receives the CSV results of tabular queries.
	OutputDir string
	ChunkSize int
	Retry     resilience.Config
}

// Loader writes one dataset into a graph store.
type Loader struct {
	runner  Runner
	opts    Options
	cb      *gobreaker.CircuitBreaker
	metrics *observability.Metrics
	logger  *zap.Logger
}

// NewLoader creates a Loader. Statements share one circuit breaker.
func NewLoader(runner Runner, opts Options, cb *gobreaker.CircuitBreaker, metrics *observability.Metrics, logger *zap.Logger) *Loader {
	if opts.ChunkSize <= 0 {
		opts.ChunkSize = 5000
	}
	return &Loader{runner: runner, opts: opts, cb: cb, metrics: metrics, logger: logger}
}

// exec runs one statement with retries behind the breaker, then records its
// duration and server time.
func (l *Loader) exec(ctx context.Context, statement, cypher string, params map[string]any) (*Result, error) {
	ctx, span := tracer.Start(ctx, "graph."+statement)
	defer span.End()

	start := time.Now()
	var res *Result
	err := resilience.RetryWithBackoff(ctx, l.opts.Retry, func(ctx context.Context) error {
		return resilience.Guard(l.cb, func() error {
			var err error
			res, err = l.runner.Run(ctx, cypher, params)
			return err
		})
	})
	l.metrics.RecordGraphStatement(statement, time.Since(start))

	if err != nil {
		l.metrics.IncrGraphError(statement)
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		l.logger.Error("graph statement failed", zap.String("statement", statement), zap.Error(err))
		return nil, &domain.ErrExternalService{Service: "neo4j", Err: err}
	}

	span.SetAttributes(
		attribute.Int("graph.records", len(res.Records)),
		attribute.Int64("graph.server_time_ms", res.ServerTime().Milliseconds()),
	)
	l.logger.Info("graph statement completed",
		zap.String("statement", statement),
		zap.Int64("server_time_ms", res.ServerTime().Milliseconds()),
		zap.Int("records", len(res.Records)),
	)
	return res, nil
}

// Ping verifies that the graph store is reachable.
func (l *Loader) Ping(ctx context.Context) error {
	if err := l.runner.VerifyConnectivity(ctx); err != nil {
		return &domain.ErrExternalService{Service: "neo4j", Err: err}
	}
	return nil
}

// LoadCustomers merges Customer nodes from a CSV URL the server can read.
func (l *Loader) LoadCustomers(ctx context.Context, url string) error {
	l.logger.Info("loading customers", zap.String("url", url))
	_, err := l.exec(ctx, "load_customers", loadCustomersCypher, map[string]any{"path": url})
	return err
}

// LoadTerminals merges Terminal nodes from a CSV URL the server can read.
func (l *Loader) LoadTerminals(ctx context.Context, url string) error {
	l.logger.Info("loading terminals", zap.String("url", url))
	_, err := l.exec(ctx, "load_terminals", loadTerminalsCypher, map[string]any{"path": url})
	return err
}

// LoadTransactions reads a local transaction table and sends it in batches
// of ChunkSize rows, linking each Transaction to its Customer and Terminal.
// It returns the number of rows sent.
func (l *Loader) LoadTransactions(ctx context.Context, path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("open transaction table: %w", err)
	}
	defer f.Close()

	l.logger.Info("loading transactions", zap.String("path", path), zap.Int("chunk_size", l.opts.ChunkSize))

	var (
		processed  int
		serverTime time.Duration
	)
	err = csvstore.ReadTransactions(f, l.opts.ChunkSize, func(batch []domain.Transaction) error {
		res, err := l.exec(ctx, "load_transactions", loadTransactionsCypher, map[string]any{"batch": batchRows(batch)})
		if err != nil {
			return err
		}
		processed += len(batch)
		serverTime += res.ServerTime()
		l.logger.Info("processed transactions", zap.Int("lines", processed))
		return nil
	})
	if err != nil {
		return processed, err
	}

	l.logger.Info("transactions loaded",
		zap.Int("lines", processed),
		zap.Int64("server_time_ms", serverTime.Milliseconds()),
	)
	return processed, nil
}

func batchRows(batch []domain.Transaction) []map[string]any {
	rows := make([]map[string]any, len(batch))
	for i, tx := range batch {
		fraud := 0
		if tx.Fraud {
			fraud = 1
		}
		rows[i] = map[string]any{
			"TRANSACTION_ID":    tx.ID,
			"TX_DATETIME":       tx.Timestamp.UTC().Format(csvstore.DateTimeLayout),
			"TX_AMOUNT":         tx.Amount,
			"TX_FRAUD":          fraud,
			"TX_FRAUD_SCENARIO": int(tx.Scenario),
			"CUSTOMER_ID":       tx.CustomerID,
			"TERMINAL_ID":       tx.TerminalID,
		}
	}
	return rows
}

// CreateIndex creates an identifier index if it does not exist.
func (l *Loader) CreateIndex(ctx context.Context, idx Index) error {
	_, err := l.exec(ctx, "index_"+strings.ToLower(idx.Label), idx.Cypher(), nil)
	return err
}

// Sources locates the three tables of one dataset.
type Sources struct {
	CustomerURL     string
	TerminalURL     string
	TransactionPath string
}

// LoadDataset loads customers, terminals and transactions, each followed by
// its identifier index.
func (l *Loader) LoadDataset(ctx context.Context, src Sources) error {
	if err := l.LoadCustomers(ctx, src.CustomerURL); err != nil {
		return err
	}
	if err := l.CreateIndex(ctx, CustomerIndex); err != nil {
		return err
	}
	if err := l.LoadTerminals(ctx, src.TerminalURL); err != nil {
		return err
	}
	if err := l.CreateIndex(ctx, TerminalIndex); err != nil {
		return err
	}
	if _, err := l.LoadTransactions(ctx, src.TransactionPath); err != nil {
		return err
	}
	return l.CreateIndex(ctx, TransactionIndex)
}

// RunQuery runs q and, for tabular queries, saves the records to
// <OutputDir>/<Name>.csv.
func (l *Loader) RunQuery(ctx context.Context, q Query) (*Result, error) {
	for i, setup := range q.Setup {
		if _, err := l.exec(ctx, fmt.Sprintf("%s_setup_%d", q.Name, i+1), setup, nil); err != nil {
			return nil, err
		}
	}

	res, err := l.exec(ctx, q.Name, q.Cypher, nil)
	if err != nil {
		return nil, err
	}
	if !q.Output {
		return res, nil
	}

	path := filepath.Join(l.opts.OutputDir, q.Name+".csv")
	if err := writeResult(path, res); err != nil {
		return nil, fmt.Errorf("save %s results: %w", q.Name, err)
	}
	l.logger.Info("query results saved", zap.String("query", q.Name), zap.String("path", path))
	return res, nil
}

// RunQueries runs every fixed query in order.
func (l *Loader) RunQueries(ctx context.Context) error {
	for _, q := range Queries {
		if _, err := l.RunQuery(ctx, q); err != nil {
			return err
		}
	}
	return nil
}

func writeResult(path string, res *Result) (err error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer func() {
		if cerr := f.Close(); err == nil {
			err = cerr
		}
	}()

	cw := csv.NewWriter(f)
	if err := cw.Write(res.Keys); err != nil {
		return err
	}
	row := make([]string, len(res.Keys))
	for _, rec := range res.Records {
		for i := range row {
			row[i] = ""
			if i < len(rec) {
				row[i] = formatValue(rec[i])
			}
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatValue(v any) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case int64:
		return strconv.FormatInt(x, 10)
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(x)
	case time.Time:
		return x.Format(time.RFC3339Nano)
	case []any:
		parts := make([]string, len(x))
		for i, e := range x {
			parts[i] = formatValue(e)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return fmt.Sprint(x)
	}
}
