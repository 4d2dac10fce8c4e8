// Package graph loads generated datasets into Neo4j and runs the fixed
// analytical queries against them.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
)

// Result is the materialised outcome of one Cypher statement.
type Result struct {
	Keys    []string
	Records [][]any

	// Server-side timings reported in the result summary.
	AvailableAfter time.Duration
	ConsumedAfter  time.Duration
}

// ServerTime is the total time the server spent on the statement.
func (r *Result) ServerTime() time.Duration {
	return r.AvailableAfter + r.ConsumedAfter
}

// Runner executes auto-commit Cypher statements.
type Runner interface {
	Run(ctx context.Context, cypher string, params map[string]any) (*Result, error)
	VerifyConnectivity(ctx context.Context) error
	Close(ctx context.Context) error
}

// Neo4jRunner runs statements on a Neo4j driver, one session per statement.
type Neo4jRunner struct {
	driver neo4j.DriverWithContext
}

// NewNeo4jRunner connects to uri with basic auth.
func NewNeo4jRunner(uri, user, password string) (*Neo4jRunner, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(user, password, ""))
	if err != nil {
		return nil, fmt.Errorf("neo4j driver for %s: %w", uri, err)
	}
	return &Neo4jRunner{driver: driver}, nil
}

// Run executes cypher in an implicit transaction, which CALL { } IN
// TRANSACTIONS requires, and collects every record.
func (r *Neo4jRunner) Run(ctx context.Context, cypher string, params map[string]any) (*Result, error) {
	session := r.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	res, err := session.Run(ctx, cypher, params)
	if err != nil {
		return nil, err
	}

	keys, err := res.Keys()
	if err != nil {
		return nil, err
	}
	records, err := res.Collect(ctx)
	if err != nil {
		return nil, err
	}
	summary, err := res.Consume(ctx)
	if err != nil {
		return nil, err
	}

	out := &Result{
		Keys:           keys,
		Records:        make([][]any, len(records)),
		AvailableAfter: summary.ResultAvailableAfter(),
		ConsumedAfter:  summary.ResultConsumedAfter(),
	}
	for i, rec := range records {
		out.Records[i] = rec.Values
	}
	return out, nil
}

// VerifyConnectivity checks that the server is reachable.
func (r *Neo4jRunner) VerifyConnectivity(ctx context.Context) error {
	return r.driver.VerifyConnectivity(ctx)
}

// Close releases the driver's connections.
func (r *Neo4jRunner) Close(ctx context.Context) error {
	return r.driver.Close(ctx)
}
