// Package db builds the pgx connection pool the repositories run on.
package db

import (
	"context"
	"fmt"

	"github.com/exaring/otelpgx"
	"github.com/jackc/pgx/v5/pgxpool"
)

// appName shows up in pg_stat_activity, so stray connections from this
// service are easy to tell apart from other clients of the same cluster.
const appName = "fitlog-service"

// PoolParams locates the service database. Authentication is left to the
// cluster setup (trust locally, peer/password in deployment).
type PoolParams struct {
	Host           string
	Port           string
	Database       string
	TracingEnabled bool
}

// NewPool connects to the service database and returns the shared pool.
// With tracing enabled every query is wrapped in an otel span.
func NewPool(ctx context.Context, params PoolParams) (*pgxpool.Pool, error) {
	connString := fmt.Sprintf(
		"postgres://postgres@%s:%s/%s?application_name=%s",
		params.Host, params.Port, params.Database, appName,
	)
	poolConfig, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, fmt.Errorf("parse db config: %w", err)
	}

	if params.TracingEnabled {
		poolConfig.ConnConfig.Tracer = otelpgx.NewTracer()
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolConfig)
	if err != nil {
		return nil, fmt.Errorf("create connection pool: %w", err)
	}

	return pool, nil
}
