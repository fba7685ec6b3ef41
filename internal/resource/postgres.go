package resource

import (
	"context"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"

	"github.com/flowforge/runtime/pkg/errors"
)

// PostgresProvider is a concrete Resource backed by database/sql's
// "postgres" driver via sqlx, connection-string-driven and pooled
// generically through Pool rather than held as a single package-level
// client.
type PostgresProvider struct {
	MaxOpenConnsPerInstance int
}

func NewPostgresProvider() *PostgresProvider {
	return &PostgresProvider{MaxOpenConnsPerInstance: 1}
}

func (p *PostgresProvider) ID() string { return "postgres" }

func (p *PostgresProvider) Create(ctx context.Context, cfg Config) (Instance, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", cfg.ConnectionString)
	if err != nil {
		return nil, errors.Internal("connect to postgres", err)
	}
	db.SetMaxOpenConns(p.MaxOpenConnsPerInstance)
	db.SetMaxIdleConns(p.MaxOpenConnsPerInstance)
	return db, nil
}

func (p *PostgresProvider) HealthCheck(ctx context.Context, inst Instance) HealthStatus {
	db, ok := inst.(*sqlx.DB)
	if !ok {
		return Unhealthy
	}
	if err := db.PingContext(ctx); err != nil {
		return Unhealthy
	}
	return Healthy
}

func (p *PostgresProvider) Cleanup(ctx context.Context, inst Instance) error {
	db, ok := inst.(*sqlx.DB)
	if !ok {
		return nil
	}
	return db.Close()
}
