//go:build integration

package containers

import (
	"context"
	"testing"

	"github.com/jackc/pgx/v5/pgxpool"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

// schema bootstraps every table the stores expect. Kept here so integration
// suites share one source of DDL truth.
const schema = `
CREATE TABLE IF NOT EXISTS companies (
	id uuid PRIMARY KEY,
	name text NOT NULL,
	country text NOT NULL DEFAULT '',
	currency text NOT NULL,
	created_at timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS users (
	id uuid PRIMARY KEY,
	company_id uuid NOT NULL,
	name text NOT NULL,
	email text NOT NULL UNIQUE,
	password_hash text NOT NULL DEFAULT '',
	role text NOT NULL,
	manager_id uuid,
	is_approver boolean NOT NULL DEFAULT false,
	created_at timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS approval_policies (
	id uuid PRIMARY KEY,
	company_id uuid NOT NULL,
	steps jsonb NOT NULL,
	mode text NOT NULL,
	threshold integer NOT NULL DEFAULT 0,
	active boolean NOT NULL,
	created_at timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS expenses (
	id uuid PRIMARY KEY,
	employee_id uuid NOT NULL,
	company_id uuid NOT NULL,
	amount double precision NOT NULL,
	currency text NOT NULL,
	normalized_amount double precision NOT NULL,
	category text NOT NULL,
	description text NOT NULL DEFAULT '',
	date timestamptz NOT NULL,
	status text NOT NULL,
	mode text NOT NULL DEFAULT '',
	threshold integer NOT NULL DEFAULT 0,
	steps jsonb NOT NULL DEFAULT '[]',
	override jsonb,
	created_at timestamptz NOT NULL,
	updated_at timestamptz NOT NULL
);

CREATE TABLE IF NOT EXISTS audit_outbox (
	id uuid PRIMARY KEY,
	payload jsonb NOT NULL,
	created_at timestamptz NOT NULL,
	published_at timestamptz
);
`

// PostgresContainer wraps a testcontainers Postgres instance with a connected
// pgx pool and the service schema applied.
type PostgresContainer struct {
	Container *tcpostgres.PostgresContainer
	Pool      *pgxpool.Pool
	URL       string
}

// NewPostgresContainer starts a Postgres container, applies the schema, and
// registers cleanup with the test.
func NewPostgresContainer(t *testing.T) *PostgresContainer {
	t.Helper()
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("expensio"),
		tcpostgres.WithUsername("expensio"),
		tcpostgres.WithPassword("expensio"),
		tcpostgres.BasicWaitStrategies(),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}
	t.Cleanup(func() { _ = container.Terminate(context.Background()) })

	url, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get postgres connection string: %v", err)
	}
	pool, err := pgxpool.New(ctx, url)
	if err != nil {
		t.Fatalf("failed to connect postgres pool: %v", err)
	}
	t.Cleanup(pool.Close)

	if _, err := pool.Exec(ctx, schema); err != nil {
		t.Fatalf("failed to apply schema: %v", err)
	}
	return &PostgresContainer{Container: container, Pool: pool, URL: url}
}

// TruncateTables clears the named tables between tests.
func (p *PostgresContainer) TruncateTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := p.Pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE"); err != nil {
			return err
		}
	}
	return nil
}
