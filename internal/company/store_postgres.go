package company

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	id "expensio/pkg/domain"
	"expensio/pkg/platform/sentinel"
)

// Postgres persists companies.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

func (s *Postgres) Create(ctx context.Context, company *Company) error {
	if err := company.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO companies (id, name, country, currency, created_at)
		VALUES ($1, $2, $3, $4, $5)`,
		company.ID.String(), company.Name, company.Country, company.Currency, company.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert company: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, companyID id.CompanyID) (*Company, error) {
	var (
		company Company
		rawID   string
	)
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, country, currency, created_at
		FROM companies WHERE id = $1`, companyID.String()).
		Scan(&rawID, &company.Name, &company.Country, &company.Currency, &company.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find company: %w", err)
	}
	if company.ID, err = id.ParseCompanyID(rawID); err != nil {
		return nil, err
	}
	return &company, nil
}
