package policy

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	id "expensio/pkg/domain"
	"expensio/pkg/platform/sentinel"
)

// Postgres persists approval policies. Steps are stored as a jsonb document;
// a policy is read and written as one aggregate.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// Create deactivates prior active policies for the company and inserts the
// new one in a single transaction.
func (s *Postgres) Create(ctx context.Context, pol *ApprovalPolicy) error {
	if err := pol.Validate(); err != nil {
		return err
	}
	steps, err := json.Marshal(pol.Steps)
	if err != nil {
		return fmt.Errorf("marshal policy steps: %w", err)
	}
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin policy tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx,
		`UPDATE approval_policies SET active = false WHERE company_id = $1 AND active`,
		pol.CompanyID.String()); err != nil {
		return fmt.Errorf("deactivate prior policies: %w", err)
	}
	if _, err := tx.Exec(ctx, `
		INSERT INTO approval_policies (id, company_id, steps, mode, threshold, active, created_at)
		VALUES ($1, $2, $3, $4, $5, true, $6)`,
		pol.ID.String(), pol.CompanyID.String(), steps, string(pol.Mode),
		pol.Threshold, pol.CreatedAt); err != nil {
		return fmt.Errorf("insert policy: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit policy tx: %w", err)
	}
	pol.Active = true
	return nil
}

func (s *Postgres) ActiveFor(ctx context.Context, companyID id.CompanyID) (*ApprovalPolicy, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT id, company_id, steps, mode, threshold, active, created_at
		FROM approval_policies WHERE company_id = $1 AND active`,
		companyID.String())
	pol, err := scanPolicy(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return pol, nil
}

func (s *Postgres) ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*ApprovalPolicy, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, company_id, steps, mode, threshold, active, created_at
		FROM approval_policies WHERE company_id = $1 ORDER BY created_at, id`,
		companyID.String())
	if err != nil {
		return nil, fmt.Errorf("list policies: %w", err)
	}
	defer rows.Close()

	var policies []*ApprovalPolicy
	for rows.Next() {
		pol, err := scanPolicy(rows)
		if err != nil {
			return nil, err
		}
		policies = append(policies, pol)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate policies: %w", err)
	}
	return policies, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPolicy(row rowScanner) (*ApprovalPolicy, error) {
	var (
		pol          ApprovalPolicy
		rawID        string
		rawCompanyID string
		rawSteps     []byte
		rawMode      string
	)
	err := row.Scan(&rawID, &rawCompanyID, &rawSteps, &rawMode, &pol.Threshold,
		&pol.Active, &pol.CreatedAt)
	if err != nil {
		return nil, err
	}
	if pol.ID, err = id.ParsePolicyID(rawID); err != nil {
		return nil, err
	}
	if pol.CompanyID, err = id.ParseCompanyID(rawCompanyID); err != nil {
		return nil, err
	}
	if err := json.Unmarshal(rawSteps, &pol.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal policy steps: %w", err)
	}
	pol.Mode = Mode(rawMode)
	return &pol, nil
}
