package expense

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"expensio/internal/policy"
	id "expensio/pkg/domain"
	"expensio/pkg/platform/sentinel"
)

// Postgres persists expense aggregates in a single row each; the step
// sequence and override record are jsonb documents. Execute serializes
// concurrent decisions with SELECT ... FOR UPDATE.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const expenseColumns = `id, employee_id, company_id, amount, currency, normalized_amount,
	category, description, date, status, mode, threshold, steps, override, created_at, updated_at`

func (s *Postgres) Create(ctx context.Context, exp *Expense) error {
	steps, override, err := marshalAggregate(exp)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO expenses (id, employee_id, company_id, amount, currency, normalized_amount,
			category, description, date, status, mode, threshold, steps, override, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)`,
		exp.ID.String(), exp.EmployeeID.String(), exp.CompanyID.String(),
		exp.Amount, exp.Currency, exp.NormalizedAmount,
		exp.Category, exp.Description, exp.Date, string(exp.Status),
		string(exp.Mode), exp.Threshold, steps, override, exp.CreatedAt, exp.UpdatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert expense: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, expenseID id.ExpenseID) (*Expense, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = $1`, expenseID.String())
	exp, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	return exp, nil
}

// Execute locks the expense row FOR UPDATE, runs validate then mutate against
// the loaded aggregate, and writes the mutable columns back. A validation
// error rolls the transaction back with the row untouched.
func (s *Postgres) Execute(ctx context.Context, expenseID id.ExpenseID,
	validate func(*Expense) error, mutate func(*Expense)) (*Expense, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin expense tx: %w", err)
	}
	defer tx.Rollback(ctx)

	row := tx.QueryRow(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE id = $1 FOR UPDATE`, expenseID.String())
	exp, err := scanExpense(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, err
	}
	if err := validate(exp); err != nil {
		return nil, err
	}
	mutate(exp)

	steps, override, err := marshalAggregate(exp)
	if err != nil {
		return nil, err
	}
	if _, err := tx.Exec(ctx, `
		UPDATE expenses SET status = $2, steps = $3, override = $4, updated_at = $5
		WHERE id = $1`,
		exp.ID.String(), string(exp.Status), steps, override, exp.UpdatedAt); err != nil {
		return nil, fmt.Errorf("update expense: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit expense tx: %w", err)
	}
	return exp, nil
}

func (s *Postgres) ListByEmployee(ctx context.Context, employeeID id.UserID) ([]*Expense, error) {
	return s.list(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE employee_id = $1 ORDER BY created_at, id`,
		employeeID.String())
}

func (s *Postgres) ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*Expense, error) {
	return s.list(ctx,
		`SELECT `+expenseColumns+` FROM expenses WHERE company_id = $1 ORDER BY created_at, id`,
		companyID.String())
}

func (s *Postgres) ListByApprover(ctx context.Context, approverID id.UserID) ([]*Expense, error) {
	return s.list(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(steps) step
			WHERE step->>'approver_id' = $1
		)
		ORDER BY created_at, id`,
		approverID.String())
}

func (s *Postgres) ListPendingFor(ctx context.Context, approverID id.UserID) ([]*Expense, error) {
	return s.list(ctx, `
		SELECT `+expenseColumns+` FROM expenses
		WHERE EXISTS (
			SELECT 1 FROM jsonb_array_elements(steps) step
			WHERE step->>'approver_id' = $1 AND step->>'status' = 'pending'
		)
		ORDER BY created_at, id`,
		approverID.String())
}

func (s *Postgres) list(ctx context.Context, query string, args ...any) ([]*Expense, error) {
	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list expenses: %w", err)
	}
	defer rows.Close()

	var expenses []*Expense
	for rows.Next() {
		exp, err := scanExpense(rows)
		if err != nil {
			return nil, err
		}
		expenses = append(expenses, exp)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate expenses: %w", err)
	}
	return expenses, nil
}

func marshalAggregate(exp *Expense) (steps, override []byte, err error) {
	if exp.Steps == nil {
		steps = []byte("[]")
	} else if steps, err = json.Marshal(exp.Steps); err != nil {
		return nil, nil, fmt.Errorf("marshal expense steps: %w", err)
	}
	if exp.Override != nil {
		if override, err = json.Marshal(exp.Override); err != nil {
			return nil, nil, fmt.Errorf("marshal override record: %w", err)
		}
	}
	return steps, override, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanExpense(row rowScanner) (*Expense, error) {
	var (
		exp           Expense
		rawID         string
		rawEmployeeID string
		rawCompanyID  string
		rawStatus     string
		rawMode       string
		rawSteps      []byte
		rawOverride   []byte
	)
	err := row.Scan(&rawID, &rawEmployeeID, &rawCompanyID, &exp.Amount, &exp.Currency,
		&exp.NormalizedAmount, &exp.Category, &exp.Description, &exp.Date,
		&rawStatus, &rawMode, &exp.Threshold, &rawSteps, &rawOverride,
		&exp.CreatedAt, &exp.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if exp.ID, err = id.ParseExpenseID(rawID); err != nil {
		return nil, err
	}
	if exp.EmployeeID, err = id.ParseUserID(rawEmployeeID); err != nil {
		return nil, err
	}
	if exp.CompanyID, err = id.ParseCompanyID(rawCompanyID); err != nil {
		return nil, err
	}
	exp.Status = Status(rawStatus)
	exp.Mode = policy.Mode(rawMode)
	if err := json.Unmarshal(rawSteps, &exp.Steps); err != nil {
		return nil, fmt.Errorf("unmarshal expense steps: %w", err)
	}
	if len(rawOverride) > 0 {
		exp.Override = &OverrideRecord{}
		if err := json.Unmarshal(rawOverride, exp.Override); err != nil {
			return nil, fmt.Errorf("unmarshal override record: %w", err)
		}
	}
	return &exp, nil
}
