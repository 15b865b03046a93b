package directory

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

// Postgres persists directory users. created_at with id as tiebreaker gives
// the stable ordering ListByRole promises.
type Postgres struct {
	pool *pgxpool.Pool
}

func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

const userColumns = `id, company_id, name, email, password_hash, role, manager_id, is_approver, created_at`

func (s *Postgres) Create(ctx context.Context, user *User) error {
	if err := user.Validate(); err != nil {
		return err
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO users (id, company_id, name, email, password_hash, role, manager_id, is_approver, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		user.ID.String(), user.CompanyID.String(), user.Name, user.Email,
		user.PasswordHash, string(user.Role), managerIDParam(user.ManagerID),
		user.IsApprover, user.CreatedAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (s *Postgres) FindByID(ctx context.Context, userID id.UserID) (*User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE id = $1`, userID.String())
	return scanUser(row)
}

func (s *Postgres) FindByEmail(ctx context.Context, email string) (*User, error) {
	row := s.pool.QueryRow(ctx,
		`SELECT `+userColumns+` FROM users WHERE lower(email) = lower($1)`, email)
	return scanUser(row)
}

func (s *Postgres) ManagerOf(ctx context.Context, userID id.UserID) (*User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT m.id, m.company_id, m.name, m.email, m.password_hash, m.role, m.manager_id, m.is_approver, m.created_at
		FROM users u JOIN users m ON m.id = u.manager_id
		WHERE u.id = $1`, userID.String())
	return scanUser(row)
}

func (s *Postgres) ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE company_id = $1 ORDER BY created_at, id`,
		companyID.String())
	if err != nil {
		return nil, fmt.Errorf("list users by company: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (s *Postgres) ListByRole(ctx context.Context, companyID id.CompanyID, role Role) ([]*User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE company_id = $1 AND role = $2 ORDER BY created_at, id`,
		companyID.String(), string(role))
	if err != nil {
		return nil, fmt.Errorf("list users by role: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func (s *Postgres) ListDirectReports(ctx context.Context, managerID id.UserID) ([]*User, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+userColumns+` FROM users WHERE manager_id = $1 ORDER BY created_at, id`,
		managerID.String())
	if err != nil {
		return nil, fmt.Errorf("list direct reports: %w", err)
	}
	defer rows.Close()
	return scanUsers(rows)
}

func managerIDParam(managerID *id.UserID) any {
	if managerID == nil {
		return nil
	}
	return managerID.String()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*User, error) {
	var (
		user         User
		rawID        string
		rawCompanyID string
		rawRole      string
		rawManagerID *string
	)
	err := row.Scan(&rawID, &rawCompanyID, &user.Name, &user.Email,
		&user.PasswordHash, &rawRole, &rawManagerID, &user.IsApprover, &user.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("scan user: %w", err)
	}
	if user.ID, err = id.ParseUserID(rawID); err != nil {
		return nil, err
	}
	if user.CompanyID, err = id.ParseCompanyID(rawCompanyID); err != nil {
		return nil, err
	}
	user.Role = Role(rawRole)
	if rawManagerID != nil {
		managerID, err := id.ParseUserID(*rawManagerID)
		if err != nil {
			return nil, err
		}
		user.ManagerID = &managerID
	}
	return &user, nil
}

func scanUsers(rows pgx.Rows) ([]*User, error) {
	var users []*User
	for rows.Next() {
		user, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate users: %w", err)
	}
	return users, nil
}
