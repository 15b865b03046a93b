package directory

import (
	"context"

	id "expensio/pkg/domain"
)

// Store is the persistence contract for the org directory.
//
// ListByRole must return users in a deterministic, stable order (directory
// insertion order) so role-kind policy steps resolve to the same approver on
// every build.
type Store interface {
	Create(ctx context.Context, user *User) error
	FindByID(ctx context.Context, userID id.UserID) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	ManagerOf(ctx context.Context, userID id.UserID) (*User, error)
	ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*User, error)
	ListByRole(ctx context.Context, companyID id.CompanyID, role Role) ([]*User, error)
	ListDirectReports(ctx context.Context, managerID id.UserID) ([]*User, error)
}
