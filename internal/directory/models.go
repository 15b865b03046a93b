// Package directory owns the org directory: users, their roles, manager
// references, and the approver flag the sequence builder consults.
package directory

import (
	"strings"
	"time"

	id "expensio/pkg/domain"
	dErrors "expensio/pkg/domain-errors"
)

// Role is the closed set of organizational roles.
type Role string

const (
	RoleAdmin    Role = "admin"
	RoleManager  Role = "manager"
	RoleEmployee Role = "employee"
)

// Valid reports whether the role is one of the known variants.
func (r Role) Valid() bool {
	switch r {
	case RoleAdmin, RoleManager, RoleEmployee:
		return true
	}
	return false
}

// ParseRole validates a raw role string.
func ParseRole(raw string) (Role, error) {
	role := Role(strings.ToLower(strings.TrimSpace(raw)))
	if !role.Valid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", raw)
	}
	return role, nil
}

// User is a member of a company's org directory.
//
// Invariants:
//   - Email is unique across the directory
//   - ManagerID, when set, references another user (weak reference: the
//     manager may be deleted without cascading)
//   - IsApprover gates whether manager-kind policy steps resolve to this user
type User struct {
	ID           id.UserID    `json:"id"`
	CompanyID    id.CompanyID `json:"company_id"`
	Name         string       `json:"name"`
	Email        string       `json:"email"`
	PasswordHash string       `json:"-"`
	Role         Role         `json:"role"`
	ManagerID    *id.UserID   `json:"manager_id,omitempty"`
	IsApprover   bool         `json:"is_approver"`
	CreatedAt    time.Time    `json:"created_at"`
}

// Validate checks construction invariants before a user is persisted.
func (u *User) Validate() error {
	if u.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "user id is required")
	}
	if u.CompanyID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "company id is required")
	}
	if strings.TrimSpace(u.Name) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "user name is required")
	}
	if strings.TrimSpace(u.Email) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "user email is required")
	}
	if !u.Role.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", u.Role)
	}
	return nil
}
