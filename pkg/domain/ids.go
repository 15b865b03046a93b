// Package domain defines the typed identifiers shared across the service.
//
// IDs are distinct named UUID types so the compiler rejects cross-entity
// mixups (passing a CompanyID where a UserID is expected). Parse helpers
// enforce the invariant that IDs are valid, non-nil UUIDs at trust
// boundaries; internal code constructs IDs with uuid.New().
package domain

import (
	"github.com/google/uuid"

	dErrors "expensio/pkg/domain-errors"
)

type (
	// UserID identifies a user in the org directory.
	UserID uuid.UUID
	// CompanyID identifies a company.
	CompanyID uuid.UUID
	// PolicyID identifies an approval policy.
	PolicyID uuid.UUID
	// ExpenseID identifies an expense aggregate.
	ExpenseID uuid.UUID
)

func parseUUID(raw, kind string) (uuid.UUID, error) {
	if raw == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id is required")
	}
	parsed, err := uuid.Parse(raw)
	if err != nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, "invalid "+kind+" id")
	}
	if parsed == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, kind+" id must not be nil")
	}
	return parsed, nil
}

// ParseUserID parses and validates a user ID string.
func ParseUserID(raw string) (UserID, error) {
	parsed, err := parseUUID(raw, "user")
	return UserID(parsed), err
}

// ParseCompanyID parses and validates a company ID string.
func ParseCompanyID(raw string) (CompanyID, error) {
	parsed, err := parseUUID(raw, "company")
	return CompanyID(parsed), err
}

// ParsePolicyID parses and validates a policy ID string.
func ParsePolicyID(raw string) (PolicyID, error) {
	parsed, err := parseUUID(raw, "policy")
	return PolicyID(parsed), err
}

// ParseExpenseID parses and validates an expense ID string.
func ParseExpenseID(raw string) (ExpenseID, error) {
	parsed, err := parseUUID(raw, "expense")
	return ExpenseID(parsed), err
}

func (id UserID) String() string  { return uuid.UUID(id).String() }
func (id UserID) IsNil() bool     { return uuid.UUID(id) == uuid.Nil }
func (id UserID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}
func (id *UserID) UnmarshalText(b []byte) error {
	parsed, err := ParseUserID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id CompanyID) String() string { return uuid.UUID(id).String() }
func (id CompanyID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id CompanyID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}
func (id *CompanyID) UnmarshalText(b []byte) error {
	parsed, err := ParseCompanyID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id PolicyID) String() string { return uuid.UUID(id).String() }
func (id PolicyID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id PolicyID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}
func (id *PolicyID) UnmarshalText(b []byte) error {
	parsed, err := ParsePolicyID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

func (id ExpenseID) String() string { return uuid.UUID(id).String() }
func (id ExpenseID) IsNil() bool    { return uuid.UUID(id) == uuid.Nil }
func (id ExpenseID) MarshalText() ([]byte, error) {
	return []byte(uuid.UUID(id).String()), nil
}
func (id *ExpenseID) UnmarshalText(b []byte) error {
	parsed, err := ParseExpenseID(string(b))
	if err != nil {
		return err
	}
	*id = parsed
	return nil
}

// NewUserID returns a fresh random user ID.
func NewUserID() UserID { return UserID(uuid.New()) }

// NewCompanyID returns a fresh random company ID.
func NewCompanyID() CompanyID { return CompanyID(uuid.New()) }

// NewPolicyID returns a fresh random policy ID.
func NewPolicyID() PolicyID { return PolicyID(uuid.New()) }

// NewExpenseID returns a fresh random expense ID.
func NewExpenseID() ExpenseID { return ExpenseID(uuid.New()) }
