package policy

import (
	"context"

	id "expensio/pkg/domain"
)

// Store is the persistence contract for approval policies.
//
// Create must atomically deactivate any prior active policy for the same
// company before inserting the new one: "at most one active policy per
// company" is a store-enforced invariant, not a service convention.
//
// ActiveFor returns sentinel.ErrNotFound when a company has no active policy.
// Callers treat that as the documented zero-step outcome, not a failure.
type Store interface {
	Create(ctx context.Context, pol *ApprovalPolicy) error
	ActiveFor(ctx context.Context, companyID id.CompanyID) (*ApprovalPolicy, error)
	ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*ApprovalPolicy, error)
}
