package company

import (
	"context"

	id "expensio/pkg/domain"
)

// Store is the persistence contract for companies.
type Store interface {
	Create(ctx context.Context, company *Company) error
	FindByID(ctx context.Context, companyID id.CompanyID) (*Company, error)
}
