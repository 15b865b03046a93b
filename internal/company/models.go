// Package company owns company records and their base currency, the target
// of every expense normalization.
package company

import (
	"strings"
	"time"

	id "expensio/pkg/domain"
	dErrors "expensio/pkg/domain-errors"
)

// Company is immutable after creation as far as the approval engine is
// concerned; the base currency in particular never changes under an expense.
type Company struct {
	ID        id.CompanyID `json:"id"`
	Name      string       `json:"name"`
	Country   string       `json:"country"`
	Currency  string       `json:"currency"`
	CreatedAt time.Time    `json:"created_at"`
}

func (c *Company) Validate() error {
	if c.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "company id is required")
	}
	if strings.TrimSpace(c.Name) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "company name is required")
	}
	if len(c.Currency) != 3 {
		return dErrors.New(dErrors.CodeInvalidInput, "company currency must be a 3-letter code")
	}
	return nil
}
