// Package service implements approval-policy management.
package service

import (
	"context"

	"expensio/internal/policy"
	id "expensio/pkg/domain"
	dErrors "expensio/pkg/domain-errors"
	"expensio/pkg/platform/audit"
	"expensio/pkg/requestcontext"
)

// Service owns the policy write path.
type Service struct {
	policies policy.Store
	audit    *audit.Publisher
}

// Option configures the Service.
type Option func(*Service)

// WithAudit sets the audit publisher.
func WithAudit(publisher *audit.Publisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func New(policies policy.Store, opts ...Option) *Service {
	s := &Service{policies: policies}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// CreateInput carries a new approval policy. The new policy becomes the
// company's single active one; the store deactivates any prior active policy.
type CreateInput struct {
	CompanyID id.CompanyID
	Mode      policy.Mode
	Threshold int
	Steps     []policy.PolicyStep
}

// Create validates and activates a new approval policy.
func (s *Service) Create(ctx context.Context, in CreateInput) (*policy.ApprovalPolicy, error) {
	now := requestcontext.Now(ctx)
	pol := &policy.ApprovalPolicy{
		ID:        id.NewPolicyID(),
		CompanyID: in.CompanyID,
		Mode:      in.Mode,
		Threshold: in.Threshold,
		Steps:     in.Steps,
		Active:    true,
		CreatedAt: now,
	}
	if err := pol.Validate(); err != nil {
		return nil, err
	}
	if err := s.policies.Create(ctx, pol); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create policy")
	}

	s.audit.Emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionPolicyCreated,
		ActorID:   requestcontext.UserID(ctx).String(),
		CompanyID: in.CompanyID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return pol, nil
}

// List returns every policy for the company, active and inactive.
func (s *Service) List(ctx context.Context, companyID id.CompanyID) ([]*policy.ApprovalPolicy, error) {
	policies, err := s.policies.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list policies")
	}
	return policies, nil
}
