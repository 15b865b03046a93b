// Package service implements signup, login, and company user management.
package service

import (
	"context"
	"errors"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"expensio/internal/company"
	"expensio/internal/directory"
	"expensio/internal/identity/token"
	"expensio/internal/policy"
	id "expensio/pkg/domain"
	dErrors "expensio/pkg/domain-errors"
	"expensio/pkg/platform/audit"
	"expensio/pkg/platform/sentinel"
	"expensio/pkg/requestcontext"
)

// DefaultPassword is assigned to users created by an admin until they change
// it themselves.
const DefaultPassword = "welcome123"

// Service owns company onboarding and the org directory write path.
type Service struct {
	users     directory.Store
	companies company.Store
	policies  policy.Store
	tokens    *token.Service
	audit     *audit.Publisher
}

// Option configures the Service.
type Option func(*Service)

// WithAudit sets the audit publisher.
func WithAudit(publisher *audit.Publisher) Option {
	return func(s *Service) { s.audit = publisher }
}

func New(
	users directory.Store,
	companies company.Store,
	policies policy.Store,
	tokens *token.Service,
	opts ...Option,
) *Service {
	s := &Service{
		users:     users,
		companies: companies,
		policies:  policies,
		tokens:    tokens,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SignupInput carries a new company registration.
type SignupInput struct {
	Name        string
	Email       string
	Password    string
	CompanyName string
	Country     string
	Currency    string
}

func (in *SignupInput) validate() error {
	if strings.TrimSpace(in.Name) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	if len(in.Password) < 6 {
		return dErrors.New(dErrors.CodeInvalidInput, "password must be at least 6 characters")
	}
	if strings.TrimSpace(in.CompanyName) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "company name is required")
	}
	return nil
}

// AuthResult is the outcome of a successful signup or login.
type AuthResult struct {
	Token string
	User  *directory.User
}

// Signup creates a company, its admin user, and the default sequential
// approval policy (direct manager, then any manager-role approver), and
// issues an access token for the new admin.
func (s *Service) Signup(ctx context.Context, in SignupInput) (*AuthResult, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	currency := strings.ToUpper(strings.TrimSpace(in.Currency))
	if currency == "" {
		currency = "USD"
	}

	comp := &company.Company{
		ID:        id.NewCompanyID(),
		Name:      strings.TrimSpace(in.CompanyName),
		Country:   strings.TrimSpace(in.Country),
		Currency:  currency,
		CreatedAt: now,
	}
	if err := s.companies.Create(ctx, comp); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create company")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}
	admin := &directory.User{
		ID:           id.NewUserID(),
		CompanyID:    comp.ID,
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		Role:         directory.RoleAdmin,
		IsApprover:   true,
		CreatedAt:    now,
	}
	if err := s.users.Create(ctx, admin); err != nil {
		return nil, translateCreateErr(err)
	}

	defaultPolicy := &policy.ApprovalPolicy{
		ID:        id.NewPolicyID(),
		CompanyID: comp.ID,
		Mode:      policy.ModeSequential,
		Steps: []policy.PolicyStep{
			{Kind: policy.StepManager, Order: 1},
			{Kind: policy.StepRole, Order: 2, Role: directory.RoleManager},
		},
		Active:    true,
		CreatedAt: now,
	}
	if err := s.policies.Create(ctx, defaultPolicy); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to create default policy")
	}

	signed, err := s.tokens.Generate(admin)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}

	s.audit.Emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionCompanyCreated,
		ActorID:   admin.ID.String(),
		CompanyID: comp.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	s.audit.Emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionUserCreated,
		ActorID:   admin.ID.String(),
		CompanyID: comp.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return &AuthResult{Token: signed, User: admin}, nil
}

// Login authenticates by email and password. Unknown emails and wrong
// passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	user, err := s.users.FindByEmail(ctx, strings.ToLower(strings.TrimSpace(email)))
	if err != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}
	if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
		return nil, dErrors.New(dErrors.CodeUnauthorized, "invalid credentials")
	}

	signed, err := s.tokens.Generate(user)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to issue token")
	}
	return &AuthResult{Token: signed, User: user}, nil
}

// CreateUserInput carries an admin's request to add a directory member.
type CreateUserInput struct {
	CompanyID  id.CompanyID
	Name       string
	Email      string
	Password   string
	Role       directory.Role
	ManagerID  *id.UserID
	IsApprover bool
}

// CreateUser adds a user to the company directory. A blank password falls
// back to DefaultPassword. A manager reference must point at an existing user
// in the same company.
func (s *Service) CreateUser(ctx context.Context, in CreateUserInput) (*directory.User, error) {
	if strings.TrimSpace(in.Name) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "name is required")
	}
	if strings.TrimSpace(in.Email) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "email is required")
	}
	if !in.Role.Valid() {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", in.Role)
	}
	if in.ManagerID != nil {
		manager, err := s.users.FindByID(ctx, *in.ManagerID)
		if err != nil {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "manager does not exist")
		}
		if manager.CompanyID != in.CompanyID {
			return nil, dErrors.New(dErrors.CodeInvalidInput, "manager belongs to another company")
		}
	}

	password := in.Password
	if password == "" {
		password = DefaultPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to hash password")
	}

	now := requestcontext.Now(ctx)
	user := &directory.User{
		ID:           id.NewUserID(),
		CompanyID:    in.CompanyID,
		Name:         strings.TrimSpace(in.Name),
		Email:        strings.ToLower(strings.TrimSpace(in.Email)),
		PasswordHash: string(hash),
		Role:         in.Role,
		ManagerID:    in.ManagerID,
		IsApprover:   in.IsApprover,
		CreatedAt:    now,
	}
	if err := s.users.Create(ctx, user); err != nil {
		return nil, translateCreateErr(err)
	}

	s.audit.Emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionUserCreated,
		ActorID:   requestcontext.UserID(ctx).String(),
		CompanyID: in.CompanyID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return user, nil
}

// UserView is a directory entry enriched with its manager's display name.
type UserView struct {
	*directory.User
	ManagerName string `json:"manager_name,omitempty"`
}

// ListUsers returns the company directory with manager names resolved.
func (s *Service) ListUsers(ctx context.Context, companyID id.CompanyID) ([]UserView, error) {
	users, err := s.users.ListByCompany(ctx, companyID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list users")
	}

	names := make(map[id.UserID]string, len(users))
	for _, user := range users {
		names[user.ID] = user.Name
	}
	views := make([]UserView, 0, len(users))
	for _, user := range users {
		view := UserView{User: user}
		if user.ManagerID != nil {
			view.ManagerName = names[*user.ManagerID]
		}
		views = append(views, view)
	}
	return views, nil
}

func translateCreateErr(err error) error {
	if errors.Is(err, sentinel.ErrConflict) {
		return dErrors.New(dErrors.CodeConflict, "email already registered")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to create user")
}
