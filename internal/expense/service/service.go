// Package service orchestrates expense submission, approval decisions, and
// administrative overrides over the expense aggregate.
package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"expensio/internal/company"
	"expensio/internal/currency"
	"expensio/internal/directory"
	"expensio/internal/expense"
	expmetrics "expensio/internal/expense/metrics"
	"expensio/internal/policy"
	id "expensio/pkg/domain"
	dErrors "expensio/pkg/domain-errors"
	"expensio/pkg/platform/audit"
	"expensio/pkg/platform/sentinel"
	"expensio/pkg/requestcontext"
)

//go:generate mockgen -source=service.go -destination=mocks/mocks.go -package=mocks

// ExpenseStore is the slice of the expense persistence contract the service
// needs. Execute is the per-expense serialization boundary.
type ExpenseStore interface {
	Create(ctx context.Context, exp *expense.Expense) error
	FindByID(ctx context.Context, expenseID id.ExpenseID) (*expense.Expense, error)
	Execute(ctx context.Context, expenseID id.ExpenseID,
		validate func(*expense.Expense) error, mutate func(*expense.Expense)) (*expense.Expense, error)
	ListByEmployee(ctx context.Context, employeeID id.UserID) ([]*expense.Expense, error)
	ListByCompany(ctx context.Context, companyID id.CompanyID) ([]*expense.Expense, error)
	ListByApprover(ctx context.Context, approverID id.UserID) ([]*expense.Expense, error)
	ListPendingFor(ctx context.Context, approverID id.UserID) ([]*expense.Expense, error)
}

// UserDirectory is the slice of the org directory the service needs, both for
// its own lookups and for approver sequence building.
type UserDirectory interface {
	FindByID(ctx context.Context, userID id.UserID) (*directory.User, error)
	ManagerOf(ctx context.Context, userID id.UserID) (*directory.User, error)
	ListByRole(ctx context.Context, companyID id.CompanyID, role directory.Role) ([]*directory.User, error)
	ListDirectReports(ctx context.Context, managerID id.UserID) ([]*directory.User, error)
}

// CompanyStore resolves the submitting employee's company.
type CompanyStore interface {
	FindByID(ctx context.Context, companyID id.CompanyID) (*company.Company, error)
}

// PolicyStore resolves the active approval policy at submission time.
type PolicyStore interface {
	ActiveFor(ctx context.Context, companyID id.CompanyID) (*policy.ApprovalPolicy, error)
}

// Service wires the approval engine to its collaborators. All blocking I/O
// happens in the injected stores; the engine itself (conversion, sequence
// building, state transitions) is pure in-memory logic.
type Service struct {
	expenses  ExpenseStore
	users     UserDirectory
	companies CompanyStore
	policies  PolicyStore
	converter *currency.Converter
	audit     *audit.Publisher
	metrics   *expmetrics.Metrics
	tracer    trace.Tracer
}

// Option configures the Service.
type Option func(*Service)

// WithAudit sets the audit publisher.
func WithAudit(publisher *audit.Publisher) Option {
	return func(s *Service) { s.audit = publisher }
}

// WithMetrics sets the metrics collector.
func WithMetrics(m *expmetrics.Metrics) Option {
	return func(s *Service) { s.metrics = m }
}

func New(
	expenses ExpenseStore,
	users UserDirectory,
	companies CompanyStore,
	policies PolicyStore,
	converter *currency.Converter,
	opts ...Option,
) *Service {
	s := &Service{
		expenses:  expenses,
		users:     users,
		companies: companies,
		policies:  policies,
		converter: converter,
		tracer:    otel.Tracer("expensio/expense"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SubmitInput carries a new expense claim.
type SubmitInput struct {
	EmployeeID  id.UserID
	CompanyID   id.CompanyID
	Amount      float64
	Currency    string
	Category    string
	Description string
	Date        time.Time
}

func (in *SubmitInput) validate() error {
	if in.Amount <= 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "amount must be positive")
	}
	if len(in.Currency) != 3 {
		return dErrors.New(dErrors.CodeInvalidInput, "currency must be a 3-letter code")
	}
	if strings.TrimSpace(in.Category) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "category is required")
	}
	return nil
}

// Submit normalizes the amount into the company currency, resolves the
// active policy into a concrete approver sequence, and initializes the
// expense. A company without an active policy, or a policy that resolves to
// zero approvers, yields a step-less expense that stays submitted.
func (s *Service) Submit(ctx context.Context, in SubmitInput) (*expense.Expense, error) {
	ctx, span := s.tracer.Start(ctx, "expense.submit")
	defer span.End()

	if err := in.validate(); err != nil {
		return nil, err
	}

	employee, err := s.users.FindByID(ctx, in.EmployeeID)
	if err != nil {
		return nil, translateLookupErr(err, "employee")
	}
	comp, err := s.companies.FindByID(ctx, in.CompanyID)
	if err != nil {
		return nil, translateLookupErr(err, "company")
	}
	if employee.CompanyID != comp.ID {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "employee does not belong to company")
	}

	currencyCode := strings.ToUpper(in.Currency)
	normalized := s.converter.Convert(ctx, in.Amount, currencyCode, comp.Currency)

	now := requestcontext.Now(ctx)
	exp := &expense.Expense{
		ID:               id.NewExpenseID(),
		EmployeeID:       employee.ID,
		CompanyID:        comp.ID,
		Amount:           in.Amount,
		Currency:         currencyCode,
		NormalizedAmount: normalized,
		Category:         in.Category,
		Description:      in.Description,
		Date:             in.Date,
		Status:           expense.StatusSubmitted,
		CreatedAt:        now,
		UpdatedAt:        now,
	}

	pol, err := s.policies.ActiveFor(ctx, comp.ID)
	switch {
	case err == nil:
		steps, buildErr := expense.BuildSequence(ctx, pol, employee, s.users)
		if buildErr != nil {
			return nil, buildErr
		}
		exp.Mode = pol.Mode
		exp.Threshold = pol.Threshold
		exp.Initialize(steps)
	case errors.Is(err, sentinel.ErrNotFound):
		// No active policy: the expense gets zero steps and remains
		// submitted. Documented outcome, not a failure.
	default:
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to resolve active policy")
	}

	if err := s.expenses.Create(ctx, exp); err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to save expense")
	}

	span.SetAttributes(
		attribute.String("expense.id", exp.ID.String()),
		attribute.Int("expense.steps", len(exp.Steps)),
	)
	if s.metrics != nil {
		s.metrics.Submitted.Inc()
		if len(exp.Steps) == 0 {
			s.metrics.ZeroApprover.Inc()
		}
	}
	s.audit.Emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionExpenseSubmitted,
		ActorID:   employee.ID.String(),
		CompanyID: comp.ID.String(),
		ExpenseID: exp.ID.String(),
		RequestID: requestcontext.RequestID(ctx),
	})
	return exp, nil
}

// Act records an approver's decision on their pending step. The store's
// Execute callback holds exclusive access to the aggregate for the whole
// validate-then-mutate window, so two concurrent decisions on the same
// expense cannot both see the same step pending.
func (s *Service) Act(ctx context.Context, expenseID id.ExpenseID, approverID id.UserID, decision expense.Decision, comment string) (*expense.Expense, error) {
	ctx, span := s.tracer.Start(ctx, "expense.act",
		trace.WithAttributes(attribute.String("expense.id", expenseID.String())))
	defer span.End()

	now := requestcontext.Now(ctx)
	exp, err := s.expenses.Execute(ctx, expenseID,
		func(e *expense.Expense) error {
			return e.CanAct(approverID)
		},
		func(e *expense.Expense) {
			e.ApplyAct(approverID, decision, comment, now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "expense not found")
		}
		return nil, err
	}

	s.recordDecision(exp, now)
	action := audit.ActionStepApproved
	if decision == expense.DecisionReject {
		action = audit.ActionStepRejected
	}
	s.audit.Emit(ctx, audit.Event{
		Timestamp: now,
		Action:    action,
		ActorID:   approverID.String(),
		CompanyID: exp.CompanyID.String(),
		ExpenseID: exp.ID.String(),
		Decision:  string(decision),
		Comment:   comment,
		RequestID: requestcontext.RequestID(ctx),
	})
	return exp, nil
}

// Override forces the expense to a terminal status, bypassing the step
// machine entirely. It applies even to already-terminal expenses: last write
// wins. Role authorization is the transport layer's responsibility.
func (s *Service) Override(ctx context.Context, expenseID id.ExpenseID, actorID id.UserID, forced expense.Status, comment string) (*expense.Expense, error) {
	ctx, span := s.tracer.Start(ctx, "expense.override",
		trace.WithAttributes(attribute.String("expense.id", expenseID.String())))
	defer span.End()

	if _, err := s.users.FindByID(ctx, actorID); err != nil {
		return nil, translateLookupErr(err, "actor")
	}

	now := requestcontext.Now(ctx)
	exp, err := s.expenses.Execute(ctx, expenseID,
		func(e *expense.Expense) error {
			return e.CanOverride(forced)
		},
		func(e *expense.Expense) {
			e.ApplyOverride(actorID, forced, comment, now)
		},
	)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "expense not found")
		}
		return nil, err
	}

	if s.metrics != nil {
		s.metrics.Overridden.Inc()
	}
	s.audit.Emit(ctx, audit.Event{
		Timestamp: now,
		Action:    audit.ActionExpenseOverridden,
		ActorID:   actorID.String(),
		CompanyID: exp.CompanyID.String(),
		ExpenseID: exp.ID.String(),
		Decision:  string(forced),
		Comment:   exp.Override.Comment,
		RequestID: requestcontext.RequestID(ctx),
	})
	return exp, nil
}

// ListMine returns the expenses a user submitted.
func (s *Service) ListMine(ctx context.Context, employeeID id.UserID) ([]*expense.Expense, error) {
	return s.expenses.ListByEmployee(ctx, employeeID)
}

// ListPendingFor returns the expenses awaiting a decision from the approver.
func (s *Service) ListPendingFor(ctx context.Context, approverID id.UserID) ([]*expense.Expense, error) {
	return s.expenses.ListPendingFor(ctx, approverID)
}

// ListVisible applies role-scoped visibility: admins see every company
// expense, managers see their direct reports' expenses plus any expense they
// appear on as an approver, employees see only their own.
func (s *Service) ListVisible(ctx context.Context, role directory.Role, userID id.UserID, companyID id.CompanyID) ([]*expense.Expense, error) {
	switch role {
	case directory.RoleAdmin:
		return s.expenses.ListByCompany(ctx, companyID)
	case directory.RoleManager:
		return s.listManagerVisible(ctx, userID)
	case directory.RoleEmployee:
		return s.expenses.ListByEmployee(ctx, userID)
	default:
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q", role)
	}
}

func (s *Service) listManagerVisible(ctx context.Context, managerID id.UserID) ([]*expense.Expense, error) {
	seen := make(map[id.ExpenseID]bool)
	var visible []*expense.Expense
	add := func(expenses []*expense.Expense) {
		for _, exp := range expenses {
			if !seen[exp.ID] {
				seen[exp.ID] = true
				visible = append(visible, exp)
			}
		}
	}

	reports, err := s.users.ListDirectReports(ctx, managerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list direct reports")
	}
	for _, report := range reports {
		expenses, err := s.expenses.ListByEmployee(ctx, report.ID)
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list report expenses")
		}
		add(expenses)
	}

	asApprover, err := s.expenses.ListByApprover(ctx, managerID)
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeInternal, "failed to list approver expenses")
	}
	add(asApprover)

	sort.SliceStable(visible, func(i, j int) bool {
		return visible[i].CreatedAt.Before(visible[j].CreatedAt)
	})
	return visible, nil
}

// Get returns one expense by ID.
func (s *Service) Get(ctx context.Context, expenseID id.ExpenseID) (*expense.Expense, error) {
	exp, err := s.expenses.FindByID(ctx, expenseID)
	if err != nil {
		return nil, translateLookupErr(err, "expense")
	}
	return exp, nil
}

func (s *Service) recordDecision(exp *expense.Expense, now time.Time) {
	if s.metrics == nil || !exp.Status.Terminal() {
		return
	}
	switch exp.Status {
	case expense.StatusApproved:
		s.metrics.Approved.Inc()
	case expense.StatusRejected:
		s.metrics.Rejected.Inc()
	}
	s.metrics.DecisionDuration.Observe(now.Sub(exp.CreatedAt).Seconds())
}

func translateLookupErr(err error, entity string) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, entity+" not found")
	}
	return dErrors.Wrap(err, dErrors.CodeInternal, "failed to load "+entity)
}
