// Package policy owns approval policies: the abstract approver sequence and
// the resolution mode an expense is judged under.
package policy

import (
	"sort"
	"time"

	"expensio/internal/directory"
	id "expensio/pkg/domain"
	dErrors "expensio/pkg/domain-errors"
)

// StepKind is the closed set of abstract approver selectors.
type StepKind string

const (
	// StepManager resolves to the submitting employee's direct manager,
	// provided that manager carries the approver flag.
	StepManager StepKind = "manager"
	// StepRole resolves to the first approver-flagged company user holding
	// the named role, in directory insertion order.
	StepRole StepKind = "role"
	// StepSpecificUser resolves to an explicitly designated user. Explicit
	// designation overrides the approver-flag requirement.
	StepSpecificUser StepKind = "specific_user"
)

func (k StepKind) Valid() bool {
	switch k {
	case StepManager, StepRole, StepSpecificUser:
		return true
	}
	return false
}

// Mode is the closed set of resolution strategies.
type Mode string

const (
	// ModeSequential requires unanimous approval in step order.
	ModeSequential Mode = "sequential"
	// ModePercentage approves once approved/total reaches the threshold.
	ModePercentage Mode = "percentage_threshold"
)

func (m Mode) Valid() bool {
	return m == ModeSequential || m == ModePercentage
}

// PolicyStep is one abstract entry in a policy's approval sequence.
type PolicyStep struct {
	Kind       StepKind       `json:"kind"`
	Order      int            `json:"order"`
	Role       directory.Role `json:"role,omitempty"`
	ApproverID *id.UserID     `json:"approver_id,omitempty"`
}

// ApprovalPolicy configures how a company's expenses are routed.
//
// Invariant: at most one policy per company is active. The store's write path
// enforces this by deactivating prior active policies (last-writer-wins).
type ApprovalPolicy struct {
	ID        id.PolicyID  `json:"id"`
	CompanyID id.CompanyID `json:"company_id"`
	Steps     []PolicyStep `json:"steps"`
	Mode      Mode         `json:"mode"`
	Threshold int          `json:"threshold,omitempty"`
	Active    bool         `json:"active"`
	CreatedAt time.Time    `json:"created_at"`
}

// Validate checks policy configuration invariants before persistence.
func (p *ApprovalPolicy) Validate() error {
	if p.ID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "policy id is required")
	}
	if p.CompanyID.IsNil() {
		return dErrors.New(dErrors.CodeInvalidInput, "company id is required")
	}
	if !p.Mode.Valid() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "unknown resolution mode %q", p.Mode)
	}
	if p.Mode == ModePercentage && (p.Threshold < 1 || p.Threshold > 100) {
		return dErrors.New(dErrors.CodeInvalidInput, "percentage threshold must be between 1 and 100")
	}
	if len(p.Steps) == 0 {
		return dErrors.New(dErrors.CodeInvalidInput, "policy requires at least one step")
	}
	for _, step := range p.Steps {
		if !step.Kind.Valid() {
			return dErrors.Newf(dErrors.CodeInvalidInput, "unknown policy step kind %q", step.Kind)
		}
		if step.Kind == StepRole && !step.Role.Valid() {
			return dErrors.Newf(dErrors.CodeInvalidInput, "unknown role %q in policy step", step.Role)
		}
		if step.Kind == StepSpecificUser && (step.ApproverID == nil || step.ApproverID.IsNil()) {
			return dErrors.New(dErrors.CodeInvalidInput, "specific_user policy step requires an approver id")
		}
	}
	return nil
}

// OrderedSteps returns the steps sorted by their declared order.
func (p *ApprovalPolicy) OrderedSteps() []PolicyStep {
	steps := append([]PolicyStep(nil), p.Steps...)
	sort.SliceStable(steps, func(i, j int) bool { return steps[i].Order < steps[j].Order })
	return steps
}
