// Package expense owns the expense aggregate and its approval lifecycle:
// step sequence construction, per-step decisions, resolution-strategy
// evaluation, and administrative override.
package expense

import (
	"strings"
	"time"

	"expensio/internal/policy"
	id "expensio/pkg/domain"
	dErrors "expensio/pkg/domain-errors"
)

// Status is the closed set of expense lifecycle states.
type Status string

const (
	// StatusSubmitted is the initial state. An expense whose policy resolves
	// to zero approvers stays here indefinitely.
	StatusSubmitted Status = "submitted"
	// StatusInReview means at least one approval step is pending.
	StatusInReview Status = "in_review"
	StatusApproved Status = "approved"
	StatusRejected Status = "rejected"
)

func (s Status) Valid() bool {
	switch s {
	case StatusSubmitted, StatusInReview, StatusApproved, StatusRejected:
		return true
	}
	return false
}

// Terminal reports whether no further step decisions apply.
func (s Status) Terminal() bool {
	return s == StatusApproved || s == StatusRejected
}

// ParseStatus validates a raw status string.
func ParseStatus(raw string) (Status, error) {
	status := Status(strings.ToLower(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown expense status %q", raw)
	}
	return status, nil
}

// Decision is an approver's verdict on their pending step.
type Decision string

const (
	DecisionApprove Decision = "approve"
	DecisionReject  Decision = "reject"
)

// ParseDecision validates a raw decision string.
func ParseDecision(raw string) (Decision, error) {
	decision := Decision(strings.ToLower(strings.TrimSpace(raw)))
	if decision != DecisionApprove && decision != DecisionReject {
		return "", dErrors.Newf(dErrors.CodeInvalidInput, "unknown decision %q", raw)
	}
	return decision, nil
}

// StepStatus is the closed set of approval-step states.
type StepStatus string

const (
	// StepWaiting means the step's turn has not come yet.
	StepWaiting StepStatus = "waiting"
	// StepPending means the step is awaiting its approver's decision.
	// At most one step is pending per expense at any instant.
	StepPending  StepStatus = "pending"
	StepApproved StepStatus = "approved"
	StepRejected StepStatus = "rejected"
)

// ApprovalStep is one concrete, approver-bound entry in an expense's
// resolved sequence. Steps are created once at submission; only Status,
// Comment, and ActedAt mutate afterwards.
type ApprovalStep struct {
	ApproverID id.UserID  `json:"approver_id"`
	Order      int        `json:"order"`
	Status     StepStatus `json:"status"`
	Comment    string     `json:"comment,omitempty"`
	ActedAt    *time.Time `json:"acted_at,omitempty"`
}

// OverrideRecord captures an administrative force-resolution.
type OverrideRecord struct {
	ActorID id.UserID `json:"actor_id"`
	At      time.Time `json:"at"`
	Comment string    `json:"comment"`
}

const defaultOverrideComment = "status set by administrative override"

// Expense is the aggregate root for one claim moving through approval.
//
// Invariants:
//   - exactly one step is pending while Status is in_review; zero once terminal
//   - step orders are a contiguous 1..N sequence in resolution order
//   - NormalizedAmount is expressed in the company's base currency
//   - Mode and Threshold are snapshotted from the active policy at
//     submission, so later policy edits never re-route an in-flight expense
type Expense struct {
	ID               id.ExpenseID    `json:"id"`
	EmployeeID       id.UserID       `json:"employee_id"`
	CompanyID        id.CompanyID    `json:"company_id"`
	Amount           float64         `json:"amount"`
	Currency         string          `json:"currency"`
	NormalizedAmount float64         `json:"normalized_amount"`
	Category         string          `json:"category"`
	Description      string          `json:"description"`
	Date             time.Time       `json:"date"`
	Status           Status          `json:"status"`
	Mode             policy.Mode     `json:"mode,omitempty"`
	Threshold        int             `json:"threshold,omitempty"`
	Steps            []ApprovalStep  `json:"steps"`
	Override         *OverrideRecord `json:"override,omitempty"`
	CreatedAt        time.Time       `json:"created_at"`
	UpdatedAt        time.Time       `json:"updated_at"`
}

// Initialize attaches the built step sequence and moves the expense into
// review. An empty sequence leaves the expense submitted with no path to
// automatic resolution.
func (e *Expense) Initialize(steps []ApprovalStep) {
	e.Steps = steps
	if len(steps) > 0 {
		e.Status = StatusInReview
	}
}

// PendingStep returns the step currently awaiting a decision, or nil.
func (e *Expense) PendingStep() *ApprovalStep {
	for i := range e.Steps {
		if e.Steps[i].Status == StepPending {
			return &e.Steps[i]
		}
	}
	return nil
}

func (e *Expense) pendingStepFor(approverID id.UserID) *ApprovalStep {
	step := e.PendingStep()
	if step == nil || step.ApproverID != approverID {
		return nil
	}
	return step
}

// CanAct checks that the approver owns the pending step. A non-pending
// approver (wrong turn, already decided, or a terminal expense) is
// Unauthorized. Use with ApplyAct in store Execute callbacks.
func (e *Expense) CanAct(approverID id.UserID) error {
	if e.pendingStepFor(approverID) == nil {
		return dErrors.New(dErrors.CodeUnauthorized, "approver has no pending step on this expense")
	}
	return nil
}

// ApplyAct records the approver's decision on their pending step and
// advances the expense. Call CanAct first; ApplyAct is a no-op when the
// approver holds no pending step.
func (e *Expense) ApplyAct(approverID id.UserID, decision Decision, comment string, now time.Time) {
	step := e.pendingStepFor(approverID)
	if step == nil {
		return
	}
	step.Comment = comment
	step.ActedAt = &now
	e.UpdatedAt = now

	if decision == DecisionReject {
		step.Status = StepRejected
		// Remaining waiting steps are never visited.
		e.Status = StatusRejected
		return
	}

	step.Status = StepApproved
	if e.Mode == policy.ModePercentage && e.thresholdMet() {
		// Steps still waiting are left as-is, not force-closed.
		e.Status = StatusApproved
		return
	}
	if next := e.nextWaitingStep(); next != nil {
		next.Status = StepPending
		return
	}
	e.Status = StatusApproved
}

func (e *Expense) thresholdMet() bool {
	if len(e.Steps) == 0 {
		return false
	}
	approved := 0
	for i := range e.Steps {
		if e.Steps[i].Status == StepApproved {
			approved++
		}
	}
	// Rejections never count toward the numerator but still occupy a slot
	// in the denominator.
	return float64(approved)/float64(len(e.Steps))*100 >= float64(e.Threshold)
}

func (e *Expense) nextWaitingStep() *ApprovalStep {
	for i := range e.Steps {
		if e.Steps[i].Status == StepWaiting {
			return &e.Steps[i]
		}
	}
	return nil
}

// CanOverride validates the forced status. Overrides apply regardless of the
// expense's current state; last write wins.
func (e *Expense) CanOverride(forced Status) error {
	if !forced.Terminal() {
		return dErrors.Newf(dErrors.CodeInvalidInput, "override status must be terminal, got %q", forced)
	}
	return nil
}

// ApplyOverride forces the expense to the given terminal status and records
// who did it. Individual step statuses are not inspected or mutated.
func (e *Expense) ApplyOverride(actorID id.UserID, forced Status, comment string, now time.Time) {
	if comment == "" {
		comment = defaultOverrideComment
	}
	e.Status = forced
	e.Override = &OverrideRecord{ActorID: actorID, At: now, Comment: comment}
	e.UpdatedAt = now
}

// Clone returns a deep copy so stores never hand out aliased step slices.
func (e *Expense) Clone() *Expense {
	clone := *e
	clone.Steps = append([]ApprovalStep(nil), e.Steps...)
	if e.Override != nil {
		override := *e.Override
		clone.Override = &override
	}
	return &clone
}
