package expense

import (
	"context"
	"errors"
	"fmt"

	"expensio/internal/directory"
	"expensio/internal/policy"
	id "expensio/pkg/domain"
	dErrors "expensio/pkg/domain-errors"
	"expensio/pkg/platform/sentinel"
)

// DirectoryReader is the slice of the org directory the sequence builder
// needs. ListByRole order must be deterministic.
type DirectoryReader interface {
	FindByID(ctx context.Context, userID id.UserID) (*directory.User, error)
	ManagerOf(ctx context.Context, userID id.UserID) (*directory.User, error)
	ListByRole(ctx context.Context, companyID id.CompanyID, role directory.Role) ([]*directory.User, error)
}

// BuildSequence resolves a policy's abstract steps into concrete approval
// steps bound to real approver identities.
//
// Steps that cannot be resolved (no manager on record, manager without the
// approver flag, no approver-flagged user holding the role, designated user
// gone) are silently dropped, never materialized as waiting-forever steps.
// Resolved steps are renumbered 1..N in resolution order; the first starts
// pending, the rest waiting. An empty result is a valid outcome: the expense
// then stays submitted.
func BuildSequence(ctx context.Context, pol *policy.ApprovalPolicy, employee *directory.User, dir DirectoryReader) ([]ApprovalStep, error) {
	var steps []ApprovalStep
	for _, policyStep := range pol.OrderedSteps() {
		approverID, resolved, err := resolveStep(ctx, policyStep, employee, dir)
		if err != nil {
			return nil, err
		}
		if !resolved {
			continue
		}
		steps = append(steps, ApprovalStep{
			ApproverID: approverID,
			Order:      len(steps) + 1,
			Status:     StepWaiting,
		})
	}
	if len(steps) > 0 {
		steps[0].Status = StepPending
	}
	return steps, nil
}

func resolveStep(ctx context.Context, policyStep policy.PolicyStep, employee *directory.User, dir DirectoryReader) (id.UserID, bool, error) {
	switch policyStep.Kind {
	case policy.StepManager:
		manager, err := dir.ManagerOf(ctx, employee.ID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return id.UserID{}, false, nil
			}
			return id.UserID{}, false, fmt.Errorf("resolve manager step: %w", err)
		}
		if !manager.IsApprover {
			return id.UserID{}, false, nil
		}
		return manager.ID, true, nil

	case policy.StepRole:
		candidates, err := dir.ListByRole(ctx, employee.CompanyID, policyStep.Role)
		if err != nil {
			return id.UserID{}, false, fmt.Errorf("resolve role step: %w", err)
		}
		for _, candidate := range candidates {
			if candidate.IsApprover {
				return candidate.ID, true, nil
			}
		}
		return id.UserID{}, false, nil

	case policy.StepSpecificUser:
		if policyStep.ApproverID == nil {
			return id.UserID{}, false, dErrors.New(dErrors.CodeInvariantViolation, "specific_user policy step has no approver reference")
		}
		// Explicit designation overrides the approver-flag requirement.
		user, err := dir.FindByID(ctx, *policyStep.ApproverID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return id.UserID{}, false, nil
			}
			return id.UserID{}, false, fmt.Errorf("resolve specific approver step: %w", err)
		}
		return user.ID, true, nil

	default:
		return id.UserID{}, false, dErrors.Newf(dErrors.CodeInvariantViolation, "unknown policy step kind %q", policyStep.Kind)
	}
}
