package expense

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"expensio/internal/policy"
	id "expensio/pkg/domain"
	dErrors "expensio/pkg/domain-errors"
)

func newExpense(mode policy.Mode, threshold int, approvers ...id.UserID) *Expense {
	exp := &Expense{
		ID:         id.NewExpenseID(),
		EmployeeID: id.NewUserID(),
		CompanyID:  id.NewCompanyID(),
		Status:     StatusSubmitted,
		Mode:       mode,
		Threshold:  threshold,
		CreatedAt:  time.Now(),
	}
	steps := make([]ApprovalStep, len(approvers))
	for i, approverID := range approvers {
		steps[i] = ApprovalStep{ApproverID: approverID, Order: i + 1, Status: StepWaiting}
	}
	if len(steps) > 0 {
		steps[0].Status = StepPending
	}
	exp.Initialize(steps)
	return exp
}

// pendingCount verifies the core invariant: at most one pending step.
func pendingCount(exp *Expense) int {
	count := 0
	for i := range exp.Steps {
		if exp.Steps[i].Status == StepPending {
			count++
		}
	}
	return count
}

func TestInitialize(t *testing.T) {
	t.Run("non-empty sequence moves to in_review with step 1 pending", func(t *testing.T) {
		exp := newExpense(policy.ModeSequential, 0, id.NewUserID(), id.NewUserID())
		assert.Equal(t, StatusInReview, exp.Status)
		assert.Equal(t, StepPending, exp.Steps[0].Status)
		assert.Equal(t, StepWaiting, exp.Steps[1].Status)
		assert.Equal(t, 1, pendingCount(exp))
	})

	t.Run("empty sequence stays submitted", func(t *testing.T) {
		exp := newExpense(policy.ModeSequential, 0)
		assert.Equal(t, StatusSubmitted, exp.Status)
		assert.Empty(t, exp.Steps)
	})
}

func TestActSequential(t *testing.T) {
	now := time.Now()
	manager := id.NewUserID()
	finance := id.NewUserID()

	t.Run("full approval chain", func(t *testing.T) {
		exp := newExpense(policy.ModeSequential, 0, manager, finance)

		require.NoError(t, exp.CanAct(manager))
		exp.ApplyAct(manager, DecisionApprove, "lgtm", now)
		assert.Equal(t, StatusInReview, exp.Status)
		assert.Equal(t, StepApproved, exp.Steps[0].Status)
		assert.Equal(t, StepPending, exp.Steps[1].Status)
		assert.Equal(t, 1, pendingCount(exp))

		require.NoError(t, exp.CanAct(finance))
		exp.ApplyAct(finance, DecisionApprove, "", now)
		assert.Equal(t, StatusApproved, exp.Status)
		assert.Equal(t, 0, pendingCount(exp))
	})

	t.Run("reject mid-sequence is immediately terminal", func(t *testing.T) {
		exp := newExpense(policy.ModeSequential, 0, manager, finance)

		exp.ApplyAct(manager, DecisionReject, "over budget", now)
		assert.Equal(t, StatusRejected, exp.Status)
		assert.Equal(t, StepRejected, exp.Steps[0].Status)
		// The second step is never visited.
		assert.Equal(t, StepWaiting, exp.Steps[1].Status)
		assert.Equal(t, 0, pendingCount(exp))
	})

	t.Run("acting out of turn is unauthorized", func(t *testing.T) {
		exp := newExpense(policy.ModeSequential, 0, manager, finance)

		err := exp.CanAct(finance)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})

	t.Run("replay after deciding is unauthorized and changes nothing", func(t *testing.T) {
		exp := newExpense(policy.ModeSequential, 0, manager, finance)
		exp.ApplyAct(manager, DecisionApprove, "", now)

		before := exp.Clone()
		err := exp.CanAct(manager)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
		assert.Equal(t, before, exp.Clone())
	})

	t.Run("terminal expense accepts no further act", func(t *testing.T) {
		exp := newExpense(policy.ModeSequential, 0, manager)
		exp.ApplyAct(manager, DecisionApprove, "", now)
		require.Equal(t, StatusApproved, exp.Status)

		err := exp.CanAct(manager)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeUnauthorized))
	})
}

func TestActPercentage(t *testing.T) {
	now := time.Now()
	first := id.NewUserID()
	second := id.NewUserID()
	third := id.NewUserID()

	t.Run("threshold met approves with steps still waiting", func(t *testing.T) {
		exp := newExpense(policy.ModePercentage, 60, first, second, third)

		exp.ApplyAct(first, DecisionApprove, "", now)
		assert.Equal(t, StatusInReview, exp.Status, "one of three approvals is below threshold")
		assert.Equal(t, StepPending, exp.Steps[1].Status)

		// 2 of 3 approved: 66.6% >= 60%.
		exp.ApplyAct(second, DecisionApprove, "", now)
		assert.Equal(t, StatusApproved, exp.Status)
		// Step 3 is left as-is, not force-closed.
		assert.Equal(t, StepWaiting, exp.Steps[2].Status)
	})

	t.Run("exact threshold counts as met", func(t *testing.T) {
		exp := newExpense(policy.ModePercentage, 50, first, second)

		exp.ApplyAct(first, DecisionApprove, "", now)
		assert.Equal(t, StatusApproved, exp.Status, "one of two approvals is exactly half")
	})

	t.Run("reject is terminal regardless of threshold", func(t *testing.T) {
		exp := newExpense(policy.ModePercentage, 10, first, second, third)

		exp.ApplyAct(first, DecisionReject, "", now)
		assert.Equal(t, StatusRejected, exp.Status)
	})
}

func TestOverride(t *testing.T) {
	now := time.Now()
	admin := id.NewUserID()
	approver := id.NewUserID()

	t.Run("forces terminal status without touching steps", func(t *testing.T) {
		exp := newExpense(policy.ModeSequential, 0, approver)

		require.NoError(t, exp.CanOverride(StatusApproved))
		exp.ApplyOverride(admin, StatusApproved, "CEO said so", now)

		assert.Equal(t, StatusApproved, exp.Status)
		assert.Equal(t, StepPending, exp.Steps[0].Status, "steps are not inspected or mutated")
		require.NotNil(t, exp.Override)
		assert.Equal(t, admin, exp.Override.ActorID)
		assert.Equal(t, "CEO said so", exp.Override.Comment)
	})

	t.Run("applies to already-terminal expenses, last write wins", func(t *testing.T) {
		exp := newExpense(policy.ModeSequential, 0, approver)
		exp.ApplyAct(approver, DecisionApprove, "", now)
		require.Equal(t, StatusApproved, exp.Status)

		exp.ApplyOverride(admin, StatusRejected, "", now)
		assert.Equal(t, StatusRejected, exp.Status)
		assert.NotEmpty(t, exp.Override.Comment, "blank comment gets the default message")
	})

	t.Run("applies to step-less submitted expenses", func(t *testing.T) {
		exp := newExpense(policy.ModeSequential, 0)
		require.Equal(t, StatusSubmitted, exp.Status)

		exp.ApplyOverride(admin, StatusApproved, "", now)
		assert.Equal(t, StatusApproved, exp.Status)
	})

	t.Run("rejects non-terminal forced status", func(t *testing.T) {
		exp := newExpense(policy.ModeSequential, 0, approver)
		err := exp.CanOverride(StatusInReview)
		require.Error(t, err)
		assert.True(t, dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})
}

func TestParseStatusAndDecision(t *testing.T) {
	status, err := ParseStatus(" Approved ")
	require.NoError(t, err)
	assert.Equal(t, StatusApproved, status)

	_, err = ParseStatus("escalated")
	require.Error(t, err)

	decision, err := ParseDecision("REJECT")
	require.NoError(t, err)
	assert.Equal(t, DecisionReject, decision)

	_, err = ParseDecision("maybe")
	require.Error(t, err)
}
