// Package audit captures the approval trail: who submitted, who decided,
// who overrode. Events flow through a Store (outbox) and are shipped to
// Kafka by the worker; Kafka is the source of truth downstream.
package audit

import (
	"context"
	"time"
)

// Action names a recorded domain action.
type Action string

const (
	ActionExpenseSubmitted  Action = "expense_submitted"
	ActionStepApproved      Action = "step_approved"
	ActionStepRejected      Action = "step_rejected"
	ActionExpenseOverridden Action = "expense_overridden"
	ActionUserCreated       Action = "user_created"
	ActionCompanyCreated    Action = "company_created"
	ActionPolicyCreated     Action = "policy_created"
)

// Event is emitted from domain logic to capture key actions. Keep it
// transport-agnostic so stores and sinks can fan out.
type Event struct {
	Timestamp time.Time `json:"timestamp"`
	Action    Action    `json:"action"`
	ActorID   string    `json:"actor_id,omitempty"`
	CompanyID string    `json:"company_id,omitempty"`
	ExpenseID string    `json:"expense_id,omitempty"`
	Decision  string    `json:"decision,omitempty"`
	Comment   string    `json:"comment,omitempty"`
	RequestID string    `json:"request_id,omitempty"`
}

// Store persists audit events. The postgres implementation is an outbox the
// worker drains into Kafka.
type Store interface {
	Append(ctx context.Context, event Event) error
}

// OutboxRow is one stored event awaiting publication.
type OutboxRow struct {
	ID      string
	Payload []byte
}

// Outbox is the read side of an outbox-backed store.
type Outbox interface {
	Unpublished(ctx context.Context, limit int) ([]OutboxRow, error)
	MarkPublished(ctx context.Context, ids []string) error
}
