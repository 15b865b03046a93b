package audit

import (
	"context"
	"log/slog"
	"time"
)

// Publisher emits audit events with fail-open semantics: a failed append is
// logged but never fails the business operation. The approval engine's state
// transition is already committed by the time an event is emitted; blocking
// or rolling back on audit failure is not an option here.
type Publisher struct {
	store  Store
	logger *slog.Logger
}

// NewPublisher creates a publisher. A nil store disables emission (dev mode
// without an audit sink).
func NewPublisher(store Store, logger *slog.Logger) *Publisher {
	return &Publisher{store: store, logger: logger}
}

// Emit records an event, stamping the timestamp when unset.
func (p *Publisher) Emit(ctx context.Context, event Event) {
	if p == nil || p.store == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}
	if err := p.store.Append(ctx, event); err != nil && p.logger != nil {
		p.logger.ErrorContext(ctx, "audit append failed",
			"action", event.Action,
			"expense_id", event.ExpenseID,
			"error", err,
		)
	}
}
