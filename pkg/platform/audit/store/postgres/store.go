// Package postgres implements the audit store using the transactional outbox
// pattern. Events are written to the outbox table and published to Kafka by
// the outbox worker.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	audit "expensio/pkg/platform/audit"
)

// Store writes audit events to the audit_outbox table.
type Store struct {
	db *sql.DB
}

// New creates a new PostgreSQL audit store that writes to the outbox.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// Append writes an audit event to the outbox table for Kafka publishing.
func (s *Store) Append(ctx context.Context, event audit.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal audit event: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO audit_outbox (id, payload, created_at)
		VALUES ($1, $2, $3)`,
		uuid.New().String(), payload, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("insert audit outbox row: %w", err)
	}
	return nil
}

// Unpublished returns up to limit outbox rows not yet shipped, oldest first.
func (s *Store) Unpublished(ctx context.Context, limit int) ([]audit.OutboxRow, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, payload FROM audit_outbox
		WHERE published_at IS NULL
		ORDER BY created_at
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("select audit outbox: %w", err)
	}
	defer rows.Close()

	var pending []audit.OutboxRow
	for rows.Next() {
		var row audit.OutboxRow
		if err := rows.Scan(&row.ID, &row.Payload); err != nil {
			return nil, fmt.Errorf("scan audit outbox row: %w", err)
		}
		pending = append(pending, row)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit outbox: %w", err)
	}
	return pending, nil
}

// MarkPublished stamps outbox rows as shipped.
func (s *Store) MarkPublished(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	_, err := s.db.ExecContext(ctx, `
		UPDATE audit_outbox SET published_at = $1 WHERE id = ANY($2)`,
		time.Now().UTC(), pq.Array(ids))
	if err != nil {
		return fmt.Errorf("mark audit outbox published: %w", err)
	}
	return nil
}
