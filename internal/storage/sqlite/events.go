package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/escrowlabs/escrowd/internal/models"
)

// AppendEvent records one audit event.
func (s *SQLiteStore) AppendEvent(ctx context.Context, ev models.Event) error {
	var recipient interface{}
	if ev.Recipient != "" {
		recipient = string(ev.Recipient)
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO events (id, project_id, op, actor, from_state, to_state, amount, recipient, payout, fee, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.ProjectID, ev.Op, string(ev.Actor), string(ev.FromState), string(ev.ToState),
		ev.Amount, recipient, ev.Payout, ev.Fee, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to insert event: %w", err)
	}
	return nil
}

// ListEventsByProject returns a project's events oldest first.
func (s *SQLiteStore) ListEventsByProject(ctx context.Context, projectID uint64) ([]models.Event, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, project_id, op, actor, from_state, to_state, amount, recipient, payout, fee, created_at
		 FROM events WHERE project_id = ? ORDER BY created_at, id`,
		projectID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list events by project: %w", err)
	}
	defer rows.Close()

	var events []models.Event
	for rows.Next() {
		var ev models.Event
		var recipient sql.NullString
		if err := rows.Scan(&ev.ID, &ev.ProjectID, &ev.Op, &ev.Actor, &ev.FromState, &ev.ToState,
			&ev.Amount, &recipient, &ev.Payout, &ev.Fee, &ev.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan event: %w", err)
		}
		if recipient.Valid {
			ev.Recipient = models.Principal(recipient.String)
		}
		events = append(events, ev)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate events: %w", err)
	}
	return events, nil
}
