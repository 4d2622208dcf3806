// ABOUTME: Append-only action log store methods for tracking sync actions
// ABOUTME: Records every mutating call made against Circle for audit and debugging

package store

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RecordAction appends a new entry to the action log.
// The log is observability, not a transactional participant: callers log a
// returned error and continue with their primary operation.
func (s *SQLiteStore) RecordAction(ctx context.Context, action Action, message string) error {
	entry := ActionEntry{
		ID:        uuid.New().String(),
		Action:    action,
		Message:   message,
		CreatedAt: time.Now().UTC(),
	}

	query := `
		INSERT INTO action_log (id, action, message, created_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entry.ID,
		string(entry.Action),
		entry.Message,
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting action entry: %w", err)
	}

	s.logger.Debug("recorded action", "id", entry.ID, "action", entry.Action)
	return nil
}

// normalizeActionLimit applies default (100) and cap (1000) to the list limit.
func normalizeActionLimit(limit int) int {
	switch {
	case limit <= 0:
		return 100
	case limit > 1000:
		return 1000
	default:
		return limit
	}
}

// ListActions returns action log entries matching the filter criteria.
// Results are returned newest first (DESC by created_at).
func (s *SQLiteStore) ListActions(ctx context.Context, f ActionFilter) ([]ActionEntry, error) {
	limit := normalizeActionLimit(f.Limit)

	var actionStr *string
	if f.Action != nil {
		a := string(*f.Action)
		actionStr = &a
	}

	query := `
		SELECT id, action, message, created_at
		FROM action_log
		WHERE (? IS NULL OR action = ?)
		ORDER BY created_at DESC, id
		LIMIT ? OFFSET ?
	`

	rows, err := s.db.QueryContext(ctx, query, actionStr, actionStr, limit, f.Offset)
	if err != nil {
		return nil, fmt.Errorf("querying action log: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var entries []ActionEntry
	for rows.Next() {
		var e ActionEntry
		var actionStr, createdAtStr string

		if err := rows.Scan(&e.ID, &actionStr, &e.Message, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning action entry: %w", err)
		}

		e.Action = Action(actionStr)
		e.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating action entries: %w", err)
	}

	if entries == nil {
		entries = []ActionEntry{}
	}
	return entries, nil
}
