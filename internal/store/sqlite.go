// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides mapping persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Serialize get-then-upsert sequences racing on the same course. The
	// busy timeout keeps concurrent writers from failing fast with SQLITE_BUSY.
	if _, err := db.Exec("PRAGMA busy_timeout=5000"); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting busy timeout: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS mappings (
			course_id   TEXT PRIMARY KEY,
			space_id    TEXT NOT NULL,
			course_name TEXT NOT NULL,
			slug        TEXT NOT NULL,
			created_at  TEXT NOT NULL,
			updated_at  TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS action_log (
			id         TEXT PRIMARY KEY,
			action     TEXT NOT NULL,
			message    TEXT NOT NULL,
			created_at TEXT NOT NULL,

			CHECK (action IN (
				'space_created',
				'space_updated',
				'space_deleted',
				'user_invited'
			))
		);

		CREATE INDEX IF NOT EXISTS idx_action_log_created ON action_log(created_at DESC);
		CREATE INDEX IF NOT EXISTS idx_action_log_action ON action_log(action);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// GetMapping retrieves the mapping for a course.
// Returns ErrNotFound if no space has been created for the course.
func (s *SQLiteStore) GetMapping(ctx context.Context, courseID string) (*Mapping, error) {
	query := `
		SELECT course_id, space_id, course_name, slug, created_at, updated_at
		FROM mappings
		WHERE course_id = ?
	`

	var m Mapping
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, courseID).Scan(
		&m.CourseID,
		&m.SpaceID,
		&m.CourseName,
		&m.Slug,
		&createdAtStr,
		&updatedAtStr,
	)

	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying mapping: %w", err)
	}

	m.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	m.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &m, nil
}

// UpsertMapping creates or updates the mapping for a course in one statement.
// The ON CONFLICT clause makes concurrent upserts for the same course collapse
// into a single row: the second writer updates instead of failing. created_at
// is preserved on update; updated_at always reflects the latest write.
func (s *SQLiteStore) UpsertMapping(ctx context.Context, courseID, spaceID, courseName, slug string) error {
	now := time.Now().UTC().Format(time.RFC3339)

	query := `
		INSERT INTO mappings (course_id, space_id, course_name, slug, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(course_id) DO UPDATE SET
			space_id    = excluded.space_id,
			course_name = excluded.course_name,
			slug        = excluded.slug,
			updated_at  = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query, courseID, spaceID, courseName, slug, now, now)
	if err != nil {
		return fmt.Errorf("upserting mapping: %w", err)
	}

	s.logger.Debug("upserted mapping", "course_id", courseID, "space_id", spaceID, "slug", slug)
	return nil
}

// DeleteMapping removes the mapping for a course.
// Deleting an absent mapping is a no-op, not an error.
func (s *SQLiteStore) DeleteMapping(ctx context.Context, courseID string) error {
	result, err := s.db.ExecContext(ctx, `DELETE FROM mappings WHERE course_id = ?`, courseID)
	if err != nil {
		return fmt.Errorf("deleting mapping: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("getting rows affected: %w", err)
	}

	if rowsAffected > 0 {
		s.logger.Debug("deleted mapping", "course_id", courseID)
	}
	return nil
}

// ListMappings returns all mappings in a single consistent read, ordered by
// course ID. The periodic reconciler diffs this snapshot against the registry.
func (s *SQLiteStore) ListMappings(ctx context.Context) ([]*Mapping, error) {
	query := `
		SELECT course_id, space_id, course_name, slug, created_at, updated_at
		FROM mappings
		ORDER BY course_id
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying mappings: %w", err)
	}
	defer rows.Close()

	var mappings []*Mapping
	for rows.Next() {
		var m Mapping
		var createdAtStr, updatedAtStr string

		if err := rows.Scan(&m.CourseID, &m.SpaceID, &m.CourseName, &m.Slug, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning mapping row: %w", err)
		}

		m.CreatedAt, err = time.Parse(time.RFC3339, createdAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		m.UpdatedAt, err = time.Parse(time.RFC3339, updatedAtStr)
		if err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		mappings = append(mappings, &m)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating mapping rows: %w", err)
	}
	return mappings, nil
}

// Ensure SQLiteStore implements Store interface
var _ Store = (*SQLiteStore)(nil)
