// ABOUTME: Store interface and data types for spacesync persistence
// ABOUTME: Defines Mapping, ActionEntry and the Store interface for database operations

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Mapping associates one Teachable course with one Circle space.
// CourseID is the unique key; SpaceID never changes for the life of a
// mapping (renames update CourseName/Slug only).
type Mapping struct {
	CourseID   string
	SpaceID    string
	CourseName string
	Slug       string
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// Action represents an auditable sync action.
type Action string

const (
	ActionSpaceCreated Action = "space_created"
	ActionSpaceUpdated Action = "space_updated"
	ActionSpaceDeleted Action = "space_deleted"
	ActionUserInvited  Action = "user_invited"
)

// ValidActions lists all valid sync actions.
var ValidActions = []Action{
	ActionSpaceCreated,
	ActionSpaceUpdated,
	ActionSpaceDeleted,
	ActionUserInvited,
}

// Valid reports whether a is one of the known sync actions.
func (a Action) Valid() bool {
	for _, v := range ValidActions {
		if a == v {
			return true
		}
	}
	return false
}

// ActionEntry is a single append-only action log record.
type ActionEntry struct {
	ID        string // UUID v4
	Action    Action
	Message   string
	CreatedAt time.Time
}

// ActionFilter specifies filtering options for listing action log entries.
type ActionFilter struct {
	Action *Action // filter by action type
	Limit  int     // max results (default 100, max 1000)
	Offset int
}

// Store defines the interface for mapping and action log persistence
type Store interface {
	// Mappings
	GetMapping(ctx context.Context, courseID string) (*Mapping, error)
	UpsertMapping(ctx context.Context, courseID, spaceID, courseName, slug string) error
	DeleteMapping(ctx context.Context, courseID string) error
	ListMappings(ctx context.Context) ([]*Mapping, error)

	// Action log (append-only, write failures never abort the caller's operation)
	RecordAction(ctx context.Context, action Action, message string) error
	ListActions(ctx context.Context, filter ActionFilter) ([]ActionEntry, error)

	// Close releases any resources held by the store
	Close() error
}
