// ABOUTME: Periodic reconciler comparing the course registry against stored mappings
// ABOUTME: Renames spaces for retitled courses and deletes spaces for removed courses

package reconcile

import (
	"context"
	"errors"
	"fmt"

	"github.com/2389/spacesync/internal/store"
	"github.com/2389/spacesync/internal/teachable"
)

// ErrSyncInProgress means a periodic run was skipped because the previous
// one has not finished.
var ErrSyncInProgress = errors.New("periodic sync already running")

// ReconcileCourses runs one periodic tick: it snapshots the course registry
// once, then applies a rename pass and a delete pass against the mappings.
//
// Ticks never overlap; a tick that arrives while the previous one is still
// running returns ErrSyncInProgress without doing any work. Row failures are
// logged and left for the next tick, so one broken course never blocks the
// rest.
func (r *Reconciler) ReconcileCourses(ctx context.Context) error {
	if !r.runMu.TryLock() {
		r.logger.Warn("skipping sync tick, previous run still in progress")
		return ErrSyncInProgress
	}
	defer r.runMu.Unlock()

	if r.creds.TeachableAPIKey == "" || !r.hasCircleCredentials() {
		r.logger.Warn("skipping sync tick, registry credentials not configured")
		return ErrMissingCredentials
	}

	// One snapshot feeds both passes: a course that vanishes mid-tick is
	// handled next tick, not half-handled in this one.
	courses, err := r.courses.ListCourses(ctx)
	if err != nil {
		switch {
		case teachable.IsUnauthorized(err):
			r.logger.Error("course registry rejected API key", "error", err)
		case teachable.IsNotFound(err):
			r.logger.Error("course registry API not available for this account", "error", err)
		default:
			r.logger.Error("course registry unreachable", "error", err)
		}
		return fmt.Errorf("listing courses: %w", err)
	}

	byID := make(map[string]teachable.Course, len(courses))
	for _, c := range courses {
		byID[c.ID] = c
	}

	mappings, err := r.store.ListMappings(ctx)
	if err != nil {
		return fmt.Errorf("listing mappings: %w", err)
	}

	renamed := r.renamePass(ctx, mappings, byID)
	deleted := r.deletePass(ctx, mappings, byID)

	r.logger.Info("sync tick complete",
		"courses", len(courses),
		"mappings", len(mappings),
		"renamed", renamed,
		"deleted", deleted,
	)
	return nil
}

// renamePass renames spaces whose course was retitled in the registry.
// The mapping only changes after the rename call succeeds.
func (r *Reconciler) renamePass(ctx context.Context, mappings []*store.Mapping, byID map[string]teachable.Course) int {
	renamed := 0
	for _, m := range mappings {
		course, exists := byID[m.CourseID]
		if !exists || course.Name == m.CourseName {
			continue
		}

		slug := Slugify(course.Name)
		if err := r.spaces.RenameSpace(ctx, m.SpaceID, course.Name, slug); err != nil {
			r.logger.Error("rename failed", "course_id", m.CourseID, "space_id", m.SpaceID, "error", err)
			continue
		}

		if err := r.store.UpsertMapping(ctx, m.CourseID, m.SpaceID, course.Name, slug); err != nil {
			r.logger.Error("failed to persist rename", "course_id", m.CourseID, "error", err)
			continue
		}

		r.record(ctx, store.ActionSpaceUpdated, fmt.Sprintf("Renamed space %s for course %s (%q -> %q)", m.SpaceID, m.CourseID, m.CourseName, course.Name))
		r.logger.Info("renamed space", "course_id", m.CourseID, "space_id", m.SpaceID, "name", course.Name)
		renamed++
	}
	return renamed
}

// deletePass deletes spaces whose course no longer exists in the registry.
// The mapping is only removed after the registry confirms the deletion.
func (r *Reconciler) deletePass(ctx context.Context, mappings []*store.Mapping, byID map[string]teachable.Course) int {
	deleted := 0
	for _, m := range mappings {
		if _, exists := byID[m.CourseID]; exists {
			continue
		}

		if err := r.spaces.DeleteSpace(ctx, m.SpaceID); err != nil {
			r.logger.Error("delete failed", "course_id", m.CourseID, "space_id", m.SpaceID, "error", err)
			continue
		}

		if err := r.store.DeleteMapping(ctx, m.CourseID); err != nil {
			r.logger.Error("failed to remove mapping", "course_id", m.CourseID, "error", err)
			continue
		}

		r.record(ctx, store.ActionSpaceDeleted, fmt.Sprintf("Deleted space %s for removed course %s (%s)", m.SpaceID, m.CourseID, m.CourseName))
		r.logger.Info("deleted space", "course_id", m.CourseID, "space_id", m.SpaceID)
		deleted++
	}
	return deleted
}
