// ABOUTME: Enrollment reconciler that mirrors course enrollments into Circle spaces
// ABOUTME: Lazily creates one space per course and invites the enrolled member

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/2389/spacesync/internal/circle"
	"github.com/2389/spacesync/internal/store"
	"github.com/2389/spacesync/internal/teachable"
)

// ErrMissingCredentials means the registry credentials needed for the
// operation are not configured yet.
var ErrMissingCredentials = errors.New("registry credentials not configured")

// ErrInviteFailed marks the partial-success state where the space exists (and
// its mapping is persisted) but the member invite failed. Callers should
// surface this distinctly from a creation failure: retrying the same event is
// safe and will only re-invite.
var ErrInviteFailed = errors.New("member invite failed")

// ValidationError reports a malformed enrollment event.
type ValidationError struct {
	Field string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("enrollment event missing %s", e.Field)
}

// Event is an inbound enrollment notification.
type Event struct {
	CourseID    string
	CourseName  string
	MemberEmail string
}

// SpaceConfig carries the Circle-side parameters for space creation.
type SpaceConfig struct {
	CommunityID          string
	SpaceGroupID         string
	Private              bool
	HiddenFromNonMembers bool
	Hidden               bool
}

// Credentials reflects which registry credentials are configured. The
// reconcilers gate on these per invocation so credentials added after startup
// take effect without a restart.
type Credentials struct {
	TeachableAPIKey string
	CircleTokenV1   string
	CircleTokenV2   string
}

// Reconciler drives both enrollment handling and periodic course sync.
type Reconciler struct {
	store   store.Store
	courses CourseLister
	spaces  circle.Client
	creds   Credentials
	space   SpaceConfig
	logger  *slog.Logger

	// Per-course locks serialize the get-create-upsert window so concurrent
	// events for the same course create at most one space.
	coursesMu   sync.Mutex
	courseLocks map[string]*sync.Mutex

	// Guards against overlapping periodic runs.
	runMu sync.Mutex
}

// CourseLister is the slice of the course registry the reconciler needs.
type CourseLister interface {
	ListCourses(ctx context.Context) ([]teachable.Course, error)
}

// New creates a Reconciler.
func New(st store.Store, courses CourseLister, spaces circle.Client, creds Credentials, space SpaceConfig, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		store:       st,
		courses:     courses,
		spaces:      spaces,
		creds:       creds,
		space:       space,
		logger:      logger.With("component", "reconcile"),
		courseLocks: make(map[string]*sync.Mutex),
	}
}

// lockCourse returns the mutex for a course, creating it on first use.
// Locks are never removed; the course set is small and bounded.
func (r *Reconciler) lockCourse(courseID string) *sync.Mutex {
	r.coursesMu.Lock()
	defer r.coursesMu.Unlock()

	mu, ok := r.courseLocks[courseID]
	if !ok {
		mu = &sync.Mutex{}
		r.courseLocks[courseID] = mu
	}
	return mu
}

// hasCircleCredentials reports whether space operations can be attempted.
func (r *Reconciler) hasCircleCredentials() bool {
	return r.creds.CircleTokenV1 != "" && r.creds.CircleTokenV2 != "" && r.space.CommunityID != ""
}

// record appends to the action log, logging but never propagating failures.
func (r *Reconciler) record(ctx context.Context, action store.Action, message string) {
	if err := r.store.RecordAction(ctx, action, message); err != nil {
		r.logger.Warn("failed to record action", "action", action, "error", err)
	}
}

// HandleEnrollment processes one enrollment event: it ensures the course has
// a space (creating one on first enrollment) and invites the member into it.
// It returns the space ID on full or partial success.
//
// At most one space is ever created per course: the mapping lookup and the
// create-upsert window run under a per-course lock, and the mapping store
// keys on course_id.
//
// A failed invite after a successful creation returns the space ID together
// with an error wrapping ErrInviteFailed; the mapping is kept so redelivering
// the event only re-invites.
func (r *Reconciler) HandleEnrollment(ctx context.Context, ev Event) (string, error) {
	switch {
	case ev.CourseID == "":
		return "", &ValidationError{Field: "course_id"}
	case ev.CourseName == "":
		return "", &ValidationError{Field: "course_name"}
	case ev.MemberEmail == "":
		return "", &ValidationError{Field: "member_email"}
	}

	if !r.hasCircleCredentials() {
		return "", ErrMissingCredentials
	}

	mu := r.lockCourse(ev.CourseID)
	mu.Lock()
	defer mu.Unlock()

	spaceID, err := r.ensureSpace(ctx, ev.CourseID, ev.CourseName)
	if err != nil {
		return "", err
	}

	if err := r.spaces.InviteMember(ctx, ev.MemberEmail, r.space.CommunityID, spaceID); err != nil {
		r.logger.Error("invite failed", "course_id", ev.CourseID, "space_id", spaceID, "error", err)
		return spaceID, fmt.Errorf("%w: %w", ErrInviteFailed, err)
	}

	r.record(ctx, store.ActionUserInvited, fmt.Sprintf("Invited %s to space %s (course %s)", ev.MemberEmail, spaceID, ev.CourseID))
	r.logger.Info("enrollment reconciled", "course_id", ev.CourseID, "space_id", spaceID)
	return spaceID, nil
}

// ensureSpace returns the space ID for a course, creating the space and
// persisting the mapping on first sight. Callers must hold the course lock.
func (r *Reconciler) ensureSpace(ctx context.Context, courseID, courseName string) (string, error) {
	m, err := r.store.GetMapping(ctx, courseID)
	if err == nil {
		return m.SpaceID, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return "", fmt.Errorf("looking up mapping: %w", err)
	}

	slug := Slugify(courseName)
	spaceID, err := r.spaces.CreateSpace(ctx, circle.CreateSpaceParams{
		CommunityID:          r.space.CommunityID,
		SpaceGroupID:         r.space.SpaceGroupID,
		Name:                 courseName,
		Slug:                 slug,
		Private:              r.space.Private,
		HiddenFromNonMembers: r.space.HiddenFromNonMembers,
		Hidden:               r.space.Hidden,
	})
	if err != nil {
		r.logger.Error("space creation failed", "course_id", courseID, "error", err)
		return "", fmt.Errorf("creating space for course %s: %w", courseID, err)
	}

	if err := r.store.UpsertMapping(ctx, courseID, spaceID, courseName, slug); err != nil {
		// The space exists in Circle but we lost the mapping; surface the
		// error so the caller does not invite into a space we cannot track.
		return "", fmt.Errorf("persisting mapping for course %s: %w", courseID, err)
	}

	r.record(ctx, store.ActionSpaceCreated, fmt.Sprintf("Created space %s for course %s (%s)", spaceID, courseID, courseName))
	r.logger.Info("created space", "course_id", courseID, "space_id", spaceID, "slug", slug)
	return spaceID, nil
}
