// ABOUTME: Tests for the enrollment reconciler
// ABOUTME: Covers lazy space creation, idempotent invites, partial success, and concurrency

package reconcile

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/spacesync/internal/store"
)

func enrollment() Event {
	return Event{CourseID: "101", CourseName: "Intro 101", MemberEmail: "student@example.com"}
}

func TestHandleEnrollment_FirstEnrollmentCreatesSpace(t *testing.T) {
	spaces := &fakeSpaces{}
	r, st := newTestReconciler(t, &fakeCourses{}, spaces)
	ctx := context.Background()

	spaceID, err := r.HandleEnrollment(ctx, enrollment())
	require.NoError(t, err)
	assert.Equal(t, "space-1", spaceID)

	// Space created with the configured flags and derived slug
	require.Len(t, spaces.created, 1)
	assert.Equal(t, "Intro 101", spaces.created[0].Name)
	assert.Equal(t, "intro-101", spaces.created[0].Slug)
	assert.Equal(t, "42", spaces.created[0].CommunityID)
	assert.Equal(t, "7", spaces.created[0].SpaceGroupID)
	assert.True(t, spaces.created[0].Private)
	assert.True(t, spaces.created[0].HiddenFromNonMembers)

	// Member invited into the new space
	require.Len(t, spaces.invited, 1)
	assert.Equal(t, "student@example.com:space-1", spaces.invited[0])

	// Mapping persisted
	m, err := st.GetMapping(ctx, "101")
	require.NoError(t, err)
	assert.Equal(t, "space-1", m.SpaceID)
	assert.Equal(t, "Intro 101", m.CourseName)
	assert.Equal(t, "intro-101", m.Slug)

	// One space_created and one user_invited entry
	entries, err := st.ListActions(ctx, store.ActionFilter{})
	require.NoError(t, err)
	actions := make([]store.Action, 0, len(entries))
	for _, e := range entries {
		actions = append(actions, e.Action)
	}
	assert.ElementsMatch(t, []store.Action{store.ActionSpaceCreated, store.ActionUserInvited}, actions)
}

func TestHandleEnrollment_ExistingMappingOnlyInvites(t *testing.T) {
	spaces := &fakeSpaces{}
	r, st := newTestReconciler(t, &fakeCourses{}, spaces)
	ctx := context.Background()

	require.NoError(t, st.UpsertMapping(ctx, "101", "space-9", "Intro 101", "intro-101"))

	spaceID, err := r.HandleEnrollment(ctx, enrollment())
	require.NoError(t, err)
	assert.Equal(t, "space-9", spaceID)

	assert.Empty(t, spaces.created)
	require.Len(t, spaces.invited, 1)
	assert.Equal(t, "student@example.com:space-9", spaces.invited[0])
}

func TestHandleEnrollment_Redelivery(t *testing.T) {
	spaces := &fakeSpaces{}
	r, _ := newTestReconciler(t, &fakeCourses{}, spaces)
	ctx := context.Background()

	first, err := r.HandleEnrollment(ctx, enrollment())
	require.NoError(t, err)

	second, err := r.HandleEnrollment(ctx, enrollment())
	require.NoError(t, err)

	// Same space, one creation, two invites
	assert.Equal(t, first, second)
	assert.Len(t, spaces.created, 1)
	assert.Len(t, spaces.invited, 2)
}

func TestHandleEnrollment_Validation(t *testing.T) {
	r, _ := newTestReconciler(t, &fakeCourses{}, &fakeSpaces{})
	ctx := context.Background()

	cases := []struct {
		name  string
		ev    Event
		field string
	}{
		{"missing course_id", Event{CourseName: "X", MemberEmail: "a@b.c"}, "course_id"},
		{"missing course_name", Event{CourseID: "1", MemberEmail: "a@b.c"}, "course_name"},
		{"missing member_email", Event{CourseID: "1", CourseName: "X"}, "member_email"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := r.HandleEnrollment(ctx, tc.ev)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestHandleEnrollment_MissingCredentials(t *testing.T) {
	st := newTestStore(t)
	r := New(st, &fakeCourses{}, &fakeSpaces{}, Credentials{}, SpaceConfig{}, testLogger())

	_, err := r.HandleEnrollment(context.Background(), enrollment())
	assert.ErrorIs(t, err, ErrMissingCredentials)
}

func TestHandleEnrollment_CreateFailure(t *testing.T) {
	spaces := &fakeSpaces{createErr: errors.New("circle down")}
	r, st := newTestReconciler(t, &fakeCourses{}, spaces)
	ctx := context.Background()

	_, err := r.HandleEnrollment(ctx, enrollment())
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInviteFailed)

	// No invite attempted, no mapping, no log entries
	assert.Empty(t, spaces.invited)
	_, err = st.GetMapping(ctx, "101")
	assert.ErrorIs(t, err, store.ErrNotFound)

	entries, err := st.ListActions(ctx, store.ActionFilter{})
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestHandleEnrollment_InviteFailureKeepsMapping(t *testing.T) {
	spaces := &fakeSpaces{inviteErr: errors.New("invite rejected")}
	r, st := newTestReconciler(t, &fakeCourses{}, spaces)
	ctx := context.Background()

	spaceID, err := r.HandleEnrollment(ctx, enrollment())
	require.ErrorIs(t, err, ErrInviteFailed)
	assert.Equal(t, "space-1", spaceID)

	// The space and its mapping survive the failed invite
	m, err := st.GetMapping(ctx, "101")
	require.NoError(t, err)
	assert.Equal(t, "space-1", m.SpaceID)

	// space_created logged, user_invited not
	entries, err := st.ListActions(ctx, store.ActionFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, store.ActionSpaceCreated, entries[0].Action)

	// Redelivery after the invite is fixed only re-invites
	spaces.mu.Lock()
	spaces.inviteErr = nil
	spaces.mu.Unlock()

	again, err := r.HandleEnrollment(ctx, enrollment())
	require.NoError(t, err)
	assert.Equal(t, "space-1", again)
	assert.Len(t, spaces.created, 1)
}

func TestHandleEnrollment_ConcurrentSameCourse(t *testing.T) {
	spaces := &fakeSpaces{}
	r, _ := newTestReconciler(t, &fakeCourses{}, spaces)
	ctx := context.Background()

	var wg sync.WaitGroup
	results := make([]string, 10)
	errs := make([]error, 10)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = r.HandleEnrollment(ctx, enrollment())
		}(i)
	}
	wg.Wait()

	// Exactly one space created; every event sees the same space
	assert.Equal(t, 1, spaces.createCount())
	for i := 0; i < 10; i++ {
		require.NoError(t, errs[i])
		assert.Equal(t, "space-1", results[i])
	}
}

func TestHandleEnrollment_DifferentCoursesGetDifferentSpaces(t *testing.T) {
	spaces := &fakeSpaces{}
	r, _ := newTestReconciler(t, &fakeCourses{}, spaces)
	ctx := context.Background()

	a, err := r.HandleEnrollment(ctx, Event{CourseID: "1", CourseName: "A", MemberEmail: "x@y.z"})
	require.NoError(t, err)
	b, err := r.HandleEnrollment(ctx, Event{CourseID: "2", CourseName: "B", MemberEmail: "x@y.z"})
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.Equal(t, 2, spaces.createCount())
}
