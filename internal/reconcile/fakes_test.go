// ABOUTME: Test fakes for the course registry and Circle clients
// ABOUTME: Records calls and returns scripted errors for reconciler tests

package reconcile

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/2389/spacesync/internal/circle"
	"github.com/2389/spacesync/internal/store"
	"github.com/2389/spacesync/internal/teachable"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(&discardWriter{}, &slog.HandlerOptions{Level: slog.LevelError}))
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

func newTestStore(t *testing.T) store.Store {
	t.Helper()
	st, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })
	return st
}

// fakeCourses is a scripted course registry.
type fakeCourses struct {
	mu      sync.Mutex
	courses []teachable.Course
	err     error

	// listStarted/listRelease let a test hold a tick open mid-ListCourses.
	listStarted chan struct{}
	listRelease chan struct{}
}

func (f *fakeCourses) ListCourses(ctx context.Context) ([]teachable.Course, error) {
	if f.listStarted != nil {
		f.listStarted <- struct{}{}
		<-f.listRelease
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return f.courses, nil
}

// fakeSpaces is a scripted Circle client that records every call.
type fakeSpaces struct {
	mu sync.Mutex

	createErr error
	renameErr error
	deleteErr error
	inviteErr error

	// deleteErrFor fails deletion only for specific space IDs.
	deleteErrFor map[string]error

	created []circle.CreateSpaceParams
	renamed []string
	deleted []string
	invited []string

	nextSpaceID int
}

func (f *fakeSpaces) CreateSpace(ctx context.Context, params circle.CreateSpaceParams) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.createErr != nil {
		return "", f.createErr
	}
	f.created = append(f.created, params)
	f.nextSpaceID++
	return fmt.Sprintf("space-%d", f.nextSpaceID), nil
}

func (f *fakeSpaces) RenameSpace(ctx context.Context, spaceID, name, slug string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.renameErr != nil {
		return f.renameErr
	}
	f.renamed = append(f.renamed, fmt.Sprintf("%s:%s:%s", spaceID, name, slug))
	return nil
}

func (f *fakeSpaces) DeleteSpace(ctx context.Context, spaceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return f.deleteErr
	}
	if err, ok := f.deleteErrFor[spaceID]; ok {
		return err
	}
	f.deleted = append(f.deleted, spaceID)
	return nil
}

func (f *fakeSpaces) InviteMember(ctx context.Context, email, communityID, spaceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.inviteErr != nil {
		return f.inviteErr
	}
	f.invited = append(f.invited, fmt.Sprintf("%s:%s", email, spaceID))
	return nil
}

func (f *fakeSpaces) ListCommunities(ctx context.Context) ([]circle.Community, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSpaces) ListSpaceGroups(ctx context.Context, communityID string) ([]circle.SpaceGroup, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeSpaces) createCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.created)
}

var _ circle.Client = (*fakeSpaces)(nil)

func testCredentials() Credentials {
	return Credentials{
		TeachableAPIKey: "tk-123",
		CircleTokenV1:   "v1-token",
		CircleTokenV2:   "v2-token",
	}
}

func testSpaceConfig() SpaceConfig {
	return SpaceConfig{
		CommunityID:          "42",
		SpaceGroupID:         "7",
		Private:              true,
		HiddenFromNonMembers: true,
	}
}

func newTestReconciler(t *testing.T, courses *fakeCourses, spaces *fakeSpaces) (*Reconciler, store.Store) {
	t.Helper()
	st := newTestStore(t)
	r := New(st, courses, spaces, testCredentials(), testSpaceConfig(), testLogger())
	return r, st
}
