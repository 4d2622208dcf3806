// ABOUTME: Tests for action log store operations
// ABOUTME: Covers Record and List with filtering for the action_log table

package store

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestActionLog_Record(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	err := store.RecordAction(ctx, ActionSpaceCreated, "Created Circle space 500 for course 101 (Intro)")
	require.NoError(t, err)

	entries, err := store.ListActions(ctx, ActionFilter{})
	require.NoError(t, err)
	require.Len(t, entries, 1)

	assert.NotEmpty(t, entries[0].ID)
	assert.Equal(t, ActionSpaceCreated, entries[0].Action)
	assert.Contains(t, entries[0].Message, "course 101")
	assert.False(t, entries[0].CreatedAt.IsZero())
}

func TestActionLog_List_NewestFirst(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	actions := []Action{ActionSpaceCreated, ActionUserInvited, ActionSpaceDeleted}
	for i, action := range actions {
		require.NoError(t, store.RecordAction(ctx, action, fmt.Sprintf("entry %d", i)))
	}

	entries, err := store.ListActions(ctx, ActionFilter{})
	require.NoError(t, err)
	assert.Len(t, entries, 3)
}

func TestActionLog_List_ByAction(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	require.NoError(t, store.RecordAction(ctx, ActionSpaceCreated, "created"))
	require.NoError(t, store.RecordAction(ctx, ActionUserInvited, "invited"))
	require.NoError(t, store.RecordAction(ctx, ActionUserInvited, "invited again"))

	action := ActionUserInvited
	entries, err := store.ListActions(ctx, ActionFilter{Action: &action})
	require.NoError(t, err)
	assert.Len(t, entries, 2)
	for _, e := range entries {
		assert.Equal(t, ActionUserInvited, e.Action)
	}
}

func TestActionLog_List_LimitAndOffset(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		require.NoError(t, store.RecordAction(ctx, ActionSpaceCreated, fmt.Sprintf("entry %d", i)))
	}

	page, err := store.ListActions(ctx, ActionFilter{Limit: 2})
	require.NoError(t, err)
	assert.Len(t, page, 2)

	rest, err := store.ListActions(ctx, ActionFilter{Limit: 10, Offset: 2})
	require.NoError(t, err)
	assert.Len(t, rest, 3)
}

func TestActionLog_List_EmptyReturnsEmptySlice(t *testing.T) {
	store := setupTestStore(t)

	entries, err := store.ListActions(context.Background(), ActionFilter{})
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestActionLog_InvalidActionRejected(t *testing.T) {
	store := setupTestStore(t)

	// The CHECK constraint guards against typo'd action names
	err := store.RecordAction(context.Background(), Action("bogus"), "nope")
	assert.Error(t, err)
}
