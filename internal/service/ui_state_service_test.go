package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/uistate"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

func TestUIStateServiceDispatchPersists(t *testing.T) {
	svc := NewUIStateService(uistate.NewMemoryStore(), nil, nil)
	ctx := context.Background()

	state, err := svc.Get(ctx, teacherActor, "navigation")
	require.NoError(t, err)
	assert.Equal(t, "dashboard", state.(uistate.NavigationState).Tab)

	_, err = svc.Dispatch(ctx, teacherActor, "navigation", uistate.Action{Type: uistate.ActionSelectClass, ClassID: "class-1"})
	require.NoError(t, err)

	state, err = svc.Get(ctx, teacherActor, "navigation")
	require.NoError(t, err)
	nav := state.(uistate.NavigationState)
	assert.Equal(t, "class-1", nav.ActiveClassID)
	assert.Equal(t, "classes", nav.Tab)

	other, err := svc.Get(ctx, studentActor, "navigation")
	require.NoError(t, err)
	assert.Empty(t, other.(uistate.NavigationState).ActiveClassID)
}

func TestUIStateServiceRejectsBadInput(t *testing.T) {
	svc := NewUIStateService(uistate.NewMemoryStore(), nil, nil)
	ctx := context.Background()

	_, err := svc.Get(ctx, teacherActor, "billing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	_, err = svc.Dispatch(ctx, teacherActor, "navigation", uistate.Action{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Dispatch(ctx, teacherActor, "navigation", uistate.Action{Type: uistate.ActionSetTab, Tab: "nowhere"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUIStateServiceReset(t *testing.T) {
	svc := NewUIStateService(uistate.NewMemoryStore(), nil, nil)
	ctx := context.Background()

	_, err := svc.Dispatch(ctx, adminActor, "course_view", uistate.Action{Type: uistate.ActionSetTab, Tab: "files"})
	require.NoError(t, err)

	state, err := svc.Reset(ctx, adminActor, "course_view")
	require.NoError(t, err)
	assert.Equal(t, uistate.NewCourseViewState(), state)

	stored, err := svc.Get(ctx, adminActor, "course_view")
	require.NoError(t, err)
	assert.Equal(t, uistate.NewCourseViewState(), stored)
}
