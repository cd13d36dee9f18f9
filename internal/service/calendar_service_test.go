package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

type fakeCalendarRepo struct {
	items    []models.CalendarItem
	scope    models.ClassFilter
	from, to time.Time
}

func (f *fakeCalendarRepo) Items(ctx context.Context, scope models.ClassFilter, from, to time.Time) ([]models.CalendarItem, error) {
	f.scope, f.from, f.to = scope, from, to
	return f.items, nil
}

func TestCalendarWindowDefaultsToCurrentWeek(t *testing.T) {
	// Wednesday
	now := time.Date(2024, 5, 15, 10, 0, 0, 0, time.UTC)
	repo := &fakeCalendarRepo{items: []models.CalendarItem{
		{AssignmentID: "a1", Title: "Essay", DueAt: time.Date(2024, 5, 16, 23, 0, 0, 0, time.UTC), Requires: true},
		{AssignmentID: "a2", Title: "Quiz", DueAt: time.Date(2024, 5, 14, 8, 0, 0, 0, time.UTC), Requires: true},
	}}
	svc := NewCalendarService(repo, nil)
	svc.now = func() time.Time { return now }

	window, err := svc.Window(context.Background(), studentActor, nil)
	require.NoError(t, err)
	assert.Equal(t, "2024-05-13", window.Start)
	assert.Equal(t, "2024-05-26", window.End)
	assert.Equal(t, "2024-04-29", window.PrevStart)
	assert.Equal(t, "2024-05-27", window.NextStart)
	require.Len(t, window.Days, 14)

	assert.Equal(t, "student-1", repo.scope.StudentID)
	assert.Equal(t, time.Date(2024, 5, 27, 0, 0, 0, 0, time.UTC), repo.to)

	require.Len(t, window.Days[3].Items, 1)
	assert.Equal(t, "amber", window.Days[3].Items[0].StatusColor)
	require.Len(t, window.Days[1].Items, 1)
	assert.Equal(t, "red", window.Days[1].Items[0].StatusColor)
}

func TestCalendarWindowScopes(t *testing.T) {
	repo := &fakeCalendarRepo{}
	svc := NewCalendarService(repo, nil)
	start, err := ParseStart("2024-01-03")
	require.NoError(t, err)

	window, err := svc.Window(context.Background(), teacherActor, start)
	require.NoError(t, err)
	assert.Equal(t, "2024-01-03", window.Start)
	assert.Equal(t, "teacher-1", repo.scope.TeacherID)

	_, err = svc.Window(context.Background(), adminActor, start)
	require.NoError(t, err)
	assert.Empty(t, repo.scope.TeacherID)
	assert.Equal(t, "school-1", repo.scope.SchoolID)

	_, err = ParseStart("03/01/2024")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
