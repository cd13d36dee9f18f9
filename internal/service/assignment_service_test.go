package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/cachekeys"
	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/pkg/academic"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

type fakeAssignmentRepo struct {
	assignments map[string]*models.Assignment
	posts       []models.Post
	subs        *fakeSubmissionRepo
	classes     *fakeClassRepo
	listCalls   int
}

func newFakeAssignmentRepo(classes *fakeClassRepo) *fakeAssignmentRepo {
	return &fakeAssignmentRepo{
		assignments: map[string]*models.Assignment{},
		subs:        &fakeSubmissionRepo{subs: map[string]*models.Submission{}},
		classes:     classes,
	}
}

func (f *fakeAssignmentRepo) Create(ctx context.Context, a *models.Assignment, post *models.Post) error {
	a.ID = "assignment-" + a.Title
	copy := *a
	f.assignments[a.ID] = &copy
	for _, studentID := range f.classes.sortedMembers(a.ClassID) {
		id := "sub-" + a.ID + "-" + studentID
		f.subs.subs[id] = &models.Submission{ID: id, AssignmentID: a.ID, StudentID: studentID, Status: models.SubmissionAssigned}
	}
	if post != nil {
		post.AssignmentID = &a.ID
		f.posts = append(f.posts, *post)
	}
	return nil
}

func (f *fakeAssignmentRepo) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	a, ok := f.assignments[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *a
	return &copy, nil
}

func (f *fakeAssignmentRepo) ListByClass(ctx context.Context, classID string) ([]models.AssignmentSummary, error) {
	f.listCalls++
	out := []models.AssignmentSummary{}
	for _, a := range f.assignments {
		if a.ClassID == classID {
			out = append(out, models.AssignmentSummary{Assignment: *a})
		}
	}
	return out, nil
}

func (f *fakeAssignmentRepo) ListForStudent(ctx context.Context, classID, studentID string) ([]models.AssignmentSummary, error) {
	f.listCalls++
	out := []models.AssignmentSummary{}
	for _, a := range f.assignments {
		if a.ClassID != classID {
			continue
		}
		item := models.AssignmentSummary{Assignment: *a}
		if sub, err := f.subs.FindForStudent(ctx, a.ID, studentID); err == nil {
			item.Submission = sub
		}
		out = append(out, item)
	}
	return out, nil
}

func (f *fakeAssignmentRepo) Update(ctx context.Context, a *models.Assignment) error {
	copy := *a
	f.assignments[a.ID] = &copy
	return nil
}

func (f *fakeAssignmentRepo) Delete(ctx context.Context, id string) error {
	delete(f.assignments, id)
	return nil
}

type fakeSubmissionRepo struct {
	subs map[string]*models.Submission
}

func (f *fakeSubmissionRepo) ListByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	out := []models.Submission{}
	for _, s := range f.subs {
		if s.AssignmentID == assignmentID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeSubmissionRepo) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	s, ok := f.subs[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copy := *s
	return &copy, nil
}

func (f *fakeSubmissionRepo) FindForStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	for _, s := range f.subs {
		if s.AssignmentID == assignmentID && s.StudentID == studentID {
			copy := *s
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakeSubmissionRepo) Submit(ctx context.Context, sub *models.Submission) error {
	if f.subs[sub.ID].Status == models.SubmissionGraded {
		return sql.ErrNoRows
	}
	now := time.Now().UTC()
	sub.Status = models.SubmissionSubmitted
	sub.SubmittedAt = &now
	copy := *sub
	f.subs[sub.ID] = &copy
	return nil
}

func (f *fakeSubmissionRepo) Grade(ctx context.Context, sub *models.Submission) error {
	sub.Status = models.SubmissionGraded
	copy := *sub
	f.subs[sub.ID] = &copy
	return nil
}

var assignmentNow = time.Date(2024, 10, 7, 9, 0, 0, 0, time.UTC)

func newAssignmentFixture() (*AssignmentService, *fakeAssignmentRepo, *recordingCache) {
	classes := classFixture()
	repo := newFakeAssignmentRepo(classes)
	cache, rec := newRecordingCache()
	svc := NewAssignmentService(repo, classes, repo.subs, cache, nil, nil)
	svc.now = func() time.Time { return assignmentNow }
	return svc, repo, rec
}

func TestAssignmentServiceCreateFansOut(t *testing.T) {
	svc, repo, rec := newAssignmentFixture()
	due := assignmentNow.Add(24 * time.Hour)

	a, err := svc.Create(context.Background(), teacherActor, "class-1", AssignmentRequest{Title: " Essay ", TotalPoints: 20, DueAt: &due})
	require.NoError(t, err)
	assert.Equal(t, "Essay", a.Title)
	assert.True(t, a.RequiresSubmission)

	require.Len(t, repo.posts, 1)
	assert.Equal(t, models.PostAssignment, repo.posts[0].Type)
	assert.Equal(t, a.ID, *repo.posts[0].AssignmentID)
	assert.Len(t, repo.subs.subs, 1)
	assert.Contains(t, rec.published["school-1"], cachekeys.Posts("class-1"))
	assert.Contains(t, rec.published["school-1"], cachekeys.AssignmentsOfClass("class-1"))
}

func TestAssignmentServiceCreateRules(t *testing.T) {
	svc, _, _ := newAssignmentFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, studentActor, "class-1", AssignmentRequest{Title: "X", TotalPoints: 10})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Create(ctx, teacherActor, "class-1", AssignmentRequest{Title: "X", TotalPoints: 0})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(ctx, teacherActor, "class-3", AssignmentRequest{Title: "X", TotalPoints: 10})
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestAssignmentServiceStudentListCarriesStatus(t *testing.T) {
	svc, _, _ := newAssignmentFixture()
	ctx := context.Background()
	due := assignmentNow.Add(24 * time.Hour)
	_, err := svc.Create(ctx, teacherActor, "class-1", AssignmentRequest{Title: "Essay", TotalPoints: 20, DueAt: &due})
	require.NoError(t, err)

	items, err := svc.List(ctx, studentActor, "class-1")
	require.NoError(t, err)
	require.Len(t, items, 1)
	require.NotNil(t, items[0].Status)
	assert.Equal(t, academic.StatusDueSoon, items[0].Status.Key)
	assert.Equal(t, "amber", items[0].Status.Color)

	svc.now = func() time.Time { return assignmentNow.Add(48 * time.Hour) }
	items, err = svc.List(ctx, studentActor, "class-1")
	require.NoError(t, err)
	assert.Equal(t, academic.StatusOverdue, items[0].Status.Key)

	teacherItems, err := svc.List(ctx, teacherActor, "class-1")
	require.NoError(t, err)
	assert.Nil(t, teacherItems[0].Status)
}

func TestAssignmentServiceGetAndDelete(t *testing.T) {
	svc, repo, _ := newAssignmentFixture()
	ctx := context.Background()
	a, err := svc.Create(ctx, teacherActor, "class-1", AssignmentRequest{Title: "Reading", TotalPoints: 5, RequiresSubmission: boolPtr(false)})
	require.NoError(t, err)

	got, err := svc.Get(ctx, studentActor, a.ID)
	require.NoError(t, err)
	require.NotNil(t, got.Submission)
	assert.Equal(t, academic.StatusNoSubmit, got.Status.Key)

	outsider := models.Actor{UserID: "student-9", SchoolID: "school-1", Role: models.RoleStudent}
	_, err = svc.Get(ctx, outsider, a.ID)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	assert.ErrorIs(t, svc.Delete(ctx, studentActor, a.ID), appErrors.ErrForbidden)
	require.NoError(t, svc.Delete(ctx, teacherActor, a.ID))
	assert.Empty(t, repo.assignments)
}

func boolPtr(v bool) *bool { return &v }

func newSubmissionFixture(t *testing.T) (*SubmissionService, *fakeAssignmentRepo, *models.Assignment, *mockUserRepo) {
	t.Helper()
	assignments, repo, _ := newAssignmentFixture()
	a, err := assignments.Create(context.Background(), teacherActor, "class-1", AssignmentRequest{Title: "Lab", TotalPoints: 40})
	require.NoError(t, err)
	audit := newMockUserRepo()
	cache, _ := newRecordingCache()
	svc := NewSubmissionService(repo.subs, repo, repo.classes, audit, cache, nil, nil)
	return svc, repo, a, audit
}

func TestSubmissionServiceSubmitThenGrade(t *testing.T) {
	svc, _, a, audit := newSubmissionFixture(t)
	ctx := context.Background()

	sub, err := svc.Submit(ctx, studentActor, a.ID, SubmitRequest{Attachments: models.Attachments{{Name: "lab.pdf", URL: "https://files.test/lab.pdf", Size: 10, Type: "application/pdf"}}})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionSubmitted, sub.Status)
	require.NotNil(t, sub.SubmittedAt)

	marks := 30.0
	graded, err := svc.Grade(ctx, teacherActor, sub.ID, GradeRequest{Marks: &marks}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, models.SubmissionGraded, graded.Status)
	assert.Equal(t, 75.0, *graded.Percentage)
	assert.Equal(t, 6, *graded.IBGrade)
	require.Len(t, audit.auditLogs, 1)

	_, err = svc.Submit(ctx, studentActor, a.ID, SubmitRequest{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
}

func TestSubmissionServiceGradeBounds(t *testing.T) {
	svc, repo, a, _ := newSubmissionFixture(t)
	ctx := context.Background()
	sub, err := repo.subs.FindForStudent(ctx, a.ID, "student-1")
	require.NoError(t, err)

	over := 41.0
	_, err = svc.Grade(ctx, teacherActor, sub.ID, GradeRequest{Marks: &over}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	negative := -1.0
	_, err = svc.Grade(ctx, teacherActor, sub.ID, GradeRequest{Marks: &negative}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Grade(ctx, teacherActor, sub.ID, GradeRequest{}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	full := 40.0
	_, err = svc.Grade(ctx, studentActor, sub.ID, GradeRequest{Marks: &full}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	graded, err := svc.Grade(ctx, teacherActor, sub.ID, GradeRequest{Marks: &full}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 7, *graded.IBGrade)
}

func TestSubmissionServiceGradeBucketsBeforeRounding(t *testing.T) {
	svc, repo, a, _ := newSubmissionFixture(t)
	ctx := context.Background()
	sub, err := repo.subs.FindForStudent(ctx, a.ID, "student-1")
	require.NoError(t, err)

	marks := 13.5998
	graded, err := svc.Grade(ctx, teacherActor, sub.ID, GradeRequest{Marks: &marks}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, 34.0, *graded.Percentage)
	assert.Equal(t, 1, *graded.IBGrade)
}

func TestSubmissionServiceListForTeacherOnly(t *testing.T) {
	svc, _, a, _ := newSubmissionFixture(t)

	subs, err := svc.List(context.Background(), teacherActor, a.ID)
	require.NoError(t, err)
	assert.Len(t, subs, 1)

	_, err = svc.List(context.Background(), studentActor, a.ID)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}
