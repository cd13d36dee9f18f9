package service

import (
	"context"
	"io"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/repository"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/storage"
)

type fakeGradebookRepo struct {
	cells  []models.GradebookCell
	grades []repository.StudentClassGrade
	calls  int
}

func (f *fakeGradebookRepo) Cells(ctx context.Context, classID string) ([]models.GradebookCell, error) {
	f.calls++
	return f.cells, nil
}

func (f *fakeGradebookRepo) StudentGrades(ctx context.Context, schoolID, studentID string) ([]repository.StudentClassGrade, error) {
	return f.grades, nil
}

type assignmentListStub []models.AssignmentSummary

func (s assignmentListStub) ListByClass(ctx context.Context, classID string) ([]models.AssignmentSummary, error) {
	return s, nil
}

func floatPtr(v float64) *float64 { return &v }

func newGradebookFixture(t *testing.T) (*GradebookService, *fakeGradebookRepo) {
	t.Helper()
	classes := classFixture()
	classes.enroll("class-1", "student-2")
	assignments := assignmentListStub{
		{Assignment: models.Assignment{ID: "a-1", ClassID: "class-1", Title: "Cells", TotalPoints: 20}},
		{Assignment: models.Assignment{ID: "a-2", ClassID: "class-1", Title: "Osmosis", TotalPoints: 30}},
	}
	repo := &fakeGradebookRepo{cells: []models.GradebookCell{
		{AssignmentID: "a-1", StudentID: "student-1", Status: models.SubmissionGraded, Marks: floatPtr(18)},
		{AssignmentID: "a-2", StudentID: "student-1", Status: models.SubmissionGraded, Marks: floatPtr(24)},
		{AssignmentID: "a-1", StudentID: "student-2", Status: models.SubmissionSubmitted},
	}}

	store, err := storage.NewLocalStore(t.TempDir(), "/files")
	require.NoError(t, err)
	exports := NewExportService(store, storage.NewSignedURLSigner("secret", time.Hour), ExportConfig{APIPrefix: "/api/v1"}, zap.NewNop())
	cache, _ := newRecordingCache()
	return NewGradebookService(repo, classes, assignments, exports, cache, nil), repo
}

func TestGradebookServiceClassMatrix(t *testing.T) {
	svc, repo := newGradebookFixture(t)
	ctx := context.Background()

	book, err := svc.Class(ctx, teacherActor, "class-1")
	require.NoError(t, err)
	require.Len(t, book.Assignments, 2)
	require.Len(t, book.Rows, 2)

	first := book.Rows[0]
	assert.Equal(t, "student-1", first.StudentID)
	assert.Equal(t, 42.0, first.Earned)
	assert.Equal(t, 50.0, first.Possible)
	require.NotNil(t, first.Percentage)
	assert.Equal(t, 84.0, *first.Percentage)
	require.NotNil(t, first.IBGrade)
	assert.Equal(t, 7, *first.IBGrade)
	assert.Equal(t, "B", first.Letter)

	second := book.Rows[1]
	require.Len(t, second.Cells, 2)
	assert.Equal(t, models.SubmissionSubmitted, second.Cells[0].Status)
	assert.Equal(t, models.SubmissionAssigned, second.Cells[1].Status)
	assert.Nil(t, second.Percentage)

	_, err = svc.Class(ctx, teacherActor, "class-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.calls)
}

func TestGradebookServiceClassRequiresTeacher(t *testing.T) {
	svc, _ := newGradebookFixture(t)

	_, err := svc.Class(context.Background(), studentActor, "class-1")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Class(context.Background(), teacherActor, "class-2")
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestGradebookServiceMyGrades(t *testing.T) {
	svc, repo := newGradebookFixture(t)
	repo.grades = []repository.StudentClassGrade{
		{ClassID: "class-1", ClassName: "Biology", Status: models.SubmissionGraded, Marks: floatPtr(9), TotalPoints: 10},
		{ClassID: "class-1", ClassName: "Biology", Status: models.SubmissionAssigned, TotalPoints: 10},
		{ClassID: "class-2", ClassName: "History", Status: models.SubmissionSubmitted, TotalPoints: 5},
	}

	summaries, err := svc.MyGrades(context.Background(), studentActor)
	require.NoError(t, err)
	require.Len(t, summaries, 2)
	assert.Equal(t, 1, summaries[0].Graded)
	assert.Equal(t, 2, summaries[0].Total)
	require.NotNil(t, summaries[0].Percentage)
	assert.Equal(t, 90.0, *summaries[0].Percentage)
	assert.Equal(t, "A", summaries[0].Letter)
	assert.Nil(t, summaries[1].Percentage)

	_, err = svc.MyGrades(context.Background(), teacherActor)
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestGradebookServiceExportRoundTrip(t *testing.T) {
	svc, _ := newGradebookFixture(t)
	ctx := context.Background()

	result, err := svc.Export(ctx, teacherActor, "class-1", "csv")
	require.NoError(t, err)
	assert.Equal(t, "csv", result.Format)
	assert.True(t, strings.HasPrefix(result.URL, "/api/v1/exports/download?token="))

	link, err := url.Parse(result.URL)
	require.NoError(t, err)
	key, rc, err := svc.exports.Open(ctx, link.Query().Get("token"))
	require.NoError(t, err)
	defer rc.Close()
	assert.True(t, strings.HasPrefix(key, "gradebooks/class-1/"))

	body, err := io.ReadAll(rc)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Cells (/20)")
	assert.Contains(t, string(body), "84%")
}

func TestGradebookServiceExportRejectsUnknownFormat(t *testing.T) {
	svc, _ := newGradebookFixture(t)
	_, err := svc.Export(context.Background(), teacherActor, "class-1", "xlsx")
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestExportServiceOpenRejectsBadToken(t *testing.T) {
	svc, _ := newGradebookFixture(t)
	_, _, err := svc.exports.Open(context.Background(), "garbage")
	assert.ErrorIs(t, err, appErrors.ErrUnauthorized)
}
