package service

import (
	"context"
	"database/sql"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/cachekeys"
	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/repository"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/storage"
)

type fakeSchoolRepo struct {
	school *models.School
	finds  int
}

func (f *fakeSchoolRepo) FindByID(ctx context.Context, id string) (*models.School, error) {
	f.finds++
	if f.school == nil || f.school.ID != id {
		return nil, sql.ErrNoRows
	}
	copy := *f.school
	return &copy, nil
}

func (f *fakeSchoolRepo) Update(ctx context.Context, school *models.School) error {
	copy := *school
	f.school = &copy
	return nil
}

func (f *fakeSchoolRepo) UpdateLogo(ctx context.Context, id, url string) error {
	f.school.LogoURL = &url
	return nil
}

func (f *fakeSchoolRepo) AddAdmin(ctx context.Context, schoolID, userID string) error {
	if userID == "student-1" {
		return sql.ErrNoRows
	}
	if !f.school.HasAdmin(userID) {
		f.school.AdminIDs = append(f.school.AdminIDs, userID)
	}
	return nil
}

func (f *fakeSchoolRepo) RemoveAdmin(ctx context.Context, schoolID, userID string) error {
	if !f.school.HasAdmin(userID) {
		return sql.ErrNoRows
	}
	if len(f.school.AdminIDs) == 1 {
		return repository.ErrLastAdmin
	}
	var kept []string
	for _, id := range f.school.AdminIDs {
		if id != userID {
			kept = append(kept, id)
		}
	}
	f.school.AdminIDs = kept
	return nil
}

func newSchoolFixture() *fakeSchoolRepo {
	return &fakeSchoolRepo{school: &models.School{ID: "school-1", Name: "Hill High", AccentColor: "#2563eb", AdminIDs: []string{"admin-1"}}}
}

func TestSchoolServiceCurrentIsCached(t *testing.T) {
	repo := newSchoolFixture()
	cache, _ := newRecordingCache()
	svc := NewSchoolService(repo, nil, nil, cache, nil, nil)

	for i := 0; i < 2; i++ {
		school, err := svc.Current(context.Background(), teacherActor)
		require.NoError(t, err)
		assert.Equal(t, "Hill High", school.Name)
	}
	assert.Equal(t, 1, repo.finds)
}

func TestSchoolServiceUpdate(t *testing.T) {
	repo := newSchoolFixture()
	cache, rec := newRecordingCache()
	users := newMockUserRepo()
	svc := NewSchoolService(repo, users, nil, cache, nil, nil)

	_, err := svc.Update(context.Background(), teacherActor, UpdateSchoolRequest{Name: "X"}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Update(context.Background(), adminActor, UpdateSchoolRequest{Name: "Hill", AccentColor: "blue"}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	school, err := svc.Update(context.Background(), adminActor, UpdateSchoolRequest{Name: "  Hill Academy ", AccentColor: "#FF0000"}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "Hill Academy", school.Name)
	assert.Equal(t, "#ff0000", school.AccentColor)
	assert.Contains(t, rec.published["school-1"], cachekeys.School("school-1"))
	require.Len(t, users.auditLogs, 1)
	assert.Equal(t, models.AuditActionSchoolUpdate, users.auditLogs[0].Action)
}

func TestSchoolServiceUploadLogo(t *testing.T) {
	repo := newSchoolFixture()
	store := newMemoryStore()
	cache, _ := newRecordingCache()
	svc := NewSchoolService(repo, nil, store, cache, nil, nil)

	school, err := svc.UploadLogo(context.Background(), adminActor, pngFixture(t, 1024, 1024))
	require.NoError(t, err)
	require.NotNil(t, school.LogoURL)
	assert.Equal(t, store.URL(storage.SchoolLogoKey("school-1")), *school.LogoURL)
}

func TestSchoolServiceAdmins(t *testing.T) {
	repo := newSchoolFixture()
	cache, _ := newRecordingCache()
	svc := NewSchoolService(repo, nil, nil, cache, nil, nil)

	_, err := svc.RemoveAdmin(context.Background(), adminActor, "admin-1")
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	_, err = svc.AddAdmin(context.Background(), adminActor, "student-1")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)

	school, err := svc.AddAdmin(context.Background(), adminActor, "teacher-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"admin-1", "teacher-1"}, []string(school.AdminIDs))

	school, err = svc.RemoveAdmin(context.Background(), adminActor, "admin-1")
	require.NoError(t, err)
	assert.Equal(t, []string{"teacher-1"}, []string(school.AdminIDs))
}
