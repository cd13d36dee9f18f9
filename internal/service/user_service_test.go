package service

import (
	"bytes"
	"context"
	"database/sql"
	"image"
	"image/color"
	"image/png"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/cachekeys"
	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/storage"
)

type mockUserRepo struct {
	users     map[string]*models.User
	listCalls int
	lastList  models.UserFilter
	deleted   []string
	auditLogs []*models.AuditLog
	classes   map[string][]string
}

func newMockUserRepo(users ...models.User) *mockUserRepo {
	m := &mockUserRepo{users: make(map[string]*models.User)}
	for i := range users {
		u := users[i]
		m.users[u.ID] = &u
	}
	return m
}

func (m *mockUserRepo) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	m.listCalls++
	m.lastList = filter
	var users []models.User
	for _, u := range m.users {
		if u.SchoolID == filter.SchoolID {
			users = append(users, *u)
		}
	}
	return users, len(users), nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if user, ok := m.users[id]; ok {
		copy := *user
		return &copy, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	copy := *user
	m.users[user.ID] = &copy
	return nil
}

func (m *mockUserRepo) UpdatePhoto(ctx context.Context, id, url string) error {
	if u, ok := m.users[id]; ok {
		u.PhotoURL = &url
		return nil
	}
	return sql.ErrNoRows
}

func (m *mockUserRepo) Delete(ctx context.Context, schoolID, id string) error {
	if u, ok := m.users[id]; !ok || u.SchoolID != schoolID {
		return sql.ErrNoRows
	}
	delete(m.users, id)
	m.deleted = append(m.deleted, id)
	return nil
}

func (m *mockUserRepo) ClassIDs(ctx context.Context, id string) ([]string, error) {
	return m.classes[id], nil
}

func (m *mockUserRepo) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.auditLogs = append(m.auditLogs, log)
	return nil
}

type memoryStore struct {
	objects map[string][]byte
}

func newMemoryStore() *memoryStore {
	return &memoryStore{objects: make(map[string][]byte)}
}

func (s *memoryStore) Put(_ context.Context, key string, r io.Reader, contentType string) (*storage.Object, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	s.objects[key] = data
	return &storage.Object{Key: key, URL: s.URL(key), Size: int64(len(data)), Type: contentType}, nil
}

func (s *memoryStore) Open(_ context.Context, key string) (io.ReadCloser, error) {
	data, ok := s.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

func (s *memoryStore) Delete(_ context.Context, key string) error {
	delete(s.objects, key)
	return nil
}

func (s *memoryStore) URL(key string) string { return "https://files.test/" + key }

func pngFixture(t *testing.T, w, h int) *bytes.Buffer {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	img.Set(0, 0, color.RGBA{R: 255, A: 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return &buf
}

var (
	adminActor   = models.Actor{UserID: "admin-1", SchoolID: "school-1", Role: models.RoleAdmin}
	teacherActor = models.Actor{UserID: "teacher-1", SchoolID: "school-1", Role: models.RoleTeacher}
	studentActor = models.Actor{UserID: "student-1", SchoolID: "school-1", Role: models.RoleStudent}
)

func schoolUsers() []models.User {
	return []models.User{
		{ID: "admin-1", SchoolID: "school-1", Role: models.RoleAdmin, FullName: "Ada", Active: true},
		{ID: "teacher-1", SchoolID: "school-1", Role: models.RoleTeacher, FullName: "Tom", Active: true},
		{ID: "student-1", SchoolID: "school-1", Role: models.RoleStudent, FullName: "Sue", Active: true},
		{ID: "outsider", SchoolID: "school-2", Role: models.RoleTeacher, FullName: "Out", Active: true},
	}
}

func TestUserServiceListCachesUnfilteredPages(t *testing.T) {
	repo := newMockUserRepo(schoolUsers()...)
	cache, _ := newRecordingCache()
	svc := NewUserService(repo, nil, cache, nil, nil)

	first, err := svc.List(context.Background(), teacherActor, models.UserFilter{SchoolID: "school-2"})
	require.NoError(t, err)
	assert.Len(t, first.Items, 3)
	assert.Equal(t, "school-1", repo.lastList.SchoolID)
	assert.Equal(t, 20, first.Pagination.PageSize)

	_, err = svc.List(context.Background(), teacherActor, models.UserFilter{})
	require.NoError(t, err)
	assert.Equal(t, 1, repo.listCalls)

	_, err = svc.List(context.Background(), teacherActor, models.UserFilter{Search: "su"})
	require.NoError(t, err)
	assert.Equal(t, 2, repo.listCalls)
}

func TestUserServiceListForbiddenForStudents(t *testing.T) {
	cache, _ := newRecordingCache()
	svc := NewUserService(newMockUserRepo(), nil, cache, nil, nil)

	_, err := svc.List(context.Background(), studentActor, models.UserFilter{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestUserServiceGetHidesOtherSchools(t *testing.T) {
	cache, _ := newRecordingCache()
	svc := NewUserService(newMockUserRepo(schoolUsers()...), nil, cache, nil, nil)

	_, err := svc.Get(context.Background(), adminActor, "outsider")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestUserServiceUpdateInvalidatesUsers(t *testing.T) {
	repo := newMockUserRepo(schoolUsers()...)
	cache, rec := newRecordingCache()
	svc := NewUserService(repo, nil, cache, nil, nil)
	repo.classes = map[string][]string{"student-1": {"class-1"}}

	inactive := false
	user, err := svc.Update(context.Background(), adminActor, "student-1", UpdateUserRequest{FullName: "Susan", Active: &inactive}, models.RequestMeta{IP: "127.0.0.1"})
	require.NoError(t, err)
	assert.Equal(t, "Susan", user.FullName)
	assert.False(t, user.Active)
	assert.Contains(t, rec.published["school-1"], cachekeys.UsersOfSchool("school-1"))
	assert.Contains(t, rec.published["school-1"], cachekeys.Roster("class-1"))
	assert.Contains(t, rec.published["school-1"], cachekeys.Gradebook("class-1"))
	require.Len(t, repo.auditLogs, 1)
	assert.Equal(t, models.AuditActionUserUpdate, repo.auditLogs[0].Action)
}

func TestUserServiceUpdateRules(t *testing.T) {
	cache, _ := newRecordingCache()
	svc := NewUserService(newMockUserRepo(schoolUsers()...), nil, cache, nil, nil)

	_, err := svc.Update(context.Background(), teacherActor, "student-1", UpdateUserRequest{FullName: "X"}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	inactive := false
	_, err = svc.Update(context.Background(), adminActor, "admin-1", UpdateUserRequest{FullName: "Ada", Active: &inactive}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Update(context.Background(), studentActor, "student-1", UpdateUserRequest{}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestUserServiceDelete(t *testing.T) {
	repo := newMockUserRepo(schoolUsers()...)
	cache, rec := newRecordingCache()
	svc := NewUserService(repo, nil, cache, nil, nil)

	repo.classes = map[string][]string{"student-1": {"class-1"}, "teacher-1": {"class-1"}}

	require.NoError(t, svc.Delete(context.Background(), adminActor, "student-1", models.RequestMeta{}))
	assert.Equal(t, []string{"student-1"}, repo.deleted)
	published := rec.published["school-1"]
	assert.Contains(t, published, cachekeys.ClassesForStudent("student-1"))
	assert.Contains(t, published, cachekeys.Roster("class-1"))
	assert.Contains(t, published, cachekeys.Gradebook("class-1"))
	assert.Contains(t, published, cachekeys.AssignmentsOfClass("class-1"))

	err := svc.Delete(context.Background(), adminActor, "teacher-1", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)
	assert.Equal(t, []string{"student-1"}, repo.deleted)

	err = svc.Delete(context.Background(), adminActor, "admin-1", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	err = svc.Delete(context.Background(), teacherActor, "student-1", models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)
}

func TestUserServiceUploadPhoto(t *testing.T) {
	repo := newMockUserRepo(schoolUsers()...)
	store := newMemoryStore()
	cache, _ := newRecordingCache()
	svc := NewUserService(repo, store, cache, nil, nil)

	user, err := svc.UploadPhoto(context.Background(), studentActor, pngFixture(t, 600, 300))
	require.NoError(t, err)
	require.NotNil(t, user.PhotoURL)
	assert.Equal(t, store.URL(storage.UserPhotoKey("student-1")), *user.PhotoURL)

	img, err := png.Decode(bytes.NewReader(store.objects[storage.UserPhotoKey("student-1")]))
	require.NoError(t, err)
	assert.Equal(t, PhotoSize, img.Bounds().Dx())

	_, err = svc.UploadPhoto(context.Background(), studentActor, bytes.NewBufferString("not an image"))
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}
