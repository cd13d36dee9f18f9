package service

import (
	"context"
	"database/sql"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

type fakePostRepo struct {
	posts []*models.Post
	lists int
}

func (f *fakePostRepo) Create(ctx context.Context, post *models.Post) error {
	post.ID = "post-" + string(rune('a'+len(f.posts)))
	copy := *post
	f.posts = append([]*models.Post{&copy}, f.posts...)
	return nil
}

func (f *fakePostRepo) FindByID(ctx context.Context, id string) (*models.Post, error) {
	for _, p := range f.posts {
		if p.ID == id {
			copy := *p
			return &copy, nil
		}
	}
	return nil, sql.ErrNoRows
}

func (f *fakePostRepo) ListByClass(ctx context.Context, classID string) ([]models.Post, error) {
	f.lists++
	out := []models.Post{}
	for _, p := range f.posts {
		if p.ClassID == classID {
			out = append(out, *p)
		}
	}
	return out, nil
}

func (f *fakePostRepo) Update(ctx context.Context, post *models.Post) error {
	for i, p := range f.posts {
		if p.ID == post.ID {
			copy := *post
			f.posts[i] = &copy
			return nil
		}
	}
	return sql.ErrNoRows
}

func (f *fakePostRepo) Delete(ctx context.Context, id string) error {
	for i, p := range f.posts {
		if p.ID == id {
			f.posts = append(f.posts[:i], f.posts[i+1:]...)
			return nil
		}
	}
	return sql.ErrNoRows
}

func newPostFixture() (*PostService, *fakePostRepo) {
	classes := classFixture()
	repo := &fakePostRepo{}
	cache, _ := newRecordingCache()
	return NewPostService(repo, classes, newFakeAssignmentRepo(classes), cache, nil, nil), repo
}

func TestPostServiceStreamNewestFirstWithExcerpt(t *testing.T) {
	svc, repo := newPostFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, teacherActor, "class-1", PostRequest{Type: models.PostAnnouncement, Body: "Welcome"})
	require.NoError(t, err)
	long := strings.Repeat("x", 300)
	second, err := svc.Create(ctx, teacherActor, "class-1", PostRequest{Type: models.PostMaterial, Title: "Notes", Body: long})
	require.NoError(t, err)
	assert.Len(t, []rune(second.Excerpt), ExcerptLength+2)

	posts, err := svc.List(ctx, studentActor, "class-1")
	require.NoError(t, err)
	require.Len(t, posts, 2)
	assert.Equal(t, second.ID, posts[0].ID)
	assert.Equal(t, "Welcome", posts[1].Excerpt)

	_, err = svc.List(ctx, studentActor, "class-1")
	require.NoError(t, err)
	assert.Equal(t, 1, repo.lists)
}

func TestPostServiceCreateRules(t *testing.T) {
	svc, _ := newPostFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, studentActor, "class-1", PostRequest{Type: models.PostAnnouncement, Body: "hi"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Create(ctx, teacherActor, "class-1", PostRequest{Type: models.PostAnnouncement, Body: "   "})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	missing := "8d4f6c1e-2a3b-4c5d-9e8f-7a6b5c4d3e2f"
	_, err = svc.Create(ctx, teacherActor, "class-1", PostRequest{Type: models.PostAssignment, Body: "hw", AssignmentID: &missing})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(ctx, teacherActor, "class-1", PostRequest{Type: "POLL", Body: "?"})
	assert.ErrorIs(t, err, appErrors.ErrValidation)
}

func TestPostServiceEditPermissions(t *testing.T) {
	svc, repo := newPostFixture()
	ctx := context.Background()
	post, err := svc.Create(ctx, teacherActor, "class-1", PostRequest{Type: models.PostAnnouncement, Body: "Original"})
	require.NoError(t, err)

	_, err = svc.Update(ctx, studentActor, post.ID, PostRequest{Body: "hacked"})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	updated, err := svc.Update(ctx, adminActor, post.ID, PostRequest{Type: models.PostMaterial, Body: "Edited"})
	require.NoError(t, err)
	assert.Equal(t, "Edited", updated.Body)
	assert.Equal(t, models.PostAnnouncement, updated.Type)

	require.NoError(t, svc.Delete(ctx, teacherActor, post.ID))
	assert.Empty(t, repo.posts)
	assert.ErrorIs(t, svc.Delete(ctx, teacherActor, post.ID), appErrors.ErrNotFound)
}
