package service

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/cachekeys"
	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/repository"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/jobs"
	"github.com/noah-isme/classroom-api/pkg/mail"
)

type fakeInviteRepo struct {
	invites   map[string]*models.PendingInvite
	createErr error
	sent      []string
	expired   []string
	lists     int
}

func newFakeInviteRepo() *fakeInviteRepo {
	return &fakeInviteRepo{invites: map[string]*models.PendingInvite{}}
}

func (f *fakeInviteRepo) Create(ctx context.Context, invite *models.PendingInvite) error {
	if f.createErr != nil {
		return f.createErr
	}
	invite.ID = "invite-" + invite.Email
	invite.Status = models.InviteStatusPending
	copy := *invite
	f.invites[invite.ID] = &copy
	return nil
}

func (f *fakeInviteRepo) FindByID(ctx context.Context, schoolID, id string) (*models.PendingInvite, error) {
	inv, ok := f.invites[id]
	if !ok || inv.SchoolID != schoolID {
		return nil, sql.ErrNoRows
	}
	copy := *inv
	return &copy, nil
}

func (f *fakeInviteRepo) List(ctx context.Context, filter models.InviteFilter) ([]models.PendingInvite, error) {
	f.lists++
	var out []models.PendingInvite
	for _, inv := range f.invites {
		if inv.SchoolID == filter.SchoolID && (filter.Status == "" || inv.Status == filter.Status) {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (f *fakeInviteRepo) Delete(ctx context.Context, schoolID, id string) error {
	if _, err := f.FindByID(ctx, schoolID, id); err != nil {
		return err
	}
	delete(f.invites, id)
	return nil
}

func (f *fakeInviteRepo) Renew(ctx context.Context, schoolID, id string, expiresAt time.Time) error {
	inv, ok := f.invites[id]
	if !ok || inv.SchoolID != schoolID {
		return sql.ErrNoRows
	}
	inv.Status = models.InviteStatusPending
	inv.ExpiresAt = expiresAt
	return nil
}

func (f *fakeInviteRepo) MarkSent(ctx context.Context, id string, at time.Time) error {
	f.sent = append(f.sent, id)
	return nil
}

func (f *fakeInviteRepo) ExpireBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	schools := map[string]bool{}
	var out []string
	for _, inv := range f.invites {
		if inv.Status == models.InviteStatusPending && !inv.ExpiresAt.After(cutoff) {
			inv.Status = models.InviteStatusExpired
			f.expired = append(f.expired, inv.ID)
			if !schools[inv.SchoolID] {
				schools[inv.SchoolID] = true
				out = append(out, inv.SchoolID)
			}
		}
	}
	return out, nil
}

type fakeSender struct {
	messages []mail.Message
	err      error
}

func (f *fakeSender) Send(ctx context.Context, msg mail.Message) error {
	if f.err != nil {
		return f.err
	}
	f.messages = append(f.messages, msg)
	return nil
}

type fakeQueue struct {
	jobs []jobs.Job
	err  error
}

func (f *fakeQueue) Enqueue(job jobs.Job) error {
	if f.err != nil {
		return f.err
	}
	f.jobs = append(f.jobs, job)
	return nil
}

var inviteNow = time.Date(2024, 9, 2, 8, 0, 0, 0, time.UTC)

func newInviteFixture() (*InviteService, *fakeInviteRepo, *fakeSender, *recordingCache) {
	repo := newFakeInviteRepo()
	sender := &fakeSender{}
	cache, rec := newRecordingCache()
	svc := NewInviteService(repo, newSchoolFixture(), nil, sender, cache, NewMetricsService(), nil, nil, InviteConfig{TTL: 7 * 24 * time.Hour, AppURL: "https://app.test"})
	svc.now = func() time.Time { return inviteNow }
	return svc, repo, sender, rec
}

func TestInviteServiceCreateSendsInline(t *testing.T) {
	svc, repo, sender, rec := newInviteFixture()

	invite, err := svc.Create(context.Background(), adminActor, CreateInviteRequest{Email: " Kid@School.Test ", Role: models.RoleStudent, FullName: "Kid"}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Equal(t, "kid@school.test", invite.Email)
	assert.Equal(t, inviteNow.Add(7*24*time.Hour), invite.ExpiresAt)
	assert.Equal(t, "school-1", invite.SchoolID)

	require.Len(t, sender.messages, 1)
	assert.Equal(t, "You're invited to Hill High", sender.messages[0].Subject)
	assert.Contains(t, sender.messages[0].Text, "https://app.test/signup?email=kid%40school.test")
	assert.Equal(t, []string{invite.ID}, repo.sent)
	assert.Contains(t, rec.published["school-1"], cachekeys.InvitesOfSchool("school-1"))
}

func TestInviteServiceCreateQueuesAndHandlerDelivers(t *testing.T) {
	svc, repo, sender, _ := newInviteFixture()
	queue := &fakeQueue{}
	svc.UseQueue(queue)

	invite, err := svc.Create(context.Background(), adminActor, CreateInviteRequest{Email: "t@school.test", Role: models.RoleTeacher, FullName: "T"}, models.RequestMeta{})
	require.NoError(t, err)
	assert.Empty(t, sender.messages)
	require.Len(t, queue.jobs, 1)
	assert.Equal(t, JobTypeInviteEmail, queue.jobs[0].Type)

	require.NoError(t, svc.HandleJob(context.Background(), queue.jobs[0]))
	assert.Len(t, sender.messages, 1)
	assert.Equal(t, []string{invite.ID}, repo.sent)

	delete(repo.invites, invite.ID)
	require.NoError(t, svc.HandleJob(context.Background(), queue.jobs[0]))
	assert.Len(t, sender.messages, 1)
}

func TestInviteServiceHandlerReturnsSendErrorForRetry(t *testing.T) {
	svc, repo, sender, _ := newInviteFixture()
	svc.UseQueue(&fakeQueue{})
	invite, err := svc.Create(context.Background(), adminActor, CreateInviteRequest{Email: "t@school.test", Role: models.RoleTeacher, FullName: "T"}, models.RequestMeta{})
	require.NoError(t, err)

	sender.err = errors.New("smtp down")
	err = svc.HandleJob(context.Background(), jobs.Job{Type: JobTypeInviteEmail, Payload: InviteJob{SchoolID: "school-1", InviteID: invite.ID}})
	assert.Error(t, err)
	assert.Empty(t, repo.sent)
}

func TestInviteServiceCreateValidation(t *testing.T) {
	svc, repo, _, _ := newInviteFixture()
	ctx := context.Background()

	_, err := svc.Create(ctx, teacherActor, CreateInviteRequest{Email: "a@b.test", Role: models.RoleStudent, FullName: "A"}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Create(ctx, adminActor, CreateInviteRequest{Email: "a@b.test", Role: models.RoleSuperAdmin, FullName: "A"}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(ctx, adminActor, CreateInviteRequest{Email: "a@b.test", Role: models.RoleTeacher, FullName: "A", ClassIDs: []string{"4c0c2d3e-9f49-4c1c-9a4e-2f8d6b3d1a10"}}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	repo.createErr = repository.ErrDuplicate
	_, err = svc.Create(ctx, adminActor, CreateInviteRequest{Email: "a@b.test", Role: models.RoleTeacher, FullName: "A"}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	repo.createErr = repository.ErrEmailTaken
	_, err = svc.Create(ctx, adminActor, CreateInviteRequest{Email: "a@b.test", Role: models.RoleTeacher, FullName: "A"}, models.RequestMeta{})
	assert.ErrorIs(t, err, appErrors.ErrEmailInUse)
}

func TestInviteServiceSweepAndResend(t *testing.T) {
	svc, repo, sender, rec := newInviteFixture()
	ctx := context.Background()
	invite, err := svc.Create(ctx, adminActor, CreateInviteRequest{Email: "late@school.test", Role: models.RoleTeacher, FullName: "Late"}, models.RequestMeta{})
	require.NoError(t, err)

	svc.now = func() time.Time { return inviteNow.Add(8 * 24 * time.Hour) }
	rec.published = map[string][]string{}
	require.NoError(t, svc.SweepExpired(ctx))
	assert.Equal(t, []string{invite.ID}, repo.expired)
	assert.Equal(t, []string{cachekeys.InvitesOfSchool("school-1")}, rec.published["school-1"])

	expired, err := svc.List(ctx, adminActor, nil, models.InviteStatusExpired)
	require.NoError(t, err)
	require.Len(t, expired, 1)

	renewed, err := svc.Resend(ctx, adminActor, invite.ID)
	require.NoError(t, err)
	assert.Equal(t, models.InviteStatusPending, renewed.Status)
	assert.Equal(t, inviteNow.Add(15*24*time.Hour), renewed.ExpiresAt)
	assert.Len(t, sender.messages, 2)

	_, err = svc.Resend(ctx, adminActor, "missing")
	assert.ErrorIs(t, err, appErrors.ErrNotFound)
}

func TestInviteServiceListCachedAndDelete(t *testing.T) {
	svc, repo, _, _ := newInviteFixture()
	ctx := context.Background()
	invite, err := svc.Create(ctx, adminActor, CreateInviteRequest{Email: "a@b.test", Role: models.RoleTeacher, FullName: "A"}, models.RequestMeta{})
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		list, err := svc.List(ctx, adminActor, nil, models.InviteStatusPending)
		require.NoError(t, err)
		assert.Len(t, list, 1)
	}
	assert.Equal(t, 1, repo.lists)

	require.NoError(t, svc.Delete(ctx, adminActor, invite.ID, models.RequestMeta{}))
	list, err := svc.List(ctx, adminActor, nil, models.InviteStatusPending)
	require.NoError(t, err)
	assert.Empty(t, list)
	assert.Equal(t, 2, repo.lists)
}
