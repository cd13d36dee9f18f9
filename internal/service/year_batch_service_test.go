package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/repository"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

type fakeYearBatchRepo struct {
	batches map[string]*models.YearBatch
}

func (f *fakeYearBatchRepo) List(ctx context.Context, schoolID string) ([]models.YearBatch, error) {
	out := []models.YearBatch{}
	for _, b := range f.batches {
		if b.SchoolID == schoolID {
			out = append(out, *b)
		}
	}
	return out, nil
}

func (f *fakeYearBatchRepo) FindByID(ctx context.Context, schoolID, id string) (*models.YearBatch, error) {
	b, ok := f.batches[id]
	if !ok || b.SchoolID != schoolID {
		return nil, sql.ErrNoRows
	}
	copy := *b
	return &copy, nil
}

func (f *fakeYearBatchRepo) Create(ctx context.Context, batch *models.YearBatch) error {
	for _, b := range f.batches {
		if b.SchoolID == batch.SchoolID && b.Name == batch.Name {
			return repository.ErrDuplicate
		}
	}
	batch.ID = "batch-" + batch.Name
	copy := *batch
	f.batches[batch.ID] = &copy
	return nil
}

func (f *fakeYearBatchRepo) Update(ctx context.Context, batch *models.YearBatch) error {
	copy := *batch
	f.batches[batch.ID] = &copy
	return nil
}

func (f *fakeYearBatchRepo) Delete(ctx context.Context, schoolID, id string) error {
	if _, err := f.FindByID(ctx, schoolID, id); err != nil {
		return err
	}
	delete(f.batches, id)
	return nil
}

func intPtr(v int) *int { return &v }

func TestYearBatchServiceLabelsCurrentYear(t *testing.T) {
	repo := &fakeYearBatchRepo{batches: map[string]*models.YearBatch{}}
	cache, _ := newRecordingCache()
	svc := NewYearBatchService(repo, cache, nil, nil)
	svc.now = func() time.Time { return time.Date(2024, time.October, 1, 0, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	batch, err := svc.Create(ctx, adminActor, YearBatchRequest{Name: " Northern ", StartMonth: intPtr(7), EndMonth: intPtr(5)})
	require.NoError(t, err)
	assert.Equal(t, "Northern", batch.Name)
	require.NotNil(t, batch.Current)
	assert.Equal(t, "2024-2025", batch.Current.Label)

	_, err = svc.Create(ctx, adminActor, YearBatchRequest{Name: "Calendar", StartMonth: intPtr(0), EndMonth: intPtr(11)})
	require.NoError(t, err)

	list, err := svc.List(ctx, teacherActor)
	require.NoError(t, err)
	require.Len(t, list, 2)
	for _, b := range list {
		require.NotNil(t, b.Current)
		if b.Name == "Calendar" {
			assert.Equal(t, "2024", b.Current.Label)
		}
	}
}

func TestYearBatchServiceValidation(t *testing.T) {
	repo := &fakeYearBatchRepo{batches: map[string]*models.YearBatch{}}
	cache, _ := newRecordingCache()
	svc := NewYearBatchService(repo, cache, nil, nil)
	ctx := context.Background()

	_, err := svc.Create(ctx, teacherActor, YearBatchRequest{Name: "X", StartMonth: intPtr(0), EndMonth: intPtr(1)})
	assert.ErrorIs(t, err, appErrors.ErrForbidden)

	_, err = svc.Create(ctx, adminActor, YearBatchRequest{Name: "X", StartMonth: intPtr(12), EndMonth: intPtr(1)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(ctx, adminActor, YearBatchRequest{Name: "X", EndMonth: intPtr(1)})
	assert.ErrorIs(t, err, appErrors.ErrValidation)

	_, err = svc.Create(ctx, adminActor, YearBatchRequest{Name: "X", StartMonth: intPtr(0), EndMonth: intPtr(1)})
	require.NoError(t, err)
	_, err = svc.Create(ctx, adminActor, YearBatchRequest{Name: "X", StartMonth: intPtr(0), EndMonth: intPtr(1)})
	assert.ErrorIs(t, err, appErrors.ErrConflict)

	assert.ErrorIs(t, svc.Delete(ctx, adminActor, "missing"), appErrors.ErrNotFound)
	require.NoError(t, svc.Delete(ctx, adminActor, "batch-X"))
}
