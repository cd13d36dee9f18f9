package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/cachekeys"
	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/repository"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

type yearBatchRepository interface {
	List(ctx context.Context, schoolID string) ([]models.YearBatch, error)
	FindByID(ctx context.Context, schoolID, id string) (*models.YearBatch, error)
	Create(ctx context.Context, batch *models.YearBatch) error
	Update(ctx context.Context, batch *models.YearBatch) error
	Delete(ctx context.Context, schoolID, id string) error
}

// YearBatchRequest names an academic year by its 0-based start and end months.
type YearBatchRequest struct {
	Name       string `json:"name" validate:"required,max=80"`
	StartMonth *int   `json:"start_month" validate:"required,min=0,max=11"`
	EndMonth   *int   `json:"end_month" validate:"required,min=0,max=11"`
}

// YearBatchService manages a school's academic years.
type YearBatchService struct {
	repo      yearBatchRepository
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	now       func() time.Time
}

// NewYearBatchService constructs the service.
func NewYearBatchService(repo yearBatchRepository, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *YearBatchService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &YearBatchService{repo: repo, cache: cache, validator: newValidator(validate), logger: logger, now: time.Now}
}

// List returns the school's year batches labelled with the school year they currently cover.
func (s *YearBatchService) List(ctx context.Context, actor models.Actor) ([]models.YearBatch, error) {
	batches := []models.YearBatch{}
	_, err := s.cache.Remember(ctx, cachekeys.YearBatches(actor.SchoolID), &batches, func(ctx context.Context) error {
		found, err := s.repo.List(ctx, actor.SchoolID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list year batches")
		}
		batches = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	now := s.now()
	for i := range batches {
		batches[i].CurrentLabel(now)
	}
	return batches, nil
}

// Get returns one year batch.
func (s *YearBatchService) Get(ctx context.Context, actor models.Actor, id string) (*models.YearBatch, error) {
	batch, err := s.repo.FindByID(ctx, actor.SchoolID, id)
	if err != nil {
		return nil, notFoundOr(err, "year batch not found", "failed to load year batch")
	}
	batch.CurrentLabel(s.now())
	return batch, nil
}

// Create adds a year batch.
func (s *YearBatchService) Create(ctx context.Context, actor models.Actor, req YearBatchRequest) (*models.YearBatch, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	batch := &models.YearBatch{SchoolID: actor.SchoolID, Name: req.Name, StartMonth: *req.StartMonth, EndMonth: *req.EndMonth}
	if err := s.repo.Create(ctx, batch); err != nil {
		return nil, s.writeError(err, "failed to create year batch")
	}
	batch.CurrentLabel(s.now())
	s.cache.Invalidate(ctx, actor.SchoolID, cachekeys.YearBatches(actor.SchoolID))
	return batch, nil
}

// Update edits a year batch.
func (s *YearBatchService) Update(ctx context.Context, actor models.Actor, id string, req YearBatchRequest) (*models.YearBatch, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	batch, err := s.repo.FindByID(ctx, actor.SchoolID, id)
	if err != nil {
		return nil, notFoundOr(err, "year batch not found", "failed to load year batch")
	}
	batch.Name = req.Name
	batch.StartMonth = *req.StartMonth
	batch.EndMonth = *req.EndMonth
	if err := s.repo.Update(ctx, batch); err != nil {
		return nil, s.writeError(err, "failed to update year batch")
	}
	batch.CurrentLabel(s.now())
	s.cache.Invalidate(ctx, actor.SchoolID, cachekeys.YearBatches(actor.SchoolID))
	return batch, nil
}

// Delete removes a year batch. Classes keep existing without a batch.
func (s *YearBatchService) Delete(ctx context.Context, actor models.Actor, id string) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, actor.SchoolID, id); err != nil {
		return notFoundOr(err, "year batch not found", "failed to delete year batch")
	}
	s.cache.Invalidate(ctx, actor.SchoolID, cachekeys.YearBatches(actor.SchoolID), cachekeys.ClassesOfSchool(actor.SchoolID))
	return nil
}

func (s *YearBatchService) validate(req *YearBatchRequest) error {
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "start and end months must be between 0 and 11")
	}
	return nil
}

func (s *YearBatchService) writeError(err error, message string) error {
	if errors.Is(err, repository.ErrDuplicate) {
		return appErrors.Clone(appErrors.ErrConflict, "a year batch with this name already exists")
	}
	return notFoundOr(err, "year batch not found", message)
}
