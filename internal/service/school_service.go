package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/cachekeys"
	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/repository"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/storage"
)

type schoolRepository interface {
	FindByID(ctx context.Context, id string) (*models.School, error)
	Update(ctx context.Context, school *models.School) error
	UpdateLogo(ctx context.Context, id, url string) error
	AddAdmin(ctx context.Context, schoolID, userID string) error
	RemoveAdmin(ctx context.Context, schoolID, userID string) error
}

type schoolAuditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UpdateSchoolRequest payload for the school settings page.
type UpdateSchoolRequest struct {
	Name         string  `json:"name" validate:"required,max=160"`
	AccentColor  string  `json:"accent_color" validate:"omitempty,hexcolor"`
	ContactEmail *string `json:"contact_email" validate:"omitempty,email"`
	ContactPhone *string `json:"contact_phone" validate:"omitempty,max=40"`
	Address      *string `json:"address" validate:"omitempty,max=255"`
	Website      *string `json:"website" validate:"omitempty,url"`
}

// SchoolService manages the caller's own school.
type SchoolService struct {
	repo      schoolRepository
	audit     schoolAuditor
	store     storage.Store
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewSchoolService constructs the service.
func NewSchoolService(repo schoolRepository, audit schoolAuditor, store storage.Store, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SchoolService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SchoolService{repo: repo, audit: audit, store: store, cache: cache, validator: newValidator(validate), logger: logger}
}

// Current returns the actor's school.
func (s *SchoolService) Current(ctx context.Context, actor models.Actor) (*models.School, error) {
	var school models.School
	_, err := s.cache.Remember(ctx, cachekeys.School(actor.SchoolID), &school, func(ctx context.Context) error {
		found, err := s.repo.FindByID(ctx, actor.SchoolID)
		if err != nil {
			return notFoundOr(err, "school not found", "failed to load school")
		}
		school = *found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &school, nil
}

// Update edits the settings of the actor's school.
func (s *SchoolService) Update(ctx context.Context, actor models.Actor, req UpdateSchoolRequest, meta models.RequestMeta) (*models.School, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid school payload")
	}
	school, err := s.repo.FindByID(ctx, actor.SchoolID)
	if err != nil {
		return nil, notFoundOr(err, "school not found", "failed to load school")
	}
	before, _ := json.Marshal(school)

	school.Name = req.Name
	if req.AccentColor != "" {
		school.AccentColor = strings.ToLower(req.AccentColor)
	}
	school.ContactEmail = req.ContactEmail
	school.ContactPhone = req.ContactPhone
	school.Address = req.Address
	school.Website = req.Website
	if err := s.repo.Update(ctx, school); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update school")
	}

	after, _ := json.Marshal(school)
	s.recordAudit(ctx, actor, before, after, meta)
	s.cache.Invalidate(ctx, actor.SchoolID, cachekeys.School(actor.SchoolID))
	return school, nil
}

// UploadLogo stores a PNG thumbnail of the uploaded image as the school logo.
func (s *SchoolService) UploadLogo(ctx context.Context, actor models.Actor, r io.Reader) (*models.School, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "storage not configured")
	}
	thumb, err := storage.Thumbnail(r, storage.LogoSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "logo must be a PNG, JPEG or GIF image")
	}
	obj, err := s.store.Put(ctx, storage.SchoolLogoKey(actor.SchoolID), bytes.NewReader(thumb), "image/png")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store logo")
	}
	if err := s.repo.UpdateLogo(ctx, actor.SchoolID, obj.URL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save logo")
	}
	s.cache.Invalidate(ctx, actor.SchoolID, cachekeys.School(actor.SchoolID))
	return s.Current(ctx, actor)
}

// AddAdmin promotes a teacher or admin profile of the school onto the admin list.
func (s *SchoolService) AddAdmin(ctx context.Context, actor models.Actor, userID string) (*models.School, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.repo.AddAdmin(ctx, actor.SchoolID, userID); err != nil {
		return nil, notFoundOr(err, "teacher not found in this school", "failed to add admin")
	}
	s.cache.Invalidate(ctx, actor.SchoolID, cachekeys.School(actor.SchoolID), cachekeys.UsersOfSchool(actor.SchoolID))
	return s.Current(ctx, actor)
}

// RemoveAdmin demotes userID. The last admin of a school cannot be removed.
func (s *SchoolService) RemoveAdmin(ctx context.Context, actor models.Actor, userID string) (*models.School, error) {
	if err := requireAdmin(actor); err != nil {
		return nil, err
	}
	if err := s.repo.RemoveAdmin(ctx, actor.SchoolID, userID); err != nil {
		if errors.Is(err, repository.ErrLastAdmin) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a school must keep at least one admin")
		}
		return nil, notFoundOr(err, "admin not found", "failed to remove admin")
	}
	s.cache.Invalidate(ctx, actor.SchoolID, cachekeys.School(actor.SchoolID), cachekeys.UsersOfSchool(actor.SchoolID))
	return s.Current(ctx, actor)
}

func (s *SchoolService) recordAudit(ctx context.Context, actor models.Actor, before, after []byte, meta models.RequestMeta) {
	if s.audit == nil {
		return
	}
	schoolID := actor.SchoolID
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionSchoolUpdate,
		Resource:   "schools",
		ResourceID: &schoolID,
		OldValues:  before,
		NewValues:  after,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record school audit log", zap.Error(err))
	}
}
