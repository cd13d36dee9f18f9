package service

import (
	"bytes"
	"context"
	"encoding/json"
	"io"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/cachekeys"
	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/storage"
)

// PhotoSize is the edge length profile photos are fitted into.
const PhotoSize = 256

type userRepository interface {
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	Update(ctx context.Context, user *models.User) error
	UpdatePhoto(ctx context.Context, id, url string) error
	Delete(ctx context.Context, schoolID, id string) error
	ClassIDs(ctx context.Context, id string) ([]string, error)
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// UpdateUserRequest payload for updating a profile.
type UpdateUserRequest struct {
	FullName      string  `json:"full_name" validate:"required,max=120"`
	GradeLevel    *string `json:"grade_level" validate:"omitempty,max=20"`
	StudentNumber *string `json:"student_number" validate:"omitempty,max=40"`
	Active        *bool   `json:"active"`
}

// UserService serves the employees and students list views and profile edits.
type UserService struct {
	repo      userRepository
	store     storage.Store
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUserService creates an instance of UserService.
func NewUserService(repo userRepository, store storage.Store, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *UserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserService{repo: repo, store: store, cache: cache, validator: newValidator(validate), logger: logger}
}

// List returns a page of the actor's school users. Unfiltered pages are served from the cache.
func (s *UserService) List(ctx context.Context, actor models.Actor, filter models.UserFilter) (*models.UserList, error) {
	if actor.Role == models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students cannot list users")
	}
	filter.SchoolID = actor.SchoolID
	if filter.Page < 1 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 100 {
		filter.PageSize = 20
	}

	load := func(ctx context.Context, out *models.UserList) error {
		users, total, err := s.repo.List(ctx, filter)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
		}
		*out = models.UserList{Items: users, Pagination: models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}}
		return nil
	}

	var list models.UserList
	if filter.Search != "" || filter.Active != nil || filter.SortBy != "" {
		if err := load(ctx, &list); err != nil {
			return nil, err
		}
		return &list, nil
	}
	role := "ALL"
	if filter.Role != nil {
		role = string(*filter.Role)
	}
	key := cachekeys.Users(actor.SchoolID, role, filter.Page, filter.PageSize)
	if _, err := s.cache.Remember(ctx, key, &list, func(ctx context.Context) error { return load(ctx, &list) }); err != nil {
		return nil, err
	}
	return &list, nil
}

// Get returns a user of the actor's school.
func (s *UserService) Get(ctx context.Context, actor models.Actor, id string) (*models.User, error) {
	user, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, notFoundOr(err, "user not found", "failed to load user")
	}
	if user.SchoolID != actor.SchoolID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "user not found")
	}
	return user, nil
}

// Update modifies a profile. Admins edit anyone in their school, others only themselves and
// never their own active flag.
func (s *UserService) Update(ctx context.Context, actor models.Actor, id string, req UpdateUserRequest, meta models.RequestMeta) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid update payload")
	}
	if !actor.IsAdmin() && actor.UserID != id {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot edit another user")
	}
	user, err := s.Get(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	before, _ := json.Marshal(user)

	user.FullName = req.FullName
	user.GradeLevel = req.GradeLevel
	user.StudentNumber = req.StudentNumber
	if req.Active != nil {
		if !actor.IsAdmin() || actor.UserID == id {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "cannot change your own active flag")
		}
		user.Active = *req.Active
	}
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update user")
	}

	after, _ := json.Marshal(user)
	s.audit(ctx, actor, models.AuditActionUserUpdate, user.ID, before, after, meta)
	keys := []string{cachekeys.UsersOfSchool(actor.SchoolID)}
	if user.Role == models.RoleStudent {
		classIDs, err := s.repo.ClassIDs(ctx, user.ID)
		if err != nil {
			s.logger.Warn("failed to load classes for cache refresh", zap.String("user_id", user.ID), zap.Error(err))
		}
		for _, classID := range classIDs {
			keys = append(keys, cachekeys.Roster(classID), cachekeys.Gradebook(classID))
		}
	}
	s.cache.Invalidate(ctx, actor.SchoolID, keys...)
	return user, nil
}

// Delete hard deletes a profile. Admins must be demoted and teachers must hand over or delete
// their classes first. A student's roster rows and submissions cascade.
func (s *UserService) Delete(ctx context.Context, actor models.Actor, id string, meta models.RequestMeta) error {
	if err := requireAdmin(actor); err != nil {
		return err
	}
	if actor.UserID == id {
		return appErrors.Clone(appErrors.ErrConflict, "cannot delete your own account")
	}
	user, err := s.Get(ctx, actor, id)
	if err != nil {
		return err
	}
	if user.Role == models.RoleAdmin {
		return appErrors.Clone(appErrors.ErrConflict, "remove the admin role before deleting this user")
	}
	classIDs, err := s.repo.ClassIDs(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}
	if user.Role == models.RoleTeacher && len(classIDs) > 0 {
		return appErrors.Clone(appErrors.ErrConflict, "reassign or delete this teacher's classes first")
	}
	if err := s.repo.Delete(ctx, actor.SchoolID, id); err != nil {
		return notFoundOr(err, "user not found", "failed to delete user")
	}

	before, _ := json.Marshal(user)
	s.audit(ctx, actor, models.AuditActionUserDelete, id, before, nil, meta)
	keys := []string{cachekeys.UsersOfSchool(actor.SchoolID), cachekeys.ClassesOfSchool(actor.SchoolID)}
	if user.Role == models.RoleStudent {
		keys = append(keys, cachekeys.ClassesForStudent(id))
	} else {
		keys = append(keys, cachekeys.ClassesForTeacher(id))
	}
	for _, classID := range classIDs {
		keys = append(keys, cachekeys.Roster(classID), cachekeys.Gradebook(classID), cachekeys.AssignmentsOfClass(classID))
	}
	s.cache.Invalidate(ctx, actor.SchoolID, keys...)
	return nil
}

// UploadPhoto stores the actor's profile photo as a PNG thumbnail.
func (s *UserService) UploadPhoto(ctx context.Context, actor models.Actor, r io.Reader) (*models.User, error) {
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "storage not configured")
	}
	thumb, err := storage.Thumbnail(r, PhotoSize)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "photo must be a PNG, JPEG or GIF image")
	}
	obj, err := s.store.Put(ctx, storage.UserPhotoKey(actor.UserID), bytes.NewReader(thumb), "image/png")
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store photo")
	}
	if err := s.repo.UpdatePhoto(ctx, actor.UserID, obj.URL); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save photo")
	}
	s.cache.Invalidate(ctx, actor.SchoolID, cachekeys.UsersOfSchool(actor.SchoolID))
	return s.Get(ctx, actor, actor.UserID)
}

func (s *UserService) audit(ctx context.Context, actor models.Actor, action, resourceID string, before, after []byte, meta models.RequestMeta) {
	if err := s.repo.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     action,
		Resource:   "users",
		ResourceID: &resourceID,
		OldValues:  before,
		NewValues:  after,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record user audit log", zap.String("action", action), zap.Error(err))
	}
}
