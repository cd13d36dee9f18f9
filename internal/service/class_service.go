package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/cachekeys"
	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/storage"
)

const (
	defaultClassColor = "#2563eb"
	defaultClassIcon  = "book"
)

type classRepository interface {
	classAccessRepository
	List(ctx context.Context, filter models.ClassFilter) ([]models.Class, error)
	Create(ctx context.Context, class *models.Class) error
	Update(ctx context.Context, class *models.Class) error
	SetArchived(ctx context.Context, schoolID, id string, archived bool) error
	Delete(ctx context.Context, schoolID, id string) ([]string, error)
	Roster(ctx context.Context, classID string) ([]models.RosterEntry, error)
	AddStudents(ctx context.Context, schoolID, classID string, studentIDs []string) ([]string, error)
	RemoveStudent(ctx context.Context, classID, studentID string) error
	StudentIDs(ctx context.Context, classID string) ([]string, error)
}

type userFinder interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
}

// ClassRequest is the payload for creating or editing a class.
type ClassRequest struct {
	Name        string  `json:"name" validate:"required,max=120"`
	Subject     string  `json:"subject" validate:"max=120"`
	Section     string  `json:"section" validate:"max=60"`
	Color       string  `json:"color" validate:"omitempty,hexcolor"`
	Icon        string  `json:"icon" validate:"max=40"`
	BannerURL   *string `json:"banner_url" validate:"omitempty,url"`
	YearBatchID *string `json:"year_batch_id" validate:"omitempty,uuid"`
	TeacherID   string  `json:"teacher_id" validate:"omitempty,uuid"`
}

// EnrollRequest adds students to a roster.
type EnrollRequest struct {
	StudentIDs []string `json:"student_ids" validate:"required,min=1,dive,uuid"`
}

// ClassService manages classes and their rosters.
type ClassService struct {
	repo      classRepository
	users     userFinder
	store     storage.Store
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
}

// NewClassService constructs the service.
func NewClassService(repo classRepository, users userFinder, store storage.Store, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *ClassService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ClassService{repo: repo, users: users, store: store, cache: cache, validator: newValidator(validate), logger: logger}
}

// List returns the classes of the actor: rostered classes for students, taught classes for
// teachers and every class of the school for admins.
func (s *ClassService) List(ctx context.Context, actor models.Actor, includeArchived bool) ([]models.Class, error) {
	filter := models.ClassFilter{SchoolID: actor.SchoolID, IncludeArchived: includeArchived}
	var key string
	switch {
	case actor.IsAdmin():
		key = cachekeys.ClassesOfSchool(actor.SchoolID)
	case actor.Role == models.RoleStudent:
		filter.StudentID = actor.UserID
		key = cachekeys.ClassesForStudent(actor.UserID)
	default:
		filter.TeacherID = actor.UserID
		key = cachekeys.ClassesForTeacher(actor.UserID)
	}

	load := func(ctx context.Context, out *[]models.Class) error {
		classes, err := s.repo.List(ctx, filter)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
		}
		*out = classes
		return nil
	}

	classes := []models.Class{}
	if includeArchived {
		if err := load(ctx, &classes); err != nil {
			return nil, err
		}
		return classes, nil
	}
	if _, err := s.cache.Remember(ctx, key, &classes, func(ctx context.Context) error { return load(ctx, &classes) }); err != nil {
		return nil, err
	}
	return classes, nil
}

// Get returns a class visible to the actor.
func (s *ClassService) Get(ctx context.Context, actor models.Actor, id string) (*models.Class, error) {
	return classForView(ctx, s.repo, actor, id)
}

// Create adds a class. Teachers own the classes they create; admins may name another teacher.
func (s *ClassService) Create(ctx context.Context, actor models.Actor, req ClassRequest) (*models.Class, error) {
	if actor.Role == models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "students cannot create classes")
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}

	teacherID := actor.UserID
	if req.TeacherID != "" && req.TeacherID != actor.UserID {
		if !actor.IsAdmin() {
			return nil, appErrors.Clone(appErrors.ErrForbidden, "only admins can assign another teacher")
		}
		teacher, err := s.users.FindByID(ctx, req.TeacherID)
		if err != nil || teacher.SchoolID != actor.SchoolID || teacher.Role == models.RoleStudent {
			if err != nil && !isNoRows(err) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load teacher")
			}
			return nil, appErrors.Clone(appErrors.ErrValidation, "teacher not found in this school")
		}
		teacherID = teacher.ID
	}

	class := &models.Class{SchoolID: actor.SchoolID, TeacherID: teacherID}
	applyClassRequest(class, req)
	if err := s.repo.Create(ctx, class); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create class")
	}
	s.cache.Invalidate(ctx, actor.SchoolID, cachekeys.ClassesForTeacher(teacherID), cachekeys.ClassesOfSchool(actor.SchoolID))
	return classForView(ctx, s.repo, actor, class.ID)
}

// Update edits a class.
func (s *ClassService) Update(ctx context.Context, actor models.Actor, id string, req ClassRequest) (*models.Class, error) {
	class, err := classForManage(ctx, s.repo, actor, id)
	if err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid class payload")
	}
	applyClassRequest(class, req)
	if err := s.repo.Update(ctx, class); err != nil {
		return nil, notFoundOr(err, "class not found", "failed to update class")
	}
	s.invalidateClassLists(ctx, class)
	return class, nil
}

// SetArchived archives or restores a class.
func (s *ClassService) SetArchived(ctx context.Context, actor models.Actor, id string, archived bool) (*models.Class, error) {
	class, err := classForManage(ctx, s.repo, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.SetArchived(ctx, actor.SchoolID, id, archived); err != nil {
		return nil, notFoundOr(err, "class not found", "failed to archive class")
	}
	class.IsArchived = archived
	s.invalidateClassLists(ctx, class)
	return class, nil
}

// Delete removes a class with its coursework.
func (s *ClassService) Delete(ctx context.Context, actor models.Actor, id string) error {
	class, err := classForManage(ctx, s.repo, actor, id)
	if err != nil {
		return err
	}
	// collected first, the roster rows go with the class
	students, err := s.repo.StudentIDs(ctx, id)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
	}
	objects, err := s.repo.Delete(ctx, actor.SchoolID, id)
	if err != nil {
		return notFoundOr(err, "class not found", "failed to delete class")
	}
	s.removeObjects(ctx, id, objects)

	keys := []string{
		cachekeys.ClassesForTeacher(class.TeacherID),
		cachekeys.ClassesOfSchool(actor.SchoolID),
		cachekeys.Roster(id),
		cachekeys.AssignmentsOfClass(id),
		cachekeys.Posts(id),
		cachekeys.FilesOfClass(id),
		cachekeys.Gradebook(id),
	}
	for _, studentID := range students {
		keys = append(keys, cachekeys.ClassesForStudent(studentID))
	}
	s.cache.Invalidate(ctx, actor.SchoolID, keys...)
	return nil
}

// removeObjects drops stored files of a deleted class; rows are already gone, so failures are only logged.
func (s *ClassService) removeObjects(ctx context.Context, classID string, keys []string) {
	if s.store == nil {
		return
	}
	for _, key := range keys {
		if err := s.store.Delete(ctx, key); err != nil {
			s.logger.Warn("failed to remove class file object", zap.String("class_id", classID), zap.String("key", key), zap.Error(err))
		}
	}
}

// Roster lists the students of a class.
func (s *ClassService) Roster(ctx context.Context, actor models.Actor, id string) ([]models.RosterEntry, error) {
	if _, err := classForView(ctx, s.repo, actor, id); err != nil {
		return nil, err
	}
	roster := []models.RosterEntry{}
	_, err := s.cache.Remember(ctx, cachekeys.Roster(id), &roster, func(ctx context.Context) error {
		entries, err := s.repo.Roster(ctx, id)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load roster")
		}
		roster = entries
		return nil
	})
	if err != nil {
		return nil, err
	}
	return roster, nil
}

// AddStudents enrolls students of the school. Existing members and unknown ids are skipped;
// the ids actually added are returned.
func (s *ClassService) AddStudents(ctx context.Context, actor models.Actor, id string, req EnrollRequest) ([]string, error) {
	class, err := classForManage(ctx, s.repo, actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid enrolment payload")
	}
	added, err := s.repo.AddStudents(ctx, actor.SchoolID, id, dedupeIDs(req.StudentIDs))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to enroll students")
	}
	if len(added) == 0 {
		return []string{}, nil
	}

	keys := s.rosterKeys(class)
	for _, studentID := range added {
		keys = append(keys, cachekeys.ClassesForStudent(studentID))
	}
	s.cache.Invalidate(ctx, actor.SchoolID, keys...)
	return added, nil
}

// RemoveStudent drops a student and their submissions from a class.
func (s *ClassService) RemoveStudent(ctx context.Context, actor models.Actor, id, studentID string) error {
	class, err := classForManage(ctx, s.repo, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.RemoveStudent(ctx, id, studentID); err != nil {
		return notFoundOr(err, "student is not enrolled in this class", "failed to remove student")
	}
	keys := append(s.rosterKeys(class), cachekeys.ClassesForStudent(studentID))
	s.cache.Invalidate(ctx, actor.SchoolID, keys...)
	return nil
}

func (s *ClassService) rosterKeys(class *models.Class) []string {
	return []string{
		cachekeys.Roster(class.ID),
		cachekeys.AssignmentsOfClass(class.ID),
		cachekeys.Gradebook(class.ID),
		cachekeys.ClassesForTeacher(class.TeacherID),
		cachekeys.ClassesOfSchool(class.SchoolID),
	}
}

func (s *ClassService) invalidateClassLists(ctx context.Context, class *models.Class) {
	keys := []string{cachekeys.ClassesForTeacher(class.TeacherID), cachekeys.ClassesOfSchool(class.SchoolID)}
	students, err := s.repo.StudentIDs(ctx, class.ID)
	if err != nil {
		s.logger.Warn("failed to load roster for invalidation", zap.String("class_id", class.ID), zap.Error(err))
	}
	for _, studentID := range students {
		keys = append(keys, cachekeys.ClassesForStudent(studentID))
	}
	s.cache.Invalidate(ctx, class.SchoolID, keys...)
}

func applyClassRequest(class *models.Class, req ClassRequest) {
	class.Name = req.Name
	class.Subject = strings.TrimSpace(req.Subject)
	class.Section = strings.TrimSpace(req.Section)
	class.Color = strings.ToLower(req.Color)
	if class.Color == "" {
		class.Color = defaultClassColor
	}
	class.Icon = req.Icon
	if class.Icon == "" {
		class.Icon = defaultClassIcon
	}
	class.BannerURL = req.BannerURL
	class.YearBatchID = req.YearBatchID
}

func dedupeIDs(ids []string) []string {
	seen := make(map[string]struct{}, len(ids))
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
