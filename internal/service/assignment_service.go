package service

import (
	"context"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/cachekeys"
	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/pkg/academic"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

const teacherView = "all"

type assignmentRepository interface {
	Create(ctx context.Context, assignment *models.Assignment, post *models.Post) error
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
	ListByClass(ctx context.Context, classID string) ([]models.AssignmentSummary, error)
	ListForStudent(ctx context.Context, classID, studentID string) ([]models.AssignmentSummary, error)
	Update(ctx context.Context, assignment *models.Assignment) error
	Delete(ctx context.Context, id string) error
}

type studentSubmissionFinder interface {
	FindForStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error)
}

// AssignmentRequest is the payload for creating or editing an assignment.
type AssignmentRequest struct {
	Title              string     `json:"title" validate:"required,max=200"`
	Description        string     `json:"description" validate:"max=10000"`
	DueAt              *time.Time `json:"due_at"`
	TotalPoints        float64    `json:"total_points" validate:"gt=0,lte=1000"`
	RequiresSubmission *bool      `json:"requires_submission"`
}

// AssignmentService manages coursework of a class.
type AssignmentService struct {
	repo        assignmentRepository
	classes     classAccessRepository
	submissions studentSubmissionFinder
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
	now         func() time.Time
}

// NewAssignmentService constructs the service.
func NewAssignmentService(repo assignmentRepository, classes classAccessRepository, submissions studentSubmissionFinder, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *AssignmentService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AssignmentService{
		repo:        repo,
		classes:     classes,
		submissions: submissions,
		cache:       cache,
		validator:   newValidator(validate),
		logger:      logger,
		now:         time.Now,
	}
}

// Create adds an assignment, hands it out to every rostered student and announces it on the stream.
func (s *AssignmentService) Create(ctx context.Context, actor models.Actor, classID string, req AssignmentRequest) (*models.Assignment, error) {
	class, err := classForManage(ctx, s.classes, actor, classID)
	if err != nil {
		return nil, err
	}
	if err := s.validate(&req); err != nil {
		return nil, err
	}

	assignment := &models.Assignment{ClassID: class.ID, CreatedBy: actor.UserID}
	applyAssignmentRequest(assignment, req)
	post := &models.Post{
		ClassID:  class.ID,
		AuthorID: actor.UserID,
		Type:     models.PostAssignment,
		Title:    assignment.Title,
		Body:     assignment.Description,
	}
	if err := s.repo.Create(ctx, assignment, post); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create assignment")
	}
	s.invalidate(ctx, class, cachekeys.Posts(class.ID))
	return assignment, nil
}

// List returns the class's assignments. Teachers get submission counts, students their own
// submission with a derived status.
func (s *AssignmentService) List(ctx context.Context, actor models.Actor, classID string) ([]models.AssignmentSummary, error) {
	class, err := classForView(ctx, s.classes, actor, classID)
	if err != nil {
		return nil, err
	}

	student := actor.Role == models.RoleStudent
	viewer := teacherView
	if student {
		viewer = actor.UserID
	}
	items := []models.AssignmentSummary{}
	_, err = s.cache.Remember(ctx, cachekeys.Assignments(class.ID, viewer), &items, func(ctx context.Context) error {
		var (
			found []models.AssignmentSummary
			err   error
		)
		if student {
			found, err = s.repo.ListForStudent(ctx, class.ID, actor.UserID)
		} else {
			found, err = s.repo.ListByClass(ctx, class.ID)
		}
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list assignments")
		}
		items = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	if student {
		now := s.now()
		for i := range items {
			items[i].Status = statusFor(&items[i].Assignment, items[i].Submission, now)
		}
	}
	return items, nil
}

// Get returns one assignment. Students also receive their submission and status.
func (s *AssignmentService) Get(ctx context.Context, actor models.Actor, id string) (*models.AssignmentSummary, error) {
	assignment, _, err := s.load(ctx, actor, id, false)
	if err != nil {
		return nil, err
	}
	out := &models.AssignmentSummary{Assignment: *assignment}
	if actor.Role == models.RoleStudent {
		sub, err := s.submissions.FindForStudent(ctx, id, actor.UserID)
		if err != nil && !isNoRows(err) {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load submission")
		}
		out.Submission = sub
		out.Status = statusFor(assignment, sub, s.now())
	}
	return out, nil
}

// Update edits an assignment.
func (s *AssignmentService) Update(ctx context.Context, actor models.Actor, id string, req AssignmentRequest) (*models.Assignment, error) {
	assignment, class, err := s.load(ctx, actor, id, true)
	if err != nil {
		return nil, err
	}
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	applyAssignmentRequest(assignment, req)
	if err := s.repo.Update(ctx, assignment); err != nil {
		return nil, notFoundOr(err, "assignment not found", "failed to update assignment")
	}
	s.invalidate(ctx, class)
	return assignment, nil
}

// Delete removes an assignment with its submissions and stream post.
func (s *AssignmentService) Delete(ctx context.Context, actor models.Actor, id string) error {
	_, class, err := s.load(ctx, actor, id, true)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundOr(err, "assignment not found", "failed to delete assignment")
	}
	s.invalidate(ctx, class, cachekeys.Posts(class.ID))
	return nil
}

func (s *AssignmentService) load(ctx context.Context, actor models.Actor, id string, manage bool) (*models.Assignment, *models.Class, error) {
	assignment, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, notFoundOr(err, "assignment not found", "failed to load assignment")
	}
	var class *models.Class
	if manage {
		class, err = classForManage(ctx, s.classes, actor, assignment.ClassID)
	} else {
		class, err = classForView(ctx, s.classes, actor, assignment.ClassID)
	}
	if err != nil {
		if appErrors.FromError(err).Code == appErrors.ErrNotFound.Code {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "assignment not found")
		}
		return nil, nil, err
	}
	return assignment, class, nil
}

func (s *AssignmentService) validate(req *AssignmentRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid assignment payload")
	}
	return nil
}

func (s *AssignmentService) invalidate(ctx context.Context, class *models.Class, extra ...string) {
	keys := append([]string{cachekeys.AssignmentsOfClass(class.ID), cachekeys.Gradebook(class.ID)}, extra...)
	s.cache.Invalidate(ctx, class.SchoolID, keys...)
}

func applyAssignmentRequest(a *models.Assignment, req AssignmentRequest) {
	a.Title = req.Title
	a.Description = req.Description
	if req.DueAt != nil {
		due := req.DueAt.UTC()
		a.DueAt = &due
	} else {
		a.DueAt = nil
	}
	a.TotalPoints = req.TotalPoints
	a.RequiresSubmission = req.RequiresSubmission == nil || *req.RequiresSubmission
}

func statusFor(a *models.Assignment, sub *models.Submission, now time.Time) *academic.Status {
	var (
		submittedAt *time.Time
		graded      bool
	)
	if sub != nil {
		submittedAt = sub.SubmittedAt
		graded = sub.Status == models.SubmissionGraded
	}
	status := academic.AssignmentStatus(a.DueAt, submittedAt, graded, a.RequiresSubmission, now)
	return &status
}
