package service

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/cachekeys"
	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/pkg/academic"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

type submissionRepository interface {
	ListByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error)
	FindByID(ctx context.Context, id string) (*models.Submission, error)
	FindForStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error)
	Submit(ctx context.Context, sub *models.Submission) error
	Grade(ctx context.Context, sub *models.Submission) error
}

type assignmentFinder interface {
	FindByID(ctx context.Context, id string) (*models.Assignment, error)
}

// SubmitRequest carries the attachments a student hands in.
type SubmitRequest struct {
	Attachments models.Attachments `json:"attachments" validate:"max=20,dive"`
}

// GradeRequest awards marks to a submission.
type GradeRequest struct {
	Marks    *float64 `json:"marks" validate:"required"`
	Feedback *string  `json:"feedback" validate:"omitempty,max=5000"`
}

// SubmissionService handles hand-ins and grading.
type SubmissionService struct {
	repo        submissionRepository
	assignments assignmentFinder
	classes     classAccessRepository
	audit       schoolAuditor
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewSubmissionService constructs the service.
func NewSubmissionService(repo submissionRepository, assignments assignmentFinder, classes classAccessRepository, audit schoolAuditor, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *SubmissionService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &SubmissionService{
		repo:        repo,
		assignments: assignments,
		classes:     classes,
		audit:       audit,
		cache:       cache,
		validator:   newValidator(validate),
		logger:      logger,
	}
}

// List returns every student's submission for an assignment.
func (s *SubmissionService) List(ctx context.Context, actor models.Actor, assignmentID string) ([]models.Submission, error) {
	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, notFoundOr(err, "assignment not found", "failed to load assignment")
	}
	if _, err := classForManage(ctx, s.classes, actor, assignment.ClassID); err != nil {
		return nil, err
	}
	subs, err := s.repo.ListByAssignment(ctx, assignmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list submissions")
	}
	return subs, nil
}

// Submit hands in the actor's work. Resubmitting replaces the attachments until the work is graded.
func (s *SubmissionService) Submit(ctx context.Context, actor models.Actor, assignmentID string, req SubmitRequest) (*models.Submission, error) {
	if actor.Role != models.RoleStudent {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "only students submit work")
	}
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid submission payload")
	}
	assignment, err := s.assignments.FindByID(ctx, assignmentID)
	if err != nil {
		return nil, notFoundOr(err, "assignment not found", "failed to load assignment")
	}
	class, err := classForView(ctx, s.classes, actor, assignment.ClassID)
	if err != nil {
		return nil, err
	}
	if !assignment.RequiresSubmission {
		return nil, appErrors.Clone(appErrors.ErrValidation, "this assignment does not take submissions")
	}

	sub, err := s.repo.FindForStudent(ctx, assignmentID, actor.UserID)
	if err != nil {
		return nil, notFoundOr(err, "assignment was not handed out to you", "failed to load submission")
	}
	if sub.Status == models.SubmissionGraded {
		return nil, appErrors.Clone(appErrors.ErrConflict, "graded work cannot be resubmitted")
	}
	sub.Attachments = req.Attachments
	if sub.Attachments == nil {
		sub.Attachments = models.Attachments{}
	}
	if err := s.repo.Submit(ctx, sub); err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "graded work cannot be resubmitted")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to submit")
	}
	s.cache.Invalidate(ctx, class.SchoolID, cachekeys.AssignmentsOfClass(class.ID), cachekeys.Gradebook(class.ID))
	return sub, nil
}

// Grade records marks out of the assignment's total and derives percentage and IB grade.
func (s *SubmissionService) Grade(ctx context.Context, actor models.Actor, submissionID string, req GradeRequest, meta models.RequestMeta) (*models.Submission, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid grade payload")
	}
	sub, err := s.repo.FindByID(ctx, submissionID)
	if err != nil {
		return nil, notFoundOr(err, "submission not found", "failed to load submission")
	}
	assignment, err := s.assignments.FindByID(ctx, sub.AssignmentID)
	if err != nil {
		return nil, notFoundOr(err, "assignment not found", "failed to load assignment")
	}
	class, err := classForManage(ctx, s.classes, actor, assignment.ClassID)
	if err != nil {
		return nil, err
	}

	marks := *req.Marks
	if marks < 0 || marks > assignment.TotalPoints {
		return nil, appErrors.Clone(appErrors.ErrValidation, "marks must be between 0 and the assignment's total points")
	}
	pct := academic.Percentage(marks, assignment.TotalPoints)
	ib, err := academic.CalculateIBGrade(academic.Score(marks, assignment.TotalPoints))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "marks out of range")
	}

	before, _ := json.Marshal(sub)
	sub.Marks = &marks
	sub.Percentage = &pct
	sub.IBGrade = &ib
	if req.Feedback != nil {
		feedback := strings.TrimSpace(*req.Feedback)
		sub.Feedback = &feedback
	}
	sub.GradedBy = &actor.UserID
	if err := s.repo.Grade(ctx, sub); err != nil {
		return nil, notFoundOr(err, "submission not found", "failed to grade submission")
	}

	after, _ := json.Marshal(sub)
	s.recordAudit(ctx, actor, sub.ID, before, after, meta)
	s.cache.Invalidate(ctx, class.SchoolID, cachekeys.AssignmentsOfClass(class.ID), cachekeys.Gradebook(class.ID))
	return sub, nil
}

func (s *SubmissionService) recordAudit(ctx context.Context, actor models.Actor, id string, before, after []byte, meta models.RequestMeta) {
	if s.audit == nil {
		return
	}
	if err := s.audit.CreateAuditLog(ctx, &models.AuditLog{
		UserID:     &actor.UserID,
		Action:     models.AuditActionSubmissionGrade,
		Resource:   "submissions",
		ResourceID: &id,
		OldValues:  before,
		NewValues:  after,
		IPAddress:  meta.IP,
		UserAgent:  meta.UserAgent,
	}); err != nil {
		s.logger.Warn("failed to record grade audit log", zap.String("submission_id", id), zap.Error(err))
	}
}
