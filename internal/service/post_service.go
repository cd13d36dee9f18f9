package service

import (
	"context"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/cachekeys"
	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/pkg/academic"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

// ExcerptLength bounds the stream preview of a post body.
const ExcerptLength = 140

type postRepository interface {
	Create(ctx context.Context, post *models.Post) error
	FindByID(ctx context.Context, id string) (*models.Post, error)
	ListByClass(ctx context.Context, classID string) ([]models.Post, error)
	Update(ctx context.Context, post *models.Post) error
	Delete(ctx context.Context, id string) error
}

// PostRequest is the payload for a stream entry.
type PostRequest struct {
	Type         models.PostType    `json:"type" validate:"required,oneof=ANNOUNCEMENT MATERIAL ASSIGNMENT"`
	Title        string             `json:"title" validate:"max=200"`
	Body         string             `json:"body" validate:"max=20000"`
	AssignmentID *string            `json:"assignment_id" validate:"omitempty,uuid"`
	Attachments  models.Attachments `json:"attachments" validate:"max=20,dive"`
}

// PostService manages the class stream.
type PostService struct {
	repo        postRepository
	classes     classAccessRepository
	assignments assignmentFinder
	cache       *CacheService
	validator   *validator.Validate
	logger      *zap.Logger
}

// NewPostService constructs the service.
func NewPostService(repo postRepository, classes classAccessRepository, assignments assignmentFinder, cache *CacheService, validate *validator.Validate, logger *zap.Logger) *PostService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PostService{repo: repo, classes: classes, assignments: assignments, cache: cache, validator: newValidator(validate), logger: logger}
}

// Create posts to a class stream. ASSIGNMENT posts must reference an assignment of the same class.
func (s *PostService) Create(ctx context.Context, actor models.Actor, classID string, req PostRequest) (*models.Post, error) {
	class, err := classForManage(ctx, s.classes, actor, classID)
	if err != nil {
		return nil, err
	}
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	if req.Type == models.PostAssignment {
		if req.AssignmentID == nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, "assignment posts need an assignment_id")
		}
		assignment, err := s.assignments.FindByID(ctx, *req.AssignmentID)
		if err != nil || assignment.ClassID != class.ID {
			if err != nil && !isNoRows(err) {
				return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load assignment")
			}
			return nil, appErrors.Clone(appErrors.ErrValidation, "assignment not found in this class")
		}
	} else {
		req.AssignmentID = nil
	}

	post := &models.Post{
		ClassID:      class.ID,
		AuthorID:     actor.UserID,
		Type:         req.Type,
		Title:        req.Title,
		Body:         req.Body,
		AssignmentID: req.AssignmentID,
		Attachments:  req.Attachments,
	}
	if err := s.repo.Create(ctx, post); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create post")
	}
	post.Excerpt = academic.Truncate(&post.Body, ExcerptLength)
	s.cache.Invalidate(ctx, class.SchoolID, cachekeys.Posts(class.ID))
	return post, nil
}

// List returns the stream of a class, newest first, with excerpts.
func (s *PostService) List(ctx context.Context, actor models.Actor, classID string) ([]models.Post, error) {
	class, err := classForView(ctx, s.classes, actor, classID)
	if err != nil {
		return nil, err
	}
	posts := []models.Post{}
	_, err = s.cache.Remember(ctx, cachekeys.Posts(class.ID), &posts, func(ctx context.Context) error {
		found, err := s.repo.ListByClass(ctx, class.ID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list posts")
		}
		for i := range found {
			found[i].Excerpt = academic.Truncate(&found[i].Body, ExcerptLength)
		}
		posts = found
		return nil
	})
	if err != nil {
		return nil, err
	}
	return posts, nil
}

// Update edits a post. Authors and the class teacher may edit.
func (s *PostService) Update(ctx context.Context, actor models.Actor, id string, req PostRequest) (*models.Post, error) {
	post, class, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	req.Type = post.Type
	if err := s.validate(&req); err != nil {
		return nil, err
	}
	post.Title = req.Title
	post.Body = req.Body
	post.Attachments = req.Attachments
	if err := s.repo.Update(ctx, post); err != nil {
		return nil, notFoundOr(err, "post not found", "failed to update post")
	}
	post.Excerpt = academic.Truncate(&post.Body, ExcerptLength)
	s.cache.Invalidate(ctx, class.SchoolID, cachekeys.Posts(class.ID))
	return post, nil
}

// Delete removes a post.
func (s *PostService) Delete(ctx context.Context, actor models.Actor, id string) error {
	_, class, err := s.editable(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, id); err != nil {
		return notFoundOr(err, "post not found", "failed to delete post")
	}
	s.cache.Invalidate(ctx, class.SchoolID, cachekeys.Posts(class.ID))
	return nil
}

func (s *PostService) editable(ctx context.Context, actor models.Actor, id string) (*models.Post, *models.Class, error) {
	post, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, nil, notFoundOr(err, "post not found", "failed to load post")
	}
	class, err := findClass(ctx, s.classes, actor, post.ClassID)
	if err != nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "post not found")
	}
	if post.AuthorID != actor.UserID && class.TeacherID != actor.UserID && !actor.IsAdmin() {
		return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "only the author or the class teacher can change this post")
	}
	return post, class, nil
}

func (s *PostService) validate(req *PostRequest) error {
	req.Title = strings.TrimSpace(req.Title)
	req.Body = strings.TrimSpace(req.Body)
	if err := s.validator.Struct(req); err != nil {
		return validationError(err, "invalid post payload")
	}
	if req.Title == "" && req.Body == "" && len(req.Attachments) == 0 {
		return appErrors.Clone(appErrors.ErrValidation, "post is empty")
	}
	if req.Attachments == nil {
		req.Attachments = models.Attachments{}
	}
	return nil
}
