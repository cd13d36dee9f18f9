package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"

	"github.com/noah-isme/classroom-api/internal/models"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

type classAccessRepository interface {
	FindByID(ctx context.Context, schoolID, id string) (*models.Class, error)
	IsMember(ctx context.Context, classID, studentID string) (bool, error)
}

// classForManage returns the class when actor is a school admin or the class's teacher.
func classForManage(ctx context.Context, repo classAccessRepository, actor models.Actor, classID string) (*models.Class, error) {
	class, err := findClass(ctx, repo, actor, classID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || class.TeacherID == actor.UserID {
		return class, nil
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "only the class teacher can do this")
}

// classForView additionally admits students on the roster.
func classForView(ctx context.Context, repo classAccessRepository, actor models.Actor, classID string) (*models.Class, error) {
	class, err := findClass(ctx, repo, actor, classID)
	if err != nil {
		return nil, err
	}
	if actor.IsAdmin() || class.TeacherID == actor.UserID {
		return class, nil
	}
	if actor.Role == models.RoleStudent {
		member, err := repo.IsMember(ctx, classID, actor.UserID)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check enrolment")
		}
		if member {
			return class, nil
		}
	}
	return nil, appErrors.Clone(appErrors.ErrForbidden, "you are not a member of this class")
}

func findClass(ctx context.Context, repo classAccessRepository, actor models.Actor, classID string) (*models.Class, error) {
	class, err := repo.FindByID(ctx, actor.SchoolID, classID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "class not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load class")
	}
	return class, nil
}

func requireAdmin(actor models.Actor) error {
	if !actor.IsAdmin() {
		return appErrors.Clone(appErrors.ErrForbidden, "admin role required")
	}
	return nil
}

func validationError(err error, message string) error {
	return appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, message)
}

func notFoundOr(err error, message, internal string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrNotFound, message)
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, internal)
}

func newValidator(v *validator.Validate) *validator.Validate {
	if v == nil {
		return validator.New()
	}
	return v
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}
