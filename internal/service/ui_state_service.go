package service

import (
	"context"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/uistate"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

// UIStateService loads and advances the per-user view state areas.
type UIStateService struct {
	store     uistate.Store
	validator *validator.Validate
	logger    *zap.Logger
}

// NewUIStateService constructs the service.
func NewUIStateService(store uistate.Store, validate *validator.Validate, logger *zap.Logger) *UIStateService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UIStateService{store: store, validator: newValidator(validate), logger: logger}
}

// Get returns the actor's current state of an area.
func (s *UIStateService) Get(ctx context.Context, actor models.Actor, rawArea string) (uistate.State, error) {
	area, err := parseArea(rawArea)
	if err != nil {
		return nil, err
	}
	state, err := s.store.Load(ctx, actor.UserID, area)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load ui state")
	}
	return state, nil
}

// Dispatch reduces action over the stored state and persists the result.
func (s *UIStateService) Dispatch(ctx context.Context, actor models.Actor, rawArea string, action uistate.Action) (uistate.State, error) {
	if err := s.validator.Struct(action); err != nil {
		return nil, validationError(err, "invalid action")
	}
	current, err := s.Get(ctx, actor, rawArea)
	if err != nil {
		return nil, err
	}
	next, err := uistate.Reduce(current, action)
	if err != nil {
		return nil, validationError(err, err.Error())
	}
	if err := s.store.Save(ctx, actor.UserID, next); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save ui state")
	}
	s.logger.Debug("ui state dispatched",
		zap.String("user_id", actor.UserID),
		zap.String("area", string(next.Area())),
		zap.String("action", string(action.Type)),
	)
	return next, nil
}

// Reset drops the stored state and returns the area's initial state.
func (s *UIStateService) Reset(ctx context.Context, actor models.Actor, rawArea string) (uistate.State, error) {
	area, err := parseArea(rawArea)
	if err != nil {
		return nil, err
	}
	if err := s.store.Delete(ctx, actor.UserID, area); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reset ui state")
	}
	return uistate.Initial(area)
}

func parseArea(raw string) (uistate.Area, error) {
	area, err := uistate.ParseArea(raw)
	if err != nil {
		if errors.Is(err, uistate.ErrUnknownArea) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "unknown ui state area")
		}
		return "", validationError(err, "invalid area")
	}
	return area, nil
}
