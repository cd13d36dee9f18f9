package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/uistate"
	"github.com/noah-isme/classroom-api/pkg/response"
)

type uiStateService interface {
	Get(ctx context.Context, actor models.Actor, area string) (uistate.State, error)
	Dispatch(ctx context.Context, actor models.Actor, area string, action uistate.Action) (uistate.State, error)
	Reset(ctx context.Context, actor models.Actor, area string) (uistate.State, error)
}

// UIStateHandler exposes the per-user view state areas.
type UIStateHandler struct {
	service uiStateService
}

// NewUIStateHandler constructs the handler.
func NewUIStateHandler(svc uiStateService) *UIStateHandler {
	return &UIStateHandler{service: svc}
}

// Get godoc
// @Summary Current view state
// @Tags UIState
// @Produce json
// @Param area path string true "navigation, school_settings, year_batch_admin or course_view"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /ui-state/{area} [get]
func (h *UIStateHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	state, err := h.service.Get(c.Request.Context(), actor, c.Param("area"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Dispatch godoc
// @Summary Apply a view state action
// @Tags UIState
// @Accept json
// @Produce json
// @Param area path string true "Area"
// @Param payload body uistate.Action true "Action"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /ui-state/{area}/actions [post]
func (h *UIStateHandler) Dispatch(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var action uistate.Action
	if !bindJSON(c, &action, "invalid action payload") {
		return
	}
	state, err := h.service.Dispatch(c.Request.Context(), actor, c.Param("area"), action)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}

// Reset godoc
// @Summary Reset view state
// @Tags UIState
// @Produce json
// @Param area path string true "Area"
// @Success 200 {object} response.Envelope
// @Router /ui-state/{area} [delete]
func (h *UIStateHandler) Reset(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	state, err := h.service.Reset(c.Request.Context(), actor, c.Param("area"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, state, nil)
}
