package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/service"
	"github.com/noah-isme/classroom-api/pkg/response"
)

type calendarService interface {
	Window(ctx context.Context, actor models.Actor, start *time.Time) (*models.CalendarWindow, error)
}

// CalendarHandler serves the two-week assignment calendar.
type CalendarHandler struct {
	service calendarService
}

// NewCalendarHandler constructs the handler.
func NewCalendarHandler(svc calendarService) *CalendarHandler {
	return &CalendarHandler{service: svc}
}

// Window godoc
// @Summary Two-week calendar
// @Description Assignments due in the caller's classes over fourteen days from start (Monday of this week by default)
// @Tags Calendar
// @Produce json
// @Param start query string false "YYYY-MM-DD"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /calendar [get]
func (h *CalendarHandler) Window(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	start, err := service.ParseStart(c.Query("start"))
	if err != nil {
		response.Error(c, err)
		return
	}
	window, err := h.service.Window(c.Request.Context(), actor, start)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, window, nil, map[string]interface{}{
		"prev_start": window.PrevStart,
		"next_start": window.NextStart,
	})
}
