package handler

import (
	"context"
	"io"
	"net/http"
	"path"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/service"
	"github.com/noah-isme/classroom-api/pkg/response"
)

type gradebookService interface {
	Class(ctx context.Context, actor models.Actor, classID string) (*models.Gradebook, error)
	MyGrades(ctx context.Context, actor models.Actor) ([]models.ClassGradeSummary, error)
	Export(ctx context.Context, actor models.Actor, classID, format string) (*service.ExportResult, error)
}

type exportOpener interface {
	Open(ctx context.Context, token string) (string, io.ReadCloser, error)
}

// GradebookHandler serves grade views and their exports.
type GradebookHandler struct {
	service gradebookService
	exports exportOpener
}

// NewGradebookHandler constructs the handler.
func NewGradebookHandler(svc gradebookService, exports exportOpener) *GradebookHandler {
	return &GradebookHandler{service: svc, exports: exports}
}

// Class godoc
// @Summary Class gradebook
// @Description Students by assignments with each student's percentage and IB grade
// @Tags Gradebook
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/gradebook [get]
func (h *GradebookHandler) Class(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	book, err := h.service.Class(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, book, nil)
}

// MyGrades godoc
// @Summary Own grades per class
// @Tags Gradebook
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /me/grades [get]
func (h *GradebookHandler) MyGrades(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	grades, err := h.service.MyGrades(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, grades, nil)
}

// Export godoc
// @Summary Export gradebook
// @Description Renders the gradebook and returns a signed download link
// @Tags Gradebook
// @Produce json
// @Param id path string true "Class ID"
// @Param format query string false "csv (default) or pdf"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/gradebook/export [get]
func (h *GradebookHandler) Export(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	result, err := h.service.Export(c.Request.Context(), actor, c.Param("id"), c.Query("format"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Download godoc
// @Summary Download an export
// @Tags Gradebook
// @Produce octet-stream
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Router /exports/download [get]
func (h *GradebookHandler) Download(c *gin.Context) {
	key, body, err := h.exports.Open(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer body.Close()

	contentType := "text/csv"
	if path.Ext(key) == ".pdf" {
		contentType = "application/pdf"
	}
	c.Header("Content-Disposition", "attachment; filename=\""+path.Base(key)+"\"")
	c.DataFromReader(http.StatusOK, -1, contentType, body, nil)
}
