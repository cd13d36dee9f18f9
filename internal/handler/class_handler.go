package handler

import (
	"context"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/service"
	"github.com/noah-isme/classroom-api/pkg/response"
)

type classService interface {
	List(ctx context.Context, actor models.Actor, includeArchived bool) ([]models.Class, error)
	Get(ctx context.Context, actor models.Actor, id string) (*models.Class, error)
	Create(ctx context.Context, actor models.Actor, req service.ClassRequest) (*models.Class, error)
	Update(ctx context.Context, actor models.Actor, id string, req service.ClassRequest) (*models.Class, error)
	SetArchived(ctx context.Context, actor models.Actor, id string, archived bool) (*models.Class, error)
	Delete(ctx context.Context, actor models.Actor, id string) error
	Roster(ctx context.Context, actor models.Actor, id string) ([]models.RosterEntry, error)
	AddStudents(ctx context.Context, actor models.Actor, id string, req service.EnrollRequest) ([]string, error)
	RemoveStudent(ctx context.Context, actor models.Actor, id, studentID string) error
}

// ClassHandler exposes classes and their rosters.
type ClassHandler struct {
	service classService
}

// NewClassHandler constructs a class handler.
func NewClassHandler(svc classService) *ClassHandler {
	return &ClassHandler{service: svc}
}

// List godoc
// @Summary List classes
// @Description Teachers see the classes they own, students those they are enrolled in, admins every class of the school
// @Tags Classes
// @Produce json
// @Param include_archived query bool false "Include archived classes"
// @Success 200 {object} response.Envelope
// @Router /classes [get]
func (h *ClassHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	includeArchived, _ := strconv.ParseBool(c.Query("include_archived"))
	classes, err := h.service.List(c.Request.Context(), actor, includeArchived)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, classes, nil)
}

// Get godoc
// @Summary Get class
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /classes/{id} [get]
func (h *ClassHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	class, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Create godoc
// @Summary Create class
// @Tags Classes
// @Accept json
// @Produce json
// @Param payload body service.ClassRequest true "Class payload"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /classes [post]
func (h *ClassHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.ClassRequest
	if !bindJSON(c, &req, "invalid class payload") {
		return
	}
	class, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, class)
}

// Update godoc
// @Summary Update class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.ClassRequest true "Class payload"
// @Success 200 {object} response.Envelope
// @Router /classes/{id} [put]
func (h *ClassHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.ClassRequest
	if !bindJSON(c, &req, "invalid class payload") {
		return
	}
	class, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Archive godoc
// @Summary Archive or restore class
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body map[string]bool false "{\"archived\": true}"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/archive [patch]
func (h *ClassHandler) Archive(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	payload := struct {
		Archived *bool `json:"archived"`
	}{}
	if c.Request.ContentLength > 0 && !bindJSON(c, &payload, "invalid archive payload") {
		return
	}
	archived := true
	if payload.Archived != nil {
		archived = *payload.Archived
	}
	class, err := h.service.SetArchived(c.Request.Context(), actor, c.Param("id"), archived)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, class, nil)
}

// Delete godoc
// @Summary Delete class
// @Tags Classes
// @Param id path string true "Class ID"
// @Success 204
// @Router /classes/{id} [delete]
func (h *ClassHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Roster godoc
// @Summary List enrolled students
// @Tags Classes
// @Produce json
// @Param id path string true "Class ID"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/students [get]
func (h *ClassHandler) Roster(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	roster, err := h.service.Roster(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, roster, nil)
}

// AddStudents godoc
// @Summary Enroll students
// @Description Already enrolled students are skipped; the response lists the ids actually added
// @Tags Classes
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.EnrollRequest true "Student ids"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/students [post]
func (h *ClassHandler) AddStudents(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.EnrollRequest
	if !bindJSON(c, &req, "invalid enrolment payload") {
		return
	}
	added, err := h.service.AddStudents(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, gin.H{"added": added}, nil)
}

// RemoveStudent godoc
// @Summary Remove student from class
// @Tags Classes
// @Param id path string true "Class ID"
// @Param studentId path string true "Student ID"
// @Success 204
// @Router /classes/{id}/students/{studentId} [delete]
func (h *ClassHandler) RemoveStudent(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.RemoveStudent(c.Request.Context(), actor, c.Param("id"), c.Param("studentId")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
