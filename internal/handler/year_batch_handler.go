package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-api/internal/service"
	"github.com/noah-isme/classroom-api/pkg/response"
)

// YearBatchHandler serves the year-batch admin screen.
type YearBatchHandler struct {
	service *service.YearBatchService
}

// NewYearBatchHandler constructs the handler.
func NewYearBatchHandler(svc *service.YearBatchService) *YearBatchHandler {
	return &YearBatchHandler{service: svc}
}

// List godoc
// @Summary List year batches
// @Description Each batch carries the label of the school year it currently spans
// @Tags YearBatches
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /year-batches [get]
func (h *YearBatchHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	batches, err := h.service.List(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batches, nil)
}

// Get godoc
// @Summary Get year batch
// @Tags YearBatches
// @Produce json
// @Param id path string true "Year batch ID"
// @Success 200 {object} response.Envelope
// @Router /year-batches/{id} [get]
func (h *YearBatchHandler) Get(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	batch, err := h.service.Get(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// Create godoc
// @Summary Create year batch
// @Tags YearBatches
// @Accept json
// @Produce json
// @Param payload body service.YearBatchRequest true "Months are 0-based"
// @Success 201 {object} response.Envelope
// @Router /year-batches [post]
func (h *YearBatchHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.YearBatchRequest
	if !bindJSON(c, &req, "invalid year batch payload") {
		return
	}
	batch, err := h.service.Create(c.Request.Context(), actor, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, batch)
}

// Update godoc
// @Summary Update year batch
// @Tags YearBatches
// @Accept json
// @Produce json
// @Param id path string true "Year batch ID"
// @Param payload body service.YearBatchRequest true "Months are 0-based"
// @Success 200 {object} response.Envelope
// @Router /year-batches/{id} [put]
func (h *YearBatchHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.YearBatchRequest
	if !bindJSON(c, &req, "invalid year batch payload") {
		return
	}
	batch, err := h.service.Update(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, batch, nil)
}

// Delete godoc
// @Summary Delete year batch
// @Tags YearBatches
// @Param id path string true "Year batch ID"
// @Success 204
// @Router /year-batches/{id} [delete]
func (h *YearBatchHandler) Delete(c *gin.Context) {
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
