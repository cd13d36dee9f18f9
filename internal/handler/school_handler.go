package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-api/internal/service"
	"github.com/noah-isme/classroom-api/pkg/response"
)

// SchoolHandler serves the caller's school settings.
type SchoolHandler struct {
	service *service.SchoolService
}

// NewSchoolHandler constructs the handler.
func NewSchoolHandler(svc *service.SchoolService) *SchoolHandler {
	return &SchoolHandler{service: svc}
}

// Current godoc
// @Summary Get current school
// @Tags Schools
// @Produce json
// @Success 200 {object} response.Envelope
// @Router /schools/current [get]
func (h *SchoolHandler) Current(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	school, err := h.service.Current(c.Request.Context(), actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// Update godoc
// @Summary Update school settings
// @Tags Schools
// @Accept json
// @Produce json
// @Param payload body service.UpdateSchoolRequest true "School settings"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /schools/current [put]
func (h *SchoolHandler) Update(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.UpdateSchoolRequest
	if !bindJSON(c, &req, "invalid school payload") {
		return
	}
	school, err := h.service.Update(c.Request.Context(), actor, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// UploadLogo godoc
// @Summary Upload school logo
// @Description The image is fitted into 512x512 and stored as PNG
// @Tags Schools
// @Accept multipart/form-data
// @Produce json
// @Param file formData file true "Logo image"
// @Success 200 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Router /schools/current/logo [post]
func (h *SchoolHandler) UploadLogo(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	file, _, ok := formFile(c, "file")
	if !ok {
		return
	}
	defer file.Close()

	school, err := h.service.UploadLogo(c.Request.Context(), actor, file)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// AddAdmin godoc
// @Summary Grant school admin
// @Tags Schools
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} response.Envelope
// @Router /schools/current/admins/{userId} [post]
func (h *SchoolHandler) AddAdmin(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	school, err := h.service.AddAdmin(c.Request.Context(), actor, c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}

// RemoveAdmin godoc
// @Summary Revoke school admin
// @Tags Schools
// @Produce json
// @Param userId path string true "User ID"
// @Success 200 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /schools/current/admins/{userId} [delete]
func (h *SchoolHandler) RemoveAdmin(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	school, err := h.service.RemoveAdmin(c.Request.Context(), actor, c.Param("userId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, school, nil)
}
