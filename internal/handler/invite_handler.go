package handler

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/service"
	"github.com/noah-isme/classroom-api/pkg/response"
)

// InviteHandler manages pending invites.
type InviteHandler struct {
	service *service.InviteService
}

// NewInviteHandler constructs the handler.
func NewInviteHandler(svc *service.InviteService) *InviteHandler {
	return &InviteHandler{service: svc}
}

// Create godoc
// @Summary Invite a user
// @Description Creates a pending invite and queues the invitation e-mail
// @Tags Invites
// @Accept json
// @Produce json
// @Param payload body service.CreateInviteRequest true "Invite"
// @Success 201 {object} response.Envelope
// @Failure 400 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /invites [post]
func (h *InviteHandler) Create(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.CreateInviteRequest
	if !bindJSON(c, &req, "invalid invite payload") {
		return
	}
	invite, err := h.service.Create(c.Request.Context(), actor, req, requestMeta(c))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, invite)
}

// List godoc
// @Summary List invites
// @Tags Invites
// @Produce json
// @Param role query string false "Role filter"
// @Param status query string false "PENDING (default) or EXPIRED"
// @Success 200 {object} response.Envelope
// @Router /invites [get]
func (h *InviteHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var role *models.UserRole
	if raw := c.Query("role"); raw != "" {
		r := models.UserRole(strings.ToUpper(raw))
		role = &r
	}
	status := models.InviteStatus(strings.ToUpper(c.DefaultQuery("status", string(models.InviteStatusPending))))

	invites, err := h.service.List(c.Request.Context(), actor, role, status)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invites, nil)
}

// Delete godoc
// @Summary Revoke an invite
// @Tags Invites
// @Param id path string true "Invite ID"
// @Success 204
// @Router /invites/{id} [delete]
func (h *InviteHandler) Delete(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.Delete(c.Request.Context(), actor, c.Param("id"), requestMeta(c)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Resend godoc
// @Summary Resend an invite
// @Description Extends the expiry and queues the e-mail again
// @Tags Invites
// @Produce json
// @Param id path string true "Invite ID"
// @Success 200 {object} response.Envelope
// @Router /invites/{id}/resend [post]
func (h *InviteHandler) Resend(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	invite, err := h.service.Resend(c.Request.Context(), actor, c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, invite, nil)
}
