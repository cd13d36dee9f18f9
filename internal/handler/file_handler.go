package handler

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/service"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/response"
)

type fileService interface {
	CreateFolder(ctx context.Context, actor models.Actor, classID string, req service.FolderRequest) (*models.ClassFolder, error)
	List(ctx context.Context, actor models.Actor, classID string, folderID *string) (*models.FolderListing, error)
	Upload(ctx context.Context, actor models.Actor, classID string, folderID *string, up service.Upload) (*models.ClassFile, error)
	DeleteFile(ctx context.Context, actor models.Actor, id string) error
	DeleteFolder(ctx context.Context, actor models.Actor, id string) error
	Open(ctx context.Context, token string) (*models.ClassFile, io.ReadCloser, error)
}

// FileHandler serves class files and folders.
type FileHandler struct {
	service fileService
}

// NewFileHandler constructs the handler.
func NewFileHandler(svc fileService) *FileHandler {
	return &FileHandler{service: svc}
}

// CreateFolder godoc
// @Summary Create folder
// @Tags Files
// @Accept json
// @Produce json
// @Param id path string true "Class ID"
// @Param payload body service.FolderRequest true "Folder"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /classes/{id}/folders [post]
func (h *FileHandler) CreateFolder(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	var req service.FolderRequest
	if !bindJSON(c, &req, "invalid folder payload") {
		return
	}
	folder, err := h.service.CreateFolder(c.Request.Context(), actor, c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, folder)
}

// List godoc
// @Summary List files
// @Description Lists one folder level; download links are signed and short-lived
// @Tags Files
// @Produce json
// @Param id path string true "Class ID"
// @Param folder_id query string false "Folder ID (root when empty)"
// @Success 200 {object} response.Envelope
// @Router /classes/{id}/files [get]
func (h *FileHandler) List(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	listing, err := h.service.List(c.Request.Context(), actor, c.Param("id"), optionalQuery(c, "folder_id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, listing, nil)
}

// Upload godoc
// @Summary Upload file
// @Tags Files
// @Accept multipart/form-data
// @Produce json
// @Param id path string true "Class ID"
// @Param file formData file true "File"
// @Param folder_id formData string false "Folder ID"
// @Success 201 {object} response.Envelope
// @Failure 413 {object} response.Envelope
// @Router /classes/{id}/files [post]
func (h *FileHandler) Upload(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	file, header, ok := formFile(c, "file")
	if !ok {
		return
	}
	defer file.Close()

	var folderID *string
	if v := c.PostForm("folder_id"); v != "" {
		folderID = &v
	}
	up := service.Upload{
		Name:        header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        header.Size,
		Body:        file,
	}
	stored, err := h.service.Upload(c.Request.Context(), actor, c.Param("id"), folderID, up)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, stored)
}

// DeleteFile godoc
// @Summary Delete file
// @Tags Files
// @Param id path string true "File ID"
// @Success 204
// @Router /files/{id} [delete]
func (h *FileHandler) DeleteFile(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.DeleteFile(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// DeleteFolder godoc
// @Summary Delete empty folder
// @Tags Files
// @Param id path string true "Folder ID"
// @Success 204
// @Failure 409 {object} response.Envelope
// @Router /folders/{id} [delete]
func (h *FileHandler) DeleteFolder(c *gin.Context) {
	actor, ok := actorFromContext(c)
	if !ok {
		return
	}
	if err := h.service.DeleteFolder(c.Request.Context(), actor, c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}

// Download godoc
// @Summary Download file
// @Description Streams the file behind a signed token; no session required
// @Tags Files
// @Produce octet-stream
// @Param id path string true "File ID"
// @Param token query string true "Signed token"
// @Success 200 {file} binary
// @Failure 401 {object} response.Envelope
// @Failure 403 {object} response.Envelope
// @Router /files/{id}/download [get]
func (h *FileHandler) Download(c *gin.Context) {
	file, body, err := h.service.Open(c.Request.Context(), c.Query("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer body.Close()
	if file.ID != c.Param("id") {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "file not found"))
		return
	}

	contentType := file.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Header("Content-Disposition", "attachment; filename=\""+file.Name+"\"")
	c.Header("Content-Length", strconv.FormatInt(file.Size, 10))
	c.DataFromReader(http.StatusOK, file.Size, contentType, body, nil)
}
