package handler

import (
	"bytes"
	"context"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/service"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
)

type fileServiceMock struct {
	uploaded   []byte
	upload     service.Upload
	folderID   *string
	listFolder *string
	openFile   *models.ClassFile
	openErr    error
}

func (m *fileServiceMock) CreateFolder(_ context.Context, _ models.Actor, classID string, req service.FolderRequest) (*models.ClassFolder, error) {
	return &models.ClassFolder{ID: "folder-1", ClassID: classID}, nil
}

func (m *fileServiceMock) List(_ context.Context, _ models.Actor, _ string, folderID *string) (*models.FolderListing, error) {
	m.listFolder = folderID
	return &models.FolderListing{}, nil
}

func (m *fileServiceMock) Upload(_ context.Context, _ models.Actor, classID string, folderID *string, up service.Upload) (*models.ClassFile, error) {
	body, err := io.ReadAll(up.Body)
	if err != nil {
		return nil, err
	}
	m.uploaded = body
	m.upload = up
	m.folderID = folderID
	return &models.ClassFile{ID: "file-1", ClassID: classID, Name: up.Name, Size: up.Size}, nil
}

func (m *fileServiceMock) DeleteFile(context.Context, models.Actor, string) error   { return nil }
func (m *fileServiceMock) DeleteFolder(context.Context, models.Actor, string) error { return nil }

func (m *fileServiceMock) Open(context.Context, string) (*models.ClassFile, io.ReadCloser, error) {
	if m.openErr != nil {
		return nil, nil, m.openErr
	}
	return m.openFile, io.NopCloser(strings.NewReader("lab notes")), nil
}

func TestFileHandlerUploadMultipart(t *testing.T) {
	svc := &fileServiceMock{}
	handler := NewFileHandler(svc)

	var body bytes.Buffer
	writer := multipart.NewWriter(&body)
	part, err := writer.CreateFormFile("file", "notes.txt")
	require.NoError(t, err)
	_, _ = part.Write([]byte("lab notes"))
	require.NoError(t, writer.WriteField("folder_id", "folder-1"))
	require.NoError(t, writer.Close())

	c, rec := newTestContext(models.RoleTeacher)
	req := httptest.NewRequest(http.MethodPost, "/classes/class-1/files", &body)
	req.Header.Set("Content-Type", writer.FormDataContentType())
	c.Request = req
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}

	handler.Upload(c)

	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "lab notes", string(svc.uploaded))
	assert.Equal(t, "notes.txt", svc.upload.Name)
	assert.Equal(t, int64(9), svc.upload.Size)
	require.NotNil(t, svc.folderID)
	assert.Equal(t, "folder-1", *svc.folderID)
}

func TestFileHandlerUploadRequiresFile(t *testing.T) {
	handler := NewFileHandler(&fileServiceMock{})
	c, rec := newTestContext(models.RoleTeacher)
	c.Request = httptest.NewRequest(http.MethodPost, "/classes/class-1/files", nil)
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}

	handler.Upload(c)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFileHandlerListFolderQuery(t *testing.T) {
	svc := &fileServiceMock{}
	handler := NewFileHandler(svc)
	c, rec := newTestContext(models.RoleStudent)
	c.Request = httptest.NewRequest(http.MethodGet, "/classes/class-1/files?folder_id=folder-2", nil)
	c.Params = gin.Params{{Key: "id", Value: "class-1"}}

	handler.List(c)

	require.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, svc.listFolder)
	assert.Equal(t, "folder-2", *svc.listFolder)
}

func TestFileHandlerDownloadStreams(t *testing.T) {
	handler := NewFileHandler(&fileServiceMock{openFile: &models.ClassFile{
		ID: "file-1", Name: "notes.txt", Size: 9, ContentType: "text/plain",
	}})
	c, rec := newTestContext("")
	c.Request = httptest.NewRequest(http.MethodGet, "/files/file-1/download?token=abc", nil)
	c.Params = gin.Params{{Key: "id", Value: "file-1"}}

	handler.Download(c)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "lab notes", rec.Body.String())
	assert.Equal(t, "text/plain", rec.Header().Get("Content-Type"))
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "notes.txt")
}

func TestFileHandlerDownloadRejectsOtherFile(t *testing.T) {
	handler := NewFileHandler(&fileServiceMock{openFile: &models.ClassFile{ID: "file-1", Name: "notes.txt", Size: 9}})
	c, rec := newTestContext("")
	c.Request = httptest.NewRequest(http.MethodGet, "/files/file-2/download?token=abc", nil)
	c.Params = gin.Params{{Key: "id", Value: "file-2"}}

	handler.Download(c)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestFileHandlerDownloadExpiredToken(t *testing.T) {
	handler := NewFileHandler(&fileServiceMock{openErr: appErrors.Clone(appErrors.ErrForbidden, "download link expired")})
	c, rec := newTestContext("")
	c.Request = httptest.NewRequest(http.MethodGet, "/files/file-1/download?token=old", nil)
	c.Params = gin.Params{{Key: "id", Value: "file-1"}}

	handler.Download(c)

	assert.Equal(t, http.StatusForbidden, rec.Code)
}
