package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/classroom-api/internal/cachekeys"
	"github.com/noah-isme/classroom-api/internal/models"
	"github.com/noah-isme/classroom-api/internal/repository"
	appErrors "github.com/noah-isme/classroom-api/pkg/errors"
	"github.com/noah-isme/classroom-api/pkg/storage"
)

type fileRepository interface {
	CreateFolder(ctx context.Context, folder *models.ClassFolder) error
	FindFolder(ctx context.Context, id string) (*models.ClassFolder, error)
	ListFolders(ctx context.Context, classID string, parentID *string) ([]models.ClassFolder, error)
	DeleteFolder(ctx context.Context, id string) error
	CreateFile(ctx context.Context, file *models.ClassFile) error
	FindFile(ctx context.Context, id string) (*models.ClassFile, error)
	ListFiles(ctx context.Context, classID string, folderID *string) ([]models.ClassFile, error)
	DeleteFile(ctx context.Context, id string) error
}

type downloadSigner interface {
	Generate(subject, key string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (*storage.SignedToken, error)
}

// FileConfig bounds uploads and sets the base path of signed download links.
type FileConfig struct {
	MaxSize      int64
	AllowedMIMEs []string
	DownloadBase string
}

// FolderRequest creates a folder.
type FolderRequest struct {
	Name     string  `json:"name" validate:"required,max=120"`
	ParentID *string `json:"parent_id" validate:"omitempty,uuid"`
}

// Upload is one file streamed from a multipart request.
type Upload struct {
	Name        string
	ContentType string
	Size        int64
	Body        io.Reader
}

// FileService stores class files in the object store and tracks their descriptors.
type FileService struct {
	repo      fileRepository
	classes   classAccessRepository
	store     storage.Store
	signer    downloadSigner
	cache     *CacheService
	validator *validator.Validate
	logger    *zap.Logger
	config    FileConfig
	now       func() time.Time
}

// NewFileService constructs the service.
func NewFileService(repo fileRepository, classes classAccessRepository, store storage.Store, signer downloadSigner, cache *CacheService, validate *validator.Validate, logger *zap.Logger, cfg FileConfig) *FileService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.DownloadBase == "" {
		cfg.DownloadBase = "/api/v1/files"
	}
	return &FileService{
		repo:      repo,
		classes:   classes,
		store:     store,
		signer:    signer,
		cache:     cache,
		validator: newValidator(validate),
		logger:    logger,
		config:    cfg,
		now:       time.Now,
	}
}

// CreateFolder adds a folder at the root of the class or inside parent.
func (s *FileService) CreateFolder(ctx context.Context, actor models.Actor, classID string, req FolderRequest) (*models.ClassFolder, error) {
	class, err := classForManage(ctx, s.classes, actor, classID)
	if err != nil {
		return nil, err
	}
	req.Name = strings.TrimSpace(req.Name)
	if err := s.validator.Struct(req); err != nil {
		return nil, validationError(err, "invalid folder payload")
	}
	if req.ParentID != nil {
		if _, err := s.folderOf(ctx, class.ID, *req.ParentID); err != nil {
			return nil, err
		}
	}
	folder := &models.ClassFolder{ClassID: class.ID, ParentID: req.ParentID, Name: req.Name, CreatedBy: actor.UserID}
	if err := s.repo.CreateFolder(ctx, folder); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, appErrors.Clone(appErrors.ErrConflict, "a folder with this name already exists here")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create folder")
	}
	s.cache.Invalidate(ctx, class.SchoolID, cachekeys.Files(class.ID, stringValue(req.ParentID)))
	return folder, nil
}

// List returns one folder level of a class with signed download links.
func (s *FileService) List(ctx context.Context, actor models.Actor, classID string, folderID *string) (*models.FolderListing, error) {
	class, err := classForView(ctx, s.classes, actor, classID)
	if err != nil {
		return nil, err
	}
	if folderID != nil {
		if _, err := s.folderOf(ctx, class.ID, *folderID); err != nil {
			return nil, err
		}
	}

	var listing models.FolderListing
	_, err = s.cache.Remember(ctx, cachekeys.Files(class.ID, stringValue(folderID)), &listing, func(ctx context.Context) error {
		folders, err := s.repo.ListFolders(ctx, class.ID, folderID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list folders")
		}
		files, err := s.repo.ListFiles(ctx, class.ID, folderID)
		if err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list files")
		}
		listing = models.FolderListing{Folders: folders, Files: files}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for i := range listing.Files {
		listing.Files[i].DownloadURL = s.downloadURL(&listing.Files[i])
	}
	return &listing, nil
}

// Upload stores a file under classes/{classId}/{folder}/ and records its descriptor.
func (s *FileService) Upload(ctx context.Context, actor models.Actor, classID string, folderID *string, up Upload) (*models.ClassFile, error) {
	class, err := classForManage(ctx, s.classes, actor, classID)
	if err != nil {
		return nil, err
	}
	if s.store == nil {
		return nil, appErrors.Clone(appErrors.ErrInternal, "storage not configured")
	}
	if strings.TrimSpace(up.Name) == "" || up.Body == nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file is required")
	}
	if s.config.MaxSize > 0 && up.Size > s.config.MaxSize {
		return nil, appErrors.Clone(appErrors.ErrPayloadTooLarge, fmt.Sprintf("file exceeds %d bytes", s.config.MaxSize))
	}
	contentType := up.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if !s.mimeAllowed(contentType) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "file type not allowed")
	}

	folderName := ""
	if folderID != nil {
		folder, err := s.folderOf(ctx, class.ID, *folderID)
		if err != nil {
			return nil, err
		}
		folderName = folder.Name
	}

	key := storage.ClassFileKey(class.ID, folderName, up.Name, s.now())
	obj, err := s.store.Put(ctx, key, up.Body, contentType)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store file")
	}
	file := &models.ClassFile{
		ClassID:     class.ID,
		FolderID:    folderID,
		Name:        storage.SanitizeName(up.Name),
		URL:         obj.URL,
		StorageKey:  obj.Key,
		Size:        obj.Size,
		ContentType: contentType,
		UploadedBy:  actor.UserID,
	}
	if err := s.repo.CreateFile(ctx, file); err != nil {
		if delErr := s.store.Delete(ctx, obj.Key); delErr != nil {
			s.logger.Warn("failed to remove orphaned upload", zap.String("key", obj.Key), zap.Error(delErr))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to save file")
	}
	file.DownloadURL = s.downloadURL(file)
	s.cache.Invalidate(ctx, class.SchoolID, cachekeys.Files(class.ID, stringValue(folderID)))
	return file, nil
}

// DeleteFile removes the descriptor and the stored object.
func (s *FileService) DeleteFile(ctx context.Context, actor models.Actor, id string) error {
	file, err := s.repo.FindFile(ctx, id)
	if err != nil {
		return notFoundOr(err, "file not found", "failed to load file")
	}
	class, err := classForManage(ctx, s.classes, actor, file.ClassID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteFile(ctx, id); err != nil {
		return notFoundOr(err, "file not found", "failed to delete file")
	}
	if s.store != nil {
		if err := s.store.Delete(ctx, file.StorageKey); err != nil && !errors.Is(err, storage.ErrObjectNotFound) {
			s.logger.Warn("failed to delete stored object", zap.String("key", file.StorageKey), zap.Error(err))
		}
	}
	s.cache.Invalidate(ctx, class.SchoolID, cachekeys.Files(class.ID, stringValue(file.FolderID)))
	return nil
}

// DeleteFolder removes an empty folder.
func (s *FileService) DeleteFolder(ctx context.Context, actor models.Actor, id string) error {
	folder, err := s.repo.FindFolder(ctx, id)
	if err != nil {
		return notFoundOr(err, "folder not found", "failed to load folder")
	}
	class, err := classForManage(ctx, s.classes, actor, folder.ClassID)
	if err != nil {
		return err
	}
	if err := s.repo.DeleteFolder(ctx, id); err != nil {
		if errors.Is(err, repository.ErrNotEmpty) {
			return appErrors.Clone(appErrors.ErrConflict, "folder is not empty")
		}
		return notFoundOr(err, "folder not found", "failed to delete folder")
	}
	s.cache.Invalidate(ctx, class.SchoolID, cachekeys.Files(class.ID, stringValue(folder.ParentID)))
	return nil
}

// Open resolves a signed download token to the stored object.
func (s *FileService) Open(ctx context.Context, token string) (*models.ClassFile, io.ReadCloser, error) {
	if s.signer == nil || s.store == nil {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "downloads are disabled")
	}
	parsed, err := s.signer.Parse(token, false)
	if err != nil {
		if errors.Is(err, storage.ErrTokenExpired) {
			return nil, nil, appErrors.Clone(appErrors.ErrForbidden, "download link expired")
		}
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download link")
	}
	file, err := s.repo.FindFile(ctx, parsed.Subject)
	if err != nil {
		return nil, nil, notFoundOr(err, "file not found", "failed to load file")
	}
	if file.StorageKey != parsed.Key {
		return nil, nil, appErrors.Clone(appErrors.ErrUnauthorized, "invalid download link")
	}
	rc, err := s.store.Open(ctx, file.StorageKey)
	if err != nil {
		if errors.Is(err, storage.ErrObjectNotFound) {
			return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "file content missing")
		}
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open file")
	}
	return file, rc, nil
}

func (s *FileService) folderOf(ctx context.Context, classID, folderID string) (*models.ClassFolder, error) {
	folder, err := s.repo.FindFolder(ctx, folderID)
	if err != nil {
		return nil, notFoundOr(err, "folder not found", "failed to load folder")
	}
	if folder.ClassID != classID {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "folder not found")
	}
	return folder, nil
}

func (s *FileService) downloadURL(file *models.ClassFile) string {
	if s.signer == nil {
		return file.URL
	}
	token, _, err := s.signer.Generate(file.ID, file.StorageKey)
	if err != nil {
		s.logger.Warn("failed to sign download", zap.String("file_id", file.ID), zap.Error(err))
		return file.URL
	}
	return fmt.Sprintf("%s/%s/download?token=%s", strings.TrimRight(s.config.DownloadBase, "/"), file.ID, url.QueryEscape(token))
}

func (s *FileService) mimeAllowed(contentType string) bool {
	if len(s.config.AllowedMIMEs) == 0 {
		return true
	}
	base := strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0])
	for _, allowed := range s.config.AllowedMIMEs {
		if strings.EqualFold(allowed, base) {
			return true
		}
		if strings.HasSuffix(allowed, "/*") && strings.HasPrefix(strings.ToLower(base), strings.ToLower(strings.TrimSuffix(allowed, "*"))) {
			return true
		}
	}
	return false
}

func stringValue(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
