package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-api/internal/models"
)

const (
	folderColumns = `id, class_id, parent_id, name, created_by, created_at`
	fileColumns   = `id, class_id, folder_id, name, url, storage_key, size, content_type, uploaded_by, created_at`
)

// FileRepository persists class folders and file descriptors.
type FileRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewFileRepository constructs the repository.
func NewFileRepository(db *sqlx.DB) *FileRepository {
	return &FileRepository{db: db, now: time.Now}
}

// CreateFolder inserts a folder; a sibling with the same name reports ErrDuplicate.
func (r *FileRepository) CreateFolder(ctx context.Context, folder *models.ClassFolder) error {
	if folder.ID == "" {
		folder.ID = uuid.NewString()
	}
	folder.CreatedAt = r.now().UTC()
	const query = `INSERT INTO class_folders (` + folderColumns + `) VALUES (:id, :class_id, :parent_id, :name, :created_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, folder); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create folder: %w", err)
	}
	return nil
}

// FindFolder returns a folder.
func (r *FileRepository) FindFolder(ctx context.Context, id string) (*models.ClassFolder, error) {
	var folder models.ClassFolder
	if err := r.db.GetContext(ctx, &folder, `SELECT `+folderColumns+` FROM class_folders WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find folder: %w", err)
	}
	return &folder, nil
}

// ListFolders returns the direct subfolders of parentID, or the root folders when it is nil.
func (r *FileRepository) ListFolders(ctx context.Context, classID string, parentID *string) ([]models.ClassFolder, error) {
	folders := []models.ClassFolder{}
	var err error
	if parentID == nil {
		err = r.db.SelectContext(ctx, &folders, `SELECT `+folderColumns+` FROM class_folders WHERE class_id = $1 AND parent_id IS NULL ORDER BY name ASC`, classID)
	} else {
		err = r.db.SelectContext(ctx, &folders, `SELECT `+folderColumns+` FROM class_folders WHERE class_id = $1 AND parent_id = $2 ORDER BY name ASC`, classID, *parentID)
	}
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	return folders, nil
}

// DeleteFolder removes a folder that holds neither files nor subfolders.
func (r *FileRepository) DeleteFolder(ctx context.Context, id string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin folder transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists bool
	if err = tx.GetContext(ctx, &exists, `SELECT TRUE FROM class_folders WHERE id = $1 FOR UPDATE`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock folder: %w", err)
	}
	var children int
	const count = `SELECT (SELECT COUNT(*) FROM class_files WHERE folder_id = $1) + (SELECT COUNT(*) FROM class_folders WHERE parent_id = $1)`
	if err = tx.GetContext(ctx, &children, count, id); err != nil {
		return fmt.Errorf("count folder content: %w", err)
	}
	if children > 0 {
		err = ErrNotEmpty
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM class_folders WHERE id = $1`, id); err != nil {
		if isForeignKeyViolation(err) {
			err = ErrNotEmpty
			return err
		}
		return fmt.Errorf("delete folder: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit folder: %w", err)
	}
	return nil
}

// CreateFile persists a descriptor of an uploaded object.
func (r *FileRepository) CreateFile(ctx context.Context, file *models.ClassFile) error {
	if file.ID == "" {
		file.ID = uuid.NewString()
	}
	file.CreatedAt = r.now().UTC()
	const query = `INSERT INTO class_files (` + fileColumns + `) VALUES (:id, :class_id, :folder_id, :name, :url, :storage_key, :size, :content_type, :uploaded_by, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, file); err != nil {
		return fmt.Errorf("create file: %w", err)
	}
	return nil
}

// FindFile returns a file descriptor.
func (r *FileRepository) FindFile(ctx context.Context, id string) (*models.ClassFile, error) {
	var file models.ClassFile
	if err := r.db.GetContext(ctx, &file, `SELECT `+fileColumns+` FROM class_files WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find file: %w", err)
	}
	return &file, nil
}

// ListFiles returns the files of one folder level.
func (r *FileRepository) ListFiles(ctx context.Context, classID string, folderID *string) ([]models.ClassFile, error) {
	files := []models.ClassFile{}
	var err error
	if folderID == nil {
		err = r.db.SelectContext(ctx, &files, `SELECT `+fileColumns+` FROM class_files WHERE class_id = $1 AND folder_id IS NULL ORDER BY created_at DESC`, classID)
	} else {
		err = r.db.SelectContext(ctx, &files, `SELECT `+fileColumns+` FROM class_files WHERE class_id = $1 AND folder_id = $2 ORDER BY created_at DESC`, classID, *folderID)
	}
	if err != nil {
		return nil, fmt.Errorf("list files: %w", err)
	}
	return files, nil
}

// DeleteFile removes a file descriptor.
func (r *FileRepository) DeleteFile(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM class_files WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete file: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
