package models

import "time"

// ClassFolder groups files inside a class.
type ClassFolder struct {
	ID        string    `db:"id" json:"id"`
	ClassID   string    `db:"class_id" json:"class_id"`
	ParentID  *string   `db:"parent_id" json:"parent_id,omitempty"`
	Name      string    `db:"name" json:"name"`
	CreatedBy string    `db:"created_by" json:"created_by"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// ClassFile is the persisted descriptor of an uploaded file.
type ClassFile struct {
	ID          string    `db:"id" json:"id"`
	ClassID     string    `db:"class_id" json:"class_id"`
	FolderID    *string   `db:"folder_id" json:"folder_id,omitempty"`
	Name        string    `db:"name" json:"name"`
	URL         string    `db:"url" json:"url"`
	StorageKey  string    `db:"storage_key" json:"-"`
	Size        int64     `db:"size" json:"size"`
	ContentType string    `db:"content_type" json:"type"`
	UploadedBy  string    `db:"uploaded_by" json:"uploaded_by"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`

	DownloadURL string `db:"-" json:"download_url,omitempty"`
}

// FolderListing is the content of one folder level.
type FolderListing struct {
	Folders []ClassFolder `json:"folders"`
	Files   []ClassFile   `json:"files"`
}
