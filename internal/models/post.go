package models

import "time"

// PostType categorises stream entries.
type PostType string

const (
	PostAnnouncement PostType = "ANNOUNCEMENT"
	PostMaterial     PostType = "MATERIAL"
	PostAssignment   PostType = "ASSIGNMENT"
)

// Post is an entry in a class stream.
type Post struct {
	ID           string      `db:"id" json:"id"`
	ClassID      string      `db:"class_id" json:"class_id"`
	AuthorID     string      `db:"author_id" json:"author_id"`
	Type         PostType    `db:"type" json:"type"`
	Title        string      `db:"title" json:"title"`
	Body         string      `db:"body" json:"body"`
	AssignmentID *string     `db:"assignment_id" json:"assignment_id,omitempty"`
	Attachments  Attachments `db:"attachments" json:"attachments"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`

	AuthorName string `db:"author_name" json:"author_name,omitempty"`
	Excerpt    string `db:"-" json:"excerpt,omitempty"`
}
