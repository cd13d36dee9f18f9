package models

import "time"

// Class is a course taught by one teacher inside a school.
type Class struct {
	ID          string    `db:"id" json:"id"`
	SchoolID    string    `db:"school_id" json:"school_id"`
	TeacherID   string    `db:"teacher_id" json:"teacher_id"`
	YearBatchID *string   `db:"year_batch_id" json:"year_batch_id,omitempty"`
	Name        string    `db:"name" json:"name"`
	Subject     string    `db:"subject" json:"subject"`
	Section     string    `db:"section" json:"section"`
	Color       string    `db:"color" json:"color"`
	Icon        string    `db:"icon" json:"icon"`
	BannerURL   *string   `db:"banner_url" json:"banner_url,omitempty"`
	IsArchived  bool      `db:"is_archived" json:"is_archived"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`

	TeacherName  string `db:"teacher_name" json:"teacher_name,omitempty"`
	StudentCount int    `db:"student_count" json:"student_count"`
}

// ClassFilter selects the classes visible to a viewer.
type ClassFilter struct {
	SchoolID        string
	TeacherID       string
	StudentID       string
	IncludeArchived bool
}

// RosterEntry is a student enrolled in a class.
type RosterEntry struct {
	ClassID       string    `db:"class_id" json:"class_id"`
	StudentID     string    `db:"student_id" json:"student_id"`
	FullName      string    `db:"full_name" json:"full_name"`
	Email         string    `db:"email" json:"email"`
	GradeLevel    *string   `db:"grade_level" json:"grade_level,omitempty"`
	StudentNumber *string   `db:"student_number" json:"student_number,omitempty"`
	JoinedAt      time.Time `db:"joined_at" json:"joined_at"`
}
