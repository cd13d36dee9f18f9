package models

import (
	"time"

	"github.com/noah-isme/classroom-api/pkg/academic"
)

// Assignment is coursework posted to a class.
type Assignment struct {
	ID                 string     `db:"id" json:"id"`
	ClassID            string     `db:"class_id" json:"class_id"`
	Title              string     `db:"title" json:"title"`
	Description        string     `db:"description" json:"description"`
	DueAt              *time.Time `db:"due_at" json:"due_at,omitempty"`
	TotalPoints        float64    `db:"total_points" json:"total_points"`
	RequiresSubmission bool       `db:"requires_submission" json:"requires_submission"`
	CreatedBy          string     `db:"created_by" json:"created_by"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt          time.Time  `db:"updated_at" json:"updated_at"`
}

// AssignmentSummary adds per-viewer aggregates to an assignment.
type AssignmentSummary struct {
	Assignment
	ClassName      string           `db:"class_name" json:"class_name,omitempty"`
	AssignedCount  int              `db:"assigned_count" json:"assigned_count"`
	SubmittedCount int              `db:"submitted_count" json:"submitted_count"`
	GradedCount    int              `db:"graded_count" json:"graded_count"`
	Submission     *Submission      `db:"-" json:"submission,omitempty"`
	Status         *academic.Status `db:"-" json:"status,omitempty"`
}

// SubmissionStatus is the state of one student's assignment instance.
type SubmissionStatus string

const (
	SubmissionAssigned  SubmissionStatus = "ASSIGNED"
	SubmissionSubmitted SubmissionStatus = "SUBMITTED"
	SubmissionGraded    SubmissionStatus = "GRADED"
)

// Submission is the per-student instance of an assignment.
type Submission struct {
	ID           string           `db:"id" json:"id"`
	AssignmentID string           `db:"assignment_id" json:"assignment_id"`
	StudentID    string           `db:"student_id" json:"student_id"`
	Status       SubmissionStatus `db:"status" json:"status"`
	Attachments  Attachments      `db:"attachments" json:"attachments"`
	SubmittedAt  *time.Time       `db:"submitted_at" json:"submitted_at,omitempty"`
	Marks        *float64         `db:"marks" json:"marks,omitempty"`
	Percentage   *float64         `db:"percentage" json:"percentage,omitempty"`
	IBGrade      *int             `db:"ib_grade" json:"ib_grade,omitempty"`
	Feedback     *string          `db:"feedback" json:"feedback,omitempty"`
	GradedBy     *string          `db:"graded_by" json:"graded_by,omitempty"`
	GradedAt     *time.Time       `db:"graded_at" json:"graded_at,omitempty"`
	CreatedAt    time.Time        `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time        `db:"updated_at" json:"updated_at"`

	StudentName string `db:"student_name" json:"student_name,omitempty"`
}
