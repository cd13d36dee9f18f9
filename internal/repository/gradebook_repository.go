package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-api/internal/models"
)

// StudentClassGrade is one graded or pending submission of a student, with its class.
type StudentClassGrade struct {
	ClassID     string                  `db:"class_id"`
	ClassName   string                  `db:"class_name"`
	Status      models.SubmissionStatus `db:"status"`
	Marks       *float64                `db:"marks"`
	TotalPoints float64                 `db:"total_points"`
}

// GradebookRepository reads grade matrices.
type GradebookRepository struct {
	db *sqlx.DB
}

// NewGradebookRepository constructs the repository.
func NewGradebookRepository(db *sqlx.DB) *GradebookRepository {
	return &GradebookRepository{db: db}
}

// Cells returns every submission of a class's assignments.
func (r *GradebookRepository) Cells(ctx context.Context, classID string) ([]models.GradebookCell, error) {
	const query = `SELECT s.assignment_id, s.student_id, s.status, s.marks, s.percentage, s.ib_grade
FROM submissions s JOIN assignments a ON a.id = s.assignment_id WHERE a.class_id = $1`
	cells := []models.GradebookCell{}
	if err := r.db.SelectContext(ctx, &cells, query, classID); err != nil {
		return nil, fmt.Errorf("list gradebook cells: %w", err)
	}
	return cells, nil
}

// StudentGrades returns a student's submissions across their active classes.
func (r *GradebookRepository) StudentGrades(ctx context.Context, schoolID, studentID string) ([]StudentClassGrade, error) {
	const query = `SELECT c.id AS class_id, c.name AS class_name, s.status, s.marks, a.total_points
FROM class_students m
JOIN classes c ON c.id = m.class_id
JOIN assignments a ON a.class_id = c.id
JOIN submissions s ON s.assignment_id = a.id AND s.student_id = m.student_id
WHERE m.student_id = $1 AND c.school_id = $2 AND c.is_archived = FALSE
ORDER BY c.name ASC`
	grades := []StudentClassGrade{}
	if err := r.db.SelectContext(ctx, &grades, query, studentID, schoolID); err != nil {
		return nil, fmt.Errorf("list student grades: %w", err)
	}
	return grades, nil
}
