package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-api/internal/models"
)

// CalendarRepository reads assignment due dates for the calendar views.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository constructs a calendar repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// Items returns assignments due in [from, to) for the classes selected by scope. Student
// scopes also carry the student's own submission state.
func (r *CalendarRepository) Items(ctx context.Context, scope models.ClassFilter, from, to time.Time) ([]models.CalendarItem, error) {
	var (
		query string
		args  []interface{}
	)
	switch {
	case scope.StudentID != "":
		query = `SELECT a.id AS assignment_id, c.id AS class_id, c.name AS class_name, c.color AS class_color, a.title, a.due_at,
s.submitted_at, COALESCE(s.status = 'GRADED', FALSE) AS graded, a.requires_submission
FROM assignments a
JOIN classes c ON c.id = a.class_id
JOIN class_students m ON m.class_id = c.id AND m.student_id = $1
LEFT JOIN submissions s ON s.assignment_id = a.id AND s.student_id = $1
WHERE c.school_id = $2 AND c.is_archived = FALSE AND a.due_at >= $3 AND a.due_at < $4
ORDER BY a.due_at ASC`
		args = []interface{}{scope.StudentID, scope.SchoolID, from, to}
	case scope.TeacherID != "":
		query = `SELECT a.id AS assignment_id, c.id AS class_id, c.name AS class_name, c.color AS class_color, a.title, a.due_at,
NULL AS submitted_at, FALSE AS graded, a.requires_submission
FROM assignments a JOIN classes c ON c.id = a.class_id
WHERE c.teacher_id = $1 AND c.school_id = $2 AND c.is_archived = FALSE AND a.due_at >= $3 AND a.due_at < $4
ORDER BY a.due_at ASC`
		args = []interface{}{scope.TeacherID, scope.SchoolID, from, to}
	default:
		query = `SELECT a.id AS assignment_id, c.id AS class_id, c.name AS class_name, c.color AS class_color, a.title, a.due_at,
NULL AS submitted_at, FALSE AS graded, a.requires_submission
FROM assignments a JOIN classes c ON c.id = a.class_id
WHERE c.school_id = $1 AND c.is_archived = FALSE AND a.due_at >= $2 AND a.due_at < $3
ORDER BY a.due_at ASC`
		args = []interface{}{scope.SchoolID, from, to}
	}

	items := []models.CalendarItem{}
	if err := r.db.SelectContext(ctx, &items, query, args...); err != nil {
		return nil, fmt.Errorf("list calendar items: %w", err)
	}
	return items, nil
}
