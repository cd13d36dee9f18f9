package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/noah-isme/classroom-api/internal/models"
)

const submissionColumns = `s.id, s.assignment_id, s.student_id, s.status, s.attachments, s.submitted_at, s.marks, s.percentage, s.ib_grade, s.feedback, s.graded_by, s.graded_at, s.created_at, s.updated_at`

// SubmissionRepository persists per-student assignment instances.
type SubmissionRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewSubmissionRepository constructs the repository.
func NewSubmissionRepository(db *sqlx.DB) *SubmissionRepository {
	return &SubmissionRepository{db: db, now: time.Now}
}

// ListByAssignment returns every submission of an assignment with student names.
func (r *SubmissionRepository) ListByAssignment(ctx context.Context, assignmentID string) ([]models.Submission, error) {
	const query = `SELECT ` + submissionColumns + `, u.full_name AS student_name FROM submissions s JOIN users u ON u.id = s.student_id
WHERE s.assignment_id = $1 ORDER BY u.full_name ASC`
	subs := []models.Submission{}
	if err := r.db.SelectContext(ctx, &subs, query, assignmentID); err != nil {
		return nil, fmt.Errorf("list submissions: %w", err)
	}
	return subs, nil
}

// FindByID returns one submission.
func (r *SubmissionRepository) FindByID(ctx context.Context, id string) (*models.Submission, error) {
	var sub models.Submission
	if err := r.db.GetContext(ctx, &sub, `SELECT `+submissionColumns+` FROM submissions s WHERE s.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &sub, nil
}

// FindForStudent returns the student's instance of an assignment.
func (r *SubmissionRepository) FindForStudent(ctx context.Context, assignmentID, studentID string) (*models.Submission, error) {
	var sub models.Submission
	const query = `SELECT ` + submissionColumns + ` FROM submissions s WHERE s.assignment_id = $1 AND s.student_id = $2`
	if err := r.db.GetContext(ctx, &sub, query, assignmentID, studentID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find submission: %w", err)
	}
	return &sub, nil
}

// Submit records a student's hand-in. Graded submissions are left untouched and report sql.ErrNoRows.
func (r *SubmissionRepository) Submit(ctx context.Context, sub *models.Submission) error {
	now := r.now().UTC()
	sub.Status = models.SubmissionSubmitted
	sub.SubmittedAt = &now
	sub.UpdatedAt = now
	const query = `UPDATE submissions SET status = :status, attachments = :attachments, submitted_at = :submitted_at, updated_at = :updated_at
WHERE id = :id AND status <> 'GRADED'`
	res, err := r.db.NamedExecContext(ctx, query, sub)
	if err != nil {
		return fmt.Errorf("submit: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Grade stores marks, derived percentage and IB grade.
func (r *SubmissionRepository) Grade(ctx context.Context, sub *models.Submission) error {
	now := r.now().UTC()
	sub.Status = models.SubmissionGraded
	sub.GradedAt = &now
	sub.UpdatedAt = now
	const query = `UPDATE submissions SET status = :status, marks = :marks, percentage = :percentage, ib_grade = :ib_grade, feedback = :feedback, graded_by = :graded_by, graded_at = :graded_at, updated_at = :updated_at
WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, sub)
	if err != nil {
		return fmt.Errorf("grade submission: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
