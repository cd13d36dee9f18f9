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

const assignmentColumns = `a.id, a.class_id, a.title, a.description, a.due_at, a.total_points, a.requires_submission, a.created_by, a.created_at, a.updated_at`

// AssignmentRepository persists assignments.
type AssignmentRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewAssignmentRepository constructs the repository.
func NewAssignmentRepository(db *sqlx.DB) *AssignmentRepository {
	return &AssignmentRepository{db: db, now: time.Now}
}

// Create inserts the assignment, one ASSIGNED submission per rostered student and, when
// post is non-nil, the stream entry announcing it. Everything commits together.
func (r *AssignmentRepository) Create(ctx context.Context, assignment *models.Assignment, post *models.Post) (err error) {
	if assignment.ID == "" {
		assignment.ID = uuid.NewString()
	}
	now := r.now().UTC()
	assignment.CreatedAt = now
	assignment.UpdatedAt = now

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin assignment transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	const insert = `INSERT INTO assignments (id, class_id, title, description, due_at, total_points, requires_submission, created_by, created_at, updated_at)
VALUES (:id, :class_id, :title, :description, :due_at, :total_points, :requires_submission, :created_by, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insert, assignment); err != nil {
		return fmt.Errorf("create assignment: %w", err)
	}

	const instances = `INSERT INTO submissions (id, assignment_id, student_id, status, attachments, created_at, updated_at)
SELECT gen_random_uuid(), $1, cs.student_id, 'ASSIGNED', '[]', $3, $3 FROM class_students cs WHERE cs.class_id = $2
ON CONFLICT (assignment_id, student_id) DO NOTHING`
	if _, err = tx.ExecContext(ctx, instances, assignment.ID, assignment.ClassID, now); err != nil {
		return fmt.Errorf("create submissions: %w", err)
	}

	if post != nil {
		post.AssignmentID = &assignment.ID
		if err = insertPost(ctx, tx, post, now); err != nil {
			return err
		}
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit assignment: %w", err)
	}
	return nil
}

// FindByID returns an assignment.
func (r *AssignmentRepository) FindByID(ctx context.Context, id string) (*models.Assignment, error) {
	var assignment models.Assignment
	if err := r.db.GetContext(ctx, &assignment, `SELECT `+assignmentColumns+` FROM assignments a WHERE a.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find assignment: %w", err)
	}
	return &assignment, nil
}

// ListByClass returns a class's assignments with submission counts, soonest due first.
func (r *AssignmentRepository) ListByClass(ctx context.Context, classID string) ([]models.AssignmentSummary, error) {
	query := `SELECT ` + assignmentColumns + `,
COUNT(s.id) AS assigned_count,
COUNT(s.id) FILTER (WHERE s.status IN ('SUBMITTED', 'GRADED')) AS submitted_count,
COUNT(s.id) FILTER (WHERE s.status = 'GRADED') AS graded_count
FROM assignments a LEFT JOIN submissions s ON s.assignment_id = a.id
WHERE a.class_id = $1 GROUP BY a.id ORDER BY a.due_at ASC NULLS LAST, a.created_at DESC`
	items := []models.AssignmentSummary{}
	if err := r.db.SelectContext(ctx, &items, query, classID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	return items, nil
}

// ListForStudent returns a class's assignments paired with the student's own submission.
func (r *AssignmentRepository) ListForStudent(ctx context.Context, classID, studentID string) ([]models.AssignmentSummary, error) {
	query := `SELECT ` + assignmentColumns + ` FROM assignments a WHERE a.class_id = $1 ORDER BY a.due_at ASC NULLS LAST, a.created_at DESC`
	items := []models.AssignmentSummary{}
	if err := r.db.SelectContext(ctx, &items, query, classID); err != nil {
		return nil, fmt.Errorf("list assignments: %w", err)
	}
	if len(items) == 0 {
		return items, nil
	}

	subs := []models.Submission{}
	const subQuery = `SELECT ` + submissionColumns + ` FROM submissions s JOIN assignments a ON a.id = s.assignment_id WHERE a.class_id = $1 AND s.student_id = $2`
	if err := r.db.SelectContext(ctx, &subs, subQuery, classID, studentID); err != nil {
		return nil, fmt.Errorf("list student submissions: %w", err)
	}
	byAssignment := make(map[string]*models.Submission, len(subs))
	for i := range subs {
		byAssignment[subs[i].AssignmentID] = &subs[i]
	}
	for i := range items {
		items[i].Submission = byAssignment[items[i].ID]
	}
	return items, nil
}

// Update modifies an assignment.
func (r *AssignmentRepository) Update(ctx context.Context, assignment *models.Assignment) error {
	assignment.UpdatedAt = r.now().UTC()
	const query = `UPDATE assignments SET title = :title, description = :description, due_at = :due_at, total_points = :total_points, requires_submission = :requires_submission, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, assignment)
	if err != nil {
		return fmt.Errorf("update assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes an assignment; submissions and its stream post cascade.
func (r *AssignmentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM assignments WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete assignment: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
