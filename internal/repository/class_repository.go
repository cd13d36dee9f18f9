package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/classroom-api/internal/models"
)

const classSelect = `SELECT c.id, c.school_id, c.teacher_id, c.year_batch_id, c.name, c.subject, c.section, c.color, c.icon, c.banner_url, c.is_archived, c.created_at, c.updated_at,
COALESCE(u.full_name, '') AS teacher_name,
(SELECT COUNT(*) FROM class_students cs WHERE cs.class_id = c.id) AS student_count
FROM classes c LEFT JOIN users u ON u.id = c.teacher_id`

// ClassRepository manages persistence for classes and their rosters.
type ClassRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewClassRepository constructs a new class repository.
func NewClassRepository(db *sqlx.DB) *ClassRepository {
	return &ClassRepository{db: db, now: time.Now}
}

// List returns the classes visible for filter. A student filter selects by roster membership,
// a teacher filter by teacher and school, otherwise every class of the school.
func (r *ClassRepository) List(ctx context.Context, filter models.ClassFilter) ([]models.Class, error) {
	var (
		query string
		args  []interface{}
	)
	switch {
	case filter.StudentID != "":
		query = classSelect + ` JOIN class_students m ON m.class_id = c.id WHERE m.student_id = $1 AND c.school_id = $2`
		args = []interface{}{filter.StudentID, filter.SchoolID}
	case filter.TeacherID != "":
		query = classSelect + ` WHERE c.teacher_id = $1 AND c.school_id = $2`
		args = []interface{}{filter.TeacherID, filter.SchoolID}
	default:
		query = classSelect + ` WHERE c.school_id = $1`
		args = []interface{}{filter.SchoolID}
	}
	if !filter.IncludeArchived {
		query += " AND c.is_archived = FALSE"
	}
	query += " ORDER BY c.created_at DESC"

	classes := []models.Class{}
	if err := r.db.SelectContext(ctx, &classes, query, args...); err != nil {
		return nil, fmt.Errorf("list classes: %w", err)
	}
	return classes, nil
}

// FindByID returns a class of the school.
func (r *ClassRepository) FindByID(ctx context.Context, schoolID, id string) (*models.Class, error) {
	var class models.Class
	if err := r.db.GetContext(ctx, &class, classSelect+` WHERE c.id = $1 AND c.school_id = $2`, id, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find class: %w", err)
	}
	return &class, nil
}

// Create persists a class record.
func (r *ClassRepository) Create(ctx context.Context, class *models.Class) error {
	if class.ID == "" {
		class.ID = uuid.NewString()
	}
	now := r.now().UTC()
	if class.CreatedAt.IsZero() {
		class.CreatedAt = now
	}
	class.UpdatedAt = now

	const query = `INSERT INTO classes (id, school_id, teacher_id, year_batch_id, name, subject, section, color, icon, banner_url, is_archived, created_at, updated_at)
VALUES (:id, :school_id, :teacher_id, :year_batch_id, :name, :subject, :section, :color, :icon, :banner_url, :is_archived, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, class); err != nil {
		return fmt.Errorf("create class: %w", err)
	}
	return nil
}

// Update modifies the editable fields of a class.
func (r *ClassRepository) Update(ctx context.Context, class *models.Class) error {
	class.UpdatedAt = r.now().UTC()
	const query = `UPDATE classes SET name = :name, subject = :subject, section = :section, color = :color, icon = :icon, banner_url = :banner_url, year_batch_id = :year_batch_id, updated_at = :updated_at
WHERE id = :id AND school_id = :school_id`
	res, err := r.db.NamedExecContext(ctx, query, class)
	if err != nil {
		return fmt.Errorf("update class: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// SetArchived flips the archive flag.
func (r *ClassRepository) SetArchived(ctx context.Context, schoolID, id string, archived bool) error {
	res, err := r.db.ExecContext(ctx, `UPDATE classes SET is_archived = $3, updated_at = $4 WHERE id = $1 AND school_id = $2`, id, schoolID, archived, r.now().UTC())
	if err != nil {
		return fmt.Errorf("archive class: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a class with its roster, coursework and file tree, and returns the storage
// keys of the removed files so the caller can drop the objects after commit.
func (r *ClassRepository) Delete(ctx context.Context, schoolID, id string) (keys []string, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin class delete: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists bool
	if err = tx.GetContext(ctx, &exists, `SELECT TRUE FROM classes WHERE id = $1 AND school_id = $2 FOR UPDATE`, id, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("lock class: %w", err)
	}

	keys = []string{}
	if err = tx.SelectContext(ctx, &keys, `DELETE FROM class_files WHERE class_id = $1 RETURNING storage_key`, id); err != nil {
		return nil, fmt.Errorf("delete class files: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM class_folders WHERE class_id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete class folders: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM classes WHERE id = $1`, id); err != nil {
		return nil, fmt.Errorf("delete class: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit class delete: %w", err)
	}
	return keys, nil
}

// Roster lists the students enrolled in a class.
func (r *ClassRepository) Roster(ctx context.Context, classID string) ([]models.RosterEntry, error) {
	const query = `SELECT cs.class_id, cs.student_id, u.full_name, u.email, u.grade_level, u.student_number, cs.joined_at
FROM class_students cs JOIN users u ON u.id = cs.student_id WHERE cs.class_id = $1 ORDER BY u.full_name ASC`
	roster := []models.RosterEntry{}
	if err := r.db.SelectContext(ctx, &roster, query, classID); err != nil {
		return nil, fmt.Errorf("list roster: %w", err)
	}
	return roster, nil
}

// IsMember reports whether the student is on the class roster.
func (r *ClassRepository) IsMember(ctx context.Context, classID, studentID string) (bool, error) {
	var ok bool
	if err := r.db.GetContext(ctx, &ok, `SELECT EXISTS (SELECT 1 FROM class_students WHERE class_id = $1 AND student_id = $2)`, classID, studentID); err != nil {
		return false, fmt.Errorf("check roster membership: %w", err)
	}
	return ok, nil
}

// AddStudents enrolls students of the class's school, skipping existing members, and creates
// submission rows of existing assignments for the newly enrolled ones. It returns the ids that were added.
func (r *ClassRepository) AddStudents(ctx context.Context, schoolID, classID string, studentIDs []string) (added []string, err error) {
	if len(studentIDs) == 0 {
		return []string{}, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin roster transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := r.now().UTC()
	const enroll = `INSERT INTO class_students (class_id, student_id, joined_at)
SELECT $1, u.id, $2 FROM users u WHERE u.school_id = $3 AND u.role = 'STUDENT' AND u.id::text = ANY($4)
ON CONFLICT (class_id, student_id) DO NOTHING RETURNING student_id`
	added = []string{}
	if err = tx.SelectContext(ctx, &added, enroll, classID, now, schoolID, pq.Array(studentIDs)); err != nil {
		return nil, fmt.Errorf("enroll students: %w", err)
	}
	if len(added) > 0 {
		const backfill = `INSERT INTO submissions (id, assignment_id, student_id, status, attachments, created_at, updated_at)
SELECT gen_random_uuid(), a.id, s.id, 'ASSIGNED', '[]', $3, $3 FROM assignments a CROSS JOIN UNNEST($2::uuid[]) AS s(id)
WHERE a.class_id = $1 ON CONFLICT (assignment_id, student_id) DO NOTHING`
		if _, err = tx.ExecContext(ctx, backfill, classID, pq.Array(added), now); err != nil {
			return nil, fmt.Errorf("create submissions for new students: %w", err)
		}
	}
	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit roster: %w", err)
	}
	return added, nil
}

// RemoveStudent drops a student from the roster along with their submissions for the class.
func (r *ClassRepository) RemoveStudent(ctx context.Context, classID, studentID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin roster transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	res, err := tx.ExecContext(ctx, `DELETE FROM class_students WHERE class_id = $1 AND student_id = $2`, classID, studentID)
	if err != nil {
		return fmt.Errorf("remove student: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = sql.ErrNoRows
		return err
	}
	if _, err = tx.ExecContext(ctx, `DELETE FROM submissions WHERE student_id = $2 AND assignment_id IN (SELECT id FROM assignments WHERE class_id = $1)`, classID, studentID); err != nil {
		return fmt.Errorf("remove student submissions: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit roster: %w", err)
	}
	return nil
}

// StudentIDs returns the ids of every rostered student of a class.
func (r *ClassRepository) StudentIDs(ctx context.Context, classID string) ([]string, error) {
	ids := []string{}
	if err := r.db.SelectContext(ctx, &ids, `SELECT student_id FROM class_students WHERE class_id = $1`, classID); err != nil {
		return nil, fmt.Errorf("list roster ids: %w", err)
	}
	return ids, nil
}
