package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/noah-isme/classroom-api/internal/models"
)

const inviteColumns = `id, school_id, email, role, full_name, grade_level, student_number, class_ids, status, invited_by, last_sent_at, created_at, expires_at`

// SignUpBuilder turns the consumed invite (nil when none matched) into the rows to insert.
// A non-nil school is created alongside the user.
type SignUpBuilder func(invite *models.PendingInvite) (*models.User, *models.School, error)

// SignUpResult reports what the sign-up transaction wrote.
type SignUpResult struct {
	User     models.User
	School   *models.School
	Invite   *models.PendingInvite
	Enrolled []string
}

// AccountRepository owns the sign-up transaction.
type AccountRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewAccountRepository constructs the repository.
func NewAccountRepository(db *sqlx.DB) *AccountRepository {
	return &AccountRepository{db: db, now: time.Now}
}

// SignUp creates a profile in one transaction: the matching pending invite is deleted with
// DELETE ... RETURNING so concurrent sign-ups cannot both consume it, then the profile, an
// optional new school, roster memberships and the audit entry are written. Any failure
// rolls everything back.
func (r *AccountRepository) SignUp(ctx context.Context, email string, build SignUpBuilder, audit *models.AuditLog) (result *SignUpResult, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin sign-up transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var taken bool
	if err = tx.GetContext(ctx, &taken, `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`, email); err != nil {
		return nil, fmt.Errorf("check user email: %w", err)
	}
	if taken {
		err = ErrEmailTaken
		return nil, err
	}

	now := r.now().UTC()
	var invite models.PendingInvite
	consumeQuery := `DELETE FROM pending_invites WHERE LOWER(email) = LOWER($1) AND status = 'PENDING' AND expires_at > $2 RETURNING ` + inviteColumns
	var consumed *models.PendingInvite
	if err = tx.GetContext(ctx, &invite, consumeQuery, email, now); err != nil {
		if !errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("consume invite: %w", err)
		}
		err = nil
	} else {
		consumed = &invite
	}

	user, school, err := build(consumed)
	if err != nil {
		return nil, err
	}

	if school != nil {
		const insertSchool = `INSERT INTO schools (id, name, accent_color, admin_ids, created_at, updated_at) VALUES (:id, :name, :accent_color, :admin_ids, :created_at, :updated_at)`
		if _, err = tx.NamedExecContext(ctx, insertSchool, school); err != nil {
			return nil, fmt.Errorf("create school: %w", err)
		}
	}

	const insertUser = `INSERT INTO users (id, school_id, email, password_hash, full_name, role, grade_level, student_number, active, created_at, updated_at) VALUES (:id, :school_id, :email, :password_hash, :full_name, :role, :grade_level, :student_number, :active, :created_at, :updated_at)`
	if _, err = tx.NamedExecContext(ctx, insertUser, user); err != nil {
		if isUniqueViolation(err) {
			err = ErrEmailTaken
			return nil, err
		}
		return nil, fmt.Errorf("create user: %w", err)
	}

	if consumed != nil && user.Role == models.RoleAdmin {
		const appendAdmin = `UPDATE schools SET admin_ids = array_append(admin_ids, $2), updated_at = $3 WHERE id = $1 AND NOT ($2 = ANY(admin_ids))`
		if _, err = tx.ExecContext(ctx, appendAdmin, user.SchoolID, user.ID, now); err != nil {
			return nil, fmt.Errorf("register invited admin: %w", err)
		}
	}

	enrolled := []string{}
	if consumed != nil && user.Role == models.RoleStudent && len(consumed.ClassIDs) > 0 {
		const enroll = `INSERT INTO class_students (class_id, student_id, joined_at)
SELECT id, $1, $2 FROM classes WHERE school_id = $3 AND id::text = ANY($4)
ON CONFLICT (class_id, student_id) DO NOTHING RETURNING class_id`
		if err = tx.SelectContext(ctx, &enrolled, enroll, user.ID, now, user.SchoolID, pq.Array(consumed.ClassIDs)); err != nil {
			return nil, fmt.Errorf("enroll invited student: %w", err)
		}
		if len(enrolled) > 0 {
			if _, err = tx.ExecContext(ctx, backfillSubmissions, user.ID, pq.Array(enrolled), now); err != nil {
				return nil, fmt.Errorf("create submissions for invited student: %w", err)
			}
		}
	}

	if audit != nil {
		audit.UserID = &user.ID
		audit.ResourceID = &user.ID
		if err = insertAuditLog(ctx, tx, audit); err != nil {
			return nil, err
		}
	}

	if err = tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit sign-up: %w", err)
	}
	return &SignUpResult{User: *user, School: school, Invite: consumed, Enrolled: enrolled}, nil
}

// backfillSubmissions creates ASSIGNED instances of existing assignments for one student across classes.
const backfillSubmissions = `INSERT INTO submissions (id, assignment_id, student_id, status, attachments, created_at, updated_at)
SELECT gen_random_uuid(), a.id, $1, 'ASSIGNED', '[]', $3, $3 FROM assignments a WHERE a.class_id::text = ANY($2)
ON CONFLICT (assignment_id, student_id) DO NOTHING`
