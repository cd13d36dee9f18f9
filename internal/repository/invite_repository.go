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

// InviteRepository persists pending invites.
type InviteRepository struct {
	db *sqlx.DB
}

// NewInviteRepository constructs the repository.
func NewInviteRepository(db *sqlx.DB) *InviteRepository {
	return &InviteRepository{db: db}
}

// Create inserts an invite unless the e-mail already has a profile or a pending invite.
func (r *InviteRepository) Create(ctx context.Context, invite *models.PendingInvite) (err error) {
	if invite.ID == "" {
		invite.ID = uuid.NewString()
	}
	if invite.CreatedAt.IsZero() {
		invite.CreatedAt = time.Now().UTC()
	}
	if invite.Status == "" {
		invite.Status = models.InviteStatusPending
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin invite transaction: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var taken bool
	if err = tx.GetContext(ctx, &taken, `SELECT EXISTS (SELECT 1 FROM users WHERE LOWER(email) = LOWER($1))`, invite.Email); err != nil {
		return fmt.Errorf("check user email: %w", err)
	}
	if taken {
		err = ErrEmailTaken
		return err
	}

	const query = `INSERT INTO pending_invites (id, school_id, email, role, full_name, grade_level, student_number, class_ids, status, invited_by, last_sent_at, created_at, expires_at)
VALUES (:id, :school_id, :email, :role, :full_name, :grade_level, :student_number, :class_ids, :status, :invited_by, :last_sent_at, :created_at, :expires_at)`
	if _, err = tx.NamedExecContext(ctx, query, invite); err != nil {
		if isUniqueViolation(err) {
			err = ErrDuplicate
			return err
		}
		return fmt.Errorf("create invite: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit invite: %w", err)
	}
	return nil
}

// FindByID returns an invite of a school.
func (r *InviteRepository) FindByID(ctx context.Context, schoolID, id string) (*models.PendingInvite, error) {
	var invite models.PendingInvite
	query := `SELECT ` + inviteColumns + ` FROM pending_invites WHERE id = $1 AND school_id = $2`
	if err := r.db.GetContext(ctx, &invite, query, id, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find invite: %w", err)
	}
	return &invite, nil
}

// List returns the invites of a school, newest first.
func (r *InviteRepository) List(ctx context.Context, filter models.InviteFilter) ([]models.PendingInvite, error) {
	query := `SELECT ` + inviteColumns + ` FROM pending_invites WHERE school_id = $1`
	args := []interface{}{filter.SchoolID}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND status = $%d", len(args))
	}
	if filter.Role != nil {
		args = append(args, *filter.Role)
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	query += " ORDER BY created_at DESC"

	invites := []models.PendingInvite{}
	if err := r.db.SelectContext(ctx, &invites, query, args...); err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	return invites, nil
}

// Delete removes an invite of a school.
func (r *InviteRepository) Delete(ctx context.Context, schoolID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM pending_invites WHERE id = $1 AND school_id = $2`, id, schoolID)
	if err != nil {
		return fmt.Errorf("delete invite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Renew re-opens an invite with a new expiry.
func (r *InviteRepository) Renew(ctx context.Context, schoolID, id string, expiresAt time.Time) error {
	const query = `UPDATE pending_invites SET status = 'PENDING', expires_at = $3 WHERE id = $1 AND school_id = $2`
	res, err := r.db.ExecContext(ctx, query, id, schoolID, expiresAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("renew invite: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// MarkSent records a delivered invitation e-mail.
func (r *InviteRepository) MarkSent(ctx context.Context, id string, at time.Time) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE pending_invites SET last_sent_at = $2 WHERE id = $1`, id, at); err != nil {
		return fmt.Errorf("mark invite sent: %w", err)
	}
	return nil
}

// ExpireBefore flags pending invites whose expiry passed and returns the affected schools.
func (r *InviteRepository) ExpireBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	const query = `UPDATE pending_invites SET status = 'EXPIRED' WHERE status = 'PENDING' AND expires_at <= $1 RETURNING school_id`
	schools := []string{}
	if err := r.db.SelectContext(ctx, &schools, query, cutoff); err != nil {
		return nil, fmt.Errorf("expire invites: %w", err)
	}
	return dedupe(schools), nil
}

func dedupe(values []string) []string {
	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	return out
}
