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

const schoolColumns = `id, name, accent_color, logo_url, contact_email, contact_phone, address, website, admin_ids, created_at, updated_at`

// SchoolRepository persists tenants.
type SchoolRepository struct {
	db *sqlx.DB
}

// NewSchoolRepository constructs the repository.
func NewSchoolRepository(db *sqlx.DB) *SchoolRepository {
	return &SchoolRepository{db: db}
}

// FindByID returns a school.
func (r *SchoolRepository) FindByID(ctx context.Context, id string) (*models.School, error) {
	var school models.School
	if err := r.db.GetContext(ctx, &school, `SELECT `+schoolColumns+` FROM schools WHERE id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find school: %w", err)
	}
	return &school, nil
}

// Update writes the profile fields of a school.
func (r *SchoolRepository) Update(ctx context.Context, school *models.School) error {
	school.UpdatedAt = time.Now().UTC()
	const query = `UPDATE schools SET name = :name, accent_color = :accent_color, contact_email = :contact_email, contact_phone = :contact_phone, address = :address, website = :website, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, school)
	if err != nil {
		return fmt.Errorf("update school: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateLogo stores the logo URL.
func (r *SchoolRepository) UpdateLogo(ctx context.Context, id, url string) error {
	const query = `UPDATE schools SET logo_url = $2, updated_at = $3 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, url, time.Now().UTC()); err != nil {
		return fmt.Errorf("update school logo: %w", err)
	}
	return nil
}

// AddAdmin appends userID to the admin list and promotes the profile to ADMIN.
func (r *SchoolRepository) AddAdmin(ctx context.Context, schoolID, userID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin add admin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := time.Now().UTC()
	res, err := tx.ExecContext(ctx, `UPDATE users SET role = 'ADMIN', updated_at = $3 WHERE id = $1 AND school_id = $2 AND role <> 'STUDENT'`, userID, schoolID, now)
	if err != nil {
		return fmt.Errorf("promote admin: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		err = sql.ErrNoRows
		return err
	}
	const appendQuery = `UPDATE schools SET admin_ids = array_append(admin_ids, $2), updated_at = $3 WHERE id = $1 AND NOT ($2 = ANY(admin_ids))`
	if _, err = tx.ExecContext(ctx, appendQuery, schoolID, userID, now); err != nil {
		return fmt.Errorf("append admin: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit add admin: %w", err)
	}
	return nil
}

// RemoveAdmin drops userID from the admin list and demotes the profile to TEACHER.
// The last remaining admin cannot be removed.
func (r *SchoolRepository) RemoveAdmin(ctx context.Context, schoolID, userID string) (err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin remove admin: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var school models.School
	if err = tx.GetContext(ctx, &school, `SELECT `+schoolColumns+` FROM schools WHERE id = $1 FOR UPDATE`, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return err
		}
		return fmt.Errorf("lock school: %w", err)
	}
	if !school.HasAdmin(userID) {
		err = sql.ErrNoRows
		return err
	}
	if len(school.AdminIDs) <= 1 {
		err = ErrLastAdmin
		return err
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx, `UPDATE schools SET admin_ids = array_remove(admin_ids, $2), updated_at = $3 WHERE id = $1`, schoolID, userID, now); err != nil {
		return fmt.Errorf("remove admin: %w", err)
	}
	if _, err = tx.ExecContext(ctx, `UPDATE users SET role = 'TEACHER', updated_at = $3 WHERE id = $1 AND school_id = $2`, userID, schoolID, now); err != nil {
		return fmt.Errorf("demote admin: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("commit remove admin: %w", err)
	}
	return nil
}
