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

const yearBatchColumns = `id, school_id, name, start_month, end_month, created_at, updated_at`

// YearBatchRepository persists academic year batches.
type YearBatchRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewYearBatchRepository constructs the repository.
func NewYearBatchRepository(db *sqlx.DB) *YearBatchRepository {
	return &YearBatchRepository{db: db, now: time.Now}
}

// List returns a school's batches ordered by name.
func (r *YearBatchRepository) List(ctx context.Context, schoolID string) ([]models.YearBatch, error) {
	batches := []models.YearBatch{}
	if err := r.db.SelectContext(ctx, &batches, `SELECT `+yearBatchColumns+` FROM year_batches WHERE school_id = $1 ORDER BY name ASC`, schoolID); err != nil {
		return nil, fmt.Errorf("list year batches: %w", err)
	}
	return batches, nil
}

// FindByID returns a batch of the school.
func (r *YearBatchRepository) FindByID(ctx context.Context, schoolID, id string) (*models.YearBatch, error) {
	var batch models.YearBatch
	if err := r.db.GetContext(ctx, &batch, `SELECT `+yearBatchColumns+` FROM year_batches WHERE id = $1 AND school_id = $2`, id, schoolID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find year batch: %w", err)
	}
	return &batch, nil
}

// Create inserts a batch; duplicate names inside a school report ErrDuplicate.
func (r *YearBatchRepository) Create(ctx context.Context, batch *models.YearBatch) error {
	if batch.ID == "" {
		batch.ID = uuid.NewString()
	}
	now := r.now().UTC()
	batch.CreatedAt = now
	batch.UpdatedAt = now
	const query = `INSERT INTO year_batches (` + yearBatchColumns + `) VALUES (:id, :school_id, :name, :start_month, :end_month, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, batch); err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("create year batch: %w", err)
	}
	return nil
}

// Update modifies a batch.
func (r *YearBatchRepository) Update(ctx context.Context, batch *models.YearBatch) error {
	batch.UpdatedAt = r.now().UTC()
	const query = `UPDATE year_batches SET name = :name, start_month = :start_month, end_month = :end_month, updated_at = :updated_at WHERE id = :id AND school_id = :school_id`
	res, err := r.db.NamedExecContext(ctx, query, batch)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("update year batch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a batch; classes keep existing without one.
func (r *YearBatchRepository) Delete(ctx context.Context, schoolID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM year_batches WHERE id = $1 AND school_id = $2`, id, schoolID)
	if err != nil {
		return fmt.Errorf("delete year batch: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
