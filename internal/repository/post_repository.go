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

const postSelect = `SELECT p.id, p.class_id, p.author_id, p.type, p.title, p.body, p.assignment_id, p.attachments, p.created_at, p.updated_at, COALESCE(u.full_name, '') AS author_name
FROM posts p LEFT JOIN users u ON u.id = p.author_id`

// PostRepository persists class stream entries.
type PostRepository struct {
	db  *sqlx.DB
	now func() time.Time
}

// NewPostRepository constructs the repository.
func NewPostRepository(db *sqlx.DB) *PostRepository {
	return &PostRepository{db: db, now: time.Now}
}

// Create inserts a post.
func (r *PostRepository) Create(ctx context.Context, post *models.Post) error {
	return insertPost(ctx, r.db, post, r.now().UTC())
}

func insertPost(ctx context.Context, exec sqlx.ExtContext, post *models.Post, now time.Time) error {
	if post.ID == "" {
		post.ID = uuid.NewString()
	}
	post.CreatedAt = now
	post.UpdatedAt = now
	const query = `INSERT INTO posts (id, class_id, author_id, type, title, body, assignment_id, attachments, created_at, updated_at)
VALUES (:id, :class_id, :author_id, :type, :title, :body, :assignment_id, :attachments, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, post); err != nil {
		return fmt.Errorf("create post: %w", err)
	}
	return nil
}

// FindByID returns a post.
func (r *PostRepository) FindByID(ctx context.Context, id string) (*models.Post, error) {
	var post models.Post
	if err := r.db.GetContext(ctx, &post, postSelect+` WHERE p.id = $1`, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("find post: %w", err)
	}
	return &post, nil
}

// ListByClass returns the class stream, newest first.
func (r *PostRepository) ListByClass(ctx context.Context, classID string) ([]models.Post, error) {
	posts := []models.Post{}
	if err := r.db.SelectContext(ctx, &posts, postSelect+` WHERE p.class_id = $1 ORDER BY p.created_at DESC`, classID); err != nil {
		return nil, fmt.Errorf("list posts: %w", err)
	}
	return posts, nil
}

// Update modifies a post's content.
func (r *PostRepository) Update(ctx context.Context, post *models.Post) error {
	post.UpdatedAt = r.now().UTC()
	const query = `UPDATE posts SET title = :title, body = :body, attachments = :attachments, updated_at = :updated_at WHERE id = :id`
	res, err := r.db.NamedExecContext(ctx, query, post)
	if err != nil {
		return fmt.Errorf("update post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// Delete removes a post.
func (r *PostRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM posts WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete post: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return sql.ErrNoRows
	}
	return nil
}
