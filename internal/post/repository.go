package post

import (
	"context"
	"database/sql"
	"fmt"
)

const postColumns = `id, group_id, author_id, body, status, is_deleted, created_at, decided_at`

// Repository handles post moderation persistence. Status transitions and
// the post_count adjustment they imply always commit together.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new post repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanPost(row interface{ Scan(...interface{}) error }) (*Post, error) {
	p := &Post{}
	err := row.Scan(
		&p.ID,
		&p.GroupID,
		&p.AuthorID,
		&p.Body,
		&p.Status,
		&p.IsDeleted,
		&p.CreatedAt,
		&p.DecidedAt,
	)
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Create inserts a post in the given initial status. An APPROVED insert
// bumps post_count in the same transaction; a PENDING insert leaves the
// counter alone until a moderator decides.
func (r *Repository) Create(ctx context.Context, groupID, authorID int64, body string, status ModerationStatus) (*Post, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO posts (group_id, author_id, body, status)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + postColumns

	post, err := scanPost(tx.QueryRowContext(ctx, query, groupID, authorID, body, status))
	if err != nil {
		return nil, fmt.Errorf("failed to create post: %w", err)
	}

	if status == StatusApproved {
		if _, err := tx.ExecContext(ctx,
			`UPDATE groups SET post_count = post_count + 1 WHERE id = $1`, groupID); err != nil {
			return nil, fmt.Errorf("failed to adjust post count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit post creation: %w", err)
	}

	return post, nil
}

// GetByID retrieves a live post scoped to a group
func (r *Repository) GetByID(ctx context.Context, groupID, postID int64) (*Post, error) {
	query := `
		SELECT ` + postColumns + ` FROM posts
		WHERE id = $1 AND group_id = $2 AND is_deleted = FALSE
	`

	post, err := scanPost(r.db.QueryRowContext(ctx, query, postID, groupID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get post: %w", err)
	}

	return post, nil
}

// Approve transitions PENDING -> APPROVED and bumps post_count in one
// transaction. Returns nil if the post is no longer pending.
func (r *Repository) Approve(ctx context.Context, groupID, postID int64) (*Post, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE posts SET status = 'APPROVED', decided_at = now()
		WHERE id = $1 AND group_id = $2 AND status = 'PENDING' AND is_deleted = FALSE
		RETURNING ` + postColumns

	post, err := scanPost(tx.QueryRowContext(ctx, query, postID, groupID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to approve post: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE groups SET post_count = post_count + 1 WHERE id = $1`, groupID); err != nil {
		return nil, fmt.Errorf("failed to adjust post count: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit approval: %w", err)
	}

	return post, nil
}

// Reject transitions PENDING -> REJECTED. The counter never moved for a
// pending post, so none moves here. Returns nil if not pending.
func (r *Repository) Reject(ctx context.Context, groupID, postID int64) (*Post, error) {
	query := `
		UPDATE posts SET status = 'REJECTED', decided_at = now()
		WHERE id = $1 AND group_id = $2 AND status = 'PENDING' AND is_deleted = FALSE
		RETURNING ` + postColumns

	post, err := scanPost(r.db.QueryRowContext(ctx, query, postID, groupID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to reject post: %w", err)
	}

	return post, nil
}

// SoftDelete flags a post deleted, decrementing post_count only when the
// post was APPROVED and still live
func (r *Repository) SoftDelete(ctx context.Context, groupID, postID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status ModerationStatus
	err = tx.QueryRowContext(ctx, `
		UPDATE posts SET is_deleted = TRUE
		WHERE id = $1 AND group_id = $2 AND is_deleted = FALSE
		RETURNING status
	`, postID, groupID).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete post: %w", err)
	}

	if status == StatusApproved {
		if _, err := tx.ExecContext(ctx,
			`UPDATE groups SET post_count = post_count - 1 WHERE id = $1`, groupID); err != nil {
			return false, fmt.Errorf("failed to adjust post count: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit post deletion: %w", err)
	}

	return true, nil
}

// ListByStatus retrieves a group's live posts in the given status, oldest
// first so the moderation queue drains in submission order
func (r *Repository) ListByStatus(ctx context.Context, groupID int64, status ModerationStatus, limit, offset int) ([]*Post, int, error) {
	var total int
	countQuery := `
		SELECT COUNT(*) FROM posts
		WHERE group_id = $1 AND status = $2 AND is_deleted = FALSE
	`
	if err := r.db.QueryRowContext(ctx, countQuery, groupID, status).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count posts: %w", err)
	}

	query := `
		SELECT ` + postColumns + ` FROM posts
		WHERE group_id = $1 AND status = $2 AND is_deleted = FALSE
		ORDER BY created_at
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.QueryContext(ctx, query, groupID, status, limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list posts: %w", err)
	}
	defer rows.Close()

	var posts []*Post
	for rows.Next() {
		post, err := scanPost(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, post)
	}

	return posts, total, nil
}

// CountByStatus counts a group's live posts in the given status
func (r *Repository) CountByStatus(ctx context.Context, groupID int64, status ModerationStatus) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM posts
		WHERE group_id = $1 AND status = $2 AND is_deleted = FALSE
	`
	if err := r.db.QueryRowContext(ctx, query, groupID, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count posts by status: %w", err)
	}
	return count, nil
}
