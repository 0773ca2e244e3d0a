package group

import (
	"context"
	"database/sql"
	"fmt"
)

// groupColumns is the select list every group query shares
const groupColumns = `id, name, slug, description, privacy, allow_member_posting,
	require_post_approval, member_count, post_count, is_deleted, creator_id, owner_id, created_at`

// Repository handles group data persistence
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new group repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanGroup(row interface{ Scan(...interface{}) error }) (*Group, error) {
	g := &Group{}
	err := row.Scan(
		&g.ID,
		&g.Name,
		&g.Slug,
		&g.Description,
		&g.Privacy,
		&g.Settings.AllowMemberPosting,
		&g.Settings.RequirePostApproval,
		&g.MemberCount,
		&g.PostCount,
		&g.IsDeleted,
		&g.CreatorID,
		&g.OwnerID,
		&g.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return g, nil
}

// Create inserts a new group and its OWNER membership in one transaction.
// The creator joins immediately, so member_count starts at 1.
func (r *Repository) Create(ctx context.Context, name, slug string, description *string, privacy Privacy, creatorID int64) (*Group, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO groups (name, slug, description, privacy, member_count, creator_id, owner_id)
		VALUES ($1, $2, $3, $4, 1, $5, $5)
		RETURNING ` + groupColumns

	group, err := scanGroup(tx.QueryRowContext(ctx, query, name, slug, description, privacy, creatorID))
	if err != nil {
		return nil, fmt.Errorf("failed to create group: %w", err)
	}

	memberQuery := `
		INSERT INTO group_members (group_id, user_id, role, status, join_method, joined_at)
		VALUES ($1, $2, 'OWNER', 'JOINED', 'CREATOR', now())
	`
	if _, err := tx.ExecContext(ctx, memberQuery, group.ID, creatorID); err != nil {
		return nil, fmt.Errorf("failed to create owner membership: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit group creation: %w", err)
	}

	return group, nil
}

// GetByID retrieves a live group by its ID; soft-deleted groups read as absent
func (r *Repository) GetByID(ctx context.Context, id int64) (*Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE id = $1 AND is_deleted = FALSE`

	group, err := scanGroup(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group: %w", err)
	}

	return group, nil
}

// GetBySlug retrieves a live group by its slug
func (r *Repository) GetBySlug(ctx context.Context, slug string) (*Group, error) {
	query := `SELECT ` + groupColumns + ` FROM groups WHERE slug = $1 AND is_deleted = FALSE`

	group, err := scanGroup(r.db.QueryRowContext(ctx, query, slug))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get group by slug: %w", err)
	}

	return group, nil
}

// SlugExists reports whether any group, deleted or not, holds the slug
func (r *Repository) SlugExists(ctx context.Context, slug string) (bool, error) {
	var exists bool
	query := `SELECT EXISTS(SELECT 1 FROM groups WHERE slug = $1)`
	if err := r.db.QueryRowContext(ctx, query, slug).Scan(&exists); err != nil {
		return false, fmt.Errorf("failed to check slug: %w", err)
	}
	return exists, nil
}

// UpdateSettings applies a partial settings update; nil fields keep their
// current value
func (r *Repository) UpdateSettings(ctx context.Context, id int64, req *UpdateSettingsRequest) (*Group, error) {
	query := `
		UPDATE groups
		SET name = COALESCE($2, name),
		    description = COALESCE($3, description),
		    allow_member_posting = COALESCE($4, allow_member_posting),
		    require_post_approval = COALESCE($5, require_post_approval)
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING ` + groupColumns

	group, err := scanGroup(r.db.QueryRowContext(ctx, query, id,
		req.Name, req.Description, req.AllowMemberPosting, req.RequirePostApproval))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update group settings: %w", err)
	}

	return group, nil
}

// SoftDelete flags the group and cascades the flag to its memberships and
// posts in one transaction, so there is never a window where the group is
// gone but its records are live.
func (r *Repository) SoftDelete(ctx context.Context, id int64) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx,
		`UPDATE groups SET is_deleted = TRUE WHERE id = $1 AND is_deleted = FALSE`, id)
	if err != nil {
		return fmt.Errorf("failed to delete group: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if affected == 0 {
		return sql.ErrNoRows
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE group_members SET is_deleted = TRUE WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("failed to cascade delete to memberships: %w", err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE posts SET is_deleted = TRUE WHERE group_id = $1`, id); err != nil {
		return fmt.Errorf("failed to cascade delete to posts: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit group deletion: %w", err)
	}

	return nil
}

// ReconcileCounters recomputes member_count and post_count from the
// underlying records. Repair tooling for counter drift; correct operation
// never needs it.
func (r *Repository) ReconcileCounters(ctx context.Context, id int64) (memberCount, postCount int, err error) {
	query := `
		UPDATE groups SET
		    member_count = (
		        SELECT COUNT(*) FROM group_members
		        WHERE group_id = groups.id AND status = 'JOINED' AND is_deleted = FALSE
		    ),
		    post_count = (
		        SELECT COUNT(*) FROM posts
		        WHERE group_id = groups.id AND status = 'APPROVED' AND is_deleted = FALSE
		    )
		WHERE id = $1 AND is_deleted = FALSE
		RETURNING member_count, post_count
	`

	err = r.db.QueryRowContext(ctx, query, id).Scan(&memberCount, &postCount)
	if err != nil {
		if err == sql.ErrNoRows {
			return 0, 0, sql.ErrNoRows
		}
		return 0, 0, fmt.Errorf("failed to reconcile counters: %w", err)
	}

	return memberCount, postCount, nil
}
