package membership

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/hmansour/commune/internal/policy"
)

const memberColumns = `gm.id, gm.group_id, gm.user_id, gm.role, gm.status, gm.join_method,
	gm.joined_at, gm.is_muted, gm.is_following, gm.is_pinned, gm.is_deleted, gm.created_at`

// Repository handles membership data persistence.
//
// Every method that changes a membership status performs the matching
// member_count adjustment inside the same transaction, and every
// transition is conditional on the prior role/status so a stale caller
// view can never be applied.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a new membership repository
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

func scanMember(row interface{ Scan(...interface{}) error }) (*Membership, error) {
	m := &Membership{}
	err := row.Scan(
		&m.ID,
		&m.GroupID,
		&m.UserID,
		&m.Role,
		&m.Status,
		&m.JoinMethod,
		&m.JoinedAt,
		&m.Settings.IsMuted,
		&m.Settings.IsFollowing,
		&m.Settings.IsPinned,
		&m.IsDeleted,
		&m.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return m, nil
}

// adjustMemberCount applies a counter delta inside the caller's transaction
func adjustMemberCount(ctx context.Context, tx *sql.Tx, groupID int64, delta int) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE groups SET member_count = member_count + $2 WHERE id = $1`, groupID, delta)
	if err != nil {
		return fmt.Errorf("failed to adjust member count: %w", err)
	}
	return nil
}

// GetMember retrieves a live membership record for a (group, user) pair
func (r *Repository) GetMember(ctx context.Context, groupID, userID int64) (*Membership, error) {
	query := `
		SELECT ` + memberColumns + `
		FROM group_members gm
		WHERE gm.group_id = $1 AND gm.user_id = $2 AND gm.is_deleted = FALSE
	`

	member, err := scanMember(r.db.QueryRowContext(ctx, query, groupID, userID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get member: %w", err)
	}

	return member, nil
}

// JoinedRole returns the user's role and whether they hold a JOINED
// membership. Satisfies the role-source interfaces of the group, post and
// query packages.
func (r *Repository) JoinedRole(ctx context.Context, groupID, userID int64) (policy.Role, bool, error) {
	member, err := r.GetMember(ctx, groupID, userID)
	if err != nil {
		return "", false, err
	}
	if member == nil || member.Status != StatusJoined {
		return "", false, nil
	}
	return member.Role, true, nil
}

// CreateJoined inserts a JOINED membership and bumps the member counter in
// one transaction. Returns nil if a record for the pair already exists:
// the unique index arbitrates concurrent joins, so the loser can never
// double-count.
func (r *Repository) CreateJoined(ctx context.Context, groupID, userID int64, method JoinMethod) (*Membership, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		INSERT INTO group_members (group_id, user_id, role, status, join_method, joined_at)
		VALUES ($1, $2, 'MEMBER', 'JOINED', $3, now())
		ON CONFLICT (group_id, user_id) DO NOTHING
		RETURNING id, group_id, user_id, role, status, join_method,
			joined_at, is_muted, is_following, is_pinned, is_deleted, created_at
	`

	member, err := scanMember(tx.QueryRowContext(ctx, query, groupID, userID, method))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to create joined membership: %w", err)
	}

	if err := adjustMemberCount(ctx, tx, groupID, 1); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit join: %w", err)
	}

	return member, nil
}

// createWithStatus inserts a non-counted membership (PENDING or INVITED)
func (r *Repository) createWithStatus(ctx context.Context, groupID, userID int64, status Status, method JoinMethod) (*Membership, error) {
	query := `
		INSERT INTO group_members (group_id, user_id, role, status, join_method)
		VALUES ($1, $2, 'MEMBER', $3, $4)
		ON CONFLICT (group_id, user_id) DO NOTHING
		RETURNING id, group_id, user_id, role, status, join_method,
			joined_at, is_muted, is_following, is_pinned, is_deleted, created_at
	`

	member, err := scanMember(r.db.QueryRowContext(ctx, query, groupID, userID, status, method))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to create %s membership: %w", status, err)
	}

	return member, nil
}

// CreatePending inserts a PENDING join request; member_count is untouched
func (r *Repository) CreatePending(ctx context.Context, groupID, userID int64) (*Membership, error) {
	return r.createWithStatus(ctx, groupID, userID, StatusPending, JoinMethodRequest)
}

// CreateInvited inserts an INVITED membership; member_count is untouched
func (r *Repository) CreateInvited(ctx context.Context, groupID, userID int64) (*Membership, error) {
	return r.createWithStatus(ctx, groupID, userID, StatusInvited, JoinMethodInvite)
}

// promoteToJoined flips a membership with the expected prior status to
// JOINED, sets joined_at, and bumps the counter, all in one transaction.
// Returns nil if the record is no longer in the expected status.
func (r *Repository) promoteToJoined(ctx context.Context, groupID, userID int64, from Status) (*Membership, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	query := `
		UPDATE group_members
		SET status = 'JOINED', joined_at = now()
		WHERE group_id = $1 AND user_id = $2 AND status = $3 AND is_deleted = FALSE
		RETURNING id, group_id, user_id, role, status, join_method,
			joined_at, is_muted, is_following, is_pinned, is_deleted, created_at
	`

	member, err := scanMember(tx.QueryRowContext(ctx, query, groupID, userID, from))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to transition membership to joined: %w", err)
	}

	if err := adjustMemberCount(ctx, tx, groupID, 1); err != nil {
		return nil, err
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit membership transition: %w", err)
	}

	return member, nil
}

// AcceptInvite transitions INVITED -> JOINED
func (r *Repository) AcceptInvite(ctx context.Context, groupID, userID int64) (*Membership, error) {
	return r.promoteToJoined(ctx, groupID, userID, StatusInvited)
}

// ApprovePending transitions PENDING -> JOINED
func (r *Repository) ApprovePending(ctx context.Context, groupID, userID int64) (*Membership, error) {
	return r.promoteToJoined(ctx, groupID, userID, StatusPending)
}

// DeletePending removes a PENDING request. No counter involvement.
// Returns false if the record is absent or not pending.
func (r *Repository) DeletePending(ctx context.Context, groupID, userID int64) (bool, error) {
	result, err := r.db.ExecContext(ctx,
		`DELETE FROM group_members WHERE group_id = $1 AND user_id = $2 AND status = 'PENDING'`,
		groupID, userID)
	if err != nil {
		return false, fmt.Errorf("failed to delete pending request: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

// DeleteJoinedNonOwner removes a JOINED, non-owner membership and
// decrements the counter. Used by leave; the role condition closes the
// race with a concurrent ownership transfer.
func (r *Repository) DeleteJoinedNonOwner(ctx context.Context, groupID, userID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var id int64
	err = tx.QueryRowContext(ctx, `
		DELETE FROM group_members
		WHERE group_id = $1 AND user_id = $2 AND status = 'JOINED' AND role <> 'OWNER'
		RETURNING id
	`, groupID, userID).Scan(&id)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to delete membership: %w", err)
	}

	if err := adjustMemberCount(ctx, tx, groupID, -1); err != nil {
		return false, err
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit leave: %w", err)
	}

	return true, nil
}

// DeleteWithRole removes a membership conditional on the role the caller
// saw. Decrements the counter only when the removed record was JOINED.
// Returns false when the record changed under the caller.
func (r *Repository) DeleteWithRole(ctx context.Context, groupID, userID int64, expectedRole policy.Role) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var status Status
	err = tx.QueryRowContext(ctx, `
		DELETE FROM group_members
		WHERE group_id = $1 AND user_id = $2 AND role = $3
		RETURNING status
	`, groupID, userID, expectedRole).Scan(&status)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to remove member: %w", err)
	}

	if status == StatusJoined {
		if err := adjustMemberCount(ctx, tx, groupID, -1); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit removal: %w", err)
	}

	return true, nil
}

// Ban flips a JOINED or PENDING membership to BANNED, conditional on the
// role the caller saw, decrementing the counter for a joined target.
// The row is kept so the ban blocks any future join.
func (r *Repository) Ban(ctx context.Context, groupID, userID int64, expectedRole policy.Role) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var prior Status
	err = tx.QueryRowContext(ctx, `
		SELECT status FROM group_members
		WHERE group_id = $1 AND user_id = $2 AND role = $3
		  AND status IN ('JOINED', 'PENDING') AND is_deleted = FALSE
		FOR UPDATE
	`, groupID, userID, expectedRole).Scan(&prior)
	if err != nil {
		if err == sql.ErrNoRows {
			return false, nil
		}
		return false, fmt.Errorf("failed to lock member for ban: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE group_members SET status = 'BANNED'
		WHERE group_id = $1 AND user_id = $2
	`, groupID, userID); err != nil {
		return false, fmt.Errorf("failed to ban member: %w", err)
	}

	if prior == StatusJoined {
		if err := adjustMemberCount(ctx, tx, groupID, -1); err != nil {
			return false, err
		}
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit ban: %w", err)
	}

	return true, nil
}

// UpdateRole changes a JOINED member's role, conditional on the role the
// caller based its authorization on. Returns false on a stale view.
func (r *Repository) UpdateRole(ctx context.Context, groupID, userID int64, from, to policy.Role) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE group_members SET role = $4
		WHERE group_id = $1 AND user_id = $2 AND role = $3
		  AND status = 'JOINED' AND is_deleted = FALSE
	`, groupID, userID, from, to)
	if err != nil {
		return false, fmt.Errorf("failed to update role: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	}

	return affected > 0, nil
}

// TransferOwnership demotes the current owner to ADMIN and promotes the
// target ADMIN to OWNER as one all-or-nothing transaction. Either row
// missing its expected state rolls the whole exchange back, so exactly
// one owner exists at every commit point.
func (r *Repository) TransferOwnership(ctx context.Context, groupID, ownerID, targetID int64) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.ExecContext(ctx, `
		UPDATE group_members SET role = 'ADMIN'
		WHERE group_id = $1 AND user_id = $2 AND role = 'OWNER' AND status = 'JOINED'
	`, groupID, ownerID)
	if err != nil {
		return false, fmt.Errorf("failed to demote owner: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	} else if n != 1 {
		return false, nil
	}

	result, err = tx.ExecContext(ctx, `
		UPDATE group_members SET role = 'OWNER'
		WHERE group_id = $1 AND user_id = $2 AND role = 'ADMIN' AND status = 'JOINED'
	`, groupID, targetID)
	if err != nil {
		return false, fmt.Errorf("failed to promote new owner: %w", err)
	}
	if n, err := result.RowsAffected(); err != nil {
		return false, fmt.Errorf("failed to get rows affected: %w", err)
	} else if n != 1 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE groups SET owner_id = $2 WHERE id = $1`, groupID, targetID); err != nil {
		return false, fmt.Errorf("failed to update group owner: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("failed to commit ownership transfer: %w", err)
	}

	return true, nil
}

// UpdateOwnSettings merges a partial settings update on the member's own
// JOINED record
func (r *Repository) UpdateOwnSettings(ctx context.Context, groupID, userID int64, req *UpdateOwnSettingsRequest) (*Membership, error) {
	query := `
		UPDATE group_members
		SET is_muted = COALESCE($3, is_muted),
		    is_following = COALESCE($4, is_following),
		    is_pinned = COALESCE($5, is_pinned)
		WHERE group_id = $1 AND user_id = $2 AND status = 'JOINED' AND is_deleted = FALSE
		RETURNING id, group_id, user_id, role, status, join_method,
			joined_at, is_muted, is_following, is_pinned, is_deleted, created_at
	`

	member, err := scanMember(r.db.QueryRowContext(ctx, query, groupID, userID,
		req.IsMuted, req.IsFollowing, req.IsPinned))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to update member settings: %w", err)
	}

	return member, nil
}

// List retrieves memberships for a group, optionally filtered by status,
// newest first, with a total count for pagination
func (r *Repository) List(ctx context.Context, groupID int64, status Status, limit, offset int) ([]*Membership, int, error) {
	var total int
	countQuery := `
		SELECT COUNT(*) FROM group_members gm
		WHERE gm.group_id = $1 AND gm.is_deleted = FALSE
		  AND ($2 = '' OR gm.status = $2)
	`
	if err := r.db.QueryRowContext(ctx, countQuery, groupID, string(status)).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count members: %w", err)
	}

	query := `
		SELECT ` + memberColumns + `, u.username
		FROM group_members gm
		JOIN users u ON gm.user_id = u.id
		WHERE gm.group_id = $1 AND gm.is_deleted = FALSE
		  AND ($2 = '' OR gm.status = $2)
		ORDER BY gm.created_at DESC
		LIMIT $3 OFFSET $4
	`

	rows, err := r.db.QueryContext(ctx, query, groupID, string(status), limit, offset)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to list members: %w", err)
	}
	defer rows.Close()

	var members []*Membership
	for rows.Next() {
		m := &Membership{}
		if err := rows.Scan(
			&m.ID,
			&m.GroupID,
			&m.UserID,
			&m.Role,
			&m.Status,
			&m.JoinMethod,
			&m.JoinedAt,
			&m.Settings.IsMuted,
			&m.Settings.IsFollowing,
			&m.Settings.IsPinned,
			&m.IsDeleted,
			&m.CreatedAt,
			&m.Username,
		); err != nil {
			return nil, 0, fmt.Errorf("failed to scan member: %w", err)
		}
		members = append(members, m)
	}

	return members, total, nil
}

// CountByStatus counts live memberships in the given status
func (r *Repository) CountByStatus(ctx context.Context, groupID int64, status Status) (int, error) {
	var count int
	query := `
		SELECT COUNT(*) FROM group_members
		WHERE group_id = $1 AND status = $2 AND is_deleted = FALSE
	`
	if err := r.db.QueryRowContext(ctx, query, groupID, status).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count members by status: %w", err)
	}
	return count, nil
}
