package membership

import "github.com/hmansour/commune/internal/policy"

// DecideRequest carries a moderator's decision on a pending join request
type DecideRequest struct {
	Accept bool `json:"accept"`
}

// InviteRequest invites a user into the group
type InviteRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
}

// RoleChangeRequest names the destination role for promote/demote
type RoleChangeRequest struct {
	Role policy.Role `json:"role" validate:"required"`
}

// TransferOwnershipRequest names the incoming owner
type TransferOwnershipRequest struct {
	UserID int64 `json:"user_id" validate:"required"`
}

// UpdateOwnSettingsRequest is a partial update of a member's own settings
type UpdateOwnSettingsRequest struct {
	IsMuted     *bool `json:"is_muted,omitempty"`
	IsFollowing *bool `json:"is_following,omitempty"`
	IsPinned    *bool `json:"is_pinned,omitempty"`
}

// MembershipResponse represents a membership in API responses
type MembershipResponse struct {
	ID         int64       `json:"id"`
	GroupID    int64       `json:"group_id"`
	UserID     int64       `json:"user_id"`
	Username   string      `json:"username,omitempty"`
	Role       policy.Role `json:"role"`
	Status     Status      `json:"status"`
	JoinMethod JoinMethod  `json:"join_method"`
	JoinedAt   *string     `json:"joined_at,omitempty"`
	Settings   Settings    `json:"settings"`
}

// ToResponse converts a Membership model to a MembershipResponse DTO
func (m *Membership) ToResponse() *MembershipResponse {
	resp := &MembershipResponse{
		ID:         m.ID,
		GroupID:    m.GroupID,
		UserID:     m.UserID,
		Username:   m.Username,
		Role:       m.Role,
		Status:     m.Status,
		JoinMethod: m.JoinMethod,
		Settings:   m.Settings,
	}
	if m.JoinedAt != nil {
		joined := m.JoinedAt.Format("2006-01-02T15:04:05Z")
		resp.JoinedAt = &joined
	}
	return resp
}
