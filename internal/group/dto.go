package group

// CreateGroupRequest represents the request to create a new group
type CreateGroupRequest struct {
	Name        string  `json:"name" validate:"required,min=1,max=100"`
	Description *string `json:"description,omitempty"`
	Privacy     Privacy `json:"privacy"`
}

// UpdateSettingsRequest is a partial update of group settings; nil fields
// are left unchanged
type UpdateSettingsRequest struct {
	Name                *string `json:"name,omitempty" validate:"omitempty,min=1,max=100"`
	Description         *string `json:"description,omitempty"`
	AllowMemberPosting  *bool   `json:"allow_member_posting,omitempty"`
	RequirePostApproval *bool   `json:"require_post_approval,omitempty"`
}

// GroupResponse represents the response for a group
type GroupResponse struct {
	ID          int64    `json:"id"`
	Name        string   `json:"name"`
	Slug        string   `json:"slug"`
	Description *string  `json:"description,omitempty"`
	Privacy     Privacy  `json:"privacy"`
	Settings    Settings `json:"settings"`
	MemberCount int      `json:"member_count"`
	PostCount   int      `json:"post_count"`
	OwnerID     int64    `json:"owner_id"`
	CreatedAt   string   `json:"created_at"`
}

// CountersResponse reports the result of a counter reconciliation
type CountersResponse struct {
	MemberCount int `json:"member_count"`
	PostCount   int `json:"post_count"`
}

// ToResponse converts a Group model to a GroupResponse DTO
func (g *Group) ToResponse() *GroupResponse {
	return &GroupResponse{
		ID:          g.ID,
		Name:        g.Name,
		Slug:        g.Slug,
		Description: g.Description,
		Privacy:     g.Privacy,
		Settings:    g.Settings,
		MemberCount: g.MemberCount,
		PostCount:   g.PostCount,
		OwnerID:     g.OwnerID,
		CreatedAt:   g.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
}
