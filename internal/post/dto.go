package post

// SubmitPostRequest represents the request to submit a post to a group
type SubmitPostRequest struct {
	Body string `json:"body" validate:"required,min=1"`
}

// PostResponse represents a post in API responses
type PostResponse struct {
	ID        int64            `json:"id"`
	GroupID   int64            `json:"group_id"`
	AuthorID  int64            `json:"author_id"`
	Body      string           `json:"body"`
	Status    ModerationStatus `json:"status"`
	CreatedAt string           `json:"created_at"`
	DecidedAt *string          `json:"decided_at,omitempty"`
}

// ToResponse converts a Post model to a PostResponse DTO
func (p *Post) ToResponse() *PostResponse {
	resp := &PostResponse{
		ID:        p.ID,
		GroupID:   p.GroupID,
		AuthorID:  p.AuthorID,
		Body:      p.Body,
		Status:    p.Status,
		CreatedAt: p.CreatedAt.Format("2006-01-02T15:04:05Z"),
	}
	if p.DecidedAt != nil {
		decided := p.DecidedAt.Format("2006-01-02T15:04:05Z")
		resp.DecidedAt = &decided
	}
	return resp
}
