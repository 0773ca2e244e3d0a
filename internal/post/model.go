package post

import "time"

// ModerationStatus is the queue state of a post.
// APPROVED and REJECTED are terminal; a rejected post is never
// resurrected.
type ModerationStatus string

const (
	StatusPending  ModerationStatus = "PENDING"
	StatusApproved ModerationStatus = "APPROVED"
	StatusRejected ModerationStatus = "REJECTED"
)

// Post holds the moderation-relevant fields of a group post. Body storage
// and formatting beyond plain sanitized text belong to the content system.
type Post struct {
	ID        int64            `json:"id"`
	GroupID   int64            `json:"group_id"`
	AuthorID  int64            `json:"author_id"`
	Body      string           `json:"body"`
	Status    ModerationStatus `json:"status"`
	IsDeleted bool             `json:"-"`
	CreatedAt time.Time        `json:"created_at"`
	DecidedAt *time.Time       `json:"decided_at,omitempty"`
}
