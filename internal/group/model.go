package group

import "time"

// Privacy controls how users enter a group
type Privacy string

const (
	// PrivacyPublic groups admit join requests immediately
	PrivacyPublic Privacy = "PUBLIC"
	// PrivacyPrivate groups queue join requests for moderator decision
	PrivacyPrivate Privacy = "PRIVATE"
	// PrivacyClosed groups queue join requests and hide member listings
	// from non-members
	PrivacyClosed Privacy = "CLOSED"
)

// Valid reports whether p is a known privacy mode
func (p Privacy) Valid() bool {
	switch p {
	case PrivacyPublic, PrivacyPrivate, PrivacyClosed:
		return true
	}
	return false
}

// Settings are the group-level switches gating the content pipeline
type Settings struct {
	AllowMemberPosting  bool `json:"allow_member_posting"`
	RequirePostApproval bool `json:"require_post_approval"`
}

// Group represents a group in the system.
// MemberCount and PostCount are derived counters; they are only ever
// written inside the same transaction as the membership or post status
// change they reflect.
type Group struct {
	ID          int64     `json:"id"`
	Name        string    `json:"name"`
	Slug        string    `json:"slug"`
	Description *string   `json:"description,omitempty"`
	Privacy     Privacy   `json:"privacy"`
	Settings    Settings  `json:"settings"`
	MemberCount int       `json:"member_count"`
	PostCount   int       `json:"post_count"`
	IsDeleted   bool      `json:"-"`
	CreatorID   int64     `json:"creator_id"`
	OwnerID     int64     `json:"owner_id"`
	CreatedAt   time.Time `json:"created_at"`
}
