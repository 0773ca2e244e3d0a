package membership

import (
	"time"

	"github.com/hmansour/commune/internal/policy"
)

// Status represents the lifecycle state of a membership record.
// There is no BANNED -> JOINED transition anywhere in this package:
// a banned membership stays banned and blocks re-joining.
type Status string

const (
	StatusJoined  Status = "JOINED"
	StatusPending Status = "PENDING"
	StatusInvited Status = "INVITED"
	StatusBanned  Status = "BANNED"
)

// JoinMethod records how a membership came to exist
type JoinMethod string

const (
	JoinMethodRequest JoinMethod = "REQUEST"
	JoinMethodInvite  JoinMethod = "INVITE"
	JoinMethodCreator JoinMethod = "CREATOR"
)

// Settings are per-member preferences; they never affect authorization
type Settings struct {
	IsMuted     bool `json:"is_muted"`
	IsFollowing bool `json:"is_following"`
	IsPinned    bool `json:"is_pinned"`
}

// Membership links one user to one group. At most one record exists per
// (group, user) pair; leaving and re-joining creates a fresh record.
type Membership struct {
	ID         int64       `json:"id"`
	GroupID    int64       `json:"group_id"`
	UserID     int64       `json:"user_id"`
	Role       policy.Role `json:"role"`
	Status     Status      `json:"status"`
	JoinMethod JoinMethod  `json:"join_method"`
	JoinedAt   *time.Time  `json:"joined_at,omitempty"`
	Settings   Settings    `json:"settings"`
	IsDeleted  bool        `json:"-"`
	CreatedAt  time.Time   `json:"created_at"`

	// Populated from JOIN
	Username string `json:"username,omitempty"`
}
