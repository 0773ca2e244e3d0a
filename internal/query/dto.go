package query

import "github.com/hmansour/commune/internal/membership"

// MemberView is a roster entry enriched with the viewer's perspective
type MemberView struct {
	*membership.MembershipResponse
	Relation  Relation `json:"relation"`
	CanManage bool     `json:"can_manage"`
}

// PendingCounts is the moderation backlog for a group
type PendingCounts struct {
	PendingMembers int `json:"pending_members"`
	PendingPosts   int `json:"pending_posts"`
}

func newMemberView(m *membership.Membership, relation Relation, canManage bool) *MemberView {
	return &MemberView{
		MembershipResponse: m.ToResponse(),
		Relation:           relation,
		CanManage:          canManage,
	}
}
