// Package policy is the single authority for role-hierarchy decisions.
// Every mutating membership or moderation operation consults it before
// touching storage. It is pure: no I/O, no state.
//
// Roles form a total order: OWNER > ADMIN > MODERATOR > MEMBER.
package policy

// Role is a member's role within a group
type Role string

const (
	RoleOwner     Role = "OWNER"
	RoleAdmin     Role = "ADMIN"
	RoleModerator Role = "MODERATOR"
	RoleMember    Role = "MEMBER"
)

// Action is a gated operation on a membership or post
type Action string

const (
	ActionPromote           Action = "PROMOTE"
	ActionDemote            Action = "DEMOTE"
	ActionTransferOwnership Action = "TRANSFER_OWNERSHIP"
	ActionRemove            Action = "REMOVE"
	ActionBan               Action = "BAN"
)

// Rank returns the position of a role in the total order.
// Unknown roles rank below MEMBER.
func (r Role) Rank() int {
	switch r {
	case RoleOwner:
		return 4
	case RoleAdmin:
		return 3
	case RoleModerator:
		return 2
	case RoleMember:
		return 1
	default:
		return 0
	}
}

// Valid reports whether r is one of the four known roles
func (r Role) Valid() bool {
	return r.Rank() > 0
}

// CanAct reports whether an actor holding actorRole may perform action
// against a target holding targetRole. Promote/demote destinations are
// checked separately by CanPromote/CanDemote since they depend on the
// destination rung, not just the pair of roles.
func CanAct(actor, target Role, action Action) bool {
	switch action {
	case ActionPromote, ActionDemote:
		return actor == RoleOwner && target != RoleOwner
	case ActionTransferOwnership:
		return CanTransferOwnership(actor, target)
	case ActionRemove:
		return CanRemove(actor, target)
	case ActionBan:
		return CanBan(actor, target)
	default:
		return false
	}
}

// CanPromote reports whether actor may promote a member holding from to to.
// Only the owner promotes, and only one rung at a time:
// MEMBER -> MODERATOR, MODERATOR -> ADMIN.
func CanPromote(actor, from, to Role) bool {
	if actor != RoleOwner {
		return false
	}
	if !from.Valid() || !to.Valid() {
		return false
	}
	return to.Rank() == from.Rank()+1 && to != RoleOwner
}

// CanDemote reports whether actor may demote a member holding from to to.
// Only the owner demotes, one rung at a time:
// ADMIN -> MODERATOR, MODERATOR -> MEMBER.
func CanDemote(actor, from, to Role) bool {
	if actor != RoleOwner {
		return false
	}
	if !from.Valid() || !to.Valid() {
		return false
	}
	return to.Rank() == from.Rank()-1 && from != RoleOwner
}

// CanTransferOwnership reports whether actor may hand the group to target.
// The incoming owner must already be an admin, so the swap is a single
// rung in each direction and the one-owner invariant survives the exchange.
func CanTransferOwnership(actor, target Role) bool {
	return actor == RoleOwner && target == RoleAdmin
}

// CanAssignAdmin reports whether actor may grant ADMIN directly.
// Legacy two-level variant kept for clients that predate MODERATOR.
func CanAssignAdmin(actor Role) bool {
	return actor == RoleOwner
}

// CanRevokeAdmin is the counterpart of CanAssignAdmin
func CanRevokeAdmin(actor Role) bool {
	return actor == RoleOwner
}

// CanRemove reports whether actor may remove target from the group.
// Owners and admins remove, strictly down-rank only. The owner itself
// can never be removed; it must transfer ownership first.
func CanRemove(actor, target Role) bool {
	if actor != RoleOwner && actor != RoleAdmin {
		return false
	}
	if target == RoleOwner {
		return false
	}
	return actor.Rank() > target.Rank()
}

// CanBan reports whether actor may ban target.
// Moderators and above ban, strictly down-rank only.
func CanBan(actor, target Role) bool {
	return actor.Rank() >= RoleModerator.Rank() && actor.Rank() > target.Rank()
}

// CanModerate reports whether a role may act on the moderation surface:
// approving or rejecting posts, deciding join requests, inviting users.
func CanModerate(actor Role) bool {
	return actor.Rank() >= RoleModerator.Rank()
}

// CanEditSettings reports whether a role may change group settings
func CanEditSettings(actor Role) bool {
	return actor == RoleOwner || actor == RoleAdmin
}
