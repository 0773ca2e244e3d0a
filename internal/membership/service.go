package membership

import (
	"context"
	"errors"

	"github.com/hmansour/commune/internal/group"
	"github.com/hmansour/commune/internal/policy"
)

// Common errors
var (
	ErrMemberNotFound    = errors.New("member not found")
	ErrRequestNotFound   = errors.New("join request not found")
	ErrAlreadyMember     = errors.New("user is already a member of this group")
	ErrDuplicateRequest  = errors.New("join request already pending")
	ErrBanned            = errors.New("user is banned from this group")
	ErrNotAuthorized     = errors.New("not authorized to perform this action")
	ErrOwnerMustTransfer = errors.New("owner must transfer ownership before leaving")
	ErrInvalidTransition = errors.New("operation not permitted from the current state")
	ErrStaleRole         = errors.New("membership changed concurrently, retry with fresh state")
	ErrUserNotFound      = errors.New("user not found")
)

// Store is the persistence surface the service needs
type Store interface {
	GetMember(ctx context.Context, groupID, userID int64) (*Membership, error)
	CreateJoined(ctx context.Context, groupID, userID int64, method JoinMethod) (*Membership, error)
	CreatePending(ctx context.Context, groupID, userID int64) (*Membership, error)
	CreateInvited(ctx context.Context, groupID, userID int64) (*Membership, error)
	AcceptInvite(ctx context.Context, groupID, userID int64) (*Membership, error)
	ApprovePending(ctx context.Context, groupID, userID int64) (*Membership, error)
	DeletePending(ctx context.Context, groupID, userID int64) (bool, error)
	DeleteJoinedNonOwner(ctx context.Context, groupID, userID int64) (bool, error)
	DeleteWithRole(ctx context.Context, groupID, userID int64, expectedRole policy.Role) (bool, error)
	Ban(ctx context.Context, groupID, userID int64, expectedRole policy.Role) (bool, error)
	UpdateRole(ctx context.Context, groupID, userID int64, from, to policy.Role) (bool, error)
	TransferOwnership(ctx context.Context, groupID, ownerID, targetID int64) (bool, error)
	UpdateOwnSettings(ctx context.Context, groupID, userID int64, req *UpdateOwnSettingsRequest) (*Membership, error)
}

// GroupSource resolves groups; soft-deleted groups read as absent
type GroupSource interface {
	GetByID(ctx context.Context, id int64) (*group.Group, error)
}

// UserSource checks that invited identities exist
type UserSource interface {
	Exists(ctx context.Context, id int64) (bool, error)
}

// Service drives the membership state machine. Every transition consults
// the role authority against freshly-read state, and the store applies it
// conditionally on that same state, so stale views lose instead of
// corrupting counters or ranks.
type Service struct {
	store  Store
	groups GroupSource
	users  UserSource
}

// NewService creates a new membership service
func NewService(store Store, groups GroupSource, users UserSource) *Service {
	return &Service{store: store, groups: groups, users: users}
}

func (s *Service) liveGroup(ctx context.Context, groupID int64) (*group.Group, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, group.ErrGroupNotFound
	}
	return g, nil
}

// joinedActor loads the acting user's membership and requires JOINED status
func (s *Service) joinedActor(ctx context.Context, groupID, actorID int64) (*Membership, error) {
	actor, err := s.store.GetMember(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if actor == nil || actor.Status != StatusJoined {
		return nil, ErrNotAuthorized
	}
	return actor, nil
}

// RequestJoin handles a user asking to join a group.
// Public groups admit immediately; private and closed groups queue a
// pending request. An outstanding invite is accepted in place. A ban is
// final: there is no path back to JOINED for a banned record.
func (s *Service) RequestJoin(ctx context.Context, groupID, userID int64) (*Membership, error) {
	g, err := s.liveGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	existing, err := s.store.GetMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}

	if existing != nil {
		switch existing.Status {
		case StatusBanned:
			return nil, ErrBanned
		case StatusJoined:
			return nil, ErrAlreadyMember
		case StatusPending:
			return nil, ErrDuplicateRequest
		case StatusInvited:
			member, err := s.store.AcceptInvite(ctx, groupID, userID)
			if err != nil {
				return nil, err
			}
			if member == nil {
				return nil, ErrAlreadyMember
			}
			return member, nil
		}
	}

	if g.Privacy == group.PrivacyPublic {
		member, err := s.store.CreateJoined(ctx, groupID, userID, JoinMethodRequest)
		if err != nil {
			return nil, err
		}
		if member == nil {
			// Lost a concurrent join race on the unique index.
			return nil, ErrAlreadyMember
		}
		return member, nil
	}

	member, err := s.store.CreatePending(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrDuplicateRequest
	}
	return member, nil
}

// CancelJoin withdraws the caller's own pending request
func (s *Service) CancelJoin(ctx context.Context, groupID, userID int64) error {
	if _, err := s.liveGroup(ctx, groupID); err != nil {
		return err
	}

	ok, err := s.store.DeletePending(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrRequestNotFound
	}
	return nil
}

// Decide accepts or rejects a pending join request. Moderator and above.
func (s *Service) Decide(ctx context.Context, groupID, actorID, targetUserID int64, accept bool) (*Membership, error) {
	if _, err := s.liveGroup(ctx, groupID); err != nil {
		return nil, err
	}

	actor, err := s.joinedActor(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if !policy.CanModerate(actor.Role) {
		return nil, ErrNotAuthorized
	}

	target, err := s.store.GetMember(ctx, groupID, targetUserID)
	if err != nil {
		return nil, err
	}
	if target == nil || target.Status != StatusPending {
		return nil, ErrRequestNotFound
	}

	if accept {
		member, err := s.store.ApprovePending(ctx, groupID, targetUserID)
		if err != nil {
			return nil, err
		}
		if member == nil {
			return nil, ErrRequestNotFound
		}
		return member, nil
	}

	ok, err := s.store.DeletePending(ctx, groupID, targetUserID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrRequestNotFound
	}
	return nil, nil
}

// Leave removes the caller's own JOINED membership. The owner cannot
// leave; ownership has to move first so the group is never ownerless.
func (s *Service) Leave(ctx context.Context, groupID, userID int64) error {
	if _, err := s.liveGroup(ctx, groupID); err != nil {
		return err
	}

	member, err := s.store.GetMember(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if member == nil || member.Status != StatusJoined {
		return ErrMemberNotFound
	}
	if member.Role == policy.RoleOwner {
		return ErrOwnerMustTransfer
	}

	ok, err := s.store.DeleteJoinedNonOwner(ctx, groupID, userID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrMemberNotFound
	}
	return nil
}

// Remove ejects another member. Owner or admin, strictly down-rank.
// The member counter moves only if the target actually held JOINED.
func (s *Service) Remove(ctx context.Context, groupID, actorID, targetUserID int64) error {
	if _, err := s.liveGroup(ctx, groupID); err != nil {
		return err
	}

	actor, err := s.joinedActor(ctx, groupID, actorID)
	if err != nil {
		return err
	}

	target, err := s.store.GetMember(ctx, groupID, targetUserID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrMemberNotFound
	}

	if !policy.CanRemove(actor.Role, target.Role) {
		return ErrNotAuthorized
	}

	ok, err := s.store.DeleteWithRole(ctx, groupID, targetUserID, target.Role)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStaleRole
	}
	return nil
}

// Ban flips a JOINED or PENDING membership to BANNED. Moderator and
// above, strictly down-rank. The record survives forever so the user can
// never rejoin.
func (s *Service) Ban(ctx context.Context, groupID, actorID, targetUserID int64) error {
	if _, err := s.liveGroup(ctx, groupID); err != nil {
		return err
	}

	actor, err := s.joinedActor(ctx, groupID, actorID)
	if err != nil {
		return err
	}

	target, err := s.store.GetMember(ctx, groupID, targetUserID)
	if err != nil {
		return err
	}
	if target == nil {
		return ErrMemberNotFound
	}
	if target.Status != StatusJoined && target.Status != StatusPending {
		return ErrInvalidTransition
	}

	if !policy.CanBan(actor.Role, target.Role) {
		return ErrNotAuthorized
	}

	ok, err := s.store.Ban(ctx, groupID, targetUserID, target.Role)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStaleRole
	}
	return nil
}

// Invite creates an INVITED membership for an existing user.
// Moderator and above.
func (s *Service) Invite(ctx context.Context, groupID, actorID, targetUserID int64) (*Membership, error) {
	if _, err := s.liveGroup(ctx, groupID); err != nil {
		return nil, err
	}

	actor, err := s.joinedActor(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if !policy.CanModerate(actor.Role) {
		return nil, ErrNotAuthorized
	}

	exists, err := s.users.Exists(ctx, targetUserID)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, ErrUserNotFound
	}

	existing, err := s.store.GetMember(ctx, groupID, targetUserID)
	if err != nil {
		return nil, err
	}
	if existing != nil {
		if existing.Status == StatusBanned {
			return nil, ErrBanned
		}
		return nil, ErrAlreadyMember
	}

	member, err := s.store.CreateInvited(ctx, groupID, targetUserID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrAlreadyMember
	}
	return member, nil
}

// Promote raises a JOINED member exactly one rung. Owner only.
func (s *Service) Promote(ctx context.Context, groupID, actorID, targetUserID int64, to policy.Role) (*Membership, error) {
	return s.changeRole(ctx, groupID, actorID, targetUserID, to, policy.CanPromote)
}

// Demote lowers a JOINED member exactly one rung. Owner only.
func (s *Service) Demote(ctx context.Context, groupID, actorID, targetUserID int64, to policy.Role) (*Membership, error) {
	return s.changeRole(ctx, groupID, actorID, targetUserID, to, policy.CanDemote)
}

func (s *Service) changeRole(ctx context.Context, groupID, actorID, targetUserID int64, to policy.Role, allowed func(actor, from, to policy.Role) bool) (*Membership, error) {
	if _, err := s.liveGroup(ctx, groupID); err != nil {
		return nil, err
	}

	actor, err := s.joinedActor(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if actor.Role != policy.RoleOwner {
		return nil, ErrNotAuthorized
	}

	target, err := s.store.GetMember(ctx, groupID, targetUserID)
	if err != nil {
		return nil, err
	}
	if target == nil || target.Status != StatusJoined {
		return nil, ErrMemberNotFound
	}

	if !allowed(actor.Role, target.Role, to) {
		return nil, ErrInvalidTransition
	}

	ok, err := s.store.UpdateRole(ctx, groupID, targetUserID, target.Role, to)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, ErrStaleRole
	}

	member, err := s.store.GetMember(ctx, groupID, targetUserID)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return member, nil
}

// TransferOwnership hands the group to an admin. The outgoing owner
// becomes ADMIN and the target becomes OWNER in one all-or-nothing
// exchange, preserving the single-owner invariant.
func (s *Service) TransferOwnership(ctx context.Context, groupID, actorID, targetUserID int64) error {
	if _, err := s.liveGroup(ctx, groupID); err != nil {
		return err
	}

	actor, err := s.joinedActor(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if actor.Role != policy.RoleOwner {
		return ErrNotAuthorized
	}

	target, err := s.store.GetMember(ctx, groupID, targetUserID)
	if err != nil {
		return err
	}
	if target == nil || target.Status != StatusJoined {
		return ErrMemberNotFound
	}
	if !policy.CanTransferOwnership(actor.Role, target.Role) {
		return ErrInvalidTransition
	}

	ok, err := s.store.TransferOwnership(ctx, groupID, actorID, targetUserID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrStaleRole
	}
	return nil
}

// UpdateOwnSettings merges per-member preference flags on the caller's
// own membership
func (s *Service) UpdateOwnSettings(ctx context.Context, groupID, userID int64, req *UpdateOwnSettingsRequest) (*Membership, error) {
	if _, err := s.liveGroup(ctx, groupID); err != nil {
		return nil, err
	}

	member, err := s.store.UpdateOwnSettings(ctx, groupID, userID, req)
	if err != nil {
		return nil, err
	}
	if member == nil {
		return nil, ErrMemberNotFound
	}
	return member, nil
}
