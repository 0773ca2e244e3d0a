// Package query is the read side of the engine: member listings with
// per-viewer relationship context and computed pending counters. It never
// mutates membership or moderation state.
package query

import (
	"context"
	"errors"

	"github.com/hmansour/commune/internal/group"
	"github.com/hmansour/commune/internal/membership"
	"github.com/hmansour/commune/internal/policy"
	"github.com/hmansour/commune/internal/post"
)

// Common errors
var (
	ErrNotAuthorized = errors.New("not authorized to view this data")
)

// Relation describes how a listed member relates to the viewer
type Relation string

const (
	RelationSelf            Relation = "self"
	RelationFriend          Relation = "friend"
	RelationRequestSent     Relation = "request_sent"
	RelationRequestReceived Relation = "request_received"
	RelationBlocked         Relation = "blocked"
	RelationNone            Relation = "none"
)

// MemberSource resolves and lists memberships
type MemberSource interface {
	GetMember(ctx context.Context, groupID, userID int64) (*membership.Membership, error)
	List(ctx context.Context, groupID int64, status membership.Status, limit, offset int) ([]*membership.Membership, int, error)
	CountByStatus(ctx context.Context, groupID int64, status membership.Status) (int, error)
}

// PostSource counts posts by moderation status
type PostSource interface {
	CountByStatus(ctx context.Context, groupID int64, status post.ModerationStatus) (int, error)
}

// GroupSource resolves groups
type GroupSource interface {
	GetByID(ctx context.Context, id int64) (*group.Group, error)
}

// FriendSource is the external friendship collaborator. The engine only
// reads relations; the graph itself lives elsewhere.
type FriendSource interface {
	Relation(ctx context.Context, viewerID, otherID int64) (Relation, error)
}

// NoRelations is the default FriendSource when no friendship system is
// wired in; every pair reads as unrelated.
type NoRelations struct{}

// Relation always reports RelationNone
func (NoRelations) Relation(ctx context.Context, viewerID, otherID int64) (Relation, error) {
	return RelationNone, nil
}

// Service composes read-side views from the stores
type Service struct {
	groups  GroupSource
	members MemberSource
	posts   PostSource
	friends FriendSource
}

// NewService creates a new query service. A nil friends source falls back
// to NoRelations.
func NewService(groups GroupSource, members MemberSource, posts PostSource, friends FriendSource) *Service {
	if friends == nil {
		friends = NoRelations{}
	}
	return &Service{groups: groups, members: members, posts: posts, friends: friends}
}

// ListMembers pages through a group's members with per-viewer context.
// The default view is the JOINED roster; moderation statuses (PENDING,
// INVITED, BANNED) are only visible to moderators and above. Closed
// groups hide the roster from non-members entirely.
func (s *Service) ListMembers(ctx context.Context, viewerID, groupID int64, status membership.Status, page, perPage int) ([]*MemberView, int, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, 0, err
	}
	if g == nil {
		return nil, 0, group.ErrGroupNotFound
	}

	viewer, err := s.members.GetMember(ctx, groupID, viewerID)
	if err != nil {
		return nil, 0, err
	}
	viewerJoined := viewer != nil && viewer.Status == membership.StatusJoined

	if g.Privacy == group.PrivacyClosed && !viewerJoined {
		return nil, 0, ErrNotAuthorized
	}

	if status == "" {
		status = membership.StatusJoined
	}
	if status != membership.StatusJoined {
		if !viewerJoined || !policy.CanModerate(viewer.Role) {
			return nil, 0, ErrNotAuthorized
		}
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	members, total, err := s.members.List(ctx, groupID, status, perPage, offset)
	if err != nil {
		return nil, 0, err
	}

	views := make([]*MemberView, 0, len(members))
	for _, m := range members {
		relation := RelationSelf
		if m.UserID != viewerID {
			relation, err = s.friends.Relation(ctx, viewerID, m.UserID)
			if err != nil {
				return nil, 0, err
			}
		}

		canManage := false
		if viewerJoined && m.UserID != viewerID {
			canManage = policy.CanRemove(viewer.Role, m.Role) || policy.CanBan(viewer.Role, m.Role)
		}

		views = append(views, newMemberView(m, relation, canManage))
	}

	return views, total, nil
}

// PendingCounts computes the moderation backlog for a group: join
// requests and posts awaiting decision. Computed from the stores on every
// call, never cached. Moderator and above.
func (s *Service) PendingCounts(ctx context.Context, viewerID, groupID int64) (*PendingCounts, error) {
	g, err := s.groups.GetByID(ctx, groupID)
	if err != nil {
		return nil, err
	}
	if g == nil {
		return nil, group.ErrGroupNotFound
	}

	viewer, err := s.members.GetMember(ctx, groupID, viewerID)
	if err != nil {
		return nil, err
	}
	if viewer == nil || viewer.Status != membership.StatusJoined || !policy.CanModerate(viewer.Role) {
		return nil, ErrNotAuthorized
	}

	pendingMembers, err := s.members.CountByStatus(ctx, groupID, membership.StatusPending)
	if err != nil {
		return nil, err
	}
	pendingPosts, err := s.posts.CountByStatus(ctx, groupID, post.StatusPending)
	if err != nil {
		return nil, err
	}

	return &PendingCounts{PendingMembers: pendingMembers, PendingPosts: pendingPosts}, nil
}
