package post

import (
	"context"
	"errors"
	"strings"

	"github.com/microcosm-cc/bluemonday"

	"github.com/hmansour/commune/internal/group"
	"github.com/hmansour/commune/internal/membership"
	"github.com/hmansour/commune/internal/policy"
)

// Common errors
var (
	ErrPostNotFound    = errors.New("post not found")
	ErrNotPending      = errors.New("post is not pending")
	ErrNotAuthorized   = errors.New("not authorized to perform this action")
	ErrPostingDisabled = errors.New("member posting is disabled for this group")
	ErrEmptyBody       = errors.New("post body is empty")
)

// Store is the persistence surface the service needs
type Store interface {
	Create(ctx context.Context, groupID, authorID int64, body string, status ModerationStatus) (*Post, error)
	GetByID(ctx context.Context, groupID, postID int64) (*Post, error)
	Approve(ctx context.Context, groupID, postID int64) (*Post, error)
	Reject(ctx context.Context, groupID, postID int64) (*Post, error)
	SoftDelete(ctx context.Context, groupID, postID int64) (bool, error)
	ListByStatus(ctx context.Context, groupID int64, status ModerationStatus, limit, offset int) ([]*Post, int, error)
}

// GroupSource resolves groups and their pipeline settings
type GroupSource interface {
	GetByID(ctx context.Context, id int64) (*group.Group, error)
}

// MemberSource resolves the acting user's membership
type MemberSource interface {
	GetMember(ctx context.Context, groupID, userID int64) (*membership.Membership, error)
}

// Service drives the two-stage content pipeline: submission lands either
// directly in APPROVED or in the moderation queue, and queue decisions
// are the only transitions out of PENDING.
type Service struct {
	store     Store
	groups    GroupSource
	members   MemberSource
	sanitizer *bluemonday.Policy
}

// NewService creates a new post service
func NewService(store Store, groups GroupSource, members MemberSource) *Service {
	return &Service{
		store:     store,
		groups:    groups,
		members:   members,
		sanitizer: bluemonday.StrictPolicy(),
	}
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

func (s *Service) joinedMember(ctx context.Context, groupID, userID int64) (*membership.Membership, error) {
	member, err := s.members.GetMember(ctx, groupID, userID)
	if err != nil {
		return nil, err
	}
	if member == nil || member.Status != membership.StatusJoined {
		return nil, ErrNotAuthorized
	}
	return member, nil
}

// Submit creates a post. Plain members enter the moderation queue when
// the group requires approval; moderators and above publish directly.
func (s *Service) Submit(ctx context.Context, groupID, authorID int64, req *SubmitPostRequest) (*Post, error) {
	g, err := s.liveGroup(ctx, groupID)
	if err != nil {
		return nil, err
	}

	author, err := s.joinedMember(ctx, groupID, authorID)
	if err != nil {
		return nil, err
	}

	isPlainMember := !policy.CanModerate(author.Role)
	if isPlainMember && !g.Settings.AllowMemberPosting {
		return nil, ErrPostingDisabled
	}

	body := strings.TrimSpace(s.sanitizer.Sanitize(req.Body))
	if body == "" {
		return nil, ErrEmptyBody
	}

	status := StatusApproved
	if g.Settings.RequirePostApproval && isPlainMember {
		status = StatusPending
	}

	return s.store.Create(ctx, groupID, authorID, body, status)
}

// Approve publishes a pending post. Moderator and above.
func (s *Service) Approve(ctx context.Context, groupID, actorID, postID int64) (*Post, error) {
	return s.decide(ctx, groupID, actorID, postID, s.store.Approve)
}

// Reject discards a pending post permanently. Moderator and above.
func (s *Service) Reject(ctx context.Context, groupID, actorID, postID int64) (*Post, error) {
	return s.decide(ctx, groupID, actorID, postID, s.store.Reject)
}

func (s *Service) decide(ctx context.Context, groupID, actorID, postID int64,
	op func(ctx context.Context, groupID, postID int64) (*Post, error)) (*Post, error) {
	if _, err := s.liveGroup(ctx, groupID); err != nil {
		return nil, err
	}

	actor, err := s.joinedMember(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if !policy.CanModerate(actor.Role) {
		return nil, ErrNotAuthorized
	}

	existing, err := s.store.GetByID(ctx, groupID, postID)
	if err != nil {
		return nil, err
	}
	if existing == nil {
		return nil, ErrPostNotFound
	}
	if existing.Status != StatusPending {
		return nil, ErrNotPending
	}

	post, err := op(ctx, groupID, postID)
	if err != nil {
		return nil, err
	}
	if post == nil {
		// Another moderator decided first.
		return nil, ErrNotPending
	}
	return post, nil
}

// Delete soft-deletes a post. The author or any moderator may delete;
// the approved counter moves down only if the post was counted.
func (s *Service) Delete(ctx context.Context, groupID, actorID, postID int64) error {
	if _, err := s.liveGroup(ctx, groupID); err != nil {
		return err
	}

	existing, err := s.store.GetByID(ctx, groupID, postID)
	if err != nil {
		return err
	}
	if existing == nil {
		return ErrPostNotFound
	}

	if existing.AuthorID != actorID {
		actor, err := s.joinedMember(ctx, groupID, actorID)
		if err != nil {
			return err
		}
		if !policy.CanModerate(actor.Role) {
			return ErrNotAuthorized
		}
	}

	ok, err := s.store.SoftDelete(ctx, groupID, postID)
	if err != nil {
		return err
	}
	if !ok {
		return ErrPostNotFound
	}
	return nil
}

// ListPending pages through the moderation queue. Moderator and above.
func (s *Service) ListPending(ctx context.Context, groupID, actorID int64, page, perPage int) ([]*Post, int, error) {
	if _, err := s.liveGroup(ctx, groupID); err != nil {
		return nil, 0, err
	}

	actor, err := s.joinedMember(ctx, groupID, actorID)
	if err != nil {
		return nil, 0, err
	}
	if !policy.CanModerate(actor.Role) {
		return nil, 0, ErrNotAuthorized
	}

	if page < 1 {
		page = 1
	}
	if perPage < 1 || perPage > 100 {
		perPage = 20
	}
	offset := (page - 1) * perPage

	return s.store.ListByStatus(ctx, groupID, StatusPending, perPage, offset)
}
