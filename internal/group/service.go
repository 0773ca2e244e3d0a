package group

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/microcosm-cc/bluemonday"

	"github.com/hmansour/commune/internal/policy"
)

// Common errors
var (
	ErrGroupNotFound  = errors.New("group not found")
	ErrNotAuthorized  = errors.New("not authorized to perform this action")
	ErrInvalidPrivacy = errors.New("invalid privacy mode")
)

// Store is the persistence surface the service needs
type Store interface {
	Create(ctx context.Context, name, slug string, description *string, privacy Privacy, creatorID int64) (*Group, error)
	GetByID(ctx context.Context, id int64) (*Group, error)
	GetBySlug(ctx context.Context, slug string) (*Group, error)
	SlugExists(ctx context.Context, slug string) (bool, error)
	UpdateSettings(ctx context.Context, id int64, req *UpdateSettingsRequest) (*Group, error)
	SoftDelete(ctx context.Context, id int64) error
	ReconcileCounters(ctx context.Context, id int64) (int, int, error)
}

// MemberSource supplies the acting user's membership role for settings
// and deletion gates. Implemented by the membership repository.
type MemberSource interface {
	// JoinedRole returns the user's role and whether they are a JOINED
	// member of the group.
	JoinedRole(ctx context.Context, groupID, userID int64) (policy.Role, bool, error)
}

// Service handles group business logic
type Service struct {
	store     Store
	members   MemberSource
	sanitizer *bluemonday.Policy
}

// NewService creates a new group service
func NewService(store Store, members MemberSource) *Service {
	return &Service{
		store:     store,
		members:   members,
		sanitizer: bluemonday.StrictPolicy(),
	}
}

var slugPattern = regexp.MustCompile(`[^a-z0-9]+`)

// slugify derives a URL-safe slug from a group name
func slugify(name string) string {
	slug := strings.ToLower(name)
	slug = slugPattern.ReplaceAllString(slug, "-")
	return strings.Trim(slug, "-")
}

// Create creates a new group; the creator becomes its OWNER with a JOINED
// membership in the same transaction.
func (s *Service) Create(ctx context.Context, creatorID int64, req *CreateGroupRequest) (*Group, error) {
	name := strings.TrimSpace(s.sanitizer.Sanitize(req.Name))
	description := req.Description
	if description != nil {
		clean := s.sanitizer.Sanitize(*description)
		description = &clean
	}

	privacy := req.Privacy
	if privacy == "" {
		privacy = PrivacyPublic
	}
	if !privacy.Valid() {
		return nil, ErrInvalidPrivacy
	}

	slug := slugify(name)
	if slug == "" {
		slug = "group"
	}
	taken, err := s.store.SlugExists(ctx, slug)
	if err != nil {
		return nil, err
	}
	if taken {
		slug = slug + "-" + uuid.NewString()[:8]
	}

	return s.store.Create(ctx, name, slug, description, privacy, creatorID)
}

// Get retrieves a live group by its ID
func (s *Service) Get(ctx context.Context, id int64) (*Group, error) {
	group, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

// GetBySlug retrieves a live group by its slug
func (s *Service) GetBySlug(ctx context.Context, slug string) (*Group, error) {
	group, err := s.store.GetBySlug(ctx, slug)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

// UpdateSettings merges a partial settings update. Owners and admins only.
func (s *Service) UpdateSettings(ctx context.Context, actorID, groupID int64, req *UpdateSettingsRequest) (*Group, error) {
	if _, err := s.Get(ctx, groupID); err != nil {
		return nil, err
	}

	role, joined, err := s.members.JoinedRole(ctx, groupID, actorID)
	if err != nil {
		return nil, err
	}
	if !joined || !policy.CanEditSettings(role) {
		return nil, ErrNotAuthorized
	}

	if req.Name != nil {
		clean := strings.TrimSpace(s.sanitizer.Sanitize(*req.Name))
		req.Name = &clean
	}
	if req.Description != nil {
		clean := s.sanitizer.Sanitize(*req.Description)
		req.Description = &clean
	}

	group, err := s.store.UpdateSettings(ctx, groupID, req)
	if err != nil {
		return nil, err
	}
	if group == nil {
		return nil, ErrGroupNotFound
	}
	return group, nil
}

// Delete soft-deletes the group and cascades the flag to memberships and
// posts. Owner only; the record is never hard-deleted.
func (s *Service) Delete(ctx context.Context, actorID, groupID int64) error {
	if _, err := s.Get(ctx, groupID); err != nil {
		return err
	}

	role, joined, err := s.members.JoinedRole(ctx, groupID, actorID)
	if err != nil {
		return err
	}
	if !joined || role != policy.RoleOwner {
		return ErrNotAuthorized
	}

	return s.store.SoftDelete(ctx, groupID)
}

// Reconcile recomputes the derived counters from the underlying records.
// Owner only; exists to repair drift, not to paper over it.
func (s *Service) Reconcile(ctx context.Context, actorID, groupID int64) (memberCount, postCount int, err error) {
	if _, err := s.Get(ctx, groupID); err != nil {
		return 0, 0, err
	}

	role, joined, err := s.members.JoinedRole(ctx, groupID, actorID)
	if err != nil {
		return 0, 0, err
	}
	if !joined || role != policy.RoleOwner {
		return 0, 0, ErrNotAuthorized
	}

	return s.store.ReconcileCounters(ctx, groupID)
}
