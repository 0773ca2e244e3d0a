package membership

import (
	"context"
	"sync"
	"time"

	"github.com/hmansour/commune/internal/group"
	"github.com/hmansour/commune/internal/policy"
)

// fakeStore is an in-memory Store and GroupSource with the same
// conditional semantics as the SQL repository, so the state machine can
// be exercised without Postgres.
type fakeStore struct {
	mu      sync.Mutex
	nextID  int64
	members map[[2]int64]*Membership
	groups  map[int64]*group.Group
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		members: make(map[[2]int64]*Membership),
		groups:  make(map[int64]*group.Group),
	}
}

func (f *fakeStore) key(groupID, userID int64) [2]int64 {
	return [2]int64{groupID, userID}
}

// seedGroup creates a group whose owner already holds a JOINED membership
func (f *fakeStore) seedGroup(id, ownerID int64, privacy group.Privacy) *group.Group {
	f.mu.Lock()
	defer f.mu.Unlock()

	g := &group.Group{
		ID:          id,
		Name:        "Test Group",
		Slug:        "test-group",
		Privacy:     privacy,
		Settings:    group.Settings{AllowMemberPosting: true},
		MemberCount: 1,
		OwnerID:     ownerID,
		CreatorID:   ownerID,
		CreatedAt:   time.Now(),
	}
	f.groups[id] = g

	now := time.Now()
	f.nextID++
	f.members[f.key(id, ownerID)] = &Membership{
		ID:         f.nextID,
		GroupID:    id,
		UserID:     ownerID,
		Role:       policy.RoleOwner,
		Status:     StatusJoined,
		JoinMethod: JoinMethodCreator,
		JoinedAt:   &now,
		CreatedAt:  now,
	}
	return g
}

// seedMember inserts a membership directly, bypassing the state machine
func (f *fakeStore) seedMember(groupID, userID int64, role policy.Role, status Status) {
	f.mu.Lock()
	defer f.mu.Unlock()

	now := time.Now()
	f.nextID++
	m := &Membership{
		ID:         f.nextID,
		GroupID:    groupID,
		UserID:     userID,
		Role:       role,
		Status:     status,
		JoinMethod: JoinMethodRequest,
		CreatedAt:  now,
	}
	if status == StatusJoined {
		m.JoinedAt = &now
		f.groups[groupID].MemberCount++
	}
	f.members[f.key(groupID, userID)] = m
}

func (f *fakeStore) joinedCount(groupID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	count := 0
	for _, m := range f.members {
		if m.GroupID == groupID && m.Status == StatusJoined {
			count++
		}
	}
	return count
}

func (f *fakeStore) memberCount(groupID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.groups[groupID].MemberCount
}

func (f *fakeStore) GetByID(ctx context.Context, id int64) (*group.Group, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	g, ok := f.groups[id]
	if !ok || g.IsDeleted {
		return nil, nil
	}
	return g, nil
}

func (f *fakeStore) GetMember(ctx context.Context, groupID, userID int64) (*Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.members[f.key(groupID, userID)]
	if !ok || m.IsDeleted {
		return nil, nil
	}
	copied := *m
	return &copied, nil
}

func (f *fakeStore) CreateJoined(ctx context.Context, groupID, userID int64, method JoinMethod) (*Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.members[f.key(groupID, userID)]; exists {
		return nil, nil
	}

	now := time.Now()
	f.nextID++
	m := &Membership{
		ID:         f.nextID,
		GroupID:    groupID,
		UserID:     userID,
		Role:       policy.RoleMember,
		Status:     StatusJoined,
		JoinMethod: method,
		JoinedAt:   &now,
		CreatedAt:  now,
	}
	f.members[f.key(groupID, userID)] = m
	f.groups[groupID].MemberCount++

	copied := *m
	return &copied, nil
}

func (f *fakeStore) createWithStatus(groupID, userID int64, status Status, method JoinMethod) *Membership {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.members[f.key(groupID, userID)]; exists {
		return nil
	}

	f.nextID++
	m := &Membership{
		ID:         f.nextID,
		GroupID:    groupID,
		UserID:     userID,
		Role:       policy.RoleMember,
		Status:     status,
		JoinMethod: method,
		CreatedAt:  time.Now(),
	}
	f.members[f.key(groupID, userID)] = m

	copied := *m
	return &copied
}

func (f *fakeStore) CreatePending(ctx context.Context, groupID, userID int64) (*Membership, error) {
	return f.createWithStatus(groupID, userID, StatusPending, JoinMethodRequest), nil
}

func (f *fakeStore) CreateInvited(ctx context.Context, groupID, userID int64) (*Membership, error) {
	return f.createWithStatus(groupID, userID, StatusInvited, JoinMethodInvite), nil
}

func (f *fakeStore) promoteToJoined(groupID, userID int64, from Status) *Membership {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.members[f.key(groupID, userID)]
	if !ok || m.IsDeleted || m.Status != from {
		return nil
	}

	now := time.Now()
	m.Status = StatusJoined
	m.JoinedAt = &now
	f.groups[groupID].MemberCount++

	copied := *m
	return &copied
}

func (f *fakeStore) AcceptInvite(ctx context.Context, groupID, userID int64) (*Membership, error) {
	return f.promoteToJoined(groupID, userID, StatusInvited), nil
}

func (f *fakeStore) ApprovePending(ctx context.Context, groupID, userID int64) (*Membership, error) {
	return f.promoteToJoined(groupID, userID, StatusPending), nil
}

func (f *fakeStore) DeletePending(ctx context.Context, groupID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.members[f.key(groupID, userID)]
	if !ok || m.Status != StatusPending {
		return false, nil
	}
	delete(f.members, f.key(groupID, userID))
	return true, nil
}

func (f *fakeStore) DeleteJoinedNonOwner(ctx context.Context, groupID, userID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.members[f.key(groupID, userID)]
	if !ok || m.Status != StatusJoined || m.Role == policy.RoleOwner {
		return false, nil
	}
	delete(f.members, f.key(groupID, userID))
	f.groups[groupID].MemberCount--
	return true, nil
}

func (f *fakeStore) DeleteWithRole(ctx context.Context, groupID, userID int64, expectedRole policy.Role) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.members[f.key(groupID, userID)]
	if !ok || m.Role != expectedRole {
		return false, nil
	}
	delete(f.members, f.key(groupID, userID))
	if m.Status == StatusJoined {
		f.groups[groupID].MemberCount--
	}
	return true, nil
}

func (f *fakeStore) Ban(ctx context.Context, groupID, userID int64, expectedRole policy.Role) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.members[f.key(groupID, userID)]
	if !ok || m.IsDeleted || m.Role != expectedRole {
		return false, nil
	}
	if m.Status != StatusJoined && m.Status != StatusPending {
		return false, nil
	}
	if m.Status == StatusJoined {
		f.groups[groupID].MemberCount--
	}
	m.Status = StatusBanned
	return true, nil
}

func (f *fakeStore) UpdateRole(ctx context.Context, groupID, userID int64, from, to policy.Role) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.members[f.key(groupID, userID)]
	if !ok || m.IsDeleted || m.Role != from || m.Status != StatusJoined {
		return false, nil
	}
	m.Role = to
	return true, nil
}

func (f *fakeStore) TransferOwnership(ctx context.Context, groupID, ownerID, targetID int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	owner, ok := f.members[f.key(groupID, ownerID)]
	if !ok || owner.Role != policy.RoleOwner || owner.Status != StatusJoined {
		return false, nil
	}
	target, ok := f.members[f.key(groupID, targetID)]
	if !ok || target.Role != policy.RoleAdmin || target.Status != StatusJoined {
		return false, nil
	}

	owner.Role = policy.RoleAdmin
	target.Role = policy.RoleOwner
	f.groups[groupID].OwnerID = targetID
	return true, nil
}

func (f *fakeStore) UpdateOwnSettings(ctx context.Context, groupID, userID int64, req *UpdateOwnSettingsRequest) (*Membership, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	m, ok := f.members[f.key(groupID, userID)]
	if !ok || m.IsDeleted || m.Status != StatusJoined {
		return nil, nil
	}
	if req.IsMuted != nil {
		m.Settings.IsMuted = *req.IsMuted
	}
	if req.IsFollowing != nil {
		m.Settings.IsFollowing = *req.IsFollowing
	}
	if req.IsPinned != nil {
		m.Settings.IsPinned = *req.IsPinned
	}

	copied := *m
	return &copied, nil
}

// fakeUsers is an in-memory UserSource
type fakeUsers struct {
	ids map[int64]bool
}

func newFakeUsers(ids ...int64) *fakeUsers {
	f := &fakeUsers{ids: make(map[int64]bool)}
	for _, id := range ids {
		f.ids[id] = true
	}
	return f
}

func (f *fakeUsers) Exists(ctx context.Context, id int64) (bool, error) {
	return f.ids[id], nil
}
