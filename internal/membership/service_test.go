package membership

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hmansour/commune/internal/group"
	"github.com/hmansour/commune/internal/policy"
)

const (
	ownerID     = int64(10)
	adminID     = int64(11)
	moderatorID = int64(12)
	memberID    = int64(13)
	outsiderID  = int64(20)
)

func newTestService(privacy group.Privacy) (*Service, *fakeStore) {
	store := newFakeStore()
	store.seedGroup(1, ownerID, privacy)
	store.seedMember(1, adminID, policy.RoleAdmin, StatusJoined)
	store.seedMember(1, moderatorID, policy.RoleModerator, StatusJoined)
	store.seedMember(1, memberID, policy.RoleMember, StatusJoined)

	users := newFakeUsers(ownerID, adminID, moderatorID, memberID, outsiderID)
	return NewService(store, store, users), store
}

func TestRequestJoinPublicGroup(t *testing.T) {
	svc, store := newTestService(group.PrivacyPublic)
	before := store.memberCount(1)

	m, err := svc.RequestJoin(context.Background(), 1, outsiderID)
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, StatusJoined, m.Status)
	assert.Equal(t, policy.RoleMember, m.Role)
	assert.Equal(t, JoinMethodRequest, m.JoinMethod)
	assert.NotNil(t, m.JoinedAt)
	assert.Equal(t, before+1, store.memberCount(1))
}

func TestRequestJoinPrivateGroupQueuesPending(t *testing.T) {
	svc, store := newTestService(group.PrivacyPrivate)
	before := store.memberCount(1)

	m, err := svc.RequestJoin(context.Background(), 1, outsiderID)
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, StatusPending, m.Status)
	assert.Nil(t, m.JoinedAt)
	assert.Equal(t, before, store.memberCount(1), "pending requests must not move the member counter")
}

func TestRequestJoinDuplicates(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPrivate)
	ctx := context.Background()

	_, err := svc.RequestJoin(ctx, 1, outsiderID)
	require.NoError(t, err)

	_, err = svc.RequestJoin(ctx, 1, outsiderID)
	assert.ErrorIs(t, err, ErrDuplicateRequest)

	_, err = svc.RequestJoin(ctx, 1, memberID)
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestRequestJoinAcceptsOutstandingInvite(t *testing.T) {
	svc, store := newTestService(group.PrivacyPrivate)
	ctx := context.Background()

	_, err := svc.Invite(ctx, 1, adminID, outsiderID)
	require.NoError(t, err)
	before := store.memberCount(1)

	m, err := svc.RequestJoin(ctx, 1, outsiderID)
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, StatusJoined, m.Status)
	assert.Equal(t, before+1, store.memberCount(1))
}

func TestRequestJoinGroupNotFound(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPublic)

	_, err := svc.RequestJoin(context.Background(), 99, outsiderID)
	assert.ErrorIs(t, err, group.ErrGroupNotFound)
}

func TestCancelJoin(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPrivate)
	ctx := context.Background()

	_, err := svc.RequestJoin(ctx, 1, outsiderID)
	require.NoError(t, err)

	require.NoError(t, svc.CancelJoin(ctx, 1, outsiderID))

	err = svc.CancelJoin(ctx, 1, outsiderID)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestDecideAccept(t *testing.T) {
	svc, store := newTestService(group.PrivacyPrivate)
	ctx := context.Background()

	_, err := svc.RequestJoin(ctx, 1, outsiderID)
	require.NoError(t, err)
	before := store.memberCount(1)

	m, err := svc.Decide(ctx, 1, moderatorID, outsiderID, true)
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, StatusJoined, m.Status)
	assert.Equal(t, policy.RoleMember, m.Role)
	assert.Equal(t, before+1, store.memberCount(1))
}

func TestDecideReject(t *testing.T) {
	svc, store := newTestService(group.PrivacyPrivate)
	ctx := context.Background()

	_, err := svc.RequestJoin(ctx, 1, outsiderID)
	require.NoError(t, err)
	before := store.memberCount(1)

	m, err := svc.Decide(ctx, 1, moderatorID, outsiderID, false)
	require.NoError(t, err)
	assert.Nil(t, m)
	assert.Equal(t, before, store.memberCount(1))

	// A rejected request leaves no record, so the user may ask again.
	again, err := svc.RequestJoin(ctx, 1, outsiderID)
	require.NoError(t, err)
	assert.Equal(t, StatusPending, again.Status)
}

func TestDecideRequiresModerator(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPrivate)
	ctx := context.Background()

	_, err := svc.RequestJoin(ctx, 1, outsiderID)
	require.NoError(t, err)

	_, err = svc.Decide(ctx, 1, memberID, outsiderID, true)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestDecideNoPendingRequest(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPrivate)

	_, err := svc.Decide(context.Background(), 1, moderatorID, memberID, true)
	assert.ErrorIs(t, err, ErrRequestNotFound)
}

func TestLeave(t *testing.T) {
	svc, store := newTestService(group.PrivacyPublic)
	ctx := context.Background()
	before := store.memberCount(1)

	require.NoError(t, svc.Leave(ctx, 1, memberID))
	assert.Equal(t, before-1, store.memberCount(1))

	// The record is gone, so re-joining starts from scratch.
	m, err := svc.RequestJoin(ctx, 1, memberID)
	require.NoError(t, err)
	assert.Equal(t, StatusJoined, m.Status)
	assert.Equal(t, policy.RoleMember, m.Role)
}

func TestLeaveOwnerBlocked(t *testing.T) {
	svc, store := newTestService(group.PrivacyPublic)

	err := svc.Leave(context.Background(), 1, ownerID)
	assert.ErrorIs(t, err, ErrOwnerMustTransfer)
	assert.Equal(t, 4, store.memberCount(1))
}

func TestLeaveNotMember(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPublic)

	err := svc.Leave(context.Background(), 1, outsiderID)
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

func TestRemoveMember(t *testing.T) {
	svc, store := newTestService(group.PrivacyPublic)
	before := store.memberCount(1)

	require.NoError(t, svc.Remove(context.Background(), 1, adminID, memberID))
	assert.Equal(t, before-1, store.memberCount(1))
}

func TestRemovePendingDoesNotTouchCounter(t *testing.T) {
	svc, store := newTestService(group.PrivacyPrivate)
	ctx := context.Background()

	_, err := svc.RequestJoin(ctx, 1, outsiderID)
	require.NoError(t, err)
	before := store.memberCount(1)

	require.NoError(t, svc.Remove(ctx, 1, adminID, outsiderID))
	assert.Equal(t, before, store.memberCount(1))
}

func TestRemoveEqualRankForbidden(t *testing.T) {
	svc, store := newTestService(group.PrivacyPublic)
	store.seedMember(1, outsiderID, policy.RoleAdmin, StatusJoined)

	err := svc.Remove(context.Background(), 1, adminID, outsiderID)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestRemoveOwnerForbidden(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPublic)

	err := svc.Remove(context.Background(), 1, adminID, ownerID)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestModeratorCannotRemove(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPublic)

	err := svc.Remove(context.Background(), 1, moderatorID, memberID)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestBanMember(t *testing.T) {
	svc, store := newTestService(group.PrivacyPublic)
	ctx := context.Background()
	before := store.memberCount(1)

	require.NoError(t, svc.Ban(ctx, 1, moderatorID, memberID))
	assert.Equal(t, before-1, store.memberCount(1))

	banned, err := store.GetMember(ctx, 1, memberID)
	require.NoError(t, err)
	require.NotNil(t, banned, "the banned record must survive")
	assert.Equal(t, StatusBanned, banned.Status)
}

func TestBanIsPermanent(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPublic)
	ctx := context.Background()

	require.NoError(t, svc.Ban(ctx, 1, moderatorID, memberID))

	_, err := svc.RequestJoin(ctx, 1, memberID)
	assert.ErrorIs(t, err, ErrBanned)

	_, err = svc.Invite(ctx, 1, adminID, memberID)
	assert.ErrorIs(t, err, ErrBanned)
}

func TestBanPendingRequest(t *testing.T) {
	svc, store := newTestService(group.PrivacyPrivate)
	ctx := context.Background()

	_, err := svc.RequestJoin(ctx, 1, outsiderID)
	require.NoError(t, err)
	before := store.memberCount(1)

	require.NoError(t, svc.Ban(ctx, 1, moderatorID, outsiderID))
	assert.Equal(t, before, store.memberCount(1), "banning a pending request must not move the counter")
}

func TestBanEqualRankForbidden(t *testing.T) {
	svc, store := newTestService(group.PrivacyPublic)
	store.seedMember(1, outsiderID, policy.RoleModerator, StatusJoined)

	err := svc.Ban(context.Background(), 1, moderatorID, outsiderID)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestBanInvitedForbidden(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPrivate)
	ctx := context.Background()

	_, err := svc.Invite(ctx, 1, adminID, outsiderID)
	require.NoError(t, err)

	err = svc.Ban(ctx, 1, moderatorID, outsiderID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestInvite(t *testing.T) {
	svc, store := newTestService(group.PrivacyPrivate)

	m, err := svc.Invite(context.Background(), 1, moderatorID, outsiderID)
	require.NoError(t, err)
	require.NotNil(t, m)

	assert.Equal(t, StatusInvited, m.Status)
	assert.Equal(t, JoinMethodInvite, m.JoinMethod)
	assert.Equal(t, 4, store.memberCount(1))
}

func TestInviteUnknownUser(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPrivate)

	_, err := svc.Invite(context.Background(), 1, adminID, 999)
	assert.ErrorIs(t, err, ErrUserNotFound)
}

func TestInviteExistingMember(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPrivate)

	_, err := svc.Invite(context.Background(), 1, adminID, memberID)
	assert.ErrorIs(t, err, ErrAlreadyMember)
}

func TestInviteRequiresModerator(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPrivate)

	_, err := svc.Invite(context.Background(), 1, memberID, outsiderID)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestPromoteDemoteRoundTrip(t *testing.T) {
	svc, store := newTestService(group.PrivacyPublic)
	ctx := context.Background()
	before := store.memberCount(1)

	m, err := svc.Promote(ctx, 1, ownerID, memberID, policy.RoleModerator)
	require.NoError(t, err)
	assert.Equal(t, policy.RoleModerator, m.Role)

	m, err = svc.Demote(ctx, 1, ownerID, memberID, policy.RoleMember)
	require.NoError(t, err)
	assert.Equal(t, policy.RoleMember, m.Role)

	assert.Equal(t, before, store.memberCount(1), "role changes must never move the member counter")
}

func TestPromoteSkippingRank(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPublic)

	_, err := svc.Promote(context.Background(), 1, ownerID, memberID, policy.RoleAdmin)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPromoteToOwnerForbidden(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPublic)

	_, err := svc.Promote(context.Background(), 1, ownerID, adminID, policy.RoleOwner)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestPromoteRequiresOwner(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPublic)

	_, err := svc.Promote(context.Background(), 1, adminID, memberID, policy.RoleModerator)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestDemoteOwnerForbidden(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPublic)

	_, err := svc.Demote(context.Background(), 1, ownerID, ownerID, policy.RoleAdmin)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransferOwnership(t *testing.T) {
	svc, store := newTestService(group.PrivacyPublic)
	ctx := context.Background()

	require.NoError(t, svc.TransferOwnership(ctx, 1, ownerID, adminID))

	oldOwner, err := store.GetMember(ctx, 1, ownerID)
	require.NoError(t, err)
	assert.Equal(t, policy.RoleAdmin, oldOwner.Role)

	newOwner, err := store.GetMember(ctx, 1, adminID)
	require.NoError(t, err)
	assert.Equal(t, policy.RoleOwner, newOwner.Role)

	g, err := store.GetByID(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, adminID, g.OwnerID)

	// Exactly one owner before and after.
	owners := 0
	for _, id := range []int64{ownerID, adminID, moderatorID, memberID} {
		m, err := store.GetMember(ctx, 1, id)
		require.NoError(t, err)
		if m.Role == policy.RoleOwner {
			owners++
		}
	}
	assert.Equal(t, 1, owners)
}

func TestTransferOwnershipToNonAdmin(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPublic)

	err := svc.TransferOwnership(context.Background(), 1, ownerID, memberID)
	assert.ErrorIs(t, err, ErrInvalidTransition)
}

func TestTransferOwnershipRequiresOwner(t *testing.T) {
	svc, store := newTestService(group.PrivacyPublic)
	store.seedMember(1, outsiderID, policy.RoleAdmin, StatusJoined)

	err := svc.TransferOwnership(context.Background(), 1, adminID, outsiderID)
	assert.ErrorIs(t, err, ErrNotAuthorized)
}

func TestUpdateOwnSettings(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPublic)
	muted := true

	m, err := svc.UpdateOwnSettings(context.Background(), 1, memberID, &UpdateOwnSettingsRequest{IsMuted: &muted})
	require.NoError(t, err)

	assert.True(t, m.Settings.IsMuted)
	assert.False(t, m.Settings.IsPinned, "unset fields keep their value")
}

func TestUpdateOwnSettingsNotJoined(t *testing.T) {
	svc, _ := newTestService(group.PrivacyPublic)
	muted := true

	_, err := svc.UpdateOwnSettings(context.Background(), 1, outsiderID, &UpdateOwnSettingsRequest{IsMuted: &muted})
	assert.ErrorIs(t, err, ErrMemberNotFound)
}

// Counter consistency across a mixed sequence of transitions.
func TestMemberCountMatchesJoinedRows(t *testing.T) {
	svc, store := newTestService(group.PrivacyPrivate)
	ctx := context.Background()

	_, err := svc.RequestJoin(ctx, 1, outsiderID)
	require.NoError(t, err)
	_, err = svc.Decide(ctx, 1, adminID, outsiderID, true)
	require.NoError(t, err)

	require.NoError(t, svc.Ban(ctx, 1, adminID, memberID))
	require.NoError(t, svc.Leave(ctx, 1, moderatorID))

	_, err = svc.Invite(ctx, 1, adminID, int64(30))
	assert.ErrorIs(t, err, ErrUserNotFound)

	assert.Equal(t, store.joinedCount(1), store.memberCount(1))
}
