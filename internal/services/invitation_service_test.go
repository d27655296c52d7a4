package services

import (
	"regexp"
	"testing"
	"time"

	"frly/internal/models"
	"frly/pkg/errors"
	"frly/pkg/token"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var inviteLinkPattern = regexp.MustCompile(`token=([A-Za-z0-9_-]+)`)

// lastMailToken 从最近一封邮件的链接里取出原始令牌
func lastMailToken(t *testing.T, mail *fakeMail) string {
	t.Helper()

	require.NotEmpty(t, mail.sent)
	match := inviteLinkPattern.FindStringSubmatch(mail.sent[len(mail.sent)-1].HTML)
	require.Len(t, match, 2)
	return match[1]
}

func TestSendInvite(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@test.com")
	invitee := env.createUser(t, "invitee@test.com")
	group := env.createGroup(t, owner.ID, "家庭")

	require.NoError(t, env.invites.Send(group.ID, owner.ID, invitee.Email))

	// 邮件发给了被邀请人，正文带原始令牌链接
	require.Len(t, env.mail.sent, 1)
	assert.Equal(t, invitee.Email, env.mail.sent[0].To)
	raw := lastMailToken(t, env.mail)

	// 库里只有哈希，没有原文
	var invite models.GroupInviteToken
	require.NoError(t, env.db.Where("user_id = ?", invitee.ID).First(&invite).Error)
	assert.Equal(t, token.Hash(raw), invite.TokenHash)
	assert.NotContains(t, invite.TokenHash, raw)
	assert.Equal(t, models.InviteStatusPending, invite.Status)
	assert.WithinDuration(t, time.Now().Add(inviteTokenTTL), invite.ExpiresAt, time.Minute)
}

func TestSendInviteRules(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@test.com")
	member := env.createUser(t, "member@test.com")
	group := env.createGroup(t, owner.ID, "家庭")

	// 只有管理员能发
	err := env.invites.Send(group.ID, member.ID, "whoever@test.com")
	require.NotNil(t, errors.AsAppError(err))
	assert.Equal(t, errors.CodeForbidden, errors.AsAppError(err).Code)

	// 未注册邮箱不能邀请
	err = env.invites.Send(group.ID, owner.ID, "nobody@test.com")
	require.NotNil(t, errors.AsAppError(err))
	assert.Equal(t, errors.CodeNotFound, errors.AsAppError(err).Code)

	// 已是成员（含待审批）的不重复邀请
	_, err = env.groups.JoinByCode(member.ID, group.InviteCode)
	require.NoError(t, err)
	err = env.invites.Send(group.ID, owner.ID, member.Email)
	require.NotNil(t, errors.AsAppError(err))
	assert.Equal(t, errors.CodeConflict, errors.AsAppError(err).Code)

	// 被移除的可以再邀请
	require.NoError(t, env.groups.ApproveMember(env.memberRow(t, member.ID, group.ID).ID, owner.ID, group.ID))
	require.NoError(t, env.groups.RemoveMember(group.ID, member.ID, owner.ID))
	assert.NoError(t, env.invites.Send(group.ID, owner.ID, member.Email))
}

func TestResendDeclinesPrior(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@test.com")
	invitee := env.createUser(t, "invitee@test.com")
	group := env.createGroup(t, owner.ID, "家庭")

	require.NoError(t, env.invites.Send(group.ID, owner.ID, invitee.Email))
	firstRaw := lastMailToken(t, env.mail)
	require.NoError(t, env.invites.Send(group.ID, owner.ID, invitee.Email))
	secondRaw := lastMailToken(t, env.mail)

	// 任何时刻至多一条pending
	var pendingCount int64
	env.db.Model(&models.GroupInviteToken{}).
		Where("group_id = ? AND user_id = ? AND status = ?",
			group.ID, invitee.ID, models.InviteStatusPending).
		Count(&pendingCount)
	assert.Equal(t, int64(1), pendingCount)

	// 旧链接作废，新链接可用
	_, err := env.invites.AcceptBySecret(firstRaw)
	require.NotNil(t, errors.AsAppError(err))
	assert.Equal(t, "邀请链接无效或已过期", errors.AsAppError(err).Message)

	_, err = env.invites.AcceptBySecret(secondRaw)
	assert.NoError(t, err)
}

func TestAcceptBySecret(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@test.com")
	invitee := env.createUser(t, "invitee@test.com")
	group := env.createGroup(t, owner.ID, "家庭")

	require.NoError(t, env.invites.Send(group.ID, owner.ID, invitee.Email))
	raw := lastMailToken(t, env.mail)

	accepted, err := env.invites.AcceptBySecret(raw)
	require.NoError(t, err)
	assert.Equal(t, group.ID, accepted.ID)

	// 接受即成为已批准成员，跳过审批
	member := env.memberRow(t, invitee.ID, group.ID)
	assert.Equal(t, models.MemberStatusApproved, member.Status)
	assert.Equal(t, models.MemberRoleMember, member.Role)
	assert.NoError(t, env.groups.ValidateGroupAccess(invitee.ID, group.ID))

	// 令牌一次性：重复兑换返回同样的笼统错误
	_, err = env.invites.AcceptBySecret(raw)
	require.NotNil(t, errors.AsAppError(err))
	assert.Equal(t, "邀请链接无效或已过期", errors.AsAppError(err).Message)
}

func TestAcceptRestoresRemovedMember(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@test.com")
	invitee := env.createUser(t, "invitee@test.com")
	group := env.createGroup(t, owner.ID, "家庭")

	_, err := env.groups.JoinByCode(invitee.ID, group.InviteCode)
	require.NoError(t, err)
	rowID := env.memberRow(t, invitee.ID, group.ID).ID
	require.NoError(t, env.groups.ApproveMember(rowID, owner.ID, group.ID))
	require.NoError(t, env.groups.RemoveMember(group.ID, invitee.ID, owner.ID))

	require.NoError(t, env.invites.Send(group.ID, owner.ID, invitee.Email))
	_, err = env.invites.AcceptBySecret(lastMailToken(t, env.mail))
	require.NoError(t, err)

	// removed -> approved 复用同一行
	member := env.memberRow(t, invitee.ID, group.ID)
	assert.Equal(t, rowID, member.ID)
	assert.Equal(t, models.MemberStatusApproved, member.Status)
	assert.Equal(t, int64(1), env.memberRowCount(t, invitee.ID, group.ID))
}

func TestDeclineBySecret(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@test.com")
	invitee := env.createUser(t, "invitee@test.com")
	group := env.createGroup(t, owner.ID, "家庭")

	require.NoError(t, env.invites.Send(group.ID, owner.ID, invitee.Email))
	raw := lastMailToken(t, env.mail)

	require.NoError(t, env.invites.DeclineBySecret(raw))

	// 拒绝不会创建成员记录
	assert.Equal(t, int64(0), env.memberRowCount(t, invitee.ID, group.ID))

	// 拒绝后不可再接受
	_, err := env.invites.AcceptBySecret(raw)
	require.NotNil(t, errors.AsAppError(err))
}

func TestExpiredInvite(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@test.com")
	invitee := env.createUser(t, "invitee@test.com")
	group := env.createGroup(t, owner.ID, "家庭")

	require.NoError(t, env.invites.Send(group.ID, owner.ID, invitee.Email))
	raw := lastMailToken(t, env.mail)

	// 直接把有效期改到过去，不等真实时间
	require.NoError(t, env.db.Model(&models.GroupInviteToken{}).
		Where("user_id = ?", invitee.ID).
		Update("expires_at", time.Now().Add(-time.Hour)).Error)

	_, err := env.invites.AcceptBySecret(raw)
	require.NotNil(t, errors.AsAppError(err))
	assert.Equal(t, "邀请链接无效或已过期", errors.AsAppError(err).Message)

	// 过期邀请在库里保持pending，没有后台任务去改它
	var invite models.GroupInviteToken
	require.NoError(t, env.db.Where("user_id = ?", invitee.ID).First(&invite).Error)
	assert.Equal(t, models.InviteStatusPending, invite.Status)
	assert.False(t, invite.IsValid())
}

func TestInviteOwnership(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@test.com")
	invitee := env.createUser(t, "invitee@test.com")
	other := env.createUser(t, "other@test.com")
	group := env.createGroup(t, owner.ID, "家庭")

	require.NoError(t, env.invites.Send(group.ID, owner.ID, invitee.Email))

	var invite models.GroupInviteToken
	require.NoError(t, env.db.Where("user_id = ?", invitee.ID).First(&invite).Error)

	// 别人的邀请按不存在处理
	_, err := env.invites.AcceptByID(invite.ID, other.ID)
	require.NotNil(t, errors.AsAppError(err))
	assert.Equal(t, errors.CodeNotFound, errors.AsAppError(err).Code)

	// 本人可以在站内接受
	accepted, err := env.invites.AcceptByID(invite.ID, invitee.ID)
	require.NoError(t, err)
	assert.Equal(t, group.ID, accepted.ID)
}

func TestListMine(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@test.com")
	invitee := env.createUser(t, "invitee@test.com")
	groupA := env.createGroup(t, owner.ID, "A组")
	groupB := env.createGroup(t, owner.ID, "B组")

	require.NoError(t, env.invites.Send(groupA.ID, owner.ID, invitee.Email))
	require.NoError(t, env.invites.Send(groupB.ID, owner.ID, invitee.Email))

	list, err := env.invites.ListMine(invitee.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)

	// 接受一个后列表只剩另一个
	_, err = env.invites.AcceptByID(list[0].ID, invitee.ID)
	require.NoError(t, err)

	list, err = env.invites.ListMine(invitee.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
}

// 发送逻辑正常时每对 (群组,用户) 只有一条pending，但并发发送可能
// 绕过作废步骤留下漏网的旧令牌，读路径必须兜底合并为每群组最新一条
func TestListMineCoalescesStaleDuplicates(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@test.com")
	invitee := env.createUser(t, "invitee@test.com")
	group := env.createGroup(t, owner.ID, "家庭")

	require.NoError(t, env.invites.Send(group.ID, owner.ID, invitee.Email))

	var newest models.GroupInviteToken
	require.NoError(t, env.db.
		Where("group_id = ? AND user_id = ?", group.ID, invitee.ID).
		First(&newest).Error)

	// 直接塞一条更早的pending，模拟作废步骤被并发绕过
	stale := &models.GroupInviteToken{
		GroupID:   group.ID,
		UserID:    invitee.ID,
		Email:     invitee.Email,
		TokenHash: token.Hash("stale-duplicate"),
		Status:    models.InviteStatusPending,
		ExpiresAt: time.Now().Add(6 * 24 * time.Hour),
		CreatedAt: time.Now().Add(-time.Hour),
	}
	require.NoError(t, env.db.Create(stale).Error)

	var pendingCount int64
	env.db.Model(&models.GroupInviteToken{}).
		Where("group_id = ? AND user_id = ? AND status = ?",
			group.ID, invitee.ID, models.InviteStatusPending).
		Count(&pendingCount)
	require.Equal(t, int64(2), pendingCount)

	list, err := env.invites.ListMine(invitee.ID)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, newest.ID, list[0].ID)
	assert.NotEqual(t, stale.ID, list[0].ID)
}

// 建群 -> 凭码申请 -> 批准 -> 邀请 -> 接受 -> 重复邀请被拒，完整走一遍
func TestGroupLifecycleScenario(t *testing.T) {
	env := newTestEnv(t)
	alice := env.createUser(t, "alice@test.com")
	bob := env.createUser(t, "bob@test.com")
	carol := env.createUser(t, "carol@test.com")

	group := env.createGroup(t, alice.ID, "家庭")

	_, err := env.groups.JoinByCode(bob.ID, group.InviteCode)
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusPending, env.memberRow(t, bob.ID, group.ID).Status)

	require.NoError(t, env.groups.ApproveMember(env.memberRow(t, bob.ID, group.ID).ID, alice.ID, group.ID))
	assert.Equal(t, models.MemberStatusApproved, env.memberRow(t, bob.ID, group.ID).Status)

	require.NoError(t, env.invites.Send(group.ID, alice.ID, carol.Email))
	_, err = env.invites.AcceptBySecret(lastMailToken(t, env.mail))
	require.NoError(t, err)
	assert.Equal(t, models.MemberStatusApproved, env.memberRow(t, carol.ID, group.ID).Status)

	var accepted models.GroupInviteToken
	require.NoError(t, env.db.Where("user_id = ?", carol.ID).First(&accepted).Error)
	assert.Equal(t, models.InviteStatusAccepted, accepted.Status)
	require.NotNil(t, accepted.RespondedAt)

	// 再邀请已是成员的carol：没有pending可作废，发送直接被拒
	err = env.invites.Send(group.ID, alice.ID, carol.Email)
	require.NotNil(t, errors.AsAppError(err))
	assert.Equal(t, errors.CodeConflict, errors.AsAppError(err).Code)
}

func TestInviteDeletedGroup(t *testing.T) {
	env := newTestEnv(t)
	owner := env.createUser(t, "owner@test.com")
	invitee := env.createUser(t, "invitee@test.com")
	group := env.createGroup(t, owner.ID, "家庭")

	require.NoError(t, env.invites.Send(group.ID, owner.ID, invitee.Email))
	raw := lastMailToken(t, env.mail)

	require.NoError(t, env.groups.Delete(group.ID, owner.ID))

	// 群组删除后邀请不可兑换
	_, err := env.invites.AcceptBySecret(raw)
	require.NotNil(t, errors.AsAppError(err))
	assert.Equal(t, errors.CodeConflict, errors.AsAppError(err).Code)
}
