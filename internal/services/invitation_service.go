package services

import (
	"fmt"
	"time"

	"frly/internal/models"
	"frly/pkg/config"
	"frly/pkg/errors"
	"frly/pkg/logger"
	"frly/pkg/mailer"
	"frly/pkg/token"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// MailDispatcher 邮件投递入口，由Redis队列实现，测试里用内存假实现
type MailDispatcher interface {
	EnqueueMail(to, subject, html string) error
}

// 邀请有效期7天
const inviteTokenTTL = 7 * 24 * time.Hour

// InvitationService 群组邀请服务
//
// 邀请令牌是一次性的：兑换用"仅当仍是pending"的条件更新实现，
// 并发兑换只有一个能成功。过期靠兑换时实时判断，不做后台扫描。
type InvitationService struct {
	db           *gorm.DB
	log          *logrus.Logger
	groupService *GroupService
	mail         MailDispatcher
}

// NewInvitationService 创建邀请服务
func NewInvitationService(db *gorm.DB, groupService *GroupService, mail MailDispatcher) *InvitationService {
	return &InvitationService{
		db:           db,
		log:          logger.GetLogger(),
		groupService: groupService,
		mail:         mail,
	}
}

// 凭密文查询的统一错误。不区分"不存在/已兑换/已过期"，
// 防止拿着链接探测令牌状态
func errInviteInvalid() error {
	return errors.NewValidation("邀请链接无效或已过期")
}

// Send 管理员向已注册用户发送群组邀请
//
// 同一用户在同一群组最多一条待处理邀请：发送前先把旧的pending
// 全部置为declined，再写入新令牌，两步在同一事务里完成。
func (s *InvitationService) Send(groupID, actingUserID uint, inviteeEmail string) error {
	if err := s.groupService.ValidateAdminAccess(actingUserID, groupID); err != nil {
		return err
	}

	group, err := s.groupService.GetByID(groupID)
	if err != nil {
		return err
	}
	if !group.IsActive() {
		return errors.NewConflict("群组当前无法发送邀请")
	}

	var invitee models.User
	err = s.db.Where("email = ?", normalizeEmail(inviteeEmail)).First(&invitee).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.NewNotFound("该邮箱尚未注册")
		}
		return err
	}

	// 已在群里（非removed）的用户不重复邀请
	var member models.GroupMember
	err = s.db.Where("user_id = ? AND group_id = ?", invitee.ID, groupID).First(&member).Error
	if err == nil && member.Status != models.MemberStatusRemoved {
		return errors.NewConflict("该用户已是群组成员或有待审批的申请")
	}
	if err != nil && err != gorm.ErrRecordNotFound {
		return err
	}

	raw, hash, err := token.Issue()
	if err != nil {
		s.log.Errorf("生成邀请令牌失败: %v", err)
		return fmt.Errorf("发送邀请失败")
	}

	invite := &models.GroupInviteToken{
		GroupID:   groupID,
		UserID:    invitee.ID,
		Email:     invitee.Email,
		TokenHash: hash,
		Status:    models.InviteStatusPending,
		ExpiresAt: time.Now().Add(inviteTokenTTL),
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 重发即作废旧邀请
		now := time.Now()
		if err := tx.Model(&models.GroupInviteToken{}).
			Where("group_id = ? AND user_id = ? AND status = ?",
				groupID, invitee.ID, models.InviteStatusPending).
			Updates(map[string]interface{}{
				"status":       models.InviteStatusDeclined,
				"responded_at": now,
			}).Error; err != nil {
			return err
		}
		return tx.Create(invite).Error
	})
	if err != nil {
		s.log.Errorf("写入邀请令牌失败: %v", err)
		return fmt.Errorf("发送邀请失败")
	}

	s.log.WithFields(logrus.Fields{
		"group_id":   groupID,
		"invitee_id": invitee.ID,
		"admin_id":   actingUserID,
	}).Info("群组邀请已发送")

	// 邮件投递失败不回滚邀请，收件人还可以在站内看到待处理邀请
	s.sendInviteMail(&invitee, group, actingUserID, raw)

	return nil
}

func (s *InvitationService) sendInviteMail(invitee *models.User, group *models.Group, inviterID uint, rawToken string) {
	if s.mail == nil {
		return
	}

	inviterName := "群组管理员"
	var inviter models.User
	if err := s.db.First(&inviter, inviterID).Error; err == nil {
		inviterName = inviter.FullName()
	}

	base := config.GetConfig().App.FrontendBaseURL
	html := mailer.Render(mailer.GroupInviteTemplate, map[string]string{
		"FIRST_NAME":          invitee.FirstName,
		"GROUP_NAME":          group.DisplayName,
		"INVITER_NAME":        inviterName,
		"INVITE_ACCEPT_LINK":  fmt.Sprintf("%s/invites/accept?token=%s", base, rawToken),
		"INVITE_DECLINE_LINK": fmt.Sprintf("%s/invites/decline?token=%s", base, rawToken),
	})

	subject := fmt.Sprintf("邀请你加入群组「%s」", group.DisplayName)
	if err := s.mail.EnqueueMail(invitee.Email, subject, html); err != nil {
		s.log.Errorf("邀请邮件入队失败: %v", err)
	}
}

// AcceptBySecret 凭邮件链接里的密文接受邀请
func (s *InvitationService) AcceptBySecret(rawToken string) (*models.Group, error) {
	invite, err := s.findRedeemable(rawToken)
	if err != nil {
		return nil, err
	}
	return s.accept(invite)
}

// DeclineBySecret 凭邮件链接里的密文拒绝邀请
func (s *InvitationService) DeclineBySecret(rawToken string) error {
	invite, err := s.findRedeemable(rawToken)
	if err != nil {
		return err
	}
	return s.decline(invite)
}

// AcceptByID 登录用户在站内接受自己的邀请
func (s *InvitationService) AcceptByID(inviteID, userID uint) (*models.Group, error) {
	invite, err := s.findOwned(inviteID, userID)
	if err != nil {
		return nil, err
	}
	return s.accept(invite)
}

// DeclineByID 登录用户在站内拒绝自己的邀请
func (s *InvitationService) DeclineByID(inviteID, userID uint) error {
	invite, err := s.findOwned(inviteID, userID)
	if err != nil {
		return err
	}
	return s.decline(invite)
}

// findRedeemable 按哈希查找仍可兑换的邀请
func (s *InvitationService) findRedeemable(rawToken string) (*models.GroupInviteToken, error) {
	if rawToken == "" {
		return nil, errInviteInvalid()
	}

	var invite models.GroupInviteToken
	err := s.db.Where("token_hash = ?", token.Hash(rawToken)).First(&invite).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errInviteInvalid()
		}
		return nil, err
	}

	if !invite.IsValid() {
		return nil, errInviteInvalid()
	}
	return &invite, nil
}

// findOwned 按ID查找属于该用户的可兑换邀请
func (s *InvitationService) findOwned(inviteID, userID uint) (*models.GroupInviteToken, error) {
	var invite models.GroupInviteToken
	err := s.db.First(&invite, inviteID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFound("邀请不存在")
		}
		return nil, err
	}

	if invite.UserID != userID {
		s.log.Warnf("安全告警: 用户 %d 尝试操作用户 %d 的邀请 %d", userID, invite.UserID, inviteID)
		return nil, errors.NewNotFound("邀请不存在")
	}

	if !invite.IsValid() {
		return nil, errInviteInvalid()
	}
	return &invite, nil
}

// accept 接受邀请：令牌置为accepted，成员记录落为approved。
// 令牌消费是条件更新，被并发抢先时整个事务失败。
func (s *InvitationService) accept(invite *models.GroupInviteToken) (*models.Group, error) {
	group, err := s.groupService.GetByID(invite.GroupID)
	if err != nil {
		return nil, err
	}
	if !group.IsActive() {
		return nil, errors.NewConflict("群组当前不可加入")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := s.consume(tx, invite.ID, models.InviteStatusAccepted); err != nil {
			return err
		}

		// 该用户在该群组的其他pending邀请一并作废
		now := time.Now()
		if err := tx.Model(&models.GroupInviteToken{}).
			Where("group_id = ? AND user_id = ? AND status = ? AND id <> ?",
				invite.GroupID, invite.UserID, models.InviteStatusPending, invite.ID).
			Updates(map[string]interface{}{
				"status":       models.InviteStatusDeclined,
				"responded_at": now,
			}).Error; err != nil {
			return err
		}

		var member models.GroupMember
		findErr := tx.Where("user_id = ? AND group_id = ?", invite.UserID, invite.GroupID).
			First(&member).Error

		if findErr == nil {
			if member.Status == models.MemberStatusApproved {
				return nil
			}
			if err := transitionMember(tx, &member, models.MemberStatusApproved); err != nil {
				return err
			}
			// 复用旧行时不恢复历史角色
			return resetMemberRole(tx, &member)
		}
		if findErr != gorm.ErrRecordNotFound {
			return findErr
		}

		member = models.GroupMember{
			UserID:   invite.UserID,
			GroupID:  invite.GroupID,
			Role:     models.MemberRoleMember,
			Status:   models.MemberStatusApproved,
			JoinedAt: time.Now(),
		}
		return tx.Create(&member).Error
	})
	if err != nil {
		if errors.AsAppError(err) != nil {
			return nil, err
		}
		s.log.Errorf("接受邀请失败: %v", err)
		return nil, fmt.Errorf("接受邀请失败")
	}

	s.log.WithFields(logrus.Fields{
		"invite_id": invite.ID,
		"user_id":   invite.UserID,
		"group_id":  invite.GroupID,
	}).Info("邀请已接受")

	return group, nil
}

// decline 拒绝邀请：只消费令牌，不触碰成员记录
func (s *InvitationService) decline(invite *models.GroupInviteToken) error {
	err := s.db.Transaction(func(tx *gorm.DB) error {
		return s.consume(tx, invite.ID, models.InviteStatusDeclined)
	})
	if err != nil {
		if errors.AsAppError(err) != nil {
			return err
		}
		s.log.Errorf("拒绝邀请失败: %v", err)
		return fmt.Errorf("拒绝邀请失败")
	}

	s.log.WithFields(logrus.Fields{
		"invite_id": invite.ID,
		"user_id":   invite.UserID,
	}).Info("邀请已拒绝")

	return nil
}

// consume 一次性消费令牌：仅当仍是pending且未过期才更新，
// 影响行数为0说明已被并发消费或刚好过期
func (s *InvitationService) consume(tx *gorm.DB, inviteID uint, target string) error {
	now := time.Now()
	result := tx.Model(&models.GroupInviteToken{}).
		Where("id = ? AND status = ? AND expires_at > ?",
			inviteID, models.InviteStatusPending, now).
		Updates(map[string]interface{}{
			"status":       target,
			"responded_at": now,
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errInviteInvalid()
	}
	return nil
}

// InviteSummary 站内展示用的邀请摘要
type InviteSummary struct {
	ID        uint      `json:"id"`
	GroupID   uint      `json:"group_id"`
	GroupName string    `json:"group_name"`
	ExpiresAt time.Time `json:"expires_at"`
	CreatedAt time.Time `json:"created_at"`
}

// ListMine 列出用户当前可处理的邀请
//
// 只返回未过期的pending，按群组去重保留最新一条
// （理论上发送逻辑已保证唯一，这里兜底）。
func (s *InvitationService) ListMine(userID uint) ([]*InviteSummary, error) {
	var invites []models.GroupInviteToken
	err := s.db.Where("user_id = ? AND status = ? AND expires_at > ?",
		userID, models.InviteStatusPending, time.Now()).
		Preload("Group").
		Order("created_at DESC").
		Find(&invites).Error
	if err != nil {
		return nil, fmt.Errorf("查询邀请列表失败")
	}

	seen := make(map[uint]bool)
	summaries := make([]*InviteSummary, 0, len(invites))
	for i := range invites {
		invite := &invites[i]
		if seen[invite.GroupID] {
			continue
		}
		if invite.Group.Status == models.GroupStatusDeleted {
			continue
		}
		seen[invite.GroupID] = true
		summaries = append(summaries, &InviteSummary{
			ID:        invite.ID,
			GroupID:   invite.GroupID,
			GroupName: invite.Group.DisplayName,
			ExpiresAt: invite.ExpiresAt,
			CreatedAt: invite.CreatedAt,
		})
	}
	return summaries, nil
}
