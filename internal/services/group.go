package services

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"sort"
	"time"

	"frly/internal/models"
	"frly/pkg/errors"
	"frly/pkg/logger"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"
)

// GroupService 群组与成员关系服务
//
// 成员状态是单行可变记录：removed的行不删除，重新加入时复用，
// (user_id, group_id) 唯一索引从结构上杜绝重复成员。
// 所有群组内操作执行前必须先过 ValidateGroupAccess / ValidateAdminAccess。
type GroupService struct {
	db                  *gorm.DB
	log                 *logrus.Logger
	notificationService *NotificationService
}

// NewGroupService 创建群组服务
func NewGroupService(db *gorm.DB, notificationService *NotificationService) *GroupService {
	return &GroupService{
		db:                  db,
		log:                 logger.GetLogger(),
		notificationService: notificationService,
	}
}

// 加入码字符集，去掉易混淆的 I/O/0
const (
	inviteCodeChars  = "ABCDEFGHJKLMNPQRSTUVWXYZ123456789"
	inviteCodeLength = 8
)

// 默认存储配额 1GB
const defaultStorageLimit = int64(1 << 30)

// ========== 访问控制 ==========

// ValidateGroupAccess 校验用户是已批准的群组成员
//
// "没有成员记录"和"记录存在但未批准"只在日志里区分，
// 返回给调用方的错误统一为拒绝访问，避免探测成员状态。
func (s *GroupService) ValidateGroupAccess(userID, groupID uint) error {
	var member models.GroupMember
	err := s.db.Where("user_id = ? AND group_id = ?", userID, groupID).First(&member).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			s.log.Warnf("安全告警: 用户 %d 不是群组 %d 的成员，访问被拒绝", userID, groupID)
			return errors.NewAccessDenied("无权访问该群组")
		}
		return err
	}

	if member.Status != models.MemberStatusApproved {
		s.log.Warnf("安全告警: 用户 %d 在群组 %d 的成员状态为 %s，访问被拒绝", userID, groupID, member.Status)
		return errors.NewAccessDenied("无权访问该群组")
	}

	return nil
}

// ValidateAdminAccess 校验用户是已批准的群组管理员
func (s *GroupService) ValidateAdminAccess(userID, groupID uint) error {
	var member models.GroupMember
	err := s.db.Where("user_id = ? AND group_id = ?", userID, groupID).First(&member).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			s.log.Warnf("安全告警: 用户 %d 不是群组 %d 的成员，管理操作被拒绝", userID, groupID)
			return errors.NewAccessDenied("无权访问该群组")
		}
		return err
	}

	if member.Status != models.MemberStatusApproved {
		s.log.Warnf("安全告警: 未批准成员 %d 尝试管理群组 %d", userID, groupID)
		return errors.NewAccessDenied("无权访问该群组")
	}

	if member.Role != models.MemberRoleAdmin {
		s.log.Warnf("安全告警: 非管理员 %d 尝试管理群组 %d", userID, groupID)
		return errors.NewAccessDenied("仅限群组管理员操作")
	}

	return nil
}

// ========== 群组生命周期 ==========

// Create 创建群组，创建人直接成为已批准的管理员
func (s *GroupService) Create(userID uint, displayName string) (*models.Group, error) {
	if displayName == "" {
		return nil, errors.NewValidation("群组名称不能为空")
	}

	inviteCode, err := s.generateInviteCode()
	if err != nil {
		return nil, err
	}

	group := &models.Group{
		DisplayName:  displayName,
		Status:       models.GroupStatusActive,
		InviteCode:   inviteCode,
		StorageLimit: defaultStorageLimit,
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(group).Error; err != nil {
			return err
		}

		member := &models.GroupMember{
			UserID:   userID,
			GroupID:  group.ID,
			Role:     models.MemberRoleAdmin,
			Status:   models.MemberStatusApproved,
			JoinedAt: time.Now(),
		}
		return tx.Create(member).Error
	})
	if err != nil {
		s.log.Errorf("创建群组失败: %v", err)
		return nil, fmt.Errorf("创建群组失败")
	}

	s.log.WithFields(logrus.Fields{
		"group_id": group.ID,
		"user_id":  userID,
	}).Info("群组创建成功")

	return group, nil
}

// generateInviteCode 生成未被占用的加入码
func (s *GroupService) generateInviteCode() (string, error) {
	for {
		code := make([]byte, inviteCodeLength)
		for i := range code {
			n, err := rand.Int(rand.Reader, big.NewInt(int64(len(inviteCodeChars))))
			if err != nil {
				return "", err
			}
			code[i] = inviteCodeChars[n.Int64()]
		}

		var count int64
		if err := s.db.Model(&models.Group{}).Where("invite_code = ?", string(code)).Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return string(code), nil
		}
	}
}

// GetByID 根据ID获取群组
func (s *GroupService) GetByID(id uint) (*models.Group, error) {
	var group models.Group
	err := s.db.First(&group, id).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewNotFound("群组不存在")
		}
		return nil, err
	}
	return &group, nil
}

// Update 更新群组名称（管理员）
func (s *GroupService) Update(groupID, actingUserID uint, displayName string) (*models.Group, error) {
	if err := s.ValidateAdminAccess(actingUserID, groupID); err != nil {
		return nil, err
	}
	if displayName == "" {
		return nil, errors.NewValidation("没有可更新的内容")
	}

	group, err := s.GetByID(groupID)
	if err != nil {
		return nil, err
	}
	if !group.IsActive() {
		return nil, errors.NewConflict("群组已删除，无法更新")
	}

	group.DisplayName = displayName
	if err := s.db.Save(group).Error; err != nil {
		return nil, fmt.Errorf("更新群组失败")
	}
	return group, nil
}

// Delete 软删除群组（管理员）。成员关系保留，访问由群组状态拦截
func (s *GroupService) Delete(groupID, actingUserID uint) error {
	if err := s.ValidateAdminAccess(actingUserID, groupID); err != nil {
		return err
	}

	group, err := s.GetByID(groupID)
	if err != nil {
		return err
	}

	group.Status = models.GroupStatusDeleted
	if err := s.db.Save(group).Error; err != nil {
		return fmt.Errorf("删除群组失败")
	}

	s.log.WithField("group_id", groupID).Info("群组已删除")
	return nil
}

// ========== 成员状态机 ==========

// transitionMember 按迁移表推进成员状态
//
// 更新带"状态仍是读到的值"条件，并发修改时影响行数为0，
// 整个事务以冲突错误收场而不是覆盖别人的迁移。
func transitionMember(tx *gorm.DB, member *models.GroupMember, target string) error {
	if !member.CanTransitionTo(target) {
		return errors.NewConflict(fmt.Sprintf("成员状态不允许从 %s 变为 %s", member.Status, target))
	}

	result := tx.Model(&models.GroupMember{}).
		Where("id = ? AND status = ?", member.ID, member.Status).
		Update("status", target)
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return errors.NewConflict("成员状态已变化，请重试")
	}

	member.Status = target
	return nil
}

// resetMemberRole 把复用的成员行降回普通成员角色
func resetMemberRole(tx *gorm.DB, member *models.GroupMember) error {
	if member.Role == models.MemberRoleMember {
		return nil
	}
	if err := tx.Model(&models.GroupMember{}).
		Where("id = ?", member.ID).
		Update("role", models.MemberRoleMember).Error; err != nil {
		return err
	}
	member.Role = models.MemberRoleMember
	return nil
}

// JoinByCode 凭加入码申请加入群组
//
// 已有removed记录时复用该行回到pending（重新加入），
// 其他任何现存记录都视为"已是成员或待审批"。
func (s *GroupService) JoinByCode(userID uint, inviteCode string) (*models.Group, error) {
	if inviteCode == "" {
		return nil, errors.NewValidation("加入码不能为空")
	}

	var group models.Group
	err := s.db.Where("invite_code = ?", inviteCode).First(&group).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, errors.NewValidation("加入码无效")
		}
		return nil, err
	}

	if !group.IsActive() {
		return nil, errors.NewConflict("群组当前不可加入")
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		var existing models.GroupMember
		findErr := tx.Where("user_id = ? AND group_id = ?", userID, group.ID).
			First(&existing).Error

		if findErr == nil {
			if existing.Status != models.MemberStatusRemoved {
				return errors.NewConflict("你已是该群组成员或有待审批的申请")
			}
			// 重新加入：复用removed行，不新插入
			if err := transitionMember(tx, &existing, models.MemberStatusPending); err != nil {
				return err
			}
			// 曾经的管理员重新加入时降为普通成员，不自动恢复权限
			return resetMemberRole(tx, &existing)
		}
		if findErr != gorm.ErrRecordNotFound {
			return findErr
		}

		member := &models.GroupMember{
			UserID:   userID,
			GroupID:  group.ID,
			Role:     models.MemberRoleMember,
			Status:   models.MemberStatusPending,
			JoinedAt: time.Now(),
		}
		return tx.Create(member).Error
	})
	if err != nil {
		if errors.AsAppError(err) != nil {
			return nil, err
		}
		s.log.Errorf("申请加入群组失败: %v", err)
		return nil, fmt.Errorf("申请加入群组失败")
	}

	s.log.WithFields(logrus.Fields{
		"user_id":  userID,
		"group_id": group.ID,
	}).Info("用户申请加入群组")

	// 通知该群组所有管理员
	s.notifyAdmins(group.ID, 0, models.NotifyGroupJoinRequest,
		fmt.Sprintf("%s 申请加入群组「%s」", s.userDisplayName(userID), group.DisplayName))

	return &group, nil
}

// ApproveMember 批准待审批成员（管理员）
//
// 目标群组一律以成员记录自身的group_id为准；
// 外部传入的群组ID只用于交叉校验，不一致直接报错。
func (s *GroupService) ApproveMember(memberID, actingUserID, contextGroupID uint) error {
	var member models.GroupMember
	err := s.db.First(&member, memberID).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.NewNotFound("成员申请不存在")
		}
		return err
	}

	if contextGroupID != 0 && contextGroupID != member.GroupID {
		return errors.NewValidation("成员不属于当前群组")
	}

	if err := s.ValidateAdminAccess(actingUserID, member.GroupID); err != nil {
		return err
	}

	err = s.db.Transaction(func(tx *gorm.DB) error {
		// 事务内重读，和并发的退出/移除以条件更新串行化
		var current models.GroupMember
		if err := tx.First(&current, memberID).Error; err != nil {
			return err
		}
		if current.Status != models.MemberStatusPending {
			return errors.NewConflict("该申请已处理")
		}
		return transitionMember(tx, &current, models.MemberStatusApproved)
	})
	if err != nil {
		if errors.AsAppError(err) != nil {
			return err
		}
		s.log.Errorf("批准成员失败: %v", err)
		return fmt.Errorf("批准成员失败")
	}

	s.log.WithFields(logrus.Fields{
		"member_id": memberID,
		"group_id":  member.GroupID,
		"admin_id":  actingUserID,
	}).Info("成员申请已批准")

	group, err := s.GetByID(member.GroupID)
	if err == nil {
		s.notificationService.NotifyUser(member.UserID, models.NotifyGroupJoinApproved,
			fmt.Sprintf("你加入群组「%s」的申请已通过", group.DisplayName))
	}

	return nil
}

// RemoveMember 移除成员
//
// 两种场景：本人退出（始终允许）和管理员移除他人（需要管理员权限）。
// 两者都把状态推进到removed，行保留以支持将来重新加入。
func (s *GroupService) RemoveMember(groupID, targetUserID, actingUserID uint) error {
	selfLeave := actingUserID == targetUserID
	if !selfLeave {
		if err := s.ValidateAdminAccess(actingUserID, groupID); err != nil {
			return err
		}
	}

	var member models.GroupMember
	err := s.db.Transaction(func(tx *gorm.DB) error {
		findErr := tx.Where("user_id = ? AND group_id = ?", targetUserID, groupID).
			First(&member).Error
		if findErr != nil {
			if findErr == gorm.ErrRecordNotFound {
				return errors.NewNotFound("该用户不是群组成员")
			}
			return findErr
		}
		return transitionMember(tx, &member, models.MemberStatusRemoved)
	})
	if err != nil {
		if errors.AsAppError(err) != nil {
			return err
		}
		s.log.Errorf("移除成员失败: %v", err)
		return fmt.Errorf("移除成员失败")
	}

	group, groupErr := s.GetByID(groupID)
	groupName := ""
	if groupErr == nil {
		groupName = group.DisplayName
	}

	if selfLeave {
		s.log.WithFields(logrus.Fields{
			"user_id":  targetUserID,
			"group_id": groupID,
		}).Info("成员退出群组")

		s.notificationService.NotifyUser(targetUserID, models.NotifyGroupLeft,
			fmt.Sprintf("你已退出群组「%s」", groupName))
		// 通知除本人外的所有管理员
		s.notifyAdmins(groupID, targetUserID, models.NotifyGroupMemberLeft,
			fmt.Sprintf("%s 退出了群组「%s」", s.userDisplayName(targetUserID), groupName))
	} else {
		s.log.WithFields(logrus.Fields{
			"user_id":  targetUserID,
			"group_id": groupID,
			"admin_id": actingUserID,
		}).Info("管理员移除成员")

		s.notificationService.NotifyUser(targetUserID, models.NotifyGroupRemoved,
			fmt.Sprintf("你已被管理员移出群组「%s」", groupName))
	}

	return nil
}

// UpdateViewPreference 更新成员在群组内的界面偏好
func (s *GroupService) UpdateViewPreference(userID, groupID uint, preference string) error {
	if !models.ValidViewPreference(preference) {
		return errors.NewValidation("无效的界面偏好")
	}

	var member models.GroupMember
	err := s.db.Where("user_id = ? AND group_id = ?", userID, groupID).First(&member).Error
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return errors.NewAccessDenied("无权访问该群组")
		}
		return err
	}

	member.ViewPreference = preference
	return s.db.Save(&member).Error
}

// ========== 查询 ==========

// GroupResponse 群组详情返回结构
type GroupResponse struct {
	ID                 uint      `json:"id"`
	DisplayName        string    `json:"display_name"`
	InviteCode         string    `json:"invite_code"`
	Status             string    `json:"status"`
	StorageLimit       int64     `json:"storage_limit"`
	StorageUsage       int64     `json:"storage_usage"`
	CreatedAt          time.Time `json:"created_at"`
	CurrentUserRole    string    `json:"current_user_role,omitempty"`
	MembershipStatus   string    `json:"membership_status,omitempty"`
	ViewPreference     string    `json:"view_preference,omitempty"`
	PendingMemberCount int64     `json:"pending_member_count"`
}

func (s *GroupService) toResponse(group *models.Group, member *models.GroupMember) *GroupResponse {
	resp := &GroupResponse{
		ID:           group.ID,
		DisplayName:  group.DisplayName,
		InviteCode:   group.InviteCode,
		Status:       group.Status,
		StorageLimit: group.StorageLimit,
		StorageUsage: group.StorageUsage,
		CreatedAt:    group.CreatedAt,
	}

	if member != nil {
		resp.CurrentUserRole = member.Role
		resp.MembershipStatus = member.Status
		resp.ViewPreference = member.ViewPreference
	}

	var pendingCount int64
	s.db.Model(&models.GroupMember{}).
		Where("group_id = ? AND status = ?", group.ID, models.MemberStatusPending).
		Count(&pendingCount)
	resp.PendingMemberCount = pendingCount

	return resp
}

// GetDetails 获取群组详情（成员）
func (s *GroupService) GetDetails(groupID, userID uint) (*GroupResponse, error) {
	if err := s.ValidateGroupAccess(userID, groupID); err != nil {
		return nil, err
	}

	group, err := s.GetByID(groupID)
	if err != nil {
		return nil, err
	}

	var member models.GroupMember
	s.db.Where("user_id = ? AND group_id = ?", userID, groupID).First(&member)

	return s.toResponse(group, &member), nil
}

// GetUserGroups 获取用户的群组列表，按名称排序，过滤已删除群组和removed成员关系
func (s *GroupService) GetUserGroups(userID uint) ([]*GroupResponse, error) {
	var memberships []models.GroupMember
	err := s.db.Where("user_id = ? AND status <> ?", userID, models.MemberStatusRemoved).
		Preload("Group").
		Find(&memberships).Error
	if err != nil {
		return nil, fmt.Errorf("查询群组列表失败")
	}

	responses := make([]*GroupResponse, 0, len(memberships))
	for i := range memberships {
		group := memberships[i].Group
		if group.Status == models.GroupStatusDeleted {
			continue
		}
		responses = append(responses, s.toResponse(&group, &memberships[i]))
	}

	sort.Slice(responses, func(i, j int) bool {
		return responses[i].DisplayName < responses[j].DisplayName
	})

	return responses, nil
}

// MemberResponse 成员信息返回结构
type MemberResponse struct {
	MemberID  uint    `json:"member_id"`
	UserID    uint    `json:"user_id"`
	FirstName string  `json:"first_name"`
	LastName  string  `json:"last_name"`
	Email     string  `json:"email"`
	Role      string  `json:"role"`
	Status    string  `json:"status"`
	PfpURL    *string `json:"pfp_url,omitempty"`
}

// GetPendingMembers 获取待审批成员（管理员）
func (s *GroupService) GetPendingMembers(groupID, actingUserID uint) ([]*MemberResponse, error) {
	if err := s.ValidateAdminAccess(actingUserID, groupID); err != nil {
		return nil, err
	}
	return s.listMembers(groupID, models.MemberStatusPending)
}

// GetApprovedMembers 获取已批准成员（成员）
func (s *GroupService) GetApprovedMembers(groupID, actingUserID uint) ([]*MemberResponse, error) {
	if err := s.ValidateGroupAccess(actingUserID, groupID); err != nil {
		return nil, err
	}
	return s.listMembers(groupID, models.MemberStatusApproved)
}

func (s *GroupService) listMembers(groupID uint, status string) ([]*MemberResponse, error) {
	var members []models.GroupMember
	err := s.db.Where("group_id = ? AND status = ?", groupID, status).
		Preload("User").
		Find(&members).Error
	if err != nil {
		return nil, fmt.Errorf("查询成员列表失败")
	}

	responses := make([]*MemberResponse, 0, len(members))
	for i := range members {
		m := &members[i]
		responses = append(responses, &MemberResponse{
			MemberID:  m.ID,
			UserID:    m.UserID,
			FirstName: m.User.FirstName,
			LastName:  m.User.LastName,
			Email:     m.User.Email,
			Role:      m.Role,
			Status:    m.Status,
			PfpURL:    m.User.PfpURL,
		})
	}
	return responses, nil
}

// ========== 内部辅助 ==========

// notifyAdmins 通知群组全部已批准管理员，excludeUserID不为0时跳过该用户
func (s *GroupService) notifyAdmins(groupID, excludeUserID uint, eventType, message string) {
	var admins []models.GroupMember
	err := s.db.Where("group_id = ? AND role = ? AND status = ?",
		groupID, models.MemberRoleAdmin, models.MemberStatusApproved).
		Find(&admins).Error
	if err != nil {
		s.log.Errorf("查询群组管理员失败: %v", err)
		return
	}

	for _, admin := range admins {
		if excludeUserID != 0 && admin.UserID == excludeUserID {
			continue
		}
		s.notificationService.NotifyUserWithPayload(admin.UserID, eventType, message,
			map[string]interface{}{"group_id": groupID})
	}
}

func (s *GroupService) userDisplayName(userID uint) string {
	var user models.User
	if err := s.db.First(&user, userID).Error; err != nil {
		return "某位用户"
	}
	return user.FullName()
}
