package handlers

import (
	"strconv"

	"frly/internal/middleware"
	"frly/internal/services"
	"frly/pkg/response"

	"github.com/gin-gonic/gin"
)

// GroupHandler 群组相关接口
type GroupHandler struct {
	groupService *services.GroupService
}

// NewGroupHandler 创建群组处理器
func NewGroupHandler(groupService *services.GroupService) *GroupHandler {
	return &GroupHandler{groupService: groupService}
}

// Create 创建群组
// @Router /api/groups [post]
func (h *GroupHandler) Create(c *gin.Context) {
	var req struct {
		DisplayName string `json:"display_name" binding:"required,groupname"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	group, err := h.groupService.Create(middleware.GetUserID(c), req.DisplayName)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, group)
}

// ListMine 我的群组列表
// @Router /api/groups [get]
func (h *GroupHandler) ListMine(c *gin.Context) {
	groups, err := h.groupService.GetUserGroups(middleware.GetUserID(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, groups)
}

// Get 群组详情（成员）
// @Router /api/groups/:id [get]
func (h *GroupHandler) Get(c *gin.Context) {
	details, err := h.groupService.GetDetails(middleware.GetGroupID(c), middleware.GetUserID(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, details)
}

// Update 更新群组（管理员）
// @Router /api/groups/:id [put]
func (h *GroupHandler) Update(c *gin.Context) {
	var req struct {
		DisplayName string `json:"display_name" binding:"required,groupname"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	group, err := h.groupService.Update(middleware.GetGroupID(c), middleware.GetUserID(c), req.DisplayName)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, group)
}

// Delete 删除群组（管理员，软删除）
// @Router /api/groups/:id [delete]
func (h *GroupHandler) Delete(c *gin.Context) {
	if err := h.groupService.Delete(middleware.GetGroupID(c), middleware.GetUserID(c)); err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "群组已删除", nil)
}

// Join 凭加入码申请加入
// @Router /api/join [post]
func (h *GroupHandler) Join(c *gin.Context) {
	var req struct {
		InviteCode string `json:"invite_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	group, err := h.groupService.JoinByCode(middleware.GetUserID(c), req.InviteCode)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "申请已提交，等待管理员审批", group)
}

// ListPending 待审批成员列表（管理员）
// @Router /api/groups/:id/members/pending [get]
func (h *GroupHandler) ListPending(c *gin.Context) {
	members, err := h.groupService.GetPendingMembers(middleware.GetGroupID(c), middleware.GetUserID(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, members)
}

// ListMembers 已批准成员列表（成员）
// @Router /api/groups/:id/members [get]
func (h *GroupHandler) ListMembers(c *gin.Context) {
	members, err := h.groupService.GetApprovedMembers(middleware.GetGroupID(c), middleware.GetUserID(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, members)
}

// Approve 批准成员申请（管理员）
// @Router /api/groups/:id/members/:memberId/approve [post]
func (h *GroupHandler) Approve(c *gin.Context) {
	memberID, err := strconv.ParseUint(c.Param("memberId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的成员ID")
		return
	}

	err = h.groupService.ApproveMember(uint(memberID), middleware.GetUserID(c), middleware.GetGroupID(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已批准", nil)
}

// RemoveMember 移除成员（管理员）
// @Router /api/groups/:id/members/:userId [delete]
func (h *GroupHandler) RemoveMember(c *gin.Context) {
	targetUserID, err := strconv.ParseUint(c.Param("userId"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的用户ID")
		return
	}

	err = h.groupService.RemoveMember(middleware.GetGroupID(c), uint(targetUserID), middleware.GetUserID(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已移除", nil)
}

// Leave 退出群组（本人，任何成员状态都允许）
// @Router /api/groups/:id/leave [post]
func (h *GroupHandler) Leave(c *gin.Context) {
	// 不走RequireGroupMember：pending成员也可以撤回申请
	groupID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的群组ID")
		return
	}

	userID := middleware.GetUserID(c)
	if err := h.groupService.RemoveMember(uint(groupID), userID, userID); err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已退出群组", nil)
}

// UpdateViewPreference 更新我的界面偏好
// @Router /api/groups/:id/view-preference [put]
func (h *GroupHandler) UpdateViewPreference(c *gin.Context) {
	var req struct {
		ViewPreference string `json:"view_preference" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	err := h.groupService.UpdateViewPreference(middleware.GetUserID(c), middleware.GetGroupID(c), req.ViewPreference)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "偏好已更新", nil)
}
