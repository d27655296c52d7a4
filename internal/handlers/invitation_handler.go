package handlers

import (
	"strconv"

	"frly/internal/middleware"
	"frly/internal/services"
	"frly/pkg/response"

	"github.com/gin-gonic/gin"
)

// InvitationHandler 群组邀请接口
type InvitationHandler struct {
	invitationService *services.InvitationService
}

// NewInvitationHandler 创建邀请处理器
func NewInvitationHandler(invitationService *services.InvitationService) *InvitationHandler {
	return &InvitationHandler{invitationService: invitationService}
}

// Send 发送邀请（管理员）
// @Router /api/groups/:id/invites [post]
func (h *InvitationHandler) Send(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	err := h.invitationService.Send(middleware.GetGroupID(c), middleware.GetUserID(c), req.Email)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "邀请已发送", nil)
}

// ListMine 我的待处理邀请
// @Router /api/invites [get]
func (h *InvitationHandler) ListMine(c *gin.Context) {
	invites, err := h.invitationService.ListMine(middleware.GetUserID(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, invites)
}

// Accept 站内接受邀请（本人）
// @Router /api/invites/:id/accept [post]
func (h *InvitationHandler) Accept(c *gin.Context) {
	inviteID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的邀请ID")
		return
	}

	group, err := h.invitationService.AcceptByID(uint(inviteID), middleware.GetUserID(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已加入群组", group)
}

// Decline 站内拒绝邀请（本人）
// @Router /api/invites/:id/decline [post]
func (h *InvitationHandler) Decline(c *gin.Context) {
	inviteID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		response.BadRequest(c, "无效的邀请ID")
		return
	}

	if err := h.invitationService.DeclineByID(uint(inviteID), middleware.GetUserID(c)); err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已拒绝邀请", nil)
}

// AcceptBySecret 凭邮件链接接受邀请（免登录）
// @Router /api/invite-links/accept [post]
func (h *InvitationHandler) AcceptBySecret(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	group, err := h.invitationService.AcceptBySecret(req.Token)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已加入群组", group)
}

// DeclineBySecret 凭邮件链接拒绝邀请（免登录）
// @Router /api/invite-links/decline [post]
func (h *InvitationHandler) DeclineBySecret(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.invitationService.DeclineBySecret(req.Token); err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "已拒绝邀请", nil)
}
