package handlers

import (
	"frly/internal/middleware"
	"frly/internal/services"
	"frly/pkg/jwt"
	"frly/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthHandler 认证相关接口
type AuthHandler struct {
	userService          *services.UserService
	passwordResetService *services.PasswordResetService
}

// NewAuthHandler 创建认证处理器
func NewAuthHandler(userService *services.UserService, passwordResetService *services.PasswordResetService) *AuthHandler {
	return &AuthHandler{
		userService:          userService,
		passwordResetService: passwordResetService,
	}
}

// Register 用户注册
// @Router /api/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req services.RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.userService.Register(&req)
	if err != nil {
		response.HandleError(c, err)
		return
	}

	token, err := jwt.GetJWTManager().GenerateToken(user.ID, user.Email)
	if err != nil {
		response.ServerError(c, "生成令牌失败")
		return
	}

	response.Success(c, gin.H{
		"token": token,
		"user":  user,
	})
}

// LoginRequest 登录请求
type LoginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

// Login 用户登录
// @Router /api/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	// 查不到用户和密码错误返回同一个提示
	user, err := h.userService.GetByEmail(req.Email)
	if err != nil || !user.CheckPassword(req.Password) {
		response.Unauthorized(c, "邮箱或密码错误")
		return
	}
	if !h.userService.IsActive(user) {
		response.Unauthorized(c, "账号不可用")
		return
	}

	token, err := jwt.GetJWTManager().GenerateToken(user.ID, user.Email)
	if err != nil {
		response.ServerError(c, "生成令牌失败")
		return
	}

	response.Success(c, gin.H{
		"token": token,
		"user":  user,
	})
}

// Me 当前用户信息
// @Router /api/auth/me [get]
func (h *AuthHandler) Me(c *gin.Context) {
	user, err := h.userService.GetByID(middleware.GetUserID(c))
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, user)
}

// UpdateProfile 更新个人资料
// @Router /api/auth/me [put]
func (h *AuthHandler) UpdateProfile(c *gin.Context) {
	var req services.UpdateProfileRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	user, err := h.userService.UpdateProfile(middleware.GetUserID(c), &req)
	if err != nil {
		response.HandleError(c, err)
		return
	}
	response.Success(c, user)
}

// RefreshToken 刷新令牌
// @Router /api/auth/refresh [post]
func (h *AuthHandler) RefreshToken(c *gin.Context) {
	var req struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	newToken, err := jwt.GetJWTManager().RefreshToken(req.Token)
	if err != nil {
		response.Unauthorized(c, "无效或过期的令牌")
		return
	}
	response.Success(c, gin.H{"token": newToken})
}

// RequestPasswordReset 发起密码重置
//
// 无论邮箱是否注册都返回成功，响应不暴露注册状态。
// @Router /api/auth/password-reset [post]
func (h *AuthHandler) RequestPasswordReset(c *gin.Context) {
	var req struct {
		Email string `json:"email" binding:"required,email"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.passwordResetService.Request(req.Email); err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "如果该邮箱已注册，重置邮件已发送", nil)
}

// ConfirmPasswordReset 凭令牌设置新密码
// @Router /api/auth/password-reset/confirm [post]
func (h *AuthHandler) ConfirmPasswordReset(c *gin.Context) {
	var req struct {
		Token    string `json:"token" binding:"required"`
		Password string `json:"password" binding:"required"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "参数错误: "+err.Error())
		return
	}

	if err := h.passwordResetService.Reset(req.Token, req.Password); err != nil {
		response.HandleError(c, err)
		return
	}
	response.SuccessWithMessage(c, "密码重置成功", nil)
}
