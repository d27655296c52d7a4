package middleware

import (
	"strconv"
	"strings"

	"frly/internal/services"
	"frly/pkg/jwt"
	"frly/pkg/response"

	"github.com/gin-gonic/gin"
)

// AuthMiddleware 认证与群组访问控制中间件
type AuthMiddleware struct {
	userService  *services.UserService
	groupService *services.GroupService
}

// NewAuthMiddleware 创建认证中间件
func NewAuthMiddleware(userService *services.UserService, groupService *services.GroupService) *AuthMiddleware {
	return &AuthMiddleware{
		userService:  userService,
		groupService: groupService,
	}
}

// RequireLogin 校验JWT并把用户ID写入上下文
func (m *AuthMiddleware) RequireLogin() gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.Unauthorized(c, "缺少认证信息")
			c.Abort()
			return
		}

		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			response.Unauthorized(c, "认证格式错误")
			c.Abort()
			return
		}

		claims, err := jwt.GetJWTManager().VerifyToken(parts[1])
		if err != nil {
			response.Unauthorized(c, "无效或过期的令牌")
			c.Abort()
			return
		}

		// 令牌有效但账号被停用时同样拒绝
		user, err := m.userService.GetByID(claims.UserID)
		if err != nil || !m.userService.IsActive(user) {
			response.Unauthorized(c, "账号不可用")
			c.Abort()
			return
		}

		c.Set("user_id", claims.UserID)
		c.Set("user_email", claims.Email)
		c.Next()
	}
}

// RequireGroupMember 校验当前用户是URL中群组的已批准成员
//
// 必须挂在RequireLogin之后。群组ID取自路径参数 :id。
func (m *AuthMiddleware) RequireGroupMember() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, groupID, ok := m.resolveGroupContext(c)
		if !ok {
			return
		}

		if err := m.groupService.ValidateGroupAccess(userID, groupID); err != nil {
			response.HandleError(c, err)
			c.Abort()
			return
		}

		c.Set("group_id", groupID)
		c.Next()
	}
}

// RequireGroupAdmin 校验当前用户是URL中群组的已批准管理员
func (m *AuthMiddleware) RequireGroupAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, groupID, ok := m.resolveGroupContext(c)
		if !ok {
			return
		}

		if err := m.groupService.ValidateAdminAccess(userID, groupID); err != nil {
			response.HandleError(c, err)
			c.Abort()
			return
		}

		c.Set("group_id", groupID)
		c.Next()
	}
}

func (m *AuthMiddleware) resolveGroupContext(c *gin.Context) (userID, groupID uint, ok bool) {
	userID = GetUserID(c)
	if userID == 0 {
		response.Unauthorized(c, "未登录")
		c.Abort()
		return 0, 0, false
	}

	id, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil || id == 0 {
		response.BadRequest(c, "无效的群组ID")
		c.Abort()
		return 0, 0, false
	}

	return userID, uint(id), true
}

// GetUserID 从上下文取当前用户ID，未登录返回0
func GetUserID(c *gin.Context) uint {
	if value, exists := c.Get("user_id"); exists {
		if id, ok := value.(uint); ok {
			return id
		}
	}
	return 0
}

// GetGroupID 从上下文取已校验过权限的群组ID
func GetGroupID(c *gin.Context) uint {
	if value, exists := c.Get("group_id"); exists {
		if id, ok := value.(uint); ok {
			return id
		}
	}
	return 0
}
