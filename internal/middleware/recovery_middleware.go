package middleware

import (
	"frly/pkg/logger"
	"frly/pkg/response"

	"github.com/gin-gonic/gin"
)

// Recovery 捕获handler中的panic，返回统一的500响应
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				logger.GetLogger().Errorf("请求处理panic: %v, path=%s", err, c.Request.URL.Path)
				response.ServerError(c, "服务器内部错误")
				c.Abort()
			}
		}()
		c.Next()
	}
}
