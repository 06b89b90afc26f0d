package middleware

import (
	"learning_platform/internal/config"
	"learning_platform/internal/model"
	"learning_platform/internal/util"
	"learning_platform/pkg/logger"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

func extractToken(c *gin.Context) string {
	if authHeader := c.GetHeader("Authorization"); authHeader != "" {
		return strings.TrimPrefix(authHeader, "Bearer ")
	}
	// websocket 无法设置请求头
	return c.Query("token")
}

func AuthMiddleware(cfg *config.Config) gin.HandlerFunc {
	return func(c *gin.Context) {
		tokenString := extractToken(c)
		if tokenString == "" {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		claims, err := util.ParseJWT(tokenString, cfg.JWT.Secret)
		if err != nil {
			logger.Log.Debug("JWT parse failed", zap.Error(err))
			util.Unauthorized(c)
			c.Abort()
			return
		}

		c.Set("user", claims)
		c.Next()
	}
}

// RoleMiddleware 管理员拥有全部角色权限
func RoleMiddleware(roles ...model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		user := util.GetUserFromContext(c)
		if user == nil {
			util.Unauthorized(c)
			c.Abort()
			return
		}

		hasRole := user.Role == model.Admin
		for _, role := range roles {
			if user.Role == role {
				hasRole = true
				break
			}
		}

		if !hasRole {
			util.Forbidden(c)
			c.Abort()
			return
		}
		c.Next()
	}
}

type UserActivityRepo interface {
	UpdateLastSeen(userID uint) error
}

func ActivityMiddleware(repo UserActivityRepo) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims := util.GetUserFromContext(c)
		if claims != nil {
			// 异步更新，不阻塞主流程
			go repo.UpdateLastSeen(claims.UserID)
		}
		c.Next()
	}
}
