package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// RequireRoles 角色守卫。要求的角色集合为空时放行所有已认证用户。
//
// 必须挂在 AuthGuard 之后：只读取守卫写入的身份，不做独立解析。
func RequireRoles(roles ...string) gin.HandlerFunc {
	required := make(map[string]struct{}, len(roles))
	for _, r := range roles {
		required[r] = struct{}{}
	}

	return func(c *gin.Context) {
		if len(required) == 0 {
			c.Next()
			return
		}

		user, ok := CurrentUser(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authentication"})
			c.Abort()
			return
		}
		if _, allowed := required[user.Role]; !allowed {
			c.JSON(http.StatusForbidden, gin.H{"error": "insufficient role"})
			c.Abort()
			return
		}
		c.Next()
	}
}
