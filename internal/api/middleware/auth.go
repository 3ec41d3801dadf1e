package middleware

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/model"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/credstore"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/metrics"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/token"

	"github.com/gin-gonic/gin"
)

// ctxUserKey 认证用户在 gin 上下文中的键。
const ctxUserKey = "authUser"

// UserLoader 按主键加载用户，供访问守卫解析令牌主体。
type UserLoader interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// AuthGuard 校验访问令牌并将用户写入上下文。
//
// 校验顺序：签名与有效期 → 黑名单 → 用户存在且激活。黑名单命中时
// 即使签名有效也一律拒绝（已注销的令牌）。
func AuthGuard(codec *token.Codec, store credstore.Store, loader UserLoader) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authorization"})
			c.Abort()
			return
		}

		claims, err := codec.Verify(raw)
		if err != nil || claims.Subject == "" {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		_, err = store.Get(c.Request.Context(), credstore.BlacklistKey(raw))
		if err == nil {
			metrics.BlacklistHitsTotal.Inc()
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Token has been revoked"})
			c.Abort()
			return
		}
		if !errors.Is(err, credstore.ErrNotFound) {
			c.JSON(http.StatusInternalServerError, gin.H{"error": "credential store unavailable"})
			c.Abort()
			return
		}

		user, err := loader.FindByID(c.Request.Context(), claims.Subject)
		if err != nil || !user.IsActive {
			c.JSON(http.StatusUnauthorized, gin.H{"error": "User account is inactive or not found"})
			c.Abort()
			return
		}

		c.Set(ctxUserKey, user)
		c.Next()
	}
}

// CurrentUser 读取访问守卫写入的认证用户。
func CurrentUser(c *gin.Context) (*model.User, bool) {
	v, ok := c.Get(ctxUserKey)
	if !ok {
		return nil, false
	}
	user, ok := v.(*model.User)
	return user, ok
}

// BearerToken 提取 Authorization 头中的 bearer 令牌。
func BearerToken(c *gin.Context) (string, bool) {
	return bearerToken(c)
}

func bearerToken(c *gin.Context) (string, bool) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", false
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
