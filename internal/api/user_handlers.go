package api

import (
	"errors"
	"net/http"

	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/api/middleware"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/users"

	"github.com/gin-gonic/gin"
)

// handleMe 返回当前认证用户的安全视图。
func (s *Server) handleMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing authentication"})
		return
	}
	c.JSON(http.StatusOK, user.ToSafe())
}

// handleGetUser 按 ID 查询任意用户（仅管理员）。
func (s *Server) handleGetUser(c *gin.Context) {
	user, err := s.users.FindByID(c.Request.Context(), c.Param("id"))
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "User not found"})
			return
		}
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, user.ToSafe())
}
