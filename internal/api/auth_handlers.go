package api

import (
	"errors"
	"log/slog"
	"net/http"
	"unicode"

	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/api/middleware"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/auth"

	"github.com/gin-gonic/gin"
)

type signupRequest struct {
	Email     string `json:"email" binding:"required,email"`
	Password  string `json:"password" binding:"required,min=8"`
	FirstName string `json:"firstName" binding:"required"`
	LastName  string `json:"lastName" binding:"required"`
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refreshToken" binding:"required"`
}

type resendRequest struct {
	Email string `json:"email" binding:"required,email"`
}

// handleSignup 注册新用户。
func (s *Server) handleSignup(c *gin.Context) {
	var req signupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if msg, ok := checkPasswordPolicy(req.Password); !ok {
		c.JSON(http.StatusBadRequest, gin.H{"error": msg})
		return
	}

	user, err := s.auth.Register(c.Request.Context(), req.Email, req.Password, req.FirstName, req.LastName)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, user)
}

// handleLogin 登录并签发令牌对。
func (s *Server) handleLogin(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pair, err := s.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// handleRefresh 用刷新令牌换取新令牌对。
func (s *Server) handleRefresh(c *gin.Context) {
	var req refreshRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	pair, err := s.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, pair)
}

// handleLogout 注销当前访问令牌。守卫已验证过令牌，这里直接拉黑。
func (s *Server) handleLogout(c *gin.Context) {
	raw, ok := middleware.BearerToken(c)
	if ok {
		s.auth.Logout(c.Request.Context(), raw)
	}
	c.Status(http.StatusNoContent)
}

// handleVerifyEmail 消费邮箱验证令牌。
func (s *Server) handleVerifyEmail(c *gin.Context) {
	if err := s.auth.VerifyEmail(c.Request.Context(), c.Query("token")); err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Email verified successfully"})
}

// handleResendVerification 重发验证邮件。文案对任何邮箱都相同。
func (s *Server) handleResendVerification(c *gin.Context) {
	var req resendRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	msg, err := s.auth.ResendVerification(c.Request.Context(), req.Email)
	if err != nil {
		s.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": msg})
}

// writeError 将业务错误翻译为 HTTP 响应。
func (s *Server) writeError(c *gin.Context, err error) {
	var appErr *auth.Error
	if errors.As(err, &appErr) {
		c.JSON(appErr.Status, gin.H{"error": appErr.Message})
		return
	}
	s.logger.Error("request failed",
		slog.String("method", c.Request.Method),
		slog.String("path", c.Request.URL.Path),
		slog.String("error", err.Error()))
	c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
}

// checkPasswordPolicy 密码强度：至少一个大写、一个小写、一个数字。
// 长度下限由 binding 的 min=8 保证。
func checkPasswordPolicy(pw string) (string, bool) {
	var hasUpper, hasLower, hasDigit bool
	for _, r := range pw {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return "password must contain at least one uppercase letter, one lowercase letter and one digit", false
	}
	return "", true
}
