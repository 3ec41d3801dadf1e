package api

import (
	"net/http"

	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/api/middleware"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/model"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// policy 路由的访问策略：public 路由跳过访问守卫；
// roles 非空时要求认证用户的角色属于该集合。
type policy struct {
	public bool
	roles  []string
}

// route 一条路由的完整描述：处理器、访问策略与限流配置。
// 守卫统一从描述符挂载，处理器内不做身份判断。
type route struct {
	method  string
	path    string
	name    string // 限流 key 与指标 label
	handler gin.HandlerFunc
	policy  policy
	limit   middleware.Limit // 零值表示不限流
}

func (s *Server) routes() []route {
	return []route{
		{http.MethodPost, "/v1/auth/signup", "signup", s.handleSignup, policy{public: true}, middleware.PerMinute(3)},
		{http.MethodPost, "/v1/auth/login", "login", s.handleLogin, policy{public: true}, middleware.PerMinute(5)},
		{http.MethodPost, "/v1/auth/refresh-token", "refresh", s.handleRefresh, policy{public: true}, middleware.PerMinute(10)},
		{http.MethodPost, "/v1/auth/logout", "logout", s.handleLogout, policy{}, middleware.Limit{}},
		{http.MethodGet, "/v1/auth/verify-email", "verify_email", s.handleVerifyEmail, policy{public: true}, middleware.Limit{}},
		{http.MethodPost, "/v1/auth/resend-verification", "resend_verification", s.handleResendVerification, policy{public: true}, middleware.PerMinute(3)},
		{http.MethodGet, "/v1/users/me", "users_me", s.handleMe, policy{}, middleware.Limit{}},
		{http.MethodGet, "/v1/users/:id", "users_get", s.handleGetUser, policy{roles: []string{model.RoleAdmin}}, middleware.Limit{}},
	}
}

func (s *Server) registerRoutes() {
	guard := middleware.AuthGuard(s.codec, s.cred, s.users)

	for _, rt := range s.routes() {
		var handlers []gin.HandlerFunc
		if rt.limit.Burst > 0 {
			handlers = append(handlers, middleware.RateLimit(s.rdb, s.logger, rt.name, rt.limit))
		}
		if !rt.policy.public {
			handlers = append(handlers, guard, middleware.RequireRoles(rt.policy.roles...))
		}
		handlers = append(handlers, rt.handler)
		s.router.Handle(rt.method, rt.path, handlers...)
	}

	s.router.GET("/healthz", s.handleHealthz)
	s.router.GET("/metrics", gin.WrapH(promhttp.Handler()))
}
