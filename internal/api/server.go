package api

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/api/middleware"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/auth"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/config"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/model"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/credstore"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/mailqueue"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/metrics"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/password"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/token"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/users"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// SessionManager 会话管理操作，由 auth.Service 实现。
type SessionManager interface {
	Register(ctx context.Context, email, password, firstName, lastName string) (*model.SafeUser, error)
	Login(ctx context.Context, email, password string) (*auth.TokenPair, error)
	Refresh(ctx context.Context, refreshToken string) (*auth.TokenPair, error)
	Logout(ctx context.Context, accessToken string)
	VerifyEmail(ctx context.Context, token string) error
	ResendVerification(ctx context.Context, email string) (string, error)
}

// UserDirectory API 层所需的用户查询能力。
type UserDirectory interface {
	FindByID(ctx context.Context, id string) (*model.User, error)
}

// Server 封装 API 服务所需的依赖和路由处理。
//
// 它持有数据库连接、Redis 客户端、会话管理服务以及 Gin 路由引擎。
type Server struct {
	cfg    *config.Config
	logger *slog.Logger
	db     *gorm.DB
	rdb    *redis.Client
	router *gin.Engine
	auth   SessionManager
	users  UserDirectory
	codec  *token.Codec
	cred   credstore.Store
	hasher password.Hasher
}

// NewServer 初始化 API 服务器。
//
// 它负责：
// 1. 连接 MySQL 数据库并执行自动迁移
// 2. 连接 Redis（刷新令牌 / 黑名单 / 邮件队列 / 限流）
// 3. 组装会话管理服务
// 4. 初始化 Gin 路由引擎
//
// 参数:
//
//	ctx: 上下文
//	cfg: 配置对象
//	logger: 日志记录器
//
// 返回值:
//
//	*Server: 初始化完成的服务器实例
//	error: 初始化失败返回错误
func NewServer(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Server, error) {
	db, err := gorm.Open(mysql.Open(cfg.MySQL.DSN), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent), // 关闭GORM调试日志
	})
	if err != nil {
		return nil, err
	}
	if err := db.AutoMigrate(&model.User{}); err != nil {
		return nil, err
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       0,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, err
	}

	cred, err := credstore.NewRedisStore(rdb)
	if err != nil {
		return nil, err
	}

	metrics.InitMetrics()

	userStore := users.NewStore(db)
	hasher := password.NewBcryptHasher(cfg.Security.BcryptCost)
	codec := token.NewCodec(cfg.Security.JWTSecret)
	producer := mailqueue.NewProducer(rdb, logger, cfg.Queue.EmailStream)
	sessions := auth.NewService(userStore, cred, hasher, codec, producer, cfg, logger)

	if cfg.App.Env == "prod" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestLogger(logger))

	s := &Server{
		cfg:    cfg,
		logger: logger,
		db:     db,
		rdb:    rdb,
		router: router,
		auth:   sessions,
		users:  userStore,
		codec:  codec,
		cred:   cred,
		hasher: hasher,
	}
	s.registerRoutes()
	return s, nil
}

// Router 返回 Gin 引擎，供 http.Server 使用。
func (s *Server) Router() http.Handler {
	return s.router
}

// Close 释放数据库与 Redis 连接。
func (s *Server) Close() {
	if s.db != nil {
		if sqlDB, err := s.db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if s.rdb != nil {
		_ = s.rdb.Close()
	}
}

// handleHealthz 健康检查：MySQL 与 Redis 各给 2 秒超时。
func (s *Server) handleHealthz(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
	defer cancel()

	dbOK := true
	if s.db != nil {
		sqlDB, err := s.db.DB()
		if err != nil || sqlDB.PingContext(ctx) != nil {
			dbOK = false
		}
	}

	redisOK := s.rdb != nil && s.rdb.Ping(ctx).Err() == nil

	if !dbOK || !redisOK {
		c.JSON(http.StatusServiceUnavailable, gin.H{
			"status": "degraded",
			"mysql":  dbOK,
			"redis":  redisOK,
		})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}
