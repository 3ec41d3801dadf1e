package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/config"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/model"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/credstore"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/mailqueue"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/metrics"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/pkg/password"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/token"
	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/users"
)

// UserStore 定义会话管理所需的用户读写能力。
type UserStore interface {
	Create(ctx context.Context, user *model.User) error
	FindByEmail(ctx context.Context, email string, withHash bool) (*model.User, error)
	FindByID(ctx context.Context, id string) (*model.User, error)
	FindByVerificationToken(ctx context.Context, tok string) (*model.User, error)
	SetVerificationToken(ctx context.Context, id string) (string, error)
	MarkEmailVerified(ctx context.Context, id string) error
	UpdateLastLogin(ctx context.Context, id string) error
}

// Dispatcher 定义事件投递能力（fire-and-forget）。
type Dispatcher interface {
	Send(ctx context.Context, eventType string, payload any) error
}

// TokenPair 是登录/刷新的返回结果。ExpiresIn 为访问令牌有效期（秒）。
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

// Service 负责认证相关的全部状态变更：注册、登录、刷新轮换、
// 注销与邮箱验证。自身无共享可变状态，可并发调用。
type Service struct {
	users      UserStore
	store      credstore.Store
	hasher     password.Hasher
	codec      *token.Codec
	dispatcher Dispatcher
	cfg        *config.Config
	logger     *slog.Logger
}

// NewService 创建会话管理服务。
func NewService(userStore UserStore, store credstore.Store, hasher password.Hasher,
	codec *token.Codec, dispatcher Dispatcher, cfg *config.Config, logger *slog.Logger) *Service {
	return &Service{
		users:      userStore,
		store:      store,
		hasher:     hasher,
		codec:      codec,
		dispatcher: dispatcher,
		cfg:        cfg,
		logger:     logger,
	}
}

// Register 注册新用户并异步发送验证邮件。
//
// 返回用户的安全视图，绝不包含密码哈希与验证令牌。
func (s *Service) Register(ctx context.Context, email, plainPassword, firstName, lastName string) (*model.SafeUser, error) {
	email = users.NormalizeEmail(email)

	hash, err := s.hasher.Hash(plainPassword)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		FirstName:    firstName,
		LastName:     lastName,
		Role:         model.RoleStudent,
		IsActive:     true,
	}
	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, users.ErrEmailTaken) {
			return nil, Conflict("An account with this email already exists")
		}
		return nil, err
	}

	if err := s.sendVerificationEmail(ctx, user); err != nil {
		// 投递失败不回滚注册，用户可通过重发接口补发。
		s.logger.Warn("dispatch verification email failed",
			slog.String("email", email), slog.String("error", err.Error()))
	}

	metrics.RegistrationsTotal.Inc()
	s.logger.Info("user registered", slog.String("user_id", user.ID), slog.String("email", email))

	safe := user.ToSafe()
	return &safe, nil
}

// Login 校验凭据并签发令牌对。
//
// 所有失败均返回 401，文案不同但状态码一致，避免通过响应形态枚举账号。
func (s *Service) Login(ctx context.Context, email, plainPassword string) (*TokenPair, error) {
	user, err := s.users.FindByEmail(ctx, email, true)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			metrics.LoginsTotal.WithLabelValues("failure").Inc()
			return nil, Unauthorized("Invalid email or password")
		}
		return nil, err
	}

	if !s.hasher.Verify(plainPassword, user.PasswordHash) {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, Unauthorized("Invalid email or password")
	}
	if !user.IsActive {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, Unauthorized("Account is deactivated")
	}
	if !user.IsEmailVerified {
		metrics.LoginsTotal.WithLabelValues("failure").Inc()
		return nil, Unauthorized("Please verify your email before logging in")
	}

	pair, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	if err := s.users.UpdateLastLogin(ctx, user.ID); err != nil {
		s.logger.Warn("update last login failed",
			slog.String("user_id", user.ID), slog.String("error", err.Error()))
	}

	metrics.LoginsTotal.WithLabelValues("success").Inc()
	s.logger.Info("user logged in", slog.String("user_id", user.ID), slog.String("role", user.Role))
	return pair, nil
}

// Refresh 用刷新令牌换取新令牌对，并轮换刷新令牌。
//
// 同一刷新令牌最多成功兑换一次：兑换成功后旧令牌立即作废，
// 再次出示一律按已吊销处理。
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*TokenPair, error) {
	claims, err := s.codec.Verify(refreshToken)
	if err != nil {
		metrics.TokenRefreshTotal.WithLabelValues("failure").Inc()
		return nil, Unauthorized("Invalid or expired refresh token")
	}

	userID := claims.Subject
	stored, err := s.store.Get(ctx, credstore.RefreshTokenKey(userID))
	if err != nil {
		if errors.Is(err, credstore.ErrNotFound) {
			metrics.TokenRefreshTotal.WithLabelValues("revoked").Inc()
			return nil, Unauthorized("Refresh token has been revoked")
		}
		return nil, err
	}
	if stored != refreshToken {
		metrics.TokenRefreshTotal.WithLabelValues("revoked").Inc()
		return nil, Unauthorized("Refresh token has been revoked")
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			metrics.TokenRefreshTotal.WithLabelValues("failure").Inc()
			return nil, Unauthorized("Invalid or expired refresh token")
		}
		return nil, err
	}
	if !user.IsActive {
		metrics.TokenRefreshTotal.WithLabelValues("failure").Inc()
		return nil, Unauthorized("Account is deactivated")
	}

	if err := s.store.Delete(ctx, credstore.RefreshTokenKey(userID)); err != nil {
		return nil, err
	}

	pair, err := s.generateTokenPair(ctx, user)
	if err != nil {
		return nil, err
	}

	metrics.TokenRefreshTotal.WithLabelValues("success").Inc()
	s.logger.Info("tokens refreshed", slog.String("user_id", user.ID))
	return pair, nil
}

// Logout 尽力而为地注销：删除刷新令牌、拉黑访问令牌。
//
// 访问令牌只做无验证解码，临期或本地畸形的令牌同样允许注销；
// 过程中任何错误都被吞掉，注销永远不向调用方报错。
func (s *Service) Logout(ctx context.Context, accessToken string) {
	claims := s.codec.Decode(accessToken)
	if claims == nil || claims.Subject == "" {
		return
	}

	if err := s.store.Delete(ctx, credstore.RefreshTokenKey(claims.Subject)); err != nil {
		s.logger.Warn("delete refresh token failed",
			slog.String("user_id", claims.Subject), slog.String("error", err.Error()))
	}

	if claims.ExpiresAt != nil {
		ttl := int64(time.Until(claims.ExpiresAt.Time).Seconds())
		if ttl > 0 {
			if err := s.store.SetWithExpiry(ctx, credstore.BlacklistKey(accessToken), "revoked", ttl); err != nil {
				s.logger.Warn("blacklist access token failed",
					slog.String("user_id", claims.Subject), slog.String("error", err.Error()))
			}
		}
	}

	metrics.LogoutsTotal.Inc()
	s.logger.Info("user logged out", slog.String("user_id", claims.Subject))
}

// VerifyEmail 消费一次性验证令牌，标记邮箱已验证。
func (s *Service) VerifyEmail(ctx context.Context, tok string) error {
	if tok == "" {
		return BadRequest("Verification token is required")
	}

	user, err := s.users.FindByVerificationToken(ctx, tok)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return BadRequest("Invalid or expired verification token")
		}
		return err
	}
	if user.EmailVerificationExpiresAt == nil || time.Now().After(*user.EmailVerificationExpiresAt) {
		return BadRequest("Verification token has expired. Please request a new one.")
	}

	if err := s.users.MarkEmailVerified(ctx, user.ID); err != nil {
		return err
	}

	s.logger.Info("email verified", slog.String("user_id", user.ID))
	return nil
}

// ResendMessage 是 ResendVerification 的固定返回文案。
// 无论邮箱是否存在、是否已验证，文案完全一致，防止账号枚举。
const ResendMessage = "If that email exists and is unverified, a new verification link has been sent."

// ResendVerification 重发验证邮件。仅当账号存在且未验证时才真正投递。
func (s *Service) ResendVerification(ctx context.Context, email string) (string, error) {
	user, err := s.users.FindByEmail(ctx, email, false)
	if err != nil {
		if errors.Is(err, users.ErrNotFound) {
			return ResendMessage, nil
		}
		return "", err
	}
	if user.IsEmailVerified {
		return ResendMessage, nil
	}

	if err := s.sendVerificationEmail(ctx, user); err != nil {
		s.logger.Warn("dispatch verification email failed",
			slog.String("email", user.Email), slog.String("error", err.Error()))
	}
	return ResendMessage, nil
}

// generateTokenPair 构造相同声明的访问/刷新令牌，并把刷新令牌
// 以覆盖写的方式存入凭据库：每个用户同一时刻至多一个有效刷新令牌。
func (s *Service) generateTokenPair(ctx context.Context, user *model.User) (*TokenPair, error) {
	accessToken, err := s.codec.Sign(user.ID, user.Email, user.Role, token.Expiry(s.cfg.Security.AccessExpiresIn))
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refreshToken, err := s.codec.Sign(user.ID, user.Email, user.Role, token.Expiry(s.cfg.Security.RefreshExpiresIn))
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}

	refreshTTL := token.ExpirySeconds(s.cfg.Security.RefreshExpiresIn)
	if err := s.store.SetWithExpiry(ctx, credstore.RefreshTokenKey(user.ID), refreshToken, refreshTTL); err != nil {
		return nil, fmt.Errorf("store refresh token: %w", err)
	}

	return &TokenPair{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    token.ExpirySeconds(s.cfg.Security.AccessExpiresIn),
	}, nil
}

func (s *Service) sendVerificationEmail(ctx context.Context, user *model.User) error {
	verifyToken, err := s.users.SetVerificationToken(ctx, user.ID)
	if err != nil {
		return err
	}

	payload := mailqueue.EmailPayload{
		To:         user.Email,
		Subject:    "Verify your email — AI Tutor Platform",
		TemplateID: "email-verification",
		Data: map[string]string{
			"firstName": user.FirstName,
			"verifyUrl": fmt.Sprintf("%s/verify-email?token=%s", s.cfg.App.FrontendURL, verifyToken),
		},
	}
	return s.dispatcher.Send(ctx, mailqueue.EventEmailSend, payload)
}
