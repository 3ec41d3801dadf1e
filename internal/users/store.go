package users

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/model"

	"gorm.io/gorm"
)

// 验证令牌有效期。
const verificationTokenTTL = 24 * time.Hour

var (
	// ErrNotFound 表示用户不存在。
	ErrNotFound = errors.New("user not found")
	// ErrEmailTaken 表示邮箱已被注册。
	ErrEmailTaken = errors.New("email already registered")
)

// Store 封装用户表的读写。
type Store struct {
	db *gorm.DB
}

// NewStore 创建用户存储。
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Create 创建新用户。邮箱已存在时返回 ErrEmailTaken。
func (s *Store) Create(ctx context.Context, user *model.User) error {
	user.Email = NormalizeEmail(user.Email)

	var count int64
	if err := s.db.WithContext(ctx).Model(&model.User{}).
		Where("email = ?", user.Email).Count(&count).Error; err != nil {
		return fmt.Errorf("query user failed: %w", err)
	}
	if count > 0 {
		return ErrEmailTaken
	}

	if err := s.db.WithContext(ctx).Create(user).Error; err != nil {
		return fmt.Errorf("create user failed: %w", err)
	}
	return nil
}

// FindByEmail 按邮箱查询用户。withHash 为 false 时不加载密码哈希。
func (s *Store) FindByEmail(ctx context.Context, email string, withHash bool) (*model.User, error) {
	q := s.db.WithContext(ctx)
	if !withHash {
		q = q.Omit("password_hash")
	}

	var user model.User
	err := q.Where("email = ?", NormalizeEmail(email)).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user failed: %w", err)
	}
	return &user, nil
}

// FindByID 按主键查询用户。
func (s *Store) FindByID(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Omit("password_hash").Where("id = ?", id).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user failed: %w", err)
	}
	return &user, nil
}

// FindByVerificationToken 按验证令牌查询用户。
func (s *Store) FindByVerificationToken(ctx context.Context, token string) (*model.User, error) {
	var user model.User
	err := s.db.WithContext(ctx).Omit("password_hash").
		Where("email_verification_token = ?", token).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query user failed: %w", err)
	}
	return &user, nil
}

// SetVerificationToken 生成并保存新的邮箱验证令牌，返回令牌明文。
func (s *Store) SetVerificationToken(ctx context.Context, id string) (string, error) {
	token, err := generateToken()
	if err != nil {
		return "", err
	}
	expires := time.Now().Add(verificationTokenTTL)

	result := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"email_verification_token":      token,
			"email_verification_expires_at": expires,
		})
	if result.Error != nil {
		return "", fmt.Errorf("save verification token failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return "", ErrNotFound
	}
	return token, nil
}

// MarkEmailVerified 标记邮箱已验证并清除验证令牌。
func (s *Store) MarkEmailVerified(ctx context.Context, id string) error {
	result := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Updates(map[string]interface{}{
			"is_email_verified":             true,
			"email_verification_token":      "",
			"email_verification_expires_at": nil,
		})
	if result.Error != nil {
		return fmt.Errorf("mark verified failed: %w", result.Error)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// UpdateLastLogin 记录最近登录时间。
func (s *Store) UpdateLastLogin(ctx context.Context, id string) error {
	now := time.Now()
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", id).
		Update("last_login_at", &now).Error; err != nil {
		return fmt.Errorf("update last login failed: %w", err)
	}
	return nil
}

// NormalizeEmail 统一邮箱格式：去空格、转小写。
func NormalizeEmail(email string) string {
	return strings.TrimSpace(strings.ToLower(email))
}

func generateToken() (string, error) {
	buf := make([]byte, 32)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token failed: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
