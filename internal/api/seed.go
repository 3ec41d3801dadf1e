package api

import (
	"context"
	"errors"
	"log/slog"

	"github.com/RAJESHREDDY0508/AI-tutor-platform/internal/model"

	"gorm.io/gorm"
)

// SeedAdmin 根据 ADMIN_EMAIL / ADMIN_PASSWORD 确保管理员账号存在。
//
// 未配置时跳过；已存在时只纠正角色与验证状态，不覆盖密码。
func (s *Server) SeedAdmin(ctx context.Context) error {
	email := s.cfg.Security.AdminEmail
	if email == "" || s.cfg.Security.AdminPassword == "" {
		s.logger.Info("admin seed skipped, ADMIN_EMAIL/ADMIN_PASSWORD not set")
		return nil
	}

	var user model.User
	err := s.db.WithContext(ctx).Where("email = ?", email).First(&user).Error
	if err != nil && !errors.Is(err, gorm.ErrRecordNotFound) {
		return err
	}

	if errors.Is(err, gorm.ErrRecordNotFound) {
		hash, hashErr := s.hasher.Hash(s.cfg.Security.AdminPassword)
		if hashErr != nil {
			return hashErr
		}
		user = model.User{
			Email:           email,
			PasswordHash:    hash,
			FirstName:       "Admin",
			Role:            model.RoleAdmin,
			IsEmailVerified: true,
			IsActive:        true,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return err
		}
		s.logger.Info("admin account created", slog.String("email", email))
		return nil
	}

	updates := map[string]interface{}{
		"role":              model.RoleAdmin,
		"is_email_verified": true,
		"is_active":         true,
	}
	if err := s.db.WithContext(ctx).Model(&model.User{}).Where("id = ?", user.ID).Updates(updates).Error; err != nil {
		return err
	}
	s.logger.Info("admin account ensured", slog.String("email", email))
	return nil
}
