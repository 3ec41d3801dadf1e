package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// 用户角色。
const (
	RoleStudent = "student"
	RoleAdmin   = "admin"
)

// User 表示平台用户。
//
// 邮箱全局唯一（小写归一化后比较），密码只保存 bcrypt 哈希。
// EmailVerificationToken 为一次性验证令牌，验证成功后清空。
type User struct {
	ID        string    `gorm:"type:varchar(36);primaryKey" json:"id"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`

	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"type:varchar(255);not null" json:"-"`
	FirstName    string `gorm:"type:varchar(100)" json:"firstName"`
	LastName     string `gorm:"type:varchar(100)" json:"lastName"`

	Role            string `gorm:"type:varchar(16);default:student" json:"role"` // student / admin
	IsEmailVerified bool   `gorm:"default:false" json:"isEmailVerified"`
	IsActive        bool   `gorm:"default:true" json:"isActive"`

	EmailVerificationToken     string     `gorm:"type:varchar(64);index" json:"-"` // 一次性验证令牌
	EmailVerificationExpiresAt *time.Time `json:"-"`                               // 令牌过期时间（24h）
	LastLoginAt                *time.Time `json:"lastLoginAt"`
}

// BeforeCreate 在插入前生成 UUID 主键。
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	return nil
}

// SafeUser 是对外暴露的用户视图，永不携带密码哈希与验证令牌。
type SafeUser struct {
	ID              string     `json:"id"`
	Email           string     `json:"email"`
	FirstName       string     `json:"firstName"`
	LastName        string     `json:"lastName"`
	Role            string     `json:"role"`
	IsEmailVerified bool       `json:"isEmailVerified"`
	IsActive        bool       `json:"isActive"`
	LastLoginAt     *time.Time `json:"lastLoginAt"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// ToSafe 返回公开安全的用户投影。
func (u *User) ToSafe() SafeUser {
	return SafeUser{
		ID:              u.ID,
		Email:           u.Email,
		FirstName:       u.FirstName,
		LastName:        u.LastName,
		Role:            u.Role,
		IsEmailVerified: u.IsEmailVerified,
		IsActive:        u.IsActive,
		LastLoginAt:     u.LastLoginAt,
		CreatedAt:       u.CreatedAt,
		UpdatedAt:       u.UpdatedAt,
	}
}

// FullName 拼接显示名。
func (u *User) FullName() string {
	if u.FirstName == "" {
		return u.LastName
	}
	if u.LastName == "" {
		return u.FirstName
	}
	return u.FirstName + " " + u.LastName
}
