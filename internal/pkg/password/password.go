package password

import (
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// Hasher 定义密码哈希契约：单向自适应哈希 + 常数时间比对。
type Hasher interface {
	Hash(plaintext string) (string, error)
	Verify(plaintext, digest string) bool
}

// BcryptHasher 是基于 bcrypt 的 Hasher 实现。
type BcryptHasher struct {
	cost int
}

// NewBcryptHasher 创建 BcryptHasher，cost 超出 bcrypt 允许范围时使用默认值。
func NewBcryptHasher(cost int) *BcryptHasher {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &BcryptHasher{cost: cost}
}

// Hash 实现 Hasher。
func (h *BcryptHasher) Hash(plaintext string) (string, error) {
	digest, err := bcrypt.GenerateFromPassword([]byte(plaintext), h.cost)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(digest), nil
}

// Verify 实现 Hasher。
func (h *BcryptHasher) Verify(plaintext, digest string) bool {
	return bcrypt.CompareHashAndPassword([]byte(digest), []byte(plaintext)) == nil
}
