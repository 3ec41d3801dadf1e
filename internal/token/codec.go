package token

import (
	"errors"
	"regexp"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims 是访问令牌与刷新令牌共用的载荷。
type Claims struct {
	jwt.RegisteredClaims
	Email string `json:"email"`
	Role  string `json:"role"`
}

// ErrInvalidToken 表示签名或有效期校验失败。
var ErrInvalidToken = errors.New("invalid or expired token")

// Codec 负责签发与校验 HS256 JWT。
type Codec struct {
	secret []byte
}

// NewCodec 创建 Codec。
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret)}
}

// Sign 为指定用户签发一个有效期为 ttl 的令牌。
func (c *Codec) Sign(userID, email, role string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   userID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		Email: email,
		Role:  role,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(c.secret)
}

// Verify 校验签名与有效期，失败时返回 ErrInvalidToken。
func (c *Codec) Verify(raw string) (*Claims, error) {
	claims := &Claims{}
	parsed, err := jwt.ParseWithClaims(raw, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	})
	if err != nil || !parsed.Valid {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Decode 仅解析载荷，不校验签名与有效期。
//
// 只用于 logout 的尽力而为路径：已过期或局部损坏的令牌也要能注销。
// 解析失败时返回 nil。
func (c *Codec) Decode(raw string) *Claims {
	claims := &Claims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(raw, claims); err != nil {
		return nil
	}
	return claims
}

var durationPattern = regexp.MustCompile(`^(\d+)([smhd])$`)

// defaultExpirySeconds 是有效期字符串无法解析时的兜底值（15 分钟）。
// 为兼容存量配置必须保持 900 不变。
const defaultExpirySeconds = 900

// ExpirySeconds 解析紧凑有效期字符串（整数 + s/m/h/d）为秒数。
//
// "15m" → 900，"7d" → 604800；无法解析时回退为 900。
func ExpirySeconds(duration string) int64 {
	m := durationPattern.FindStringSubmatch(duration)
	if m == nil {
		return defaultExpirySeconds
	}
	value, err := strconv.ParseInt(m[1], 10, 64)
	if err != nil {
		return defaultExpirySeconds
	}
	switch m[2] {
	case "s":
		return value
	case "m":
		return value * 60
	case "h":
		return value * 3600
	case "d":
		return value * 86400
	}
	return defaultExpirySeconds
}

// Expiry 解析紧凑有效期字符串为 time.Duration，回退逻辑同 ExpirySeconds。
func Expiry(duration string) time.Duration {
	return time.Duration(ExpirySeconds(duration)) * time.Second
}
