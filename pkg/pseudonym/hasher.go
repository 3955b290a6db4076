package pseudonym

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
)

// FieldKind 需要脱敏的字段类型
type FieldKind string

const (
	KindEmail   FieldKind = "email"
	KindPhone   FieldKind = "phone"
	KindName    FieldKind = "name"
	KindAddress FieldKind = "address"
)

// DigestLength 摘要长度（SHA-256 的 hex 编码）
const DigestLength = sha256.Size * 2

// MinSaltLength 盐值最小长度
const MinSaltLength = 32

// ErrConfiguration 盐值缺失或为占位符
var ErrConfiguration = errors.New("pseudonym: invalid salt configuration")

// placeholderSalts 常见的默认/占位盐值，一律拒绝
var placeholderSalts = map[string]struct{}{
	"changeme":                          {},
	"change-me":                         {},
	"change_me":                         {},
	"secret":                            {},
	"salt":                              {},
	"default":                           {},
	"your-salt-here":                    {},
	"your_salt_here":                    {},
	"change_me_to_a_long_random_salt":   {},
	"change-me-to-a-long-random-salt":   {},
	"please-change-this-salt-in-prod":   {},
	"riskhub-salt-change-in-production": {},
}

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	phoneNoise    = regexp.MustCompile(`[\s()\-]+`)
	hexDigest     = regexp.MustCompile(`^[0-9a-f]{64}$`)
)

// Hasher 客户身份脱敏器
// 同一部署内所有生产方与聚合方必须使用同一个盐值，否则跨店铺无法关联
type Hasher struct {
	salt string
}

// New 创建 Hasher，盐值不合法时直接返回配置错误
func New(salt string) (*Hasher, error) {
	if err := ValidateSalt(salt); err != nil {
		return nil, err
	}
	return &Hasher{salt: salt}, nil
}

// MustNew 启动期使用，盐值不合法直接 panic
func MustNew(salt string) *Hasher {
	h, err := New(salt)
	if err != nil {
		panic(err)
	}
	return h
}

// ValidateSalt 校验盐值
func ValidateSalt(salt string) error {
	trimmed := strings.TrimSpace(salt)
	if trimmed == "" {
		return fmt.Errorf("%w: salt is empty", ErrConfiguration)
	}
	if _, ok := placeholderSalts[strings.ToLower(trimmed)]; ok {
		return fmt.Errorf("%w: salt is a placeholder value", ErrConfiguration)
	}
	if len(trimmed) < MinSaltLength {
		return fmt.Errorf("%w: salt must be at least %d characters", ErrConfiguration, MinSaltLength)
	}
	return nil
}

// Normalize 按字段类型归一化
func Normalize(kind FieldKind, raw string) string {
	switch kind {
	case KindEmail:
		return strings.ToLower(strings.TrimSpace(raw))
	case KindPhone:
		return phoneNoise.ReplaceAllString(strings.TrimSpace(raw), "")
	case KindName, KindAddress:
		return whitespaceRun.ReplaceAllString(strings.ToLower(strings.TrimSpace(raw)), " ")
	default:
		return strings.TrimSpace(raw)
	}
}

// Hash 计算摘要: hex(sha256(normalized + salt))
// 归一化后为空时返回空串，可选字段保持为空
func (h *Hasher) Hash(kind FieldKind, raw string) string {
	normalized := Normalize(kind, raw)
	if normalized == "" {
		return ""
	}
	sum := sha256.Sum256([]byte(normalized + h.salt))
	return hex.EncodeToString(sum[:])
}

// HashEmail 客户身份的标准计算方式
func (h *Hasher) HashEmail(email string) string {
	return h.Hash(KindEmail, email)
}

// IsDigest 判断是否为合法摘要（64 位小写 hex）
func IsDigest(s string) bool {
	return hexDigest.MatchString(s)
}
