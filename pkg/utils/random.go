package utils

import (
	"crypto/rand"
	"encoding/hex"
	"strings"
)

const slugCharset = "abcdefghijklmnopqrstuvwxyz0123456789"

// GenerateRandomString 生成指定长度的随机字符串（小写字母 + 数字）
func GenerateRandomString(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	var result strings.Builder
	result.Grow(length)
	for _, bVal := range b {
		result.WriteByte(slugCharset[int(bVal)%len(slugCharset)])
	}
	return result.String(), nil
}

// GenerateSecret 生成 n 字节随机数的十六进制串（用于店铺签名密钥）
func GenerateSecret(n int) (string, error) {
	b := make([]byte, n)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}

// Slugify 店铺名转 slug：小写，非字母数字折叠成单个 "-"
func Slugify(name string) string {
	var b strings.Builder
	dash := false
	for _, r := range strings.ToLower(strings.TrimSpace(name)) {
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			dash = false
		case !dash && b.Len() > 0:
			b.WriteByte('-')
			dash = true
		}
	}
	return strings.TrimSuffix(b.String(), "-")
}
