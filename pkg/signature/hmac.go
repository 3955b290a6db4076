package signature

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
)

// 请求头
const (
	HeaderAPIKey    = "X-API-Key"
	HeaderTimestamp = "X-Timestamp"
	HeaderSignature = "X-Signature"
)

// CanonicalPath 签名用路径：去掉查询串和结尾的斜杠
func CanonicalPath(path string) string {
	if i := strings.IndexByte(path, '?'); i >= 0 {
		path = path[:i]
	}
	trimmed := strings.TrimRight(path, "/")
	if trimmed == "" {
		return "/"
	}
	if !strings.HasPrefix(trimmed, "/") {
		trimmed = "/" + trimmed
	}
	return trimmed
}

// Sign 计算签名 hex(HMAC-SHA256(secret, timestamp + method + path + body))
// 生产方与校验方必须逐字节一致
func Sign(secret, timestamp, method, path string, body []byte) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(timestamp))
	mac.Write([]byte(strings.ToUpper(method)))
	mac.Write([]byte(CanonicalPath(path)))
	mac.Write(body)
	return hex.EncodeToString(mac.Sum(nil))
}

// SignAt Sign 的 Unix 时间戳版本
func SignAt(secret string, unix int64, method, path string, body []byte) string {
	return Sign(secret, strconv.FormatInt(unix, 10), method, path, body)
}

// Verify 常量时间比较签名
func Verify(expected, received string) bool {
	a, err := hex.DecodeString(strings.ToLower(strings.TrimSpace(received)))
	if err != nil {
		return false
	}
	b, err := hex.DecodeString(expected)
	if err != nil {
		return false
	}
	return hmac.Equal(a, b)
}
