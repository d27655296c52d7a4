package token

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
)

// 一次性令牌编码器：生成不可猜测的原始密文，并派生可存储的查找哈希。
// 原始密文只通过邮件链接下发一次，库里永远只存哈希，
// 数据库泄露不会导致有效令牌外泄。

const rawTokenBytes = 32 // 256位熵

// Issue 生成原始令牌及其哈希
func Issue() (raw string, hash string, err error) {
	bytes := make([]byte, rawTokenBytes)
	if _, err := rand.Read(bytes); err != nil {
		return "", "", err
	}
	// URL安全编码，不带填充，可直接拼进链接
	raw = base64.RawURLEncoding.EncodeToString(bytes)
	return raw, Hash(raw), nil
}

// Hash 计算令牌的查找哈希（兑换时重新计算后查库）
func Hash(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
