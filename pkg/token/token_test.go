package token

import (
	"encoding/base64"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIssue(t *testing.T) {
	raw, hash, err := Issue()
	require.NoError(t, err)

	// 32字节熵，URL安全编码不带填充
	decoded, err := base64.RawURLEncoding.DecodeString(raw)
	require.NoError(t, err)
	assert.Len(t, decoded, 32)
	assert.False(t, strings.ContainsAny(raw, "+/="))

	// 哈希为64位十六进制，且与重新计算结果一致
	assert.Len(t, hash, 64)
	assert.Equal(t, Hash(raw), hash)
}

func TestIssueUnique(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		raw, hash, err := Issue()
		require.NoError(t, err)
		assert.False(t, seen[raw], "原始令牌不应重复")
		assert.False(t, seen[hash], "令牌哈希不应重复")
		seen[raw] = true
		seen[hash] = true
	}
}

func TestHashDeterministic(t *testing.T) {
	assert.Equal(t, Hash("abc"), Hash("abc"))
	assert.NotEqual(t, Hash("abc"), Hash("abd"))
}
