package services

import (
	"testing"
	"time"

	"frly/internal/models"
	"frly/pkg/errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordResetFlow(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "user@test.com")

	require.NoError(t, env.resets.Request(user.Email))
	require.Len(t, env.mail.sent, 1)
	raw := lastMailToken(t, env.mail)

	require.NoError(t, env.resets.Reset(raw, "newpassword456"))

	// 新密码生效，旧密码失效
	fresh, err := env.users.GetByID(user.ID)
	require.NoError(t, err)
	assert.True(t, fresh.CheckPassword("newpassword456"))
	assert.False(t, fresh.CheckPassword("password123"))

	// 令牌一次性
	err = env.resets.Reset(raw, "another-password")
	require.NotNil(t, errors.AsAppError(err))
	assert.Equal(t, "重置链接无效或已过期", errors.AsAppError(err).Message)
}

func TestResetRequestUnknownEmail(t *testing.T) {
	env := newTestEnv(t)

	// 未注册邮箱静默成功，不发邮件不报错
	require.NoError(t, env.resets.Request("nobody@test.com"))
	assert.Empty(t, env.mail.sent)
}

func TestResetOnlyLatestTokenWorks(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "user@test.com")

	require.NoError(t, env.resets.Request(user.Email))
	firstRaw := lastMailToken(t, env.mail)
	require.NoError(t, env.resets.Request(user.Email))
	secondRaw := lastMailToken(t, env.mail)

	// 新请求作废旧令牌
	err := env.resets.Reset(firstRaw, "newpassword456")
	require.NotNil(t, errors.AsAppError(err))

	require.NoError(t, env.resets.Reset(secondRaw, "newpassword456"))
}

func TestResetWeakPasswordKeepsToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "user@test.com")

	require.NoError(t, env.resets.Request(user.Email))
	raw := lastMailToken(t, env.mail)

	// 密码不合格时先报错，令牌不消费
	err := env.resets.Reset(raw, "short")
	require.NotNil(t, errors.AsAppError(err))
	assert.Equal(t, errors.CodeInvalidParam, errors.AsAppError(err).Code)

	// 同一链接还能重试
	require.NoError(t, env.resets.Reset(raw, "longenough123"))
}

func TestResetExpiredToken(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "user@test.com")

	require.NoError(t, env.resets.Request(user.Email))
	raw := lastMailToken(t, env.mail)

	require.NoError(t, env.db.Model(&models.PasswordResetToken{}).
		Where("user_id = ?", user.ID).
		Update("expires_at", time.Now().Add(-time.Minute)).Error)

	err := env.resets.Reset(raw, "newpassword456")
	require.NotNil(t, errors.AsAppError(err))
	assert.Equal(t, "重置链接无效或已过期", errors.AsAppError(err).Message)

	// 密码没动
	fresh, getErr := env.users.GetByID(user.ID)
	require.NoError(t, getErr)
	assert.True(t, fresh.CheckPassword("password123"))
}

func TestResetCleanupExpired(t *testing.T) {
	env := newTestEnv(t)
	user := env.createUser(t, "user@test.com")

	require.NoError(t, env.resets.Request(user.Email))

	// 过期超过一天的才会被清
	require.NoError(t, env.db.Model(&models.PasswordResetToken{}).
		Where("user_id = ?", user.ID).
		Update("expires_at", time.Now().Add(-48*time.Hour)).Error)

	require.NoError(t, env.resets.CleanupExpired())

	var count int64
	env.db.Model(&models.PasswordResetToken{}).Count(&count)
	assert.Equal(t, int64(0), count)
}
