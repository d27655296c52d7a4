package services

import (
	"fmt"
	"testing"

	"frly/internal/models"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// newTestDB 每个测试一个独立的内存数据库
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", uuid.NewString())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	require.NoError(t, err)

	err = db.AutoMigrate(
		&models.User{},
		&models.Group{},
		&models.GroupMember{},
		&models.GroupInviteToken{},
		&models.PasswordResetToken{},
		&models.Notification{},
	)
	require.NoError(t, err)

	return db
}

// fakeMail 测试用的内存邮件出口
type fakeMail struct {
	sent []sentMail
}

type sentMail struct {
	To      string
	Subject string
	HTML    string
}

func (f *fakeMail) EnqueueMail(to, subject, html string) error {
	f.sent = append(f.sent, sentMail{To: to, Subject: subject, HTML: html})
	return nil
}

// testEnv 打包一组互相接好线的服务
type testEnv struct {
	db           *gorm.DB
	users        *UserService
	groups       *GroupService
	invites      *InvitationService
	resets       *PasswordResetService
	mail         *fakeMail
	notification *NotificationService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	db := newTestDB(t)
	mail := &fakeMail{}
	notification := NewNotificationService(db)
	groups := NewGroupService(db, notification)

	return &testEnv{
		db:           db,
		users:        NewUserService(db),
		groups:       groups,
		invites:      NewInvitationService(db, groups, mail),
		resets:       NewPasswordResetService(db, mail),
		mail:         mail,
		notification: notification,
	}
}

// createUser 建一个可用的测试用户
func (e *testEnv) createUser(t *testing.T, email string) *models.User {
	t.Helper()

	user, err := e.users.Register(&RegisterRequest{
		Email:     email,
		Password:  "password123",
		FirstName: "测试",
		LastName:  "用户",
	})
	require.NoError(t, err)
	return user
}

// createGroup 建群组，owner成为已批准管理员
func (e *testEnv) createGroup(t *testing.T, ownerID uint, name string) *models.Group {
	t.Helper()

	group, err := e.groups.Create(ownerID, name)
	require.NoError(t, err)
	return group
}

// memberRow 直接读成员行用于断言
func (e *testEnv) memberRow(t *testing.T, userID, groupID uint) *models.GroupMember {
	t.Helper()

	var member models.GroupMember
	err := e.db.Where("user_id = ? AND group_id = ?", userID, groupID).First(&member).Error
	require.NoError(t, err)
	return &member
}

// memberRowCount 某用户在某群组的成员行数（唯一性断言用）
func (e *testEnv) memberRowCount(t *testing.T, userID, groupID uint) int64 {
	t.Helper()

	var count int64
	err := e.db.Model(&models.GroupMember{}).
		Where("user_id = ? AND group_id = ?", userID, groupID).
		Count(&count).Error
	require.NoError(t, err)
	return count
}
