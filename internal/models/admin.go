package models

import (
	"strings"
	"time"

	"github.com/devs-store/unlock-api/internal/logger"

	"golang.org/x/crypto/bcrypt"
)

// Admin 管理员账号表
type Admin struct {
	ID           uint       `gorm:"primarykey" json:"id"`                                  // 主键
	Username     string     `gorm:"type:varchar(64);uniqueIndex;not null" json:"username"` // 用户名
	PasswordHash string     `gorm:"type:varchar(255);not null" json:"-"`                   // 密码哈希
	LastLoginAt  *time.Time `json:"last_login_at,omitempty"`                               // 最后登录时间
	CreatedAt    time.Time  `json:"created_at"`                                            // 创建时间
	UpdatedAt    time.Time  `json:"updated_at"`                                            // 更新时间
}

// TableName 指定表名
func (Admin) TableName() string {
	return "admins"
}

// InitDefaultAdmin 初始化默认管理员账号
func InitDefaultAdmin(username, password string) error {
	var count int64
	DB.Model(&Admin{}).Count(&count)
	if count > 0 {
		return nil
	}

	username = strings.TrimSpace(username)
	if username == "" {
		username = "admin"
	}
	if password == "" {
		password = "admin123"
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return err
	}

	admin := Admin{
		Username:     username,
		PasswordHash: string(hash),
	}
	if err := DB.Create(&admin).Error; err != nil {
		return err
	}

	if password == "admin123" {
		logger.Warnw("default_admin_created_with_default_password", "username", username)
		logger.Warnw("default_admin_password_change_required", "username", username)
	} else {
		logger.Warnw("default_admin_created", "username", username, "password_hidden", true)
	}
	return nil
}
