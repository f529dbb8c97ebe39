package model

import (
	"strings"
	"time"
)

type Role string

const (
	RoleBuyer    Role = "buyer"
	RoleAdmin    Role = "admin"
	RoleDelivery Role = "delivery"
)

// 大文字小文字を無視してRoleに変換する
func ParseRole(s string) (Role, bool) {
	switch Role(strings.ToLower(strings.TrimSpace(s))) {
	case RoleBuyer:
		return RoleBuyer, true
	case RoleAdmin:
		return RoleAdmin, true
	case RoleDelivery:
		return RoleDelivery, true
	default:
		return "", false
	}
}

type User struct {
	ID           int64  `gorm:"primaryKey;autoIncrement" json:"id"`
	Name         string `gorm:"type:varchar(255);not null" json:"name"`
	Email        string `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	PasswordHash string `gorm:"column:password_hash;not null" json:"-"`
	Role         Role   `gorm:"type:varchar(20);not null;default:'buyer'" json:"role"`
	TokenVersion int    `gorm:"not null;default:0" json:"-"`

	//パスワード再設定トークン（sha256のhexだけ保存）
	ResetPasswordTokenHash *string    `gorm:"type:varchar(64);index" json:"-"`
	ResetPasswordExpiresAt *time.Time `json:"-"`

	LastLoginAt *time.Time `json:"lastLoginAt,omitempty"`
	CreatedAt   time.Time  `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time  `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}

// 再設定トークンを消す
func (u *User) ClearResetToken() {
	u.ResetPasswordTokenHash = nil
	u.ResetPasswordExpiresAt = nil
}
