package model

import (
	"fmt"
	"strings"
	"time"
)

type RefundStatus string

const (
	RefundStatusRequested RefundStatus = "Requested"
	RefundStatusApproved  RefundStatus = "Approved"
	RefundStatusRejected  RefundStatus = "Rejected"
)

func ParseRefundStatus(s string) (RefundStatus, error) {
	v := strings.TrimSpace(s)
	for _, st := range []RefundStatus{RefundStatusRequested, RefundStatusApproved, RefundStatusRejected} {
		if strings.EqualFold(string(st), v) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown refund status %q", s)
}

// Rejected以外は有効な返金申請として扱う
func (s RefundStatus) IsActive() bool {
	return s != RefundStatusRejected
}

type Refund struct {
	ID        int64        `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID   int64        `gorm:"not null;index" json:"orderId"`
	Order     *Order       `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	UserID    int64        `gorm:"not null;index" json:"userId"`
	User      *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Reason    string       `gorm:"type:text;not null" json:"reason"`
	Status    RefundStatus `gorm:"type:varchar(20);not null;index;default:'Requested'" json:"status"`
	CreatedAt time.Time    `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time    `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}
