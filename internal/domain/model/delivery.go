package model

import (
	"fmt"
	"strings"
	"time"
)

type DeliveryStatus string

const (
	DeliveryStatusPending   DeliveryStatus = "Pending"
	DeliveryStatusInTransit DeliveryStatus = "In Transit"
	DeliveryStatusDelivered DeliveryStatus = "Delivered"
	DeliveryStatusFailed    DeliveryStatus = "Failed"
	DeliveryStatusCancelled DeliveryStatus = "Cancelled"
)

var deliveryStatuses = []DeliveryStatus{
	DeliveryStatusPending,
	DeliveryStatusInTransit,
	DeliveryStatusDelivered,
	DeliveryStatusFailed,
	DeliveryStatusCancelled,
}

// "in transit" / "In_Transit" / "IN TRANSIT" を同じ値にする
func ParseDeliveryStatus(s string) (DeliveryStatus, error) {
	v := strings.ReplaceAll(strings.TrimSpace(s), "_", " ")
	for _, st := range deliveryStatuses {
		if strings.EqualFold(string(st), v) {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown delivery status %q", s)
}

// 配達員が決まっていない状態
const UnassignedDeliveryPerson = "Unassigned"

// 注文と1:1の配送レコード
type Delivery struct {
	ID             int64          `gorm:"primaryKey;autoIncrement" json:"id"`
	OrderID        int64          `gorm:"not null;uniqueIndex" json:"orderId"`
	Order          *Order         `gorm:"foreignKey:OrderID" json:"order,omitempty"`
	DeliveryPerson string         `gorm:"type:varchar(255);not null;default:'Unassigned'" json:"deliveryPerson"`
	DeliveryStatus DeliveryStatus `gorm:"type:varchar(20);not null;index;default:'Pending'" json:"deliveryStatus"`
	DeliveryDate   *time.Time     `json:"deliveryDate"`
	TrackingNumber string         `gorm:"type:varchar(32);not null;uniqueIndex" json:"trackingNumber"`
	CreatedAt      time.Time      `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt      time.Time      `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}
