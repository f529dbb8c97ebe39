package model

import (
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "pending"
	OrderStatusProcessing OrderStatus = "processing"
	OrderStatusShipped    OrderStatus = "shipped"
	OrderStatusDelivered  OrderStatus = "delivered"
	OrderStatusCancelled  OrderStatus = "cancelled"
)

var orderStatuses = []OrderStatus{
	OrderStatusPending,
	OrderStatusProcessing,
	OrderStatusShipped,
	OrderStatusDelivered,
	OrderStatusCancelled,
}

// "Delivered" も "delivered" も同じ値に正規化する
func ParseOrderStatus(s string) (OrderStatus, error) {
	v := strings.ToLower(strings.TrimSpace(s))
	for _, st := range orderStatuses {
		if string(st) == v {
			return st, nil
		}
	}
	return "", fmt.Errorf("unknown order status %q", s)
}

type PaymentMethod string

const (
	PaymentMethodCashOnDelivery PaymentMethod = "CashOnDelivery"
	PaymentMethodCard           PaymentMethod = "Card"
)

func ParsePaymentMethod(s string) (PaymentMethod, error) {
	v := strings.TrimSpace(s)
	switch {
	case strings.EqualFold(v, string(PaymentMethodCashOnDelivery)):
		return PaymentMethodCashOnDelivery, nil
	case strings.EqualFold(v, string(PaymentMethodCard)):
		return PaymentMethodCard, nil
	default:
		return "", fmt.Errorf("unknown payment method %q", s)
	}
}

// 注文に埋め込む配送先
type ShippingAddress struct {
	FullName   string `gorm:"type:varchar(255);not null" json:"fullName"`
	Email      string `gorm:"type:varchar(255);not null" json:"email"`
	Address    string `gorm:"type:varchar(255);not null" json:"address"`
	City       string `gorm:"type:varchar(100);not null" json:"city"`
	PostalCode string `gorm:"type:varchar(20);not null" json:"postalCode"`
	Country    string `gorm:"type:varchar(100);not null" json:"country"`
}

// 決済の確認情報（呼び出し側から渡されたものをそのまま保存）
type PaymentResult struct {
	ID           string `gorm:"type:varchar(255)" json:"id"`
	Status       string `gorm:"type:varchar(100)" json:"status"`
	UpdateTime   string `gorm:"type:varchar(100)" json:"update_time"`
	EmailAddress string `gorm:"type:varchar(255)" json:"email_address"`
}

// 1注文 = 1商品
type Order struct {
	ID        int64    `gorm:"primaryKey;autoIncrement" json:"id"`
	ProductID int64    `gorm:"not null;index" json:"productId"`
	Product   *Product `gorm:"foreignKey:ProductID" json:"product,omitempty"`
	UserID    int64    `gorm:"not null;index" json:"userId"`
	User      *User    `gorm:"foreignKey:UserID" json:"user,omitempty"`

	Quantity      int64           `gorm:"not null" json:"quantity"`
	TotalPrice    decimal.Decimal `gorm:"type:numeric(12,2);not null" json:"totalPrice"`
	PaymentMethod PaymentMethod   `gorm:"type:varchar(20);not null" json:"paymentMethod"`
	IsPaid        bool            `gorm:"not null;default:false" json:"isPaid"`
	PaidAt        *time.Time      `json:"paidAt"`
	PaymentResult PaymentResult   `gorm:"embedded;embeddedPrefix:payment_" json:"paymentResult"`

	Status          OrderStatus     `gorm:"type:varchar(20);not null;index;default:'pending'" json:"status"`
	ShippingAddress ShippingAddress `gorm:"embedded;embeddedPrefix:shipping_" json:"shippingAddress"`

	CreatedAt time.Time `gorm:"not null;autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"not null;autoUpdateTime" json:"updatedAt"`
}
