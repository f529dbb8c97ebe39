package repository

import (
	"context"
	"time"

	"textilemart/internal/domain/model"
)

type OrderListFilter struct {
	Page   int
	Limit  int
	UserID *int64
	Status *model.OrderStatus
	From   *time.Time
	To     *time.Time
}

type OrderRepository interface {
	Create(ctx context.Context, order model.Order) (model.Order, error)
	// 商品（削除済み含む）と購入者をpreloadして返す
	FindByID(ctx context.Context, orderID int64) (model.Order, error)
	List(ctx context.Context, f OrderListFilter) ([]model.Order, int64, error)
	UpdateStatus(ctx context.Context, orderID int64, status model.OrderStatus) error

	// 支払い済みにする。resultがnilなら決済情報は触らない
	MarkPaid(ctx context.Context, orderID int64, paidAt time.Time, result *model.PaymentResult) error

	Delete(ctx context.Context, orderID int64) error
}
