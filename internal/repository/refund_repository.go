package repository

import (
	"context"

	"textilemart/internal/domain/model"
)

type RefundListFilter struct {
	UserID  *int64
	OrderID *int64
	Status  *model.RefundStatus
}

type RefundRepository interface {
	Create(ctx context.Context, r model.Refund) (model.Refund, error)
	FindByID(ctx context.Context, id int64) (model.Refund, error)
	List(ctx context.Context, f RefundListFilter) ([]model.Refund, error)

	// Rejected以外の申請があるか
	HasActiveForOrder(ctx context.Context, orderID int64) (bool, error)

	Update(ctx context.Context, r model.Refund) error
	Delete(ctx context.Context, id int64) error
	DeleteByOrderID(ctx context.Context, orderID int64) error
}
