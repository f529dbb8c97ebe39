package repository

import (
	"context"

	"textilemart/internal/domain/model"
)

type DeliveryListFilter struct {
	Status *model.DeliveryStatus

	// 指定時はその配達員の担当分（IncludeUnassignedなら未割当も含む）
	AssignedTo        *string
	IncludeUnassigned bool
}

type DeliveryRepository interface {
	// 同じ注文に2件目を作ろうとするとErrConflict
	Create(ctx context.Context, d model.Delivery) (model.Delivery, error)
	FindByID(ctx context.Context, id int64) (model.Delivery, error)
	FindByOrderID(ctx context.Context, orderID int64) (model.Delivery, error)
	List(ctx context.Context, f DeliveryListFilter) ([]model.Delivery, error)

	Update(ctx context.Context, d model.Delivery) error
	UpdateStatusByOrderID(ctx context.Context, orderID int64, status model.DeliveryStatus) error

	Delete(ctx context.Context, id int64) error
	// 無くてもエラーにしない
	DeleteByOrderID(ctx context.Context, orderID int64) error
}
