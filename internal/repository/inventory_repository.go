package repository

import (
	"context"

	"textilemart/internal/domain/model"
)

type InventoryRepository interface {
	// 在庫の現在値を設定
	SetStock(ctx context.Context, productID int64, newStock int64) error

	// 在庫が足りるときだけ減算（stock >= qty の条件付きUPDATE）
	DecreaseStockIfEnough(ctx context.Context, productID int64, qty int64) (bool, error)

	// 増減履歴作成
	CreateAdjustment(ctx context.Context, adjustment model.InventoryAdjustment) error
}
