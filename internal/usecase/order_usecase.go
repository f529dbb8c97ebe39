package usecase

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"textilemart/internal/domain/model"
	"textilemart/internal/domain/policy"
	"textilemart/internal/lifecycle"
	repo "textilemart/internal/repository"

	"github.com/shopspring/decimal"
)

type OrderUsecase struct {
	tx      repo.TransactionManager
	orders  repo.OrderRepository
	coord   *lifecycle.Coordinator
	clock   Clock
	events  emitter
	resolve imageResolver
}

func NewOrderUsecase(
	tx repo.TransactionManager,
	orders repo.OrderRepository,
	coord *lifecycle.Coordinator,
	images ImageStore,
	publisher EventPublisher,
	clock Clock,
	log *slog.Logger,
) *OrderUsecase {
	return &OrderUsecase{
		tx:      tx,
		orders:  orders,
		coord:   coord,
		clock:   clock,
		events:  emitter{pub: publisher, log: log},
		resolve: imageResolver{store: images, log: log},
	}
}

type CreateOrderInput struct {
	ProductID       int64
	Quantity        int64
	TotalPrice      string // 空なら 単価×数量
	PaymentMethod   string
	ShippingAddress model.ShippingAddress
}

// POST /orders のレスポンス
type OrderWithDelivery struct {
	Order    model.Order    `json:"order"`
	Delivery model.Delivery `json:"delivery"`
}

type OrderListOutput struct {
	Items []model.Order `json:"items"`
	Total int64         `json:"total"`
	Page  int           `json:"page"`
	Limit int           `json:"limit"`
}

func (u *OrderUsecase) Create(ctx context.Context, actor policy.Actor, in CreateOrderInput) (OrderWithDelivery, error) {
	if actor.UserID <= 0 {
		return OrderWithDelivery{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	if !actor.IsBuyer() {
		return OrderWithDelivery{}, NewHTTPError(http.StatusForbidden, "only buyers can place orders")
	}
	if in.ProductID <= 0 {
		return OrderWithDelivery{}, NewHTTPError(http.StatusBadRequest, "invalid productId")
	}
	if in.Quantity <= 0 {
		return OrderWithDelivery{}, NewHTTPError(http.StatusBadRequest, "quantity must be > 0")
	}
	method, err := model.ParsePaymentMethod(in.PaymentMethod)
	if err != nil {
		return OrderWithDelivery{}, NewHTTPError(http.StatusBadRequest, "invalid payment method")
	}
	addr, err := normalizeShippingAddress(in.ShippingAddress)
	if err != nil {
		return OrderWithDelivery{}, err
	}
	var total *decimal.Decimal
	if strings.TrimSpace(in.TotalPrice) != "" {
		tp, err := decimal.NewFromString(strings.TrimSpace(in.TotalPrice))
		if err != nil || tp.IsNegative() {
			return OrderWithDelivery{}, NewHTTPError(http.StatusBadRequest, "invalid totalPrice")
		}
		tp = tp.Round(2)
		total = &tp
	}

	now := u.clock.Now()
	var out OrderWithDelivery

	//在庫減算・注文・配送は1トランザクション
	err = u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		p, err := r.Products().FindByID(ctx, in.ProductID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "product not found")
		}
		if err != nil {
			return err
		}

		ok, err := r.Inventory().DecreaseStockIfEnough(ctx, p.ID, in.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return NewHTTPError(http.StatusBadRequest, "insufficient stock available")
		}

		o := model.Order{
			ProductID:       p.ID,
			UserID:          actor.UserID,
			Quantity:        in.Quantity,
			TotalPrice:      p.Price.Mul(decimal.NewFromInt(in.Quantity)),
			PaymentMethod:   method,
			Status:          model.OrderStatusPending,
			ShippingAddress: addr,
		}
		if total != nil {
			o.TotalPrice = *total
		}
		//カード払いは決済済みとして受け付ける
		if method == model.PaymentMethodCard {
			o.IsPaid = true
			o.PaidAt = &now
		}

		created, err := r.Orders().Create(ctx, o)
		if err != nil {
			return err
		}

		orderID := created.ID
		if err := r.Inventory().CreateAdjustment(ctx, model.InventoryAdjustment{
			ProductID:   p.ID,
			ActorUserID: actor.UserID,
			OrderID:     &orderID,
			Delta:       -in.Quantity,
			Reason:      "order",
		}); err != nil {
			return err
		}

		d, err := u.coord.OrderCreated(ctx, r, created)
		if err != nil {
			return err
		}

		full, err := r.Orders().FindByID(ctx, created.ID)
		if err != nil {
			return err
		}
		out = OrderWithDelivery{Order: full, Delivery: d}
		return nil
	})
	if err != nil {
		return OrderWithDelivery{}, txError(err)
	}

	u.events.emit(ctx, lifecycle.Event{
		Type:       lifecycle.EventOrderCreated,
		OrderID:    out.Order.ID,
		UserID:     actor.UserID,
		DeliveryID: out.Delivery.ID,
		Status:     string(out.Order.Status),
		Tracking:   out.Delivery.TrackingNumber,
		ActorID:    actor.UserID,
		OccurredAt: now,
	})
	u.resolve.order(ctx, &out.Order)
	return out, nil
}

type ListOrdersInput struct {
	Page   int
	Limit  int
	Status string
	From   *time.Time
	To     *time.Time
}

// 自分の注文一覧
func (u *OrderUsecase) ListMine(ctx context.Context, actor policy.Actor, in ListOrdersInput) (OrderListOutput, error) {
	if actor.UserID <= 0 {
		return OrderListOutput{}, NewHTTPError(http.StatusUnauthorized, "unauthorized")
	}
	userID := actor.UserID
	return u.list(ctx, in, &userID)
}

// 全注文（admin）
func (u *OrderUsecase) ListAll(ctx context.Context, actor policy.Actor, in ListOrdersInput) (OrderListOutput, error) {
	if !actor.IsAdmin() {
		return OrderListOutput{}, NewHTTPError(http.StatusForbidden, "forbidden")
	}
	return u.list(ctx, in, nil)
}

func (u *OrderUsecase) list(ctx context.Context, in ListOrdersInput, userID *int64) (OrderListOutput, error) {
	page, limit, err := normalizePage(in.Page, in.Limit, 100)
	if err != nil {
		return OrderListOutput{}, err
	}
	f := repo.OrderListFilter{Page: page, Limit: limit, UserID: userID, From: in.From, To: in.To}
	if strings.TrimSpace(in.Status) != "" {
		st, err := model.ParseOrderStatus(in.Status)
		if err != nil {
			return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "invalid status")
		}
		f.Status = &st
	}
	if in.From != nil && in.To != nil && in.From.After(*in.To) {
		return OrderListOutput{}, NewHTTPError(http.StatusBadRequest, "from must be <= to")
	}

	items, total, err := u.orders.List(ctx, f)
	if err != nil {
		return OrderListOutput{}, errDB
	}
	u.resolve.orders(ctx, items)
	return OrderListOutput{Items: items, Total: total, Page: page, Limit: limit}, nil
}

// 本人 or adminだけ
func (u *OrderUsecase) Get(ctx context.Context, actor policy.Actor, orderID int64) (model.Order, error) {
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	o, err := u.orders.FindByID(ctx, orderID)
	if errors.Is(err, repo.ErrNotFound) {
		return model.Order{}, NewHTTPError(http.StatusNotFound, "order not found")
	}
	if err != nil {
		return model.Order{}, errDB
	}
	if !policy.CanReadOrder(actor, o) {
		return model.Order{}, NewHTTPError(http.StatusForbidden, "not authorized to view this order")
	}
	u.resolve.order(ctx, &o)
	return o, nil
}

// ステータス更新（admin/配達員）。配送側への連動は同じトランザクション
func (u *OrderUsecase) UpdateStatus(ctx context.Context, actor policy.Actor, orderID int64, status string) (model.Order, error) {
	if !policy.CanUpdateOrderStatus(actor) {
		return model.Order{}, NewHTTPError(http.StatusForbidden, "not authorized to update order status")
	}
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	next, err := model.ParseOrderStatus(status)
	if err != nil {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid status")
	}
	return u.changeStatus(ctx, actor, orderID, func(o model.Order) error { return nil }, next)
}

// 購入者本人のキャンセル（配達済みは不可）
func (u *OrderUsecase) Cancel(ctx context.Context, actor policy.Actor, orderID int64) (model.Order, error) {
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}
	guard := func(o model.Order) error {
		if !policy.CanCancelOrder(actor, o) {
			return NewHTTPError(http.StatusForbidden, "not authorized to cancel this order")
		}
		if err := u.coord.CheckCancellable(o); err != nil {
			return NewHTTPError(http.StatusBadRequest, "cannot cancel a delivered order")
		}
		return nil
	}
	return u.changeStatus(ctx, actor, orderID, guard, model.OrderStatusCancelled)
}

func (u *OrderUsecase) changeStatus(ctx context.Context, actor policy.Actor, orderID int64, guard func(model.Order) error, next model.OrderStatus) (model.Order, error) {
	var (
		updated model.Order
		prev    model.OrderStatus
		sync    lifecycle.Sync
	)
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return err
		}
		if err := guard(o); err != nil {
			return err
		}
		prev = o.Status

		// すでに同じなら何もしない
		if prev == next {
			updated = o
			return nil
		}

		if err := r.Orders().UpdateStatus(ctx, orderID, next); err != nil {
			return err
		}
		if err := writeAudit(ctx, r.AuditLogs(), actor.UserID, model.AuditActionUpdateOrderStatus, model.AuditResourceOrder, orderID,
			map[string]any{"status": prev},
			map[string]any{"status": next},
		); err != nil {
			return err
		}

		sync, err = u.coord.OrderStatusChanged(ctx, r, actor.UserID, orderID, prev, next)
		if err != nil {
			return err
		}

		updated, err = r.Orders().FindByID(ctx, orderID)
		return err
	})
	if err != nil {
		return model.Order{}, txError(err)
	}

	if prev != next {
		now := u.clock.Now()
		evs := []lifecycle.Event{{
			Type:       lifecycle.EventOrderStatusChanged,
			OrderID:    orderID,
			UserID:     updated.UserID,
			Status:     string(next),
			ActorID:    actor.UserID,
			OccurredAt: now,
		}}
		u.events.emit(ctx, append(evs, sync.Events(updated.UserID, actor.UserID, now)...)...)
	}
	u.resolve.order(ctx, &updated)
	return updated, nil
}

// 決済確認情報（呼び出し側から渡されたものを保存）
type MarkPaidInput struct {
	ID           string
	Status       string
	UpdateTime   string
	EmailAddress string
}

func (u *OrderUsecase) MarkPaid(ctx context.Context, actor policy.Actor, orderID int64, in MarkPaidInput) (model.Order, error) {
	if orderID <= 0 {
		return model.Order{}, NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	var updated model.Order
	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return err
		}
		if !policy.CanPayOrder(actor, o) {
			return NewHTTPError(http.StatusForbidden, "not authorized to pay this order")
		}
		if o.Status == model.OrderStatusCancelled {
			return NewHTTPError(http.StatusBadRequest, "cannot pay a cancelled order")
		}

		result := model.PaymentResult{
			ID:           strings.TrimSpace(in.ID),
			Status:       strings.TrimSpace(in.Status),
			UpdateTime:   strings.TrimSpace(in.UpdateTime),
			EmailAddress: strings.TrimSpace(in.EmailAddress),
		}
		if err := r.Orders().MarkPaid(ctx, orderID, u.clock.Now(), &result); err != nil {
			return err
		}
		updated, err = r.Orders().FindByID(ctx, orderID)
		return err
	})
	if err != nil {
		return model.Order{}, txError(err)
	}
	u.resolve.order(ctx, &updated)
	return updated, nil
}

// 注文削除（admin）。配送と返金も一緒に消す
func (u *OrderUsecase) Delete(ctx context.Context, actor policy.Actor, orderID int64) error {
	if !actor.IsAdmin() {
		return NewHTTPError(http.StatusForbidden, "forbidden")
	}
	if orderID <= 0 {
		return NewHTTPError(http.StatusBadRequest, "invalid id")
	}

	err := u.tx.WithinTx(ctx, func(r repo.TxRepos) error {
		o, err := r.Orders().FindByID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return NewHTTPError(http.StatusNotFound, "order not found")
		}
		if err != nil {
			return err
		}
		if err := r.Deliveries().DeleteByOrderID(ctx, orderID); err != nil {
			return err
		}
		if err := r.Refunds().DeleteByOrderID(ctx, orderID); err != nil {
			return err
		}
		if err := r.Orders().Delete(ctx, orderID); err != nil {
			return err
		}
		return writeAudit(ctx, r.AuditLogs(), actor.UserID, model.AuditActionDeleteOrder, model.AuditResourceOrder, orderID,
			map[string]any{"status": o.Status, "userId": o.UserID, "productId": o.ProductID, "quantity": o.Quantity},
			nil,
		)
	})
	return txError(err)
}

func normalizeShippingAddress(a model.ShippingAddress) (model.ShippingAddress, error) {
	out := model.ShippingAddress{
		FullName:   strings.TrimSpace(a.FullName),
		Email:      strings.TrimSpace(a.Email),
		Address:    strings.TrimSpace(a.Address),
		City:       strings.TrimSpace(a.City),
		PostalCode: strings.TrimSpace(a.PostalCode),
		Country:    strings.TrimSpace(a.Country),
	}
	switch {
	case out.FullName == "":
		return out, NewHTTPError(http.StatusBadRequest, "shippingAddress.fullName required")
	case out.Email == "":
		return out, NewHTTPError(http.StatusBadRequest, "shippingAddress.email required")
	case out.Address == "":
		return out, NewHTTPError(http.StatusBadRequest, "shippingAddress.address required")
	case out.City == "":
		return out, NewHTTPError(http.StatusBadRequest, "shippingAddress.city required")
	case out.PostalCode == "":
		return out, NewHTTPError(http.StatusBadRequest, "shippingAddress.postalCode required")
	case out.Country == "":
		return out, NewHTTPError(http.StatusBadRequest, "shippingAddress.country required")
	}
	return out, nil
}
