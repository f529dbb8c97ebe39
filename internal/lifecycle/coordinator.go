// Package lifecycle keeps Order, Delivery and Refund state consistent.
//
// Every method runs on the repositories of an open transaction, so the
// record that triggered a change and the records it propagates to are
// committed or rolled back together. The cross-entity rules are the two
// mapping tables below; statuses not listed there propagate nothing.
package lifecycle

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"textilemart/internal/domain/model"
	"textilemart/internal/domain/policy"
	repo "textilemart/internal/repository"

	"github.com/google/uuid"
)

// 注文作成から配達予定日まで
const DefaultDeliveryLead = 3 * 24 * time.Hour

const (
	TriggerOrderCreated          = "order.created"
	TriggerOrderStatusChanged    = "order.status_changed"
	TriggerDeliveryStatusChanged = "delivery.status_changed"
)

var (
	ErrOrderAlreadyDelivered = errors.New("order already delivered")
	ErrNotRefundable         = errors.New("order is not refundable")
	ErrOrderNotPaid          = errors.New("order is not paid")
	ErrOrderCancelled        = errors.New("order is cancelled")
	ErrRefundAlreadyActive   = errors.New("an active refund already exists for this order")
)

// 注文ステータス → 配送への影響
type deliveryEffect struct {
	setStatus model.DeliveryStatus // 空なら変更なし
	remove    bool
}

// 配送ステータス → 注文への影響
type orderEffect struct {
	setStatus model.OrderStatus // 空なら変更なし
	markPaid  bool
}

var orderToDelivery = map[model.OrderStatus]deliveryEffect{
	model.OrderStatusPending:    {},
	model.OrderStatusProcessing: {},
	model.OrderStatusShipped:    {setStatus: model.DeliveryStatusInTransit},
	model.OrderStatusDelivered:  {},
	model.OrderStatusCancelled:  {remove: true},
}

var deliveryToOrder = map[model.DeliveryStatus]orderEffect{
	model.DeliveryStatusPending:   {},
	model.DeliveryStatusInTransit: {},
	model.DeliveryStatusDelivered: {setStatus: model.OrderStatusDelivered, markPaid: true},
	model.DeliveryStatusFailed:    {},
	model.DeliveryStatusCancelled: {setStatus: model.OrderStatusCancelled},
}

// 連動で何が起きたか（イベント/メトリクス用）
type Sync struct {
	Trigger         string
	OrderID         int64
	DeliveryID      int64
	DeliveryStatus  model.DeliveryStatus
	DeliveryRemoved bool
	OrderStatus     model.OrderStatus
	OrderMarkedPaid bool
}

// 何か連動したか
func (s Sync) Changed() bool {
	return s.DeliveryStatus != "" || s.DeliveryRemoved || s.OrderStatus != "" || s.OrderMarkedPaid
}

// 連動結果の観測先（prometheusなど）。nilでもよい
type Observer interface {
	LifecycleTransition(trigger string, effect string)
}

type Coordinator struct {
	now      func() time.Time
	tracking func() string
	observer Observer
}

type Option func(*Coordinator)

func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

func WithTrackingNumbers(gen func() string) Option {
	return func(c *Coordinator) { c.tracking = gen }
}

func WithObserver(o Observer) Option {
	return func(c *Coordinator) { c.observer = o }
}

func NewCoordinator(opts ...Option) *Coordinator {
	c := &Coordinator{
		now:      time.Now,
		tracking: NewTrackingNumber,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// TRK- + 英大文字/数字8桁
func NewTrackingNumber() string {
	raw := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "TRK-" + strings.ToUpper(raw[:8])
}

func (c *Coordinator) Now() time.Time { return c.now() }

// 注文作成時: Pending/未割当の配送を1件作る
func (c *Coordinator) OrderCreated(ctx context.Context, r repo.TxRepos, o model.Order) (model.Delivery, error) {
	due := c.now().Add(DefaultDeliveryLead)
	d, err := r.Deliveries().Create(ctx, model.Delivery{
		OrderID:        o.ID,
		DeliveryPerson: model.UnassignedDeliveryPerson,
		DeliveryStatus: model.DeliveryStatusPending,
		DeliveryDate:   &due,
		TrackingNumber: c.tracking(),
	})
	if err != nil {
		return model.Delivery{}, fmt.Errorf("create delivery for order %d: %w", o.ID, err)
	}
	c.observe(TriggerOrderCreated, "delivery_created")
	return d, nil
}

// 注文ステータス変更時の配送側の連動。同じ値への変更では何もしない
func (c *Coordinator) OrderStatusChanged(ctx context.Context, r repo.TxRepos, actorID int64, orderID int64, prev, next model.OrderStatus) (Sync, error) {
	s := Sync{Trigger: TriggerOrderStatusChanged, OrderID: orderID}
	if prev == next {
		return s, nil
	}

	eff, ok := orderToDelivery[next]
	if !ok {
		return s, fmt.Errorf("no delivery mapping for order status %q", next)
	}

	switch {
	case eff.remove:
		d, err := r.Deliveries().FindByOrderID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return s, nil
		}
		if err != nil {
			return s, err
		}
		if err := r.Deliveries().DeleteByOrderID(ctx, orderID); err != nil {
			return s, err
		}
		s.DeliveryID = d.ID
		s.DeliveryRemoved = true
		c.observe(s.Trigger, "delivery_removed")

	case eff.setStatus != "":
		d, err := r.Deliveries().FindByOrderID(ctx, orderID)
		if errors.Is(err, repo.ErrNotFound) {
			return s, nil
		}
		if err != nil {
			return s, err
		}
		if d.DeliveryStatus == eff.setStatus {
			return s, nil
		}
		if err := r.Deliveries().UpdateStatusByOrderID(ctx, orderID, eff.setStatus); err != nil {
			return s, err
		}
		if err := audit(ctx, r, actorID, model.AuditActionUpdateDeliveryStatus, model.AuditResourceDelivery, d.ID,
			map[string]any{"deliveryStatus": d.DeliveryStatus},
			map[string]any{"deliveryStatus": eff.setStatus, "syncedFromOrder": orderID},
		); err != nil {
			return s, err
		}
		s.DeliveryID = d.ID
		s.DeliveryStatus = eff.setStatus
		c.observe(s.Trigger, "delivery_status_set")
	}
	return s, nil
}

// 配送ステータス変更時の注文側の連動
func (c *Coordinator) DeliveryStatusChanged(ctx context.Context, r repo.TxRepos, actorID int64, d model.Delivery, prev, next model.DeliveryStatus) (Sync, error) {
	s := Sync{Trigger: TriggerDeliveryStatusChanged, OrderID: d.OrderID, DeliveryID: d.ID}
	if prev == next {
		return s, nil
	}

	eff, ok := deliveryToOrder[next]
	if !ok {
		return s, fmt.Errorf("no order mapping for delivery status %q", next)
	}
	if eff.setStatus == "" && !eff.markPaid {
		return s, nil
	}

	o, err := r.Orders().FindByID(ctx, d.OrderID)
	if err != nil {
		return s, fmt.Errorf("load order %d: %w", d.OrderID, err)
	}

	if eff.setStatus != "" && o.Status != eff.setStatus {
		if err := r.Orders().UpdateStatus(ctx, o.ID, eff.setStatus); err != nil {
			return s, err
		}
		if err := audit(ctx, r, actorID, model.AuditActionUpdateOrderStatus, model.AuditResourceOrder, o.ID,
			map[string]any{"status": o.Status},
			map[string]any{"status": eff.setStatus, "syncedFromDelivery": d.ID},
		); err != nil {
			return s, err
		}
		s.OrderStatus = eff.setStatus
		c.observe(s.Trigger, "order_status_set")
	}

	// 配達完了のたびにpaidAtを今に打ち直す（決済結果はそのまま）
	if eff.markPaid {
		if err := r.Orders().MarkPaid(ctx, o.ID, c.now(), nil); err != nil {
			return s, err
		}
		s.OrderMarkedPaid = true
		c.observe(s.Trigger, "order_marked_paid")
	}
	return s, nil
}

// 購入者キャンセルの可否（配達済みは不可）
func (c *Coordinator) CheckCancellable(o model.Order) error {
	if o.Status == model.OrderStatusDelivered {
		return ErrOrderAlreadyDelivered
	}
	return nil
}

// 返金申請の可否: 本人の注文、支払い済み、未キャンセル、有効な申請が無い
func (c *Coordinator) CheckRefundEligibility(ctx context.Context, r repo.TxRepos, actor policy.Actor, o model.Order) error {
	if !policy.CanRequestRefund(actor, o) {
		return ErrNotRefundable
	}
	if o.Status == model.OrderStatusCancelled {
		return ErrOrderCancelled
	}
	if !o.IsPaid {
		return ErrOrderNotPaid
	}
	active, err := r.Refunds().HasActiveForOrder(ctx, o.ID)
	if err != nil {
		return err
	}
	if active {
		return ErrRefundAlreadyActive
	}
	return nil
}

func (c *Coordinator) observe(trigger, effect string) {
	if c.observer != nil {
		c.observer.LifecycleTransition(trigger, effect)
	}
}

// 監査ログを1件書く（before/afterはJSON文字列）
func audit(ctx context.Context, r repo.TxRepos, actorID int64, action model.AuditAction, rt model.AuditResourceType, id int64, before, after any) error {
	b, err := json.Marshal(before)
	if err != nil {
		return err
	}
	a, err := json.Marshal(after)
	if err != nil {
		return err
	}
	return r.AuditLogs().Create(ctx, model.AuditLog{
		ActorUserID:  actorID,
		Action:       action,
		ResourceType: rt,
		ResourceID:   id,
		BeforeJSON:   string(b),
		AfterJSON:    string(a),
	})
}
