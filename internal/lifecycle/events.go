package lifecycle

import "time"

const (
	EventOrderCreated          = TriggerOrderCreated
	EventOrderStatusChanged    = TriggerOrderStatusChanged
	EventDeliveryStatusChanged = TriggerDeliveryStatusChanged
	EventRefundRequested       = "refund.requested"
	EventRefundStatusChanged   = "refund.status_changed"
)

// コミット後に流すイベント（routing keyはType）
type Event struct {
	Type       string    `json:"type"`
	OrderID    int64     `json:"orderId"`
	UserID     int64     `json:"userId,omitempty"` // 購入者
	DeliveryID int64     `json:"deliveryId,omitempty"`
	RefundID   int64     `json:"refundId,omitempty"`
	Status     string    `json:"status,omitempty"`
	Tracking   string    `json:"trackingNumber,omitempty"`
	ActorID    int64     `json:"actorId,omitempty"`
	OccurredAt time.Time `json:"occurredAt"`
}

// 連動で変わった側のイベント。注文→配送の連動は配送イベント、その逆は注文イベントになる
func (s Sync) Events(buyerID int64, actorID int64, at time.Time) []Event {
	var out []Event
	if s.DeliveryStatus != "" {
		out = append(out, Event{
			Type: EventDeliveryStatusChanged, OrderID: s.OrderID, UserID: buyerID, DeliveryID: s.DeliveryID,
			Status: string(s.DeliveryStatus), ActorID: actorID, OccurredAt: at,
		})
	}
	if s.DeliveryRemoved {
		out = append(out, Event{
			Type: EventDeliveryStatusChanged, OrderID: s.OrderID, UserID: buyerID, DeliveryID: s.DeliveryID,
			Status: "Removed", ActorID: actorID, OccurredAt: at,
		})
	}
	if s.OrderStatus != "" {
		out = append(out, Event{
			Type: EventOrderStatusChanged, OrderID: s.OrderID, UserID: buyerID,
			Status: string(s.OrderStatus), ActorID: actorID, OccurredAt: at,
		})
	}
	return out
}
