package lifecycle

import (
	"testing"
	"time"

	"textilemart/internal/domain/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSyncEvents(t *testing.T) {
	at := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)

	t.Run("nothing changed", func(t *testing.T) {
		s := Sync{Trigger: TriggerOrderStatusChanged, OrderID: 1}
		assert.False(t, s.Changed())
		assert.Empty(t, s.Events(2, 3, at))
	})

	t.Run("delivery moved by order", func(t *testing.T) {
		s := Sync{Trigger: TriggerOrderStatusChanged, OrderID: 1, DeliveryID: 9, DeliveryStatus: model.DeliveryStatusInTransit}
		evs := s.Events(2, 3, at)
		require.Len(t, evs, 1)
		assert.Equal(t, Event{
			Type: EventDeliveryStatusChanged, OrderID: 1, UserID: 2, DeliveryID: 9,
			Status: "In Transit", ActorID: 3, OccurredAt: at,
		}, evs[0])
	})

	t.Run("delivery removed", func(t *testing.T) {
		s := Sync{OrderID: 1, DeliveryID: 9, DeliveryRemoved: true}
		evs := s.Events(2, 3, at)
		require.Len(t, evs, 1)
		assert.Equal(t, "Removed", evs[0].Status)
	})

	t.Run("order delivered and paid", func(t *testing.T) {
		s := Sync{OrderID: 1, DeliveryID: 9, OrderStatus: model.OrderStatusDelivered, OrderMarkedPaid: true}
		evs := s.Events(2, 3, at)
		require.Len(t, evs, 1)
		assert.Equal(t, EventOrderStatusChanged, evs[0].Type)
		assert.Equal(t, "delivered", evs[0].Status)
		assert.Zero(t, evs[0].DeliveryID)
	})
}
