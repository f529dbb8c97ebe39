package policy

import (
	"testing"

	"textilemart/internal/domain/model"

	"github.com/stretchr/testify/assert"
)

var (
	buyer     = Actor{UserID: 1, Role: model.RoleBuyer, Name: "Aiko"}
	other     = Actor{UserID: 2, Role: model.RoleBuyer, Name: "Ben"}
	admin     = Actor{UserID: 9, Role: model.RoleAdmin, Name: "Root"}
	courier   = Actor{UserID: 5, Role: model.RoleDelivery, Name: "Dana"}
	anonymous = Actor{}
)

func TestOrderPredicates(t *testing.T) {
	o := model.Order{ID: 10, UserID: buyer.UserID}

	assert.True(t, CanReadOrder(buyer, o))
	assert.True(t, CanReadOrder(admin, o))
	assert.False(t, CanReadOrder(other, o))
	assert.False(t, CanReadOrder(courier, o))
	assert.False(t, CanReadOrder(anonymous, model.Order{}))

	assert.True(t, CanCancelOrder(buyer, o))
	assert.False(t, CanCancelOrder(other, o))
	assert.False(t, CanCancelOrder(admin, o))

	assert.True(t, CanPayOrder(buyer, o))
	assert.True(t, CanPayOrder(admin, o))
	assert.False(t, CanPayOrder(other, o))

	assert.True(t, CanUpdateOrderStatus(admin))
	assert.True(t, CanUpdateOrderStatus(courier))
	assert.False(t, CanUpdateOrderStatus(buyer))
}

func TestDeliveryPredicates(t *testing.T) {
	unassigned := model.Delivery{DeliveryPerson: model.UnassignedDeliveryPerson}
	mine := model.Delivery{DeliveryPerson: "dana"}
	theirs := model.Delivery{DeliveryPerson: "Eli"}

	assert.True(t, CanManageDelivery(courier, unassigned))
	assert.True(t, CanManageDelivery(courier, mine))
	assert.False(t, CanManageDelivery(courier, theirs))
	assert.True(t, CanManageDelivery(admin, theirs))
	assert.False(t, CanManageDelivery(buyer, unassigned))

	assert.True(t, CanAssignDelivery(courier, "Dana"))
	assert.False(t, CanAssignDelivery(courier, "Eli"))
	assert.True(t, CanAssignDelivery(admin, "Eli"))
}

func TestRefundPredicates(t *testing.T) {
	o := model.Order{ID: 3, UserID: buyer.UserID}
	r := model.Refund{ID: 4, OrderID: 3, UserID: buyer.UserID}

	assert.True(t, CanRequestRefund(buyer, o))
	assert.False(t, CanRequestRefund(other, o))
	assert.False(t, CanRequestRefund(admin, o))

	assert.True(t, CanReadRefund(buyer, r))
	assert.True(t, CanReadRefund(admin, r))
	assert.False(t, CanReadRefund(other, r))
}
