// Package policy holds the ownership rules shared by every usecase.
// Route-level role checks live in middleware; the predicates here answer
// "may this actor touch this record".
package policy

import (
	"strings"

	"textilemart/internal/domain/model"
)

// 認証済みの呼び出し元
type Actor struct {
	UserID int64
	Role   model.Role
	Name   string
}

func (a Actor) IsAdmin() bool    { return a.Role == model.RoleAdmin }
func (a Actor) IsBuyer() bool    { return a.Role == model.RoleBuyer }
func (a Actor) IsDelivery() bool { return a.Role == model.RoleDelivery }

// 注文の持ち主か
func IsOrderOwner(a Actor, o model.Order) bool {
	return a.UserID > 0 && o.UserID == a.UserID
}

// 注文の閲覧: 本人 or admin
func CanReadOrder(a Actor, o model.Order) bool {
	return a.IsAdmin() || IsOrderOwner(a, o)
}

// キャンセルは購入者本人だけ
func CanCancelOrder(a Actor, o model.Order) bool {
	return a.IsBuyer() && IsOrderOwner(a, o)
}

// 支払い確定: 本人 or admin
func CanPayOrder(a Actor, o model.Order) bool {
	return a.IsAdmin() || IsOrderOwner(a, o)
}

// 注文ステータスの変更はadminと配達員
func CanUpdateOrderStatus(a Actor) bool {
	return a.IsAdmin() || a.IsDelivery()
}

// 配達員は自分の担当か未割当の配送だけ扱える
func CanManageDelivery(a Actor, d model.Delivery) bool {
	if a.IsAdmin() {
		return true
	}
	if !a.IsDelivery() {
		return false
	}
	return isUnassigned(d.DeliveryPerson) || samePerson(d.DeliveryPerson, a.Name)
}

// 配達員が割り当てられるのは自分だけ
func CanAssignDelivery(a Actor, person string) bool {
	if a.IsAdmin() {
		return true
	}
	return a.IsDelivery() && (isUnassigned(person) || samePerson(person, a.Name))
}

// 返金申請は自分の注文に対してだけ
func CanRequestRefund(a Actor, o model.Order) bool {
	return a.IsBuyer() && IsOrderOwner(a, o)
}

func CanReadRefund(a Actor, r model.Refund) bool {
	return a.IsAdmin() || (a.UserID > 0 && r.UserID == a.UserID)
}

func isUnassigned(person string) bool {
	p := strings.TrimSpace(person)
	return p == "" || strings.EqualFold(p, model.UnassignedDeliveryPerson)
}

func samePerson(a, b string) bool {
	a = strings.TrimSpace(a)
	return a != "" && strings.EqualFold(a, strings.TrimSpace(b))
}
